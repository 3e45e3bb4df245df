package models

import "time"

// Валюты расчётных транзакций. Суммы в разных валютах никогда
// не складываются между собой.
const (
	CurrencyUSD = "USD"
	CurrencySYP = "SYP"
)

// BalanceTransaction фиксирует оплаченное событие пополнения:
// покупку часов или подписки. Записи только добавляются и используются
// исключительно для подсчёта выручки — права пользователя хранятся
// на самом пользователе.
type BalanceTransaction struct {
	ID         string    // Уникальный идентификатор транзакции
	UserID     string    // Пользователь, совершивший покупку
	HoursAdded float64   // Добавленные часы, 0 для покупки подписки
	AmountPaid float64   // Оплаченная сумма
	Currency   string    // USD или SYP
	CreatedAt  time.Time // Момент оплаты
}
