package models

import "time"

// RevenueToday итог выручки за текущий календарный день.
// SYP и USD считаются независимо: это разные единицы учёта.
// Поле AccruingSYP — проекция стоимости ещё открытых неоплаченных
// сессий, она пересчитывается на каждом тике и не является
// зафиксированным начислением.
type RevenueToday struct {
	SYP          float64   `json:"syp"`           // Итог в текущих единицах SYP
	SYPLegacy    float64   `json:"syp_legacy"`    // Тот же итог в старых единицах
	USD          float64   `json:"usd"`           // Оплаченные подписки и прочее в USD
	SettledSYP   float64   `json:"settled_syp"`   // Зафиксированные транзакции SYP
	UnpaidSYP    float64   `json:"unpaid_syp"`    // Завершённые сегодня сессии за наличные
	AccruingSYP  float64   `json:"accruing_syp"`  // Открытые неоплаченные сессии, проекция
	OpenSessions int       `json:"open_sessions"` // Количество открытых сессий
	ComputedAt   time.Time `json:"computed_at"`   // Момент пересчёта
}
