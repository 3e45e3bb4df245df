package models

import "time"

// PaymentMethod способ оплаты закрытой сессии.
type PaymentMethod string

const (
	// PaymentCash сессия оплачена наличными по почасовому тарифу.
	PaymentCash PaymentMethod = "Cash"
	// PaymentPrepaid сессия покрыта подпиской.
	PaymentPrepaid PaymentMethod = "Prepaid"
	// PaymentNone способ оплаты не зафиксирован (сессия покрыта
	// списанием часов либо ещё открыта).
	PaymentNone PaymentMethod = ""
)

// Session представляет один непрерывный интервал занятости пользователя.
// Пока сессия открыта, поля EndTime, DurationHours, CostAmount,
// PaymentMethod и DeductedFromBalance отсутствуют; они заполняются
// ровно один раз при закрытии и после этого неизменяемы.
type Session struct {
	ID                  string        // Уникальный идентификатор сессии
	UserID              string        // Владелец сессии
	StartTime           time.Time     // Момент открытия
	EndTime             *time.Time    // Момент закрытия, nil — сессия открыта
	DurationHours       *float64      // Длительность в часах, округлена до 3 знаков
	CostAmount          *int64        // Стоимость в текущих единицах валюты
	PaymentMethod       PaymentMethod // Cash, Prepaid или пусто
	DeductedFromBalance *bool         // Было ли списание с остатка часов
	CreatedAt           time.Time
}

// Open сообщает, открыта ли сессия.
func (s *Session) Open() bool {
	return s.EndTime == nil
}

// ElapsedHours возвращает длительность сессии в часах на момент now.
func (s *Session) ElapsedHours(now time.Time) float64 {
	return now.Sub(s.StartTime).Hours()
}
