// Package models содержит доменные структуры коворкинг-леджера:
// пользователей с их правами на посещение, сессии занятости,
// финансовые транзакции и события для внешних потребителей.
package models

import "time"

// User представляет участника коворкинга.
// Право на бесплатное посещение определяется либо неистёкшей подпиской
// (SubscriptionExpiry в будущем), либо положительным остатком часов.
type User struct {
	ID                 string     // Уникальный идентификатор пользователя
	Name               string     // Отображаемое имя
	HourBalance        float64    // Остаток предоплаченных часов, всегда >= 0
	SubscriptionExpiry *time.Time // Дата истечения подписки, nil — подписки нет
	DepletionNotified  bool       // Флаг эпизода исчерпания: false — Armed, true — Fired
	CreatedAt          time.Time  // Дата регистрации
}

// HasActiveSubscription сообщает, действует ли подписка пользователя
// на момент now.
func (u *User) HasActiveSubscription(now time.Time) bool {
	return u.SubscriptionExpiry != nil && u.SubscriptionExpiry.After(now)
}
