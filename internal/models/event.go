package models

import "time"

// Виды событий, публикуемых во внешнюю шину уведомлений.
const (
	EventSessionStarted = "session_started"
	EventSessionEnded   = "session_ended"
	EventDepletion      = "depletion"
)

// Event сообщение для внешнего потребителя уведомлений.
// Доставка best-effort: ядро никогда не блокируется на публикации.
type Event struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

// SessionStartedPayload данные события открытия сессии.
type SessionStartedPayload struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	StartTime time.Time `json:"start_time"`
}

// SessionEndedPayload данные события закрытия сессии.
type SessionEndedPayload struct {
	SessionID     string  `json:"session_id"`
	UserID        string  `json:"user_id"`
	UserName      string  `json:"user_name"`
	DurationHours float64 `json:"duration_hours"`
	Cost          int64   `json:"cost"`
	Subscribed    bool    `json:"subscribed"`
	Forced        bool    `json:"forced"`
}

// DepletionPayload данные события исчерпания прав пользователя.
type DepletionPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Reason   string `json:"reason"` // subscription_expired или balance_depleted
}
