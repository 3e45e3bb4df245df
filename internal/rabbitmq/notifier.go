package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/askspace/coworking-ledger/internal/models"
)

// Channel минимальный интерфейс amqp-канала для публикации.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Notifier публикует события в exchange notifications. Лимитер сглаживает
// всплески при форсированном закрытии множества сессий за один тик.
type Notifier struct {
	ch      Channel
	limiter *rate.Limiter
}

// NewNotifier создает новый экземпляр Notifier.
func NewNotifier(ch Channel, perSecond int) *Notifier {
	return &Notifier{
		ch:      ch,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

// Publish сериализует событие в JSON и публикует его с ключом маршрутизации,
// равным виду события. Сообщения persistent: брокер переживает рестарт.
func (n *Notifier) Publish(ctx context.Context, event models.Event) error {
	const op = "rabbitmq.Publish"

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = n.ch.Publish(
		"notifications",
		event.Kind,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
