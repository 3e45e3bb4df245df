package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/askspace/coworking-ledger/internal/models"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func TestNotifier_Publish(t *testing.T) {
	ch := new(MockChannel)
	notifier := NewNotifier(ch, 100)

	event := models.Event{
		Kind: models.EventDepletion,
		Payload: models.DepletionPayload{
			UserID:   "user-1",
			UserName: "Alice",
			Reason:   "balance_depleted",
		},
	}

	ch.On("Publish", "notifications", models.EventDepletion, false, false,
		mock.MatchedBy(func(msg amqp.Publishing) bool {
			if msg.ContentType != "application/json" || msg.DeliveryMode != amqp.Persistent {
				return false
			}
			var got models.Event
			if err := json.Unmarshal(msg.Body, &got); err != nil {
				return false
			}
			return got.Kind == models.EventDepletion
		})).Return(nil)

	err := notifier.Publish(context.Background(), event)
	require.NoError(t, err)
	ch.AssertExpectations(t)
}

func TestNotifier_PublishError(t *testing.T) {
	ch := new(MockChannel)
	notifier := NewNotifier(ch, 100)

	ch.On("Publish", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(errors.New("channel closed"))

	err := notifier.Publish(context.Background(), models.Event{Kind: models.EventSessionStarted})
	assert.Error(t, err)
}

func TestNotifier_PublishCancelledContext(t *testing.T) {
	ch := new(MockChannel)
	notifier := NewNotifier(ch, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := notifier.Publish(ctx, models.Event{Kind: models.EventSessionEnded})
	assert.Error(t, err)
	ch.AssertNotCalled(t, "Publish",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
