// Package sessions машина состояний сессии: открытие, единственное
// закрытие и расчет по его итогам.
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askspace/coworking-ledger/internal/lib/sl"
	"github.com/askspace/coworking-ledger/internal/metrics"
	"github.com/askspace/coworking-ledger/internal/models"
	"github.com/askspace/coworking-ledger/internal/services/billing"
	"github.com/askspace/coworking-ledger/internal/storage/repository"
)

type Repository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	FindOpenSessionByUser(ctx context.Context, userID string) (*models.Session, bool, error)
	CloseSession(ctx context.Context, sessionID string, fields repository.SessionClose) error
}

type Settler interface {
	ApplySettlement(ctx context.Context, userID string, newBalance float64) error
}

type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// EndOptions параметры закрытия сессии.
type EndOptions struct {
	ExplicitCost   *int64
	ExplicitMethod models.PaymentMethod
	Forced         bool
}

// Result итог закрытой сессии.
type Result struct {
	SessionID     string
	DurationHours float64
	Cost          int64
	Subscribed    bool
	Deducted      bool
	PaymentMethod models.PaymentMethod
}

type Service struct {
	repo     Repository
	settler  Settler
	resolver *billing.Resolver
	notifier Publisher
	log      *slog.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// New создает новый экземпляр Service.
func New(repo Repository, settler Settler, resolver *billing.Resolver,
	notifier Publisher, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		settler:   settler,
		resolver:  resolver,
		notifier:  notifier,
		log:       log,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// Start открывает сессию пользователя. Предварительная проверка отсекает
// очевидный повтор; финальный арбитр гонки — уникальный индекс базы,
// проигравший получает repository.ErrConflict.
func (s *Service) Start(ctx context.Context, userID string) (*models.Session, error) {
	const op = "services.sessions.Start"

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, found, err := s.repo.FindOpenSessionByUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	} else if found {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrConflict)
	}

	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartTime: time.Now().UTC(),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, models.Event{
		Kind: models.EventSessionStarted,
		Payload: models.SessionStartedPayload{
			SessionID: session.ID,
			UserID:    user.ID,
			UserName:  user.Name,
			StartTime: session.StartTime,
		},
	})
	return session, nil
}

// End закрывает сессию и проводит расчет. Закрытия одного пользователя
// сериализуются, чтобы ручное закрытие и форсированное закрытие монитора
// не тарифицировали одну сессию дважды; для конкурентов из других
// процессов арбитром остаётся условный апдейт базы.
func (s *Service) End(ctx context.Context, sessionID string, opts EndOptions) (*Result, error) {
	const op = "services.sessions.End"

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lock := s.userLock(session.UserID)
	lock.Lock()
	defer lock.Unlock()

	session, err = s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !session.Open() {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrConflict)
	}

	user, err := s.repo.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	elapsed := session.ElapsedHours(now)

	outcome := s.resolver.Resolve(billing.Input{
		HasActiveSubscription: user.HasActiveSubscription(now),
		HourBalance:           user.HourBalance,
		ElapsedHours:          elapsed,
		ExplicitCost:          opts.ExplicitCost,
		ExplicitMethod:        opts.ExplicitMethod,
	})

	err = s.repo.CloseSession(ctx, sessionID, repository.SessionClose{
		EndTime:             now,
		DurationHours:       round3(elapsed),
		CostAmount:          outcome.Cost,
		PaymentMethod:       outcome.PaymentMethod,
		DeductedFromBalance: outcome.Deducted,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Сессия закрыта и стала источником истины; списание остатка
	// добирается повторами, но закрытие уже не откатывается.
	if outcome.Deducted {
		if err := s.settler.ApplySettlement(ctx, user.ID, round3(outcome.NewBalance)); err != nil {
			s.log.Error("failed to settle balance after close",
				sl.Err(err), "session_id", sessionID, "user_id", user.ID)
		}
	}

	subscribed := user.HasActiveSubscription(now)
	s.publish(ctx, models.Event{
		Kind: models.EventSessionEnded,
		Payload: models.SessionEndedPayload{
			SessionID:     sessionID,
			UserID:        user.ID,
			UserName:      user.Name,
			DurationHours: round3(elapsed),
			Cost:          outcome.Cost,
			Subscribed:    subscribed,
			Forced:        opts.Forced,
		},
	})

	return &Result{
		SessionID:     sessionID,
		DurationHours: round3(elapsed),
		Cost:          outcome.Cost,
		Subscribed:    subscribed,
		Deducted:      outcome.Deducted,
		PaymentMethod: outcome.PaymentMethod,
	}, nil
}

func (s *Service) publish(ctx context.Context, event models.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		metrics.PublishFailures.Inc()
		s.log.Error("failed to publish event", sl.Err(err), "kind", event.Kind)
	}
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
