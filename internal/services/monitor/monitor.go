// Package monitor фоновый наблюдатель за исчерпанием прав: истекшая
// подписка или исчерпанный остаток часов приводят к форсированному
// закрытию открытой сессии и ровно одному уведомлению за эпизод.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/askspace/coworking-ledger/internal/lib/sl"
	"github.com/askspace/coworking-ledger/internal/metrics"
	"github.com/askspace/coworking-ledger/internal/models"
	"github.com/askspace/coworking-ledger/internal/services/sessions"
	"github.com/askspace/coworking-ledger/internal/storage/repository"
)

// Причины исчерпания в уведомлении.
const (
	ReasonSubscriptionExpired = "subscription_expired"
	ReasonBalanceDepleted     = "balance_depleted"
)

type Repository interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	FindOpenSessionByUser(ctx context.Context, userID string) (*models.Session, bool, error)
	MarkDepletionNotified(ctx context.Context, userID string) error
}

type SessionCloser interface {
	End(ctx context.Context, sessionID string, opts sessions.EndOptions) (*sessions.Result, error)
}

type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type Service struct {
	repo     Repository
	closer   SessionCloser
	notifier Publisher
	log      *slog.Logger
	interval time.Duration
}

// New создает новый экземпляр Service.
func New(repo Repository, closer SessionCloser, notifier Publisher,
	log *slog.Logger, interval time.Duration) *Service {
	return &Service{
		repo:     repo,
		closer:   closer,
		notifier: notifier,
		log:      log,
		interval: interval,
	}
}

// Run запускает цикл наблюдения до отмены контекста. Проход выполняется
// синхронно внутри тика: запоздавший проход не накладывается на следующий.
func (s *Service) Run(ctx context.Context) {
	s.log.Info("starting depletion monitor", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("depletion monitor stopped")
			return
		case <-ticker.C:
			s.runCheck(ctx)
			metrics.MonitorTicks.Inc()
		}
	}
}

func (s *Service) runCheck(ctx context.Context) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		s.log.Error("failed to list users", sl.Err(err))
		return
	}

	now := time.Now().UTC()
	for _, user := range users {
		if user.DepletionNotified {
			continue
		}
		reason, session, ok := s.detect(ctx, user, now)
		if !ok {
			continue
		}
		s.handleDepletion(ctx, user, session, reason)
	}
}

// detect возвращает причину исчерпания и открытую сессию пользователя,
// если эпизод действительно наступил.
func (s *Service) detect(ctx context.Context, user *models.User, now time.Time) (string, *models.Session, bool) {
	expired := user.SubscriptionExpiry != nil && !user.SubscriptionExpiry.After(now)

	session, found, err := s.repo.FindOpenSessionByUser(ctx, user.ID)
	if err != nil {
		s.log.Error("failed to find open session", sl.Err(err), "user_id", user.ID)
		return "", nil, false
	}
	if !found {
		session = nil
	}

	if expired {
		return ReasonSubscriptionExpired, session, true
	}
	if session != nil && user.HourBalance > 0 &&
		user.HourBalance-session.ElapsedHours(now) <= 0 {
		return ReasonBalanceDepleted, session, true
	}
	return "", nil, false
}

// handleDepletion закрывает открытую сессию, фиксирует эпизод и публикует
// уведомление. Любой отказ хранилища оставляет эпизод невзведенным:
// следующий тик повторит попытку. Закрытие без явной стоимости: обычная
// тарификация сама уйдет в ветку «подписка неактивна».
func (s *Service) handleDepletion(ctx context.Context, user *models.User, session *models.Session, reason string) {
	if session != nil {
		_, err := s.closer.End(ctx, session.ID, sessions.EndOptions{Forced: true})
		switch {
		case err == nil:
			metrics.ForcedCloses.Inc()
			s.log.Info("forced session close",
				"session_id", session.ID, "user_id", user.ID, "reason", reason)
		case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrNotFound):
			// Сессию уже закрыли конкурентно, эпизод остаётся в силе.
		default:
			s.log.Error("failed to force close session, will retry",
				sl.Err(err), "session_id", session.ID, "user_id", user.ID)
			return
		}
	}

	if err := s.repo.MarkDepletionNotified(ctx, user.ID); err != nil {
		s.log.Error("failed to mark depletion episode, will retry",
			sl.Err(err), "user_id", user.ID)
		return
	}

	metrics.DepletionEvents.WithLabelValues(reason).Inc()
	if s.notifier != nil {
		err := s.notifier.Publish(ctx, models.Event{
			Kind: models.EventDepletion,
			Payload: models.DepletionPayload{
				UserID:   user.ID,
				UserName: user.Name,
				Reason:   reason,
			},
		})
		if err != nil {
			metrics.PublishFailures.Inc()
			s.log.Error("failed to publish depletion event", sl.Err(err), "user_id", user.ID)
		}
	}
}
