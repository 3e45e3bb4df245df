// Package ledger единственная точка изменения прав пользователя:
// пополнения остатка часов, активация подписки и запись нового остатка
// после закрытия сессии.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator"

	"github.com/askspace/coworking-ledger/internal/lib/sl"
	"github.com/askspace/coworking-ledger/internal/metrics"
	"github.com/askspace/coworking-ledger/internal/models"
)

type UserRepository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	AddHours(ctx context.Context, userID string, hours float64) error
	ActivateSubscription(ctx context.Context, userID string, expiry time.Time) error
	UpdateHourBalance(ctx context.Context, userID string, balance float64) error
	CreateTransaction(ctx context.Context, tx models.BalanceTransaction) (string, error)
}

// TopUpRequest покупка: пакет часов или подписка, но не оба сразу.
type TopUpRequest struct {
	UserID             string  `validate:"required"`
	Hours              float64 `validate:"gte=0"`
	AmountPaid         float64 `validate:"gte=0"`
	Currency           string  `validate:"required,oneof=USD SYP"`
	SubscriptionExpiry *time.Time
}

type Service struct {
	repo     UserRepository
	log      *slog.Logger
	validate *validator.Validate

	settleRetries    int
	settleRetryDelay time.Duration
}

// New создает новый экземпляр Service.
func New(repo UserRepository, log *slog.Logger, settleRetries int, settleRetryDelay time.Duration) *Service {
	return &Service{
		repo:             repo,
		log:              log,
		validate:         validator.New(),
		settleRetries:    settleRetries,
		settleRetryDelay: settleRetryDelay,
	}
}

// TopUp применяет покупку к правам пользователя. Подписка обнуляет остаток
// часов: оба права одновременно не действуют. Любое пополнение заново
// взводит флаг эпизода исчерпания. Расчетная транзакция пишется после
// изменения прав; её отказ логируется, но покупку не откатывает.
func (s *Service) TopUp(ctx context.Context, req TopUpRequest) (*models.User, error) {
	const op = "services.ledger.TopUp"

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.SubscriptionExpiry != nil {
		if err := s.repo.ActivateSubscription(ctx, req.UserID, *req.SubscriptionExpiry); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		if req.Hours <= 0 {
			return nil, fmt.Errorf("%s: top-up must add hours or a subscription", op)
		}
		if err := s.repo.AddHours(ctx, req.UserID, req.Hours); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	_, err := s.repo.CreateTransaction(ctx, models.BalanceTransaction{
		UserID:     req.UserID,
		HoursAdded: req.Hours,
		AmountPaid: req.AmountPaid,
		Currency:   req.Currency,
	})
	if err != nil {
		s.log.Warn("failed to record balance transaction", sl.Err(err), "user_id", req.UserID)
	}

	user, err := s.repo.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// ApplySettlement записывает новый остаток часов после закрытия сессии.
// Запись повторяется ограниченное число раз: закрытая сессия остаётся
// источником истины, несведенный остаток доберет монитор на следующем тике.
func (s *Service) ApplySettlement(ctx context.Context, userID string, newBalance float64) error {
	const op = "services.ledger.ApplySettlement"

	var err error
	for attempt := 0; attempt < s.settleRetries; attempt++ {
		if attempt > 0 {
			metrics.SettleRetries.Inc()
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", op, ctx.Err())
			case <-time.After(s.settleRetryDelay):
			}
		}
		err = s.repo.UpdateHourBalance(ctx, userID, newBalance)
		if err == nil {
			return nil
		}
		s.log.Warn("failed to settle hour balance, retrying",
			sl.Err(err), "user_id", userID, "attempt", attempt+1)
	}
	return fmt.Errorf("%s: %w", op, err)
}
