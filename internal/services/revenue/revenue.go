// Package revenue агрегатор дневной выручки. Каждый тик итог выводится
// заново из хранилища, а не из накопительного счетчика: пропущенный тик
// или запоздавшая транзакция ничего не ломают.
package revenue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/askspace/coworking-ledger/internal/lib/currency"
	"github.com/askspace/coworking-ledger/internal/lib/sl"
	"github.com/askspace/coworking-ledger/internal/metrics"
	"github.com/askspace/coworking-ledger/internal/models"
)

// CacheKeyToday ключ, под которым снимок выручки лежит в Redis.
const CacheKeyToday = "revenue:today"

const cacheTTL = 10 * time.Second

type Repository interface {
	ListTransactionsSince(ctx context.Context, since time.Time) ([]*models.BalanceTransaction, error)
	ListSessionsStartedSince(ctx context.Context, since time.Time) ([]*models.Session, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

type SnapshotCache interface {
	Set(key string, value any, expiration time.Duration) error
}

type Service struct {
	repo        Repository
	cache       SnapshotCache
	log         *slog.Logger
	ratePerHour int64
	interval    time.Duration
}

// New создает новый экземпляр Service.
func New(repo Repository, cache SnapshotCache, log *slog.Logger,
	ratePerHour int64, interval time.Duration) *Service {
	return &Service{
		repo:        repo,
		cache:       cache,
		log:         log,
		ratePerHour: ratePerHour,
		interval:    interval,
	}
}

// Run пересчитывает дневную выручку до отмены контекста.
func (s *Service) Run(ctx context.Context) {
	s.log.Info("starting revenue aggregator", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("revenue aggregator stopped")
			return
		case <-ticker.C:
			s.runRecompute(ctx)
		}
	}
}

func (s *Service) runRecompute(ctx context.Context) {
	snapshot, err := s.Recompute(ctx)
	if err != nil {
		s.log.Error("failed to recompute revenue", sl.Err(err))
		return
	}
	if s.cache != nil {
		if err := s.cache.Set(CacheKeyToday, snapshot, cacheTTL); err != nil {
			s.log.Error("failed to cache revenue snapshot", sl.Err(err))
		}
	}
}

// Recompute выводит итог текущего локального календарного дня: расчётные
// транзакции в SYP и USD раздельно, плюс неоплаченные закрытые наличные
// сессии, плюс живое накопление открытых сессий пользователей без прав.
// Валюты никогда не складываются между собой.
func (s *Service) Recompute(ctx context.Context) (*models.RevenueToday, error) {
	const op = "services.revenue.Recompute"

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	transactions, err := s.repo.ListTransactionsSince(ctx, startOfDay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var settledSYP, settledUSD float64
	for _, tx := range transactions {
		switch tx.Currency {
		case models.CurrencySYP:
			settledSYP += tx.AmountPaid
		case models.CurrencyUSD:
			settledUSD += tx.AmountPaid
		}
	}

	sessionList, err := s.repo.ListSessionsStartedSince(ctx, startOfDay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var unpaidSYP, accruingSYP float64
	var openSessions int
	users := make(map[string]*models.User)

	for _, session := range sessionList {
		if session.Open() {
			openSessions++
			user, ok := users[session.UserID]
			if !ok {
				user, err = s.repo.GetUser(ctx, session.UserID)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", op, err)
				}
				users[session.UserID] = user
			}
			// Накопление считается только по сессиям без действующих
			// прав: подписчики и владельцы остатка часов не в счет.
			if !user.HasActiveSubscription(now) && user.HourBalance <= 0 {
				accruingSYP += session.ElapsedHours(now) * float64(s.ratePerHour)
			}
			continue
		}

		deducted := session.DeductedFromBalance != nil && *session.DeductedFromBalance
		if session.PaymentMethod != models.PaymentPrepaid && !deducted &&
			session.DurationHours != nil {
			unpaidSYP += *session.DurationHours * float64(s.ratePerHour)
		}
	}

	totalSYP := settledSYP + unpaidSYP + accruingSYP
	snapshot := &models.RevenueToday{
		SYP:          totalSYP,
		SYPLegacy:    currency.ToLegacyUnits(totalSYP),
		USD:          settledUSD,
		SettledSYP:   settledSYP,
		UnpaidSYP:    unpaidSYP,
		AccruingSYP:  accruingSYP,
		OpenSessions: openSessions,
		ComputedAt:   now.UTC(),
	}

	metrics.OpenSessions.Set(float64(openSessions))
	metrics.RevenueSYP.Set(totalSYP)
	metrics.RevenueUSD.Set(settledUSD)
	return snapshot, nil
}
