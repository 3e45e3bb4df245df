package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/askspace/coworking-ledger/internal/models"
)

// CreateTransaction добавляет расчётную транзакцию и возвращает её ID.
// Записи append-only: обновления и удаления не предусмотрены, кроме
// каскада при удалении пользователя.
func (s *Storage) CreateTransaction(ctx context.Context, tx models.BalanceTransaction) (string, error) {
	const op = "storage.CreateTransaction"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO balance_transactions (user_id, hours_added, amount_paid, currency)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query,
		tx.UserID, tx.HoursAdded, tx.AmountPaid, tx.Currency).Scan(&newID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListTransactionsSince возвращает транзакции, созданные не раньше
// указанного момента.
func (s *Storage) ListTransactionsSince(ctx context.Context, since time.Time) ([]*models.BalanceTransaction, error) {
	const op = "storage.ListTransactionsSince"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, hours_added, amount_paid, currency, created_at
			  FROM balance_transactions
			  WHERE created_at >= $1
			  ORDER BY created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.BalanceTransaction
	for rows.Next() {
		var item models.BalanceTransaction
		if err := rows.Scan(&item.ID, &item.UserID, &item.HoursAdded,
			&item.AmountPaid, &item.Currency, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListTransactionsByUser возвращает историю пополнений пользователя.
func (s *Storage) ListTransactionsByUser(ctx context.Context, userID string) ([]*models.BalanceTransaction, error) {
	const op = "storage.ListTransactionsByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, hours_added, amount_paid, currency, created_at
			  FROM balance_transactions
			  WHERE user_id = $1
			  ORDER BY created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.BalanceTransaction
	for rows.Next() {
		var item models.BalanceTransaction
		if err := rows.Scan(&item.ID, &item.UserID, &item.HoursAdded,
			&item.AmountPaid, &item.Currency, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
