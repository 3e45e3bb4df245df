package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/askspace/coworking-ledger/internal/models"
)

// CreateUser сохраняет нового пользователя и возвращает его с данными из базы.
func (s *Storage) CreateUser(ctx context.Context, name string) (*models.User, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (name)
			  VALUES ($1)
			  RETURNING id, created_at`
	u := &models.User{Name: name}
	if err := s.DB.QueryRowContext(ctx, query, name).Scan(&u.ID, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUser возвращает пользователя по его ID.
func (s *Storage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, hour_balance, subscription_expiry, depletion_notified, created_at
			  FROM users
			  WHERE id = $1`
	u := &models.User{}
	row := s.DB.QueryRowContext(ctx, query, userID)

	var subscriptionExpiry sql.NullTime
	if err := row.Scan(&u.ID, &u.Name, &u.HourBalance, &subscriptionExpiry,
		&u.DepletionNotified, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if subscriptionExpiry.Valid {
		u.SubscriptionExpiry = &subscriptionExpiry.Time
	}
	return u, nil
}

// ListUsers возвращает всех пользователей в порядке регистрации.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, hour_balance, subscription_expiry, depletion_notified, created_at
			  FROM users
			  ORDER BY created_at`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		var u models.User
		var subscriptionExpiry sql.NullTime
		if err := rows.Scan(&u.ID, &u.Name, &u.HourBalance, &subscriptionExpiry,
			&u.DepletionNotified, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if subscriptionExpiry.Valid {
			u.SubscriptionExpiry = &subscriptionExpiry.Time
		}
		result = append(result, &u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateHourBalance записывает новый остаток часов пользователя.
// Остаток никогда не бывает отрицательным: недостача тарифицируется,
// а не сохраняется долгом.
func (s *Storage) UpdateHourBalance(ctx context.Context, userID string, balance float64) error {
	const op = "storage.UpdateHourBalance"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET hour_balance = $1
			  WHERE id = $2`
	result, err := s.DB.ExecContext(ctx, query, balance, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// AddHours добавляет купленные часы к остатку и заново взводит
// флаг эпизода исчерпания.
func (s *Storage) AddHours(ctx context.Context, userID string, hours float64) error {
	const op = "storage.AddHours"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET hour_balance = hour_balance + $1,
			      depletion_notified = false
			  WHERE id = $2`
	result, err := s.DB.ExecContext(ctx, query, hours, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// ActivateSubscription устанавливает дату истечения подписки, обнуляет
// остаток часов и заново взводит флаг эпизода исчерпания.
func (s *Storage) ActivateSubscription(ctx context.Context, userID string, expiry time.Time) error {
	const op = "storage.ActivateSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET subscription_expiry = $1,
			      hour_balance = 0,
			      depletion_notified = false
			  WHERE id = $2`
	result, err := s.DB.ExecContext(ctx, query, expiry, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// MarkDepletionNotified переводит эпизод исчерпания пользователя
// в состояние Fired: повторные уведомления не отправляются до пополнения.
func (s *Storage) MarkDepletionNotified(ctx context.Context, userID string) error {
	const op = "storage.MarkDepletionNotified"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET depletion_notified = true
			  WHERE id = $1`
	result, err := s.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// RemoveUser удаляет пользователя вместе с историей сессий и транзакций
// (каскад на стороне базы) и возвращает количество удалённых строк.
func (s *Storage) RemoveUser(ctx context.Context, userID string) (int, error) {
	const op = "storage.RemoveUser"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM users WHERE id = $1`
	result, err := s.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
