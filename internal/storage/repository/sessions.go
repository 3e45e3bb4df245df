package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/askspace/coworking-ledger/internal/models"
)

// SessionClose поля, записываемые при единственном закрывающем апдейте сессии.
type SessionClose struct {
	EndTime             time.Time
	DurationHours       float64
	CostAmount          int64
	PaymentMethod       models.PaymentMethod
	DeductedFromBalance bool
}

// CreateSession вставляет новую открытую сессию. Частичный уникальный
// индекс по user_id среди открытых сессий — финальный арбитр гонки двух
// одновременных start: проигравший получает ErrConflict.
func (s *Storage) CreateSession(ctx context.Context, session *models.Session) error {
	const op = "storage.CreateSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO sessions (id, user_id, start_time)
			  VALUES ($1, $2, $3)
			  RETURNING created_at`
	err := s.DB.QueryRowContext(ctx, query,
		session.ID, session.UserID, session.StartTime).Scan(&session.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSession возвращает сессию по её ID.
func (s *Storage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "storage.GetSession"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, start_time, end_time, duration_hours,
			      cost_amount, payment_method, deducted_from_balance, created_at
			  FROM sessions
			  WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, sessionID)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

// FindOpenSessionByUser ищет открытую сессию пользователя.
// Возвращает found=false, если открытой сессии нет.
func (s *Storage) FindOpenSessionByUser(ctx context.Context, userID string) (*models.Session, bool, error) {
	const op = "storage.FindOpenSessionByUser"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, start_time, end_time, duration_hours,
			      cost_amount, payment_method, deducted_from_balance, created_at
			  FROM sessions
			  WHERE user_id = $1 AND end_time IS NULL`
	row := s.DB.QueryRowContext(ctx, query, userID)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return session, true, nil
}

// CloseSession закрывает сессию одним апдейтом. Условие end_time IS NULL
// гарантирует, что из двух конкурентных закрытий выигрывает ровно одно:
// проигравший получает ErrConflict, сессия уже закрыта.
func (s *Storage) CloseSession(ctx context.Context, sessionID string, fields SessionClose) error {
	const op = "storage.CloseSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var paymentMethod sql.NullString
	if fields.PaymentMethod != models.PaymentNone {
		paymentMethod = sql.NullString{String: string(fields.PaymentMethod), Valid: true}
	}

	query := `UPDATE sessions
			  SET end_time = $1,
			      duration_hours = $2,
			      cost_amount = $3,
			      payment_method = $4,
			      deducted_from_balance = $5
			  WHERE id = $6 AND end_time IS NULL`
	result, err := s.DB.ExecContext(ctx, query,
		fields.EndTime, fields.DurationHours, fields.CostAmount,
		paymentMethod, fields.DeductedFromBalance, sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return nil
}

// ListOpenSessions возвращает все открытые сессии.
func (s *Storage) ListOpenSessions(ctx context.Context) ([]*models.Session, error) {
	const op = "storage.ListOpenSessions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, start_time, end_time, duration_hours,
			      cost_amount, payment_method, deducted_from_balance, created_at
			  FROM sessions
			  WHERE end_time IS NULL
			  ORDER BY start_time`
	return s.querySessions(ctx, op, query)
}

// ListSessionsStartedSince возвращает все сессии, открытые не раньше
// указанного момента, включая ещё не закрытые.
func (s *Storage) ListSessionsStartedSince(ctx context.Context, since time.Time) ([]*models.Session, error) {
	const op = "storage.ListSessionsStartedSince"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, start_time, end_time, duration_hours,
			      cost_amount, payment_method, deducted_from_balance, created_at
			  FROM sessions
			  WHERE start_time >= $1
			  ORDER BY start_time DESC`
	return s.querySessions(ctx, op, query, since)
}

func (s *Storage) querySessions(ctx context.Context, op, query string, args ...any) ([]*models.Session, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, session)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// scanner покрывает *sql.Row и *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var session models.Session
	var endTime sql.NullTime
	var durationHours sql.NullFloat64
	var costAmount sql.NullInt64
	var paymentMethod sql.NullString
	var deducted sql.NullBool

	if err := row.Scan(&session.ID, &session.UserID, &session.StartTime,
		&endTime, &durationHours, &costAmount, &paymentMethod, &deducted,
		&session.CreatedAt); err != nil {
		return nil, err
	}

	if endTime.Valid {
		session.EndTime = &endTime.Time
	}
	if durationHours.Valid {
		session.DurationHours = &durationHours.Float64
	}
	if costAmount.Valid {
		session.CostAmount = &costAmount.Int64
	}
	if paymentMethod.Valid {
		session.PaymentMethod = models.PaymentMethod(paymentMethod.String)
	}
	if deducted.Valid {
		session.DeductedFromBalance = &deducted.Bool
	}
	return &session, nil
}
