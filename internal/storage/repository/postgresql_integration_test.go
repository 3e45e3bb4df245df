package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askspace/coworking-ledger/internal/models"
)

func TestStorage_CreateSession_Conflict(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userID := factory.CreateUser(t, "testuser", 0, nil)

	first := &models.Session{
		ID:        "550e8400-e29b-41d4-a716-446655440001",
		UserID:    userID,
		StartTime: time.Now().UTC(),
	}
	err := storage.CreateSession(context.Background(), first)
	require.NoError(t, err)
	require.False(t, first.CreatedAt.IsZero())

	second := &models.Session{
		ID:        "550e8400-e29b-41d4-a716-446655440002",
		UserID:    userID,
		StartTime: time.Now().UTC(),
	}
	err = storage.CreateSession(context.Background(), second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestStorage_CloseSession(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userID := factory.CreateUser(t, "testuser", 0, nil)
	sessionID := factory.CreateOpenSession(t, userID, time.Now().UTC().Add(-time.Hour))

	fields := SessionClose{
		EndTime:             time.Now().UTC(),
		DurationHours:       1.0,
		CostAmount:          50,
		PaymentMethod:       models.PaymentCash,
		DeductedFromBalance: false,
	}
	err := storage.CloseSession(context.Background(), sessionID, fields)
	require.NoError(t, err)

	verification := NewTestVerification(storage)
	verification.VerifySessionClosed(t, sessionID)

	// Повторное закрытие проигрывает: сессия уже закрыта.
	err = storage.CloseSession(context.Background(), sessionID, fields)
	assert.ErrorIs(t, err, ErrConflict)

	session, err := storage.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, session.EndTime)
	assert.Equal(t, models.PaymentCash, session.PaymentMethod)
	require.NotNil(t, session.CostAmount)
	assert.Equal(t, int64(50), *session.CostAmount)
}

func TestStorage_FindOpenSessionByUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userID := factory.CreateUser(t, "testuser", 0, nil)

	_, found, err := storage.FindOpenSessionByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, found)

	sessionID := factory.CreateOpenSession(t, userID, time.Now().UTC())

	session, found, err := storage.FindOpenSessionByUser(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, sessionID, session.ID)
	assert.True(t, session.Open())
}

func TestStorage_GetUser_NotFound(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	_, err := storage.GetUser(context.Background(), "550e8400-e29b-41d4-a716-446655440099")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_AddHours_RearmsDepletionFlag(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userID := factory.CreateUser(t, "testuser", 0, nil)

	err := storage.MarkDepletionNotified(context.Background(), userID)
	require.NoError(t, err)

	user, err := storage.GetUser(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, user.DepletionNotified)

	err = storage.AddHours(context.Background(), userID, 3)
	require.NoError(t, err)

	user, err = storage.GetUser(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, user.DepletionNotified)
	assert.InDelta(t, 3.0, user.HourBalance, 0.0001)
}

func TestStorage_ActivateSubscription_ZeroesBalance(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userID := factory.CreateUser(t, "testuser", 7.5, nil)

	expiry := time.Now().UTC().AddDate(0, 1, 0)
	err := storage.ActivateSubscription(context.Background(), userID, expiry)
	require.NoError(t, err)

	user, err := storage.GetUser(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, user.SubscriptionExpiry)
	assert.WithinDuration(t, expiry, *user.SubscriptionExpiry, time.Second)
	assert.Zero(t, user.HourBalance)
}

func TestStorage_UpdateHourBalance(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userID := factory.CreateUser(t, "testuser", 5, nil)

	err := storage.UpdateHourBalance(context.Background(), userID, 1.25)
	require.NoError(t, err)

	verification := NewTestVerification(storage)
	verification.VerifyHourBalance(t, userID, 1.25)

	err = storage.UpdateHourBalance(context.Background(), "550e8400-e29b-41d4-a716-446655440099", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_ListSessionsStartedSince(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userID := factory.CreateUser(t, "testuser", 0, nil)
	otherID := factory.CreateUser(t, "other", 0, nil)

	now := time.Now().UTC()
	factory.CreateClosedSession(t, userID, now.Add(-48*time.Hour), now.Add(-47*time.Hour),
		1.0, 50, string(models.PaymentCash), false)
	factory.CreateClosedSession(t, userID, now.Add(-2*time.Hour), now.Add(-time.Hour),
		1.0, 50, string(models.PaymentCash), false)
	factory.CreateOpenSession(t, otherID, now.Add(-time.Minute))

	sessions, err := storage.ListSessionsStartedSince(context.Background(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestStorage_ListOpenSessions(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userID := factory.CreateUser(t, "testuser", 0, nil)
	otherID := factory.CreateUser(t, "other", 0, nil)

	now := time.Now().UTC()
	factory.CreateOpenSession(t, userID, now.Add(-time.Hour))
	factory.CreateClosedSession(t, otherID, now.Add(-3*time.Hour), now.Add(-2*time.Hour),
		1.0, 0, "", true)

	sessions, err := storage.ListOpenSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, userID, sessions[0].UserID)
}

func TestStorage_Transactions(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userID := factory.CreateUser(t, "testuser", 0, nil)

	id, err := storage.CreateTransaction(context.Background(), models.BalanceTransaction{
		UserID:     userID,
		HoursAdded: 5,
		AmountPaid: 250,
		Currency:   models.CurrencySYP,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	factory.CreateTransaction(t, userID, 0, 20, models.CurrencyUSD)

	since, err := storage.ListTransactionsSince(context.Background(), time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	assert.Len(t, since, 2)

	byUser, err := storage.ListTransactionsByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)
}

func TestStorage_RemoveUser_Cascades(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userID := factory.CreateUser(t, "testuser", 0, nil)
	factory.CreateOpenSession(t, userID, time.Now().UTC())
	factory.CreateTransaction(t, userID, 1, 50, models.CurrencySYP)

	rowsAffected, err := storage.RemoveUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, rowsAffected)

	var sessionCount int
	err = storage.DB.QueryRow(
		"SELECT COUNT(*) FROM sessions WHERE user_id = $1", userID).Scan(&sessionCount)
	require.NoError(t, err)
	assert.Zero(t, sessionCount)
}
