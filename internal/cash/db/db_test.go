package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-pos/internal/cash/db"
	"ms-pos/internal/database"
	"ms-pos/internal/models"
)

func setupTestDB(t *testing.T) *db.DB {
	return &db.DB{Bun: database.NewTestDB(t)}
}

func openSession(t *testing.T, d *db.DB, cashierID string, amount float64) *models.CashSession {
	s := &models.CashSession{
		ID:            uuid.New().String(),
		CashierID:     cashierID,
		OpenedBy:      "admin",
		OpeningAmount: amount,
		Status:        models.SessionOpenUnconfirmed,
		OpenedAt:      time.Now().UTC(),
	}
	require.NoError(t, d.CreateSession(context.Background(), s))
	return s
}

func TestOneOpenSessionPerCashier(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	first := openSession(t, d, "c1", 100)

	dup := &models.CashSession{ID: uuid.New().String(), CashierID: "c1", OpenedBy: "admin", Status: models.SessionOpenUnconfirmed, OpenedAt: time.Now()}
	err := d.CreateSession(ctx, dup)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))

	ok, err := d.CloseSession(ctx, first.ID, "", 100, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, d.CreateSession(ctx, dup))
	open, err := d.FindOpenByCashier(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, dup.ID, open.ID)
}

func TestConfirmSessionGuards(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	s := openSession(t, d, "c1", 50)

	ok, err := d.ConfirmSession(ctx, s.ID, "someone-else", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.ConfirmSession(ctx, s.ID, "c1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.ConfirmSession(ctx, s.ID, "c1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "second confirm must lose the guard")

	got, err := d.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionOpenConfirmed, got.Status)
	assert.NotNil(t, got.ConfirmedAt)
}

func TestAppendMovementAndClose(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	s := openSession(t, d, "c1", 200)
	confirmed := []models.SessionStatus{models.SessionOpenConfirmed}

	mv := &models.Movement{ID: uuid.New().String(), SessionID: s.ID, Type: models.MovementInflow, Amount: 60, CreatedAt: time.Now()}
	ok, err := d.AppendMovement(ctx, mv, "", confirmed)
	require.NoError(t, err)
	assert.False(t, ok, "unconfirmed session rejects manual movements")

	ok, err = d.AppendMovement(ctx, mv, "", models.OpenSessionStatuses)
	require.NoError(t, err)
	require.True(t, ok)

	out := &models.Movement{ID: uuid.New().String(), SessionID: s.ID, Type: models.MovementOutflow, Amount: 10, CreatedAt: time.Now()}
	ok, err = d.AppendMovement(ctx, out, "", models.OpenSessionStatuses)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := d.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.TotalInflow)
	assert.Equal(t, 10.0, got.TotalOutflow)
	assert.Len(t, got.Movements, 2)
	assert.Equal(t, 250.0, got.Expected())

	ok, err = d.CloseSession(ctx, s.ID, "", 245, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	got, err = d.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionClosed, got.Status)
	require.NotNil(t, got.Difference)
	assert.InDelta(t, -5.0, *got.Difference, 0.0001)

	late := &models.Movement{ID: uuid.New().String(), SessionID: s.ID, Type: models.MovementInflow, Amount: 1, CreatedAt: time.Now()}
	ok, err = d.AppendMovement(ctx, late, "", models.OpenSessionStatuses)
	require.NoError(t, err)
	assert.False(t, ok, "closed sessions are immutable")

	movements, err := d.ListMovements(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, movements, 2)
}

func TestInflowLookup(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	s := openSession(t, d, "c1", 0)
	orderID := "order-1"

	found, err := d.FindInflowForOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Nil(t, found)

	mv := &models.Movement{ID: uuid.New().String(), SessionID: s.ID, Type: models.MovementInflow, Amount: 12, OrderID: &orderID, CreatedAt: time.Now()}
	ok, err := d.AppendMovement(ctx, mv, "", models.OpenSessionStatuses)
	require.NoError(t, err)
	require.True(t, ok)

	found, err = d.FindInflowForOrder(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, mv.ID, found.ID)

	ids, err := d.OrderIDsWithInflow(ctx)
	require.NoError(t, err)
	assert.True(t, ids[orderID])
}

func TestHistoryNewestFirst(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	old := openSession(t, d, "c1", 1)
	_, err := d.CloseSession(ctx, old.ID, "", 1, time.Now())
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	newer := openSession(t, d, "c1", 2)
	openSession(t, d, "c2", 3)

	sessions, err := d.ListSessions(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer.ID, sessions[0].ID)

	all, err := d.ListSessions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
