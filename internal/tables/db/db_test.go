package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-pos/internal/database"
	"ms-pos/internal/models"
	"ms-pos/internal/tables/db"
)

func setupTestDB(t *testing.T) *db.DB {
	return &db.DB{Bun: database.NewTestDB(t)}
}

func newTable(t *testing.T, d *db.DB, number int) *models.Table {
	tbl := &models.Table{
		ID:               uuid.New().String(),
		Number:           number,
		WaiterAttendance: models.AttendanceFree,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	require.NoError(t, d.CreateTable(context.Background(), tbl))
	return tbl
}

func TestUniqueNumber(t *testing.T) {
	d := setupTestDB(t)
	newTable(t, d, 1)
	err := d.CreateTable(context.Background(), &models.Table{ID: uuid.New().String(), Number: 1, WaiterAttendance: models.AttendanceFree})
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
}

func TestSetActiveOrderIsCompareAndSwap(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	tbl := newTable(t, d, 3)

	changed, err := d.SetActiveOrder(ctx, tbl.ID, true, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = d.SetActiveOrder(ctx, tbl.ID, true, time.Now())
	require.NoError(t, err)
	assert.False(t, changed, "second claim must lose")

	occupied, err := d.ListOccupied(ctx)
	require.NoError(t, err)
	require.Len(t, occupied, 1)
	assert.Equal(t, models.OccupancyOccupied, occupied[0].Status())

	changed, err = d.SetActiveOrder(ctx, tbl.ID, false, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = d.SetActiveOrder(ctx, "missing", false, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestWaiterGuards(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	tbl := newTable(t, d, 4)

	ok, err := d.AssignWaiter(ctx, tbl.ID, "w1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.AssignWaiter(ctx, tbl.ID, "w2", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.ReleaseWaiter(ctx, tbl.ID, "w2", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "only the assignee releases")

	ok, err = d.DeleteTable(ctx, tbl.ID)
	require.NoError(t, err)
	assert.False(t, ok, "attended tables cannot be deleted")

	ok, err = d.ReleaseWaiter(ctx, tbl.ID, "w1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := d.GetTable(ctx, tbl.ID)
	require.NoError(t, err)
	assert.Nil(t, got.WaiterID)
	assert.Equal(t, models.AttendanceFree, got.WaiterAttendance)

	ok, err = d.DeleteTable(ctx, tbl.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = d.GetTable(ctx, tbl.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAssignRequiresNoActiveOrder(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	tbl := newTable(t, d, 5)

	_, err := d.SetActiveOrder(ctx, tbl.ID, true, time.Now())
	require.NoError(t, err)

	ok, err := d.AssignWaiter(ctx, tbl.ID, "w1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}
