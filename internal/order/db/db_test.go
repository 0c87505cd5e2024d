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
	"ms-pos/internal/order/db"
)

func setupTestDB(t *testing.T) *db.DB {
	return &db.DB{Bun: database.NewTestDB(t)}
}

func insertOrder(t *testing.T, d *db.DB, table string, status models.OrderStatus, created time.Time) *models.Order {
	o := &models.Order{
		ID:        uuid.New().String(),
		Lines:     []models.OrderLine{{ItemID: "soup", Name: "Soup", Quantity: 2, UnitPrice: 30}},
		Kind:      models.KindTakeaway,
		CreatedBy: "c1",
		Status:    status,
		CreatedAt: created.UTC(),
		UpdatedAt: created.UTC(),
	}
	if table != "" {
		o.TableID = &table
		o.Kind = models.KindDineIn
	}
	require.NoError(t, d.CreateOrder(context.Background(), o))
	return o
}

func TestLinesRoundTrip(t *testing.T) {
	d := setupTestDB(t)
	o := insertOrder(t, d, "t1", models.StatusPending, time.Now())

	got, err := d.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "Soup", got.Lines[0].Name)
	assert.Equal(t, 60.0, got.Total())
	assert.Equal(t, "t1", models.StringValue(got.TableID))

	missing, err := d.GetOrder(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTransitionGuard(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	o := insertOrder(t, d, "", models.StatusPending, time.Now())
	pending := []models.OrderStatus{models.StatusPending}

	ok, err := d.Transition(ctx, o.ID, models.StatusPaid, pending, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Transition(ctx, o.ID, models.StatusPaid, pending, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "double pay must not transition twice")

	ok, err = d.Transition(ctx, "nope", models.StatusPaid, pending, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateOrderOnlyWhilePending(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	o := insertOrder(t, d, "t1", models.StatusPending, time.Now())

	o.Lines = []models.OrderLine{{ItemID: "bread", Name: "Bread", Quantity: 3, UnitPrice: 2}}
	ok, err := d.UpdateOrder(ctx, o, models.StatusPending)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := d.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 6.0, got.Total())

	_, err = d.Transition(ctx, o.ID, models.StatusPaid, []models.OrderStatus{models.StatusPending}, time.Now())
	require.NoError(t, err)

	o.Lines = []models.OrderLine{{ItemID: "x", Quantity: 1, UnitPrice: 1000}}
	ok, err = d.UpdateOrder(ctx, o, models.StatusPending)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLiveOrderQueries(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	a := insertOrder(t, d, "t1", models.StatusPending, time.Now())
	b := insertOrder(t, d, "t1", models.StatusReady, time.Now())
	insertOrder(t, d, "t1", models.StatusDelivered, time.Now())
	insertOrder(t, d, "t2", models.StatusDelivered, time.Now())
	insertOrder(t, d, "", models.StatusPaid, time.Now())

	n, err := d.CountLiveOnTable(ctx, "t1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = d.CountLiveOnTable(ctx, "t1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = d.CountLiveOnTable(ctx, "t2", "")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	byTable, err := d.LiveOrderIDsByTable(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, byTable["t1"])
	assert.NotContains(t, byTable, "t2")
}

func TestListOrdersFilters(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	insertOrder(t, d, "t1", models.StatusPending, yesterday)
	today := insertOrder(t, d, "t1", models.StatusPaid, time.Now())
	insertOrder(t, d, "t2", models.StatusPaid, time.Now())

	paid, err := d.ListOrders(ctx, models.OrderFilter{Statuses: []models.OrderStatus{models.StatusPaid}})
	require.NoError(t, err)
	assert.Len(t, paid, 2)

	onT1, err := d.ListOrders(ctx, models.OrderFilter{TableID: "t1", From: time.Now().UTC().Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, onT1, 1)
	assert.Equal(t, today.ID, onT1[0].ID)

	dineIn, err := d.ListOrders(ctx, models.OrderFilter{Kind: models.KindDineIn})
	require.NoError(t, err)
	assert.Len(t, dineIn, 3)
}
