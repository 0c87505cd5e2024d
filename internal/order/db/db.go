package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-pos/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

func (d *DB) CreateOrder(ctx context.Context, o *models.Order) error {
	_, err := d.Bun.NewInsert().Model(o).Exec(ctx)
	return err
}

// GetOrder returns the order or nil when it does not exist.
func (d *DB) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := d.Bun.NewSelect().
		Model(&o).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return &o, nil
}

// UpdateOrder writes lines and table while the order is still in expected status.
func (d *DB) UpdateOrder(ctx context.Context, o *models.Order, expected models.OrderStatus) (bool, error) {
	return affected(d.Bun.NewUpdate().
		Model(o).
		Column("lines", "table_id", "updated_at").
		WherePK().
		Where("status = ?", expected).
		Exec(ctx))
}

// Transition sets status to `to` only when the current status is in allowedFrom.
func (d *DB) Transition(ctx context.Context, id string, to models.OrderStatus, allowedFrom []models.OrderStatus, at time.Time) (bool, error) {
	return affected(d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status IN (?)", bun.In(allowedFrom)).
		Exec(ctx))
}

// ---------------- QUERIES ----------------

func (d *DB) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	orders := []models.Order{}
	q := d.Bun.NewSelect().Model(&orders).OrderExpr("created_at ASC")
	if len(f.Statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(f.Statuses))
	}
	if f.TableID != "" {
		q = q.Where("table_id = ?", f.TableID)
	}
	if f.ParentOrderID != "" {
		q = q.Where("parent_order_id = ?", f.ParentOrderID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("created_at < ?", f.To.UTC())
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// CountLiveOnTable counts non-delivered orders on the table, ignoring excludeID.
func (d *DB) CountLiveOnTable(ctx context.Context, tableID, excludeID string) (int, error) {
	q := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("table_id = ?", tableID).
		Where("status IN (?)", bun.In(models.LiveStatuses))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	n, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count live orders on table %s: %w", tableID, err)
	}
	return n, nil
}

// LiveOrderIDsByTable maps table id to the ids of its non-delivered orders.
func (d *DB) LiveOrderIDsByTable(ctx context.Context) (map[string][]string, error) {
	var rows []struct {
		ID      string `bun:"id"`
		TableID string `bun:"table_id"`
	}
	err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Column("id", "table_id").
		Where("table_id IS NOT NULL").
		Where("status IN (?)", bun.In(models.LiveStatuses)).
		OrderExpr("created_at ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list live orders by table: %w", err)
	}
	out := make(map[string][]string)
	for _, r := range rows {
		out[r.TableID] = append(out[r.TableID], r.ID)
	}
	return out, nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
