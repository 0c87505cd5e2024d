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

func (d *DB) CreateTable(ctx context.Context, t *models.Table) error {
	_, err := d.Bun.NewInsert().Model(t).Exec(ctx)
	return err
}

// GetTable returns the table or nil when it does not exist.
func (d *DB) GetTable(ctx context.Context, id string) (*models.Table, error) {
	var t models.Table
	err := d.Bun.NewSelect().
		Model(&t).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get table %s: %w", id, err)
	}
	return &t, nil
}

func (d *DB) ListTables(ctx context.Context) ([]models.Table, error) {
	tables := []models.Table{}
	if err := d.Bun.NewSelect().Model(&tables).OrderExpr("number ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

// ListOccupied returns tables flagged as holding an active order.
func (d *DB) ListOccupied(ctx context.Context) ([]models.Table, error) {
	tables := []models.Table{}
	err := d.Bun.NewSelect().
		Model(&tables).
		Where("has_active_order = ?", true).
		OrderExpr("number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list occupied tables: %w", err)
	}
	return tables, nil
}

func (d *DB) RenumberTable(ctx context.Context, id string, number int, at time.Time) (bool, error) {
	return affected(d.Bun.NewUpdate().
		Model((*models.Table)(nil)).
		Set("number = ?", number).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx))
}

// DeleteTable removes a table only while it has no active order and no waiter.
func (d *DB) DeleteTable(ctx context.Context, id string) (bool, error) {
	return affected(d.Bun.NewDelete().
		Model((*models.Table)(nil)).
		Where("id = ?", id).
		Where("has_active_order = ?", false).
		Where("waiter_id IS NULL").
		Exec(ctx))
}

// AssignWaiter takes a free, unattended table for waiterID.
func (d *DB) AssignWaiter(ctx context.Context, id, waiterID string, at time.Time) (bool, error) {
	return affected(d.Bun.NewUpdate().
		Model((*models.Table)(nil)).
		Set("waiter_id = ?", waiterID).
		Set("waiter_attendance = ?", models.AttendanceAttending).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("waiter_id IS NULL").
		Where("waiter_attendance = ?", models.AttendanceFree).
		Where("has_active_order = ?", false).
		Exec(ctx))
}

// ReleaseWaiter clears the waiter fields when waiterID is the attending waiter.
func (d *DB) ReleaseWaiter(ctx context.Context, id, waiterID string, at time.Time) (bool, error) {
	return affected(d.Bun.NewUpdate().
		Model((*models.Table)(nil)).
		Set("waiter_id = NULL").
		Set("waiter_attendance = ?", models.AttendanceFree).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("waiter_id = ?", waiterID).
		Where("waiter_attendance = ?", models.AttendanceAttending).
		Exec(ctx))
}

// SetActiveOrder flips has_active_order to active. It reports false when the
// flag already had that value or the table does not exist.
func (d *DB) SetActiveOrder(ctx context.Context, id string, active bool, at time.Time) (bool, error) {
	return affected(d.Bun.NewUpdate().
		Model((*models.Table)(nil)).
		Set("has_active_order = ?", active).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("has_active_order = ?", !active).
		Exec(ctx))
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
