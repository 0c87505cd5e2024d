package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-pos/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateItem(ctx context.Context, item *models.MenuItem) error {
	_, err := d.Bun.NewInsert().Model(item).Exec(ctx)
	return err
}

// GetItem returns the item or nil when it does not exist.
func (d *DB) GetItem(ctx context.Context, id string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := d.Bun.NewSelect().Model(&item).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get menu item %s: %w", id, err)
	}
	return &item, nil
}

func (d *DB) GetItems(ctx context.Context, ids []string) ([]models.MenuItem, error) {
	items := []models.MenuItem{}
	if len(ids) == 0 {
		return items, nil
	}
	if err := d.Bun.NewSelect().Model(&items).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to get menu items: %w", err)
	}
	return items, nil
}

func (d *DB) ListItems(ctx context.Context, onlyAvailable bool) ([]models.MenuItem, error) {
	items := []models.MenuItem{}
	q := d.Bun.NewSelect().Model(&items).OrderExpr("category ASC, name ASC")
	if onlyAvailable {
		q = q.Where("available = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}
	return items, nil
}

func (d *DB) UpdateItem(ctx context.Context, item *models.MenuItem) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model(item).
		Column("name", "price", "category", "available", "description", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
