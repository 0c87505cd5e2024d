package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-pos/internal/config"
	"ms-pos/internal/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the configured database and wraps it in bun.
func Open(cfg config.DatabaseConfig) (*bun.DB, error) {
	switch cfg.Driver {
	case DriverPostgres:
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
		if err := sqldb.Ping(); err != nil {
			sqldb.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// IsUniqueViolation reports whether err came from a unique constraint or index.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var schemaModels = []interface{}{
	(*models.CashSession)(nil),
	(*models.Movement)(nil),
	(*models.Table)(nil),
	(*models.MenuItem)(nil),
	(*models.Order)(nil),
}

var schemaIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS cash_sessions_one_open_per_cashier ON cash_sessions (cashier_id) WHERE status <> 'closed'`,
	`CREATE INDEX IF NOT EXISTS cash_movements_session_idx ON cash_movements (session_id)`,
	`CREATE INDEX IF NOT EXISTS cash_movements_order_idx ON cash_movements (order_id)`,
	`CREATE INDEX IF NOT EXISTS orders_status_idx ON orders (status)`,
	`CREATE INDEX IF NOT EXISTS orders_table_idx ON orders (table_id)`,
	`CREATE INDEX IF NOT EXISTS orders_parent_idx ON orders (parent_order_id)`,
}

// CreateSchema builds every table and index from the models. Used by tests,
// the sqlite dev driver and the seed command; postgres deployments use migrations.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, m := range schemaModels {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", m, err)
		}
	}
	for _, stmt := range schemaIndexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// DropSchema removes every table, children first.
func DropSchema(ctx context.Context, db *bun.DB) error {
	for i := len(schemaModels) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(schemaModels[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table for %T: %w", schemaModels[i], err)
		}
	}
	return nil
}
