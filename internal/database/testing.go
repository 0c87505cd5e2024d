package database

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"ms-pos/internal/config"
)

// NewTestDB opens a private in-memory sqlite database with the full schema.
func NewTestDB(t testing.TB) *bun.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := Open(config.DatabaseConfig{
		Driver: DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	require.NoError(t, CreateSchema(context.Background(), db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}
