//go:build integration

package app_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ms-pos/internal/app"
	"ms-pos/internal/apperr"
	"ms-pos/internal/config"
	"ms-pos/internal/database"
	"ms-pos/internal/database/migrations"
	"ms-pos/internal/logger"
	"ms-pos/internal/menu"
	"ms-pos/internal/models"
)

// TestScenarioAOnPostgres runs the migrations and a full dine-in settlement
// against a real PostgreSQL container.
func TestScenarioAOnPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}
	ctx := context.Background()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "pos",
				"POSTGRES_PASSWORD": "pos",
				"POSTGRES_DB":       "pos",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer pg.Terminate(ctx)

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	log := logger.NewConsoleLogger(io.Discard)
	bunDB, err := database.Open(config.DatabaseConfig{
		Driver:       database.DriverPostgres,
		DSN:          fmt.Sprintf("postgres://pos:pos@%s:%s/pos?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 5,
		MaxLifetime:  time.Minute,
	})
	require.NoError(t, err)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.Options{MigrationsDir: "../../migrations"}, log)
	require.NoError(t, runner.Up())

	pos := app.New(bunDB, app.Deps{Logger: log})
	cashier := models.Actor{ID: "c1", Role: models.RoleCashier}

	item, err := pos.Menu.Create(ctx, menu.ItemInput{Name: "Ceviche", Price: 30})
	require.NoError(t, err)
	table, err := pos.Tables.Create(ctx, 1)
	require.NoError(t, err)

	session, err := pos.Cash.Open(ctx, cashier.ID, 200, "admin")
	require.NoError(t, err)
	_, err = pos.Cash.Open(ctx, cashier.ID, 10, "admin")
	assert.True(t, apperr.Is(err, apperr.KindConflict), "one open session per cashier")
	_, err = pos.Cash.Confirm(ctx, session.ID, cashier)
	require.NoError(t, err)

	o, err := pos.Coordinator.CreateOrder(ctx, cashier, models.OrderRequest{
		Kind:    models.KindDineIn,
		TableID: models.StringPtr(table.ID),
		Lines:   []models.OrderLine{{ItemID: item.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	payment, err := pos.Coordinator.PayOrder(ctx, cashier, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, payment.Movement.Amount)

	closed, err := pos.Cash.Close(ctx, session.ID, 260, cashier)
	require.NoError(t, err)
	require.NotNil(t, closed.Difference)
	assert.Equal(t, 0.0, *closed.Difference)

	report, err := pos.Coordinator.Sweep(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())

	require.NoError(t, runner.Down())
	require.NoError(t, runner.Up())
	tables, err := pos.Tables.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables, "rollback and reapply start from an empty schema")
}
