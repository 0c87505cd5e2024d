package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"ms-pos/internal/app"
	"ms-pos/internal/apperr"
	"ms-pos/internal/auth"
	"ms-pos/internal/config"
	"ms-pos/internal/database"
	"ms-pos/internal/database/migrations"
	"ms-pos/internal/logger"
	"ms-pos/internal/menu"
	"ms-pos/internal/models"
)

var demoMenu = []menu.ItemInput{
	{Name: "Ceviche clásico", Price: 32, Category: "entradas"},
	{Name: "Causa limeña", Price: 18, Category: "entradas"},
	{Name: "Lomo saltado", Price: 38, Category: "fondos"},
	{Name: "Ají de gallina", Price: 30, Category: "fondos"},
	{Name: "Chicha morada", Price: 8, Category: "bebidas"},
	{Name: "Suspiro limeño", Price: 14, Category: "postres"},
}

var demoActors = []models.Actor{
	{ID: "admin-1", Role: models.RoleAdmin},
	{ID: "cashier-1", Role: models.RoleCashier},
	{ID: "waiter-1", Role: models.RoleWaiter},
	{ID: "kitchen-1", Role: models.RoleKitchen},
}

func main() {
	tables := flag.Int("tables", 8, "number of tables to create")
	tokenTTL := flag.Duration("token-ttl", 12*time.Hour, "lifetime of the printed demo tokens")
	reset := flag.Bool("reset", false, "drop every table before seeding")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Close()

	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	bunDB, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect: %v", err))
	}
	defer bunDB.Close()

	if cfg.Database.Driver == database.DriverPostgres {
		runner := migrations.NewRunner(bunDB, migrations.Options{MigrationsDir: cfg.Database.MigrationsDir}, log)
		if *reset {
			log.Warn("MIGRATION", "Rolling back every migration")
			if err := runner.Down(); err != nil {
				log.Fatal("MIGRATION", fmt.Sprintf("Rollback failed: %v", err))
			}
		}
		if err := runner.Up(); err != nil {
			log.Fatal("MIGRATION", fmt.Sprintf("Migration failed: %v", err))
		}
	} else {
		if *reset {
			log.Warn("DATABASE", "Dropping every table")
			if err := database.DropSchema(ctx, bunDB); err != nil {
				log.Fatal("DATABASE", fmt.Sprintf("Failed to drop schema: %v", err))
			}
		}
		if err := database.CreateSchema(ctx, bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to create schema: %v", err))
		}
	}

	pos := app.New(bunDB, app.Deps{Logger: log})

	for n := 1; n <= *tables; n++ {
		if _, err := pos.Tables.Create(ctx, n); err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				log.Info("SEED", fmt.Sprintf("Table %d already exists", n))
				continue
			}
			log.Fatal("SEED", fmt.Sprintf("Failed to create table %d: %v", n, err))
		}
	}

	existing, err := pos.Menu.List(ctx, false)
	if err != nil {
		log.Fatal("SEED", fmt.Sprintf("Failed to list menu: %v", err))
	}
	if len(existing) == 0 {
		for _, item := range demoMenu {
			if _, err := pos.Menu.Create(ctx, item); err != nil {
				log.Fatal("SEED", fmt.Sprintf("Failed to create %s: %v", item.Name, err))
			}
		}
		log.Info("SEED", fmt.Sprintf("Created %d menu items", len(demoMenu)))
	}

	if cfg.Auth.JWTSecret == "" {
		log.Warn("SEED", "JWT_SECRET not set, skipping demo tokens")
		return
	}
	for _, actor := range demoActors {
		token, err := auth.IssueToken(actor, []byte(cfg.Auth.JWTSecret), *tokenTTL)
		if err != nil {
			log.Fatal("SEED", fmt.Sprintf("Failed to issue token for %s: %v", actor.ID, err))
		}
		fmt.Printf("%-8s %-10s %s\n", actor.Role, actor.ID, token)
	}
	log.Info("SEED", "✅ Seed complete")
}
