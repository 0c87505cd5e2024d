package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ms-pos/internal/app"
	"ms-pos/internal/config"
	"ms-pos/internal/database"
	"ms-pos/internal/logger"
	"ms-pos/internal/settlement"
	locks "ms-pos/internal/settlement/redis"
)

// sweep runs one reconciliation pass and reports whether it found any gap.
func sweep(ctx context.Context, c *settlement.Coordinator, repair bool, log *logger.Logger) bool {
	run := c.Sweep
	if repair {
		run = c.Repair
	}
	report, err := run(ctx)
	if err != nil {
		log.Error("SETTLEMENT", fmt.Sprintf("Sweep failed: %v", err))
		return true
	}
	for _, t := range report.OrphanedTables {
		log.Warn("SETTLEMENT", fmt.Sprintf("Table %d is occupied with no live order", t.Number))
	}
	for _, o := range report.UnsettledOrders {
		log.Warn("SETTLEMENT", fmt.Sprintf("Order %s is %s with no inflow movement (total %.2f)", o.ID, o.Status, o.Total()))
	}
	if len(report.Freed) > 0 {
		log.Info("SETTLEMENT", fmt.Sprintf("Freed %d tables", len(report.Freed)))
	}
	if len(report.Skipped) > 0 {
		log.Info("SETTLEMENT", fmt.Sprintf("Skipped %d entities held by in-flight operations", len(report.Skipped)))
	}
	if report.Clean() {
		log.Info("SETTLEMENT", "✅ No inconsistencies found")
	}
	return !report.Clean()
}

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit non-zero if gaps were found")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Close()

	_ = godotenv.Load()
	cfg := config.Load()
	if err := checkRepairLocks(cfg); err != nil {
		log.Fatal("APP", err.Error())
	}

	bunDB, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect: %v", err))
	}
	defer bunDB.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var locker settlement.Locker = settlement.NewMemoryLocker()
	if cfg.Redis.Enabled {
		client, err := locks.Connect(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Fatal("REDIS", err.Error())
		}
		defer client.Close()
		locker = locks.NewRedis(client, cfg.Redis.LockTTL, log)
	} else {
		log.Warn("REDIS", "Redis disabled, sweeping in report-only mode")
	}

	pos := app.New(bunDB, app.Deps{Locker: locker, Logger: log})

	if *once {
		if sweep(ctx, pos.Coordinator, cfg.Reconcile.AutoRepair, log) {
			os.Exit(1)
		}
		return
	}

	log.Info("APP", fmt.Sprintf("🚀 Reconciler sweeping every %s (auto repair: %t)", cfg.Reconcile.Interval, cfg.Reconcile.AutoRepair))
	ticker := time.NewTicker(cfg.Reconcile.Interval)
	defer ticker.Stop()
	for {
		sweep(ctx, pos.Coordinator, cfg.Reconcile.AutoRepair, log)
		select {
		case <-ctx.Done():
			log.Info("APP", "✅ Reconciler shutdown complete")
			return
		case <-ticker.C:
		}
	}
}

// checkRepairLocks refuses auto repair without Redis; a process-local locker
// cannot see the API's in-flight claims.
func checkRepairLocks(cfg *config.Config) error {
	if cfg.Reconcile.AutoRepair && !cfg.Redis.Enabled {
		return errors.New("RECONCILE_AUTO_REPAIR requires REDIS_ENABLED: a local locker cannot see API locks")
	}
	return nil
}
