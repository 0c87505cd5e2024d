package settlement

import (
	"context"
	"fmt"
	"time"

	"ms-pos/internal/apperr"
	"ms-pos/internal/models"
	locks "ms-pos/internal/settlement/redis"
)

// Report lists the cross-entity gaps found by a sweep.
type Report struct {
	OrphanedTables  []models.Table `json:"orphaned_tables"`
	UnsettledOrders []models.Order `json:"unsettled_orders"`
	Skipped         []string       `json:"skipped,omitempty"`
	Freed           []string       `json:"freed,omitempty"`
	CheckedAt       time.Time      `json:"checked_at"`
}

func (r *Report) Clean() bool {
	return len(r.OrphanedTables) == 0 && len(r.UnsettledOrders) == 0
}

// Sweep finds occupied tables with no live order and settled orders with no
// inflow movement. Entities locked by an in-flight operation are skipped.
func (c *Coordinator) Sweep(ctx context.Context) (*Report, error) {
	report := &Report{
		OrphanedTables:  []models.Table{},
		UnsettledOrders: []models.Order{},
		CheckedAt:       time.Now().UTC(),
	}

	occupied, err := c.Tables.ListOccupied(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range occupied {
		if c.busy(ctx, locks.TableKey(t.ID), report) {
			continue
		}
		live, err := c.Orders.HasLiveOrders(ctx, t.ID, "")
		if err != nil {
			return nil, err
		}
		if !live {
			report.OrphanedTables = append(report.OrphanedTables, t)
		}
	}

	settled, err := c.Orders.List(ctx, models.OrderFilter{Statuses: models.SettledStatuses})
	if err != nil {
		return nil, err
	}
	withInflow, err := c.Cash.SettledOrderIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range settled {
		if withInflow[o.ID] || c.busy(ctx, locks.OrderKey(o.ID), report) {
			continue
		}
		report.UnsettledOrders = append(report.UnsettledOrders, o)
	}

	if !report.Clean() {
		c.Logger.Warn("SETTLEMENT", fmt.Sprintf("Sweep found %d orphaned tables and %d unsettled orders", len(report.OrphanedTables), len(report.UnsettledOrders)))
	}
	return report, nil
}

// Repair sweeps and frees every orphaned table. Unsettled orders need a human
// decision and are only reported.
func (c *Coordinator) Repair(ctx context.Context) (*Report, error) {
	report, err := c.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range report.OrphanedTables {
		if err := c.repairTable(ctx, t.ID); err != nil {
			c.Logger.Warn("SETTLEMENT", fmt.Sprintf("Could not free table %d: %v", t.Number, err))
			continue
		}
		report.Freed = append(report.Freed, t.ID)
	}
	return report, nil
}

func (c *Coordinator) repairTable(ctx context.Context, tableID string) error {
	release, err := c.acquire(ctx, locks.TableKey(tableID))
	if err != nil {
		return err
	}
	defer release()

	live, err := c.Orders.HasLiveOrders(ctx, tableID, "")
	if err != nil {
		return err
	}
	if live {
		return apperr.Conflict("table %s gained a live order", tableID)
	}
	if _, err := c.Tables.MarkFree(ctx, tableID); err != nil {
		return err
	}
	c.Logger.Info("SETTLEMENT", fmt.Sprintf("Freed orphaned table %s", tableID))
	return nil
}

// RecordMissingPayment appends the inflow a paid order should have produced.
func (c *Coordinator) RecordMissingPayment(ctx context.Context, orderID, sessionID string) (*models.Movement, error) {
	release, err := c.acquire(ctx, locks.OrderKey(orderID))
	if err != nil {
		return nil, err
	}
	defer release()

	o, err := c.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.IsSettled() {
		return nil, apperr.Conflict("order %s is %s, not paid", orderID, o.Status)
	}
	existing, err := c.Cash.SettlementFor(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("order %s already has a movement in session %s", orderID, existing.SessionID)
	}
	mv, err := c.Cash.AppendSettlement(ctx, sessionID, orderID, c.Orders.ComputeTotal(o))
	if err != nil {
		return nil, err
	}
	c.Logger.Info("SETTLEMENT", fmt.Sprintf("Recorded missing payment for order %s into session %s", orderID, sessionID))
	return mv, nil
}

// RevertPayment returns a paid order with no recorded movement to pending.
func (c *Coordinator) RevertPayment(ctx context.Context, orderID string) (*models.Order, error) {
	release, err := c.acquire(ctx, locks.OrderKey(orderID))
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := c.Cash.SettlementFor(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("order %s has a recorded payment", orderID)
	}
	o, err := c.Orders.Transition(ctx, orderID, models.StatusPending, models.StatusPaid)
	if err != nil {
		return nil, err
	}
	c.Logger.Info("SETTLEMENT", fmt.Sprintf("Reverted order %s to pending", orderID))
	return o, nil
}

func (c *Coordinator) busy(ctx context.Context, key string, report *Report) bool {
	locked, err := c.Locks.IsLocked(ctx, key)
	if err != nil {
		c.Logger.Warn("SETTLEMENT", fmt.Sprintf("Lock check failed for %s: %v", key, err))
		return true
	}
	if locked {
		report.Skipped = append(report.Skipped, key)
	}
	return locked
}
