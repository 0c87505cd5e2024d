package settlement

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ms-pos/internal/apperr"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	locks "ms-pos/internal/settlement/redis"
)

type CashLedger interface {
	CurrentOpen(ctx context.Context, cashierID string) (*models.CashSession, error)
	CurrentConfirmed(ctx context.Context, cashierID string) (*models.CashSession, error)
	AppendSettlement(ctx context.Context, sessionID, orderID string, amount float64) (*models.Movement, error)
	SettlementFor(ctx context.Context, orderID string) (*models.Movement, error)
	SettledOrderIDs(ctx context.Context) (map[string]bool, error)
}

type TableRegistry interface {
	Get(ctx context.Context, id string) (*models.Table, error)
	ListOccupied(ctx context.Context) ([]models.Table, error)
	MarkOccupied(ctx context.Context, id string) (bool, error)
	MarkFree(ctx context.Context, id string) (bool, error)
}

type OrderEngine interface {
	Validate(req models.OrderRequest) error
	Prepare(ctx context.Context, req models.OrderRequest) (*models.Order, error)
	Persist(ctx context.Context, o *models.Order) (*models.Order, error)
	PriceLines(ctx context.Context, lines []models.OrderLine) ([]models.OrderLine, error)
	CreateAddOn(ctx context.Context, req models.OrderRequest) (*models.Order, error)
	Update(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error)
	Transition(ctx context.Context, id string, to models.OrderStatus, allowedFrom ...models.OrderStatus) (*models.Order, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, f models.OrderFilter) ([]models.Order, error)
	HasLiveOrders(ctx context.Context, tableID, excludeID string) (bool, error)
	ComputeTotal(o *models.Order) float64
}

// Coordinator keeps sessions, tables and orders consistent across operations
// that touch more than one of them. Steps are sequential; every step after the
// first failure is skipped and the steps already taken are compensated.
// Compensations run detached from the caller's cancellation.
type Coordinator struct {
	Cash   CashLedger
	Tables TableRegistry
	Orders OrderEngine
	Locks  Locker
	Logger *logger.Logger
}

func NewCoordinator(cash CashLedger, tables TableRegistry, orders OrderEngine, locker Locker, log *logger.Logger) *Coordinator {
	return &Coordinator{Cash: cash, Tables: tables, Orders: orders, Locks: locker, Logger: log}
}

// Payment is the outcome of a successful payOrder.
type Payment struct {
	Order    *models.Order    `json:"order"`
	Movement *models.Movement `json:"movement"`
}

// ---------------- ORDERS ----------------

// CreateOrder opens a dine-in or takeaway order for the actor, who must hold a
// confirmed cash session. Lines are priced before the table is touched; a
// dine-in table is flipped to occupied right before the order is persisted and
// flipped back if persisting fails.
func (c *Coordinator) CreateOrder(ctx context.Context, actor models.Actor, req models.OrderRequest) (*models.Order, error) {
	if _, err := c.Cash.CurrentConfirmed(ctx, actor.ID); err != nil {
		return nil, err
	}
	req.CreatedBy = actor.ID
	if req.Kind == models.KindAddOn {
		return nil, apperr.Validation("add-on orders are created against a parent order")
	}
	prepared, err := c.Orders.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Kind != models.KindDineIn {
		return c.Orders.Persist(ctx, prepared)
	}

	tableID := *req.TableID
	release, err := c.acquire(ctx, locks.TableKey(tableID))
	if err != nil {
		return nil, err
	}
	defer release()

	if err := c.claimTable(ctx, tableID); err != nil {
		return nil, err
	}
	o, err := c.Orders.Persist(ctx, prepared)
	if err != nil {
		c.compensateTable(ctx, tableID, err)
		return nil, err
	}
	c.Logger.Info("SETTLEMENT", fmt.Sprintf("Order %s opened on table %s by %s", o.ID, tableID, actor.ID))
	return o, nil
}

// CreateAddOn attaches an add-on to a live parent. Only the waiter attending
// the table may add to it.
func (c *Coordinator) CreateAddOn(ctx context.Context, actor models.Actor, req models.OrderRequest) (*models.Order, error) {
	req.CreatedBy = actor.ID
	req.Kind = models.KindAddOn
	if err := c.Orders.Validate(req); err != nil {
		return nil, err
	}

	tableID := *req.TableID
	release, err := c.acquire(ctx, locks.TableKey(tableID))
	if err != nil {
		return nil, err
	}
	defer release()

	t, err := c.existingTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if !t.AssignedTo(actor.ID) {
		return nil, apperr.Forbidden("waiter %s is not attending table %d", actor.ID, t.Number)
	}
	return c.Orders.CreateAddOn(ctx, req)
}

// UpdateOrder applies a patch to a pending order. Moving a dine-in order to
// another table claims the new table first and frees the old one once nothing
// live remains on it.
func (c *Coordinator) UpdateOrder(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error) {
	release, err := c.acquire(ctx, locks.OrderKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := c.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldTable := models.StringValue(current.TableID)
	if patch.TableID == nil || *patch.TableID == oldTable || current.Kind != models.KindDineIn || current.Status != models.StatusPending {
		return c.Orders.Update(ctx, id, patch)
	}

	newTable := *patch.TableID
	if newTable == "" {
		return nil, apperr.Validation("dine-in orders require a table")
	}
	if patch.Lines != nil {
		if patch.Lines, err = c.Orders.PriceLines(ctx, patch.Lines); err != nil {
			return nil, err
		}
	}
	releaseTables, err := c.acquireAll(ctx, locks.TableKey(oldTable), locks.TableKey(newTable))
	if err != nil {
		return nil, err
	}
	defer releaseTables()

	if err := c.claimTable(ctx, newTable); err != nil {
		return nil, err
	}
	o, err := c.Orders.Update(ctx, id, patch)
	if err != nil {
		c.compensateTable(ctx, newTable, err)
		return nil, err
	}
	if err := c.freeIfIdle(context.WithoutCancel(ctx), oldTable); err != nil {
		return nil, err
	}
	c.Logger.Info("SETTLEMENT", fmt.Sprintf("Order %s moved from table %s to %s", id, oldTable, newTable))
	return o, nil
}

// PayOrder settles a pending order into the actor's open session. The session
// need not be confirmed. A failed ledger append puts the order back to pending.
func (c *Coordinator) PayOrder(ctx context.Context, actor models.Actor, orderID string) (*Payment, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, apperr.Validation("invalid order id %q", orderID)
	}
	release, err := c.acquire(ctx, locks.OrderKey(orderID))
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := c.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.StatusPending {
		return nil, apperr.NotFound("order %s is %s, not pending", orderID, current.Status)
	}
	session, err := c.Cash.CurrentOpen(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.Precondition("no open cash session for %s", actor.ID)
	}

	paid, err := c.Orders.Transition(ctx, orderID, models.StatusPaid, models.StatusPending)
	if err != nil {
		return nil, err
	}
	total := c.Orders.ComputeTotal(paid)
	mv, err := c.Cash.AppendSettlement(ctx, session.ID, orderID, total)
	if err != nil {
		c.Logger.Warn("SETTLEMENT", fmt.Sprintf("Ledger append failed for order %s, reverting to pending: %v", orderID, err))
		if _, rerr := c.Orders.Transition(context.WithoutCancel(ctx), orderID, models.StatusPending, models.StatusPaid); rerr != nil {
			c.Logger.Error("SETTLEMENT", fmt.Sprintf("Order %s is paid without a movement: %v", orderID, rerr))
		}
		return nil, err
	}
	c.Logger.Info("SETTLEMENT", fmt.Sprintf("Order %s paid %.2f into session %s", orderID, total, session.ID))
	return &Payment{Order: paid, Movement: mv}, nil
}

// ---------------- HELPERS ----------------

func (c *Coordinator) existingTable(ctx context.Context, tableID string) (*models.Table, error) {
	t, err := c.Tables.Get(ctx, tableID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Validation("table %s does not exist", tableID)
	}
	return t, err
}

// claimTable flips a free table to occupied.
func (c *Coordinator) claimTable(ctx context.Context, tableID string) error {
	t, err := c.existingTable(ctx, tableID)
	if err != nil {
		return err
	}
	if t.HasActiveOrder {
		return apperr.Conflict("table %d is not free", t.Number)
	}
	changed, err := c.Tables.MarkOccupied(ctx, tableID)
	if err != nil {
		return err
	}
	if !changed {
		return apperr.Conflict("table %d is not free", t.Number)
	}
	return nil
}

func (c *Coordinator) compensateTable(ctx context.Context, tableID string, cause error) {
	c.Logger.Warn("SETTLEMENT", fmt.Sprintf("Freeing table %s after failed order write: %v", tableID, cause))
	if _, err := c.Tables.MarkFree(context.WithoutCancel(ctx), tableID); err != nil {
		c.Logger.Error("SETTLEMENT", fmt.Sprintf("Table %s left occupied without an order: %v", tableID, err))
	}
}

func (c *Coordinator) freeIfIdle(ctx context.Context, tableID string) error {
	live, err := c.Orders.HasLiveOrders(ctx, tableID, "")
	if err != nil || live {
		return err
	}
	_, err = c.Tables.MarkFree(ctx, tableID)
	return err
}

func (c *Coordinator) acquire(ctx context.Context, key string) (func(), error) {
	return c.acquireAll(ctx, key)
}

// acquireAll takes every key under one owner token or none of them.
func (c *Coordinator) acquireAll(ctx context.Context, keys ...string) (func(), error) {
	owner := uuid.New().String()
	ok, err := c.Locks.LockAll(ctx, keys, owner)
	if err != nil {
		return nil, apperr.Internal(err, "failed to lock %v", keys)
	}
	if !ok {
		return nil, apperr.Conflict("%s is busy, retry shortly", strings.Join(keys, ", "))
	}
	unlockCtx := context.WithoutCancel(ctx)
	return func() {
		if err := c.Locks.UnlockAll(unlockCtx, keys, owner); err != nil {
			c.Logger.Warn("SETTLEMENT", fmt.Sprintf("Failed to release %v: %v", keys, err))
		}
	}, nil
}
