package kitchen

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ms-pos/internal/apperr"
	"ms-pos/internal/auth"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	locks "ms-pos/internal/settlement/redis"
)

type Orders interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	Transition(ctx context.Context, id string, to models.OrderStatus, allowedFrom ...models.OrderStatus) (*models.Order, error)
	HasLiveOrders(ctx context.Context, tableID, excludeID string) (bool, error)
	KitchenQueue(ctx context.Context) ([]models.Order, error)
}

type Tables interface {
	MarkFree(ctx context.Context, id string) (bool, error)
}

type Locker interface {
	Lock(ctx context.Context, key, owner string) (bool, error)
	Unlock(ctx context.Context, key, owner string) error
}

// forward maps each kitchen target to the one status it may be reached from.
var forward = map[models.OrderStatus]models.OrderStatus{
	models.StatusInKitchen: models.StatusPaid,
	models.StatusReady:     models.StatusInKitchen,
	models.StatusDelivered: models.StatusReady,
}

// Bridge moves paid orders through preparation and frees the table once its
// last live order is served.
type Bridge struct {
	Orders Orders
	Tables Tables
	Locks  Locker
	Logger *logger.Logger
}

func NewBridge(orders Orders, tables Tables, locker Locker, log *logger.Logger) *Bridge {
	return &Bridge{Orders: orders, Tables: tables, Locks: locker, Logger: log}
}

func (b *Bridge) Queue(ctx context.Context, actor models.Actor) ([]models.Order, error) {
	if err := auth.Can(actor.Role, auth.CapKitchen); err != nil {
		return nil, err
	}
	return b.Orders.KitchenQueue(ctx)
}

// Advance sets an order to in_kitchen, ready or delivered.
func (b *Bridge) Advance(ctx context.Context, actor models.Actor, orderID string, to models.OrderStatus) (*models.Order, error) {
	if err := auth.Can(actor.Role, auth.CapKitchen); err != nil {
		return nil, err
	}
	from, ok := forward[to]
	if !ok {
		return nil, apperr.Validation("kitchen may not set status %q", to)
	}
	if to != models.StatusDelivered {
		return b.transition(ctx, actor, orderID, to, from)
	}

	current, err := b.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.TableID == nil {
		return b.transition(ctx, actor, orderID, to, from)
	}
	tableID := *current.TableID
	release, err := b.lockTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	defer release()

	o, err := b.transition(ctx, actor, orderID, to, from)
	if err != nil {
		return nil, err
	}
	if err := b.freeIfIdle(context.WithoutCancel(ctx), tableID); err != nil {
		b.Logger.Error("KITCHEN", fmt.Sprintf("Order %s delivered but table %s not freed: %v", o.ID, tableID, err))
		return nil, err
	}
	return o, nil
}

// Revert sends an order being prepared back to paid.
func (b *Bridge) Revert(ctx context.Context, actor models.Actor, orderID string) (*models.Order, error) {
	if err := auth.Can(actor.Role, auth.CapKitchen); err != nil {
		return nil, err
	}
	return b.transition(ctx, actor, orderID, models.StatusPaid, models.StatusInKitchen)
}

func (b *Bridge) transition(ctx context.Context, actor models.Actor, orderID string, to, from models.OrderStatus) (*models.Order, error) {
	o, err := b.Orders.Transition(ctx, orderID, to, from)
	if err != nil {
		return nil, err
	}
	b.Logger.LogOrder("KITCHEN", orderID, fmt.Sprintf("%s -> %s by %s", from, to, actor.ID))
	return o, nil
}

func (b *Bridge) lockTable(ctx context.Context, tableID string) (func(), error) {
	key := locks.TableKey(tableID)
	owner := uuid.New().String()
	ok, err := b.Locks.Lock(ctx, key, owner)
	if err != nil {
		return nil, apperr.Internal(err, "failed to lock table %s", tableID)
	}
	if !ok {
		return nil, apperr.Conflict("table %s is busy, retry shortly", tableID)
	}
	return func() { _ = b.Locks.Unlock(context.WithoutCancel(ctx), key, owner) }, nil
}

// freeIfIdle frees the table unless another order on it is still live.
func (b *Bridge) freeIfIdle(ctx context.Context, tableID string) error {
	live, err := b.Orders.HasLiveOrders(ctx, tableID, "")
	if err != nil || live {
		return err
	}
	if _, err := b.Tables.MarkFree(ctx, tableID); err != nil {
		return err
	}
	b.Logger.LogTable("FREE", tableID, "last order delivered")
	return nil
}
