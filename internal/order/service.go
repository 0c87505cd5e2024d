package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-pos/internal/apperr"
	"ms-pos/internal/events"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
)

type DBLayer interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	UpdateOrder(ctx context.Context, o *models.Order, expected models.OrderStatus) (bool, error)
	Transition(ctx context.Context, id string, to models.OrderStatus, allowedFrom []models.OrderStatus, at time.Time) (bool, error)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error)
	CountLiveOnTable(ctx context.Context, tableID, excludeID string) (int, error)
	LiveOrderIDsByTable(ctx context.Context) (map[string][]string, error)
}

// Pricer resolves catalog items so names and prices can be copied onto lines.
type Pricer interface {
	Lookup(ctx context.Context, ids []string) (map[string]models.MenuItem, error)
}

// OrderService owns the order status machine and its links to tables and add-ons.
// Table occupancy is not touched here; callers coordinate it.
type OrderService struct {
	DB       DBLayer
	Catalog  Pricer
	Notifier events.Notifier
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewOrderService(db DBLayer, catalog Pricer, notifier events.Notifier, log *logger.Logger) *OrderService {
	return &OrderService{DB: db, Catalog: catalog, Notifier: notifier, Logger: log, Now: time.Now}
}

// ---------------- VALIDATION ----------------

func validateLines(lines []models.OrderLine) error {
	if len(lines) == 0 {
		return apperr.Validation("order must have at least one line")
	}
	for i, line := range lines {
		if line.ItemID == "" {
			return apperr.Validation("line %d has no item", i+1)
		}
		if line.Quantity <= 0 {
			return apperr.Validation("line %d quantity must be positive", i+1)
		}
	}
	return nil
}

// Validate checks a creation request without touching storage.
func (s *OrderService) Validate(req models.OrderRequest) error {
	if err := validateLines(req.Lines); err != nil {
		return err
	}
	hasTable := req.TableID != nil && *req.TableID != ""
	switch req.Kind {
	case models.KindDineIn:
		if !hasTable {
			return apperr.Validation("dine-in orders require a table")
		}
	case models.KindTakeaway:
		if hasTable {
			return apperr.Validation("takeaway orders cannot reference a table")
		}
	case models.KindAddOn:
		if !hasTable || req.ParentOrderID == nil || *req.ParentOrderID == "" {
			return apperr.Validation("add-on orders require a table and a parent order")
		}
		return nil
	default:
		return apperr.Validation("unknown order kind %q", req.Kind)
	}
	if req.ParentOrderID != nil {
		return apperr.Validation("only add-on orders reference a parent order")
	}
	return nil
}

// PriceLines validates lines and copies catalog name and unit price onto each.
func (s *OrderService) PriceLines(ctx context.Context, lines []models.OrderLine) ([]models.OrderLine, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	items, err := s.Catalog.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	priced := make([]models.OrderLine, len(lines))
	for i, line := range lines {
		item := items[line.ItemID]
		priced[i] = models.OrderLine{
			ItemID:    line.ItemID,
			Name:      item.Name,
			Quantity:  line.Quantity,
			UnitPrice: item.Price,
		}
	}
	return priced, nil
}

// ---------------- CREATION ----------------

// Create persists a dine-in or takeaway order in pending.
func (s *OrderService) Create(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	o, err := s.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Persist(ctx, o)
}

// Prepare validates a dine-in or takeaway request and builds the priced
// pending order without storing it.
func (s *OrderService) Prepare(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	if req.Kind == models.KindAddOn {
		return nil, apperr.Validation("add-on orders are created against a parent order")
	}
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	return s.build(ctx, req)
}

// CreateAddOn persists an add-on linked to a live parent on the same table.
func (s *OrderService) CreateAddOn(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	req.Kind = models.KindAddOn
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	parent, err := s.DB.GetOrder(ctx, *req.ParentOrderID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load parent order")
	}
	if parent == nil {
		return nil, apperr.NotFound("parent order %s not found", *req.ParentOrderID)
	}
	if parent.Kind == models.KindAddOn {
		return nil, apperr.Validation("add-ons attach to a main order, not to add-on %s", parent.ID)
	}
	if models.StringValue(parent.TableID) != *req.TableID {
		return nil, apperr.Validation("parent order %s is not on table %s", parent.ID, *req.TableID)
	}
	if parent.Status.IsTerminal() {
		return nil, apperr.Conflict("parent order %s is already %s", parent.ID, parent.Status)
	}
	o, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Persist(ctx, o)
}

func (s *OrderService) build(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	lines, err := s.PriceLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}
	return &models.Order{
		ID:            uuid.New().String(),
		Lines:         lines,
		TableID:       req.TableID,
		Kind:          req.Kind,
		ParentOrderID: req.ParentOrderID,
		CreatedBy:     req.CreatedBy,
		Status:        models.StatusPending,
	}, nil
}

// Persist stores an order built by Prepare, stamped with the current time.
func (s *OrderService) Persist(ctx context.Context, o *models.Order) (*models.Order, error) {
	now := s.Now().UTC()
	o.Status = models.StatusPending
	o.CreatedAt = now
	o.UpdatedAt = now
	if err := s.DB.CreateOrder(ctx, o); err != nil {
		return nil, apperr.Internal(err, "failed to create order")
	}
	s.Logger.LogOrder("CREATE", o.ID, fmt.Sprintf("kind=%s table=%s total=%.2f by=%s", o.Kind, models.StringValue(o.TableID), o.Total(), o.CreatedBy))
	s.notify(ctx, models.EventOrderCreated, o)
	return o, nil
}

// ---------------- MUTATION ----------------

// Update replaces lines and/or table while the order is pending.
func (s *OrderService) Update(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != models.StatusPending {
		return nil, apperr.Conflict("order %s is already %s", id, o.Status)
	}

	if patch.Lines != nil {
		if o.Lines, err = s.PriceLines(ctx, patch.Lines); err != nil {
			return nil, err
		}
	}
	if patch.TableID != nil && *patch.TableID != models.StringValue(o.TableID) {
		if o.Kind != models.KindDineIn {
			return nil, apperr.Validation("only dine-in orders can change table")
		}
		if *patch.TableID == "" {
			return nil, apperr.Validation("dine-in orders require a table")
		}
		o.TableID = patch.TableID
	}
	o.UpdatedAt = s.Now().UTC()

	ok, err := s.DB.UpdateOrder(ctx, o, models.StatusPending)
	if err != nil {
		return nil, apperr.Internal(err, "failed to update order")
	}
	if !ok {
		return nil, apperr.Conflict("order %s is no longer pending", id)
	}
	s.Logger.LogOrder("UPDATE", id, fmt.Sprintf("lines=%d table=%s total=%.2f", len(o.Lines), models.StringValue(o.TableID), o.Total()))
	s.notify(ctx, models.EventOrderUpdated, o)
	return o, nil
}

// Transition moves the order to `to` when its status is one of allowedFrom.
// A missing order and a status mismatch are both NotFound.
func (s *OrderService) Transition(ctx context.Context, id string, to models.OrderStatus, allowedFrom ...models.OrderStatus) (*models.Order, error) {
	ok, err := s.DB.Transition(ctx, id, to, allowedFrom, s.Now().UTC())
	if err != nil {
		return nil, apperr.Internal(err, "failed to transition order")
	}
	if !ok {
		return nil, apperr.NotFound("no order %s in status %v", id, allowedFrom)
	}
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Logger.LogOrder("STATUS", id, fmt.Sprintf("%v -> %s", allowedFrom, to))
	s.notify(ctx, models.EventOrderStatus, o)
	return o, nil
}

// ComputeTotal is the sum of quantity times unit price.
func (s *OrderService) ComputeTotal(o *models.Order) float64 {
	return o.Total()
}

// ---------------- QUERIES ----------------

func (s *OrderService) Get(ctx context.Context, id string) (*models.Order, error) {
	o, err := s.DB.GetOrder(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load order")
	}
	if o == nil {
		return nil, apperr.NotFound("order %s not found", id)
	}
	return o, nil
}

func (s *OrderService) List(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	orders, err := s.DB.ListOrders(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list orders")
	}
	return orders, nil
}

func (s *OrderService) ListAddOns(ctx context.Context, tableID, parentOrderID string) ([]models.Order, error) {
	return s.List(ctx, models.OrderFilter{Kind: models.KindAddOn, TableID: tableID, ParentOrderID: parentOrderID})
}

// KitchenQueue lists paid orders and those being prepared or waiting to be served.
func (s *OrderService) KitchenQueue(ctx context.Context) ([]models.Order, error) {
	return s.List(ctx, models.OrderFilter{Statuses: []models.OrderStatus{models.StatusPaid, models.StatusInKitchen, models.StatusReady}})
}

// HasLiveOrders reports whether any non-delivered order other than excludeID sits on the table.
func (s *OrderService) HasLiveOrders(ctx context.Context, tableID, excludeID string) (bool, error) {
	n, err := s.DB.CountLiveOnTable(ctx, tableID, excludeID)
	if err != nil {
		return false, apperr.Internal(err, "failed to count live orders")
	}
	return n > 0, nil
}

func (s *OrderService) LiveOrderIDsByTable(ctx context.Context) (map[string][]string, error) {
	return s.DB.LiveOrderIDsByTable(ctx)
}

// StatsForDay counts the day's orders per status and sums revenue of settled ones.
func (s *OrderService) StatsForDay(ctx context.Context, day time.Time) (*models.OrderStats, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	orders, err := s.List(ctx, models.OrderFilter{From: from, To: from.AddDate(0, 0, 1)})
	if err != nil {
		return nil, err
	}
	stats := &models.OrderStats{
		Day:           from.Format("2006-01-02"),
		Orders:        len(orders),
		CountByStatus: map[models.OrderStatus]int{},
	}
	for _, o := range orders {
		stats.CountByStatus[o.Status]++
		if o.Status.IsSettled() {
			stats.PaidRevenue += o.Total()
		}
	}
	return stats, nil
}

func (s *OrderService) notify(ctx context.Context, t models.EventType, o *models.Order) {
	channels := []string{models.ChannelOrders}
	if o.Status != models.StatusPending {
		channels = append(channels, models.ChannelKitchen)
	}
	s.Notifier.Notify(ctx, models.NewEvent(t, o.ID, o, channels...))
}
