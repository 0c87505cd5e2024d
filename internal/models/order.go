package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusInKitchen OrderStatus = "in_kitchen"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
)

// LiveStatuses are the non-terminal statuses; an order in one of them keeps its table occupied.
var LiveStatuses = []OrderStatus{StatusPending, StatusPaid, StatusInKitchen, StatusReady}

// SettledStatuses are the statuses reached only through payment.
var SettledStatuses = []OrderStatus{StatusPaid, StatusInKitchen, StatusReady, StatusDelivered}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusInKitchen, StatusReady, StatusDelivered:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered
}

// IsSettled reports whether the order has been paid; line items are frozen from then on.
func (s OrderStatus) IsSettled() bool {
	return s.Valid() && s != StatusPending
}

type OrderKind string

const (
	KindDineIn   OrderKind = "dine-in"
	KindTakeaway OrderKind = "takeaway"
	KindAddOn    OrderKind = "add-on"
)

func (k OrderKind) Valid() bool {
	return k == KindDineIn || k == KindTakeaway || k == KindAddOn
}

// OrderLine copies name and unit price from the catalog at order time.
type OrderLine struct {
	ItemID    string  `json:"item_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

func (l OrderLine) Subtotal() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID            string      `bun:"id,pk" json:"id"`
	Lines         []OrderLine `bun:"lines,notnull" json:"lines"`
	TableID       *string     `bun:"table_id" json:"table_id"`
	Kind          OrderKind   `bun:"kind,notnull" json:"kind"`
	ParentOrderID *string     `bun:"parent_order_id" json:"parent_order_id,omitempty"`
	CreatedBy     string      `bun:"created_by,notnull" json:"created_by"`
	Status        OrderStatus `bun:"status,notnull" json:"status"`
	CreatedAt     time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time   `bun:"updated_at,notnull" json:"updated_at"`
}

func (o Order) Total() float64 {
	total := 0.0
	for _, line := range o.Lines {
		total += line.Subtotal()
	}
	return total
}

// OrderRequest is the input of order creation. Lines carry item id and quantity;
// name and price are filled from the catalog.
type OrderRequest struct {
	Lines         []OrderLine `json:"lines"`
	TableID       *string     `json:"table_id"`
	Kind          OrderKind   `json:"kind"`
	ParentOrderID *string     `json:"parent_order_id,omitempty"`
	CreatedBy     string      `json:"-"`
}

// OrderPatch replaces the mutable fields that are set.
type OrderPatch struct {
	Lines   []OrderLine `json:"lines,omitempty"`
	TableID *string     `json:"table_id,omitempty"`
}

type OrderFilter struct {
	Statuses      []OrderStatus
	TableID       string
	ParentOrderID string
	Kind          OrderKind
	From          time.Time
	To            time.Time
}

type OrderStats struct {
	Day           string              `json:"day"`
	Orders        int                 `json:"orders"`
	CountByStatus map[OrderStatus]int `json:"count_by_status"`
	PaidRevenue   float64             `json:"paid_revenue"`
}

func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func StringPtr(s string) *string {
	return &s
}
