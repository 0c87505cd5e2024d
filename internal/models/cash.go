package models

import (
	"time"

	"github.com/uptrace/bun"
)

type SessionStatus string

const (
	SessionOpenUnconfirmed SessionStatus = "open_unconfirmed"
	SessionOpenConfirmed   SessionStatus = "open_confirmed"
	SessionClosed          SessionStatus = "closed"
)

// OpenSessionStatuses are the statuses counted by the one-open-session-per-cashier rule.
var OpenSessionStatuses = []SessionStatus{SessionOpenUnconfirmed, SessionOpenConfirmed}

func (s SessionStatus) IsOpen() bool {
	return s == SessionOpenUnconfirmed || s == SessionOpenConfirmed
}

type MovementType string

const (
	MovementInflow  MovementType = "inflow"
	MovementOutflow MovementType = "outflow"
)

func (t MovementType) Valid() bool {
	return t == MovementInflow || t == MovementOutflow
}

// Movement is one append-only ledger entry of a cash session.
type Movement struct {
	bun.BaseModel `bun:"table:cash_movements"`

	ID          string       `bun:"id,pk" json:"id"`
	SessionID   string       `bun:"session_id,notnull" json:"session_id"`
	Type        MovementType `bun:"type,notnull" json:"type"`
	Amount      float64      `bun:"amount,notnull" json:"amount"`
	Description string       `bun:"description" json:"description"`
	OrderID     *string      `bun:"order_id" json:"order_id,omitempty"`
	CreatedAt   time.Time    `bun:"created_at,notnull" json:"created_at"`
}

type CashSession struct {
	bun.BaseModel `bun:"table:cash_sessions"`

	ID            string        `bun:"id,pk" json:"id"`
	CashierID     string        `bun:"cashier_id,notnull" json:"cashier_id"`
	OpenedBy      string        `bun:"opened_by,notnull" json:"opened_by"`
	OpeningAmount float64       `bun:"opening_amount,notnull" json:"opening_amount"`
	Status        SessionStatus `bun:"status,notnull" json:"status"`
	TotalInflow   float64       `bun:"total_inflow,notnull" json:"total_inflow"`
	TotalOutflow  float64       `bun:"total_outflow,notnull" json:"total_outflow"`
	ClosingAmount *float64      `bun:"closing_amount" json:"closing_amount,omitempty"`
	Difference    *float64      `bun:"difference" json:"difference,omitempty"`
	OpenedAt      time.Time     `bun:"opened_at,notnull" json:"opened_at"`
	ConfirmedAt   *time.Time    `bun:"confirmed_at" json:"confirmed_at,omitempty"`
	ClosedAt      *time.Time    `bun:"closed_at" json:"closed_at,omitempty"`

	Movements []Movement `bun:"-" json:"movements"`
}

// Expected is the computed running total: opening amount plus inflows minus outflows.
func (s CashSession) Expected() float64 {
	return s.OpeningAmount + s.TotalInflow - s.TotalOutflow
}
