package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

type Occupancy string

const (
	OccupancyFree     Occupancy = "free"
	OccupancyOccupied Occupancy = "occupied"
)

type Attendance string

const (
	AttendanceFree      Attendance = "free"
	AttendanceAttending Attendance = "attending"
)

// Table keeps order occupancy and waiter attendance in separate fields so
// order flows and waiter actions never write the same column.
type Table struct {
	bun.BaseModel `bun:"table:dining_tables"`

	ID               string     `bun:"id,pk" json:"id"`
	Number           int        `bun:"number,notnull,unique" json:"number"`
	HasActiveOrder   bool       `bun:"has_active_order,notnull" json:"has_active_order"`
	WaiterID         *string    `bun:"waiter_id" json:"waiter_id"`
	WaiterAttendance Attendance `bun:"waiter_attendance,notnull" json:"waiter_attendance"`
	CreatedAt        time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull" json:"updated_at"`

	OrderIDs []string `bun:"-" json:"order_ids,omitempty"`
}

func (t Table) Status() Occupancy {
	if t.HasActiveOrder {
		return OccupancyOccupied
	}
	return OccupancyFree
}

func (t Table) AssignedTo(waiterID string) bool {
	return t.WaiterID != nil && *t.WaiterID == waiterID
}

func (t Table) MarshalJSON() ([]byte, error) {
	type alias Table
	return json.Marshal(struct {
		alias
		Status Occupancy `json:"status"`
	}{alias(t), t.Status()})
}
