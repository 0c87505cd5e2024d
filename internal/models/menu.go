package models

import (
	"time"

	"github.com/uptrace/bun"
)

type MenuItem struct {
	bun.BaseModel `bun:"table:menu_items"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Price       float64   `bun:"price,notnull" json:"price"`
	Category    string    `bun:"category" json:"category"`
	Available   bool      `bun:"available,notnull" json:"available"`
	Description string    `bun:"description" json:"description"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"updated_at"`
}
