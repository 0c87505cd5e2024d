package models

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
	RoleWaiter  Role = "waiter"
	RoleKitchen Role = "kitchen"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCashier, RoleWaiter, RoleKitchen:
		return true
	}
	return false
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
