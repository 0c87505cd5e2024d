package auth

import (
	"net/http"

	"ms-pos/internal/apperr"
	"ms-pos/internal/models"
)

type Capability string

const (
	CapOpenSession   Capability = "cash:open"
	CapConfirmCash   Capability = "cash:confirm"
	CapOperateCash   Capability = "cash:operate"
	CapViewCash      Capability = "cash:view"
	CapCreateOrder   Capability = "order:create"
	CapCreateAddOn   Capability = "order:addon"
	CapUpdateOrder   Capability = "order:update"
	CapViewOrders    Capability = "order:view"
	CapPayOrder      Capability = "order:pay"
	CapKitchen       Capability = "kitchen:transition"
	CapAttendTable   Capability = "table:attend"
	CapViewTables    Capability = "table:view"
	CapManageTables  Capability = "table:manage"
	CapViewMenu      Capability = "menu:view"
	CapManageMenu    Capability = "menu:manage"
	CapReconcile     Capability = "settlement:reconcile"
	CapSubscribeFeed Capability = "events:subscribe"
)

var everyone = []models.Role{models.RoleAdmin, models.RoleCashier, models.RoleWaiter, models.RoleKitchen}

var policy = map[Capability][]models.Role{
	CapOpenSession:   {models.RoleAdmin},
	CapConfirmCash:   {models.RoleCashier, models.RoleWaiter, models.RoleAdmin},
	CapOperateCash:   {models.RoleCashier, models.RoleAdmin},
	CapViewCash:      {models.RoleCashier, models.RoleAdmin},
	CapCreateOrder:   {models.RoleCashier, models.RoleWaiter, models.RoleAdmin},
	CapCreateAddOn:   {models.RoleWaiter},
	CapUpdateOrder:   everyone,
	CapViewOrders:    everyone,
	CapPayOrder:      {models.RoleCashier, models.RoleAdmin},
	CapKitchen:       {models.RoleKitchen, models.RoleAdmin},
	CapAttendTable:   {models.RoleWaiter},
	CapViewTables:    everyone,
	CapManageTables:  {models.RoleAdmin},
	CapViewMenu:      everyone,
	CapManageMenu:    {models.RoleAdmin},
	CapReconcile:     {models.RoleAdmin},
	CapSubscribeFeed: everyone,
}

// Can reports whether role holds capability, as a Forbidden error when it does not.
func Can(role models.Role, capability Capability) error {
	for _, r := range policy[capability] {
		if r == role {
			return nil
		}
	}
	return apperr.Forbidden("role %q may not %s", role, capability)
}

// Require rejects requests whose actor lacks capability. It must run after Middleware.
func Require(capability Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}
			if err := Can(actor.Role, capability); err != nil {
				http.Error(w, apperr.Message(err), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
