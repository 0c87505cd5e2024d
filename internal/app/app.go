// Package app wires the services and HTTP surface of the point-of-sale core.
package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/uptrace/bun"

	"ms-pos/internal/auth"
	"ms-pos/internal/cash"
	"ms-pos/internal/cash/cash_api"
	cashdb "ms-pos/internal/cash/db"
	"ms-pos/internal/events"
	"ms-pos/internal/kitchen"
	"ms-pos/internal/kitchen/kitchen_api"
	"ms-pos/internal/logger"
	"ms-pos/internal/menu"
	menudb "ms-pos/internal/menu/db"
	"ms-pos/internal/menu/menu_api"
	"ms-pos/internal/order"
	orderdb "ms-pos/internal/order/db"
	"ms-pos/internal/order/order_api"
	"ms-pos/internal/order/receipt"
	"ms-pos/internal/settlement"
	"ms-pos/internal/settlement/settlement_api"
	"ms-pos/internal/sse"
	"ms-pos/internal/tables"
	tabledb "ms-pos/internal/tables/db"
	"ms-pos/internal/tables/table_api"
	"ms-pos/internal/utils"
)

type Deps struct {
	Notifier      events.Notifier
	Locker        settlement.Locker
	Hub           *sse.Hub
	ReceiptSecret string
	// AllowedOrigins enables CORS for browser terminals when non-empty.
	AllowedOrigins []string
	Logger         *logger.Logger
}

type App struct {
	Cash        *cash.CashService
	Tables      *tables.TableService
	Menu        *menu.Catalog
	Orders      *order.OrderService
	Coordinator *settlement.Coordinator
	Kitchen     *kitchen.Bridge
	Receipts    *receipt.Generator
	Hub         *sse.Hub
	Logger      *logger.Logger

	origins []string
}

func New(db *bun.DB, deps Deps) *App {
	if deps.Notifier == nil {
		deps.Notifier = events.Nop{}
	}
	if deps.Locker == nil {
		deps.Locker = settlement.NewMemoryLocker()
	}
	if deps.Hub == nil {
		deps.Hub = sse.NewHub()
	}
	log := deps.Logger

	catalog := menu.NewCatalog(&menudb.DB{Bun: db}, log)
	cashService := cash.NewCashService(&cashdb.DB{Bun: db}, deps.Notifier, log)
	tableService := tables.NewTableService(&tabledb.DB{Bun: db}, deps.Notifier, log)
	orderService := order.NewOrderService(&orderdb.DB{Bun: db}, catalog, deps.Notifier, log)

	return &App{
		Cash:        cashService,
		Tables:      tableService,
		Menu:        catalog,
		Orders:      orderService,
		Coordinator: settlement.NewCoordinator(cashService, tableService, orderService, deps.Locker, log),
		Kitchen:     kitchen.NewBridge(orderService, tableService, deps.Locker, log),
		Receipts:    receipt.NewGenerator(deps.ReceiptSecret),
		Hub:         deps.Hub,
		Logger:      log,
		origins:     deps.AllowedOrigins,
	}
}

// Router mounts every endpoint under /api. authn must put the actor into the
// request context; only /api/health bypasses it.
func (a *App) Router(authn func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logger.Middleware(a.Logger))
	if len(a.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   a.origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, "ok", nil)
	})

	r.Group(func(r chi.Router) {
		r.Use(authn)
		r.Route("/api", func(r chi.Router) {
			r.Route("/cash/sessions", cash_api.NewHandler(a.Cash, a.Logger).Routes)
			r.Route("/tables", table_api.NewHandler(a.Tables, a.Orders, a.Logger).Routes)
			r.Route("/menu", menu_api.NewHandler(a.Menu, a.Logger).Routes)
			r.Route("/orders", order_api.NewHandler(a.Orders, a.Coordinator, a.Receipts, a.Logger).Routes)
			r.Route("/kitchen", kitchen_api.NewHandler(a.Kitchen, a.Logger).Routes)
			r.Route("/settlement", settlement_api.NewHandler(a.Coordinator, a.Logger).Routes)
			r.With(auth.Require(auth.CapSubscribeFeed)).Handle("/events", sse.NewHandler(a.Hub, a.Logger))
		})
	})
	a.Logger.Info("ROUTER", "Routes registered under /api")
	return r
}
