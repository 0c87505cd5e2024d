package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-pos/internal/apperr"
	"ms-pos/internal/auth"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	"ms-pos/internal/order"
	"ms-pos/internal/order/receipt"
	"ms-pos/internal/settlement"
	"ms-pos/internal/utils"
)

type Handler struct {
	OrderService *order.OrderService
	Coordinator  *settlement.Coordinator
	Receipts     *receipt.Generator
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, coordinator *settlement.Coordinator, receipts *receipt.Generator, log *logger.Logger) *Handler {
	return &Handler{OrderService: orderService, Coordinator: coordinator, Receipts: receipts, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.With(auth.Require(auth.CapCreateOrder)).Post("/", h.CreateOrder)
	r.With(auth.Require(auth.CapViewOrders)).Get("/", h.ListOrders)
	r.With(auth.Require(auth.CapCreateAddOn)).Post("/addon", h.CreateAddOn)
	r.With(auth.Require(auth.CapViewOrders)).Get("/addon", h.ListAddOns)
	r.With(auth.Require(auth.CapViewOrders)).Get("/stats/today", h.TodayStats)
	r.With(auth.Require(auth.CapViewOrders)).Get("/{orderId}", h.GetOrder)
	r.With(auth.Require(auth.CapUpdateOrder)).Put("/{orderId}", h.UpdateOrder)
	r.With(auth.Require(auth.CapPayOrder)).Post("/{orderId}/pay", h.PayOrder)
	r.With(auth.Require(auth.CapViewOrders)).Get("/{orderId}/receipt", h.Receipt)
}

// orderView adds the computed total to an order.
type orderView struct {
	*models.Order
	Total float64 `json:"total"`
}

func view(o *models.Order) *orderView {
	return &orderView{Order: o, Total: o.Total()}
}

func views(orders []models.Order) []*orderView {
	out := make([]*orderView, 0, len(orders))
	for i := range orders {
		out = append(out, view(&orders[i]))
	}
	return out
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to decode request body: %v", err))
		utils.WriteError(w, "Invalid request body", apperr.Validation("invalid JSON: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateOrder: actor=%s kind=%s table=%s lines=%d", actor.ID, req.Kind, models.StringValue(req.TableID), len(req.Lines)))

	o, err := h.Coordinator.CreateOrder(r.Context(), actor, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: %v", err))
		utils.WriteError(w, "Could not create order", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, "Order created", view(o))
}

func (h *Handler) CreateAddOn(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", apperr.Validation("invalid JSON: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateAddOn: actor=%s table=%s parent=%s", actor.ID, models.StringValue(req.TableID), models.StringValue(req.ParentOrderID)))

	o, err := h.Coordinator.CreateAddOn(r.Context(), actor, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateAddOn: %v", err))
		utils.WriteError(w, "Could not create add-on", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, "Add-on created", view(o))
}

func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var patch models.OrderPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.WriteError(w, "Invalid request body", apperr.Validation("invalid JSON: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("UpdateOrder: orderId=%s", orderID))

	o, err := h.Coordinator.UpdateOrder(r.Context(), orderID, patch)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateOrder: %v", err))
		utils.WriteError(w, "Could not update order", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Order updated", view(o))
}

func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("PayOrder: orderId=%s cashier=%s", orderID, actor.ID))

	payment, err := h.Coordinator.PayOrder(r.Context(), actor, orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("PayOrder: %v", err))
		utils.WriteError(w, "Could not pay order", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Order paid", map[string]interface{}{
		"order":    view(payment.Order),
		"movement": payment.Movement,
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	o, err := h.OrderService.Get(r.Context(), orderID)
	if err != nil {
		utils.WriteError(w, "Could not load order", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Order", view(o))
}

// ListOrders supports ?status=a,b ?date=YYYY-MM-DD ?table_id= and ?kind=.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		utils.WriteError(w, "Invalid filter", err)
		return
	}
	orders, err := h.OrderService.List(r.Context(), f)
	if err != nil {
		utils.WriteError(w, "Could not list orders", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Orders", views(orders))
}

func (h *Handler) ListAddOns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := h.OrderService.ListAddOns(r.Context(), q.Get("table_id"), q.Get("parent_order_id"))
	if err != nil {
		utils.WriteError(w, "Could not list add-ons", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Add-ons", views(orders))
}

func (h *Handler) TodayStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.OrderService.StatsForDay(r.Context(), time.Now())
	if err != nil {
		utils.WriteError(w, "Could not compute stats", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Today's orders", stats)
}

// Receipt renders a QR PNG for an order that has been paid.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	o, err := h.OrderService.Get(r.Context(), orderID)
	if err != nil {
		utils.WriteError(w, "Could not load order", err)
		return
	}
	if !o.Status.IsSettled() {
		utils.WriteError(w, "Order not paid", apperr.Precondition("order %s has not been paid", orderID))
		return
	}
	png, err := h.Receipts.QR(receipt.NewPayload(o, time.Now()))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Receipt: %v", err))
		utils.WriteError(w, "Could not render receipt", apperr.Internal(err, "failed to render receipt"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Receipt: failed to write response: %v", err))
	}
}

func parseFilter(r *http.Request) (models.OrderFilter, error) {
	q := r.URL.Query()
	f := models.OrderFilter{
		TableID: q.Get("table_id"),
		Kind:    models.OrderKind(q.Get("kind")),
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return f, apperr.Validation("unknown order kind %q", f.Kind)
	}
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := models.OrderStatus(strings.TrimSpace(s))
			if !status.Valid() {
				return f, apperr.Validation("unknown order status %q", status)
			}
			f.Statuses = append(f.Statuses, status)
		}
	}
	if raw := q.Get("date"); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return f, apperr.Validation("date must be YYYY-MM-DD")
		}
		f.From, f.To = day, day.AddDate(0, 0, 1)
	}
	return f, nil
}
