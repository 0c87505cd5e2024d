package kitchen_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-pos/internal/apperr"
	"ms-pos/internal/auth"
	"ms-pos/internal/kitchen"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	"ms-pos/internal/utils"
)

type Handler struct {
	Bridge *kitchen.Bridge
	Logger *logger.Logger
}

func NewHandler(bridge *kitchen.Bridge, log *logger.Logger) *Handler {
	return &Handler{Bridge: bridge, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Use(auth.Require(auth.CapKitchen))
	r.Get("/queue", h.Queue)
	r.Put("/orders/{orderId}/status", h.SetStatus)
	r.Post("/orders/{orderId}/revert", h.Revert)
}

type statusRequest struct {
	Status models.OrderStatus `json:"status"`
}

func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	orders, err := h.Bridge.Queue(r.Context(), actor)
	if err != nil {
		utils.WriteError(w, "Could not load kitchen queue", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Kitchen queue", orders)
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	orderID := chi.URLParam(r, "orderId")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", apperr.Validation("invalid JSON: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("SetStatus: orderId=%s status=%s actor=%s", orderID, req.Status, actor.ID))

	o, err := h.Bridge.Advance(r.Context(), actor, orderID, req.Status)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("SetStatus: %v", err))
		utils.WriteError(w, "Could not update order status", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Order status updated", o)
}

func (h *Handler) Revert(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	orderID := chi.URLParam(r, "orderId")

	o, err := h.Bridge.Revert(r.Context(), actor, orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Revert: %v", err))
		utils.WriteError(w, "Could not revert order", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Order returned to paid", o)
}
