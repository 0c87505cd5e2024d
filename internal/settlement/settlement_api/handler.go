package settlement_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-pos/internal/apperr"
	"ms-pos/internal/auth"
	"ms-pos/internal/logger"
	"ms-pos/internal/settlement"
	"ms-pos/internal/utils"
)

// Handler exposes the reconciliation sweep and compensating actions to admins.
type Handler struct {
	Coordinator *settlement.Coordinator
	Logger      *logger.Logger
}

func NewHandler(coordinator *settlement.Coordinator, log *logger.Logger) *Handler {
	return &Handler{Coordinator: coordinator, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Use(auth.Require(auth.CapReconcile))
	r.Get("/sweep", h.Sweep)
	r.Post("/repair", h.Repair)
	r.Post("/orders/{orderId}/record-payment", h.RecordMissingPayment)
	r.Post("/orders/{orderId}/revert-payment", h.RevertPayment)
}

type recordPaymentRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.Coordinator.Sweep(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Sweep: %v", err))
		utils.WriteError(w, "Sweep failed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Sweep complete", report)
}

func (h *Handler) Repair(w http.ResponseWriter, r *http.Request) {
	report, err := h.Coordinator.Repair(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Repair: %v", err))
		utils.WriteError(w, "Repair failed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Repair complete", report)
}

func (h *Handler) RecordMissingPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		utils.WriteError(w, "Invalid request body", apperr.Validation("session_id is required"))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("RecordMissingPayment: orderId=%s session=%s", orderID, req.SessionID))

	mv, err := h.Coordinator.RecordMissingPayment(r.Context(), orderID, req.SessionID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RecordMissingPayment: %v", err))
		utils.WriteError(w, "Could not record payment", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, "Payment recorded", mv)
}

func (h *Handler) RevertPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("RevertPayment: orderId=%s", orderID))

	o, err := h.Coordinator.RevertPayment(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RevertPayment: %v", err))
		utils.WriteError(w, "Could not revert payment", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Payment reverted", o)
}
