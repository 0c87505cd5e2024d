package cash_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-pos/internal/apperr"
	"ms-pos/internal/auth"
	"ms-pos/internal/cash"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	"ms-pos/internal/utils"
)

type Handler struct {
	CashService *cash.CashService
	Logger      *logger.Logger
}

func NewHandler(cashService *cash.CashService, log *logger.Logger) *Handler {
	return &Handler{CashService: cashService, Logger: log}
}

// Routes mounts the cash session endpoints; it expects auth.Middleware upstream.
func (h *Handler) Routes(r chi.Router) {
	r.With(auth.Require(auth.CapOpenSession)).Post("/", h.OpenSession)
	r.With(auth.Require(auth.CapViewCash)).Get("/current", h.CurrentSession)
	r.With(auth.Require(auth.CapViewCash)).Get("/history", h.History)
	r.With(auth.Require(auth.CapViewCash)).Get("/{sessionId}", h.GetSession)
	r.With(auth.Require(auth.CapConfirmCash)).Post("/{sessionId}/confirm", h.ConfirmSession)
	r.With(auth.Require(auth.CapOperateCash)).Post("/{sessionId}/movements", h.RecordMovement)
	r.With(auth.Require(auth.CapOperateCash)).Post("/{sessionId}/close", h.CloseSession)
}

type openRequest struct {
	CashierID     string  `json:"cashier_id"`
	OpeningAmount float64 `json:"opening_amount"`
}

type closeRequest struct {
	CountedAmount *float64 `json:"counted_amount"`
}

// sessionView adds the computed running total to a session.
type sessionView struct {
	*models.CashSession
	Expected float64 `json:"expected"`
}

func view(s *models.CashSession) *sessionView {
	if s == nil {
		return nil
	}
	return &sessionView{CashSession: s, Expected: s.Expected()}
}

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("OpenSession: failed to decode request body: %v", err))
		utils.WriteError(w, "Invalid request body", apperr.Validation("invalid JSON: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("OpenSession: cashier=%s amount=%.2f", req.CashierID, req.OpeningAmount))

	session, err := h.CashService.Open(r.Context(), req.CashierID, req.OpeningAmount, actor.ID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("OpenSession: %v", err))
		utils.WriteError(w, "Could not open cash session", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, "Cash session opened", view(session))
}

func (h *Handler) ConfirmSession(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	sessionID := chi.URLParam(r, "sessionId")
	h.Logger.Info("API", fmt.Sprintf("ConfirmSession: sessionId=%s actor=%s", sessionID, actor.ID))

	session, err := h.CashService.Confirm(r.Context(), sessionID, actor)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ConfirmSession: %v", err))
		utils.WriteError(w, "Could not confirm cash session", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Cash session confirmed", view(session))
}

func (h *Handler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	sessionID := chi.URLParam(r, "sessionId")

	var in cash.MovementInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.Logger.Error("API", fmt.Sprintf("RecordMovement: failed to decode request body: %v", err))
		utils.WriteError(w, "Invalid request body", apperr.Validation("invalid JSON: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("RecordMovement: sessionId=%s type=%s amount=%.2f", sessionID, in.Type, in.Amount))

	session, err := h.CashService.RecordMovement(r.Context(), sessionID, in, actor)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RecordMovement: %v", err))
		utils.WriteError(w, "Could not record movement", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, "Movement recorded", view(session))
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	sessionID := chi.URLParam(r, "sessionId")

	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CountedAmount == nil {
		utils.WriteError(w, "Invalid request body", apperr.Validation("counted_amount is required"))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CloseSession: sessionId=%s counted=%.2f", sessionID, *req.CountedAmount))

	session, err := h.CashService.Close(r.Context(), sessionID, *req.CountedAmount, actor)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CloseSession: %v", err))
		utils.WriteError(w, "Could not close cash session", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Cash session closed", view(session))
}

func (h *Handler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	cashierID, err := h.cashierScope(r)
	if err != nil {
		utils.WriteError(w, "Could not load current session", err)
		return
	}

	session, err := h.CashService.CurrentOpen(r.Context(), cashierID)
	if err != nil {
		utils.WriteError(w, "Could not load current session", err)
		return
	}
	if session == nil {
		utils.WriteJSON(w, http.StatusOK, "No open cash session", nil)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Current cash session", view(session))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	cashierID, err := h.cashierScope(r)
	if err != nil {
		utils.WriteError(w, "Could not load history", err)
		return
	}
	actor, _ := auth.ActorFrom(r.Context())
	if actor.IsAdmin() && r.URL.Query().Get("cashier_id") == "" {
		cashierID = ""
	}

	sessions, err := h.CashService.History(r.Context(), cashierID)
	if err != nil {
		utils.WriteError(w, "Could not load history", err)
		return
	}
	views := make([]*sessionView, 0, len(sessions))
	for i := range sessions {
		views = append(views, view(&sessions[i]))
	}
	utils.WriteJSON(w, http.StatusOK, "Cash session history", views)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	sessionID := chi.URLParam(r, "sessionId")

	session, err := h.CashService.Get(r.Context(), sessionID)
	if err != nil {
		utils.WriteError(w, "Could not load cash session", err)
		return
	}
	if !actor.IsAdmin() && session.CashierID != actor.ID {
		utils.WriteError(w, "Could not load cash session", apperr.NotFound("cash session %s not found", sessionID))
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Cash session", view(session))
}

// cashierScope resolves which cashier a read is about. Cashiers only see their own sessions.
func (h *Handler) cashierScope(r *http.Request) (string, error) {
	actor, _ := auth.ActorFrom(r.Context())
	requested := r.URL.Query().Get("cashier_id")
	if requested == "" || requested == actor.ID {
		return actor.ID, nil
	}
	if !actor.IsAdmin() {
		return "", apperr.Forbidden("cashiers may only view their own sessions")
	}
	return requested, nil
}
