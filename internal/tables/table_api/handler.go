package table_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-pos/internal/apperr"
	"ms-pos/internal/auth"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	"ms-pos/internal/tables"
	"ms-pos/internal/utils"
)

// LiveOrders supplies the informational order list shown on each table.
type LiveOrders interface {
	LiveOrderIDsByTable(ctx context.Context) (map[string][]string, error)
}

type Handler struct {
	TableService *tables.TableService
	Orders       LiveOrders
	Logger       *logger.Logger
}

func NewHandler(tableService *tables.TableService, orders LiveOrders, log *logger.Logger) *Handler {
	return &Handler{TableService: tableService, Orders: orders, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.With(auth.Require(auth.CapViewTables)).Get("/", h.ListTables)
	r.With(auth.Require(auth.CapManageTables)).Post("/", h.CreateTable)
	r.With(auth.Require(auth.CapViewTables)).Get("/{tableId}", h.GetTable)
	r.With(auth.Require(auth.CapManageTables)).Put("/{tableId}", h.RenumberTable)
	r.With(auth.Require(auth.CapManageTables)).Delete("/{tableId}", h.DeleteTable)
	r.With(auth.Require(auth.CapAttendTable)).Post("/{tableId}/assign", h.AssignWaiter)
	r.With(auth.Require(auth.CapAttendTable)).Post("/{tableId}/release", h.ReleaseWaiter)
}

type numberRequest struct {
	Number int `json:"number"`
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	list, err := h.TableService.List(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListTables: %v", err))
		utils.WriteError(w, "Could not list tables", err)
		return
	}
	if h.Orders != nil {
		byTable, err := h.Orders.LiveOrderIDsByTable(r.Context())
		if err != nil {
			h.Logger.Warn("API", fmt.Sprintf("ListTables: order ids unavailable: %v", err))
		}
		for i := range list {
			list[i].OrderIDs = byTable[list[i].ID]
		}
	}
	utils.WriteJSON(w, http.StatusOK, "Tables", list)
}

func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableId")
	t, err := h.TableService.Get(r.Context(), tableID)
	if err != nil {
		utils.WriteError(w, "Could not load table", err)
		return
	}
	if h.Orders != nil {
		if byTable, err := h.Orders.LiveOrderIDsByTable(r.Context()); err == nil {
			t.OrderIDs = byTable[t.ID]
		}
	}
	utils.WriteJSON(w, http.StatusOK, "Table", t)
}

func (h *Handler) CreateTable(w http.ResponseWriter, r *http.Request) {
	var req numberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", apperr.Validation("invalid JSON: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateTable: number=%d", req.Number))

	t, err := h.TableService.Create(r.Context(), req.Number)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateTable: %v", err))
		utils.WriteError(w, "Could not create table", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, "Table created", t)
}

func (h *Handler) RenumberTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableId")
	var req numberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", apperr.Validation("invalid JSON: %v", err))
		return
	}

	t, err := h.TableService.Renumber(r.Context(), tableID, req.Number)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RenumberTable: %v", err))
		utils.WriteError(w, "Could not update table", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Table updated", t)
}

func (h *Handler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableId")
	h.Logger.Info("API", fmt.Sprintf("DeleteTable: tableId=%s", tableID))

	if err := h.TableService.Delete(r.Context(), tableID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("DeleteTable: %v", err))
		utils.WriteError(w, "Could not delete table", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AssignWaiter(w http.ResponseWriter, r *http.Request) {
	h.attendance(w, r, "AssignWaiter", h.TableService.AssignWaiter)
}

func (h *Handler) ReleaseWaiter(w http.ResponseWriter, r *http.Request) {
	h.attendance(w, r, "ReleaseWaiter", h.TableService.ReleaseWaiter)
}

func (h *Handler) attendance(w http.ResponseWriter, r *http.Request, name string,
	action func(context.Context, string, models.Actor) (*models.Table, error)) {
	actor, _ := auth.ActorFrom(r.Context())
	tableID := chi.URLParam(r, "tableId")
	h.Logger.Info("API", fmt.Sprintf("%s: tableId=%s waiter=%s", name, tableID, actor.ID))

	t, err := action(r.Context(), tableID, actor)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", name, err))
		utils.WriteError(w, "Table unavailable", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Table updated", t)
}
