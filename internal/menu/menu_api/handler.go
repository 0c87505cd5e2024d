package menu_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-pos/internal/apperr"
	"ms-pos/internal/auth"
	"ms-pos/internal/logger"
	"ms-pos/internal/menu"
	"ms-pos/internal/utils"
)

type Handler struct {
	Catalog *menu.Catalog
	Logger  *logger.Logger
}

func NewHandler(catalog *menu.Catalog, log *logger.Logger) *Handler {
	return &Handler{Catalog: catalog, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.With(auth.Require(auth.CapViewMenu)).Get("/", h.ListItems)
	r.With(auth.Require(auth.CapViewMenu)).Get("/{itemId}", h.GetItem)
	r.With(auth.Require(auth.CapManageMenu)).Post("/", h.CreateItem)
	r.With(auth.Require(auth.CapManageMenu)).Put("/{itemId}", h.UpdateItem)
}

// ListItems lists the menu; ?available=true hides unavailable items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Catalog.List(r.Context(), r.URL.Query().Get("available") == "true")
	if err != nil {
		utils.WriteError(w, "Could not list menu", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Menu", items)
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Catalog.Get(r.Context(), chi.URLParam(r, "itemId"))
	if err != nil {
		utils.WriteError(w, "Could not load menu item", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Menu item", item)
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var in menu.ItemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.WriteError(w, "Invalid request body", apperr.Validation("invalid JSON: %v", err))
		return
	}
	item, err := h.Catalog.Create(r.Context(), in)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateItem: %v", err))
		utils.WriteError(w, "Could not create menu item", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, "Menu item created", item)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var in menu.ItemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.WriteError(w, "Invalid request body", apperr.Validation("invalid JSON: %v", err))
		return
	}
	item, err := h.Catalog.Update(r.Context(), chi.URLParam(r, "itemId"), in)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateItem: %v", err))
		utils.WriteError(w, "Could not update menu item", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Menu item updated", item)
}
