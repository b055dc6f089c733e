package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/royal-restaurant/api/internal/store"
	"github.com/shopspring/decimal"
)

// MenuStore defines the store methods needed by menu handlers.
// Satisfied by *store.Store.
type MenuStore interface {
	ListMenuItems() []store.MenuItem
	ListCategories() []store.Category
	UpsertMenuItem(item store.MenuItem) error
	DeleteMenuItem(id string) error
	UpsertCategory(cat store.Category) error
	DeleteCategory(id string) error
}

// MenuHandler serves the public catalog and the admin menu edits.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// --- Request / Response types ---

type menuItemRequest struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Discount    int             `json:"discount"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Available   bool            `json:"available"`
}

type categoryRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type catalogResponse struct {
	Products   []store.MenuItem `json:"products"`
	Categories []store.Category `json:"categories"`
}

// --- Handlers ---

// GetData handles GET /api/data — the customer-facing catalog. Only
// available items are listed; unavailable ones stay admin-only.
func (h *MenuHandler) GetData(w http.ResponseWriter, r *http.Request) {
	all := h.store.ListMenuItems()
	products := make([]store.MenuItem, 0, len(all))
	for _, item := range all {
		if item.Available {
			products = append(products, item)
		}
	}

	writeJSON(w, http.StatusOK, catalogResponse{
		Products:   products,
		Categories: h.store.ListCategories(),
	})
}

// SaveProduct handles POST /api/admin/products — create or replace.
func (h *MenuHandler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.Price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be >= 0"})
		return
	}
	if req.Discount < 0 || req.Discount > 100 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "discount must be between 0 and 100"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	item := store.MenuItem{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Discount:    req.Discount,
		Category:    req.Category,
		Image:       req.Image,
		Available:   req.Available,
	}
	if err := h.store.UpsertMenuItem(item); err != nil {
		log.Printf("ERROR: save product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// DeleteProduct handles DELETE /api/admin/products/{id}.
func (h *MenuHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteMenuItem(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: delete product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// SaveCategory handles POST /api/admin/categories — create or replace.
func (h *MenuHandler) SaveCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	cat := store.Category{ID: req.ID, Name: req.Name}
	if err := h.store.UpsertCategory(cat); err != nil {
		log.Printf("ERROR: save category: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, cat)
}

// DeleteCategory handles DELETE /api/admin/categories/{id}.
func (h *MenuHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteCategory(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "category not found"})
			return
		}
		log.Printf("ERROR: delete category: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
