package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/royal-restaurant/api/internal/auth"
	"github.com/royal-restaurant/api/internal/middleware"
	"github.com/royal-restaurant/api/internal/service"
	"github.com/royal-restaurant/api/internal/store"
)

// AdminStore defines the store methods needed by admin handlers.
// Satisfied by *store.Store.
type AdminStore interface {
	ListOrders(status store.OrderStatus) []store.Order
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

// StatusUpdater defines the engine method for staff status changes.
// Satisfied by *service.OrderEngine.
type StatusUpdater interface {
	AdminUpdateStatus(ctx context.Context, orderID string, newStatus store.OrderStatus, token string) (store.Order, error)
}

// AdminHandler handles the token-gated admin panel endpoints.
type AdminHandler struct {
	store      AdminStore
	engine     StatusUpdater
	adminToken string
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(store AdminStore, engine StatusUpdater, adminToken string) *AdminHandler {
	return &AdminHandler{store: store, engine: engine, adminToken: adminToken}
}

// --- Request / Response types ---

type adminLoginRequest struct {
	Token string `json:"token"`
}

type adminLoginResponse struct {
	Status  string `json:"status"`
	WSToken string `json:"ws_token"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Login handles POST /api/admin/login. Verifies the entered token and
// mints the short-lived session token the live order feed uses.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if !auth.TokenEqual(req.Token, h.adminToken) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	wsToken, err := auth.GenerateToken(h.adminToken)
	if err != nil {
		log.Printf("ERROR: generate session token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, adminLoginResponse{Status: "success", WSToken: wsToken})
}

// FullData handles GET /api/admin/full-data — the whole document, orders
// included, for the panel's initial load.
func (h *AdminHandler) FullData(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.Snapshot()
	if err != nil {
		log.Printf("ERROR: snapshot for full-data: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// ListOrders handles GET /api/admin/orders with an optional ?status= filter.
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := store.OrderStatus(r.URL.Query().Get("status"))
	if status != "" && !isValidOrderStatus(status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	orders := h.store.ListOrders(status)
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /api/admin/orders/{id}/status.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	newStatus := store.OrderStatus(req.Status)
	if !isValidOrderStatus(newStatus) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	order, err := h.engine.AdminUpdateStatus(r.Context(), chi.URLParam(r, "id"),
		newStatus, r.Header.Get(middleware.AdminTokenHeader))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		case errors.Is(err, service.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrInvalidTransition):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: admin update status: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Backup handles GET /api/admin/backup?token=... — the token travels as a
// query parameter because the panel triggers this via a plain download
// link, which cannot carry headers.
func (h *AdminHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if !auth.TokenEqual(r.URL.Query().Get("token"), h.adminToken) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	data, err := h.store.Snapshot()
	if err != nil {
		log.Printf("ERROR: snapshot for backup: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="backup.json"`)
	w.Write(data)
}

// Restore handles POST /api/admin/restore, replacing the whole document
// with an uploaded snapshot.
func (h *AdminHandler) Restore(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 10<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.store.Restore(data); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid backup file"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
