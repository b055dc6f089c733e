package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/royal-restaurant/api/internal/payment"
	"github.com/royal-restaurant/api/internal/pricing"
	"github.com/royal-restaurant/api/internal/service"
	"github.com/royal-restaurant/api/internal/store"
)

// OrderEngine defines the engine methods needed by order handlers.
// Satisfied by *service.OrderEngine; narrow interface for testability.
type OrderEngine interface {
	SubmitOrder(ctx context.Context, req service.SubmitOrderRequest) (store.Order, error)
	BeginCheckout(ctx context.Context, orderID, returnURL, cancelURL string) (payment.CheckoutOrder, error)
}

// OrderReader defines the store read methods needed by order handlers.
// Satisfied by *store.Store.
type OrderReader interface {
	GetOrder(id string) (store.Order, error)
}

// OrderHandler handles the public order endpoints.
type OrderHandler struct {
	engine  OrderEngine
	store   OrderReader
	baseURL string
}

// NewOrderHandler creates a new OrderHandler. baseURL is the public origin
// used to build the payment return/cancel links.
func NewOrderHandler(engine OrderEngine, store OrderReader, baseURL string) *OrderHandler {
	return &OrderHandler{engine: engine, store: store, baseURL: baseURL}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /api/orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/checkout", h.Checkout)
}

// --- Request / Response types ---

type orderLineRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type submitOrderRequest struct {
	Customer store.Customer     `json:"customer"`
	Items    []orderLineRequest `json:"items"`
}

type submitOrderResponse struct {
	OrderID string `json:"order_id"`
	Total   string `json:"total"`
	Status  string `json:"status"`
}

type orderLineResponse struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type orderResponse struct {
	ID         string              `json:"id"`
	Customer   store.Customer      `json:"customer"`
	Lines      []orderLineResponse `json:"lines"`
	Total      string              `json:"total"`
	Status     string              `json:"status"`
	PaymentRef *string             `json:"payment_ref"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

type checkoutResponse struct {
	ApprovalURL     string `json:"approval_url"`
	ProviderOrderID string `json:"provider_order_id"`
}

// --- Handlers ---

// Create handles POST /api/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}
	for i, item := range req.Items {
		if item.ItemID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "item_id is required"),
			})
			return
		}
	}

	lines := make([]pricing.Line, len(req.Items))
	for i, item := range req.Items {
		lines[i] = pricing.Line{ItemID: item.ItemID, Quantity: item.Quantity}
	}

	order, err := h.engine.SubmitOrder(r.Context(), service.SubmitOrderRequest{
		Customer: req.Customer,
		Lines:    lines,
	})
	if err != nil {
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: submit order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, submitOrderResponse{
		OrderID: order.ID,
		Total:   order.Total.StringFixed(2),
		Status:  string(order.Status),
	})
}

// Get handles GET /api/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.store.GetOrder(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Checkout handles POST /api/orders/{id}/checkout. It creates the provider
// checkout order and returns the approval link the client must redirect to.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	returnURL := fmt.Sprintf("%s/api/payments/success?oid=%s", h.baseURL, orderID)
	cancelURL := h.baseURL + "/api/payments/cancel"

	checkout, err := h.engine.BeginCheckout(r.Context(), orderID, returnURL, cancelURL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrInvalidState):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order is not awaiting payment"})
		case errors.Is(err, payment.ErrMisconfigured):
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "payment is not configured"})
		case errors.Is(err, service.ErrProviderUnavailable):
			log.Printf("ERROR: begin checkout: %v", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "payment provider unavailable"})
		default:
			log.Printf("ERROR: begin checkout: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		ApprovalURL:     checkout.ApprovalURL,
		ProviderOrderID: checkout.ID,
	})
}

// --- Helpers ---

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

func toOrderResponse(o store.Order) orderResponse {
	resp := orderResponse{
		ID:        o.ID,
		Customer:  o.Customer,
		Total:     o.Total.StringFixed(2),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if o.PaymentRef != "" {
		resp.PaymentRef = &o.PaymentRef
	}
	resp.Lines = make([]orderLineResponse, len(o.Lines))
	for i, line := range o.Lines {
		resp.Lines[i] = orderLineResponse{
			ItemID:    line.ItemID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice.StringFixed(2),
			Quantity:  line.Quantity,
		}
	}
	return resp
}
