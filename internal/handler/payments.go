package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/royal-restaurant/api/internal/payment"
	"github.com/royal-restaurant/api/internal/service"
	"github.com/royal-restaurant/api/internal/store"
)

// PaymentConfirmer defines the engine method needed by payment handlers.
// Satisfied by *service.OrderEngine.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID, captureToken string) (store.Order, error)
}

// PaymentHandler handles payment confirmation endpoints.
type PaymentHandler struct {
	engine PaymentConfirmer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(engine PaymentConfirmer) *PaymentHandler {
	return &PaymentHandler{engine: engine}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to be mounted at /api/payments.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/confirm", h.Confirm)
	r.Get("/success", h.Success)
	r.Get("/cancel", h.Cancel)
}

// --- Request / Response types ---

type confirmPaymentRequest struct {
	OrderID      string `json:"order_id"`
	CaptureToken string `json:"capture_token"`
}

type confirmPaymentResponse struct {
	Status     string  `json:"status"`
	PaymentRef *string `json:"payment_ref"`
}

// --- Handlers ---

// Confirm handles POST /api/payments/confirm. Idempotent: confirming an
// already-paid order returns the stored result without a second capture.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.OrderID == "" || req.CaptureToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_id and capture_token are required"})
		return
	}

	order, err := h.engine.ConfirmPayment(r.Context(), req.OrderID, req.CaptureToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrInvalidState):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order is not awaiting payment"})
		case errors.Is(err, payment.ErrMisconfigured):
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "payment is not configured"})
		case errors.Is(err, service.ErrProviderUnavailable):
			// Retryable: the order is still PENDING and no charge happened.
			writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error":     "payment provider unavailable",
				"retryable": true,
			})
		default:
			log.Printf("ERROR: confirm payment: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := confirmPaymentResponse{Status: string(order.Status)}
	if order.PaymentRef != "" {
		resp.PaymentRef = &order.PaymentRef
	}

	if order.Status == store.OrderStatusFailed {
		writeJSON(w, http.StatusPaymentRequired, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Success handles GET /api/payments/success?oid=...&token=... — the
// provider redirects the buyer here after approval; token is the provider
// order to capture. Redirects back into the storefront.
func (h *PaymentHandler) Success(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("oid")
	captureToken := r.URL.Query().Get("token")
	if orderID == "" || captureToken == "" {
		http.Redirect(w, r, "/?error=order_not_found", http.StatusFound)
		return
	}

	order, err := h.engine.ConfirmPayment(r.Context(), orderID, captureToken)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			http.Redirect(w, r, "/?error=order_not_found", http.StatusFound)
			return
		}
		log.Printf("ERROR: capture on payment return: %v", err)
		http.Redirect(w, r, "/?error=payment_failed", http.StatusFound)
		return
	}

	if order.Status != store.OrderStatusPaid {
		http.Redirect(w, r, "/?error=payment_failed", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/success?oid="+orderID, http.StatusFound)
}

// Cancel handles GET /api/payments/cancel — the provider redirects the
// buyer here when they abandon the approval page.
func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/?error=payment_cancelled", http.StatusFound)
}
