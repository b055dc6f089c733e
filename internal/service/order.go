package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/royal-restaurant/api/internal/auth"
	"github.com/royal-restaurant/api/internal/payment"
	"github.com/royal-restaurant/api/internal/pricing"
	"github.com/royal-restaurant/api/internal/store"
	"github.com/royal-restaurant/api/internal/ws"
	"github.com/shopspring/decimal"
)

// Errors returned by the order engine.
var (
	ErrNotFound            = errors.New("order not found")
	ErrInvalidState        = errors.New("order is not awaiting payment")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)

// OrderStore defines the store methods needed by the order engine.
// Satisfied by *store.Store; narrow interface for testability.
type OrderStore interface {
	GetMenuItem(id string) (store.MenuItem, error)
	CreateOrder(o store.Order) (store.Order, error)
	GetOrder(id string) (store.Order, error)
	UpdateOrderStatus(id string, from, to store.OrderStatus, paymentRef string) (store.Order, error)
	AttachProviderOrder(id, providerOrderID string) (store.Order, error)
}

// PaymentGateway is the payment provider boundary. Satisfied by
// *payment.Client.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, total decimal.Decimal, returnURL, cancelURL string) (payment.CheckoutOrder, error)
	Verify(ctx context.Context, captureToken string, expectedTotal decimal.Decimal) (payment.Verification, error)
}

// Notifier delivers the staff notification for a paid order. Satisfied by
// *notify.Telegram. Failures are logged, never propagated.
type Notifier interface {
	Notify(ctx context.Context, order store.Order) error
}

// EventBroadcaster pushes live order events to the admin feed. Satisfied by
// *ws.Hub.
type EventBroadcaster interface {
	Broadcast(event ws.Event)
}

// OrderEngine drives the order lifecycle: validation, authoritative
// pricing, the payment state machine, and best-effort notification fan-out.
type OrderEngine struct {
	store      OrderStore
	gateway    PaymentGateway
	notifier   Notifier
	events     EventBroadcaster
	adminToken string
}

// NewOrderEngine creates an OrderEngine. notifier and events may be nil;
// both are observability side effects, never part of order consistency.
func NewOrderEngine(st OrderStore, gateway PaymentGateway, notifier Notifier, events EventBroadcaster, adminToken string) *OrderEngine {
	return &OrderEngine{
		store:      st,
		gateway:    gateway,
		notifier:   notifier,
		events:     events,
		adminToken: adminToken,
	}
}

// SubmitOrderRequest is the validated input for creating an order.
type SubmitOrderRequest struct {
	Customer store.Customer
	Lines    []pricing.Line
}

// SubmitOrder prices the requested lines against the menu and persists a
// new PENDING order. On validation failure nothing is persisted.
func (e *OrderEngine) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (store.Order, error) {
	total, resolved, err := pricing.Compute(req.Lines, e.store)
	if err != nil {
		return store.Order{}, err
	}

	now := time.Now().UTC()
	order := store.Order{
		ID:        uuid.NewString(),
		Customer:  req.Customer,
		Lines:     resolved,
		Total:     total,
		Status:    store.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := e.store.CreateOrder(order)
	if err != nil {
		return store.Order{}, fmt.Errorf("create order: %w", err)
	}

	e.publish("order.created", created)
	return created, nil
}

// BeginCheckout creates the provider-side checkout order for a PENDING
// order and records its ID. The caller redirects the buyer to the returned
// approval URL.
func (e *OrderEngine) BeginCheckout(ctx context.Context, orderID, returnURL, cancelURL string) (payment.CheckoutOrder, error) {
	order, err := e.store.GetOrder(orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return payment.CheckoutOrder{}, ErrNotFound
		}
		return payment.CheckoutOrder{}, fmt.Errorf("get order: %w", err)
	}
	if order.Status != store.OrderStatusPending {
		return payment.CheckoutOrder{}, fmt.Errorf("order %s is %s: %w", orderID, order.Status, ErrInvalidState)
	}

	checkout, err := e.gateway.CreateOrder(ctx, order.Total, returnURL, cancelURL)
	if err != nil {
		if errors.Is(err, payment.ErrMisconfigured) {
			log.Printf("ERROR: payment setup defect: %v", err)
			return payment.CheckoutOrder{}, err
		}
		return payment.CheckoutOrder{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if _, err := e.store.AttachProviderOrder(orderID, checkout.ID); err != nil {
		return payment.CheckoutOrder{}, fmt.Errorf("attach provider order: %w", err)
	}
	return checkout, nil
}

// ConfirmPayment captures the buyer-approved provider order and transitions
// the order accordingly: SUCCESS -> PAID (payment_ref set, staff notified),
// DECLINED -> FAILED, provider error -> stays PENDING with a retryable
// error. Confirming an already-PAID order is a no-op returning the stored
// order: retries never double-charge or double-notify.
func (e *OrderEngine) ConfirmPayment(ctx context.Context, orderID, captureToken string) (store.Order, error) {
	order, err := e.store.GetOrder(orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Order{}, ErrNotFound
		}
		return store.Order{}, fmt.Errorf("get order: %w", err)
	}

	switch order.Status {
	case store.OrderStatusPending:
		// proceed to verification
	case store.OrderStatusPaid:
		return order, nil
	default:
		return store.Order{}, fmt.Errorf("order %s is %s: %w", orderID, order.Status, ErrInvalidState)
	}

	// The provider call runs outside the store lock so a slow capture
	// cannot stall unrelated submissions.
	verification, err := e.gateway.Verify(ctx, captureToken, order.Total)
	if err != nil {
		if errors.Is(err, payment.ErrMisconfigured) {
			log.Printf("ERROR: payment setup defect: %v", err)
			return store.Order{}, err
		}
		log.Printf("ERROR: verify payment for order %s: %v", orderID, err)
		return store.Order{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	switch verification.Outcome {
	case payment.OutcomeSuccess:
		updated, err := e.store.UpdateOrderStatus(orderID, store.OrderStatusPending, store.OrderStatusPaid, verification.ProviderRef)
		if err != nil {
			return e.resolveTransitionConflict(orderID, err)
		}
		e.notifyPaid(ctx, updated)
		e.publish("order.paid", updated)
		return updated, nil

	case payment.OutcomeDeclined:
		updated, err := e.store.UpdateOrderStatus(orderID, store.OrderStatusPending, store.OrderStatusFailed, "")
		if err != nil {
			return e.resolveTransitionConflict(orderID, err)
		}
		e.publish("order.failed", updated)
		return updated, nil

	default:
		return store.Order{}, ErrProviderUnavailable
	}
}

// resolveTransitionConflict handles a compare-and-set loss on the
// PENDING transition: when a concurrent confirmation already marked the
// order PAID, that result stands.
func (e *OrderEngine) resolveTransitionConflict(orderID string, err error) (store.Order, error) {
	if !errors.Is(err, store.ErrConflict) {
		return store.Order{}, fmt.Errorf("update order status: %w", err)
	}
	current, getErr := e.store.GetOrder(orderID)
	if getErr == nil && current.Status == store.OrderStatusPaid {
		return current, nil
	}
	return store.Order{}, fmt.Errorf("order %s: %w", orderID, ErrInvalidState)
}

// adminTransitions is the state graph reachable from the admin panel.
// PENDING -> PAID is deliberately absent: only a verified capture may mark
// an order paid.
var adminTransitions = map[store.OrderStatus][]store.OrderStatus{
	store.OrderStatusPending: {store.OrderStatusFailed},
	store.OrderStatusPaid:    {store.OrderStatusFulfilled, store.OrderStatusCancelled},
}

// ValidTransition reports whether an admin may move an order from one
// status to another.
func ValidTransition(from, to store.OrderStatus) bool {
	for _, s := range adminTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AdminUpdateStatus applies a staff-requested status transition. The token
// must equal the configured admin token (constant-time compare) and the
// transition must be an edge of the state graph.
func (e *OrderEngine) AdminUpdateStatus(ctx context.Context, orderID string, newStatus store.OrderStatus, token string) (store.Order, error) {
	if !auth.TokenEqual(token, e.adminToken) {
		return store.Order{}, ErrUnauthorized
	}

	order, err := e.store.GetOrder(orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Order{}, ErrNotFound
		}
		return store.Order{}, fmt.Errorf("get order: %w", err)
	}

	if !ValidTransition(order.Status, newStatus) {
		return store.Order{}, fmt.Errorf("cannot transition from %s to %s: %w", order.Status, newStatus, ErrInvalidTransition)
	}

	updated, err := e.store.UpdateOrderStatus(orderID, order.Status, newStatus, "")
	if err != nil {
		// Lost a race with another writer; the requested transition no
		// longer applies.
		if errors.Is(err, store.ErrConflict) {
			return store.Order{}, fmt.Errorf("order %s changed concurrently: %w", orderID, ErrInvalidTransition)
		}
		return store.Order{}, fmt.Errorf("update order status: %w", err)
	}

	e.publish("order.status", updated)
	return updated, nil
}

// notifyPaid dispatches the staff notification. Best-effort: failure is
// logged and never reverts or taints the PAID transition.
func (e *OrderEngine) notifyPaid(ctx context.Context, order store.Order) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, order); err != nil {
		log.Printf("ERROR: notify order %s: %v", order.ID, err)
	}
}

func (e *OrderEngine) publish(eventType string, order store.Order) {
	if e.events == nil {
		return
	}
	e.events.Broadcast(ws.NewEvent(eventType, order))
}
