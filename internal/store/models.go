package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order. Transitions are owned by
// the service layer; the store only enforces compare-and-set semantics.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusFulfilled OrderStatus = "FULFILLED"
)

// Valid reports whether s is one of the known lifecycle states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFailed,
		OrderStatusCancelled, OrderStatusFulfilled:
		return true
	}
	return false
}

// MenuItem is a product on the menu. Prices are authoritative: order totals
// are always derived from the stored price, never from client input.
type MenuItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Discount    int             `json:"discount"` // percent off, 0-100
	Category    string          `json:"category,omitempty"`
	Image       string          `json:"image,omitempty"`
	Available   bool            `json:"available"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Customer is the contact/delivery block captured with an order.
type Customer struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	Location      string `json:"location,omitempty"`
	Notes         string `json:"notes,omitempty"`
	ContactMethod string `json:"contact_method,omitempty"`
	DeliveryType  string `json:"delivery_type,omitempty"`
}

// OrderLine snapshots the item name and effective unit price at the moment
// the order was priced, so later menu edits never change a stored order.
type OrderLine struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

type Order struct {
	ID              string          `json:"id"`
	Customer        Customer        `json:"customer"`
	Lines           []OrderLine     `json:"lines"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	ProviderOrderID string          `json:"provider_order_id,omitempty"`
	PaymentRef      string          `json:"payment_ref,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Document is the full persisted state: one flat JSON file holding the
// menu and every order, rewritten wholesale on each mutation.
type Document struct {
	MenuItems  map[string]MenuItem `json:"menu_items"`
	Categories map[string]Category `json:"categories"`
	Orders     map[string]Order    `json:"orders"`
}
