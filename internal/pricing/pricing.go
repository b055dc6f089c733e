// Package pricing computes authoritative order totals from trusted menu
// data. Client-supplied prices are never consulted.
package pricing

import (
	"errors"
	"fmt"

	"github.com/royal-restaurant/api/internal/store"
	"github.com/shopspring/decimal"
)

// Errors returned when an order's lines fail validation.
var (
	ErrEmptyOrder      = errors.New("items are required")
	ErrUnknownItem     = errors.New("item not found in menu")
	ErrUnavailableItem = errors.New("item is not available")
	ErrInvalidQuantity = errors.New("quantity must be >= 1")
)

// Line is a requested order line: an item reference plus a quantity.
type Line struct {
	ItemID   string
	Quantity int
}

// ItemGetter is the menu read path needed to price an order.
// Satisfied by *store.Store.
type ItemGetter interface {
	GetMenuItem(id string) (store.MenuItem, error)
}

var oneHundred = decimal.NewFromInt(100)

// UnitPrice returns the effective per-unit price of an item with its
// percentage discount applied, rounded to currency precision (2 decimal
// places, half-up).
func UnitPrice(item store.MenuItem) decimal.Decimal {
	factor := oneHundred.Sub(decimal.NewFromInt(int64(item.Discount)))
	return item.Price.Mul(factor).Div(oneHundred).Round(2)
}

// Compute validates the requested lines against the menu and returns the
// order total together with resolved lines that snapshot each item's name
// and effective unit price. The total is deterministic and independent of
// line ordering. On any validation failure nothing is returned.
func Compute(lines []Line, menu ItemGetter) (decimal.Decimal, []store.OrderLine, error) {
	if len(lines) == 0 {
		return decimal.Zero, nil, ErrEmptyOrder
	}

	total := decimal.Zero
	resolved := make([]store.OrderLine, 0, len(lines))

	for i, line := range lines {
		if line.Quantity < 1 {
			return decimal.Zero, nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}

		item, err := menu.GetMenuItem(line.ItemID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return decimal.Zero, nil, fmt.Errorf("items[%d] (%s): %w", i, line.ItemID, ErrUnknownItem)
			}
			return decimal.Zero, nil, fmt.Errorf("items[%d]: get item: %w", i, err)
		}
		if !item.Available {
			return decimal.Zero, nil, fmt.Errorf("items[%d] (%s): %w", i, line.ItemID, ErrUnavailableItem)
		}

		unit := UnitPrice(item)
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(line.Quantity))))

		resolved = append(resolved, store.OrderLine{
			ItemID:    item.ID,
			Name:      item.Name,
			UnitPrice: unit,
			Quantity:  line.Quantity,
		})
	}

	return total.Round(2), resolved, nil
}
