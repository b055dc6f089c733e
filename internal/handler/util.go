package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/royal-restaurant/api/internal/pricing"
	"github.com/royal-restaurant/api/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// isValidationError checks if the error is a known pricing validation error
// that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, pricing.ErrEmptyOrder) ||
		errors.Is(err, pricing.ErrUnknownItem) ||
		errors.Is(err, pricing.ErrUnavailableItem) ||
		errors.Is(err, pricing.ErrInvalidQuantity)
}

// isValidOrderStatus checks if the given status is a valid order status.
func isValidOrderStatus(s store.OrderStatus) bool {
	return s.Valid()
}
