package store

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// InsufficientStockError reports which product could not cover the requested
// quantity. The name is the snapshot the caller should show to the customer.
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q", e.ProductName)
}
