package types

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItemSnapshot freezes the purchase-time facts of one order line. It is
// written once at order creation and never re-reads live product rows, so
// later price or name edits cannot alter past orders.
type OrderItemSnapshot struct {
	ProductID          uuid.UUID         `json:"product_id"`
	ProductName        string            `json:"product_name"`
	ProductImage       string            `json:"product_image,omitempty"`
	Quantity           int               `json:"quantity"`
	Price              decimal.Decimal   `json:"price"`
	Subtotal           decimal.Decimal   `json:"subtotal"`
	SelectedVariations map[string]string `json:"selected_variations,omitempty"`
}

// Validate fails loudly on corrupted snapshots instead of letting zero values
// propagate into totals.
func (s OrderItemSnapshot) Validate() error {
	if s.ProductID == uuid.Nil {
		return fmt.Errorf("order item snapshot: missing product id")
	}
	if s.ProductName == "" {
		return fmt.Errorf("order item snapshot: missing product name")
	}
	if s.Quantity <= 0 {
		return fmt.Errorf("order item snapshot: quantity must be positive")
	}
	if s.Price.IsNegative() {
		return fmt.Errorf("order item snapshot: negative price")
	}
	if !s.Subtotal.Equal(s.Price.Mul(decimal.NewFromInt(int64(s.Quantity)))) {
		return fmt.Errorf("order item snapshot: subtotal does not match price x quantity")
	}
	return nil
}

// OrderItemSnapshots is the jsonb-serialized collection stored on an order.
type OrderItemSnapshots []OrderItemSnapshot

// Validate checks every line and the collection as a whole.
func (s OrderItemSnapshots) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("order item snapshots: empty")
	}
	for i, item := range s {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
	}
	return nil
}

// Subtotal sums the frozen line subtotals.
func (s OrderItemSnapshots) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s {
		total = total.Add(item.Subtotal)
	}
	return total
}
