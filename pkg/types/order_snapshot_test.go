package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func snapshotLine(qty int, price string) OrderItemSnapshot {
	p := decimal.RequireFromString(price)
	return OrderItemSnapshot{
		ProductID:    uuid.New(),
		ProductName:  "Ankara Tote",
		ProductImage: "https://cdn.example.com/tote.jpg",
		Quantity:     qty,
		Price:        p,
		Subtotal:     p.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func TestOrderItemSnapshotValidate(t *testing.T) {
	t.Parallel()

	valid := snapshotLine(2, "1500.00")
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid snapshot rejected: %v", err)
	}

	corrupted := valid
	corrupted.Subtotal = decimal.RequireFromString("1.00")
	if err := corrupted.Validate(); err == nil {
		t.Fatalf("expected subtotal mismatch to fail validation")
	}

	zeroQty := snapshotLine(1, "100.00")
	zeroQty.Quantity = 0
	if err := zeroQty.Validate(); err == nil {
		t.Fatalf("expected zero quantity to fail validation")
	}
}

func TestOrderItemSnapshotsSubtotal(t *testing.T) {
	t.Parallel()

	items := OrderItemSnapshots{
		snapshotLine(2, "1500.00"),
		snapshotLine(1, "250.50"),
	}
	if err := items.Validate(); err != nil {
		t.Fatalf("valid snapshots rejected: %v", err)
	}
	want := decimal.RequireFromString("3250.50")
	if !items.Subtotal().Equal(want) {
		t.Fatalf("subtotal = %s, want %s", items.Subtotal(), want)
	}

	if err := (OrderItemSnapshots{}).Validate(); err == nil {
		t.Fatalf("expected empty snapshot list to fail validation")
	}
}
