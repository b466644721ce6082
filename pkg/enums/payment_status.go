package enums

import "fmt"

// PaymentStatus tracks a single collection attempt against the gateway.
// A payment leaves pending exactly once; terminal states never change again.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusExpired  PaymentStatus = "expired"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusExpired,
	PaymentStatusRefunded,
}

// IsValid reports whether the value matches the canonical payment status enum.
func (s PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status can no longer change through
// reconciliation. Refunded is only reachable from paid via manual action.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusFailed, PaymentStatusExpired, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// OrderPaymentStatus maps the payment outcome onto the owning order.
// Expired collection attempts surface as failed on the order.
func (s PaymentStatus) OrderPaymentStatus() OrderPaymentStatus {
	switch s {
	case PaymentStatusPaid:
		return OrderPaymentStatusPaid
	case PaymentStatusFailed, PaymentStatusExpired:
		return OrderPaymentStatusFailed
	case PaymentStatusRefunded:
		return OrderPaymentStatusRefunded
	default:
		return OrderPaymentStatusPending
	}
}

// ParsePaymentStatus converts the raw string to PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
