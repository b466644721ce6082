package monnify

import (
	"strings"

	"github.com/agmlabs/storebuilder-backend/pkg/enums"
)

// Gateway transaction statuses as reported by Monnify.
const (
	GatewayStatusPaid      = "PAID"
	GatewayStatusFailed    = "FAILED"
	GatewayStatusCancelled = "CANCELLED"
	GatewayStatusExpired   = "EXPIRED"
	GatewayStatusPending   = "PENDING"
)

// MapStatus translates a gateway transaction status into the local payment
// status. Unknown statuses map to pending so a later query can settle them.
func MapStatus(gatewayStatus string) enums.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(gatewayStatus)) {
	case GatewayStatusPaid:
		return enums.PaymentStatusPaid
	case GatewayStatusFailed, GatewayStatusCancelled:
		return enums.PaymentStatusFailed
	case GatewayStatusExpired:
		return enums.PaymentStatusExpired
	default:
		return enums.PaymentStatusPending
	}
}
