package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agmlabs/storebuilder-backend/pkg/enums"
)

// Payment is one collection attempt for an order. An order may accumulate
// several over time; the newest row is authoritative until one reaches paid.
type Payment struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	UserID           uuid.UUID            `gorm:"column:user_id;type:uuid;not null"`
	Amount           decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency         string               `gorm:"column:currency;not null;default:'NGN'"`
	Status           enums.PaymentStatus  `gorm:"column:status;not null;default:'pending'"`
	Method           *enums.PaymentMethod `gorm:"column:payment_method"`
	PaymentReference string               `gorm:"column:payment_reference;not null;uniqueIndex"`
	MonnifyReference *string              `gorm:"column:monnify_reference;uniqueIndex"`
	AccountNumber    *string              `gorm:"column:account_number"`
	AccountName      *string              `gorm:"column:account_name"`
	BankName         *string              `gorm:"column:bank_name"`
	CheckoutURL      *string              `gorm:"column:checkout_url"`
	PaidAt           *time.Time           `gorm:"column:paid_at"`
	ExpiresAt        *time.Time           `gorm:"column:expires_at;index"`
	Metadata         json.RawMessage      `gorm:"column:metadata;type:jsonb"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
