package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agmlabs/storebuilder-backend/pkg/enums"
	"github.com/agmlabs/storebuilder-backend/pkg/types"
)

// Order is a buyer's committed purchase against one store. Financial fields
// and the item snapshot are frozen at creation and never mutated.
type Order struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID         uuid.UUID                `gorm:"column:store_id;type:uuid;not null;index"`
	OrderNumber     string                   `gorm:"column:order_number;not null;uniqueIndex"`
	Status          enums.OrderStatus        `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus   enums.OrderPaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	CustomerName    string                   `gorm:"column:customer_name;not null"`
	CustomerPhone   string                   `gorm:"column:customer_phone;not null"`
	CustomerEmail   *string                  `gorm:"column:customer_email"`
	CustomerAddress *types.CustomerAddress   `gorm:"column:customer_address;type:jsonb;serializer:json"`
	Items           types.OrderItemSnapshots `gorm:"column:items;type:jsonb;serializer:json;not null"`
	Subtotal        decimal.Decimal          `gorm:"column:subtotal;type:numeric(12,2);not null"`
	AGMFee          decimal.Decimal          `gorm:"column:agm_fee;type:numeric(12,2);not null"`
	Total           decimal.Decimal          `gorm:"column:total;type:numeric(12,2);not null"`
	Payments        []Payment                `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// AfterFind fails loudly when a stored snapshot no longer holds its
// purchase-time invariants, instead of letting corrupted financials propagate.
func (o *Order) AfterFind(tx *gorm.DB) error {
	if err := o.Items.Validate(); err != nil {
		return fmt.Errorf("order %s: %w", o.OrderNumber, err)
	}
	return nil
}
