package models

import (
	"time"

	"github.com/google/uuid"
)

// BankAccount is a seller payout destination, verified against the gateway
// before first use.
type BankAccount struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	BankName      string    `gorm:"column:bank_name;not null"`
	BankCode      string    `gorm:"column:bank_code;not null"`
	AccountNumber string    `gorm:"column:account_number;not null"`
	AccountName   string    `gorm:"column:account_name;not null"`
	IsPrimary     bool      `gorm:"column:is_primary;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
