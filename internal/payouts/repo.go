package payouts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agmlabs/storebuilder-backend/pkg/db/models"
)

// Repository exposes bank account persistence for payouts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBankAccount(ctx context.Context, account *models.BankAccount) (*models.BankAccount, error)
	ListBankAccounts(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error)
	FindBankAccount(ctx context.Context, id uuid.UUID) (*models.BankAccount, error)
	ClearPrimary(ctx context.Context, userID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBankAccount(ctx context.Context, account *models.BankAccount) (*models.BankAccount, error) {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

func (r *repository) ListBankAccounts(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error) {
	var list []models.BankAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_primary DESC, created_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) FindBankAccount(ctx context.Context, id uuid.UUID) (*models.BankAccount, error) {
	var account models.BankAccount
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) ClearPrimary(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.BankAccount{}).
		Where("user_id = ?", userID).
		Update("is_primary", false).Error
}
