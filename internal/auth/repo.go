package auth

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/agmlabs/storebuilder-backend/pkg/db/models"
)

// UserRepository exposes the account lookups auth needs.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a user repository bound to the provided DB.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
