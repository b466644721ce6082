package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agmlabs/storebuilder-backend/pkg/db/models"
	"github.com/agmlabs/storebuilder-backend/pkg/enums"
	"github.com/agmlabs/storebuilder-backend/pkg/pagination"
)

// ListFilters narrow the seller order list.
type ListFilters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.OrderPaymentStatus
	Query         string
	From          *time.Time
	To            *time.Time
}

// Stats aggregates seller order counts and revenue.
type Stats struct {
	TotalOrders     int64           `json:"total_orders"`
	PendingOrders   int64           `json:"pending_orders"`
	ConfirmedOrders int64           `json:"confirmed_orders"`
	FulfilledOrders int64           `json:"fulfilled_orders"`
	CancelledOrders int64           `json:"cancelled_orders"`
	PaidOrders      int64           `json:"paid_orders"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
}

// Repository exposes order persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Order, int64, error)
	StatsByStore(ctx context.Context, storeID uuid.UUID) (*Stats, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.OrderPaymentStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("order_number = ?", strings.ToUpper(strings.TrimSpace(orderNumber))).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByStore(ctx context.Context, storeID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Order, int64, error) {
	params = params.Normalize()

	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("store_id = ?", storeID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filters.PaymentStatus)
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"LOWER(order_number) LIKE ? OR LOWER(customer_name) LIKE ? OR customer_phone LIKE ?",
			like, like, "%"+q+"%",
		)
	}
	if filters.From != nil {
		query = query.Where("created_at >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("created_at <= ?", *filters.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.Order
	err := query.
		Order("created_at DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *repository) StatsByStore(ctx context.Context, storeID uuid.UUID) (*Stats, error) {
	type row struct {
		Status        enums.OrderStatus
		PaymentStatus enums.OrderPaymentStatus
		Count         int64
		Revenue       decimal.Decimal
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, payment_status, COUNT(*) AS count, COALESCE(SUM(total), 0) AS revenue").
		Where("store_id = ?", storeID).
		Group("status, payment_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalRevenue: decimal.Zero}
	for _, r := range rows {
		stats.TotalOrders += r.Count
		switch r.Status {
		case enums.OrderStatusPending:
			stats.PendingOrders += r.Count
		case enums.OrderStatusConfirmed:
			stats.ConfirmedOrders += r.Count
		case enums.OrderStatusFulfilled:
			stats.FulfilledOrders += r.Count
		case enums.OrderStatusCancelled:
			stats.CancelledOrders += r.Count
		}
		if r.PaymentStatus == enums.OrderPaymentStatusPaid {
			stats.PaidOrders += r.Count
			stats.TotalRevenue = stats.TotalRevenue.Add(r.Revenue)
		}
	}
	return stats, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.OrderPaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("payment_status", status).Error
}
