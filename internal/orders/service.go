package orders

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agmlabs/storebuilder-backend/internal/inventory"
	"github.com/agmlabs/storebuilder-backend/internal/products"
	"github.com/agmlabs/storebuilder-backend/internal/stores"
	"github.com/agmlabs/storebuilder-backend/pkg/db"
	"github.com/agmlabs/storebuilder-backend/pkg/db/models"
	"github.com/agmlabs/storebuilder-backend/pkg/enums"
	pkgerrors "github.com/agmlabs/storebuilder-backend/pkg/errors"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
	"github.com/agmlabs/storebuilder-backend/pkg/pagination"
	"github.com/agmlabs/storebuilder-backend/pkg/types"
)

// orderNumberAttempts bounds retries when a generated order number collides.
const orderNumberAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentInitiator opens a gateway collection attempt for a committed order.
type PaymentInitiator interface {
	InitiateForOrder(ctx context.Context, order *models.Order, sellerUserID uuid.UUID) (*models.Payment, error)
}

// Notifier delivers order lifecycle notifications. Implementations must not
// block placement; failures are logged, never returned.
type Notifier interface {
	OrderPlaced(ctx context.Context, order *models.Order, store *models.Store)
	OrderStatusChanged(ctx context.Context, order *models.Order, previous enums.OrderStatus)
}

// PlaceInput is a buyer's checkout submission against a storefront.
type PlaceInput struct {
	StoreUsername   string
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   *string
	CustomerAddress *types.CustomerAddress
	Items           []PlaceItemInput
	// ClaimedTotal is the total the buyer's client displayed. When present it
	// is cross-checked against the server-computed total and mismatches reject
	// the order.
	ClaimedTotal *decimal.Decimal
}

// PlaceItemInput is one requested cart line.
type PlaceItemInput struct {
	ProductID          uuid.UUID
	Quantity           int
	SelectedVariations map[string]string
}

// PlaceResult carries the committed order and, when gateway initialization
// succeeded, its first payment.
type PlaceResult struct {
	Order   *models.Order
	Payment *models.Payment
}

// Service defines order operations.
type Service interface {
	Place(ctx context.Context, input PlaceInput) (*PlaceResult, error)
	Track(ctx context.Context, orderNumber string) (*models.Order, error)
	Get(ctx context.Context, sellerUserID, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, sellerUserID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Order, pagination.Meta, error)
	Stats(ctx context.Context, sellerUserID uuid.UUID) (*Stats, error)
	UpdateStatus(ctx context.Context, sellerUserID, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error)
	RetryPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
}

type service struct {
	repo      Repository
	stores    stores.Repository
	products  products.Repository
	ledger    inventory.Ledger
	tx        txRunner
	payments  PaymentInitiator
	notifier  Notifier
	logger    *logger.Logger
	feePct    decimal.Decimal
}

// NewService builds the orders service with the required dependencies.
func NewService(
	repo Repository,
	storesRepo stores.Repository,
	productsRepo products.Repository,
	ledger inventory.Ledger,
	tx txRunner,
	payments PaymentInitiator,
	notifier Notifier,
	logg *logger.Logger,
	feePercent float64,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if storesRepo == nil {
		return nil, fmt.Errorf("stores repository required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment initiator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		stores:   storesRepo,
		products: productsRepo,
		ledger:   ledger,
		tx:       tx,
		payments: payments,
		notifier: notifier,
		logger:   logg,
		feePct:   decimal.NewFromFloat(feePercent),
	}, nil
}

// Place commits a buyer's order. The order row, its immutable snapshot, and
// every stock decrement land in one transaction; the gateway call happens
// after commit so a gateway outage can never leave stock decremented without
// an order, nor an order without its stock.
func (s *service) Place(ctx context.Context, input PlaceInput) (*PlaceResult, error) {
	if err := validatePlaceInput(input); err != nil {
		return nil, err
	}

	store, err := s.stores.FindByUsername(ctx, input.StoreUsername)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	if !store.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "store is not accepting orders")
	}

	snapshots, err := s.buildSnapshots(ctx, store.ID, input.Items)
	if err != nil {
		return nil, err
	}
	if err := snapshots.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "item snapshots")
	}

	subtotal := snapshots.Subtotal()
	fee := subtotal.Mul(s.feePct).Div(decimal.NewFromInt(100)).Round(2)
	total := subtotal

	if input.ClaimedTotal != nil && !input.ClaimedTotal.Equal(total) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total mismatch").WithDetails(map[string]any{
			"expected_total": total.String(),
			"claimed_total":  input.ClaimedTotal.String(),
		})
	}

	order := &models.Order{
		StoreID:         store.ID,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.OrderPaymentStatusPending,
		CustomerName:    input.CustomerName,
		CustomerPhone:   input.CustomerPhone,
		CustomerEmail:   input.CustomerEmail,
		CustomerAddress: input.CustomerAddress,
		Items:           snapshots,
		Subtotal:        subtotal,
		AGMFee:          fee,
		Total:           total,
	}

	if err := s.commitOrder(ctx, order, input.Items); err != nil {
		return nil, err
	}

	ctx = s.logger.WithOrderNumber(ctx, order.OrderNumber)
	s.logger.Info(ctx, "order placed")

	if s.notifier != nil {
		s.notifier.OrderPlaced(ctx, order, store)
	}

	payment, err := s.payments.InitiateForOrder(ctx, order, store.UserID)
	if err != nil {
		// The order stands. The buyer retries collection through the
		// payment retry endpoint.
		s.logger.Warn(ctx, "payment initiation failed after order commit")
		return &PlaceResult{Order: order}, nil
	}

	return &PlaceResult{Order: order, Payment: payment}, nil
}

// commitOrder creates the order and decrements stock atomically, retrying the
// whole transaction on order number collisions.
func (s *service) commitOrder(ctx context.Context, order *models.Order, items []PlaceItemInput) error {
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.ID = uuid.New()
		order.OrderNumber = newOrderNumber(time.Now().UTC())

		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if _, err := repo.Create(ctx, order); err != nil {
				return err
			}
			for _, item := range items {
				if err := s.ledger.TryDecrement(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			return nil
		}
		if db.IsUniqueViolation(err, "order_number") && attempt < orderNumberAttempts-1 {
			continue
		}
		if appErr := pkgerrors.As(err); appErr != nil {
			return appErr
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return pkgerrors.New(pkgerrors.CodeDependency, "could not allocate order number")
}

func (s *service) buildSnapshots(ctx context.Context, storeID uuid.UUID, items []PlaceItemInput) (types.OrderItemSnapshots, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	loaded, err := s.products.FindByIDs(ctx, storeID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(loaded))
	for _, p := range loaded {
		byID[p.ID] = p
	}

	snapshots := make(types.OrderItemSnapshots, 0, len(items))
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{
				"product_id": item.ProductID.String(),
			})
		}
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product is not available").WithDetails(map[string]any{
				"product_id": item.ProductID.String(),
			})
		}
		if err := validateVariations(product, item.SelectedVariations); err != nil {
			return nil, err
		}

		image := ""
		if product.ImageURL != nil {
			image = *product.ImageURL
		}
		snapshots = append(snapshots, types.OrderItemSnapshot{
			ProductID:          product.ID,
			ProductName:        product.Name,
			ProductImage:       image,
			Quantity:           item.Quantity,
			Price:              product.Price,
			Subtotal:           product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
			SelectedVariations: item.SelectedVariations,
		})
	}
	return snapshots, nil
}

// Track returns an order by its public number, for buyers holding the number.
func (s *service) Track(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// Get returns an order for its seller, enforcing store ownership.
func (s *service) Get(ctx context.Context, sellerUserID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := s.authorizeSeller(ctx, sellerUserID, order.StoreID); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) List(ctx context.Context, sellerUserID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Order, pagination.Meta, error) {
	sellerStores, err := s.stores.FindByUserID(ctx, sellerUserID)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller stores")
	}
	if len(sellerStores) == 0 {
		return nil, pagination.NewMeta(params, 0), nil
	}

	// Sellers currently have one storefront each.
	list, total, err := s.repo.ListByStore(ctx, sellerStores[0].ID, params, filters)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, pagination.NewMeta(params, total), nil
}

func (s *service) Stats(ctx context.Context, sellerUserID uuid.UUID) (*Stats, error) {
	sellerStores, err := s.stores.FindByUserID(ctx, sellerUserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller stores")
	}
	if len(sellerStores) == 0 {
		return &Stats{TotalRevenue: decimal.Zero}, nil
	}

	stats, err := s.repo.StatsByStore(ctx, sellerStores[0].ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order stats")
	}
	return stats, nil
}

// UpdateStatus applies a seller-initiated fulfillment transition. Cancelled
// orders keep their stock decrements; restock is a deliberate manual action.
func (s *service) UpdateStatus(ctx context.Context, sellerUserID, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := s.authorizeSeller(ctx, sellerUserID, order.StoreID); err != nil {
		return nil, err
	}

	if order.Status == target {
		return order, nil
	}
	if !order.Status.CanTransitionTo(target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").WithDetails(map[string]any{
			"current": string(order.Status),
			"target":  string(target),
		})
	}

	if err := s.repo.UpdateStatus(ctx, order.ID, target); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	previous := order.Status
	order.Status = target

	ctx = s.logger.WithOrderNumber(ctx, order.OrderNumber)
	s.logger.Info(ctx, "order status updated to "+string(target))

	if s.notifier != nil {
		s.notifier.OrderStatusChanged(ctx, order, previous)
	}
	return order, nil
}

// RetryPayment opens a fresh collection attempt for an order whose earlier
// attempts failed or expired.
func (s *service) RetryPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.PaymentStatus == enums.OrderPaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
	}
	for _, payment := range order.Payments {
		if payment.Status == enums.PaymentStatusPending {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a pending payment already exists")
		}
	}

	store, err := s.stores.FindByID(ctx, order.StoreID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	return s.payments.InitiateForOrder(ctx, order, store.UserID)
}

func (s *service) authorizeSeller(ctx context.Context, sellerUserID, storeID uuid.UUID) error {
	store, err := s.stores.FindByID(ctx, storeID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	if store.UserID != sellerUserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to seller")
	}
	return nil
}

func validatePlaceInput(input PlaceInput) error {
	if input.StoreUsername == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "store username required")
	}
	if input.CustomerName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}
	if input.CustomerPhone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer phone required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	seen := make(map[uuid.UUID]bool, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item product id required")
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if seen[item.ProductID] {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in order")
		}
		seen[item.ProductID] = true
	}
	return nil
}

func validateVariations(product models.Product, selected map[string]string) error {
	if len(selected) == 0 {
		return nil
	}
	for name, value := range selected {
		options, ok := product.Variations[name]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown variation").WithDetails(map[string]any{
				"product_id": product.ID.String(),
				"variation":  name,
			})
		}
		valid := false
		for _, option := range options {
			if option == value {
				valid = true
				break
			}
		}
		if !valid {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid variation option").WithDetails(map[string]any{
				"product_id": product.ID.String(),
				"variation":  name,
				"option":     value,
			})
		}
	}
	return nil
}

// newOrderNumber builds the public order number: AGM-<year>-<6 random digits>.
func newOrderNumber(now time.Time) string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	n := binary.BigEndian.Uint32(buf[:]) % 1_000_000
	return fmt.Sprintf("AGM-%d-%06d", now.Year(), n)
}
