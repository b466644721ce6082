package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agmlabs/storebuilder-backend/internal/orders"
	"github.com/agmlabs/storebuilder-backend/internal/stores"
	"github.com/agmlabs/storebuilder-backend/pkg/db/models"
	"github.com/agmlabs/storebuilder-backend/pkg/enums"
	pkgerrors "github.com/agmlabs/storebuilder-backend/pkg/errors"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
	"github.com/agmlabs/storebuilder-backend/pkg/monnify"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type queryGateway interface {
	QueryTransaction(ctx context.Context, paymentReference string) (*monnify.TransactionStatus, error)
}

type paidNotifier interface {
	PaymentReceived(ctx context.Context, order *models.Order, store *models.Store)
}

// WebhookEvent is the subset of a Monnify notification the reconciler needs.
type WebhookEvent struct {
	PaymentReference     string
	TransactionReference string
	PaymentStatus        string
	PaymentMethod        string
	PaidOn               string
	AmountPaid           string
}

// Reconciler converges payment state from the three reconciliation paths:
// gateway webhooks, buyer-initiated verification, and the expiry sweep. All
// paths apply outcomes through the same compare-and-set, so whichever arrives
// first wins and the rest become no-ops.
type Reconciler interface {
	HandleWebhook(ctx context.Context, event WebhookEvent) error
	Verify(ctx context.Context, reference string) (*models.Payment, error)
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type reconciler struct {
	repo       Repository
	ordersRepo orders.Repository
	storesRepo stores.Repository
	tx         txRunner
	gateway    queryGateway
	notifier   paidNotifier
	logger     *logger.Logger
}

// NewReconciler builds the payment reconciler. The stores repository and
// notifier are optional; without them paid outcomes are not announced.
func NewReconciler(repo Repository, ordersRepo orders.Repository, storesRepo stores.Repository, tx txRunner, gateway queryGateway, notifier paidNotifier, logg *logger.Logger) (Reconciler, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &reconciler{
		repo:       repo,
		ordersRepo: ordersRepo,
		storesRepo: storesRepo,
		tx:         tx,
		gateway:    gateway,
		notifier:   notifier,
		logger:     logg,
	}, nil
}

// HandleWebhook applies a gateway notification. Events for unknown references
// are logged and swallowed so the gateway gets its 200 and stops retrying.
func (s *reconciler) HandleWebhook(ctx context.Context, event WebhookEvent) error {
	reference := event.PaymentReference
	if reference == "" {
		reference = event.TransactionReference
	}
	if reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook event missing reference")
	}
	ctx = s.logger.WithPaymentReference(ctx, reference)

	payment, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn(ctx, "webhook for unknown payment reference")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	status := monnify.MapStatus(event.PaymentStatus)
	if status == enums.PaymentStatusPending {
		s.logger.Info(ctx, "webhook carries non-terminal status, ignoring")
		return nil
	}

	var paidAt *time.Time
	if status == enums.PaymentStatusPaid {
		paidAt = parsePaidOn(event.PaidOn)
	}
	method := parseMethod(event.PaymentMethod)

	return s.applyOutcome(ctx, payment, status, paidAt, method)
}

// Verify returns the authoritative state of a payment. Terminal payments are
// returned as stored without touching the gateway. For pending payments the
// gateway is queried; a gateway failure degrades to the stored pending state
// rather than surfacing an error to the buyer.
func (s *reconciler) Verify(ctx context.Context, reference string) (*models.Payment, error) {
	ctx = s.logger.WithPaymentReference(ctx, reference)

	payment, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	if payment.Status.IsTerminal() {
		return payment, nil
	}

	result, err := s.gateway.QueryTransaction(ctx, payment.PaymentReference)
	if err != nil {
		s.logger.Warn(ctx, "gateway query failed during verification, returning stored state")
		return payment, nil
	}

	status := monnify.MapStatus(result.PaymentStatus)
	if status == enums.PaymentStatusPending {
		return payment, nil
	}

	var paidAt *time.Time
	if status == enums.PaymentStatusPaid {
		paidAt = parsePaidOn(result.PaidOn)
	}
	method := parseMethod(result.PaymentMethod)

	if err := s.applyOutcome(ctx, payment, status, paidAt, method); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, payment.ID)
}

// ExpireStale moves overdue pending payments to expired and fails their
// orders. Payments that settled between the query and the update are skipped
// by the compare-and-set.
func (s *reconciler) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.repo.FindExpiredPending(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stale payments")
	}

	expired := 0
	for i := range stale {
		payment := stale[i]
		pctx := s.logger.WithPaymentReference(ctx, payment.PaymentReference)
		if err := s.applyOutcome(pctx, &payment, enums.PaymentStatusExpired, nil, nil); err != nil {
			s.logger.Error(pctx, "expiring payment failed", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// applyOutcome transitions the payment and mirrors the result onto the owning
// order inside one transaction. A lost compare-and-set means another path
// already settled the payment; that is success, not an error.
func (s *reconciler) applyOutcome(ctx context.Context, payment *models.Payment, status enums.PaymentStatus, paidAt *time.Time, method *enums.PaymentMethod) error {
	if payment.Status.IsTerminal() {
		return nil
	}
	if status == enums.PaymentStatusPaid && paidAt == nil {
		now := time.Now().UTC()
		paidAt = &now
	}

	var settledOrder *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		applied, err := repo.ApplyStatus(ctx, payment.ID, status, paidAt, method)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply payment status")
		}
		if !applied {
			s.logger.Info(ctx, "payment already settled, skipping")
			return nil
		}

		order, err := s.updateOrder(ctx, tx, payment.OrderID, status)
		if err != nil {
			return err
		}
		settledOrder = order

		s.logger.Info(ctx, "payment reconciled to "+string(status))
		return nil
	})
	if err != nil {
		return err
	}

	if status == enums.PaymentStatusPaid && settledOrder != nil {
		s.notifyPaid(ctx, settledOrder)
	}
	return nil
}

// updateOrder mirrors the payment outcome onto the order and returns the order
// when its payment status actually moved. A failed or expired attempt only
// marks the order failed while no sibling payment has succeeded.
func (s *reconciler) updateOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status enums.PaymentStatus) (*models.Order, error) {
	ordersRepo := s.ordersRepo.WithTx(tx)

	order, err := ordersRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for payment")
	}
	if order.PaymentStatus == enums.OrderPaymentStatusPaid {
		return nil, nil
	}

	target := status.OrderPaymentStatus()
	if target == order.PaymentStatus {
		return nil, nil
	}
	if err := ordersRepo.UpdatePaymentStatus(ctx, order.ID, target); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment status")
	}
	order.PaymentStatus = target
	return order, nil
}

// notifyPaid tells the seller an order settled. Delivery is best-effort and
// must never fail reconciliation.
func (s *reconciler) notifyPaid(ctx context.Context, order *models.Order) {
	if s.notifier == nil || s.storesRepo == nil {
		return
	}
	store, err := s.storesRepo.FindByID(ctx, order.StoreID)
	if err != nil {
		s.logger.Warn(ctx, "store lookup for payment notification failed")
		return
	}
	s.notifier.PaymentReceived(ctx, order, store)
}

func parsePaidOn(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05.0", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parseMethod(raw string) *enums.PaymentMethod {
	var method enums.PaymentMethod
	switch raw {
	case "ACCOUNT_TRANSFER":
		method = enums.PaymentMethodBankTransfer
	case "CARD":
		method = enums.PaymentMethodCard
	case "USSD":
		method = enums.PaymentMethodUSSD
	default:
		return nil
	}
	return &method
}
