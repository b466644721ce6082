package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agmlabs/storebuilder-backend/pkg/db/models"
	"github.com/agmlabs/storebuilder-backend/pkg/enums"
	pkgerrors "github.com/agmlabs/storebuilder-backend/pkg/errors"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
	"github.com/agmlabs/storebuilder-backend/pkg/monnify"
)

// paymentTTL bounds how long a pending payment stays collectible before the
// sweep expires it.
const paymentTTL = 30 * time.Minute

type initGateway interface {
	InitTransaction(ctx context.Context, params monnify.InitTransactionParams) (*monnify.Transaction, error)
}

// Initiator opens gateway transactions and records the resulting payment rows.
type Initiator interface {
	InitiateForOrder(ctx context.Context, order *models.Order, sellerUserID uuid.UUID) (*models.Payment, error)
}

type initiator struct {
	repo    Repository
	gateway initGateway
	logger  *logger.Logger
	baseURL string
}

// NewInitiator builds the payment initiator.
func NewInitiator(repo Repository, gateway initGateway, logg *logger.Logger, redirectBaseURL string) (Initiator, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &initiator{
		repo:    repo,
		gateway: gateway,
		logger:  logg,
		baseURL: strings.TrimRight(redirectBaseURL, "/"),
	}, nil
}

// InitiateForOrder opens a checkout transaction for the order's frozen total
// and persists the collection attempt. The gateway call happens outside any
// order transaction; a failure here leaves the order intact and paymentless.
func (s *initiator) InitiateForOrder(ctx context.Context, order *models.Order, sellerUserID uuid.UUID) (*models.Payment, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.PaymentStatus == enums.OrderPaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}

	reference := newPaymentReference()
	ctx = s.logger.WithPaymentReference(ctx, reference)

	customerEmail := ""
	if order.CustomerEmail != nil {
		customerEmail = *order.CustomerEmail
	}

	tx, err := s.gateway.InitTransaction(ctx, monnify.InitTransactionParams{
		Amount:           order.Total,
		PaymentReference: reference,
		PaymentDesc:      "Order " + order.OrderNumber,
		CustomerName:     order.CustomerName,
		CustomerEmail:    customerEmail,
		RedirectURL:      s.redirectURL(order.OrderNumber),
	})
	if err != nil {
		s.logger.Error(ctx, "gateway transaction init failed", err)
		return nil, err
	}

	expiresAt := time.Now().UTC().Add(paymentTTL)
	payment := &models.Payment{
		ID:               uuid.New(),
		OrderID:          order.ID,
		UserID:           sellerUserID,
		Amount:           order.Total,
		Currency:         "NGN",
		Status:           enums.PaymentStatusPending,
		PaymentReference: reference,
		ExpiresAt:        &expiresAt,
	}
	if tx.TransactionReference != "" {
		ref := tx.TransactionReference
		payment.MonnifyReference = &ref
	}
	if tx.CheckoutURL != "" {
		u := tx.CheckoutURL
		payment.CheckoutURL = &u
	}
	if tx.AccountNumber != "" {
		n := tx.AccountNumber
		payment.AccountNumber = &n
	}
	if tx.AccountName != "" {
		n := tx.AccountName
		payment.AccountName = &n
	}
	if tx.BankName != "" {
		n := tx.BankName
		payment.BankName = &n
	}
	// The raw gateway response is kept for reconciliation disputes.
	if raw, err := json.Marshal(tx); err == nil {
		payment.Metadata = raw
	}

	created, err := s.repo.Create(ctx, payment)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
	}

	s.logger.Info(ctx, "payment initiated")
	return created, nil
}

func (s *initiator) redirectURL(orderNumber string) string {
	if s.baseURL == "" {
		return ""
	}
	return s.baseURL + "/orders/track/" + orderNumber
}

func newPaymentReference() string {
	return "PAY-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
