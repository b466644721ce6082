package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agmlabs/storebuilder-backend/pkg/db/models"
	"github.com/agmlabs/storebuilder-backend/pkg/enums"
	pkgerrors "github.com/agmlabs/storebuilder-backend/pkg/errors"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
	"github.com/agmlabs/storebuilder-backend/pkg/monnify"
)

type fakeInitGateway struct {
	tx    *monnify.Transaction
	err   error
	calls int
	last  monnify.InitTransactionParams
}

func (f *fakeInitGateway) InitTransaction(ctx context.Context, params monnify.InitTransactionParams) (*monnify.Transaction, error) {
	f.calls++
	f.last = params
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

func newInitiatorFixture(t *testing.T) (*gorm.DB, Initiator, *fakeInitGateway) {
	t.Helper()

	db := setupPaymentsTestDB(t)
	gateway := &fakeInitGateway{
		tx: &monnify.Transaction{
			TransactionReference: "MNFY|INIT|001",
			CheckoutURL:          "https://sandbox.monnify.com/checkout/abc",
			AccountNumber:        "8012345678",
			AccountName:          "AGM - Ada's Fabrics",
			BankName:             "Wema Bank",
		},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	initiator, err := NewInitiator(NewRepository(db), gateway, logg, "https://stores.agm.africa/")
	require.NoError(t, err)
	return db, initiator, gateway
}

func TestInitiateForOrder(t *testing.T) {
	db, initiator, gateway := newInitiatorFixture(t)
	order := seedOrder(t, db)

	before := time.Now().UTC()
	payment, err := initiator.InitiateForOrder(context.Background(), order, uuid.New())
	require.NoError(t, err)

	assert.Equal(t, order.ID, payment.OrderID)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
	assert.True(t, order.Total.Equal(payment.Amount))
	assert.Equal(t, "NGN", payment.Currency)
	assert.True(t, len(payment.PaymentReference) > 4 && payment.PaymentReference[:4] == "PAY-")

	require.NotNil(t, payment.ExpiresAt)
	assert.WithinDuration(t, before.Add(30*time.Minute), *payment.ExpiresAt, 5*time.Second)

	require.NotNil(t, payment.MonnifyReference)
	assert.Equal(t, "MNFY|INIT|001", *payment.MonnifyReference)
	require.NotNil(t, payment.CheckoutURL)
	require.NotNil(t, payment.AccountNumber)
	require.NotNil(t, payment.BankName)

	// The raw gateway response rides along for dispute handling.
	var captured monnify.Transaction
	require.NoError(t, json.Unmarshal(payment.Metadata, &captured))
	assert.Equal(t, "MNFY|INIT|001", captured.TransactionReference)
	assert.Equal(t, "Wema Bank", captured.BankName)

	stored := paymentByID(t, db, payment.ID)
	assert.NotEmpty(t, stored.Metadata)

	assert.Equal(t, "Order "+order.OrderNumber, gateway.last.PaymentDesc)
	assert.Equal(t, "https://stores.agm.africa/orders/track/"+order.OrderNumber, gateway.last.RedirectURL)
}

func TestInitiateForOrderGatewayFailure(t *testing.T) {
	db, initiator, gateway := newInitiatorFixture(t)
	gateway.err = errors.New("gateway unreachable")
	order := seedOrder(t, db)

	_, err := initiator.InitiateForOrder(context.Background(), order, uuid.New())
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Zero(t, count, "no payment row without a gateway transaction")
}

func TestInitiateForOrderAlreadyPaid(t *testing.T) {
	_, initiator, gateway := newInitiatorFixture(t)

	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "AGM-2026-111111",
		PaymentStatus: enums.OrderPaymentStatusPaid,
	}
	_, err := initiator.InitiateForOrder(context.Background(), order, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Zero(t, gateway.calls)
}

func TestInitiateForOrderNilOrder(t *testing.T) {
	_, initiator, _ := newInitiatorFixture(t)

	_, err := initiator.InitiateForOrder(context.Background(), nil, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
