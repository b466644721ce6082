package payouts

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agmlabs/storebuilder-backend/pkg/db/models"
	pkgerrors "github.com/agmlabs/storebuilder-backend/pkg/errors"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
	"github.com/agmlabs/storebuilder-backend/pkg/monnify"
)

func setupPayoutsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS bank_accounts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  bank_name TEXT NOT NULL,
  bank_code TEXT NOT NULL,
  account_number TEXT NOT NULL,
  account_name TEXT NOT NULL,
  is_primary INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

type fakeTransferGateway struct {
	transferResult *monnify.TransferResult
	transferErr    error
	failuresLeft   int
	transferCalls  int
	lastParams     monnify.TransferParams
	references     []string

	accountDetails *monnify.AccountDetails
	validateErr    error

	banks []monnify.Bank
}

func (f *fakeTransferGateway) InitiateTransfer(ctx context.Context, params monnify.TransferParams) (*monnify.TransferResult, error) {
	f.transferCalls++
	f.lastParams = params
	f.references = append(f.references, params.Reference)
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway timeout")
	}
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	return f.transferResult, nil
}

func (f *fakeTransferGateway) ValidateBankAccount(ctx context.Context, accountNumber, bankCode string) (*monnify.AccountDetails, error) {
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return f.accountDetails, nil
}

func (f *fakeTransferGateway) ListBanks(ctx context.Context) ([]monnify.Bank, error) {
	return f.banks, nil
}

type payoutFixture struct {
	db      *gorm.DB
	svc     Service
	gateway *fakeTransferGateway
}

func newPayoutFixture(t *testing.T) *payoutFixture {
	t.Helper()

	db := setupPayoutsTestDB(t)
	gateway := &fakeTransferGateway{
		accountDetails: &monnify.AccountDetails{AccountName: "ADA OBI", AccountNumber: "0123456789"},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	svc, err := NewService(NewRepository(db), gateway, logg, "9876543210")
	require.NoError(t, err)
	return &payoutFixture{db: db, svc: svc, gateway: gateway}
}

func seedBankAccount(t *testing.T, db *gorm.DB, userID uuid.UUID, primary bool) *models.BankAccount {
	t.Helper()

	account := &models.BankAccount{
		ID:            uuid.New(),
		UserID:        userID,
		BankName:      "GTBank",
		BankCode:      "058",
		AccountNumber: "0123456789",
		AccountName:   "ADA OBI",
		IsPrimary:     primary,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func TestAddBankAccount(t *testing.T) {
	f := newPayoutFixture(t)
	userID := uuid.New()

	account, err := f.svc.AddBankAccount(context.Background(), AddBankAccountInput{
		UserID:        userID,
		BankCode:      "058",
		BankName:      "GTBank",
		AccountNumber: "0123456789",
		MakePrimary:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ADA OBI", account.AccountName, "account name comes from gateway validation")
	assert.True(t, account.IsPrimary)

	list, err := f.svc.ListBankAccounts(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestAddBankAccountClearsPreviousPrimary(t *testing.T) {
	f := newPayoutFixture(t)
	userID := uuid.New()

	existing := seedBankAccount(t, f.db, userID, true)

	_, err := f.svc.AddBankAccount(context.Background(), AddBankAccountInput{
		UserID:        userID,
		BankCode:      "044",
		BankName:      "Access Bank",
		AccountNumber: "9988776655",
		MakePrimary:   true,
	})
	require.NoError(t, err)

	var reloaded models.BankAccount
	require.NoError(t, f.db.Where("id = ?", existing.ID).First(&reloaded).Error)
	assert.False(t, reloaded.IsPrimary)
}

func TestAddBankAccountGatewayRejects(t *testing.T) {
	f := newPayoutFixture(t)
	f.gateway.validateErr = pkgerrors.New(pkgerrors.CodeValidation, "invalid account")

	_, err := f.svc.AddBankAccount(context.Background(), AddBankAccountInput{
		UserID:        uuid.New(),
		BankCode:      "058",
		AccountNumber: "0000000000",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	list, err := f.svc.ListBankAccounts(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInitiatePayout(t *testing.T) {
	f := newPayoutFixture(t)
	userID := uuid.New()
	account := seedBankAccount(t, f.db, userID, true)

	f.gateway.transferResult = &monnify.TransferResult{
		Reference: "PYT-abc",
		Status:    "SUCCESS",
		Amount:    decimal.NewFromInt(5000),
		TotalFee:  decimal.NewFromInt(35),
	}

	result, err := f.svc.InitiatePayout(context.Background(), PayoutInput{
		UserID:        userID,
		BankAccountID: account.ID,
		Amount:        decimal.NewFromInt(5000),
	})
	require.NoError(t, err)
	assert.Equal(t, "PYT-abc", result.Reference)
	assert.Equal(t, "SUCCESS", result.Status)
	assert.True(t, decimal.NewFromInt(35).Equal(result.Fee))

	assert.Equal(t, "058", f.gateway.lastParams.BankCode)
	assert.Equal(t, "0123456789", f.gateway.lastParams.AccountNumber)
	assert.Equal(t, "9876543210", f.gateway.lastParams.SourceAccount)
	assert.Equal(t, "AGM store payout", f.gateway.lastParams.Narration)
}

func TestInitiatePayoutRetriesTransientFailure(t *testing.T) {
	f := newPayoutFixture(t)
	userID := uuid.New()
	account := seedBankAccount(t, f.db, userID, true)

	f.gateway.failuresLeft = 1
	f.gateway.transferResult = &monnify.TransferResult{Reference: "PYT-retry", Status: "SUCCESS"}

	result, err := f.svc.InitiatePayout(context.Background(), PayoutInput{
		UserID:        userID,
		BankAccountID: account.ID,
		Amount:        decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, "PYT-retry", result.Reference)
	require.Equal(t, 2, f.gateway.transferCalls)
	// Retries reuse one reference so the gateway can deduplicate.
	assert.Equal(t, f.gateway.references[0], f.gateway.references[1])
}

func TestInitiatePayoutDoesNotRetryRejection(t *testing.T) {
	f := newPayoutFixture(t)
	userID := uuid.New()
	account := seedBankAccount(t, f.db, userID, true)

	f.gateway.transferErr = pkgerrors.New(pkgerrors.CodeValidation, "insufficient wallet balance")

	_, err := f.svc.InitiatePayout(context.Background(), PayoutInput{
		UserID:        userID,
		BankAccountID: account.ID,
		Amount:        decimal.NewFromInt(1000),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, 1, f.gateway.transferCalls)
}

func TestInitiatePayoutForeignAccount(t *testing.T) {
	f := newPayoutFixture(t)
	account := seedBankAccount(t, f.db, uuid.New(), true)

	_, err := f.svc.InitiatePayout(context.Background(), PayoutInput{
		UserID:        uuid.New(),
		BankAccountID: account.ID,
		Amount:        decimal.NewFromInt(1000),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	assert.Zero(t, f.gateway.transferCalls)
}

func TestInitiatePayoutValidation(t *testing.T) {
	f := newPayoutFixture(t)

	_, err := f.svc.InitiatePayout(context.Background(), PayoutInput{
		UserID:        uuid.New(),
		BankAccountID: uuid.New(),
		Amount:        decimal.Zero,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.InitiatePayout(context.Background(), PayoutInput{
		UserID:        uuid.New(),
		BankAccountID: uuid.New(),
		Amount:        decimal.NewFromInt(1000),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
