package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agmlabs/storebuilder-backend/pkg/db/models"
	pkgerrors "github.com/agmlabs/storebuilder-backend/pkg/errors"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
	"github.com/agmlabs/storebuilder-backend/pkg/monnify"
)

const transferAttempts = 3

type transferGateway interface {
	InitiateTransfer(ctx context.Context, params monnify.TransferParams) (*monnify.TransferResult, error)
	ValidateBankAccount(ctx context.Context, accountNumber, bankCode string) (*monnify.AccountDetails, error)
	ListBanks(ctx context.Context) ([]monnify.Bank, error)
}

// AddBankAccountInput captures a new payout destination.
type AddBankAccountInput struct {
	UserID        uuid.UUID
	BankCode      string
	BankName      string
	AccountNumber string
	MakePrimary   bool
}

// PayoutInput captures a seller withdrawal request.
type PayoutInput struct {
	UserID        uuid.UUID
	BankAccountID uuid.UUID
	Amount        decimal.Decimal
	Narration     string
}

// PayoutResult is the gateway outcome of a withdrawal.
type PayoutResult struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
}

// Service handles seller payouts and bank account management.
type Service interface {
	AddBankAccount(ctx context.Context, input AddBankAccountInput) (*models.BankAccount, error)
	ListBankAccounts(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error)
	VerifyBankAccount(ctx context.Context, accountNumber, bankCode string) (*monnify.AccountDetails, error)
	ListBanks(ctx context.Context) ([]monnify.Bank, error)
	InitiatePayout(ctx context.Context, input PayoutInput) (*PayoutResult, error)
}

type service struct {
	repo    Repository
	gateway transferGateway
	logger  *logger.Logger
	// source is the merchant wallet account transfers are drawn from.
	source string
}

// NewService builds the payouts service.
func NewService(repo Repository, gateway transferGateway, logg *logger.Logger, sourceAccount string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, gateway: gateway, logger: logg, source: sourceAccount}, nil
}

// AddBankAccount validates the destination against the gateway before saving
// it, so sellers cannot register unverifiable accounts.
func (s *service) AddBankAccount(ctx context.Context, input AddBankAccountInput) (*models.BankAccount, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.AccountNumber == "" || input.BankCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account number and bank code required")
	}

	details, err := s.gateway.ValidateBankAccount(ctx, input.AccountNumber, input.BankCode)
	if err != nil {
		return nil, err
	}

	if input.MakePrimary {
		if err := s.repo.ClearPrimary(ctx, input.UserID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear primary bank account")
		}
	}

	account := &models.BankAccount{
		ID:            uuid.New(),
		UserID:        input.UserID,
		BankName:      input.BankName,
		BankCode:      input.BankCode,
		AccountNumber: input.AccountNumber,
		AccountName:   details.AccountName,
		IsPrimary:     input.MakePrimary,
	}
	created, err := s.repo.CreateBankAccount(ctx, account)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save bank account")
	}
	return created, nil
}

func (s *service) ListBankAccounts(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error) {
	list, err := s.repo.ListBankAccounts(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bank accounts")
	}
	return list, nil
}

func (s *service) VerifyBankAccount(ctx context.Context, accountNumber, bankCode string) (*monnify.AccountDetails, error) {
	return s.gateway.ValidateBankAccount(ctx, accountNumber, bankCode)
}

func (s *service) ListBanks(ctx context.Context) ([]monnify.Bank, error) {
	return s.gateway.ListBanks(ctx)
}

// InitiatePayout sends a transfer to the seller's bank account. Transient
// gateway failures are retried with backoff under the same transfer reference,
// which Monnify deduplicates.
func (s *service) InitiatePayout(ctx context.Context, input PayoutInput) (*PayoutResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}

	account, err := s.repo.FindBankAccount(ctx, input.BankAccountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bank account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bank account")
	}
	if account.UserID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "bank account does not belong to seller")
	}

	reference := "PYT-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	ctx = s.logger.WithField(ctx, "payout_reference", reference)

	narration := input.Narration
	if narration == "" {
		narration = "AGM store payout"
	}

	var result *monnify.TransferResult
	backoff := retry.WithMaxRetries(transferAttempts-1, retry.NewExponential(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var transferErr error
		result, transferErr = s.gateway.InitiateTransfer(ctx, monnify.TransferParams{
			Amount:        input.Amount,
			Reference:     reference,
			Narration:     narration,
			BankCode:      account.BankCode,
			AccountNumber: account.AccountNumber,
			SourceAccount: s.source,
		})
		if transferErr == nil {
			return nil
		}
		if pkgerrors.IsCode(transferErr, pkgerrors.CodeDependency) {
			s.logger.Warn(ctx, "transfer attempt failed, retrying")
			return retry.RetryableError(transferErr)
		}
		return transferErr
	})
	if err != nil {
		s.logger.Error(ctx, "payout failed", err)
		return nil, err
	}

	s.logger.Info(ctx, "payout initiated")
	return &PayoutResult{
		Reference: result.Reference,
		Status:    result.Status,
		Amount:    result.Amount,
		Fee:       result.TotalFee,
	}, nil
}
