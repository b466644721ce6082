package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agmlabs/storebuilder-backend/api/middleware"
	"github.com/agmlabs/storebuilder-backend/api/responses"
	"github.com/agmlabs/storebuilder-backend/api/validators"
	"github.com/agmlabs/storebuilder-backend/internal/payments"
	"github.com/agmlabs/storebuilder-backend/internal/payouts"
	"github.com/agmlabs/storebuilder-backend/pkg/enums"
	pkgerrors "github.com/agmlabs/storebuilder-backend/pkg/errors"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
)

type verifyBankAccountRequest struct {
	AccountNumber string `json:"account_number" validate:"required,len=10,numeric"`
	BankCode      string `json:"bank_code" validate:"required,min=3,max=6"`
}

type addBankAccountRequest struct {
	AccountNumber string `json:"account_number" validate:"required,len=10,numeric"`
	BankCode      string `json:"bank_code" validate:"required,min=3,max=6"`
	BankName      string `json:"bank_name" validate:"required,min=2,max=120"`
	MakePrimary   bool   `json:"make_primary"`
}

// VerifyPayment answers the buyer poll after checkout. Terminal payments are
// answered from local state; pending ones trigger a gateway query.
func VerifyPayment(rec payments.Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rec == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		reference := strings.TrimSpace(chi.URLParam(r, "reference"))
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required"))
			return
		}

		payment, err := rec.Verify(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"verified": payment.Status == enums.PaymentStatusPaid,
			"status":   payment.Status,
			"payment":  payment,
		})
	}
}

// ListBanks proxies the gateway bank directory for checkout and payout forms.
func ListBanks(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		banks, err := svc.ListBanks(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, banks)
	}
}

// VerifyBankAccountLookup resolves an account name before the seller saves it.
func VerifyBankAccountLookup(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		var body verifyBankAccountRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		details, err := svc.VerifyBankAccount(r.Context(), body.AccountNumber, body.BankCode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, details)
	}
}

// AddBankAccount saves a gateway-validated payout destination.
func AddBankAccount(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var body addBankAccountRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.AddBankAccount(r.Context(), payouts.AddBankAccountInput{
			UserID:        userID,
			BankCode:      body.BankCode,
			BankName:      body.BankName,
			AccountNumber: body.AccountNumber,
			MakePrimary:   body.MakePrimary,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, account)
	}
}

// ListBankAccounts returns the seller's saved payout destinations.
func ListBankAccounts(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		accounts, err := svc.ListBankAccounts(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, accounts)
	}
}
