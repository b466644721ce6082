package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agmlabs/storebuilder-backend/api/middleware"
	"github.com/agmlabs/storebuilder-backend/api/responses"
	"github.com/agmlabs/storebuilder-backend/api/validators"
	"github.com/agmlabs/storebuilder-backend/internal/payouts"
	pkgerrors "github.com/agmlabs/storebuilder-backend/pkg/errors"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
)

type initiatePayoutRequest struct {
	BankAccountID uuid.UUID       `json:"bank_account_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Narration     string          `json:"narration" validate:"max=140"`
}

// InitiatePayout sends seller earnings to a saved bank account.
func InitiatePayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body initiatePayoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.InitiatePayout(r.Context(), payouts.PayoutInput{
			UserID:        userID,
			BankAccountID: body.BankAccountID,
			Amount:        body.Amount,
			Narration:     body.Narration,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
