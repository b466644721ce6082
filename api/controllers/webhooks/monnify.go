package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/agmlabs/storebuilder-backend/api/responses"
	"github.com/agmlabs/storebuilder-backend/internal/payments"
	pkgerrors "github.com/agmlabs/storebuilder-backend/pkg/errors"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
)

type signatureVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

type monnifyEventData struct {
	PaymentReference     string      `json:"paymentReference"`
	TransactionReference string      `json:"transactionReference"`
	PaymentStatus        string      `json:"paymentStatus"`
	PaymentMethod        string      `json:"paymentMethod"`
	PaidOn               string      `json:"paidOn"`
	AmountPaid           json.Number `json:"amountPaid"`
}

type monnifyEvent struct {
	EventType string           `json:"eventType"`
	EventData monnifyEventData `json:"eventData"`
}

// MonnifyWebhook ingests gateway transaction notifications. Anything past the
// signature check answers 200 so the gateway stops retrying; reconciliation
// failures are surfaced through logs, not the response.
func MonnifyWebhook(rec payments.Reconciler, verifier signatureVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if rec == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get("monnify-signature"))
		if signature == "" {
			signature = strings.TrimSpace(r.Header.Get("x-signature"))
		}
		if !verifier.VerifySignature(payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		// Past the signature check the gateway always gets its 200; a payload
		// we cannot use is logged, not bounced, so Monnify stops retrying it.
		var event monnifyEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			if logg != nil {
				logg.Warn(ctx, "webhook.monnify.malformed: "+err.Error())
			}
			responses.WriteSuccess(w, nil)
			return
		}

		if logg != nil {
			logCtx := logg.WithFields(ctx, map[string]any{
				"event_type":        event.EventType,
				"payment_reference": event.EventData.PaymentReference,
			})
			logg.Info(logCtx, "webhook.monnify.received")
		}

		err = rec.HandleWebhook(ctx, payments.WebhookEvent{
			PaymentReference:     event.EventData.PaymentReference,
			TransactionReference: event.EventData.TransactionReference,
			PaymentStatus:        event.EventData.PaymentStatus,
			PaymentMethod:        event.EventData.PaymentMethod,
			PaidOn:               event.EventData.PaidOn,
			AmountPaid:           event.EventData.AmountPaid.String(),
		})
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				if logg != nil {
					logg.Warn(ctx, "webhook.monnify.unusable: "+err.Error())
				}
				responses.WriteSuccess(w, nil)
				return
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
