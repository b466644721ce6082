package sweep

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/agmlabs/storebuilder-backend/internal/payments"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
	"github.com/agmlabs/storebuilder-backend/pkg/metrics"
)

const (
	paymentExpiryJobName = "payment-expiry"
	expiryBatchSize      = 100
	maxExpiryBatches     = 50
)

// PaymentExpiryJob moves overdue pending payments to expired so abandoned
// checkouts stop looking collectible.
type PaymentExpiryJob struct {
	reconciler payments.Reconciler
	logg       *logger.Logger
	metrics    *metrics.SweepJobMetrics
}

// NewPaymentExpiryJob builds the expiry job.
func NewPaymentExpiryJob(reconciler payments.Reconciler, logg *logger.Logger, m *metrics.SweepJobMetrics) (*PaymentExpiryJob, error) {
	if reconciler == nil {
		return nil, fmt.Errorf("payments reconciler required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &PaymentExpiryJob{reconciler: reconciler, logg: logg, metrics: m}, nil
}

// Name implements Job.
func (j *PaymentExpiryJob) Name() string {
	return paymentExpiryJobName
}

// Run expires stale payments in batches until the backlog drains or the batch
// cap is hit. Batch errors are collected rather than aborting the cycle.
func (j *PaymentExpiryJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC()
	totalExpired := 0
	var errs error

	for batch := 0; batch < maxExpiryBatches; batch++ {
		expired, err := j.reconciler.ExpireStale(ctx, cutoff, expiryBatchSize)
		if err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		totalExpired += expired
		if expired < expiryBatchSize {
			break
		}
	}

	j.metrics.AddExpired(paymentExpiryJobName, totalExpired)
	if totalExpired > 0 {
		ctx = j.logg.WithField(ctx, "expired_count", totalExpired)
		j.logg.Info(ctx, "stale payments expired")
	}
	return errs
}
