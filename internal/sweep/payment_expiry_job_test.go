package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agmlabs/storebuilder-backend/internal/payments"
	"github.com/agmlabs/storebuilder-backend/pkg/db/models"
	"github.com/agmlabs/storebuilder-backend/pkg/metrics"
)

type fakeReconciler struct {
	batches []int
	err     error
	calls   int
}

func (f *fakeReconciler) HandleWebhook(ctx context.Context, event payments.WebhookEvent) error {
	return nil
}

func (f *fakeReconciler) Verify(ctx context.Context, reference string) (*models.Payment, error) {
	return nil, nil
}

func (f *fakeReconciler) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if len(f.batches) == 0 {
		return 0, nil
	}
	expired := f.batches[0]
	f.batches = f.batches[1:]
	return expired, nil
}

func newExpiryJob(t *testing.T, rec payments.Reconciler) *PaymentExpiryJob {
	t.Helper()

	job, err := NewPaymentExpiryJob(rec, testLogger(), metrics.NewSweepJobMetrics(nil))
	require.NoError(t, err)
	return job
}

func TestPaymentExpiryJobDrainsBacklog(t *testing.T) {
	// Two full batches, then a partial one ends the loop.
	rec := &fakeReconciler{batches: []int{expiryBatchSize, expiryBatchSize, 7}}
	job := newExpiryJob(t, rec)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, rec.calls)
}

func TestPaymentExpiryJobStopsAfterPartialBatch(t *testing.T) {
	rec := &fakeReconciler{batches: []int{3}}
	job := newExpiryJob(t, rec)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, rec.calls)
}

func TestPaymentExpiryJobEmptyBacklog(t *testing.T) {
	rec := &fakeReconciler{}
	job := newExpiryJob(t, rec)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, rec.calls)
}

func TestPaymentExpiryJobSurfacesError(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("db down")}
	job := newExpiryJob(t, rec)

	require.Error(t, job.Run(context.Background()))
	assert.Equal(t, 1, rec.calls)
}

func TestPaymentExpiryJobName(t *testing.T) {
	job := newExpiryJob(t, &fakeReconciler{})
	assert.Equal(t, "payment-expiry", job.Name())
}
