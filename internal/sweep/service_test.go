package sweep

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agmlabs/storebuilder-backend/pkg/logger"
	"github.com/agmlabs/storebuilder-backend/pkg/metrics"
)

type fakeJob struct {
	name string
	runs int
	err  error
}

func (j *fakeJob) Name() string { return j.name }

func (j *fakeJob) Run(ctx context.Context) error {
	j.runs++
	return j.err
}

type fakeLock struct {
	locked   bool
	acquires int
	releases int
	err      error
}

func (l *fakeLock) Acquire(ctx context.Context) (bool, error) {
	l.acquires++
	if l.err != nil {
		return false, l.err
	}
	return !l.locked, nil
}

func (l *fakeLock) Release(ctx context.Context) error {
	l.releases++
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newSweepService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewSweepJobMetrics(nil),
		Interval: time.Minute,
	})
	require.NoError(t, err)
	return svc
}

func TestRunCycleExecutesJobs(t *testing.T) {
	lock := &fakeLock{}
	first := &fakeJob{name: "first"}
	second := &fakeJob{name: "second"}
	svc := newSweepService(t, lock, first, second)

	require.NoError(t, svc.runCycle(context.Background()))

	assert.Equal(t, 1, first.runs)
	assert.Equal(t, 1, second.runs)
	assert.Equal(t, 1, lock.acquires)
	assert.Equal(t, 1, lock.releases)
}

func TestRunCycleSkipsWhenLocked(t *testing.T) {
	lock := &fakeLock{locked: true}
	job := &fakeJob{name: "payment-expiry"}
	svc := newSweepService(t, lock, job)

	require.NoError(t, svc.runCycle(context.Background()))

	assert.Zero(t, job.runs)
	assert.Zero(t, lock.releases, "lock never held, nothing to release")
}

func TestRunCycleContinuesPastJobFailure(t *testing.T) {
	lock := &fakeLock{}
	failing := &fakeJob{name: "failing", err: errors.New("boom")}
	healthy := &fakeJob{name: "healthy"}
	svc := newSweepService(t, lock, failing, healthy)

	require.NoError(t, svc.runCycle(context.Background()))

	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, healthy.runs)
	assert.Equal(t, 1, lock.releases)
}

func TestRunCycleLockError(t *testing.T) {
	lock := &fakeLock{err: errors.New("redis down")}
	job := &fakeJob{name: "payment-expiry"}
	svc := newSweepService(t, lock, job)

	require.Error(t, svc.runCycle(context.Background()))
	assert.Zero(t, job.runs)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	lock := &fakeLock{}
	job := &fakeJob{name: "payment-expiry"}
	svc := newSweepService(t, lock, job)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep service did not stop after cancel")
	}

	// The immediate cycle before the ticker fires ran exactly once.
	assert.Equal(t, 1, job.runs)
}

func TestRegistrySkipsNilJobs(t *testing.T) {
	registry := NewRegistry(nil, &fakeJob{name: "real"})
	registry.Register(nil)
	registry.Register(&fakeJob{name: "late"})

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "real", jobs[0].Name())
	assert.Equal(t, "late", jobs[1].Name())
}
