package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedisStore struct {
	values map[string]string
	setErr error
	getErr error
	delErr error
	dels   int
}

func newFakeRedisStore() *fakeRedisStore {
	return &fakeRedisStore{values: map[string]string{}}
}

func (f *fakeRedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, exists := f.values[key]; exists {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedisStore) Get(ctx context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	value, exists := f.values[key]
	if !exists {
		return "", goredis.Nil
	}
	return value, nil
}

func (f *fakeRedisStore) Del(ctx context.Context, keys ...string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.dels++
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisLockAcquireRelease(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "sweep-worker:test", time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	locked, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, locked)

	// Second holder cannot acquire while the first owns the key.
	other, err := NewRedisLock(store, "sweep-worker:test", time.Minute)
	require.NoError(t, err)
	locked, err = other.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, lock.Release(ctx))
	assert.Empty(t, store.values)

	locked, err = other.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestRedisLockReleaseOnlyOwn(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "sweep-worker:test", time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	locked, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, locked)

	// Another instance stole the key after our TTL lapsed.
	store.values["sweep-worker:test"] = "someone-else"

	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "someone-else", store.values["sweep-worker:test"])
	assert.Zero(t, store.dels)
}

func TestRedisLockReleaseWithoutAcquire(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "sweep-worker:test", time.Minute)
	require.NoError(t, err)

	require.NoError(t, lock.Release(context.Background()))
	assert.Zero(t, store.dels)
}

func TestRedisLockReleaseExpiredKey(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "sweep-worker:test", time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	locked, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, locked)

	delete(store.values, "sweep-worker:test")
	require.NoError(t, lock.Release(ctx))
}

func TestRedisLockAcquireError(t *testing.T) {
	store := newFakeRedisStore()
	store.setErr = errors.New("redis down")
	lock, err := NewRedisLock(store, "sweep-worker:test", time.Minute)
	require.NoError(t, err)

	_, err = lock.Acquire(context.Background())
	require.Error(t, err)
}

func TestNewRedisLockValidation(t *testing.T) {
	_, err := NewRedisLock(nil, "key", time.Minute)
	require.Error(t, err)

	_, err = NewRedisLock(newFakeRedisStore(), "", time.Minute)
	require.Error(t, err)
}
