package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T, ttl, maxWait time.Duration) (*AccountLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewAccountLock(client, ttl, maxWait), mr
}

func TestAccountLockAcquireRelease(t *testing.T) {
	lock, mr := newTestLock(t, time.Second, 100*time.Millisecond)
	accountID := uuid.New()

	release, err := lock.Acquire(context.Background(), accountID)
	require.NoError(t, err)
	require.True(t, mr.Exists(AccountLockKey(accountID)))

	release()
	require.False(t, mr.Exists(AccountLockKey(accountID)))
}

func TestAccountLockContentionTimesOut(t *testing.T) {
	lock, _ := newTestLock(t, time.Second, 80*time.Millisecond)
	accountID := uuid.New()

	release, err := lock.Acquire(context.Background(), accountID)
	require.NoError(t, err)
	defer release()

	_, err = lock.Acquire(context.Background(), accountID)
	require.ErrorIs(t, err, ErrLockTimeout)
}

func TestAccountLockReacquireAfterRelease(t *testing.T) {
	lock, _ := newTestLock(t, time.Second, 100*time.Millisecond)
	accountID := uuid.New()

	release, err := lock.Acquire(context.Background(), accountID)
	require.NoError(t, err)
	release()

	release2, err := lock.Acquire(context.Background(), accountID)
	require.NoError(t, err)
	release2()
}

func TestAccountLockReleaseOnlyOwnToken(t *testing.T) {
	lock, mr := newTestLock(t, 50*time.Millisecond, 500*time.Millisecond)
	accountID := uuid.New()

	staleRelease, err := lock.Acquire(context.Background(), accountID)
	require.NoError(t, err)

	// Expire the first holder's lock and let a second holder take over.
	mr.FastForward(100 * time.Millisecond)
	release2, err := lock.Acquire(context.Background(), accountID)
	require.NoError(t, err)
	defer release2()

	// The stale release must not delete the new holder's lock.
	staleRelease()
	require.True(t, mr.Exists(AccountLockKey(accountID)))
}

func TestAccountLockIsPerAccount(t *testing.T) {
	lock, _ := newTestLock(t, time.Second, 100*time.Millisecond)

	releaseA, err := lock.Acquire(context.Background(), uuid.New())
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := lock.Acquire(context.Background(), uuid.New())
	require.NoError(t, err)
	defer releaseB()
}

func TestAccountLockHonoursContextCancel(t *testing.T) {
	lock, _ := newTestLock(t, time.Second, 5*time.Second)
	accountID := uuid.New()

	release, err := lock.Acquire(context.Background(), accountID)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err = lock.Acquire(ctx, accountID)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
