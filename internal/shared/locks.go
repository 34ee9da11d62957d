package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout indicates the bounded wait for an account lock expired
// before the lock could be acquired. No state was mutated.
var ErrLockTimeout = errors.New("shared: timed out waiting for account lock")

// AccountLockKey builds the redis key guarding one account's write cycle.
func AccountLockKey(accountID uuid.UUID) string {
	return fmt.Sprintf("bank:account:%s:lock", accountID)
}

// releaseScript deletes the lock only if this holder still owns it, so an
// expired-and-reacquired lock is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AccountLock serializes writers per account ahead of the optimistic version
// check. Correctness does not depend on it; it exists to keep compare-and-swap
// retries rare under contention.
type AccountLock struct {
	client     *redis.Client
	ttl        time.Duration
	maxWait    time.Duration
	retryDelay time.Duration
}

// NewAccountLock constructs a lock manager. ttl bounds how long a crashed
// holder can block others; maxWait bounds how long Acquire polls.
func NewAccountLock(client *redis.Client, ttl, maxWait time.Duration) *AccountLock {
	return &AccountLock{
		client:     client,
		ttl:        ttl,
		maxWait:    maxWait,
		retryDelay: 25 * time.Millisecond,
	}
}

// Acquire takes the lock for one account, polling up to the configured wait.
// It returns a release function; on timeout it returns ErrLockTimeout.
func (l *AccountLock) Acquire(ctx context.Context, accountID uuid.UUID) (func(), error) {
	key := AccountLockKey(accountID)
	token := uuid.NewString()

	deadline := time.Now().Add(l.maxWait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("shared: acquire lock %s: %w", key, err)
		}
		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}
			return release, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}
