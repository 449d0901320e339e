package service

import (
	"context"
	"time"

	"idwallet/internal/consent/metrics"
	dErrors "idwallet/pkg/domain-errors"
	platformsync "idwallet/pkg/platform/sync"
)

// RequestTx serializes every mutation of one consent request, so lazy expiry,
// the decision and their ledger entries for that request never interleave.
// Implementations may wrap a database transaction or, in memory, a sharded lock.
type RequestTx interface {
	RunInTx(ctx context.Context, key string, fn func(store Store) error) error
}

// defaultTxTimeout is the maximum time to wait for a request's lock.
const defaultTxTimeout = 5 * time.Second

type shardedRequestTx struct {
	mu      *platformsync.ShardedMutex
	store   Store
	timeout time.Duration
	metrics *metrics.Metrics
}

// RunInTx runs fn holding the shard for key. Cancellation is only observed
// before fn starts; once running, fn completes.
func (t *shardedRequestTx) RunInTx(ctx context.Context, key string, fn func(store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	lockStart := time.Now()
	t.mu.Lock(key)
	if t.metrics != nil {
		t.metrics.ObserveShardLockWait(time.Since(lockStart).Seconds())
	}
	defer t.mu.Unlock(key)

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(t.store)
}
