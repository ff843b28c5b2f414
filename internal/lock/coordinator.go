package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/p2p-lanes/MuOS-API/internal/domain"
	"github.com/p2p-lanes/MuOS-API/internal/pkg/id"
)

// LeaseStore is the storage backend for lock leases. TryAcquire must be
// atomic (a conditional write, not read-then-write) and return
// domain.ErrConflict when the lease is held by someone else.
type LeaseStore interface {
	TryAcquire(ctx context.Context, key, owner string, lease time.Duration) error
	Release(ctx context.Context, key, owner string) error
}

// Coordinator hands out mutually-exclusive critical sections keyed by
// arbitrary strings. Multi-key acquisition always proceeds in sorted key
// order — two operations contending on overlapping key sets therefore
// serialize instead of deadlocking.
type Coordinator struct {
	store          LeaseStore
	lease          time.Duration
	acquireTimeout time.Duration
}

func NewCoordinator(store LeaseStore, lease, acquireTimeout time.Duration) *Coordinator {
	return &Coordinator{store: store, lease: lease, acquireTimeout: acquireTimeout}
}

// AcquireAll takes every key (deduplicated, sorted) and returns a release
// function. On contention it retries with backoff until the acquire
// timeout, then gives back everything taken so far and returns
// ErrConflict — no partial hold survives a failed acquisition.
func (c *Coordinator) AcquireAll(ctx context.Context, keys ...string) (func(), error) {
	ordered := dedupeSorted(keys)
	owner := id.New()

	held := make([]string, 0, len(ordered))
	release := func() {
		// Reverse order, best effort: a lease we fail to drop expires on its own.
		for i := len(held) - 1; i >= 0; i-- {
			if err := c.store.Release(context.WithoutCancel(ctx), held[i], owner); err != nil {
				slog.Warn("failed to release lock", "key", held[i], "err", err)
			}
		}
	}

	for _, key := range ordered {
		if err := c.acquireOne(ctx, key, owner); err != nil {
			release()
			return nil, err
		}
		held = append(held, key)
	}
	return release, nil
}

func (c *Coordinator) acquireOne(ctx context.Context, key, owner string) error {
	deadline := time.Now().Add(c.acquireTimeout)
	backoff := 25 * time.Millisecond

	for {
		err := c.store.TryAcquire(ctx, key, owner, c.lease)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for lock %s: %w", key, domain.ErrConflict)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 250*time.Millisecond {
			backoff *= 2
		}
	}
}

func dedupeSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
