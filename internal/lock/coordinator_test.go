package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/p2p-lanes/MuOS-API/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLeaseStore is an in-memory LeaseStore with the same conditional
// semantics as the DynamoDB one: acquire succeeds only if the key is
// free or its lease expired.
type memLeaseStore struct {
	mu      sync.Mutex
	leases  map[string]memLease
	acquire []string // successful acquisitions, in order
}

type memLease struct {
	owner   string
	expires time.Time
}

func newMemLeaseStore() *memLeaseStore {
	return &memLeaseStore{leases: make(map[string]memLease)}
}

func (s *memLeaseStore) TryAcquire(ctx context.Context, key, owner string, lease time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.leases[key]; ok && time.Now().Before(cur.expires) {
		return domain.ErrConflict
	}
	s.leases[key] = memLease{owner: owner, expires: time.Now().Add(lease)}
	s.acquire = append(s.acquire, key)
	return nil
}

func (s *memLeaseStore) Release(ctx context.Context, key, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.leases[key]; ok && cur.owner == owner {
		delete(s.leases, key)
	}
	return nil
}

func (s *memLeaseStore) held(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.leases[key]
	return ok && time.Now().Before(cur.expires)
}

func TestAcquireAll_TakesKeysInSortedOrder(t *testing.T) {
	store := newMemLeaseStore()
	c := NewCoordinator(store, time.Second, 100*time.Millisecond)

	release, err := c.AcquireAll(context.Background(), "cluster#b", "citizen#z", "citizen#a")
	require.NoError(t, err)
	defer release()

	// "citizen#" sorts before "cluster#".
	assert.Equal(t, []string{"citizen#a", "citizen#z", "cluster#b"}, store.acquire)
}

func TestAcquireAll_DeduplicatesKeys(t *testing.T) {
	store := newMemLeaseStore()
	c := NewCoordinator(store, time.Second, 100*time.Millisecond)

	release, err := c.AcquireAll(context.Background(), "k1", "k1", "k2")
	require.NoError(t, err)
	defer release()

	assert.Equal(t, []string{"k1", "k2"}, store.acquire)
}

func TestAcquireAll_ReleaseFreesEverything(t *testing.T) {
	store := newMemLeaseStore()
	c := NewCoordinator(store, time.Second, 100*time.Millisecond)

	release, err := c.AcquireAll(context.Background(), "k1", "k2")
	require.NoError(t, err)
	assert.True(t, store.held("k1"))
	assert.True(t, store.held("k2"))

	release()
	assert.False(t, store.held("k1"))
	assert.False(t, store.held("k2"))
}

func TestAcquireAll_ContendedKey_TimesOutWithConflict(t *testing.T) {
	store := newMemLeaseStore()
	c := NewCoordinator(store, time.Minute, 80*time.Millisecond)

	holdRelease, err := c.AcquireAll(context.Background(), "k2")
	require.NoError(t, err)
	defer holdRelease()

	_, err = c.AcquireAll(context.Background(), "k1", "k2")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)
	// The partial hold on k1 must have been given back.
	assert.False(t, store.held("k1"))
}

func TestAcquireAll_ExpiredLeaseIsReclaimable(t *testing.T) {
	store := newMemLeaseStore()
	c := NewCoordinator(store, 30*time.Millisecond, 500*time.Millisecond)

	// First holder never releases; its lease just runs out.
	_, err := c.AcquireAll(context.Background(), "k1")
	require.NoError(t, err)

	release, err := c.AcquireAll(context.Background(), "k1")
	require.NoError(t, err)
	release()
}

func TestAcquireAll_ContextCanceled(t *testing.T) {
	store := newMemLeaseStore()
	c := NewCoordinator(store, time.Minute, 10*time.Second)

	hold, err := c.AcquireAll(context.Background(), "k1")
	require.NoError(t, err)
	defer hold()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err = c.AcquireAll(ctx, "k1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquireAll_OverlappingSets_Serialize(t *testing.T) {
	store := newMemLeaseStore()
	c := NewCoordinator(store, time.Minute, 2*time.Second)

	var mu sync.Mutex
	inSection := 0
	maxInSection := 0

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := c.AcquireAll(context.Background(), "shared", "other")
			if err != nil {
				return
			}
			mu.Lock()
			inSection++
			if inSection > maxInSection {
				maxInSection = inSection
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			inSection--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInSection, "critical sections on the same keys must not overlap")
}
