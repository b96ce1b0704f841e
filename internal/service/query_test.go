package service

import (
	"context"
	"sync"
	"testing"

	"github.com/punchamoorthee/chargeops/internal/cache"
	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cacheKey struct {
	dir    cache.Direction
	user   int64
	status domain.ChargeStatus
}

// mapCache is an in-process ChargeCache that counts hits.
type mapCache struct {
	mu      sync.Mutex
	entries map[cacheKey][]domain.Charge
	hits    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[cacheKey][]domain.Charge)}
}

func (m *mapCache) Get(_ context.Context, dir cache.Direction, userID int64, status domain.ChargeStatus) ([]domain.Charge, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.entries[cacheKey{dir, userID, status}]
	if ok {
		m.hits++
	}
	return c, ok, nil
}

func (m *mapCache) Put(_ context.Context, dir cache.Direction, userID int64, status domain.ChargeStatus, charges []domain.Charge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[cacheKey{dir, userID, status}] = charges
	return nil
}

func (m *mapCache) Invalidate(_ context.Context, userIDs ...int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		for _, id := range userIDs {
			if k.user == id {
				delete(m.entries, k)
			}
		}
	}
	return nil
}

func TestListSentAndReceived(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, 1, "0")
	b := f.user(t, 2, "1000")
	c1 := f.charge(t, a, b, "10")
	c2 := f.charge(t, a, b, "20")
	c3 := f.charge(t, b, a, "30")
	ctx := context.Background()

	_, err := NewPaymentService(f.deps).PayWithBalance(ctx, b.ID, c2.ID)
	require.NoError(t, err)

	q := NewQueryService(f.deps)
	ids := func(cs []domain.Charge) []int64 {
		out := []int64{}
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return out
	}

	sent, err := q.ListSent(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{c1.ID, c2.ID}, ids(sent))

	paid, err := q.ListSent(ctx, a.ID, domain.StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, []int64{c2.ID}, ids(paid))

	received, err := q.ListReceived(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{c3.ID}, ids(received))

	none, err := q.ListReceived(ctx, a.ID, domain.StatusCancelled)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListingCacheInvalidatedOnMutation(t *testing.T) {
	f := newFixture(t)
	mc := newMapCache()
	f.deps.Cache = mc
	a := f.user(t, 1, "0")
	b := f.user(t, 2, "1000")
	c := f.charge(t, a, b, "10")
	ctx := context.Background()
	q := NewQueryService(f.deps)

	pending, err := q.ListReceived(ctx, b.ID, domain.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = q.ListReceived(ctx, b.ID, domain.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, mc.hits)

	_, err = NewPaymentService(f.deps).PayWithBalance(ctx, b.ID, c.ID)
	require.NoError(t, err)

	pending, err = q.ListReceived(ctx, b.ID, domain.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, 1, mc.hits)
}
