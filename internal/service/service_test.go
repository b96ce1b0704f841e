package service

import (
	"context"
	"errors"
	"testing"

	"github.com/punchamoorthee/chargeops/internal/cache"
	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/punchamoorthee/chargeops/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errRedisDown = errors.New("redis: connection refused")

// brokenCache fails every call.
type brokenCache struct{}

func (brokenCache) Get(context.Context, cache.Direction, int64, domain.ChargeStatus) ([]domain.Charge, bool, error) {
	return nil, false, errRedisDown
}

func (brokenCache) Put(context.Context, cache.Direction, int64, domain.ChargeStatus, []domain.Charge) error {
	return errRedisDown
}

func (brokenCache) Invalidate(context.Context, ...int64) error { return errRedisDown }

type failingPublisher struct {
	attempts int
}

func (p *failingPublisher) Publish(context.Context, ...events.Event) error {
	p.attempts++
	return errors.New("kafka: leader not available")
}

func (p *failingPublisher) Close() error { return nil }

func observed(f *fixture) *observer.ObservedLogs {
	core, logs := observer.New(zapcore.DebugLevel)
	f.deps.Logger = zap.New(core)
	return logs
}

func TestListingFallsBackToStoreWhenCacheFails(t *testing.T) {
	f := newFixture(t)
	f.deps.Cache = brokenCache{}
	logs := observed(f)
	a := f.user(t, 1, "0")
	b := f.user(t, 2, "0")
	c := f.charge(t, a, b, "10")
	ctx := context.Background()
	q := NewQueryService(f.deps)

	sent, err := q.ListSent(ctx, a.ID, "")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, c.ID, sent[0].ID)

	received, err := q.ListReceived(ctx, b.ID, domain.StatusPending)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, c.ID, received[0].ID)

	assert.Equal(t, 2, logs.FilterMessage("charge cache read failed").Len())
	assert.Equal(t, 2, logs.FilterMessage("charge cache write failed").Len())
	assert.NotZero(t, logs.FilterMessage("cache invalidation failed").Len())
}

func TestPaymentCommitsWhenPublishFails(t *testing.T) {
	f := newFixture(t)
	pub := &failingPublisher{}
	f.deps.Events = pub
	logs := observed(f)
	a := f.user(t, 1, "0")
	b := f.user(t, 2, "50")
	c := f.charge(t, a, b, "20")

	got, err := NewPaymentService(f.deps).PayWithBalance(context.Background(), b.ID, c.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPaid, got.Status)
	assert.Equal(t, got, f.stored(t, c.ID))
	f.assertBalance(t, a.ID, "20")
	f.assertBalance(t, b.ID, "30")
	assert.Equal(t, 2, pub.attempts)

	failed := logs.FilterMessage("event publish failed").All()
	require.Len(t, failed, 2)
	assert.Equal(t, string(events.ChargePaid), failed[1].ContextMap()["type"])
	assert.Equal(t, 1, logs.FilterMessage("balance payment succeeded").Len())
}

func TestRejectedCancelLogsPaymentMethod(t *testing.T) {
	f := newFixture(t)
	logs := observed(f)
	a := f.user(t, 1, "0")
	b := f.user(t, 2, "50")
	c := f.charge(t, a, b, "20")
	ctx := context.Background()

	_, err := NewPaymentService(f.deps).PayWithBalance(ctx, b.ID, c.ID)
	require.NoError(t, err)

	_, err = NewCancellationService(f.deps).Cancel(ctx, b.ID, c.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	rejected := logs.FilterMessage("cancel charge rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zapcore.WarnLevel, rejected[0].Level)
	assert.Equal(t, string(domain.MethodBalance), rejected[0].ContextMap()["method"])
}
