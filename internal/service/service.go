// Package service implements the charge gateway's use cases on top of a
// store.Store unit of work.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/chargeops/internal/authorizer"
	"github.com/punchamoorthee/chargeops/internal/cache"
	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/punchamoorthee/chargeops/internal/events"
	"github.com/punchamoorthee/chargeops/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("chargeops/service")

var settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "charge_settlements_total",
	Help: "Committed charge payments and cancellations by method",
}, []string{"operation", "method"})

// Deps are the collaborators shared by every service. Cache, Events and Now
// are optional.
type Deps struct {
	Store   store.Store
	Gateway authorizer.Gateway
	Cache   cache.ChargeCache
	Events  events.Publisher
	Logger  *zap.Logger
	Now     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// afterCommit drops the parties' cached listings and publishes evs. Neither
// step can change the outcome of an operation that already committed.
func (d Deps) afterCommit(ctx context.Context, userIDs []int64, evs ...events.Event) {
	if len(userIDs) > 0 {
		if err := d.Cache.Invalidate(ctx, userIDs...); err != nil {
			d.Logger.Warn("cache invalidation failed", zap.Int64s("user_ids", userIDs), zap.Error(err))
		}
	}
	if len(evs) > 0 {
		if err := d.Events.Publish(ctx, evs...); err != nil {
			d.Logger.Error("event publish failed", zap.String("type", string(evs[0].Type)), zap.Error(err))
		}
	}
}

// logOutcome logs business rejections at Warn and infrastructure failures
// at Error.
func (d Deps) logOutcome(op string, err error, fields ...zap.Field) {
	switch {
	case err == nil:
		d.Logger.Info(op+" succeeded", fields...)
	case isRejection(err):
		d.Logger.Warn(op+" rejected", append(fields, zap.Error(err))...)
	default:
		d.Logger.Error(op+" failed", append(fields, zap.Error(err))...)
	}
}

func isRejection(err error) bool {
	for _, target := range []error{
		domain.ErrNotFound, domain.ErrForbidden, domain.ErrInvalidState, domain.ErrInvalidInput,
		domain.ErrInsufficientFunds, domain.ErrUnauthorized, domain.ErrConflict, domain.ErrUnauthenticated,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
