package service

import (
	"context"

	"github.com/punchamoorthee/chargeops/internal/cache"
	"github.com/punchamoorthee/chargeops/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type QueryService struct {
	Deps
}

func NewQueryService(d Deps) *QueryService {
	return &QueryService{Deps: d.withDefaults()}
}

// ListSent returns the charges userID issued, optionally filtered by status.
func (s *QueryService) ListSent(ctx context.Context, userID int64, status domain.ChargeStatus) ([]domain.Charge, error) {
	return s.list(ctx, cache.Sent, userID, status)
}

// ListReceived returns the charges userID owes, optionally filtered by status.
func (s *QueryService) ListReceived(ctx context.Context, userID int64, status domain.ChargeStatus) ([]domain.Charge, error) {
	return s.list(ctx, cache.Received, userID, status)
}

func (s *QueryService) list(ctx context.Context, dir cache.Direction, userID int64, status domain.ChargeStatus) (charges []domain.Charge, err error) {
	ctx, span := startSpan(ctx, "QueryService.list",
		attribute.Int64("user.id", userID), attribute.String("direction", string(dir)), attribute.String("status", string(status)))
	defer func() { endSpan(span, err) }()

	cached, ok, err := s.Cache.Get(ctx, dir, userID, status)
	if err != nil {
		s.Logger.Warn("charge cache read failed", zap.Int64("user_id", userID), zap.Error(err))
	} else if ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}

	if dir == cache.Sent {
		charges, err = s.Store.ListSent(ctx, userID, status)
	} else {
		charges, err = s.Store.ListReceived(ctx, userID, status)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Cache.Put(ctx, dir, userID, status, charges); err != nil {
		s.Logger.Warn("charge cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	return charges, nil
}
