package service

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/punchamoorthee/chargeops/internal/events"
	"github.com/punchamoorthee/chargeops/internal/taxid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type IssuanceService struct {
	Deps
}

func NewIssuanceService(d Deps) *IssuanceService {
	return &IssuanceService{Deps: d.withDefaults()}
}

// Create issues a PENDING charge from originatorID against the user
// identified by recipientTaxID. No balance is touched.
func (s *IssuanceService) Create(ctx context.Context, originatorID int64, recipientTaxID string, amount decimal.Decimal, description string) (charge domain.Charge, err error) {
	ctx, span := startSpan(ctx, "IssuanceService.Create", attribute.Int64("user.id", originatorID))
	defer func() { endSpan(span, err) }()
	defer func() {
		s.logOutcome("create charge", err,
			zap.Int64("user_id", originatorID), zap.Int64("charge_id", charge.ID), zap.String("amount", amount.String()))
	}()

	cpf, err := taxid.Parse(recipientTaxID)
	if err != nil {
		return domain.Charge{}, fmt.Errorf("%w: recipient tax id: %v", domain.ErrInvalidInput, err)
	}

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return domain.Charge{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.UserByID(ctx, originatorID); err != nil {
		return domain.Charge{}, err
	}
	recipient, err := tx.UserByTaxID(ctx, cpf)
	if err != nil {
		return domain.Charge{}, err
	}

	now := s.Now()
	charge, err = domain.NewCharge(originatorID, recipient.ID, amount, description, now)
	if err != nil {
		return domain.Charge{}, err
	}
	if charge, err = tx.InsertCharge(ctx, charge); err != nil {
		return domain.Charge{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Charge{}, err
	}

	span.SetAttributes(attribute.Int64("charge.id", charge.ID))
	s.afterCommit(ctx, []int64{charge.OriginatorID, charge.RecipientID}, events.ForCharge(events.ChargeCreated, charge, now))
	return charge, nil
}
