package service

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/punchamoorthee/chargeops/internal/events"
	"github.com/punchamoorthee/chargeops/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const traceCancelled = "CANCELLED"

type CancellationService struct {
	Deps
}

func NewCancellationService(d Deps) *CancellationService {
	return &CancellationService{Deps: d.withDefaults()}
}

// Cancel cancels a charge on behalf of its originator. Paid charges are
// reversed first: a balance payment moves the money back to the payer, a
// card payment is re-authorized and debited from the originator only.
// Every branch either commits all of its writes or none.
func (s *CancellationService) Cancel(ctx context.Context, requesterID, chargeID int64) (charge domain.Charge, err error) {
	ctx, span := startSpan(ctx, "CancellationService.Cancel",
		attribute.Int64("user.id", requesterID), attribute.Int64("charge.id", chargeID))
	defer func() { endSpan(span, err) }()
	var method domain.PaymentMethod
	defer func() {
		s.logOutcome("cancel charge", err,
			zap.Int64("user_id", requesterID), zap.Int64("charge_id", chargeID), zap.String("method", string(method)))
	}()

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return domain.Charge{}, err
	}
	defer tx.Rollback(ctx)

	charge, err = tx.LockCharge(ctx, chargeID)
	if err != nil {
		return domain.Charge{}, err
	}
	method = charge.PaymentMethod
	if charge.OriginatorID != requesterID {
		return domain.Charge{}, fmt.Errorf("charge %d: only the originator can cancel: %w", chargeID, domain.ErrForbidden)
	}
	if charge.IsCancelled() {
		return domain.Charge{}, fmt.Errorf("charge %d: %w", chargeID, domain.ErrInvalidState)
	}

	switch {
	case charge.IsPending():
		charge, err = charge.Cancel("", s.Now())
	case charge.WasPaidByBalance():
		charge, err = s.reverseBalance(ctx, tx, charge)
	case charge.WasPaidByCard():
		charge, err = s.reverseCard(ctx, tx, charge)
	default:
		err = fmt.Errorf("charge %d paid with unknown method %q: %w", chargeID, charge.PaymentMethod, domain.ErrInvalidState)
	}
	if err != nil {
		return domain.Charge{}, err
	}

	if err := tx.UpdateCharge(ctx, charge); err != nil {
		return domain.Charge{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Charge{}, err
	}

	if method != domain.MethodNone {
		settlementsTotal.WithLabelValues("reversal", string(method)).Inc()
	}
	s.afterCommit(ctx, []int64{charge.OriginatorID, charge.RecipientID},
		events.ForCharge(events.ChargeCancelled, charge, *charge.CancelledAt))
	return charge, nil
}

// reverseBalance debits the originator and credits the payer back.
func (s *CancellationService) reverseBalance(ctx context.Context, tx store.Tx, charge domain.Charge) (domain.Charge, error) {
	accounts, err := tx.LockAccounts(ctx, charge.OriginatorID, charge.RecipientID)
	if err != nil {
		return domain.Charge{}, err
	}
	originator, payer := accounts[charge.OriginatorID], accounts[charge.RecipientID]

	if !originator.HasSufficientFunds(charge.Amount) {
		return domain.Charge{}, fmt.Errorf("charge %d: reversal: %w", charge.ID, domain.ErrInsufficientFunds)
	}
	if originator, err = originator.Debit(charge.Amount); err != nil {
		return domain.Charge{}, err
	}
	if payer, err = payer.Credit(charge.Amount); err != nil {
		return domain.Charge{}, err
	}

	now := s.Now()
	cancelled, err := charge.Cancel(domain.TraceBalanceReversal, now)
	if err != nil {
		return domain.Charge{}, err
	}
	originator.UpdatedAt, payer.UpdatedAt = now, now
	if err := tx.UpdateAccount(ctx, originator); err != nil {
		return domain.Charge{}, err
	}
	if err := tx.UpdateAccount(ctx, payer); err != nil {
		return domain.Charge{}, err
	}
	return cancelled, nil
}

// reverseCard asks the authorizer to approve the reversal and then debits
// the originator. The payer is not credited since the card payment never
// debited them.
func (s *CancellationService) reverseCard(ctx context.Context, tx store.Tx, charge domain.Charge) (domain.Charge, error) {
	decision, err := s.Gateway.Authorize(ctx)
	if err != nil {
		return domain.Charge{}, err
	}
	if !decision.Approved {
		return domain.Charge{}, fmt.Errorf("charge %d: reversal: %w", charge.ID, domain.ErrUnauthorized)
	}

	accounts, err := tx.LockAccounts(ctx, charge.OriginatorID)
	if err != nil {
		return domain.Charge{}, err
	}
	originator := accounts[charge.OriginatorID]
	if !originator.HasSufficientFunds(charge.Amount) {
		return domain.Charge{}, fmt.Errorf("charge %d: reversal: %w", charge.ID, domain.ErrInsufficientFunds)
	}
	if originator, err = originator.Debit(charge.Amount); err != nil {
		return domain.Charge{}, err
	}

	now := s.Now()
	cancelled, err := charge.Cancel(decision.Trace(traceCancelled), now)
	if err != nil {
		return domain.Charge{}, err
	}
	originator.UpdatedAt = now
	if err := tx.UpdateAccount(ctx, originator); err != nil {
		return domain.Charge{}, err
	}
	return cancelled, nil
}
