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

const traceApproved = "APPROVED"

// CardPayment carries the card details for PayWithCard. Only the last four
// digits of Number are kept.
type CardPayment struct {
	ChargeID int64
	Number   string
	Expiry   string
	CVV      string
}

type PaymentService struct {
	Deps
}

func NewPaymentService(d Deps) *PaymentService {
	return &PaymentService{Deps: d.withDefaults()}
}

// lockPayable locks the charge and checks that payerID may settle it.
func lockPayable(ctx context.Context, tx store.Tx, payerID, chargeID int64) (domain.Charge, error) {
	charge, err := tx.LockCharge(ctx, chargeID)
	if err != nil {
		return domain.Charge{}, err
	}
	if !charge.IsPending() {
		return domain.Charge{}, fmt.Errorf("charge %d is %s: %w", chargeID, charge.Status, domain.ErrInvalidState)
	}
	if charge.RecipientID != payerID {
		return domain.Charge{}, fmt.Errorf("charge %d: only the recipient can pay: %w", chargeID, domain.ErrForbidden)
	}
	return charge, nil
}

// PayWithBalance moves the charge amount from the payer's balance to the
// originator's and marks the charge PAID.
func (s *PaymentService) PayWithBalance(ctx context.Context, payerID, chargeID int64) (charge domain.Charge, err error) {
	ctx, span := startSpan(ctx, "PaymentService.PayWithBalance",
		attribute.Int64("user.id", payerID), attribute.Int64("charge.id", chargeID))
	defer func() { endSpan(span, err) }()
	defer func() {
		s.logOutcome("balance payment", err,
			zap.Int64("user_id", payerID), zap.Int64("charge_id", chargeID), zap.String("method", string(domain.MethodBalance)))
	}()

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return domain.Charge{}, err
	}
	defer tx.Rollback(ctx)

	charge, err = lockPayable(ctx, tx, payerID, chargeID)
	if err != nil {
		return domain.Charge{}, err
	}

	accounts, err := tx.LockAccounts(ctx, charge.RecipientID, charge.OriginatorID)
	if err != nil {
		return domain.Charge{}, err
	}
	payer, originator := accounts[charge.RecipientID], accounts[charge.OriginatorID]

	if !payer.HasSufficientFunds(charge.Amount) {
		return domain.Charge{}, fmt.Errorf("charge %d: %w", chargeID, domain.ErrInsufficientFunds)
	}
	if payer, err = payer.Debit(charge.Amount); err != nil {
		return domain.Charge{}, err
	}
	if originator, err = originator.Credit(charge.Amount); err != nil {
		return domain.Charge{}, err
	}

	now := s.Now()
	if charge, err = charge.MarkPaid(domain.MethodBalance, "", domain.TraceBalancePayment, now); err != nil {
		return domain.Charge{}, err
	}
	payer.UpdatedAt, originator.UpdatedAt = now, now

	if err := tx.UpdateAccount(ctx, payer); err != nil {
		return domain.Charge{}, err
	}
	if err := tx.UpdateAccount(ctx, originator); err != nil {
		return domain.Charge{}, err
	}
	if err := tx.UpdateCharge(ctx, charge); err != nil {
		return domain.Charge{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Charge{}, err
	}

	settlementsTotal.WithLabelValues("payment", string(domain.MethodBalance)).Inc()
	s.afterCommit(ctx, []int64{charge.OriginatorID, charge.RecipientID}, events.ForCharge(events.ChargePaid, charge, now))
	return charge, nil
}

// PayWithCard settles the charge with an externally authorized card. The
// originator is credited; the payer's account is never touched.
func (s *PaymentService) PayWithCard(ctx context.Context, payerID int64, req CardPayment) (charge domain.Charge, err error) {
	ctx, span := startSpan(ctx, "PaymentService.PayWithCard",
		attribute.Int64("user.id", payerID), attribute.Int64("charge.id", req.ChargeID))
	defer func() { endSpan(span, err) }()
	defer func() {
		s.logOutcome("card payment", err,
			zap.Int64("user_id", payerID), zap.Int64("charge_id", req.ChargeID), zap.String("method", string(domain.MethodCard)))
	}()

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return domain.Charge{}, err
	}
	defer tx.Rollback(ctx)

	charge, err = lockPayable(ctx, tx, payerID, req.ChargeID)
	if err != nil {
		return domain.Charge{}, err
	}
	lastFour, err := domain.CardLastFour(req.Number)
	if err != nil {
		return domain.Charge{}, err
	}

	decision, err := s.Gateway.Authorize(ctx)
	if err != nil {
		return domain.Charge{}, err
	}
	span.SetAttributes(attribute.Bool("authorizer.approved", decision.Approved))
	if !decision.Approved {
		return domain.Charge{}, fmt.Errorf("charge %d: %w", req.ChargeID, domain.ErrUnauthorized)
	}

	accounts, err := tx.LockAccounts(ctx, charge.OriginatorID)
	if err != nil {
		return domain.Charge{}, err
	}
	originator, err := accounts[charge.OriginatorID].Credit(charge.Amount)
	if err != nil {
		return domain.Charge{}, err
	}

	now := s.Now()
	if charge, err = charge.MarkPaid(domain.MethodCard, lastFour, decision.Trace(traceApproved), now); err != nil {
		return domain.Charge{}, err
	}
	originator.UpdatedAt = now

	if err := tx.UpdateAccount(ctx, originator); err != nil {
		return domain.Charge{}, err
	}
	if err := tx.UpdateCharge(ctx, charge); err != nil {
		return domain.Charge{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Charge{}, err
	}

	settlementsTotal.WithLabelValues("payment", string(domain.MethodCard)).Inc()
	s.afterCommit(ctx, []int64{charge.OriginatorID, charge.RecipientID}, events.ForCharge(events.ChargePaid, charge, now))
	return charge, nil
}
