package service

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/punchamoorthee/chargeops/internal/events"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type DepositService struct {
	Deps
}

func NewDepositService(d Deps) *DepositService {
	return &DepositService{Deps: d.withDefaults()}
}

// Deposit adds externally sourced funds to userID's account once the
// authorizer approves.
func (s *DepositService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (account domain.Account, err error) {
	ctx, span := startSpan(ctx, "DepositService.Deposit", attribute.Int64("user.id", userID))
	defer func() { endSpan(span, err) }()
	defer func() {
		s.logOutcome("deposit", err, zap.Int64("user_id", userID), zap.String("amount", amount.String()))
	}()

	if err := domain.ValidateAmount(amount); err != nil {
		return domain.Account{}, err
	}

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return domain.Account{}, err
	}
	defer tx.Rollback(ctx)

	accounts, err := tx.LockAccounts(ctx, userID)
	if err != nil {
		return domain.Account{}, err
	}

	decision, err := s.Gateway.Authorize(ctx)
	if err != nil {
		return domain.Account{}, err
	}
	if !decision.Approved {
		return domain.Account{}, fmt.Errorf("deposit for user %d: %w", userID, domain.ErrUnauthorized)
	}

	if account, err = accounts[userID].Deposit(amount); err != nil {
		return domain.Account{}, err
	}
	now := s.Now()
	account.UpdatedAt = now
	if err := tx.UpdateAccount(ctx, account); err != nil {
		return domain.Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Account{}, err
	}

	s.afterCommit(ctx, nil, events.ForDeposit(userID, amount, now))
	return account, nil
}
