// Package store persists users, accounts and charges.
//
// Every mutating operation runs inside a Tx obtained from Store.Begin.
// Callers defer Rollback and call Commit on success; Rollback after a
// successful Commit is a no-op.
package store

import (
	"context"
	"slices"

	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/punchamoorthee/chargeops/internal/taxid"
)

type Store interface {
	Begin(ctx context.Context) (Tx, error)

	AccountByUserID(ctx context.Context, userID int64) (domain.Account, error)
	// ListSent returns charges originated by userID. An empty status
	// matches every status.
	ListSent(ctx context.Context, userID int64, status domain.ChargeStatus) ([]domain.Charge, error)
	ListReceived(ctx context.Context, userID int64, status domain.ChargeStatus) ([]domain.Charge, error)

	Close()
}

type Tx interface {
	UserByID(ctx context.Context, id int64) (domain.User, error)
	UserByTaxID(ctx context.Context, id taxid.CPF) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)

	CreateAccount(ctx context.Context, a domain.Account) (domain.Account, error)
	// LockAccounts locks the accounts owned by userIDs in ascending user id
	// order and returns them keyed by user id.
	LockAccounts(ctx context.Context, userIDs ...int64) (map[int64]domain.Account, error)
	UpdateAccount(ctx context.Context, a domain.Account) error

	LockCharge(ctx context.Context, id int64) (domain.Charge, error)
	InsertCharge(ctx context.Context, c domain.Charge) (domain.Charge, error)
	UpdateCharge(ctx context.Context, c domain.Charge) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// lockOrder returns ids sorted ascending without duplicates.
func lockOrder(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
