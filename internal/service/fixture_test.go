package service

import (
	"context"
	"testing"
	"time"

	"github.com/punchamoorthee/chargeops/internal/authorizer"
	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/punchamoorthee/chargeops/internal/events"
	"github.com/punchamoorthee/chargeops/internal/store"
	"github.com/punchamoorthee/chargeops/internal/taxid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Authorize(ctx context.Context) (authorizer.Decision, error) {
	args := m.Called(ctx)
	return args.Get(0).(authorizer.Decision), args.Error(1)
}

var (
	approved = authorizer.Decision{Approved: true, Status: "success"}
	denied   = authorizer.Decision{Approved: false, Status: "fail"}
)

type fixture struct {
	store  *store.MemoryStore
	gw     *mockGateway
	events *events.Recorder
	now    time.Time
	deps   Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  store.NewMemoryStore(),
		gw:     &mockGateway{},
		events: &events.Recorder{},
		now:    time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	f.deps = Deps{
		Store:   f.store,
		Gateway: f.gw,
		Events:  f.events,
		Now:     func() time.Time { return f.now },
	}
	t.Cleanup(func() { f.gw.AssertExpectations(t) })
	return f
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// user creates a user with the given opening balance.
func (f *fixture) user(t *testing.T, base int64, balance string) domain.User {
	t.Helper()
	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	cpf := taxid.FromBase(base)
	u, err := tx.CreateUser(ctx, domain.User{Name: "user " + cpf.String(), TaxID: cpf, Email: cpf.String() + "@example.com", Active: true})
	require.NoError(t, err)
	_, err = tx.CreateAccount(ctx, domain.Account{UserID: u.ID, Balance: amt(balance)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	return u
}

func (f *fixture) setBalance(t *testing.T, userID int64, balance string) {
	t.Helper()
	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	accs, err := tx.LockAccounts(ctx, userID)
	require.NoError(t, err)
	a := accs[userID]
	a.Balance = amt(balance)
	require.NoError(t, tx.UpdateAccount(ctx, a))
	require.NoError(t, tx.Commit(ctx))
}

func (f *fixture) assertBalance(t *testing.T, userID int64, want string) {
	t.Helper()
	a, err := f.store.AccountByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(amt(want)), "user %d balance = %s, want %s", userID, a.Balance, want)
}

// charge issues a PENDING charge from originator against recipient.
func (f *fixture) charge(t *testing.T, originator, recipient domain.User, amount string) domain.Charge {
	t.Helper()
	c, err := NewIssuanceService(f.deps).Create(context.Background(), originator.ID, recipient.TaxID.String(), amt(amount), "")
	require.NoError(t, err)
	return c
}

func (f *fixture) stored(t *testing.T, id int64) domain.Charge {
	t.Helper()
	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	c, err := tx.LockCharge(ctx, id)
	require.NoError(t, err)
	return c
}
