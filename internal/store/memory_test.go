package store

import (
	"context"
	"testing"
	"time"

	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/punchamoorthee/chargeops/internal/taxid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, s *MemoryStore, base int64, balance string) domain.User {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	cpf := taxid.FromBase(base)
	u, err := tx.CreateUser(ctx, domain.User{Name: "u", TaxID: cpf, Email: cpf.String() + "@example.com", Active: true})
	require.NoError(t, err)
	_, err = tx.CreateAccount(ctx, domain.Account{UserID: u.ID, Balance: decimal.RequireFromString(balance)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	return u
}

func TestMemoryRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedUser(t, s, 1, "10.00")
	b := seedUser(t, s, 2, "0")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	accs, err := tx.LockAccounts(ctx, b.ID, a.ID)
	require.NoError(t, err)
	debited, err := accs[a.ID].Debit(decimal.RequireFromString("10"))
	require.NoError(t, err)
	require.NoError(t, tx.UpdateAccount(ctx, debited))
	_, err = tx.InsertCharge(ctx, domain.Charge{OriginatorID: a.ID, RecipientID: b.ID, Amount: decimal.NewFromInt(1), Status: domain.StatusPending})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	acc, err := s.AccountByUserID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(decimal.RequireFromString("10")))

	sent, err := s.ListSent(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Empty(t, sent)
}

func TestMemoryCommitAndList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedUser(t, s, 1, "0")
	b := seedUser(t, s, 2, "0")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	now := time.Now()
	for i := 0; i < 3; i++ {
		c, err := domain.NewCharge(a.ID, b.ID, decimal.NewFromInt(int64(i+1)), "", now)
		require.NoError(t, err)
		_, err = tx.InsertCharge(ctx, c)
		require.NoError(t, err)
	}
	first, err := tx.LockCharge(ctx, 1)
	require.NoError(t, err)
	cancelled, err := first.Cancel("", now)
	require.NoError(t, err)
	require.NoError(t, tx.UpdateCharge(ctx, cancelled))
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx), "rollback after commit is a no-op")

	sent, err := s.ListSent(ctx, a.ID, "")
	require.NoError(t, err)
	require.Len(t, sent, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{sent[0].ID, sent[1].ID, sent[2].ID})

	pending, err := s.ListReceived(ctx, b.ID, domain.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	none, err := s.ListReceived(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryLookupsAndConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedUser(t, s, 7, "0")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	got, err := tx.UserByTaxID(ctx, a.TaxID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = tx.UserByEmail(ctx, a.Email)
	require.NoError(t, err)

	_, err = tx.UserByID(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = tx.CreateUser(ctx, domain.User{TaxID: a.TaxID, Email: "other@example.com"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = tx.LockAccounts(ctx, a.ID, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = tx.LockCharge(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryTxSerializesWriters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	started := make(chan struct{})
	acquired := make(chan struct{})
	go func() {
		close(started)
		tx2, err := s.Begin(ctx)
		if err == nil {
			_ = tx2.Rollback(ctx)
		}
		close(acquired)
	}()

	<-started
	select {
	case <-acquired:
		t.Fatal("second unit of work started while the first was open")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, tx.Rollback(ctx))
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second unit of work never started")
	}
}

func TestLockOrder(t *testing.T) {
	assert.Equal(t, []int64{1, 3, 9}, lockOrder([]int64{9, 1, 3, 9}))
	assert.Empty(t, lockOrder(nil))
}

func TestMemoryBeginGivesUpWhenContextEnds(t *testing.T) {
	s := NewMemoryStore()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Begin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Rollback(context.Background()))
	tx2, err := s.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx2.Rollback(context.Background()))
}
