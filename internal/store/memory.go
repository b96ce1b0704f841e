package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/punchamoorthee/chargeops/internal/taxid"
	"golang.org/x/sync/semaphore"
)

// MemoryStore keeps everything in process. A Tx holds the store's single
// writer slot from Begin until Commit or Rollback, so units of work run one
// at a time. Writes are staged on the Tx and applied only on Commit.
type MemoryStore struct {
	writer *semaphore.Weighted
	mu     sync.RWMutex

	users    map[int64]domain.User
	accounts map[int64]domain.Account // keyed by user id
	charges  map[int64]domain.Charge

	nextUser, nextAccount, nextCharge int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		writer:   semaphore.NewWeighted(1),
		users:    make(map[int64]domain.User),
		accounts: make(map[int64]domain.Account),
		charges:  make(map[int64]domain.Charge),
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.writer.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &memTx{
		s:        s,
		users:    make(map[int64]domain.User),
		accounts: make(map[int64]domain.Account),
		charges:  make(map[int64]domain.Charge),
	}, nil
}

func (s *MemoryStore) AccountByUserID(ctx context.Context, userID int64) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[userID]
	if !ok {
		return domain.Account{}, fmt.Errorf("account for user %d: %w", userID, domain.ErrNotFound)
	}
	return a, nil
}

func (s *MemoryStore) ListSent(ctx context.Context, userID int64, status domain.ChargeStatus) ([]domain.Charge, error) {
	return s.list(func(c domain.Charge) bool { return c.OriginatorID == userID }, status), nil
}

func (s *MemoryStore) ListReceived(ctx context.Context, userID int64, status domain.ChargeStatus) ([]domain.Charge, error) {
	return s.list(func(c domain.Charge) bool { return c.RecipientID == userID }, status), nil
}

func (s *MemoryStore) list(match func(domain.Charge) bool, status domain.ChargeStatus) []domain.Charge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Charge{}
	for _, c := range s.charges {
		if match(c) && (status == "" || c.Status == status) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.Charge) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

type memTx struct {
	s    *MemoryStore
	done bool

	users    map[int64]domain.User
	accounts map[int64]domain.Account
	charges  map[int64]domain.Charge
}

func (t *memTx) check(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("memory tx already closed")
	}
	return ctx.Err()
}

func (t *memTx) user(match func(domain.User) bool) (domain.User, bool) {
	for _, u := range t.users {
		if match(u) {
			return u, true
		}
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for _, u := range t.s.users {
		if match(u) {
			return u, true
		}
	}
	return domain.User{}, false
}

func (t *memTx) UserByID(ctx context.Context, id int64) (domain.User, error) {
	if err := t.check(ctx); err != nil {
		return domain.User{}, err
	}
	if u, ok := t.user(func(u domain.User) bool { return u.ID == id }); ok {
		return u, nil
	}
	return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
}

func (t *memTx) UserByTaxID(ctx context.Context, id taxid.CPF) (domain.User, error) {
	if err := t.check(ctx); err != nil {
		return domain.User{}, err
	}
	if u, ok := t.user(func(u domain.User) bool { return u.TaxID == id }); ok {
		return u, nil
	}
	return domain.User{}, fmt.Errorf("user with tax id %s: %w", id, domain.ErrNotFound)
}

func (t *memTx) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	if err := t.check(ctx); err != nil {
		return domain.User{}, err
	}
	if u, ok := t.user(func(u domain.User) bool { return u.Email == email }); ok {
		return u, nil
	}
	return domain.User{}, fmt.Errorf("user %q: %w", email, domain.ErrNotFound)
}

func (t *memTx) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if err := t.check(ctx); err != nil {
		return domain.User{}, err
	}
	if _, taken := t.user(func(x domain.User) bool { return x.TaxID == u.TaxID || x.Email == u.Email }); taken {
		return domain.User{}, fmt.Errorf("insert user: %w", domain.ErrConflict)
	}
	t.s.nextUser++
	u.ID = t.s.nextUser
	t.users[u.ID] = u
	return u, nil
}

func (t *memTx) CreateAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	if err := t.check(ctx); err != nil {
		return domain.Account{}, err
	}
	if _, exists := t.account(a.UserID); exists {
		return domain.Account{}, fmt.Errorf("insert account: %w", domain.ErrConflict)
	}
	if a.Balance.IsNegative() {
		return domain.Account{}, domain.ErrInsufficientFunds
	}
	t.s.nextAccount++
	a.ID = t.s.nextAccount
	t.accounts[a.UserID] = a
	return a, nil
}

func (t *memTx) account(userID int64) (domain.Account, bool) {
	if a, ok := t.accounts[userID]; ok {
		return a, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	a, ok := t.s.accounts[userID]
	return a, ok
}

func (t *memTx) LockAccounts(ctx context.Context, userIDs ...int64) (map[int64]domain.Account, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	out := make(map[int64]domain.Account, len(userIDs))
	for _, id := range lockOrder(userIDs) {
		a, ok := t.account(id)
		if !ok {
			return nil, fmt.Errorf("account for user %d: %w", id, domain.ErrNotFound)
		}
		out[id] = a
	}
	return out, nil
}

func (t *memTx) UpdateAccount(ctx context.Context, a domain.Account) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	cur, ok := t.account(a.UserID)
	if !ok || cur.ID != a.ID {
		return fmt.Errorf("account %d: %w", a.ID, domain.ErrNotFound)
	}
	if a.Balance.IsNegative() {
		return fmt.Errorf("account %d: %w", a.ID, domain.ErrInsufficientFunds)
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}
	t.accounts[a.UserID] = a
	return nil
}

func (t *memTx) charge(id int64) (domain.Charge, bool) {
	if c, ok := t.charges[id]; ok {
		return c, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	c, ok := t.s.charges[id]
	return c, ok
}

func (t *memTx) LockCharge(ctx context.Context, id int64) (domain.Charge, error) {
	if err := t.check(ctx); err != nil {
		return domain.Charge{}, err
	}
	c, ok := t.charge(id)
	if !ok {
		return domain.Charge{}, fmt.Errorf("charge %d: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func (t *memTx) InsertCharge(ctx context.Context, c domain.Charge) (domain.Charge, error) {
	if err := t.check(ctx); err != nil {
		return domain.Charge{}, err
	}
	t.s.nextCharge++
	c.ID = t.s.nextCharge
	t.charges[c.ID] = c
	return c, nil
}

func (t *memTx) UpdateCharge(ctx context.Context, c domain.Charge) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if _, ok := t.charge(c.ID); !ok {
		return fmt.Errorf("charge %d: %w", c.ID, domain.ErrNotFound)
	}
	t.charges[c.ID] = c
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("memory tx already closed")
	}
	t.s.mu.Lock()
	for id, u := range t.users {
		t.s.users[id] = u
	}
	for id, a := range t.accounts {
		t.s.accounts[id] = a
	}
	for id, c := range t.charges {
		t.s.charges[id] = c
	}
	t.s.mu.Unlock()
	t.release()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if !t.done {
		t.release()
	}
	return nil
}

func (t *memTx) release() {
	t.done = true
	t.s.writer.Release(1)
}
