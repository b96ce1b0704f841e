package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/punchamoorthee/chargeops/internal/taxid"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

// PostgresStore is the pgx-backed Store.
type PostgresStore struct {
	Db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresStore{Db: pool}, nil
}

func (s *PostgresStore) Close() {
	s.Db.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.Db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

const accountColumns = "id, user_id, balance::text, created_at, updated_at"

func (s *PostgresStore) AccountByUserID(ctx context.Context, userID int64) (domain.Account, error) {
	row := s.Db.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE user_id = $1", userID)
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapErr(err, "account for user %d", userID)
	}
	return a, nil
}

func (s *PostgresStore) ListSent(ctx context.Context, userID int64, status domain.ChargeStatus) ([]domain.Charge, error) {
	return s.listCharges(ctx, "originator_id", userID, status)
}

func (s *PostgresStore) ListReceived(ctx context.Context, userID int64, status domain.ChargeStatus) ([]domain.Charge, error) {
	return s.listCharges(ctx, "recipient_id", userID, status)
}

func (s *PostgresStore) listCharges(ctx context.Context, column string, userID int64, status domain.ChargeStatus) ([]domain.Charge, error) {
	query := "SELECT " + chargeColumns + " FROM charges WHERE " + column + " = $1"
	args := []any{userID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, string(status))
	}
	query += " ORDER BY id"

	rows, err := s.Db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	defer rows.Close()

	charges := []domain.Charge{}
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan charge: %w", err)
		}
		charges = append(charges, c)
	}
	return charges, rows.Err()
}

// SeedUser is one row for BulkInsertUsers.
type SeedUser struct {
	User    domain.User
	Balance decimal.Decimal
}

// BulkInsertUsers loads users and their accounts with COPY. Users must not
// exist yet; ids are assigned by the database.
func (s *PostgresStore) BulkInsertUsers(ctx context.Context, seeds []SeedUser) (int64, error) {
	tx, err := s.Db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	rows := make([][]any, 0, len(seeds))
	for _, sd := range seeds {
		u := sd.User
		rows = append(rows, []any{u.Name, u.TaxID.String(), u.Email, u.PasswordHash, true, now})
	}
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"users"},
		[]string{"name", "tax_id", "email", "password_hash", "active", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, mapErr(err, "copy users")
	}

	// Accounts are attached by tax id since COPY does not return ids.
	batch := &pgx.Batch{}
	for _, sd := range seeds {
		batch.Queue(
			"INSERT INTO accounts (user_id, balance) SELECT id, $2::numeric FROM users WHERE tax_id = $1",
			sd.User.TaxID.String(), domain.FormatAmount(sd.Balance),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, mapErr(err, "insert seed accounts")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("tx commit failed: %w", err)
	}
	return n, nil
}

// CountUsers reports how many users exist.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.Db.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

type pgTx struct {
	tx pgx.Tx
}

const userColumns = "id, name, tax_id, email, password_hash, active, created_at"

func (t *pgTx) userBy(ctx context.Context, column string, arg any) (domain.User, error) {
	var u domain.User
	var tax string
	err := t.tx.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE "+column+" = $1", arg).
		Scan(&u.ID, &u.Name, &tax, &u.Email, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if err != nil {
		return domain.User{}, mapErr(err, "user %s=%v", column, arg)
	}
	u.TaxID = taxid.CPF(tax)
	return u, nil
}

func (t *pgTx) UserByID(ctx context.Context, id int64) (domain.User, error) {
	return t.userBy(ctx, "id", id)
}

func (t *pgTx) UserByTaxID(ctx context.Context, id taxid.CPF) (domain.User, error) {
	return t.userBy(ctx, "tax_id", id.String())
}

func (t *pgTx) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	return t.userBy(ctx, "email", email)
}

func (t *pgTx) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	err := t.tx.QueryRow(ctx,
		"INSERT INTO users (name, tax_id, email, password_hash, active, created_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id",
		u.Name, u.TaxID.String(), u.Email, u.PasswordHash, u.Active, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		return domain.User{}, mapErr(err, "insert user")
	}
	return u, nil
}

func (t *pgTx) CreateAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	err := t.tx.QueryRow(ctx,
		"INSERT INTO accounts (user_id, balance, created_at, updated_at) VALUES ($1, $2::numeric, $3, $4) RETURNING id",
		a.UserID, domain.FormatAmount(a.Balance), a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		return domain.Account{}, mapErr(err, "insert account")
	}
	return a, nil
}

func (t *pgTx) LockAccounts(ctx context.Context, userIDs ...int64) (map[int64]domain.Account, error) {
	accounts := make(map[int64]domain.Account, len(userIDs))
	// Acquire locks in user id order
	for _, id := range lockOrder(userIDs) {
		row := t.tx.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE user_id = $1 FOR UPDATE", id)
		a, err := scanAccount(row)
		if err != nil {
			return nil, mapErr(err, "account for user %d", id)
		}
		accounts[id] = a
	}
	return accounts, nil
}

func (t *pgTx) UpdateAccount(ctx context.Context, a domain.Account) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE accounts SET balance = $1::numeric, updated_at = COALESCE($2::timestamptz, NOW()) WHERE id = $3",
		domain.FormatAmount(a.Balance), updatedAt(a.UpdatedAt), a.ID,
	)
	if err != nil {
		return mapErr(err, "update account %d", a.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", a.ID, domain.ErrNotFound)
	}
	return nil
}

const chargeColumns = "id, originator_id, recipient_id, amount::text, description, status, payment_method, " +
	"COALESCE(card_last_four, ''), authorizer_trace, created_at, paid_at, cancelled_at"

func (t *pgTx) LockCharge(ctx context.Context, id int64) (domain.Charge, error) {
	row := t.tx.QueryRow(ctx, "SELECT "+chargeColumns+" FROM charges WHERE id = $1 FOR UPDATE", id)
	c, err := scanCharge(row)
	if err != nil {
		return domain.Charge{}, mapErr(err, "charge %d", id)
	}
	return c, nil
}

func (t *pgTx) InsertCharge(ctx context.Context, c domain.Charge) (domain.Charge, error) {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO charges (originator_id, recipient_id, amount, description, status, payment_method, created_at)
		 VALUES ($1, $2, $3::numeric, $4, $5, $6, $7) RETURNING id`,
		c.OriginatorID, c.RecipientID, domain.FormatAmount(c.Amount), c.Description,
		string(c.Status), string(c.PaymentMethod), c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return domain.Charge{}, mapErr(err, "insert charge")
	}
	return c, nil
}

func (t *pgTx) UpdateCharge(ctx context.Context, c domain.Charge) error {
	var lastFour *string
	if c.CardLastFour != "" {
		lastFour = &c.CardLastFour
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE charges SET status = $1, payment_method = $2, card_last_four = $3, authorizer_trace = $4,
		 paid_at = $5, cancelled_at = $6 WHERE id = $7`,
		string(c.Status), string(c.PaymentMethod), lastFour, c.AuthorizerTrace, c.PaidAt, c.CancelledAt, c.ID,
	)
	if err != nil {
		return mapErr(err, "update charge %d", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("charge %d: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return mapErr(err, "tx commit failed")
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	var balance string
	if err := row.Scan(&a.ID, &a.UserID, &balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Account{}, err
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return domain.Account{}, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	a.Balance = b
	return a, nil
}

func scanCharge(row pgx.Row) (domain.Charge, error) {
	var c domain.Charge
	var amount, status, method string
	err := row.Scan(&c.ID, &c.OriginatorID, &c.RecipientID, &amount, &c.Description, &status, &method,
		&c.CardLastFour, &c.AuthorizerTrace, &c.CreatedAt, &c.PaidAt, &c.CancelledAt)
	if err != nil {
		return domain.Charge{}, err
	}
	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Charge{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	c.Status = domain.ChargeStatus(status)
	c.PaymentMethod = domain.PaymentMethod(method)
	return c, nil
}

// updatedAt passes a zero time as NULL so the database stamps the row.
func updatedAt(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// mapErr translates pgx failures into the domain taxonomy.
func mapErr(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return fmt.Errorf("%s: %w: %s", what, domain.ErrConflict, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}
