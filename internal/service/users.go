package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/punchamoorthee/chargeops/internal/taxid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer mints an access token for an authenticated user.
type TokenIssuer interface {
	Issue(userID int64) (string, error)
}

type Registration struct {
	Name     string
	TaxID    string
	Email    string
	Password string
}

type UserService struct {
	Deps
	tokens TokenIssuer
	cost   int
}

func NewUserService(d Deps, tokens TokenIssuer) *UserService {
	return &UserService{Deps: d.withDefaults(), tokens: tokens, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost.
func (s *UserService) WithHashCost(cost int) *UserService {
	s.cost = cost
	return s
}

// Register creates a user and its zero-balance account in one unit of work.
func (s *UserService) Register(ctx context.Context, r Registration) (user domain.User, err error) {
	ctx, span := startSpan(ctx, "UserService.Register")
	defer func() { endSpan(span, err) }()
	defer func() {
		s.logOutcome("register user", err, zap.Int64("user_id", user.ID))
	}()

	cpf, err := taxid.Parse(r.TaxID)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: tax id: %v", domain.ErrInvalidInput, err)
	}
	email := strings.ToLower(strings.TrimSpace(r.Email))

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: password: %v", domain.ErrInvalidInput, err)
	}

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback(ctx)

	if err := absent(tx.UserByTaxID(ctx, cpf)); err != nil {
		return domain.User{}, fmt.Errorf("tax id already registered: %w", err)
	}
	if err := absent(tx.UserByEmail(ctx, email)); err != nil {
		return domain.User{}, fmt.Errorf("email already registered: %w", err)
	}

	now := s.Now()
	user, err = tx.CreateUser(ctx, domain.User{
		Name:         strings.TrimSpace(r.Name),
		TaxID:        cpf,
		Email:        email,
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    now,
	})
	if err != nil {
		return domain.User{}, err
	}
	if _, err := tx.CreateAccount(ctx, domain.Account{UserID: user.ID, Balance: decimal.Zero, CreatedAt: now, UpdatedAt: now}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, err
	}
	span.SetAttributes(attribute.Int64("user.id", user.ID))
	return user, nil
}

// absent turns a successful lookup into ErrConflict and a miss into nil.
func absent(_ domain.User, err error) error {
	switch {
	case err == nil:
		return domain.ErrConflict
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

// Login authenticates by email (any identifier containing "@") or tax id
// and returns a bearer token.
func (s *UserService) Login(ctx context.Context, identifier, password string) (token string, user domain.User, err error) {
	ctx, span := startSpan(ctx, "UserService.Login")
	defer func() { endSpan(span, err) }()
	defer func() {
		s.logOutcome("login", err, zap.Int64("user_id", user.ID))
	}()

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return "", domain.User{}, err
	}
	defer tx.Rollback(ctx)

	if strings.Contains(identifier, "@") {
		user, err = tx.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(identifier)))
	} else {
		cpf, perr := taxid.Parse(identifier)
		if perr != nil {
			return "", domain.User{}, domain.ErrUnauthenticated
		}
		user, err = tx.UserByTaxID(ctx, cpf)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.User{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return "", domain.User{}, err
	}
	if !user.Active || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", domain.User{}, domain.ErrUnauthenticated
	}

	if token, err = s.tokens.Issue(user.ID); err != nil {
		return "", domain.User{}, err
	}
	return token, user, nil
}

// Balance returns userID's account.
func (s *UserService) Balance(ctx context.Context, userID int64) (domain.Account, error) {
	return s.Store.AccountByUserID(ctx, userID)
}
