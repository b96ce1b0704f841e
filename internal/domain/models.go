package domain

import (
	"time"

	"github.com/punchamoorthee/chargeops/internal/taxid"
	"github.com/shopspring/decimal"
)

// User is a registered party. Charges reference users by ID only.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	TaxID        taxid.CPF `json:"tax_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account holds a user's balance. Balance is never negative.
//
// Account values are snapshots: the balance operations return a new Account
// and leave the receiver untouched.
type Account struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Deposit adds externally sourced funds.
func (a Account) Deposit(amount decimal.Decimal) (Account, error) {
	if err := ValidateAmount(amount); err != nil {
		return a, err
	}
	a.Balance = a.Balance.Add(amount)
	return a, nil
}

// Credit adds funds received from another party. Same rules as Deposit.
func (a Account) Credit(amount decimal.Decimal) (Account, error) {
	return a.Deposit(amount)
}

// Debit removes funds; the balance may reach zero but never go below it.
func (a Account) Debit(amount decimal.Decimal) (Account, error) {
	if err := ValidateAmount(amount); err != nil {
		return a, err
	}
	if !a.HasSufficientFunds(amount) {
		return a, ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	return a, nil
}

func (a Account) HasSufficientFunds(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}
