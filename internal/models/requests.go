package models

import "github.com/shopspring/decimal"

// RegisterRequest creates a user and its account.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	TaxID    string `json:"tax_id" validate:"required,cpf"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest accepts an email or a tax id as identifier.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type DepositRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,money"`
}

type CreateChargeRequest struct {
	RecipientTaxID string          `json:"recipient_tax_id" validate:"required,cpf"`
	Amount         decimal.Decimal `json:"amount" validate:"required,money"`
	Description    string          `json:"description" validate:"max=255"`
}

type PayBalanceRequest struct {
	ChargeID int64 `json:"charge_id" validate:"required,gt=0"`
}

type PayCardRequest struct {
	ChargeID   int64  `json:"charge_id" validate:"required,gt=0"`
	CardNumber string `json:"card_number" validate:"required,len=16,numeric"`
	Expiry     string `json:"expiry" validate:"required,expiry"`
	CVV        string `json:"cvv" validate:"required,numeric,min=3,max=4"`
}

// ChargeFilter is the query string of the listing endpoints.
type ChargeFilter struct {
	Status string `validate:"omitempty,oneof=PENDING PAID CANCELLED"`
}
