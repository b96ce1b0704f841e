package models

import (
	"time"

	"github.com/punchamoorthee/chargeops/internal/domain"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type UserResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TaxID     string    `json:"tax_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUserResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		TaxID:     u.TaxID.Formatted(),
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	User      UserResponse `json:"user"`
}

type AccountResponse struct {
	UserID    int64     `json:"user_id"`
	Balance   string    `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewAccountResponse(a domain.Account) AccountResponse {
	return AccountResponse{UserID: a.UserID, Balance: domain.FormatAmount(a.Balance), UpdatedAt: a.UpdatedAt}
}

// ChargeResponse renders a charge with its amount at two decimal places.
type ChargeResponse struct {
	ID              int64      `json:"id"`
	OriginatorID    int64      `json:"originator_id"`
	RecipientID     int64      `json:"recipient_id"`
	Amount          string     `json:"amount"`
	Description     string     `json:"description,omitempty"`
	Status          string     `json:"status"`
	PaymentMethod   string     `json:"payment_method"`
	CardLastFour    string     `json:"card_last_four,omitempty"`
	AuthorizerTrace string     `json:"authorizer_trace,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

func NewChargeResponse(c domain.Charge) ChargeResponse {
	return ChargeResponse{
		ID:              c.ID,
		OriginatorID:    c.OriginatorID,
		RecipientID:     c.RecipientID,
		Amount:          domain.FormatAmount(c.Amount),
		Description:     c.Description,
		Status:          string(c.Status),
		PaymentMethod:   string(c.PaymentMethod),
		CardLastFour:    c.CardLastFour,
		AuthorizerTrace: c.AuthorizerTrace,
		CreatedAt:       c.CreatedAt,
		PaidAt:          c.PaidAt,
		CancelledAt:     c.CancelledAt,
	}
}

func NewChargeList(cs []domain.Charge) []ChargeResponse {
	out := make([]ChargeResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, NewChargeResponse(c))
	}
	return out
}
