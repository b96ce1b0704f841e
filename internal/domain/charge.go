package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ChargeStatus string

const (
	StatusPending   ChargeStatus = "PENDING"
	StatusPaid      ChargeStatus = "PAID"
	StatusCancelled ChargeStatus = "CANCELLED"
)

// ParseChargeStatus accepts the canonical upper-case status names.
func ParseChargeStatus(raw string) (ChargeStatus, error) {
	switch s := ChargeStatus(raw); s {
	case StatusPending, StatusPaid, StatusCancelled:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown charge status %q", ErrInvalidInput, raw)
}

type PaymentMethod string

const (
	MethodNone    PaymentMethod = "NONE"
	MethodBalance PaymentMethod = "BALANCE"
	MethodCard    PaymentMethod = "CARD"
)

// Authorizer trace markers for balance settlements and reversals.
const (
	TraceBalancePayment  = "PAGAMENTO_SALDO"
	TraceBalanceReversal = "ESTORNO_SALDO"
)

// Charge is money owed by Recipient to Originator.
//
// Status moves PENDING -> PAID -> CANCELLED or PENDING -> CANCELLED and
// never backwards. Like Account, transitions return a new snapshot.
type Charge struct {
	ID              int64           `json:"id"`
	OriginatorID    int64           `json:"originator_id"`
	RecipientID     int64           `json:"recipient_id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description,omitempty"`
	Status          ChargeStatus    `json:"status"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	CardLastFour    string          `json:"card_last_four,omitempty"`
	AuthorizerTrace string          `json:"authorizer_trace,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
}

// NewCharge builds a PENDING charge. It is not persisted.
func NewCharge(originatorID, recipientID int64, amount decimal.Decimal, description string, now time.Time) (Charge, error) {
	if originatorID == recipientID {
		return Charge{}, ErrSelfCharge
	}
	if err := ValidateAmount(amount); err != nil {
		return Charge{}, err
	}
	return Charge{
		OriginatorID:  originatorID,
		RecipientID:   recipientID,
		Amount:        amount,
		Description:   description,
		Status:        StatusPending,
		PaymentMethod: MethodNone,
		CreatedAt:     now,
	}, nil
}

// MarkPaid settles a PENDING charge.
func (c Charge) MarkPaid(method PaymentMethod, cardLastFour, trace string, now time.Time) (Charge, error) {
	if c.Status != StatusPending {
		return c, fmt.Errorf("%w: only pending charges can be paid (status %s)", ErrInvalidState, c.Status)
	}
	if method != MethodBalance && method != MethodCard {
		return c, fmt.Errorf("%w: unsupported payment method %q", ErrInvalidInput, method)
	}
	c.Status = StatusPaid
	c.PaymentMethod = method
	c.CardLastFour = cardLastFour
	c.AuthorizerTrace = trace
	c.PaidAt = &now
	return c, nil
}

// Cancel moves a PENDING or PAID charge to CANCELLED. A non-empty trace
// replaces the stored one; an empty trace keeps it.
func (c Charge) Cancel(trace string, now time.Time) (Charge, error) {
	if c.Status == StatusCancelled {
		return c, fmt.Errorf("%w: charge already cancelled", ErrInvalidState)
	}
	c.Status = StatusCancelled
	if trace != "" {
		c.AuthorizerTrace = trace
	}
	c.CancelledAt = &now
	return c, nil
}

func (c Charge) IsPending() bool   { return c.Status == StatusPending }
func (c Charge) IsPaid() bool      { return c.Status == StatusPaid }
func (c Charge) IsCancelled() bool { return c.Status == StatusCancelled }

func (c Charge) WasPaidByBalance() bool {
	return c.IsPaid() && c.PaymentMethod == MethodBalance
}

func (c Charge) WasPaidByCard() bool {
	return c.IsPaid() && c.PaymentMethod == MethodCard
}
