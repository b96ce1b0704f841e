package domain

import (
	"errors"
	"fmt"
)

// Failure taxonomy shared by every service. Callers match with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidState       = errors.New("invalid state")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrUnauthorized       = errors.New("not authorized by authorizer")
	ErrGatewayUnavailable = errors.New("authorizer unavailable")
	ErrConflict           = errors.New("conflicting concurrent update")
	ErrUnauthenticated    = errors.New("invalid credentials")
)

var (
	ErrInvalidAmount = fmt.Errorf("%w: amount must be positive with at most 2 decimal places", ErrInvalidInput)
	ErrSelfCharge    = fmt.Errorf("%w: cannot charge yourself", ErrInvalidInput)
	ErrInvalidCard   = fmt.Errorf("%w: card number must have 16 digits", ErrInvalidInput)
)
