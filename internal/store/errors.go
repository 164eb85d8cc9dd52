package store

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateReference is returned when a transaction with the same
	// (user, source, reference) already exists for a unique source.
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrInsufficientBalance is returned when a debit would make a balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// InsufficientBalanceError carries the shortfall of a rejected debit.
// errors.Is(err, ErrInsufficientBalance) holds for it.
type InsufficientBalanceError struct {
	Book      Book
	Required  decimal.Decimal
	Available decimal.Decimal
}

// Shortfall is the amount missing to cover the debit.
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	s := e.Required.Sub(e.Available)
	if s.IsNegative() {
		return decimal.Zero
	}
	return s
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: required %s, available %s", e.Book, e.Required.String(), e.Available.String())
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
