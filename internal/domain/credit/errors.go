package credit

import (
	"errors"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

var (
	// ErrInvalidAmount is returned when amount is <= 0 or has more than two decimals
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0 with at most 2 decimals")

	// ErrInsufficientBalance is returned when the user doesn't have enough credits.
	// The concrete error is *store.InsufficientBalanceError and carries the shortfall.
	ErrInsufficientBalance = store.ErrInsufficientBalance

	// ErrDuplicateReference is returned when a unique (source, reference) pair was already recorded
	ErrDuplicateReference = store.ErrDuplicateReference

	// ErrMissingSource is returned when a movement has no source
	ErrMissingSource = errors.New("transaction source is required")
)
