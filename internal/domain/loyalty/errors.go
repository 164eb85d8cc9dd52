package loyalty

import (
	"errors"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

var (
	// ErrInvalidAmount is returned for non-positive or fractional point amounts
	ErrInvalidAmount = errors.New("invalid amount: points must be a positive whole number")

	// ErrInsufficientBalance is returned when the user doesn't have enough points
	ErrInsufficientBalance = store.ErrInsufficientBalance

	ErrDuplicateReference = store.ErrDuplicateReference

	// ErrUnknownReward is returned for unknown or inactive rewards
	ErrUnknownReward = errors.New("unknown reward")

	// ErrUnknownEvent is returned for event types that earn no points
	ErrUnknownEvent = errors.New("unknown loyalty event")

	// ErrBoostRequiresListing is returned when a boost reward is redeemed without a listing
	ErrBoostRequiresListing = errors.New("boost rewards must be redeemed for a listing")

	ErrMissingSource = errors.New("transaction source is required")
)
