package promotion

import (
	"errors"

	"github.com/cczslater/sellbuydeal-sub000/internal/domain/loyalty"
	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

var (
	ErrUnknownPromotion = errors.New("unknown promotion type")
	ErrUnknownReward    = loyalty.ErrUnknownReward
	ErrInvalidListing   = errors.New("listing id is required")
	ErrInvalidSetting   = errors.New("invalid promotion setting")

	ErrInsufficientBalance = store.ErrInsufficientBalance
	// ErrConcurrentPromotion is returned when another purchase for the same
	// listing and type committed first.
	ErrConcurrentPromotion = store.ErrDuplicateReference
)
