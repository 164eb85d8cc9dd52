package gateway

import (
	"errors"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

// Domain errors
var (
	ErrGatewayDisabled          = errors.New("credit gateway is disabled")
	ErrAmountOutOfBounds        = errors.New("credit amount outside allowed range")
	ErrBackupPaymentFailed      = errors.New("backup payment failed")
	ErrTransactionNotFound      = errors.New("gateway transaction not found")
	ErrInvalidStateTransition   = errors.New("invalid gateway transaction state transition")
	ErrPartialCreditsDisabled   = errors.New("partial credit payments are disabled")
	ErrBackupPaymentRequired    = errors.New("backup payment method required")
	ErrUnsupportedPaymentMethod = errors.New("unsupported backup payment method")
	ErrInvalidRequest           = errors.New("invalid payment request")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidSettings          = errors.New("invalid gateway settings")
	ErrInsufficientBalance      = store.ErrInsufficientBalance
)
