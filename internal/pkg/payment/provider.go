package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Charge statuses
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusPending   = "pending"
	StatusRefunded  = "refunded"
)

var (
	// ErrChargeDeclined is returned when the processor refuses the charge
	ErrChargeDeclined = errors.New("charge declined")

	// ErrUnknownProvider is returned by ProviderFactory.Get for unregistered methods
	ErrUnknownProvider = errors.New("payment provider not registered")
)

// Provider charges the part of a gateway purchase not covered by credits.
// Implementations must only return a nil error once the charge is confirmed.
type Provider interface {
	// Charge collects req.Amount from the payer
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	// Name returns the provider identifier (e.g., "card", "bank_transfer")
	Name() string
}

// ChargeRequest is a standardized charge request
type ChargeRequest struct {
	Reference   string // gateway transaction id
	PayerID     uuid.UUID
	Amount      decimal.Decimal
	Description string
	Metadata    map[string]string
}

// ChargeResult is a standardized charge outcome
type ChargeResult struct {
	ExternalID string // processor's payment id
	Status     string // one of the Status* constants
}

// ProviderFactory resolves backup payment methods to providers
type ProviderFactory struct {
	providers map[string]Provider
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{
		providers: make(map[string]Provider),
	}
}

// Register adds a payment provider under name
func (f *ProviderFactory) Register(name string, provider Provider) {
	f.providers[name] = provider
}

// Get retrieves a payment provider by name
func (f *ProviderFactory) Get(name string) (Provider, error) {
	provider, exists := f.providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return provider, nil
}

// Has reports whether name is registered
func (f *ProviderFactory) Has(name string) bool {
	_, ok := f.providers[name]
	return ok
}

// List returns all registered provider names, sorted
func (f *ProviderFactory) List() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MapStatusToInternal converts a processor status to one of the Status* constants.
// Unknown statuses map to pending.
func MapStatusToInternal(providerStatus string) string {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "success", "succeeded", "completed", "paid", "approved", "captured":
		return StatusCompleted
	case "failed", "cancelled", "canceled", "declined", "rejected", "error":
		return StatusFailed
	case "refunded", "reversed":
		return StatusRefunded
	default:
		return StatusPending
	}
}
