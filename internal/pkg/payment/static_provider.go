package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Static provider modes
const (
	ModeApprove = "approve"
	ModeDecline = "decline"
)

// StaticProvider settles every charge with a fixed outcome. It stands in for a
// card processor in development and tests.
type StaticProvider struct {
	name string
	mode string

	mu      sync.Mutex
	charges []ChargeRequest
}

// NewStaticProvider creates a provider that approves or declines every charge
func NewStaticProvider(name, mode string) (*StaticProvider, error) {
	switch mode {
	case ModeApprove, ModeDecline:
	default:
		return nil, fmt.Errorf("unknown static payment mode %q", mode)
	}
	return &StaticProvider{name: name, mode: mode}, nil
}

func (p *StaticProvider) Name() string { return p.name }

// Charge records the request and settles it according to the mode
func (p *StaticProvider) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("charge amount must be positive, got %s", req.Amount)
	}

	p.mu.Lock()
	p.charges = append(p.charges, req)
	p.mu.Unlock()

	if p.mode == ModeDecline {
		log.Warn().Str("provider", p.name).Str("reference", req.Reference).Msg("Static provider declined charge")
		return nil, fmt.Errorf("%s: %w", p.name, ErrChargeDeclined)
	}
	return &ChargeResult{ExternalID: uuid.NewString(), Status: StatusCompleted}, nil
}

// Charges returns the requests seen so far
func (p *StaticProvider) Charges() []ChargeRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ChargeRequest, len(p.charges))
	copy(out, p.charges)
	return out
}

// NewFactoryFromConfig registers a StaticProvider in mode for each method
func NewFactoryFromConfig(methods []string, mode string) (*ProviderFactory, error) {
	f := NewProviderFactory()
	for _, m := range methods {
		p, err := NewStaticProvider(m, mode)
		if err != nil {
			return nil, err
		}
		f.Register(m, p)
	}
	return f, nil
}
