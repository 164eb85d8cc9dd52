// Package idempotency replays the stored response of a request retried with
// the same Idempotency-Key header.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// HeaderKey is the request header carrying the client supplied key.
	HeaderKey = "Idempotency-Key"

	inFlight   = "in_flight"
	maxKeyLen  = 128
	defaultTTL = 24 * time.Hour
)

var (
	// ErrInFlight is returned while the first request with a key is still running.
	ErrInFlight = errors.New("request with this idempotency key is in progress")

	// ErrInvalidKey is returned for empty or oversized keys.
	ErrInvalidKey = errors.New("invalid idempotency key")
)

// Backend is the key-value surface the manager needs. *database.Redis implements it.
type Backend interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Record is a stored response.
type Record struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Manager reserves keys with SETNX and stores the response once the request
// succeeds. A nil *Manager is valid and disables idempotency.
type Manager struct {
	backend Backend
	prefix  string
	ttl     time.Duration
}

func NewManager(backend Backend, prefix string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Manager{backend: backend, prefix: prefix, ttl: ttl}
}

func (m *Manager) key(scope, key string) string {
	return m.prefix + ":" + scope + ":" + key
}

// Begin reserves key within scope. It returns (nil, nil) when the caller should
// process the request, or the stored record when it already completed.
func (m *Manager) Begin(ctx context.Context, scope, key string) (*Record, error) {
	if m == nil || m.backend == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" || len(key) > maxKeyLen {
		return nil, ErrInvalidKey
	}

	k := m.key(scope, key)
	ok, err := m.backend.SetNX(ctx, k, inFlight, m.ttl)
	if err != nil {
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := m.backend.Get(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}
	if raw == inFlight {
		return nil, ErrInFlight
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}

// Complete stores the response for key.
func (m *Manager) Complete(ctx context.Context, scope, key string, status int, body any) error {
	if m == nil || m.backend == nil {
		return nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(Record{Status: status, Body: payload})
	if err != nil {
		return err
	}
	return m.backend.Set(ctx, m.key(scope, strings.TrimSpace(key)), string(raw), m.ttl)
}

// Abort releases key so the client can retry.
func (m *Manager) Abort(ctx context.Context, scope, key string) {
	if m == nil || m.backend == nil {
		return
	}
	if err := m.backend.Del(ctx, m.key(scope, strings.TrimSpace(key))); err != nil {
		log.Warn().Err(err).Str("scope", scope).Msg("Failed to release idempotency key")
	}
}
