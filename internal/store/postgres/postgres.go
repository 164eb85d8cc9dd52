// Package postgres implements store.Store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

const (
	txTimeout   = 5 * time.Second
	maxAttempts = 3
)

// ErrInternal wraps unexpected database failures.
var ErrInternal = errors.New("internal error")

// Store runs units of work in READ COMMITTED transactions. Balance rows are
// changed with conditional updates, gateway and transfer rows are locked with
// SELECT ... FOR UPDATE.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// WithTx implements store.Store. Serialization failures and deadlocks roll the
// unit back and run it again, up to maxAttempts times.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}

		log.Warn().Err(err).Int("attempt", attempt+1).Msg("Retrying ledger transaction")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*2+1) * 20 * time.Millisecond):
		}
	}
	return fmt.Errorf("ledger transaction failed after %d attempts: %w", maxAttempts, err)
}

func (s *Store) runTx(ctx context.Context, fn func(tx store.Tx) error) error {
	ctx2, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx2, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	if err := fn(&queries{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isRetryable(err) {
			return err
		}
		return fmt.Errorf("%w: commit tx: %v", ErrInternal, err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*queries)(nil)
)

// queries implements store.Tx over a transaction.
type queries struct {
	q sqlx.ExtContext
}

func internal(op string, err error) error {
	if isRetryable(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

func limitArg(page store.Page) any {
	if page.Limit <= 0 {
		return nil
	}
	return page.Limit
}
