// Package transfer pays out scheduled seller transfers once they mature.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

const DefaultBatchSize = 100

// Payouter credits a matured transfer to the seller inside tx, reporting
// false when the payout was already recorded.
type Payouter interface {
	PayoutTransfer(ctx context.Context, tx store.Tx, transfer *store.ScheduledTransfer) (bool, error)
}

// MaturationJob completes due scheduled transfers. Each transfer is handled in
// its own unit of work; failures stay pending and are retried next tick.
type MaturationJob struct {
	store     store.Store
	payout    Payouter
	now       func() time.Time
	batchSize int
}

// Option configures the job.
type Option func(*MaturationJob)

func WithClock(now func() time.Time) Option {
	return func(j *MaturationJob) { j.now = now }
}

func WithBatchSize(n int) Option {
	return func(j *MaturationJob) {
		if n > 0 {
			j.batchSize = n
		}
	}
}

func NewMaturationJob(st store.Store, payout Payouter, opts ...Option) *MaturationJob {
	j := &MaturationJob{store: st, payout: payout, now: time.Now, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *MaturationJob) Name() string { return "transfer_maturation" }

func (j *MaturationJob) Run(ctx context.Context) error {
	var ids []uuid.UUID
	err := j.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		ids, err = tx.ListDueTransfers(ctx, j.now(), j.batchSize)
		return err
	})
	if err != nil {
		return fmt.Errorf("list due transfers: %w", err)
	}

	l := log.Ctx(ctx)
	var (
		completed int
		errs      []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := j.process(ctx, id)
		if err != nil {
			l.Warn().Err(err).Str("transfer_id", id.String()).Msg("Scheduled transfer failed, will retry")
			if rerr := j.recordFailure(ctx, id, err); rerr != nil {
				l.Error().Err(rerr).Str("transfer_id", id.String()).Msg("Failed to record transfer failure")
			}
			errs = append(errs, fmt.Errorf("transfer %s: %w", id, err))
			continue
		}
		if done {
			completed++
		}
	}

	if completed > 0 {
		l.Info().Int("completed", completed).Int("due", len(ids)).Msg("Scheduled transfers completed")
	}
	return errors.Join(errs...)
}

// process reports whether the transfer moved to completed.
func (j *MaturationJob) process(ctx context.Context, id uuid.UUID) (bool, error) {
	done := false
	err := j.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.ClaimScheduledTransfer(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			// gone or held by another worker
			return nil
		}
		if err != nil {
			return err
		}
		if t.Status != store.TransferPending {
			return nil
		}

		paid, err := j.payout.PayoutTransfer(ctx, tx, t)
		if err != nil {
			return err
		}
		if !paid {
			log.Ctx(ctx).Info().Str("transfer_id", id.String()).Msg("Payout already recorded, completing transfer")
		}

		now := j.now().UTC()
		t.Status = store.TransferCompleted
		t.CompletedAt = &now
		t.UpdatedAt = now
		if err := tx.UpdateScheduledTransfer(ctx, t); err != nil {
			return err
		}
		done = true
		return nil
	})
	return done, err
}

func (j *MaturationJob) recordFailure(ctx context.Context, id uuid.UUID, cause error) error {
	return j.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.ClaimScheduledTransfer(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if t.Status != store.TransferPending {
			return nil
		}
		msg := cause.Error()
		t.Attempts++
		t.LastError = &msg
		t.UpdatedAt = j.now().UTC()
		return tx.UpdateScheduledTransfer(ctx, t)
	})
}
