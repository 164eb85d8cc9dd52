package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

const transferColumns = `id, transaction_id, seller_id, amount, scheduled_at, status,
	attempts, last_error, created_at, updated_at, completed_at`

func (r *queries) CreateScheduledTransfer(ctx context.Context, st *store.ScheduledTransfer) error {
	_, err := sqlx.NamedExecContext(ctx, r.q, `
		INSERT INTO scheduled_transfers (`+transferColumns+`)
		VALUES (
			:id, :transaction_id, :seller_id, :amount, :scheduled_at, :status,
			:attempts, :last_error, :created_at, :updated_at, :completed_at
		)
	`, st)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateReference
		}
		return internal("create scheduled transfer", err)
	}
	return nil
}

func (r *queries) getTransfer(ctx context.Context, query string, arg any) (*store.ScheduledTransfer, error) {
	var st store.ScheduledTransfer
	err := sqlx.GetContext(ctx, r.q, &st, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, internal("get scheduled transfer", err)
	}
	return &st, nil
}

func (r *queries) GetScheduledTransferByTransaction(ctx context.Context, transactionID uuid.UUID, forUpdate bool) (*store.ScheduledTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM scheduled_transfers WHERE transaction_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return r.getTransfer(ctx, query, transactionID)
}

func (r *queries) ClaimScheduledTransfer(ctx context.Context, id uuid.UUID) (*store.ScheduledTransfer, error) {
	return r.getTransfer(ctx, `
		SELECT `+transferColumns+`
		FROM scheduled_transfers
		WHERE id = $1
		FOR UPDATE SKIP LOCKED
	`, id)
}

func (r *queries) ListDueTransfers(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	err := sqlx.SelectContext(ctx, r.q, &ids, `
		SELECT id
		FROM scheduled_transfers
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at
		LIMIT $3
	`, string(store.TransferPending), now, limitArg(store.Page{Limit: limit}))
	if err != nil {
		return nil, internal("list due transfers", err)
	}
	return ids, nil
}

func (r *queries) UpdateScheduledTransfer(ctx context.Context, st *store.ScheduledTransfer) error {
	result, err := sqlx.NamedExecContext(ctx, r.q, `
		UPDATE scheduled_transfers
		SET amount = :amount,
			status = :status,
			attempts = :attempts,
			last_error = :last_error,
			updated_at = :updated_at,
			completed_at = :completed_at
		WHERE id = :id
	`, st)
	if err != nil {
		return internal("update scheduled transfer", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return internal("rows affected", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}
