package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

const settingsColumns = `gateway_enabled, automatic_transfer, gateway_fee_percentage,
	minimum_credit_amount, maximum_credit_amount, allow_partial_credits,
	require_backup_payment, transfer_delay_hours, updated_at`

const gatewayColumns = `id, buyer_id, seller_id, product_ref, total_amount, credit_amount,
	gateway_fee, payment_method, backup_method, status, metadata, refunded_amount,
	failure_reason, created_at, updated_at, completed_at, refunded_at`

func (r *queries) GetGatewaySettings(ctx context.Context) (*store.GatewaySettings, error) {
	var s store.GatewaySettings
	err := sqlx.GetContext(ctx, r.q, &s, `SELECT `+settingsColumns+` FROM gateway_settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		d := store.DefaultGatewaySettings()
		return &d, nil
	}
	if err != nil {
		return nil, internal("get gateway settings", err)
	}
	return &s, nil
}

func (r *queries) SaveGatewaySettings(ctx context.Context, s *store.GatewaySettings) error {
	err := sqlx.GetContext(ctx, r.q, &s.UpdatedAt, `
		INSERT INTO gateway_settings (
			id, gateway_enabled, automatic_transfer, gateway_fee_percentage,
			minimum_credit_amount, maximum_credit_amount, allow_partial_credits,
			require_backup_payment, transfer_delay_hours, updated_at
		)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			gateway_enabled = EXCLUDED.gateway_enabled,
			automatic_transfer = EXCLUDED.automatic_transfer,
			gateway_fee_percentage = EXCLUDED.gateway_fee_percentage,
			minimum_credit_amount = EXCLUDED.minimum_credit_amount,
			maximum_credit_amount = EXCLUDED.maximum_credit_amount,
			allow_partial_credits = EXCLUDED.allow_partial_credits,
			require_backup_payment = EXCLUDED.require_backup_payment,
			transfer_delay_hours = EXCLUDED.transfer_delay_hours,
			updated_at = NOW()
		RETURNING updated_at
	`, s.GatewayEnabled, s.AutomaticTransfer, s.FeePercentage, s.MinimumCreditAmount,
		s.MaximumCreditAmount, s.AllowPartialCredits, s.RequireBackupPayment, s.TransferDelayHours)
	if err != nil {
		return internal("save gateway settings", err)
	}
	return nil
}

func (r *queries) CreateGatewayTransaction(ctx context.Context, gt *store.GatewayTransaction) error {
	_, err := sqlx.NamedExecContext(ctx, r.q, `
		INSERT INTO gateway_transactions (`+gatewayColumns+`)
		VALUES (
			:id, :buyer_id, :seller_id, :product_ref, :total_amount, :credit_amount,
			:gateway_fee, :payment_method, :backup_method, :status, :metadata, :refunded_amount,
			:failure_reason, :created_at, :updated_at, :completed_at, :refunded_at
		)
	`, gt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateReference
		}
		return internal("create gateway transaction", err)
	}
	return nil
}

func (r *queries) GetGatewayTransaction(ctx context.Context, id uuid.UUID, forUpdate bool) (*store.GatewayTransaction, error) {
	query := `SELECT ` + gatewayColumns + ` FROM gateway_transactions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var gt store.GatewayTransaction
	err := sqlx.GetContext(ctx, r.q, &gt, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, internal("get gateway transaction", err)
	}
	return &gt, nil
}

func (r *queries) UpdateGatewayTransaction(ctx context.Context, gt *store.GatewayTransaction) error {
	result, err := sqlx.NamedExecContext(ctx, r.q, `
		UPDATE gateway_transactions
		SET gateway_fee = :gateway_fee,
			status = :status,
			metadata = :metadata,
			refunded_amount = :refunded_amount,
			failure_reason = :failure_reason,
			updated_at = :updated_at,
			completed_at = :completed_at,
			refunded_at = :refunded_at
		WHERE id = :id
	`, gt)
	if err != nil {
		return internal("update gateway transaction", err)
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

func (r *queries) ListGatewayTransactions(ctx context.Context, userID uuid.UUID, page store.Page) ([]store.GatewayTransaction, error) {
	rows := make([]store.GatewayTransaction, 0)
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT `+gatewayColumns+`
		FROM gateway_transactions
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, userID, limitArg(page), page.Offset)
	if err != nil {
		return nil, internal("list gateway transactions", err)
	}
	return rows, nil
}

func (r *queries) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	err := sqlx.SelectContext(ctx, r.q, &ids, `
		SELECT id
		FROM gateway_transactions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, string(store.GatewayPending), olderThan, limitArg(store.Page{Limit: limit}))
	if err != nil {
		return nil, internal(fmt.Sprintf("list stale pending (older than %s)", olderThan.Format(time.RFC3339)), err)
	}
	return ids, nil
}
