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

const promotionSettingColumns = `promotion_type, name, description, price, duration_days, is_active, updated_at`

const listingPromotionColumns = `id, listing_id, user_id, promotion_type, amount_paid, paid_with,
	reward_id, starts_at, expires_at, status, created_at, updated_at`

const rewardColumns = `id, name, description, reward_type, points_cost, credit_value,
	promotion_type, duration_days, is_active, created_at`

func (r *queries) GetPromotionSetting(ctx context.Context, promotionType string) (*store.PromotionSetting, error) {
	var ps store.PromotionSetting
	err := sqlx.GetContext(ctx, r.q, &ps, `
		SELECT `+promotionSettingColumns+`
		FROM promotion_settings
		WHERE promotion_type = $1
	`, promotionType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, internal("get promotion setting", err)
	}
	return &ps, nil
}

func (r *queries) ListPromotionSettings(ctx context.Context, activeOnly bool) ([]store.PromotionSetting, error) {
	rows := make([]store.PromotionSetting, 0)
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT `+promotionSettingColumns+`
		FROM promotion_settings
		WHERE ($1 = false OR is_active)
		ORDER BY promotion_type
	`, activeOnly)
	if err != nil {
		return nil, internal("list promotion settings", err)
	}
	return rows, nil
}

func (r *queries) UpsertPromotionSetting(ctx context.Context, ps *store.PromotionSetting) error {
	err := sqlx.GetContext(ctx, r.q, &ps.UpdatedAt, `
		INSERT INTO promotion_settings (promotion_type, name, description, price, duration_days, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (promotion_type) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			duration_days = EXCLUDED.duration_days,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING updated_at
	`, ps.PromotionType, ps.Name, ps.Description, ps.Price, ps.DurationDays, ps.IsActive)
	if err != nil {
		return internal("upsert promotion setting", err)
	}
	return nil
}

func (r *queries) ReplaceActivePromotions(ctx context.Context, listingID, promotionType string, at time.Time) (int64, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE listing_promotions
		SET status = $3, updated_at = $4
		WHERE listing_id = $1 AND promotion_type = $2 AND status = $5
	`, listingID, promotionType, string(store.PromotionReplaced), at, string(store.PromotionActive))
	if err != nil {
		return 0, internal("replace active promotions", err)
	}
	return result.RowsAffected()
}

func (r *queries) CreateListingPromotion(ctx context.Context, lp *store.ListingPromotion) error {
	_, err := sqlx.NamedExecContext(ctx, r.q, `
		INSERT INTO listing_promotions (`+listingPromotionColumns+`)
		VALUES (
			:id, :listing_id, :user_id, :promotion_type, :amount_paid, :paid_with,
			:reward_id, :starts_at, :expires_at, :status, :created_at, :updated_at
		)
	`, lp)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateReference
		}
		return internal("create listing promotion", err)
	}
	return nil
}

func (r *queries) ListListingPromotions(ctx context.Context, listingID string) ([]store.ListingPromotion, error) {
	rows := make([]store.ListingPromotion, 0)
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT `+listingPromotionColumns+`
		FROM listing_promotions
		WHERE listing_id = $1
		ORDER BY created_at DESC, id
	`, listingID)
	if err != nil {
		return nil, internal("list listing promotions", err)
	}
	return rows, nil
}

func (r *queries) ExpirePromotions(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE listing_promotions
		SET status = $1, updated_at = $2
		WHERE status = $3 AND expires_at < $2
	`, string(store.PromotionExpired), now, string(store.PromotionActive))
	if err != nil {
		return 0, internal("expire promotions", err)
	}
	return result.RowsAffected()
}

func (r *queries) GetReward(ctx context.Context, id uuid.UUID) (*store.Reward, error) {
	var reward store.Reward
	err := sqlx.GetContext(ctx, r.q, &reward, `SELECT `+rewardColumns+` FROM loyalty_rewards WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, internal("get reward", err)
	}
	return &reward, nil
}

func (r *queries) ListRewards(ctx context.Context, activeOnly bool) ([]store.Reward, error) {
	rows := make([]store.Reward, 0)
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT `+rewardColumns+`
		FROM loyalty_rewards
		WHERE ($1 = false OR is_active)
		ORDER BY points_cost, name
	`, activeOnly)
	if err != nil {
		return nil, internal("list rewards", err)
	}
	return rows, nil
}
