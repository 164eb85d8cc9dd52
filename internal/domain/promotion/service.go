package promotion

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/cczslater/sellbuydeal-sub000/internal/domain/credit"
	"github.com/cczslater/sellbuydeal-sub000/internal/domain/loyalty"
	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

var promotionTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,63}$`)

// Engine applies paid promotions to listings. Every purchase is one unit of
// work: debit, replacement of the active promotion and insert commit together.
type Engine struct {
	store   store.Store
	credits credit.Service
	points  *loyalty.Service
	now     func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(st store.Store, credits credit.Service, points *loyalty.Service, opts ...Option) *Engine {
	e := &Engine{store: st, credits: credits, points: points, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ApplyPromotion debits the promotion price from the user's credits and makes
// the promotion the listing's only active one of its type.
func (e *Engine) ApplyPromotion(ctx context.Context, userID uuid.UUID, listingID, promotionType string) (*Result, error) {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return nil, ErrInvalidListing
	}

	var res *Result
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		setting, err := activeSetting(ctx, tx, promotionType)
		if err != nil {
			return err
		}

		var txID uuid.UUID
		if setting.Price.IsPositive() {
			t, err := e.credits.DebitTx(ctx, tx, userID, setting.Price, credit.TransactionMeta{
				Source:      Source(setting.PromotionType),
				Description: fmt.Sprintf("%s for listing %s", setting.Name, listingID),
				ReferenceID: credit.Ref(listingID),
			})
			if err != nil {
				return err
			}
			txID = t.ID
		}

		lp := store.ListingPromotion{
			ListingID:     listingID,
			UserID:        userID,
			PromotionType: setting.PromotionType,
			AmountPaid:    setting.Price,
			PaidWith:      store.PaidWithCredits,
		}
		replaced, err := e.activate(ctx, tx, &lp, setting.DurationDays)
		if err != nil {
			return err
		}

		b, err := e.credits.BalanceTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		res = &Result{Promotion: lp, ReplacedCount: replaced, TransactionID: txID, Remaining: b.CurrentBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("listing_id", listingID).
		Str("promotion_type", promotionType).
		Int64("replaced", res.ReplacedCount).
		Msg("Promotion applied")
	return res, nil
}

// RedeemPointsForBoost applies a boost reward to a listing, paid with points.
func (e *Engine) RedeemPointsForBoost(ctx context.Context, userID, rewardID uuid.UUID, listingID string) (*Result, error) {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return nil, ErrInvalidListing
	}

	var res *Result
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		reward, err := loyalty.GetActiveReward(ctx, tx, rewardID)
		if err != nil {
			return err
		}
		if reward.RewardType != store.RewardBoost || reward.PromotionType == nil {
			return ErrUnknownReward
		}

		setting, err := activeSetting(ctx, tx, *reward.PromotionType)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnknownReward, err)
		}
		days := setting.DurationDays
		if reward.DurationDays != nil && *reward.DurationDays > 0 {
			days = *reward.DurationDays
		}

		spent, err := e.points.SpendTx(ctx, tx, userID, reward.PointsCost, loyalty.TransactionMeta{
			Source:      loyalty.SourceRewardRedemption,
			Description: fmt.Sprintf("%s for listing %s", reward.Name, listingID),
			ReferenceID: credit.Ref(reward.ID.String()),
		})
		if err != nil {
			return err
		}

		lp := store.ListingPromotion{
			ListingID:     listingID,
			UserID:        userID,
			PromotionType: setting.PromotionType,
			AmountPaid:    decimal.Zero,
			PaidWith:      store.PaidWithPoints,
			RewardID:      &reward.ID,
		}
		replaced, err := e.activate(ctx, tx, &lp, days)
		if err != nil {
			return err
		}

		b, err := tx.GetBalance(ctx, store.BookPoints, userID)
		if err != nil {
			return err
		}
		res = &Result{Promotion: lp, ReplacedCount: replaced, TransactionID: spent.ID, Remaining: b.CurrentBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("listing_id", listingID).
		Str("reward_id", rewardID.String()).
		Msg("Boost redeemed with points")
	return res, nil
}

var _ loyalty.BoostRedeemer = (*Engine)(nil)

// RedeemBoost adapts RedeemPointsForBoost to loyalty.BoostRedeemer.
func (e *Engine) RedeemBoost(ctx context.Context, userID, rewardID uuid.UUID, listingID string) (*loyalty.BoostRedemption, error) {
	res, err := e.RedeemPointsForBoost(ctx, userID, rewardID, listingID)
	if err != nil {
		return nil, err
	}
	return &loyalty.BoostRedemption{
		Promotion:       res.Promotion,
		ReplacedCount:   res.ReplacedCount,
		PointsTxID:      res.TransactionID,
		RemainingPoints: res.Remaining,
	}, nil
}

// activate replaces the listing's active promotion of the same type and inserts lp.
func (e *Engine) activate(ctx context.Context, tx store.Tx, lp *store.ListingPromotion, durationDays int) (int64, error) {
	now := e.now().UTC()
	replaced, err := tx.ReplaceActivePromotions(ctx, lp.ListingID, lp.PromotionType, now)
	if err != nil {
		return 0, err
	}

	lp.ID = uuid.New()
	lp.StartsAt = now
	lp.ExpiresAt = now.AddDate(0, 0, durationDays)
	lp.Status = store.PromotionActive
	lp.CreatedAt = now
	lp.UpdatedAt = now
	if err := tx.CreateListingPromotion(ctx, lp); err != nil {
		return 0, err
	}
	return replaced, nil
}

func activeSetting(ctx context.Context, tx store.Tx, promotionType string) (*store.PromotionSetting, error) {
	setting, err := tx.GetPromotionSetting(ctx, promotionType)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownPromotion
	}
	if err != nil {
		return nil, err
	}
	if !setting.IsActive {
		return nil, ErrUnknownPromotion
	}
	return setting, nil
}

// ListForListing returns the listing's promotions newest first, with expiry
// applied at read time.
func (e *Engine) ListForListing(ctx context.Context, listingID string, activeOnly bool) ([]View, error) {
	var rows []store.ListingPromotion
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		rows, err = tx.ListListingPromotions(ctx, listingID)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := e.now()
	out := make([]View, 0, len(rows))
	for _, lp := range rows {
		v := viewOf(lp, now)
		if activeOnly && v.EffectiveStatus != store.PromotionActive {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *Engine) ListSettings(ctx context.Context, activeOnly bool) ([]store.PromotionSetting, error) {
	var out []store.PromotionSetting
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListPromotionSettings(ctx, activeOnly)
		return err
	})
	return out, err
}

// UpsertSetting validates and stores a catalog entry.
func (e *Engine) UpsertSetting(ctx context.Context, setting store.PromotionSetting) (*store.PromotionSetting, error) {
	if !promotionTypePattern.MatchString(setting.PromotionType) {
		return nil, fmt.Errorf("%w: promotion type must match %s", ErrInvalidSetting, promotionTypePattern)
	}
	if setting.Price.IsNegative() || !setting.Price.Equal(setting.Price.Truncate(2)) {
		return nil, fmt.Errorf("%w: price must be >= 0 with at most 2 decimals", ErrInvalidSetting)
	}
	if setting.DurationDays < MinDurationDays || setting.DurationDays > MaxDurationDays {
		return nil, fmt.Errorf("%w: duration must be %d..%d days", ErrInvalidSetting, MinDurationDays, MaxDurationDays)
	}
	if strings.TrimSpace(setting.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSetting)
	}

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpsertPromotionSetting(ctx, &setting)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("promotion_type", setting.PromotionType).Str("price", setting.Price.String()).Msg("Promotion setting saved")
	return &setting, nil
}

// ExpireSweep flips active promotions past their expiry to expired.
func (e *Engine) ExpireSweep(ctx context.Context) (int64, error) {
	var n int64
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.ExpirePromotions(ctx, e.now())
		return err
	})
	return n, err
}
