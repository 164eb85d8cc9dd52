package promotion_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cczslater/sellbuydeal-sub000/internal/domain/credit"
	"github.com/cczslater/sellbuydeal-sub000/internal/domain/loyalty"
	"github.com/cczslater/sellbuydeal-sub000/internal/domain/promotion"
	"github.com/cczslater/sellbuydeal-sub000/internal/store"
	"github.com/cczslater/sellbuydeal-sub000/internal/store/memory"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

type fixture struct {
	clock   *clock
	credits credit.Service
	points  *loyalty.Service
	engine  *promotion.Engine
}

func newFixture() fixture {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	st := memory.New(memory.WithClock(c.now))
	credits := credit.NewService(st)
	points := loyalty.NewService(st, credits, loyalty.DefaultConfig())
	return fixture{
		clock:   c,
		credits: credits,
		points:  points,
		engine:  promotion.NewEngine(st, credits, points, promotion.WithClock(c.now)),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f fixture) fund(t *testing.T, userID uuid.UUID, amount string) {
	t.Helper()
	_, err := f.credits.Credit(context.Background(), userID, dec(amount), credit.TransactionMeta{Source: "purchase"})
	require.NoError(t, err)
}

func TestApplyPromotionDebitsAndActivates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	f.fund(t, userID, "10.00")

	res, err := f.engine.ApplyPromotion(ctx, userID, "listing-1", "featured_listing")
	require.NoError(t, err)

	assert.True(t, res.Remaining.Equal(dec("7.01")), res.Remaining.String())
	assert.Equal(t, store.PromotionActive, res.Promotion.Status)
	assert.Equal(t, f.clock.t.AddDate(0, 0, 7), res.Promotion.ExpiresAt)
	assert.Equal(t, store.PaidWithCredits, res.Promotion.PaidWith)
	assert.EqualValues(t, 0, res.ReplacedCount)

	history, err := f.credits.History(ctx, userID, store.Page{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, promotion.Source("featured_listing"), history[0].Source)
	require.NotNil(t, history[0].ReferenceID)
	assert.Equal(t, "listing-1", *history[0].ReferenceID)
}

func TestApplyPromotionReplacesActiveOfSameType(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	f.fund(t, userID, "20")

	first, err := f.engine.ApplyPromotion(ctx, userID, "listing-1", "urgent_badge")
	require.NoError(t, err)
	second, err := f.engine.ApplyPromotion(ctx, userID, "listing-1", "urgent_badge")
	require.NoError(t, err)
	assert.EqualValues(t, 1, second.ReplacedCount)

	// a different type stays active alongside
	_, err = f.engine.ApplyPromotion(ctx, userID, "listing-1", "featured_listing")
	require.NoError(t, err)

	all, err := f.engine.ListForListing(ctx, "listing-1", false)
	require.NoError(t, err)
	require.Len(t, all, 3)

	statuses := map[uuid.UUID]store.PromotionStatus{}
	for _, v := range all {
		statuses[v.ID] = v.Status
	}
	assert.Equal(t, store.PromotionReplaced, statuses[first.Promotion.ID])
	assert.Equal(t, store.PromotionActive, statuses[second.Promotion.ID])

	active, err := f.engine.ListForListing(ctx, "listing-1", true)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestApplyPromotionInsufficientCreditsIsAtomic(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	f.fund(t, userID, "1.00")

	_, err := f.engine.ApplyPromotion(ctx, userID, "listing-1", "featured_listing")
	require.ErrorIs(t, err, promotion.ErrInsufficientBalance)

	all, err := f.engine.ListForListing(ctx, "listing-1", false)
	require.NoError(t, err)
	assert.Empty(t, all)

	b, err := f.credits.Balance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, b.CurrentBalance.Equal(dec("1")))
}

func TestApplyPromotionUnknownOrInactiveType(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	f.fund(t, userID, "50")

	_, err := f.engine.ApplyPromotion(ctx, userID, "listing-1", "rainbow_border")
	assert.ErrorIs(t, err, promotion.ErrUnknownPromotion)

	_, err = f.engine.UpsertSetting(ctx, store.PromotionSetting{PromotionType: "urgent_badge", Name: "Urgent", Price: dec("1.99"), DurationDays: 3, IsActive: false})
	require.NoError(t, err)
	_, err = f.engine.ApplyPromotion(ctx, userID, "listing-1", "urgent_badge")
	assert.ErrorIs(t, err, promotion.ErrUnknownPromotion)

	_, err = f.engine.ApplyPromotion(ctx, userID, "  ", "featured_listing")
	assert.ErrorIs(t, err, promotion.ErrInvalidListing)
}

func TestExpiryIsLazyAndSwept(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	f.fund(t, userID, "5")

	_, err := f.engine.ApplyPromotion(ctx, userID, "listing-1", "urgent_badge")
	require.NoError(t, err)

	f.clock.t = f.clock.t.AddDate(0, 0, 4)

	views, err := f.engine.ListForListing(ctx, "listing-1", false)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, store.PromotionActive, views[0].Status, "row not yet swept")
	assert.Equal(t, store.PromotionExpired, views[0].EffectiveStatus)

	active, err := f.engine.ListForListing(ctx, "listing-1", true)
	require.NoError(t, err)
	assert.Empty(t, active)

	n, err := f.engine.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	views, err = f.engine.ListForListing(ctx, "listing-1", false)
	require.NoError(t, err)
	assert.Equal(t, store.PromotionExpired, views[0].Status)

	require.NoError(t, promotion.NewExpiryJob(f.engine).Run(ctx))
}

func TestRedeemPointsForBoost(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.points.Award(ctx, userID, decimal.NewFromInt(350), loyalty.TransactionMeta{Source: "manual"})
	require.NoError(t, err)

	res, err := f.engine.RedeemPointsForBoost(ctx, userID, store.RewardFeaturedBoostID, "listing-7")
	require.NoError(t, err)
	assert.Equal(t, store.PaidWithPoints, res.Promotion.PaidWith)
	assert.True(t, res.Promotion.AmountPaid.IsZero())
	assert.Equal(t, "featured_listing", res.Promotion.PromotionType)
	assert.Equal(t, f.clock.t.AddDate(0, 0, 3), res.Promotion.ExpiresAt)
	assert.True(t, res.Remaining.Equal(decimal.NewFromInt(50)))

	_, err = f.engine.RedeemPointsForBoost(ctx, userID, store.RewardFeaturedBoostID, "listing-8")
	assert.ErrorIs(t, err, promotion.ErrInsufficientBalance)

	_, err = f.engine.RedeemPointsForBoost(ctx, userID, store.RewardCreditsSmallID, "listing-8")
	assert.ErrorIs(t, err, promotion.ErrUnknownReward)
}

func TestRedeemBoostForLoyaltyHandler(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.points.Award(ctx, userID, decimal.NewFromInt(300), loyalty.TransactionMeta{Source: "manual"})
	require.NoError(t, err)

	var redeemer loyalty.BoostRedeemer = f.engine
	red, err := redeemer.RedeemBoost(ctx, userID, store.RewardFeaturedBoostID, "listing-3")
	require.NoError(t, err)
	assert.Equal(t, "listing-3", red.Promotion.ListingID)
	assert.Equal(t, store.PaidWithPoints, red.Promotion.PaidWith)
	assert.NotEqual(t, uuid.Nil, red.PointsTxID)
	assert.True(t, red.RemainingPoints.IsZero(), red.RemainingPoints.String())

	red, err = redeemer.RedeemBoost(ctx, userID, store.RewardFeaturedBoostID, "listing-3")
	assert.ErrorIs(t, err, promotion.ErrInsufficientBalance)
	assert.Nil(t, red)
}

func TestUpsertSettingValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cases := []store.PromotionSetting{
		{PromotionType: "Bad Type", Name: "x", Price: dec("1"), DurationDays: 1},
		{PromotionType: "ok_type", Name: "x", Price: dec("-1"), DurationDays: 1},
		{PromotionType: "ok_type", Name: "x", Price: dec("1.001"), DurationDays: 1},
		{PromotionType: "ok_type", Name: "x", Price: dec("1"), DurationDays: 0},
		{PromotionType: "ok_type", Name: "x", Price: dec("1"), DurationDays: 366},
		{PromotionType: "ok_type", Name: " ", Price: dec("1"), DurationDays: 1},
	}
	for _, c := range cases {
		_, err := f.engine.UpsertSetting(ctx, c)
		assert.ErrorIs(t, err, promotion.ErrInvalidSetting, "%+v", c)
	}

	saved, err := f.engine.UpsertSetting(ctx, store.PromotionSetting{PromotionType: "gallery_pin", Name: "Gallery pin", Price: dec("0.99"), DurationDays: 2, IsActive: true})
	require.NoError(t, err)
	assert.False(t, saved.UpdatedAt.IsZero())

	settings, err := f.engine.ListSettings(ctx, true)
	require.NoError(t, err)
	assert.Len(t, settings, len(store.DefaultPromotionSettings())+1)
}
