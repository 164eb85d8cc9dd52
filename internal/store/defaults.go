package store

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Seeded catalog ids. The migrations insert the same rows.
var (
	RewardCreditsSmallID  = uuid.MustParse("6f1c2a8e-3b1d-4c55-9e2a-0c1f8b7d5a01")
	RewardCreditsLargeID  = uuid.MustParse("6f1c2a8e-3b1d-4c55-9e2a-0c1f8b7d5a02")
	RewardFeaturedBoostID = uuid.MustParse("6f1c2a8e-3b1d-4c55-9e2a-0c1f8b7d5a03")
	RewardGiveawayEntryID = uuid.MustParse("6f1c2a8e-3b1d-4c55-9e2a-0c1f8b7d5a04")
)

// DefaultPromotionSettings is the seeded promotion catalog.
func DefaultPromotionSettings() []PromotionSetting {
	return []PromotionSetting{
		{PromotionType: "featured_listing", Name: "Featured listing", Description: "Pinned in the featured carousel", Price: decimal.RequireFromString("2.99"), DurationDays: 7, IsActive: true},
		{PromotionType: "urgent_badge", Name: "Urgent badge", Description: "Urgent badge on the listing card", Price: decimal.RequireFromString("1.99"), DurationDays: 3, IsActive: true},
		{PromotionType: "top_of_search", Name: "Top of search", Description: "Ranked first in matching searches", Price: decimal.RequireFromString("4.99"), DurationDays: 7, IsActive: true},
		{PromotionType: "homepage_spotlight", Name: "Homepage spotlight", Description: "Shown on the homepage spotlight", Price: decimal.RequireFromString("9.99"), DurationDays: 14, IsActive: true},
	}
}

// DefaultRewards is the seeded loyalty rewards catalog.
func DefaultRewards() []Reward {
	featured := "featured_listing"
	boostDays := 3
	return []Reward{
		{ID: RewardCreditsSmallID, Name: "5 credits", Description: "Convert points into 5 credits", RewardType: RewardCredits, PointsCost: decimal.NewFromInt(500), CreditValue: decimal.NewFromInt(5), IsActive: true},
		{ID: RewardCreditsLargeID, Name: "25 credits", Description: "Convert points into 25 credits", RewardType: RewardCredits, PointsCost: decimal.NewFromInt(2250), CreditValue: decimal.NewFromInt(25), IsActive: true},
		{ID: RewardFeaturedBoostID, Name: "Featured boost", Description: "3 days of featured placement", RewardType: RewardBoost, PointsCost: decimal.NewFromInt(300), CreditValue: decimal.Zero, PromotionType: &featured, DurationDays: &boostDays, IsActive: true},
		{ID: RewardGiveawayEntryID, Name: "Giveaway entry", Description: "One entry into the monthly giveaway", RewardType: RewardGiveawayEntry, PointsCost: decimal.NewFromInt(100), CreditValue: decimal.Zero, IsActive: true},
	}
}
