package loyalty

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

// SourcePointsConversion marks credits granted for a redeemed credits reward.
const SourcePointsConversion = "points_conversion"

// SourceRewardRedemption marks points spent on a reward.
const SourceRewardRedemption = "reward_redemption"

// EventType is a marketplace activity that earns points.
type EventType string

const (
	EventNewListing         EventType = EventType(store.SourceNewListing)
	EventHighQualityListing EventType = EventType(store.SourceHighQualityListing)
	EventSuccessfulSale     EventType = EventType(store.SourceSuccessfulSale)
)

// Config holds points awarded per event.
type Config struct {
	NewListingPoints         int64
	HighQualityListingPoints int64
	SuccessfulSalePoints     int64
}

// DefaultConfig returns the standard earning table.
func DefaultConfig() Config {
	return Config{
		NewListingPoints:         10,
		HighQualityListingPoints: 25,
		SuccessfulSalePoints:     50,
	}
}

func (c Config) pointsFor(ev EventType) (int64, bool) {
	switch ev {
	case EventNewListing:
		return c.NewListingPoints, c.NewListingPoints > 0
	case EventHighQualityListing:
		return c.HighQualityListingPoints, c.HighQualityListingPoints > 0
	case EventSuccessfulSale:
		return c.SuccessfulSalePoints, c.SuccessfulSalePoints > 0
	}
	return 0, false
}

// countersFor returns the activity counter bumped by a source.
func countersFor(source string) store.Counters {
	switch source {
	case store.SourceNewListing:
		return store.Counters{Listings: 1}
	case store.SourceHighQualityListing:
		return store.Counters{HighQualityListings: 1}
	case store.SourceSuccessfulSale:
		return store.Counters{SuccessfulSales: 1}
	}
	return store.Counters{}
}

// TransactionMeta describes a points movement.
type TransactionMeta struct {
	Kind        store.Kind
	Source      string
	Description string
	ReferenceID *string
}

// Event is a collaborator notification that may earn points.
type Event struct {
	UserID      uuid.UUID `json:"user_id" validate:"required"`
	Type        EventType `json:"type" validate:"required,loyalty_event"`
	ReferenceID string    `json:"reference_id" validate:"required,max=255"`
}

// AwardResult reports the outcome of AwardForEvent.
// Duplicate is true when the event was already awarded; Transaction is then the original row.
type AwardResult struct {
	Transaction *store.Transaction `json:"transaction"`
	Duplicate   bool               `json:"duplicate"`
}

// Redemption is the outcome of a reward redemption.
type Redemption struct {
	Reward          store.Reward    `json:"reward"`
	PointsSpent     decimal.Decimal `json:"points_spent"`
	PointsTxID      uuid.UUID       `json:"points_transaction_id"`
	CreditsGranted  decimal.Decimal `json:"credits_granted"`
	CreditTxID      *uuid.UUID      `json:"credit_transaction_id,omitempty"`
	RemainingPoints decimal.Decimal `json:"remaining_points"`
}

// BoostRedemption is a boost reward applied to a listing.
type BoostRedemption struct {
	Promotion       store.ListingPromotion `json:"promotion"`
	ReplacedCount   int64                  `json:"replaced_count"`
	PointsTxID      uuid.UUID              `json:"points_transaction_id"`
	RemainingPoints decimal.Decimal        `json:"remaining_points"`
}

// BalanceResponse is the API view of a points balance.
type BalanceResponse struct {
	CurrentBalance      decimal.Decimal `json:"current_balance"`
	TotalEarned         decimal.Decimal `json:"total_earned"`
	TotalSpent          decimal.Decimal `json:"total_spent"`
	TotalListings       int             `json:"total_listings"`
	HighQualityListings int             `json:"high_quality_listings"`
	SuccessfulSales     int             `json:"successful_sales"`
}

func BalanceResponseFrom(b *store.Balance) BalanceResponse {
	return BalanceResponse{
		CurrentBalance:      b.CurrentBalance,
		TotalEarned:         b.TotalEarned,
		TotalSpent:          b.TotalSpent,
		TotalListings:       b.TotalListings,
		HighQualityListings: b.HighQualityListings,
		SuccessfulSales:     b.SuccessfulSales,
	}
}

// RedeemRequest is the redeem payload. ListingID is required for boost rewards.
type RedeemRequest struct {
	ListingID string `json:"listing_id" validate:"omitempty,max=255"`
}
