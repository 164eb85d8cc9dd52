package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Book selects which ledger a balance operation targets.
type Book string

const (
	BookCredits Book = "credits"
	BookPoints  Book = "points"
)

// Kind classifies a ledger transaction.
type Kind string

const (
	KindEarned Kind = "earned"
	KindSpent  Kind = "spent"
	KindBonus  Kind = "bonus"
	KindRefund Kind = "refund"
)

// Transaction sources with a reference id that may be recorded at most once
// per user. Mirrored by the partial unique indexes in the migrations.
const (
	SourceGatewayPayment      = "gateway_payment"
	SourceGatewayCompensation = "gateway_compensation"
	SourceGatewayPayout       = "gateway_payout"
	SourceGatewayRefund       = "gateway_refund"
	SourceGatewayReversal     = "gateway_refund_reversal"
	SourceGatewayPurchase     = "gateway_purchase"
	SourceNewListing          = "new_listing"
	SourceHighQualityListing  = "high_quality_listing"
	SourceSuccessfulSale      = "successful_sale"
)

var uniqueSources = map[string]struct{}{
	SourceGatewayPayment:      {},
	SourceGatewayCompensation: {},
	SourceGatewayPayout:       {},
	SourceGatewayRefund:       {},
	SourceGatewayReversal:     {},
	SourceGatewayPurchase:     {},
	SourceNewListing:          {},
	SourceHighQualityListing:  {},
	SourceSuccessfulSale:      {},
}

// IsUniqueSource reports whether (user, source, reference) must be unique.
func IsUniqueSource(source string) bool {
	_, ok := uniqueSources[source]
	return ok
}

// Balance is a per-user aggregate. CurrentBalance == TotalEarned - TotalSpent
// and CurrentBalance >= 0 at every commit. The counters are only kept for points.
type Balance struct {
	UserID              uuid.UUID       `db:"user_id" json:"user_id"`
	TotalEarned         decimal.Decimal `db:"total_earned" json:"total_earned"`
	TotalSpent          decimal.Decimal `db:"total_spent" json:"total_spent"`
	CurrentBalance      decimal.Decimal `db:"current_balance" json:"current_balance"`
	TotalListings       int             `db:"total_listings" json:"total_listings,omitempty"`
	HighQualityListings int             `db:"high_quality_listings" json:"high_quality_listings,omitempty"`
	SuccessfulSales     int             `db:"successful_sales" json:"successful_sales,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// Counters are increments applied to the points activity counters together with a delta.
type Counters struct {
	Listings            int
	HighQualityListings int
	SuccessfulSales     int
}

// IsZero reports whether no counter changes.
func (c Counters) IsZero() bool {
	return c.Listings == 0 && c.HighQualityListings == 0 && c.SuccessfulSales == 0
}

// Entry is a signed balance delta with its transaction attributes.
type Entry struct {
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Kind        Kind
	Source      string
	Description string
	ReferenceID *string
	Counters    Counters
}

// Transaction is an append-only ledger row.
type Transaction struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	UserID      uuid.UUID       `db:"user_id" json:"user_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Kind        Kind            `db:"kind" json:"kind"`
	Source      string          `db:"source" json:"source"`
	Description string          `db:"description" json:"description"`
	ReferenceID *string         `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// LeaderboardEntry is one ranked points balance.
type LeaderboardEntry struct {
	Rank                int             `db:"rank" json:"rank"`
	UserID              uuid.UUID       `db:"user_id" json:"user_id"`
	TotalEarned         decimal.Decimal `db:"total_earned" json:"total_earned"`
	CurrentBalance      decimal.Decimal `db:"current_balance" json:"current_balance"`
	TotalListings       int             `db:"total_listings" json:"total_listings"`
	HighQualityListings int             `db:"high_quality_listings" json:"high_quality_listings"`
	SuccessfulSales     int             `db:"successful_sales" json:"successful_sales"`
}

// GatewaySettings is the singleton gateway configuration row.
type GatewaySettings struct {
	GatewayEnabled       bool            `db:"gateway_enabled" json:"gateway_enabled"`
	AutomaticTransfer    bool            `db:"automatic_transfer" json:"automatic_transfer"`
	FeePercentage        decimal.Decimal `db:"gateway_fee_percentage" json:"gateway_fee_percentage"`
	MinimumCreditAmount  decimal.Decimal `db:"minimum_credit_amount" json:"minimum_credit_amount"`
	MaximumCreditAmount  decimal.Decimal `db:"maximum_credit_amount" json:"maximum_credit_amount"`
	AllowPartialCredits  bool            `db:"allow_partial_credits" json:"allow_partial_credits"`
	RequireBackupPayment bool            `db:"require_backup_payment" json:"require_backup_payment"`
	TransferDelayHours   int             `db:"transfer_delay_hours" json:"transfer_delay_hours"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// DefaultGatewaySettings matches the row seeded by the migrations.
func DefaultGatewaySettings() GatewaySettings {
	return GatewaySettings{
		GatewayEnabled:       true,
		AutomaticTransfer:    true,
		FeePercentage:        decimal.RequireFromString("2.5"),
		MinimumCreditAmount:  decimal.NewFromInt(1),
		MaximumCreditAmount:  decimal.NewFromInt(10000),
		AllowPartialCredits:  true,
		RequireBackupPayment: false,
		TransferDelayHours:   24,
	}
}

// PaymentMethod describes how a gateway purchase is funded.
type PaymentMethod string

const (
	PaymentCreditsOnly    PaymentMethod = "credits_only"
	PaymentCreditsPartial PaymentMethod = "credits_partial"
	PaymentMixed          PaymentMethod = "mixed"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditsOnly, PaymentCreditsPartial, PaymentMixed:
		return true
	}
	return false
}

// GatewayStatus is the gateway transaction state.
type GatewayStatus string

const (
	GatewayPending   GatewayStatus = "pending"
	GatewayCompleted GatewayStatus = "completed"
	GatewayFailed    GatewayStatus = "failed"
	GatewayRefunded  GatewayStatus = "refunded"
)

// CanTransitionTo reports whether the state machine allows s -> next.
func (s GatewayStatus) CanTransitionTo(next GatewayStatus) bool {
	switch s {
	case GatewayPending:
		return next == GatewayCompleted || next == GatewayFailed
	case GatewayCompleted:
		return next == GatewayRefunded
	}
	return false
}

// Metadata is free-form JSON attached to a gateway transaction.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("metadata: unsupported scan type")
	}
	out := Metadata{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*m = out
	return nil
}

// GatewayTransaction records one purchase through the credit gateway.
type GatewayTransaction struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	BuyerID        uuid.UUID       `db:"buyer_id" json:"buyer_id"`
	SellerID       uuid.UUID       `db:"seller_id" json:"seller_id"`
	ProductRef     string          `db:"product_ref" json:"product_ref"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	CreditAmount   decimal.Decimal `db:"credit_amount" json:"credit_amount"`
	GatewayFee     decimal.Decimal `db:"gateway_fee" json:"gateway_fee"`
	PaymentMethod  PaymentMethod   `db:"payment_method" json:"payment_method"`
	BackupMethod   *string         `db:"backup_method" json:"backup_method,omitempty"`
	Status         GatewayStatus   `db:"status" json:"status"`
	Metadata       Metadata        `db:"metadata" json:"metadata,omitempty"`
	RefundedAmount decimal.Decimal `db:"refunded_amount" json:"refunded_amount"`
	FailureReason  *string         `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	RefundedAt     *time.Time      `db:"refunded_at" json:"refunded_at,omitempty"`
}

// NetCreditAmount is what the seller receives.
func (g *GatewayTransaction) NetCreditAmount() decimal.Decimal {
	return g.CreditAmount.Sub(g.GatewayFee)
}

// RemainingAmount is the part collected through the backup payment method.
func (g *GatewayTransaction) RemainingAmount() decimal.Decimal {
	return g.TotalAmount.Sub(g.CreditAmount)
}

// TransferStatus is the scheduled transfer state.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
	TransferCancelled TransferStatus = "cancelled"
)

// ScheduledTransfer is a deferred seller payout.
type ScheduledTransfer struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	TransactionID uuid.UUID       `db:"transaction_id" json:"transaction_id"`
	SellerID      uuid.UUID       `db:"seller_id" json:"seller_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	ScheduledAt   time.Time       `db:"scheduled_at" json:"scheduled_at"`
	Status        TransferStatus  `db:"status" json:"status"`
	Attempts      int             `db:"attempts" json:"attempts"`
	LastError     *string         `db:"last_error" json:"last_error,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	CompletedAt   *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// PromotionSetting is a catalog entry.
type PromotionSetting struct {
	PromotionType string          `db:"promotion_type" json:"promotion_type"`
	Name          string          `db:"name" json:"name"`
	Description   string          `db:"description" json:"description"`
	Price         decimal.Decimal `db:"price" json:"price"`
	DurationDays  int             `db:"duration_days" json:"duration_days"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// PromotionStatus is the listing promotion state.
type PromotionStatus string

const (
	PromotionActive   PromotionStatus = "active"
	PromotionReplaced PromotionStatus = "replaced"
	PromotionExpired  PromotionStatus = "expired"
)

const (
	PaidWithCredits = "credits"
	PaidWithPoints  = "points"
)

// ListingPromotion is a paid promotion applied to a listing.
type ListingPromotion struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	ListingID     string          `db:"listing_id" json:"listing_id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	PromotionType string          `db:"promotion_type" json:"promotion_type"`
	AmountPaid    decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	PaidWith      string          `db:"paid_with" json:"paid_with"`
	RewardID      *uuid.UUID      `db:"reward_id" json:"reward_id,omitempty"`
	StartsAt      time.Time       `db:"starts_at" json:"starts_at"`
	ExpiresAt     time.Time       `db:"expires_at" json:"expires_at"`
	Status        PromotionStatus `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// EffectiveStatus reports an active promotion past its expiry as expired.
func (p *ListingPromotion) EffectiveStatus(now time.Time) PromotionStatus {
	if p.Status == PromotionActive && p.ExpiresAt.Before(now) {
		return PromotionExpired
	}
	return p.Status
}

// RewardType selects what a loyalty reward grants.
type RewardType string

const (
	RewardCredits       RewardType = "credits"
	RewardBoost         RewardType = "boost"
	RewardGiveawayEntry RewardType = "giveaway_entry"
)

// Reward is a loyalty catalog entry purchasable with points.
type Reward struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Description   string          `db:"description" json:"description"`
	RewardType    RewardType      `db:"reward_type" json:"reward_type"`
	PointsCost    decimal.Decimal `db:"points_cost" json:"points_cost"`
	CreditValue   decimal.Decimal `db:"credit_value" json:"credit_value"`
	PromotionType *string         `db:"promotion_type" json:"promotion_type,omitempty"`
	DurationDays  *int            `db:"duration_days" json:"duration_days,omitempty"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
