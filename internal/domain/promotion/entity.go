package promotion

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

// SourcePrefix prefixes the credit transaction source of a promotion purchase.
const SourcePrefix = "promotion_"

// Source returns the ledger source for a promotion type.
func Source(promotionType string) string {
	return SourcePrefix + promotionType
}

// Limits for catalog entries.
const (
	MinDurationDays = 1
	MaxDurationDays = 365
)

// Result is the outcome of applying a promotion.
type Result struct {
	Promotion     store.ListingPromotion `json:"promotion"`
	ReplacedCount int64                  `json:"replaced_count"`
	TransactionID uuid.UUID              `json:"transaction_id"`
	Remaining     decimal.Decimal        `json:"remaining_balance"`
}

// View is a listing promotion with its status as seen at read time.
type View struct {
	store.ListingPromotion
	EffectiveStatus store.PromotionStatus `json:"effective_status"`
}

func viewOf(lp store.ListingPromotion, now time.Time) View {
	return View{ListingPromotion: lp, EffectiveStatus: lp.EffectiveStatus(now)}
}
