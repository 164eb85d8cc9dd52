package promotion

import (
	"github.com/shopspring/decimal"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

// ApplyRequest applies a paid promotion to a listing
type ApplyRequest struct {
	ListingID     string `json:"listing_id" validate:"required,max=255"`
	PromotionType string `json:"promotion_type" validate:"required,max=64"`
}

// SettingRequest creates or updates a catalog entry
type SettingRequest struct {
	Name         string          `json:"name" validate:"required,max=255"`
	Description  string          `json:"description" validate:"max=2000"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"duration_days" validate:"gte=1,lte=365"`
	IsActive     *bool           `json:"is_active"`
}

func (r SettingRequest) toSetting(promotionType string) store.PromotionSetting {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return store.PromotionSetting{
		PromotionType: promotionType,
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		DurationDays:  r.DurationDays,
		IsActive:      active,
	}
}
