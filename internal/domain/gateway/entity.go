package gateway

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

const (
	MaxTransferDelayHours = 720
	recoveryBatchSize     = 100

	metaBackupExternalID = "backup_external_id"
)

// PaymentRequest describes a purchase paid fully or partly with credits.
type PaymentRequest struct {
	BuyerID       uuid.UUID           `json:"-"`
	SellerID      uuid.UUID           `json:"seller_id" validate:"required"`
	ProductRef    string              `json:"product_ref" validate:"required,max=128"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	CreditAmount  decimal.Decimal     `json:"credit_amount"`
	PaymentMethod store.PaymentMethod `json:"payment_method" validate:"required,payment_method"`
	BackupMethod  string              `json:"backup_method,omitempty" validate:"max=32"`
	Description   string              `json:"description,omitempty" validate:"max=500"`
}

// BreakdownRequest is the body of POST /gateway/breakdown
type BreakdownRequest struct {
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
}

// LineItem is one row of a payment breakdown.
type LineItem struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Breakdown shows how a payment splits between credits, fee and backup method.
type Breakdown struct {
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CreditAmount    decimal.Decimal `json:"credit_amount"`
	FeePercentage   decimal.Decimal `json:"fee_percentage"`
	GatewayFee      decimal.Decimal `json:"gateway_fee"`
	NetCreditAmount decimal.Decimal `json:"net_credit_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	LineItems       []LineItem      `json:"line_items"`
}

// SettingsUpdate patches the gateway settings. Nil fields are left unchanged.
type SettingsUpdate struct {
	GatewayEnabled       *bool            `json:"gateway_enabled,omitempty"`
	AutomaticTransfer    *bool            `json:"automatic_transfer,omitempty"`
	FeePercentage        *decimal.Decimal `json:"gateway_fee_percentage,omitempty"`
	MinimumCreditAmount  *decimal.Decimal `json:"minimum_credit_amount,omitempty"`
	MaximumCreditAmount  *decimal.Decimal `json:"maximum_credit_amount,omitempty"`
	AllowPartialCredits  *bool            `json:"allow_partial_credits,omitempty"`
	RequireBackupPayment *bool            `json:"require_backup_payment,omitempty"`
	TransferDelayHours   *int             `json:"transfer_delay_hours,omitempty"`
}

func (u SettingsUpdate) apply(s *store.GatewaySettings) {
	if u.GatewayEnabled != nil {
		s.GatewayEnabled = *u.GatewayEnabled
	}
	if u.AutomaticTransfer != nil {
		s.AutomaticTransfer = *u.AutomaticTransfer
	}
	if u.FeePercentage != nil {
		s.FeePercentage = *u.FeePercentage
	}
	if u.MinimumCreditAmount != nil {
		s.MinimumCreditAmount = *u.MinimumCreditAmount
	}
	if u.MaximumCreditAmount != nil {
		s.MaximumCreditAmount = *u.MaximumCreditAmount
	}
	if u.AllowPartialCredits != nil {
		s.AllowPartialCredits = *u.AllowPartialCredits
	}
	if u.RequireBackupPayment != nil {
		s.RequireBackupPayment = *u.RequireBackupPayment
	}
	if u.TransferDelayHours != nil {
		s.TransferDelayHours = *u.TransferDelayHours
	}
}

// RefundRequest is the body of the admin refund endpoint. A nil amount
// refunds the full credit amount.
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// CalculateFee returns round2(creditAmount * feePercentage / 100).
func CalculateFee(creditAmount, feePercentage decimal.Decimal) decimal.Decimal {
	return creditAmount.Mul(feePercentage).Div(decimal.NewFromInt(100)).Round(2)
}

func hasTwoDecimals(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}
