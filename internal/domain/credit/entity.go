package credit

import (
	"github.com/shopspring/decimal"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

// Sources used by the credit ledger itself. Other packages pass their own.
const (
	SourceAdminGrant = "admin_grant"
)

// TransactionMeta describes a credit movement.
type TransactionMeta struct {
	// Kind defaults to earned for credits and spent for debits.
	Kind        store.Kind
	Source      string
	Description string
	ReferenceID *string
}

// Ref is a helper for optional reference ids.
func Ref(id string) *string {
	return &id
}

// BalanceResponse is the API view of a credit balance.
type BalanceResponse struct {
	CurrentBalance decimal.Decimal `json:"current_balance"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
}

func BalanceResponseFrom(b *store.Balance) BalanceResponse {
	return BalanceResponse{
		CurrentBalance: b.CurrentBalance,
		TotalEarned:    b.TotalEarned,
		TotalSpent:     b.TotalSpent,
	}
}

// GrantRequest is the admin grant payload.
type GrantRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"required,max=255"`
}
