package credit

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

// Service interface defines the credit ledger operations
type Service interface {
	// Credit atomically adds credits to a user and returns the transaction id
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta TransactionMeta) (uuid.UUID, error)

	// Debit atomically removes credits from a user.
	// Returns ErrInsufficientBalance if the balance cannot cover amount.
	Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta TransactionMeta) (uuid.UUID, error)

	// CreditTx adds credits within an external unit of work.
	// Used when the credit must be atomic with another write (payout + status change).
	CreditTx(ctx context.Context, tx store.Tx, userID uuid.UUID, amount decimal.Decimal, meta TransactionMeta) (*store.Transaction, error)

	// DebitTx removes credits within an external unit of work.
	// Used when the debit must be atomic with another write (promotion purchase).
	DebitTx(ctx context.Context, tx store.Tx, userID uuid.UUID, amount decimal.Decimal, meta TransactionMeta) (*store.Transaction, error)

	// Balance returns the user's balance, creating an empty one on first access
	Balance(ctx context.Context, userID uuid.UUID) (*store.Balance, error)

	// BalanceTx is Balance within an external unit of work
	BalanceTx(ctx context.Context, tx store.Tx, userID uuid.UUID) (*store.Balance, error)

	// History returns the user's transactions, newest first
	History(ctx context.Context, userID uuid.UUID, page store.Page) ([]store.Transaction, error)

	// GrantFromAdmin credits a bonus on behalf of an administrator
	GrantFromAdmin(ctx context.Context, adminID, userID uuid.UUID, amount decimal.Decimal, reason string) (uuid.UUID, error)
}
