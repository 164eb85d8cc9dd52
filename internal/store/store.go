// Package store defines the Ledger Store: the only shared mutable state of the
// credit ledger, loyalty points, promotions and the credit gateway.
//
// All reads and writes run inside a unit of work opened with Store.WithTx. The
// function passed to WithTx either returns nil and everything it did is
// committed, or returns an error and nothing it did is visible.
//
// Implementations:
//   - store/postgres: production, sqlx over lib/pq
//   - store/memory:   in-process, for tests and local runs
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store opens units of work.
type Store interface {
	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// fn may be executed more than once when the backend asks for a retry,
	// so it must not have side effects outside tx.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside a unit of work.
type Tx interface {
	LedgerRepository
	GatewayRepository
	TransferRepository
	PromotionRepository
	RewardRepository
}

// Page controls list pagination. Limit <= 0 means no limit.
type Page struct {
	Limit  int
	Offset int
}

// LedgerRepository covers balances and their append-only transaction logs for
// both books (credits and points).
type LedgerRepository interface {
	// GetBalance returns the user's balance, creating a zero row on first access.
	GetBalance(ctx context.Context, book Book, userID uuid.UUID) (*Balance, error)

	// ApplyDelta is the single balance mutation primitive. It applies
	// entry.Amount to the balance with one conditional update and appends the
	// matching transaction row. A delta that would make the balance negative
	// fails with *InsufficientBalanceError and changes nothing.
	ApplyDelta(ctx context.Context, book Book, entry Entry) (*Transaction, error)

	// ListTransactions returns the user's transactions, newest first.
	ListTransactions(ctx context.Context, book Book, userID uuid.UUID, page Page) ([]Transaction, error)

	// FindTransactionByReference returns ErrNotFound when no row matches.
	FindTransactionByReference(ctx context.Context, book Book, userID uuid.UUID, source, referenceID string) (*Transaction, error)

	// Leaderboard ranks points balances by total earned.
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// GatewayRepository covers gateway settings and gateway transactions.
type GatewayRepository interface {
	GetGatewaySettings(ctx context.Context) (*GatewaySettings, error)
	SaveGatewaySettings(ctx context.Context, settings *GatewaySettings) error

	CreateGatewayTransaction(ctx context.Context, gt *GatewayTransaction) error
	// GetGatewayTransaction returns ErrNotFound for unknown ids. forUpdate locks the row.
	GetGatewayTransaction(ctx context.Context, id uuid.UUID, forUpdate bool) (*GatewayTransaction, error)
	UpdateGatewayTransaction(ctx context.Context, gt *GatewayTransaction) error
	// ListGatewayTransactions returns transactions where the user is buyer or seller.
	ListGatewayTransactions(ctx context.Context, userID uuid.UUID, page Page) ([]GatewayTransaction, error)
	// ListStalePending returns ids of pending transactions created before olderThan.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error)
}

// TransferRepository covers deferred seller payouts.
type TransferRepository interface {
	CreateScheduledTransfer(ctx context.Context, st *ScheduledTransfer) error
	// GetScheduledTransferByTransaction returns ErrNotFound when the payment was
	// paid out immediately.
	GetScheduledTransferByTransaction(ctx context.Context, transactionID uuid.UUID, forUpdate bool) (*ScheduledTransfer, error)
	// ClaimScheduledTransfer locks the transfer row, returning ErrNotFound if it
	// does not exist or another worker holds it.
	ClaimScheduledTransfer(ctx context.Context, id uuid.UUID) (*ScheduledTransfer, error)
	// ListDueTransfers returns ids of pending transfers with scheduled_at <= now,
	// oldest first.
	ListDueTransfers(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	UpdateScheduledTransfer(ctx context.Context, st *ScheduledTransfer) error
}

// PromotionRepository covers the promotion catalog and listing promotions.
type PromotionRepository interface {
	// GetPromotionSetting returns ErrNotFound for unknown types.
	GetPromotionSetting(ctx context.Context, promotionType string) (*PromotionSetting, error)
	ListPromotionSettings(ctx context.Context, activeOnly bool) ([]PromotionSetting, error)
	UpsertPromotionSetting(ctx context.Context, setting *PromotionSetting) error

	// ReplaceActivePromotions marks every active (listing, type) row replaced.
	ReplaceActivePromotions(ctx context.Context, listingID, promotionType string, at time.Time) (int64, error)
	CreateListingPromotion(ctx context.Context, lp *ListingPromotion) error
	// ListListingPromotions returns the listing's promotions, newest first.
	ListListingPromotions(ctx context.Context, listingID string) ([]ListingPromotion, error)
	// ExpirePromotions flips active rows with expires_at < now to expired.
	ExpirePromotions(ctx context.Context, now time.Time) (int64, error)
}

// RewardRepository covers the loyalty rewards catalog.
type RewardRepository interface {
	// GetReward returns ErrNotFound for unknown ids.
	GetReward(ctx context.Context, id uuid.UUID) (*Reward, error)
	ListRewards(ctx context.Context, activeOnly bool) ([]Reward, error)
}
