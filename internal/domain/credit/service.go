package credit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

// DefaultHistoryLimit is used by the HTTP layer when no limit is given.
const DefaultHistoryLimit = 20

// service implements the Service interface
type service struct {
	store store.Store
}

// NewService creates a new credit service
func NewService(st store.Store) Service {
	return &service{store: st}
}

// ValidateAmount rejects non-positive amounts and amounts with sub-cent precision.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// Credit atomically adds credits to a user
func (s *service) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta TransactionMeta) (uuid.UUID, error) {
	var txID uuid.UUID
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := s.CreditTx(ctx, tx, userID, amount, meta)
		if err != nil {
			return err
		}
		txID = t.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	log.Debug().
		Str("user_id", userID.String()).
		Str("amount", amount.String()).
		Str("source", meta.Source).
		Msg("Credits added")
	return txID, nil
}

// Debit atomically removes credits from a user
func (s *service) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta TransactionMeta) (uuid.UUID, error) {
	var txID uuid.UUID
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := s.DebitTx(ctx, tx, userID, amount, meta)
		if err != nil {
			return err
		}
		txID = t.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	log.Debug().
		Str("user_id", userID.String()).
		Str("amount", amount.String()).
		Str("source", meta.Source).
		Msg("Credits deducted")
	return txID, nil
}

func (s *service) CreditTx(ctx context.Context, tx store.Tx, userID uuid.UUID, amount decimal.Decimal, meta TransactionMeta) (*store.Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	kind := meta.Kind
	if kind == "" {
		kind = store.KindEarned
	}
	return s.apply(ctx, tx, userID, amount, kind, meta)
}

func (s *service) DebitTx(ctx context.Context, tx store.Tx, userID uuid.UUID, amount decimal.Decimal, meta TransactionMeta) (*store.Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	kind := meta.Kind
	if kind == "" {
		kind = store.KindSpent
	}
	return s.apply(ctx, tx, userID, amount.Neg(), kind, meta)
}

func (s *service) apply(ctx context.Context, tx store.Tx, userID uuid.UUID, delta decimal.Decimal, kind store.Kind, meta TransactionMeta) (*store.Transaction, error) {
	if meta.Source == "" {
		return nil, ErrMissingSource
	}
	t, err := tx.ApplyDelta(ctx, store.BookCredits, store.Entry{
		UserID:      userID,
		Amount:      delta,
		Kind:        kind,
		Source:      meta.Source,
		Description: meta.Description,
		ReferenceID: meta.ReferenceID,
	})
	if err != nil {
		return nil, fmt.Errorf("credit ledger %s: %w", meta.Source, err)
	}
	return t, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*store.Balance, error) {
	var b *store.Balance
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		b, err = s.BalanceTx(ctx, tx, userID)
		return err
	})
	return b, err
}

func (s *service) BalanceTx(ctx context.Context, tx store.Tx, userID uuid.UUID) (*store.Balance, error) {
	return tx.GetBalance(ctx, store.BookCredits, userID)
}

// History returns the user's credit transactions, newest first
func (s *service) History(ctx context.Context, userID uuid.UUID, page store.Page) ([]store.Transaction, error) {
	var items []store.Transaction
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		items, err = tx.ListTransactions(ctx, store.BookCredits, userID, page)
		return err
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.Transaction{}
	}
	return items, nil
}

// GrantFromAdmin records an administrator bonus
func (s *service) GrantFromAdmin(ctx context.Context, adminID, userID uuid.UUID, amount decimal.Decimal, reason string) (uuid.UUID, error) {
	txID, err := s.Credit(ctx, userID, amount, TransactionMeta{
		Kind:        store.KindBonus,
		Source:      SourceAdminGrant,
		Description: reason,
		ReferenceID: Ref(adminID.String()),
	})
	if err != nil {
		return uuid.Nil, err
	}

	log.Info().
		Str("admin_id", adminID.String()).
		Str("user_id", userID.String()).
		Str("amount", amount.String()).
		Msg("Admin granted credits")
	return txID, nil
}
