// Package storetest holds behaviour shared by every store.Store
// implementation. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

// Run executes the contract against stores built by newStore. Stores may be
// shared between cases, so every case works on fresh user and listing ids.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("ApplyDeltaKeepsBalanceInvariant", func(t *testing.T) { testApplyDelta(t, newStore(t)) })
	t.Run("InsufficientBalanceChangesNothing", func(t *testing.T) { testInsufficient(t, newStore(t)) })
	t.Run("UniqueReference", func(t *testing.T) { testUniqueReference(t, newStore(t)) })
	t.Run("RollbackDiscardsWrites", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("ConcurrentDebitsNeverOverdraw", func(t *testing.T) { testConcurrentDebits(t, newStore(t)) })
	t.Run("GatewayTransactions", func(t *testing.T) { testGatewayTransactions(t, newStore(t)) })
	t.Run("ScheduledTransfers", func(t *testing.T) { testScheduledTransfers(t, newStore(t)) })
	t.Run("ListingPromotions", func(t *testing.T) { testListingPromotions(t, newStore(t)) })
	t.Run("SeededCatalogs", func(t *testing.T) { testSeededCatalogs(t, newStore(t)) })
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ref(s string) *string { return &s }

func credit(userID uuid.UUID, amount string) store.Entry {
	return store.Entry{UserID: userID, Amount: dec(amount), Kind: store.KindEarned, Source: "purchase"}
}

func debit(userID uuid.UUID, amount string) store.Entry {
	return store.Entry{UserID: userID, Amount: dec(amount).Neg(), Kind: store.KindSpent, Source: "promotion"}
}

func balance(t *testing.T, st store.Store, book store.Book, userID uuid.UUID) *store.Balance {
	t.Helper()
	var b *store.Balance
	require.NoError(t, st.WithTx(context.Background(), func(tx store.Tx) error {
		var err error
		b, err = tx.GetBalance(context.Background(), book, userID)
		return err
	}))
	return b
}

func apply(st store.Store, book store.Book, e store.Entry) error {
	return st.WithTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.ApplyDelta(context.Background(), book, e)
		return err
	})
}

func testApplyDelta(t *testing.T, st store.Store) {
	ctx := context.Background()
	user := uuid.New()

	b := balance(t, st, store.BookCredits, user)
	assert.True(t, b.CurrentBalance.IsZero())

	require.NoError(t, apply(st, store.BookCredits, credit(user, "30.50")))
	require.NoError(t, apply(st, store.BookCredits, debit(user, "10.25")))

	b = balance(t, st, store.BookCredits, user)
	assert.True(t, b.CurrentBalance.Equal(dec("20.25")), b.CurrentBalance.String())
	assert.True(t, b.TotalEarned.Equal(dec("30.50")))
	assert.True(t, b.TotalSpent.Equal(dec("10.25")))
	assert.True(t, b.CurrentBalance.Equal(b.TotalEarned.Sub(b.TotalSpent)))

	// the points book is independent
	assert.True(t, balance(t, st, store.BookPoints, user).CurrentBalance.IsZero())

	var rows []store.Transaction
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		var err error
		rows, err = tx.ListTransactions(ctx, store.BookCredits, user, store.Page{})
		return err
	}))
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Amount.Equal(dec("-10.25")), "newest first")
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.Amount)
	}
	assert.True(t, sum.Equal(b.CurrentBalance))
}

func testInsufficient(t *testing.T, st store.Store) {
	user := uuid.New()
	require.NoError(t, apply(st, store.BookCredits, credit(user, "5")))

	err := apply(st, store.BookCredits, debit(user, "7.50"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrInsufficientBalance))

	var ibe *store.InsufficientBalanceError
	require.True(t, errors.As(err, &ibe))
	assert.True(t, ibe.Shortfall().Equal(dec("2.5")), ibe.Shortfall().String())

	b := balance(t, st, store.BookCredits, user)
	assert.True(t, b.CurrentBalance.Equal(dec("5")))
	assert.True(t, b.TotalSpent.IsZero())
}

func testUniqueReference(t *testing.T, st store.Store) {
	ctx := context.Background()
	user := uuid.New()
	payment := uuid.NewString()

	e := store.Entry{UserID: user, Amount: dec("9"), Kind: store.KindEarned, Source: store.SourceGatewayPayout, ReferenceID: ref(payment)}
	require.NoError(t, apply(st, store.BookCredits, e))
	err := apply(st, store.BookCredits, e)
	assert.ErrorIs(t, err, store.ErrDuplicateReference)

	// sources outside the unique set may repeat a reference
	plain := store.Entry{UserID: user, Amount: dec("1"), Kind: store.KindBonus, Source: "admin_grant", ReferenceID: ref(payment)}
	require.NoError(t, apply(st, store.BookCredits, plain))
	require.NoError(t, apply(st, store.BookCredits, plain))

	assert.True(t, balance(t, st, store.BookCredits, user).CurrentBalance.Equal(dec("11")))

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		found, err := tx.FindTransactionByReference(ctx, store.BookCredits, user, store.SourceGatewayPayout, payment)
		if err != nil {
			return err
		}
		assert.True(t, found.Amount.Equal(dec("9")))
		_, err = tx.FindTransactionByReference(ctx, store.BookCredits, user, store.SourceGatewayRefund, payment)
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
}

func testRollback(t *testing.T, st store.Store) {
	ctx := context.Background()
	user := uuid.New()
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.ApplyDelta(ctx, store.BookPoints, store.Entry{
			UserID: user, Amount: dec("50"), Kind: store.KindEarned, Source: store.SourceSuccessfulSale,
			ReferenceID: ref("sale-1"), Counters: store.Counters{SuccessfulSales: 1},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	b := balance(t, st, store.BookPoints, user)
	assert.True(t, b.CurrentBalance.IsZero())
	assert.Zero(t, b.SuccessfulSales)

	// the reference was not consumed
	require.NoError(t, apply(st, store.BookPoints, store.Entry{
		UserID: user, Amount: dec("50"), Kind: store.KindEarned, Source: store.SourceSuccessfulSale,
		ReferenceID: ref("sale-1"), Counters: store.Counters{SuccessfulSales: 1},
	}))
	assert.Equal(t, 1, balance(t, st, store.BookPoints, user).SuccessfulSales)
}

func testConcurrentDebits(t *testing.T, st store.Store) {
	user := uuid.New()
	require.NoError(t, apply(st, store.BookCredits, credit(user, "10")))

	const workers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := apply(st, store.BookCredits, debit(user, "1"))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, store.ErrInsufficientBalance)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	b := balance(t, st, store.BookCredits, user)
	assert.True(t, b.CurrentBalance.IsZero())
	assert.True(t, b.TotalSpent.Equal(dec("10")))
}

func newGatewayTransaction(buyer, seller uuid.UUID, createdAt time.Time) *store.GatewayTransaction {
	return &store.GatewayTransaction{
		ID:            uuid.New(),
		BuyerID:       buyer,
		SellerID:      seller,
		ProductRef:    "order-" + uuid.NewString()[:8],
		TotalAmount:   dec("20"),
		CreditAmount:  dec("20"),
		GatewayFee:    dec("0.50"),
		PaymentMethod: store.PaymentCreditsOnly,
		Status:        store.GatewayPending,
		Metadata:      store.Metadata{"source": "test"},
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func testGatewayTransactions(t *testing.T, st store.Store) {
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	older := newGatewayTransaction(buyer, seller, now.Add(-2*time.Hour))
	newer := newGatewayTransaction(buyer, seller, now)

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateGatewayTransaction(ctx, older); err != nil {
			return err
		}
		return tx.CreateGatewayTransaction(ctx, newer)
	}))

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		got, err := tx.GetGatewayTransaction(ctx, older.ID, true)
		require.NoError(t, err)
		assert.True(t, got.NetCreditAmount().Equal(dec("19.50")))
		assert.Equal(t, "test", got.Metadata["source"])

		got.Status = store.GatewayCompleted
		completed := now
		got.CompletedAt = &completed
		got.Metadata["payout"] = "immediate"
		return tx.UpdateGatewayTransaction(ctx, got)
	}))

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		got, err := tx.GetGatewayTransaction(ctx, older.ID, false)
		require.NoError(t, err)
		assert.Equal(t, store.GatewayCompleted, got.Status)
		assert.Equal(t, "immediate", got.Metadata["payout"])

		_, err = tx.GetGatewayTransaction(ctx, uuid.New(), false)
		assert.ErrorIs(t, err, store.ErrNotFound)

		list, err := tx.ListGatewayTransactions(ctx, seller, store.Page{Limit: 10})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)

		page, err := tx.ListGatewayTransactions(ctx, buyer, store.Page{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, older.ID, page[0].ID)

		stale, err := tx.ListStalePending(ctx, now.Add(time.Minute), 0)
		require.NoError(t, err)
		assert.Contains(t, stale, newer.ID)
		assert.NotContains(t, stale, older.ID, "completed rows are never stale")
		return nil
	}))
}

func testScheduledTransfers(t *testing.T, st store.Store) {
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	gt := newGatewayTransaction(buyer, seller, now)
	due := &store.ScheduledTransfer{
		ID: uuid.New(), TransactionID: gt.ID, SellerID: seller, Amount: dec("19.50"),
		ScheduledAt: now.Add(-time.Minute), Status: store.TransferPending, CreatedAt: now, UpdatedAt: now,
	}
	gtLater := newGatewayTransaction(buyer, seller, now)
	later := &store.ScheduledTransfer{
		ID: uuid.New(), TransactionID: gtLater.ID, SellerID: seller, Amount: dec("19.50"),
		ScheduledAt: now.Add(time.Hour), Status: store.TransferPending, CreatedAt: now, UpdatedAt: now,
	}

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		for _, g := range []*store.GatewayTransaction{gt, gtLater} {
			if err := tx.CreateGatewayTransaction(ctx, g); err != nil {
				return err
			}
		}
		if err := tx.CreateScheduledTransfer(ctx, due); err != nil {
			return err
		}
		return tx.CreateScheduledTransfer(ctx, later)
	}))

	// one transfer per payment
	err := st.WithTx(ctx, func(tx store.Tx) error {
		dup := *due
		dup.ID = uuid.New()
		return tx.CreateScheduledTransfer(ctx, &dup)
	})
	assert.ErrorIs(t, err, store.ErrDuplicateReference)

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		ids, err := tx.ListDueTransfers(ctx, now, 0)
		require.NoError(t, err)
		assert.Contains(t, ids, due.ID)
		assert.NotContains(t, ids, later.ID)

		claimed, err := tx.ClaimScheduledTransfer(ctx, due.ID)
		require.NoError(t, err)
		claimed.Status = store.TransferCompleted
		claimed.Attempts = 1
		completed := now
		claimed.CompletedAt = &completed
		return tx.UpdateScheduledTransfer(ctx, claimed)
	}))

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		ids, err := tx.ListDueTransfers(ctx, now.Add(2*time.Hour), 0)
		require.NoError(t, err)
		assert.NotContains(t, ids, due.ID)
		assert.Contains(t, ids, later.ID)

		got, err := tx.GetScheduledTransferByTransaction(ctx, gt.ID, false)
		require.NoError(t, err)
		assert.Equal(t, store.TransferCompleted, got.Status)
		assert.Equal(t, 1, got.Attempts)

		_, err = tx.GetScheduledTransferByTransaction(ctx, uuid.New(), false)
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
}

func testListingPromotions(t *testing.T, st store.Store) {
	ctx := context.Background()
	user := uuid.New()
	listing := "listing-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Second)

	promo := func(starts time.Time, days int) *store.ListingPromotion {
		return &store.ListingPromotion{
			ID: uuid.New(), ListingID: listing, UserID: user, PromotionType: "urgent_badge",
			AmountPaid: dec("1.99"), PaidWith: store.PaidWithCredits,
			StartsAt: starts, ExpiresAt: starts.AddDate(0, 0, days),
			Status: store.PromotionActive, CreatedAt: starts, UpdatedAt: starts,
		}
	}

	first := promo(now.Add(-5*24*time.Hour), 3)
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateListingPromotion(ctx, first)
	}))

	// a second active row of the same type needs the first replaced
	err := st.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateListingPromotion(ctx, promo(now, 3))
	})
	assert.ErrorIs(t, err, store.ErrDuplicateReference)

	second := promo(now, 3)
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.ReplaceActivePromotions(ctx, listing, "urgent_badge", now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return tx.CreateListingPromotion(ctx, second)
	}))

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.ExpirePromotions(ctx, now.Add(4*24*time.Hour))
		require.NoError(t, err)

		rows, err := tx.ListListingPromotions(ctx, listing)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, second.ID, rows[0].ID)
		assert.Equal(t, store.PromotionExpired, rows[0].Status)
		assert.Equal(t, store.PromotionReplaced, rows[1].Status)
		return nil
	}))
}

func testSeededCatalogs(t *testing.T, st store.Store) {
	ctx := context.Background()
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		settings, err := tx.GetGatewaySettings(ctx)
		require.NoError(t, err)
		assert.True(t, settings.TransferDelayHours >= 0)

		promos, err := tx.ListPromotionSettings(ctx, false)
		require.NoError(t, err)
		types := make([]string, 0, len(promos))
		for _, p := range promos {
			types = append(types, p.PromotionType)
		}
		for _, want := range store.DefaultPromotionSettings() {
			assert.Contains(t, types, want.PromotionType)
		}

		_, err = tx.GetPromotionSetting(ctx, "does_not_exist")
		assert.ErrorIs(t, err, store.ErrNotFound)

		reward, err := tx.GetReward(ctx, store.RewardFeaturedBoostID)
		require.NoError(t, err)
		assert.Equal(t, store.RewardBoost, reward.RewardType)

		_, err = tx.GetReward(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
}
