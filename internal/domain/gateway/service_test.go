package gateway_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cczslater/sellbuydeal-sub000/internal/domain/credit"
	"github.com/cczslater/sellbuydeal-sub000/internal/domain/gateway"
	"github.com/cczslater/sellbuydeal-sub000/internal/domain/loyalty"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/metrics"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/payment"
	"github.com/cczslater/sellbuydeal-sub000/internal/store"
	"github.com/cczslater/sellbuydeal-sub000/internal/store/memory"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

type fixture struct {
	clock   *clock
	store   *memory.Store
	credits credit.Service
	points  *loyalty.Service
	card    *payment.StaticProvider
	svc     *gateway.Service
}

func newFixture(t *testing.T, mode string) fixture {
	t.Helper()
	c := &clock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	st := memory.New(memory.WithClock(c.now))
	credits := credit.NewService(st)
	points := loyalty.NewService(st, credits, loyalty.DefaultConfig())

	card, err := payment.NewStaticProvider("card", mode)
	require.NoError(t, err)
	providers := payment.NewProviderFactory()
	providers.Register("card", card)

	svc := gateway.NewService(st, credits, points, providers,
		gateway.WithClock(c.now),
		gateway.WithMetrics(metrics.NewGatewayMetrics(prometheus.NewRegistry())),
		gateway.WithPendingTimeout(10*time.Minute),
	)
	return fixture{clock: c, store: st, credits: credits, points: points, card: card, svc: svc}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T { return &v }

func (f fixture) fund(t *testing.T, userID uuid.UUID, amount string) {
	t.Helper()
	_, err := f.credits.Credit(context.Background(), userID, dec(amount), credit.TransactionMeta{Source: "purchase"})
	require.NoError(t, err)
}

func (f fixture) balance(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	b, err := f.credits.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b.CurrentBalance
}

func (f fixture) transfer(t *testing.T, transactionID uuid.UUID) *store.ScheduledTransfer {
	t.Helper()
	var out *store.ScheduledTransfer
	require.NoError(t, f.store.WithTx(context.Background(), func(tx store.Tx) error {
		var err error
		out, err = tx.GetScheduledTransferByTransaction(context.Background(), transactionID, false)
		return err
	}))
	return out
}

func creditsOnly(buyer, seller uuid.UUID, amount string) gateway.PaymentRequest {
	return gateway.PaymentRequest{
		BuyerID:       buyer,
		SellerID:      seller,
		ProductRef:    "order-1",
		TotalAmount:   dec(amount),
		CreditAmount:  dec(amount),
		PaymentMethod: store.PaymentCreditsOnly,
	}
}

func TestCreditsOnlyAutomaticTransfer(t *testing.T) {
	f := newFixture(t, payment.ModeApprove)
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()
	f.fund(t, buyer, "50")

	gt, err := f.svc.ProcessPayment(ctx, creditsOnly(buyer, seller, "50"))
	require.NoError(t, err)

	assert.Equal(t, store.GatewayCompleted, gt.Status)
	assert.True(t, gt.GatewayFee.Equal(dec("1.25")), gt.GatewayFee.String())
	assert.NotNil(t, gt.CompletedAt)
	assert.True(t, f.balance(t, buyer).IsZero())
	assert.True(t, f.balance(t, seller).Equal(dec("48.75")))
	assert.Empty(t, f.card.Charges())

	pts, err := f.points.Balance(ctx, buyer)
	require.NoError(t, err)
	assert.True(t, pts.CurrentBalance.Equal(decimal.NewFromInt(5)), "floor(50/10) points")

	history, err := f.credits.History(ctx, buyer, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, store.SourceGatewayPayment, history[0].Source)
	assert.Equal(t, gt.ID.String(), *history[0].ReferenceID)
}

func TestCreditsOnlyDelayedTransfer(t *testing.T) {
	f := newFixture(t, payment.ModeApprove)
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()
	f.fund(t, buyer, "50")

	_, err := f.svc.UpdateSettings(ctx, gateway.SettingsUpdate{AutomaticTransfer: ptr(false)})
	require.NoError(t, err)

	gt, err := f.svc.ProcessPayment(ctx, creditsOnly(buyer, seller, "50"))
	require.NoError(t, err)
	assert.Equal(t, store.GatewayCompleted, gt.Status)
	assert.Equal(t, "scheduled", gt.Metadata["payout"])

	assert.True(t, f.balance(t, buyer).IsZero())
	assert.True(t, f.balance(t, seller).IsZero(), "seller is paid by the worker")

	tr := f.transfer(t, gt.ID)
	assert.Equal(t, store.TransferPending, tr.Status)
	assert.True(t, tr.Amount.Equal(dec("48.75")))
	assert.Equal(t, seller, tr.SellerID)
	assert.Equal(t, f.clock.t.Add(24*time.Hour), tr.ScheduledAt)
}

func TestMixedPaymentChargesRemainder(t *testing.T) {
	f := newFixture(t, payment.ModeApprove)
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()
	f.fund(t, buyer, "30")

	gt, err := f.svc.ProcessPayment(ctx, gateway.PaymentRequest{
		BuyerID: buyer, SellerID: seller, ProductRef: "order-2",
		TotalAmount: dec("50"), CreditAmount: dec("30"),
		PaymentMethod: store.PaymentMixed, BackupMethod: "card",
	})
	require.NoError(t, err)

	assert.True(t, f.balance(t, buyer).IsZero())
	assert.True(t, f.balance(t, seller).Equal(dec("29.25")))
	require.Len(t, f.card.Charges(), 1)
	assert.True(t, f.card.Charges()[0].Amount.Equal(dec("20")))
	assert.Equal(t, gt.ID.String(), f.card.Charges()[0].Reference)
	assert.NotEmpty(t, gt.Metadata["backup_external_id"])
}

func TestBackupFailureCompensatesBuyer(t *testing.T) {
	f := newFixture(t, payment.ModeDecline)
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()
	f.fund(t, buyer, "30")

	_, err := f.svc.ProcessPayment(ctx, gateway.PaymentRequest{
		BuyerID: buyer, SellerID: seller, ProductRef: "order-3",
		TotalAmount: dec("50"), CreditAmount: dec("30"),
		PaymentMethod: store.PaymentCreditsPartial, BackupMethod: "card",
	})
	require.ErrorIs(t, err, gateway.ErrBackupPaymentFailed)

	assert.True(t, f.balance(t, buyer).Equal(dec("30")))
	assert.True(t, f.balance(t, seller).IsZero())

	list, err := f.svc.ListTransactions(ctx, buyer, store.Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, store.GatewayFailed, list[0].Status)
	require.NotNil(t, list[0].FailureReason)

	history, err := f.credits.History(ctx, buyer, store.Page{})
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, store.SourceGatewayCompensation, history[0].Source)
	assert.Equal(t, store.KindRefund, history[0].Kind)

	pts, err := f.points.Balance(ctx, buyer)
	require.NoError(t, err)
	assert.True(t, pts.CurrentBalance.IsZero())
}

func TestProcessPaymentRejections(t *testing.T) {
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()

	cases := []struct {
		name     string
		settings *gateway.SettingsUpdate
		req      gateway.PaymentRequest
		want     error
	}{
		{
			name:     "disabled",
			settings: &gateway.SettingsUpdate{GatewayEnabled: ptr(false)},
			req:      creditsOnly(buyer, seller, "10"),
			want:     gateway.ErrGatewayDisabled,
		},
		{
			name: "above maximum",
			req:  creditsOnly(buyer, seller, "10000.01"),
			want: gateway.ErrAmountOutOfBounds,
		},
		{
			name: "below minimum",
			req:  creditsOnly(buyer, seller, "0.50"),
			want: gateway.ErrAmountOutOfBounds,
		},
		{
			name: "self payment",
			req:  creditsOnly(buyer, buyer, "10"),
			want: gateway.ErrInvalidRequest,
		},
		{
			name: "credits only below total",
			req: gateway.PaymentRequest{BuyerID: buyer, SellerID: seller, ProductRef: "x",
				TotalAmount: dec("20"), CreditAmount: dec("10"), PaymentMethod: store.PaymentCreditsOnly},
			want: gateway.ErrInvalidAmount,
		},
		{
			name: "credit above total",
			req: gateway.PaymentRequest{BuyerID: buyer, SellerID: seller, ProductRef: "x",
				TotalAmount: dec("5"), CreditAmount: dec("10"), PaymentMethod: store.PaymentMixed, BackupMethod: "card"},
			want: gateway.ErrInvalidAmount,
		},
		{
			name:     "partial disabled",
			settings: &gateway.SettingsUpdate{AllowPartialCredits: ptr(false)},
			req: gateway.PaymentRequest{BuyerID: buyer, SellerID: seller, ProductRef: "x",
				TotalAmount: dec("20"), CreditAmount: dec("10"), PaymentMethod: store.PaymentMixed, BackupMethod: "card"},
			want: gateway.ErrPartialCreditsDisabled,
		},
		{
			name: "remainder without backup",
			req: gateway.PaymentRequest{BuyerID: buyer, SellerID: seller, ProductRef: "x",
				TotalAmount: dec("20"), CreditAmount: dec("10"), PaymentMethod: store.PaymentMixed},
			want: gateway.ErrBackupPaymentRequired,
		},
		{
			name: "unknown backup",
			req: gateway.PaymentRequest{BuyerID: buyer, SellerID: seller, ProductRef: "x",
				TotalAmount: dec("20"), CreditAmount: dec("10"), PaymentMethod: store.PaymentMixed, BackupMethod: "crypto"},
			want: gateway.ErrUnsupportedPaymentMethod,
		},
		{
			name:     "backup required by settings",
			settings: &gateway.SettingsUpdate{RequireBackupPayment: ptr(true)},
			req: gateway.PaymentRequest{BuyerID: buyer, SellerID: seller, ProductRef: "x",
				TotalAmount: dec("10"), CreditAmount: dec("10"), PaymentMethod: store.PaymentCreditsPartial},
			want: gateway.ErrBackupPaymentRequired,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, payment.ModeApprove)
			f.fund(t, buyer, "100")
			if tc.settings != nil {
				_, err := f.svc.UpdateSettings(ctx, *tc.settings)
				require.NoError(t, err)
			}

			_, err := f.svc.ProcessPayment(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, f.balance(t, buyer).Equal(dec("100")))

			list, err := f.svc.ListTransactions(ctx, buyer, store.Page{})
			require.NoError(t, err)
			assert.Empty(t, list, "rejected before any row is written")
		})
	}
}

func TestCreditsOnlyInsufficientBalance(t *testing.T) {
	f := newFixture(t, payment.ModeApprove)
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()
	f.fund(t, buyer, "10")

	_, err := f.svc.ProcessPayment(ctx, creditsOnly(buyer, seller, "50"))
	require.ErrorIs(t, err, gateway.ErrInsufficientBalance)

	var ibe *store.InsufficientBalanceError
	require.True(t, errors.As(err, &ibe))
	assert.True(t, ibe.Shortfall().Equal(dec("40")))
	assert.True(t, f.balance(t, buyer).Equal(dec("10")))
}

func TestMixedInsufficientBalanceMarksFailed(t *testing.T) {
	f := newFixture(t, payment.ModeApprove)
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()
	f.fund(t, buyer, "5")

	_, err := f.svc.ProcessPayment(ctx, gateway.PaymentRequest{
		BuyerID: buyer, SellerID: seller, ProductRef: "order-4",
		TotalAmount: dec("20"), CreditAmount: dec("10"),
		PaymentMethod: store.PaymentMixed, BackupMethod: "card",
	})
	require.ErrorIs(t, err, gateway.ErrInsufficientBalance)
	assert.Empty(t, f.card.Charges(), "backup is never charged after a failed debit")

	list, err := f.svc.ListTransactions(ctx, buyer, store.Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, store.GatewayFailed, list[0].Status)
}

func TestRefundAfterImmediatePayout(t *testing.T) {
	f := newFixture(t, payment.ModeApprove)
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()
	f.fund(t, buyer, "50")

	gt, err := f.svc.ProcessPayment(ctx, creditsOnly(buyer, seller, "50"))
	require.NoError(t, err)

	_, err = f.svc.RefundTransaction(ctx, gt.ID, ptr(dec("50.01")))
	assert.ErrorIs(t, err, gateway.ErrInvalidAmount)

	refunded, err := f.svc.RefundTransaction(ctx, gt.ID, ptr(dec("10")))
	require.NoError(t, err)
	assert.Equal(t, store.GatewayRefunded, refunded.Status)
	assert.True(t, refunded.RefundedAmount.Equal(dec("10")))
	assert.NotNil(t, refunded.RefundedAt)

	assert.True(t, f.balance(t, buyer).Equal(dec("10")))
	assert.True(t, f.balance(t, seller).Equal(dec("40")), "seller returns 10 - 1.25 fee")

	_, err = f.svc.RefundTransaction(ctx, gt.ID, nil)
	assert.ErrorIs(t, err, gateway.ErrInvalidStateTransition)

	_, err = f.svc.RefundTransaction(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, gateway.ErrTransactionNotFound)
}

func TestRefundRollsBackWhenSellerCannotCover(t *testing.T) {
	f := newFixture(t, payment.ModeApprove)
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()
	f.fund(t, buyer, "50")

	gt, err := f.svc.ProcessPayment(ctx, creditsOnly(buyer, seller, "50"))
	require.NoError(t, err)
	_, err = f.credits.Debit(ctx, seller, dec("40"), credit.TransactionMeta{Source: "promotion_featured_listing"})
	require.NoError(t, err)

	_, err = f.svc.RefundTransaction(ctx, gt.ID, nil)
	require.ErrorIs(t, err, gateway.ErrInsufficientBalance)

	assert.True(t, f.balance(t, buyer).IsZero())
	got, err := f.svc.GetTransaction(ctx, gt.ID)
	require.NoError(t, err)
	assert.Equal(t, store.GatewayCompleted, got.Status)
}

func TestRefundBeforeScheduledPayout(t *testing.T) {
	f := newFixture(t, payment.ModeApprove)
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()
	f.fund(t, buyer, "100")

	_, err := f.svc.UpdateSettings(ctx, gateway.SettingsUpdate{AutomaticTransfer: ptr(false)})
	require.NoError(t, err)

	partial, err := f.svc.ProcessPayment(ctx, creditsOnly(buyer, seller, "50"))
	require.NoError(t, err)
	full, err := f.svc.ProcessPayment(ctx, creditsOnly(buyer, seller, "50"))
	require.NoError(t, err)

	_, err = f.svc.RefundTransaction(ctx, partial.ID, ptr(dec("20")))
	require.NoError(t, err)
	tr := f.transfer(t, partial.ID)
	assert.Equal(t, store.TransferPending, tr.Status)
	assert.True(t, tr.Amount.Equal(dec("30")), tr.Amount.String())

	_, err = f.svc.RefundTransaction(ctx, full.ID, nil)
	require.NoError(t, err)
	tr = f.transfer(t, full.ID)
	assert.Equal(t, store.TransferCancelled, tr.Status)
	assert.True(t, tr.Amount.IsZero())

	assert.True(t, f.balance(t, buyer).Equal(dec("70")))
	assert.True(t, f.balance(t, seller).IsZero())
}

func TestRecoverStalePending(t *testing.T) {
	f := newFixture(t, payment.ModeApprove)
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()
	f.fund(t, buyer, "20")

	debited := uuid.New()
	notDebited := uuid.New()
	require.NoError(t, f.store.WithTx(ctx, func(tx store.Tx) error {
		for _, id := range []uuid.UUID{debited, notDebited} {
			if err := tx.CreateGatewayTransaction(ctx, &store.GatewayTransaction{
				ID: id, BuyerID: buyer, SellerID: seller, ProductRef: "order-9",
				TotalAmount: dec("20"), CreditAmount: dec("20"), GatewayFee: dec("0.50"),
				PaymentMethod: store.PaymentCreditsOnly, Status: store.GatewayPending,
				Metadata: store.Metadata{}, RefundedAmount: decimal.Zero,
				CreatedAt: f.clock.t, UpdatedAt: f.clock.t,
			}); err != nil {
				return err
			}
		}
		return nil
	}))
	_, err := f.credits.Debit(ctx, buyer, dec("20"), credit.TransactionMeta{
		Source:      store.SourceGatewayPayment,
		ReferenceID: credit.Ref(debited.String()),
	})
	require.NoError(t, err)

	n, err := f.svc.RecoverStalePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "not stale yet")

	f.clock.t = f.clock.t.Add(11 * time.Minute)
	n, err = f.svc.RecoverStalePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, f.balance(t, buyer).Equal(dec("20")))

	for _, id := range []uuid.UUID{debited, notDebited} {
		gt, err := f.svc.GetTransaction(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, store.GatewayFailed, gt.Status)
	}

	require.NoError(t, gateway.NewRecoveryJob(f.svc).Run(ctx))
	assert.True(t, f.balance(t, buyer).Equal(dec("20")), "credits are returned once")
}

// cancelAfterCharge confirms the charge, then cancels the caller's context.
type cancelAfterCharge struct {
	payment.Provider
	cancel context.CancelFunc
}

func (p cancelAfterCharge) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	res, err := p.Provider.Charge(ctx, req)
	p.cancel()
	return res, err
}

func TestCapturedChargeCompletesAfterCallerCancels(t *testing.T) {
	f := newFixture(t, payment.ModeApprove)
	buyer, seller := uuid.New(), uuid.New()
	f.fund(t, buyer, "40")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	providers := payment.NewProviderFactory()
	providers.Register("card", cancelAfterCharge{Provider: f.card, cancel: cancel})
	svc := gateway.NewService(f.store, f.credits, f.points, providers, gateway.WithClock(f.clock.now))

	gt, err := svc.ProcessPayment(ctx, gateway.PaymentRequest{
		BuyerID: buyer, SellerID: seller, ProductRef: "order-11",
		TotalAmount: dec("60"), CreditAmount: dec("40"),
		PaymentMethod: store.PaymentMixed, BackupMethod: "card",
	})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	assert.Equal(t, store.GatewayCompleted, gt.Status)
	assert.NotEmpty(t, gt.Metadata["backup_external_id"])
	assert.Len(t, f.card.Charges(), 1)
	assert.True(t, f.balance(t, buyer).IsZero())
	assert.True(t, f.balance(t, seller).Equal(dec("39")))
}

// failCompletion rejects the write that marks a payment completed.
type failCompletion struct {
	*memory.Store
	fail bool
}

func (s *failCompletion) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(failCompletionTx{Tx: tx, fail: s.fail})
	})
}

type failCompletionTx struct {
	store.Tx
	fail bool
}

func (t failCompletionTx) UpdateGatewayTransaction(ctx context.Context, gt *store.GatewayTransaction) error {
	if t.fail && gt.Status == store.GatewayCompleted {
		return errors.New("write failed")
	}
	return t.Tx.UpdateGatewayTransaction(ctx, gt)
}

func TestRecoverStalePendingCompletesCapturedCharge(t *testing.T) {
	f := newFixture(t, payment.ModeApprove)
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()
	f.fund(t, buyer, "40")

	st := &failCompletion{Store: f.store, fail: true}
	providers := payment.NewProviderFactory()
	providers.Register("card", f.card)
	svc := gateway.NewService(st, credit.NewService(st), f.points, providers,
		gateway.WithClock(f.clock.now), gateway.WithPendingTimeout(10*time.Minute))

	_, err := svc.ProcessPayment(ctx, gateway.PaymentRequest{
		BuyerID: buyer, SellerID: seller, ProductRef: "order-12",
		TotalAmount: dec("60"), CreditAmount: dec("40"),
		PaymentMethod: store.PaymentMixed, BackupMethod: "card",
	})
	require.Error(t, err)
	require.Len(t, f.card.Charges(), 1)

	list, err := svc.ListTransactions(ctx, buyer, store.Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	pending := list[0]
	assert.Equal(t, store.GatewayPending, pending.Status)
	require.NotNil(t, pending.BackupMethod)
	assert.Equal(t, "card", *pending.BackupMethod)
	externalID := pending.Metadata["backup_external_id"]
	assert.NotEmpty(t, externalID, "captured charge is on the pending row")

	st.fail = false
	f.clock.t = f.clock.t.Add(11 * time.Minute)
	n, err := svc.RecoverStalePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	gt, err := svc.GetTransaction(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, store.GatewayCompleted, gt.Status)
	assert.Equal(t, externalID, gt.Metadata["backup_external_id"])
	assert.True(t, f.balance(t, buyer).IsZero(), "credits stay spent")
	assert.True(t, f.balance(t, seller).Equal(dec("39")))
	assert.Len(t, f.card.Charges(), 1)

	// nothing left to recover
	n, err = svc.RecoverStalePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCalculateBreakdown(t *testing.T) {
	f := newFixture(t, payment.ModeApprove)
	ctx := context.Background()

	b, err := f.svc.CalculateBreakdown(ctx, dec("100"), dec("40"))
	require.NoError(t, err)
	assert.True(t, b.GatewayFee.Equal(dec("1")))
	assert.True(t, b.NetCreditAmount.Equal(dec("39")))
	assert.True(t, b.RemainingAmount.Equal(dec("60")))
	assert.Len(t, b.LineItems, 4)

	b, err = f.svc.CalculateBreakdown(ctx, dec("10"), dec("10"))
	require.NoError(t, err)
	assert.Len(t, b.LineItems, 3)

	_, err = f.svc.CalculateBreakdown(ctx, dec("10"), dec("11"))
	assert.ErrorIs(t, err, gateway.ErrInvalidAmount)
}

func TestUpdateSettingsValidation(t *testing.T) {
	f := newFixture(t, payment.ModeApprove)
	ctx := context.Background()

	bad := []gateway.SettingsUpdate{
		{FeePercentage: ptr(dec("100.5"))},
		{FeePercentage: ptr(dec("-1"))},
		{MinimumCreditAmount: ptr(dec("500")), MaximumCreditAmount: ptr(dec("100"))},
		{TransferDelayHours: ptr(721)},
		{TransferDelayHours: ptr(-1)},
	}
	for _, u := range bad {
		_, err := f.svc.UpdateSettings(ctx, u)
		assert.ErrorIs(t, err, gateway.ErrInvalidSettings)
	}

	saved, err := f.svc.UpdateSettings(ctx, gateway.SettingsUpdate{FeePercentage: ptr(dec("5"))})
	require.NoError(t, err)
	assert.True(t, saved.FeePercentage.Equal(dec("5")))
	assert.True(t, saved.GatewayEnabled, "unset fields are kept")

	buyer, seller := uuid.New(), uuid.New()
	f.fund(t, buyer, "10.10")
	gt, err := f.svc.ProcessPayment(ctx, creditsOnly(buyer, seller, "10.10"))
	require.NoError(t, err)
	assert.True(t, gt.GatewayFee.Equal(dec("0.51")), "0.505 rounds to 0.51")
}

func TestCalculateFee(t *testing.T) {
	assert.True(t, gateway.CalculateFee(dec("50"), dec("2.5")).Equal(dec("1.25")))
	assert.True(t, gateway.CalculateFee(dec("0.99"), dec("2.5")).Equal(dec("0.02")))
	assert.True(t, gateway.CalculateFee(dec("10"), decimal.Zero).IsZero())
}
