package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/cczslater/sellbuydeal-sub000/internal/domain/credit"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/errorhandler"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/metrics"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/payment"
	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

// DefaultPendingTimeout is how long a payment may stay pending before the
// recovery job returns the buyer's credits.
const DefaultPendingTimeout = 15 * time.Minute

// PointsAwarder grants loyalty points for completed purchases.
type PointsAwarder interface {
	AwardPurchase(ctx context.Context, userID, transactionID uuid.UUID, creditAmount decimal.Decimal) (*store.Transaction, error)
}

// Service moves credits from buyers to sellers.
type Service struct {
	store          store.Store
	credits        credit.Service
	points         PointsAwarder
	providers      *payment.ProviderFactory
	metrics        *metrics.GatewayMetrics
	now            func() time.Time
	pendingTimeout time.Duration
}

// Option configures the service.
type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPendingTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pendingTimeout = d
		}
	}
}

// NewService creates the gateway service. points may be nil.
func NewService(st store.Store, credits credit.Service, points PointsAwarder, providers *payment.ProviderFactory, opts ...Option) *Service {
	if providers == nil {
		providers = payment.NewProviderFactory()
	}
	s := &Service{
		store:          st,
		credits:        credits,
		points:         points,
		providers:      providers,
		now:            time.Now,
		pendingTimeout: DefaultPendingTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessPayment debits the buyer's credits, collects any remainder through
// the backup method and pays the seller now or schedules the payout.
func (s *Service) ProcessPayment(ctx context.Context, req PaymentRequest) (*store.GatewayTransaction, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validatePayment(settings, &req); err != nil {
		return nil, err
	}

	if req.PaymentMethod == store.PaymentCreditsOnly {
		b, err := s.credits.Balance(ctx, req.BuyerID)
		if err != nil {
			return nil, err
		}
		if b.CurrentBalance.LessThan(req.CreditAmount) {
			return nil, &store.InsufficientBalanceError{Book: store.BookCredits, Required: req.CreditAmount, Available: b.CurrentBalance}
		}
	}

	now := s.now().UTC()
	gt := &store.GatewayTransaction{
		ID:             uuid.New(),
		BuyerID:        req.BuyerID,
		SellerID:       req.SellerID,
		ProductRef:     req.ProductRef,
		TotalAmount:    req.TotalAmount,
		CreditAmount:   req.CreditAmount,
		GatewayFee:     CalculateFee(req.CreditAmount, settings.FeePercentage),
		PaymentMethod:  req.PaymentMethod,
		Status:         store.GatewayPending,
		Metadata:       store.Metadata{"fee_percentage": settings.FeePercentage.String()},
		RefundedAmount: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.BackupMethod != "" {
		method := req.BackupMethod
		gt.BackupMethod = &method
	}
	if req.Description != "" {
		gt.Metadata["description"] = req.Description
	}

	l := log.With().Str("transaction_id", gt.ID.String()).Str("buyer_id", gt.BuyerID.String()).Logger()

	if err := s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateGatewayTransaction(ctx, gt)
	}); err != nil {
		return nil, fmt.Errorf("create gateway transaction: %w", err)
	}

	if gt.CreditAmount.IsPositive() {
		_, err := s.credits.Debit(ctx, gt.BuyerID, gt.CreditAmount, credit.TransactionMeta{
			Kind:        store.KindSpent,
			Source:      store.SourceGatewayPayment,
			Description: "Payment for " + gt.ProductRef,
			ReferenceID: credit.Ref(gt.ID.String()),
		})
		if err != nil {
			s.fail(ctx, gt, "credit debit failed: "+err.Error())
			return nil, err
		}
	}

	if remaining := gt.RemainingAmount(); remaining.IsPositive() {
		externalID, err := s.chargeBackup(ctx, gt, remaining)
		if err != nil {
			errorhandler.LogExternalServiceError(ctx, *gt.BackupMethod, "charge", err)
			if cerr := s.compensate(context.WithoutCancel(ctx), gt.ID, "backup payment failed: "+err.Error()); cerr != nil {
				l.Error().Err(cerr).Msg("Compensation failed, transaction left pending for recovery")
			} else {
				s.metrics.Compensation("backup_failed")
			}
			s.metrics.Payment(string(store.GatewayFailed), string(gt.PaymentMethod), gt.CreditAmount, gt.GatewayFee)
			return nil, fmt.Errorf("%w: %v", ErrBackupPaymentFailed, err)
		}
		gt.Metadata[metaBackupExternalID] = externalID
		// The processor holds the buyer's money from here on. Finish
		// regardless of the caller going away.
		ctx = context.WithoutCancel(ctx)
		if err := s.recordCharge(ctx, gt.ID, externalID); err != nil {
			l.Error().Err(err).Str("backup_external_id", externalID).Msg("Failed to record captured backup charge")
		}
	}

	mode, err := s.complete(ctx, gt, settings)
	if err != nil {
		ev := l.Error().Err(err)
		if id, ok := gt.Metadata[metaBackupExternalID]; ok {
			ev = ev.Interface("backup_external_id", id)
		}
		ev.Msg("Failed to complete gateway payment, left pending for recovery")
		return nil, err
	}

	s.metrics.Payment(string(store.GatewayCompleted), string(gt.PaymentMethod), gt.CreditAmount, gt.GatewayFee)
	s.metrics.Transfer(mode)
	l.Info().
		Str("credit_amount", gt.CreditAmount.String()).
		Str("gateway_fee", gt.GatewayFee.String()).
		Str("payout", mode).
		Msg("Gateway payment completed")

	if s.points != nil && gt.CreditAmount.IsPositive() {
		if _, err := s.points.AwardPurchase(ctx, gt.BuyerID, gt.ID, gt.CreditAmount); err != nil {
			l.Warn().Err(err).Msg("Failed to award purchase points")
		}
	}
	return gt, nil
}

func (s *Service) validatePayment(settings *store.GatewaySettings, req *PaymentRequest) error {
	if !settings.GatewayEnabled {
		return ErrGatewayDisabled
	}
	if req.BuyerID == uuid.Nil || req.SellerID == uuid.Nil {
		return fmt.Errorf("%w: buyer and seller are required", ErrInvalidRequest)
	}
	if req.BuyerID == req.SellerID {
		return fmt.Errorf("%w: buyer and seller must differ", ErrInvalidRequest)
	}
	req.ProductRef = strings.TrimSpace(req.ProductRef)
	if req.ProductRef == "" {
		return fmt.Errorf("%w: product reference is required", ErrInvalidRequest)
	}
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidRequest, req.PaymentMethod)
	}

	if !req.TotalAmount.IsPositive() || !hasTwoDecimals(req.TotalAmount) {
		return fmt.Errorf("%w: total amount must be positive with at most 2 decimals", ErrInvalidAmount)
	}
	if req.CreditAmount.IsNegative() || !hasTwoDecimals(req.CreditAmount) {
		return fmt.Errorf("%w: credit amount must be >= 0 with at most 2 decimals", ErrInvalidAmount)
	}
	if req.CreditAmount.GreaterThan(req.TotalAmount) {
		return fmt.Errorf("%w: credit amount exceeds total", ErrInvalidAmount)
	}
	if req.CreditAmount.LessThan(settings.MinimumCreditAmount) || req.CreditAmount.GreaterThan(settings.MaximumCreditAmount) {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrAmountOutOfBounds,
			req.CreditAmount, settings.MinimumCreditAmount, settings.MaximumCreditAmount)
	}

	remaining := req.TotalAmount.Sub(req.CreditAmount)
	if req.PaymentMethod == store.PaymentCreditsOnly && !remaining.IsZero() {
		return fmt.Errorf("%w: credits_only requires credit amount equal to total", ErrInvalidAmount)
	}
	if remaining.IsPositive() && !settings.AllowPartialCredits {
		return ErrPartialCreditsDisabled
	}

	req.BackupMethod = strings.TrimSpace(req.BackupMethod)
	needsBackup := remaining.IsPositive() ||
		(settings.RequireBackupPayment && req.PaymentMethod != store.PaymentCreditsOnly)
	if !needsBackup {
		return nil
	}
	if req.BackupMethod == "" {
		return ErrBackupPaymentRequired
	}
	if !s.providers.Has(req.BackupMethod) {
		return fmt.Errorf("%w: %q", ErrUnsupportedPaymentMethod, req.BackupMethod)
	}
	return nil
}

func (s *Service) chargeBackup(ctx context.Context, gt *store.GatewayTransaction, amount decimal.Decimal) (string, error) {
	provider, err := s.providers.Get(*gt.BackupMethod)
	if err != nil {
		return "", err
	}
	res, err := provider.Charge(ctx, payment.ChargeRequest{
		Reference:   gt.ID.String(),
		PayerID:     gt.BuyerID,
		Amount:      amount,
		Description: gt.ProductRef,
	})
	if err != nil {
		return "", err
	}
	if res.Status != payment.StatusCompleted {
		return "", fmt.Errorf("charge not confirmed, status %s", res.Status)
	}
	return res.ExternalID, nil
}

// recordCharge stores the processor's id of a confirmed backup charge on the
// pending row, so recovery can finish the payment instead of failing it.
func (s *Service) recordCharge(ctx context.Context, id uuid.UUID, externalID string) error {
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.GetGatewayTransaction(ctx, id, true)
		if err != nil {
			return err
		}
		if cur.Metadata == nil {
			cur.Metadata = store.Metadata{}
		}
		cur.Metadata[metaBackupExternalID] = externalID
		cur.UpdatedAt = s.now().UTC()
		return tx.UpdateGatewayTransaction(ctx, cur)
	})
}

// complete pays the seller (or schedules the payout) and marks the
// transaction completed in one unit of work.
func (s *Service) complete(ctx context.Context, gt *store.GatewayTransaction, settings *store.GatewaySettings) (string, error) {
	mode := "immediate"
	if !settings.AutomaticTransfer {
		mode = "scheduled"
	}

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.GetGatewayTransaction(ctx, gt.ID, true)
		if err != nil {
			return err
		}
		if !cur.Status.CanTransitionTo(store.GatewayCompleted) {
			return fmt.Errorf("%w: %s -> completed", ErrInvalidStateTransition, cur.Status)
		}

		now := s.now().UTC()
		if net := cur.NetCreditAmount(); net.IsPositive() {
			if settings.AutomaticTransfer {
				if _, err := s.credits.CreditTx(ctx, tx, cur.SellerID, net, credit.TransactionMeta{
					Kind:        store.KindEarned,
					Source:      store.SourceGatewayPayout,
					Description: "Payout for " + cur.ProductRef,
					ReferenceID: credit.Ref(cur.ID.String()),
				}); err != nil {
					return err
				}
			} else {
				if err := tx.CreateScheduledTransfer(ctx, &store.ScheduledTransfer{
					ID:            uuid.New(),
					TransactionID: cur.ID,
					SellerID:      cur.SellerID,
					Amount:        net,
					ScheduledAt:   now.Add(time.Duration(settings.TransferDelayHours) * time.Hour),
					Status:        store.TransferPending,
					CreatedAt:     now,
					UpdatedAt:     now,
				}); err != nil {
					return err
				}
			}
		}

		cur.Metadata = gt.Metadata
		cur.Metadata["payout"] = mode
		cur.Status = store.GatewayCompleted
		cur.CompletedAt = &now
		cur.UpdatedAt = now
		if err := tx.UpdateGatewayTransaction(ctx, cur); err != nil {
			return err
		}
		*gt = *cur
		return nil
	})
	return mode, err
}

// fail marks a pending transaction failed. Errors are logged; the recovery
// job picks up whatever is left pending.
func (s *Service) fail(ctx context.Context, gt *store.GatewayTransaction, reason string) {
	ctx = context.WithoutCancel(ctx)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.GetGatewayTransaction(ctx, gt.ID, true)
		if err != nil {
			return err
		}
		if !cur.Status.CanTransitionTo(store.GatewayFailed) {
			return nil
		}
		markFailed(cur, reason, s.now().UTC())
		return tx.UpdateGatewayTransaction(ctx, cur)
	})
	if err != nil {
		log.Error().Err(err).Str("transaction_id", gt.ID.String()).Msg("Failed to mark gateway transaction failed")
	}
	s.metrics.Payment(string(store.GatewayFailed), string(gt.PaymentMethod), gt.CreditAmount, gt.GatewayFee)
}

// compensate returns the buyer's debit and marks the transaction failed in
// one unit of work.
func (s *Service) compensate(ctx context.Context, id uuid.UUID, reason string) error {
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.GetGatewayTransaction(ctx, id, true)
		if err != nil {
			return err
		}
		if !cur.Status.CanTransitionTo(store.GatewayFailed) {
			return fmt.Errorf("%w: %s -> failed", ErrInvalidStateTransition, cur.Status)
		}
		if _, err := s.returnDebit(ctx, tx, cur); err != nil {
			return err
		}
		markFailed(cur, reason, s.now().UTC())
		return tx.UpdateGatewayTransaction(ctx, cur)
	})
}

// returnDebit credits back the buyer's gateway debit unless it never
// happened or was already returned.
func (s *Service) returnDebit(ctx context.Context, tx store.Tx, gt *store.GatewayTransaction) (bool, error) {
	if !gt.CreditAmount.IsPositive() {
		return false, nil
	}
	ref := gt.ID.String()

	_, err := tx.FindTransactionByReference(ctx, store.BookCredits, gt.BuyerID, store.SourceGatewayPayment, ref)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, err = tx.FindTransactionByReference(ctx, store.BookCredits, gt.BuyerID, store.SourceGatewayCompensation, ref)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	_, err = s.credits.CreditTx(ctx, tx, gt.BuyerID, gt.CreditAmount, credit.TransactionMeta{
		Kind:        store.KindRefund,
		Source:      store.SourceGatewayCompensation,
		Description: "Returned credits for failed payment",
		ReferenceID: credit.Ref(ref),
	})
	return err == nil, err
}

func markFailed(gt *store.GatewayTransaction, reason string, now time.Time) {
	gt.Status = store.GatewayFailed
	gt.FailureReason = &reason
	gt.UpdatedAt = now
}

// RefundTransaction returns amount (default: the full credit amount) to the
// buyer and takes the seller's share back from the pending payout or the
// seller's balance. Nothing changes if any step fails.
func (s *Service) RefundTransaction(ctx context.Context, id uuid.UUID, amount *decimal.Decimal) (*store.GatewayTransaction, error) {
	var out *store.GatewayTransaction
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		gt, err := tx.GetGatewayTransaction(ctx, id, true)
		if errors.Is(err, store.ErrNotFound) {
			return ErrTransactionNotFound
		}
		if err != nil {
			return err
		}
		if !gt.Status.CanTransitionTo(store.GatewayRefunded) {
			return fmt.Errorf("%w: %s -> refunded", ErrInvalidStateTransition, gt.Status)
		}

		refund := gt.CreditAmount
		if amount != nil {
			refund = *amount
		}
		if !refund.IsPositive() || refund.GreaterThan(gt.CreditAmount) || !hasTwoDecimals(refund) {
			return fmt.Errorf("%w: refund must be in (0, %s]", ErrInvalidAmount, gt.CreditAmount)
		}

		if _, err := s.credits.CreditTx(ctx, tx, gt.BuyerID, refund, credit.TransactionMeta{
			Kind:        store.KindRefund,
			Source:      store.SourceGatewayRefund,
			Description: "Refund for " + gt.ProductRef,
			ReferenceID: credit.Ref(gt.ID.String()),
		}); err != nil {
			return err
		}

		now := s.now().UTC()
		if err := s.reverseSellerShare(ctx, tx, gt, decimal.Max(refund.Sub(gt.GatewayFee), decimal.Zero), now); err != nil {
			return err
		}

		gt.Status = store.GatewayRefunded
		gt.RefundedAmount = refund
		gt.RefundedAt = &now
		gt.UpdatedAt = now
		if err := tx.UpdateGatewayTransaction(ctx, gt); err != nil {
			return err
		}
		out = gt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Refund()
	log.Info().
		Str("transaction_id", id.String()).
		Str("refunded_amount", out.RefundedAmount.String()).
		Msg("Gateway payment refunded")
	return out, nil
}

func (s *Service) reverseSellerShare(ctx context.Context, tx store.Tx, gt *store.GatewayTransaction, share decimal.Decimal, now time.Time) error {
	if !share.IsPositive() {
		return nil
	}

	transfer, err := tx.GetScheduledTransferByTransaction(ctx, gt.ID, true)
	switch {
	case err == nil && transfer.Status == store.TransferPending:
		transfer.Amount = transfer.Amount.Sub(share)
		if !transfer.Amount.IsPositive() {
			transfer.Amount = decimal.Zero
			transfer.Status = store.TransferCancelled
		}
		transfer.UpdatedAt = now
		return tx.UpdateScheduledTransfer(ctx, transfer)
	case err == nil && transfer.Status == store.TransferCancelled:
		return nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return err
	}

	_, err = s.credits.DebitTx(ctx, tx, gt.SellerID, share, credit.TransactionMeta{
		Kind:        store.KindSpent,
		Source:      store.SourceGatewayReversal,
		Description: "Refund reversal for " + gt.ProductRef,
		ReferenceID: credit.Ref(gt.ID.String()),
	})
	return err
}

// PayoutTransfer credits a matured transfer to the seller inside tx. It
// reports false when the payout was already recorded.
func (s *Service) PayoutTransfer(ctx context.Context, tx store.Tx, transfer *store.ScheduledTransfer) (bool, error) {
	if !transfer.Amount.IsPositive() {
		return false, nil
	}
	ref := transfer.TransactionID.String()

	_, err := tx.FindTransactionByReference(ctx, store.BookCredits, transfer.SellerID, store.SourceGatewayPayout, ref)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	if _, err := s.credits.CreditTx(ctx, tx, transfer.SellerID, transfer.Amount, credit.TransactionMeta{
		Kind:        store.KindEarned,
		Source:      store.SourceGatewayPayout,
		Description: "Scheduled payout",
		ReferenceID: credit.Ref(ref),
	}); err != nil {
		return false, err
	}
	s.metrics.Transfer("matured")
	return true, nil
}

// RecoverStalePending settles payments stuck in pending longer than the
// pending timeout. A payment whose backup charge was captured is completed;
// any other is failed and the buyer's debit returned once.
func (s *Service) RecoverStalePending(ctx context.Context) (int, error) {
	var ids []uuid.UUID
	cutoff := s.now().Add(-s.pendingTimeout)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		ids, err = tx.ListStalePending(ctx, cutoff, recoveryBatchSize)
		return err
	})
	if err != nil {
		return 0, err
	}

	var (
		recovered int
		errs      []error
	)
	for _, id := range ids {
		err := s.recoverOne(ctx, id)
		if errors.Is(err, ErrInvalidStateTransition) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("recover %s: %w", id, err))
			continue
		}
		recovered++
	}
	return recovered, errors.Join(errs...)
}

func (s *Service) recoverOne(ctx context.Context, id uuid.UUID) error {
	gt, err := s.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if gt.Status != store.GatewayPending {
		return fmt.Errorf("%w: %s is no longer pending", ErrInvalidStateTransition, gt.Status)
	}

	if externalID, ok := gt.Metadata[metaBackupExternalID]; ok {
		settings, err := s.GetSettings(ctx)
		if err != nil {
			return err
		}
		mode, err := s.complete(ctx, gt, settings)
		if err != nil {
			return err
		}
		log.Warn().Str("transaction_id", id.String()).Interface("backup_external_id", externalID).Str("payout", mode).
			Msg("Completed stale payment with a captured backup charge")
		s.metrics.Payment(string(store.GatewayCompleted), string(gt.PaymentMethod), gt.CreditAmount, gt.GatewayFee)
		s.metrics.Transfer(mode)
		if s.points != nil && gt.CreditAmount.IsPositive() {
			if _, err := s.points.AwardPurchase(ctx, gt.BuyerID, gt.ID, gt.CreditAmount); err != nil {
				log.Warn().Err(err).Str("transaction_id", id.String()).Msg("Failed to award purchase points")
			}
		}
		return nil
	}

	returned := false
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.GetGatewayTransaction(ctx, id, true)
		if err != nil {
			return err
		}
		if cur.Status != store.GatewayPending {
			return fmt.Errorf("%w: %s is no longer pending", ErrInvalidStateTransition, cur.Status)
		}
		returned, err = s.returnDebit(ctx, tx, cur)
		if err != nil {
			return err
		}
		markFailed(cur, "payment did not complete in time", s.now().UTC())
		return tx.UpdateGatewayTransaction(ctx, cur)
	})
	if err != nil {
		return err
	}
	if returned {
		s.metrics.Compensation("stale_pending")
	}
	return nil
}

func (s *Service) GetSettings(ctx context.Context) (*store.GatewaySettings, error) {
	var out *store.GatewaySettings
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.GetGatewaySettings(ctx)
		return err
	})
	return out, err
}

// UpdateSettings applies a partial update after validating the result.
func (s *Service) UpdateSettings(ctx context.Context, update SettingsUpdate) (*store.GatewaySettings, error) {
	var out *store.GatewaySettings
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.GetGatewaySettings(ctx)
		if err != nil {
			return err
		}
		update.apply(cur)
		if err := validateSettings(cur); err != nil {
			return err
		}
		if err := tx.SaveGatewaySettings(ctx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Bool("gateway_enabled", out.GatewayEnabled).
		Bool("automatic_transfer", out.AutomaticTransfer).
		Str("fee_percentage", out.FeePercentage.String()).
		Msg("Gateway settings updated")
	return out, nil
}

func validateSettings(s *store.GatewaySettings) error {
	hundred := decimal.NewFromInt(100)
	if s.FeePercentage.IsNegative() || s.FeePercentage.GreaterThan(hundred) || !hasTwoDecimals(s.FeePercentage) {
		return fmt.Errorf("%w: fee percentage must be 0..100 with at most 2 decimals", ErrInvalidSettings)
	}
	if s.MinimumCreditAmount.IsNegative() || !hasTwoDecimals(s.MinimumCreditAmount) || !hasTwoDecimals(s.MaximumCreditAmount) {
		return fmt.Errorf("%w: credit bounds must be >= 0 with at most 2 decimals", ErrInvalidSettings)
	}
	if s.MinimumCreditAmount.GreaterThan(s.MaximumCreditAmount) {
		return fmt.Errorf("%w: minimum credit amount exceeds maximum", ErrInvalidSettings)
	}
	if s.TransferDelayHours < 0 || s.TransferDelayHours > MaxTransferDelayHours {
		return fmt.Errorf("%w: transfer delay must be 0..%d hours", ErrInvalidSettings, MaxTransferDelayHours)
	}
	return nil
}

// CalculateBreakdown previews how a payment would split under the current settings.
func (s *Service) CalculateBreakdown(ctx context.Context, total, creditAmount decimal.Decimal) (*Breakdown, error) {
	if !total.IsPositive() || creditAmount.IsNegative() || creditAmount.GreaterThan(total) {
		return nil, fmt.Errorf("%w: need total > 0 and 0 <= credit <= total", ErrInvalidAmount)
	}
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	fee := CalculateFee(creditAmount, settings.FeePercentage)
	b := &Breakdown{
		TotalAmount:     total,
		CreditAmount:    creditAmount,
		FeePercentage:   settings.FeePercentage,
		GatewayFee:      fee,
		NetCreditAmount: creditAmount.Sub(fee),
		RemainingAmount: total.Sub(creditAmount),
	}
	b.LineItems = []LineItem{
		{Label: "Paid with credits", Amount: b.CreditAmount},
		{Label: fmt.Sprintf("Gateway fee (%s%%)", settings.FeePercentage.String()), Amount: b.GatewayFee},
		{Label: "Seller receives", Amount: b.NetCreditAmount},
	}
	if b.RemainingAmount.IsPositive() {
		b.LineItems = append(b.LineItems, LineItem{Label: "Due via backup payment", Amount: b.RemainingAmount})
	}
	return b, nil
}

// GetTransaction returns ErrTransactionNotFound for unknown ids.
func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*store.GatewayTransaction, error) {
	var out *store.GatewayTransaction
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.GetGatewayTransaction(ctx, id, false)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	return out, err
}

// ListTransactions returns payments where the user is buyer or seller, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, page store.Page) ([]store.GatewayTransaction, error) {
	var out []store.GatewayTransaction
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListGatewayTransactions(ctx, userID, page)
		return err
	})
	if out == nil {
		out = []store.GatewayTransaction{}
	}
	return out, err
}
