package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/cczslater/sellbuydeal-sub000/internal/domain/credit"
	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

const DefaultLeaderboardLimit = 10

// Service is the loyalty points ledger. It has the same contract as the
// credit ledger, over whole-number points.
type Service struct {
	store   store.Store
	credits credit.Service
	cfg     Config
}

func NewService(st store.Store, credits credit.Service, cfg Config) *Service {
	return &Service{store: st, credits: credits, cfg: cfg}
}

// ValidatePoints rejects non-positive and fractional point amounts.
func ValidatePoints(points decimal.Decimal) error {
	if !points.IsPositive() || !points.IsInteger() {
		return ErrInvalidAmount
	}
	return nil
}

func (s *Service) Award(ctx context.Context, userID uuid.UUID, points decimal.Decimal, meta TransactionMeta) (*store.Transaction, error) {
	var t *store.Transaction
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		t, err = s.AwardTx(ctx, tx, userID, points, meta)
		return err
	})
	return t, err
}

func (s *Service) Spend(ctx context.Context, userID uuid.UUID, points decimal.Decimal, meta TransactionMeta) (*store.Transaction, error) {
	var t *store.Transaction
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		t, err = s.SpendTx(ctx, tx, userID, points, meta)
		return err
	})
	return t, err
}

// AwardTx adds points inside tx. Sources tied to marketplace activity also
// bump the matching counter in the same update.
func (s *Service) AwardTx(ctx context.Context, tx store.Tx, userID uuid.UUID, points decimal.Decimal, meta TransactionMeta) (*store.Transaction, error) {
	if err := ValidatePoints(points); err != nil {
		return nil, err
	}
	kind := meta.Kind
	if kind == "" {
		kind = store.KindEarned
	}
	return s.apply(ctx, tx, userID, points, kind, meta, countersFor(meta.Source))
}

// SpendTx removes points inside tx.
func (s *Service) SpendTx(ctx context.Context, tx store.Tx, userID uuid.UUID, points decimal.Decimal, meta TransactionMeta) (*store.Transaction, error) {
	if err := ValidatePoints(points); err != nil {
		return nil, err
	}
	kind := meta.Kind
	if kind == "" {
		kind = store.KindSpent
	}
	return s.apply(ctx, tx, userID, points.Neg(), kind, meta, store.Counters{})
}

func (s *Service) apply(ctx context.Context, tx store.Tx, userID uuid.UUID, delta decimal.Decimal, kind store.Kind, meta TransactionMeta, counters store.Counters) (*store.Transaction, error) {
	if meta.Source == "" {
		return nil, ErrMissingSource
	}
	t, err := tx.ApplyDelta(ctx, store.BookPoints, store.Entry{
		UserID:      userID,
		Amount:      delta,
		Kind:        kind,
		Source:      meta.Source,
		Description: meta.Description,
		ReferenceID: meta.ReferenceID,
		Counters:    counters,
	})
	if err != nil {
		return nil, fmt.Errorf("points ledger %s: %w", meta.Source, err)
	}
	return t, nil
}

func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (*store.Balance, error) {
	var b *store.Balance
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		b, err = tx.GetBalance(ctx, store.BookPoints, userID)
		return err
	})
	return b, err
}

// History returns points transactions, newest first. Limit <= 0 returns all.
func (s *Service) History(ctx context.Context, userID uuid.UUID, page store.Page) ([]store.Transaction, error) {
	var items []store.Transaction
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		items, err = tx.ListTransactions(ctx, store.BookPoints, userID, page)
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

func (s *Service) Leaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	var out []store.LeaderboardEntry
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.Leaderboard(ctx, limit)
		return err
	})
	return out, err
}

// AwardForEvent awards the configured points for a marketplace event.
// A replayed event (same user, type and reference) is not awarded twice.
func (s *Service) AwardForEvent(ctx context.Context, ev Event) (*AwardResult, error) {
	points, ok := s.cfg.pointsFor(ev.Type)
	if !ok {
		return nil, ErrUnknownEvent
	}

	t, err := s.Award(ctx, ev.UserID, decimal.NewFromInt(points), TransactionMeta{
		Source:      string(ev.Type),
		Description: fmt.Sprintf("Points for %s", ev.Type),
		ReferenceID: credit.Ref(ev.ReferenceID),
	})
	if errors.Is(err, store.ErrDuplicateReference) {
		var existing *store.Transaction
		err = s.store.WithTx(ctx, func(tx store.Tx) error {
			var err error
			existing, err = tx.FindTransactionByReference(ctx, store.BookPoints, ev.UserID, string(ev.Type), ev.ReferenceID)
			return err
		})
		if err != nil {
			return nil, err
		}
		return &AwardResult{Transaction: existing, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", ev.UserID.String()).
		Str("event", string(ev.Type)).
		Int64("points", points).
		Msg("Loyalty points awarded")
	return &AwardResult{Transaction: t}, nil
}

// AwardPurchase gives floor(creditAmount/10) points for a gateway purchase.
// Zero-point purchases record nothing.
func (s *Service) AwardPurchase(ctx context.Context, userID, transactionID uuid.UUID, creditAmount decimal.Decimal) (*store.Transaction, error) {
	points := creditAmount.Div(decimal.NewFromInt(10)).Floor()
	if !points.IsPositive() {
		return nil, nil
	}
	return s.Award(ctx, userID, points, TransactionMeta{
		Source:      store.SourceGatewayPurchase,
		Description: "Points for gateway purchase",
		ReferenceID: credit.Ref(transactionID.String()),
	})
}

func (s *Service) ListRewards(ctx context.Context) ([]store.Reward, error) {
	var out []store.Reward
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListRewards(ctx, true)
		return err
	})
	return out, err
}

// GetActiveReward returns ErrUnknownReward for missing or inactive rewards.
func GetActiveReward(ctx context.Context, tx store.Tx, rewardID uuid.UUID) (*store.Reward, error) {
	r, err := tx.GetReward(ctx, rewardID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownReward
	}
	if err != nil {
		return nil, err
	}
	if !r.IsActive {
		return nil, ErrUnknownReward
	}
	return r, nil
}

// RedeemReward spends points on a credits or giveaway_entry reward. Credits
// rewards grant credit_value credits in the same unit of work. Boost rewards
// need a listing and are rejected with ErrBoostRequiresListing.
func (s *Service) RedeemReward(ctx context.Context, userID, rewardID uuid.UUID) (*Redemption, error) {
	var out *Redemption
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		reward, err := GetActiveReward(ctx, tx, rewardID)
		if err != nil {
			return err
		}
		if reward.RewardType == store.RewardBoost {
			return ErrBoostRequiresListing
		}

		spent, err := s.SpendTx(ctx, tx, userID, reward.PointsCost, TransactionMeta{
			Source:      SourceRewardRedemption,
			Description: "Redeemed " + reward.Name,
			ReferenceID: credit.Ref(reward.ID.String()),
		})
		if err != nil {
			return err
		}

		red := &Redemption{
			Reward:         *reward,
			PointsSpent:    reward.PointsCost,
			PointsTxID:     spent.ID,
			CreditsGranted: decimal.Zero,
		}

		if reward.RewardType == store.RewardCredits {
			granted, err := s.credits.CreditTx(ctx, tx, userID, reward.CreditValue, credit.TransactionMeta{
				Kind:        store.KindBonus,
				Source:      SourcePointsConversion,
				Description: "Converted from " + reward.PointsCost.String() + " points",
				ReferenceID: credit.Ref(spent.ID.String()),
			})
			if err != nil {
				return err
			}
			red.CreditsGranted = reward.CreditValue
			red.CreditTxID = &granted.ID
		}

		b, err := tx.GetBalance(ctx, store.BookPoints, userID)
		if err != nil {
			return err
		}
		red.RemainingPoints = b.CurrentBalance
		out = red
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("reward_id", rewardID.String()).
		Str("reward_type", string(out.Reward.RewardType)).
		Msg("Reward redeemed")
	return out, nil
}
