// Package memory provides an in-process store.Store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

// Store serializes every unit of work behind one mutex. A unit of work runs
// against a copy of the state which replaces the committed state only when
// the function returns nil.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

type refKey struct {
	book   store.Book
	userID uuid.UUID
	source string
	ref    string
}

type state struct {
	seq           int64
	balances      map[store.Book]map[uuid.UUID]store.Balance
	transactions  map[store.Book][]entryRow
	references    map[refKey]uuid.UUID
	settings      store.GatewaySettings
	gateway       map[uuid.UUID]store.GatewayTransaction
	transfers     map[uuid.UUID]store.ScheduledTransfer
	promoSettings map[string]store.PromotionSetting
	promotions    []promotionRow
	rewards       map[uuid.UUID]store.Reward
}

type entryRow struct {
	seq int64
	tx  store.Transaction
}

type promotionRow struct {
	seq int64
	lp  store.ListingPromotion
}

// Option configures the store.
type Option func(*Store)

// WithClock overrides the clock used for created_at/updated_at columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a store seeded with the default gateway settings, promotion
// catalog and rewards catalog.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	st := &state{
		balances: map[store.Book]map[uuid.UUID]store.Balance{
			store.BookCredits: {},
			store.BookPoints:  {},
		},
		transactions:  map[store.Book][]entryRow{},
		references:    map[refKey]uuid.UUID{},
		settings:      store.DefaultGatewaySettings(),
		gateway:       map[uuid.UUID]store.GatewayTransaction{},
		transfers:     map[uuid.UUID]store.ScheduledTransfer{},
		promoSettings: map[string]store.PromotionSetting{},
		rewards:       map[uuid.UUID]store.Reward{},
	}
	st.settings.UpdatedAt = s.now()
	for _, ps := range store.DefaultPromotionSettings() {
		ps.UpdatedAt = s.now()
		st.promoSettings[ps.PromotionType] = ps
	}
	for _, r := range store.DefaultRewards() {
		r.CreatedAt = s.now()
		st.rewards[r.ID] = r
	}
	s.state = st
	return s
}

// WithTx implements store.Store.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{s: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// PutReward adds or replaces a rewards catalog entry.
func (s *Store) PutReward(r store.Reward) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.state.rewards[r.ID] = r
}

func (st *state) clone() *state {
	out := &state{
		seq:           st.seq,
		balances:      make(map[store.Book]map[uuid.UUID]store.Balance, len(st.balances)),
		transactions:  make(map[store.Book][]entryRow, len(st.transactions)),
		references:    make(map[refKey]uuid.UUID, len(st.references)),
		settings:      st.settings,
		gateway:       make(map[uuid.UUID]store.GatewayTransaction, len(st.gateway)),
		transfers:     make(map[uuid.UUID]store.ScheduledTransfer, len(st.transfers)),
		promoSettings: make(map[string]store.PromotionSetting, len(st.promoSettings)),
		promotions:    append([]promotionRow(nil), st.promotions...),
		rewards:       make(map[uuid.UUID]store.Reward, len(st.rewards)),
	}
	for book, rows := range st.balances {
		m := make(map[uuid.UUID]store.Balance, len(rows))
		for k, v := range rows {
			m[k] = v
		}
		out.balances[book] = m
	}
	for book, rows := range st.transactions {
		out.transactions[book] = append([]entryRow(nil), rows...)
	}
	for k, v := range st.references {
		out.references[k] = v
	}
	for k, v := range st.gateway {
		v.Metadata = cloneMetadata(v.Metadata)
		out.gateway[k] = v
	}
	for k, v := range st.transfers {
		out.transfers[k] = v
	}
	for k, v := range st.promoSettings {
		out.promoSettings[k] = v
	}
	for k, v := range st.rewards {
		out.rewards[k] = v
	}
	return out
}

func (st *state) nextSeq() int64 {
	st.seq++
	return st.seq
}

func cloneMetadata(m store.Metadata) store.Metadata {
	if m == nil {
		return nil
	}
	out := make(store.Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*tx)(nil)
)

type tx struct {
	s   *state
	now func() time.Time
}

// Ledger

func (t *tx) balanceRow(book store.Book, userID uuid.UUID) store.Balance {
	rows := t.s.balances[book]
	b, ok := rows[userID]
	if !ok {
		now := t.now()
		b = store.Balance{
			UserID:         userID,
			TotalEarned:    decimal.Zero,
			TotalSpent:     decimal.Zero,
			CurrentBalance: decimal.Zero,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		rows[userID] = b
	}
	return b
}

func (t *tx) GetBalance(_ context.Context, book store.Book, userID uuid.UUID) (*store.Balance, error) {
	b := t.balanceRow(book, userID)
	return &b, nil
}

func (t *tx) ApplyDelta(_ context.Context, book store.Book, e store.Entry) (*store.Transaction, error) {
	if e.ReferenceID != nil && store.IsUniqueSource(e.Source) {
		k := refKey{book: book, userID: e.UserID, source: e.Source, ref: *e.ReferenceID}
		if _, exists := t.s.references[k]; exists {
			return nil, store.ErrDuplicateReference
		}
	}

	b := t.balanceRow(book, e.UserID)
	next := b.CurrentBalance.Add(e.Amount)
	if next.IsNegative() {
		return nil, &store.InsufficientBalanceError{Book: book, Required: e.Amount.Neg(), Available: b.CurrentBalance}
	}

	now := t.now()
	if e.Amount.IsNegative() {
		b.TotalSpent = b.TotalSpent.Add(e.Amount.Neg())
	} else {
		b.TotalEarned = b.TotalEarned.Add(e.Amount)
	}
	b.CurrentBalance = next
	b.TotalListings += e.Counters.Listings
	b.HighQualityListings += e.Counters.HighQualityListings
	b.SuccessfulSales += e.Counters.SuccessfulSales
	b.UpdatedAt = now
	t.s.balances[book][e.UserID] = b

	row := store.Transaction{
		ID:          uuid.New(),
		UserID:      e.UserID,
		Amount:      e.Amount,
		Kind:        e.Kind,
		Source:      e.Source,
		Description: e.Description,
		ReferenceID: e.ReferenceID,
		CreatedAt:   now,
	}
	t.s.transactions[book] = append(t.s.transactions[book], entryRow{seq: t.s.nextSeq(), tx: row})
	if e.ReferenceID != nil && store.IsUniqueSource(e.Source) {
		t.s.references[refKey{book: book, userID: e.UserID, source: e.Source, ref: *e.ReferenceID}] = row.ID
	}
	return &row, nil
}

func (t *tx) ListTransactions(_ context.Context, book store.Book, userID uuid.UUID, page store.Page) ([]store.Transaction, error) {
	rows := t.s.transactions[book]
	out := make([]store.Transaction, 0)
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].tx.UserID == userID {
			out = append(out, rows[i].tx)
		}
	}
	return paginate(out, page), nil
}

func (t *tx) FindTransactionByReference(_ context.Context, book store.Book, userID uuid.UUID, source, referenceID string) (*store.Transaction, error) {
	rows := t.s.transactions[book]
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i].tx
		if row.UserID == userID && row.Source == source && row.ReferenceID != nil && *row.ReferenceID == referenceID {
			return &row, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) Leaderboard(_ context.Context, limit int) ([]store.LeaderboardEntry, error) {
	rows := make([]store.Balance, 0, len(t.s.balances[store.BookPoints]))
	for _, b := range t.s.balances[store.BookPoints] {
		rows = append(rows, b)
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].TotalEarned.Cmp(rows[j].TotalEarned); c != 0 {
			return c > 0
		}
		return rows[i].UserID.String() < rows[j].UserID.String()
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]store.LeaderboardEntry, 0, len(rows))
	for i, b := range rows {
		out = append(out, store.LeaderboardEntry{
			Rank:                i + 1,
			UserID:              b.UserID,
			TotalEarned:         b.TotalEarned,
			CurrentBalance:      b.CurrentBalance,
			TotalListings:       b.TotalListings,
			HighQualityListings: b.HighQualityListings,
			SuccessfulSales:     b.SuccessfulSales,
		})
	}
	return out, nil
}

// Gateway

func (t *tx) GetGatewaySettings(_ context.Context) (*store.GatewaySettings, error) {
	s := t.s.settings
	return &s, nil
}

func (t *tx) SaveGatewaySettings(_ context.Context, settings *store.GatewaySettings) error {
	s := *settings
	s.UpdatedAt = t.now()
	t.s.settings = s
	settings.UpdatedAt = s.UpdatedAt
	return nil
}

func (t *tx) CreateGatewayTransaction(_ context.Context, gt *store.GatewayTransaction) error {
	if _, exists := t.s.gateway[gt.ID]; exists {
		return store.ErrDuplicateReference
	}
	row := *gt
	row.Metadata = cloneMetadata(gt.Metadata)
	t.s.gateway[gt.ID] = row
	return nil
}

func (t *tx) GetGatewayTransaction(_ context.Context, id uuid.UUID, _ bool) (*store.GatewayTransaction, error) {
	row, ok := t.s.gateway[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	row.Metadata = cloneMetadata(row.Metadata)
	return &row, nil
}

func (t *tx) UpdateGatewayTransaction(_ context.Context, gt *store.GatewayTransaction) error {
	if _, ok := t.s.gateway[gt.ID]; !ok {
		return store.ErrNotFound
	}
	row := *gt
	row.Metadata = cloneMetadata(gt.Metadata)
	t.s.gateway[gt.ID] = row
	return nil
}

func (t *tx) ListGatewayTransactions(_ context.Context, userID uuid.UUID, page store.Page) ([]store.GatewayTransaction, error) {
	out := make([]store.GatewayTransaction, 0)
	for _, row := range t.s.gateway {
		if row.BuyerID == userID || row.SellerID == userID {
			row.Metadata = cloneMetadata(row.Metadata)
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return paginate(out, page), nil
}

func (t *tx) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error) {
	rows := make([]store.GatewayTransaction, 0)
	for _, row := range t.s.gateway {
		if row.Status == store.GatewayPending && row.CreatedAt.Before(olderThan) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// Transfers

func (t *tx) CreateScheduledTransfer(_ context.Context, st *store.ScheduledTransfer) error {
	for _, existing := range t.s.transfers {
		if existing.TransactionID == st.TransactionID {
			return store.ErrDuplicateReference
		}
	}
	t.s.transfers[st.ID] = *st
	return nil
}

func (t *tx) GetScheduledTransferByTransaction(_ context.Context, transactionID uuid.UUID, _ bool) (*store.ScheduledTransfer, error) {
	for _, row := range t.s.transfers {
		if row.TransactionID == transactionID {
			return &row, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) ClaimScheduledTransfer(_ context.Context, id uuid.UUID) (*store.ScheduledTransfer, error) {
	row, ok := t.s.transfers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &row, nil
}

func (t *tx) ListDueTransfers(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows := make([]store.ScheduledTransfer, 0)
	for _, row := range t.s.transfers {
		if row.Status == store.TransferPending && !row.ScheduledAt.After(now) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ScheduledAt.Before(rows[j].ScheduledAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (t *tx) UpdateScheduledTransfer(_ context.Context, st *store.ScheduledTransfer) error {
	if _, ok := t.s.transfers[st.ID]; !ok {
		return store.ErrNotFound
	}
	t.s.transfers[st.ID] = *st
	return nil
}

// Promotions

func (t *tx) GetPromotionSetting(_ context.Context, promotionType string) (*store.PromotionSetting, error) {
	ps, ok := t.s.promoSettings[promotionType]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ps, nil
}

func (t *tx) ListPromotionSettings(_ context.Context, activeOnly bool) ([]store.PromotionSetting, error) {
	out := make([]store.PromotionSetting, 0, len(t.s.promoSettings))
	for _, ps := range t.s.promoSettings {
		if activeOnly && !ps.IsActive {
			continue
		}
		out = append(out, ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PromotionType < out[j].PromotionType })
	return out, nil
}

func (t *tx) UpsertPromotionSetting(_ context.Context, setting *store.PromotionSetting) error {
	ps := *setting
	ps.UpdatedAt = t.now()
	t.s.promoSettings[ps.PromotionType] = ps
	setting.UpdatedAt = ps.UpdatedAt
	return nil
}

func (t *tx) ReplaceActivePromotions(_ context.Context, listingID, promotionType string, at time.Time) (int64, error) {
	var n int64
	for i := range t.s.promotions {
		lp := &t.s.promotions[i].lp
		if lp.ListingID == listingID && lp.PromotionType == promotionType && lp.Status == store.PromotionActive {
			lp.Status = store.PromotionReplaced
			lp.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (t *tx) CreateListingPromotion(_ context.Context, lp *store.ListingPromotion) error {
	if lp.Status == store.PromotionActive {
		for _, row := range t.s.promotions {
			if row.lp.ListingID == lp.ListingID && row.lp.PromotionType == lp.PromotionType && row.lp.Status == store.PromotionActive {
				return store.ErrDuplicateReference
			}
		}
	}
	t.s.promotions = append(t.s.promotions, promotionRow{seq: t.s.nextSeq(), lp: *lp})
	return nil
}

func (t *tx) ListListingPromotions(_ context.Context, listingID string) ([]store.ListingPromotion, error) {
	out := make([]store.ListingPromotion, 0)
	for i := len(t.s.promotions) - 1; i >= 0; i-- {
		if t.s.promotions[i].lp.ListingID == listingID {
			out = append(out, t.s.promotions[i].lp)
		}
	}
	return out, nil
}

func (t *tx) ExpirePromotions(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for i := range t.s.promotions {
		lp := &t.s.promotions[i].lp
		if lp.Status == store.PromotionActive && lp.ExpiresAt.Before(now) {
			lp.Status = store.PromotionExpired
			lp.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// Rewards

func (t *tx) GetReward(_ context.Context, id uuid.UUID) (*store.Reward, error) {
	r, ok := t.s.rewards[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (t *tx) ListRewards(_ context.Context, activeOnly bool) ([]store.Reward, error) {
	out := make([]store.Reward, 0, len(t.s.rewards))
	for _, r := range t.s.rewards {
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].PointsCost.Cmp(out[j].PointsCost); c != 0 {
			return c < 0
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func paginate[T any](rows []T, page store.Page) []T {
	if page.Offset > 0 {
		if page.Offset >= len(rows) {
			return rows[:0]
		}
		rows = rows[page.Offset:]
	}
	if page.Limit > 0 && len(rows) > page.Limit {
		rows = rows[:page.Limit]
	}
	return rows
}
