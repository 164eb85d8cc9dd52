package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

type bookTables struct {
	balances     string
	transactions string
	counters     bool
}

var books = map[store.Book]bookTables{
	store.BookCredits: {balances: "credit_balances", transactions: "credit_transactions"},
	store.BookPoints:  {balances: "points_balances", transactions: "points_transactions", counters: true},
}

func tablesFor(book store.Book) (bookTables, error) {
	t, ok := books[book]
	if !ok {
		return bookTables{}, fmt.Errorf("%w: unknown book %q", ErrInternal, book)
	}
	return t, nil
}

func (t bookTables) balanceColumns() string {
	if t.counters {
		return `user_id, total_earned, total_spent, current_balance,
			total_listings, high_quality_listings, successful_sales, created_at, updated_at`
	}
	return `user_id, total_earned, total_spent, current_balance, created_at, updated_at`
}

const transactionColumns = `id, user_id, amount, kind, source, description, reference_id, created_at`

func (r *queries) ensureBalance(ctx context.Context, t bookTables, userID uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, t.balances), userID)
	if err != nil {
		return internal("ensure balance", err)
	}
	return nil
}

func (r *queries) GetBalance(ctx context.Context, book store.Book, userID uuid.UUID) (*store.Balance, error) {
	t, err := tablesFor(book)
	if err != nil {
		return nil, err
	}
	if err := r.ensureBalance(ctx, t, userID); err != nil {
		return nil, err
	}

	var b store.Balance
	err = sqlx.GetContext(ctx, r.q, &b, fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1`, t.balanceColumns(), t.balances), userID)
	if err != nil {
		return nil, internal("get balance", err)
	}
	return &b, nil
}

func (r *queries) ApplyDelta(ctx context.Context, book store.Book, e store.Entry) (*store.Transaction, error) {
	t, err := tablesFor(book)
	if err != nil {
		return nil, err
	}
	if err := r.ensureBalance(ctx, t, e.UserID); err != nil {
		return nil, err
	}

	earned, spent := decimal.Zero, decimal.Zero
	if e.Amount.IsNegative() {
		spent = e.Amount.Neg()
	} else {
		earned = e.Amount
	}

	args := []any{e.UserID, e.Amount, earned, spent}
	counters := ""
	if t.counters {
		counters = `,
			total_listings = total_listings + $5,
			high_quality_listings = high_quality_listings + $6,
			successful_sales = successful_sales + $7`
		args = append(args, e.Counters.Listings, e.Counters.HighQualityListings, e.Counters.SuccessfulSales)
	}

	result, err := r.q.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET current_balance = current_balance + $2,
			total_earned = total_earned + $3,
			total_spent = total_spent + $4%s,
			updated_at = NOW()
		WHERE user_id = $1 AND current_balance + $2 >= 0
	`, t.balances, counters), args...)
	if err != nil {
		return nil, internal("update balance", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, internal("rows affected", err)
	}
	if rows == 0 {
		var available decimal.Decimal
		if err := sqlx.GetContext(ctx, r.q, &available, fmt.Sprintf(`SELECT current_balance FROM %s WHERE user_id = $1`, t.balances), e.UserID); err != nil {
			return nil, internal("read balance", err)
		}
		return nil, &store.InsufficientBalanceError{Book: book, Required: e.Amount.Neg(), Available: available}
	}

	var row store.Transaction
	err = sqlx.GetContext(ctx, r.q, &row, fmt.Sprintf(`
		INSERT INTO %s (user_id, amount, kind, source, description, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s
	`, t.transactions, transactionColumns), e.UserID, e.Amount, string(e.Kind), e.Source, e.Description, e.ReferenceID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateReference
		}
		return nil, internal("insert transaction", err)
	}
	return &row, nil
}

func (r *queries) ListTransactions(ctx context.Context, book store.Book, userID uuid.UUID, page store.Page) ([]store.Transaction, error) {
	t, err := tablesFor(book)
	if err != nil {
		return nil, err
	}

	rows := make([]store.Transaction, 0)
	err = sqlx.SelectContext(ctx, r.q, &rows, fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, transactionColumns, t.transactions), userID, limitArg(page), page.Offset)
	if err != nil {
		return nil, internal("list transactions", err)
	}
	return rows, nil
}

func (r *queries) FindTransactionByReference(ctx context.Context, book store.Book, userID uuid.UUID, source, referenceID string) (*store.Transaction, error) {
	t, err := tablesFor(book)
	if err != nil {
		return nil, err
	}

	var row store.Transaction
	err = sqlx.GetContext(ctx, r.q, &row, fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = $1 AND source = $2 AND reference_id = $3
		ORDER BY created_at DESC
		LIMIT 1
	`, transactionColumns, t.transactions), userID, source, referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, internal("find transaction", err)
	}
	return &row, nil
}

func (r *queries) Leaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error) {
	rows := make([]store.LeaderboardEntry, 0)
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT ROW_NUMBER() OVER (ORDER BY total_earned DESC, user_id) AS rank,
			user_id, total_earned, current_balance,
			total_listings, high_quality_listings, successful_sales
		FROM points_balances
		ORDER BY total_earned DESC, user_id
		LIMIT $1
	`, limitArg(store.Page{Limit: limit}))
	if err != nil {
		return nil, internal("leaderboard", err)
	}
	return rows, nil
}
