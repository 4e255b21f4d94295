package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rps-wager-bot/internal/model"
)

// ErrUnpaidCreditNotFound is returned when no unresolved credit has the given ID.
var ErrUnpaidCreditNotFound = errors.New("unpaid credit not found")

const unpaidCreditColumns = `id, match_id, user_id, amount, reason, last_error, created_at, resolved_at`

// UnpaidCreditRepository persists settlement credits that could not be applied.
type UnpaidCreditRepository struct {
	pool *pgxpool.Pool
}

// NewUnpaidCreditRepository creates a new UnpaidCreditRepository instance.
func NewUnpaidCreditRepository(pool *pgxpool.Pool) *UnpaidCreditRepository {
	return &UnpaidCreditRepository{pool: pool}
}

func scanUnpaidCredit(row pgx.Row) (*model.UnpaidCredit, error) {
	var c model.UnpaidCredit
	err := row.Scan(
		&c.ID,
		&c.MatchID,
		&c.UserID,
		&c.Amount,
		&c.Reason,
		&c.LastError,
		&c.CreatedAt,
		&c.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create records an unpaid credit.
func (r *UnpaidCreditRepository) Create(ctx context.Context, credit model.UnpaidCredit) (*model.UnpaidCredit, error) {
	const query = `
		INSERT INTO unpaid_credits (match_id, user_id, amount, reason, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING ` + unpaidCreditColumns

	c, err := scanUnpaidCredit(r.pool.QueryRow(ctx, query,
		credit.MatchID, credit.UserID, credit.Amount, credit.Reason, credit.LastError))
	if err != nil {
		return nil, fmt.Errorf("failed to create unpaid credit: %w", err)
	}
	return c, nil
}

// GetByID retrieves an unpaid credit, resolved or not.
func (r *UnpaidCreditRepository) GetByID(ctx context.Context, id int64) (*model.UnpaidCredit, error) {
	const query = `SELECT ` + unpaidCreditColumns + ` FROM unpaid_credits WHERE id = $1`

	c, err := scanUnpaidCredit(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnpaidCreditNotFound
		}
		return nil, fmt.Errorf("failed to get unpaid credit: %w", err)
	}
	return c, nil
}

// ListPending returns unresolved credits, oldest first.
func (r *UnpaidCreditRepository) ListPending(ctx context.Context, limit int) ([]*model.UnpaidCredit, error) {
	const query = `
		SELECT ` + unpaidCreditColumns + `
		FROM unpaid_credits
		WHERE resolved_at IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid credits: %w", err)
	}
	defer rows.Close()

	var credits []*model.UnpaidCredit
	for rows.Next() {
		c, err := scanUnpaidCredit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unpaid credit: %w", err)
		}
		credits = append(credits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unpaid credits: %w", err)
	}
	return credits, nil
}

// MarkResolved resolves a pending credit. It returns false if the credit
// was already resolved, so concurrent repayments cannot both succeed.
func (r *UnpaidCreditRepository) MarkResolved(ctx context.Context, id int64) (bool, error) {
	const query = `
		UPDATE unpaid_credits
		SET resolved_at = NOW()
		WHERE id = $1 AND resolved_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve unpaid credit: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Reopen clears the resolution of a credit whose repayment failed.
func (r *UnpaidCreditRepository) Reopen(ctx context.Context, id int64, lastError string) error {
	const query = `
		UPDATE unpaid_credits
		SET resolved_at = NULL, last_error = $2
		WHERE id = $1
	`

	if _, err := r.pool.Exec(ctx, query, id, lastError); err != nil {
		return fmt.Errorf("failed to reopen unpaid credit: %w", err)
	}
	return nil
}

// CountPending returns the number of unresolved credits.
func (r *UnpaidCreditRepository) CountPending(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM unpaid_credits WHERE resolved_at IS NULL`

	var n int64
	if err := r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unpaid credits: %w", err)
	}
	return n, nil
}
