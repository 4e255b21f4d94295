// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rps-wager-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `user_id, username, balance, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.UserID,
		&user.Username,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserRepository handles wallet account persistence.
type UserRepository struct {
	pool *pgxpool.Pool
	txs  *TransactionRepository
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool, txs: NewTransactionRepository(pool)}
}

// Create creates a new user with the given starting balance.
// A positive starting balance is recorded as an initial transaction.
func (r *UserRepository) Create(ctx context.Context, userID int64, username string, initialBalance int64) (*model.User, error) {
	const query = `
		INSERT INTO users (user_id, username, balance, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING ` + userColumns

	var user *model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRow(ctx, query, userID, username, initialBalance))
		if err != nil {
			return err
		}
		if initialBalance > 0 {
			_, err = r.txs.create(ctx, tx, userID, initialBalance, model.TxTypeInitial, nil)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetByID retrieves a user by ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetOrCreate retrieves a user, creating one with initialBalance if it doesn't exist.
// The bool result reports whether the user was created.
func (r *UserRepository) GetOrCreate(ctx context.Context, userID int64, username string, initialBalance int64) (*model.User, bool, error) {
	user, err := r.GetByID(ctx, userID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, userID, username, initialBalance)
	if err != nil {
		// Another request may have created the user concurrently.
		user, err = r.GetByID(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	return user, true, nil
}

// Debit subtracts amount from the balance and records the transaction atomically.
// The update is conditional: it never drives the balance negative and
// returns ErrInsufficientBalance instead.
func (r *UserRepository) Debit(ctx context.Context, userID, amount int64, txType string, description *string) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	const query = `
		UPDATE users
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING ` + userColumns

	var user *model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRow(ctx, query, userID, amount))
		if err != nil {
			return err
		}
		_, err = r.txs.create(ctx, tx, userID, -amount, txType, description)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			exists, existsErr := r.Exists(ctx, userID)
			if existsErr != nil {
				return nil, existsErr
			}
			if !exists {
				return nil, ErrUserNotFound
			}
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("failed to debit balance: %w", err)
	}

	return user, nil
}

// Credit adds amount to the balance and records the transaction atomically.
func (r *UserRepository) Credit(ctx context.Context, userID, amount int64, txType string, description *string) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	const query = `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + userColumns

	var user *model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRow(ctx, query, userID, amount))
		if err != nil {
			return err
		}
		_, err = r.txs.create(ctx, tx, userID, amount, txType, description)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}

	return user, nil
}

// UpdateUsername updates a user's display name.
func (r *UserRepository) UpdateUsername(ctx context.Context, userID int64, username string) error {
	const query = `
		UPDATE users
		SET username = $2, updated_at = NOW()
		WHERE user_id = $1
	`

	result, err := r.pool.Exec(ctx, query, userID, username)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// Exists checks if a user with the given ID exists.
func (r *UserRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	return exists, nil
}
