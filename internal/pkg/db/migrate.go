package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// migrations are applied in order. Each statement must be idempotent.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "users",
		sql: `
		CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	},
	{
		name: "transactions",
		sql: `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	},
	{
		name: "transactions user index",
		sql:  `CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC)`,
	},
	{
		name: "transactions type index",
		sql:  `CREATE INDEX IF NOT EXISTS idx_transactions_type_time ON transactions(type, created_at DESC)`,
	},
	{
		name: "unpaid_credits",
		sql: `
		CREATE TABLE IF NOT EXISTS unpaid_credits (
			id BIGSERIAL PRIMARY KEY,
			match_id VARCHAR(64) NOT NULL,
			user_id BIGINT NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			reason VARCHAR(50) NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMPTZ
		)`,
	},
	{
		name: "unpaid_credits pending index",
		sql: `
		CREATE INDEX IF NOT EXISTS idx_unpaid_credits_pending
			ON unpaid_credits(created_at) WHERE resolved_at IS NULL`,
	},
}

// Migrate applies the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to apply migration %q: %w", m.name, err)
		}
		log.Debug().Str("migration", m.name).Msg("Migration applied")
	}

	log.Info().Int("count", len(migrations)).Msg("Database migrations completed")
	return nil
}
