package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// migrations are applied in order at startup. Statements are idempotent
// so re-running on boot is safe.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "users table",
		sql: `
			CREATE TABLE IF NOT EXISTS users (
				telegram_id BIGINT PRIMARY KEY,
				username VARCHAR(255) NOT NULL DEFAULT '',
				balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
				referral_code VARCHAR(16) NOT NULL UNIQUE,
				referred_by BIGINT REFERENCES users(telegram_id) ON DELETE SET NULL,
				daily_withdraw_count INT NOT NULL DEFAULT 0,
				last_withdraw_day DATE,
				is_admin BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_users_referred_by ON users(referred_by);
		`,
	},
	{
		name: "ad_view_logs table",
		sql: `
			CREATE TABLE IF NOT EXISTS ad_view_logs (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
				external_txn_id VARCHAR(128) NOT NULL UNIQUE,
				points_awarded BIGINT NOT NULL,
				is_verified BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_ad_view_logs_user_time ON ad_view_logs(user_id, created_at DESC);
		`,
	},
	{
		name: "withdraw_requests table",
		sql: `
			CREATE TABLE IF NOT EXISTS withdraw_requests (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
				points_requested BIGINT NOT NULL CHECK (points_requested > 0),
				amount_taka NUMERIC(12,2) NOT NULL,
				payment_method VARCHAR(50) NOT NULL,
				payment_address VARCHAR(255) NOT NULL,
				status VARCHAR(20) NOT NULL DEFAULT 'Pending'
					CHECK (status IN ('Pending', 'Paid', 'Rejected')),
				requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				processed_at TIMESTAMPTZ
			);
			CREATE INDEX IF NOT EXISTS idx_withdraw_requests_status ON withdraw_requests(status, requested_at);
			CREATE INDEX IF NOT EXISTS idx_withdraw_requests_user_time ON withdraw_requests(user_id, requested_at DESC);
		`,
	},
}

// RunMigrations applies the database schema. The uniqueness and
// foreign-key invariants live in the schema itself, not only in
// application code.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %q failed: %w", m.name, err)
		}
		log.Info().Str("migration", m.name).Msg("Migration applied")
	}
	return nil
}
