// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"earnquick-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUser     = errors.New("user already exists")
	ErrDuplicateReferral = errors.New("referral code already taken")
)

const userColumns = `telegram_id, username, balance, referral_code, referred_by,
		daily_withdraw_count, last_withdraw_day, is_admin, created_at, updated_at`

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// UserRepository handles user data persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.TelegramID,
		&user.Username,
		&user.Balance,
		&user.ReferralCode,
		&user.ReferredBy,
		&user.DailyWithdrawCount,
		&user.LastWithdrawDay,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateTx inserts a new user row inside the given transaction.
// balance carries any welcome bonus; referredBy is nil when no sponsor
// was resolved. Returns ErrDuplicateUser if the identity already exists
// and ErrDuplicateReferral on a referral code collision.
func (r *UserRepository) CreateTx(ctx context.Context, tx pgx.Tx, telegramID int64, username, referralCode string, balance int64, referredBy *int64) (*model.User, error) {
	query := `
		INSERT INTO users (telegram_id, username, balance, referral_code, referred_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(tx.QueryRow(ctx, query, telegramID, username, balance, referralCode, referredBy))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == "users_referral_code_key" {
				return nil, ErrDuplicateReferral
			}
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by their Telegram ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, telegramID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByReferralCodeTx resolves a referral code to its owner inside the
// given transaction, locking the owner's row so a concurrent bonus credit
// cannot race with the lookup.
func (r *UserRepository) GetByReferralCodeTx(ctx context.Context, tx pgx.Tx, code string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referral_code = $1 FOR UPDATE`

	user, err := scanUser(tx.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve referral code: %w", err)
	}
	return user, nil
}

// LockForUpdateTx reads a user row under FOR UPDATE, serializing every
// concurrent balance mutation for that user until the transaction ends.
// Locks are per-row: operations on different users do not block each other.
func (r *UserRepository) LockForUpdateTx(ctx context.Context, tx pgx.Tx, telegramID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1 FOR UPDATE`

	user, err := scanUser(tx.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user row: %w", err)
	}
	return user, nil
}

// AdjustBalanceTx adds delta (which may be negative) to a user's balance
// inside the given transaction and returns the new balance. The schema's
// CHECK (balance >= 0) backstops any debit below zero.
func (r *UserRepository) AdjustBalanceTx(ctx context.Context, tx pgx.Tx, telegramID int64, delta int64) (int64, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING balance
	`

	var balance int64
	err := tx.QueryRow(ctx, query, telegramID, delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to adjust balance: %w", err)
	}
	return balance, nil
}

// DebitForWithdrawalTx debits points and records the withdrawal against
// the daily counter in a single statement. The caller must already hold
// the row lock and have validated balance and limit.
func (r *UserRepository) DebitForWithdrawalTx(ctx context.Context, tx pgx.Tx, telegramID int64, points int64, dailyCount int, day time.Time) (int64, error) {
	const query = `
		UPDATE users
		SET balance = balance - $2,
		    daily_withdraw_count = $3,
		    last_withdraw_day = $4,
		    updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING balance
	`

	var balance int64
	err := tx.QueryRow(ctx, query, telegramID, points, dailyCount, day).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to debit for withdrawal: %w", err)
	}
	return balance, nil
}

// UpdateUsername updates a user's username when it changed on Telegram.
func (r *UserRepository) UpdateUsername(ctx context.Context, telegramID int64, username string) error {
	const query = `
		UPDATE users
		SET username = $2, updated_at = NOW()
		WHERE telegram_id = $1
	`

	result, err := r.pool.Exec(ctx, query, telegramID, username)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountReferrals returns how many users name the given user as sponsor.
func (r *UserRepository) CountReferrals(ctx context.Context, telegramID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE referred_by = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, telegramID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return count, nil
}

// SetAdmin flags or unflags a user as admin.
func (r *UserRepository) SetAdmin(ctx context.Context, telegramID int64, isAdmin bool) error {
	const query = `
		UPDATE users
		SET is_admin = $2, updated_at = NOW()
		WHERE telegram_id = $1
	`

	result, err := r.pool.Exec(ctx, query, telegramID, isAdmin)
	if err != nil {
		return fmt.Errorf("failed to set admin flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Stats aggregates user counts for the admin dashboard.
func (r *UserRepository) Stats(ctx context.Context) (totalUsers int64, totalPoints int64, err error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(balance), 0) FROM users`

	if err := r.pool.QueryRow(ctx, query).Scan(&totalUsers, &totalPoints); err != nil {
		return 0, 0, fmt.Errorf("failed to get user stats: %w", err)
	}
	return totalUsers, totalPoints, nil
}
