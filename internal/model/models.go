// Package model defines the data models for the rewards ledger.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a Telegram user account in the rewards system.
// referred_by is set at most once, at creation, and forms a referral
// forest (no self-reference, no cycles).
type User struct {
	TelegramID         int64      `db:"telegram_id"`
	Username           string     `db:"username"`
	Balance            int64      `db:"balance"`
	ReferralCode       string     `db:"referral_code"`
	ReferredBy         *int64     `db:"referred_by"`
	DailyWithdrawCount int        `db:"daily_withdraw_count"`
	LastWithdrawDay    *time.Time `db:"last_withdraw_day"`
	IsAdmin            bool       `db:"is_admin"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// AdViewLog records a single verified ad-view credit.
// external_txn_id is globally unique; a duplicate callback must be a no-op.
type AdViewLog struct {
	ID            int64     `db:"id"`
	UserID        int64     `db:"user_id"`
	ExternalTxnID string    `db:"external_txn_id"`
	PointsAwarded int64     `db:"points_awarded"`
	IsVerified    bool      `db:"is_verified"`
	CreatedAt     time.Time `db:"created_at"`
}

// Withdrawal request statuses. Pending is the only non-terminal state.
const (
	WithdrawStatusPending  = "Pending"
	WithdrawStatusPaid     = "Paid"
	WithdrawStatusRejected = "Rejected"
)

// WithdrawalRequest represents a user's request to cash out points.
// Points are debited at creation (reservation model); a rejection is the
// only path that returns them.
type WithdrawalRequest struct {
	ID              int64           `db:"id"`
	UserID          int64           `db:"user_id"`
	Username        string          `db:"username"`
	PointsRequested int64           `db:"points_requested"`
	AmountTaka      decimal.Decimal `db:"amount_taka"`
	PaymentMethod   string          `db:"payment_method"`
	PaymentAddress  string          `db:"payment_address"`
	Status          string          `db:"status"`
	RequestedAt     time.Time       `db:"requested_at"`
	ProcessedAt     *time.Time      `db:"processed_at"`
}

// IsTerminal reports whether the request has reached a final state.
func (w *WithdrawalRequest) IsTerminal() bool {
	return w.Status != WithdrawStatusPending
}
