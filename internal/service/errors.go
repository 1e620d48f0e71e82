// Package service implements the points ledger: registration with
// referral bonuses, idempotent ad-view crediting, and the withdrawal
// state machine. Every multi-step balance mutation runs in one database
// transaction holding a row lock on the affected user, so concurrent
// operations on the same user are serialized while different users
// proceed in parallel.
package service

import "errors"

// Ledger operation errors. Each eligibility failure has its own sentinel
// so callers can show a distinct user-facing message per case. Any other
// error from a ledger operation indicates a storage failure: the
// transaction was rolled back in full and the call may be retried.
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidAmount         = errors.New("points amount out of allowed range")
	ErrInvalidPayment        = errors.New("payment method and address are required")
	ErrInvalidTxnID          = errors.New("external transaction id is required")
	ErrOutsideWithdrawWindow = errors.New("outside withdrawal window")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrDailyLimitExceeded    = errors.New("daily withdrawal limit exceeded")
	ErrRequestNotFound       = errors.New("withdrawal request not found")
	ErrAlreadyProcessed      = errors.New("withdrawal request already processed")
	ErrInvalidDecision       = errors.New("decision must be Approve or Reject")
)
