package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"earnquick-bot/internal/config"
	"earnquick-bot/internal/model"
	"earnquick-bot/internal/pkg/db"
	"earnquick-bot/internal/repository"
)

// Decision is an admin's verdict on a pending withdrawal request.
type Decision string

// Withdrawal decisions.
const (
	DecisionApprove Decision = "Approve"
	DecisionReject  Decision = "Reject"
)

// WithinWithdrawWindow reports whether the given hour falls inside the
// [startHour, endHour) daily window.
func WithinWithdrawWindow(hour, startHour, endHour int) bool {
	return hour >= startHour && hour < endHour
}

// WithdrawalService implements the withdrawal state machine:
// Pending -> Paid or Pending -> Rejected, no transition out of a
// terminal state. Points are reserved (debited) at request time;
// rejection is the only path that returns them.
type WithdrawalService struct {
	pool           *db.Pool
	userRepo       *repository.UserRepository
	withdrawalRepo *repository.WithdrawalRepository
	notifier       Notifier
	cfg            config.WithdrawConfig
	now            func() time.Time
}

// NewWithdrawalService creates a new WithdrawalService instance.
func NewWithdrawalService(
	pool *db.Pool,
	userRepo *repository.UserRepository,
	withdrawalRepo *repository.WithdrawalRepository,
	notifier Notifier,
	cfg config.WithdrawConfig,
) *WithdrawalService {
	return &WithdrawalService{
		pool:           pool,
		userRepo:       userRepo,
		withdrawalRepo: withdrawalRepo,
		notifier:       notifier,
		cfg:            cfg,
		now:            time.Now,
	}
}

// WithClock overrides the service clock. Used by tests to exercise the
// withdrawal window.
func (s *WithdrawalService) WithClock(now func() time.Time) *WithdrawalService {
	s.now = now
	return s
}

// SetNotifier replaces the notification sink. Called once at startup,
// after the Telegram bot exists.
func (s *WithdrawalService) SetNotifier(n Notifier) {
	s.notifier = n
}

// Request validates eligibility and creates a Pending withdrawal request,
// debiting the points in the same transaction that persists the request.
// Validation failures happen before the transaction begins and leave no
// side effects. The admin notification goes out only after commit and is
// best-effort.
func (s *WithdrawalService) Request(ctx context.Context, userID int64, points int64, method, address string) (*model.WithdrawalRequest, int64, error) {
	// The window gate comes first: a closed window wins over any other
	// eligibility failure.
	now := s.now()
	if !WithinWithdrawWindow(now.Hour(), s.cfg.StartHour, s.cfg.EndHour) {
		return nil, 0, ErrOutsideWithdrawWindow
	}

	if points < s.cfg.MinPoints || points > s.cfg.MaxPoints {
		return nil, 0, ErrInvalidAmount
	}
	if method == "" || address == "" {
		return nil, 0, ErrInvalidPayment
	}

	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	var (
		req        *model.WithdrawalRequest
		newBalance int64
	)
	err := s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		user, err := s.userRepo.LockForUpdateTx(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		// Re-read under the lock: a concurrent request from the same
		// user cannot pass the balance check against a stale value.
		if user.Balance < points {
			return ErrInsufficientBalance
		}

		// The daily counter resets at the calendar-day boundary.
		count := user.DailyWithdrawCount
		if user.LastWithdrawDay == nil || !sameDay(*user.LastWithdrawDay, today) {
			count = 0
		}
		if count >= s.cfg.DailyLimit {
			return ErrDailyLimitExceeded
		}

		newBalance, err = s.userRepo.DebitForWithdrawalTx(ctx, tx, userID, points, count+1, today)
		if err != nil {
			return err
		}

		amount := PointsToTaka(points, s.cfg.PointsPerTaka)
		req, err = s.withdrawalRepo.CreateTx(ctx, tx, userID, points, amount, method, address)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	log.Info().
		Int64("user_id", userID).
		Int64("request_id", req.ID).
		Int64("points", points).
		Str("amount_taka", req.AmountTaka.StringFixed(2)).
		Msg("Withdrawal requested")

	s.notifier.NotifyAdmins(ctx, fmt.Sprintf(
		"🚨 New withdrawal request #%d\nUser: %d\nPoints: %d\nAmount: %s BDT\nMethod: %s\nAddress: %s",
		req.ID, userID, points, req.AmountTaka.StringFixed(2), method, address,
	))

	return req, newBalance, nil
}

// Resolve transitions a Pending request to Paid or Rejected. The request
// row is locked for the duration, so resolving the same request twice
// fails with ErrAlreadyProcessed and changes nothing. A rejection credits
// the reserved points back in the same transaction; an approval leaves
// the balance debited (payment happens off-system). The user notification
// goes out only after commit.
func (s *WithdrawalService) Resolve(ctx context.Context, requestID int64, decision Decision) (*model.WithdrawalRequest, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, ErrInvalidDecision
	}

	var resolved *model.WithdrawalRequest
	err := s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		req, err := s.withdrawalRepo.LockForUpdateTx(ctx, tx, requestID)
		if err != nil {
			if errors.Is(err, repository.ErrRequestNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if req.IsTerminal() {
			return ErrAlreadyProcessed
		}

		status := model.WithdrawStatusPaid
		if decision == DecisionReject {
			status = model.WithdrawStatusRejected
		}

		processedAt := s.now()
		if err := s.withdrawalRepo.SetStatusTx(ctx, tx, requestID, status, processedAt); err != nil {
			return err
		}

		if decision == DecisionReject {
			if _, err := s.userRepo.AdjustBalanceTx(ctx, tx, req.UserID, req.PointsRequested); err != nil {
				return fmt.Errorf("failed to return reserved points: %w", err)
			}
		}

		req.Status = status
		req.ProcessedAt = &processedAt
		resolved = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("request_id", requestID).
		Str("status", resolved.Status).
		Msg("Withdrawal resolved")

	switch resolved.Status {
	case model.WithdrawStatusPaid:
		s.notifier.NotifyUser(ctx, resolved.UserID, fmt.Sprintf(
			"✅ Your withdrawal request #%d for %s BDT has been paid.",
			resolved.ID, resolved.AmountTaka.StringFixed(2),
		))
	case model.WithdrawStatusRejected:
		s.notifier.NotifyUser(ctx, resolved.UserID, fmt.Sprintf(
			"❌ Your withdrawal request #%d was rejected. %d points have been returned to your balance.",
			resolved.ID, resolved.PointsRequested,
		))
	}

	return resolved, nil
}

// ListPending returns all Pending requests, oldest first.
func (s *WithdrawalService) ListPending(ctx context.Context) ([]*model.WithdrawalRequest, error) {
	return s.withdrawalRepo.ListPending(ctx)
}

// History returns a user's recent withdrawal requests.
func (s *WithdrawalService) History(ctx context.Context, userID int64, limit int) ([]*model.WithdrawalRequest, error) {
	return s.withdrawalRepo.ListByUser(ctx, userID, limit)
}

// Stats returns withdrawal counts for the admin dashboard.
func (s *WithdrawalService) Stats(ctx context.Context) (pending int64, total int64, err error) {
	return s.withdrawalRepo.Stats(ctx)
}

// Config exposes the withdrawal limits for display at the edges.
func (s *WithdrawalService) Config() config.WithdrawConfig {
	return s.cfg
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
