package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"earnquick-bot/internal/pkg/lock"
	"earnquick-bot/internal/service"
)

// WithdrawHandler handles the /withdraw command.
type WithdrawHandler struct {
	accountService    *service.AccountService
	withdrawalService *service.WithdrawalService
	userLock          *lock.UserLock
}

// NewWithdrawHandler creates a new WithdrawHandler.
func NewWithdrawHandler(accountService *service.AccountService, withdrawalService *service.WithdrawalService, userLock *lock.UserLock) *WithdrawHandler {
	return &WithdrawHandler{
		accountService:    accountService,
		withdrawalService: withdrawalService,
		userLock:          userLock,
	}
}

// HandleWithdraw handles /withdraw <points> <method> <address>.
// A per-user TryLock turns an accidental double-tap into a polite
// rejection instead of a second request - submissions are intentionally
// not idempotent at the ledger level.
func (h *WithdrawHandler) HandleWithdraw(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := strings.Fields(c.Message().Payload)
	if len(args) < 3 {
		cfg := h.withdrawalService.Config()
		return c.Reply(fmt.Sprintf(
			"Usage: /withdraw <points> <method> <address>\n"+
				"Example: /withdraw %d bkash 01700000000\n"+
				"Limits: %d-%d points, %d requests per day, %02d:00-%02d:00.",
			cfg.MinPoints, cfg.MinPoints, cfg.MaxPoints, cfg.DailyLimit, cfg.StartHour, cfg.EndHour,
		))
	}

	points, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("❌ Points must be a number.")
	}
	method, address := args[1], args[2]

	if !h.userLock.TryLock(sender.ID) {
		return c.Reply("⏳ Your previous request is still being processed.")
	}
	defer h.userLock.Unlock(sender.ID)

	// Make sure the account exists before touching the ledger.
	if _, err := h.accountService.RegisterOrCheck(ctx, sender.ID, displayName(sender), ""); err != nil {
		return c.Reply("❌ Something went wrong, please try again later.")
	}

	req, newBalance, err := h.withdrawalService.Request(ctx, sender.ID, points, method, address)
	if err != nil {
		return c.Reply(withdrawErrorMessage(err, h.withdrawalService))
	}

	return c.Reply(fmt.Sprintf(
		"✅ Withdrawal request #%d submitted!\n"+
			"Points: %d (%s BDT)\n"+
			"Remaining balance: %d\n\n"+
			"You will be notified once it is processed.",
		req.ID, req.PointsRequested, req.AmountTaka.StringFixed(2), newBalance,
	))
}

// withdrawErrorMessage maps ledger errors to user-facing text, one
// message per eligibility case.
func withdrawErrorMessage(err error, ws *service.WithdrawalService) string {
	cfg := ws.Config()
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		return fmt.Sprintf("❌ Amount must be between %d and %d points.", cfg.MinPoints, cfg.MaxPoints)
	case errors.Is(err, service.ErrInvalidPayment):
		return "❌ Please provide a payment method and address."
	case errors.Is(err, service.ErrOutsideWithdrawWindow):
		return fmt.Sprintf("❌ Withdrawals are open %02d:00-%02d:00 server time. Currently closed.", cfg.StartHour, cfg.EndHour)
	case errors.Is(err, service.ErrInsufficientBalance):
		return "❌ You don't have enough points for this withdrawal."
	case errors.Is(err, service.ErrDailyLimitExceeded):
		return fmt.Sprintf("❌ You have reached the daily limit of %d withdrawals.", cfg.DailyLimit)
	default:
		return "❌ Something went wrong, please try again later."
	}
}
