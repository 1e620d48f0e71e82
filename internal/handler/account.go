// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"earnquick-bot/internal/service"
)

// AccountHandler handles registration and account commands.
type AccountHandler struct {
	accountService *service.AccountService
	botUsername    string
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService, botUsername string) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		botUsername:    botUsername,
	}
}

// displayName prefers the Telegram username, falling back to first name.
func displayName(sender *tele.User) string {
	if sender.Username != "" {
		return sender.Username
	}
	return sender.FirstName
}

// inviteLink builds the deep link that carries a referral code.
func (h *AccountHandler) inviteLink(code string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", h.botUsername, code)
}

// HandleStart handles /start. The command payload, when present, is a
// referral code; registration is idempotent so repeated /start taps are
// harmless.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	reg, err := h.accountService.RegisterOrCheck(ctx, sender.ID, displayName(sender), c.Message().Payload)
	if err != nil {
		return c.Reply("❌ Registration failed, please try again later.")
	}

	if reg.IsNew {
		greeting := fmt.Sprintf(
			"🎉 Welcome @%s!\n\n"+
				"Your account is ready. Balance: %d points\n\n"+
				"Commands:\n"+
				"/balance - check your points\n"+
				"/invite - your referral link\n"+
				"/withdraw <points> <method> <address> - cash out",
			displayName(sender), reg.User.Balance,
		)
		if reg.BonusGranted {
			greeting += "\n\n🤝 You joined through a referral - your sponsor has been rewarded!"
		}
		return c.Reply(greeting)
	}

	return c.Reply(fmt.Sprintf(
		"👋 Welcome back @%s!\n\nBalance: %d points\nReferrals: %d",
		displayName(sender), reg.User.Balance, reg.ReferralCount,
	))
}

// HandleBalance handles /balance.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	reg, err := h.accountService.RegisterOrCheck(ctx, sender.ID, displayName(sender), "")
	if err != nil {
		return c.Reply("❌ Could not fetch your balance, please try again later.")
	}

	return c.Reply(fmt.Sprintf("💰 Balance: %d points", reg.User.Balance))
}

// HandleInvite handles /invite: shows the user's referral code, link and
// how many users they have referred.
func (h *AccountHandler) HandleInvite(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	reg, err := h.accountService.RegisterOrCheck(ctx, sender.ID, displayName(sender), "")
	if err != nil {
		return c.Reply("❌ Could not fetch your referral info, please try again later.")
	}

	return c.Reply(fmt.Sprintf(
		"🔗 Your referral code: %s\n"+
			"Link: %s\n"+
			"Referrals so far: %d",
		reg.User.ReferralCode, h.inviteLink(reg.User.ReferralCode), reg.ReferralCount,
	))
}
