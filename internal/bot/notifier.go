package bot

import (
	"context"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// TelegramNotifier delivers ledger notifications over Telegram.
// Delivery failures are logged and swallowed: a dead chat or a blocked
// bot must never fail a committed ledger operation.
type TelegramNotifier struct {
	bot      *tele.Bot
	adminIDs []int64
}

// NewTelegramNotifier creates a notifier that messages users directly
// and fans out admin alerts to every configured admin ID.
func NewTelegramNotifier(bot *tele.Bot, adminIDs []int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, adminIDs: adminIDs}
}

// NotifyUser sends a message to a single user, best-effort.
func (n *TelegramNotifier) NotifyUser(ctx context.Context, userID int64, text string) {
	if _, err := n.bot.Send(tele.ChatID(userID), text); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to deliver user notification")
	}
}

// NotifyAdmins sends a message to every configured admin, best-effort.
func (n *TelegramNotifier) NotifyAdmins(ctx context.Context, text string) {
	for _, id := range n.adminIDs {
		if _, err := n.bot.Send(tele.ChatID(id), text); err != nil {
			log.Warn().Err(err).Int64("admin_id", id).Msg("Failed to deliver admin notification")
		}
	}
}
