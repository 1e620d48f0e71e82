package service

import "context"

// Notifier delivers out-of-band messages to users and admins. Delivery is
// best-effort and fire-and-forget: implementations log failures and never
// return them, so a notification can never fail or roll back a committed
// ledger operation. Services call it strictly after commit.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, text string)
	NotifyAdmins(ctx context.Context, text string)
}

// NopNotifier discards all notifications. Used in tests and as a default
// until the bot is wired up.
type NopNotifier struct{}

// NotifyUser implements Notifier.
func (NopNotifier) NotifyUser(ctx context.Context, userID int64, text string) {}

// NotifyAdmins implements Notifier.
func (NopNotifier) NotifyAdmins(ctx context.Context, text string) {}
