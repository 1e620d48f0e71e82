package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"earnquick-bot/internal/service"
)

// AdminHandler handles admin-only withdrawal management commands.
// Admin access is enforced by the bot's admin middleware group.
type AdminHandler struct {
	withdrawalService *service.WithdrawalService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(withdrawalService *service.WithdrawalService) *AdminHandler {
	return &AdminHandler{withdrawalService: withdrawalService}
}

// HandlePending handles /pending: lists all pending withdrawal requests,
// oldest first.
func (h *AdminHandler) HandlePending(c tele.Context) error {
	ctx := context.Background()

	requests, err := h.withdrawalService.ListPending(ctx)
	if err != nil {
		return c.Reply("❌ Failed to load pending withdrawals.")
	}

	if len(requests) == 0 {
		return c.Reply("📭 No pending withdrawal requests.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Pending withdrawals (%d)\n", len(requests))
	b.WriteString("━━━━━━━━━━━━━━━\n")
	for _, req := range requests {
		fmt.Fprintf(&b, "#%d @%s - %d pts (%s BDT) via %s %s\n",
			req.ID, req.Username, req.PointsRequested,
			req.AmountTaka.StringFixed(2), req.PaymentMethod, req.PaymentAddress)
	}
	b.WriteString("━━━━━━━━━━━━━━━\n")
	b.WriteString("Use /approve <id> or /reject <id>")

	return c.Reply(b.String())
}

// HandleApprove handles /approve <id>.
func (h *AdminHandler) HandleApprove(c tele.Context) error {
	return h.resolve(c, service.DecisionApprove)
}

// HandleReject handles /reject <id>.
func (h *AdminHandler) HandleReject(c tele.Context) error {
	return h.resolve(c, service.DecisionReject)
}

func (h *AdminHandler) resolve(c tele.Context, decision service.Decision) error {
	ctx := context.Background()

	id, err := strconv.ParseInt(strings.TrimSpace(c.Message().Payload), 10, 64)
	if err != nil {
		return c.Reply(fmt.Sprintf("Usage: /%s <request-id>", strings.ToLower(string(decision))))
	}

	req, err := h.withdrawalService.Resolve(ctx, id, decision)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRequestNotFound):
			return c.Reply(fmt.Sprintf("❌ Request #%d not found.", id))
		case errors.Is(err, service.ErrAlreadyProcessed):
			return c.Reply(fmt.Sprintf("❌ Request #%d has already been processed.", id))
		default:
			return c.Reply("❌ Failed to process the request, please retry.")
		}
	}

	return c.Reply(fmt.Sprintf("✅ Request #%d marked as %s.", req.ID, req.Status))
}
