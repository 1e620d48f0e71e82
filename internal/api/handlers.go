package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"earnquick-bot/internal/pkg/db"
	"earnquick-bot/internal/pkg/lock"
	"earnquick-bot/internal/service"
)

// Handler holds the ledger services behind the HTTP endpoints.
type Handler struct {
	pool              *db.Pool
	accountService    *service.AccountService
	rewardService     *service.RewardService
	withdrawalService *service.WithdrawalService
	userLock          *lock.UserLock
	adViewPoints      int64
}

// NewHandler creates a new Handler.
func NewHandler(
	pool *db.Pool,
	accountService *service.AccountService,
	rewardService *service.RewardService,
	withdrawalService *service.WithdrawalService,
	userLock *lock.UserLock,
	adViewPoints int64,
) *Handler {
	return &Handler{
		pool:              pool,
		accountService:    accountService,
		rewardService:     rewardService,
		withdrawalService: withdrawalService,
		userLock:          userLock,
		adViewPoints:      adViewPoints,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"reason":  reason,
		"message": message,
	})
}

// Health reports liveness and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.HealthCheck(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "db_unreachable", "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// monetagCallbackRequest is the ad network's S2S payload.
type monetagCallbackRequest struct {
	UserID        int64  `json:"user_id"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// MonetagCallback credits points for a verified ad view. Redelivered
// callbacks with the same transaction id report credited=false and leave
// the balance untouched.
func (h *Handler) MonetagCallback(w http.ResponseWriter, r *http.Request) {
	var req monetagCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.UserID == 0 || req.TransactionID == "" || req.Status != "success" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing fields or unsuccessful transaction")
		return
	}

	credited, newBalance, err := h.rewardService.CreditAdView(r.Context(), req.UserID, req.TransactionID, h.adViewPoints)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found", "unknown user")
			return
		}
		log.Error().Err(err).Str("txn_id", req.TransactionID).Msg("Ad view credit failed")
		writeError(w, http.StatusInternalServerError, "internal", "temporary failure, retry with the same transaction id")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"credited":    credited,
		"new_balance": newBalance,
	})
}

// UserData registers the user if needed and returns balance, referral
// info and admin flag.
func (h *Handler) UserData(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "id query parameter is required")
		return
	}
	username := r.URL.Query().Get("username")

	reg, err := h.accountService.RegisterOrCheck(r.Context(), id, username, r.URL.Query().Get("ref"))
	if err != nil {
		log.Error().Err(err).Int64("user_id", id).Msg("User data lookup failed")
		writeError(w, http.StatusInternalServerError, "internal", "temporary failure")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"balance":        reg.User.Balance,
		"referral_code":  reg.User.ReferralCode,
		"referral_count": reg.ReferralCount,
		"is_admin":       reg.User.IsAdmin,
	})
}

// withdrawRequest is the mini-app withdrawal payload.
type withdrawRequest struct {
	TelegramID     int64  `json:"telegramId"`
	Points         int64  `json:"points"`
	PaymentMethod  string `json:"paymentMethod"`
	PaymentAddress string `json:"paymentAddress"`
}

// Withdraw submits a withdrawal request. A per-user TryLock rejects
// concurrent duplicate submissions before they reach the ledger.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.TelegramID == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "telegramId is required")
		return
	}

	if !h.userLock.TryLock(req.TelegramID) {
		writeError(w, http.StatusConflict, "in_progress", "a previous request is still being processed")
		return
	}
	defer h.userLock.Unlock(req.TelegramID)

	created, newBalance, err := h.withdrawalService.Request(r.Context(), req.TelegramID, req.Points, req.PaymentMethod, req.PaymentAddress)
	if err != nil {
		status, reason := withdrawFailure(err)
		if reason == "internal" {
			log.Error().Err(err).Int64("user_id", req.TelegramID).Msg("Withdrawal request failed")
		}
		writeError(w, status, reason, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"request_id":  created.ID,
		"amount_taka": created.AmountTaka.StringFixed(2),
		"new_balance": newBalance,
	})
}

// withdrawFailure maps ledger errors to HTTP status and reason codes,
// one code per eligibility case so the UI can show distinct messages.
func withdrawFailure(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, service.ErrInvalidPayment):
		return http.StatusBadRequest, "invalid_payment"
	case errors.Is(err, service.ErrOutsideWithdrawWindow):
		return http.StatusBadRequest, "outside_window"
	case errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusBadRequest, "insufficient_balance"
	case errors.Is(err, service.ErrDailyLimitExceeded):
		return http.StatusBadRequest, "daily_limit_exceeded"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// RequireAdmin guards the admin endpoints with the users.is_admin flag.
// The admin id travels as the "id" query parameter, matching the
// original dashboard.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		if err != nil || id == 0 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "admin id is required")
			return
		}

		isAdmin, err := h.accountService.IsAdmin(r.Context(), id)
		if err != nil {
			if errors.Is(err, service.ErrUserNotFound) {
				writeError(w, http.StatusForbidden, "forbidden", "not an admin")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal", "temporary failure")
			return
		}
		if !isAdmin {
			log.Warn().Int64("user_id", id).Msg("Non-admin attempted admin endpoint")
			writeError(w, http.StatusForbidden, "forbidden", "not an admin")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withdrawalView is the admin-facing representation of a request.
type withdrawalView struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"user_id"`
	Username       string `json:"username"`
	Points         int64  `json:"points"`
	AmountTaka     string `json:"amount_taka"`
	PaymentMethod  string `json:"payment_method"`
	PaymentAddress string `json:"payment_address"`
	Status         string `json:"status"`
	RequestedAt    string `json:"requested_at"`
}

// PendingWithdrawals lists pending requests for the admin dashboard.
func (h *Handler) PendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	requests, err := h.withdrawalService.ListPending(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list pending withdrawals")
		writeError(w, http.StatusInternalServerError, "internal", "temporary failure")
		return
	}

	views := make([]withdrawalView, 0, len(requests))
	for _, req := range requests {
		views = append(views, withdrawalView{
			ID:             req.ID,
			UserID:         req.UserID,
			Username:       req.Username,
			Points:         req.PointsRequested,
			AmountTaka:     req.AmountTaka.StringFixed(2),
			PaymentMethod:  req.PaymentMethod,
			PaymentAddress: req.PaymentAddress,
			Status:         req.Status,
			RequestedAt:    req.RequestedAt.Format("2006-01-02 15:04:05"),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"withdrawals": views,
	})
}

// updateWithdrawalRequest is the admin resolve payload.
type updateWithdrawalRequest struct {
	RequestID int64  `json:"requestId"`
	Action    string `json:"action"`
}

// UpdateWithdrawal approves or rejects a pending request.
func (h *Handler) UpdateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req updateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	resolved, err := h.withdrawalService.Resolve(r.Context(), req.RequestID, service.Decision(req.Action))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDecision):
			writeError(w, http.StatusBadRequest, "bad_request", "action must be Approve or Reject")
		case errors.Is(err, service.ErrRequestNotFound):
			writeError(w, http.StatusNotFound, "request_not_found", "no such withdrawal request")
		case errors.Is(err, service.ErrAlreadyProcessed):
			writeError(w, http.StatusConflict, "already_processed", "request already processed")
		default:
			log.Error().Err(err).Int64("request_id", req.RequestID).Msg("Withdrawal resolution failed")
			writeError(w, http.StatusInternalServerError, "internal", "temporary failure")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"request_id": resolved.ID,
		"new_status": resolved.Status,
	})
}

// Stats returns aggregate counters for the admin dashboard.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	totalUsers, totalPoints, err := h.accountService.Stats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load user stats")
		writeError(w, http.StatusInternalServerError, "internal", "temporary failure")
		return
	}

	pending, total, err := h.withdrawalService.Stats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load withdrawal stats")
		writeError(w, http.StatusInternalServerError, "internal", "temporary failure")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"total_users":         totalUsers,
		"total_points":        totalPoints,
		"pending_withdrawals": pending,
		"total_withdrawals":   total,
	})
}
