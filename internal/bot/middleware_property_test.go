// Package bot provides middleware for the Telegram bot.
// Property-based tests for the admin permission check.
package bot

import (
	"testing"

	"pgregory.net/rapid"

	"earnquick-bot/internal/config"
)

// TestAdminPermissionCheckProperty tests the admin permission check logic.
// For any admin command execution:
// - If user_id NOT IN admin_ids, the command SHALL be refused
// - If user_id IN admin_ids, the command SHALL execute
func TestAdminPermissionCheckProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numAdmins := rapid.IntRange(1, 10).Draw(t, "numAdmins")
		adminIDs := make([]int64, numAdmins)
		for i := 0; i < numAdmins; i++ {
			adminIDs[i] = rapid.Int64Range(1, 1000000000).Draw(t, "adminID")
		}

		cfg := &config.Config{
			Admin: config.AdminConfig{
				IDs: adminIDs,
			},
		}

		userID := rapid.Int64Range(1, 1000000000).Draw(t, "userID")

		isAdmin := cfg.IsAdmin(userID)

		expectedIsAdmin := false
		for _, id := range adminIDs {
			if id == userID {
				expectedIsAdmin = true
				break
			}
		}

		if isAdmin != expectedIsAdmin {
			t.Fatalf("Admin check mismatch: userID=%d, adminIDs=%v, expected=%v, got=%v",
				userID, adminIDs, expectedIsAdmin, isAdmin)
		}
	})
}

// TestAdminPermissionCheckWithKnownAdminProperty tests that every
// configured admin is always recognized.
func TestAdminPermissionCheckWithKnownAdminProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numAdmins := rapid.IntRange(1, 10).Draw(t, "numAdmins")
		adminIDs := make([]int64, numAdmins)
		for i := 0; i < numAdmins; i++ {
			adminIDs[i] = rapid.Int64Range(1, 1000000000).Draw(t, "adminID")
		}

		cfg := &config.Config{
			Admin: config.AdminConfig{
				IDs: adminIDs,
			},
		}

		adminIndex := rapid.IntRange(0, numAdmins-1).Draw(t, "adminIndex")
		knownAdminID := adminIDs[adminIndex]

		if !cfg.IsAdmin(knownAdminID) {
			t.Fatalf("Known admin ID %d should be recognized as admin, adminIDs=%v", knownAdminID, adminIDs)
		}
	})
}

// TestEmptyAdminListRefusesEveryone tests that with no configured
// admins, nobody passes the check.
func TestEmptyAdminListRefusesEveryone(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := &config.Config{}

		userID := rapid.Int64Range(1, 1000000000).Draw(t, "userID")
		if cfg.IsAdmin(userID) {
			t.Fatalf("With no configured admins, user %d should not pass the admin check", userID)
		}
	})
}
