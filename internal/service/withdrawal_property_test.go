// Package service provides business logic implementations.
// Property-based tests for the pure withdrawal and referral helpers.
package service

import (
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

// TestWithdrawWindowProperty tests the daily window check.
// For any hour h and window [start, end): the request SHALL be accepted
// exactly when start <= h < end.
func TestWithdrawWindowProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.IntRange(0, 22).Draw(t, "start")
		end := rapid.IntRange(start+1, 24).Draw(t, "end")
		hour := rapid.IntRange(0, 23).Draw(t, "hour")

		got := WithinWithdrawWindow(hour, start, end)
		want := hour >= start && hour < end

		if got != want {
			t.Fatalf("WithinWithdrawWindow(%d, %d, %d) = %v, want %v", hour, start, end, got, want)
		}
	})
}

// TestWithdrawWindowBoundaries pins the edges: the start hour is inside
// the window, the end hour is outside.
func TestWithdrawWindowBoundaries(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.IntRange(0, 22).Draw(t, "start")
		end := rapid.IntRange(start+1, 23).Draw(t, "end")

		if !WithinWithdrawWindow(start, start, end) {
			t.Fatalf("start hour %d should be inside window [%d, %d)", start, start, end)
		}
		if WithinWithdrawWindow(end, start, end) {
			t.Fatalf("end hour %d should be outside window [%d, %d)", end, start, end)
		}
	})
}

// TestPointsToTakaProperty tests the conversion invariants.
// For any positive points and rate:
// - the amount SHALL be non-negative
// - the amount SHALL be monotonic in points
// - a whole multiple of the rate SHALL convert exactly
func TestPointsToTakaProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rate := rapid.Int64Range(1, 10000).Draw(t, "rate")
		points := rapid.Int64Range(0, 10_000_000).Draw(t, "points")

		amount := PointsToTaka(points, rate)
		if amount.IsNegative() {
			t.Fatalf("PointsToTaka(%d, %d) = %s is negative", points, rate, amount)
		}

		// Monotonic: more points never convert to less taka
		more := PointsToTaka(points+rate, rate)
		if more.LessThan(amount) {
			t.Fatalf("conversion not monotonic: %d pts = %s but %d pts = %s",
				points, amount, points+rate, more)
		}

		// Whole multiples convert exactly
		taka := rapid.Int64Range(0, 100000).Draw(t, "taka")
		exact := PointsToTaka(taka*rate, rate)
		if !exact.Equal(decimal.NewFromInt(taka)) {
			t.Fatalf("PointsToTaka(%d, %d) = %s, want %d", taka*rate, rate, exact, taka)
		}
	})
}

// TestPointsToTakaKnownRates pins the production rate: 250 points per
// taka, so the 10000 point minimum pays 40 BDT.
func TestPointsToTakaKnownRates(t *testing.T) {
	cases := []struct {
		points int64
		want   string
	}{
		{10000, "40"},
		{15000, "60"},
		{100000, "400"},
		{125, "0.5"},
		{0, "0"},
	}
	for _, tc := range cases {
		got := PointsToTaka(tc.points, 250)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("PointsToTaka(%d, 250) = %s, want %s", tc.points, got, tc.want)
		}
	}
}

var referralCodePattern = regexp.MustCompile(`^r_[A-Za-z0-9]{8}$`)

// TestGenerateReferralCodeProperty tests the code format: a fixed prefix
// followed by 8 alphanumeric characters, every draw.
func TestGenerateReferralCodeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		code := GenerateReferralCode()
		if !referralCodePattern.MatchString(code) {
			t.Fatalf("referral code %q does not match expected format", code)
		}
	})
}
