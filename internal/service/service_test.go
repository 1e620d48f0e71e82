// Package service provides business logic implementations.
// Integration tests use testcontainers-go to spin up a PostgreSQL container.
package service

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"earnquick-bot/internal/config"
	"earnquick-bot/internal/model"
	"earnquick-bot/internal/pkg/db"
	"earnquick-bot/internal/repository"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// testEnv bundles the pool and repositories backing a test database.
type testEnv struct {
	pool           *db.Pool
	userRepo       *repository.UserRepository
	adViewRepo     *repository.AdViewRepository
	withdrawalRepo *repository.WithdrawalRepository
}

// setupTestEnv creates a PostgreSQL container with the schema applied.
// Skips the test if Docker is not available.
func setupTestEnv(t *testing.T) (*testEnv, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pgxPool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	err = repository.RunMigrations(ctx, pgxPool)
	require.NoError(t, err)

	env := &testEnv{
		pool:           &db.Pool{Pool: pgxPool},
		userRepo:       repository.NewUserRepository(pgxPool),
		adViewRepo:     repository.NewAdViewRepository(pgxPool),
		withdrawalRepo: repository.NewWithdrawalRepository(pgxPool),
	}

	cleanup := func() {
		pgxPool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return env, cleanup
}

// testWithdrawConfig mirrors the production defaults.
func testWithdrawConfig() config.WithdrawConfig {
	return config.WithdrawConfig{
		MinPoints:     10000,
		MaxPoints:     100000,
		DailyLimit:    3,
		StartHour:     6,
		EndHour:       20,
		PointsPerTaka: 250,
	}
}

// insideWindow is noon, comfortably inside the 6-20 window.
func insideWindow() time.Time {
	return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
}

// setBalance force-sets a user's balance, bypassing validation.
func setBalance(t *testing.T, env *testEnv, userID, balance int64) {
	t.Helper()
	_, err := env.pool.Exec(context.Background(),
		`UPDATE users SET balance = $2 WHERE telegram_id = $1`, userID, balance)
	require.NoError(t, err)
}

func getBalance(t *testing.T, env *testEnv, userID int64) int64 {
	t.Helper()
	user, err := env.userRepo.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return user.Balance
}

// ============================================================================
// AccountService Tests
// ============================================================================

func TestAccountService_RegisterOrCheck_NewUser(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	svc := NewAccountService(env.pool, env.userRepo, 250, 0)
	ctx := context.Background()

	reg, err := svc.RegisterOrCheck(ctx, 12345, "alice", "")
	require.NoError(t, err)
	assert.True(t, reg.IsNew)
	assert.False(t, reg.BonusGranted)
	assert.Nil(t, reg.SponsorID)
	assert.Equal(t, int64(0), reg.User.Balance)
	assert.Regexp(t, `^r_[A-Za-z0-9]{8}$`, reg.User.ReferralCode)
}

func TestAccountService_RegisterOrCheck_Idempotent(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	svc := NewAccountService(env.pool, env.userRepo, 250, 0)
	ctx := context.Background()

	first, err := svc.RegisterOrCheck(ctx, 12345, "alice", "")
	require.NoError(t, err)
	require.True(t, first.IsNew)

	second, err := svc.RegisterOrCheck(ctx, 12345, "alice", "")
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.User.ReferralCode, second.User.ReferralCode)
	assert.Equal(t, first.User.Balance, second.User.Balance)
}

func TestAccountService_RegisterOrCheck_SponsorBonusOnce(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	svc := NewAccountService(env.pool, env.userRepo, 250, 0)
	ctx := context.Background()

	sponsor, err := svc.RegisterOrCheck(ctx, 1, "sponsor", "")
	require.NoError(t, err)

	// Referred signup credits the sponsor exactly once
	reg, err := svc.RegisterOrCheck(ctx, 2, "referred", sponsor.User.ReferralCode)
	require.NoError(t, err)
	assert.True(t, reg.IsNew)
	assert.True(t, reg.BonusGranted)
	require.NotNil(t, reg.SponsorID)
	assert.Equal(t, int64(1), *reg.SponsorID)
	assert.Equal(t, int64(250), getBalance(t, env, 1))

	// Retrying the same registration grants no second bonus
	again, err := svc.RegisterOrCheck(ctx, 2, "referred", sponsor.User.ReferralCode)
	require.NoError(t, err)
	assert.False(t, again.IsNew)
	assert.Equal(t, int64(250), getBalance(t, env, 1))

	count, err := svc.CountReferrals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAccountService_RegisterOrCheck_UnknownCodeNeverBlocks(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	svc := NewAccountService(env.pool, env.userRepo, 250, 0)
	ctx := context.Background()

	reg, err := svc.RegisterOrCheck(ctx, 12345, "alice", "r_noexist1")
	require.NoError(t, err)
	assert.True(t, reg.IsNew)
	assert.False(t, reg.BonusGranted)
	assert.Nil(t, reg.SponsorID)
}

func TestAccountService_SelfReferralGrantsNoBonus(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	svc := NewAccountService(env.pool, env.userRepo, 250, 0)
	ctx := context.Background()

	reg, err := svc.RegisterOrCheck(ctx, 1, "alice", "")
	require.NoError(t, err)
	ownCode := reg.User.ReferralCode

	// Re-registering with one's own code succeeds and grants nothing
	again, err := svc.RegisterOrCheck(ctx, 1, "alice", ownCode)
	require.NoError(t, err)
	assert.False(t, again.IsNew)
	assert.Equal(t, int64(0), getBalance(t, env, 1))

	// The race path: the user's own row appeared between the existence
	// check and the insert, so their code resolves to themselves. The
	// bonus is skipped and the duplicate insert surfaces for the caller
	// to re-read; no points move.
	_, err = svc.createUser(ctx, 1, "alice", GenerateReferralCode(), ownCode)
	assert.ErrorIs(t, err, repository.ErrDuplicateUser)
	assert.Equal(t, int64(0), getBalance(t, env, 1))

	count, err := svc.CountReferrals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAccountService_WelcomeBonus(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	svc := NewAccountService(env.pool, env.userRepo, 250, 100)
	ctx := context.Background()

	sponsor, err := svc.RegisterOrCheck(ctx, 1, "sponsor", "")
	require.NoError(t, err)
	// Unreferred signup gets no welcome bonus
	assert.Equal(t, int64(0), sponsor.User.Balance)

	reg, err := svc.RegisterOrCheck(ctx, 2, "referred", sponsor.User.ReferralCode)
	require.NoError(t, err)
	assert.Equal(t, int64(100), reg.User.Balance)
	assert.Equal(t, int64(250), getBalance(t, env, 1))
}

func TestAccountService_SeedAdmins(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	svc := NewAccountService(env.pool, env.userRepo, 250, 0)
	ctx := context.Background()

	_, err := svc.RegisterOrCheck(ctx, 1, "admin", "")
	require.NoError(t, err)

	// Unknown IDs are skipped without error
	svc.SeedAdmins(ctx, []int64{1, 99999})

	isAdmin, err := svc.IsAdmin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, isAdmin)
}

// ============================================================================
// RewardService Tests
// ============================================================================

func TestRewardService_CreditAdView(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	accounts := NewAccountService(env.pool, env.userRepo, 250, 0)
	rewards := NewRewardService(env.pool, env.userRepo, env.adViewRepo)
	ctx := context.Background()

	_, err := accounts.RegisterOrCheck(ctx, 12345, "alice", "")
	require.NoError(t, err)

	credited, balance, err := rewards.CreditAdView(ctx, 12345, "tx1", 5)
	require.NoError(t, err)
	assert.True(t, credited)
	assert.Equal(t, int64(5), balance)

	// Webhook redelivery of the same transaction id changes nothing
	credited, balance, err = rewards.CreditAdView(ctx, 12345, "tx1", 5)
	require.NoError(t, err)
	assert.False(t, credited)
	assert.Equal(t, int64(5), balance)
	assert.Equal(t, int64(5), getBalance(t, env, 12345))

	// A distinct transaction id credits again
	credited, balance, err = rewards.CreditAdView(ctx, 12345, "tx2", 5)
	require.NoError(t, err)
	assert.True(t, credited)
	assert.Equal(t, int64(10), balance)
}

func TestRewardService_CreditAdView_Validation(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	rewards := NewRewardService(env.pool, env.userRepo, env.adViewRepo)
	ctx := context.Background()

	_, _, err := rewards.CreditAdView(ctx, 12345, "", 5)
	assert.ErrorIs(t, err, ErrInvalidTxnID)

	_, _, err = rewards.CreditAdView(ctx, 12345, "tx1", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = rewards.CreditAdView(ctx, 12345, "tx1", 5)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

// ============================================================================
// WithdrawalService Tests
// ============================================================================

func newWithdrawalEnv(t *testing.T, env *testEnv) (*AccountService, *WithdrawalService) {
	t.Helper()
	accounts := NewAccountService(env.pool, env.userRepo, 250, 0)
	withdrawals := NewWithdrawalService(
		env.pool, env.userRepo, env.withdrawalRepo, NopNotifier{}, testWithdrawConfig(),
	).WithClock(insideWindow)
	return accounts, withdrawals
}

func TestWithdrawalService_RequestAndReject_ConservesPoints(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	accounts, withdrawals := newWithdrawalEnv(t, env)
	ctx := context.Background()

	_, err := accounts.RegisterOrCheck(ctx, 12345, "alice", "")
	require.NoError(t, err)
	setBalance(t, env, 12345, 20000)

	req, balance, err := withdrawals.Request(ctx, 12345, 15000, "bkash", "01700000000")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)
	assert.Equal(t, model.WithdrawStatusPending, req.Status)
	// 15000 points at 250 points/taka
	assert.True(t, req.AmountTaka.Equal(decimal.NewFromInt(60)))

	// Rejection returns the reserved points
	resolved, err := withdrawals.Resolve(ctx, req.ID, DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawStatusRejected, resolved.Status)
	require.NotNil(t, resolved.ProcessedAt)
	assert.Equal(t, int64(20000), getBalance(t, env, 12345))
}

func TestWithdrawalService_Approve_KeepsDebit(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	accounts, withdrawals := newWithdrawalEnv(t, env)
	ctx := context.Background()

	_, err := accounts.RegisterOrCheck(ctx, 12345, "alice", "")
	require.NoError(t, err)
	setBalance(t, env, 12345, 20000)

	req, _, err := withdrawals.Request(ctx, 12345, 10000, "bkash", "01700000000")
	require.NoError(t, err)

	resolved, err := withdrawals.Resolve(ctx, req.ID, DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawStatusPaid, resolved.Status)
	assert.Equal(t, int64(10000), getBalance(t, env, 12345))
}

func TestWithdrawalService_Resolve_Twice(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	accounts, withdrawals := newWithdrawalEnv(t, env)
	ctx := context.Background()

	_, err := accounts.RegisterOrCheck(ctx, 12345, "alice", "")
	require.NoError(t, err)
	setBalance(t, env, 12345, 20000)

	req, _, err := withdrawals.Request(ctx, 12345, 15000, "bkash", "01700000000")
	require.NoError(t, err)

	_, err = withdrawals.Resolve(ctx, req.ID, DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), getBalance(t, env, 12345))

	// A second rejection must not credit the points again
	_, err = withdrawals.Resolve(ctx, req.ID, DecisionReject)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, int64(20000), getBalance(t, env, 12345))

	// Nor may a terminal request flip to Paid
	_, err = withdrawals.Resolve(ctx, req.ID, DecisionApprove)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	got, err := env.withdrawalRepo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawStatusRejected, got.Status)
}

func TestWithdrawalService_Resolve_Errors(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	_, withdrawals := newWithdrawalEnv(t, env)
	ctx := context.Background()

	_, err := withdrawals.Resolve(ctx, 99999, DecisionApprove)
	assert.ErrorIs(t, err, ErrRequestNotFound)

	_, err = withdrawals.Resolve(ctx, 1, Decision("maybe"))
	assert.ErrorIs(t, err, ErrInvalidDecision)
}

func TestWithdrawalService_Request_Eligibility(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	accounts, withdrawals := newWithdrawalEnv(t, env)
	ctx := context.Background()

	_, err := accounts.RegisterOrCheck(ctx, 12345, "alice", "")
	require.NoError(t, err)
	setBalance(t, env, 12345, 20000)

	// Below minimum
	_, _, err = withdrawals.Request(ctx, 12345, 5000, "bkash", "01700000000")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// Above maximum
	_, _, err = withdrawals.Request(ctx, 12345, 200000, "bkash", "01700000000")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// Missing payment details
	_, _, err = withdrawals.Request(ctx, 12345, 10000, "", "01700000000")
	assert.ErrorIs(t, err, ErrInvalidPayment)
	_, _, err = withdrawals.Request(ctx, 12345, 10000, "bkash", "")
	assert.ErrorIs(t, err, ErrInvalidPayment)

	// Insufficient balance
	_, _, err = withdrawals.Request(ctx, 12345, 25000, "bkash", "01700000000")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// Unknown user
	_, _, err = withdrawals.Request(ctx, 99999, 10000, "bkash", "01700000000")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Nothing above left a side effect
	assert.Equal(t, int64(20000), getBalance(t, env, 12345))
	_, total, err := env.withdrawalRepo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestWithdrawalService_Request_OutsideWindow(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	accounts := NewAccountService(env.pool, env.userRepo, 250, 0)
	withdrawals := NewWithdrawalService(
		env.pool, env.userRepo, env.withdrawalRepo, NopNotifier{}, testWithdrawConfig(),
	).WithClock(func() time.Time {
		return time.Date(2026, 9, 1, 22, 0, 0, 0, time.UTC)
	})
	ctx := context.Background()

	_, err := accounts.RegisterOrCheck(ctx, 12345, "alice", "")
	require.NoError(t, err)
	setBalance(t, env, 12345, 20000)

	_, _, err = withdrawals.Request(ctx, 12345, 10000, "bkash", "01700000000")
	assert.ErrorIs(t, err, ErrOutsideWithdrawWindow)

	// A closed window takes precedence over every other eligibility
	// failure: a too-small amount outside the window still reports the
	// window error.
	_, _, err = withdrawals.Request(ctx, 12345, 5000, "bkash", "01700000000")
	assert.ErrorIs(t, err, ErrOutsideWithdrawWindow)
	_, _, err = withdrawals.Request(ctx, 12345, 10000, "", "")
	assert.ErrorIs(t, err, ErrOutsideWithdrawWindow)

	assert.Equal(t, int64(20000), getBalance(t, env, 12345))
}

func TestWithdrawalService_DailyLimit(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	accounts := NewAccountService(env.pool, env.userRepo, 250, 0)

	cfg := testWithdrawConfig()
	cfg.DailyLimit = 2

	day := insideWindow()
	clock := func() time.Time { return day }
	withdrawals := NewWithdrawalService(
		env.pool, env.userRepo, env.withdrawalRepo, NopNotifier{}, cfg,
	).WithClock(func() time.Time { return clock() })
	ctx := context.Background()

	_, err := accounts.RegisterOrCheck(ctx, 12345, "alice", "")
	require.NoError(t, err)
	setBalance(t, env, 12345, 100000)

	_, _, err = withdrawals.Request(ctx, 12345, 10000, "bkash", "01700000000")
	require.NoError(t, err)
	_, _, err = withdrawals.Request(ctx, 12345, 10000, "bkash", "01700000000")
	require.NoError(t, err)

	// Third request the same day hits the limit
	_, _, err = withdrawals.Request(ctx, 12345, 10000, "bkash", "01700000000")
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)

	// The counter resets at the day boundary
	clock = func() time.Time { return day.AddDate(0, 0, 1) }
	_, _, err = withdrawals.Request(ctx, 12345, 10000, "bkash", "01700000000")
	require.NoError(t, err)
}

// ============================================================================
// Tx rollback behavior
// ============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	accounts := NewAccountService(env.pool, env.userRepo, 250, 0)
	ctx := context.Background()

	_, err := accounts.RegisterOrCheck(ctx, 12345, "alice", "")
	require.NoError(t, err)
	setBalance(t, env, 12345, 1000)

	wantErr := assert.AnError
	err = env.pool.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := env.userRepo.AdjustBalanceTx(ctx, tx, 12345, 500); err != nil {
			return err
		}
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, int64(1000), getBalance(t, env, 12345))
}
