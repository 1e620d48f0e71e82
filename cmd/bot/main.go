// Package main is the entry point for the EarnQuick rewards bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"earnquick-bot/internal/api"
	"earnquick-bot/internal/bot"
	"earnquick-bot/internal/config"
	"earnquick-bot/internal/pkg/db"
	"earnquick-bot/internal/pkg/lock"
	"earnquick-bot/internal/repository"
	"earnquick-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := repository.RunMigrations(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	adViewRepo := repository.NewAdViewRepository(dbPool.Pool)
	withdrawalRepo := repository.NewWithdrawalRepository(dbPool.Pool)

	// Initialize services
	accountService := service.NewAccountService(
		dbPool,
		userRepo,
		cfg.Referral.SponsorBonus,
		cfg.Referral.WelcomeBonus,
	)

	rewardService := service.NewRewardService(dbPool, userRepo, adViewRepo)

	// The Telegram notifier needs a live bot, which in turn needs the
	// withdrawal service. Start with a no-op sink and swap it in below.
	withdrawalService := service.NewWithdrawalService(
		dbPool,
		userRepo,
		withdrawalRepo,
		service.NopNotifier{},
		cfg.Withdraw,
	)

	// Flag configured admins in the database so the HTTP admin endpoints
	// recognize them.
	accountService.SeedAdmins(ctx, cfg.Admin.IDs)

	// Initialize user lock
	userLock := lock.NewUserLock()

	// Initialize bot
	telegramBot, err := bot.New(&bot.Dependencies{
		Config:            cfg,
		AccountService:    accountService,
		WithdrawalService: withdrawalService,
		UserLock:          userLock,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	withdrawalService.SetNotifier(bot.NewTelegramNotifier(telegramBot.Telebot(), cfg.Admin.IDs))

	// Initialize HTTP API
	apiHandler := api.NewHandler(
		dbPool,
		accountService,
		rewardService,
		withdrawalService,
		userLock,
		cfg.Reward.AdViewPoints,
	)
	apiServer := api.NewServer(&cfg.Server, apiHandler)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	go apiServer.Start()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP API shutdown failed")
	}
	telegramBot.Stop()
	log.Info().Msg("Stopped gracefully")
}
