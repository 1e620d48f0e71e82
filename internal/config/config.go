// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. It is loaded once at
// process start and treated as read-only afterwards.
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Reward   RewardConfig   `mapstructure:"reward"`
	Referral ReferralConfig `mapstructure:"referral"`
	Withdraw WithdrawConfig `mapstructure:"withdraw"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration. The listed Telegram IDs are
// flagged as admins in the database at startup and receive withdrawal
// notifications.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// RewardConfig holds ad-view reward configuration.
type RewardConfig struct {
	AdViewPoints int64 `mapstructure:"ad_view_points"`
}

// ReferralConfig holds referral bonus configuration.
// SponsorBonus goes to the referring user, WelcomeBonus to the new user.
type ReferralConfig struct {
	SponsorBonus int64 `mapstructure:"sponsor_bonus"`
	WelcomeBonus int64 `mapstructure:"welcome_bonus"`
}

// WithdrawConfig holds withdrawal eligibility configuration.
// StartHour/EndHour bound the daily window in server-local hours
// (requests are accepted when StartHour <= hour < EndHour).
type WithdrawConfig struct {
	MinPoints     int64 `mapstructure:"min_points"`
	MaxPoints     int64 `mapstructure:"max_points"`
	DailyLimit    int   `mapstructure:"daily_limit"`
	StartHour     int   `mapstructure:"start_hour"`
	EndHour       int   `mapstructure:"end_hour"`
	PointsPerTaka int64 `mapstructure:"points_per_taka"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the given directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. BOT_TOKEN, DATABASE_HOST, WITHDRAW_MIN_POINTS.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// HTTP server defaults
	v.SetDefault("server.port", 10000)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "earnquick")
	v.SetDefault("database.name", "earnquick")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Reward defaults
	v.SetDefault("reward.ad_view_points", 5)

	// Referral defaults
	v.SetDefault("referral.sponsor_bonus", 250)
	v.SetDefault("referral.welcome_bonus", 0)

	// Withdrawal defaults: 10,000 points = 40 BDT at 250 points/taka
	v.SetDefault("withdraw.min_points", 10000)
	v.SetDefault("withdraw.max_points", 100000)
	v.SetDefault("withdraw.daily_limit", 3)
	v.SetDefault("withdraw.start_hour", 6)
	v.SetDefault("withdraw.end_hour", 20)
	v.SetDefault("withdraw.points_per_taka", 250)
}

// Validate checks invariants between configured values.
func (c *Config) Validate() error {
	w := c.Withdraw
	if w.MinPoints <= 0 || w.MaxPoints < w.MinPoints {
		return fmt.Errorf("invalid withdraw bounds: min=%d max=%d", w.MinPoints, w.MaxPoints)
	}
	if w.DailyLimit <= 0 {
		return fmt.Errorf("invalid withdraw daily limit: %d", w.DailyLimit)
	}
	if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 1 || w.EndHour > 24 || w.StartHour >= w.EndHour {
		return fmt.Errorf("invalid withdraw window: %d-%d", w.StartHour, w.EndHour)
	}
	if w.PointsPerTaka <= 0 {
		return fmt.Errorf("invalid exchange rate: %d points per taka", w.PointsPerTaka)
	}
	if c.Reward.AdViewPoints <= 0 {
		return fmt.Errorf("invalid ad view reward: %d", c.Reward.AdViewPoints)
	}
	return nil
}

// IsAdmin checks if a user ID is in the configured admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}
