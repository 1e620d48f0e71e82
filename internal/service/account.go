package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dchest/uniuri"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"earnquick-bot/internal/model"
	"earnquick-bot/internal/pkg/db"
	"earnquick-bot/internal/repository"
)

// referral code: "r_" + 8 alphanumeric characters.
const (
	referralCodePrefix = "r_"
	referralCodeLength = 8
	maxCodeAttempts    = 5
)

var referralAlphabet = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")

// GenerateReferralCode returns a fresh referral code candidate.
// Uniqueness is enforced by the database; collisions are retried.
func GenerateReferralCode() string {
	return referralCodePrefix + uniuri.NewLenChars(referralCodeLength, referralAlphabet)
}

// Registration is the result of a RegisterOrCheck call.
type Registration struct {
	User          *model.User
	IsNew         bool
	BonusGranted  bool
	SponsorID     *int64
	ReferralCount int
}

// AccountService handles user registration and the referral engine.
type AccountService struct {
	pool         *db.Pool
	userRepo     *repository.UserRepository
	sponsorBonus int64
	welcomeBonus int64
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(pool *db.Pool, userRepo *repository.UserRepository, sponsorBonus, welcomeBonus int64) *AccountService {
	return &AccountService{
		pool:         pool,
		userRepo:     userRepo,
		sponsorBonus: sponsorBonus,
		welcomeBonus: welcomeBonus,
	}
}

// RegisterOrCheck finds or creates a user. Registration is idempotent:
// calling it for an existing user only refreshes the username and never
// grants a second referral bonus. For a new user with a valid referral
// code, the user insert, the sponsor bonus, and the welcome bonus all
// happen in one transaction.
func (s *AccountService) RegisterOrCheck(ctx context.Context, telegramID int64, username, referralCode string) (*Registration, error) {
	user, err := s.userRepo.GetByID(ctx, telegramID)
	if err == nil {
		return s.existingRegistration(ctx, user, username)
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		reg, err := s.createUser(ctx, telegramID, username, GenerateReferralCode(), referralCode)
		if errors.Is(err, repository.ErrDuplicateReferral) {
			// Code collision, try a new one.
			continue
		}
		if errors.Is(err, repository.ErrDuplicateUser) {
			// Lost a registration race; the other call created the row.
			user, err := s.userRepo.GetByID(ctx, telegramID)
			if err != nil {
				return nil, fmt.Errorf("failed to re-read user after race: %w", err)
			}
			return s.existingRegistration(ctx, user, username)
		}
		return reg, err
	}
	return nil, fmt.Errorf("failed to generate a unique referral code after %d attempts", maxCodeAttempts)
}

// existingRegistration builds the result for an already-registered user.
func (s *AccountService) existingRegistration(ctx context.Context, user *model.User, username string) (*Registration, error) {
	if username != "" && user.Username != username {
		if err := s.userRepo.UpdateUsername(ctx, user.TelegramID, username); err != nil {
			log.Warn().Err(err).Int64("user_id", user.TelegramID).Msg("Failed to refresh username")
		} else {
			user.Username = username
		}
	}

	count, err := s.userRepo.CountReferrals(ctx, user.TelegramID)
	if err != nil {
		return nil, err
	}

	return &Registration{
		User:          user,
		IsNew:         false,
		SponsorID:     user.ReferredBy,
		ReferralCount: count,
	}, nil
}

// createUser inserts a new user and settles referral bonuses in one
// transaction. Sponsor resolution locks the sponsor row; if the code does
// not resolve (unknown, or the user's own), the account is still created,
// just without a bonus - a bad referral code never blocks registration.
func (s *AccountService) createUser(ctx context.Context, telegramID int64, username, code, sponsorCode string) (*Registration, error) {
	var reg Registration

	err := s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var sponsorID *int64
		if sponsorCode != "" {
			sponsor, err := s.userRepo.GetByReferralCodeTx(ctx, tx, sponsorCode)
			switch {
			case err == nil:
				if sponsor.TelegramID == telegramID {
					log.Warn().Int64("user_id", telegramID).Msg("Self-referral attempt rejected")
				} else {
					sponsorID = &sponsor.TelegramID
				}
			case errors.Is(err, repository.ErrUserNotFound):
				log.Debug().Str("code", sponsorCode).Msg("Referral code did not resolve")
			default:
				return err
			}
		}

		// The welcome bonus applies only to referred signups.
		var startBalance int64
		if sponsorID != nil {
			startBalance = s.welcomeBonus
		}

		user, err := s.userRepo.CreateTx(ctx, tx, telegramID, username, code, startBalance, sponsorID)
		if err != nil {
			return err
		}

		if sponsorID != nil && s.sponsorBonus > 0 {
			if _, err := s.userRepo.AdjustBalanceTx(ctx, tx, *sponsorID, s.sponsorBonus); err != nil {
				return fmt.Errorf("failed to credit sponsor bonus: %w", err)
			}
		}

		reg = Registration{
			User:         user,
			IsNew:        true,
			BonusGranted: sponsorID != nil,
			SponsorID:    sponsorID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("user_id", telegramID).
		Bool("bonus_granted", reg.BonusGranted).
		Msg("User registered")

	return &reg, nil
}

// GetUser retrieves a user, mapping the repository sentinel.
func (s *AccountService) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// GetBalance retrieves a user's current balance.
func (s *AccountService) GetBalance(ctx context.Context, telegramID int64) (int64, error) {
	user, err := s.GetUser(ctx, telegramID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// CountReferrals returns how many users the given user has referred.
func (s *AccountService) CountReferrals(ctx context.Context, telegramID int64) (int, error) {
	return s.userRepo.CountReferrals(ctx, telegramID)
}

// IsAdmin reports whether the user carries the admin flag.
func (s *AccountService) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	user, err := s.GetUser(ctx, telegramID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

// SeedAdmins flags the configured admin IDs in the database so the HTTP
// admin endpoints and the bot middleware agree on who is an admin.
// Unknown IDs are skipped; admins register like everyone else.
func (s *AccountService) SeedAdmins(ctx context.Context, ids []int64) {
	for _, id := range ids {
		err := s.userRepo.SetAdmin(ctx, id, true)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			log.Warn().Err(err).Int64("user_id", id).Msg("Failed to seed admin flag")
		}
	}
}

// Stats returns user totals for the admin dashboard.
func (s *AccountService) Stats(ctx context.Context) (totalUsers int64, totalPoints int64, err error) {
	return s.userRepo.Stats(ctx)
}
