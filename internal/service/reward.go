package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"earnquick-bot/internal/pkg/db"
	"earnquick-bot/internal/repository"
)

// RewardService credits points for externally verified ad views.
type RewardService struct {
	pool       *db.Pool
	userRepo   *repository.UserRepository
	adViewRepo *repository.AdViewRepository
}

// NewRewardService creates a new RewardService instance.
func NewRewardService(pool *db.Pool, userRepo *repository.UserRepository, adViewRepo *repository.AdViewRepository) *RewardService {
	return &RewardService{
		pool:       pool,
		userRepo:   userRepo,
		adViewRepo: adViewRepo,
	}
}

// CreditAdView credits points for an ad view identified by an external
// transaction id. The log insert and the balance credit share one
// transaction, so the id can never be logged without the matching credit
// or vice versa. A repeat of an already-credited id returns
// credited=false and changes nothing, which makes webhook redelivery
// safe to retry indefinitely.
func (s *RewardService) CreditAdView(ctx context.Context, userID int64, externalTxnID string, points int64) (credited bool, newBalance int64, err error) {
	if externalTxnID == "" {
		return false, 0, ErrInvalidTxnID
	}
	if points <= 0 {
		return false, 0, ErrInvalidAmount
	}

	err = s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		user, err := s.userRepo.LockForUpdateTx(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		_, inserted, err := s.adViewRepo.InsertOnceTx(ctx, tx, userID, externalTxnID, points)
		if err != nil {
			return err
		}
		if !inserted {
			credited = false
			newBalance = user.Balance
			return nil
		}

		newBalance, err = s.userRepo.AdjustBalanceTx(ctx, tx, userID, points)
		if err != nil {
			return fmt.Errorf("failed to credit ad view: %w", err)
		}
		credited = true
		return nil
	})
	if err != nil {
		return false, 0, err
	}

	if credited {
		log.Info().
			Int64("user_id", userID).
			Str("txn_id", externalTxnID).
			Int64("points", points).
			Msg("Ad view credited")
	} else {
		log.Debug().
			Int64("user_id", userID).
			Str("txn_id", externalTxnID).
			Msg("Duplicate ad view transaction skipped")
	}

	return credited, newBalance, nil
}
