package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"earnquick-bot/internal/model"
)

// AdViewRepository handles ad-view credit log persistence.
type AdViewRepository struct {
	pool *pgxpool.Pool
}

// NewAdViewRepository creates a new AdViewRepository instance.
func NewAdViewRepository(pool *pgxpool.Pool) *AdViewRepository {
	return &AdViewRepository{pool: pool}
}

// InsertOnceTx inserts an ad-view log keyed by the external transaction id.
// Returns (nil, false, nil) when the id was already logged, so retried
// webhook deliveries become no-ops. Must run in the same transaction as
// the balance credit: a crash between the two leaves neither behind.
func (r *AdViewRepository) InsertOnceTx(ctx context.Context, tx pgx.Tx, userID int64, externalTxnID string, points int64) (*model.AdViewLog, bool, error) {
	const query = `
		INSERT INTO ad_view_logs (user_id, external_txn_id, points_awarded, is_verified, created_at)
		VALUES ($1, $2, $3, TRUE, NOW())
		ON CONFLICT (external_txn_id) DO NOTHING
		RETURNING id, user_id, external_txn_id, points_awarded, is_verified, created_at
	`

	var logEntry model.AdViewLog
	err := tx.QueryRow(ctx, query, userID, externalTxnID, points).Scan(
		&logEntry.ID,
		&logEntry.UserID,
		&logEntry.ExternalTxnID,
		&logEntry.PointsAwarded,
		&logEntry.IsVerified,
		&logEntry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Duplicate external transaction id.
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to insert ad view log: %w", err)
	}
	return &logEntry, true, nil
}

// GetByExternalTxnID retrieves an ad-view log by external transaction id.
func (r *AdViewRepository) GetByExternalTxnID(ctx context.Context, externalTxnID string) (*model.AdViewLog, error) {
	const query = `
		SELECT id, user_id, external_txn_id, points_awarded, is_verified, created_at
		FROM ad_view_logs
		WHERE external_txn_id = $1
	`

	var logEntry model.AdViewLog
	err := r.pool.QueryRow(ctx, query, externalTxnID).Scan(
		&logEntry.ID,
		&logEntry.UserID,
		&logEntry.ExternalTxnID,
		&logEntry.PointsAwarded,
		&logEntry.IsVerified,
		&logEntry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdViewNotFound
		}
		return nil, fmt.Errorf("failed to get ad view log: %w", err)
	}
	return &logEntry, nil
}

// CountByUser returns the number of credited ad views for a user.
func (r *AdViewRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM ad_view_logs WHERE user_id = $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count ad views: %w", err)
	}
	return count, nil
}

// ErrAdViewNotFound is returned when no log matches the external id.
var ErrAdViewNotFound = errors.New("ad view log not found")
