package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"earnquick-bot/internal/model"
)

// ErrRequestNotFound is returned when a withdrawal request id is unknown.
var ErrRequestNotFound = errors.New("withdrawal request not found")

const withdrawalColumns = `id, user_id, points_requested, amount_taka,
		payment_method, payment_address, status, requested_at, processed_at`

// WithdrawalRepository handles withdrawal request persistence.
type WithdrawalRepository struct {
	pool *pgxpool.Pool
}

// NewWithdrawalRepository creates a new WithdrawalRepository instance.
func NewWithdrawalRepository(pool *pgxpool.Pool) *WithdrawalRepository {
	return &WithdrawalRepository{pool: pool}
}

func scanWithdrawal(row pgx.Row) (*model.WithdrawalRequest, error) {
	var req model.WithdrawalRequest
	err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.PointsRequested,
		&req.AmountTaka,
		&req.PaymentMethod,
		&req.PaymentAddress,
		&req.Status,
		&req.RequestedAt,
		&req.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateTx inserts a Pending withdrawal request inside the given
// transaction. The taka amount is computed by the caller at the current
// rate and persisted so later rate changes never apply retroactively.
func (r *WithdrawalRepository) CreateTx(ctx context.Context, tx pgx.Tx, userID int64, points int64, amountTaka decimal.Decimal, method, address string) (*model.WithdrawalRequest, error) {
	query := `
		INSERT INTO withdraw_requests (user_id, points_requested, amount_taka, payment_method, payment_address, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, 'Pending', NOW())
		RETURNING ` + withdrawalColumns

	req, err := scanWithdrawal(tx.QueryRow(ctx, query, userID, points, amountTaka, method, address))
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal request: %w", err)
	}
	return req, nil
}

// GetByID retrieves a withdrawal request by id.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id int64) (*model.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdraw_requests WHERE id = $1`

	req, err := scanWithdrawal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	return req, nil
}

// LockForUpdateTx reads a request row under FOR UPDATE so that two
// concurrent resolutions of the same request are serialized.
func (r *WithdrawalRepository) LockForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (*model.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdraw_requests WHERE id = $1 FOR UPDATE`

	req, err := scanWithdrawal(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to lock withdrawal request: %w", err)
	}
	return req, nil
}

// SetStatusTx transitions a request to a terminal status and stamps
// processed_at inside the given transaction.
func (r *WithdrawalRepository) SetStatusTx(ctx context.Context, tx pgx.Tx, id int64, status string, processedAt time.Time) error {
	const query = `
		UPDATE withdraw_requests
		SET status = $2, processed_at = $3
		WHERE id = $1
	`

	result, err := tx.Exec(ctx, query, id, status, processedAt)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// ListPending retrieves all Pending requests, oldest first, with the
// requesting user's name for the admin view.
func (r *WithdrawalRepository) ListPending(ctx context.Context) ([]*model.WithdrawalRequest, error) {
	const query = `
		SELECT wr.id, wr.user_id, u.username, wr.points_requested, wr.amount_taka,
		       wr.payment_method, wr.payment_address, wr.status, wr.requested_at, wr.processed_at
		FROM withdraw_requests wr
		JOIN users u ON wr.user_id = u.telegram_id
		WHERE wr.status = 'Pending'
		ORDER BY wr.requested_at ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %w", err)
	}
	defer rows.Close()

	var requests []*model.WithdrawalRequest
	for rows.Next() {
		var req model.WithdrawalRequest
		err := rows.Scan(
			&req.ID,
			&req.UserID,
			&req.Username,
			&req.PointsRequested,
			&req.AmountTaka,
			&req.PaymentMethod,
			&req.PaymentAddress,
			&req.Status,
			&req.RequestedAt,
			&req.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		requests = append(requests, &req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawal requests: %w", err)
	}

	return requests, nil
}

// ListByUser retrieves a user's withdrawal history, newest first.
func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + `
		FROM withdraw_requests
		WHERE user_id = $1
		ORDER BY requested_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list user withdrawals: %w", err)
	}
	defer rows.Close()

	var requests []*model.WithdrawalRequest
	for rows.Next() {
		req, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawal requests: %w", err)
	}

	return requests, nil
}

// Stats aggregates request counts for the admin dashboard.
func (r *WithdrawalRepository) Stats(ctx context.Context) (pending int64, total int64, err error) {
	const query = `
		SELECT COUNT(*) FILTER (WHERE status = 'Pending'), COUNT(*)
		FROM withdraw_requests
	`

	if err := r.pool.QueryRow(ctx, query).Scan(&pending, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to get withdrawal stats: %w", err)
	}
	return pending, total, nil
}
