package journal

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// ErrAttemptNotFound reports an unknown attempt id.
var ErrAttemptNotFound = errors.New("payment attempt not found")

type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) Create(ctx context.Context, entity *AttemptEntity) error {
	query := `INSERT INTO payment_attempt (id, booking_id, phone, amount, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, now(), now())`
	_, err := r.pool.Exec(ctx, query, entity.ID, entity.BookingID, entity.Phone, entity.Amount)
	return errors.Wrap(err, "inserting payment attempt")
}

func (r *AttemptRepository) Update(ctx context.Context, entity *AttemptEntity) error {
	query := `UPDATE payment_attempt
	          SET payment_id = $2, gateway_ref = $3, last_status = $4, poll_attempts = $5,
	              outcome = $6, decision = $7, error = $8, decided_at = $9, updated_at = now()
	          WHERE id = $1`
	_, err := r.pool.Exec(ctx, query,
		entity.ID, entity.PaymentID, entity.GatewayRef, entity.LastStatus, entity.PollAttempts,
		entity.Outcome, entity.Decision, entity.Error, entity.DecidedAt)
	return errors.Wrap(err, "updating payment attempt")
}

func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*AttemptEntity, error) {
	query := `SELECT id, booking_id, payment_id, phone, amount, gateway_ref, last_status,
	                 poll_attempts, outcome, decision, error, created_at, updated_at, decided_at
	          FROM payment_attempt WHERE id = $1`
	entity, err := scanAttempt(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(ErrAttemptNotFound, "attempt %s", id)
		}
		return nil, errors.Wrap(err, "selecting payment attempt")
	}
	return entity, nil
}

func (r *AttemptRepository) ListByBooking(ctx context.Context, bookingID int64) ([]*AttemptEntity, error) {
	query := `SELECT id, booking_id, payment_id, phone, amount, gateway_ref, last_status,
	                 poll_attempts, outcome, decision, error, created_at, updated_at, decided_at
	          FROM payment_attempt WHERE booking_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, bookingID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting payment attempts by booking")
	}
	defer rows.Close()

	var entities []*AttemptEntity
	for rows.Next() {
		entity, err := scanAttempt(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning payment attempt")
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

func scanAttempt(row pgx.Row) (*AttemptEntity, error) {
	var entity AttemptEntity
	err := row.Scan(&entity.ID, &entity.BookingID, &entity.PaymentID, &entity.Phone, &entity.Amount,
		&entity.GatewayRef, &entity.LastStatus, &entity.PollAttempts, &entity.Outcome,
		&entity.Decision, &entity.Error, &entity.CreatedAt, &entity.UpdatedAt, &entity.DecidedAt)
	if err != nil {
		return nil, err
	}
	return &entity, nil
}
