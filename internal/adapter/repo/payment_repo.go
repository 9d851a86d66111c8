package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feelkraft/comic-api/internal/domain"
)

// PaymentRepositoryPG implements domain.PaymentRepository backed by PostgreSQL.
type PaymentRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepositoryPG.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepositoryPG {
	return &PaymentRepositoryPG{pool: pool}
}

// Create persists a verified payment record.
func (r *PaymentRepositoryPG) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
INSERT INTO payments (payment_id, order_id, signature, amount, currency, status, job_id)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := r.pool.Exec(ctx, query,
		payment.PaymentID,
		payment.OrderID,
		payment.Signature,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.JobID,
	)
	return err
}

// GetByPaymentID fetches a payment by the gateway payment id.
func (r *PaymentRepositoryPG) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	query := `
SELECT payment_id, order_id, signature, amount, currency, status, job_id, created_at
FROM payments
WHERE payment_id = $1;
`
	row := r.pool.QueryRow(ctx, query, paymentID)
	var payment domain.Payment
	if err := row.Scan(
		&payment.PaymentID,
		&payment.OrderID,
		&payment.Signature,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.JobID,
		&payment.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

var _ domain.PaymentRepository = (*PaymentRepositoryPG)(nil)
