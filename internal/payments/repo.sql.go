package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/voltora/voltora/internal/shared"
)

// Repository persists payments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const paymentColumns = `id, order_id, amount, method, status, transaction_id, notes, paid_at, created_at, updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	var txID, notes *string
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.Status, &txID, &notes, &p.PaidAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, shared.ErrNotFound
		}
		return Payment{}, err
	}
	if txID != nil {
		p.TransactionID = *txID
	}
	if notes != nil {
		p.Notes = *notes
	}
	return p, nil
}

// Create inserts a payment row.
func (r *Repository) Create(ctx context.Context, p Payment) (Payment, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return scanPayment(r.pool.QueryRow(ctx, `INSERT INTO payments
(id, order_id, amount, method, status, transaction_id, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW()) RETURNING `+paymentColumns,
		p.ID, p.OrderID, p.Amount, string(p.Method), string(p.Status),
		nullString(p.TransactionID), nullString(p.Notes)))
}

// Get returns a payment by id.
func (r *Repository) Get(ctx context.Context, id string) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id))
}

// ListByOrder returns all payments for an order, oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID string) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id=$1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// UpdateStatus persists a payment status change.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status, transactionID string, paidAt *time.Time) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `UPDATE payments SET
status=$2,
transaction_id = COALESCE($3, transaction_id),
paid_at = COALESCE($4, paid_at),
updated_at = NOW()
WHERE id=$1 RETURNING `+paymentColumns, id, string(status), nullString(transactionID), paidAt))
}

// SumPaidByOrder totals PAID payments for an order.
func (r *Repository) SumPaidByOrder(ctx context.Context, orderID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id=$1 AND status=$2`,
		orderID, string(StatusPaid)).Scan(&sum)
	return sum, err
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
