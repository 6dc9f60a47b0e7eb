package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltora/voltora/internal/shared"
)

// Repository persists quotes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const quoteColumns = `id, quote_number, order_id, status, valid_until, calculated_installation_cost, notes,
sent_at, accepted_at, rejected_at, created_at, updated_at`

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	var notes *string
	err := row.Scan(&q.ID, &q.QuoteNumber, &q.OrderID, &q.Status, &q.ValidUntil, &q.CalculatedInstallationCost,
		&notes, &q.SentAt, &q.AcceptedAt, &q.RejectedAt, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, shared.ErrNotFound
		}
		return Quote{}, err
	}
	if notes != nil {
		q.Notes = *notes
	}
	return q, nil
}

// Create inserts a quote row.
func (r *Repository) Create(ctx context.Context, q Quote) (Quote, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return scanQuote(r.pool.QueryRow(ctx, `INSERT INTO quotes
(id, quote_number, order_id, status, valid_until, calculated_installation_cost, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW()) RETURNING `+quoteColumns,
		q.ID, q.QuoteNumber, q.OrderID, string(q.Status), q.ValidUntil, q.CalculatedInstallationCost,
		nullString(q.Notes)))
}

// Get returns a quote by id.
func (r *Repository) Get(ctx context.Context, id string) (Quote, error) {
	return scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id=$1`, id))
}

// GetByOrder returns the quote wrapping an order.
func (r *Repository) GetByOrder(ctx context.Context, orderID string) (Quote, error) {
	return scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE order_id=$1`, orderID))
}

// List returns quotes matching the filter, newest first, with pagination.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Quote, shared.Pagination, error) {
	where := ` WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		where += ` AND status=` + arg(string(filter.Status))
	}
	if filter.Search != "" {
		where += ` AND quote_number ILIKE ` + arg("%"+filter.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotes`+where, args...).Scan(&total); err != nil {
		return nil, shared.Pagination{}, err
	}
	page := shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total)

	rows, err := r.pool.Query(ctx, `SELECT `+quoteColumns+` FROM quotes`+where+
		` ORDER BY created_at DESC LIMIT `+arg(page.PerPage)+` OFFSET `+arg(page.Offset()), args...)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	defer rows.Close()

	quotes := []Quote{}
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, shared.Pagination{}, err
		}
		quotes = append(quotes, q)
	}
	return quotes, page, rows.Err()
}

// UpdateStatus persists a quote status change and its timestamps.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status, notes string, sentAt, acceptedAt, rejectedAt *time.Time) (Quote, error) {
	return scanQuote(r.pool.QueryRow(ctx, `UPDATE quotes SET
status=$2,
notes = COALESCE($3, notes),
sent_at = COALESCE($4, sent_at),
accepted_at = COALESCE($5, accepted_at),
rejected_at = COALESCE($6, rejected_at),
updated_at = NOW()
WHERE id=$1 RETURNING `+quoteColumns, id, string(status), nullString(notes), sentAt, acceptedAt, rejectedAt))
}

// ExpireOlderThan bulk-expires PENDING/SENT quotes past their validity,
// returning the number of rows changed. Safe to rerun.
func (r *Repository) ExpireOlderThan(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE quotes SET status=$2, updated_at=NOW()
WHERE status IN ($3,$4) AND valid_until < $1`,
		now, string(StatusExpired), string(StatusPending), string(StatusSent))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
