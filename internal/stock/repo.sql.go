package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltora/voltora/internal/platform/db"
	"github.com/voltora/voltora/internal/shared"
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. Each
// ledger mutation runs as one atomic read-compute-write unit: read the
// current counters, write conditioned on the version just read, append the
// movement row in the same transaction.
type TxRepository interface {
	GetStock(ctx context.Context, variantID string) (Stock, error)
	UpdateStockIf(ctx context.Context, variantID string, expectedVersion int64, quantity, reserved int) (Stock, error)
	InsertMovement(ctx context.Context, m Movement) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a transaction. The version predicate
// in UpdateStockIf is the concurrency guard; a lost race is reported as
// shared.ErrConcurrencyConflict, never as a serialization failure.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const stockColumns = `variant_id, quantity, reserved_quantity, alert_threshold, version, updated_at`

func scanStock(row pgx.Row) (Stock, error) {
	var s Stock
	err := row.Scan(&s.VariantID, &s.Quantity, &s.ReservedQuantity, &s.AlertThreshold, &s.Version, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, shared.ErrNotFound
		}
		return Stock{}, err
	}
	return s, nil
}

// Get returns the stock row for a variant.
func (r *Repository) Get(ctx context.Context, variantID string) (Stock, error) {
	return scanStock(r.pool.QueryRow(ctx, `SELECT `+stockColumns+` FROM stocks WHERE variant_id=$1`, variantID))
}

// Create inserts the stock row owned by a freshly created variant. A
// non-zero opening quantity is journalled as an IN movement in the same
// transaction, so replaying the ledger reproduces the counter from day one.
func (r *Repository) Create(ctx context.Context, variantID string, quantity, alertThreshold int) (Stock, error) {
	var created Stock
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := scanStock(tx.QueryRow(ctx, `INSERT INTO stocks (variant_id, quantity, reserved_quantity, alert_threshold, version, updated_at)
VALUES ($1,$2,0,$3,1,NOW()) RETURNING `+stockColumns, variantID, quantity, alertThreshold))
		if err != nil {
			return err
		}
		created = s
		if quantity == 0 {
			return nil
		}
		return (&txRepository{tx: tx}).InsertMovement(ctx, Movement{
			VariantID:     variantID,
			InputQuantity: quantity,
			MovementType:  MovementTypeIn,
			Reason:        "Initial stock",
			BalanceAfter:  quantity,
		})
	})
	if err != nil {
		return Stock{}, err
	}
	return created, nil
}

// LowStock lists variants at or below their alert threshold.
func (r *Repository) LowStock(ctx context.Context) ([]Stock, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stockColumns+` FROM stocks WHERE quantity <= alert_threshold ORDER BY quantity ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Stock{}
	for rows.Next() {
		var s Stock
		if err := rows.Scan(&s.VariantID, &s.Quantity, &s.ReservedQuantity, &s.AlertThreshold, &s.Version, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const movementColumns = `id, variant_id, input_quantity, output_quantity, movement_type, reason, reference_type, reference_id, balance_after, performed_by, created_at`

// Movements lists ledger rows, newest first. A zero VariantID lists across
// all variants.
func (r *Repository) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var (
		rows pgx.Rows
		err  error
	)
	if filter.VariantID != "" {
		rows, err = r.pool.Query(ctx, `SELECT `+movementColumns+` FROM stock_movements
WHERE variant_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, filter.VariantID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `SELECT `+movementColumns+` FROM stock_movements
ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMovements(rows)
}

// MovementsAsc returns the full ledger for a variant in append order, for
// balance replay.
func (r *Repository) MovementsAsc(ctx context.Context, variantID string) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM stock_movements
WHERE variant_id=$1 ORDER BY created_at ASC, id ASC`, variantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMovements(rows)
}

func collectMovements(rows pgx.Rows) ([]Movement, error) {
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		var refType, refID, performedBy *string
		if err := rows.Scan(&m.ID, &m.VariantID, &m.InputQuantity, &m.OutputQuantity, &m.MovementType, &m.Reason, &refType, &refID, &m.BalanceAfter, &performedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		if refType != nil {
			m.ReferenceType = ReferenceType(*refType)
		}
		if refID != nil {
			m.ReferenceID = *refID
		}
		if performedBy != nil {
			m.PerformedBy = *performedBy
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *txRepository) GetStock(ctx context.Context, variantID string) (Stock, error) {
	return scanStock(r.tx.QueryRow(ctx, `SELECT `+stockColumns+` FROM stocks WHERE variant_id=$1`, variantID))
}

// UpdateStockIf is the compare-and-swap primitive: the write only lands when
// the version still matches the one the caller read.
func (r *txRepository) UpdateStockIf(ctx context.Context, variantID string, expectedVersion int64, quantity, reserved int) (Stock, error) {
	row := r.tx.QueryRow(ctx, `UPDATE stocks
SET quantity=$3, reserved_quantity=$4, version=version+1, updated_at=NOW()
WHERE variant_id=$1 AND version=$2
RETURNING `+stockColumns, variantID, expectedVersion, quantity, reserved)
	s, err := scanStock(row)
	if errors.Is(err, shared.ErrNotFound) {
		return Stock{}, shared.ErrConcurrencyConflict
	}
	return s, err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	id := m.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_movements
(id, variant_id, input_quantity, output_quantity, movement_type, reason, reference_type, reference_id, balance_after, performed_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		id, m.VariantID, m.InputQuantity, m.OutputQuantity, string(m.MovementType), m.Reason,
		nullString(string(m.ReferenceType)), nullString(m.ReferenceID), m.BalanceAfter, nullString(m.PerformedBy), createdAt)
	return err
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
