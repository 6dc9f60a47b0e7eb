package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/voltora/voltora/internal/shared"
)

// Repository persists price data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const priceColumns = `id, variant_id, price_type, customer_type, amount, currency, min_quantity, valid_from, valid_to, is_active, created_at, updated_at`

func scanPrice(row pgx.Row) (Price, error) {
	var p Price
	err := row.Scan(&p.ID, &p.VariantID, &p.PriceType, &p.CustomerType, &p.Amount, &p.Currency,
		&p.MinQuantity, &p.ValidFrom, &p.ValidTo, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Price{}, shared.ErrNotFound
		}
		return Price{}, err
	}
	return p, nil
}

// Get returns a price row by id.
func (r *Repository) Get(ctx context.Context, id string) (Price, error) {
	return scanPrice(r.pool.QueryRow(ctx, `SELECT `+priceColumns+` FROM prices WHERE id=$1`, id))
}

// ByVariant lists all price rows for a variant.
func (r *Repository) ByVariant(ctx context.Context, variantID string) ([]Price, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+priceColumns+` FROM prices
WHERE variant_id=$1 ORDER BY price_type ASC, customer_type ASC, min_quantity ASC`, variantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPrices(rows)
}

func collectPrices(rows pgx.Rows) ([]Price, error) {
	prices := []Price{}
	for rows.Next() {
		var p Price
		if err := rows.Scan(&p.ID, &p.VariantID, &p.PriceType, &p.CustomerType, &p.Amount, &p.Currency,
			&p.MinQuantity, &p.ValidFrom, &p.ValidTo, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// Insert creates a price row. The unique index on (variant_id, price_type,
// customer_type, min_quantity, valid_from) enforces the creator-level
// uniqueness contract.
func (r *Repository) Insert(ctx context.Context, p Price) (Price, error) {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO prices
(id, variant_id, price_type, customer_type, amount, currency, min_quantity, valid_from, valid_to, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
RETURNING `+priceColumns,
		id, p.VariantID, string(p.PriceType), string(p.CustomerType), p.Amount, p.Currency,
		p.MinQuantity, p.ValidFrom, p.ValidTo, p.IsActive)
	created, err := scanPrice(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Price{}, shared.ErrDuplicate
		}
		return Price{}, err
	}
	return created, nil
}

// Update applies amount/validity changes to a price row.
func (r *Repository) Update(ctx context.Context, id string, amount *decimal.Decimal, minQuantity *int, validFrom, validTo *time.Time, isActive *bool) (Price, error) {
	row := r.pool.QueryRow(ctx, `UPDATE prices SET
amount = COALESCE($2, amount),
min_quantity = COALESCE($3, min_quantity),
valid_from = COALESCE($4, valid_from),
valid_to = COALESCE($5, valid_to),
is_active = COALESCE($6, is_active),
updated_at = NOW()
WHERE id=$1 RETURNING `+priceColumns, id, amount, minQuantity, validFrom, validTo, isActive)
	return scanPrice(row)
}

// DeactivatePromos deactivates active PROMO rows currently in their window.
func (r *Repository) DeactivatePromos(ctx context.Context, variantID string, customerType CustomerType, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE prices SET is_active=false, updated_at=NOW()
WHERE variant_id=$1 AND customer_type=$2 AND price_type='PROMO' AND is_active=true
AND valid_from <= $3 AND (valid_to IS NULL OR valid_to >= $3)`, variantID, string(customerType), now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// HasOverlappingPromo reports whether an active PROMO window overlaps the
// given range.
func (r *Repository) HasOverlappingPromo(ctx context.Context, variantID string, customerType CustomerType, minQuantity int, from, to time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM prices
WHERE variant_id=$1 AND customer_type=$2 AND price_type='PROMO' AND min_quantity=$3 AND is_active=true
AND valid_from <= $5 AND (valid_to IS NULL OR valid_to >= $4))`,
		variantID, string(customerType), minQuantity, from, to).Scan(&exists)
	return exists, err
}

// InsertHistory appends a price-history row. History is append-only.
func (r *Repository) InsertHistory(ctx context.Context, h HistoryEntry) error {
	id := h.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO price_history
(id, variant_id, price_type, customer_type, old_amount, new_amount, min_quantity, changed_by, change_reason, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())`,
		id, h.VariantID, string(h.PriceType), string(h.CustomerType), h.OldAmount, h.NewAmount,
		h.MinQuantity, nullString(h.ChangedBy), nullString(h.ChangeReason))
	return err
}

// History lists price-history rows for a variant, newest first.
func (r *Repository) History(ctx context.Context, variantID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, variant_id, price_type, customer_type, old_amount, new_amount, min_quantity, changed_by, change_reason, created_at
FROM price_history WHERE variant_id=$1 ORDER BY created_at DESC LIMIT $2`, variantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []HistoryEntry{}
	for rows.Next() {
		var h HistoryEntry
		var changedBy, changeReason *string
		if err := rows.Scan(&h.ID, &h.VariantID, &h.PriceType, &h.CustomerType, &h.OldAmount, &h.NewAmount,
			&h.MinQuantity, &changedBy, &changeReason, &h.CreatedAt); err != nil {
			return nil, err
		}
		if changedBy != nil {
			h.ChangedBy = *changedBy
		}
		if changeReason != nil {
			h.ChangeReason = *changeReason
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

// ActiveInstallationRate returns the active rate row for a service type.
func (r *Repository) ActiveInstallationRate(ctx context.Context, serviceType ServiceType) (InstallationRate, error) {
	var rate InstallationRate
	err := r.pool.QueryRow(ctx, `SELECT id, service_type, hourly_rate, is_active FROM installation_pricing
WHERE service_type=$1 AND is_active=true LIMIT 1`, string(serviceType)).
		Scan(&rate.ID, &rate.ServiceType, &rate.HourlyRate, &rate.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InstallationRate{}, shared.ErrNotFound
		}
		return InstallationRate{}, err
	}
	return rate, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
