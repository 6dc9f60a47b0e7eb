package catalogue

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltora/voltora/internal/shared"
)

// Repository reads variant projections from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const variantQuery = `SELECT v.id, v.sku, v.name, p.name, p.requires_installation, p.is_dropshipping, v.is_active
FROM product_variants v
JOIN products p ON p.id = v.product_id`

// Variant returns one variant projection.
func (r *Repository) Variant(ctx context.Context, id string) (VariantInfo, error) {
	var v VariantInfo
	err := r.pool.QueryRow(ctx, variantQuery+` WHERE v.id=$1`, id).
		Scan(&v.ID, &v.SKU, &v.Name, &v.ProductName, &v.RequiresInstallation, &v.IsDropshipping, &v.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VariantInfo{}, shared.ErrNotFound
		}
		return VariantInfo{}, err
	}
	return v, nil
}

// Variants returns projections for a set of variant ids, keyed by id.
// Missing ids are simply absent from the result.
func (r *Repository) Variants(ctx context.Context, ids []string) (map[string]VariantInfo, error) {
	if len(ids) == 0 {
		return map[string]VariantInfo{}, nil
	}
	rows, err := r.pool.Query(ctx, variantQuery+` WHERE v.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]VariantInfo, len(ids))
	for rows.Next() {
		var v VariantInfo
		if err := rows.Scan(&v.ID, &v.SKU, &v.Name, &v.ProductName, &v.RequiresInstallation, &v.IsDropshipping, &v.IsActive); err != nil {
			return nil, err
		}
		out[v.ID] = v
	}
	return out, rows.Err()
}
