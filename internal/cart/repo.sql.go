package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltora/voltora/internal/shared"
)

// Repository persists carts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const cartColumns = `id, customer_id, session_id, expires_at, created_at, updated_at`

// Get loads a cart with its items.
func (r *Repository) Get(ctx context.Context, id string) (Cart, error) {
	var c Cart
	err := r.pool.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id=$1`, id).
		Scan(&c.ID, &c.CustomerID, &c.SessionID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, shared.ErrNotFound
		}
		return Cart{}, err
	}
	items, err := r.items(ctx, id)
	if err != nil {
		return Cart{}, err
	}
	c.Items = items
	return c, nil
}

// FindByCustomer returns the customer's cart, ErrNotFound when absent.
func (r *Repository) FindByCustomer(ctx context.Context, customerID string) (Cart, error) {
	return r.findBy(ctx, `customer_id`, customerID)
}

// FindBySession returns the anonymous session cart, ErrNotFound when absent.
func (r *Repository) FindBySession(ctx context.Context, sessionID string) (Cart, error) {
	return r.findBy(ctx, `session_id`, sessionID)
}

func (r *Repository) findBy(ctx context.Context, column, value string) (Cart, error) {
	var c Cart
	err := r.pool.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE `+column+`=$1 ORDER BY created_at DESC LIMIT 1`, value).
		Scan(&c.ID, &c.CustomerID, &c.SessionID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, shared.ErrNotFound
		}
		return Cart{}, err
	}
	items, err := r.items(ctx, c.ID)
	if err != nil {
		return Cart{}, err
	}
	c.Items = items
	return c, nil
}

func (r *Repository) items(ctx context.Context, cartID string) ([]CartItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, cart_id, variant_id, service_id, quantity, created_at, updated_at
FROM cart_items WHERE cart_id=$1 ORDER BY created_at ASC`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []CartItem{}
	for rows.Next() {
		var item CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.VariantID, &item.ServiceID, &item.Quantity,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Create inserts a cart scoped to a customer or a session.
func (r *Repository) Create(ctx context.Context, customerID, sessionID *string, expiresAt time.Time) (Cart, error) {
	var c Cart
	err := r.pool.QueryRow(ctx, `INSERT INTO carts (id, customer_id, session_id, expires_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING `+cartColumns,
		uuid.NewString(), customerID, sessionID, expiresAt).
		Scan(&c.ID, &c.CustomerID, &c.SessionID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Cart{}, err
	}
	c.Items = []CartItem{}
	return c, nil
}

// Touch extends a cart's expiry.
func (r *Repository) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE carts SET expires_at=$2, updated_at=NOW() WHERE id=$1`, id, expiresAt)
	return err
}

// UpsertItem adds a line or increments an existing line for the same
// variant or service.
func (r *Repository) UpsertItem(ctx context.Context, cartID string, variantID, serviceID *string, quantity int) (CartItem, error) {
	var existingID string
	var err error
	if variantID != nil {
		err = r.pool.QueryRow(ctx, `SELECT id FROM cart_items WHERE cart_id=$1 AND variant_id=$2`, cartID, *variantID).Scan(&existingID)
	} else {
		err = r.pool.QueryRow(ctx, `SELECT id FROM cart_items WHERE cart_id=$1 AND service_id=$2`, cartID, *serviceID).Scan(&existingID)
	}
	switch {
	case err == nil:
		return r.scanItem(r.pool.QueryRow(ctx, `UPDATE cart_items SET quantity=quantity+$2, updated_at=NOW()
WHERE id=$1 RETURNING id, cart_id, variant_id, service_id, quantity, created_at, updated_at`, existingID, quantity))
	case errors.Is(err, pgx.ErrNoRows):
		return r.scanItem(r.pool.QueryRow(ctx, `INSERT INTO cart_items (id, cart_id, variant_id, service_id, quantity, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING id, cart_id, variant_id, service_id, quantity, created_at, updated_at`,
			uuid.NewString(), cartID, variantID, serviceID, quantity))
	default:
		return CartItem{}, err
	}
}

// SetItemQuantity overwrites a line quantity.
func (r *Repository) SetItemQuantity(ctx context.Context, cartID, itemID string, quantity int) (CartItem, error) {
	item, err := r.scanItem(r.pool.QueryRow(ctx, `UPDATE cart_items SET quantity=$3, updated_at=NOW()
WHERE id=$2 AND cart_id=$1 RETURNING id, cart_id, variant_id, service_id, quantity, created_at, updated_at`,
		cartID, itemID, quantity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CartItem{}, shared.ErrNotFound
		}
		return CartItem{}, err
	}
	return item, nil
}

// RemoveItem deletes a line.
func (r *Repository) RemoveItem(ctx context.Context, cartID, itemID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE id=$2 AND cart_id=$1`, cartID, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Clear deletes all lines of a cart.
func (r *Repository) Clear(ctx context.Context, cartID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID)
	return err
}

// Delete removes a cart and its lines.
func (r *Repository) Delete(ctx context.Context, cartID string) error {
	if err := r.Clear(ctx, cartID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE id=$1`, cartID)
	return err
}

// DeleteExpired removes carts past their expiry, returning the count.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id IN (SELECT id FROM carts WHERE expires_at < $1)`, now)
	if err != nil {
		return 0, err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repository) scanItem(row pgx.Row) (CartItem, error) {
	var item CartItem
	err := row.Scan(&item.ID, &item.CartID, &item.VariantID, &item.ServiceID, &item.Quantity,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return CartItem{}, err
	}
	return item, nil
}
