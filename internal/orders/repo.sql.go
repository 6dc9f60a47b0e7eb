package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltora/voltora/internal/platform/db"
	"github.com/voltora/voltora/internal/shared"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, order_number, customer_id, status, subtotal, delivery_cost, installation_cost, total_amount,
currency, requires_installation, delivery_method, shipping_address, billing_address, notes,
confirmed_at, completed_at, installation_scheduled_at, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var notes *string
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.Status, &o.Subtotal, &o.DeliveryCost,
		&o.InstallationCost, &o.TotalAmount, &o.Currency, &o.RequiresInstallation, &o.DeliveryMethod,
		&o.ShippingAddress, &o.BillingAddress, &notes, &o.ConfirmedAt, &o.CompletedAt,
		&o.InstallationScheduledAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, shared.ErrNotFound
		}
		return Order{}, err
	}
	if notes != nil {
		o.Notes = *notes
	}
	return o, nil
}

// Create persists an order with its item rows atomically.
func (r *Repository) Create(ctx context.Context, o Order) (Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO orders
(id, order_number, customer_id, status, subtotal, delivery_cost, installation_cost, total_amount,
currency, requires_installation, delivery_method, shipping_address, billing_address, notes,
confirmed_at, completed_at, installation_scheduled_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW(),NOW())`,
			o.ID, o.OrderNumber, o.CustomerID, string(o.Status), o.Subtotal, o.DeliveryCost,
			o.InstallationCost, o.TotalAmount, o.Currency, o.RequiresInstallation, string(o.DeliveryMethod),
			o.ShippingAddress, o.BillingAddress, nullString(o.Notes), o.ConfirmedAt, o.CompletedAt, o.InstallationScheduledAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i := range o.Items {
			item := &o.Items[i]
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			item.OrderID = o.ID
			_, err := tx.Exec(ctx, `INSERT INTO order_items
(id, order_id, variant_id, service_id, sku, name, product_name, quantity, unit_price, total_price, is_dropshipping, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW())`,
				item.ID, item.OrderID, item.VariantID, item.ServiceID, nullString(item.SKU), item.Name,
				nullString(item.ProductName), item.Quantity, item.UnitPrice, item.TotalPrice, item.IsDropshipping)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return r.Get(ctx, o.ID)
}

// Get loads an order with its items.
func (r *Repository) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return Order{}, err
	}
	return r.withItems(ctx, o)
}

// GetByNumber loads an order by its human-facing number.
func (r *Repository) GetByNumber(ctx context.Context, number string) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number=$1`, number))
	if err != nil {
		return Order{}, err
	}
	return r.withItems(ctx, o)
}

func (r *Repository) withItems(ctx context.Context, o Order) (Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, variant_id, service_id, sku, name, product_name,
quantity, unit_price, total_price, is_dropshipping
FROM order_items WHERE order_id=$1 ORDER BY created_at ASC`, o.ID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()

	o.Items = []OrderItem{}
	for rows.Next() {
		var item OrderItem
		var sku, productName *string
		if err := rows.Scan(&item.ID, &item.OrderID, &item.VariantID, &item.ServiceID, &sku, &item.Name,
			&productName, &item.Quantity, &item.UnitPrice, &item.TotalPrice, &item.IsDropshipping); err != nil {
			return Order{}, err
		}
		if sku != nil {
			item.SKU = *sku
		}
		if productName != nil {
			item.ProductName = *productName
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

// List returns orders matching the filter, newest first, with pagination.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, shared.Pagination, error) {
	where := ` WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		where += ` AND status=` + arg(string(filter.Status))
	}
	if filter.CustomerID != "" {
		where += ` AND customer_id=` + arg(filter.CustomerID)
	}
	if filter.DeliveryMethod != "" {
		where += ` AND delivery_method=` + arg(string(filter.DeliveryMethod))
	}
	if filter.Search != "" {
		where += ` AND order_number ILIKE ` + arg("%"+filter.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, shared.Pagination{}, err
	}
	page := shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total)

	query := `SELECT ` + orderColumns + ` FROM orders` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(page.PerPage) + ` OFFSET ` + arg(page.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, shared.Pagination{}, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Pagination{}, err
	}
	for i := range orders {
		orders[i], err = r.withItems(ctx, orders[i])
		if err != nil {
			return nil, shared.Pagination{}, err
		}
	}
	return orders, page, nil
}

// UpdateStatus persists a status change and its lifecycle timestamps.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status, notes string, confirmedAt, completedAt *time.Time) (Order, error) {
	_, err := scanOrder(r.pool.QueryRow(ctx, `UPDATE orders SET
status=$2,
notes = COALESCE($3, notes),
confirmed_at = COALESCE($4, confirmed_at),
completed_at = COALESCE($5, completed_at),
updated_at = NOW()
WHERE id=$1 RETURNING `+orderColumns, id, string(status), nullString(notes), confirmedAt, completedAt))
	if err != nil {
		return Order{}, err
	}
	return r.Get(ctx, id)
}

// SetInstallationSchedule stamps the installation slot and forces the
// status to IN_PROGRESS.
func (r *Repository) SetInstallationSchedule(ctx context.Context, id string, at time.Time) (Order, error) {
	_, err := scanOrder(r.pool.QueryRow(ctx, `UPDATE orders SET
installation_scheduled_at=$2, status=$3, updated_at=NOW()
WHERE id=$1 RETURNING `+orderColumns, id, at, string(StatusInProgress)))
	if err != nil {
		return Order{}, err
	}
	return r.Get(ctx, id)
}

// CountCreatedSince counts orders created at or after the given instant,
// used for the daily order-number sequence.
func (r *Repository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE created_at >= $1`, since).Scan(&count)
	return count, err
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
