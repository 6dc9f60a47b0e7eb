package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is a mutable pre-checkout container, scoped to a customer or to an
// anonymous session, and expires after a fixed TTL.
type Cart struct {
	ID         string     `json:"id"`
	CustomerID *string    `json:"customer_id,omitempty"`
	SessionID  *string    `json:"session_id,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Items      []CartItem `json:"items"`
}

// CartItem references either a product variant or a standalone service.
type CartItem struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cart_id"`
	VariantID *string   `json:"variant_id,omitempty"`
	ServiceID *string   `json:"service_id,omitempty"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsService reports whether the line is a service item.
func (i CartItem) IsService() bool {
	return i.ServiceID != nil
}

// Snapshot is the priced, stock-annotated view of a cart handed to the
// order and quote flows. Items are snapshotted: downstream consumers never
// go back to the catalogue.
type Snapshot struct {
	CartID     string          `json:"cart_id"`
	CustomerID *string         `json:"customer_id,omitempty"`
	Items      []SnapshotItem  `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Currency   string          `json:"currency"`
	Summary    SnapshotSummary `json:"summary"`
}

// SnapshotItem is one priced cart line.
type SnapshotItem struct {
	VariantID            *string         `json:"variant_id,omitempty"`
	ServiceID            *string         `json:"service_id,omitempty"`
	SKU                  string          `json:"sku,omitempty"`
	Name                 string          `json:"name"`
	ProductName          string          `json:"product_name,omitempty"`
	Quantity             int             `json:"quantity"`
	UnitPrice            decimal.Decimal `json:"unit_price"`
	TotalPrice           decimal.Decimal `json:"total_price"`
	Available            bool            `json:"available"`
	AvailableQuantity    int             `json:"available_quantity"`
	RequiresInstallation bool            `json:"requires_installation"`
	IsDropshipping       bool            `json:"is_dropshipping"`
	RequiresQuote        bool            `json:"requires_quote"`
}

// SnapshotSummary aggregates the snapshot for display.
type SnapshotSummary struct {
	TotalItems       int `json:"total_items"`
	TotalQuantity    int `json:"total_quantity"`
	UnavailableItems int `json:"unavailable_items"`
}
