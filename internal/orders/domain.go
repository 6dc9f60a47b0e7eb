package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltora/voltora/internal/shared"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPending         Status = "PENDING"
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusConfirmed       Status = "CONFIRMED"
	StatusInProgress      Status = "IN_PROGRESS"
	StatusPaid            Status = "PAID"
	StatusPreparing       Status = "PREPARING"
	StatusReadyForPickup  Status = "READY_FOR_PICKUP"
	StatusShipped         Status = "SHIPPED"
	StatusDelivered       Status = "DELIVERED"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
	StatusRefunded        Status = "REFUNDED"
)

// DeliveryMethod enumerates fulfilment channels.
type DeliveryMethod string

const (
	DeliveryMethodPickup   DeliveryMethod = "PICKUP"
	DeliveryMethodDelivery DeliveryMethod = "DELIVERY"
)

// transitions is the legal edge set of the order state machine.
var transitions = map[Status][]Status{
	StatusDraft:           {StatusPending, StatusAwaitingPayment, StatusConfirmed, StatusCancelled},
	StatusPending:         {StatusAwaitingPayment, StatusConfirmed, StatusPaid, StatusCancelled},
	StatusAwaitingPayment: {StatusPaid, StatusConfirmed, StatusCancelled},
	StatusConfirmed:       {StatusInProgress, StatusPreparing, StatusPaid, StatusCancelled},
	StatusInProgress:      {StatusPreparing, StatusReadyForPickup, StatusShipped, StatusDelivered, StatusCompleted, StatusCancelled},
	StatusPaid:            {StatusConfirmed, StatusInProgress, StatusPreparing, StatusCancelled, StatusRefunded},
	StatusPreparing:       {StatusReadyForPickup, StatusShipped, StatusCancelled},
	StatusReadyForPickup:  {StatusDelivered, StatusCompleted, StatusCancelled},
	StatusShipped:         {StatusDelivered, StatusCancelled},
	StatusDelivered:       {StatusCompleted, StatusRefunded},
}

// CanTransition reports whether from→to is a legal status change.
// COMPLETED, CANCELLED and REFUNDED are terminal.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// Order is the checkout aggregate root. Item rows snapshot catalogue data
// at creation time and are never re-derived.
type Order struct {
	ID                      string          `json:"id"`
	OrderNumber             string          `json:"order_number"`
	CustomerID              *string         `json:"customer_id,omitempty"`
	Status                  Status          `json:"status"`
	Subtotal                decimal.Decimal `json:"subtotal"`
	DeliveryCost            decimal.Decimal `json:"delivery_cost"`
	InstallationCost        decimal.Decimal `json:"installation_cost"`
	TotalAmount             decimal.Decimal `json:"total_amount"`
	Currency                string          `json:"currency"`
	RequiresInstallation    bool            `json:"requires_installation"`
	DeliveryMethod          DeliveryMethod  `json:"delivery_method"`
	ShippingAddress         *string         `json:"shipping_address,omitempty"`
	BillingAddress          *string         `json:"billing_address,omitempty"`
	Notes                   string          `json:"notes,omitempty"`
	ConfirmedAt             *time.Time      `json:"confirmed_at,omitempty"`
	CompletedAt             *time.Time      `json:"completed_at,omitempty"`
	InstallationScheduledAt *time.Time      `json:"installation_scheduled_at,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
	Items                   []OrderItem     `json:"items"`
}

// OrderItem is a snapshotted order line.
type OrderItem struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	VariantID      *string         `json:"variant_id,omitempty"`
	ServiceID      *string         `json:"service_id,omitempty"`
	SKU            string          `json:"sku,omitempty"`
	Name           string          `json:"name"`
	ProductName    string          `json:"product_name,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	IsDropshipping bool            `json:"is_dropshipping"`
}

// NeedsStock reports whether the line holds a physical reservation.
// Service and dropshipping lines never touch the stock ledger.
func (i OrderItem) NeedsStock() bool {
	return i.VariantID != nil && !i.IsDropshipping
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status         Status
	CustomerID     string
	DeliveryMethod DeliveryMethod
	Search         string
	Page           shared.Pagination
}
