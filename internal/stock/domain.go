package stock

import "time"

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementTypeIn represents an inbound receipt.
	MovementTypeIn MovementType = "IN"
	// MovementTypeReservation holds units for an unconfirmed order or quote.
	MovementTypeReservation MovementType = "RESERVATION"
	// MovementTypeRelease returns reserved units to the available pool.
	MovementTypeRelease MovementType = "RELEASE"
	// MovementTypeSale converts a reservation into an actual deduction.
	MovementTypeSale MovementType = "SALE"
	// MovementTypeAdjustmentIn is a positive manual correction.
	MovementTypeAdjustmentIn MovementType = "ADJUSTMENT_IN"
	// MovementTypeAdjustmentOut is a negative manual correction.
	MovementTypeAdjustmentOut MovementType = "ADJUSTMENT_OUT"
	// MovementTypePurchase is a supplier restock.
	MovementTypePurchase MovementType = "PURCHASE"
)

// ReferenceType identifies what caused a movement.
type ReferenceType string

const (
	ReferenceTypeOrder            ReferenceType = "ORDER"
	ReferenceTypeQuote            ReferenceType = "QUOTE"
	ReferenceTypeSupplier         ReferenceType = "SUPPLIER"
	ReferenceTypeManualAdjustment ReferenceType = "MANUAL_ADJUSTMENT"
)

// Ref ties a movement back to its originating document.
type Ref struct {
	Type ReferenceType
	ID   string
}

// Stock tracks per-variant counters. Every mutation bumps Version by
// exactly one; writes are conditioned on the version just read.
type Stock struct {
	VariantID        string    `json:"variant_id"`
	Quantity         int       `json:"quantity"`
	ReservedQuantity int       `json:"reserved_quantity"`
	AlertThreshold   int       `json:"alert_threshold"`
	Version          int64     `json:"version"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Available returns units not held by reservations.
func (s Stock) Available() int {
	return s.Quantity - s.ReservedQuantity
}

// Movement is one immutable ledger row. Rows are only ever appended.
type Movement struct {
	ID             string        `json:"id"`
	VariantID      string        `json:"variant_id"`
	InputQuantity  int           `json:"input_quantity"`
	OutputQuantity int           `json:"output_quantity"`
	MovementType   MovementType  `json:"movement_type"`
	Reason         string        `json:"reason"`
	ReferenceType  ReferenceType `json:"reference_type,omitempty"`
	ReferenceID    string        `json:"reference_id,omitempty"`
	BalanceAfter   int           `json:"balance_after"`
	PerformedBy    string        `json:"performed_by,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// AdjustmentInput describes a direct on-hand correction.
type AdjustmentInput struct {
	Quantity   int
	Reason     string
	SupplierID string
	ActorID    string
}

// MovementFilter limits ledger listings.
type MovementFilter struct {
	VariantID string
	Limit     int
}
