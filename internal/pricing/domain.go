package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceType enumerates supported price record kinds.
type PriceType string

const (
	PriceTypeBase      PriceType = "BASE"
	PriceTypeWholesale PriceType = "WHOLESALE"
	PriceTypePromo     PriceType = "PROMO"
)

// CustomerType segments pricing.
type CustomerType string

const (
	CustomerTypeB2C CustomerType = "B2C"
	CustomerTypeB2B CustomerType = "B2B"
)

// Price is one price row for a variant. Several rows may coexist per
// variant and customer type; the creator enforces uniqueness at the
// (variant, priceType, customerType, minQuantity, validFrom) granularity.
type Price struct {
	ID           string          `json:"id"`
	VariantID    string          `json:"variant_id"`
	PriceType    PriceType       `json:"price_type"`
	CustomerType CustomerType    `json:"customer_type"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	MinQuantity  int             `json:"min_quantity"`
	ValidFrom    time.Time       `json:"valid_from"`
	ValidTo      *time.Time      `json:"valid_to,omitempty"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ActiveAt reports whether the row applies at the given instant.
func (p Price) ActiveAt(asOf time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.ValidFrom.After(asOf) {
		return false
	}
	if p.ValidTo != nil && p.ValidTo.Before(asOf) {
		return false
	}
	return true
}

// HistoryEntry is an append-only record of an amount change.
type HistoryEntry struct {
	ID           string           `json:"id"`
	VariantID    string           `json:"variant_id"`
	PriceType    PriceType        `json:"price_type"`
	CustomerType CustomerType     `json:"customer_type"`
	OldAmount    *decimal.Decimal `json:"old_amount,omitempty"`
	NewAmount    decimal.Decimal  `json:"new_amount"`
	MinQuantity  int              `json:"min_quantity"`
	ChangedBy    string           `json:"changed_by,omitempty"`
	ChangeReason string           `json:"change_reason,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Resolution is the resolver output: an advertised unit price plus the
// first bulk tier, all fields nil when nothing is active.
type Resolution struct {
	UnitPrice       *decimal.Decimal `json:"unit_price"`
	PriceType       *PriceType       `json:"price_type"`
	BulkPrice       *decimal.Decimal `json:"bulk_price"`
	BulkMinQuantity *int             `json:"bulk_min_quantity"`
	Currency        string           `json:"currency"`
}

// ServiceType keys installation rate rows.
type ServiceType string

const (
	ServiceTypeElectricalInstallation ServiceType = "ELECTRICAL_INSTALLATION"
)

// InstallationRate is an external rate table row for installation work.
type InstallationRate struct {
	ID          string          `json:"id"`
	ServiceType ServiceType     `json:"service_type"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
	IsActive    bool            `json:"is_active"`
}

// InstallationLine is the per-line input to installation costing.
type InstallationLine struct {
	Quantity             int
	RequiresInstallation bool
}
