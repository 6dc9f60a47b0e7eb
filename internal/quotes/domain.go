package quotes

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltora/voltora/internal/shared"
)

// Status is the quote lifecycle state. ACCEPTED, REJECTED and EXPIRED are
// terminal.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPending  Status = "PENDING"
	StatusSent     Status = "SENT"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(s Status) bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusExpired
}

// Quote wraps exactly one order as a time-boxed customer proposal.
type Quote struct {
	ID                         string          `json:"id"`
	QuoteNumber                string          `json:"quote_number"`
	OrderID                    string          `json:"order_id"`
	Status                     Status          `json:"status"`
	ValidUntil                 time.Time       `json:"valid_until"`
	CalculatedInstallationCost decimal.Decimal `json:"calculated_installation_cost"`
	Notes                      string          `json:"notes,omitempty"`
	SentAt                     *time.Time      `json:"sent_at,omitempty"`
	AcceptedAt                 *time.Time      `json:"accepted_at,omitempty"`
	RejectedAt                 *time.Time      `json:"rejected_at,omitempty"`
	CreatedAt                  time.Time       `json:"created_at"`
	UpdatedAt                  time.Time       `json:"updated_at"`
}

// ListFilter narrows quote listings.
type ListFilter struct {
	Status Status
	Search string
	Page   shared.Pagination
}
