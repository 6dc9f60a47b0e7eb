package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the payment state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusRefunded Status = "REFUNDED"
	StatusFailed   Status = "FAILED"
)

// Method enumerates accepted payment channels.
type Method string

const (
	MethodCash         Method = "CASH"
	MethodMobileMoney  Method = "MOBILE_MONEY"
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodCard         Method = "CARD"
)

// Payment is one inbound payment record against an order. Recording a
// payment does not itself move money.
type Payment struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        Method          `json:"method"`
	Status        Status          `json:"status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
