package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltora/voltora/internal/orders"
	"github.com/voltora/voltora/internal/shared"
)

// RepositoryPort abstracts payment persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, p Payment) (Payment, error)
	Get(ctx context.Context, id string) (Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
	UpdateStatus(ctx context.Context, id string, status Status, transactionID string, paidAt *time.Time) (Payment, error)
	SumPaidByOrder(ctx context.Context, orderID string) (decimal.Decimal, error)
}

// OrderPort is the slice of the order lifecycle the payment flow drives.
type OrderPort interface {
	Get(ctx context.Context, id string) (orders.Order, error)
	ApplyPaymentStatus(ctx context.Context, id string, target orders.Status) (orders.Order, error)
}

// Service reconciles payments against orders.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	orders OrderPort
	now    func() time.Time
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, orderPort OrderPort) *Service {
	return &Service{logger: logger, repo: repo, orders: orderPort, now: time.Now}
}

// RecordInput describes a new payment record.
type RecordInput struct {
	OrderID       string
	Amount        decimal.Decimal
	Method        Method
	TransactionID string
	Notes         string
}

// Record creates a PENDING payment against an existing order.
func (s *Service) Record(ctx context.Context, input RecordInput) (Payment, error) {
	if !input.Amount.IsPositive() {
		return Payment{}, fmt.Errorf("%w: amount must be positive", shared.ErrInvalidInput)
	}
	if _, err := s.orders.Get(ctx, input.OrderID); err != nil {
		return Payment{}, err
	}
	return s.repo.Create(ctx, Payment{
		OrderID:       input.OrderID,
		Amount:        input.Amount,
		Method:        input.Method,
		Status:        StatusPending,
		TransactionID: input.TransactionID,
		Notes:         input.Notes,
	})
}

// UpdateStatus moves a payment to a new status. The first transition into
// PAID stamps PaidAt and triggers the order-status recompute.
func (s *Service) UpdateStatus(ctx context.Context, id string, target Status, transactionID string) (Payment, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	var paidAt *time.Time
	if target == StatusPaid && p.Status != StatusPaid {
		now := s.now()
		paidAt = &now
	}
	updated, err := s.repo.UpdateStatus(ctx, id, target, transactionID, paidAt)
	if err != nil {
		return Payment{}, err
	}
	if target == StatusPaid {
		if err := s.reconcileOrder(ctx, updated.OrderID); err != nil {
			s.logger.Error("reconcile order after payment",
				slog.String("order_id", updated.OrderID), slog.Any("error", err))
			return Payment{}, err
		}
	}
	return updated, nil
}

// reconcileOrder recomputes the order status from the PAID payment total.
// Full coverage promotes DRAFT/PENDING/AWAITING_PAYMENT to PAID; a partial
// amount promotes DRAFT to PENDING. Nothing ever walks an order backward.
func (s *Service) reconcileOrder(ctx context.Context, orderID string) error {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	sum, err := s.repo.SumPaidByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	switch {
	case sum.GreaterThanOrEqual(order.TotalAmount):
		if order.Status == orders.StatusDraft || order.Status == orders.StatusPending || order.Status == orders.StatusAwaitingPayment {
			_, err = s.orders.ApplyPaymentStatus(ctx, orderID, orders.StatusPaid)
			return err
		}
	case sum.IsPositive():
		if order.Status == orders.StatusDraft {
			_, err = s.orders.ApplyPaymentStatus(ctx, orderID, orders.StatusPending)
			return err
		}
	}
	return nil
}

// Refund moves a PAID payment to REFUNDED. The order status and stock are
// deliberately untouched; reconciliation never runs backward.
func (s *Service) Refund(ctx context.Context, id string) (Payment, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if p.Status != StatusPaid {
		return Payment{}, fmt.Errorf("%w: refund requires a PAID payment, got %s", shared.ErrIllegalStateTransition, p.Status)
	}
	return s.repo.UpdateStatus(ctx, id, StatusRefunded, "", nil)
}

// Get returns a payment by id.
func (s *Service) Get(ctx context.Context, id string) (Payment, error) {
	return s.repo.Get(ctx, id)
}

// ListByOrder returns all payments for an order.
func (s *Service) ListByOrder(ctx context.Context, orderID string) ([]Payment, error) {
	return s.repo.ListByOrder(ctx, orderID)
}
