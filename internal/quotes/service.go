package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voltora/voltora/internal/orders"
	"github.com/voltora/voltora/internal/pricing"
	"github.com/voltora/voltora/internal/shared"
)

// RepositoryPort abstracts quote persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, q Quote) (Quote, error)
	Get(ctx context.Context, id string) (Quote, error)
	GetByOrder(ctx context.Context, orderID string) (Quote, error)
	List(ctx context.Context, filter ListFilter) ([]Quote, shared.Pagination, error)
	UpdateStatus(ctx context.Context, id string, status Status, notes string, sentAt, acceptedAt, rejectedAt *time.Time) (Quote, error)
	ExpireOlderThan(ctx context.Context, now time.Time) (int, error)
}

// OrderPort is the slice of the order lifecycle the quote flow drives.
type OrderPort interface {
	Create(ctx context.Context, input orders.CreateInput) (orders.Order, error)
	Get(ctx context.Context, id string) (orders.Order, error)
	UpdateStatus(ctx context.Context, id string, target orders.Status, notes string) (orders.Order, error)
	ReserveLines(ctx context.Context, orderID string) error
	ReleaseLines(ctx context.Context, orderID string) error
}

// Service runs the quote workflow.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	orders   OrderPort
	validity time.Duration
	now      func() time.Time
}

// NewService builds Service. validity is the default quote window.
func NewService(logger *slog.Logger, repo RepositoryPort, orderPort OrderPort, validity time.Duration) *Service {
	if validity <= 0 {
		validity = 14 * 24 * time.Hour
	}
	return &Service{logger: logger, repo: repo, orders: orderPort, validity: validity, now: time.Now}
}

// CreateInput describes a quote request.
type CreateInput struct {
	CartID       string
	CustomerID   *string
	CustomerType pricing.CustomerType
	Notes        string
	ValidUntil   *time.Time
}

// Create builds a DRAFT order shell from the cart, without reserving any
// stock, then wraps it in a PENDING quote. Reservation happens at accept.
func (s *Service) Create(ctx context.Context, input CreateInput) (Quote, error) {
	order, err := s.orders.Create(ctx, orders.CreateInput{
		CartID:        input.CartID,
		CustomerID:    input.CustomerID,
		CustomerType:  input.CustomerType,
		Notes:         input.Notes,
		InitialStatus: orders.StatusDraft,
	})
	if err != nil {
		return Quote{}, err
	}

	validUntil := s.now().Add(s.validity)
	if input.ValidUntil != nil {
		validUntil = *input.ValidUntil
	}
	return s.repo.Create(ctx, Quote{
		QuoteNumber:                fmt.Sprintf("QT-%d", s.now().UnixMilli()),
		OrderID:                    order.ID,
		Status:                     StatusPending,
		ValidUntil:                 validUntil,
		CalculatedInstallationCost: order.InstallationCost,
		Notes:                      input.Notes,
	})
}

// MarkSent records the first outbound notification, moving the quote to
// SENT. Legal from DRAFT and PENDING; already-SENT is a no-op.
func (s *Service) MarkSent(ctx context.Context, id string) (Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	if q.Status == StatusSent {
		return q, nil
	}
	if q.Status != StatusDraft && q.Status != StatusPending {
		return Quote{}, fmt.Errorf("%w: %s -> %s", shared.ErrIllegalStateTransition, q.Status, StatusSent)
	}
	now := s.now()
	return s.repo.UpdateStatus(ctx, id, StatusSent, "", &now, nil, nil)
}

// Accept reserves stock for every line of the underlying order, marks the
// quote ACCEPTED and advances the order to CONFIRMED. The expiry check is
// recomputed against the current clock; an expired quote is force-moved to
// EXPIRED before the error surfaces. Reservation is all-or-nothing; a
// failure in any step after the lines are held releases them again.
func (s *Service) Accept(ctx context.Context, id, notes string) (Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	if q.Status != StatusSent && q.Status != StatusPending {
		return Quote{}, fmt.Errorf("%w: %s -> %s", shared.ErrIllegalStateTransition, q.Status, StatusAccepted)
	}
	if s.now().After(q.ValidUntil) {
		if _, err := s.repo.UpdateStatus(ctx, id, StatusExpired, "", nil, nil, nil); err != nil {
			s.logger.Error("expire quote on late accept", slog.String("quote_id", id), slog.Any("error", err))
		}
		return Quote{}, fmt.Errorf("%w: valid until %s", shared.ErrQuoteExpired, q.ValidUntil.Format(time.RFC3339))
	}

	if err := s.orders.ReserveLines(ctx, q.OrderID); err != nil {
		return Quote{}, err
	}
	if _, err := s.orders.UpdateStatus(ctx, q.OrderID, orders.StatusConfirmed, ""); err != nil {
		s.unwindAccept(ctx, q.OrderID)
		return Quote{}, err
	}
	now := s.now()
	accepted, err := s.repo.UpdateStatus(ctx, id, StatusAccepted, notes, nil, &now, nil)
	if err != nil {
		s.unwindAccept(ctx, q.OrderID)
		return Quote{}, err
	}
	return accepted, nil
}

// unwindAccept releases the reservations taken by a failed accept so the
// quote can be retried from its previous status.
func (s *Service) unwindAccept(ctx context.Context, orderID string) {
	if err := s.orders.ReleaseLines(ctx, orderID); err != nil {
		s.logger.Error("release lines after failed accept",
			slog.String("order_id", orderID), slog.Any("error", err))
	}
}

// Reject moves the quote to REJECTED unconditionally. No order or stock
// side effects.
func (s *Service) Reject(ctx context.Context, id, notes string) (Quote, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Quote{}, err
	}
	now := s.now()
	return s.repo.UpdateStatus(ctx, id, StatusRejected, notes, nil, nil, &now)
}

// CheckExpirations sweeps PENDING/SENT quotes past their validity into
// EXPIRED. Idempotent; safe to run concurrently with accept.
func (s *Service) CheckExpirations(ctx context.Context) (int, error) {
	count, err := s.repo.ExpireOlderThan(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("expired quotes", slog.Int("count", count))
	}
	return count, nil
}

// Get returns a quote by id.
func (s *Service) Get(ctx context.Context, id string) (Quote, error) {
	return s.repo.Get(ctx, id)
}

// GetByOrder returns the quote wrapping an order.
func (s *Service) GetByOrder(ctx context.Context, orderID string) (Quote, error) {
	return s.repo.GetByOrder(ctx, orderID)
}

// List returns quotes matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Quote, shared.Pagination, error) {
	return s.repo.List(ctx, filter)
}

// Order loads the order underlying a quote.
func (s *Service) Order(ctx context.Context, quoteID string) (orders.Order, error) {
	q, err := s.repo.Get(ctx, quoteID)
	if err != nil {
		return orders.Order{}, err
	}
	return s.orders.Get(ctx, q.OrderID)
}
