package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltora/voltora/internal/cart"
	"github.com/voltora/voltora/internal/pricing"
	"github.com/voltora/voltora/internal/shared"
	"github.com/voltora/voltora/internal/stock"
)

// RepositoryPort abstracts order persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	GetByNumber(ctx context.Context, number string) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, shared.Pagination, error)
	UpdateStatus(ctx context.Context, id string, status Status, notes string, confirmedAt, completedAt *time.Time) (Order, error)
	SetInstallationSchedule(ctx context.Context, id string, at time.Time) (Order, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}

// Ledger is the slice of the stock ledger the order flow drives.
type Ledger interface {
	Reserve(ctx context.Context, variantID string, qty int, ref stock.Ref) (stock.Stock, error)
	Release(ctx context.Context, variantID string, qty int, ref stock.Ref) (stock.Stock, error)
	ConfirmDeduction(ctx context.Context, variantID string, qty int, ref stock.Ref) (stock.Stock, error)
}

// CartSource produces priced snapshots and clears carts after checkout.
type CartSource interface {
	Snapshot(ctx context.Context, cartID string, customerType pricing.CustomerType) (cart.Snapshot, error)
	Clear(ctx context.Context, cartID string) error
}

// InstallationPricer computes installation cost for order lines.
type InstallationPricer interface {
	InstallationCost(ctx context.Context, lines []pricing.InstallationLine, serviceType pricing.ServiceType) (decimal.Decimal, error)
}

// Service orchestrates the order lifecycle.
type Service struct {
	logger       *slog.Logger
	repo         RepositoryPort
	ledger       Ledger
	carts        CartSource
	installation InstallationPricer
	deliveryRate decimal.Decimal
	currency     string
	now          func() time.Time
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, ledger Ledger, carts CartSource, installation InstallationPricer, deliveryRate decimal.Decimal, currency string) *Service {
	if currency == "" {
		currency = "XAF"
	}
	return &Service{
		logger:       logger,
		repo:         repo,
		ledger:       ledger,
		carts:        carts,
		installation: installation,
		deliveryRate: deliveryRate,
		currency:     currency,
		now:          time.Now,
	}
}

// CreateInput describes a checkout request.
type CreateInput struct {
	CartID          string
	CustomerID      *string
	CustomerType    pricing.CustomerType
	DeliveryMethod  DeliveryMethod
	ShippingAddress *string
	BillingAddress  *string
	Notes           string
	InitialStatus   Status
}

// Create builds an order from a cart snapshot. Physical lines are reserved
// all-or-nothing: any reservation failure releases what was already held
// and aborts. Quote shells (initial status DRAFT) skip reservation; the
// quote accept step reserves later. The cart is cleared on success.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	if input.CustomerType == "" {
		input.CustomerType = pricing.CustomerTypeB2C
	}
	if input.DeliveryMethod == "" {
		input.DeliveryMethod = DeliveryMethodPickup
	}
	if input.InitialStatus == "" {
		input.InitialStatus = StatusPending
	}

	snap, err := s.carts.Snapshot(ctx, input.CartID, input.CustomerType)
	if err != nil {
		return Order{}, err
	}
	if len(snap.Items) == 0 {
		return Order{}, shared.ErrEmptyCart
	}

	o := Order{
		Status:          input.InitialStatus,
		CustomerID:      input.CustomerID,
		Subtotal:        snap.Subtotal,
		DeliveryCost:    decimal.Zero,
		Currency:        s.currency,
		DeliveryMethod:  input.DeliveryMethod,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
		Notes:           input.Notes,
	}
	installLines := make([]pricing.InstallationLine, 0, len(snap.Items))
	for _, line := range snap.Items {
		o.Items = append(o.Items, OrderItem{
			VariantID:      line.VariantID,
			ServiceID:      line.ServiceID,
			SKU:            line.SKU,
			Name:           line.Name,
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			TotalPrice:     line.TotalPrice,
			IsDropshipping: line.IsDropshipping,
		})
		if line.RequiresInstallation {
			o.RequiresInstallation = true
		}
		installLines = append(installLines, pricing.InstallationLine{
			Quantity:             line.Quantity,
			RequiresInstallation: line.RequiresInstallation,
		})
	}

	if input.DeliveryMethod != DeliveryMethodPickup && input.ShippingAddress != nil {
		o.DeliveryCost = s.deliveryRate
	}
	o.InstallationCost, err = s.installation.InstallationCost(ctx, installLines, pricing.ServiceTypeElectricalInstallation)
	if err != nil {
		return Order{}, err
	}
	o.TotalAmount = o.Subtotal.Add(o.DeliveryCost).Add(o.InstallationCost)

	o.OrderNumber, err = s.nextOrderNumber(ctx)
	if err != nil {
		return Order{}, err
	}

	reserve := input.InitialStatus != StatusDraft
	if reserve {
		if err := s.reserveLines(ctx, o.ID, o.OrderNumber, o.Items); err != nil {
			return Order{}, err
		}
	}

	created, err := s.repo.Create(ctx, o)
	if err != nil {
		if reserve {
			s.releaseLines(ctx, o.OrderNumber, o.Items)
		}
		return Order{}, err
	}
	if err := s.carts.Clear(ctx, input.CartID); err != nil {
		s.logger.Warn("clear cart after checkout", slog.String("cart_id", input.CartID), slog.Any("error", err))
	}
	return created, nil
}

// ReserveLines holds stock for every physical line of an existing order,
// releasing partial holds on failure. Used by the quote accept step.
func (s *Service) ReserveLines(ctx context.Context, orderID string) error {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	return s.reserveLines(ctx, o.ID, o.OrderNumber, o.Items)
}

// ReleaseLines returns every reserved physical line of an order to the
// available pool. Used to unwind a quote accept that failed after its
// reservations landed.
func (s *Service) ReleaseLines(ctx context.Context, orderID string) error {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	s.releaseLines(ctx, o.OrderNumber, o.Items)
	return nil
}

func (s *Service) reserveLines(ctx context.Context, orderID, orderNumber string, items []OrderItem) error {
	ref := stock.Ref{Type: stock.ReferenceTypeOrder, ID: orderRef(orderID, orderNumber)}
	reserved := []OrderItem{}
	for _, item := range items {
		if !item.NeedsStock() {
			continue
		}
		if _, err := s.ledger.Reserve(ctx, *item.VariantID, item.Quantity, ref); err != nil {
			s.releaseLines(ctx, orderNumber, reserved)
			return fmt.Errorf("reserve %s: %w", *item.VariantID, err)
		}
		reserved = append(reserved, item)
	}
	return nil
}

func (s *Service) releaseLines(ctx context.Context, orderNumber string, items []OrderItem) {
	for _, item := range items {
		if !item.NeedsStock() {
			continue
		}
		ref := stock.Ref{Type: stock.ReferenceTypeOrder, ID: orderNumber}
		if _, err := s.ledger.Release(ctx, *item.VariantID, item.Quantity, ref); err != nil {
			s.logger.Error("compensating release failed",
				slog.String("variant_id", *item.VariantID),
				slog.String("order_number", orderNumber),
				slog.Any("error", err))
		}
	}
}

func orderRef(orderID, orderNumber string) string {
	if orderNumber != "" {
		return orderNumber
	}
	return orderID
}

// UpdateStatus applies a validated status transition. Side effects follow
// the target state: DELIVERED converts reservations into sales and stamps
// CompletedAt, CANCELLED frees the reservations.
func (s *Service) UpdateStatus(ctx context.Context, id string, target Status, notes string) (Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.Status == target {
		return o, nil
	}
	if !CanTransition(o.Status, target) {
		return Order{}, fmt.Errorf("%w: %s -> %s", shared.ErrIllegalStateTransition, o.Status, target)
	}

	var confirmedAt, completedAt *time.Time
	switch target {
	case StatusConfirmed:
		now := s.now()
		confirmedAt = &now
	case StatusCompleted:
		now := s.now()
		completedAt = &now
	case StatusDelivered:
		ref := stock.Ref{Type: stock.ReferenceTypeOrder, ID: o.OrderNumber}
		for _, item := range o.Items {
			if !item.NeedsStock() {
				continue
			}
			if _, err := s.ledger.ConfirmDeduction(ctx, *item.VariantID, item.Quantity, ref); err != nil {
				return Order{}, fmt.Errorf("confirm deduction %s: %w", *item.VariantID, err)
			}
		}
		now := s.now()
		completedAt = &now
	case StatusCancelled:
		ref := stock.Ref{Type: stock.ReferenceTypeOrder, ID: o.OrderNumber}
		for _, item := range o.Items {
			if !item.NeedsStock() {
				continue
			}
			if _, err := s.ledger.Release(ctx, *item.VariantID, item.Quantity, ref); err != nil {
				s.logger.Error("release on cancellation failed",
					slog.String("variant_id", *item.VariantID),
					slog.String("order_id", o.ID),
					slog.Any("error", err))
			}
		}
	}
	return s.repo.UpdateStatus(ctx, id, target, notes, confirmedAt, completedAt)
}

// ApplyPaymentStatus promotes an order on behalf of the payment flow.
// Only the two sanctioned promotions bypass the transition table: full
// payment moves DRAFT/PENDING/AWAITING_PAYMENT to PAID, a partial payment
// moves DRAFT to PENDING.
func (s *Service) ApplyPaymentStatus(ctx context.Context, id string, target Status) (Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	switch target {
	case StatusPaid:
		if o.Status != StatusDraft && o.Status != StatusPending && o.Status != StatusAwaitingPayment {
			return o, nil
		}
	case StatusPending:
		if o.Status != StatusDraft {
			return o, nil
		}
	default:
		return Order{}, fmt.Errorf("%w: payment flow cannot set %s", shared.ErrIllegalStateTransition, target)
	}
	return s.repo.UpdateStatus(ctx, id, target, "", nil, nil)
}

// ScheduleInstallation stamps the installation slot and forces the order
// into IN_PROGRESS.
func (s *Service) ScheduleInstallation(ctx context.Context, id string, at time.Time) (Order, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Order{}, err
	}
	return s.repo.SetInstallationSchedule(ctx, id, at)
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	return s.repo.Get(ctx, id)
}

// GetByNumber returns an order by its number.
func (s *Service) GetByNumber(ctx context.Context, number string) (Order, error) {
	return s.repo.GetByNumber(ctx, number)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, shared.Pagination, error) {
	return s.repo.List(ctx, filter)
}

// nextOrderNumber issues ORD-YYYYMMDD-NNNN with a per-day sequence.
func (s *Service) nextOrderNumber(ctx context.Context) (string, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := s.repo.CountCreatedSince(ctx, midnight)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102"), count+1), nil
}
