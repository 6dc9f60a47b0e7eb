package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltora/voltora/internal/catalogue"
	"github.com/voltora/voltora/internal/pricing"
	"github.com/voltora/voltora/internal/shared"
	"github.com/voltora/voltora/internal/stock"
)

// RepositoryPort abstracts cart persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (Cart, error)
	FindByCustomer(ctx context.Context, customerID string) (Cart, error)
	FindBySession(ctx context.Context, sessionID string) (Cart, error)
	Create(ctx context.Context, customerID, sessionID *string, expiresAt time.Time) (Cart, error)
	Touch(ctx context.Context, id string, expiresAt time.Time) error
	UpsertItem(ctx context.Context, cartID string, variantID, serviceID *string, quantity int) (CartItem, error)
	SetItemQuantity(ctx context.Context, cartID, itemID string, quantity int) (CartItem, error)
	RemoveItem(ctx context.Context, cartID, itemID string) error
	Clear(ctx context.Context, cartID string) error
	Delete(ctx context.Context, cartID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// PriceSelector yields the price tier applicable to an ordered quantity.
type PriceSelector interface {
	EffectivePrice(ctx context.Context, variantID string, customerType pricing.CustomerType, quantity int) (*pricing.Price, error)
}

// StockReader reads current stock levels.
type StockReader interface {
	Get(ctx context.Context, variantID string) (stock.Stock, error)
}

// Service assembles carts into priced snapshots.
type Service struct {
	repo     RepositoryPort
	prices   PriceSelector
	stocks   StockReader
	variants catalogue.VariantReader
	ttl      time.Duration
	currency string
	now      func() time.Time
}

// NewService builds Service. ttl governs cart expiry.
func NewService(repo RepositoryPort, prices PriceSelector, stocks StockReader, variants catalogue.VariantReader, ttl time.Duration, currency string) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if currency == "" {
		currency = "XAF"
	}
	return &Service{repo: repo, prices: prices, stocks: stocks, variants: variants, ttl: ttl, currency: currency, now: time.Now}
}

// GetOrCreate returns the active cart for a customer or session, creating
// one when absent or expired. Exactly one of customerID/sessionID must be
// set.
func (s *Service) GetOrCreate(ctx context.Context, customerID, sessionID *string) (Cart, error) {
	if (customerID == nil) == (sessionID == nil) {
		return Cart{}, fmt.Errorf("%w: exactly one of customer_id or session_id required", shared.ErrInvalidInput)
	}
	var existing Cart
	var err error
	if customerID != nil {
		existing, err = s.repo.FindByCustomer(ctx, *customerID)
	} else {
		existing, err = s.repo.FindBySession(ctx, *sessionID)
	}
	switch {
	case err == nil:
		if existing.ExpiresAt.After(s.now()) {
			if err := s.repo.Touch(ctx, existing.ID, s.now().Add(s.ttl)); err != nil {
				return Cart{}, err
			}
			return existing, nil
		}
		if err := s.repo.Delete(ctx, existing.ID); err != nil {
			return Cart{}, err
		}
	case !errors.Is(err, shared.ErrNotFound):
		return Cart{}, err
	}
	return s.repo.Create(ctx, customerID, sessionID, s.now().Add(s.ttl))
}

// AddItemInput identifies the line to add.
type AddItemInput struct {
	VariantID *string
	ServiceID *string
	Quantity  int
}

// AddItem appends or increments a cart line.
func (s *Service) AddItem(ctx context.Context, cartID string, input AddItemInput) (Cart, error) {
	if input.Quantity <= 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidInput)
	}
	if (input.VariantID == nil) == (input.ServiceID == nil) {
		return Cart{}, fmt.Errorf("%w: exactly one of variant_id or service_id required", shared.ErrInvalidInput)
	}
	if input.VariantID != nil {
		variant, err := s.variants.Variant(ctx, *input.VariantID)
		if err != nil {
			return Cart{}, err
		}
		if !variant.IsActive {
			return Cart{}, fmt.Errorf("%w: variant is not active", shared.ErrInvalidInput)
		}
	}
	if _, err := s.repo.UpsertItem(ctx, cartID, input.VariantID, input.ServiceID, input.Quantity); err != nil {
		return Cart{}, err
	}
	return s.repo.Get(ctx, cartID)
}

// UpdateItem overwrites a line quantity; zero or less removes the line.
func (s *Service) UpdateItem(ctx context.Context, cartID, itemID string, quantity int) (Cart, error) {
	if quantity <= 0 {
		if err := s.repo.RemoveItem(ctx, cartID, itemID); err != nil {
			return Cart{}, err
		}
	} else if _, err := s.repo.SetItemQuantity(ctx, cartID, itemID, quantity); err != nil {
		return Cart{}, err
	}
	return s.repo.Get(ctx, cartID)
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID string) (Cart, error) {
	if err := s.repo.RemoveItem(ctx, cartID, itemID); err != nil {
		return Cart{}, err
	}
	return s.repo.Get(ctx, cartID)
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, cartID string) error {
	return s.repo.Clear(ctx, cartID)
}

// MergeGuestCart folds an anonymous session cart into the customer's cart
// after sign-in, then deletes the session cart.
func (s *Service) MergeGuestCart(ctx context.Context, sessionID, customerID string) (Cart, error) {
	guest, err := s.repo.FindBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return s.GetOrCreate(ctx, &customerID, nil)
		}
		return Cart{}, err
	}
	target, err := s.GetOrCreate(ctx, &customerID, nil)
	if err != nil {
		return Cart{}, err
	}
	for _, item := range guest.Items {
		if _, err := s.repo.UpsertItem(ctx, target.ID, item.VariantID, item.ServiceID, item.Quantity); err != nil {
			return Cart{}, err
		}
	}
	if err := s.repo.Delete(ctx, guest.ID); err != nil {
		return Cart{}, err
	}
	return s.repo.Get(ctx, target.ID)
}

// PurgeExpired removes expired carts, returning the count.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

// Snapshot prices the cart for a customer class and annotates stock
// availability. Service lines are priced zero and flagged RequiresQuote;
// dropshipping lines are always available.
func (s *Service) Snapshot(ctx context.Context, cartID string, customerType pricing.CustomerType) (Snapshot, error) {
	c, err := s.repo.Get(ctx, cartID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		CartID:     c.ID,
		CustomerID: c.CustomerID,
		Items:      []SnapshotItem{},
		Subtotal:   decimal.Zero,
		Currency:   s.currency,
	}

	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		if !item.IsService() {
			ids = append(ids, *item.VariantID)
		}
	}
	variants := map[string]catalogue.VariantInfo{}
	if len(ids) > 0 {
		variants, err = s.variants.Variants(ctx, ids)
		if err != nil {
			return Snapshot{}, err
		}
	}

	for _, item := range c.Items {
		line, err := s.snapshotItem(ctx, item, customerType, variants)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Items = append(snap.Items, line)
		snap.Subtotal = snap.Subtotal.Add(line.TotalPrice)
		snap.Summary.TotalItems++
		snap.Summary.TotalQuantity += line.Quantity
		if !line.Available {
			snap.Summary.UnavailableItems++
		}
	}
	return snap, nil
}

func (s *Service) snapshotItem(ctx context.Context, item CartItem, customerType pricing.CustomerType, variants map[string]catalogue.VariantInfo) (SnapshotItem, error) {
	if item.IsService() {
		return SnapshotItem{
			ServiceID:     item.ServiceID,
			Name:          "Service",
			Quantity:      item.Quantity,
			UnitPrice:     decimal.Zero,
			TotalPrice:    decimal.Zero,
			Available:     true,
			RequiresQuote: true,
		}, nil
	}

	variant, ok := variants[*item.VariantID]
	if !ok {
		return SnapshotItem{}, fmt.Errorf("load variant %s: %w", *item.VariantID, shared.ErrNotFound)
	}
	line := SnapshotItem{
		VariantID:            item.VariantID,
		SKU:                  variant.SKU,
		Name:                 variant.Name,
		ProductName:          variant.ProductName,
		Quantity:             item.Quantity,
		UnitPrice:            decimal.Zero,
		TotalPrice:           decimal.Zero,
		RequiresInstallation: variant.RequiresInstallation,
		IsDropshipping:       variant.IsDropshipping,
	}

	price, err := s.prices.EffectivePrice(ctx, *item.VariantID, customerType, item.Quantity)
	if err != nil {
		return SnapshotItem{}, err
	}
	if price != nil {
		line.UnitPrice = price.Amount
		line.TotalPrice = price.Amount.Mul(decimal.NewFromInt(int64(item.Quantity)))
	}

	if variant.IsDropshipping {
		line.Available = true
		line.AvailableQuantity = item.Quantity
		return line, nil
	}
	level, err := s.stocks.Get(ctx, *item.VariantID)
	switch {
	case err == nil:
		line.AvailableQuantity = level.Available()
		line.Available = line.AvailableQuantity >= item.Quantity
	case errors.Is(err, shared.ErrNotFound):
		line.Available = false
	default:
		return SnapshotItem{}, err
	}
	return line, nil
}
