package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltora/voltora/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (Price, error)
	ByVariant(ctx context.Context, variantID string) ([]Price, error)
	Insert(ctx context.Context, p Price) (Price, error)
	Update(ctx context.Context, id string, amount *decimal.Decimal, minQuantity *int, validFrom, validTo *time.Time, isActive *bool) (Price, error)
	DeactivatePromos(ctx context.Context, variantID string, customerType CustomerType, now time.Time) (int, error)
	HasOverlappingPromo(ctx context.Context, variantID string, customerType CustomerType, minQuantity int, from, to time.Time) (bool, error)
	InsertHistory(ctx context.Context, h HistoryEntry) error
	History(ctx context.Context, variantID string, limit int) ([]HistoryEntry, error)
	ActiveInstallationRate(ctx context.Context, serviceType ServiceType) (InstallationRate, error)
}

// fallbackInstallationCost applies when no active rate row exists.
var fallbackInstallationCost = decimal.NewFromInt(5000)

// Service manages price records and resolution.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateInput describes a new price row.
type CreateInput struct {
	VariantID    string
	PriceType    PriceType
	CustomerType CustomerType
	Amount       decimal.Decimal
	Currency     string
	MinQuantity  int
	ValidFrom    *time.Time
	ValidTo      *time.Time
	IsActive     *bool
	ChangedBy    string
}

// Create inserts a price row and appends the matching history entry.
func (s *Service) Create(ctx context.Context, input CreateInput) (Price, error) {
	if input.Amount.IsNegative() {
		return Price{}, fmt.Errorf("%w: amount must be non-negative", shared.ErrInvalidInput)
	}
	p := Price{
		VariantID:    input.VariantID,
		PriceType:    input.PriceType,
		CustomerType: input.CustomerType,
		Amount:       input.Amount,
		Currency:     input.Currency,
		MinQuantity:  input.MinQuantity,
		ValidTo:      input.ValidTo,
		IsActive:     true,
	}
	if p.Currency == "" {
		p.Currency = defaultCurrency
	}
	if p.MinQuantity <= 0 {
		p.MinQuantity = 1
	}
	if input.ValidFrom != nil {
		p.ValidFrom = *input.ValidFrom
	} else {
		p.ValidFrom = s.now()
	}
	if input.IsActive != nil {
		p.IsActive = *input.IsActive
	}

	created, err := s.repo.Insert(ctx, p)
	if err != nil {
		return Price{}, err
	}
	if err := s.repo.InsertHistory(ctx, HistoryEntry{
		VariantID:    created.VariantID,
		PriceType:    created.PriceType,
		CustomerType: created.CustomerType,
		NewAmount:    created.Amount,
		MinQuantity:  created.MinQuantity,
		ChangedBy:    input.ChangedBy,
		ChangeReason: "Price created",
	}); err != nil {
		return Price{}, err
	}
	return created, nil
}

// UpdateInput describes a price row change.
type UpdateInput struct {
	Amount      *decimal.Decimal
	MinQuantity *int
	ValidFrom   *time.Time
	ValidTo     *time.Time
	IsActive    *bool
	ChangedBy   string
}

// Update changes a price row; an amount change appends a history entry.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (Price, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Price{}, err
	}
	updated, err := s.repo.Update(ctx, id, input.Amount, input.MinQuantity, input.ValidFrom, input.ValidTo, input.IsActive)
	if err != nil {
		return Price{}, err
	}
	if input.Amount != nil && !input.Amount.Equal(existing.Amount) {
		oldAmount := existing.Amount
		if err := s.repo.InsertHistory(ctx, HistoryEntry{
			VariantID:    existing.VariantID,
			PriceType:    existing.PriceType,
			CustomerType: existing.CustomerType,
			OldAmount:    &oldAmount,
			NewAmount:    *input.Amount,
			MinQuantity:  existing.MinQuantity,
			ChangedBy:    input.ChangedBy,
			ChangeReason: "Price updated",
		}); err != nil {
			return Price{}, err
		}
	}
	return updated, nil
}

// PromotionInput describes a time-boxed PROMO row.
type PromotionInput struct {
	VariantID    string
	CustomerType CustomerType
	Amount       decimal.Decimal
	MinQuantity  int
	ValidFrom    time.Time
	ValidTo      time.Time
	ChangedBy    string
}

// ApplyPromotion creates a PROMO row after checking for window overlap.
func (s *Service) ApplyPromotion(ctx context.Context, input PromotionInput) (Price, error) {
	if !input.ValidFrom.Before(input.ValidTo) {
		return Price{}, fmt.Errorf("%w: validFrom must be before validTo", shared.ErrInvalidInput)
	}
	minQty := input.MinQuantity
	if minQty <= 0 {
		minQty = 1
	}
	overlaps, err := s.repo.HasOverlappingPromo(ctx, input.VariantID, input.CustomerType, minQty, input.ValidFrom, input.ValidTo)
	if err != nil {
		return Price{}, err
	}
	if overlaps {
		return Price{}, fmt.Errorf("%w: a promotion already exists for this period", shared.ErrDuplicate)
	}
	return s.Create(ctx, CreateInput{
		VariantID:    input.VariantID,
		PriceType:    PriceTypePromo,
		CustomerType: input.CustomerType,
		Amount:       input.Amount,
		MinQuantity:  minQty,
		ValidFrom:    &input.ValidFrom,
		ValidTo:      &input.ValidTo,
		ChangedBy:    input.ChangedBy,
	})
}

// RemovePromotion deactivates active promotions currently in window.
func (s *Service) RemovePromotion(ctx context.Context, variantID string, customerType CustomerType) (int, error) {
	return s.repo.DeactivatePromos(ctx, variantID, customerType, s.now())
}

// ByVariant lists all price rows for a variant.
func (s *Service) ByVariant(ctx context.Context, variantID string) ([]Price, error) {
	return s.repo.ByVariant(ctx, variantID)
}

// History lists the price change log for a variant.
func (s *Service) History(ctx context.Context, variantID string, limit int) ([]HistoryEntry, error) {
	return s.repo.History(ctx, variantID, limit)
}

// ResolveForVariant loads price rows and resolves the advertised pricing.
func (s *Service) ResolveForVariant(ctx context.Context, variantID string, customerType CustomerType) (Resolution, error) {
	prices, err := s.repo.ByVariant(ctx, variantID)
	if err != nil {
		return Resolution{}, err
	}
	return Resolve(prices, customerType, s.now()), nil
}

// EffectivePrice selects the tier applicable to an ordered quantity.
func (s *Service) EffectivePrice(ctx context.Context, variantID string, customerType CustomerType, quantity int) (*Price, error) {
	prices, err := s.repo.ByVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	return EffectiveUnitPrice(prices, customerType, quantity, s.now()), nil
}

// InstallationCost prices installation work: hourly rate times the number
// of installation-requiring units, with a fixed fallback when no active
// rate row exists.
func (s *Service) InstallationCost(ctx context.Context, lines []InstallationLine, serviceType ServiceType) (decimal.Decimal, error) {
	if serviceType == "" {
		serviceType = ServiceTypeElectricalInstallation
	}
	units := 0
	for _, line := range lines {
		if line.RequiresInstallation {
			units += line.Quantity
		}
	}
	if units == 0 {
		return decimal.Zero, nil
	}
	rate, err := s.repo.ActiveInstallationRate(ctx, serviceType)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fallbackInstallationCost, nil
		}
		return decimal.Zero, err
	}
	return rate.HourlyRate.Mul(decimal.NewFromInt(int64(units))), nil
}
