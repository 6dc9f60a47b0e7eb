package pricing

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/voltora/voltora/internal/shared"
)

type memoryPriceRepo struct {
	prices   map[string]Price
	history  []HistoryEntry
	rates    map[ServiceType]InstallationRate
	nextID   int
	uniqueVi map[string]struct{}
}

func newMemoryPriceRepo() *memoryPriceRepo {
	return &memoryPriceRepo{
		prices:   map[string]Price{},
		rates:    map[ServiceType]InstallationRate{},
		uniqueVi: map[string]struct{}{},
	}
}

func (m *memoryPriceRepo) Get(_ context.Context, id string) (Price, error) {
	p, ok := m.prices[id]
	if !ok {
		return Price{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryPriceRepo) ByVariant(_ context.Context, variantID string) ([]Price, error) {
	out := []Price{}
	for _, p := range m.prices {
		if p.VariantID == variantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func uniqueKey(p Price) string {
	return p.VariantID + "|" + string(p.PriceType) + "|" + string(p.CustomerType) + "|" +
		p.ValidFrom.Format(time.RFC3339) + "|" + strconv.Itoa(p.MinQuantity)
}

func (m *memoryPriceRepo) Insert(_ context.Context, p Price) (Price, error) {
	key := uniqueKey(p)
	if _, exists := m.uniqueVi[key]; exists {
		return Price{}, shared.ErrDuplicate
	}
	m.uniqueVi[key] = struct{}{}
	m.nextID++
	p.ID = strconv.Itoa(m.nextID)
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.prices[p.ID] = p
	return p, nil
}

func (m *memoryPriceRepo) Update(_ context.Context, id string, amount *decimal.Decimal, minQuantity *int, validFrom, validTo *time.Time, isActive *bool) (Price, error) {
	p, ok := m.prices[id]
	if !ok {
		return Price{}, shared.ErrNotFound
	}
	if amount != nil {
		p.Amount = *amount
	}
	if minQuantity != nil {
		p.MinQuantity = *minQuantity
	}
	if validFrom != nil {
		p.ValidFrom = *validFrom
	}
	if validTo != nil {
		p.ValidTo = validTo
	}
	if isActive != nil {
		p.IsActive = *isActive
	}
	p.UpdatedAt = time.Now()
	m.prices[id] = p
	return p, nil
}

func (m *memoryPriceRepo) DeactivatePromos(_ context.Context, variantID string, customerType CustomerType, now time.Time) (int, error) {
	count := 0
	for id, p := range m.prices {
		if p.VariantID == variantID && p.CustomerType == customerType && p.PriceType == PriceTypePromo && p.ActiveAt(now) {
			p.IsActive = false
			m.prices[id] = p
			count++
		}
	}
	return count, nil
}

func (m *memoryPriceRepo) HasOverlappingPromo(_ context.Context, variantID string, customerType CustomerType, minQuantity int, from, to time.Time) (bool, error) {
	for _, p := range m.prices {
		if p.VariantID != variantID || p.CustomerType != customerType || p.PriceType != PriceTypePromo ||
			p.MinQuantity != minQuantity || !p.IsActive {
			continue
		}
		if !p.ValidFrom.After(to) && (p.ValidTo == nil || !p.ValidTo.Before(from)) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryPriceRepo) InsertHistory(_ context.Context, h HistoryEntry) error {
	h.CreatedAt = time.Now()
	m.history = append(m.history, h)
	return nil
}

func (m *memoryPriceRepo) History(_ context.Context, variantID string, _ int) ([]HistoryEntry, error) {
	out := []HistoryEntry{}
	for _, h := range m.history {
		if h.VariantID == variantID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memoryPriceRepo) ActiveInstallationRate(_ context.Context, serviceType ServiceType) (InstallationRate, error) {
	rate, ok := m.rates[serviceType]
	if !ok || !rate.IsActive {
		return InstallationRate{}, shared.ErrNotFound
	}
	return rate, nil
}

func TestCreateWritesHistory(t *testing.T) {
	repo := newMemoryPriceRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), CreateInput{
		VariantID:    "var-1",
		PriceType:    PriceTypeBase,
		CustomerType: CustomerTypeB2C,
		Amount:       decimal.NewFromInt(1000),
		ChangedBy:    "admin",
	})
	require.NoError(t, err)
	require.Equal(t, "XAF", created.Currency)
	require.Equal(t, 1, created.MinQuantity)
	require.True(t, created.IsActive)

	history, err := svc.History(context.Background(), "var-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Nil(t, history[0].OldAmount)
	require.True(t, history[0].NewAmount.Equal(decimal.NewFromInt(1000)))
	require.Equal(t, "admin", history[0].ChangedBy)
}

func TestCreateRejectsNegativeAmount(t *testing.T) {
	svc := NewService(newMemoryPriceRepo())

	_, err := svc.Create(context.Background(), CreateInput{
		VariantID:    "var-1",
		PriceType:    PriceTypeBase,
		CustomerType: CustomerTypeB2C,
		Amount:       decimal.NewFromInt(-5),
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestUpdateAmountAppendsHistoryWithOldAmount(t *testing.T) {
	repo := newMemoryPriceRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), CreateInput{
		VariantID:    "var-1",
		PriceType:    PriceTypeBase,
		CustomerType: CustomerTypeB2C,
		Amount:       decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	newAmount := decimal.NewFromInt(1200)
	updated, err := svc.Update(context.Background(), created.ID, UpdateInput{Amount: &newAmount, ChangedBy: "admin"})
	require.NoError(t, err)
	require.True(t, updated.Amount.Equal(newAmount))

	history, err := svc.History(context.Background(), "var-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	last := history[len(history)-1]
	require.NotNil(t, last.OldAmount)
	require.True(t, last.OldAmount.Equal(decimal.NewFromInt(1000)))
	require.True(t, last.NewAmount.Equal(newAmount))
}

func TestUpdateWithoutAmountChangeSkipsHistory(t *testing.T) {
	repo := newMemoryPriceRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), CreateInput{
		VariantID:    "var-1",
		PriceType:    PriceTypeBase,
		CustomerType: CustomerTypeB2C,
		Amount:       decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(context.Background(), created.ID, UpdateInput{IsActive: &inactive})
	require.NoError(t, err)

	history, err := svc.History(context.Background(), "var-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestApplyPromotionRejectsOverlap(t *testing.T) {
	repo := newMemoryPriceRepo()
	svc := NewService(repo)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	_, err := svc.ApplyPromotion(context.Background(), PromotionInput{
		VariantID:    "var-1",
		CustomerType: CustomerTypeB2C,
		Amount:       decimal.NewFromInt(500),
		ValidFrom:    from,
		ValidTo:      to,
	})
	require.NoError(t, err)

	overlapFrom := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	overlapTo := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	_, err = svc.ApplyPromotion(context.Background(), PromotionInput{
		VariantID:    "var-1",
		CustomerType: CustomerTypeB2C,
		Amount:       decimal.NewFromInt(450),
		ValidFrom:    overlapFrom,
		ValidTo:      overlapTo,
	})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestApplyPromotionRejectsInvertedWindow(t *testing.T) {
	svc := NewService(newMemoryPriceRepo())

	from := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.ApplyPromotion(context.Background(), PromotionInput{
		VariantID:    "var-1",
		CustomerType: CustomerTypeB2C,
		Amount:       decimal.NewFromInt(500),
		ValidFrom:    from,
		ValidTo:      to,
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestRemovePromotionDeactivatesActiveWindow(t *testing.T) {
	repo := newMemoryPriceRepo()
	svc := NewService(repo)
	now := time.Now()
	svc.now = func() time.Time { return now }

	from := now.Add(-24 * time.Hour)
	to := now.Add(24 * time.Hour)
	_, err := svc.ApplyPromotion(context.Background(), PromotionInput{
		VariantID:    "var-1",
		CustomerType: CustomerTypeB2C,
		Amount:       decimal.NewFromInt(500),
		ValidFrom:    from,
		ValidTo:      to,
	})
	require.NoError(t, err)

	count, err := svc.RemovePromotion(context.Background(), "var-1", CustomerTypeB2C)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	res, err := svc.ResolveForVariant(context.Background(), "var-1", CustomerTypeB2C)
	require.NoError(t, err)
	require.Nil(t, res.UnitPrice)
}

func TestInstallationCostUsesActiveRate(t *testing.T) {
	repo := newMemoryPriceRepo()
	repo.rates[ServiceTypeElectricalInstallation] = InstallationRate{
		ID:          "rate-1",
		ServiceType: ServiceTypeElectricalInstallation,
		HourlyRate:  decimal.NewFromInt(3000),
		IsActive:    true,
	}
	svc := NewService(repo)

	cost, err := svc.InstallationCost(context.Background(), []InstallationLine{
		{Quantity: 2, RequiresInstallation: true},
		{Quantity: 5, RequiresInstallation: false},
		{Quantity: 1, RequiresInstallation: true},
	}, ServiceTypeElectricalInstallation)
	require.NoError(t, err)
	require.True(t, cost.Equal(decimal.NewFromInt(9000)))
}

func TestInstallationCostFallbackWithoutRate(t *testing.T) {
	svc := NewService(newMemoryPriceRepo())

	cost, err := svc.InstallationCost(context.Background(), []InstallationLine{
		{Quantity: 3, RequiresInstallation: true},
	}, ServiceTypeElectricalInstallation)
	require.NoError(t, err)
	require.True(t, cost.Equal(decimal.NewFromInt(5000)))
}

func TestInstallationCostZeroWhenNothingRequiresIt(t *testing.T) {
	svc := NewService(newMemoryPriceRepo())

	cost, err := svc.InstallationCost(context.Background(), []InstallationLine{
		{Quantity: 3, RequiresInstallation: false},
	}, "")
	require.NoError(t, err)
	require.True(t, cost.IsZero())
}
