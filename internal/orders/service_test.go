package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/voltora/voltora/internal/cart"
	"github.com/voltora/voltora/internal/pricing"
	"github.com/voltora/voltora/internal/shared"
	"github.com/voltora/voltora/internal/stock"
)

type memoryOrderRepo struct {
	orders map[string]*Order
	nextID int
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{orders: map[string]*Order{}}
}

func (m *memoryOrderRepo) Create(_ context.Context, o Order) (Order, error) {
	m.nextID++
	o.ID = "order-" + strconv.Itoa(m.nextID)
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		o.Items[i].ID = fmt.Sprintf("%s-item-%d", o.ID, i+1)
		o.Items[i].OrderID = o.ID
	}
	stored := o
	m.orders[o.ID] = &stored
	return o, nil
}

func (m *memoryOrderRepo) Get(_ context.Context, id string) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	return *o, nil
}

func (m *memoryOrderRepo) GetByNumber(_ context.Context, number string) (Order, error) {
	for _, o := range m.orders {
		if o.OrderNumber == number {
			return *o, nil
		}
	}
	return Order{}, shared.ErrNotFound
}

func (m *memoryOrderRepo) List(_ context.Context, filter ListFilter) ([]Order, shared.Pagination, error) {
	out := []Order{}
	for _, o := range m.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, len(out)), nil
}

func (m *memoryOrderRepo) UpdateStatus(_ context.Context, id string, status Status, notes string, confirmedAt, completedAt *time.Time) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	o.Status = status
	if notes != "" {
		o.Notes = notes
	}
	if confirmedAt != nil {
		o.ConfirmedAt = confirmedAt
	}
	if completedAt != nil {
		o.CompletedAt = completedAt
	}
	o.UpdatedAt = time.Now()
	return *o, nil
}

func (m *memoryOrderRepo) SetInstallationSchedule(_ context.Context, id string, at time.Time) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	o.InstallationScheduledAt = &at
	o.Status = StatusInProgress
	return *o, nil
}

func (m *memoryOrderRepo) CountCreatedSince(_ context.Context, _ time.Time) (int, error) {
	return len(m.orders), nil
}

type ledgerCall struct {
	op        string
	variantID string
	qty       int
}

type fakeLedger struct {
	available map[string]int
	reserved  map[string]int
	calls     []ledgerCall
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{available: map[string]int{}, reserved: map[string]int{}}
}

func (f *fakeLedger) Reserve(_ context.Context, variantID string, qty int, _ stock.Ref) (stock.Stock, error) {
	f.calls = append(f.calls, ledgerCall{"reserve", variantID, qty})
	if f.available[variantID]-f.reserved[variantID] < qty {
		return stock.Stock{}, shared.ErrInsufficientStock
	}
	f.reserved[variantID] += qty
	return stock.Stock{VariantID: variantID, Quantity: f.available[variantID], ReservedQuantity: f.reserved[variantID]}, nil
}

func (f *fakeLedger) Release(_ context.Context, variantID string, qty int, _ stock.Ref) (stock.Stock, error) {
	f.calls = append(f.calls, ledgerCall{"release", variantID, qty})
	if f.reserved[variantID] < qty {
		return stock.Stock{}, shared.ErrOverRelease
	}
	f.reserved[variantID] -= qty
	return stock.Stock{VariantID: variantID, Quantity: f.available[variantID], ReservedQuantity: f.reserved[variantID]}, nil
}

func (f *fakeLedger) ConfirmDeduction(_ context.Context, variantID string, qty int, _ stock.Ref) (stock.Stock, error) {
	f.calls = append(f.calls, ledgerCall{"confirm", variantID, qty})
	f.available[variantID] -= qty
	if f.reserved[variantID] >= qty {
		f.reserved[variantID] -= qty
	}
	return stock.Stock{VariantID: variantID, Quantity: f.available[variantID], ReservedQuantity: f.reserved[variantID]}, nil
}

type fakeCartSource struct {
	snapshots map[string]cart.Snapshot
	cleared   []string
}

func (f *fakeCartSource) Snapshot(_ context.Context, cartID string, _ pricing.CustomerType) (cart.Snapshot, error) {
	snap, ok := f.snapshots[cartID]
	if !ok {
		return cart.Snapshot{}, shared.ErrNotFound
	}
	return snap, nil
}

func (f *fakeCartSource) Clear(_ context.Context, cartID string) error {
	f.cleared = append(f.cleared, cartID)
	return nil
}

type fakeInstallationPricer struct {
	cost decimal.Decimal
}

func (f *fakeInstallationPricer) InstallationCost(_ context.Context, lines []pricing.InstallationLine, _ pricing.ServiceType) (decimal.Decimal, error) {
	for _, l := range lines {
		if l.RequiresInstallation {
			return f.cost, nil
		}
	}
	return decimal.Zero, nil
}

func strPtr(s string) *string { return &s }

func snapshotLine(variantID string, qty int, unit int64) cart.SnapshotItem {
	unitPrice := decimal.NewFromInt(unit)
	return cart.SnapshotItem{
		VariantID:  strPtr(variantID),
		SKU:        "SKU-" + variantID,
		Name:       "Item " + variantID,
		Quantity:   qty,
		UnitPrice:  unitPrice,
		TotalPrice: unitPrice.Mul(decimal.NewFromInt(int64(qty))),
		Available:  true,
	}
}

func testSnapshot(lines ...cart.SnapshotItem) cart.Snapshot {
	snap := cart.Snapshot{CartID: "cart-1", Items: lines, Subtotal: decimal.Zero, Currency: "XAF"}
	for _, l := range lines {
		snap.Subtotal = snap.Subtotal.Add(l.TotalPrice)
	}
	return snap
}

func newTestService(repo *memoryOrderRepo, ledger *fakeLedger, carts *fakeCartSource) *Service {
	return NewService(slog.Default(), repo, ledger, carts, &fakeInstallationPricer{cost: decimal.NewFromInt(5000)},
		decimal.NewFromInt(2000), "XAF")
}

func TestCreateEmptyCartNoStockMutations(t *testing.T) {
	repo := newMemoryOrderRepo()
	ledger := newFakeLedger()
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{"cart-1": testSnapshot()}}
	svc := newTestService(repo, ledger, carts)

	_, err := svc.Create(context.Background(), CreateInput{CartID: "cart-1"})
	require.ErrorIs(t, err, shared.ErrEmptyCart)
	require.Empty(t, ledger.calls)
	require.Empty(t, repo.orders)
	require.Empty(t, carts.cleared)
}

func TestCreateReservationFailureReleasesEarlierLines(t *testing.T) {
	repo := newMemoryOrderRepo()
	ledger := newFakeLedger()
	ledger.available["var-1"] = 10
	ledger.available["var-2"] = 1
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{
		"cart-1": testSnapshot(snapshotLine("var-1", 2, 1000), snapshotLine("var-2", 5, 500)),
	}}
	svc := newTestService(repo, ledger, carts)

	_, err := svc.Create(context.Background(), CreateInput{CartID: "cart-1"})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Empty(t, repo.orders)
	require.Zero(t, ledger.reserved["var-1"])
	require.Zero(t, ledger.reserved["var-2"])
	require.Empty(t, carts.cleared)
}

func TestCreateReservesPersistsAndClearsCart(t *testing.T) {
	repo := newMemoryOrderRepo()
	ledger := newFakeLedger()
	ledger.available["var-1"] = 10
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{
		"cart-1": testSnapshot(snapshotLine("var-1", 3, 1000)),
	}}
	svc := newTestService(repo, ledger, carts)

	addr := "12 Rue des Manguiers"
	o, err := svc.Create(context.Background(), CreateInput{
		CartID:          "cart-1",
		DeliveryMethod:  DeliveryMethodDelivery,
		ShippingAddress: &addr,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, o.Status)
	require.Equal(t, 3, ledger.reserved["var-1"])
	require.True(t, o.Subtotal.Equal(decimal.NewFromInt(3000)))
	require.True(t, o.DeliveryCost.Equal(decimal.NewFromInt(2000)))
	require.True(t, o.TotalAmount.Equal(decimal.NewFromInt(5000)))
	require.Equal(t, []string{"cart-1"}, carts.cleared)

	require.True(t, strings.HasPrefix(o.OrderNumber, "ORD-"))
	parts := strings.Split(o.OrderNumber, "-")
	require.Len(t, parts, 3)
	require.Len(t, parts[1], 8)
	require.Equal(t, "0001", parts[2])
}

func TestCreatePickupSkipsDeliveryCost(t *testing.T) {
	repo := newMemoryOrderRepo()
	ledger := newFakeLedger()
	ledger.available["var-1"] = 10
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{
		"cart-1": testSnapshot(snapshotLine("var-1", 1, 1000)),
	}}
	svc := newTestService(repo, ledger, carts)

	o, err := svc.Create(context.Background(), CreateInput{CartID: "cart-1", DeliveryMethod: DeliveryMethodPickup})
	require.NoError(t, err)
	require.True(t, o.DeliveryCost.IsZero())
}

func TestCreateInstallationCostAddedForInstallableLines(t *testing.T) {
	repo := newMemoryOrderRepo()
	ledger := newFakeLedger()
	ledger.available["var-1"] = 10
	line := snapshotLine("var-1", 2, 1000)
	line.RequiresInstallation = true
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{"cart-1": testSnapshot(line)}}
	svc := newTestService(repo, ledger, carts)

	o, err := svc.Create(context.Background(), CreateInput{CartID: "cart-1"})
	require.NoError(t, err)
	require.True(t, o.RequiresInstallation)
	require.True(t, o.InstallationCost.Equal(decimal.NewFromInt(5000)))
	require.True(t, o.TotalAmount.Equal(decimal.NewFromInt(7000)))
}

func TestCreateDraftShellSkipsReservation(t *testing.T) {
	repo := newMemoryOrderRepo()
	ledger := newFakeLedger()
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{
		"cart-1": testSnapshot(snapshotLine("var-1", 3, 1000)),
	}}
	svc := newTestService(repo, ledger, carts)

	o, err := svc.Create(context.Background(), CreateInput{CartID: "cart-1", InitialStatus: StatusDraft})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, o.Status)
	require.Empty(t, ledger.calls)
}

func TestCreateDropshippingLineNotReserved(t *testing.T) {
	repo := newMemoryOrderRepo()
	ledger := newFakeLedger()
	line := snapshotLine("var-1", 3, 1000)
	line.IsDropshipping = true
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{"cart-1": testSnapshot(line)}}
	svc := newTestService(repo, ledger, carts)

	_, err := svc.Create(context.Background(), CreateInput{CartID: "cart-1"})
	require.NoError(t, err)
	require.Empty(t, ledger.calls)
}

func createTestOrder(t *testing.T, repo *memoryOrderRepo, ledger *fakeLedger, status Status) Order {
	t.Helper()
	ledger.available["var-1"] = 10
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{
		"cart-1": testSnapshot(snapshotLine("var-1", 3, 1000)),
	}}
	svc := newTestService(repo, ledger, carts)
	o, err := svc.Create(context.Background(), CreateInput{CartID: "cart-1", InitialStatus: status})
	require.NoError(t, err)
	return o
}

func TestUpdateStatusRejectsIllegalJump(t *testing.T) {
	repo := newMemoryOrderRepo()
	ledger := newFakeLedger()
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{}}
	svc := newTestService(repo, ledger, carts)
	o := createTestOrder(t, repo, ledger, StatusDraft)

	_, err := svc.UpdateStatus(context.Background(), o.ID, StatusDelivered, "")
	require.ErrorIs(t, err, shared.ErrIllegalStateTransition)
	current, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, current.Status)
}

func TestUpdateStatusDeliveredConvertsReservationToSale(t *testing.T) {
	repo := newMemoryOrderRepo()
	ledger := newFakeLedger()
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{}}
	svc := newTestService(repo, ledger, carts)
	o := createTestOrder(t, repo, ledger, StatusPending)
	require.Equal(t, 3, ledger.reserved["var-1"])

	_, err := svc.UpdateStatus(context.Background(), o.ID, StatusConfirmed, "")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), o.ID, StatusInProgress, "")
	require.NoError(t, err)
	delivered, err := svc.UpdateStatus(context.Background(), o.ID, StatusDelivered, "")
	require.NoError(t, err)

	require.Equal(t, StatusDelivered, delivered.Status)
	require.NotNil(t, delivered.CompletedAt)
	require.Equal(t, 7, ledger.available["var-1"])
	require.Zero(t, ledger.reserved["var-1"])
}

func TestUpdateStatusCancelledReleasesReservation(t *testing.T) {
	repo := newMemoryOrderRepo()
	ledger := newFakeLedger()
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{}}
	svc := newTestService(repo, ledger, carts)
	o := createTestOrder(t, repo, ledger, StatusPending)
	require.Equal(t, 3, ledger.reserved["var-1"])

	cancelled, err := svc.UpdateStatus(context.Background(), o.ID, StatusCancelled, "customer withdrew")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Zero(t, ledger.reserved["var-1"])
	require.Equal(t, 10, ledger.available["var-1"])
}

func TestReleaseLinesReturnsReservedStock(t *testing.T) {
	repo := newMemoryOrderRepo()
	ledger := newFakeLedger()
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{}}
	svc := newTestService(repo, ledger, carts)
	o := createTestOrder(t, repo, ledger, StatusPending)
	require.Equal(t, 3, ledger.reserved["var-1"])

	require.NoError(t, svc.ReleaseLines(context.Background(), o.ID))
	require.Zero(t, ledger.reserved["var-1"])
	require.Equal(t, 10, ledger.available["var-1"])
}

func TestUpdateStatusConfirmedStampsConfirmedAt(t *testing.T) {
	repo := newMemoryOrderRepo()
	ledger := newFakeLedger()
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{}}
	svc := newTestService(repo, ledger, carts)
	o := createTestOrder(t, repo, ledger, StatusPending)

	confirmed, err := svc.UpdateStatus(context.Background(), o.ID, StatusConfirmed, "")
	require.NoError(t, err)
	require.NotNil(t, confirmed.ConfirmedAt)
}

func TestApplyPaymentStatusPromotions(t *testing.T) {
	repo := newMemoryOrderRepo()
	ledger := newFakeLedger()
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{}}
	svc := newTestService(repo, ledger, carts)
	o := createTestOrder(t, repo, ledger, StatusPending)

	paid, err := svc.ApplyPaymentStatus(context.Background(), o.ID, StatusPaid)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)

	// already past the promotable window: a second promotion is a no-op
	again, err := svc.ApplyPaymentStatus(context.Background(), o.ID, StatusPaid)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, again.Status)

	_, err = svc.ApplyPaymentStatus(context.Background(), o.ID, StatusDelivered)
	require.ErrorIs(t, err, shared.ErrIllegalStateTransition)
}

func TestScheduleInstallationForcesInProgress(t *testing.T) {
	repo := newMemoryOrderRepo()
	ledger := newFakeLedger()
	carts := &fakeCartSource{snapshots: map[string]cart.Snapshot{}}
	svc := newTestService(repo, ledger, carts)
	o := createTestOrder(t, repo, ledger, StatusPending)

	at := time.Now().Add(48 * time.Hour)
	updated, err := svc.ScheduleInstallation(context.Background(), o.ID, at)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, updated.Status)
	require.NotNil(t, updated.InstallationScheduledAt)
	require.True(t, updated.InstallationScheduledAt.Equal(at))
}
