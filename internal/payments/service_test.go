package payments

import (
	"context"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/voltora/voltora/internal/orders"
	"github.com/voltora/voltora/internal/shared"
)

type memoryPaymentRepo struct {
	payments map[string]*Payment
	nextID   int
}

func newMemoryPaymentRepo() *memoryPaymentRepo {
	return &memoryPaymentRepo{payments: map[string]*Payment{}}
}

func (m *memoryPaymentRepo) Create(_ context.Context, p Payment) (Payment, error) {
	m.nextID++
	p.ID = "pay-" + strconv.Itoa(m.nextID)
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	stored := p
	m.payments[p.ID] = &stored
	return p, nil
}

func (m *memoryPaymentRepo) Get(_ context.Context, id string) (Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return Payment{}, shared.ErrNotFound
	}
	return *p, nil
}

func (m *memoryPaymentRepo) ListByOrder(_ context.Context, orderID string) ([]Payment, error) {
	out := []Payment{}
	for _, p := range m.payments {
		if p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memoryPaymentRepo) UpdateStatus(_ context.Context, id string, status Status, transactionID string, paidAt *time.Time) (Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return Payment{}, shared.ErrNotFound
	}
	p.Status = status
	if transactionID != "" {
		p.TransactionID = transactionID
	}
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	p.UpdatedAt = time.Now()
	return *p, nil
}

func (m *memoryPaymentRepo) SumPaidByOrder(_ context.Context, orderID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range m.payments {
		if p.OrderID == orderID && p.Status == StatusPaid {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

type fakeOrderPort struct {
	orders     map[string]*orders.Order
	promotions []orders.Status
}

func newFakeOrderPort() *fakeOrderPort {
	return &fakeOrderPort{orders: map[string]*orders.Order{}}
}

func (f *fakeOrderPort) seed(id string, status orders.Status, total int64) {
	f.orders[id] = &orders.Order{ID: id, Status: status, TotalAmount: decimal.NewFromInt(total)}
}

func (f *fakeOrderPort) Get(_ context.Context, id string) (orders.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return orders.Order{}, shared.ErrNotFound
	}
	return *o, nil
}

func (f *fakeOrderPort) ApplyPaymentStatus(_ context.Context, id string, target orders.Status) (orders.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return orders.Order{}, shared.ErrNotFound
	}
	f.promotions = append(f.promotions, target)
	o.Status = target
	return *o, nil
}

func newTestService(repo *memoryPaymentRepo, orderPort *fakeOrderPort) *Service {
	return NewService(slog.Default(), repo, orderPort)
}

func TestRecordCreatesPending(t *testing.T) {
	repo := newMemoryPaymentRepo()
	orderPort := newFakeOrderPort()
	orderPort.seed("order-1", orders.StatusPending, 5000)
	svc := newTestService(repo, orderPort)

	p, err := svc.Record(context.Background(), RecordInput{
		OrderID: "order-1",
		Amount:  decimal.NewFromInt(5000),
		Method:  MethodMobileMoney,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, p.Status)
	require.Nil(t, p.PaidAt)
	require.Empty(t, orderPort.promotions)
}

func TestRecordRejectsUnknownOrder(t *testing.T) {
	svc := newTestService(newMemoryPaymentRepo(), newFakeOrderPort())

	_, err := svc.Record(context.Background(), RecordInput{
		OrderID: "missing",
		Amount:  decimal.NewFromInt(100),
		Method:  MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRecordRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(newMemoryPaymentRepo(), newFakeOrderPort())

	_, err := svc.Record(context.Background(), RecordInput{
		OrderID: "order-1",
		Amount:  decimal.Zero,
		Method:  MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestFullPaymentFlipsOrderToPaidExactlyOnce(t *testing.T) {
	repo := newMemoryPaymentRepo()
	orderPort := newFakeOrderPort()
	orderPort.seed("order-1", orders.StatusPending, 5000)
	svc := newTestService(repo, orderPort)

	p, err := svc.Record(context.Background(), RecordInput{
		OrderID: "order-1",
		Amount:  decimal.NewFromInt(5000),
		Method:  MethodMobileMoney,
	})
	require.NoError(t, err)

	paid, err := svc.UpdateStatus(context.Background(), p.ID, StatusPaid, "tx-1")
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	require.Equal(t, []orders.Status{orders.StatusPaid}, orderPort.promotions)
	require.Equal(t, orders.StatusPaid, orderPort.orders["order-1"].Status)

	firstPaidAt := *paid.PaidAt
	again, err := svc.UpdateStatus(context.Background(), p.ID, StatusPaid, "tx-1")
	require.NoError(t, err)
	require.True(t, again.PaidAt.Equal(firstPaidAt))
	// order already PAID: the recompute finds nothing to promote
	require.Len(t, orderPort.promotions, 1)
}

func TestPartialPaymentPromotesDraftToPending(t *testing.T) {
	repo := newMemoryPaymentRepo()
	orderPort := newFakeOrderPort()
	orderPort.seed("order-1", orders.StatusDraft, 5000)
	svc := newTestService(repo, orderPort)

	p, err := svc.Record(context.Background(), RecordInput{
		OrderID: "order-1",
		Amount:  decimal.NewFromInt(2000),
		Method:  MethodCash,
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), p.ID, StatusPaid, "")
	require.NoError(t, err)
	require.Equal(t, []orders.Status{orders.StatusPending}, orderPort.promotions)
}

func TestPartialPaymentsAccumulateToFull(t *testing.T) {
	repo := newMemoryPaymentRepo()
	orderPort := newFakeOrderPort()
	orderPort.seed("order-1", orders.StatusPending, 5000)
	svc := newTestService(repo, orderPort)

	first, err := svc.Record(context.Background(), RecordInput{OrderID: "order-1", Amount: decimal.NewFromInt(3000), Method: MethodCash})
	require.NoError(t, err)
	second, err := svc.Record(context.Background(), RecordInput{OrderID: "order-1", Amount: decimal.NewFromInt(2000), Method: MethodCash})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), first.ID, StatusPaid, "")
	require.NoError(t, err)
	require.Equal(t, orders.StatusPending, orderPort.orders["order-1"].Status)

	_, err = svc.UpdateStatus(context.Background(), second.ID, StatusPaid, "")
	require.NoError(t, err)
	require.Equal(t, orders.StatusPaid, orderPort.orders["order-1"].Status)
}

func TestRefundOnlyFromPaid(t *testing.T) {
	repo := newMemoryPaymentRepo()
	orderPort := newFakeOrderPort()
	orderPort.seed("order-1", orders.StatusPending, 5000)
	svc := newTestService(repo, orderPort)

	p, err := svc.Record(context.Background(), RecordInput{OrderID: "order-1", Amount: decimal.NewFromInt(5000), Method: MethodCard})
	require.NoError(t, err)

	_, err = svc.Refund(context.Background(), p.ID)
	require.ErrorIs(t, err, shared.ErrIllegalStateTransition)

	_, err = svc.UpdateStatus(context.Background(), p.ID, StatusPaid, "")
	require.NoError(t, err)

	refunded, err := svc.Refund(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, refunded.Status)
	// the order keeps its PAID status: refunds never walk it backward
	require.Equal(t, orders.StatusPaid, orderPort.orders["order-1"].Status)
}
