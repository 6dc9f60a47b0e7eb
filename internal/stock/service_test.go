package stock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voltora/voltora/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	stocks    map[string]Stock
	movements []Movement
	nextID    int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stocks: make(map[string]Stock)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, variantID string) (Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stocks[variantID]
	if !ok {
		return Stock{}, shared.ErrNotFound
	}
	return s, nil
}

func (r *memoryRepo) Create(ctx context.Context, variantID string, quantity, alertThreshold int) (Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stock{VariantID: variantID, Quantity: quantity, AlertThreshold: alertThreshold, Version: 1, UpdatedAt: time.Now()}
	r.stocks[variantID] = s
	if quantity > 0 {
		r.movements = append(r.movements, Movement{
			VariantID:     variantID,
			InputQuantity: quantity,
			MovementType:  MovementTypeIn,
			Reason:        "Initial stock",
			BalanceAfter:  quantity,
			CreatedAt:     time.Now(),
		})
	}
	return s, nil
}

func (r *memoryRepo) LowStock(ctx context.Context) ([]Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []Stock
	for _, s := range r.stocks {
		if s.Quantity <= s.AlertThreshold {
			items = append(items, s)
		}
	}
	return items, nil
}

func (r *memoryRepo) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Movement
	for i := len(r.movements) - 1; i >= 0; i-- {
		m := r.movements[i]
		if filter.VariantID == "" || m.VariantID == filter.VariantID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) MovementsAsc(ctx context.Context, variantID string) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Movement
	for _, m := range r.movements {
		if m.VariantID == variantID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetStock(ctx context.Context, variantID string) (Stock, error) {
	s, ok := tx.repo.stocks[variantID]
	if !ok {
		return Stock{}, shared.ErrNotFound
	}
	return s, nil
}

func (tx *memoryTx) UpdateStockIf(ctx context.Context, variantID string, expectedVersion int64, quantity, reserved int) (Stock, error) {
	s, ok := tx.repo.stocks[variantID]
	if !ok || s.Version != expectedVersion {
		return Stock{}, shared.ErrConcurrencyConflict
	}
	s.Quantity = quantity
	s.ReservedQuantity = reserved
	s.Version++
	s.UpdatedAt = time.Now()
	tx.repo.stocks[variantID] = s
	return s, nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) error {
	tx.repo.nextID++
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	tx.repo.movements = append(tx.repo.movements, m)
	return nil
}

func seed(t *testing.T, repo *memoryRepo, variantID string, qty int) *Service {
	t.Helper()
	svc := NewService(repo, nil, 0)
	_, err := svc.CreateForVariant(context.Background(), variantID, 0, 5)
	require.NoError(t, err)
	if qty > 0 {
		_, err = svc.Adjust(context.Background(), variantID, AdjustmentInput{Quantity: qty, Reason: "initial count"})
		require.NoError(t, err)
	}
	return svc
}

func TestReserveRelease(t *testing.T) {
	repo := newMemoryRepo()
	svc := seed(t, repo, "v1", 10)
	ctx := context.Background()

	s, err := svc.Reserve(ctx, "v1", 4, Ref{Type: ReferenceTypeOrder, ID: "ORD-1"})
	require.NoError(t, err)
	require.Equal(t, 10, s.Quantity)
	require.Equal(t, 4, s.ReservedQuantity)
	require.Equal(t, 6, s.Available())

	_, err = svc.Reserve(ctx, "v1", 7, Ref{Type: ReferenceTypeOrder, ID: "ORD-2"})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	s, err = svc.Release(ctx, "v1", 4, Ref{Type: ReferenceTypeOrder, ID: "ORD-1"})
	require.NoError(t, err)
	require.Equal(t, 0, s.ReservedQuantity)

	// Release followed by reserve of the same quantity restores the
	// pre-release reservation.
	s, err = svc.Reserve(ctx, "v1", 4, Ref{Type: ReferenceTypeOrder, ID: "ORD-1"})
	require.NoError(t, err)
	require.Equal(t, 4, s.ReservedQuantity)
}

func TestOverRelease(t *testing.T) {
	repo := newMemoryRepo()
	svc := seed(t, repo, "v1", 10)

	_, err := svc.Release(context.Background(), "v1", 1, Ref{Type: ReferenceTypeOrder, ID: "ORD-1"})
	require.ErrorIs(t, err, shared.ErrOverRelease)
}

func TestConfirmDeduction(t *testing.T) {
	repo := newMemoryRepo()
	svc := seed(t, repo, "v1", 10)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, "v1", 3, Ref{Type: ReferenceTypeOrder, ID: "ORD-1"})
	require.NoError(t, err)

	s, err := svc.ConfirmDeduction(ctx, "v1", 3, Ref{Type: ReferenceTypeOrder, ID: "ORD-1"})
	require.NoError(t, err)
	require.Equal(t, 7, s.Quantity)
	require.Equal(t, 0, s.ReservedQuantity)

	movements, err := svc.Movements(ctx, MovementFilter{VariantID: "v1"})
	require.NoError(t, err)
	require.Equal(t, MovementTypeSale, movements[0].MovementType)
	require.Equal(t, 7, movements[0].BalanceAfter)
}

func TestConfirmDeductionWithoutReservation(t *testing.T) {
	repo := newMemoryRepo()
	svc := seed(t, repo, "v1", 10)
	ctx := context.Background()

	s, err := svc.ConfirmDeduction(ctx, "v1", 2, Ref{Type: ReferenceTypeOrder, ID: "ORD-9"})
	require.NoError(t, err)
	require.Equal(t, 8, s.Quantity)
	require.Equal(t, 0, s.ReservedQuantity)

	movements, err := svc.Movements(ctx, MovementFilter{VariantID: "v1"})
	require.NoError(t, err)
	require.Contains(t, movements[0].Reason, "direct")
}

func TestAdjustGuards(t *testing.T) {
	repo := newMemoryRepo()
	svc := seed(t, repo, "v1", 5)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, "v1", AdjustmentInput{Quantity: -6, Reason: "shrinkage"})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	_, err = svc.Adjust(ctx, "v1", AdjustmentInput{Quantity: 0, Reason: "noop"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	s, err := svc.Adjust(ctx, "v1", AdjustmentInput{Quantity: 20, Reason: "restock", SupplierID: "sup-1"})
	require.NoError(t, err)
	require.Equal(t, 25, s.Quantity)

	movements, err := svc.Movements(ctx, MovementFilter{VariantID: "v1"})
	require.NoError(t, err)
	require.Equal(t, MovementTypePurchase, movements[0].MovementType)
	require.Equal(t, ReferenceTypeSupplier, movements[0].ReferenceType)
}

func TestVersionIncrementsAndMovementPerMutation(t *testing.T) {
	repo := newMemoryRepo()
	svc := seed(t, repo, "v1", 10)
	ctx := context.Background()

	before, err := svc.Get(ctx, "v1")
	require.NoError(t, err)
	moveCountBefore := len(repo.movements)

	after, err := svc.Reserve(ctx, "v1", 2, Ref{Type: ReferenceTypeQuote, ID: "QT-1"})
	require.NoError(t, err)
	require.Equal(t, before.Version+1, after.Version)
	require.Len(t, repo.movements, moveCountBefore+1)
	require.Equal(t, after.Quantity, repo.movements[len(repo.movements)-1].BalanceAfter)
}

func TestCreateForVariantSeedsLedger(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, 0)
	ctx := context.Background()

	created, err := svc.CreateForVariant(ctx, "v1", 5, 1)
	require.NoError(t, err)
	require.Equal(t, 5, created.Quantity)

	require.Len(t, repo.movements, 1)
	require.Equal(t, MovementTypeIn, repo.movements[0].MovementType)
	require.Equal(t, 5, repo.movements[0].InputQuantity)
	require.Equal(t, 5, repo.movements[0].BalanceAfter)

	replayed, err := svc.ReplayBalance(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, created.Quantity, replayed)
}

func TestCreateForVariantZeroQuantityWritesNoMovement(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, 0)

	_, err := svc.CreateForVariant(context.Background(), "v1", 0, 3)
	require.NoError(t, err)
	require.Empty(t, repo.movements)
}

func TestLedgerReplayMatchesQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := seed(t, repo, "v1", 10)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, "v1", 4, Ref{Type: ReferenceTypeOrder, ID: "ORD-1"})
	require.NoError(t, err)
	_, err = svc.ConfirmDeduction(ctx, "v1", 4, Ref{Type: ReferenceTypeOrder, ID: "ORD-1"})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, "v1", AdjustmentInput{Quantity: -2, Reason: "damage"})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, "v1", AdjustmentInput{Quantity: 8, Reason: "restock", SupplierID: "sup-1"})
	require.NoError(t, err)

	current, err := svc.Get(ctx, "v1")
	require.NoError(t, err)
	replayed, err := svc.ReplayBalance(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, current.Quantity, replayed)
	require.Equal(t, 12, replayed)
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	repo := newMemoryRepo()
	svc := seed(t, repo, "v1", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(context.Background(), "v1", 1, Ref{Type: ReferenceTypeOrder, ID: "ORD-1"})
		}(i)
	}
	wg.Wait()

	var ok, failed int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		failed++
		require.True(t,
			errors.Is(err, shared.ErrInsufficientStock) || errors.Is(err, shared.ErrConcurrencyConflict),
			"unexpected error: %v", err)
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, failed)

	s, err := svc.Get(context.Background(), "v1")
	require.NoError(t, err)
	require.Equal(t, 1, s.ReservedQuantity)
}

func TestReservedNeverExceedsQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := seed(t, repo, "v1", 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = svc.Reserve(ctx, "v1", 1, Ref{Type: ReferenceTypeOrder, ID: "ORD-n"})
	}
	s, err := svc.Get(ctx, "v1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, s.ReservedQuantity, 0)
	require.LessOrEqual(t, s.ReservedQuantity, s.Quantity)
}
