package stock

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	*memoryRepo
	lowStockCalls int
}

func (r *countingRepo) LowStock(ctx context.Context) ([]Stock, error) {
	r.lowStockCalls++
	return r.memoryRepo.LowStock(ctx)
}

func newCachedService(t *testing.T, repo RepositoryPort) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, client, time.Minute)
}

func TestLowStockItemsServedFromCache(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{memoryRepo: newMemoryRepo()}
	svc := newCachedService(t, repo)

	_, err := svc.CreateForVariant(ctx, "var-low", 2, 5)
	require.NoError(t, err)

	first, err := svc.LowStockItems(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, repo.lowStockCalls)

	second, err := svc.LowStockItems(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, "var-low", second[0].VariantID)
	require.Equal(t, 1, repo.lowStockCalls)
}

func TestConfirmDeductionInvalidatesLowStockCache(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{memoryRepo: newMemoryRepo()}
	svc := newCachedService(t, repo)

	_, err := svc.CreateForVariant(ctx, "var-a", 10, 4)
	require.NoError(t, err)

	items, err := svc.LowStockItems(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
	require.Equal(t, 1, repo.lowStockCalls)

	_, err = svc.Reserve(ctx, "var-a", 7, Ref{Type: ReferenceTypeOrder, ID: "ORD-9"})
	require.NoError(t, err)
	_, err = svc.ConfirmDeduction(ctx, "var-a", 7, Ref{Type: ReferenceTypeOrder, ID: "ORD-9"})
	require.NoError(t, err)

	items, err = svc.LowStockItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 2, repo.lowStockCalls)
}

func TestAdjustInvalidatesLowStockCache(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{memoryRepo: newMemoryRepo()}
	svc := newCachedService(t, repo)

	_, err := svc.CreateForVariant(ctx, "var-low", 2, 5)
	require.NoError(t, err)

	items, err := svc.LowStockItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = svc.Adjust(ctx, "var-low", AdjustmentInput{Quantity: 20, Reason: "restock"})
	require.NoError(t, err)

	items, err = svc.LowStockItems(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
	require.Equal(t, 2, repo.lowStockCalls)
}
