package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/voltora/voltora/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, variantID string) (Stock, error)
	Create(ctx context.Context, variantID string, quantity, alertThreshold int) (Stock, error)
	LowStock(ctx context.Context) ([]Stock, error)
	Movements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	MovementsAsc(ctx context.Context, variantID string) ([]Movement, error)
}

// Service coordinates the stock ledger. It never retries on a version
// conflict; retry-on-conflict is a caller policy.
type Service struct {
	repo     RepositoryPort
	cache    *redis.Client
	cacheTTL time.Duration
	lowGroup singleflight.Group
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache *redis.Client, cacheTTL time.Duration) *Service {
	return &Service{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

// Get returns the current counters for a variant.
func (s *Service) Get(ctx context.Context, variantID string) (Stock, error) {
	if variantID == "" {
		return Stock{}, fmt.Errorf("%w: variant id required", shared.ErrInvalidInput)
	}
	return s.repo.Get(ctx, variantID)
}

// CreateForVariant creates the stock row owned by a new variant.
func (s *Service) CreateForVariant(ctx context.Context, variantID string, quantity, alertThreshold int) (Stock, error) {
	if variantID == "" {
		return Stock{}, fmt.Errorf("%w: variant id required", shared.ErrInvalidInput)
	}
	if quantity < 0 || alertThreshold < 0 {
		return Stock{}, fmt.Errorf("%w: quantity and alert threshold must be non-negative", shared.ErrInvalidInput)
	}
	created, err := s.repo.Create(ctx, variantID, quantity, alertThreshold)
	if err != nil {
		return Stock{}, err
	}
	s.invalidateLowStock(ctx)
	return created, nil
}

// Reserve holds qty units against available stock. The ledger does not
// dedupe by reference; callers must avoid double-reserving for the same ref.
func (s *Service) Reserve(ctx context.Context, variantID string, qty int, ref Ref) (Stock, error) {
	if qty <= 0 {
		return Stock{}, fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidInput)
	}
	var result Stock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetStock(ctx, variantID)
		if err != nil {
			return err
		}
		available := current.Available()
		if available < qty {
			return fmt.Errorf("%w: available %d, requested %d", shared.ErrInsufficientStock, available, qty)
		}
		updated, err := tx.UpdateStockIf(ctx, variantID, current.Version, current.Quantity, current.ReservedQuantity+qty)
		if err != nil {
			return err
		}
		result = updated
		return tx.InsertMovement(ctx, Movement{
			VariantID:     variantID,
			MovementType:  MovementTypeReservation,
			Reason:        fmt.Sprintf("Reserved %d for %s #%s", qty, ref.Type, ref.ID),
			ReferenceType: ref.Type,
			ReferenceID:   ref.ID,
			BalanceAfter:  updated.Quantity,
		})
	})
	if err != nil {
		return Stock{}, err
	}
	return result, nil
}

// Release returns qty reserved units to the available pool.
func (s *Service) Release(ctx context.Context, variantID string, qty int, ref Ref) (Stock, error) {
	if qty <= 0 {
		return Stock{}, fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidInput)
	}
	var result Stock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetStock(ctx, variantID)
		if err != nil {
			return err
		}
		if current.ReservedQuantity < qty {
			return fmt.Errorf("%w: cannot release %d, only %d reserved", shared.ErrOverRelease, qty, current.ReservedQuantity)
		}
		updated, err := tx.UpdateStockIf(ctx, variantID, current.Version, current.Quantity, current.ReservedQuantity-qty)
		if err != nil {
			return err
		}
		result = updated
		return tx.InsertMovement(ctx, Movement{
			VariantID:     variantID,
			MovementType:  MovementTypeRelease,
			Reason:        fmt.Sprintf("Released %d from %s #%s", qty, ref.Type, ref.ID),
			ReferenceType: ref.Type,
			ReferenceID:   ref.ID,
			BalanceAfter:  updated.Quantity,
		})
	})
	if err != nil {
		return Stock{}, err
	}
	return result, nil
}

// ConfirmDeduction is the fulfillment step: stock actually leaves, consuming
// the matching reservation. When the reservation was never made (or already
// consumed) it falls back to deducting the on-hand quantity alone and notes
// the discrepancy in the movement reason.
func (s *Service) ConfirmDeduction(ctx context.Context, variantID string, qty int, ref Ref) (Stock, error) {
	if qty <= 0 {
		return Stock{}, fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidInput)
	}
	var result Stock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetStock(ctx, variantID)
		if err != nil {
			return err
		}
		newReserved := current.ReservedQuantity - qty
		reason := fmt.Sprintf("Sold via %s #%s", ref.Type, ref.ID)
		if current.ReservedQuantity < qty {
			newReserved = current.ReservedQuantity
			reason = fmt.Sprintf("confirmed deduction for %s #%s (direct, no reservation)", ref.Type, ref.ID)
		}
		updated, err := tx.UpdateStockIf(ctx, variantID, current.Version, current.Quantity-qty, newReserved)
		if err != nil {
			return err
		}
		result = updated
		return tx.InsertMovement(ctx, Movement{
			VariantID:      variantID,
			OutputQuantity: qty,
			MovementType:   MovementTypeSale,
			Reason:         reason,
			ReferenceType:  ref.Type,
			ReferenceID:    ref.ID,
			BalanceAfter:   updated.Quantity,
		})
	})
	if err != nil {
		return Stock{}, err
	}
	s.invalidateLowStock(ctx)
	return result, nil
}

// Adjust performs a direct on-hand correction. The movement type is PURCHASE
// when a supplier is given for a positive adjustment, otherwise
// ADJUSTMENT_IN / ADJUSTMENT_OUT by sign.
func (s *Service) Adjust(ctx context.Context, variantID string, input AdjustmentInput) (Stock, error) {
	if input.Quantity == 0 {
		return Stock{}, fmt.Errorf("%w: quantity must be non-zero", shared.ErrInvalidInput)
	}
	isIncrement := input.Quantity > 0
	absQty := input.Quantity
	if !isIncrement {
		absQty = -input.Quantity
	}

	movementType := MovementTypeAdjustmentOut
	if isIncrement {
		movementType = MovementTypeAdjustmentIn
		if input.SupplierID != "" {
			movementType = MovementTypePurchase
		}
	}

	ref := Ref{Type: ReferenceTypeManualAdjustment}
	if input.SupplierID != "" {
		ref = Ref{Type: ReferenceTypeSupplier, ID: input.SupplierID}
	}

	var result Stock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetStock(ctx, variantID)
		if err != nil {
			return err
		}
		if !isIncrement && current.Quantity < absQty {
			return fmt.Errorf("%w: cannot remove %d, current stock %d", shared.ErrInsufficientStock, absQty, current.Quantity)
		}
		updated, err := tx.UpdateStockIf(ctx, variantID, current.Version, current.Quantity+input.Quantity, current.ReservedQuantity)
		if err != nil {
			return err
		}
		result = updated
		movement := Movement{
			VariantID:     variantID,
			MovementType:  movementType,
			Reason:        input.Reason,
			ReferenceType: ref.Type,
			ReferenceID:   ref.ID,
			BalanceAfter:  updated.Quantity,
			PerformedBy:   input.ActorID,
		}
		if isIncrement {
			movement.InputQuantity = absQty
		} else {
			movement.OutputQuantity = absQty
		}
		return tx.InsertMovement(ctx, movement)
	})
	if err != nil {
		return Stock{}, err
	}
	s.invalidateLowStock(ctx)
	return result, nil
}

// Movements lists ledger rows for a variant (or all variants), newest first.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.VariantID != "" {
		if _, err := s.repo.Get(ctx, filter.VariantID); err != nil {
			return nil, err
		}
	}
	return s.repo.Movements(ctx, filter)
}

// ReplayBalance reconstructs the on-hand quantity purely from the movement
// log, for audit. The result must match the current stock row.
func (s *Service) ReplayBalance(ctx context.Context, variantID string) (int, error) {
	movements, err := s.repo.MovementsAsc(ctx, variantID)
	if err != nil {
		return 0, err
	}
	balance := 0
	for _, m := range movements {
		balance += m.InputQuantity - m.OutputQuantity
	}
	return balance, nil
}

const lowStockCacheKey = "stock:low"

// LowStockItems lists variants at or below their alert threshold, with a
// short-lived cache in front of the query.
func (s *Service) LowStockItems(ctx context.Context) ([]Stock, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, lowStockCacheKey).Bytes(); err == nil {
			var cached []Stock
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}
	v, err, _ := s.lowGroup.Do(lowStockCacheKey, func() (any, error) {
		items, err := s.repo.LowStock(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if raw, err := json.Marshal(items); err == nil {
				_ = s.cache.Set(ctx, lowStockCacheKey, raw, s.cacheTTL).Err()
			}
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Stock), nil
}

func (s *Service) invalidateLowStock(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, lowStockCacheKey).Err()
	}
}
