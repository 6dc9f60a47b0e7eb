package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// CartPurger is the slice of the cart service the purge drives.
type CartPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// CartPurgeJob removes carts past their TTL.
type CartPurgeJob struct {
	carts  CartPurger
	logger *slog.Logger
}

// NewCartPurgeJob initialises the purge handler.
func NewCartPurgeJob(carts CartPurger, logger *slog.Logger) *CartPurgeJob {
	return &CartPurgeJob{carts: carts, logger: logger}
}

// Handle executes the purge. Idempotent; an overlapping run deletes nothing
// twice.
func (j *CartPurgeJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.carts == nil {
		return errors.New("cart purge: handler not configured")
	}
	count, err := j.carts.PurgeExpired(ctx)
	if err != nil {
		j.logger.Error("cart purge", slog.Any("error", err))
		return err
	}
	j.logger.Info("cart purge done", slog.Int("purged", count))
	return nil
}
