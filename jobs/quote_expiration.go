package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// ExpirationSweeper is the slice of the quote workflow the sweep drives.
type ExpirationSweeper interface {
	CheckExpirations(ctx context.Context) (int, error)
}

// QuoteExpirationJob runs the hourly quote expiration sweep.
type QuoteExpirationJob struct {
	quotes ExpirationSweeper
	logger *slog.Logger
}

// NewQuoteExpirationJob initialises the sweep handler.
func NewQuoteExpirationJob(quotes ExpirationSweeper, logger *slog.Logger) *QuoteExpirationJob {
	return &QuoteExpirationJob{quotes: quotes, logger: logger}
}

// Handle executes the sweep. The underlying operation is idempotent, so a
// retried or overlapping run is harmless.
func (j *QuoteExpirationJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.quotes == nil {
		return errors.New("quote expiration: handler not configured")
	}
	count, err := j.quotes.CheckExpirations(ctx)
	if err != nil {
		j.logger.Error("quote expiration sweep", slog.Any("error", err))
		return err
	}
	j.logger.Info("quote expiration sweep done", slog.Int("expired", count))
	return nil
}
