package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/voltora/voltora/internal/notify"
	"github.com/voltora/voltora/internal/orders"
	"github.com/voltora/voltora/internal/quotes"
)

// OrderReader loads orders for notification rendering.
type OrderReader interface {
	Get(ctx context.Context, id string) (orders.Order, error)
}

// QuoteSource loads quotes and records the first outbound send.
type QuoteSource interface {
	Get(ctx context.Context, id string) (quotes.Quote, error)
	Order(ctx context.Context, quoteID string) (orders.Order, error)
	MarkSent(ctx context.Context, id string) (quotes.Quote, error)
}

// WhatsAppNotifyJob renders message data and produces the wa.me link. The
// link is logged for the storefront operator; no message text is composed
// outside the renderer.
type WhatsAppNotifyJob struct {
	renderer notify.Renderer
	orders   OrderReader
	quotes   QuoteSource
	logger   *slog.Logger
}

// NewWhatsAppNotifyJob initialises the notification handler.
func NewWhatsAppNotifyJob(renderer notify.Renderer, orderReader OrderReader, quoteSource QuoteSource, logger *slog.Logger) *WhatsAppNotifyJob {
	return &WhatsAppNotifyJob{renderer: renderer, orders: orderReader, quotes: quoteSource, logger: logger}
}

// Handle renders and dispatches one notification. Sending a quote for the
// first time moves it to SENT.
func (j *WhatsAppNotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.renderer == nil {
		return errors.New("whatsapp notify: handler not configured")
	}
	var payload WhatsAppPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	var text string
	switch payload.Kind {
	case "order":
		order, err := j.orders.Get(ctx, payload.OrderID)
		if err != nil {
			return err
		}
		text, err = j.renderer.RenderOrder(ctx, notify.FromOrder(order, payload.Name, ""))
		if err != nil {
			return err
		}
	case "quote":
		quote, err := j.quotes.Get(ctx, payload.QuoteID)
		if err != nil {
			return err
		}
		order, err := j.quotes.Order(ctx, payload.QuoteID)
		if err != nil {
			return err
		}
		text, err = j.renderer.RenderQuote(ctx, notify.FromQuote(quote, order, payload.Name))
		if err != nil {
			return err
		}
		if _, err := j.quotes.MarkSent(ctx, payload.QuoteID); err != nil {
			j.logger.Warn("mark quote sent", slog.String("quote_id", payload.QuoteID), slog.Any("error", err))
		}
	default:
		return asynq.SkipRetry
	}

	link := notify.BuildWhatsAppURL(payload.Phone, text)
	j.logger.Info("whatsapp notification ready",
		slog.String("kind", payload.Kind),
		slog.String("url", link))
	return nil
}
