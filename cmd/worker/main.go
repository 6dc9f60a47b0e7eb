package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/voltora/voltora/internal/app"
	"github.com/voltora/voltora/internal/cart"
	"github.com/voltora/voltora/internal/catalogue"
	"github.com/voltora/voltora/internal/notify"
	"github.com/voltora/voltora/internal/orders"
	"github.com/voltora/voltora/internal/platform/cache"
	"github.com/voltora/voltora/internal/platform/db"
	"github.com/voltora/voltora/internal/pricing"
	"github.com/voltora/voltora/internal/quotes"
	"github.com/voltora/voltora/internal/stock"
	"github.com/voltora/voltora/jobs"
)

// textRenderer composes plain-text WhatsApp messages.
type textRenderer struct{}

func (textRenderer) RenderOrder(_ context.Context, data notify.OrderMessageData) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s\n", data.OrderNumber)
	if data.CustomerName != "" {
		fmt.Fprintf(&b, "Customer: %s\n", data.CustomerName)
	}
	writeItems(&b, data.Items, data.Currency)
	fmt.Fprintf(&b, "Subtotal: %s %s\n", data.Subtotal, data.Currency)
	if data.DeliveryCost.IsPositive() {
		fmt.Fprintf(&b, "Delivery: %s %s\n", data.DeliveryCost, data.Currency)
	}
	if data.InstallationCost.IsPositive() {
		fmt.Fprintf(&b, "Installation: %s %s\n", data.InstallationCost, data.Currency)
	}
	fmt.Fprintf(&b, "Total: %s %s", data.TotalAmount, data.Currency)
	if data.PaymentStatus != "" {
		fmt.Fprintf(&b, "\nPayment: %s", data.PaymentStatus)
	}
	return b.String(), nil
}

func (textRenderer) RenderQuote(_ context.Context, data notify.QuoteMessageData) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Quote %s\n", data.QuoteNumber)
	if data.CustomerName != "" {
		fmt.Fprintf(&b, "Customer: %s\n", data.CustomerName)
	}
	writeItems(&b, data.Items, data.Currency)
	fmt.Fprintf(&b, "Subtotal: %s %s\n", data.Subtotal, data.Currency)
	if data.InstallationCost.IsPositive() {
		fmt.Fprintf(&b, "Installation: %s %s\n", data.InstallationCost, data.Currency)
	}
	fmt.Fprintf(&b, "Total: %s %s\n", data.TotalAmount, data.Currency)
	fmt.Fprintf(&b, "Valid until %s", data.ValidUntil.Format("2006-01-02"))
	return b.String(), nil
}

func writeItems(b *strings.Builder, items []notify.MessageItem, currency string) {
	for _, it := range items {
		fmt.Fprintf(b, "- %s x%d @ %s = %s %s\n", it.Name, it.Quantity, it.UnitPrice, it.TotalPrice, currency)
	}
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	deliveryRate, err := decimal.NewFromString(cfg.DeliveryFlatRate)
	if err != nil {
		logger.Error("parse delivery flat rate", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	stockService := stock.NewService(stock.NewRepository(pool), redisClient, cfg.LowStockCacheTTL)
	pricingService := pricing.NewService(pricing.NewRepository(pool))
	cartService := cart.NewService(cart.NewRepository(pool), pricingService, stockService, catalogue.NewRepository(pool), cfg.CartTTL, cfg.Currency)
	ordersService := orders.NewService(logger, orders.NewRepository(pool), stockService, cartService, pricingService, deliveryRate, cfg.Currency)
	quotesService := quotes.NewService(logger, quotes.NewRepository(pool), ordersService, cfg.QuoteValidity)

	expirationJob := jobs.NewQuoteExpirationJob(quotesService, logger)
	purgeJob := jobs.NewCartPurgeJob(cartService, logger)
	notifyJob := jobs.NewWhatsAppNotifyJob(textRenderer{}, ordersService, quotesService, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskQuoteExpiration, Handler: expirationJob.Handle},
			{Type: jobs.TaskCartPurge, Handler: purgeJob.Handle},
			{Type: jobs.TaskWhatsAppNotify, Handler: notifyJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: jobs.NewQuoteExpirationTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: jobs.NewCartPurgeTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
