package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/voltora/voltora/internal/app"
	"github.com/voltora/voltora/internal/cart"
	"github.com/voltora/voltora/internal/catalogue"
	"github.com/voltora/voltora/internal/orders"
	"github.com/voltora/voltora/internal/payments"
	"github.com/voltora/voltora/internal/platform/cache"
	"github.com/voltora/voltora/internal/platform/db"
	"github.com/voltora/voltora/internal/pricing"
	"github.com/voltora/voltora/internal/quotes"
	"github.com/voltora/voltora/internal/stock"
	"github.com/voltora/voltora/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, redisClient, cfg.LowStockCacheTTL)

	pricingRepo := pricing.NewRepository(pool)
	pricingService := pricing.NewService(pricingRepo)

	catalogueRepo := catalogue.NewRepository(pool)

	cartRepo := cart.NewRepository(pool)
	cartService := cart.NewService(cartRepo, pricingService, stockService, catalogueRepo, cfg.CartTTL, cfg.Currency)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(logger, ordersRepo, stockService, cartService, pricingService, deliveryRate, cfg.Currency)

	quotesRepo := quotes.NewRepository(pool)
	quotesService := quotes.NewService(logger, quotesRepo, ordersService, cfg.QuoteValidity)

	paymentsRepo := payments.NewRepository(pool)
	paymentsService := payments.NewService(logger, paymentsRepo, ordersService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, cfg.WhatsAppBizNumber, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		StockHandler:    stock.NewHandler(logger, stockService),
		PricingHandler:  pricing.NewHandler(logger, pricingService),
		CartHandler:     cart.NewHandler(logger, cartService),
		OrdersHandler:   orders.NewHandler(logger, ordersService),
		QuotesHandler:   quotes.NewHandler(logger, quotesService),
		PaymentsHandler: payments.NewHandler(logger, paymentsService),
		JobHandler:      jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
