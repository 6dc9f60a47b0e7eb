package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/voltora/voltora/internal/cart"
	"github.com/voltora/voltora/internal/orders"
	"github.com/voltora/voltora/internal/payments"
	"github.com/voltora/voltora/internal/pricing"
	"github.com/voltora/voltora/internal/quotes"
	"github.com/voltora/voltora/internal/stock"
	"github.com/voltora/voltora/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	StockHandler    *stock.Handler
	PricingHandler  *pricing.Handler
	CartHandler     *cart.Handler
	OrdersHandler   *orders.Handler
	QuotesHandler   *quotes.Handler
	PaymentsHandler *payments.Handler
	JobHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router with Voltora defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		params.StockHandler.MountRoutes(r)
		params.PricingHandler.MountRoutes(r)
		params.CartHandler.MountRoutes(r)
		params.OrdersHandler.MountRoutes(r)
		params.QuotesHandler.MountRoutes(r)
		params.PaymentsHandler.MountRoutes(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
