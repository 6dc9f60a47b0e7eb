package quotes

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/voltora/voltora/internal/platform/httpx"
	"github.com/voltora/voltora/internal/pricing"
	"github.com/voltora/voltora/internal/shared"
)

// Handler exposes quote operations over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches quote routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/quotes", h.List)
	r.Post("/quotes", h.Create)
	r.Post("/quotes/check-expirations", h.CheckExpirations)
	r.Get("/quotes/{quoteID}", h.Show)
	r.Post("/quotes/{quoteID}/accept", h.Accept)
	r.Post("/quotes/{quoteID}/reject", h.Reject)
}

type createQuoteRequest struct {
	CartID       string     `json:"cart_id" validate:"required"`
	CustomerID   *string    `json:"customer_id,omitempty"`
	CustomerType string     `json:"customer_type,omitempty" validate:"omitempty,oneof=B2C B2B"`
	Notes        string     `json:"notes,omitempty" validate:"max=1000"`
	ValidUntil   *time.Time `json:"valid_until,omitempty"`
}

type decisionRequest struct {
	Notes string `json:"notes,omitempty" validate:"max=1000"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createQuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.Create(r.Context(), CreateInput{
		CartID:       req.CartID,
		CustomerID:   req.CustomerID,
		CustomerType: pricing.CustomerType(req.CustomerType),
		Notes:        req.Notes,
		ValidUntil:   req.ValidUntil,
	})
	if err != nil {
		h.logger.Error("create quote", slog.String("cart_id", req.CartID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Get(r.Context(), chi.URLParam(r, "quoteID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	quotes, pagination, err := h.service.List(r.Context(), ListFilter{
		Status: Status(q.Get("status")),
		Search: q.Get("search"),
		Page:   shared.Pagination{Page: page, PerPage: perPage},
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"quotes": quotes, "pagination": pagination})
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.Accept(r.Context(), chi.URLParam(r, "quoteID"), req.Notes)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.Reject(r.Context(), chi.URLParam(r, "quoteID"), req.Notes)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) CheckExpirations(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CheckExpirations(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"expired": count})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}
