package pricing

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/voltora/voltora/internal/platform/httpx"
	"github.com/voltora/voltora/internal/shared"
)

// Handler exposes pricing operations over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches pricing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/prices/variant/{variantID}", h.ByVariant)
	r.Get("/prices/variant/{variantID}/resolve", h.Resolve)
	r.Get("/prices/variant/{variantID}/history", h.History)
	r.Post("/prices", h.Create)
	r.Patch("/prices/{priceID}", h.Update)
	r.Post("/prices/variant/{variantID}/promotion", h.ApplyPromotion)
	r.Delete("/prices/variant/{variantID}/promotion", h.RemovePromotion)
}

type createPriceRequest struct {
	VariantID    string     `json:"variant_id" validate:"required"`
	PriceType    string     `json:"price_type" validate:"required,oneof=BASE WHOLESALE PROMO"`
	CustomerType string     `json:"customer_type" validate:"required,oneof=B2C B2B"`
	Amount       string     `json:"amount" validate:"required"`
	Currency     string     `json:"currency,omitempty"`
	MinQuantity  int        `json:"min_quantity,omitempty" validate:"omitempty,gt=0"`
	ValidFrom    *time.Time `json:"valid_from,omitempty"`
	ValidTo      *time.Time `json:"valid_to,omitempty"`
}

type updatePriceRequest struct {
	Amount      *string    `json:"amount,omitempty"`
	MinQuantity *int       `json:"min_quantity,omitempty" validate:"omitempty,gt=0"`
	ValidFrom   *time.Time `json:"valid_from,omitempty"`
	ValidTo     *time.Time `json:"valid_to,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

type promotionRequest struct {
	CustomerType string    `json:"customer_type" validate:"required,oneof=B2C B2B"`
	Amount       string    `json:"amount" validate:"required"`
	MinQuantity  int       `json:"min_quantity,omitempty" validate:"omitempty,gt=0"`
	ValidFrom    time.Time `json:"valid_from" validate:"required"`
	ValidTo      time.Time `json:"valid_to" validate:"required"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPriceRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount is not a valid decimal")
		return
	}
	actor, _ := r.Context().Value(shared.ActorContextKey).(string)
	price, err := h.service.Create(r.Context(), CreateInput{
		VariantID:    req.VariantID,
		PriceType:    PriceType(req.PriceType),
		CustomerType: CustomerType(req.CustomerType),
		Amount:       amount,
		Currency:     req.Currency,
		MinQuantity:  req.MinQuantity,
		ValidFrom:    req.ValidFrom,
		ValidTo:      req.ValidTo,
		ChangedBy:    actor,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, price)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updatePriceRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := UpdateInput{
		MinQuantity: req.MinQuantity,
		ValidFrom:   req.ValidFrom,
		ValidTo:     req.ValidTo,
		IsActive:    req.IsActive,
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount is not a valid decimal")
			return
		}
		input.Amount = &amount
	}
	actor, _ := r.Context().Value(shared.ActorContextKey).(string)
	input.ChangedBy = actor
	price, err := h.service.Update(r.Context(), chi.URLParam(r, "priceID"), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, price)
}

func (h *Handler) ApplyPromotion(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount is not a valid decimal")
		return
	}
	actor, _ := r.Context().Value(shared.ActorContextKey).(string)
	price, err := h.service.ApplyPromotion(r.Context(), PromotionInput{
		VariantID:    chi.URLParam(r, "variantID"),
		CustomerType: CustomerType(req.CustomerType),
		Amount:       amount,
		MinQuantity:  req.MinQuantity,
		ValidFrom:    req.ValidFrom,
		ValidTo:      req.ValidTo,
		ChangedBy:    actor,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, price)
}

func (h *Handler) RemovePromotion(w http.ResponseWriter, r *http.Request) {
	customerType := CustomerType(r.URL.Query().Get("customer_type"))
	if customerType != CustomerTypeB2C && customerType != CustomerTypeB2B {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "customer_type must be B2C or B2B")
		return
	}
	count, err := h.service.RemovePromotion(r.Context(), chi.URLParam(r, "variantID"), customerType)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deactivated": count})
}

func (h *Handler) ByVariant(w http.ResponseWriter, r *http.Request) {
	prices, err := h.service.ByVariant(r.Context(), chi.URLParam(r, "variantID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"prices": prices})
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	customerType := CustomerType(r.URL.Query().Get("customer_type"))
	if customerType == "" {
		customerType = CustomerTypeB2C
	}
	resolution, err := h.service.ResolveForVariant(r.Context(), chi.URLParam(r, "variantID"), customerType)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolution)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.History(r.Context(), chi.URLParam(r, "variantID"), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": entries})
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
