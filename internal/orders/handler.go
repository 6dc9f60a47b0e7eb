package orders

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

// Handler exposes order operations over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Post("/orders", h.Create)
	r.Get("/orders/number/{orderNumber}", h.ShowByNumber)
	r.Get("/orders/{orderID}", h.Show)
	r.Patch("/orders/{orderID}/status", h.UpdateStatus)
	r.Post("/orders/{orderID}/installation", h.ScheduleInstallation)
}

type createOrderRequest struct {
	CartID          string  `json:"cart_id" validate:"required"`
	CustomerID      *string `json:"customer_id,omitempty"`
	CustomerType    string  `json:"customer_type,omitempty" validate:"omitempty,oneof=B2C B2B"`
	DeliveryMethod  string  `json:"delivery_method,omitempty" validate:"omitempty,oneof=PICKUP DELIVERY"`
	ShippingAddress *string `json:"shipping_address,omitempty"`
	BillingAddress  *string `json:"billing_address,omitempty"`
	Notes           string  `json:"notes,omitempty" validate:"max=1000"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes,omitempty" validate:"max=1000"`
}

type scheduleInstallationRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.service.Create(r.Context(), CreateInput{
		CartID:          req.CartID,
		CustomerID:      req.CustomerID,
		CustomerType:    pricing.CustomerType(req.CustomerType),
		DeliveryMethod:  DeliveryMethod(req.DeliveryMethod),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		h.logger.Error("create order", slog.String("cart_id", req.CartID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) ShowByNumber(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetByNumber(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filter := ListFilter{
		Status:         Status(q.Get("status")),
		CustomerID:     q.Get("customer_id"),
		DeliveryMethod: DeliveryMethod(q.Get("delivery_method")),
		Search:         q.Get("search"),
		Page:           shared.Pagination{Page: page, PerPage: perPage},
	}
	orders, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders, "pagination": pagination})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), Status(req.Status), req.Notes)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) ScheduleInstallation(w http.ResponseWriter, r *http.Request) {
	var req scheduleInstallationRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.service.ScheduleInstallation(r.Context(), chi.URLParam(r, "orderID"), req.ScheduledAt)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
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
