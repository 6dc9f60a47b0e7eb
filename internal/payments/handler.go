package payments

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/voltora/voltora/internal/platform/httpx"
)

// Handler exposes payment operations over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payments", h.Record)
	r.Get("/payments/order/{orderID}", h.ListByOrder)
	r.Get("/payments/{paymentID}", h.Show)
	r.Patch("/payments/{paymentID}/status", h.UpdateStatus)
	r.Post("/payments/{paymentID}/refund", h.Refund)
}

type recordPaymentRequest struct {
	OrderID       string `json:"order_id" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
	Method        string `json:"method" validate:"required,oneof=CASH MOBILE_MONEY BANK_TRANSFER CARD"`
	TransactionID string `json:"transaction_id,omitempty"`
	Notes         string `json:"notes,omitempty" validate:"max=1000"`
}

type updatePaymentStatusRequest struct {
	Status        string `json:"status" validate:"required,oneof=PENDING PAID REFUNDED FAILED"`
	TransactionID string `json:"transaction_id,omitempty"`
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount is not a valid decimal")
		return
	}
	p, err := h.service.Record(r.Context(), RecordInput{
		OrderID:       req.OrderID,
		Amount:        amount,
		Method:        Method(req.Method),
		TransactionID: req.TransactionID,
		Notes:         req.Notes,
	})
	if err != nil {
		h.logger.Error("record payment", slog.String("order_id", req.OrderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListByOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updatePaymentStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "paymentID"), Status(req.Status), req.TransactionID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Refund(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
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
