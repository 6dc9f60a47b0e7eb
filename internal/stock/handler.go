package stock

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/voltora/voltora/internal/platform/httpx"
	"github.com/voltora/voltora/internal/shared"
)

// Handler exposes stock ledger operations over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock/low", h.LowStock)
	r.Get("/stock/movements", h.AllMovements)
	r.Get("/stock/{variantID}", h.Show)
	r.Get("/stock/{variantID}/movements", h.Movements)
	r.Get("/stock/{variantID}/replay", h.Replay)
	r.Post("/stock/{variantID}/reserve", h.Reserve)
	r.Post("/stock/{variantID}/release", h.Release)
	r.Post("/stock/{variantID}/confirm", h.Confirm)
	r.Post("/stock/{variantID}/adjust", h.Adjust)
}

type reservationRequest struct {
	Quantity      int    `json:"quantity" validate:"required,gt=0"`
	ReferenceID   string `json:"reference_id" validate:"required"`
	ReferenceType string `json:"reference_type" validate:"required,oneof=ORDER QUOTE"`
}

type adjustmentRequest struct {
	Quantity   int    `json:"quantity" validate:"required"`
	Reason     string `json:"reason" validate:"required,max=500"`
	SupplierID string `json:"supplier_id,omitempty"`
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Get(r.Context(), chi.URLParam(r, "variantID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStockItems(r.Context())
	if err != nil {
		h.logger.Error("list low stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) Movements(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.Movements(r.Context(), MovementFilter{
		VariantID: chi.URLParam(r, "variantID"),
		Limit:     limit,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) AllMovements(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.Movements(r.Context(), MovementFilter{Limit: limit})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) Replay(w http.ResponseWriter, r *http.Request) {
	variantID := chi.URLParam(r, "variantID")
	current, err := h.service.Get(r.Context(), variantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	replayed, err := h.service.ReplayBalance(r.Context(), variantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"variant_id":       variantID,
		"current_quantity": current.Quantity,
		"replayed_balance": replayed,
		"consistent":       current.Quantity == replayed,
	})
}

func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.service.Reserve(r.Context(), chi.URLParam(r, "variantID"), req.Quantity, Ref{
		Type: ReferenceType(req.ReferenceType),
		ID:   req.ReferenceID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.service.Release(r.Context(), chi.URLParam(r, "variantID"), req.Quantity, Ref{
		Type: ReferenceType(req.ReferenceType),
		ID:   req.ReferenceID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.service.ConfirmDeduction(r.Context(), chi.URLParam(r, "variantID"), req.Quantity, Ref{
		Type: ReferenceType(req.ReferenceType),
		ID:   req.ReferenceID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := r.Context().Value(shared.ActorContextKey).(string)
	s, err := h.service.Adjust(r.Context(), chi.URLParam(r, "variantID"), AdjustmentInput{
		Quantity:   req.Quantity,
		Reason:     req.Reason,
		SupplierID: req.SupplierID,
		ActorID:    actor,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
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
