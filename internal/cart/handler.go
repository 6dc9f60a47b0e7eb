package cart

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/voltora/voltora/internal/platform/httpx"
	"github.com/voltora/voltora/internal/pricing"
)

// Handler exposes cart operations over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches cart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/carts", h.GetOrCreate)
	r.Post("/carts/merge", h.Merge)
	r.Get("/carts/{cartID}", h.Show)
	r.Get("/carts/{cartID}/snapshot", h.Snapshot)
	r.Post("/carts/{cartID}/items", h.AddItem)
	r.Patch("/carts/{cartID}/items/{itemID}", h.UpdateItem)
	r.Delete("/carts/{cartID}/items/{itemID}", h.RemoveItem)
	r.Delete("/carts/{cartID}/items", h.Clear)
}

type getOrCreateRequest struct {
	CustomerID *string `json:"customer_id,omitempty"`
	SessionID  *string `json:"session_id,omitempty"`
}

type addItemRequest struct {
	VariantID *string `json:"variant_id,omitempty"`
	ServiceID *string `json:"service_id,omitempty"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type mergeRequest struct {
	SessionID  string `json:"session_id" validate:"required"`
	CustomerID string `json:"customer_id" validate:"required"`
}

func (h *Handler) GetOrCreate(w http.ResponseWriter, r *http.Request) {
	var req getOrCreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.service.GetOrCreate(r.Context(), req.CustomerID, req.SessionID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.service.MergeGuestCart(r.Context(), req.SessionID, req.CustomerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.repo.Get(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	customerType := pricing.CustomerType(r.URL.Query().Get("customer_type"))
	if customerType == "" {
		customerType = pricing.CustomerTypeB2C
	}
	snap, err := h.service.Snapshot(r.Context(), chi.URLParam(r, "cartID"), customerType)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.service.AddItem(r.Context(), chi.URLParam(r, "cartID"), AddItemInput{
		VariantID: req.VariantID,
		ServiceID: req.ServiceID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.service.UpdateItem(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "itemID"), req.Quantity)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.RemoveItem(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), chi.URLParam(r, "cartID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
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
