package httpx

import (
	"errors"
	"net/http"

	"github.com/voltora/voltora/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock):
		Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrOverRelease):
		Problem(w, http.StatusConflict, "Over Release", err.Error())
	case errors.Is(err, shared.ErrConcurrencyConflict):
		Problem(w, http.StatusConflict, "Concurrency Conflict", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrEmptyCart):
		Problem(w, http.StatusBadRequest, "Empty Cart", err.Error())
	case errors.Is(err, shared.ErrQuoteExpired):
		Problem(w, http.StatusBadRequest, "Quote Expired", err.Error())
	case errors.Is(err, shared.ErrIllegalStateTransition):
		Problem(w, http.StatusUnprocessableEntity, "Illegal State Transition", err.Error())
	case errors.Is(err, shared.ErrInvalidInput):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
