package shared

import "errors"

var (
	// ErrNotFound indicates the requested entity id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock indicates a reservation or negative adjustment
	// would violate the availability invariant.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOverRelease indicates a release exceeding the current reservation.
	ErrOverRelease = errors.New("release exceeds reserved quantity")
	// ErrConcurrencyConflict indicates a version mismatch on write.
	ErrConcurrencyConflict = errors.New("stock was modified by another process")
	// ErrEmptyCart indicates checkout was attempted on a cart without items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrQuoteExpired indicates the quote validity window has passed.
	ErrQuoteExpired = errors.New("quote has expired")
	// ErrIllegalStateTransition indicates a status change the state machine does not allow.
	ErrIllegalStateTransition = errors.New("illegal state transition")
	// ErrInvalidInput indicates schema or range violations at the boundary.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("duplicate entry")
)
