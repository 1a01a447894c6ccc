package domain

import "errors"

// Sentinel errors for domain-level error handling.
// Callers match them with errors.Is; none of them is fatal to a session.
var (
	ErrAdmissionRejected     = errors.New("admission_rejected")
	ErrInsufficientInventory = errors.New("insufficient_inventory")
	ErrWaitInterrupted       = errors.New("wait_interrupted")
	ErrPoolStopped           = errors.New("pool_stopped")
	ErrInvalidTransition     = errors.New("invalid_transition")
	ErrStockAlreadyExists    = errors.New("stock_already_exists")
	ErrStockNotFound         = errors.New("stock_not_found")
	ErrOrderNotFound         = errors.New("order_not_found")
)

// ValidationError represents an input validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
