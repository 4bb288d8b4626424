package global

import "errors"

// Error taxonomy for the whole API. Handlers map these to HTTP statuses
// and stable reason codes; everything else is treated as a 500.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrProvider covers failures talking to the payment provider. The
	// client may retry the checkout.
	ErrProvider = errors.New("payment provider error")

	// ErrIntegrity marks a fulfillment invariant violation (cart missing at
	// confirmation time, stock race lost after payment). Never shown to the
	// buyer; logged and NACKed so the provider redelivers.
	ErrIntegrity = errors.New("integrity violation")
)

// ReasonCode returns the machine-readable code surfaced in error envelopes.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrProvider):
		return "provider_error"
	case errors.Is(err, ErrIntegrity):
		return "integrity_error"
	default:
		return "internal_error"
	}
}
