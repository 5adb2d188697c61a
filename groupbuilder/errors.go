package groupbuilder

import "errors"

// All builder failures are pre-submission and non-retryable until the caller
// corrects the underlying condition.
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrUnknownAsset        = errors.New("asset not in supported set")
	ErrUnknownApp          = errors.New("no application configured for role")
	ErrUnknownOp           = errors.New("unsupported operation kind")
	ErrNotOptedIn          = errors.New("address not opted into asset")
	ErrInsufficientBalance = errors.New("insufficient asset balance")
	ErrMissingParty        = errors.New("operation is missing a required party")
	ErrBadBoxKey           = errors.New("box key has wrong length")
)
