package keyservice

import "errors"

var (
	// ErrPepperUnavailable means the key manager could not decrypt the pepper
	// for an account. Non-retryable at the caller.
	ErrPepperUnavailable = errors.New("pepper unavailable")

	// ErrSignerRefused means the sponsor signer declined to sign: a position
	// is not sponsor-owned, carries rekey/close fields, or the group hash
	// does not match the provided positions. Non-retryable, logged as a
	// security event.
	ErrSignerRefused = errors.New("sponsor signer refused")

	// ErrDerivationMismatch means no held pepper (current, or previous within
	// grace) reproduces the stored address.
	ErrDerivationMismatch = errors.New("derived address does not match stored address")

	ErrBadMasterKey = errors.New("master key must be 32 bytes")
)
