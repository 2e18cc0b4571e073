package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrBadRequest = errors.New("bad request")

	// ErrStoreUnavailable marks persistence faults and timeouts. It is the only
	// error a caller of the code store should retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)
