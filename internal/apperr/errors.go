// Package apperr defines the error taxonomy shared across the vault, routing and transport layers.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable means the vault root is missing or not writable.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrCollisionExhausted means the filename disambiguation probe hit its ceiling.
	ErrCollisionExhausted = errors.New("filename collision probe exhausted")

	// ErrUnresolved marks a classification that produced no usable intent.
	ErrUnresolved = errors.New("classification unresolved")
	// ErrOracleTransport is a retryable oracle failure (timeout, network, throttling, 5xx).
	ErrOracleTransport = errors.New("oracle transport error")
	// ErrOracleRequest is a non-retryable oracle failure (rejected request, malformed response).
	ErrOracleRequest = errors.New("oracle request error")
)

// Kind returns a short label for the oracle/classification error class of err,
// or "" when err belongs to none of them.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrOracleTransport):
		return "transport"
	case errors.Is(err, ErrOracleRequest):
		return "request"
	case errors.Is(err, ErrUnresolved):
		return "unresolved"
	}
	return ""
}
