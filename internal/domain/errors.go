package domain

import "errors"

var (
	// ErrMTLSRequired signals missing or failed terminator-side client
	// certificate verification.
	ErrMTLSRequired = errors.New("mutual TLS verification required")
	// ErrDPoPInvalid signals a structurally or cryptographically invalid
	// possession proof, including replayed proof identifiers.
	ErrDPoPInvalid = errors.New("invalid possession proof")
	// ErrTokenInvalid signals a token whose signature or proof binding does not hold.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired signals a token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenIssuance signals a server-side failure while minting a token.
	ErrTokenIssuance = errors.New("token issuance failed")

	// ErrInvalidFormat signals a purchase envelope missing required parts.
	ErrInvalidFormat = errors.New("invalid purchase format")
	// ErrInvalidPayload signals a purchase payload failing field validation.
	ErrInvalidPayload = errors.New("invalid purchase payload")
	// ErrPayloadTooLarge signals a request body over the size ceiling.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrRateLimited signals an exhausted purchase rate-limit window.
	ErrRateLimited = errors.New("rate limited")

	// ErrBackendUnavailable signals an unreachable or failing search backend.
	ErrBackendUnavailable = errors.New("search backend unavailable")
)

// Stable machine-readable error codes returned to clients.
const (
	CodeMTLSRequired    = "MTLS_REQUIRED"
	CodeDPoPInvalid     = "DPOP_INVALID"
	CodeTokenInvalid    = "TOKEN_INVALID"
	CodeTokenExpired    = "TOKEN_EXPIRED"
	CodeTokenError      = "TOKEN_ERROR"
	CodeInvalidFormat   = "INVALID_FORMAT"
	CodeInvalidPayload  = "INVALID_PAYLOAD"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeRateLimit       = "RATE_LIMIT"
	CodeDocNotFound     = "DOC_NOT_FOUND"
	CodeServerError     = "SERVER_ERROR"
	CodeSearchError     = "SEARCH_ERROR"
	CodeDocError        = "DOC_ERROR"
	CodeStatusError     = "STATUS_ERROR"
)
