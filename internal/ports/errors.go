package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Upstream Provider Errors
	ErrUpstreamUnavailable  = errors.New("upstream datafeed is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the upstream datafeed")
	ErrRateLimited          = errors.New("upstream rate limit exceeded")
	ErrAuthenticationFailed = errors.New("upstream authentication failed (check API keys)")
	ErrBadResponse          = errors.New("upstream returned a malformed response")

	// Storage Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrUpdateFailed = errors.New("database update failed")
)
