package errors

// ErrorCode represents a machine-readable error identifier for client error handling.
type ErrorCode string

// Resolution errors. Unknown tenant, unknown endpoint, inactive endpoint, and
// reserved slugs are all reported as the same code so that probing cannot
// distinguish them.
const (
	ErrCodeEndpointNotFound ErrorCode = "endpoint_not_found"
)

// Payment errors (x402 protocol).
const (
	ErrCodePaymentRequired ErrorCode = "payment_required"
	ErrCodePaymentInvalid  ErrorCode = "payment_verification_failed"
)

// Request admission errors.
const (
	ErrCodeRateLimitExceeded ErrorCode = "rate_limit_exceeded"
	ErrCodeUnauthorized      ErrorCode = "unauthorized"
)

// Upstream and external service errors.
const (
	ErrCodeUpstreamUnreachable ErrorCode = "upstream_unreachable"
	ErrCodeFacilitatorError    ErrorCode = "facilitator_error"
	ErrCodeSettlementFailed    ErrorCode = "settlement_failed"
)

// Internal/system errors.
const (
	ErrCodeEndpointMisconfigured ErrorCode = "endpoint_misconfigured"
	ErrCodeInternalError         ErrorCode = "internal_error"
	ErrCodeDatabaseError         ErrorCode = "database_error"
	ErrCodeConfigError           ErrorCode = "config_error"
)

// IsRetryable returns whether an error code represents a retryable error.
// Retryable errors are transient network/service issues, not validation failures.
func (e ErrorCode) IsRetryable() bool {
	switch e {
	case ErrCodeRateLimitExceeded,
		ErrCodeUpstreamUnreachable,
		ErrCodeFacilitatorError:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	case ErrCodePaymentRequired, ErrCodePaymentInvalid:
		return 402
	case ErrCodeEndpointNotFound:
		return 404
	case ErrCodeUnauthorized:
		return 401
	case ErrCodeRateLimitExceeded:
		return 429
	case ErrCodeUpstreamUnreachable:
		return 502
	default:
		return 500
	}
}
