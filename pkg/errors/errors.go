// Package errors defines the typed error taxonomy for gateway operations.
// Lower layers return these errors; the API layer is the only place that
// maps them onto HTTP responses.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// Error kinds. Each kind corresponds to one branch of the gateway pipeline.
const (
	KindAuth          = "auth_error"
	KindTenant        = "tenant_error"
	KindQuotaExceeded = "quota_exceeded"
	KindProvider      = "provider_error"
	KindMetering      = "metering_error"
	KindInvalidInput  = "invalid_request_error"
	KindInternal      = "internal_error"
)

// Quota denial reasons carried on KindQuotaExceeded errors.
const (
	ReasonDailyExceeded   = "daily-exceeded"
	ReasonMonthlyExceeded = "monthly-exceeded"
	ReasonRateLimited     = "rate-limited"
	ReasonTooManyInFlight = "too-many-in-flight"
)

// GatewayError is the standard error carried through the request pipeline.
type GatewayError struct {
	StatusCode int           `json:"status_code"`
	Kind       string        `json:"kind"`
	Message    string        `json:"message"`
	Details    string        `json:"details,omitempty"`
	Provider   string        `json:"provider,omitempty"`
	Model      string        `json:"model,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	RetryAfter time.Duration `json:"-"`
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s (provider=%s, model=%s, code=%d)",
			e.Kind, e.Message, e.Provider, e.Model, e.StatusCode)
	}
	return fmt.Sprintf("[%s] %s (code=%d)", e.Kind, e.Message, e.StatusCode)
}

// HTTPStatusCode returns the status code to send to the client.
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// NewMissingCredential reports an absent or non-bearer Authorization header.
func NewMissingCredential() *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusUnauthorized,
		Kind:       KindAuth,
		Message:    "missing or invalid Authorization header",
	}
}

// NewInvalidCredential reports a token that failed signature or expiry checks.
func NewInvalidCredential() *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusForbidden,
		Kind:       KindAuth,
		Message:    "invalid or expired token",
	}
}

// NewMalformedClaims reports a verified token missing required identity claims.
func NewMalformedClaims() *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusBadRequest,
		Kind:       KindAuth,
		Message:    "token missing required user info (subject/email)",
	}
}

// NewUnknownTenant reports a subject with no tenant record when
// auto-provisioning is disabled.
func NewUnknownTenant(subject string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusForbidden,
		Kind:       KindTenant,
		Message:    "unknown tenant",
		Details:    subject,
	}
}

// NewTenantDisabled reports a deactivated tenant.
func NewTenantDisabled() *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusForbidden,
		Kind:       KindTenant,
		Message:    "account is disabled for AI access",
	}
}

// NewQuotaExceeded reports an admission-control denial. retryAfter is a hint
// for when the relevant counter window resets.
func NewQuotaExceeded(reason string, retryAfter time.Duration) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusTooManyRequests,
		Kind:       KindQuotaExceeded,
		Message:    quotaMessage(reason),
		Reason:     reason,
		RetryAfter: retryAfter,
	}
}

func quotaMessage(reason string) string {
	switch reason {
	case ReasonDailyExceeded:
		return "daily AI token limit exceeded"
	case ReasonMonthlyExceeded:
		return "monthly AI token limit exceeded"
	case ReasonRateLimited:
		return "request rate limit exceeded"
	case ReasonTooManyInFlight:
		return "too many concurrent requests"
	default:
		return "quota exceeded"
	}
}

// NewProviderError wraps an upstream failure. The raw response body is kept
// verbatim in Details for logging; it is never paraphrased.
func NewProviderError(provider, model string, statusCode int, rawBody string) *GatewayError {
	return &GatewayError{
		StatusCode: statusCode,
		Kind:       KindProvider,
		Message:    fmt.Sprintf("%s API error (%d)", provider, statusCode),
		Details:    rawBody,
		Provider:   provider,
		Model:      model,
	}
}

// NewMeteringError wraps a usage persistence failure. It is logged by the
// meter and never surfaced to the client.
func NewMeteringError(err error) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusInternalServerError,
		Kind:       KindMetering,
		Message:    "failed to persist usage",
		Details:    err.Error(),
	}
}

// NewInvalidRequest reports a malformed client request.
func NewInvalidRequest(message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusBadRequest,
		Kind:       KindInvalidInput,
		Message:    message,
	}
}

// NewInternal reports an unexpected gateway-side failure.
func NewInternal(message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusInternalServerError,
		Kind:       KindInternal,
		Message:    message,
	}
}

// AsGatewayError coerces any error into a *GatewayError, wrapping unknown
// errors as internal.
func AsGatewayError(err error) *GatewayError {
	if ge, ok := err.(*GatewayError); ok {
		return ge
	}
	return NewInternal(err.Error())
}

// IsKind reports whether err is a GatewayError of the given kind.
func IsKind(err error, kind string) bool {
	ge, ok := err.(*GatewayError)
	return ok && ge.Kind == kind
}
