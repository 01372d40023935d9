// Package errors defines the gateway's error taxonomy.
//
// Every ledger-mutating operation reports failures as a *ServiceError carrying
// a stable Code. Handlers render them as a short JSON message; callers branch
// on the code with errors.Is against the exported sentinels.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// Code identifies an error class.
type Code string

const (
	CodeInvalidAccount      Code = "INVALID_ACCOUNT"
	CodeInvalidSeed         Code = "INVALID_SEED"
	CodeParameterMismatch   Code = "PARAMETER_MISMATCH"
	CodeUnsupportedCall     Code = "UNSUPPORTED_CALL"
	CodeSigningError        Code = "SIGNING_ERROR"
	CodeSubmissionRejected  Code = "SUBMISSION_REJECTED"
	CodeSubmissionTimedOut  Code = "SUBMISSION_TIMED_OUT"
	CodeEventNotFound       Code = "EVENT_NOT_FOUND"
	CodeEventDecodeError    Code = "EVENT_DECODE_ERROR"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeSeedNotProvisioned  Code = "SEED_NOT_PROVISIONED"
	CodeInvalidRequest      Code = "INVALID_REQUEST"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInternal            Code = "INTERNAL"
)

// ServiceError is a classified failure.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches any *ServiceError with the same code, so the sentinels below
// work with errors.Is.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails attaches a detail entry and returns the same error.
func (e *ServiceError) WithDetails(key string, value any) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// ServerFault reports whether the error is the gateway's (or an upstream's)
// fault rather than a problem with the client's input.
func (e *ServiceError) ServerFault() bool {
	switch e.Code {
	case CodeSigningError, CodeEventDecodeError, CodeUpstreamUnavailable,
		CodeUnsupportedCall, CodeSubmissionTimedOut, CodeInternal:
		return true
	}
	return false
}

// =============================================================================
// Sentinels
// =============================================================================

var (
	ErrInvalidAccount      = &ServiceError{Code: CodeInvalidAccount}
	ErrInvalidSeed         = &ServiceError{Code: CodeInvalidSeed}
	ErrParameterMismatch   = &ServiceError{Code: CodeParameterMismatch}
	ErrUnsupportedCall     = &ServiceError{Code: CodeUnsupportedCall}
	ErrSigningError        = &ServiceError{Code: CodeSigningError}
	ErrSubmissionRejected  = &ServiceError{Code: CodeSubmissionRejected}
	ErrSubmissionTimedOut  = &ServiceError{Code: CodeSubmissionTimedOut}
	ErrEventNotFound       = &ServiceError{Code: CodeEventNotFound}
	ErrEventDecodeError    = &ServiceError{Code: CodeEventDecodeError}
	ErrUpstreamUnavailable = &ServiceError{Code: CodeUpstreamUnavailable}
	ErrSeedNotProvisioned  = &ServiceError{Code: CodeSeedNotProvisioned}
	ErrInvalidRequest      = &ServiceError{Code: CodeInvalidRequest}
	ErrUnauthorized        = &ServiceError{Code: CodeUnauthorized}
	ErrNotFound            = &ServiceError{Code: CodeNotFound}
)

// =============================================================================
// Constructors
// =============================================================================

func newError(code Code, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// InvalidAccount reports a malformed account string.
func InvalidAccount(input string, err error) *ServiceError {
	return newError(CodeInvalidAccount, http.StatusBadRequest, "Invalid account", err).
		WithDetails("account", input)
}

// InvalidSeed reports unusable key material. The seed itself is never attached.
func InvalidSeed(err error) *ServiceError {
	return newError(CodeInvalidSeed, http.StatusBadRequest, "Invalid seed", err)
}

// ParameterMismatch reports parallel vectors of different lengths.
func ParameterMismatch(field string, want, got int) *ServiceError {
	msg := fmt.Sprintf("Parameter mismatch: %s has %d entries, expected %d", field, got, want)
	return newError(CodeParameterMismatch, http.StatusBadRequest, msg, nil).
		WithDetails("field", field)
}

// UnsupportedCall reports a descriptor the pipeline cannot construct.
func UnsupportedCall(name string, err error) *ServiceError {
	return newError(CodeUnsupportedCall, http.StatusBadRequest, "Unsupported call "+name, err)
}

// SigningFailed reports a cryptographic failure while signing.
func SigningFailed(err error) *ServiceError {
	return newError(CodeSigningError, http.StatusBadRequest, "Failed to sign extrinsic", err)
}

// SubmissionRejected carries the ledger's reason verbatim.
func SubmissionRejected(reason string) *ServiceError {
	return newError(CodeSubmissionRejected, http.StatusBadRequest, reason, nil)
}

// SubmissionTimedOut reports a finality wait that outlived its deadline.
func SubmissionTimedOut(after time.Duration) *ServiceError {
	msg := fmt.Sprintf("Extrinsic not finalized within %s", after)
	return newError(CodeSubmissionTimedOut, http.StatusBadRequest, msg, nil)
}

// EventNotFound reports a finalized extrinsic without the expected event.
func EventNotFound(event string) *ServiceError {
	return newError(CodeEventNotFound, http.StatusBadRequest, "Failed to find "+event, nil)
}

// EventDecode reports a malformed event payload.
func EventDecode(event string, err error) *ServiceError {
	return newError(CodeEventDecodeError, http.StatusBadRequest, "Failed to decode "+event, err)
}

// UpstreamUnavailable reports an unreachable ledger or identity provider.
func UpstreamUnavailable(upstream string, err error) *ServiceError {
	return newError(CodeUpstreamUnavailable, http.StatusBadRequest, upstream+" unavailable", err)
}

// SeedNotProvisioned reports a user without key material.
func SeedNotProvisioned() *ServiceError {
	return newError(CodeSeedNotProvisioned, http.StatusBadRequest, "No key material provisioned for user", nil)
}

// InvalidRequest reports a malformed request body.
func InvalidRequest(message string, err error) *ServiceError {
	return newError(CodeInvalidRequest, http.StatusBadRequest, message, err)
}

// Unauthorized reports missing or unusable credentials.
func Unauthorized(message string) *ServiceError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

// InvalidToken reports a bearer token that failed validation.
func InvalidToken(err error) *ServiceError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, "Invalid token", err)
}

// RateLimitExceeded reports a throttled caller.
func RateLimitExceeded(limit int, window string) *ServiceError {
	msg := fmt.Sprintf("Rate limit exceeded: %d requests per %s", limit, window)
	return newError(CodeRateLimited, http.StatusTooManyRequests, msg, nil)
}

// NotFound reports a missing resource.
func NotFound(resource string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, resource+" not found", nil)
}

// Internal reports an unexpected failure.
func Internal(message string, err error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, err)
}

// GetServiceError extracts a *ServiceError from an error chain.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}
