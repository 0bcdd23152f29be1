// Package errs defines the error families used across the exchange packages.
//
// Two kinds of failures are kept apart so callers can branch on them instead
// of comparing message strings:
//
//   - ValidationError: the caller handed us something malformed (bad token
//     segments, missing fields, empty parameters). Never retried.
//   - TrustError: the input parsed fine but cannot be trusted (expired,
//     bad signature, wrong issuer, wrong owner).
//
// Each error carries a stable string code that the layers above render into
// user-facing messages.
package errs

import (
	"fmt"
	"strings"
)

// Stable error codes consumed by the SDK surface.
const (
	CodeInvalidParams    = "invalid-parameters"
	CodeMalformedToken   = "malformed-token"
	CodeTokenExpired     = "token-expired"
	CodeInvalidToken     = "invalid-token"
	CodeSignatureInvalid = "signature-invalid"
	CodeIssuerMismatch   = "issuer-mismatch"
	CodeOwnershipInvalid = "ownership-invalid"
	CodeNoMatchingType   = "no-matching-offered-credential-type"
	CodeRequestNotFound  = "unable-to-locate-request-token"
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Code    string
	Message string
	// Fields lists every offending field when the failure spans multiple
	// inputs, e.g. shape checks across a batch of supplied credentials.
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s (missing: %s)", e.Code, e.Message, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on code so sentinel comparisons work with errors.Is.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Code == e.Code
}

// NewValidationError creates a ValidationError with the given code and message.
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// TrustError reports a verification failure on otherwise well-formed input.
type TrustError struct {
	Code    string
	Message string
}

func (e *TrustError) Error() string {
	return e.Message
}

// Is matches on code so sentinel comparisons work with errors.Is.
func (e *TrustError) Is(target error) bool {
	t, ok := target.(*TrustError)
	return ok && t.Code == e.Code
}

// Sentinel trust errors. The messages are part of the SDK surface; callers
// render them to end users as-is.
var (
	ErrTokenExpired     = &TrustError{Code: CodeTokenExpired, Message: "Token expired"}
	ErrInvalidToken     = &TrustError{Code: CodeInvalidToken, Message: "Token is invalid"}
	ErrSignatureInvalid = &TrustError{Code: CodeSignatureInvalid, Message: "Signature on token is invalid"}
	ErrIssuerMismatch   = &TrustError{Code: CodeIssuerMismatch, Message: "Token not issued by expected issuer."}
)

// Sentinel validation errors for the selection and correlation paths.
var (
	ErrNoMatchingType = &ValidationError{
		Code:    CodeNoMatchingType,
		Message: "no credential matches an offered credential type",
	}
	ErrRequestNotFound = &ValidationError{
		Code:    CodeRequestNotFound,
		Message: "unable to locate the request token matching this response",
	}
)

// NewMalformedTokenError creates the structural decode failure.
func NewMalformedTokenError(reason string) *ValidationError {
	return &ValidationError{Code: CodeMalformedToken, Message: reason}
}
