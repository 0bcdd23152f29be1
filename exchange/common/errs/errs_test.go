package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrustErrorIsMatchesOnCode(t *testing.T) {
	wrapped := fmt.Errorf("verifying envelope: %w", ErrTokenExpired)
	assert.True(t, errors.Is(wrapped, ErrTokenExpired))
	assert.False(t, errors.Is(wrapped, ErrSignatureInvalid))

	// Two instances with the same code compare equal.
	other := &TrustError{Code: CodeTokenExpired, Message: "different message"}
	assert.True(t, errors.Is(other, ErrTokenExpired))
}

func TestValidationErrorIsMatchesOnCode(t *testing.T) {
	err := NewMalformedTokenError("token must have 3 segments")
	assert.True(t, errors.Is(err, &ValidationError{Code: CodeMalformedToken}))
	assert.False(t, errors.Is(err, &ValidationError{Code: CodeInvalidParams}))
}

func TestValidationErrorMessage(t *testing.T) {
	plain := NewValidationError(CodeInvalidParams, "offered credentials must not be empty")
	assert.Equal(t, "invalid-parameters: offered credentials must not be empty", plain.Error())

	withFields := &ValidationError{
		Code:    CodeInvalidParams,
		Message: "supplied credentials are missing required fields",
		Fields:  []string{"suppliedCredentials[0].issuanceDate", "suppliedCredentials[1].credentialSubject"},
	}
	assert.Contains(t, withFields.Error(), "suppliedCredentials[0].issuanceDate")
	assert.Contains(t, withFields.Error(), "suppliedCredentials[1].credentialSubject")
}

func TestSentinelMessages(t *testing.T) {
	assert.Equal(t, "Token expired", ErrTokenExpired.Error())
	assert.Equal(t, "Signature on token is invalid", ErrSignatureInvalid.Error())
	assert.Equal(t, "Token not issued by expected issuer.", ErrIssuerMismatch.Error())
}
