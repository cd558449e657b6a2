package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsUnwrap(t *testing.T) {
	cases := []struct {
		err  error
		kind error
		msg  string
	}{
		{Validation("must be at least 18"), ErrValidation, "must be at least 18"},
		{Conflict("email taken"), ErrConflict, "email taken"},
		{NotFound("user not found"), ErrNotFound, "user not found"},
		{Unauthenticated(), ErrAuthentication, InvalidCredentialsMessage},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("op: %w", tc.err)
		assert.True(t, errors.Is(wrapped, tc.kind))
		assert.Equal(t, tc.msg, Message(wrapped))
	}
}

func TestMessageOfPlainError(t *testing.T) {
	assert.Equal(t, "", Message(errors.New("boom")))
	assert.Equal(t, "conflict", (&Error{Kind: ErrConflict}).Error())
}

func TestStatusAndProviderEnums(t *testing.T) {
	assert.True(t, VerificationPending.Valid())
	assert.False(t, VerificationStatus("approved").Valid())
	assert.True(t, VerificationRejected.Outcome())
	assert.False(t, VerificationPending.Outcome())
	assert.True(t, ProviderFacebook.Valid())
	assert.False(t, Provider("github").Valid())
}
