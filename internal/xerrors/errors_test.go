package xerrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"matchpoint/backend/internal/xerrors"
)

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{xerrors.ErrNotAParticipant, "not_a_participant"},
		{xerrors.ErrSelfAction, "self_action"},
		{xerrors.ErrDuplicateAction, "duplicate_action"},
		{xerrors.ErrRateLimited, "rate_limited"},
		{xerrors.ErrBlocked, "blocked"},
		{xerrors.ErrConversationClosed, "conversation_closed"},
		{xerrors.ErrNotFound, "not_found"},
		{xerrors.NewValidation("content", "empty message"), "validation_failed"},
		{&xerrors.AuthError{Reason: xerrors.ReasonExpiredToken}, "authentication_failed"},
		{xerrors.NewPersistence("message save", errors.New("connection refused")), "internal_error"},
		{errors.New("anything else"), "internal_error"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, xerrors.Code(tc.err), "error %v", tc.err)
	}
}

func TestCodeSeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handling event: %w", xerrors.ErrRateLimited)
	assert.Equal(t, "rate_limited", xerrors.Code(wrapped))

	doubly := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", xerrors.NewValidation("x", "y")))
	assert.Equal(t, "validation_failed", xerrors.Code(doubly))
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := xerrors.NewPersistence("swipe save", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "swipe save")
}

func TestAuthErrorMessage(t *testing.T) {
	bare := &xerrors.AuthError{Reason: xerrors.ReasonMissingToken}
	assert.Contains(t, bare.Error(), xerrors.ReasonMissingToken)

	cause := errors.New("signature mismatch")
	wrapped := &xerrors.AuthError{Reason: xerrors.ReasonMalformedToken, Err: cause}
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "signature mismatch")
}
