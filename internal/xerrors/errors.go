// Package xerrors provides the structured error taxonomy for the realtime
// engine. Every error crossing the dispatcher boundary maps to a stable
// machine-readable code clients can switch on.
package xerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNotAParticipant    = errors.New("caller is not a participant of the conversation")
	ErrSelfAction         = errors.New("action targets the acting user")
	ErrDuplicateAction    = errors.New("action already recorded")
	ErrRateLimited        = errors.New("message rate limit exceeded")
	ErrBlocked            = errors.New("interaction blocked between participants")
	ErrConversationClosed = errors.New("conversation is no longer active")
	ErrNotFound           = errors.New("resource not found")
)

// AuthError rejects a handshake. Reason is a typed, client-displayable
// string; the connection carrying it is closed, not just the event.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Handshake rejection reasons.
const (
	ReasonMalformedToken = "malformed_token"
	ReasonExpiredToken   = "expired_token"
	ReasonUnknownSubject = "unknown_subject"
	ReasonSubjectLocked  = "subject_locked"
	ReasonMissingToken   = "missing_token"
)

// ValidationError rejects a malformed, oversized, or empty payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidation creates a validation error for a payload field.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PersistenceError wraps a store failure. The operation it aborted is
// surfaced to the caller as a generic failure; details stay in the logs.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistence wraps a store error with the failing operation.
func NewPersistence(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// Code maps an error to its wire code for in-band error events.
func Code(err error) string {
	var ve *ValidationError
	var ae *AuthError
	var pe *PersistenceError
	switch {
	case errors.As(err, &ve):
		return "validation_failed"
	case errors.As(err, &ae):
		return "authentication_failed"
	case errors.As(err, &pe):
		return "internal_error"
	case errors.Is(err, ErrNotAParticipant):
		return "not_a_participant"
	case errors.Is(err, ErrSelfAction):
		return "self_action"
	case errors.Is(err, ErrDuplicateAction):
		return "duplicate_action"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case errors.Is(err, ErrConversationClosed):
		return "conversation_closed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}
