// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

// =============================================================================
// ERRORS
// =============================================================================

// SessionError wraps failures raised while driving a turn.
type SessionError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes session errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeValidation
	ErrTypeBusy
	ErrTypeConnect
	ErrTypeStream
	ErrTypeCancelled
)

// Sentinel errors for easy checking.
var (
	// ErrEmptyMessage is returned when a turn is sent with no content
	// and no attachment.
	ErrEmptyMessage = &SessionError{Type: ErrTypeValidation, Message: "message is empty"}

	// ErrNoModel is returned when no model has been selected.
	ErrNoModel = &SessionError{Type: ErrTypeValidation, Message: "no model selected"}

	// ErrNoConversation is returned when no conversation is bound.
	ErrNoConversation = &SessionError{Type: ErrTypeValidation, Message: "no conversation bound"}

	// ErrTurnInFlight is returned when an operation requires an idle
	// session but a turn is still streaming.
	ErrTurnInFlight = &SessionError{Type: ErrTypeBusy, Message: "a turn is already in flight"}
)
