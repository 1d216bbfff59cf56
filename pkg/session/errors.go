package session

import "fmt"

// ValidationError reports malformed user input that can be fixed by resubmitting.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError reports a missing session, option or group.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// PermissionError reports a non-creator attempting a creator-only mutation.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return e.Message
}

// StateError reports an operation that is invalid for the session's current status.
type StateError struct {
	Message string
}

func (e *StateError) Error() string {
	return e.Message
}

// NoWinnerError reports a confirm attempt on a session with zero yes votes.
type NoWinnerError struct {
	SessionID string
}

func (e *NoWinnerError) Error() string {
	return fmt.Sprintf("session %s has no yes votes to pick a winner from", e.SessionID)
}
