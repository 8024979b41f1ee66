package server

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is the cause recorded when the server closes a session
	// for no more specific reason.
	ErrSessionClosed = errors.New("server: session closed")

	// ErrOutboundQueueFull closes a session whose client could not keep up
	// with the broadcast stream.
	ErrOutboundQueueFull = errors.New("server: outbound queue full")

	// ErrSubscriptionDropped closes a session the hub evicted.
	ErrSubscriptionDropped = errors.New("server: hub subscription dropped")

	// ErrTextFrame closes a session that sent a text message.
	ErrTextFrame = errors.New("server: text frames are not accepted")

	// ErrMaxSessionsReached rejects an upgrade once MaxSessions are open.
	ErrMaxSessionsReached = errors.New("server: max sessions reached")

	// ErrApplierStopped is returned by Submit after the applier has exited.
	ErrApplierStopped = errors.New("server: applier stopped")

	// ErrServerClosed is returned once the server has begun shutting down.
	ErrServerClosed = errors.New("server: closed")
)

// Op names the session loop step that failed.
type Op string

const (
	OpRead   Op = "read"
	OpDecode Op = "decode"
	OpSubmit Op = "submit"
	OpWrite  Op = "write"
)

// SessionError records which step of which session ended it.
type SessionError struct {
	SessionID string
	Op        Op
	Err       error
}

func (e *SessionError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// NewSessionError returns a SessionError for op failing with err.
func NewSessionError(sessionID string, op Op, err error) *SessionError {
	return &SessionError{SessionID: sessionID, Op: op, Err: err}
}

// failedOp returns the Op of the SessionError in err's chain, if any.
func failedOp(err error) (Op, bool) {
	var se *SessionError
	if !errors.As(err, &se) {
		return "", false
	}
	return se.Op, true
}
