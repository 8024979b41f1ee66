package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/place/pkg/hub"
)

// SessionState is the lifecycle state of a Session.
type SessionState int32

const (
	// StateActive means all four duties are running.
	StateActive SessionState = iota
	// StateClosing means the close signal fired and duties are winding down.
	StateClosing
	// StateClosed means every duty has exited and the socket is closed.
	StateClosed
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// outbound is one queued message for the write loop.
type outbound struct {
	kind int // websocket.BinaryMessage, PingMessage or PongMessage
	data []byte
}

// Session is one connected client. It runs four duties that share a single
// cancellation signal:
//
//   - readLoop decodes inbound writes and submits them to the Applier
//   - writeLoop drains the outbound queue to the socket
//   - relayLoop forwards hub broadcasts into the outbound queue
//   - keepaliveLoop queues a ping every HeartbeatInterval
//
// Any duty that fails cancels the session; the rest observe the cancellation
// and exit.
type Session struct {
	// Identity
	ID         string
	RemoteAddr string
	CreatedAt  time.Time

	// Connection
	conn *websocket.Conn
	sub  *hub.Subscription

	applier *Applier
	config  *SessionConfig
	metrics *Metrics
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelCauseFunc
	state  atomic.Int32
	out    chan outbound

	wg      sync.WaitGroup
	started atomic.Bool
	done    chan struct{}
	onClose func(*Session)

	// Metrics
	pointsRecv atomic.Uint64
	pointsSent atomic.Uint64
	bytesRecv  atomic.Uint64
	bytesSent  atomic.Uint64
}

// newSession creates a session for conn. The hub subscription must be taken
// before the session starts so no write published after the connection was
// accepted is missed.
func newSession(parent context.Context, conn *websocket.Conn, sub *hub.Subscription, applier *Applier, config *SessionConfig, metrics *Metrics, logger *slog.Logger) *Session {
	config = config.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	ctx, cancel := context.WithCancelCause(parent)

	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		conn:      conn,
		sub:       sub,
		applier:   applier,
		config:    config,
		metrics:   metrics,
		logger:    logger.With("session_id", id),
		ctx:       ctx,
		cancel:    cancel,
		out:       make(chan outbound, config.MaxOutboundQueue),
		done:      make(chan struct{}),
	}
	if conn != nil {
		s.RemoteAddr = conn.RemoteAddr().String()
	}
	return s
}

// Start launches the session duties and the teardown watcher. It returns
// immediately.
func (s *Session) Start() {
	if s.started.Swap(true) {
		return
	}
	s.wg.Add(4)
	go s.readLoop()
	go s.writeLoop()
	go s.relayLoop()
	go s.keepaliveLoop()
	go s.teardown()
}

// Close requests shutdown of the session. It is safe to call from any
// goroutine and more than once; the first cause wins.
func (s *Session) Close() {
	s.closeWithCause(ErrSessionClosed)
}

func (s *Session) closeWithCause(cause error) {
	s.state.CompareAndSwap(int32(StateActive), int32(StateClosing))
	s.cancel(cause)
}

// teardown waits for the close signal, unblocks every duty, and releases the
// session's resources.
func (s *Session) teardown() {
	<-s.ctx.Done()
	s.state.CompareAndSwap(int32(StateActive), int32(StateClosing))

	// A blocked ReadMessage only returns once the socket is closed.
	if s.conn != nil {
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(closeCode(s.Err()), ""),
			time.Now().Add(time.Second),
		)
		_ = s.conn.Close()
	}
	if s.sub != nil {
		s.sub.Close()
	}
	s.wg.Wait()
	s.state.Store(int32(StateClosed))

	s.logger.Info("session closed",
		"reason", s.Err(),
		"points_recv", s.pointsRecv.Load(),
		"points_sent", s.pointsSent.Load(),
		"bytes_recv", s.bytesRecv.Load(),
		"bytes_sent", s.bytesSent.Load(),
		"duration", time.Since(s.CreatedAt).Round(time.Millisecond))

	if s.onClose != nil {
		s.onClose(s)
	}
	close(s.done)
}

// enqueue adds m to the outbound queue without blocking. A full queue closes
// the session.
func (s *Session) enqueue(m outbound) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}
	select {
	case s.out <- m:
		return nil
	default:
		s.logger.Warn("outbound queue full, disconnecting", "capacity", cap(s.out))
		s.closeWithCause(ErrOutboundQueueFull)
		return ErrOutboundQueueFull
	}
}

// State returns the lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// IsClosed reports whether the session has started closing.
func (s *Session) IsClosed() bool {
	return s.ctx.Err() != nil
}

// Err returns the reason the session closed, or nil while it is active.
func (s *Session) Err() error {
	return context.Cause(s.ctx)
}

// Done returns a channel that's closed when teardown has completed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until teardown has completed.
func (s *Session) Wait() {
	<-s.done
}

// Context returns the session context. It is canceled when the session closes.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// SessionStats is a point-in-time view of session counters.
type SessionStats struct {
	ID         string
	State      SessionState
	PointsRecv uint64
	PointsSent uint64
	BytesRecv  uint64
	BytesSent  uint64
	Queued     int
	Age        time.Duration
}

// Stats returns the session counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		ID:         s.ID,
		State:      s.State(),
		PointsRecv: s.pointsRecv.Load(),
		PointsSent: s.pointsSent.Load(),
		BytesRecv:  s.bytesRecv.Load(),
		BytesSent:  s.bytesSent.Load(),
		Queued:     len(s.out),
		Age:        time.Since(s.CreatedAt),
	}
}

// closeCode maps a close cause to the close frame status sent to the client.
func closeCode(cause error) int {
	switch {
	case cause == nil, errors.Is(cause, ErrSessionClosed), errors.Is(cause, ErrServerClosed), errors.Is(cause, context.Canceled):
		return websocket.CloseGoingAway
	case errors.Is(cause, ErrTextFrame):
		return websocket.CloseUnsupportedData
	case errors.Is(cause, ErrOutboundQueueFull), errors.Is(cause, ErrSubscriptionDropped):
		return websocket.ClosePolicyViolation
	default:
		if op, ok := failedOp(cause); ok && op == OpDecode {
			return websocket.CloseProtocolError
		}
		return websocket.CloseNormalClosure
	}
}

// closeReason is the metrics label for a close cause.
func closeReason(cause error) string {
	var ce *websocket.CloseError
	switch {
	case errors.Is(cause, ErrOutboundQueueFull):
		return "outbound_full"
	case errors.Is(cause, ErrSubscriptionDropped):
		return "evicted"
	case errors.Is(cause, ErrTextFrame):
		return "text_frame"
	case errors.As(cause, &ce):
		return "client_closed"
	case errors.Is(cause, ErrSessionClosed), errors.Is(cause, ErrServerClosed), errors.Is(cause, context.Canceled):
		return "server_closed"
	default:
		if op, ok := failedOp(cause); ok {
			return string(op)
		}
		return "error"
	}
}
