package server

import (
	"context"
	"errors"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/place/pkg/protocol"
)

func newDetachedSession(t *testing.T, config *SessionConfig) *Session {
	t.Helper()
	return newSession(context.Background(), nil, nil, nil, config, nil, nil)
}

func TestNewSession(t *testing.T) {
	s := newDetachedSession(t, nil)

	if s.ID == "" {
		t.Error("Session ID should not be empty")
	}
	if s.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if s.State() != StateActive {
		t.Errorf("State() = %v, want active", s.State())
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v, want nil", s.Err())
	}
	if cap(s.out) != DefaultSessionConfig().MaxOutboundQueue {
		t.Errorf("outbound capacity = %d", cap(s.out))
	}
}

func TestNewSession_UniqueIDs(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newDetachedSession(t, nil).ID
		if ids[id] {
			t.Fatalf("duplicate session ID %q", id)
		}
		ids[id] = true
	}
}

func TestSession_OutboundOverflowCloses(t *testing.T) {
	s := newDetachedSession(t, &SessionConfig{MaxOutboundQueue: 2})

	for i := 0; i < 2; i++ {
		if err := s.enqueue(outbound{kind: websocket.BinaryMessage}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := s.enqueue(outbound{kind: websocket.BinaryMessage}); !errors.Is(err, ErrOutboundQueueFull) {
		t.Fatalf("enqueue past capacity = %v, want ErrOutboundQueueFull", err)
	}
	if !errors.Is(s.Err(), ErrOutboundQueueFull) {
		t.Errorf("Err() = %v, want ErrOutboundQueueFull", s.Err())
	}
	if s.State() != StateClosing {
		t.Errorf("State() = %v, want closing", s.State())
	}
	if err := s.enqueue(outbound{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("enqueue after close = %v, want ErrSessionClosed", err)
	}
}

func TestSession_CloseFirstCauseWins(t *testing.T) {
	s := newDetachedSession(t, nil)
	s.closeWithCause(ErrTextFrame)
	s.Close()

	if !errors.Is(s.Err(), ErrTextFrame) {
		t.Errorf("Err() = %v, want ErrTextFrame", s.Err())
	}
	if !s.IsClosed() {
		t.Error("IsClosed() = false after close")
	}
	select {
	case <-s.Context().Done():
	default:
		t.Error("context not canceled")
	}
}

func TestSession_ParentCancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSession(ctx, nil, nil, nil, nil, nil, nil)
	cancel()
	if !errors.Is(s.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", s.Err())
	}
}

func TestSessionState_String(t *testing.T) {
	tests := map[SessionState]string{
		StateActive:      "active",
		StateClosing:     "closing",
		StateClosed:      "closed",
		SessionState(42): "unknown",
	}
	for st, want := range tests {
		if got := st.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", st, got, want)
		}
	}
}

func TestCloseCodeAndReason(t *testing.T) {
	decodeErr := NewSessionError("s", OpDecode, protocol.ErrBufferTooShort)
	clientClose := NewSessionError("s", OpRead, &websocket.CloseError{Code: websocket.CloseNormalClosure})

	tests := []struct {
		cause  error
		code   int
		reason string
	}{
		{ErrSessionClosed, websocket.CloseGoingAway, "server_closed"},
		{context.Canceled, websocket.CloseGoingAway, "server_closed"},
		{ErrTextFrame, websocket.CloseUnsupportedData, "text_frame"},
		{ErrOutboundQueueFull, websocket.ClosePolicyViolation, "outbound_full"},
		{ErrSubscriptionDropped, websocket.ClosePolicyViolation, "evicted"},
		{decodeErr, websocket.CloseProtocolError, "decode"},
		{clientClose, websocket.CloseNormalClosure, "client_closed"},
	}
	for _, tt := range tests {
		if got := closeCode(tt.cause); got != tt.code {
			t.Errorf("closeCode(%v) = %d, want %d", tt.cause, got, tt.code)
		}
		if got := closeReason(tt.cause); got != tt.reason {
			t.Errorf("closeReason(%v) = %q, want %q", tt.cause, got, tt.reason)
		}
	}
}

func TestDecodeErrorType(t *testing.T) {
	_, short := protocol.DecodePoint(make([]byte, 3))
	_, long := protocol.DecodePoint(make([]byte, 30))
	if got := decodeErrorType(short); got != "short_message" {
		t.Errorf("short = %q", got)
	}
	if got := decodeErrorType(long); got != "long_message" {
		t.Errorf("long = %q", got)
	}
	if got := decodeErrorType(errors.New("x")); got != "decode" {
		t.Errorf("other = %q", got)
	}
}
