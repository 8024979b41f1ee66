package server

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/place/pkg/protocol"
)

// readLoop reads client messages until the connection fails or the session
// closes. Each binary message must be exactly one encoded pixel write.
func (s *Session) readLoop() {
	defer s.wg.Done()

	s.conn.SetReadLimit(s.config.MaxMessageSize)
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})
	s.conn.SetPingHandler(func(appData string) error {
		s.extendReadDeadline()
		return s.enqueue(outbound{kind: websocket.PongMessage, data: []byte(appData)})
	})

	for {
		mt, msg, err := s.conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
					websocket.CloseNormalClosure) {
					s.logger.Warn("read error", "error", err)
				}
				s.closeWithCause(NewSessionError(s.ID, OpRead, err))
			}
			return
		}
		s.extendReadDeadline()
		s.bytesRecv.Add(uint64(len(msg)))

		if mt != websocket.BinaryMessage {
			s.logger.Warn("protocol violation", "error", ErrTextFrame)
			s.metrics.protocolError("text_frame")
			s.closeWithCause(ErrTextFrame)
			return
		}

		p, err := protocol.DecodePoint(msg)
		if err != nil {
			s.logger.Warn("protocol violation", "error", err, "size", len(msg))
			s.metrics.protocolError(decodeErrorType(err))
			s.closeWithCause(NewSessionError(s.ID, OpDecode, err))
			return
		}
		s.pointsRecv.Add(1)

		if err := s.applier.Submit(s.ctx, p); err != nil {
			if s.ctx.Err() == nil {
				s.closeWithCause(NewSessionError(s.ID, OpSubmit, err))
			}
			return
		}
	}
}

func (s *Session) extendReadDeadline() {
	if s.config.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}
}

// writeLoop writes queued messages in FIFO order.
func (s *Session) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case m := <-s.out:
			if err := s.write(m); err != nil {
				if s.ctx.Err() == nil {
					s.logger.Warn("write error", "error", err)
					s.closeWithCause(NewSessionError(s.ID, OpWrite, err))
				}
				return
			}
		}
	}
}

func (s *Session) write(m outbound) error {
	deadline := time.Now().Add(s.config.WriteTimeout)
	switch m.kind {
	case websocket.PingMessage, websocket.PongMessage:
		return s.conn.WriteControl(m.kind, m.data, deadline)
	default:
		_ = s.conn.SetWriteDeadline(deadline)
		if err := s.conn.WriteMessage(m.kind, m.data); err != nil {
			return err
		}
		s.pointsSent.Add(1)
		s.bytesSent.Add(uint64(len(m.data)))
		return nil
	}
}

// relayLoop forwards hub broadcasts to the outbound queue.
func (s *Session) relayLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case p, ok := <-s.sub.C():
			if !ok {
				if s.sub.Dropped() {
					s.logger.Warn("evicted by hub, disconnecting")
					s.closeWithCause(ErrSubscriptionDropped)
				} else {
					s.closeWithCause(ErrServerClosed)
				}
				return
			}
			if err := s.enqueue(outbound{kind: websocket.BinaryMessage, data: protocol.EncodePoint(p)}); err != nil {
				return
			}
		}
	}
}

// keepaliveLoop queues a ping every HeartbeatInterval.
func (s *Session) keepaliveLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.enqueue(outbound{kind: websocket.PingMessage}); err != nil {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func decodeErrorType(err error) string {
	switch {
	case errors.Is(err, protocol.ErrBufferTooShort):
		return "short_message"
	case errors.Is(err, protocol.ErrTrailingBytes):
		return "long_message"
	default:
		return "decode"
	}
}
