package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// SessionManager is the registry of open sessions. It enforces the
// MaxSessions limit and drops each session once its teardown has run.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	limit    int

	opened atomic.Uint64
	closed atomic.Uint64
	peak   atomic.Int64

	onRemove func(*Session)
	logger   *slog.Logger
}

// NewSessionManager returns an empty manager. A limit of 0 admits any number
// of sessions.
func NewSessionManager(limit int, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		limit:    limit,
		logger:   logger.With("component", "session_manager"),
	}
}

// full reports whether the limit is reached. Callers hold mu.
func (sm *SessionManager) full() bool {
	return sm.limit > 0 && len(sm.sessions) >= sm.limit
}

// Reserve returns ErrMaxSessionsReached when Add would currently fail. The
// server calls it before the upgrade so a full server answers with plain HTTP.
func (sm *SessionManager) Reserve() error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.full() {
		return ErrMaxSessionsReached
	}
	return nil
}

// Add registers s and chains a hook onto its teardown that unregisters it.
func (sm *SessionManager) Add(s *Session) error {
	sm.mu.Lock()
	if sm.full() {
		sm.mu.Unlock()
		return ErrMaxSessionsReached
	}
	sm.sessions[s.ID] = s
	active := len(sm.sessions)
	sm.mu.Unlock()

	sm.opened.Add(1)
	for {
		peak := sm.peak.Load()
		if int64(active) <= peak || sm.peak.CompareAndSwap(peak, int64(active)) {
			break
		}
	}

	next := s.onClose
	s.onClose = func(s *Session) {
		if next != nil {
			next(s)
		}
		sm.remove(s)
	}
	sm.logger.Debug("session registered", "session_id", s.ID, "active", active)
	return nil
}

func (sm *SessionManager) remove(s *Session) {
	sm.mu.Lock()
	_, ok := sm.sessions[s.ID]
	delete(sm.sessions, s.ID)
	sm.mu.Unlock()
	if !ok {
		return
	}
	sm.closed.Add(1)
	if sm.onRemove != nil {
		sm.onRemove(s)
	}
}

// Get returns the session with the given ID, or nil.
func (sm *SessionManager) Get(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// Count returns the number of registered sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Sessions returns a snapshot of the registered sessions in no particular
// order.
func (sm *SessionManager) Sessions() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	return out
}

// OnRemove sets a callback run after a session has been unregistered.
// It must be set before sessions are added.
func (sm *SessionManager) OnRemove(fn func(*Session)) {
	sm.onRemove = fn
}

// Shutdown closes every registered session and waits until all of them have
// torn down or ctx is done.
func (sm *SessionManager) Shutdown(ctx context.Context) error {
	sessions := sm.Sessions()

	var wg sync.WaitGroup
	wg.Add(len(sessions))
	for _, s := range sessions {
		s.Close()
		go func() {
			defer wg.Done()
			s.Wait()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		sm.logger.Info("all sessions closed", "count", len(sessions))
		return nil
	case <-ctx.Done():
		sm.logger.Warn("session shutdown timed out", "remaining", sm.Count())
		return ctx.Err()
	}
}

// ManagerStats is a point-in-time view of the session registry.
type ManagerStats struct {
	Active int
	Opened uint64
	Closed uint64
	Peak   int
}

// Stats returns the registry counters.
func (sm *SessionManager) Stats() ManagerStats {
	return ManagerStats{
		Active: sm.Count(),
		Opened: sm.opened.Load(),
		Closed: sm.closed.Load(),
		Peak:   int(sm.peak.Load()),
	}
}
