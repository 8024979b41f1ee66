package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/place/pkg/canvas"
	"github.com/vango-dev/place/pkg/hub"
	placemw "github.com/vango-dev/place/pkg/middleware"
	"github.com/vango-dev/place/pkg/snapshot"
)

const tracerName = "github.com/vango-dev/place/pkg/server"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics and the /metrics endpoint.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithCodec sets the raster codec used by the image endpoint.
// Default: PNG.
func WithCodec(c snapshot.Codec) Option {
	return func(s *Server) {
		if c.Encode != nil {
			s.codec = c
		}
	}
}

// Server is the HTTP/WebSocket front of a place canvas.
type Server struct {
	config *ServerConfig

	store    *canvas.Store
	hub      *hub.Hub
	applier  *Applier
	sessions *SessionManager
	codec    snapshot.Codec
	metrics  *Metrics

	// WebSocket upgrader
	upgrader websocket.Upgrader

	handler    http.Handler
	httpServer *http.Server

	// ctx is the parent of every session context.
	ctx    context.Context
	cancel context.CancelFunc

	shutdownOnce sync.Once
	shutdownErr  error

	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a server for store and h and starts its applier. Callers must
// call Shutdown to release it.
func New(config *ServerConfig, store *canvas.Store, h *hub.Hub, opts ...Option) *Server {
	config = config.withDefaults()
	png, _ := snapshot.CodecFor(snapshot.DefaultPath)

	s := &Server{
		config: config,
		store:  store,
		hub:    h,
		codec:  png,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  config.ReadBufferSize,
		WriteBufferSize: config.WriteBufferSize,
		CheckOrigin:     config.CheckOrigin,
	}
	s.sessions = NewSessionManager(config.MaxSessions, s.logger)
	s.applier = NewApplier(store, h,
		WithQueueSize(config.ApplierQueue),
		WithApplierLogger(s.logger),
		WithApplierMetrics(s.metrics))
	s.metrics.ObserveHub(h)

	s.ctx, s.cancel = context.WithCancel(context.Background())
	go func() {
		_ = s.applier.Run(s.ctx)
	}()

	s.handler = s.routes()
	return s
}

// routes builds the HTTP router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(placemw.Prometheus(
			placemw.WithRegistry(s.metrics.Registry()),
			placemw.WithNamespace(s.metrics.config.Namespace),
			placemw.WithConstLabels(s.metrics.config.ConstLabels)))
	}

	r.Get("/ws", s.HandleWebSocket)
	r.Method(http.MethodGet, s.config.ImagePath, traced(s.config.ImagePath, s.handleImage))
	if s.config.ImagePath != "/canvas" {
		r.Method(http.MethodGet, "/canvas", traced("/canvas", s.handleImage))
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	return r
}

// traced wraps a plain HTTP route in a server span. The websocket route is
// left out: its span would last as long as the connection.
func traced(route string, fn http.HandlerFunc) http.Handler {
	return otelhttp.NewHandler(fn, "GET "+route,
		otelhttp.WithMessageEvents(otelhttp.WriteEvents))
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// HandleWebSocket upgrades the request and runs a session for it.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	if err := s.sessions.Reserve(); err != nil {
		s.logger.Warn("session rejected", "error", err, "remote", r.RemoteAddr)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	// Subscribe before anything else so no write after this point is missed.
	sub, err := s.hub.Subscribe()
	if err != nil {
		s.logger.Warn("hub closed, rejecting session", "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	session := newSession(s.ctx, conn, sub, s.applier, s.config.SessionConfig, s.metrics, s.logger)
	session.RemoteAddr = r.RemoteAddr
	session.onClose = func(sess *Session) {
		s.metrics.sessionClosed(closeReason(sess.Err()))
	}
	if err := s.sessions.Add(session); err != nil {
		s.logger.Warn("session rejected", "error", err, "remote", r.RemoteAddr)
		sub.Close()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()), time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	s.metrics.sessionOpened()
	session.Start()

	session.Logger().Info("session started", "remote", session.RemoteAddr)
}

// handleImage serves the current canvas in the configured raster format.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer.Start(r.Context(), "canvas.encode",
		trace.WithAttributes(attribute.String("canvas.format", s.codec.Name)))
	defer span.End()

	img := s.store.Snapshot()
	data, err := snapshot.EncodeWith(s.codec, img)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("encode canvas failed", "error", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.Int("canvas.bytes", len(data)))

	w.Header().Set("Content-Type", s.codec.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

// Run listens on the configured address and serves until ctx is canceled or
// the process receives SIGINT or SIGTERM, then shuts down. A bind failure is
// returned immediately.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-shutdown:
		s.logger.Info("shutting down...", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("shutting down...")
	}
	return s.Shutdown(context.Background())
}

// Shutdown closes every session, stops accepting connections, and stops the
// applier. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		s.cancel()
		if err := s.sessions.Shutdown(ctx); err != nil {
			s.shutdownErr = err
		}
		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.logger.Error("shutdown error", "error", err)
				s.shutdownErr = errors.Join(s.shutdownErr, err)
			}
		}
		s.hub.Close()
		<-s.applier.Done()

		st := s.applier.Stats()
		s.logger.Info("server shutdown complete",
			"pixels_applied", st.Applied, "pixels_dropped", st.Dropped)
	})
	return s.shutdownErr
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Applier returns the inbound write applier.
func (s *Server) Applier() *Applier {
	return s.applier
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}
