package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/place/pkg/canvas"
	"github.com/vango-dev/place/pkg/hub"
)

// DefaultApplierQueue is the default capacity of the inbound write queue.
const DefaultApplierQueue = 4096

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// WithQueueSize sets the inbound queue capacity.
func WithQueueSize(n int) ApplierOption {
	return func(a *Applier) {
		if n > 0 {
			a.queueSize = n
		}
	}
}

// WithApplierLogger sets the logger.
func WithApplierLogger(logger *slog.Logger) ApplierOption {
	return func(a *Applier) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithApplierMetrics records applied and dropped writes.
func WithApplierMetrics(m *Metrics) ApplierOption {
	return func(a *Applier) {
		a.metrics = m
	}
}

// Applier is the single writer to the canvas. Every session submits its
// decoded writes here; Run applies them one at a time in arrival order and
// publishes the ones that changed the canvas.
type Applier struct {
	store     *canvas.Store
	hub       *hub.Hub
	queueSize int
	queue     chan canvas.Pixel
	logger    *slog.Logger
	metrics   *Metrics

	runOnce sync.Once
	done    chan struct{}

	applied atomic.Uint64
	dropped atomic.Uint64
}

// ApplierStats is a point-in-time view of applier counters.
type ApplierStats struct {
	Applied uint64
	Dropped uint64
	Queued  int
}

// NewApplier creates an applier writing to store and publishing to h.
func NewApplier(store *canvas.Store, h *hub.Hub, opts ...ApplierOption) *Applier {
	a := &Applier{
		store:     store,
		hub:       h,
		queueSize: DefaultApplierQueue,
		logger:    slog.Default(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.queue = make(chan canvas.Pixel, a.queueSize)
	a.logger = a.logger.With("component", "applier")
	return a
}

// Run applies queued writes until ctx is canceled. Writes still queued at
// that point are discarded. Run may only be called once.
func (a *Applier) Run(ctx context.Context) error {
	started := false
	a.runOnce.Do(func() { started = true })
	if !started {
		return ErrApplierStopped
	}
	defer close(a.done)

	for {
		select {
		case <-ctx.Done():
			if n := len(a.queue); n > 0 {
				a.logger.Debug("applier stopping with queued writes", "queued", n)
			}
			return ctx.Err()
		case p := <-a.queue:
			a.Apply(p)
		}
	}
}

// Submit queues a write. It blocks while the queue is full, which pushes back
// on the submitting connection only.
func (a *Applier) Submit(ctx context.Context, p canvas.Pixel) error {
	select {
	case <-a.done:
		return ErrApplierStopped
	default:
	}
	select {
	case a.queue <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrApplierStopped
	}
}

// Apply writes p to the canvas and, when it landed inside the grid,
// broadcasts it. Out-of-range writes are dropped without broadcast.
func (a *Applier) Apply(p canvas.Pixel) bool {
	if !a.store.Set(p) {
		a.dropped.Add(1)
		a.metrics.pixelDropped()
		return false
	}
	a.applied.Add(1)
	n := a.hub.Publish(p)
	a.metrics.pixelApplied(n)
	return true
}

// Done is closed when Run returns.
func (a *Applier) Done() <-chan struct{} {
	return a.done
}

// Stats returns the applier counters.
func (a *Applier) Stats() ApplierStats {
	return ApplierStats{
		Applied: a.applied.Load(),
		Dropped: a.dropped.Load(),
		Queued:  len(a.queue),
	}
}
