package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vango-dev/place/pkg/canvas"
)

// DefaultInterval is the default time between scheduled saves.
const DefaultInterval = 120 * time.Second

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// SaveResult describes one completed save attempt.
type SaveResult struct {
	Reason   string
	Duration time.Duration
	Err      error
	Verified bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the time between saves.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithCron schedules saves from a cron expression instead of a fixed
// interval. Seconds are optional; descriptors such as "@hourly" work.
func WithCron(expr string) SchedulerOption {
	return func(s *Scheduler) {
		s.cronExpr = strings.TrimSpace(expr)
	}
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOnSave registers a callback invoked after every save attempt.
func WithOnSave(fn func(SaveResult)) SchedulerOption {
	return func(s *Scheduler) {
		s.onSave = fn
	}
}

// Scheduler periodically writes the canvas to its snapshot file and performs
// the final save on shutdown.
type Scheduler struct {
	store    *canvas.Store
	file     *File
	interval time.Duration
	cronExpr string
	logger   *slog.Logger
	onSave   func(SaveResult)

	// mu serializes saves so a shutdown flush never interleaves with a tick.
	mu sync.Mutex

	cron    *cron.Cron
	started bool
}

// NewScheduler creates a scheduler for store and file. It does not start
// saving until Start is called.
func NewScheduler(store *canvas.Store, file *File, opts ...SchedulerOption) (*Scheduler, error) {
	s := &Scheduler{
		store:    store,
		file:     file,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")

	if s.cronExpr != "" {
		if err := ValidateCron(s.cronExpr); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ValidateCron reports whether expr is a schedule the scheduler accepts:
// five or six fields (seconds optional) or a descriptor such as "@every 2m".
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("snapshot: invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// schedule returns the cron schedule for the configured interval or expression.
func (s *Scheduler) schedule() (cron.Schedule, error) {
	if s.cronExpr != "" {
		return cronParser.Parse(s.cronExpr)
	}
	return cron.Every(s.interval), nil
}

// Start begins scheduled saves. Ticks that would overlap a running save are
// skipped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrSchedulerStarted
	}

	sched, err := s.schedule()
	if err != nil {
		return err
	}

	log := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	s.cron.Schedule(sched, cron.FuncJob(func() {
		_ = s.SaveNow(context.Background(), "scheduled")
	}))
	s.cron.Start()
	s.started = true

	if s.cronExpr != "" {
		s.logger.Info("scheduled saves started", "cron", s.cronExpr)
	} else {
		s.logger.Info("scheduled saves started", "interval", s.interval)
	}
	return nil
}

// Stop stops scheduling and waits for an in-flight save to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.started = false
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the time of the next scheduled save, or the zero time when
// the scheduler is not running.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c == nil {
		return time.Time{}
	}
	entries := c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// SaveNow takes a snapshot, writes it (archiving the previous file when
// enabled), and reloads it as a sanity check. Failures are logged and
// returned; they never stop the scheduler.
func (s *Scheduler) SaveNow(ctx context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, reason)
}

// Flush performs the final synchronous save. It is the same operation as
// SaveNow and returns only once the file is on disk.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.logger.Info("saving canvas before exit")
	return s.SaveNow(ctx, "shutdown")
}

func (s *Scheduler) saveLocked(ctx context.Context, reason string) error {
	start := time.Now()
	res := SaveResult{Reason: reason}
	defer func() {
		res.Duration = time.Since(start)
		if s.onSave != nil {
			s.onSave(res)
		}
	}()

	img := s.store.Snapshot()
	if err := s.file.Save(ctx, img); err != nil {
		s.logger.Error("save failed", "reason", reason, "error", err)
		res.Err = err
		return err
	}

	if _, err := s.file.Load(ctx); err != nil {
		s.logger.Error("saved snapshot failed to reload", "reason", reason, "error", err)
	} else {
		res.Verified = true
	}

	s.logger.Debug("save completed", "reason", reason, "duration", time.Since(start))
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
