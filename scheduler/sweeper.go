// Package scheduler runs the periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the sweep at the top of every hour.
const DefaultSchedule = "@hourly"

// Purger deletes view charges whose expiration is before t.
type Purger interface {
	PurgeExpiredViewCharges(ctx context.Context, t time.Time) (int64, error)
}

// Sweeper deletes expired view charges on a cron schedule.
type Sweeper struct {
	purger   Purger
	schedule string
	logger   *slog.Logger
	now      func() time.Time
	timeout  time.Duration

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithSchedule sets the cron spec. Descriptors such as "@every 10m" work.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithTimeout bounds a single sweep.
func WithTimeout(d time.Duration) Option {
	return func(s *Sweeper) { s.timeout = d }
}

// NewSweeper returns a stopped Sweeper.
func NewSweeper(p Purger, opts ...Option) *Sweeper {
	s := &Sweeper{
		purger:   p,
		schedule: DefaultSchedule,
		logger:   slog.Default(),
		now:      time.Now,
		timeout:  time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the sweep. Calling Start on a running Sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	c := cron.New()
	runCtx, cancel := context.WithCancel(ctx)
	if _, err := c.AddFunc(s.schedule, func() { s.sweep(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("scheduler: invalid schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.cron, s.cancel = c, cancel
	s.logger.Info("view charge sweeper started", "schedule", s.schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	cancel()
	s.logger.Info("view charge sweeper stopped")
}

// RunOnce performs a single sweep and returns the number of rows deleted.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.purger.PurgeExpiredViewCharges(ctx, s.now().UTC())
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("view charge sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("expired view charges purged", "count", n)
	}
}
