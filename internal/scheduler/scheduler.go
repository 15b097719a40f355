// Package scheduler drives the periodic day-rollover check.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval is how often the current day is re-derived.
const DefaultInterval = 30 * time.Second

// Ticker re-derives the current day and reports whether it changed.
type Ticker interface {
	Tick(ctx context.Context) (bool, error)
}

// Scheduler runs Ticker.Tick on a fixed interval until stopped.
type Scheduler struct {
	ticker     Ticker
	interval   time.Duration
	onRollover func()

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithOnRollover registers fn to run after each tick that changed the day.
func WithOnRollover(fn func()) Option {
	return func(s *Scheduler) { s.onRollover = fn }
}

// New creates a stopped Scheduler. Intervals below one second are raised
// to one second.
func New(t Ticker, interval time.Duration, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	interval = max(interval, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		ticker:   t,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(log.Default())),
			cron.SkipIfStillRunning(cron.PrintfLogger(log.Default())),
		)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron.Schedule(cron.Every(interval), cron.FuncJob(s.RunOnce))
	return s
}

// Interval returns the effective tick interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Start begins ticking in the background. Calling it more than once, or
// after Stop, has no effect.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.cron.Start()
}

// RunOnce performs a single tick. It does nothing once the scheduler has
// been stopped.
func (s *Scheduler) RunOnce() {
	if s.ctx.Err() != nil {
		return
	}
	changed, err := s.ticker.Tick(s.ctx)
	if err != nil {
		if s.ctx.Err() == nil {
			log.Printf("ERROR: day rollover refresh failed: %v", err)
		}
		return
	}
	if changed && s.onRollover != nil {
		s.onRollover()
	}
}

// Stop cancels any in-flight tick and waits for it to return. No tick runs
// after Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
}
