package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"basegraph.app/pulse/common/logger"
	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/monitor"
)

var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
)

// CycleRunner is satisfied by *monitor.Engine.
type CycleRunner interface {
	RunCycle(ctx context.Context, now time.Time) (*monitor.CycleResult, error)
	State() *monitor.EngineState
}

// StatsStore persists ScanStats after every cycle so that a restart, or
// another replica's status endpoint, sees the same counters.
type StatsStore interface {
	Save(ctx context.Context, stats model.ScanStats) error
}

type Config struct {
	Interval       time.Duration
	FailureBackoff time.Duration
}

type Status struct {
	Running     bool                                 `json:"running"`
	Interval    string                               `json:"interval"`
	NextCycleAt *time.Time                           `json:"next_cycle_at,omitempty"`
	Stats       model.ScanStats                      `json:"stats"`
	Performance map[string]model.EmployeePerformance `json:"performance"`
}

type Option func(*Scheduler)

func WithStatsStore(s StatsStore) Option {
	return func(sch *Scheduler) { sch.stats = s }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(sch *Scheduler) { sch.now = now }
}

// Scheduler is the single worker loop: wake, run one full cycle, sleep. It
// can be started and stopped repeatedly; a stop takes effect between tasks.
type Scheduler struct {
	runner CycleRunner
	stats  StatsStore
	cfg    Config
	now    func() time.Time

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
	next      *time.Time
}

func New(runner CycleRunner, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner: runner,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the loop in the background. The first cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.stoppedCh = make(chan struct{})

	go s.run(context.WithoutCancel(ctx), s.stopCh, s.stoppedCh)
	return nil
}

// Stop signals the loop and waits for the in-flight task, if any, to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	stopCh, stoppedCh := s.stopCh, s.stoppedCh
	s.running = false
	s.next = nil
	s.mu.Unlock()

	close(stopCh)
	<-stoppedCh
	return nil
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running := s.running
	var next *time.Time
	if s.next != nil {
		n := *s.next
		next = &n
	}
	s.mu.Unlock()

	state := s.runner.State()
	return Status{
		Running:     running,
		Interval:    s.cfg.Interval.String(),
		NextCycleAt: next,
		Stats:       state.Stats(),
		Performance: state.Performance(),
	}
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}, stoppedCh chan<- struct{}) {
	defer close(stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "pulse.scheduler",
	})
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Cancelling the cycle context is how a stop reaches the engine between tasks.
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.InfoContext(ctx, "scheduler started",
		"interval", s.cfg.Interval,
		"failure_backoff", s.cfg.FailureBackoff)

	var delay time.Duration
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.InfoContext(ctx, "scheduler stopping")
			return
		case <-timer.C:
		}

		err := s.runCycleSafe(ctx)
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "scheduler stopping")
			return
		}

		delay = s.cfg.Interval
		if err != nil {
			delay = s.cfg.FailureBackoff
			slog.WarnContext(ctx, "cycle failed, backing off", "error", err, "backoff", delay)
		}
		s.setNext(s.now().Add(delay))
	}
}

func (s *Scheduler) runCycleSafe(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in scan cycle", "panic", r)
			err = fmt.Errorf("panic: %v", r)
			s.runner.State().RecordFailure(err)
		}
		s.persistStats(ctx)
	}()

	_, err = s.runner.RunCycle(ctx, s.now())
	return err
}

func (s *Scheduler) persistStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.stats.Save(saveCtx, s.runner.State().Stats()); err != nil {
		slog.WarnContext(ctx, "failed to persist scan stats", "error", err)
	}
}

func (s *Scheduler) setNext(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.next = &t
	}
}
