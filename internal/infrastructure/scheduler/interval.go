package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCycleRunning is returned by ExecuteNow when a cycle is already in
// flight.
var ErrCycleRunning = errors.New("a cycle is already running")

// Job is one schedulable unit of work.
type Job func(ctx context.Context)

// Status is a point-in-time snapshot for the control surface.
type Status struct {
	Running     bool
	NextCycle   time.Time
	NextCleanup time.Time
}

// Scheduler drives the automation cycle and the cleanup pass on two
// independent timers. Cycle entry is gated so a timer fire and a manual
// trigger can never run against the same claimed-article set concurrently.
type Scheduler struct {
	cycleInterval   time.Duration
	cleanupInterval time.Duration
	cycle           Job
	cleanup         Job
	logger          *slog.Logger

	mu          sync.Mutex // guards lifecycle state below
	running     bool
	cancel      context.CancelFunc
	nextCycle   time.Time
	nextCleanup time.Time

	gate chan struct{} // single token; holder owns the in-flight cycle
}

// New builds a stopped scheduler.
func New(cycleInterval, cleanupInterval time.Duration, cycle, cleanup Job, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		cycleInterval:   cycleInterval,
		cleanupInterval: cleanupInterval,
		cycle:           cycle,
		cleanup:         cleanup,
		logger:          logger,
		gate:            make(chan struct{}, 1),
	}
	s.gate <- struct{}{}
	return s
}

// Start registers both timers. Idempotent: calling it while running is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	// The cancel covers only the timer loop. Jobs run on the parent
	// context, so Stop never interrupts an in-flight cycle; per-call
	// timeouts inside the stages remain the only sub-cycle cancellation.
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	now := time.Now()
	s.nextCycle = now.Add(s.cycleInterval)
	s.nextCleanup = now.Add(s.cleanupInterval)

	go s.loop(loopCtx, ctx)
	s.logger.Info("scheduler started",
		"cycle_interval", s.cycleInterval, "cleanup_interval", s.cleanupInterval)
}

// Stop cancels future timer fires. An in-flight cycle keeps its own context
// and drains normally; Stop neither waits for it nor aborts it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	s.running = false
	s.logger.Info("scheduler stopped")
}

// ExecuteNow runs one cycle synchronously, independent of the timers. It
// refuses to overlap an in-flight cycle instead of double-claiming rows.
func (s *Scheduler) ExecuteNow(ctx context.Context) error {
	select {
	case <-s.gate:
	default:
		return ErrCycleRunning
	}
	defer func() { s.gate <- struct{}{} }()

	s.logger.Info("manual execution triggered")
	s.cycle(ctx)
	return nil
}

// Status reports the lifecycle flag and the next fire times.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:     s.running,
		NextCycle:   s.nextCycle,
		NextCleanup: s.nextCleanup,
	}
}

func (s *Scheduler) loop(loopCtx, jobCtx context.Context) {
	cycleTicker := time.NewTicker(s.cycleInterval)
	defer cycleTicker.Stop()
	cleanupTicker := time.NewTicker(s.cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-loopCtx.Done():
			return
		case <-cycleTicker.C:
			s.setNext(func(st *Scheduler) { st.nextCycle = time.Now().Add(st.cycleInterval) })
			s.runGated(jobCtx)
		case <-cleanupTicker.C:
			s.setNext(func(st *Scheduler) { st.nextCleanup = time.Now().Add(st.cleanupInterval) })
			s.cleanup(jobCtx)
		}
	}
}

func (s *Scheduler) runGated(ctx context.Context) {
	select {
	case <-s.gate:
	default:
		// Previous cycle still in flight; skip this fire rather than
		// stacking cycles against the same rows.
		s.logger.Warn("previous cycle still running, skipping this fire")
		return
	}
	defer func() { s.gate <- struct{}{} }()

	s.cycle(ctx)
}

func (s *Scheduler) setNext(update func(*Scheduler)) {
	s.mu.Lock()
	update(s)
	s.mu.Unlock()
}
