package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"oran-rapps/internal/observability/logging"
	"oran-rapps/internal/observability/metrics"
)

// Cycle is one reconciliation pass.
type Cycle interface {
	RunCycle(ctx context.Context) error
}

// CycleFunc adapts a function to Cycle.
type CycleFunc func(ctx context.Context) error

// RunCycle calls f.
func (f CycleFunc) RunCycle(ctx context.Context) error { return f(ctx) }

// Outcome tells whether a guarded invocation ran.
type Outcome int

const (
	OutcomeRan Outcome = iota + 1
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRan:
		return "ran"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

// Loop runs a Cycle on a fixed interval. The timer and external triggers
// share one Guard, so at most one cycle executes at a time and overlapping
// invocations are dropped.
type Loop struct {
	name     string
	interval time.Duration
	cycle    Cycle
	logger   *zap.SugaredLogger

	guard Guard
	// active is set while a cycle executes. Unlike the guard it survives
	// Stop, so a cycle started before Stop never overlaps a later one.
	active atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// NewLoop constructs a Loop.
func NewLoop(name string, interval time.Duration, cycle Cycle, logger *zap.SugaredLogger) (*Loop, error) {
	if cycle == nil {
		return nil, errors.New("reconcile: nil cycle")
	}
	if interval <= 0 {
		return nil, errors.New("reconcile: interval must be positive")
	}
	return &Loop{
		name:     name,
		interval: interval,
		cycle:    cycle,
		logger:   logging.OrNop(logger),
	}, nil
}

// Start runs a cycle immediately and then on every tick until ctx is done
// or Stop is called. Calling Start on a running loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		l.logger.Warnw("loop already running", "rapp", l.name)
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running = true

	l.wg.Add(1)
	go l.run(runCtx)
	l.logger.Infow("loop started", "rapp", l.name, "interval", l.interval)
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.launch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.launch(ctx)
		}
	}
}

// launch starts a cycle in the background so a slow cycle never delays the
// ticker. Cycles outlive scheduler cancellation.
func (l *Loop) launch(ctx context.Context) {
	release, ok := l.enter()
	if !ok {
		l.skipped()
		return
	}
	cycleCtx := context.WithoutCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer release()
		if err := l.execute(cycleCtx); err != nil {
			l.logger.Errorw("cycle failed", "rapp", l.name, "err", err)
		}
	}()
}

// RunOnce runs one cycle unless another is in flight, in which case it
// returns OutcomeSkipped without waiting.
func (l *Loop) RunOnce(ctx context.Context) (Outcome, error) {
	release, ok := l.enter()
	if !ok {
		l.skipped()
		return OutcomeSkipped, nil
	}
	defer release()
	return OutcomeRan, l.execute(ctx)
}

// enter takes the guard and marks a cycle active. The returned release
// undoes both.
func (l *Loop) enter() (func(), bool) {
	release, ok := l.guard.TryAcquire()
	if !ok {
		return nil, false
	}
	if !l.active.CompareAndSwap(false, true) {
		release()
		return nil, false
	}
	return func() {
		l.active.Store(false)
		release()
	}, true
}

func (l *Loop) execute(ctx context.Context) error {
	start := time.Now()
	err := l.cycle.RunCycle(ctx)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveCycle(l.name, result, time.Since(start))
	return err
}

func (l *Loop) skipped() {
	l.logger.Warnw("previous cycle still running, skipping", "rapp", l.name)
	metrics.ObserveCycle(l.name, metrics.ResultSkipped, 0)
}

// Stop halts scheduling and frees the guard. An in-flight cycle runs to
// completion and later invocations are skipped until it returns. Stop is
// safe to call at any time.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.running {
		l.logger.Infow("loop stopped", "rapp", l.name)
	}
	l.running = false
	l.guard.Reset()
}

// Wait blocks until the scheduler and every cycle it launched have returned.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// WaitContext is Wait bounded by ctx. It returns ctx.Err() when ctx ends
// first; the cycle keeps running in the background.
func (l *Loop) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the scheduler is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Busy reports whether a cycle is in flight.
func (l *Loop) Busy() bool {
	return l.guard.Held() || l.active.Load()
}
