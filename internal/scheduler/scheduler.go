// Package scheduler drives a behavior tree: it ticks the root on a fixed
// interval or on demand until the tree completes, faults, or is cancelled,
// and halts the whole tree before reporting that it is done.
//
// A Scheduler implements go-behaviortree's Ticker, so several schedulers may
// be aggregated by a Group.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/behavior-engine/internal/bt"
	gobt "github.com/joeycumines/go-behaviortree"
)

// DefaultInterval is the tick interval used when neither WithInterval nor
// WithTrigger is given.
const DefaultInterval = 100 * time.Millisecond

var (
	ErrNotStarted     = errors.New("scheduler: not started")
	ErrAlreadyStarted = errors.New("scheduler: already started")
	ErrStopped        = errors.New("scheduler: stopped")
	ErrNotTriggered   = errors.New("scheduler: not in trigger mode")
)

// errFinished stops the interval ticker once the run has an outcome.
var errFinished = errors.New("scheduler: finished")

// Outcome is how a run ended.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeFailure
	// OutcomeFault means a node reported an error. It is distinct from an
	// ordinary FAILURE of the root.
	OutcomeFault
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeFault:
		return "fault"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// TickInfo describes one completed root tick.
type TickInfo struct {
	RunID    string
	Tree     string
	Tick     uint64
	Status   bt.Status
	Err      error
	Duration time.Duration
}

// Observer is notified after every root tick, on the ticking goroutine.
type Observer interface {
	ObserveTick(ctx context.Context, info TickInfo)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, info TickInfo)

func (f ObserverFunc) ObserveTick(ctx context.Context, info TickInfo) { f(ctx, info) }

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval ticks the tree every d.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
		s.trigger = false
	}
}

// WithTrigger ticks the tree once per Trigger call.
func WithTrigger() Option {
	return func(s *Scheduler) { s.trigger = true }
}

// WithLogger sets the logger. Records carry run_id and tree attributes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithMaxTicks cancels the run after n root ticks that did not complete the
// tree. Zero means unbounded.
func WithMaxTicks(n uint64) Option {
	return func(s *Scheduler) { s.maxTicks = n }
}

// Scheduler runs one tree, once. Ticks never overlap.
type Scheduler struct {
	tree      *bt.Tree
	runID     string
	interval  time.Duration
	trigger   bool
	maxTicks  uint64
	logger    *slog.Logger
	observers []Observer

	triggers chan chan tickResult
	done     chan struct{}

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	status  bt.Status
	outcome Outcome
	err     error
}

var _ gobt.Ticker = (*Scheduler)(nil)

type tickResult struct {
	status bt.Status
	err    error
}

// New returns a scheduler for tree. It does nothing until Start.
func New(tree *bt.Tree, opts ...Option) *Scheduler {
	s := &Scheduler{
		tree:     tree,
		runID:    uuid.NewString(),
		interval: DefaultInterval,
		logger:   slog.Default(),
		triggers: make(chan chan tickResult),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("run_id", s.runID, "tree", tree.Name())
	return s
}

// RunID identifies this run in logs and telemetry.
func (s *Scheduler) RunID() string { return s.runID }

// Tree returns the scheduled tree.
func (s *Scheduler) Tree() *bt.Tree { return s.tree }

// Start begins ticking in a background goroutine. Cancelling ctx cancels
// the run.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.trigger && s.interval <= 0 {
		return fmt.Errorf("scheduler: invalid interval %s", s.interval)
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	if s.trigger {
		s.logger.Info("scheduler started", "mode", "trigger")
		go s.runTriggered(ctx)
	} else {
		s.logger.Info("scheduler started", "mode", "interval", "interval", s.interval)
		go s.runInterval(ctx)
	}
	return nil
}

// Trigger performs one root tick and returns its result. It blocks until
// the tick completes.
func (s *Scheduler) Trigger() (bt.Status, error) {
	if !s.trigger {
		return bt.Idle, ErrNotTriggered
	}
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return bt.Idle, ErrNotStarted
	}
	reply := make(chan tickResult, 1)
	select {
	case s.triggers <- reply:
	case <-s.done:
		return s.Status(), ErrStopped
	}
	r := <-reply
	return r.status, r.err
}

// Cancel requests cancellation. The tree is halted before Done closes.
// Cancelling a scheduler that was never started finishes it immediately.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	if !s.started {
		s.started = true
		s.outcome = OutcomeCancelled
		s.mu.Unlock()
		close(s.done)
		return
	}
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stop is Cancel; it implements go-behaviortree's Ticker.
func (s *Scheduler) Stop() { s.Cancel() }

// Done is closed once the run has finished and the tree has been halted.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Err returns the fault that ended the run, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Status returns the root status of the last tick.
func (s *Scheduler) Status() bt.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Outcome returns how the run ended, or OutcomePending.
func (s *Scheduler) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Wait blocks until Done and returns the outcome and fault.
func (s *Scheduler) Wait() (Outcome, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.err
}

func (s *Scheduler) runInterval(ctx context.Context) {
	defer s.finish()
	node := gobt.New(func([]gobt.Node) (gobt.Status, error) {
		if err := ctx.Err(); err != nil {
			return gobt.Failure, err
		}
		if _, finished, _ := s.step(ctx); finished {
			return gobt.Failure, errFinished
		}
		return gobt.Running, nil
	})
	ticker := gobt.NewTicker(ctx, s.interval, node)
	<-ticker.Done()
	if err := ticker.Err(); err != nil && !errors.Is(err, errFinished) && ctx.Err() == nil {
		s.logger.Error("ticker stopped unexpectedly", "error", err)
	}
}

func (s *Scheduler) runTriggered(ctx context.Context) {
	defer s.finish()
	for {
		select {
		case <-ctx.Done():
			return
		case reply := <-s.triggers:
			// both cases may be ready once cancelled
			if ctx.Err() != nil {
				reply <- tickResult{status: s.Status(), err: ErrStopped}
				return
			}
			status, finished, err := s.step(ctx)
			reply <- tickResult{status: status, err: err}
			if finished {
				return
			}
		}
	}
}

// step ticks the root once and records the result.
func (s *Scheduler) step(ctx context.Context) (bt.Status, bool, error) {
	start := time.Now()
	status, err := s.tree.Tick(ctx)
	info := TickInfo{
		RunID:    s.runID,
		Tree:     s.tree.Name(),
		Tick:     s.tree.TickCount(),
		Status:   status,
		Err:      err,
		Duration: time.Since(start),
	}
	for _, o := range s.observers {
		o.ObserveTick(ctx, info)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	switch {
	case err != nil:
		s.outcome = OutcomeFault
		s.err = err
		s.logger.Error("tree faulted", "tick", info.Tick, "error", err)
	case status == bt.Success:
		s.outcome = OutcomeSuccess
	case status == bt.Failure:
		s.outcome = OutcomeFailure
	case s.maxTicks > 0 && info.Tick >= s.maxTicks:
		s.outcome = OutcomeCancelled
		s.logger.Warn("tick limit reached", "ticks", info.Tick)
	default:
		return status, false, nil
	}
	return status, true, err
}

func (s *Scheduler) finish() {
	haltErr := s.tree.HaltAll()

	s.mu.Lock()
	if s.outcome == OutcomePending {
		s.outcome = OutcomeCancelled
	}
	if haltErr != nil {
		s.outcome = OutcomeFault
		s.err = errors.Join(s.err, haltErr)
	}
	outcome, err := s.outcome, s.err
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	attrs := []any{"outcome", outcome.String(), "ticks", s.tree.TickCount()}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	s.logger.Info("scheduler stopped", attrs...)
	close(s.done)
}
