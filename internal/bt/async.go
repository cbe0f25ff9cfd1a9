package bt

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultHaltGrace is how long GoJob.Cancel waits for the worker goroutine
// to observe cancellation.
var DefaultHaltGrace = time.Second

// Job is an in-flight asynchronous operation started by an async action.
type Job interface {
	// Poll reports the current state of the job without blocking. It
	// returns Running while the work is outstanding.
	Poll() (Status, error)
	// Cancel requests cancellation and releases the job's resources.
	Cancel() error
}

// StartFunc starts the asynchronous work of an async action.
type StartFunc func(tc *Context, p *Ports) (Job, error)

// NewAsyncAction returns an Action that starts work on its first tick and
// returns Running, then polls the job on every following tick until it
// completes. Halting the node cancels the job.
func NewAsyncAction(name string, ports *Ports, start StartFunc) *Action {
	return NewAction(name, ports, &asyncHandler{start: start})
}

type asyncHandler struct {
	start StartFunc
	job   Job
}

func (h *asyncHandler) Tick(tc *Context, p *Ports) (Status, error) {
	if h.job == nil {
		job, err := h.start(tc, p)
		if err != nil {
			return Failure, err
		}
		if job == nil {
			return Failure, fmt.Errorf("%w: start returned no job", ErrInvalidStatus)
		}
		h.job = job
		return Running, nil
	}
	status, err := h.job.Poll()
	if err != nil {
		return Failure, err
	}
	switch status {
	case Running:
	case Success, Failure:
		h.job = nil
	default:
		return Failure, fmt.Errorf("%w: job polled %s", ErrInvalidStatus, status)
	}
	return status, nil
}

func (h *asyncHandler) Halt() error {
	job := h.job
	h.job = nil
	if job == nil {
		return nil
	}
	return job.Cancel()
}

// GoJob runs fn on a new goroutine, with a context derived from ctx that is
// cancelled by Cancel. The job succeeds if fn returns true.
func GoJob(ctx context.Context, fn func(ctx context.Context) (bool, error)) Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &goJob{cancel: cancel, done: make(chan struct{}), grace: DefaultHaltGrace}
	go func() {
		defer close(j.done)
		defer func() {
			if r := recover(); r != nil {
				j.err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		j.ok, j.err = fn(ctx)
	}()
	return j
}

type goJob struct {
	cancel context.CancelFunc
	done   chan struct{}
	grace  time.Duration
	once   sync.Once

	// written before done is closed
	ok  bool
	err error
}

func (j *goJob) Poll() (Status, error) {
	select {
	case <-j.done:
	default:
		return Running, nil
	}
	j.cancel()
	if j.err != nil {
		return Failure, j.err
	}
	if j.ok {
		return Success, nil
	}
	return Failure, nil
}

func (j *goJob) Cancel() error {
	var err error
	j.once.Do(func() {
		j.cancel()
		timer := time.NewTimer(j.grace)
		defer timer.Stop()
		select {
		case <-j.done:
		case <-timer.C:
			err = ErrHaltTimeout
		}
	})
	return err
}
