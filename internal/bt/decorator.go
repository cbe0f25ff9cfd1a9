package bt

import (
	"fmt"
	"time"
)

// decorator holds what every single-child node shares.
type decorator struct {
	name   string
	child  Node
	status Status
}

func (d *decorator) Name() string     { return d.name }
func (d *decorator) Kind() Kind       { return KindDecorator }
func (d *decorator) Status() Status   { return d.status }
func (d *decorator) Child() Node      { return d.child }
func (d *decorator) Children() []Node { return []Node{d.child} }

// haltChild halts the child if it is Running, and marks the decorator Idle.
func (d *decorator) haltChild(tc *Context) error {
	d.status = Idle
	if d.child.Status() != Running {
		return nil
	}
	return asFault(tc, d.child, d.child.Halt())
}

// Inverter swaps Success and Failure.
type Inverter struct{ decorator }

func NewInverter(name string, child Node) *Inverter {
	return &Inverter{decorator{name: name, child: child}}
}

func (n *Inverter) Tick(tc *Context) (Status, error) {
	n.status = Running
	status, err := tickChild(tc, n.child)
	if err != nil {
		return Failure, err
	}
	switch status {
	case Success:
		status = Failure
	case Failure:
		status = Success
	}
	n.status = status
	return status, nil
}

func (n *Inverter) Halt() error { return n.haltChild(nil) }

// ForceStatus rewrites any terminal status of its child to a fixed status.
// It backs ForceSuccess and ForceFailure.
type ForceStatus struct {
	decorator
	forced Status
}

// NewForceSuccess returns a decorator that reports Success whenever its
// child completes.
func NewForceSuccess(name string, child Node) *ForceStatus {
	return &ForceStatus{decorator: decorator{name: name, child: child}, forced: Success}
}

// NewForceFailure returns a decorator that reports Failure whenever its
// child completes.
func NewForceFailure(name string, child Node) *ForceStatus {
	return &ForceStatus{decorator: decorator{name: name, child: child}, forced: Failure}
}

// Forced returns the status substituted for the child's terminal status.
func (n *ForceStatus) Forced() Status { return n.forced }

func (n *ForceStatus) Tick(tc *Context) (Status, error) {
	n.status = Running
	status, err := tickChild(tc, n.child)
	if err != nil {
		return Failure, err
	}
	if status.IsTerminal() {
		status = n.forced
	}
	n.status = status
	return status, nil
}

func (n *ForceStatus) Halt() error { return n.haltChild(nil) }

// Retry re-ticks a failing child up to a number of additional attempts.
// Attempts that fail synchronously are retried within the same tick.
type Retry struct {
	decorator
	retries  int
	attempts int
}

// NewRetry returns a Retry decorator allowing retries attempts after the
// first failure. A negative value retries without limit.
func NewRetry(name string, retries int, child Node) *Retry {
	return &Retry{decorator: decorator{name: name, child: child}, retries: retries}
}

// Retries returns the configured number of additional attempts.
func (n *Retry) Retries() int { return n.retries }

func (n *Retry) Tick(tc *Context) (Status, error) {
	n.status = Running
	for {
		status, err := tickChild(tc, n.child)
		if err != nil {
			return Failure, err
		}
		switch status {
		case Running:
			return Running, nil
		case Success:
			n.attempts = 0
			n.status = Success
			return Success, nil
		}
		if n.retries >= 0 && n.attempts >= n.retries {
			n.attempts = 0
			n.status = Failure
			return Failure, nil
		}
		n.attempts++
		if n.retries < 0 {
			// unbounded retries yield between attempts
			return Running, nil
		}
	}
}

func (n *Retry) Halt() error {
	n.attempts = 0
	return n.haltChild(nil)
}

// Repeat re-ticks a succeeding child until it has succeeded a number of
// times. A failure of the child fails the decorator.
type Repeat struct {
	decorator
	cycles    int
	completed int
}

// NewRepeat returns a Repeat decorator requiring cycles successful
// completions. A negative value repeats until the child fails.
func NewRepeat(name string, cycles int, child Node) *Repeat {
	return &Repeat{decorator: decorator{name: name, child: child}, cycles: cycles}
}

// Cycles returns the configured number of completions.
func (n *Repeat) Cycles() int { return n.cycles }

func (n *Repeat) Tick(tc *Context) (Status, error) {
	n.status = Running
	for n.cycles < 0 || n.completed < n.cycles {
		status, err := tickChild(tc, n.child)
		if err != nil {
			return Failure, err
		}
		switch status {
		case Running:
			return Running, nil
		case Failure:
			n.completed = 0
			n.status = Failure
			return Failure, nil
		}
		n.completed++
		if n.cycles < 0 {
			// unbounded repetition yields between completions
			return Running, nil
		}
	}
	n.completed = 0
	n.status = Success
	return Success, nil
}

func (n *Repeat) Halt() error {
	n.completed = 0
	return n.haltChild(nil)
}

// Timeout fails its child once it has been Running continuously for longer
// than a budget, expressed either in ticks or as a duration measured with
// the tick context's clock.
type Timeout struct {
	decorator
	ticks    int
	duration time.Duration

	// current Running streak
	streak  int
	started time.Time
}

// NewTickTimeout returns a Timeout allowing the child at most ticks
// consecutive Running results.
func NewTickTimeout(name string, ticks int, child Node) (*Timeout, error) {
	if ticks < 1 {
		return nil, fmt.Errorf("bt: timeout ticks must be positive, got %d", ticks)
	}
	return &Timeout{decorator: decorator{name: name, child: child}, ticks: ticks}, nil
}

// NewDurationTimeout returns a Timeout allowing the child to remain Running
// for at most d since the start of its Running streak.
func NewDurationTimeout(name string, d time.Duration, child Node) (*Timeout, error) {
	if d <= 0 {
		return nil, fmt.Errorf("bt: timeout duration must be positive, got %s", d)
	}
	return &Timeout{decorator: decorator{name: name, child: child}, duration: d}, nil
}

// Budget describes the timeout, e.g. "3 ticks" or "1.5s".
func (n *Timeout) Budget() string {
	if n.duration > 0 {
		return n.duration.String()
	}
	return fmt.Sprintf("%d ticks", n.ticks)
}

func (n *Timeout) Tick(tc *Context) (Status, error) {
	if n.status != Running {
		n.streak = 0
		n.started = tc.Now()
	}
	n.status = Running
	status, err := tickChild(tc, n.child)
	if err != nil {
		return Failure, err
	}
	if status != Running {
		n.status = status
		return status, nil
	}
	n.streak++
	if !n.expired(tc.Now()) {
		return Running, nil
	}
	tc.Logger().Debug("timeout expired", "node", tc.PathOf(n), "budget", n.Budget())
	if err := n.haltChild(tc); err != nil {
		return Failure, err
	}
	n.status = Failure
	return Failure, nil
}

func (n *Timeout) expired(now time.Time) bool {
	if n.duration > 0 {
		return now.Sub(n.started) > n.duration
	}
	return n.streak > n.ticks
}

func (n *Timeout) Halt() error { return n.haltChild(nil) }
