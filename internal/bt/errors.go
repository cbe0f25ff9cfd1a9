package bt

import (
	"errors"
	"fmt"
)

var (
	// ErrFault matches every runtime fault, see Fault.
	ErrFault = errors.New("bt: runtime fault")

	// ErrConditionRunning is the cause of a fault raised when a condition
	// node returns Running.
	ErrConditionRunning = errors.New("bt: condition returned RUNNING")

	// ErrInvalidStatus is returned for a status value a tick may not yield.
	ErrInvalidStatus = errors.New("bt: invalid status")

	// ErrPanic is the cause of a fault raised by a panicking leaf.
	ErrPanic = errors.New("bt: leaf panicked")

	// ErrHaltTimeout is returned when asynchronous work did not acknowledge
	// cancellation within its grace period.
	ErrHaltTimeout = errors.New("bt: halt timed out")

	// ErrInvalidThreshold is returned for Parallel thresholds that cannot be
	// satisfied by the node's children.
	ErrInvalidThreshold = errors.New("bt: invalid parallel threshold")

	// ErrPortUnbound is returned when reading a port that has neither a
	// binding nor a default value.
	ErrPortUnbound = errors.New("bt: port not bound")

	// ErrPortDirection is returned when a port is used against its declared
	// direction, e.g. writing an input port.
	ErrPortDirection = errors.New("bt: port direction mismatch")
)

// Fault is a runtime fault: a contract violation or error raised while
// ticking or halting a node. Faults are distinct from Failure, and abort the
// run that observes them.
type Fault struct {
	// Path is the node's path within its tree, if known.
	Path string
	// Node is the node's name.
	Node string
	// Err is the underlying cause.
	Err error

	node Node
}

func (f *Fault) Error() string {
	where := f.Path
	if where == "" {
		where = f.Node
	}
	return fmt.Sprintf("bt: fault at %s: %v", where, f.Err)
}

// Unwrap allows matching both ErrFault and the underlying cause.
func (f *Fault) Unwrap() []error {
	return []error{ErrFault, f.Err}
}

// asFault wraps err as a fault attributed to n, unless it already carries a
// fault, in which case the innermost attribution is kept.
func asFault(tc *Context, n Node, err error) error {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return err
	}
	f = &Fault{Node: n.Name(), Err: err, node: n}
	if tc != nil {
		f.Path = tc.PathOf(n)
	}
	return f
}
