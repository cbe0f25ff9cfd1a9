// Package bt implements the node model of the behavior tree engine: the
// status protocol, leaves, composites, decorators and the Tree that owns
// them.
//
// Nodes are ticked synchronously. A node returning Running keeps whatever
// internal state it needs to resume on the next tick, until it completes or
// is halted. Errors returned from Tick or Halt are runtime faults (see
// Fault) and propagate to the root without being interpreted by control
// nodes.
package bt

import (
	"errors"
	"fmt"
)

// Kind is the closed set of node variants.
type Kind int

const (
	KindAction Kind = iota
	KindCondition
	KindSequence
	KindFallback
	KindParallel
	KindDecorator
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "Action"
	case KindCondition:
		return "Condition"
	case KindSequence:
		return "Sequence"
	case KindFallback:
		return "Fallback"
	case KindParallel:
		return "Parallel"
	case KindDecorator:
		return "Decorator"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// IsLeaf reports whether nodes of this kind have no children.
func (k Kind) IsLeaf() bool {
	return k == KindAction || k == KindCondition
}

// Node is the capability every tree node implements.
type Node interface {
	// Name is a diagnostic name, not necessarily unique.
	Name() string
	Kind() Kind
	// Status returns the status of the most recent tick, or Idle if the
	// node has been halted since.
	Status() Status
	// Tick advances the node. It never returns Idle. A non-nil error is a
	// runtime fault.
	Tick(tc *Context) (Status, error)
	// Halt cancels any in-progress work and returns the node to Idle. It
	// is idempotent, and a no-op on an Idle node.
	Halt() error
}

// Parent is implemented by nodes that own children.
type Parent interface {
	Node
	Children() []Node
}

// tickChild ticks n, converting errors and invalid statuses into faults.
func tickChild(tc *Context, n Node) (Status, error) {
	status, err := n.Tick(tc)
	if err != nil {
		return Failure, asFault(tc, n, err)
	}
	switch status {
	case Running:
		if n.Kind() == KindCondition {
			if herr := n.Halt(); herr != nil {
				return Failure, asFault(tc, n, fmt.Errorf("%w (halt: %v)", ErrConditionRunning, herr))
			}
			return Failure, asFault(tc, n, ErrConditionRunning)
		}
		return status, nil
	case Success, Failure:
		return status, nil
	default:
		return Failure, asFault(tc, n, fmt.Errorf("%w: tick returned %s", ErrInvalidStatus, status))
	}
}

// haltRunning halts each of the nodes that is currently Running, in order.
// tc may be nil when called outside of a tick.
func haltRunning(tc *Context, nodes []Node) error {
	var errs []error
	for _, n := range nodes {
		if n.Status() != Running {
			continue
		}
		if err := n.Halt(); err != nil {
			errs = append(errs, asFault(tc, n, err))
		}
	}
	return errors.Join(errs...)
}
