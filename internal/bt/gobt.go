package bt

import (
	"fmt"

	gobt "github.com/joeycumines/go-behaviortree"
)

// ToGoBTStatus maps a status to its go-behaviortree counterpart. Idle has
// none, and is reported as an error.
func ToGoBTStatus(s Status) (gobt.Status, error) {
	switch s {
	case Running:
		return gobt.Running, nil
	case Success:
		return gobt.Success, nil
	case Failure:
		return gobt.Failure, nil
	default:
		return gobt.Failure, fmt.Errorf("%w: %s has no go-behaviortree equivalent", ErrInvalidStatus, s)
	}
}

// FromGoBTStatus maps a go-behaviortree status.
func FromGoBTStatus(s gobt.Status) (Status, error) {
	switch s {
	case gobt.Running:
		return Running, nil
	case gobt.Success:
		return Success, nil
	case gobt.Failure:
		return Failure, nil
	default:
		return Failure, fmt.Errorf("%w: go-behaviortree status %d", ErrInvalidStatus, int(s))
	}
}

// FromGoBT wraps a go-behaviortree node as an Action leaf. go-behaviortree
// nodes cannot be halted; halting the wrapper only resets its status, and
// the wrapped node is responsible for restarting cleanly.
func FromGoBT(name string, node gobt.Node) *Action {
	return NewAction(name, nil, ActionFunc(func(*Context, *Ports) (Status, error) {
		if node == nil {
			return Failure, fmt.Errorf("bt: nil go-behaviortree node %q", name)
		}
		status, err := node.Tick()
		if err != nil {
			return Failure, err
		}
		return FromGoBTStatus(status)
	}))
}

// ToGoBT exposes n as a go-behaviortree node. Each tick obtains the tick
// context from tc, which must not return nil.
func ToGoBT(n Node, tc func() *Context) gobt.Node {
	return gobt.New(func([]gobt.Node) (gobt.Status, error) {
		ctx := tc()
		status, err := tickChild(ctx, n)
		if err != nil {
			return gobt.Failure, err
		}
		return ToGoBTStatus(status)
	})
}
