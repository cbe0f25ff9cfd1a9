package bt

import (
	"fmt"
)

// ActionHandler supplies the behavior of an Action leaf.
//
// Tick is called for every tick of the node, including ticks that resume a
// previous Running result. Halt is called at most once per activation, only
// while the node is Running.
type ActionHandler interface {
	Tick(tc *Context, p *Ports) (Status, error)
	Halt() error
}

// ActionFunc adapts a function to an ActionHandler with a no-op Halt, for
// actions that complete within a single tick.
type ActionFunc func(tc *Context, p *Ports) (Status, error)

func (f ActionFunc) Tick(tc *Context, p *Ports) (Status, error) { return f(tc, p) }

func (f ActionFunc) Halt() error { return nil }

// Action is a leaf backed by an ActionHandler.
type Action struct {
	name    string
	kind    Kind
	ports   *Ports
	handler ActionHandler
	status  Status
}

// NewAction returns an Action leaf.
func NewAction(name string, ports *Ports, handler ActionHandler) *Action {
	return &Action{
		name:    name,
		kind:    KindAction,
		ports:   ports,
		handler: handler,
	}
}

func (a *Action) Name() string   { return a.name }
func (a *Action) Kind() Kind     { return a.kind }
func (a *Action) Status() Status { return a.status }

// Ports returns the node's port bindings.
func (a *Action) Ports() *Ports { return a.ports }

// Handler returns the node's handler.
func (a *Action) Handler() ActionHandler { return a.handler }

func (a *Action) Tick(tc *Context) (Status, error) {
	status, err := recoverTick(func() (Status, error) {
		return a.handler.Tick(tc, a.ports)
	})
	if err != nil {
		// the handler may hold work that only Halt releases
		a.status = Running
		return Failure, err
	}
	if status == Idle {
		a.status = Running
		return Failure, fmt.Errorf("%w: action returned %s", ErrInvalidStatus, status)
	}
	a.status = status
	return status, nil
}

func (a *Action) Halt() error {
	if a.status != Running {
		a.status = Idle
		return nil
	}
	a.status = Idle
	return recoverHalt(a.handler.Halt)
}

// ConditionFunc evaluates a condition. It must not have side effects.
type ConditionFunc func(tc *Context, p *Ports) (bool, error)

// Condition is a side-effect-free leaf. It cannot return Running.
type Condition struct {
	name   string
	ports  *Ports
	fn     ConditionFunc
	status Status
}

// NewCondition returns a Condition leaf.
func NewCondition(name string, ports *Ports, fn ConditionFunc) *Condition {
	return &Condition{name: name, ports: ports, fn: fn}
}

func (c *Condition) Name() string   { return c.name }
func (c *Condition) Kind() Kind     { return KindCondition }
func (c *Condition) Status() Status { return c.status }

// Ports returns the node's port bindings.
func (c *Condition) Ports() *Ports { return c.ports }

func (c *Condition) Tick(tc *Context) (Status, error) {
	status, err := recoverTick(func() (Status, error) {
		ok, err := c.fn(tc, c.ports)
		if err != nil {
			return Failure, err
		}
		if ok {
			return Success, nil
		}
		return Failure, nil
	})
	if err != nil {
		c.status = Idle
		return Failure, err
	}
	c.status = status
	return status, nil
}

func (c *Condition) Halt() error {
	c.status = Idle
	return nil
}

// GuardCondition wraps a node that is declared to be a condition but whose
// implementation cannot rule out Running statically, e.g. a scripted check.
// A Running result is halted and reported as ErrConditionRunning.
func GuardCondition(n Node) Node {
	return &guardedCondition{inner: n}
}

type guardedCondition struct {
	inner  Node
	status Status
}

func (g *guardedCondition) Name() string   { return g.inner.Name() }
func (g *guardedCondition) Kind() Kind     { return KindCondition }
func (g *guardedCondition) Status() Status { return g.status }

func (g *guardedCondition) Tick(tc *Context) (Status, error) {
	status, err := g.inner.Tick(tc)
	if err != nil {
		g.status = g.inner.Status()
		return Failure, err
	}
	if status == Running {
		g.status = Idle
		if herr := g.inner.Halt(); herr != nil {
			return Failure, fmt.Errorf("%w (halt: %v)", ErrConditionRunning, herr)
		}
		return Failure, ErrConditionRunning
	}
	g.status = status
	return status, nil
}

func (g *guardedCondition) Halt() error {
	g.status = Idle
	return g.inner.Halt()
}

// Unwrap returns the guarded node.
func (g *guardedCondition) Unwrap() Node { return g.inner }

func recoverTick(fn func() (Status, error)) (status Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			status, err = Failure, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn()
}

func recoverHalt(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: halt: %v", ErrPanic, r)
		}
	}()
	return fn()
}
