package bt

import "fmt"

// Parallel ticks all of its active children on every tick, and completes
// once a threshold of successes or failures has been reached.
//
// Results are cumulative while the node remains active: a child that has
// completed keeps its result and is not ticked again until the Parallel
// itself completes or is halted.
type Parallel struct {
	name     string
	children []Node
	success  int
	failure  int
	results  []Status
	status   Status
}

// NewParallel returns a Parallel node that succeeds once successThreshold
// children have succeeded, and fails once failureThreshold children have
// failed. Each threshold must be between one and the number of children,
// and together they may overlap by at most one child, so that exactly one
// outcome is reached once every child has completed.
func NewParallel(name string, successThreshold, failureThreshold int, children ...Node) (*Parallel, error) {
	if err := ValidateParallelThresholds(successThreshold, failureThreshold, len(children)); err != nil {
		return nil, err
	}
	return &Parallel{
		name:     name,
		children: children,
		success:  successThreshold,
		failure:  failureThreshold,
	}, nil
}

// ValidateParallelThresholds checks the thresholds of a Parallel with n
// children.
func ValidateParallelThresholds(success, failure, n int) error {
	switch {
	case n < 1:
		return fmt.Errorf("%w: parallel requires at least one child", ErrInvalidThreshold)
	case success < 1 || success > n:
		return fmt.Errorf("%w: success threshold %d out of range [1, %d]", ErrInvalidThreshold, success, n)
	case failure < 1 || failure > n:
		return fmt.Errorf("%w: failure threshold %d out of range [1, %d]", ErrInvalidThreshold, failure, n)
	case success+failure > n+1:
		return fmt.Errorf("%w: thresholds %d+%d exceed %d children", ErrInvalidThreshold, success, failure, n)
	}
	return nil
}

func (p *Parallel) Name() string     { return p.name }
func (p *Parallel) Kind() Kind       { return KindParallel }
func (p *Parallel) Status() Status   { return p.status }
func (p *Parallel) Children() []Node { return p.children }

// Thresholds returns the success and failure thresholds.
func (p *Parallel) Thresholds() (success, failure int) { return p.success, p.failure }

func (p *Parallel) Tick(tc *Context) (Status, error) {
	if p.results == nil {
		p.results = make([]Status, len(p.children))
	}
	p.status = Running
	var successes, failures int
	for i, child := range p.children {
		if !p.results[i].IsTerminal() {
			status, err := tickChild(tc, child)
			if err != nil {
				return Failure, err
			}
			p.results[i] = status
		}
		switch p.results[i] {
		case Success:
			successes++
		case Failure:
			failures++
		}
	}
	var result Status
	switch {
	case successes >= p.success:
		result = Success
	case failures >= p.failure:
		result = Failure
	default:
		return Running, nil
	}
	err := haltRunning(tc, p.children)
	p.results = nil
	p.status = result
	if err != nil {
		return Failure, err
	}
	return result, nil
}

func (p *Parallel) Halt() error {
	err := haltRunning(nil, p.children)
	p.results = nil
	p.status = Idle
	return err
}
