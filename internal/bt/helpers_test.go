package bt

import (
	"context"

	"github.com/joeycumines/behavior-engine/internal/blackboard"
)

// stub is a scripted node. Each tick returns the next status of script, the
// last one repeating.
type stub struct {
	name    string
	kind    Kind
	script  []Status
	err     error
	haltErr error
	trace   *[]string

	ticks  int
	halts  int
	status Status
}

func newStub(name string, script ...Status) *stub {
	return &stub{name: name, script: script}
}

func (s *stub) Name() string   { return s.name }
func (s *stub) Kind() Kind     { return s.kind }
func (s *stub) Status() Status { return s.status }

func (s *stub) Tick(*Context) (Status, error) {
	s.ticks++
	if s.trace != nil {
		*s.trace = append(*s.trace, s.name)
	}
	if s.err != nil {
		s.status = Running
		return Failure, s.err
	}
	i := min(s.ticks-1, len(s.script)-1)
	s.status = s.script[i]
	return s.status, nil
}

func (s *stub) Halt() error {
	s.halts++
	s.status = Idle
	return s.haltErr
}

func testContext() *Context {
	return NewContext(context.Background(), blackboard.New())
}

func tickN(t interface{ Helper() }, n Node, tc *Context, times int) []Status {
	t.Helper()
	out := make([]Status, 0, times)
	for range times {
		s, _ := n.Tick(tc)
		out = append(out, s)
	}
	return out
}
