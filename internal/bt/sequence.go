package bt

// Sequence ticks its children left to right until one does not succeed.
//
// A plain Sequence is reactive: every tick starts again from the first
// child, so conditions guarding a running action are re-evaluated, and a
// running child to the right of a child that now returns Running is halted.
// A Sequence with memory resumes at the child that was Running, skipping the
// children that already succeeded during the current activation.
type Sequence struct {
	name     string
	children []Node
	memory   bool
	index    int
	status   Status
}

// NewSequence returns a reactive Sequence.
func NewSequence(name string, children ...Node) *Sequence {
	return &Sequence{name: name, children: children}
}

// NewSequenceWithMemory returns a Sequence that resumes at its running child.
func NewSequenceWithMemory(name string, children ...Node) *Sequence {
	return &Sequence{name: name, children: children, memory: true}
}

func (s *Sequence) Name() string     { return s.name }
func (s *Sequence) Kind() Kind       { return KindSequence }
func (s *Sequence) Status() Status   { return s.status }
func (s *Sequence) Children() []Node { return s.children }
func (s *Sequence) WithMemory() bool { return s.memory }

func (s *Sequence) Tick(tc *Context) (Status, error) {
	start := 0
	if s.memory {
		start = s.index
	}
	s.status = Running
	for i := start; i < len(s.children); i++ {
		status, err := tickChild(tc, s.children[i])
		if err != nil {
			return Failure, err
		}
		switch status {
		case Running:
			if s.memory {
				s.index = i
				return Running, nil
			}
			if err := haltRunning(tc, s.children[i+1:]); err != nil {
				return Failure, err
			}
			return Running, nil
		case Failure:
			if err := haltRunning(tc, s.children); err != nil {
				return Failure, err
			}
			s.index = 0
			s.status = Failure
			return Failure, nil
		}
	}
	s.index = 0
	s.status = Success
	return Success, nil
}

func (s *Sequence) Halt() error {
	err := haltRunning(nil, s.children)
	s.index = 0
	s.status = Idle
	return err
}
