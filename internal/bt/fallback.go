package bt

// Fallback ticks its children left to right until one does not fail. A
// Running child is resumed directly on the next tick.
type Fallback struct {
	name     string
	children []Node
	index    int
	status   Status
}

// NewFallback returns a Fallback (selector) node.
func NewFallback(name string, children ...Node) *Fallback {
	return &Fallback{name: name, children: children}
}

func (f *Fallback) Name() string     { return f.name }
func (f *Fallback) Kind() Kind       { return KindFallback }
func (f *Fallback) Status() Status   { return f.status }
func (f *Fallback) Children() []Node { return f.children }

func (f *Fallback) Tick(tc *Context) (Status, error) {
	f.status = Running
	for i := f.index; i < len(f.children); i++ {
		status, err := tickChild(tc, f.children[i])
		if err != nil {
			return Failure, err
		}
		switch status {
		case Running:
			f.index = i
			return Running, nil
		case Success:
			if err := haltRunning(tc, f.children); err != nil {
				return Failure, err
			}
			f.index = 0
			f.status = Success
			return Success, nil
		}
	}
	f.index = 0
	f.status = Failure
	return Failure, nil
}

func (f *Fallback) Halt() error {
	err := haltRunning(nil, f.children)
	f.index = 0
	f.status = Idle
	return err
}
