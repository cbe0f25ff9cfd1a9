package bt

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/joeycumines/behavior-engine/internal/blackboard"
)

// Direction is the data flow direction of a port.
type Direction int

const (
	In Direction = iota
	Out
	InOut
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	case InOut:
		return "inout"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Readable reports whether ports of this direction may be read.
func (d Direction) Readable() bool { return d == In || d == InOut }

// Writable reports whether ports of this direction may be written.
func (d Direction) Writable() bool { return d == Out || d == InOut }

// PortSpec declares a named, typed port of a node type.
type PortSpec struct {
	Name        string
	Direction   Direction
	Type        reflect.Type
	Default     any
	HasDefault  bool
	Description string
}

// InputPort declares an input port of type T.
func InputPort[T any](name, description string) PortSpec {
	return PortSpec{Name: name, Direction: In, Type: reflect.TypeFor[T](), Description: description}
}

// InputPortWithDefault declares an input port of type T that reads def when
// unbound, or bound to a key that is not set.
func InputPortWithDefault[T any](name string, def T, description string) PortSpec {
	p := InputPort[T](name, description)
	p.Default = def
	p.HasDefault = true
	return p
}

// OutputPort declares an output port of type T.
func OutputPort[T any](name, description string) PortSpec {
	return PortSpec{Name: name, Direction: Out, Type: reflect.TypeFor[T](), Description: description}
}

// InOutPort declares a bidirectional port of type T.
func InOutPort[T any](name, description string) PortSpec {
	return PortSpec{Name: name, Direction: InOut, Type: reflect.TypeFor[T](), Description: description}
}

// Binding is the build-time resolution of a port: either a blackboard key in
// the node's scope, or a literal value already converted to the port type.
type Binding struct {
	Key     string
	Literal any
	IsKey   bool
}

// KeyBinding binds a port to a blackboard key.
func KeyBinding(key string) Binding { return Binding{Key: key, IsKey: true} }

// LiteralBinding binds a port to a constant value.
func LiteralBinding(v any) Binding { return Binding{Literal: v} }

func (b Binding) String() string {
	if b.IsKey {
		return "{" + b.Key + "}"
	}
	return fmt.Sprint(b.Literal)
}

// Ports holds the declared ports of a node and their bindings. A nil *Ports
// has no ports.
type Ports struct {
	specs    map[string]PortSpec
	bindings map[string]Binding
}

// NewPorts returns the port set for specs, bound per bindings. Bindings for
// undeclared ports are kept, and treated as untyped inputs.
func NewPorts(specs []PortSpec, bindings map[string]Binding) *Ports {
	p := &Ports{
		specs:    make(map[string]PortSpec, len(specs)),
		bindings: make(map[string]Binding, len(bindings)),
	}
	for _, s := range specs {
		p.specs[s.Name] = s
	}
	for k, v := range bindings {
		p.bindings[k] = v
	}
	return p
}

// Spec returns the declaration of the named port.
func (p *Ports) Spec(name string) (PortSpec, bool) {
	if p == nil {
		return PortSpec{}, false
	}
	s, ok := p.specs[name]
	return s, ok
}

// Binding returns the binding of the named port.
func (p *Ports) Binding(name string) (Binding, bool) {
	if p == nil {
		return Binding{}, false
	}
	b, ok := p.bindings[name]
	return b, ok
}

// Bound returns the names of all bound ports, sorted.
func (p *Ports) Bound() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.bindings))
	for k := range p.bindings {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// GetInput reads the named port as T. Key bindings are read from the
// context's blackboard scope; a missing key falls back to the port default,
// if declared, and is otherwise reported as blackboard.ErrKeyNotFound.
func GetInput[T any](tc *Context, p *Ports, name string) (T, error) {
	var zero T
	spec, declared := p.Spec(name)
	if declared && !spec.Direction.Readable() {
		return zero, fmt.Errorf("%w: cannot read %s port %q", ErrPortDirection, spec.Direction, name)
	}
	raw, err := readPort(tc, p, spec, name)
	if err != nil {
		return zero, err
	}
	v, ok := blackboard.Convert[T](raw)
	if !ok {
		return zero, fmt.Errorf("%w: port %q holds %T, want %s", blackboard.ErrTypeMismatch, name, raw, reflect.TypeFor[T]())
	}
	return v, nil
}

func readPort(tc *Context, p *Ports, spec PortSpec, name string) (any, error) {
	b, bound := p.Binding(name)
	switch {
	case !bound && spec.HasDefault:
		return spec.Default, nil
	case !bound:
		return nil, fmt.Errorf("%w: %q", ErrPortUnbound, name)
	case !b.IsKey:
		return b.Literal, nil
	}
	v, err := tc.Blackboard().Lookup(b.Key)
	if errors.Is(err, blackboard.ErrKeyNotFound) && spec.HasDefault {
		return spec.Default, nil
	}
	if err != nil {
		return nil, fmt.Errorf("port %q: %w", name, err)
	}
	return v, nil
}

// SetOutput writes v to the blackboard key bound to the named port.
func SetOutput(tc *Context, p *Ports, name string, v any) error {
	spec, declared := p.Spec(name)
	if declared && !spec.Direction.Writable() {
		return fmt.Errorf("%w: cannot write %s port %q", ErrPortDirection, spec.Direction, name)
	}
	b, bound := p.Binding(name)
	if !bound {
		return fmt.Errorf("%w: %q", ErrPortUnbound, name)
	}
	if !b.IsKey {
		return fmt.Errorf("%w: port %q is bound to a literal", ErrPortDirection, name)
	}
	if declared && spec.Type != nil && v != nil {
		cv, ok := blackboard.ConvertValue(v, spec.Type)
		if !ok {
			return fmt.Errorf("%w: port %q given %T, want %s", blackboard.ErrTypeMismatch, name, v, spec.Type)
		}
		v = cv
	}
	tc.Blackboard().Set(b.Key, v)
	return nil
}
