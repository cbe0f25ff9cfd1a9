package builder

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/joeycumines/behavior-engine/internal/blackboard"
	"github.com/joeycumines/behavior-engine/internal/bt"
)

// SubTreeType is the reserved type name of subtree references.
const SubTreeType = "SubTree"

// Factory creates a node instance from its validated configuration.
type Factory func(cfg *NodeConfig) (bt.Node, error)

// ParamSpec declares a constructor parameter of a node type. Parameters are
// fixed at build time, unlike ports, and are never bound to the blackboard.
type ParamSpec struct {
	Name        string
	Type        reflect.Type
	Default     any
	Required    bool
	Description string
}

// Param declares a required parameter of type T.
func Param[T any](name, description string) ParamSpec {
	return ParamSpec{Name: name, Type: reflect.TypeFor[T](), Required: true, Description: description}
}

// OptionalParam declares a parameter of type T that defaults to def.
func OptionalParam[T any](name string, def T, description string) ParamSpec {
	return ParamSpec{Name: name, Type: reflect.TypeFor[T](), Default: def, Description: description}
}

// NodeSpec describes a registered node type.
type NodeSpec struct {
	Type        string
	Kind        bt.Kind
	Ports       []bt.PortSpec
	Params      []ParamSpec
	Factory     Factory
	Description string
}

func (s NodeSpec) port(name string) (bt.PortSpec, bool) {
	for _, p := range s.Ports {
		if p.Name == name {
			return p, true
		}
	}
	return bt.PortSpec{}, false
}

func (s NodeSpec) param(name string) (ParamSpec, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// NodeConfig is everything a Factory receives.
type NodeConfig struct {
	Name string
	Type string
	Path string
	// Ports are the node's resolved port bindings.
	Ports *bt.Ports
	// Params holds every declared parameter, converted to its type, with
	// defaults applied.
	Params   map[string]any
	Children []bt.Node
	// Blackboard is the scope the node is ticked in.
	Blackboard *blackboard.Blackboard
	Logger     *slog.Logger
}

// ParamAs returns the named parameter as T.
func ParamAs[T any](cfg *NodeConfig, name string) (T, error) {
	var zero T
	v, ok := cfg.Params[name]
	if !ok {
		return zero, fmt.Errorf("parameter %q not set", name)
	}
	out, ok := blackboard.Convert[T](v)
	if !ok {
		return zero, fmt.Errorf("parameter %q is %T, want %s", name, v, reflect.TypeFor[T]())
	}
	return out, nil
}

// Registry maps node type names to their specs. It is safe for concurrent
// use.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]NodeSpec
}

// NewRegistry returns a registry holding the builtin control nodes and
// leaves.
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[string]NodeSpec)}
	for _, spec := range builtinSpecs() {
		if err := r.Register(spec); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a node type. Type names must be unique.
func (r *Registry) Register(spec NodeSpec) error {
	switch {
	case spec.Type == "":
		return errors.New("builder: node type name is empty")
	case spec.Type == SubTreeType:
		return fmt.Errorf("builder: node type %q is reserved", spec.Type)
	case spec.Factory == nil:
		return fmt.Errorf("builder: node type %q has no factory", spec.Type)
	}
	seen := make(map[string]bool, len(spec.Ports)+len(spec.Params))
	for _, p := range spec.Ports {
		if seen[p.Name] || p.Name == "" || p.Name == "name" {
			return fmt.Errorf("builder: node type %q: invalid or duplicate port %q", spec.Type, p.Name)
		}
		seen[p.Name] = true
	}
	for _, p := range spec.Params {
		if seen[p.Name] || p.Name == "" || p.Name == "name" {
			return fmt.Errorf("builder: node type %q: invalid or duplicate parameter %q", spec.Type, p.Name)
		}
		seen[p.Name] = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.Type]; exists {
		return fmt.Errorf("builder: node type %q already registered", spec.Type)
	}
	r.specs[spec.Type] = spec
	return nil
}

// RegisterAction registers an Action type. newHandler is called once per
// node instance, so handlers may keep per-node state.
func (r *Registry) RegisterAction(typ string, ports []bt.PortSpec, newHandler func(cfg *NodeConfig) (bt.ActionHandler, error)) error {
	return r.Register(NodeSpec{
		Type:  typ,
		Kind:  bt.KindAction,
		Ports: ports,
		Factory: func(cfg *NodeConfig) (bt.Node, error) {
			h, err := newHandler(cfg)
			if err != nil {
				return nil, err
			}
			return bt.NewAction(cfg.Name, cfg.Ports, h), nil
		},
	})
}

// RegisterCondition registers a Condition type.
func (r *Registry) RegisterCondition(typ string, ports []bt.PortSpec, fn bt.ConditionFunc) error {
	return r.Register(NodeSpec{
		Type:  typ,
		Kind:  bt.KindCondition,
		Ports: ports,
		Factory: func(cfg *NodeConfig) (bt.Node, error) {
			return bt.NewCondition(cfg.Name, cfg.Ports, fn), nil
		},
	})
}

// RegisterAsyncAction registers an Action type that starts a job on its
// first tick and polls it afterwards.
func (r *Registry) RegisterAsyncAction(typ string, ports []bt.PortSpec, start bt.StartFunc) error {
	return r.Register(NodeSpec{
		Type:  typ,
		Kind:  bt.KindAction,
		Ports: ports,
		Factory: func(cfg *NodeConfig) (bt.Node, error) {
			return bt.NewAsyncAction(cfg.Name, cfg.Ports, start), nil
		},
	})
}

// Lookup returns the spec of a node type.
func (r *Registry) Lookup(typ string) (NodeSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[typ]
	return spec, ok
}

// Specs returns every registered spec, sorted by type name.
func (r *Registry) Specs() []NodeSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NodeSpec, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
