package pabt

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	gobt "github.com/joeycumines/go-behaviortree"
	pabtpkg "github.com/joeycumines/go-pabt"

	"github.com/joeycumines/behavior-engine/internal/bt"
	"github.com/joeycumines/behavior-engine/internal/builtin/exprcond"
)

// ActionSpec declares a planning action.
type ActionSpec struct {
	// Name identifies the action; it is also the name of its node.
	Name string
	// Preconditions must all hold before the action runs. Each maps a
	// blackboard key to an expression over its value.
	Preconditions map[string]string
	// Effects are the values the action leaves on the blackboard once it
	// succeeds. At least one is required.
	Effects map[string]any
	// NewNode creates the node performing the action. It is called once for
	// every Plan node instance. If nil, the action writes its effects to the
	// blackboard and succeeds.
	NewNode func() bt.Node
}

// Planner is a thread-safe registry of planning actions shared by Plan
// nodes.
type Planner struct {
	cache *exprcond.Cache

	mu      sync.RWMutex
	actions map[string]*registered
}

type registered struct {
	spec       ActionSpec
	conditions pabtpkg.IConditions
	effects    pabtpkg.Effects
}

// NewPlanner creates an empty planner compiling expressions through cache.
// A nil cache selects a private one.
func NewPlanner(cache *exprcond.Cache) *Planner {
	if cache == nil {
		cache = exprcond.NewCache(exprcond.DefaultCacheSize)
	}
	return &Planner{cache: cache, actions: make(map[string]*registered)}
}

// Add registers an action. Names must be unique.
func (p *Planner) Add(spec ActionSpec) error {
	if spec.Name == "" {
		return errors.New("pabt: action name is empty")
	}
	if len(spec.Effects) == 0 {
		return fmt.Errorf("pabt: action %q has no effects", spec.Name)
	}
	r := &registered{spec: spec}
	for _, key := range sortedKeys(spec.Preconditions) {
		cond, err := NewExprCondition(p.cache, key, spec.Preconditions[key], nil)
		if err != nil {
			return fmt.Errorf("pabt: action %q: %w", spec.Name, err)
		}
		r.conditions = append(r.conditions, cond)
	}
	for _, key := range sortedKeys(spec.Effects) {
		r.effects = append(r.effects, NewEffect(key, spec.Effects[key]))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.actions[spec.Name]; exists {
		return fmt.Errorf("pabt: action %q already registered", spec.Name)
	}
	p.actions[spec.Name] = r
	return nil
}

// Names returns the registered action names, sorted.
func (p *Planner) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedKeys(p.actions)
}

// instantiate creates fresh actions, sorted by name. Deterministic order
// keeps plans reproducible.
func (p *Planner) instantiate(wrap func(bt.Node) gobt.Node) []*Action {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Action, 0, len(p.actions))
	for _, name := range sortedKeys(p.actions) {
		r := p.actions[name]
		var node bt.Node
		if r.spec.NewNode != nil {
			node = r.spec.NewNode()
		}
		if node == nil {
			node = applyEffects(name, r.spec.Effects)
		}
		out = append(out, &Action{
			Name:       name,
			conditions: []pabtpkg.IConditions{r.conditions},
			effects:    r.effects,
			node:       node,
			gobtNode:   wrap(node),
		})
	}
	return out
}

func applyEffects(name string, effects map[string]any) bt.Node {
	return bt.NewAction(name, nil, bt.ActionFunc(func(tc *bt.Context, _ *bt.Ports) (bt.Status, error) {
		for _, key := range sortedKeys(effects) {
			tc.Blackboard().Set(key, effects[key])
		}
		return bt.Success, nil
	}))
}

// Action implements pabtpkg.IAction over an engine node.
type Action struct {
	// Name of the action
	Name string

	conditions []pabtpkg.IConditions
	effects    pabtpkg.Effects
	node       bt.Node
	gobtNode   gobt.Node
}

var _ pabtpkg.IAction = (*Action)(nil)

// Conditions implements pabtpkg.IAction. There is a single group, holding
// every precondition; it is empty for unconditional actions.
func (a *Action) Conditions() []pabtpkg.IConditions { return a.conditions }

// Effects implements pabtpkg.IAction.
func (a *Action) Effects() pabtpkg.Effects { return a.effects }

// Node implements pabtpkg.IAction.
func (a *Action) Node() gobt.Node { return a.gobtNode }

// Engine returns the engine node performing the action.
func (a *Action) Engine() bt.Node { return a.node }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
