package pabt

import (
	"errors"
	"fmt"
	"strings"

	gobt "github.com/joeycumines/go-behaviortree"
	pabtpkg "github.com/joeycumines/go-pabt"

	"github.com/joeycumines/behavior-engine/internal/bt"
	"github.com/joeycumines/behavior-engine/internal/builder"
)

// TypeName is the registered node type.
const TypeName = "Plan"

// Register adds the Plan action to reg. Plan nodes plan with the actions
// of planner at the time of their first tick.
func Register(reg *builder.Registry, planner *Planner) error {
	return reg.Register(builder.NodeSpec{
		Type:        TypeName,
		Kind:        bt.KindAction,
		Params:      []builder.ParamSpec{builder.Param[string]("goal", `conditions to achieve, e.g. "inside: value == true; door: value == 'open'"`)},
		Description: "Plans and runs actions until a goal over the blackboard holds (PA-BT).",
		Factory: func(cfg *builder.NodeConfig) (bt.Node, error) {
			src, err := builder.ParamAs[string](cfg, "goal")
			if err != nil {
				return nil, err
			}
			goal, err := ParseGoal(planner, src)
			if err != nil {
				return nil, err
			}
			return bt.NewAction(cfg.Name, cfg.Ports, &planHandler{planner: planner, goal: goal}), nil
		},
	})
}

// ParseGoal parses ";"-separated "key: expression" conditions into a
// single group that must hold as a whole.
func ParseGoal(planner *Planner, src string) (pabtpkg.IConditions, error) {
	var goal pabtpkg.IConditions
	for part := range strings.SplitSeq(src, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, expression, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("goal condition %q is not of the form key: expression", part)
		}
		cond, err := NewExprCondition(planner.cache, strings.TrimSpace(key), strings.TrimSpace(expression), nil)
		if err != nil {
			return nil, fmt.Errorf("goal: %w", err)
		}
		goal = append(goal, cond)
	}
	if len(goal) == 0 {
		return nil, errors.New("goal has no conditions")
	}
	return goal, nil
}

// planHandler runs a PA-BT plan. The plan is built on the first tick of
// each activation and discarded once it completes or is halted.
type planHandler struct {
	planner *Planner
	goal    pabtpkg.IConditions

	tc      *bt.Context
	root    gobt.Node
	actions []*Action
	ticked  map[bt.Node]bool
}

func (h *planHandler) Tick(tc *bt.Context, _ *bt.Ports) (bt.Status, error) {
	h.tc = tc
	if h.root == nil {
		if err := h.build(tc); err != nil {
			return bt.Failure, err
		}
	}
	clear(h.ticked)
	gs, err := h.root.Tick()
	if err != nil {
		return bt.Failure, errors.Join(err, h.reset())
	}
	status, err := bt.FromGoBTStatus(gs)
	if err != nil {
		return bt.Failure, errors.Join(err, h.reset())
	}
	if status.IsTerminal() {
		return status, h.reset()
	}
	// The plan may have switched branches, leaving actions it no longer
	// ticks in RUNNING.
	var errs []error
	for _, a := range h.actions {
		if !h.ticked[a.node] && a.node.Status() == bt.Running {
			tc.Logger().Debug("pabt: halting preempted action", "action", a.Name)
			errs = append(errs, a.node.Halt())
		}
	}
	return status, errors.Join(errs...)
}

func (h *planHandler) build(tc *bt.Context) error {
	h.ticked = make(map[bt.Node]bool)
	h.actions = h.planner.instantiate(func(n bt.Node) gobt.Node {
		inner := bt.ToGoBT(n, func() *bt.Context { return h.tc })
		return gobt.New(func([]gobt.Node) (gobt.Status, error) {
			h.ticked[n] = true
			return inner.Tick()
		})
	})
	state := NewState(tc.Blackboard(), tc.Logger(), h.actions...)
	plan, err := pabtpkg.INew(state, []pabtpkg.IConditions{h.goal})
	if err != nil {
		h.actions = nil
		return fmt.Errorf("pabt: failed to create plan: %w", err)
	}
	h.root = plan.Node()
	return nil
}

func (h *planHandler) Halt() error { return h.reset() }

// reset halts every running action and discards the plan.
func (h *planHandler) reset() error {
	var errs []error
	for _, a := range h.actions {
		if a.node.Status() == bt.Running {
			errs = append(errs, a.node.Halt())
		}
	}
	h.root = nil
	h.actions = nil
	h.tc = nil
	return errors.Join(errs...)
}
