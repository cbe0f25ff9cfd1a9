// Package script provides leaves implemented as JavaScript snippets, run
// with goja.
//
// Each node owns its runtime; trees tick on a single goroutine, so no event
// loop is needed. Scripts see the blackboard scope of the node as "bb"
// (get, set, has, delete, keys), the tick number as "tick", and a "log"
// function. The completion value of the snippet is the result: "success",
// "failure" or "running", a boolean, or undefined for success.
//
//	<Script code="bb.set('count', (bb.get('count') || 0) + 1); 'success'"/>
package script

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/joeycumines/behavior-engine/internal/bt"
	"github.com/joeycumines/behavior-engine/internal/builder"
)

// Completion values understood as statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Registered node types.
const (
	ActionType    = "Script"
	ConditionType = "ScriptCondition"
)

// ErrResult is returned when a script completes with a value that is not a
// status.
var ErrResult = errors.New("script: unsupported completion value")

// Register adds the Script action and ScriptCondition to reg.
func Register(reg *builder.Registry) error {
	code := builder.Param[string]("code", "JavaScript snippet; its completion value is the status")
	if err := reg.Register(builder.NodeSpec{
		Type:        ActionType,
		Kind:        bt.KindAction,
		Params:      []builder.ParamSpec{code},
		Description: "Runs a JavaScript snippet against the blackboard.",
		Factory: func(cfg *builder.NodeConfig) (bt.Node, error) {
			h, err := newHandler(cfg, false)
			if err != nil {
				return nil, err
			}
			return bt.NewAction(cfg.Name, cfg.Ports, h), nil
		},
	}); err != nil {
		return err
	}
	return reg.Register(builder.NodeSpec{
		Type:        ConditionType,
		Kind:        bt.KindCondition,
		Params:      []builder.ParamSpec{code},
		Description: "Evaluates a JavaScript snippet with read-only blackboard access.",
		Factory: func(cfg *builder.NodeConfig) (bt.Node, error) {
			h, err := newHandler(cfg, true)
			if err != nil {
				return nil, err
			}
			return bt.GuardCondition(bt.NewAction(cfg.Name, cfg.Ports, h)), nil
		},
	})
}

type handler struct {
	path     string
	program  *goja.Program
	readOnly bool
	vm       *goja.Runtime
}

func newHandler(cfg *builder.NodeConfig, readOnly bool) (*handler, error) {
	code, err := builder.ParamAs[string](cfg, "code")
	if err != nil {
		return nil, err
	}
	prg, err := goja.Compile(cfg.Path, code, true)
	if err != nil {
		return nil, fmt.Errorf("failed to compile script: %w", err)
	}
	return &handler{path: cfg.Path, program: prg, readOnly: readOnly}, nil
}

func (h *handler) Tick(tc *bt.Context, _ *bt.Ports) (bt.Status, error) {
	if h.vm == nil {
		h.vm = goja.New()
	}
	vm := h.vm
	if err := h.bind(vm, tc); err != nil {
		return bt.Failure, err
	}

	ctx := tc.Context()
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(context.Cause(ctx)) })
	v, err := vm.RunProgram(h.program)
	if !stop() {
		vm.ClearInterrupt()
	}
	if err != nil {
		return bt.Failure, fmt.Errorf("script: %w", err)
	}
	return resultStatus(v)
}

func (h *handler) Halt() error { return nil }

// bind refreshes the globals a script sees.
func (h *handler) bind(vm *goja.Runtime, tc *bt.Context) error {
	bb := tc.Blackboard().ExposeToJS(vm).ToObject(vm)
	if h.readOnly {
		for _, name := range []string{"set", "delete"} {
			if err := bb.Delete(name); err != nil {
				return err
			}
		}
	}
	logger := tc.Logger()
	for name, value := range map[string]any{
		"bb":   bb,
		"tick": tc.TickCount(),
		"log": func(msg string) {
			logger.Info(msg, "script", h.path)
		},
	} {
		if err := vm.Set(name, value); err != nil {
			return fmt.Errorf("script: setting %s: %w", name, err)
		}
	}
	return nil
}

func resultStatus(v goja.Value) (bt.Status, error) {
	if v == nil || goja.IsUndefined(v) {
		return bt.Success, nil
	}
	switch r := v.Export().(type) {
	case bool:
		if r {
			return bt.Success, nil
		}
		return bt.Failure, nil
	case string:
		switch strings.ToLower(r) {
		case StatusSuccess:
			return bt.Success, nil
		case StatusFailure:
			return bt.Failure, nil
		case StatusRunning:
			return bt.Running, nil
		}
	}
	return bt.Failure, fmt.Errorf("%w: %s", ErrResult, v.String())
}
