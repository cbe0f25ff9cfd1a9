package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/joeycumines/behavior-engine/internal/bt"
)

func builtinSpecs() []NodeSpec {
	return []NodeSpec{
		{
			Type:        "Sequence",
			Kind:        bt.KindSequence,
			Description: "Ticks children in order until one fails; re-evaluates from the first child every tick.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				return bt.NewSequence(cfg.Name, cfg.Children...), nil
			},
		},
		{
			Type:        "SequenceWithMemory",
			Kind:        bt.KindSequence,
			Description: "Ticks children in order until one fails; resumes at the running child.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				return bt.NewSequenceWithMemory(cfg.Name, cfg.Children...), nil
			},
		},
		{
			Type:        "Fallback",
			Kind:        bt.KindFallback,
			Description: "Ticks children in order until one succeeds.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				return bt.NewFallback(cfg.Name, cfg.Children...), nil
			},
		},
		{
			Type: "Parallel",
			Kind: bt.KindParallel,
			Params: []ParamSpec{
				OptionalParam("success_count", -1, "successes required; negative counts back from the number of children"),
				OptionalParam("failure_count", 1, "failures required; negative counts back from the number of children"),
			},
			Description: "Ticks all children every tick until a success or failure threshold is reached.",
			Factory:     newParallel,
		},
		{
			Type:        "Inverter",
			Kind:        bt.KindDecorator,
			Description: "Swaps SUCCESS and FAILURE.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				return bt.NewInverter(cfg.Name, cfg.Children[0]), nil
			},
		},
		{
			Type:        "ForceSuccess",
			Kind:        bt.KindDecorator,
			Description: "Reports SUCCESS whenever the child completes.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				return bt.NewForceSuccess(cfg.Name, cfg.Children[0]), nil
			},
		},
		{
			Type:        "ForceFailure",
			Kind:        bt.KindDecorator,
			Description: "Reports FAILURE whenever the child completes.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				return bt.NewForceFailure(cfg.Name, cfg.Children[0]), nil
			},
		},
		{
			Type:        "Retry",
			Kind:        bt.KindDecorator,
			Params:      []ParamSpec{Param[int]("retries", "additional attempts after a failure; negative retries forever")},
			Description: "Re-ticks a failing child.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				n, err := ParamAs[int](cfg, "retries")
				if err != nil {
					return nil, err
				}
				return bt.NewRetry(cfg.Name, n, cfg.Children[0]), nil
			},
		},
		{
			Type:        "Repeat",
			Kind:        bt.KindDecorator,
			Params:      []ParamSpec{Param[int]("num_cycles", "successful completions required; negative repeats until failure")},
			Description: "Re-ticks a succeeding child.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				n, err := ParamAs[int](cfg, "num_cycles")
				if err != nil {
					return nil, err
				}
				return bt.NewRepeat(cfg.Name, n, cfg.Children[0]), nil
			},
		},
		{
			Type: "Timeout",
			Kind: bt.KindDecorator,
			Params: []ParamSpec{
				{Name: "ticks", Type: reflect.TypeFor[int](), Description: "consecutive RUNNING ticks allowed"},
				{Name: "duration", Type: durationType, Description: "time allowed in RUNNING, e.g. 1.5s"},
			},
			Description: "Halts and fails a child that stays RUNNING for too long.",
			Factory:     newTimeout,
		},
		{
			Type:        "AlwaysSuccess",
			Kind:        bt.KindAction,
			Description: "Returns SUCCESS.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				return bt.NewAction(cfg.Name, cfg.Ports, statusAction(bt.Success)), nil
			},
		},
		{
			Type:        "AlwaysFailure",
			Kind:        bt.KindAction,
			Description: "Returns FAILURE.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				return bt.NewAction(cfg.Name, cfg.Ports, statusAction(bt.Failure)), nil
			},
		},
		{
			Type: "SetBlackboard",
			Kind: bt.KindAction,
			Ports: []bt.PortSpec{
				bt.InputPort[any]("value", "value to write"),
				bt.OutputPort[any]("output_key", "key to write to"),
			},
			Description: "Copies a value or key to a blackboard key.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				return bt.NewAction(cfg.Name, cfg.Ports, bt.ActionFunc(setBlackboard)), nil
			},
		},
		{
			Type: "CheckBlackboard",
			Kind: bt.KindCondition,
			Ports: []bt.PortSpec{
				bt.InputPort[any]("value", "value to check, usually a {key}"),
				bt.InputPort[string]("expected", "expected value, compared as text"),
			},
			Description: "Succeeds if a value matches the expected text.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				return bt.NewCondition(cfg.Name, cfg.Ports, checkBlackboard), nil
			},
		},
		{
			Type:        "Wait",
			Kind:        bt.KindAction,
			Params:      []ParamSpec{OptionalParam("ticks", 1, "ticks to remain RUNNING")},
			Description: "Returns RUNNING for a number of ticks, then SUCCESS.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				n, err := ParamAs[int](cfg, "ticks")
				if err != nil {
					return nil, err
				}
				if n < 0 {
					return nil, fmt.Errorf("ticks must not be negative, got %d", n)
				}
				return bt.NewAction(cfg.Name, cfg.Ports, &waitHandler{ticks: n}), nil
			},
		},
		{
			Type:        "Sleep",
			Kind:        bt.KindAction,
			Ports:       []bt.PortSpec{bt.InputPort[time.Duration]("duration", "time to sleep")},
			Description: "Returns RUNNING until a duration has elapsed in the background.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				return bt.NewAsyncAction(cfg.Name, cfg.Ports, startSleep), nil
			},
		},
		{
			Type:        "Log",
			Kind:        bt.KindAction,
			Ports:       []bt.PortSpec{bt.InputPort[string]("message", "message to log")},
			Params:      []ParamSpec{OptionalParam("level", slog.LevelInfo, "debug, info, warn or error")},
			Description: "Logs a message and returns SUCCESS.",
			Factory: func(cfg *NodeConfig) (bt.Node, error) {
				level, err := ParamAs[slog.Level](cfg, "level")
				if err != nil {
					return nil, err
				}
				return bt.NewAction(cfg.Name, cfg.Ports, logAction(level)), nil
			},
		},
	}
}

func newParallel(cfg *NodeConfig) (bt.Node, error) {
	s, err := ParamAs[int](cfg, "success_count")
	if err != nil {
		return nil, err
	}
	f, err := ParamAs[int](cfg, "failure_count")
	if err != nil {
		return nil, err
	}
	n := len(cfg.Children)
	if s < 0 {
		s = n + s + 1
	}
	if f < 0 {
		f = n + f + 1
	}
	return bt.NewParallel(cfg.Name, s, f, cfg.Children...)
}

func newTimeout(cfg *NodeConfig) (bt.Node, error) {
	ticks, hasTicks := cfg.Params["ticks"]
	duration, hasDuration := cfg.Params["duration"]
	switch {
	case hasTicks && hasDuration:
		return nil, errors.New("timeout takes either ticks or duration, not both")
	case hasTicks:
		return bt.NewTickTimeout(cfg.Name, ticks.(int), cfg.Children[0])
	case hasDuration:
		return bt.NewDurationTimeout(cfg.Name, duration.(time.Duration), cfg.Children[0])
	default:
		return nil, errors.New("timeout requires ticks or duration")
	}
}

func statusAction(s bt.Status) bt.ActionFunc {
	return func(*bt.Context, *bt.Ports) (bt.Status, error) { return s, nil }
}

func setBlackboard(tc *bt.Context, p *bt.Ports) (bt.Status, error) {
	v, err := bt.GetInput[any](tc, p, "value")
	if err != nil {
		return bt.Failure, err
	}
	if err := bt.SetOutput(tc, p, "output_key", v); err != nil {
		return bt.Failure, err
	}
	return bt.Success, nil
}

func checkBlackboard(tc *bt.Context, p *bt.Ports) (bool, error) {
	v, err := bt.GetInput[any](tc, p, "value")
	if err != nil {
		return false, err
	}
	expected, err := bt.GetInput[string](tc, p, "expected")
	if err != nil {
		return false, err
	}
	return fmt.Sprint(v) == expected, nil
}

func logAction(level slog.Level) bt.ActionFunc {
	return func(tc *bt.Context, p *bt.Ports) (bt.Status, error) {
		msg, err := bt.GetInput[string](tc, p, "message")
		if err != nil {
			return bt.Failure, err
		}
		tc.Logger().Log(tc.Context(), level, msg, "tick", tc.TickCount())
		return bt.Success, nil
	}
}

type waitHandler struct {
	ticks   int
	elapsed int
}

func (h *waitHandler) Tick(*bt.Context, *bt.Ports) (bt.Status, error) {
	if h.elapsed < h.ticks {
		h.elapsed++
		return bt.Running, nil
	}
	h.elapsed = 0
	return bt.Success, nil
}

func (h *waitHandler) Halt() error {
	h.elapsed = 0
	return nil
}

func startSleep(tc *bt.Context, p *bt.Ports) (bt.Job, error) {
	d, err := bt.GetInput[time.Duration](tc, p, "duration")
	if err != nil {
		return nil, err
	}
	return bt.GoJob(tc.Context(), func(ctx context.Context) (bool, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, nil
		case <-timer.C:
			return true, nil
		}
	}), nil
}
