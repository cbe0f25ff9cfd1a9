// Package exprcond provides conditions written as expr-lang expressions.
//
// An Expr node evaluates its expression against the blackboard keys visible
// from its scope, e.g.
//
//	<Expr condition="battery > 20 && door == 'open'"/>
//
// Expressions are compiled when the tree is built, so syntax errors are
// configuration errors. Missing keys evaluate to nil. A runtime error or a
// non-boolean result is a fault.
package exprcond

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/joeycumines/behavior-engine/internal/bt"
	"github.com/joeycumines/behavior-engine/internal/builder"
)

// TypeName is the registered node type.
const TypeName = "Expr"

// ErrNotBool is returned when an expression yields a non-boolean value.
var ErrNotBool = errors.New("exprcond: expression returned a non-boolean result")

// Register adds the Expr condition to reg. Programs are shared through
// cache; a nil cache selects a private one of DefaultCacheSize.
func Register(reg *builder.Registry, cache *Cache) error {
	if cache == nil {
		cache = NewCache(DefaultCacheSize)
	}
	return reg.Register(builder.NodeSpec{
		Type:        TypeName,
		Kind:        bt.KindCondition,
		Params:      []builder.ParamSpec{builder.Param[string]("condition", "boolean expr-lang expression over blackboard keys")},
		Description: "Succeeds if an expression over the blackboard is true.",
		Factory: func(cfg *builder.NodeConfig) (bt.Node, error) {
			src, err := builder.ParamAs[string](cfg, "condition")
			if err != nil {
				return nil, err
			}
			program, err := cache.Compile(src)
			if err != nil {
				return nil, fmt.Errorf("invalid expression %q: %w", src, err)
			}
			return bt.NewCondition(cfg.Name, cfg.Ports, func(tc *bt.Context, _ *bt.Ports) (bool, error) {
				return Eval(program, tc.Blackboard().Visible())
			}), nil
		},
	})
}

// Eval runs program against env.
func Eval(program *vm.Program, env map[string]any) (bool, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("exprcond: %w", err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %T", ErrNotBool, out)
	}
	return b, nil
}
