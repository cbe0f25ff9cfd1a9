package pabt

import (
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr/vm"
	pabtpkg "github.com/joeycumines/go-pabt"

	"github.com/joeycumines/behavior-engine/internal/builtin/exprcond"
)

// ExprCondition implements pabtpkg.Condition with a compiled expr-lang
// expression over the value of one blackboard key.
type ExprCondition struct {
	key        string
	expression string
	program    *vm.Program
	logger     *slog.Logger
}

var _ pabtpkg.Condition = (*ExprCondition)(nil)

// NewExprCondition compiles expression through cache. The expression sees
// the value of key as "value". A nil logger selects slog.Default.
func NewExprCondition(cache *exprcond.Cache, key, expression string, logger *slog.Logger) (*ExprCondition, error) {
	if key == "" {
		return nil, fmt.Errorf("condition %q has no key", expression)
	}
	if expression == "" {
		return nil, fmt.Errorf("condition on %q has no expression", key)
	}
	program, err := cache.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("condition on %q: %w", key, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExprCondition{key: key, expression: expression, program: program, logger: logger}, nil
}

// Key implements pabtpkg.Variable.
func (c *ExprCondition) Key() any { return c.key }

// Expression returns the source of the condition.
func (c *ExprCondition) Expression() string { return c.expression }

// Match implements pabtpkg.Condition. Evaluation errors are logged and
// treated as a mismatch, since go-pabt has no way to report them.
func (c *ExprCondition) Match(value any) bool {
	ok, err := exprcond.Eval(c.program, map[string]any{"value": value})
	if err != nil {
		c.logger.Error("pabt: condition evaluation failed",
			"key", c.key,
			"expression", c.expression,
			"value", fmt.Sprintf("%v", value),
			"error", err)
		return false
	}
	return ok
}

func (c *ExprCondition) String() string {
	return c.key + ": " + c.expression
}

// Effect implements pabtpkg.Effect: the value an action leaves at a key.
type Effect struct {
	key   string
	value any
}

var _ pabtpkg.Effect = (*Effect)(nil)

// NewEffect creates an effect.
func NewEffect(key string, value any) *Effect {
	return &Effect{key: key, value: value}
}

// Key implements pabtpkg.Variable.
func (e *Effect) Key() any { return e.key }

// Value implements pabtpkg.Effect.
func (e *Effect) Value() any { return e.value }
