package pabt

import (
	"errors"
	"fmt"
	"log/slog"

	pabtpkg "github.com/joeycumines/go-pabt"

	"github.com/joeycumines/behavior-engine/internal/blackboard"
)

var _ pabtpkg.IState = (*State)(nil)

// State implements pabtpkg.IState over a blackboard scope and a fixed set
// of actions.
type State struct {
	bb      *blackboard.Blackboard
	actions []*Action
	logger  *slog.Logger
}

// NewState creates a State. actions should be sorted by name so that plans
// are reproducible.
func NewState(bb *blackboard.Blackboard, logger *slog.Logger, actions ...*Action) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{bb: bb, actions: actions, logger: logger}
}

// Variable implements pabtpkg.IState. Keys are normalized to strings; a
// missing key is nil.
func (s *State) Variable(key any) (any, error) {
	if key == nil {
		return nil, errors.New("pabt: variable key cannot be nil")
	}
	var name string
	switch k := key.(type) {
	case string:
		name = k
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		name = fmt.Sprintf("%d", k)
	case fmt.Stringer:
		name = k.String()
	default:
		return nil, fmt.Errorf("pabt: unsupported key type: %T", key)
	}
	value, err := s.bb.Lookup(name)
	if errors.Is(err, blackboard.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.logger.Debug("pabt: variable", "key", name, "value", value)
	return value, nil
}

// Actions implements pabtpkg.IState. It returns the actions with an effect
// on the failed condition's key whose value satisfies it. A nil condition
// returns every action.
func (s *State) Actions(failed pabtpkg.Condition) ([]pabtpkg.IAction, error) {
	var out []pabtpkg.IAction
	for _, a := range s.actions {
		if failed == nil || hasRelevantEffect(a, failed) {
			out = append(out, a)
		}
	}
	if failed != nil {
		s.logger.Debug("pabt: actions", "key", failed.Key(), "relevant", len(out))
	}
	return out, nil
}

func hasRelevantEffect(a pabtpkg.IAction, failed pabtpkg.Condition) bool {
	for _, e := range a.Effects() {
		if e != nil && e.Key() == failed.Key() && failed.Match(e.Value()) {
			return true
		}
	}
	return false
}
