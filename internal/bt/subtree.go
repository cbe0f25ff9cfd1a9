package bt

import "github.com/joeycumines/behavior-engine/internal/blackboard"

// SubTree ticks the root of a nested tree within its own blackboard scope.
// The scope is created when the tree is built, as a child of the scope the
// SubTree node itself belongs to, so it lives as long as the tree does.
type SubTree struct {
	decorator
	id    string
	scope *blackboard.Blackboard
}

// NewSubTree returns a SubTree node for the tree identified by id.
func NewSubTree(name, id string, scope *blackboard.Blackboard, root Node) *SubTree {
	return &SubTree{decorator: decorator{name: name, child: root}, id: id, scope: scope}
}

// ID returns the identifier of the nested tree.
func (n *SubTree) ID() string { return n.id }

// Scope returns the blackboard scope of the nested tree.
func (n *SubTree) Scope() *blackboard.Blackboard { return n.scope }

func (n *SubTree) Tick(tc *Context) (Status, error) {
	n.status = Running
	status, err := tickChild(tc.WithBlackboard(n.scope), n.child)
	if err != nil {
		return Failure, err
	}
	n.status = status
	return status, nil
}

func (n *SubTree) Halt() error { return n.haltChild(nil) }
