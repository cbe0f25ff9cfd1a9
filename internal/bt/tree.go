package bt

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/joeycumines/behavior-engine/internal/blackboard"
)

// Tree is a built behavior tree: the root node, the root blackboard, and an
// arena of every node in pre-order, used for diagnostics and whole-tree
// halts. The shape of a Tree never changes after NewTree.
type Tree struct {
	name   string
	root   Node
	bb     *blackboard.Blackboard
	nodes  []Node
	depths []int
	paths  map[Node]string
	logger *slog.Logger
	now    func() time.Time

	// mu serializes Tick and HaltAll
	mu    sync.Mutex
	ticks uint64
}

// TreeOption configures a Tree.
type TreeOption func(*Tree)

// WithTreeName prefixes every node path with name.
func WithTreeName(name string) TreeOption {
	return func(t *Tree) { t.name = name }
}

// WithTreeLogger sets the logger passed to nodes.
func WithTreeLogger(logger *slog.Logger) TreeOption {
	return func(t *Tree) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithTreeClock sets the clock passed to nodes.
func WithTreeClock(now func() time.Time) TreeOption {
	return func(t *Tree) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTree returns a Tree rooted at root. A nil bb is replaced with an empty
// blackboard.
func NewTree(root Node, bb *blackboard.Blackboard, opts ...TreeOption) *Tree {
	if bb == nil {
		bb = blackboard.New()
	}
	t := &Tree{
		root:   root,
		bb:     bb,
		paths:  make(map[Node]string),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	rootPath := root.Name()
	if t.name != "" {
		rootPath = t.name + "/" + rootPath
	}
	t.index(root, rootPath, 0)
	return t
}

func (t *Tree) index(n Node, path string, depth int) {
	t.nodes = append(t.nodes, n)
	t.depths = append(t.depths, depth)
	t.paths[n] = path
	if p, ok := n.(Parent); ok {
		for i, child := range p.Children() {
			t.index(child, ChildPath(path, child.Name(), i), depth+1)
		}
	}
}

// ChildPath returns the path of the i-th child named name below parent.
func ChildPath(parent, name string, i int) string {
	return parent + "/" + name + "[" + strconv.Itoa(i) + "]"
}

// Name returns the tree's name, possibly empty.
func (t *Tree) Name() string { return t.name }

// Root returns the root node.
func (t *Tree) Root() Node { return t.root }

// Blackboard returns the root blackboard, which the host may read and write
// at any time.
func (t *Tree) Blackboard() *blackboard.Blackboard { return t.bb }

// Status returns the status of the root node.
func (t *Tree) Status() Status { return t.root.Status() }

// TickCount returns the number of root ticks performed.
func (t *Tree) TickCount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks
}

// Tick ticks the root once. Concurrent calls are serialized.
func (t *Tree) Tick(ctx context.Context) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticks++
	tc := &Context{
		ctx:    ctx,
		bb:     t.bb,
		logger: t.logger,
		now:    t.now,
		tick:   t.ticks,
		paths:  t.paths,
	}
	if tc.ctx == nil {
		tc.ctx = context.Background()
	}
	return tickChild(tc, t.root)
}

// HaltAll halts the whole tree, from the root downward, visiting only nodes
// that are Running. Halt errors are attributed to the failing node's path
// and returned as faults.
func (t *Tree) HaltAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []error
	if t.root.Status() == Running {
		if err := t.root.Halt(); err != nil {
			errs = append(errs, asFault(nil, t.root, err))
		}
	}
	// nodes left Running below a faulted, non-running parent
	for _, n := range t.nodes {
		if n.Status() != Running {
			continue
		}
		if err := n.Halt(); err != nil {
			errs = append(errs, asFault(nil, n, err))
		}
	}
	err := errors.Join(errs...)
	t.attribute(err)
	for _, e := range errs {
		t.logger.Error("halt failed", "error", e)
	}
	return err
}

// attribute fills in the path of any fault in err's tree that lacks one.
func (t *Tree) attribute(err error) {
	switch e := err.(type) {
	case nil:
	case *Fault:
		if e.Path == "" && e.node != nil {
			e.Path = t.paths[e.node]
		}
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			t.attribute(inner)
		}
	case interface{ Unwrap() error }:
		t.attribute(e.Unwrap())
	}
}

// Running returns the paths of the nodes that are currently Running, in
// pre-order.
func (t *Tree) Running() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, n := range t.nodes {
		if n.Status() == Running {
			out = append(out, t.paths[n])
		}
	}
	return out
}

// Nodes returns every node of the tree in pre-order.
func (t *Tree) Nodes() []Node {
	return append([]Node(nil), t.nodes...)
}

// PathOf returns the path of n, or "" if n does not belong to the tree.
func (t *Tree) PathOf(n Node) string { return t.paths[n] }

// Walk calls fn for every node in pre-order with its path and depth, until
// fn returns false.
func (t *Tree) Walk(fn func(n Node, path string, depth int) bool) {
	for i, n := range t.nodes {
		if !fn(n, t.paths[n], t.depths[i]) {
			return
		}
	}
}
