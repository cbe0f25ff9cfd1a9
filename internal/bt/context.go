package bt

import (
	"context"
	"log/slog"
	"time"

	"github.com/joeycumines/behavior-engine/internal/blackboard"
)

// Context is passed down through every Tick call. It carries the blackboard
// scope the node should read and write, and the per-tick ambient values.
//
// A Context is only valid for the duration of the tick it was passed to.
type Context struct {
	ctx    context.Context
	bb     *blackboard.Blackboard
	logger *slog.Logger
	now    func() time.Time
	tick   uint64
	paths  map[Node]string
}

// ContextOption configures a Context created by NewContext.
type ContextOption func(*Context)

// WithLogger sets the logger exposed to nodes.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the clock used by time based nodes.
func WithClock(now func() time.Time) ContextOption {
	return func(c *Context) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTickCount sets the root tick sequence number.
func WithTickCount(n uint64) ContextOption {
	return func(c *Context) {
		c.tick = n
	}
}

// NewContext returns a tick context over the given blackboard scope. A nil
// ctx is replaced with context.Background, and a nil bb with an empty root
// blackboard.
func NewContext(ctx context.Context, bb *blackboard.Blackboard, opts ...ContextOption) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if bb == nil {
		bb = blackboard.New()
	}
	c := &Context{
		ctx:    ctx,
		bb:     bb,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Context returns the context.Context of the run, for host actions that
// start cancellable work.
func (c *Context) Context() context.Context { return c.ctx }

// Blackboard returns the blackboard scope of the node being ticked.
func (c *Context) Blackboard() *blackboard.Blackboard { return c.bb }

// Logger returns the run's logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Now returns the current time according to the run's clock.
func (c *Context) Now() time.Time { return c.now() }

// TickCount returns the sequence number of the current root tick, starting
// at 1.
func (c *Context) TickCount() uint64 { return c.tick }

// WithBlackboard returns a copy of c that exposes bb as the current scope.
func (c *Context) WithBlackboard(bb *blackboard.Blackboard) *Context {
	cp := *c
	cp.bb = bb
	return &cp
}

// PathOf returns the path of n within the tree being ticked, falling back to
// the node's name when it is ticked outside a Tree.
func (c *Context) PathOf(n Node) string {
	if p, ok := c.paths[n]; ok {
		return p
	}
	return n.Name()
}
