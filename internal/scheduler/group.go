package scheduler

import (
	"context"
	"sync"

	gobt "github.com/joeycumines/go-behaviortree"
)

// Group hosts several schedulers, each with its own tree. It stops every
// member once any member reports an error, and is done when all members
// are done.
type Group struct {
	manager gobt.Manager

	mu      sync.Mutex
	members []*Scheduler
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{manager: gobt.NewManager()}
}

// Start starts s and adds it to the group. If the group has already
// stopped, s is cancelled and the error is returned.
func (g *Group) Start(ctx context.Context, s *Scheduler) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	if err := g.manager.Add(s); err != nil {
		s.Cancel()
		return err
	}
	g.mu.Lock()
	g.members = append(g.members, s)
	g.mu.Unlock()
	return nil
}

// Members returns the schedulers added so far.
func (g *Group) Members() []*Scheduler {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Scheduler(nil), g.members...)
}

// Done is closed once every member is done, or the group was stopped and
// its members have finished.
func (g *Group) Done() <-chan struct{} { return g.manager.Done() }

// Err combines the errors of the members.
func (g *Group) Err() error { return g.manager.Err() }

// Stop cancels every member.
func (g *Group) Stop() { g.manager.Stop() }
