// Package doorroom is a small simulated world used to demonstrate host
// supplied leaves: an agent must open a door before it can enter a room.
//
// The same world can be driven by a hand-written tree (TreeXML) or by a
// PA-BT Plan node (PlanTreeXML), with the planning actions added by
// RegisterPlanning.
package doorroom

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/joeycumines/behavior-engine/internal/bt"
	"github.com/joeycumines/behavior-engine/internal/builder"
	"github.com/joeycumines/behavior-engine/internal/builtin/pabt"
)

// Blackboard keys written by the leaves.
const (
	KeyDoor   = "door"
	KeyInside = "inside"
)

// Event names recorded by World.
const (
	EventCheckDoor   = "check-door"
	EventOpenStart   = "open-door:start"
	EventOpenDone    = "open-door:done"
	EventOpenCancel  = "open-door:cancel"
	EventEnter       = "enter-room"
	EventEnterDenied = "enter-room:denied"
)

// TreeXML opens the door if needed, then enters the room.
const TreeXML = `<root main_tree_to_execute="Main">
  <BehaviorTree ID="Main">
    <Sequence>
      <Fallback>
        <DoorOpen/>
        <OpenDoor/>
      </Fallback>
      <EnterRoom/>
    </Sequence>
  </BehaviorTree>
</root>`

// PlanTreeXML reaches the same goal with a planner.
const PlanTreeXML = `<root main_tree_to_execute="Main">
  <BehaviorTree ID="Main">
    <Plan goal="inside: value == true"/>
  </BehaviorTree>
</root>`

// ErrDoorClosed is returned by World.Enter while the door is closed.
var ErrDoorClosed = errors.New("doorroom: door is closed")

// World is the simulated environment. It is safe for concurrent use, since
// OpenDoor runs on its own goroutine.
type World struct {
	mu        sync.Mutex
	open      bool
	inside    bool
	openDelay time.Duration
	events    []string
}

// NewWorld creates a world with the door closed. Opening the door takes
// openDelay.
func NewWorld(openDelay time.Duration) *World {
	return &World{openDelay: openDelay}
}

// DoorOpen reports whether the door is open.
func (w *World) DoorOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Inside reports whether the agent entered the room.
func (w *World) Inside() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inside
}

// Events returns the recorded events, oldest first.
func (w *World) Events() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.events)
}

// Values are the blackboard values matching the world's current state.
func (w *World) Values() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	door := "closed"
	if w.open {
		door = "open"
	}
	return map[string]any{KeyDoor: door, KeyInside: w.inside}
}

func (w *World) checkDoor() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, EventCheckDoor)
	return w.open
}

func (w *World) record(event string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event)
}

// Open waits for the opening delay, then opens the door. It stops early if
// ctx is done.
func (w *World) Open(ctx context.Context) error {
	w.record(EventOpenStart)
	timer := time.NewTimer(w.openDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		w.record(EventOpenCancel)
		return context.Cause(ctx)
	case <-timer.C:
	}
	w.mu.Lock()
	w.open = true
	w.events = append(w.events, EventOpenDone)
	w.mu.Unlock()
	return nil
}

// Enter moves the agent into the room.
func (w *World) Enter() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		w.events = append(w.events, EventEnterDenied)
		return ErrDoorClosed
	}
	w.inside = true
	w.events = append(w.events, EventEnter)
	return nil
}

// Register adds the DoorOpen, OpenDoor and EnterRoom leaves to reg.
func Register(reg *builder.Registry, w *World) error {
	if err := reg.RegisterCondition("DoorOpen", nil, func(*bt.Context, *bt.Ports) (bool, error) {
		return w.checkDoor(), nil
	}); err != nil {
		return err
	}
	if err := reg.RegisterAsyncAction("OpenDoor", nil, func(tc *bt.Context, _ *bt.Ports) (bt.Job, error) {
		return openDoorJob(tc, w), nil
	}); err != nil {
		return err
	}
	return reg.RegisterAction("EnterRoom", nil, func(*builder.NodeConfig) (bt.ActionHandler, error) {
		return bt.ActionFunc(func(tc *bt.Context, _ *bt.Ports) (bt.Status, error) {
			return enterRoom(tc, w), nil
		}), nil
	})
}

// RegisterPlanning adds planning actions equivalent to the leaves of
// Register.
func RegisterPlanning(planner *pabt.Planner, w *World) error {
	if err := planner.Add(pabt.ActionSpec{
		Name:    "OpenDoor",
		Effects: map[string]any{KeyDoor: "open"},
		NewNode: func() bt.Node {
			return bt.NewAsyncAction("OpenDoor", nil, func(tc *bt.Context, _ *bt.Ports) (bt.Job, error) {
				return openDoorJob(tc, w), nil
			})
		},
	}); err != nil {
		return err
	}
	return planner.Add(pabt.ActionSpec{
		Name:          "EnterRoom",
		Preconditions: map[string]string{KeyDoor: "value == 'open'"},
		Effects:       map[string]any{KeyInside: true},
		NewNode: func() bt.Node {
			return bt.NewAction("EnterRoom", nil, bt.ActionFunc(func(tc *bt.Context, _ *bt.Ports) (bt.Status, error) {
				return enterRoom(tc, w), nil
			}))
		},
	})
}

func openDoorJob(tc *bt.Context, w *World) bt.Job {
	bb := tc.Blackboard()
	return bt.GoJob(tc.Context(), func(ctx context.Context) (bool, error) {
		if err := w.Open(ctx); err != nil {
			return false, nil
		}
		bb.Set(KeyDoor, "open")
		return true, nil
	})
}

func enterRoom(tc *bt.Context, w *World) bt.Status {
	if err := w.Enter(); err != nil {
		tc.Logger().Debug("cannot enter room", "error", err)
		return bt.Failure
	}
	tc.Blackboard().Set(KeyInside, true)
	return bt.Success
}
