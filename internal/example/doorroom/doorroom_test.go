package doorroom

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/joeycumines/behavior-engine/internal/bt"
	"github.com/joeycumines/behavior-engine/internal/builder"
	"github.com/joeycumines/behavior-engine/internal/builtin/pabt"
	"github.com/joeycumines/behavior-engine/internal/scheduler"
	"github.com/joeycumines/behavior-engine/internal/testutil"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, w *World) *builder.Registry {
	t.Helper()
	reg := builder.NewRegistry()
	require.NoError(t, Register(reg, w))
	return reg
}

// actions drops the door checks, which repeat on every tick.
func actions(events []string) []string {
	return slices.DeleteFunc(slices.Clone(events), func(e string) bool { return e == EventCheckDoor })
}

func runToCompletion(t *testing.T, tree *bt.Tree) scheduler.Outcome {
	t.Helper()
	s := scheduler.New(tree, scheduler.WithInterval(time.Millisecond))
	require.NoError(t, s.Start(t.Context()))
	t.Cleanup(s.Cancel)
	testutil.WaitDone(t, s.Done(), "run to complete")
	outcome, err := s.Wait()
	require.NoError(t, err)
	return outcome
}

func TestTree_OpensDoorThenEnters(t *testing.T) {
	t.Parallel()

	w := NewWorld(20 * time.Millisecond)
	tree, err := builder.BuildBytes([]byte(TreeXML), builder.FormatXML, newRegistry(t, w),
		builder.WithInitialValues(w.Values()))
	require.NoError(t, err)

	require.Equal(t, scheduler.OutcomeSuccess, runToCompletion(t, tree))
	require.True(t, w.Inside())
	require.Equal(t, true, tree.Blackboard().Get(KeyInside))
	require.Equal(t, "open", tree.Blackboard().Get(KeyDoor))

	events := w.Events()
	require.Equal(t, EventCheckDoor, events[0])
	require.Equal(t, []string{EventOpenStart, EventOpenDone, EventEnter}, actions(events))
}

func TestTree_DoorAlreadyOpen(t *testing.T) {
	t.Parallel()

	w := NewWorld(0)
	require.NoError(t, w.Open(context.Background()))
	tree, err := builder.BuildBytes([]byte(TreeXML), builder.FormatXML, newRegistry(t, w),
		builder.WithInitialValues(w.Values()))
	require.NoError(t, err)

	require.Equal(t, scheduler.OutcomeSuccess, runToCompletion(t, tree))
	require.Equal(t, []string{EventOpenStart, EventOpenDone, EventCheckDoor, EventEnter}, w.Events())
}

func TestTree_CancelWhileOpening(t *testing.T) {
	t.Parallel()

	w := NewWorld(time.Hour)
	tree, err := builder.BuildBytes([]byte(TreeXML), builder.FormatXML, newRegistry(t, w))
	require.NoError(t, err)

	s := scheduler.New(tree, scheduler.WithInterval(time.Millisecond))
	require.NoError(t, s.Start(t.Context()))
	require.NoError(t, testutil.Poll(t.Context(), func() bool {
		return slices.Contains(w.Events(), EventOpenStart)
	}, testutil.DefaultTimeout, time.Millisecond))
	s.Cancel()

	outcome, err := s.Wait()
	require.NoError(t, err)
	require.Equal(t, scheduler.OutcomeCancelled, outcome)
	require.Equal(t, []string{EventOpenStart, EventOpenCancel}, actions(w.Events()))
	require.False(t, w.DoorOpen())
	require.Empty(t, tree.Running())
}

func TestEnterRoom_FailsWhileClosed(t *testing.T) {
	t.Parallel()

	w := NewWorld(0)
	tree, err := builder.BuildBytes([]byte(`<root main_tree_to_execute="Main"><BehaviorTree ID="Main"><EnterRoom/></BehaviorTree></root>`),
		builder.FormatXML, newRegistry(t, w))
	require.NoError(t, err)

	s := scheduler.New(tree, scheduler.WithTrigger())
	require.NoError(t, s.Start(t.Context()))
	status, err := s.Trigger()
	require.NoError(t, err)
	require.Equal(t, bt.Failure, status)

	outcome, err := s.Wait()
	require.NoError(t, err)
	require.Equal(t, scheduler.OutcomeFailure, outcome)
	require.Equal(t, []string{EventEnterDenied}, w.Events())
	require.False(t, tree.Blackboard().Has(KeyInside))
}

func TestPlan_ReachesGoal(t *testing.T) {
	t.Parallel()

	w := NewWorld(10 * time.Millisecond)
	planner := pabt.NewPlanner(nil)
	require.NoError(t, RegisterPlanning(planner, w))
	reg := builder.NewRegistry()
	require.NoError(t, pabt.Register(reg, planner))

	tree, err := builder.BuildBytes([]byte(PlanTreeXML), builder.FormatXML, reg,
		builder.WithInitialValues(w.Values()))
	require.NoError(t, err)

	require.Equal(t, scheduler.OutcomeSuccess, runToCompletion(t, tree))
	require.Equal(t, []string{EventOpenStart, EventOpenDone, EventEnter}, w.Events())
	require.True(t, w.Inside())
	require.Equal(t, true, tree.Blackboard().Get(KeyInside))
}

func TestRegisterPlanning_Duplicate(t *testing.T) {
	t.Parallel()

	w := NewWorld(0)
	planner := pabt.NewPlanner(nil)
	require.NoError(t, RegisterPlanning(planner, w))
	require.ErrorContains(t, RegisterPlanning(planner, w), "already registered")
	require.Equal(t, []string{"EnterRoom", "OpenDoor"}, planner.Names())
}
