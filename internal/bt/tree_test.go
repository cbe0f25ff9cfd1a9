package bt

import (
	"context"
	"errors"
	"testing"

	"github.com/joeycumines/behavior-engine/internal/blackboard"
	gobt "github.com/joeycumines/go-behaviortree"
	"github.com/stretchr/testify/require"
)

func TestTree_PathsAndWalk(t *testing.T) {
	t.Parallel()

	door := newStub("DoorOpen", Failure)
	open := newStub("OpenDoor", Success)
	enter := newStub("EnterRoom", Success)
	fb := NewFallback("Fallback", door, open)
	root := NewSequence("Sequence", fb, enter)
	tree := NewTree(root, nil, WithTreeName("Main"))

	var paths []string
	var depths []int
	tree.Walk(func(_ Node, path string, depth int) bool {
		paths = append(paths, path)
		depths = append(depths, depth)
		return true
	})
	require.Equal(t, []string{
		"Main/Sequence",
		"Main/Sequence/Fallback[0]",
		"Main/Sequence/Fallback[0]/DoorOpen[0]",
		"Main/Sequence/Fallback[0]/OpenDoor[1]",
		"Main/Sequence/EnterRoom[1]",
	}, paths)
	require.Equal(t, []int{0, 1, 2, 2, 1}, depths)
	require.Len(t, tree.Nodes(), 5)
	require.Equal(t, "Main/Sequence/EnterRoom[1]", tree.PathOf(enter))

	var visited int
	tree.Walk(func(Node, string, int) bool {
		visited++
		return visited < 2
	})
	require.Equal(t, 2, visited)
}

func TestTree_TickOrder(t *testing.T) {
	t.Parallel()

	var trace []string
	door := newStub("DoorOpen", Failure)
	open := newStub("OpenDoor", Success)
	enter := newStub("EnterRoom", Success)
	for _, s := range []*stub{door, open, enter} {
		s.trace = &trace
	}
	tree := NewTree(NewSequence("Sequence", NewFallback("Fallback", door, open), enter), nil)

	status, err := tree.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, Success, status)
	require.Equal(t, []string{"DoorOpen", "OpenDoor", "EnterRoom"}, trace)
	require.Equal(t, uint64(1), tree.TickCount())
}

func TestTree_FaultCarriesPath(t *testing.T) {
	t.Parallel()

	bad := NewAction("ReadGoal", NewPorts(
		[]PortSpec{InputPort[int]("goal", "")},
		map[string]Binding{"goal": KeyBinding("goal")},
	), ActionFunc(func(tc *Context, p *Ports) (Status, error) {
		_, err := GetInput[int](tc, p, "goal")
		return Success, err
	}))
	tree := NewTree(NewSequence("Sequence", bad), nil, WithTreeName("Main"))

	_, err := tree.Tick(context.Background())
	require.ErrorIs(t, err, ErrFault)
	require.ErrorIs(t, err, blackboard.ErrKeyNotFound)
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, "Main/Sequence/ReadGoal[0]", fault.Path)
}

func TestTree_HaltAllHaltsEachRunningNodeOnce(t *testing.T) {
	t.Parallel()

	a := newStub("a", Running)
	b := newStub("b", Running)
	par, err := NewParallel("par", 2, 1, a, b)
	require.NoError(t, err)
	tree := NewTree(par, nil)

	status, err := tree.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, Running, status)
	require.Equal(t, []string{"par", "par/a[0]", "par/b[1]"}, tree.Running())

	require.NoError(t, tree.HaltAll())
	require.Equal(t, 1, a.halts)
	require.Equal(t, 1, b.halts)
	require.Empty(t, tree.Running())

	require.NoError(t, tree.HaltAll())
	require.Equal(t, 1, a.halts)
}

func TestTree_HaltAllAfterFault(t *testing.T) {
	t.Parallel()

	running := newStub("running", Running)
	bad := newStub("bad")
	bad.err = errors.New("boom")
	par, err := NewParallel("par", 1, 1, running, bad)
	require.NoError(t, err)
	tree := NewTree(par, nil)

	_, err = tree.Tick(context.Background())
	require.ErrorIs(t, err, ErrFault)

	require.NoError(t, tree.HaltAll())
	require.Equal(t, 1, running.halts)
	require.Equal(t, 1, bad.halts)
	require.Empty(t, tree.Running())
}

func TestTree_HaltErrorIsAttributed(t *testing.T) {
	t.Parallel()

	stuck := newStub("stuck", Running)
	stuck.haltErr = errors.New("actuator did not stop")
	tree := NewTree(NewSequence("Sequence", stuck), nil, WithTreeName("Main"))

	_, err := tree.Tick(context.Background())
	require.NoError(t, err)

	err = tree.HaltAll()
	require.ErrorIs(t, err, ErrFault)
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, "Main/Sequence/stuck[0]", fault.Path)
}

func TestTree_RunningConditionIsFault(t *testing.T) {
	t.Parallel()

	check := newStub("DoorOpen", Running)
	check.kind = KindCondition
	tree := NewTree(NewSequence("Sequence", check, newStub("EnterRoom", Success)), nil, WithTreeName("Main"))

	status, err := tree.Tick(context.Background())
	require.Equal(t, Failure, status)
	require.ErrorIs(t, err, ErrFault)
	require.ErrorIs(t, err, ErrConditionRunning)
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, "Main/Sequence/DoorOpen[0]", fault.Path)
	require.Equal(t, 1, check.halts)
	require.Equal(t, Idle, check.Status())
	require.NotContains(t, tree.Running(), "Main/Sequence/DoorOpen[0]")
}

func TestGoBTAdapters(t *testing.T) {
	t.Parallel()

	var ticks int
	native := gobt.New(func([]gobt.Node) (gobt.Status, error) {
		ticks++
		if ticks < 2 {
			return gobt.Running, nil
		}
		return gobt.Success, nil
	})
	wrapped := FromGoBT("native", native)
	tc := testContext()
	require.Equal(t, []Status{Running, Success}, tickN(t, wrapped, tc, 2))

	back := ToGoBT(newStub("engine", Failure), func() *Context { return tc })
	status, err := back.Tick()
	require.NoError(t, err)
	require.Equal(t, gobt.Failure, status)

	_, err = ToGoBTStatus(Idle)
	require.ErrorIs(t, err, ErrInvalidStatus)
	s, err := FromGoBTStatus(gobt.Running)
	require.NoError(t, err)
	require.Equal(t, Running, s)
}
