package bt

import (
	"context"
	"testing"
	"time"

	"github.com/joeycumines/behavior-engine/internal/blackboard"
	"github.com/stretchr/testify/require"
)

func TestStatusRewritingDecorators(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		wrap func(Node) Node
		in   Status
		want Status
	}{
		{"inverter success", func(n Node) Node { return NewInverter("inv", n) }, Success, Failure},
		{"inverter failure", func(n Node) Node { return NewInverter("inv", n) }, Failure, Success},
		{"inverter running", func(n Node) Node { return NewInverter("inv", n) }, Running, Running},
		{"force success on failure", func(n Node) Node { return NewForceSuccess("fs", n) }, Failure, Success},
		{"force success running", func(n Node) Node { return NewForceSuccess("fs", n) }, Running, Running},
		{"force failure on success", func(n Node) Node { return NewForceFailure("ff", n) }, Success, Failure},
		{"force failure running", func(n Node) Node { return NewForceFailure("ff", n) }, Running, Running},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			n := tc.wrap(newStub("child", tc.in))
			status, err := n.Tick(testContext())
			require.NoError(t, err)
			require.Equal(t, tc.want, status)
			require.Equal(t, tc.want, n.Status())
		})
	}
}

func TestRetry_FailsTwiceThenSucceeds(t *testing.T) {
	t.Parallel()

	child := newStub("flaky", Failure, Failure, Success)
	retry := NewRetry("retry", 2, child)

	status, err := retry.Tick(testContext())
	require.NoError(t, err)
	require.Equal(t, Success, status)
	require.Equal(t, 3, child.ticks)
}

func TestRetry_Exhausted(t *testing.T) {
	t.Parallel()

	child := newStub("broken", Failure)
	retry := NewRetry("retry", 2, child)
	tc := testContext()

	status, err := retry.Tick(tc)
	require.NoError(t, err)
	require.Equal(t, Failure, status)
	require.Equal(t, 3, child.ticks)

	// the counter resets for the next activation
	status, err = retry.Tick(tc)
	require.NoError(t, err)
	require.Equal(t, Failure, status)
	require.Equal(t, 6, child.ticks)
}

func TestRetry_ResumesRunningAttempt(t *testing.T) {
	t.Parallel()

	child := newStub("slow", Failure, Running, Running, Failure, Success)
	retry := NewRetry("retry", 2, child)
	tc := testContext()

	require.Equal(t, []Status{Running, Running, Success}, tickN(t, retry, tc, 3))
	require.Equal(t, 5, child.ticks)
}

func TestRetry_HaltResetsAttempts(t *testing.T) {
	t.Parallel()

	child := newStub("slow", Failure, Failure, Running, Failure)
	retry := NewRetry("retry", 2, child)
	tc := testContext()

	status, _ := retry.Tick(tc)
	require.Equal(t, Running, status)
	require.NoError(t, retry.Halt())
	require.Equal(t, 1, child.halts)

	// two fresh retries are available again: F (attempt 0), F, F
	status, _ = retry.Tick(tc)
	require.Equal(t, Failure, status)
	require.Equal(t, 6, child.ticks)
}

func TestRetry_Unbounded(t *testing.T) {
	t.Parallel()

	child := newStub("eventually", Failure, Failure, Failure, Success)
	retry := NewRetry("retry", -1, child)

	require.Equal(t, []Status{Running, Running, Running, Success}, tickN(t, retry, testContext(), 4))
	require.Equal(t, 4, child.ticks)
}

func TestRepeat(t *testing.T) {
	t.Parallel()

	t.Run("completes cycles within a tick", func(t *testing.T) {
		t.Parallel()
		child := newStub("child", Success)
		rep := NewRepeat("rep", 3, child)
		status, err := rep.Tick(testContext())
		require.NoError(t, err)
		require.Equal(t, Success, status)
		require.Equal(t, 3, child.ticks)
	})

	t.Run("failure short-circuits", func(t *testing.T) {
		t.Parallel()
		child := newStub("child", Success, Failure)
		rep := NewRepeat("rep", 3, child)
		status, err := rep.Tick(testContext())
		require.NoError(t, err)
		require.Equal(t, Failure, status)
		require.Equal(t, 2, child.ticks)
	})

	t.Run("running resumes count", func(t *testing.T) {
		t.Parallel()
		child := newStub("child", Success, Running, Success)
		rep := NewRepeat("rep", 3, child)
		require.Equal(t, []Status{Running, Success}, tickN(t, rep, testContext(), 2))
		require.Equal(t, 4, child.ticks)
	})

	t.Run("unbounded yields between completions", func(t *testing.T) {
		t.Parallel()
		child := newStub("child", Success, Success, Failure)
		rep := NewRepeat("rep", -1, child)
		require.Equal(t, []Status{Running, Running, Failure}, tickN(t, rep, testContext(), 3))
	})
}

func TestTimeout_Ticks(t *testing.T) {
	t.Parallel()

	child := newStub("slow", Running)
	to, err := NewTickTimeout("timeout", 2, child)
	require.NoError(t, err)
	tc := testContext()

	require.Equal(t, []Status{Running, Running, Failure}, tickN(t, to, tc, 3))
	require.Equal(t, 1, child.halts)
	require.Equal(t, Idle, child.Status())

	// a new streak starts after the timeout
	require.Equal(t, []Status{Running, Running}, tickN(t, to, tc, 2))
}

func TestTimeout_ChildCompletesInTime(t *testing.T) {
	t.Parallel()

	child := newStub("slow", Running, Running, Success)
	to, err := NewTickTimeout("timeout", 2, child)
	require.NoError(t, err)

	require.Equal(t, []Status{Running, Running, Success}, tickN(t, to, testContext(), 3))
	require.Zero(t, child.halts)
}

func TestTimeout_Duration(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	tc := NewContext(context.Background(), blackboard.New(), WithClock(clock))

	child := newStub("slow", Running)
	to, err := NewDurationTimeout("timeout", time.Second, child)
	require.NoError(t, err)
	require.Equal(t, "1s", to.Budget())

	status, _ := to.Tick(tc)
	require.Equal(t, Running, status)

	now = now.Add(time.Second)
	status, _ = to.Tick(tc)
	require.Equal(t, Running, status)

	now = now.Add(time.Millisecond)
	status, _ = to.Tick(tc)
	require.Equal(t, Failure, status)
	require.Equal(t, 1, child.halts)
}

func TestTimeout_InvalidBudget(t *testing.T) {
	t.Parallel()

	_, err := NewTickTimeout("timeout", 0, newStub("x", Success))
	require.Error(t, err)
	_, err = NewDurationTimeout("timeout", 0, newStub("x", Success))
	require.Error(t, err)
}

func TestSubTree_ScopesBlackboard(t *testing.T) {
	t.Parallel()

	root := blackboard.New()
	root.Set("k", "parent")
	root.Set("pose", "north")
	scope := root.NewScope(map[string]string{"target": "pose"}, false)

	var seen any
	leaf := NewAction("write", nil, ActionFunc(func(tc *Context, _ *Ports) (Status, error) {
		seen = tc.Blackboard().Get("target")
		tc.Blackboard().Set("k", "child")
		tc.Blackboard().Set("target", "south")
		return Success, nil
	}))
	sub := NewSubTree("sub", "Approach", scope, leaf)

	status, err := sub.Tick(NewContext(context.Background(), root))
	require.NoError(t, err)
	require.Equal(t, Success, status)
	require.Equal(t, "north", seen)
	require.Equal(t, "parent", root.Get("k"))
	require.Equal(t, "child", scope.Get("k"))
	require.Equal(t, "south", root.Get("pose"))
	require.Equal(t, "Approach", sub.ID())
}
