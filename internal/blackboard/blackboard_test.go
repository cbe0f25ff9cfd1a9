package blackboard

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/require"
)

func TestBlackboard_BasicOperations(t *testing.T) {
	t.Parallel()

	bb := New()

	bb.Set("key1", "value1")
	require.Equal(t, "value1", bb.Get("key1"))
	require.Nil(t, bb.Get("nonexistent"))

	require.True(t, bb.Has("key1"))
	require.False(t, bb.Has("nonexistent"))

	bb.Delete("key1")
	require.False(t, bb.Has("key1"))

	bb.Set("a", 1)
	bb.Set("b", 2)
	require.Equal(t, []string{"a", "b"}, bb.Keys())
	require.Equal(t, 2, bb.Len())

	bb.Clear()
	require.Zero(t, bb.Len())
	require.Empty(t, bb.Keys())
}

func TestBlackboard_ZeroValue(t *testing.T) {
	t.Parallel()

	var bb Blackboard
	require.Nil(t, bb.Snapshot())
	require.Nil(t, bb.Keys())
	bb.Delete("x")
	bb.Set("x", 1)
	require.Equal(t, 1, bb.Get("x"))
}

func TestBlackboard_LookupMissing(t *testing.T) {
	t.Parallel()

	bb := New()
	v, err := bb.Lookup("battery")
	require.Nil(t, v)
	require.ErrorIs(t, err, ErrKeyNotFound)
	require.Contains(t, err.Error(), `"battery"`)
}

func TestBlackboard_Shadowing(t *testing.T) {
	t.Parallel()

	parent := New()
	parent.Set("x", 1)

	child := parent.NewScope(nil, false)
	require.Equal(t, 1, child.Get("x"), "reads fall through to the parent")

	child.Set("x", 2)
	require.Equal(t, 2, child.Get("x"))
	require.Equal(t, 1, parent.Get("x"), "local writes must not leak to the parent")

	child.Delete("x")
	require.Equal(t, 1, child.Get("x"))
}

func TestBlackboard_Remap(t *testing.T) {
	t.Parallel()

	parent := New()
	parent.Set("door_pose", "north")

	child := parent.NewScope(map[string]string{"target": "door_pose"}, false)
	require.Equal(t, "north", child.Get("target"))

	child.Set("target", "south")
	require.Equal(t, "south", parent.Get("door_pose"))
	require.Empty(t, child.Keys())

	scope, key := child.Resolve("target")
	require.Same(t, parent, scope)
	require.Equal(t, "door_pose", key)
}

func TestBlackboard_AutoRemap(t *testing.T) {
	t.Parallel()

	root := New()
	mid := root.NewScope(nil, true)
	leaf := mid.NewScope(map[string]string{"goal": "target"}, false)

	leaf.Set("goal", 7)
	require.Equal(t, 7, root.Get("target"))
	require.Empty(t, mid.Keys())

	mid.Set("shared", true)
	require.Equal(t, true, root.Get("shared"))
}

func TestBlackboard_Visible(t *testing.T) {
	t.Parallel()

	root := New()
	root.Set("a", 1)
	root.Set("b", 1)
	root.Set("pose", "p")

	child := root.NewScope(map[string]string{"target": "pose"}, false)
	child.Set("b", 2)
	child.Set("c", 3)

	require.Equal(t, map[string]any{
		"a":      1,
		"b":      2,
		"c":      3,
		"pose":   "p",
		"target": "p",
	}, child.Visible())
}

func TestGetAs(t *testing.T) {
	t.Parallel()

	bb := New()
	bb.Set("int", 42)
	bb.Set("float", 2.5)
	bb.Set("str", "hello")

	i, err := GetAs[int](bb, "int")
	require.NoError(t, err)
	require.Equal(t, 42, i)

	f, err := GetAs[float64](bb, "int")
	require.NoError(t, err)
	require.Equal(t, 42.0, f)

	i64, err := GetAs[int64](bb, "float")
	require.NoError(t, err)
	require.Equal(t, int64(2), i64)

	_, err = GetAs[int](bb, "str")
	require.ErrorIs(t, err, ErrTypeMismatch)

	_, err = GetAs[string](bb, "missing")
	require.ErrorIs(t, err, ErrKeyNotFound)

	s, err := GetAs[any](bb, "str")
	require.NoError(t, err)
	require.Equal(t, "hello", s)
}

func TestBlackboard_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	root := New()
	child := root.NewScope(map[string]string{"shared": "shared"}, false)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				key := fmt.Sprintf("k%d", i)
				child.Set(key, j)
				child.Set("shared", j)
				_ = child.Get(key)
				_ = root.Visible()
			}
		}()
	}
	wg.Wait()

	require.Len(t, child.Keys(), 8)
	require.True(t, root.Has("shared"))
}

func TestBlackboard_ExposeToJS(t *testing.T) {
	t.Parallel()

	root := New()
	root.Set("count", 1)
	bb := root.NewScope(nil, false)

	vm := goja.New()
	require.NoError(t, vm.Set("bb", bb.ExposeToJS(vm)))

	v, err := vm.RunString(`bb.set("count", bb.get("count") + 1); bb.get("count")`)
	require.NoError(t, err)
	require.EqualValues(t, 2, v.Export())
	require.Equal(t, 1, root.Get("count"))

	v, err = vm.RunString(`bb.has("count") && !bb.has("nope")`)
	require.NoError(t, err)
	require.Equal(t, true, v.Export())

	v, err = vm.RunString(`bb.keys().join(",")`)
	require.NoError(t, err)
	require.Equal(t, "count", v.Export())

	_, err = vm.RunString(`bb.delete("count")`)
	require.NoError(t, err)
	require.Equal(t, 1, bb.Get("count"))
}

func TestBlackboard_SetLocalPinsKeyInAutoRemappedScope(t *testing.T) {
	t.Parallel()

	root := New()
	root.Set("speed", 1)
	child := root.NewScope(nil, true)
	child.SetLocal("speed", 5)

	require.Equal(t, 5, child.Get("speed"))
	child.Set("speed", 6)
	require.Equal(t, 6, child.Get("speed"))
	require.Equal(t, 1, root.Get("speed"))

	child.Set("other", true)
	require.Equal(t, true, root.Get("other"))
}
