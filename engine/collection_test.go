package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dirtycheck/value"
)

func TestCollection_CounterStartsAtRegistration(t *testing.T) {
	e := newTestEngine(t)
	root := NewScope("root")
	root.Data.Set("list", value.NewArray())

	root.Watch(e, "list", nil, false)
	require.Equal(t, 1, root.Watchers().Len())
	assert.Equal(t, value.Number(1), root.Watchers().At(0).Last())
}

func TestCollection_ArrayChanges(t *testing.T) {
	e := newTestEngine(t)
	root := NewScope("root")
	list := value.NewArray(value.Number(1))
	root.Data.Set("list", list)

	var c calls
	root.Watch(e, "list", c.listener("list"), false)

	t.Run("unchanged", func(t *testing.T) {
		require.NoError(t, e.Digest(root))
		assert.Empty(t, c.list)
	})

	t.Run("push", func(t *testing.T) {
		list.Push(value.Number(2))
		require.NoError(t, e.Digest(root))
		require.Len(t, c.list, 1)
		assert.Same(t, list, c.list[0].newV)
		old := c.list[0].oldV.(*value.Array)
		assert.NotSame(t, list, old)
		assert.Equal(t, 1, old.Len())
	})

	t.Run("replace item", func(t *testing.T) {
		list.SetAt(0, value.String("x"))
		require.NoError(t, e.Digest(root))
		require.Len(t, c.list, 2)
		old := c.list[1].oldV.(*value.Array)
		assert.Equal(t, 2, old.Len(), "old is the snapshot taken at the previous change")
		assert.Equal(t, value.Number(1), old.At(0))
	})

	t.Run("truncate", func(t *testing.T) {
		list.Truncate(1)
		require.NoError(t, e.Digest(root))
		assert.Len(t, c.list, 3)
	})

	t.Run("nested mutation is not a change", func(t *testing.T) {
		inner := value.NewObject()
		list.SetAt(0, inner)
		require.NoError(t, e.Digest(root))
		require.Len(t, c.list, 4)

		inner.Set("deep", value.Bool(true))
		require.NoError(t, e.Digest(root))
		assert.Len(t, c.list, 4)
	})
}

func TestCollection_NaNItemsAreStable(t *testing.T) {
	e := newTestEngine(t)
	root := NewScope("root")
	list := value.NewArray(value.NaN())
	root.Data.Set("list", list)

	var c calls
	root.Watch(e, "list", c.listener("list"), false)

	list.SetAt(0, value.NaN())
	require.NoError(t, e.Digest(root))
	assert.Empty(t, c.list)
}

func TestCollection_ObjectChanges(t *testing.T) {
	e := newTestEngine(t)
	root := NewScope("root")
	obj := value.NewObject(value.P("a", value.Number(1)))
	root.Data.Set("obj", obj)

	var c calls
	root.Watch(e, "obj", c.listener("obj"), false)

	obj.Set("b", value.Number(2))
	require.NoError(t, e.Digest(root))
	require.Len(t, c.list, 1)
	assert.Equal(t, []string{"a"}, c.list[0].oldV.(*value.Object).Keys())

	obj.Delete("a")
	require.NoError(t, e.Digest(root))
	require.Len(t, c.list, 2)
	assert.Equal(t, []string{"a", "b"}, c.list[1].oldV.(*value.Object).Keys())

	obj.Set("b", value.Number(3))
	require.NoError(t, e.Digest(root))
	require.Len(t, c.list, 3)

	// Removing and adding the same number of keys in one step is still seen.
	obj.Delete("b")
	obj.Set("c", value.Number(1))
	require.NoError(t, e.Digest(root))
	require.Len(t, c.list, 4)

	require.NoError(t, e.Digest(root))
	assert.Len(t, c.list, 4)
}

func TestCollection_InheritedKeysIgnored(t *testing.T) {
	e := newTestEngine(t)
	root := NewScope("root")
	proto := value.NewObject(value.P("shared", value.Number(1)))
	obj := value.NewObjectWithProto(proto)
	obj.Set("own", value.Number(1))
	root.Data.Set("obj", obj)

	var c calls
	e.WatchCollection(root.Watchers(), root.Data, "obj", c.listener("obj"))

	proto.Set("shared", value.Number(2))
	require.NoError(t, e.Digest(root))
	assert.Empty(t, c.list)
}

func TestCollection_Transitions(t *testing.T) {
	e := newTestEngine(t)
	root := NewScope("root")
	arr := value.NewArray(value.Number(1))
	root.Data.Set("v", arr)

	var c calls
	root.Watch(e, "v", c.listener("v"), false)

	t.Run("array to object", func(t *testing.T) {
		root.Data.Set("v", value.NewObject(value.P("0", value.Number(1))))
		require.NoError(t, e.Digest(root))
		require.Len(t, c.list, 1)
		assert.True(t, value.IsArray(c.list[0].oldV))
	})

	t.Run("object to primitive", func(t *testing.T) {
		root.Data.Set("v", value.Number(3))
		require.NoError(t, e.Digest(root))
		require.Len(t, c.list, 2)
		assert.Equal(t, value.Number(3), c.list[1].newV)
		assert.True(t, value.IsPlainObject(c.list[1].oldV))
	})

	t.Run("same primitive", func(t *testing.T) {
		root.Data.Set("v", value.Number(3))
		require.NoError(t, e.Digest(root))
		assert.Len(t, c.list, 2)
	})

	t.Run("primitive NaN is stable", func(t *testing.T) {
		root.Data.Set("v", value.NaN())
		require.NoError(t, e.Digest(root))
		require.Len(t, c.list, 3)

		root.Data.Set("v", value.NaN())
		require.NoError(t, e.Digest(root))
		assert.Len(t, c.list, 3)
	})

	t.Run("primitive to array", func(t *testing.T) {
		root.Data.Set("v", value.NewArray())
		require.NoError(t, e.Digest(root))
		require.Len(t, c.list, 4)
		assert.True(t, value.IsNaN(c.list[3].oldV))
	})

	t.Run("array-like object", func(t *testing.T) {
		like := value.NewObject(value.P("length", value.Number(1)), value.P("0", value.String("a")))
		root.Data.Set("v", like)
		require.NoError(t, e.Digest(root))
		require.Len(t, c.list, 5)
		old := c.list[4].oldV.(*value.Array)
		assert.Equal(t, 0, old.Len())
	})
}

func TestCollection_UndefinedValue(t *testing.T) {
	e := newTestEngine(t)
	root := NewScope("root")
	root.Data.Set("list", value.NewArray())

	var c calls
	root.Watch(e, "list", c.listener("list"), false)

	root.Data.Delete("list")
	require.NoError(t, e.Digest(root))
	require.Len(t, c.list, 1)
	assert.Equal(t, value.Undefined{}, c.list[0].newV)

	require.NoError(t, e.Digest(root))
	assert.Len(t, c.list, 1)
}
