package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	tag      string
	cloned   *bool
	deepSeen bool
}

func (n *fakeNode) Kind() Kind { return KindHost }

func (n *fakeNode) CloneNode(deep bool) Value {
	if n.cloned != nil {
		*n.cloned = true
	}
	return &fakeNode{tag: n.tag, deepSeen: deep}
}

func TestCopyPrimitivesReturnedAsIs(t *testing.T) {
	for _, v := range []Value{Undefined{}, Null{}, Bool(true), Number(4), String("s")} {
		got, err := Copy(v, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	f := NewFunc("f", nil)
	got, err := Copy(f, nil, 0)
	require.NoError(t, err)
	assert.Same(t, f, got)
}

func TestCopyDeepIndependence(t *testing.T) {
	src := NewObject(
		P("list", NewArray(Number(1), NewObject(P("x", String("y"))))),
		P("when", NewDate(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))),
	)

	got, err := Copy(src, nil, 0)
	require.NoError(t, err)
	cp := got.(*Object)

	assert.True(t, Equals(src, cp))
	assert.NotSame(t, src.Get("list"), cp.Get("list"))
	assert.NotSame(t, src.Get("when"), cp.Get("when"))

	cp.Get("list").(*Array).Push(Number(3))
	cp.Get("when").(*Date).SetMillis(0)
	assert.Equal(t, 2, src.Get("list").(*Array).Len())
	assert.NotEqual(t, float64(0), src.Get("when").(*Date).Millis())
}

func TestCopyPreservesCyclesAndSharing(t *testing.T) {
	shared := NewArray(Number(1))
	src := NewObject(P("a", shared), P("b", shared))
	src.Set("self", src)

	got, err := Copy(src, nil, 0)
	require.NoError(t, err)
	cp := got.(*Object)

	assert.Same(t, cp, cp.Get("self"))
	assert.Same(t, cp.Get("a"), cp.Get("b"))
	assert.NotSame(t, shared, cp.Get("a"))
}

func TestCopyPreservesPrototype(t *testing.T) {
	proto := NewObject(P("greet", String("hi")))
	src := NewObjectWithProto(proto)
	src.Set("own", Number(1))

	got, err := Copy(src, nil, 0)
	require.NoError(t, err)
	cp := got.(*Object)
	assert.Same(t, proto, cp.Proto())
	assert.Equal(t, []string{"own"}, cp.Keys())
	assert.Equal(t, String("hi"), cp.Get("greet"))

	blank := NewBlankObject()
	blank.Set("k", Number(1))
	got, err = Copy(blank, nil, 0)
	require.NoError(t, err)
	assert.True(t, IsBlankObject(got))
}

func TestCopySpecialKinds(t *testing.T) {
	t.Run("regexp keeps lastIndex", func(t *testing.T) {
		re := NewRegExp("a", "g")
		re.LastIndex = 3
		got, err := Copy(re, nil, 0)
		require.NoError(t, err)
		cp := got.(*RegExp)
		assert.NotSame(t, re, cp)
		assert.Equal(t, "/a/g", cp.String())
		assert.Equal(t, 3, cp.LastIndex)
	})

	t.Run("typed arrays sharing a buffer share the cloned buffer", func(t *testing.T) {
		buf := NewArrayBuffer(8)
		lo := NewTypedArrayView(Uint8, buf, 0, 4)
		hi := NewTypedArrayView(Uint8, buf, 4, 4)
		lo.SetAt(0, 7)
		src := NewArray(lo, hi)

		got, err := Copy(src, nil, 0)
		require.NoError(t, err)
		cp := got.(*Array)
		cl, ch := cp.At(0).(*TypedArray), cp.At(1).(*TypedArray)
		assert.Same(t, cl.Buffer, ch.Buffer)
		assert.NotSame(t, buf, cl.Buffer)
		assert.Equal(t, 4, ch.ByteOffset)
		assert.Equal(t, Number(7), cl.At(0))

		cl.SetAt(0, 9)
		assert.Equal(t, Number(7), lo.At(0))
	})

	t.Run("boxed blob buffer", func(t *testing.T) {
		for _, v := range []Value{
			NewBoxed(String("s")),
			NewBlob([]byte("abc"), "text/plain"),
			&ArrayBuffer{Data: []byte{1, 2}},
		} {
			got, err := Copy(v, nil, 0)
			require.NoError(t, err)
			assert.NotSame(t, v, got)
			assert.True(t, Equals(v, got), v.Kind().String())
		}
	})

	t.Run("host node uses deep clone", func(t *testing.T) {
		cloned := false
		n := &fakeNode{tag: "div", cloned: &cloned}
		got, err := Copy(NewArray(n), nil, 0)
		require.NoError(t, err)
		assert.True(t, cloned)
		cp := got.(*Array).At(0).(*fakeNode)
		assert.Equal(t, "div", cp.tag)
		assert.True(t, cp.deepSeen)
	})
}

func TestCopyMaxDepth(t *testing.T) {
	src := NewObject(
		P("a", NewObject(P("b", NewObject(P("c", Number(1)))))),
		P("n", Number(2)),
	)

	got, err := Copy(src, nil, 2)
	require.NoError(t, err)
	cp := got.(*Object)
	assert.Equal(t, Number(2), cp.Get("n"))
	inner := cp.Get("a").(*Object)
	assert.Equal(t, Truncated, inner.Get("b"))

	got, err = Copy(src, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, Truncated, got.(*Object).Get("a"))

	got, err = Copy(src, nil, 0)
	require.NoError(t, err)
	assert.True(t, Equals(src, got))
}

func TestCopyIntoDestination(t *testing.T) {
	t.Run("object keeps hash key", func(t *testing.T) {
		dst := NewObject(P("old", Number(1)), P("$$hashKey", String("object:7")))
		src := NewObject(P("a", Number(1)), P("$$hashKey", String("object:1")))

		got, err := Copy(src, dst, 0)
		require.NoError(t, err)
		assert.Same(t, dst, got)
		assert.False(t, dst.HasOwn("old"))
		assert.Equal(t, Number(1), dst.Get("a"))
		assert.Equal(t, String("object:7"), dst.Get("$$hashKey"))
	})

	t.Run("object without hash key drops source hash key", func(t *testing.T) {
		dst := NewObject()
		src := NewObject(P("$$hashKey", String("object:1")))
		_, err := Copy(src, dst, 0)
		require.NoError(t, err)
		assert.False(t, dst.HasOwn("$$hashKey"))
	})

	t.Run("array emptied then filled", func(t *testing.T) {
		dst := NewArray(Number(9), Number(9), Number(9))
		got, err := Copy(NewArray(Number(1)), dst, 0)
		require.NoError(t, err)
		assert.Same(t, dst, got)
		assert.Equal(t, 1, dst.Len())
	})
}

func TestCopyErrors(t *testing.T) {
	obj := NewObject()

	_, err := Copy(obj, obj, 0)
	require.Error(t, err)
	assert.True(t, IsCopyError(err, ErrCodeIdenticalSource))
	assert.Contains(t, err.Error(), "Source and destination are identical")

	_, err = Copy(NewArray(), NewTypedArray(Uint8, 1), 0)
	assert.True(t, IsCopyError(err, ErrCodeImmutableDestination))

	_, err = Copy(NewArray(), NewArrayBuffer(1), 0)
	assert.True(t, IsCopyError(err, ErrCodeImmutableDestination))

	_, err = Copy(NewObject(P("w", &Window{})), nil, 0)
	assert.True(t, IsCopyError(err, ErrCodeWindowSource))

	_, err = Copy(NewArray(), NewObject(), 0)
	assert.True(t, IsCopyError(err, ErrCodeKindMismatch))
	assert.True(t, IsCopyError(err, ""))
}

func TestShallowCopy(t *testing.T) {
	inner := NewObject()
	arr := NewArray(Number(1), inner)
	cp := ShallowCopy(arr).(*Array)
	assert.NotSame(t, arr, cp)
	assert.Same(t, inner, cp.At(1))

	proto := NewObject(P("inherited", Number(1)))
	obj := NewObjectWithProto(proto)
	obj.Set("own", inner)
	ocp := ShallowCopy(obj).(*Object)
	assert.Equal(t, []string{"own"}, ocp.Keys())
	assert.Same(t, inner, ocp.Get("own"))

	assert.Equal(t, Number(3), ShallowCopy(Number(3)))
	assert.Equal(t, 2, ShallowCopy(NewTypedArrayOf(Int16, 1, 2)).(*Array).Len())
}
