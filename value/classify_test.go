package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		v    Value
		want Kind
	}{
		{nil, KindUndefined},
		{Undefined{}, KindUndefined},
		{Null{}, KindNull},
		{Bool(true), KindBool},
		{Number(1), KindNumber},
		{String("x"), KindString},
		{NewFunc("f", nil), KindFunc},
		{NewArray(), KindArray},
		{NewObject(), KindObject},
		{InvalidDate(), KindDate},
		{NewRegExp("a", ""), KindRegExp},
		{NewTypedArray(Int32, 1), KindTypedArray},
		{NewArrayBuffer(1), KindArrayBuffer},
		{NewBoxed(Bool(true)), KindBoxed},
		{NewBlob(nil, ""), KindBlob},
		{&fakeNode{}, KindHost},
		{&Window{}, KindWindow},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.v))
		})
	}
}

func TestIsObject(t *testing.T) {
	assert.False(t, IsObject(nil))
	assert.False(t, IsObject(Null{}))
	assert.False(t, IsObject(String("s")))
	assert.False(t, IsObject(NewFunc("f", nil)))
	assert.True(t, IsObject(NewArray()))
	assert.True(t, IsObject(NewObject()))
	assert.True(t, IsObject(InvalidDate()))
	assert.True(t, IsObject(&Window{}))
}

func TestIsArrayLike(t *testing.T) {
	assert.True(t, IsArrayLike(NewArray()))
	assert.True(t, IsArrayLike(String("abc")))
	assert.True(t, IsArrayLike(NewTypedArray(Uint8, 2)))
	assert.True(t, IsArrayLike(NewObject(P("length", Number(2)), P("1", String("b")))))
	assert.True(t, IsArrayLike(NewObject(P("length", Number(0)), P("item", NewFunc("item", nil)))))

	assert.False(t, IsArrayLike(NewObject(P("length", Number(2)))))
	assert.False(t, IsArrayLike(NewObject(P("length", Number(0)))))
	assert.False(t, IsArrayLike(NewObject(P("0", String("a")), P("length", Number(1.5)))))
	assert.True(t, IsArrayLike(NewObject(P("length", Number(1.5)), P("item", NewFunc("item", nil)))))
	assert.False(t, IsArrayLike(NewObject(P("length", String("2")), P("1", Number(1)))))
	assert.False(t, IsArrayLike(Null{}))
	assert.False(t, IsArrayLike(&Window{}))
	assert.False(t, IsArrayLike(Number(3)))
}

func TestLengthAndIndex(t *testing.T) {
	assert.Equal(t, 3, Length(String("h\u00e9j")))
	assert.Equal(t, String("\u00e9"), Index(String("h\u00e9j"), 1))
	assert.Equal(t, Undefined{}, Index(String("h\u00e9j"), 5))

	like := NewObject(P("length", Number(2)), P("0", Number(10)), P("1", Number(11)))
	assert.Equal(t, 2, Length(like))
	assert.Equal(t, Number(11), Index(like, 1))
	assert.Equal(t, 0, Length(NewObject()))
}

func TestSimpleCompare(t *testing.T) {
	assert.True(t, SimpleCompare(NaN(), NaN()))
	assert.True(t, SimpleCompare(Number(2), Number(2)))
	assert.False(t, SimpleCompare(NewObject(), NewObject()))
	o := NewObject()
	assert.True(t, SimpleCompare(o, o))
}

func TestObjectEnumeration(t *testing.T) {
	grand := NewObject(P("g", Number(1)), P("shadow", Number(1)))
	parent := NewObjectWithProto(grand)
	parent.Set("p", Number(2))
	child := NewObjectWithProto(parent)
	child.Set("shadow", Number(3))
	child.Set("c", Number(4))

	assert.Equal(t, []string{"shadow", "c", "p", "g"}, child.AllKeys())
	assert.Equal(t, []string{"shadow", "c"}, child.Keys())
	assert.Equal(t, Number(3), child.Get("shadow"))
	assert.Equal(t, Number(1), child.Get("g"))
	assert.True(t, child.Has("g"))
	assert.False(t, child.HasOwn("g"))

	assert.True(t, child.Delete("shadow"))
	assert.Equal(t, Number(1), child.Get("shadow"))
	assert.False(t, child.Delete("shadow"))
}

func TestArrayKeyedAccess(t *testing.T) {
	a := NewArray(String("a"), String("b"))
	assert.Equal(t, Number(2), a.Get("length"))
	assert.Equal(t, String("b"), a.Get("1"))
	assert.Equal(t, Undefined{}, a.Get("x"))

	a.Set("3", String("d"))
	assert.Equal(t, 4, a.Len())
	assert.Equal(t, Undefined{}, a.At(2))

	a.Set("length", Number(1))
	assert.Equal(t, 1, a.Len())
}
