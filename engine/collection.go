package engine

import (
	"github.com/roach88/dirtycheck/value"
)

type collectionMode uint8

const (
	modeNone collectionMode = iota
	modePrimitive
	modeArray
	modeObject
)

// collectionState is the shadow copy behind a collection watch.
//
// intercept runs as the watcher's getter and returns a change counter that
// grows whenever an item is added, removed or replaced, so the digest's
// identity compare on the counter stands in for a shallow collection diff.
type collectionState struct {
	newValue value.Value
	veryOld  value.Value

	mode      collectionMode
	prim      value.Value
	arr       *value.Array
	obj       *value.Object
	oldLength int
	changes   int
}

func newCollectionState(initial value.Value) *collectionState {
	return &collectionState{
		veryOld: value.ShallowCopy(initial),
		arr:     value.NewArray(),
		obj:     value.NewObject(),
	}
}

// intercept is the Getter for a collection watch.
func (c *collectionState) intercept(holder value.Keyed, key string) value.Value {
	c.newValue = value.Norm(holder.Get(key))
	nv := c.newValue

	if value.IsUndefined(nv) {
		return value.Undefined{}
	}

	switch {
	case !value.IsObject(nv):
		if c.mode != modePrimitive || !value.SimpleCompare(c.prim, nv) {
			c.mode = modePrimitive
			c.prim = nv
			c.changes++
		}

	case value.IsArrayLike(nv):
		if c.mode != modeArray {
			c.mode = modeArray
			c.arr.Truncate(0)
			c.oldLength = 0
			c.changes++
		}

		n := value.Length(nv)
		if c.oldLength != n {
			c.changes++
			c.arr.Truncate(n)
			c.oldLength = n
		}
		for i := 0; i < n; i++ {
			item := value.Index(nv, i)
			if !value.SimpleCompare(c.arr.At(i), item) {
				c.changes++
				c.arr.SetAt(i, item)
			}
		}

	default:
		if c.mode != modeObject {
			c.mode = modeObject
			c.obj = value.NewObject()
			c.oldLength = 0
			c.changes++
		}

		src, _ := nv.(*value.Object)
		n := 0
		for _, k := range ownKeys(src) {
			n++
			item, _ := src.GetOwn(k)
			if old, ok := c.obj.GetOwn(k); ok {
				if !value.SimpleCompare(old, item) {
					c.changes++
					c.obj.Set(k, item)
				}
				continue
			}
			c.oldLength++
			c.obj.Set(k, item)
			c.changes++
		}

		if c.oldLength > n {
			c.changes++
			for _, k := range c.obj.Keys() {
				if src == nil || !src.HasOwn(k) {
					c.oldLength--
					c.obj.Delete(k)
				}
			}
		}
	}

	return value.Number(c.changes)
}

// listener wraps l so it receives the collection itself and the snapshot
// taken at the previous change, then refreshes the snapshot.
func (c *collectionState) listener(l Listener) Listener {
	return func(_, _ value.Value, node Node) error {
		defer func() {
			c.veryOld = value.ShallowCopy(c.newValue)
		}()
		return l(c.newValue, c.veryOld, node)
	}
}

// ownKeys lists own enumerable keys. Only plain objects carry any; other
// object kinds (dates, regexps, host nodes) have none.
func ownKeys(o *value.Object) []string {
	if o == nil {
		return nil
	}
	return o.Keys()
}
