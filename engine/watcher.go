package engine

import (
	"github.com/roach88/dirtycheck/value"
)

// Node is an opaque host value owning a watcher list and a child list.
// The engine reaches both through the tree accessors (see Config).
type Node = any

// Listener is called when a watched value changes.
//
// oldV is the previously stored value, or newV itself on the first change
// after registration. A returned error is reported and does not stop the
// digest.
type Listener func(newV, oldV value.Value, node Node) error

// Getter reads the watched value from holder. The default getter is
// holder.Get(key).
type Getter func(holder value.Keyed, key string) value.Value

// Deregister removes a watcher from its list. Calling it more than once is
// harmless.
type Deregister func()

// unset marks a watcher that has not yet observed a defined value.
// It is a reference value no host can produce, so it never compares equal
// to anything a getter returns.
var unset value.Value = &value.Func{Name: "initWatchVal"}

// Watcher is one registered watch.
type Watcher struct {
	holder   value.Keyed
	key      string
	get      func() value.Value
	listener Listener
	last     value.Value
	eq       bool
	label    string
}

// Label returns the watcher's diagnostic name. Defaults to the key.
func (w *Watcher) Label() string {
	if w.label != "" {
		return w.label
	}
	return w.key
}

// Key returns the watched property key.
func (w *Watcher) Key() string { return w.key }

// Deep reports whether the watcher compares by deep equality.
func (w *Watcher) Deep() bool { return w.eq }

// Last returns the last value seen by the digest, or Undefined if the
// watcher has not seen a defined value yet.
func (w *Watcher) Last() value.Value {
	if w.last == unset {
		return value.Undefined{}
	}
	return w.last
}

// WatchOption configures a single watch registration.
type WatchOption func(*Watcher)

// WithLabel names the watcher in logs, traces and recorded firings.
func WithLabel(label string) WatchOption {
	return func(w *Watcher) {
		w.label = label
	}
}

// WatcherList is the ordered set of watchers owned by one node.
//
// The digest iterates by index and re-checks identity after each listener,
// so appends during a digest are visited in the same walk and a watcher
// removing itself does not cause the next one to be skipped.
type WatcherList struct {
	items []*Watcher
}

// NewWatcherList returns an empty list.
func NewWatcherList() *WatcherList {
	return &WatcherList{}
}

// Len returns the number of watchers. A nil list is empty.
func (l *WatcherList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// At returns the watcher at index i, or nil when out of range.
func (l *WatcherList) At(i int) *Watcher {
	if l == nil || i < 0 || i >= len(l.items) {
		return nil
	}
	return l.items[i]
}

func (l *WatcherList) append(w *Watcher) {
	l.items = append(l.items, w)
}

// remove deletes w by identity. Reports whether it was present.
func (l *WatcherList) remove(w *Watcher) bool {
	for i, it := range l.items {
		if it == w {
			copy(l.items[i:], l.items[i+1:])
			l.items[len(l.items)-1] = nil
			l.items = l.items[:len(l.items)-1]
			return true
		}
	}
	return false
}

// indexOf returns the position of w, or -1.
func (l *WatcherList) indexOf(w *Watcher) int {
	for i, it := range l.items {
		if it == w {
			return i
		}
	}
	return -1
}
