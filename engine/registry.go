package engine

import (
	"log/slog"

	"github.com/roach88/dirtycheck/value"
)

// WatchWith registers a watcher on list for holder[key].
//
// getter overrides how the value is read; nil means holder.Get(key). The
// getter is evaluated once here to seed the watcher, so the first digest only
// fires if the value changes after registration, or if it was undefined at
// registration and is defined now.
//
// With useEquality the watcher compares by value.Equals and keeps a deep copy
// of the last value, starting with the one read here, so in-place mutation is
// detected.
//
// Returns nil when list is nil or holder is not keyed (Object or Array);
// nothing is registered in that case.
func (e *Engine) WatchWith(list *WatcherList, holder value.Value, key string, listener Listener, getter Getter, useEquality bool, opts ...WatchOption) Deregister {
	keyed, ok := asKeyed(holder)
	if !ok || list == nil {
		return nil
	}
	if listener == nil {
		listener = noopListener
	}
	if getter == nil {
		getter = getKey
	}

	w := &Watcher{
		holder:   keyed,
		key:      key,
		listener: listener,
		eq:       useEquality,
	}
	w.get = func() value.Value {
		return value.Norm(getter(w.holder, w.key))
	}
	for _, opt := range opts {
		opt(w)
	}

	initial := w.get()
	switch {
	case value.IsUndefined(initial):
		w.last = unset
	case w.eq:
		w.last = e.seed(w, initial)
	default:
		w.last = initial
	}

	e.lastDirty = nil
	list.append(w)
	e.metrics.Watchers.Inc()

	e.logger.Debug("watch registered",
		slog.String("watch", w.Label()),
		slog.Bool("deep", w.eq),
		slog.Int("list_len", list.Len()),
	)

	removed := false
	return func() {
		if removed {
			return
		}
		removed = true
		if list.remove(w) {
			e.metrics.Watchers.Dec()
		}
		e.lastDirty = nil
	}
}

// seed deep-copies the registration value of an equality watcher. If the
// value cannot be copied the reference is kept.
func (e *Engine) seed(w *Watcher, v value.Value) value.Value {
	cp, err := value.Copy(v, nil, 0)
	if err != nil {
		e.logger.Warn("deep watch snapshot failed, keeping reference",
			slog.String("watch", w.Label()),
			slog.String("error", err.Error()),
		)
		return v
	}
	return cp
}

// Watch registers interest in holder[key].
//
// If the value at registration is an array or a plain object, a collection
// watch is installed: the listener fires when items are added, removed or
// replaced, and receives a shallow snapshot of the previous collection as
// oldV. deep is ignored for collection watches.
//
// Otherwise a plain watch is installed that compares by identity, or by deep
// equality when deep is set.
//
// A nil listener is replaced with a no-op. Returns nil when holder is not
// keyed.
func (e *Engine) Watch(list *WatcherList, holder value.Value, key string, listener Listener, deep bool, opts ...WatchOption) Deregister {
	keyed, ok := asKeyed(holder)
	if !ok {
		return nil
	}
	if listener == nil {
		listener = noopListener
	}

	current := keyed.Get(key)
	if value.IsArray(current) || value.IsPlainObject(current) {
		return e.WatchCollection(list, holder, key, listener, opts...)
	}
	return e.WatchWith(list, holder, key, listener, nil, deep, opts...)
}

// WatchCollection installs a collection watch regardless of the current
// value's kind. See Watch.
func (e *Engine) WatchCollection(list *WatcherList, holder value.Value, key string, listener Listener, opts ...WatchOption) Deregister {
	keyed, ok := asKeyed(holder)
	if !ok || list == nil {
		return nil
	}
	if listener == nil {
		listener = noopListener
	}

	c := newCollectionState(keyed.Get(key))
	return e.WatchWith(list, holder, key, c.listener(listener), c.intercept, false, opts...)
}

// asKeyed rejects non-keyed holders, including typed nil pointers.
func asKeyed(v value.Value) (value.Keyed, bool) {
	switch h := v.(type) {
	case *value.Object:
		return h, h != nil
	case *value.Array:
		return h, h != nil
	case value.Keyed:
		return h, h != nil
	}
	return nil, false
}

func getKey(holder value.Keyed, key string) value.Value {
	return holder.Get(key)
}

func noopListener(value.Value, value.Value, Node) error {
	return nil
}

// Watch registers on the default engine. See Engine.Watch.
func Watch(list *WatcherList, holder value.Value, key string, listener Listener, deep bool, opts ...WatchOption) Deregister {
	return Default().Watch(list, holder, key, listener, deep, opts...)
}
