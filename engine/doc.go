// Package engine implements pull-based change detection over a tree of nodes.
//
// Hosts register watches against (holder, key) pairs and later call Digest on
// the root of their node tree. Digest re-evaluates every watch in the tree
// until a full pass reports no change, calling listeners for each change it
// finds. Nothing is pushed: a change is only noticed when a digest looks.
//
// ARCHITECTURE:
//
// Watches and Lists:
// A Watcher belongs to exactly one WatcherList, which belongs to a node. The
// engine never creates or destroys nodes; it reaches watcher lists and child
// lists through a pluggable Config (or the WatcherSource / ChildSource
// interfaces, which Scope implements).
//
// Digest Loop:
//  1. Guard: only one digest may run per Engine (Phase).
//  2. Walk the tree depth-first, pre-order, starting at root.
//  3. For each watcher, compare the current value with the last one seen.
//     Identity is tried first; equality watches fall back to value.Equals,
//     and plain watches treat two NaNs as unchanged.
//  4. On a change, store the new value (a deep copy for equality watches)
//     and call the listener with (new, old, node). On the first change old
//     is new.
//  5. Repeat while the previous walk was dirty, up to the iteration budget
//     (DefaultTTL). Exceeding it aborts with ErrCodeTTLExceeded.
//
// Last Dirty Watch:
// The engine remembers the most recent watcher found dirty. When a later walk
// reaches that watcher and finds it clean, every watcher after it was already
// checked clean in the previous walk, so the walk stops early.
//
// Listener Isolation:
// A listener that returns an error or panics is reported (log, metrics,
// signals, Recorder, error handler) and the walk continues with the next
// watcher. Getter panics are handled the same way.
//
// CONCURRENCY:
//
// A digest is synchronous and runs on the caller's goroutine. Watch lists may
// be modified by listeners during a digest (append and remove are safe), but
// not concurrently from other goroutines. A second Digest on the same Engine
// while one is running, from a listener or another goroutine, is rejected
// with ErrCodeDigestInProgress.
package engine
