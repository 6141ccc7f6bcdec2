package engine

import (
	"fmt"

	"github.com/roach88/dirtycheck/value"
)

// Config supplies the tree accessors used by Digest.
//
// A nil field keeps the accessor already installed.
type Config struct {
	// Watchers returns a node's watcher list, or nil if it has none.
	Watchers func(Node) *WatcherList

	// Children returns a node's children in traversal order.
	Children func(Node) []Node
}

// WatcherSource is implemented by nodes that own a watcher list.
type WatcherSource interface {
	Watchers() *WatcherList
}

// ChildSource is implemented by nodes that have children.
type ChildSource interface {
	Children() []Node
}

type tree struct {
	watchers func(Node) *WatcherList
	children func(Node) []Node
}

func defaultTree() tree {
	return tree{
		watchers: func(n Node) *WatcherList {
			if s, ok := n.(WatcherSource); ok {
				return s.Watchers()
			}
			return nil
		},
		children: func(n Node) []Node {
			if s, ok := n.(ChildSource); ok {
				return s.Children()
			}
			return nil
		},
	}
}

// SetConfig replaces the tree accessors. A nil cfg is ignored.
//
// Must not be called while a digest is running.
func (e *Engine) SetConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Watchers != nil {
		e.tree.watchers = cfg.Watchers
	}
	if cfg.Children != nil {
		e.tree.children = cfg.Children
	}
}

// SetConfig configures the default engine. See Engine.SetConfig.
func SetConfig(cfg *Config) {
	Default().SetConfig(cfg)
}

// Scope is a ready-made node: a named data object with its own watcher list
// and ordered children.
type Scope struct {
	Name string
	Data *value.Object

	watchers *WatcherList
	children []*Scope
	parent   *Scope
}

// NewScope creates a root scope with an empty data object.
func NewScope(name string) *Scope {
	return &Scope{
		Name:     name,
		Data:     value.NewObject(),
		watchers: NewWatcherList(),
	}
}

// NewChild creates a scope and appends it to s's children. The child's data
// object inherits from s.Data.
func (s *Scope) NewChild(name string) *Scope {
	c := &Scope{
		Name:     name,
		Data:     value.NewObjectWithProto(s.Data),
		watchers: NewWatcherList(),
	}
	s.AddChild(c)
	return c
}

// AddChild appends c, detaching it from any previous parent. It reports
// false, and changes nothing, when c is nil or is s or one of its ancestors.
func (s *Scope) AddChild(c *Scope) bool {
	if c == nil {
		return false
	}
	for p := s; p != nil; p = p.parent {
		if p == c {
			return false
		}
	}
	if c.parent != nil {
		c.parent.RemoveChild(c)
	}
	c.parent = s
	s.children = append(s.children, c)
	return true
}

// RemoveChild detaches c. Reports whether c was a child of s.
func (s *Scope) RemoveChild(c *Scope) bool {
	for i, it := range s.children {
		if it == c {
			s.children = append(s.children[:i], s.children[i+1:]...)
			c.parent = nil
			return true
		}
	}
	return false
}

// Parent returns the parent scope, or nil for a root.
func (s *Scope) Parent() *Scope { return s.parent }

// Watchers implements WatcherSource.
func (s *Scope) Watchers() *WatcherList {
	return s.watchers
}

// Children implements ChildSource.
func (s *Scope) Children() []Node {
	out := make([]Node, len(s.children))
	for i, c := range s.children {
		out[i] = c
	}
	return out
}

// Watch registers a watch on s.Data[key] in s's watcher list using e.
func (s *Scope) Watch(e *Engine, key string, listener Listener, deep bool, opts ...WatchOption) Deregister {
	return e.Watch(s.watchers, s.Data, key, listener, deep, opts...)
}

// Find returns the first scope named name in pre-order, or nil.
func (s *Scope) Find(name string) *Scope {
	if s.Name == name {
		return s
	}
	for _, c := range s.children {
		if f := c.Find(name); f != nil {
			return f
		}
	}
	return nil
}

// NodeName renders a node for logs and traces.
func NodeName(n Node) string {
	switch x := n.(type) {
	case nil:
		return "<nil>"
	case *Scope:
		return x.Name
	case interface{ NodeName() string }:
		return x.NodeName()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%T", n)
	}
}
