// Package scenario defines the scenario format used by the conformance
// harness and the CLI.
//
// A scenario builds a tree of named nodes with plain data, registers watches
// on it, runs a list of steps (data edits and digests) and asserts on what
// the listeners saw. Listener behavior is scripted with effects: actions a
// listener performs each time it fires.
//
//	name: change_chain
//	description: "a listener feeds a second watch"
//	tree:
//	  name: root
//	  data: { a: 1, b: 1 }
//	watches:
//	  - id: a
//	    node: root
//	    key: a
//	    effects:
//	      - increment: { node: root, key: b }
//	  - id: b
//	    node: root
//	    key: b
//	steps:
//	  - digest: {}
//	assertions:
//	  - type: fired_count
//	    watch: b
//	    count: 2
//
// Values in data and assertions are plain YAML. Kinds YAML cannot express
// use single-key tagged maps: {$undefined: true}, {$null: true},
// {$number: NaN}, {$date: "2024-01-02T00:00:00Z"}, {$regexp: "/a+/g"}.
package scenario

// Scenario is one executable conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden traces are named after it.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description" validate:"required"`

	// TTL overrides the digest iteration budget. Nil keeps the engine default.
	TTL *int `yaml:"ttl,omitempty" json:"ttl,omitempty" validate:"omitempty,min=0"`

	// Tree is the root node.
	Tree Node `yaml:"tree" json:"tree"`

	// Watches are registered in order before the first step, except
	// deferred ones which wait for a register action.
	Watches []Watch `yaml:"watches" json:"watches" validate:"required,min=1,dive"`

	// Steps run in order.
	Steps []Action `yaml:"steps" json:"steps" validate:"required,min=1,dive"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions" json:"assertions" validate:"required,min=1,dive"`
}

// Node is a named tree node with its own data. A child's data inherits
// from its parent's, so a child can read (but not own) its parent's keys.
type Node struct {
	Name     string         `yaml:"name" json:"name" validate:"required"`
	Data     map[string]any `yaml:"data,omitempty" json:"data,omitempty"`
	Children []Node         `yaml:"children,omitempty" json:"children,omitempty" validate:"dive"`
}

// Watch modes.
const (
	ModeAuto       = "auto"
	ModePlain      = "plain"
	ModeCollection = "collection"
)

// Watch registers a listener on one key of a node's data.
type Watch struct {
	// ID labels the watch in traces and assertions.
	ID string `yaml:"id" json:"id" validate:"required"`

	// Node owns the watcher list the watch is registered in.
	Node string `yaml:"node" json:"node" validate:"required"`

	// Holder is the node whose data is read. Defaults to Node.
	Holder string `yaml:"holder,omitempty" json:"holder,omitempty"`

	Key string `yaml:"key" json:"key" validate:"required"`

	// Deep compares by structural equality instead of identity.
	Deep bool `yaml:"deep,omitempty" json:"deep,omitempty"`

	// Mode picks the registration path: auto (collection watch for arrays
	// and plain objects, as Engine.Watch does), plain or collection.
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty" validate:"omitempty,oneof=auto plain collection"`

	// Deferred watches are registered by a register action.
	Deferred bool `yaml:"deferred,omitempty" json:"deferred,omitempty"`

	// Effects run in order each time the listener fires.
	Effects []Action `yaml:"effects,omitempty" json:"effects,omitempty" validate:"dive"`
}

// HolderNode returns the node whose data the watch reads.
func (w Watch) HolderNode() string {
	if w.Holder != "" {
		return w.Holder
	}
	return w.Node
}

// EffectiveMode returns Mode, defaulting to auto.
func (w Watch) EffectiveMode() string {
	if w.Mode == "" {
		return ModeAuto
	}
	return w.Mode
}

// Action is a step or a listener effect. Exactly one field is set.
type Action struct {
	Set         *Assign `yaml:"set,omitempty" json:"set,omitempty"`
	Delete      *Ref    `yaml:"delete,omitempty" json:"delete,omitempty"`
	Push        *Assign `yaml:"push,omitempty" json:"push,omitempty"`
	Increment   *Ref    `yaml:"increment,omitempty" json:"increment,omitempty"`
	Copy        *Copy   `yaml:"copy,omitempty" json:"copy,omitempty"`
	Register    string  `yaml:"register,omitempty" json:"register,omitempty"`
	Deregister  string  `yaml:"deregister,omitempty" json:"deregister,omitempty"`
	AddChild    *Attach `yaml:"add_child,omitempty" json:"add_child,omitempty"`
	RemoveChild string  `yaml:"remove_child,omitempty" json:"remove_child,omitempty"`
	Digest      *Digest `yaml:"digest,omitempty" json:"digest,omitempty"`
	Fail        string  `yaml:"fail,omitempty" json:"fail,omitempty"`
	Panic       string  `yaml:"panic,omitempty" json:"panic,omitempty"`
}

// Action kinds, as returned by Action.Kind.
const (
	ActionSet         = "set"
	ActionDelete      = "delete"
	ActionPush        = "push"
	ActionIncrement   = "increment"
	ActionCopy        = "copy"
	ActionRegister    = "register"
	ActionDeregister  = "deregister"
	ActionAddChild    = "add_child"
	ActionRemoveChild = "remove_child"
	ActionDigest      = "digest"
	ActionFail        = "fail"
	ActionPanic       = "panic"
)

// kinds lists every kind that is set.
func (a Action) kinds() []string {
	var ks []string
	add := func(set bool, kind string) {
		if set {
			ks = append(ks, kind)
		}
	}
	add(a.Set != nil, ActionSet)
	add(a.Delete != nil, ActionDelete)
	add(a.Push != nil, ActionPush)
	add(a.Increment != nil, ActionIncrement)
	add(a.Copy != nil, ActionCopy)
	add(a.Register != "", ActionRegister)
	add(a.Deregister != "", ActionDeregister)
	add(a.AddChild != nil, ActionAddChild)
	add(a.RemoveChild != "", ActionRemoveChild)
	add(a.Digest != nil, ActionDigest)
	add(a.Fail != "", ActionFail)
	add(a.Panic != "", ActionPanic)
	return ks
}

// Kind returns the action's kind, or "" if none or several are set.
func (a Action) Kind() string {
	ks := a.kinds()
	if len(ks) != 1 {
		return ""
	}
	return ks[0]
}

// Ref names a key on a node's data.
type Ref struct {
	Node string `yaml:"node" json:"node" validate:"required"`
	Key  string `yaml:"key" json:"key" validate:"required"`
}

// Assign writes (set) or appends (push) Value at a node's key.
type Assign struct {
	Node  string `yaml:"node" json:"node" validate:"required"`
	Key   string `yaml:"key" json:"key" validate:"required"`
	Value any    `yaml:"value" json:"value"`
}

// Copy deep-copies the value at From into To.
type Copy struct {
	From Ref `yaml:"from" json:"from"`
	To   Ref `yaml:"to" json:"to"`
}

// Attach adds a new node under Parent.
type Attach struct {
	Parent string `yaml:"parent" json:"parent" validate:"required"`
	Node   Node   `yaml:"node" json:"node"`
}

// Digest settles the tree from Root (default: the tree root).
type Digest struct {
	Root string `yaml:"root,omitempty" json:"root,omitempty"`

	// ExpectError is the RuntimeError code the digest must return.
	ExpectError string `yaml:"expect_error,omitempty" json:"expect_error,omitempty" validate:"omitempty,oneof=TTL_EXCEEDED DIGEST_IN_PROGRESS"`
}

// Assertion types.
const (
	AssertFiredCount   = "fired_count"
	AssertFiredWith    = "fired_with"
	AssertFireOrder    = "fire_order"
	AssertFinalValue   = "final_value"
	AssertFailureCount = "failure_count"
	AssertIterations   = "iterations"
)

// Assertion validates the trace or the final tree.
type Assertion struct {
	// Type specifies the assertion type:
	//   - fired_count: watch fired exactly count times
	//   - fired_with: the nth firing of watch saw new and/or old
	//   - fire_order: watches fired in this relative order
	//   - final_value: node's key equals expect after the last step
	//   - failure_count: exactly count listener failures
	//   - iterations: the digest-th top-level digest ran count walks
	Type string `yaml:"type" json:"type" validate:"required,oneof=fired_count fired_with fire_order final_value failure_count iterations"`

	Watch   string   `yaml:"watch,omitempty" json:"watch,omitempty"`
	Watches []string `yaml:"watches,omitempty" json:"watches,omitempty"`
	Count   *int     `yaml:"count,omitempty" json:"count,omitempty" validate:"omitempty,min=0"`

	// Nth is 1-based; zero means the first firing.
	Nth int `yaml:"nth,omitempty" json:"nth,omitempty" validate:"min=0"`

	// New and Old are compared only when present. Write {$null: true} to
	// expect null.
	New any `yaml:"new,omitempty" json:"new,omitempty"`
	Old any `yaml:"old,omitempty" json:"old,omitempty"`

	Node   string `yaml:"node,omitempty" json:"node,omitempty"`
	Key    string `yaml:"key,omitempty" json:"key,omitempty"`
	Expect any    `yaml:"expect,omitempty" json:"expect,omitempty"`

	// Digest is the 1-based index of a top-level digest step; zero means
	// the last one.
	Digest int `yaml:"digest,omitempty" json:"digest,omitempty" validate:"min=0"`
}
