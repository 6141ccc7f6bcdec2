package scenario

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance. Field names in its errors are
// the YAML keys.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct constraints first, then references between
// watches, nodes and actions.
func Validate(s *Scenario) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationErrors(err)
	}

	c := &checker{
		nodes:   map[string]bool{},
		watches: map[string]Watch{},
	}
	if err := c.collectNodes("tree", s.Tree); err != nil {
		return err
	}
	for i, step := range s.Steps {
		if err := c.collectAttached(fmt.Sprintf("steps[%d]", i), step); err != nil {
			return err
		}
	}
	for i, w := range s.Watches {
		for j, eff := range w.Effects {
			if err := c.collectAttached(fmt.Sprintf("watches[%d].effects[%d]", i, j), eff); err != nil {
				return err
			}
		}
	}

	for i, w := range s.Watches {
		if err := c.checkWatch(i, w); err != nil {
			return err
		}
	}
	for i, w := range s.Watches {
		for j, eff := range w.Effects {
			if err := c.checkAction(fmt.Sprintf("watches[%d].effects[%d]", i, j), eff, true); err != nil {
				return err
			}
		}
	}
	for i, step := range s.Steps {
		if err := c.checkAction(fmt.Sprintf("steps[%d]", i), step, false); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := c.checkAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// formatValidationErrors turns validator output into one error naming
// every failing field by its YAML path.
func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Scenario.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "min":
			if fe.Kind() == reflect.Slice {
				msgs = append(msgs, fmt.Sprintf("%s must have at least %s entries", field, fe.Param()))
			} else {
				msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
			}
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

type checker struct {
	nodes   map[string]bool
	watches map[string]Watch
}

func (c *checker) collectNodes(path string, n Node) error {
	if c.nodes[n.Name] {
		return fmt.Errorf("%s: duplicate node name %q", path, n.Name)
	}
	c.nodes[n.Name] = true
	for i, child := range n.Children {
		if err := c.collectNodes(fmt.Sprintf("%s.children[%d]", path, i), child); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) collectAttached(path string, a Action) error {
	if a.AddChild == nil {
		return nil
	}
	return c.collectNodes(path+".add_child.node", a.AddChild.Node)
}

func (c *checker) checkWatch(i int, w Watch) error {
	if _, dup := c.watches[w.ID]; dup {
		return fmt.Errorf("watches[%d]: duplicate watch id %q", i, w.ID)
	}
	c.watches[w.ID] = w

	if !c.nodes[w.Node] {
		return fmt.Errorf("watches[%d]: unknown node %q", i, w.Node)
	}
	if !c.nodes[w.HolderNode()] {
		return fmt.Errorf("watches[%d]: unknown holder %q", i, w.HolderNode())
	}
	if w.Mode == ModeCollection && w.Deep {
		return fmt.Errorf("watches[%d]: deep has no effect on a collection watch", i)
	}
	return nil
}

func (c *checker) checkAction(path string, a Action, effect bool) error {
	kinds := a.kinds()
	switch len(kinds) {
	case 0:
		return fmt.Errorf("%s: no action given", path)
	case 1:
	default:
		return fmt.Errorf("%s: exactly one action allowed, got %s", path, strings.Join(kinds, ", "))
	}

	node := func(name string) error {
		if !c.nodes[name] {
			return fmt.Errorf("%s: unknown node %q", path, name)
		}
		return nil
	}
	watch := func(id string) error {
		if _, ok := c.watches[id]; !ok {
			return fmt.Errorf("%s: unknown watch %q", path, id)
		}
		return nil
	}

	switch kinds[0] {
	case ActionSet:
		return node(a.Set.Node)
	case ActionPush:
		return node(a.Push.Node)
	case ActionDelete:
		return node(a.Delete.Node)
	case ActionIncrement:
		return node(a.Increment.Node)
	case ActionCopy:
		if err := node(a.Copy.From.Node); err != nil {
			return err
		}
		return node(a.Copy.To.Node)
	case ActionRegister:
		if err := watch(a.Register); err != nil {
			return err
		}
		if !c.watches[a.Register].Deferred {
			return fmt.Errorf("%s: watch %q is not deferred", path, a.Register)
		}
	case ActionDeregister:
		return watch(a.Deregister)
	case ActionAddChild:
		return node(a.AddChild.Parent)
	case ActionRemoveChild:
		return node(a.RemoveChild)
	case ActionDigest:
		if a.Digest.Root != "" {
			return node(a.Digest.Root)
		}
	case ActionFail, ActionPanic:
		if !effect {
			return fmt.Errorf("%s: %s is only allowed in watch effects", path, kinds[0])
		}
	}
	return nil
}

func (c *checker) checkAssertion(i int, a Assertion) error {
	path := fmt.Sprintf("assertions[%d]", i)
	requireWatch := func() error {
		if a.Watch == "" {
			return fmt.Errorf("%s: watch is required for %s", path, a.Type)
		}
		if _, ok := c.watches[a.Watch]; !ok {
			return fmt.Errorf("%s: unknown watch %q", path, a.Watch)
		}
		return nil
	}
	requireCount := func() error {
		if a.Count == nil {
			return fmt.Errorf("%s: count is required for %s", path, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertFiredCount:
		if err := requireWatch(); err != nil {
			return err
		}
		return requireCount()
	case AssertFiredWith:
		if err := requireWatch(); err != nil {
			return err
		}
		if a.New == nil && a.Old == nil {
			return fmt.Errorf("%s: new or old is required for fired_with", path)
		}
	case AssertFireOrder:
		if len(a.Watches) < 2 {
			return fmt.Errorf("%s: at least two watches are required for fire_order", path)
		}
		for _, id := range a.Watches {
			if _, ok := c.watches[id]; !ok {
				return fmt.Errorf("%s: unknown watch %q", path, id)
			}
		}
	case AssertFinalValue:
		if a.Node == "" || a.Key == "" {
			return fmt.Errorf("%s: node and key are required for final_value", path)
		}
		if !c.nodes[a.Node] {
			return fmt.Errorf("%s: unknown node %q", path, a.Node)
		}
		if a.Expect == nil {
			return fmt.Errorf("%s: expect is required for final_value (use {$null: true} for null)", path)
		}
	case AssertFailureCount, AssertIterations:
		return requireCount()
	}
	return nil
}
