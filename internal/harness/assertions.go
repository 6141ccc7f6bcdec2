package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/dirtycheck/engine"
	"github.com/roach88/dirtycheck/internal/scenario"
	"github.com/roach88/dirtycheck/internal/store"
	"github.com/roach88/dirtycheck/value"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFirings:\n")
	n := 0
	for _, event := range e.Trace {
		if event.Type == EventFired {
			n++
			fmt.Fprintf(&buf, "  [%d] %s@%s %s -> %s\n", n, event.Watch, event.Node, event.Old, event.New)
		}
	}

	return buf.String()
}

// AssertionContext gives assertions access to the recorded store and the
// final tree.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	Scopes map[string]*engine.Scope
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []scenario.Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case scenario.AssertFiredCount:
			err = assertFiredCount(result, assertion, actx)
		case scenario.AssertFiredWith:
			err = assertFiredWith(result.Trace, assertion)
		case scenario.AssertFireOrder:
			err = assertFireOrder(result.Trace, assertion)
		case scenario.AssertFinalValue:
			err = assertFinalValue(result.Trace, assertion, actx)
		case scenario.AssertFailureCount:
			err = assertFailureCount(result, assertion, actx)
		case scenario.AssertIterations:
			err = assertIterations(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func countOf(a scenario.Assertion) int {
	if a.Count == nil {
		return 0
	}
	return *a.Count
}

// assertFiredCount counts the watch's firings recorded in the store for
// this scenario's runs.
func assertFiredCount(result *Result, a scenario.Assertion, actx *AssertionContext) error {
	if actx == nil || actx.Store == nil {
		return fmt.Errorf("fired_count requires a store")
	}

	count := 0
	if ids := result.RunIDs(); len(ids) > 0 {
		n, err := actx.Store.CountFirings(actx.Ctx, store.FiringFilter{RunIDs: ids, Watch: a.Watch})
		if err != nil {
			return fmt.Errorf("fired_count: %w", err)
		}
		count = n
	}

	if count != countOf(a) {
		return &AssertionError{
			Type:     scenario.AssertFiredCount,
			Expected: fmt.Sprintf("%d firings of %s", countOf(a), a.Watch),
			Actual:   fmt.Sprintf("%d firings", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFailureCount counts listener failures recorded in the store for
// this scenario's runs.
func assertFailureCount(result *Result, a scenario.Assertion, actx *AssertionContext) error {
	if actx == nil || actx.Store == nil {
		return fmt.Errorf("failure_count requires a store")
	}

	count := 0
	if ids := result.RunIDs(); len(ids) > 0 {
		failures, err := actx.Store.ReadListenerFailures(actx.Ctx, ids...)
		if err != nil {
			return fmt.Errorf("failure_count: %w", err)
		}
		count = len(failures)
	}

	if count != countOf(a) {
		return &AssertionError{
			Type:     scenario.AssertFailureCount,
			Expected: fmt.Sprintf("%d listener failures", countOf(a)),
			Actual:   fmt.Sprintf("%d listener failures", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFiredWith checks the values the nth firing of a watch saw.
func assertFiredWith(trace []TraceEvent, a scenario.Assertion) error {
	nth := a.Nth
	if nth == 0 {
		nth = 1
	}

	var firing *TraceEvent
	seen := 0
	for i := range trace {
		if trace[i].Type == EventFired && trace[i].Watch == a.Watch {
			seen++
			if seen == nth {
				firing = &trace[i]
				break
			}
		}
	}
	if firing == nil {
		return &AssertionError{
			Type:     scenario.AssertFiredWith,
			Expected: fmt.Sprintf("firing #%d of %s", nth, a.Watch),
			Actual:   fmt.Sprintf("%d firings", seen),
			Trace:    trace,
		}
	}

	check := func(which string, want any, got string) error {
		if want == nil {
			return nil
		}
		expected, err := render(want)
		if err != nil {
			return fmt.Errorf("fired_with %s: %w", which, err)
		}
		if expected != got {
			return &AssertionError{
				Type:     scenario.AssertFiredWith,
				Expected: fmt.Sprintf("firing #%d of %s with %s %s", nth, a.Watch, which, expected),
				Actual:   fmt.Sprintf("%s %s", which, got),
				Trace:    trace,
			}
		}
		return nil
	}
	if err := check("new", a.New, firing.New); err != nil {
		return err
	}
	return check("old", a.Old, firing.Old)
}

// assertFireOrder checks that each watch first fired in the listed order.
// Other firings may appear in between.
func assertFireOrder(trace []TraceEvent, a scenario.Assertion) error {
	positions := make(map[string]int)
	n := 0
	for _, event := range trace {
		if event.Type != EventFired {
			continue
		}
		n++
		if positions[event.Watch] == 0 {
			positions[event.Watch] = n // 1-indexed for readability
		}
	}

	for _, w := range a.Watches {
		if positions[w] == 0 {
			return &AssertionError{
				Type:     scenario.AssertFireOrder,
				Expected: fmt.Sprintf("all watches fired: %v", a.Watches),
				Actual:   fmt.Sprintf("%s never fired", w),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Watches); i++ {
		prev, curr := a.Watches[i-1], a.Watches[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     scenario.AssertFireOrder,
				Expected: fmt.Sprintf("watches in order: %v", a.Watches),
				Actual: fmt.Sprintf("%s (firing %d) should be before %s (firing %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertFinalValue compares a node's key (read through inheritance) with
// the expected value by canonical rendering.
func assertFinalValue(trace []TraceEvent, a scenario.Assertion, actx *AssertionContext) error {
	if actx == nil {
		return fmt.Errorf("final_value requires the final tree")
	}
	s, ok := actx.Scopes[a.Node]
	if !ok {
		return fmt.Errorf("final_value: node %q does not exist", a.Node)
	}

	expected, err := render(a.Expect)
	if err != nil {
		return fmt.Errorf("final_value expect: %w", err)
	}
	actual := value.MarshalCanonicalString(s.Data.Get(a.Key))
	if expected != actual {
		return &AssertionError{
			Type:     scenario.AssertFinalValue,
			Expected: fmt.Sprintf("%s.%s = %s", a.Node, a.Key, expected),
			Actual:   actual,
			Trace:    trace,
		}
	}
	return nil
}

// assertIterations checks the walk count of one top-level digest.
func assertIterations(trace []TraceEvent, a scenario.Assertion) error {
	finished := []TraceEvent{}
	for _, ev := range trace {
		if ev.Type == EventDigestFinished {
			finished = append(finished, ev)
		}
	}

	idx := a.Digest
	if idx == 0 {
		idx = len(finished)
	}
	if idx < 1 || idx > len(finished) {
		return &AssertionError{
			Type:     scenario.AssertIterations,
			Expected: fmt.Sprintf("digest #%d", idx),
			Actual:   fmt.Sprintf("%d digests ran", len(finished)),
			Trace:    trace,
		}
	}

	got := finished[idx-1].Iterations
	if got != countOf(a) {
		return &AssertionError{
			Type:     scenario.AssertIterations,
			Expected: fmt.Sprintf("digest #%d to run %d walks", idx, countOf(a)),
			Actual:   fmt.Sprintf("%d walks", got),
			Trace:    trace,
		}
	}
	return nil
}

// render converts a scenario literal to its canonical rendering.
func render(v any) (string, error) {
	val, err := value.FromGo(v)
	if err != nil {
		return "", err
	}
	return value.MarshalCanonicalString(val), nil
}
