package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dirtycheck/internal/scenario"
)

func incr(node, key string) scenario.Action {
	return scenario.Action{Increment: &scenario.Ref{Node: node, Key: key}}
}

func treeScenario(watches ...scenario.Watch) *scenario.Scenario {
	return &scenario.Scenario{
		Name: "cycles",
		Tree: scenario.Node{
			Name: "root",
			Children: []scenario.Node{
				{Name: "child"},
			},
		},
		Watches: watches,
	}
}

// TestAnalyzeCycles_Empty tests that no watches produce no warnings.
func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
	assert.Empty(t, AnalyzeCycles(treeScenario()))
}

// TestAnalyzeCycles_Chain tests that a one-way chain produces no warnings.
func TestAnalyzeCycles_Chain(t *testing.T) {
	sc := treeScenario(
		scenario.Watch{ID: "a", Node: "root", Key: "a", Effects: []scenario.Action{incr("root", "b")}},
		scenario.Watch{ID: "b", Node: "root", Key: "b", Effects: []scenario.Action{incr("root", "c")}},
		scenario.Watch{ID: "c", Node: "root", Key: "c"},
	)
	assert.Empty(t, AnalyzeCycles(sc), "a chain has no loop")
}

// TestAnalyzeCycles_SelfLoop tests detection of a watch that feeds itself.
func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	sc := treeScenario(
		scenario.Watch{ID: "n", Node: "root", Key: "n", Effects: []scenario.Action{incr("root", "n")}},
	)

	warnings := AnalyzeCycles(sc)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"n", "n"}, warnings[0].Path)
	assert.Contains(t, warnings[0].Message, "Self-triggering")
	assert.Equal(t, "warning", warnings[0].Level)
}

// TestAnalyzeCycles_TwoNodeCycle tests detection of a → b → a.
func TestAnalyzeCycles_TwoNodeCycle(t *testing.T) {
	sc := treeScenario(
		scenario.Watch{ID: "a", Node: "root", Key: "a", Effects: []scenario.Action{
			{Set: &scenario.Assign{Node: "root", Key: "b", Value: 1}},
		}},
		scenario.Watch{ID: "b", Node: "root", Key: "b", Effects: []scenario.Action{
			{Copy: &scenario.Copy{From: scenario.Ref{Node: "root", Key: "b"}, To: scenario.Ref{Node: "root", Key: "a"}}},
		}},
	)

	warnings := AnalyzeCycles(sc)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
	assert.Equal(t, "Potential cycle detected: a → b → a", warnings[0].Message)
}

// TestAnalyzeCycles_Inheritance tests that writes on an ancestor reach
// watches whose holder inherits the key, and writes on a child do not
// reach watches held by its parent.
func TestAnalyzeCycles_Inheritance(t *testing.T) {
	down := treeScenario(
		scenario.Watch{ID: "parent", Node: "root", Key: "x", Effects: []scenario.Action{incr("root", "y")}},
		scenario.Watch{ID: "child", Node: "child", Key: "y", Effects: []scenario.Action{incr("root", "x")}},
	)
	require.Len(t, AnalyzeCycles(down), 1)
	assert.Equal(t, []string{"parent", "child", "parent"}, AnalyzeCycles(down)[0].Path)

	up := treeScenario(
		scenario.Watch{ID: "parent", Node: "root", Key: "x", Effects: []scenario.Action{incr("child", "y")}},
		scenario.Watch{ID: "child", Node: "child", Key: "y", Effects: []scenario.Action{incr("child", "x")}},
	)
	assert.Empty(t, AnalyzeCycles(up), "a child's own key shadows nothing on its parent")
}

// TestAnalyzeCycles_AttachedNodes tests that nodes added by effects take
// part in inheritance.
func TestAnalyzeCycles_AttachedNodes(t *testing.T) {
	sc := treeScenario(
		scenario.Watch{ID: "grow", Node: "root", Key: "go", Effects: []scenario.Action{
			{AddChild: &scenario.Attach{Parent: "child", Node: scenario.Node{Name: "late"}}},
			incr("child", "tick"),
		}},
		scenario.Watch{ID: "late", Node: "late", Key: "tick", Deferred: true, Effects: []scenario.Action{
			{Set: &scenario.Assign{Node: "root", Key: "go", Value: false}},
		}},
	)

	warnings := AnalyzeCycles(sc)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"grow", "late", "grow"}, warnings[0].Path)
}

// TestAnalyzeCycles_Ordering tests that warnings follow declaration order.
func TestAnalyzeCycles_Ordering(t *testing.T) {
	sc := treeScenario(
		scenario.Watch{ID: "first", Node: "root", Key: "p", Effects: []scenario.Action{incr("root", "p")}},
		scenario.Watch{ID: "x", Node: "root", Key: "x", Effects: []scenario.Action{incr("root", "y")}},
		scenario.Watch{ID: "y", Node: "root", Key: "y", Effects: []scenario.Action{incr("root", "x")}},
	)

	warnings := AnalyzeCycles(sc)
	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"first", "first"}, warnings[0].Path)
	assert.Equal(t, []string{"x", "y", "x"}, warnings[1].Path)
}

// TestAnalyzeCycles_HarnessScenarios tests the shipped scenarios: only the
// runaway loop warns.
func TestAnalyzeCycles_HarnessScenarios(t *testing.T) {
	tests := map[string]int{
		"simple_change":     0,
		"change_chain":      0,
		"infinite_loop":     1,
		"listener_failures": 0,
		"tree_growth":       0,
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			sc, err := scenario.Load("../harness/testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)
			assert.Len(t, AnalyzeCycles(sc), want)
		})
	}
}
