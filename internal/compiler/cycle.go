package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dirtycheck/internal/scenario"
)

// CycleWarning represents a potential feedback loop between watches.
//
// Cycles are warnings, not errors, because they may be intentional: a loop
// that converges settles the digest, and scenarios that exercise the
// iteration limit build runaway loops on purpose.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles finds watches whose effects can change what they, or
// other watches in the loop, observe.
//
// The algorithm:
//  1. Build a watch → watch graph: an edge a → b exists when one of a's
//     effects writes b's key on b's holder or on an ancestor the holder
//     inherits from
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a potential cycle warning
//
// A watch graph without loops returns an empty warning list. Warnings are
// ordered by the first watch of each loop in declaration order.
func AnalyzeCycles(sc *scenario.Scenario) []CycleWarning {
	if sc == nil || len(sc.Watches) == 0 {
		return []CycleWarning{}
	}

	graph, order := buildDependencyGraph(sc)
	sccs := tarjanSCC(graph, order)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// dependencyGraph maps watch id → ids of watches its effects can dirty.
type dependencyGraph map[string][]string

// write is a data change an effect makes.
type write struct {
	node string
	key  string
}

// buildDependencyGraph constructs the watch dependency graph and returns
// the watch ids in declaration order.
func buildDependencyGraph(sc *scenario.Scenario) (dependencyGraph, []string) {
	parents := map[string]string{}
	var walk func(parent string, n scenario.Node)
	walk = func(parent string, n scenario.Node) {
		if parent != "" {
			parents[n.Name] = parent
		}
		for _, c := range n.Children {
			walk(n.Name, c)
		}
	}
	walk("", sc.Tree)
	for _, w := range sc.Watches {
		for _, a := range w.Effects {
			if a.AddChild != nil {
				walk(a.AddChild.Parent, a.AddChild.Node)
			}
		}
	}

	// inherits reports whether reads on holder see writes on node.
	inherits := func(holder, node string) bool {
		for cur := holder; cur != ""; cur = parents[cur] {
			if cur == node {
				return true
			}
		}
		return false
	}

	graph := make(dependencyGraph)
	order := make([]string, 0, len(sc.Watches))
	for _, from := range sc.Watches {
		order = append(order, from.ID)
		graph[from.ID] = []string{}

		for _, wr := range effectWrites(from.Effects) {
			for _, to := range sc.Watches {
				if to.Key == wr.key && inherits(to.HolderNode(), wr.node) &&
					!slices.Contains(graph[from.ID], to.ID) {
					graph[from.ID] = append(graph[from.ID], to.ID)
				}
			}
		}
	}
	return graph, order
}

// effectWrites lists the data each effect can change.
func effectWrites(effects []scenario.Action) []write {
	var out []write
	for _, a := range effects {
		switch {
		case a.Set != nil:
			out = append(out, write{a.Set.Node, a.Set.Key})
		case a.Push != nil:
			out = append(out, write{a.Push.Node, a.Push.Key})
		case a.Delete != nil:
			out = append(out, write{a.Delete.Node, a.Delete.Key})
		case a.Increment != nil:
			out = append(out, write{a.Increment.Node, a.Increment.Key})
		case a.Copy != nil:
			out = append(out, write{a.Copy.To.Node, a.Copy.To.Key})
		}
	}
	return out
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm,
// visiting roots in the given order.
//
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	// Start each SCC at its earliest declared watch.
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, scc := range sccs {
		slices.SortFunc(scc, func(a, b string) int { return pos[a] - pos[b] })
	}
	slices.SortFunc(sccs, func(a, b []string) int { return pos[a[0]] - pos[b[0]] })

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		id := scc[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("Self-triggering watch detected: %s → %s", id, id),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at first node in SCC, follow edges to other SCC members,
// continue until we return to start node.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
