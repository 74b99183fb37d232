package workflow

import (
	"strings"

	"github.com/flowgate/flowgate/types"
)

// DependencyGraph is the validated DAG derived from a workflow's steps.
// Nodes are step ids; an edge points from a dependency to its dependent.
// The topological order is computed once and cached with the graph.
type DependencyGraph struct {
	// nodes in original declaration order
	nodes []string
	// index maps a node id to its declaration position
	index map[string]int
	// dependents maps a node to the nodes that depend on it
	dependents map[string][]string
	// dependencies maps a node to its declared dependencies
	dependencies map[string][]string
	// order is the cached deterministic topological order
	order []string
}

// node colors for the iterative cycle scan
const (
	colorWhite = iota
	colorGray
	colorBlack
)

// BuildGraph constructs and validates the dependency graph for a step list.
// It reports every problem found, not just the first: duplicate ids,
// dependencies naming unknown steps, self-dependencies, and full cycle
// paths. On any violation the returned graph is nil.
func BuildGraph(steps []WorkflowStep) (*DependencyGraph, *types.ValidationError) {
	verr := types.NewValidationError("dependency graph")

	g := &DependencyGraph{
		index:        make(map[string]int, len(steps)),
		dependents:   make(map[string][]string, len(steps)),
		dependencies: make(map[string][]string, len(steps)),
	}

	if len(steps) == 0 {
		verr.Add("workflow has no steps")
		return nil, verr
	}

	for i := range steps {
		id := steps[i].ID
		if id == "" {
			verr.Add("step at position %d has an empty id", i)
			continue
		}
		if _, dup := g.index[id]; dup {
			verr.Add("duplicate step id %q", id)
			continue
		}
		g.index[id] = len(g.nodes)
		g.nodes = append(g.nodes, id)
	}

	for i := range steps {
		id := steps[i].ID
		if _, ok := g.index[id]; !ok {
			continue
		}
		for _, dep := range steps[i].Dependencies {
			if dep == id {
				verr.Add("step %q depends on itself", id)
				continue
			}
			if _, ok := g.index[dep]; !ok {
				verr.Add("step %q depends on unknown step %q", id, dep)
				continue
			}
			g.dependencies[id] = append(g.dependencies[id], dep)
			g.dependents[dep] = append(g.dependents[dep], id)
		}
	}

	for _, cycle := range g.findCycles() {
		verr.Add("cycle detected: %s", strings.Join(cycle, " -> "))
	}

	if verr.HasViolations() {
		return nil, verr
	}

	g.order = g.topologicalOrder()
	return g, nil
}

// findCycles scans for back edges with an explicit stack instead of
// recursion and returns the full path of each cycle found.
func (g *DependencyGraph) findCycles() [][]string {
	color := make(map[string]int, len(g.nodes))
	var cycles [][]string

	type frame struct {
		node string
		next int
	}

	for _, root := range g.nodes {
		if color[root] != colorWhite {
			continue
		}

		stack := []frame{{node: root}}
		path := []string{root}
		color[root] = colorGray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			edges := g.dependents[top.node]

			if top.next < len(edges) {
				next := edges[top.next]
				top.next++

				switch color[next] {
				case colorWhite:
					color[next] = colorGray
					stack = append(stack, frame{node: next})
					path = append(path, next)
				case colorGray:
					// Back edge: the cycle is the path suffix starting
					// at the revisited node, closed by repeating it.
					for i, id := range path {
						if id == next {
							cycle := append([]string{}, path[i:]...)
							cycle = append(cycle, next)
							cycles = append(cycles, cycle)
							break
						}
					}
				}
				continue
			}

			color[top.node] = colorBlack
			stack = stack[:len(stack)-1]
			path = path[:len(path)-1]
		}
	}

	return cycles
}

// topologicalOrder runs Kahn's algorithm over an acyclic graph. Ties among
// simultaneously eligible nodes are broken by declaration order, so the
// result is identical across hosts and runs.
func (g *DependencyGraph) topologicalOrder() []string {
	indegree := make(map[string]int, len(g.nodes))
	for _, id := range g.nodes {
		indegree[id] = len(g.dependencies[id])
	}

	order := make([]string, 0, len(g.nodes))
	emitted := make(map[string]bool, len(g.nodes))

	for len(order) < len(g.nodes) {
		picked := ""
		for _, id := range g.nodes {
			if !emitted[id] && indegree[id] == 0 {
				picked = id
				break
			}
		}
		if picked == "" {
			// Unreachable on a validated graph; cycles are caught earlier.
			break
		}

		emitted[picked] = true
		order = append(order, picked)
		for _, dep := range g.dependents[picked] {
			indegree[dep]--
		}
	}

	return order
}

// Order returns the cached deterministic topological order.
func (g *DependencyGraph) Order() []string {
	return g.order
}

// Len returns the node count.
func (g *DependencyGraph) Len() int {
	return len(g.nodes)
}

// HasNode reports whether the id names a graph node.
func (g *DependencyGraph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Dependencies returns the declared dependencies of a node.
func (g *DependencyGraph) Dependencies(id string) []string {
	return g.dependencies[id]
}

// Dependents returns the direct dependents of a node.
func (g *DependencyGraph) Dependents(id string) []string {
	return g.dependents[id]
}

// TransitiveDependents returns every node downstream of the given one,
// in topological order.
func (g *DependencyGraph) TransitiveDependents(id string) []string {
	seen := map[string]bool{}
	queue := append([]string{}, g.dependents[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		queue = append(queue, g.dependents[next]...)
	}

	out := make([]string, 0, len(seen))
	for _, node := range g.order {
		if seen[node] {
			out = append(out, node)
		}
	}
	return out
}

// Roots returns the nodes with no dependencies, in declaration order.
func (g *DependencyGraph) Roots() []string {
	var roots []string
	for _, id := range g.nodes {
		if len(g.dependencies[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}
