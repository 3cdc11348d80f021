// Package graph orders service restarts from requirement and ordering
// directives. Part of the Functional Core - no I/O.
package graph

import "sort"

// Graph is a directed dependency graph over service names. An edge from X to Y
// means X depends on Y, so Y must be handled before X.
type Graph struct {
	nodes map[string]bool
	edges map[string]map[string]bool // dependent -> dependencies
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]bool),
		edges: make(map[string]map[string]bool),
	}
}

// AddNode adds a service with no dependencies. Adding twice is a no-op.
func (g *Graph) AddNode(name string) {
	g.nodes[name] = true
}

// AddEdge records that from depends on to. Both endpoints are added as nodes.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if g.edges[from] == nil {
		g.edges[from] = make(map[string]bool)
	}
	g.edges[from][to] = true
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns all service names, sorted.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) dependencies(name string) []string {
	out := make([]string, 0, len(g.edges[name]))
	for to := range g.edges[name] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// Restart Order
// =============================================================================

// RestartOrder returns every node in dependencies-first order: for each edge
// X -> Y the result places Y before X. The order is deterministic (ties broken
// lexicographically). A cycle yields a DependencyError and no order.
func (g *Graph) RestartOrder() ([]string, error) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, NewDependencyError(cycle)
	}

	// Kahn's algorithm, dependents first, then reversed. Processing the
	// lexicographically smallest available node keeps runs reproducible.
	indegree := make(map[string]int, len(g.nodes))
	for n := range g.nodes {
		indegree[n] = 0
	}
	for _, tos := range g.edges {
		for to := range tos {
			indegree[to]++
		}
	}

	var available []string
	for n, d := range indegree {
		if d == 0 {
			available = append(available, n)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(available) > 0 {
		sort.Strings(available)
		n := available[0]
		available = available[1:]
		order = append(order, n)
		for _, to := range g.dependencies(n) {
			indegree[to]--
			if indegree[to] == 0 {
				available = append(available, to)
			}
		}
	}

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// FindCycle returns one cycle as a path whose first and last element match,
// or nil when the graph is a DAG.
func (g *Graph) FindCycle() []string {
	const (
		white = iota // unvisited
		gray         // on the current DFS path
		black        // fully explored
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = gray
		stack = append(stack, n)
		for _, to := range g.dependencies(n) {
			if color[to] == gray {
				start := 0
				for i, s := range stack {
					if s == to {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, stack[start:]...), to)
				return true
			}
			if color[to] == white && visit(to) {
				return true
			}
		}
		color[n] = black
		stack = stack[:len(stack)-1]
		return false
	}

	for _, n := range g.Nodes() {
		if color[n] == white && visit(n) {
			return cycle
		}
	}
	return nil
}
