package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/synthnet/internal/ir"
)

// Cycle is a feedback loop among the sources of one network.
//
// The engine processes modules in dependency order, so a loop can never
// be scheduled. graph.Network.Connect refuses the closing edge at run time;
// FindCycles reports every loop of a description up front.
type Cycle struct {
	Path    []string `json:"path"`    // ["a", "b", "a"]
	Message string   `json:"message"` // human readable
}

// FindCycles performs static cycle analysis on the connections of spec.
// Child networks are not descended into; Validate does that.
//
// The algorithm:
//  1. Build the source -> downstream sources graph from the connections
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle
//
// A DAG returns an empty list.
func FindCycles(spec ir.NetworkSpec) []Cycle {
	graph, order := buildDependencyGraph(spec)
	cycles := []Cycle{}
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	return cycles
}

// dependencyGraph maps a source name to the sources it feeds.
type dependencyGraph map[string][]string

// buildDependencyGraph returns the graph and its nodes in declaration
// order, so the analysis is deterministic.
func buildDependencyGraph(spec ir.NetworkSpec) (dependencyGraph, []string) {
	graph := make(dependencyGraph)
	var order []string
	add := func(name string) {
		if _, ok := graph[name]; !ok {
			graph[name] = nil
			order = append(order, name)
		}
	}
	for _, s := range spec.Sources {
		add(s.Name)
	}
	for _, c := range spec.Connections {
		add(c.From)
		add(c.To)
		if !contains(graph[c.From], c.To) {
			graph[c.From] = append(graph[c.From], c.To)
		}
	}
	return graph, order
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of source names.
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

		// v is a root node: pop the stack and emit an SCC
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

	return sccs
}

func sccToCycle(scc []string, graph dependencyGraph) Cycle {
	if len(scc) == 1 {
		return Cycle{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("source %s feeds itself", scc[0]),
		}
	}
	path := reconstructCyclePath(scc, graph)
	return Cycle{
		Path:    path,
		Message: fmt.Sprintf("feedback loop: %s", strings.Join(path, " -> ")),
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Start at the first node of the SCC and follow edges to unvisited SCC
// members until the start node is reached again.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool)
	for _, node := range scc {
		members[node] = true
	}

	start := scc[len(scc)-1] // Tarjan pops the root last
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
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
