// Package graph executes a static dependency graph of nodes once per render
// pass, on a fixed pool of worker goroutines plus the calling goroutine. Each
// node runs exactly once per pass and never before all of its dependencies
// have finished.
package graph

import (
	"fmt"
	"math/bits"
	"slices"
	"strings"
)

type (
	// Node is a unit of work in the graph. Dependency(i) returns the index of
	// the i:th node this node depends on, in the slice of nodes the graph was
	// built from.
	Node interface {
		NumDependencies() int
		Dependency(i int) int
		Process(numSamples int)
	}

	// Graph is the static structure of the dependency graph: the dependencies
	// of every node, a topological order and the scheduling priority of every
	// node. A Graph is immutable after Build.
	Graph struct {
		deps       [][]int
		order      []int
		dependents []int
	}

	// CycleError is returned by Build when the dependencies form a cycle.
	// Nodes lists the nodes of the cycle: each node depends on the next one
	// and the last depends on the first.
	CycleError struct {
		Nodes []int
	}
)

// Build builds the dependency graph of the nodes. It rejects dependencies to
// nodes that do not exist, nodes that depend on themselves and cycles.
func Build[N Node](nodes []N) (*Graph, error) {
	g := &Graph{deps: make([][]int, len(nodes))}
	for i, n := range nodes {
		c := n.NumDependencies()
		g.deps[i] = make([]int, c)
		for j := range c {
			d := n.Dependency(j)
			if d < 0 || d >= len(nodes) {
				return nil, fmt.Errorf("node %v: dependency %v out of range [0,%v)", i, d, len(nodes))
			}
			if d == i {
				return nil, fmt.Errorf("node %v depends on itself", i)
			}
			g.deps[i][j] = d
		}
	}
	order, err := topologicalOrder(g.deps)
	if err != nil {
		return nil, err
	}
	g.order = order
	g.dependents = countDependents(g.deps, order)
	return g, nil
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.deps)
}

// Dependencies returns the direct dependencies of node i. The returned slice
// should not be modified.
func (g *Graph) Dependencies(i int) []int {
	return g.deps[i]
}

// Order returns the nodes in a topological order: every node comes after
// all of its dependencies.
func (g *Graph) Order() []int {
	return slices.Clone(g.order)
}

// DependentCount returns the number of distinct nodes that depend on node i,
// directly or transitively. The scheduler prefers ready nodes with more
// dependents, as they are more likely to be on the critical path.
func (g *Graph) DependentCount(i int) int {
	return g.dependents[i]
}

func (e *CycleError) Error() string {
	var b strings.Builder
	for _, n := range e.Nodes {
		fmt.Fprintf(&b, "%v -> ", n)
	}
	if len(e.Nodes) > 0 {
		fmt.Fprintf(&b, "%v", e.Nodes[0])
	}
	return "dependency cycle: " + b.String()
}

// topologicalOrder does an iterative coloring depth-first search over the
// dependencies and returns the nodes in post order, which puts dependencies
// before their dependents.
func topologicalOrder(deps [][]int) ([]int, error) {
	const (
		white = iota
		gray
		black
	)
	type frame struct {
		node, next int
	}
	color := make([]byte, len(deps))
	order := make([]int, 0, len(deps))
	var stack []frame
	for root := range deps {
		if color[root] != white {
			continue
		}
		color[root] = gray
		stack = append(stack[:0], frame{node: root})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next == len(deps[top.node]) {
				color[top.node] = black
				order = append(order, top.node)
				stack = stack[:len(stack)-1]
				continue
			}
			d := deps[top.node][top.next]
			top.next++
			switch color[d] {
			case white:
				color[d] = gray
				stack = append(stack, frame{node: d})
			case gray:
				var cycle []int
				for i := len(stack) - 1; i >= 0; i-- {
					cycle = append(cycle, stack[i].node)
					if stack[i].node == d {
						break
					}
				}
				slices.Reverse(cycle)
				return nil, &CycleError{Nodes: cycle}
			}
		}
	}
	return order, nil
}

// countDependents computes, for every node, how many distinct nodes reach it
// through their dependencies. The transitive dependency set of each node is
// a bitset, built in topological order from the sets of its dependencies, so
// shared dependencies are counted only once.
func countDependents(deps [][]int, order []int) []int {
	n := len(deps)
	words := (n + 63) / 64
	reach := make([]uint64, n*words)
	set := func(i int) []uint64 { return reach[i*words : (i+1)*words] }
	for _, i := range order {
		s := set(i)
		for _, d := range deps[i] {
			s[d/64] |= 1 << (d % 64)
			for w, v := range set(d) {
				s[w] |= v
			}
		}
	}
	ret := make([]int, n)
	for i := range n {
		for w, v := range set(i) {
			for v != 0 {
				b := bits.TrailingZeros64(v)
				ret[w*64+b]++
				v &= v - 1
			}
		}
	}
	return ret
}
