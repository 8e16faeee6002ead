package graph

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T, nodes []*testNode, workers int) *Processor[*testNode] {
	t.Helper()
	g, err := Build(nodes)
	require.NoError(t, err)
	p := NewProcessor(g, nodes, WithWorkers(workers))
	t.Cleanup(p.Close)
	return p
}

// randomDAG makes a graph where every node depends on a random subset of the
// nodes before it, so it is acyclic by construction.
func randomDAG(rng *rand.Rand, n int) [][]int {
	deps := make([][]int, n)
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			if rng.Intn(4) == 0 {
				deps[i] = append(deps[i], j)
			}
		}
	}
	return deps
}

func TestProcessGraphRunsEveryNodeOncePerPass(t *testing.T) {
	for _, workers := range []int{0, 1, 2, 4, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(workers)))
			nodes := nodesOf(randomDAG(rng, 40)...)
			counts := make([]atomic.Int32, len(nodes))
			for i, n := range nodes {
				n.process = func(numSamples int) {
					assert.Equal(t, 64, numSamples)
					counts[i].Add(1)
				}
			}
			p := newTestProcessor(t, nodes, workers)
			const passes = 50
			for pass := 1; pass <= passes; pass++ {
				p.ProcessGraph(64)
				for i := range nodes {
					require.Equal(t, int32(pass), counts[i].Load(), "node %v", i)
					require.Equal(t, Finished, p.Status(i))
				}
			}
			assert.Equal(t, int64(passes), p.Stats().Passes)
		})
	}
}

func TestProcessGraphRespectsDependencies(t *testing.T) {
	// A <- B <- C: C receives from B, B receives from A. Random delays shake
	// the interleavings; a node must never start before its dependencies
	// have finished.
	for _, workers := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			nodes := nodesOf(nil, []int{0}, []int{1}, nil, []int{3}, []int{2, 4})
			var p *Processor[*testNode]
			var mu sync.Mutex
			rng := rand.New(rand.NewSource(1))
			var violations atomic.Int32
			for i, n := range nodes {
				n.process = func(int) {
					for _, d := range nodes[i].deps {
						if p.Status(d) != Finished {
							violations.Add(1)
						}
					}
					if p.Status(i) != Processing {
						violations.Add(1)
					}
					mu.Lock()
					delay := time.Duration(rng.Intn(200)) * time.Microsecond
					mu.Unlock()
					time.Sleep(delay)
				}
			}
			p = newTestProcessor(t, nodes, workers)
			for range 100 {
				p.ProcessGraph(1)
			}
			assert.Zero(t, violations.Load())
		})
	}
}

func TestProcessGraphNeverRunsANodeConcurrently(t *testing.T) {
	nodes := nodesOf(nil, nil, nil, []int{0, 1, 2}, nil, []int{4})
	running := make([]atomic.Int32, len(nodes))
	var overlaps atomic.Int32
	for i, n := range nodes {
		n.process = func(int) {
			if running[i].Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(10 * time.Microsecond)
			running[i].Add(-1)
		}
	}
	p := newTestProcessor(t, nodes, 6)
	for range 200 {
		p.ProcessGraph(1)
	}
	assert.Zero(t, overlaps.Load())
}

func TestProcessGraphPrefersNodesWithMoreDependents(t *testing.T) {
	// node 0 has no dependents, node 1 is the head of a chain 1 <- 2 <- 3.
	// Once 2 has finished, 0 and 3 are both ready with no dependents and the
	// tie goes to the lower index.
	nodes := nodesOf(nil, nil, []int{1}, []int{2})
	var order []int
	for i, n := range nodes {
		n.process = func(int) { order = append(order, i) }
	}
	p := newTestProcessor(t, nodes, 0)
	p.ProcessGraph(1)
	assert.Equal(t, []int{1, 2, 0, 3}, order)
}

func TestAcceptWork(t *testing.T) {
	// three roots; 2 has a dependent so it is picked, the other two roots
	// are counted as other ready nodes
	nodes := nodesOf(nil, nil, nil, []int{2})
	p := newTestProcessor(t, nodes, 0)
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for i := range p.status {
		p.status[i] = Waiting
	}
	p.outstanding = len(nodes)

	res := p.acceptWork()
	assert.Equal(t, AcceptWorkResult{Node: 2, OtherReady: 2}, res)
	assert.Equal(t, Processing, p.status[2])
	assert.Equal(t, Waiting, p.status[3])
	assert.Equal(t, 2, p.numReady)

	// nothing new becomes ready, the first of the already ready nodes is
	// claimed and no one needs to be woken up
	res = p.acceptWork()
	assert.Equal(t, AcceptWorkResult{Node: 0, OtherReady: 0}, res)

	// finishing 2 makes 3 ready; 3 and 1 have equal priority, 1 comes first
	p.status[2] = Finished
	res = p.acceptWork()
	assert.Equal(t, AcceptWorkResult{Node: 1, OtherReady: 1}, res)
	assert.Equal(t, ReadyToBePickedUp, p.status[3])

	res = p.acceptWork()
	assert.Equal(t, AcceptWorkResult{Node: 3, OtherReady: 0}, res)

	res = p.acceptWork()
	assert.Equal(t, AcceptWorkResult{Node: -1, OtherReady: 0}, res)
}

func TestProcessGraphPropagatesNodePanics(t *testing.T) {
	nodes := nodesOf(nil, []int{0})
	nodes[1].process = func(int) { panic("node failed") }
	p := newTestProcessor(t, nodes, 0)
	assert.PanicsWithValue(t, "node failed", func() { p.ProcessGraph(1) })
	// the lock was released on the way out
	assert.Equal(t, Processing, p.Status(1))
}

func TestProcessGraphEmpty(t *testing.T) {
	p := newTestProcessor(t, nil, 2)
	p.ProcessGraph(10)
	assert.Equal(t, int64(1), p.Stats().Passes)
}

func TestCloseIsIdempotent(t *testing.T) {
	p := newTestProcessor(t, nodesOf(nil, []int{0}), 3)
	p.ProcessGraph(1)
	p.Close()
	p.Close()
	assert.Equal(t, 3, p.NumWorkers())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "ReadyToBePickedUp", ReadyToBePickedUp.String())
	assert.Equal(t, "Status(?)", Status(42).String())
}
