package graph

import (
	"io"
	"log/slog"
	"runtime"
	"sync"
)

type (
	// Processor runs the nodes of a graph, once per call to ProcessGraph. The
	// worker goroutines are started once, when the processor is created, and
	// reused for all passes.
	//
	// A single mutex guards the status table and the counters. It is never
	// held while a node is processed. One condition variable stands for both
	// "work available" (some node is ready to be picked up) and "graph
	// complete" (no nodes are outstanding).
	Processor[N Node] struct {
		graph      *Graph
		nodes      []N
		numWorkers int
		logger     *slog.Logger

		mutex       sync.Mutex
		cond        sync.Cond
		status      []Status
		numReady    int // nodes in ReadyToBePickedUp
		outstanding int // nodes not yet Finished in this pass
		numSamples  int
		closed      bool
		stats       Stats
		workers     sync.WaitGroup
	}

	// Status is the state of a node during a pass. Every pass starts with
	// all nodes Waiting and ends with all nodes Finished.
	Status int

	// AcceptWorkResult is the outcome of a scan of the status table: the node
	// that the scanning goroutine should process next (-1 if there is none)
	// and how many other nodes became ready during the scan. One sleeping
	// goroutine is woken up for each of them.
	AcceptWorkResult struct {
		Node       int
		OtherReady int
	}

	// Stats are cumulative counters of the processor, mostly useful for
	// debugging and tests.
	Stats struct {
		Passes  int64 // calls to ProcessGraph
		Scans   int64 // scans of the status table
		Wakeups int64 // work available signals raised
	}

	// Option configures a Processor.
	Option func(*options)

	options struct {
		numWorkers int
		logger     *slog.Logger
	}
)

const (
	Waiting Status = iota
	ReadyToBePickedUp
	Processing
	Finished
)

var statusNames = [...]string{"Waiting", "ReadyToBePickedUp", "Processing", "Finished"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "Status(?)"
	}
	return statusNames[s]
}

// WithWorkers sets the number of worker goroutines. Zero means that all the
// nodes are processed by the goroutine calling ProcessGraph. The default is
// runtime.GOMAXPROCS(0) - 1, as the calling goroutine processes nodes too.
func WithWorkers(n int) Option {
	return func(o *options) { o.numWorkers = max(n, 0) }
}

// WithLogger sets the logger used for debug logging. Nothing is logged
// during a pass.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewProcessor creates a processor for the nodes, which must be the same
// nodes, in the same order, that the graph was built from, and starts its
// worker goroutines.
func NewProcessor[N Node](g *Graph, nodes []N, opts ...Option) *Processor[N] {
	o := options{
		numWorkers: max(runtime.GOMAXPROCS(0)-1, 0),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if g.Len() != len(nodes) {
		panic("graph.NewProcessor: graph and nodes have different lengths")
	}
	p := &Processor[N]{
		graph:      g,
		nodes:      nodes,
		numWorkers: o.numWorkers,
		logger:     o.logger,
		status:     make([]Status, len(nodes)),
	}
	p.cond.L = &p.mutex
	for i := range p.status {
		p.status[i] = Finished
	}
	p.workers.Add(p.numWorkers)
	for i := 0; i < p.numWorkers; i++ {
		go p.worker()
	}
	p.logger.Debug("Processor started.", "nodes", len(nodes), "workers", p.numWorkers)
	return p
}

// ProcessGraph processes every node of the graph exactly once, with
// numSamples, and returns when all of them have finished. The calling
// goroutine processes nodes too. ProcessGraph must not be called
// concurrently with itself or with Close.
func (p *Processor[N]) ProcessGraph(numSamples int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.stats.Passes++
	if len(p.nodes) == 0 {
		return
	}
	// No worker can claim anything before the first scan below: numReady is
	// zero and the lock is held.
	for i := range p.status {
		p.status[i] = Waiting
	}
	p.numReady = 0
	p.outstanding = len(p.nodes)
	p.numSamples = numSamples
	work := p.acceptWork()
	for {
		for work.Node >= 0 {
			work = p.process(work.Node)
		}
		for p.numReady == 0 && p.outstanding > 0 {
			p.cond.Wait()
		}
		if p.outstanding == 0 {
			return
		}
		work = p.acceptWork()
	}
}

// Status returns the status of node i in the current or the last pass.
func (p *Processor[N]) Status(i int) Status {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.status[i]
}

// Stats returns the cumulative counters of the processor.
func (p *Processor[N]) Stats() Stats {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.stats
}

// NumWorkers returns the number of worker goroutines.
func (p *Processor[N]) NumWorkers() int {
	return p.numWorkers
}

// Close stops the worker goroutines and waits for them to exit. The
// processor cannot be used after Close.
func (p *Processor[N]) Close() {
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mutex.Unlock()
	p.workers.Wait()
	p.logger.Debug("Processor closed.", "passes", p.stats.Passes, "scans", p.stats.Scans, "wakeups", p.stats.Wakeups)
}

func (p *Processor[N]) worker() {
	defer p.workers.Done()
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for {
		for p.numReady == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			return
		}
		work := p.acceptWork()
		for work.Node >= 0 {
			work = p.process(work.Node)
		}
	}
}

// process runs a node outside the lock, marks it finished and scans for the
// next node to process. The lock is held when process is called and when it
// returns.
func (p *Processor[N]) process(node int) AcceptWorkResult {
	p.processUnlocked(node, p.numSamples)
	p.status[node] = Finished
	p.outstanding--
	if p.outstanding == 0 {
		p.cond.Broadcast() // graph complete
		return AcceptWorkResult{Node: -1}
	}
	return p.acceptWork()
}

// processUnlocked runs the node without the lock. The lock is reacquired
// even if the node panics.
func (p *Processor[N]) processUnlocked(node, numSamples int) {
	p.mutex.Unlock()
	defer p.mutex.Lock()
	p.nodes[node].Process(numSamples)
}

// acceptWork promotes every waiting node whose dependencies have all
// finished, claims the ready node with the most dependents (the first one in
// case of a tie) and signals one sleeping goroutine for every other node that
// became ready. Must be called with the lock held.
func (p *Processor[N]) acceptWork() AcceptWorkResult {
	p.stats.Scans++
	promoted := 0
	best, bestPromoted := -1, false
	for i, s := range p.status {
		isPromoted := false
		if s == Waiting && p.dependenciesFinished(i) {
			p.status[i] = ReadyToBePickedUp
			s = ReadyToBePickedUp
			isPromoted = true
			promoted++
		}
		if s == ReadyToBePickedUp && (best < 0 || p.graph.dependents[i] > p.graph.dependents[best]) {
			best, bestPromoted = i, isPromoted
		}
	}
	p.numReady += promoted
	ret := AcceptWorkResult{Node: best, OtherReady: promoted}
	if best >= 0 {
		p.status[best] = Processing
		p.numReady--
		if bestPromoted {
			ret.OtherReady--
		}
	}
	for range ret.OtherReady {
		p.cond.Signal() // work available
	}
	p.stats.Wakeups += int64(ret.OtherReady)
	return ret
}

func (p *Processor[N]) dependenciesFinished(i int) bool {
	for _, d := range p.graph.deps[i] {
		if p.status[d] != Finished {
			return false
		}
	}
	return true
}
