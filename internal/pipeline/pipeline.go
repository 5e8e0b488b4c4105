// Package pipeline implements topological wiring, fan-out to worker
// goroutines, and pause/terminate orchestration across a DAG of nodes
// (spec §4.6). It is also the Dispatcher every node signals through — the
// "arena" spec §9 describes: nodes refer to neighbours by name and look
// them up through the pipeline instead of holding direct references to
// each other.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/anacostia-labs/anacostia/internal/metadatanode"
	"github.com/anacostia-labs/anacostia/internal/node"
	"github.com/anacostia-labs/anacostia/internal/resourcenode"
	"github.com/anacostia-labs/anacostia/internal/signalbus"
)

// Setuper is implemented by a node that needs one-time setup before it can
// move from INIT to RUNNING. Nodes that don't implement it are considered
// set up trivially.
type Setuper interface {
	Setup(ctx context.Context) error
}

// Pipeline owns every node in a local DAG by name, derives the edges from
// each node's declared predecessors, and exposes nodes in topological
// order.
type Pipeline struct {
	nodes    map[string]node.Node
	topoSort []string

	wg sync.WaitGroup
}

// New validates the graph (acyclic, every predecessor name resolves to a
// known node, exactly one metadata-store node which is the sole
// predecessor of every resource node) and constructs a Pipeline.
// Construction fails fast — before any worker starts — per spec §4.6/§7
// "Construction errors" and §3/§9's "exactly one metadata-store node;
// forbid more than one per pipeline at construction time".
func New(nodes ...node.Node) (*Pipeline, error) {
	p := &Pipeline{nodes: make(map[string]node.Node, len(nodes))}

	var metadataName string
	metadataCount := 0
	for _, n := range nodes {
		if _, exists := p.nodes[n.Name()]; exists {
			return nil, fmt.Errorf("pipeline: duplicate node name %q", n.Name())
		}
		p.nodes[n.Name()] = n
		if _, ok := n.(*metadatanode.Node); ok {
			metadataCount++
			metadataName = n.Name()
		}
	}
	if metadataCount != 1 {
		return nil, fmt.Errorf("pipeline: exactly one metadata-store node is required, found %d", metadataCount)
	}
	for _, n := range nodes {
		r, ok := n.(*resourcenode.Node)
		if !ok {
			continue
		}
		preds := r.Predecessors()
		if len(preds) != 1 || preds[0] != metadataName {
			return nil, fmt.Errorf("pipeline: resource node %q must have the metadata-store node %q as its only predecessor", n.Name(), metadataName)
		}
	}

	// Invert predecessors into successors.
	successors := make(map[string][]string)
	for _, n := range nodes {
		for _, pred := range n.Predecessors() {
			if _, ok := p.nodes[pred]; !ok {
				return nil, fmt.Errorf("pipeline: node %q declares unknown predecessor %q", n.Name(), pred)
			}
			successors[pred] = append(successors[pred], n.Name())
		}
	}
	for _, n := range nodes {
		n.SetNeighbours(n.Predecessors(), successors[n.Name()])
	}

	order, err := topoSort(p.nodes)
	if err != nil {
		return nil, err
	}
	p.topoSort = order

	return p, nil
}

// Nodes returns every node in topological order.
func (p *Pipeline) Nodes() []node.Node {
	out := make([]node.Node, len(p.topoSort))
	for i, name := range p.topoSort {
		out[i] = p.nodes[name]
	}
	return out
}

// Node looks up a node by name.
func (p *Pipeline) Node(name string) (node.Node, bool) {
	n, ok := p.nodes[name]
	return n, ok
}

// DeliverToPredecessorTable implements node.Dispatcher.
func (p *Pipeline) DeliverToPredecessorTable(nodeName string, sig signalbus.Signal) error {
	n, ok := p.nodes[nodeName]
	if !ok {
		return fmt.Errorf("pipeline: unknown node %q", nodeName)
	}
	n.PutPredecessorSignal(sig)
	return nil
}

// DeliverToSuccessorTable implements node.Dispatcher.
func (p *Pipeline) DeliverToSuccessorTable(nodeName string, sig signalbus.Signal) error {
	n, ok := p.nodes[nodeName]
	if !ok {
		return fmt.Errorf("pipeline: unknown node %q", nodeName)
	}
	n.PutSuccessorSignal(sig)
	return nil
}

// Launch starts one worker goroutine per node. Nodes transition
// OFF -> INIT -> RUNNING on their own; Launch does not block on setup
// completing (spec §4.6 "Launch").
func (p *Pipeline) Launch(ctx context.Context) {
	for _, n := range p.Nodes() {
		n := n
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if s, ok := n.(Setuper); ok {
				if err := s.Setup(ctx); err != nil {
					// Setup failure moves the node to ERROR (terminal);
					// it never starts its run loop, so dependents starve
					// waiting on it (spec §7 propagation policy).
					if b, ok := n.(interface{ SetInit(error) error }); ok {
						_ = b.SetInit(err)
					}
					return
				}
			}
			n.Run(ctx)
		}()
	}
}

// Pause walks nodes in reverse topological order, calling RequestPause on
// each. Reverse order matters: pausing a leaf before its predecessor would
// let the predecessor block forever waiting for a successor signal (spec
// §4.6 "Pause").
func (p *Pipeline) Pause() {
	nodes := p.Nodes()
	for i := len(nodes) - 1; i >= 0; i-- {
		nodes[i].RequestPause()
	}
}

// Resume walks nodes in topological order, resuming each.
func (p *Pipeline) Resume() {
	for _, n := range p.Nodes() {
		n.RequestResume()
	}
}

// Terminate walks nodes in reverse topological order requesting exit, then
// waits for every worker goroutine to finish.
func (p *Pipeline) Terminate() {
	nodes := p.Nodes()
	for i := len(nodes) - 1; i >= 0; i-- {
		nodes[i].RequestExit()
	}
	p.wg.Wait()
}

// topoSort returns node names in topological order, erroring if the graph
// contains a cycle (spec §4.6, §8 scenario 6).
func topoSort(nodes map[string]node.Node) ([]string, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("pipeline: cycle detected at node %q", name)
		}
		color[name] = gray
		n := nodes[name]
		for _, pred := range n.Predecessors() {
			if err := visit(pred); err != nil {
				return err
			}
		}
		color[name] = black
		order = append(order, name)
		return nil
	}

	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	// Deterministic traversal order keeps topoSort stable across runs.
	sort.Strings(names)

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
