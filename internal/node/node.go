package node

import (
	"context"

	"github.com/anacostia-labs/anacostia/internal/signalbus"
)

// Node is the interface the pipeline drives. Every concrete node kind
// (metadata-store, resource, action, rpc sender/receiver) embeds *Base and
// implements Run.
type Node interface {
	Name() string
	Predecessors() []string
	Successors() []string
	SetNeighbours(predecessors, successors []string)
	Status() Status
	WorkList() []WorkTag

	// Run drives the node's run loop until TrapInterrupts returns
	// ErrExiting or a run cycle fails. Run is called once, on its own
	// goroutine, by the pipeline at Launch; for a node implementing
	// pipeline.Setuper, the pipeline calls Setup first and only calls Run
	// if Setup succeeded.
	Run(ctx context.Context)

	RequestPause()
	RequestResume()
	RequestExit()

	PutPredecessorSignal(sig signalbus.Signal)
	PutSuccessorSignal(sig signalbus.Signal)
}

// Dispatcher looks up a node by name and delivers a signal into the right
// mailbox on it. The pipeline is the only implementation; it is how a node
// reaches a neighbour without holding a direct reference to it (spec §9,
// "break with an arena").
//
// A node signalling its successors calls DeliverToPredecessorTable on each
// successor's name (the signal lands in the successor's "predecessors"
// table); a node signalling its predecessors calls
// DeliverToSuccessorTable (the signal lands in the predecessor's
// "successors" table).
type Dispatcher interface {
	DeliverToPredecessorTable(nodeName string, sig signalbus.Signal) error
	DeliverToSuccessorTable(nodeName string, sig signalbus.Signal) error
}
