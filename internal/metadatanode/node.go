package metadatanode

import (
	"context"
	"time"

	"github.com/anacostia-labs/anacostia/internal/alog"
	"github.com/anacostia-labs/anacostia/internal/artifact"
	"github.com/anacostia-labs/anacostia/internal/node"
	"github.com/anacostia-labs/anacostia/internal/signalbus"
)

// Hooks lets a concrete pipeline override the bookkeeping start_run/end_run
// perform, with no-op defaults.
type Hooks struct {
	StartRun func(ctx context.Context, runID int) error
	EndRun   func(ctx context.Context, runID int) error
}

// Node is the metadata-store node: the one and only root of a local DAG
// (spec §4.3). Its successors are the resource nodes; it has no
// predecessors.
type Node struct {
	*node.Base

	Store      Store
	Hooks      Hooks
	Dispatcher node.Dispatcher
}

// NewNode constructs a metadata-store node. The caller must ensure no more
// than one exists per pipeline (spec §9, "global mutable state").
func NewNode(name string, store Store, hooks Hooks, loggers ...alog.Logger) *Node {
	return &Node{
		Base:  node.NewBase(name, loggers...),
		Store: store,
		Hooks: hooks,
	}
}

// Run drives the metadata-store run loop: one iteration per run (spec
// §4.3 "Run-loop protocol").
func (n *Node) Run(ctx context.Context) {
	_ = n.SetInit(nil)
	n.SetRunning()
	for {
		if err := n.runOnce(ctx); err != nil {
			if err == node.ErrExiting {
				return
			}
			n.LogError("run cycle failed", err)
			return
		}
	}
}

func (n *Node) runOnce(ctx context.Context) error {
	// 1. Wait for every successor (resource node) to signal SUCCESS:
	// resources are ready, start a run.
	if err := n.WaitForSuccessors(ctx, signalbus.Success); err != nil {
		return err
	}

	runID := n.Store.NextRunID()

	// 2. start_run()
	if err := n.WithWork(node.StartingRun, func() error {
		if err := n.Store.RecordRunStart(runID, time.Now()); err != nil {
			return err
		}
		if n.Hooks.StartRun != nil {
			return n.Hooks.StartRun(ctx, runID)
		}
		return nil
	}); err != nil {
		return err
	}

	// 3. add_run_id(): stamp run_id onto open entries.
	if err := n.Store.StampRunID(runID); err != nil {
		return err
	}

	// 4. Send SUCCESS to all successors: a run has begun, proceed.
	if err := n.SignalSuccessorsVia(n.Dispatcher, signalbus.Success); err != nil {
		return err
	}

	// 5. Wait for every successor to signal SUCCESS again: downstream
	// finished, close the run.
	if err := n.WaitForSuccessors(ctx, signalbus.Success); err != nil {
		return err
	}

	// 6. add_end_time(), end_run().
	if err := n.WithWork(node.EndingRun, func() error {
		now := time.Now()
		if err := n.Store.AdvanceEntries(now); err != nil {
			return err
		}
		if err := n.Store.RecordRunEnd(runID, now); err != nil {
			return err
		}
		if n.Hooks.EndRun != nil {
			return n.Hooks.EndRun(ctx, runID)
		}
		return nil
	}); err != nil {
		return err
	}

	// 7. run_id += 1 happens inside RecordRunEnd; signal SUCCESS once
	// more to release successors for the next cycle.
	return n.SignalSuccessorsVia(n.Dispatcher, signalbus.Success)
}

// --- Operations exposed to neighbours and RPC callees (spec §4.3) ---

func (n *Node) GetRunID() int { return n.Store.NextRunID() }

func (n *Node) GetNodeID() string { return n.Name() }

func (n *Node) CreateEntry(resource, filepath string, state artifact.State, runID *int) (artifact.Entry, error) {
	return n.Store.CreateEntry(artifact.Entry{
		Resource:  resource,
		Location:  filepath,
		State:     state,
		RunID:     runID,
		CreatedAt: time.Now(),
	})
}

func (n *Node) MergeArtifactsTable(entries []artifact.Entry) error {
	return n.Store.MergeEntries(entries)
}

func (n *Node) EntryExists(resource, location string) (bool, error) {
	return n.Store.EntryExists(resource, location)
}

func (n *Node) GetEntries(resource string, state artifact.State) ([]artifact.Entry, error) {
	return n.Store.GetEntries(resource, state)
}

func (n *Node) GetNumEntries(resource string, state artifact.State) (int, error) {
	return n.Store.GetNumEntries(resource, state)
}

func (n *Node) LogMetrics(nodeName string, runID int, kv KV) error {
	return n.Store.LogMetrics(nodeName, runID, kv)
}

func (n *Node) LogParams(nodeName string, runID int, kv KV) error {
	return n.Store.LogParams(nodeName, runID, kv)
}

func (n *Node) SetTags(nodeName string, runID int, kv KV) error {
	return n.Store.SetTags(nodeName, runID, kv)
}

func (n *Node) GetMetrics(nodeName string, runID int) (KV, error) {
	return n.Store.GetMetrics(nodeName, runID)
}

func (n *Node) GetParams(nodeName string, runID int) (KV, error) {
	return n.Store.GetParams(nodeName, runID)
}

func (n *Node) GetTags(nodeName string, runID int) (KV, error) {
	return n.Store.GetTags(nodeName, runID)
}

func (n *Node) LogTrigger(nodeName string, message string) error {
	return n.Store.LogTrigger(nodeName, message)
}
