package resourcenode

import (
	"context"

	"github.com/anacostia-labs/anacostia/internal/alog"
	"github.com/anacostia-labs/anacostia/internal/artifact"
	"github.com/anacostia-labs/anacostia/internal/node"
	"github.com/anacostia-labs/anacostia/internal/signalbus"
)

// MetadataClient is what a resource node needs from the metadata-store
// node. A local pipeline satisfies it with a thin adapter around
// *metadatanode.Node; a cross-process leaf satisfies it with the RPC
// client from internal/rpcnode (spec §4.9).
type MetadataClient interface {
	CreateEntry(resource, location string, state artifact.State, runID *int) (artifact.Entry, error)
}

// Node is a resource node: metadata-store is its only predecessor (spec
// §3 invariant), zero or more action nodes are its successors.
type Node struct {
	*node.Base

	Monitoring bool
	Hooks      Hooks
	Metadata   MetadataClient
	Dispatcher node.Dispatcher

	// ResourcePath is the filesystem root the resource RPC callee streams
	// artifacts to/from when this node is mounted on a root/leaf server
	// (spec §4.9, §6 "Persisted state layout"). Empty for resource nodes
	// with no on-disk backing store.
	ResourcePath string

	watcher *Watcher
}

// NewNode constructs a resource node whose sole predecessor is
// metadataNodeName (spec §3 invariant: "every resource node has the
// metadata-store as its only predecessor"). hooks.fillDefaults is applied
// so every unset hook behaves per spec (TriggerCondition defaults true,
// the rest default to no-ops).
func NewNode(name, metadataNodeName string, monitoring bool, hooks Hooks, metadata MetadataClient, loggers ...alog.Logger) *Node {
	hooks.fillDefaults()
	base := node.NewBase(name, loggers...)
	base.SetPredecessors([]string{metadataNodeName})
	return &Node{
		Base:       base,
		Monitoring: monitoring,
		Hooks:      hooks,
		Metadata:   metadata,
	}
}

// Run drives the resource node's run loop (spec §4.4).
func (n *Node) Run(ctx context.Context) {
	_ = n.SetInit(nil)
	n.SetRunning()

	if n.Monitoring {
		if err := n.Hooks.StartMonitoring(ctx); err != nil {
			n.LogError("start_monitoring failed", err)
		}
		defer func() {
			if err := n.Hooks.StopMonitoring(ctx); err != nil {
				n.LogError("stop_monitoring failed", err)
			}
		}()
	}

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
	// a. if monitoring, busy-loop trigger_condition() until true.
	if n.Monitoring {
		if err := n.WithWork(node.WaitingResource, func() error {
			return n.WaitUntil(ctx, func() bool {
				ok, err := n.Hooks.TriggerCondition(ctx)
				if err != nil {
					n.LogError("trigger_condition failed", err)
					return false // logged and swallowed, spec §7
				}
				return ok
			})
		}); err != nil {
			return err
		}
	}

	// b. signal predecessor (metadata-store) SUCCESS: start a run.
	if err := n.SignalPredecessorsVia(n.Dispatcher, signalbus.Success); err != nil {
		return err
	}

	// c. wait for predecessor to signal SUCCESS: run started.
	if err := n.WaitForPredecessors(ctx, signalbus.Success); err != nil {
		return err
	}

	// d. signal all successors SUCCESS: use the current snapshot. Record
	// the current snapshot transition before releasing successors onto
	// it, as spec §4.4 describes ("typically at d").
	if err := n.Hooks.RecordCurrent(ctx); err != nil {
		n.LogError("record_current failed", err)
	}
	if err := n.SignalSuccessorsVia(n.Dispatcher, signalbus.Success); err != nil {
		return err
	}

	// e. wait for all successors to signal SUCCESS: downstream done.
	if err := n.WaitForSuccessors(ctx, signalbus.Success); err != nil {
		return err
	}

	// f. signal predecessor SUCCESS: close the run.
	if err := n.SignalPredecessorsVia(n.Dispatcher, signalbus.Success); err != nil {
		return err
	}

	// g. wait for predecessor to signal SUCCESS: run closed.
	return n.WaitForPredecessors(ctx, signalbus.Success)
}

// RecordNew is called by a resource's monitoring watcher on every
// relevant filesystem change. It registers a new artifact entry through
// the metadata store and then invokes the user hook.
func (n *Node) RecordNew(ctx context.Context, location string) error {
	if _, err := n.Metadata.CreateEntry(n.Name(), location, artifact.StateNew, nil); err != nil {
		return err
	}
	return n.Hooks.RecordNew(ctx, location)
}

// --- observability / artifact-access passthroughs (spec §4.4) ---

func (n *Node) GetNumArtifacts(state artifact.State) (int, error) {
	if n.Hooks.GetNumArtifacts == nil {
		return 0, nil
	}
	return n.Hooks.GetNumArtifacts(state)
}

func (n *Node) ListArtifacts(state artifact.State) ([]string, error) {
	if n.Hooks.ListArtifacts == nil {
		return nil, nil
	}
	return n.Hooks.ListArtifacts(state)
}

func (n *Node) LoadArtifact(location string) ([]byte, error) {
	if n.Hooks.LoadArtifact == nil {
		return nil, nil
	}
	return n.Hooks.LoadArtifact(location)
}

func (n *Node) SaveArtifact(location string, data []byte) error {
	if n.Hooks.SaveArtifact == nil {
		return nil
	}
	return n.Hooks.SaveArtifact(location, data)
}
