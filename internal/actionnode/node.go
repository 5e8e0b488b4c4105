// Package actionnode implements the action node: the consumer that runs
// user logic once per run, between predecessor-ready and successor-done
// (spec §4.5).
package actionnode

import (
	"context"

	"github.com/anacostia-labs/anacostia/internal/alog"
	"github.com/anacostia-labs/anacostia/internal/node"
	"github.com/anacostia-labs/anacostia/internal/signalbus"
)

// Hooks are the user-overridable pieces of an action node. Only Execute is
// required; the rest default to no-ops.
type Hooks struct {
	BeforeExecution func(ctx context.Context) error
	Execute         func(ctx context.Context) (bool, error)
	OnSuccess       func(ctx context.Context) error
	OnFailure       func(ctx context.Context) error
	OnError         func(ctx context.Context, cause error) error
	AfterExecution  func(ctx context.Context) error
}

func (h *Hooks) fillDefaults() {
	noop := func(context.Context) error { return nil }
	if h.BeforeExecution == nil {
		h.BeforeExecution = noop
	}
	if h.OnSuccess == nil {
		h.OnSuccess = noop
	}
	if h.OnFailure == nil {
		h.OnFailure = noop
	}
	if h.OnError == nil {
		h.OnError = func(context.Context, error) error { return nil }
	}
	if h.AfterExecution == nil {
		h.AfterExecution = noop
	}
}

// Node is an action node.
type Node struct {
	*node.Base

	Hooks      Hooks
	Dispatcher node.Dispatcher
}

// NewNode constructs an action node depending on predecessors (resource
// nodes and/or other action nodes).
func NewNode(name string, predecessors []string, hooks Hooks, loggers ...alog.Logger) *Node {
	hooks.fillDefaults()
	base := node.NewBase(name, loggers...)
	base.SetPredecessors(predecessors)
	return &Node{
		Base:  base,
		Hooks: hooks,
	}
}

// Run drives the action node's run loop (spec §4.5).
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
	// 1. wait for all predecessors to signal SUCCESS.
	if err := n.WaitForPredecessors(ctx, signalbus.Success); err != nil {
		return err
	}

	ret := n.executeOnce(ctx)

	result := signalbus.Failure
	if ret {
		result = signalbus.Success
	}

	// 6. signal successors SUCCESS iff ret, else FAILURE.
	if err := n.SignalSuccessorsVia(n.Dispatcher, result); err != nil {
		return err
	}

	// 7. wait for all successors to signal SUCCESS.
	if err := n.WaitForSuccessors(ctx, signalbus.Success); err != nil {
		return err
	}

	// 8. signal predecessors SUCCESS iff ret, else FAILURE.
	return n.SignalPredecessorsVia(n.Dispatcher, result)
}

// executeOnce runs steps 2-5 of the protocol and returns the final ret
// value. Any error raised by user hooks is caught here — it never
// propagates out of the run loop (spec §4.2 "Exception discipline").
func (n *Node) executeOnce(ctx context.Context) (ret bool) {
	if err := n.WithWork(node.BeforeExecution, func() error {
		return n.Hooks.BeforeExecution(ctx)
	}); err != nil {
		n.LogError("before_execution failed", err)
	}

	var execErr error
	_ = n.WithWork(node.Execution, func() error {
		ret, execErr = n.Hooks.Execute(ctx)
		return nil
	})

	if execErr != nil {
		ret = false
		_ = n.WithWork(node.OnError, func() error {
			return n.Hooks.OnError(ctx, execErr)
		})
	}

	if ret {
		if err := n.WithWork(node.OnSuccess, func() error {
			return n.Hooks.OnSuccess(ctx)
		}); err != nil {
			n.LogError("on_success failed", err)
		}
	} else {
		if err := n.WithWork(node.OnFailure, func() error {
			return n.Hooks.OnFailure(ctx)
		}); err != nil {
			n.LogError("on_failure failed", err)
		}
	}

	if err := n.WithWork(node.AfterExecution, func() error {
		return n.Hooks.AfterExecution(ctx)
	}); err != nil {
		n.LogError("after_execution failed", err)
	}

	return ret
}
