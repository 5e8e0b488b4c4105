// Package rpcnode implements the sender/receiver node pair that makes an
// edge between nodes in different processes look like an ordinary
// intra-process edge (spec §4.7).
package rpcnode

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anacostia-labs/anacostia/internal/node"
	"github.com/anacostia-labs/anacostia/internal/signalbus"
	"github.com/go-resty/resty/v2"
)

// Sender lives in the upstream (root) pipeline. To its local graph it
// looks like a node whose sole successor is the real remote node running
// in a leaf process. signal_successors posts to the remote receiver's
// /signal_leaf; /signal_root on the sender's own HTTP surface is how the
// remote side notifies it back.
type Sender struct {
	*node.Base

	Client         *resty.Client
	RemoteBaseURL  string // e.g. http://leaf-host:8081/leaf-pipeline-id
	RemoteNodeName string

	Dispatcher node.Dispatcher
}

// NewSender constructs a sender whose local predecessors are predecessors
// and whose single logical successor is remoteNodeName, reached at
// remoteBaseURL.
func NewSender(name string, predecessors []string, remoteBaseURL, remoteNodeName string) *Sender {
	base := node.NewBase(name)
	base.SetPredecessors(predecessors)
	return &Sender{
		Base:           base,
		Client:         resty.New(),
		RemoteBaseURL:  remoteBaseURL,
		RemoteNodeName: remoteNodeName,
	}
}

// ConnectRemote fixes the sender's logical successor to its remote peer.
// Call this once, after pipeline.New has wired local edges — the remote
// node is never a member of the local pipeline's node list, so the
// pipeline's predecessor-inversion never discovers it on its own.
func (s *Sender) ConnectRemote() {
	s.SetNeighbours(s.Predecessors(), []string{s.RemoteNodeName})
}

// Run drives the sender's run loop (spec §4.7).
func (s *Sender) Run(ctx context.Context) {
	_ = s.SetInit(nil)
	s.SetRunning()
	for {
		if err := s.runOnce(ctx); err != nil {
			if err == node.ErrExiting {
				return
			}
			s.LogError("run cycle failed", err)
			return
		}
	}
}

func (s *Sender) runOnce(ctx context.Context) error {
	// Wait for every local predecessor, relaying whichever result they
	// actually sent (success or failure) across the wire.
	result, err := s.WaitForPredecessorsAny(ctx)
	if err != nil {
		return err
	}

	if err := s.postSignalLeaf(ctx, result); err != nil {
		// RPC errors surface to the caller, which logs and treats the
		// round as non-SUCCESS (spec §4.8 "Failure semantics"): local
		// predecessors get FAILURE without waiting on a reply that the
		// remote side never got the signal to send.
		s.LogError("signal_leaf failed", err)
		return s.SignalPredecessorsVia(s.Dispatcher, signalbus.Failure)
	}

	// Wait for the remote receiver to post back to /signal_root.
	remoteResult, err := s.WaitForSuccessorsAny(ctx)
	if err != nil {
		return err
	}

	return s.SignalPredecessorsVia(s.Dispatcher, remoteResult)
}

func (s *Sender) postSignalLeaf(ctx context.Context, result signalbus.Result) error {
	resp, err := s.Client.R().
		SetContext(ctx).
		SetQueryParam("result", result.String()).
		Post(fmt.Sprintf("%s/%s/signal_leaf", s.RemoteBaseURL, s.RemoteNodeName))
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("rpcnode: signal_leaf returned %d", resp.StatusCode())
	}
	return nil
}

// HandleSignalRoot is the sender's own HTTP surface: POST /signal_root.
// The remote receiver calls this to notify the sender that the downstream
// round finished. No body is required; the result rides on a query param.
func (s *Sender) HandleSignalRoot(w http.ResponseWriter, r *http.Request) {
	result := signalbus.Success
	if r.URL.Query().Get("result") == signalbus.Failure.String() {
		result = signalbus.Failure
	}
	s.PutSuccessorSignal(signalbus.Signal{Sender: s.RemoteNodeName, Result: result})
	w.WriteHeader(http.StatusOK)
}
