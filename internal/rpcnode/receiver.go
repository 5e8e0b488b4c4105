package rpcnode

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anacostia-labs/anacostia/internal/node"
	"github.com/anacostia-labs/anacostia/internal/signalbus"
	"github.com/go-resty/resty/v2"
)

// Receiver lives in the downstream (leaf) pipeline. To its local graph it
// looks like a node whose sole predecessor is the real remote node running
// in the root process. /signal_leaf on the receiver's own HTTP surface is
// how the remote sender notifies it; signal_predecessors posts back to the
// sender's /signal_root.
type Receiver struct {
	*node.Base

	Client         *resty.Client
	RemoteBaseURL  string // e.g. http://root-host:8080
	RemoteNodeName string

	Dispatcher node.Dispatcher
}

// NewReceiver constructs a receiver whose single logical predecessor is
// remoteNodeName. Its local successors are left empty here — like every
// other node kind, the receiver never declares its own successors;
// pipeline.New derives them by inverting the predecessor lists of the
// other local nodes that name this receiver as their predecessor.
func NewReceiver(name, remoteBaseURL, remoteNodeName string) *Receiver {
	base := node.NewBase(name)
	return &Receiver{
		Base:           base,
		Client:         resty.New(),
		RemoteBaseURL:  remoteBaseURL,
		RemoteNodeName: remoteNodeName,
	}
}

// ConnectRemote fixes the receiver's logical predecessor to its remote
// peer, preserving whatever local successors pipeline.New already derived
// from this pipeline's other nodes declaring the receiver as a
// predecessor.
func (r *Receiver) ConnectRemote() {
	r.SetNeighbours([]string{r.RemoteNodeName}, r.Successors())
}

// Run drives the receiver's run loop (spec §4.7).
func (r *Receiver) Run(ctx context.Context) {
	_ = r.SetInit(nil)
	r.SetRunning()
	for {
		if err := r.runOnce(ctx); err != nil {
			if err == node.ErrExiting {
				return
			}
			r.LogError("run cycle failed", err)
			return
		}
	}
}

func (r *Receiver) runOnce(ctx context.Context) error {
	// Wait for the remote sender to post /signal_leaf with whichever
	// result the real upstream node actually produced.
	result, err := r.WaitForPredecessorsAny(ctx)
	if err != nil {
		return err
	}

	if err := r.SignalSuccessorsVia(r.Dispatcher, result); err != nil {
		return err
	}

	if err := r.WaitForSuccessors(ctx, signalbus.Success); err != nil {
		return err
	}

	if err := r.postSignalRoot(ctx, signalbus.Success); err != nil {
		r.LogError("signal_root failed", err)
		return err
	}
	return nil
}

func (r *Receiver) postSignalRoot(ctx context.Context, result signalbus.Result) error {
	resp, err := r.Client.R().
		SetContext(ctx).
		SetQueryParam("result", result.String()).
		Post(fmt.Sprintf("%s/%s/signal_root", r.RemoteBaseURL, r.RemoteNodeName))
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("rpcnode: signal_root returned %d", resp.StatusCode())
	}
	return nil
}

// HandleSignalLeaf is the receiver's own HTTP surface: POST /signal_leaf.
// The remote sender calls this once its local predecessors have all
// signalled.
func (r *Receiver) HandleSignalLeaf(w http.ResponseWriter, req *http.Request) {
	result := signalbus.Success
	if req.URL.Query().Get("result") == signalbus.Failure.String() {
		result = signalbus.Failure
	}
	r.PutPredecessorSignal(signalbus.Signal{Sender: r.RemoteNodeName, Result: result})
	w.WriteHeader(http.StatusOK)
}
