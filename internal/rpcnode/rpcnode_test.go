package rpcnode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anacostia-labs/anacostia/internal/signalbus"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	predecessorTables map[string]*signalbus.Table
	successorTables   map[string]*signalbus.Table
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		predecessorTables: map[string]*signalbus.Table{},
		successorTables:   map[string]*signalbus.Table{},
	}
}

func (f *fakeDispatcher) DeliverToPredecessorTable(name string, sig signalbus.Signal) error {
	f.predecessorTables[name].Put(sig)
	return nil
}

func (f *fakeDispatcher) DeliverToSuccessorTable(name string, sig signalbus.Signal) error {
	f.successorTables[name].Put(sig)
	return nil
}

// TestSenderRelaysPredecessorResultAcrossTheWire drives a Sender through a
// full round using a stub remote receiver HTTP server, and confirms the
// result the remote peer posts back via /signal_root is what eventually
// reaches the sender's local predecessor (in action1's successor-signal
// table).
func TestSenderRelaysPredecessorResultAcrossTheWire(t *testing.T) {
	var gotSignalLeaf bool
	mux := http.NewServeMux()
	mux.HandleFunc("/receiver1/signal_leaf", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, signalbus.Success.String(), r.URL.Query().Get("result"))
		gotSignalLeaf = true
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewSender("sender1", []string{"action1"}, srv.URL, "receiver1")
	s.SetNeighbours([]string{"action1"}, []string{"receiver1"})

	disp := newFakeDispatcher()
	disp.successorTables["action1"] = signalbus.NewTable()
	s.Dispatcher = disp

	go s.Run(context.Background())

	s.PutPredecessorSignal(signalbus.Signal{Sender: "action1", Result: signalbus.Success, Timestamp: time.Now()})

	require.Eventually(t, func() bool {
		return gotSignalLeaf
	}, time.Second, 5*time.Millisecond)

	// Simulate the remote receiver posting back to /signal_root once its
	// own downstream round closes.
	req := httptest.NewRequest(http.MethodPost, "/signal_root?result=SUCCESS", nil)
	w := httptest.NewRecorder()
	s.HandleSignalRoot(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		snap := disp.successorTables["action1"].Snapshot()
		return snap["sender1"].Result == signalbus.Success
	}, time.Second, 5*time.Millisecond)

	s.RequestExit()
}

// TestReceiverRelaysFailureToLocalSuccessorsAndPostsBack exercises a
// Receiver end to end: an incoming /signal_leaf FAILURE should propagate
// to local successors and still close the round with a POST back to
// /signal_root.
func TestReceiverRelaysFailureToLocalSuccessorsAndPostsBack(t *testing.T) {
	var gotSignalRoot bool
	mux := http.NewServeMux()
	mux.HandleFunc("/sender1/signal_root", func(w http.ResponseWriter, r *http.Request) {
		gotSignalRoot = true
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := NewReceiver("receiver1", srv.URL, "sender1")
	r.SetNeighbours([]string{"sender1"}, []string{"sink1"})

	disp := newFakeDispatcher()
	disp.predecessorTables["sink1"] = signalbus.NewTable()
	r.Dispatcher = disp

	go r.Run(context.Background())

	req := httptest.NewRequest(http.MethodPost, "/signal_leaf?result=FAILURE", nil)
	w := httptest.NewRecorder()
	r.HandleSignalLeaf(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		snap := disp.predecessorTables["sink1"].Snapshot()
		return snap["receiver1"].Result == signalbus.Failure
	}, time.Second, 5*time.Millisecond)

	r.PutSuccessorSignal(signalbus.Signal{Sender: "sink1", Result: signalbus.Success, Timestamp: time.Now()})

	require.Eventually(t, func() bool {
		return gotSignalRoot
	}, time.Second, 5*time.Millisecond)

	r.RequestExit()
}
