package actionnode

import (
	"context"
	"errors"
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

func TestActionSucceedsAndPropagatesSuccess(t *testing.T) {
	n := NewNode("action1", []string{"resource1"}, Hooks{
		Execute: func(ctx context.Context) (bool, error) { return true, nil },
	})
	n.SetNeighbours([]string{"resource1"}, []string{"sink1"})

	disp := newFakeDispatcher()
	disp.predecessorTables["sink1"] = signalbus.NewTable()
	disp.successorTables["resource1"] = signalbus.NewTable()
	n.Dispatcher = disp

	go n.Run(context.Background())

	n.PutPredecessorSignal(signalbus.Signal{Sender: "resource1", Result: signalbus.Success, Timestamp: time.Now()})

	require.Eventually(t, func() bool {
		snap := disp.predecessorTables["sink1"].Snapshot()
		return snap["action1"].Result == signalbus.Success
	}, time.Second, 5*time.Millisecond)

	n.PutSuccessorSignal(signalbus.Signal{Sender: "sink1", Result: signalbus.Success, Timestamp: time.Now()})

	require.Eventually(t, func() bool {
		snap := disp.successorTables["resource1"].Snapshot()
		return snap["action1"].Result == signalbus.Success
	}, time.Second, 5*time.Millisecond)

	n.RequestExit()
}

func TestActionFailureStillClosesRound(t *testing.T) {
	var onErrorCalled, onFailureCalled bool
	n := NewNode("action1", nil, Hooks{
		Execute: func(ctx context.Context) (bool, error) { return false, errors.New("boom") },
		OnError: func(ctx context.Context, cause error) error {
			onErrorCalled = true
			return nil
		},
		OnFailure: func(ctx context.Context) error {
			onFailureCalled = true
			return nil
		},
	})
	n.SetNeighbours(nil, []string{"sink1"})

	disp := newFakeDispatcher()
	disp.predecessorTables["sink1"] = signalbus.NewTable()
	n.Dispatcher = disp

	go n.Run(context.Background())

	require.Eventually(t, func() bool {
		snap := disp.predecessorTables["sink1"].Snapshot()
		return snap["action1"].Result == signalbus.Failure
	}, time.Second, 5*time.Millisecond)

	require.True(t, onErrorCalled)
	require.True(t, onFailureCalled)

	n.PutSuccessorSignal(signalbus.Signal{Sender: "sink1", Result: signalbus.Success, Timestamp: time.Now()})
	n.RequestExit()
}
