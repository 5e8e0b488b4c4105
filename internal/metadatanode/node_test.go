package metadatanode

import (
	"context"
	"testing"
	"time"

	"github.com/anacostia-labs/anacostia/internal/node"
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

func TestSingleRunCycleAdvancesRunID(t *testing.T) {
	store := NewMemStore()
	m := NewNode("metadata", store, Hooks{})
	m.SetNeighbours(nil, []string{"resource1"})

	disp := newFakeDispatcher()
	disp.predecessorTables["resource1"] = signalbus.NewTable()
	m.Dispatcher = disp

	require.Equal(t, 0, m.GetRunID())

	go m.Run(context.Background())

	// resource1 "signals predecessor SUCCESS": start a run.
	m.PutSuccessorSignal(signalbus.Signal{Sender: "resource1", Result: signalbus.Success, Timestamp: time.Now()})

	require.Eventually(t, func() bool {
		return len(disp.predecessorTables["resource1"].Snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	// resource1 "signals predecessor SUCCESS" again: close the run.
	m.PutSuccessorSignal(signalbus.Signal{Sender: "resource1", Result: signalbus.Success, Timestamp: time.Now()})

	require.Eventually(t, func() bool {
		return m.GetRunID() == 1
	}, time.Second, 5*time.Millisecond)

	m.RequestExit()
}

func TestMetadataNodeStartsOff(t *testing.T) {
	m := NewNode("metadata", NewMemStore(), Hooks{})
	require.Equal(t, node.Off, m.Status())
}
