package node

import (
	"context"
	"testing"
	"time"

	"github.com/anacostia-labs/anacostia/internal/signalbus"
	"github.com/stretchr/testify/require"
)

func mustSignal(sender string) signalbus.Signal {
	return signalbus.Signal{Sender: sender, Result: signalbus.Success, Timestamp: time.Now()}
}

func TestTrapInterruptsPausesAndResumes(t *testing.T) {
	b := NewBase("n")
	b.SetRunning()
	b.RequestPause()

	done := make(chan error)
	go func() {
		done <- b.TrapInterrupts(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, Paused, b.Status())

	b.RequestResume()
	require.NoError(t, <-done)
	require.Equal(t, Running, b.Status())
}

func TestTrapInterruptsExits(t *testing.T) {
	onExitCalled := false
	b := NewBase("n")
	b.OnExit = func(ctx context.Context) error {
		onExitCalled = true
		return nil
	}
	b.SetRunning()
	b.RequestExit()

	err := b.TrapInterrupts(context.Background())
	require.ErrorIs(t, err, ErrExiting)
	require.True(t, onExitCalled)
	require.Equal(t, Exited, b.Status())
}

func TestWaitUntilReturnsExitingWhenAsked(t *testing.T) {
	b := NewBase("n")
	b.SetRunning()

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.RequestExit()
	}()

	err := b.WaitUntil(context.Background(), func() bool { return false })
	require.ErrorIs(t, err, ErrExiting)
}

func TestWaitForPredecessorsUnblocksOnSignal(t *testing.T) {
	b := NewBase("n")
	b.SetNeighbours([]string{"p1", "p2"}, nil)
	b.SetRunning()

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.PutPredecessorSignal(mustSignal("p1"))
		b.PutPredecessorSignal(mustSignal("p2"))
	}()

	require.NoError(t, b.WaitForPredecessors(context.Background(), signalbus.Success))
}
