// Package node implements the lifecycle shared by every node kind in the
// DAG: the status machine, work-list reporting, interrupt trapping and the
// signal send/wait plumbing every run loop is built from (spec §4.2).
package node

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anacostia-labs/anacostia/internal/alog"
	"github.com/anacostia-labs/anacostia/internal/signalbus"
)

// ErrExiting is returned by wait helpers when the node has been asked to
// exit mid-wait, so the caller unwinds the run loop instead of looping
// forever.
var ErrExiting = errors.New("node: exiting")

// PauseSpinInterval and PollInterval are the cooperative-yield sleep
// durations from spec §4.2/§5 (100 ms while PAUSING, 200 ms at every other
// suspension point).
var (
	PauseSpinInterval = 100 * time.Millisecond
	PollInterval      = 200 * time.Millisecond
)

// OnExitFunc is called once, synchronously, when a node transitions to
// EXITING, before it reports EXITED.
type OnExitFunc func(ctx context.Context) error

// Base is embedded by every concrete node kind (metadata-store, resource,
// action, rpc sender/receiver). It owns the status machine, the two signal
// tables, the work list and the neighbour name lists; it does not know the
// shape of any particular run-loop protocol.
type Base struct {
	name string

	mu           sync.Mutex
	status       Status
	predecessors []string
	successors   []string
	work         []WorkTag

	PredecessorSignals *signalbus.Table
	SuccessorSignals   *signalbus.Table

	loggers []alog.Logger

	OnExit OnExitFunc
}

// NewBase constructs a Base in OFF status with empty signal tables.
func NewBase(name string, loggers ...alog.Logger) *Base {
	return &Base{
		name:               name,
		status:             Off,
		PredecessorSignals: signalbus.NewTable(),
		SuccessorSignals:   signalbus.NewTable(),
		loggers:            loggers,
	}
}

// Name returns the node's globally unique name.
func (b *Base) Name() string { return b.name }

// SetNeighbours is called exactly once by the pipeline at construction time.
func (b *Base) SetNeighbours(predecessors, successors []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.predecessors = predecessors
	b.successors = successors
}

// SetPredecessors declares this node's predecessors ahead of pipeline
// construction. The pipeline inverts these into every predecessor's
// successor list and then calls SetNeighbours with both halves filled in.
func (b *Base) SetPredecessors(predecessors []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.predecessors = predecessors
}

// Predecessors returns the ordered list of predecessor names.
func (b *Base) Predecessors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.predecessors...)
}

// Successors returns the ordered list of successor names.
func (b *Base) Successors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.successors...)
}

// Status returns the current lifecycle status.
func (b *Base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *Base) setStatus(s Status) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
}

// RequestPause asks the node to pause. Non-blocking: observed at the next
// trap point, typically within PollInterval.
func (b *Base) RequestPause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == Running || b.status == Waiting {
		b.status = Pausing
	}
}

// RequestResume clears a PAUSED node back to RUNNING.
func (b *Base) RequestResume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == Paused || b.status == Pausing {
		b.status = Running
	}
}

// RequestExit asks the node to exit. Non-blocking.
func (b *Base) RequestExit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != Exited && b.status != Error {
		b.status = Exiting
	}
}

// WorkList returns a snapshot of the current work tags, outermost first
// (innermost last).
func (b *Base) WorkList() []WorkTag {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]WorkTag(nil), b.work...)
}

func (b *Base) pushWork(tag WorkTag) {
	b.mu.Lock()
	b.work = append(b.work, tag)
	b.mu.Unlock()
}

func (b *Base) popWork() {
	b.mu.Lock()
	if len(b.work) > 0 {
		b.work = b.work[:len(b.work)-1]
	}
	b.mu.Unlock()
}

// WithWork pushes tag, runs fn, and pops it on return — the run-loop phase
// marker spec §4.2 describes.
func (b *Base) WithWork(tag WorkTag, fn func() error) error {
	b.pushWork(tag)
	defer b.popWork()
	return fn()
}

// Logf writes an Info line to every attached logger.
func (b *Base) Logf(msg string, args ...any) {
	for _, l := range b.loggers {
		l.Info(msg, args...)
	}
}

// LogError writes an Error line to every attached logger.
func (b *Base) LogError(msg string, err error, args ...any) {
	for _, l := range b.loggers {
		l.Error(msg, append(args, "error", err)...)
	}
}

// TrapInterrupts is called at every cooperative yield point (spec §4.2
// step 1). If the status is PAUSING it spins until resumed; if EXITING it
// runs OnExit, marks EXITED and returns ErrExiting so the caller unwinds.
func (b *Base) TrapInterrupts(ctx context.Context) error {
	for {
		switch b.Status() {
		case Pausing:
			b.setStatus(Paused)
		case Paused:
			time.Sleep(PauseSpinInterval)
			continue
		case Exiting:
			if b.OnExit != nil {
				if err := b.OnExit(ctx); err != nil {
					b.LogError("on_exit hook failed", err)
				}
			}
			b.setStatus(Exited)
			return ErrExiting
		case Exited:
			return ErrExiting
		}
		return nil
	}
}

// Sleep is a trap-aware sleep: it sleeps in small slices so a pause/exit
// request is observed promptly rather than after the full duration.
func (b *Base) Sleep(ctx context.Context, d time.Duration) error {
	const slice = 50 * time.Millisecond
	for remaining := d; remaining > 0; remaining -= slice {
		if err := b.TrapInterrupts(ctx); err != nil {
			return err
		}
		if remaining < slice {
			time.Sleep(remaining)
			break
		}
		time.Sleep(slice)
	}
	return b.TrapInterrupts(ctx)
}

// WaitUntil loops trap_interrupts(); check(); sleep(PollInterval) — the
// suspension-point shape spec §5 requires of every blocking wait.
func (b *Base) WaitUntil(ctx context.Context, check func() bool) error {
	for {
		if err := b.TrapInterrupts(ctx); err != nil {
			return err
		}
		if check() {
			return nil
		}
		time.Sleep(PollInterval)
	}
}

// SetInit transitions OFF -> INIT after user setup succeeds, or -> ERROR if
// setup failed.
func (b *Base) SetInit(setupErr error) error {
	if setupErr != nil {
		b.setStatus(Error)
		b.LogError("setup failed", setupErr)
		return setupErr
	}
	b.setStatus(Init)
	return nil
}

// SetRunning transitions INIT -> RUNNING.
func (b *Base) SetRunning() { b.setStatus(Running) }

// SetWaiting transitions RUNNING -> WAITING and back, for observability.
func (b *Base) SetWaiting()  { b.setStatus(Waiting) }
func (b *Base) ClearWaiting() {
	b.mu.Lock()
	if b.status == Waiting {
		b.status = Running
	}
	b.mu.Unlock()
}

// SignalPredecessors overwrites this node's entry in every predecessor's
// successor-signal table.
func (b *Base) SignalPredecessors(ctx context.Context, send func(predecessor string, sig signalbus.Signal) error, result signalbus.Result) error {
	for _, p := range b.Predecessors() {
		sig := signalbus.Signal{Sender: b.name, Receiver: p, Timestamp: time.Now(), Result: result}
		if err := send(p, sig); err != nil {
			return err
		}
	}
	return nil
}

// SignalSuccessors overwrites this node's entry in every successor's
// predecessor-signal table.
func (b *Base) SignalSuccessors(ctx context.Context, send func(successor string, sig signalbus.Signal) error, result signalbus.Result) error {
	for _, s := range b.Successors() {
		sig := signalbus.Signal{Sender: b.name, Receiver: s, Timestamp: time.Now(), Result: result}
		if err := send(s, sig); err != nil {
			return err
		}
	}
	return nil
}

// WaitForPredecessors blocks (cooperatively) until every predecessor has
// signalled the given result into this node's predecessor-signal table.
func (b *Base) WaitForPredecessors(ctx context.Context, result signalbus.Result) error {
	return b.WithWork(WaitingPredecessors, func() error {
		return b.WaitUntil(ctx, func() bool {
			return b.PredecessorSignals.CheckAll(b.Predecessors(), result)
		})
	})
}

// WaitForSuccessors blocks until every successor has signalled the given
// result into this node's successor-signal table.
func (b *Base) WaitForSuccessors(ctx context.Context, result signalbus.Result) error {
	return b.WithWork(WaitingSuccessors, func() error {
		return b.WaitUntil(ctx, func() bool {
			return b.SuccessorSignals.CheckAll(b.Successors(), result)
		})
	})
}

// SignalSuccessorsVia signals every successor through dispatcher — the
// "Signal predecessor/successor SUCCESS" steps in spec §4.3/§4.4/§4.5.
func (b *Base) SignalSuccessorsVia(dispatcher Dispatcher, result signalbus.Result) error {
	return b.SignalSuccessors(context.Background(), func(successor string, sig signalbus.Signal) error {
		return dispatcher.DeliverToPredecessorTable(successor, sig)
	}, result)
}

// SignalPredecessorsVia signals every predecessor through dispatcher.
func (b *Base) SignalPredecessorsVia(dispatcher Dispatcher, result signalbus.Result) error {
	return b.SignalPredecessors(context.Background(), func(predecessor string, sig signalbus.Signal) error {
		return dispatcher.DeliverToSuccessorTable(predecessor, sig)
	}, result)
}

// PutPredecessorSignal records an incoming signal from one of this node's
// predecessors. Called by the pipeline's dispatcher, never directly by a
// peer node — neighbours never hold references to each other (spec §9
// "cyclic neighbour references").
func (b *Base) PutPredecessorSignal(sig signalbus.Signal) {
	b.PredecessorSignals.Put(sig)
}

// PutSuccessorSignal records an incoming signal from one of this node's
// successors.
func (b *Base) PutSuccessorSignal(sig signalbus.Signal) {
	b.SuccessorSignals.Put(sig)
}

// combine folds a set of received signals into one Result: SUCCESS iff
// every one of them was SUCCESS.
func combine(sigs map[string]signalbus.Signal) signalbus.Result {
	for _, sig := range sigs {
		if sig.Result != signalbus.Success {
			return signalbus.Failure
		}
	}
	return signalbus.Success
}

// WaitForPredecessorsAny blocks until every predecessor has sent some
// signal (success or failure) and returns the combined result — used where
// a node must relay whatever its predecessors actually sent rather than
// gate on one fixed result, e.g. the RPC sender forwarding a local
// action's FAILURE across the wire (spec §4.7).
func (b *Base) WaitForPredecessorsAny(ctx context.Context) (signalbus.Result, error) {
	var result signalbus.Result
	err := b.WithWork(WaitingPredecessors, func() error {
		return b.WaitUntil(ctx, func() bool {
			sigs, ok := b.PredecessorSignals.TakeAll(b.Predecessors())
			if !ok {
				return false
			}
			result = combine(sigs)
			return true
		})
	})
	return result, err
}

// WaitForSuccessorsAny is the successor-side counterpart of
// WaitForPredecessorsAny.
func (b *Base) WaitForSuccessorsAny(ctx context.Context) (signalbus.Result, error) {
	var result signalbus.Result
	err := b.WithWork(WaitingSuccessors, func() error {
		return b.WaitUntil(ctx, func() bool {
			sigs, ok := b.SuccessorSignals.TakeAll(b.Successors())
			if !ok {
				return false
			}
			result = combine(sigs)
			return true
		})
	})
	return result, err
}
