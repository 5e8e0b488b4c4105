// Package signalbus implements the per-node mailboxes nodes use to exchange
// readiness signals with their direct DAG neighbours (spec §4.1).
//
// Signals are edge-triggered: a mailbox keeps only the latest signal from
// each sender, never a queue of them. Queuing would let a slow consumer
// accumulate stale signals and misalign rounds, which is exactly what the
// overwrite semantics here are designed to prevent.
package signalbus

import (
	"sync"
	"time"
)

// Result is the outcome carried by a Signal.
type Result int

const (
	// Failure marks an unsuccessful round.
	Failure Result = iota
	// Success marks a successful round.
	Success
)

func (r Result) String() string {
	if r == Success {
		return "SUCCESS"
	}
	return "FAILURE"
}

// Signal is an immutable readiness record passed between direct neighbours.
// Signals are never forwarded past the node that receives them.
type Signal struct {
	Sender    string
	Receiver  string
	Timestamp time.Time
	Result    Result
}

// Table is a SignalTable: a mapping from neighbour name to that neighbour's
// latest Signal, guarded by a mutex. Two Tables exist per node — one for
// predecessors, one for successors.
type Table struct {
	mu      sync.Mutex
	entries map[string]Signal
}

// NewTable returns an empty signal table.
func NewTable() *Table {
	return &Table{entries: make(map[string]Signal)}
}

// Put overwrites any previous signal from sig.Sender in the mailbox.
func (t *Table) Put(sig Signal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[sig.Sender] = sig
}

// CheckAll reports whether the mailbox holds exactly one entry per name in
// expected and all of them carry want. On success it atomically clears the
// mailbox so no signal is ever observed twice (spec §8 invariant 5).
func (t *Table) CheckAll(expected []string, want Result) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) < len(expected) {
		return false
	}
	for _, name := range expected {
		sig, ok := t.entries[name]
		if !ok || sig.Result != want {
			return false
		}
	}
	for k := range t.entries {
		delete(t.entries, k)
	}
	return true
}

// TakeAll reports whether the mailbox holds exactly one entry per name in
// expected, regardless of result, and if so atomically clears the mailbox
// and returns the entries. Used where a caller must forward whichever
// result a neighbour actually sent rather than gate on one fixed result —
// the RPC sender/receiver relaying a remote SUCCESS/FAILURE across the
// wire (spec §4.7).
func (t *Table) TakeAll(expected []string) (map[string]Signal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) < len(expected) {
		return nil, false
	}
	out := make(map[string]Signal, len(expected))
	for _, name := range expected {
		sig, ok := t.entries[name]
		if !ok {
			return nil, false
		}
		out[name] = sig
	}
	for k := range t.entries {
		delete(t.entries, k)
	}
	return out, true
}

// Snapshot returns a copy of the current entries, for observability only.
func (t *Table) Snapshot() map[string]Signal {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Signal, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}
