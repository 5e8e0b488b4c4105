// Package metadatanode implements the metadata-store node: the sole root
// of every local DAG, owner of run identity and run boundaries (spec
// §4.3). Concrete persistence is an external collaborator (spec §1 scope);
// this package only defines the Store contract and run-loop protocol, plus
// an in-memory Store good enough to run the engine without a database.
package metadatanode

import (
	"time"

	"github.com/anacostia-labs/anacostia/internal/artifact"
)

// KV is a simple key/value bag used for metrics, params and tags. It is a
// plain map, so key order is not preserved.
type KV map[string]string

// Store is everything the metadata-store node needs from persistence. A
// SQL-backed implementation (out of core scope) satisfies this the same
// way; the engine never depends on a concrete backend.
type Store interface {
	// Run bookkeeping.
	NextRunID() int
	RecordRunStart(runID int, at time.Time) error
	RecordRunEnd(runID int, at time.Time) error

	// Artifact entries.
	CreateEntry(e artifact.Entry) (artifact.Entry, error)
	MergeEntries(entries []artifact.Entry) error
	EntryExists(resource, location string) (bool, error)
	GetEntries(resource string, state artifact.State) ([]artifact.Entry, error)
	GetNumEntries(resource string, state artifact.State) (int, error)
	StampRunID(runID int) error
	AdvanceEntries(at time.Time) error

	// Metrics / params / tags, keyed by node name and run id.
	LogMetrics(node string, runID int, kv KV) error
	LogParams(node string, runID int, kv KV) error
	SetTags(node string, runID int, kv KV) error
	GetMetrics(node string, runID int) (KV, error)
	GetParams(node string, runID int) (KV, error)
	GetTags(node string, runID int) (KV, error)
	LogTrigger(node string, message string) error
}
