package metadatanode

import (
	"fmt"
	"sync"
	"time"

	"github.com/anacostia-labs/anacostia/internal/artifact"
	"github.com/google/uuid"
)

// MemStore is an in-process Store, useful for single-binary pipelines and
// tests. It is not a concrete persistence backend in the sense spec §1
// excludes (it does not model SQL schemas, migrations, or a model-card
// layer) — it is the minimal in-core stand-in the engine needs to run at
// all without one.
type MemStore struct {
	mu sync.Mutex

	runID    int
	runStart map[int]time.Time
	runEnd   map[int]time.Time

	entries map[string]*artifact.Entry // keyed by Entry.Key()

	metrics map[string]KV
	params  map[string]KV
	tags    map[string]KV

	triggers []string
}

// NewMemStore returns an empty MemStore with run_id starting at 0.
func NewMemStore() *MemStore {
	return &MemStore{
		runStart: make(map[int]time.Time),
		runEnd:   make(map[int]time.Time),
		entries:  make(map[string]*artifact.Entry),
		metrics:  make(map[string]KV),
		params:   make(map[string]KV),
		tags:     make(map[string]KV),
	}
}

func kvKey(node string, runID int) string { return fmt.Sprintf("%s#%d", node, runID) }

func (m *MemStore) NextRunID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID
}

func (m *MemStore) RecordRunStart(runID int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runStart[runID] = at
	return nil
}

func (m *MemStore) RecordRunEnd(runID int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runEnd[runID] = at
	m.runID++
	return nil
}

func (m *MemStore) CreateEntry(e artifact.Entry) (artifact.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := e
	m.entries[e.Key()] = &cp
	return cp, nil
}

func (m *MemStore) MergeEntries(entries []artifact.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if _, exists := m.entries[e.Key()]; exists {
			continue // idempotent: dedup by (resource_node, location)
		}
		cp := e
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		m.entries[e.Key()] = &cp
	}
	return nil
}

func (m *MemStore) EntryExists(resource, location string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := (&artifact.Entry{Resource: resource, Location: location}).Key()
	_, ok := m.entries[key]
	return ok, nil
}

func (m *MemStore) GetEntries(resource string, state artifact.State) ([]artifact.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []artifact.Entry
	for _, e := range m.entries {
		if e.Resource == resource && e.State == state {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *MemStore) GetNumEntries(resource string, state artifact.State) (int, error) {
	entries, err := m.GetEntries(resource, state)
	return len(entries), err
}

func (m *MemStore) StampRunID(runID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.RunID == nil {
			id := runID
			e.RunID = &id
		}
	}
	return nil
}

func (m *MemStore) AdvanceEntries(at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		e.Advance(at)
	}
	return nil
}

func (m *MemStore) LogMetrics(node string, runID int, kv KV) error { return m.merge(m.metrics, node, runID, kv) }
func (m *MemStore) LogParams(node string, runID int, kv KV) error  { return m.merge(m.params, node, runID, kv) }
func (m *MemStore) SetTags(node string, runID int, kv KV) error    { return m.merge(m.tags, node, runID, kv) }

func (m *MemStore) merge(bucket map[string]KV, node string, runID int, kv KV) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := kvKey(node, runID)
	existing, ok := bucket[key]
	if !ok {
		existing = KV{}
	}
	for k, v := range kv {
		existing[k] = v
	}
	bucket[key] = existing
	return nil
}

func (m *MemStore) GetMetrics(node string, runID int) (KV, error) { return m.get(m.metrics, node, runID) }
func (m *MemStore) GetParams(node string, runID int) (KV, error)  { return m.get(m.params, node, runID) }
func (m *MemStore) GetTags(node string, runID int) (KV, error)    { return m.get(m.tags, node, runID) }

func (m *MemStore) get(bucket map[string]KV, node string, runID int) (KV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := KV{}
	for k, v := range bucket[kvKey(node, runID)] {
		out[k] = v
	}
	return out, nil
}

func (m *MemStore) LogTrigger(node string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers = append(m.triggers, fmt.Sprintf("%s: %s", node, message))
	return nil
}
