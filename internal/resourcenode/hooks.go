// Package resourcenode implements the resource node: a filesystem-backed
// source that watches a directory and decides when to start a run (spec
// §4.4).
package resourcenode

import (
	"context"
	"io"

	"github.com/anacostia-labs/anacostia/internal/artifact"
)

// Hooks are the user-overridable pieces of a resource node. fillDefaults
// gives the monitoring, record and trigger hooks usable defaults; the
// artifact-access hooks (GetNumArtifacts, ListArtifacts, GetArtifact,
// LoadArtifact, SaveArtifact) stay nil unless set, and Node's passthroughs
// return zero values for a nil one.
type Hooks struct {
	StartMonitoring  func(ctx context.Context) error
	StopMonitoring   func(ctx context.Context) error
	RecordNew        func(ctx context.Context, location string) error
	RecordCurrent    func(ctx context.Context) error
	TriggerCondition func(ctx context.Context) (bool, error)
	GetNumArtifacts  func(state artifact.State) (int, error)
	ListArtifacts    func(state artifact.State) ([]string, error)
	GetArtifact      func(location string) (io.ReadCloser, error)
	LoadArtifact     func(location string) ([]byte, error)
	SaveArtifact     func(location string, data []byte) error
}

// fillDefaults patches in no-op/true defaults for every unset hook, the way
// the spec lists TriggerCondition's default as "true".
func (h *Hooks) fillDefaults() {
	if h.StartMonitoring == nil {
		h.StartMonitoring = func(context.Context) error { return nil }
	}
	if h.StopMonitoring == nil {
		h.StopMonitoring = func(context.Context) error { return nil }
	}
	if h.RecordNew == nil {
		h.RecordNew = func(context.Context, string) error { return nil }
	}
	if h.RecordCurrent == nil {
		h.RecordCurrent = func(context.Context) error { return nil }
	}
	if h.TriggerCondition == nil {
		h.TriggerCondition = func(context.Context) (bool, error) { return true, nil }
	}
}
