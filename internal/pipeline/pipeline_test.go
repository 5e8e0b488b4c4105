package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/anacostia-labs/anacostia/internal/actionnode"
	"github.com/anacostia-labs/anacostia/internal/artifact"
	"github.com/anacostia-labs/anacostia/internal/metadatanode"
	"github.com/anacostia-labs/anacostia/internal/node"
	"github.com/anacostia-labs/anacostia/internal/resourcenode"
	"github.com/stretchr/testify/require"
)

// metadataAdapter lets a resourcenode.Node call through to a local
// *metadatanode.Node without either holding a direct reference outside the
// pipeline's dispatch plumbing.
type metadataAdapter struct {
	m *metadatanode.Node
}

func (a metadataAdapter) CreateEntry(resource, location string, state artifact.State, runID *int) (artifact.Entry, error) {
	return a.m.CreateEntry(resource, location, state, runID)
}

func TestCycleIsRejectedAtConstruction(t *testing.T) {
	store := metadatanode.NewMemStore()
	m := metadatanode.NewNode("metadata", store, metadatanode.Hooks{})

	a1 := actionnode.NewNode("a1", []string{"a2"}, actionnode.Hooks{
		Execute: func(context.Context) (bool, error) { return true, nil },
	})
	a2 := actionnode.NewNode("a2", []string{"a1"}, actionnode.Hooks{
		Execute: func(context.Context) (bool, error) { return true, nil },
	})

	_, err := New(m, a1, a2)
	require.Error(t, err)
}

func TestSingleRunHappyPath(t *testing.T) {
	store := metadatanode.NewMemStore()
	m := metadatanode.NewNode("metadata", store, metadatanode.Hooks{})
	meta := metadataAdapter{m: m}

	r := resourcenode.NewNode("resource1", "metadata", false, resourcenode.Hooks{}, meta)

	executed := make(chan struct{}, 10)
	a := actionnode.NewNode("action1", []string{"resource1"}, actionnode.Hooks{
		Execute: func(context.Context) (bool, error) {
			select {
			case executed <- struct{}{}:
			default:
			}
			return true, nil
		},
	})

	p, err := New(m, r, a)
	require.NoError(t, err)

	m.Dispatcher = p
	r.Dispatcher = p
	a.Dispatcher = p

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Launch(ctx)
	defer p.Terminate()

	select {
	case <-executed:
	case <-time.After(2 * time.Second):
		t.Fatal("action never executed")
	}

	require.Eventually(t, func() bool {
		return store.NextRunID() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewRejectsMissingMetadataNode(t *testing.T) {
	a := actionnode.NewNode("a1", nil, actionnode.Hooks{
		Execute: func(context.Context) (bool, error) { return true, nil },
	})
	_, err := New(a)
	require.Error(t, err)
}

func TestNewRejectsMultipleMetadataNodes(t *testing.T) {
	m1 := metadatanode.NewNode("metadata1", metadatanode.NewMemStore(), metadatanode.Hooks{})
	m2 := metadatanode.NewNode("metadata2", metadatanode.NewMemStore(), metadatanode.Hooks{})
	_, err := New(m1, m2)
	require.Error(t, err)
}

func TestNewRejectsResourceNodeWithWrongPredecessor(t *testing.T) {
	store := metadatanode.NewMemStore()
	m := metadatanode.NewNode("metadata", store, metadatanode.Hooks{})
	a := actionnode.NewNode("a1", nil, actionnode.Hooks{
		Execute: func(context.Context) (bool, error) { return true, nil },
	})
	meta := metadataAdapter{m: m}
	r := resourcenode.NewNode("resource1", "a1", false, resourcenode.Hooks{}, meta)

	_, err := New(m, a, r)
	require.Error(t, err)
}

func TestTopoSortOrdersMetadataFirst(t *testing.T) {
	store := metadatanode.NewMemStore()
	m := metadatanode.NewNode("metadata", store, metadatanode.Hooks{})
	meta := metadataAdapter{m: m}
	r := resourcenode.NewNode("resource1", "metadata", false, resourcenode.Hooks{}, meta)

	p, err := New(m, r)
	require.NoError(t, err)

	names := make([]string, 0)
	for _, n := range p.Nodes() {
		names = append(names, n.Name())
	}
	require.Equal(t, []string{"metadata", "resource1"}, names)
	require.Equal(t, node.Off, m.Status())
}
