package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anacostia-labs/anacostia/internal/artifact"
	"github.com/anacostia-labs/anacostia/internal/metadatanode"
	"github.com/anacostia-labs/anacostia/internal/resourcenode"
	"github.com/anacostia-labs/anacostia/internal/rpcnode"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeMetadataClient struct{}

func (fakeMetadataClient) CreateEntry(resource, location string, state artifact.State, runID *int) (artifact.Entry, error) {
	return artifact.Entry{Resource: resource, Location: location, State: state, RunID: runID}, nil
}

func TestMountNodeExposesStatusAndWork(t *testing.T) {
	n := metadatanode.NewNode("metadata", metadatanode.NewMemStore(), metadatanode.Hooks{})

	r := chi.NewRouter()
	MountNode(r, n)

	req := httptest.NewRequest(http.MethodGet, "/metadata/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OFF", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/metadata/work", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "", w.Body.String())
}

func TestMountNodeMountsSenderSignalRoot(t *testing.T) {
	s := rpcnode.NewSender("sender1", nil, "http://remote", "receiver1")

	r := chi.NewRouter()
	MountNode(r, s)

	req := httptest.NewRequest(http.MethodPost, "/sender1/signal_root?result=SUCCESS", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

// TestMountNodeMountsMetadataAndResourceRPCSurface guards against the
// metadata/resource RPC callees silently going unreached through the
// root/leaf routers: MountNode must mount them, not just /status and
// /work (spec §4.8, §4.9, §6).
func TestMountNodeMountsMetadataAndResourceRPCSurface(t *testing.T) {
	meta := metadatanode.NewNode("metadata", metadatanode.NewMemStore(), metadatanode.Hooks{})
	dir := t.TempDir()
	resource := resourcenode.NewDirectoryNode("dataset", "metadata", dir, false, fakeMetadataClient{})
	resource.ResourcePath = dir

	r := chi.NewRouter()
	MountNode(r, meta)
	MountNode(r, resource)

	req := httptest.NewRequest(http.MethodGet, "/metadata/create_entry?resource_node_name=dataset&filepath=a.txt&state=new", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "a.txt")

	req = httptest.NewRequest(http.MethodGet, "/dataset/get_num_artifacts?state=new", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
