package rpcapi

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/anacostia-labs/anacostia/internal/artifact"
	"github.com/anacostia-labs/anacostia/internal/metadatanode"
	"github.com/anacostia-labs/anacostia/internal/resourcenode"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeMetadataClient struct{}

func (fakeMetadataClient) CreateEntry(resource, location string, state artifact.State, runID *int) (artifact.Entry, error) {
	return artifact.Entry{Resource: resource, Location: location, State: state, RunID: runID}, nil
}

func TestMetadataHandlerCreateEntryAndGetRunID(t *testing.T) {
	n := metadatanode.NewNode("metadata", metadatanode.NewMemStore(), metadatanode.Hooks{})
	h := &MetadataHandler{Node: n}

	r := chi.NewRouter()
	h.Mount(r)

	req := httptest.NewRequest(http.MethodGet, "/get_run_id", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "run_id")

	req = httptest.NewRequest(http.MethodGet, "/create_entry?resource_node_name=resource1&filepath=a.txt&state=new", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "a.txt")
}

func TestResourceHandlerUploadThenDownload(t *testing.T) {
	dir := t.TempDir()
	n := resourcenode.NewDirectoryNode("resource1", "metadata", dir, false, fakeMetadataClient{})
	h := &ResourceHandler{Node: n, ResourcePath: dir}

	r := chi.NewRouter()
	h.Mount(r)

	body := httptest.NewRequest(http.MethodPost, "/upload_stream", nil)
	body.Header.Set("X-Filename", "model.bin")
	body.Body = io.NopCloser(bytes.NewBufferString("weights"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, body)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := os.Stat(filepath.Join(dir, "model.bin"))
	require.NoError(t, err)

	dup := httptest.NewRequest(http.MethodPost, "/upload_stream", nil)
	dup.Header.Set("X-Filename", "model.bin")
	dup.Body = io.NopCloser(bytes.NewBufferString("again"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, dup)
	require.Equal(t, http.StatusConflict, w.Code)

	get := httptest.NewRequest(http.MethodGet, "/get_artifact/model.bin", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, get)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "weights", w.Body.String())
}
