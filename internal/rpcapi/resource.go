package rpcapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/anacostia-labs/anacostia/internal/artifact"
	"github.com/anacostia-labs/anacostia/internal/fsguard"
	"github.com/anacostia-labs/anacostia/internal/resourcenode"
	"github.com/go-chi/chi/v5"
)

// ResourceHandler adapts a *resourcenode.Node onto the wire protocol spec
// §6 lists under "Resource RPC callee". ResourcePath is the filesystem
// root artifacts are streamed to/from (spec §6 "Persisted state layout").
type ResourceHandler struct {
	Node         *resourcenode.Node
	ResourcePath string
}

// Mount registers every resource endpoint under r.
func (h *ResourceHandler) Mount(r chi.Router) {
	r.Get("/get_num_artifacts", h.handleGetNumArtifacts)
	r.Get("/list_artifacts", h.handleListArtifacts)
	r.Get("/get_artifact/*", h.handleGetArtifact)
	r.Post("/upload_stream", h.handleUploadStream)
}

func (h *ResourceHandler) handleGetNumArtifacts(w http.ResponseWriter, r *http.Request) {
	n, err := h.Node.GetNumArtifacts(artifact.State(r.URL.Query().Get("state")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"count": n})
}

func (h *ResourceHandler) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	locations, err := h.Node.ListArtifacts(artifact.State(r.URL.Query().Get("state")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, locations)
}

// handleGetArtifact streams an artifact's bytes (spec §6 "GET
// /get_artifact/{path} (stream)"). The file is read under a shared lock so
// a concurrent local write never tears a reader's bytes.
func (h *ResourceHandler) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	path := filepath.Join(h.ResourcePath, rel)

	err := fsguard.WithReadLock(r.Context(), path, func(f *os.File) error {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, copyErr := io.Copy(w, f)
		return copyErr
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleUploadStream streams bytes in, filename carried in the X-Filename
// header, rejecting on an existing filename (spec §4.9, §6). On success it
// registers the artifact with the local resource node so it shows up as a
// new entry.
func (h *ResourceHandler) handleUploadStream(w http.ResponseWriter, r *http.Request) {
	filename := r.Header.Get("X-Filename")
	if filename == "" {
		http.Error(w, "missing X-Filename header", http.StatusBadRequest)
		return
	}
	path := filepath.Join(h.ResourcePath, filename)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err := fsguard.WithExclusiveCreate(r.Context(), path, func(f *os.File) error {
		_, copyErr := io.Copy(f, r.Body)
		return copyErr
	})
	switch {
	case err == fsguard.ErrExists:
		http.Error(w, "artifact already exists", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.Node.RecordNew(r.Context(), filename); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
