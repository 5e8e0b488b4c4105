// Package rpcapi exposes the metadata-store and resource-node operations
// as HTTP endpoints for cross-process callers (spec §4.9, §6). It is the
// server side of the protocol internal/rpcnode's Sender/Receiver pair
// rides on top of; unlike rpcnode, these endpoints carry data (artifact
// bytes, metrics, entries), not readiness signals.
package rpcapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/anacostia-labs/anacostia/internal/artifact"
	"github.com/anacostia-labs/anacostia/internal/metadatanode"
	"github.com/go-chi/chi/v5"
)

// MetadataHandler adapts a *metadatanode.Node onto the wire protocol spec
// §6 lists under "Metadata RPC callee".
type MetadataHandler struct {
	Node *metadatanode.Node
}

// Mount registers every metadata endpoint under r.
func (h *MetadataHandler) Mount(r chi.Router) {
	r.Get("/get_run_id", h.handleGetRunID)
	r.Get("/get_node_id", h.handleGetNodeID)
	r.Get("/create_entry", h.handleCreateEntry)
	r.Post("/merge_artifacts_table", h.handleMergeArtifactsTable)
	r.Get("/entry_exists", h.handleEntryExists)
	r.Post("/log_metrics", h.handleLogMetrics)
	r.Post("/log_params", h.handleLogParams)
	r.Post("/set_tags", h.handleSetTags)
	r.Get("/get_metrics", h.handleGetMetrics)
	r.Get("/get_params", h.handleGetParams)
	r.Get("/get_tags", h.handleGetTags)
	r.Post("/log_trigger", h.handleLogTrigger)
	r.Get("/get_num_entries", h.handleGetNumEntries)
	r.Get("/get_entries", h.handleGetEntries)
}

func (h *MetadataHandler) handleGetRunID(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]int{"run_id": h.Node.GetRunID()})
}

func (h *MetadataHandler) handleGetNodeID(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"node_id": h.Node.GetNodeID()})
}

func (h *MetadataHandler) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resource := q.Get("resource_node_name")
	filepath := q.Get("filepath")
	state := artifact.State(q.Get("state"))
	if state == "" {
		state = artifact.StateNew
	}

	var runID *int
	if raw := q.Get("run_id"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid run_id", http.StatusBadRequest)
			return
		}
		runID = &v
	}

	entry, err := h.Node.CreateEntry(resource, filepath, state, runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, entry)
}

func (h *MetadataHandler) handleMergeArtifactsTable(w http.ResponseWriter, r *http.Request) {
	resource := r.URL.Query().Get("resource_node_name")

	var entries []artifact.Entry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for i := range entries {
		entries[i].Resource = resource
	}
	if err := h.Node.MergeArtifactsTable(entries); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *MetadataHandler) handleEntryExists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	exists, err := h.Node.EntryExists(q.Get("resource_node_name"), q.Get("location"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"exists": exists})
}

func (h *MetadataHandler) handleLogMetrics(w http.ResponseWriter, r *http.Request) {
	h.logKV(w, r, h.Node.LogMetrics)
}

func (h *MetadataHandler) handleLogParams(w http.ResponseWriter, r *http.Request) {
	h.logKV(w, r, h.Node.LogParams)
}

func (h *MetadataHandler) handleSetTags(w http.ResponseWriter, r *http.Request) {
	h.logKV(w, r, h.Node.SetTags)
}

func (h *MetadataHandler) logKV(w http.ResponseWriter, r *http.Request, store func(nodeName string, runID int, kv metadatanode.KV) error) {
	nodeName := r.URL.Query().Get("node_name")
	runID, err := strconv.Atoi(r.URL.Query().Get("run_id"))
	if err != nil {
		http.Error(w, "invalid run_id", http.StatusBadRequest)
		return
	}
	var kv metadatanode.KV
	if err := json.NewDecoder(r.Body).Decode(&kv); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := store(nodeName, runID, kv); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *MetadataHandler) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	h.getKV(w, r, h.Node.GetMetrics)
}

func (h *MetadataHandler) handleGetParams(w http.ResponseWriter, r *http.Request) {
	h.getKV(w, r, h.Node.GetParams)
}

func (h *MetadataHandler) handleGetTags(w http.ResponseWriter, r *http.Request) {
	h.getKV(w, r, h.Node.GetTags)
}

func (h *MetadataHandler) getKV(w http.ResponseWriter, r *http.Request, fetch func(nodeName string, runID int) (metadatanode.KV, error)) {
	nodeName := r.URL.Query().Get("node_name")
	runID, err := strconv.Atoi(r.URL.Query().Get("run_id"))
	if err != nil {
		http.Error(w, "invalid run_id", http.StatusBadRequest)
		return
	}
	kv, err := fetch(nodeName, runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, kv)
}

func (h *MetadataHandler) handleLogTrigger(w http.ResponseWriter, r *http.Request) {
	nodeName := r.URL.Query().Get("node_name")
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Node.LogTrigger(nodeName, body.Message); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *MetadataHandler) handleGetNumEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	n, err := h.Node.GetNumEntries(q.Get("resource_node_name"), artifact.State(q.Get("state")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"count": n})
}

func (h *MetadataHandler) handleGetEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := h.Node.GetEntries(q.Get("resource_node_name"), artifact.State(q.Get("state")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
