// Package httpserver mounts every node's HTTP surface and drives the
// root/leaf pipeline server lifecycle (spec §4.8, §6).
package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/anacostia-labs/anacostia/internal/metadatanode"
	"github.com/anacostia-labs/anacostia/internal/node"
	"github.com/anacostia-labs/anacostia/internal/resourcenode"
	"github.com/anacostia-labs/anacostia/internal/rpcapi"
	"github.com/anacostia-labs/anacostia/internal/rpcnode"
	"github.com/go-chi/chi/v5"
)

// StatusNode is the minimum any node must offer to be mounted: status and
// work-list observability (spec §6 "GET /status", "GET /work").
type StatusNode interface {
	Name() string
	Status() node.Status
	WorkList() []node.WorkTag
}

// MountNode wires a single node's HTTP surface under r's current prefix.
// Every node gets /status and /work; a Sender additionally gets
// POST /signal_root, a Receiver POST /signal_leaf, a metadata-store node
// the full metadata RPC callee surface, and a resource node the resource
// RPC callee surface (spec §6, §4.9).
func MountNode(r chi.Router, n StatusNode) {
	r.Route("/"+n.Name(), func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
			_, _ = w.Write([]byte(n.Status().String()))
		})
		r.Get("/work", func(w http.ResponseWriter, req *http.Request) {
			tags := n.WorkList()
			names := make([]string, len(tags))
			for i, t := range tags {
				names[i] = string(t)
			}
			_, _ = w.Write([]byte(strings.Join(names, ",")))
		})

		switch typed := n.(type) {
		case *rpcnode.Sender:
			r.Post("/signal_root", typed.HandleSignalRoot)
		case *rpcnode.Receiver:
			r.Post("/signal_leaf", typed.HandleSignalLeaf)
		case *metadatanode.Node:
			(&rpcapi.MetadataHandler{Node: typed}).Mount(r)
		case *resourcenode.Node:
			(&rpcapi.ResourceHandler{Node: typed, ResourcePath: typed.ResourcePath}).Mount(r)
		}
	})
}

// NodeStatusURL builds the URL a root server uses to reach a mounted
// node's status endpoint, honoring the leaf pipeline-id prefix when one is
// set (spec §4.8 "[/pipeline-id]/<node-name>").
func NodeStatusURL(baseURL, pipelineID, nodeName string) string {
	if pipelineID == "" {
		return fmt.Sprintf("%s/%s/status", baseURL, nodeName)
	}
	return fmt.Sprintf("%s/%s/%s/status", baseURL, pipelineID, nodeName)
}
