package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/anacostia-labs/anacostia/internal/alog"
	"github.com/anacostia-labs/anacostia/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-resty/resty/v2"
)

// LeafConfig describes one configured leaf this root registers with at
// startup (spec §4.8 step 1).
type LeafConfig struct {
	Name string // the sender node's local name
	Host string // leaf's base URL, e.g. http://leaf-host:8081
}

// RootServer is the root pipeline's HTTP surface: every local node mounted
// at /<node-name>/…, plus the leaf-registration handshake and the SIGINT
// shutdown sequence (spec §4.8).
type RootServer struct {
	Pipeline *pipeline.Pipeline
	Logger   alog.Logger

	addr   string
	srv    *http.Server
	client *resty.Client

	mu              sync.Mutex
	leaves          []LeafConfig
	leafPipelineIDs map[string]string // leaf name -> minted pipeline-id
}

// NewRootServer builds a root server listening on addr, mounting every node
// in p.
func NewRootServer(addr string, p *pipeline.Pipeline, logger alog.Logger) *RootServer {
	return &RootServer{Pipeline: p, Logger: logger, addr: addr}
}

func (s *RootServer) router() http.Handler {
	logger := httplog.NewLogger("anacostia-root", httplog.Options{JSON: true})
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	for _, n := range s.Pipeline.Nodes() {
		MountNode(r, n)
	}
	return r
}

// RegisterWithLeaves performs the handshake described in spec §4.8 step 1:
// for each configured leaf, POST this root's own reachable host/port and
// the sender node's name, and record the returned pipeline-id so
// AggregateStatus can address that leaf's mounted nodes afterward.
func (s *RootServer) RegisterWithLeaves(ctx context.Context, selfAddr string, leaves []LeafConfig) error {
	s.mu.Lock()
	s.leaves = leaves
	if s.leafPipelineIDs == nil {
		s.leafPipelineIDs = make(map[string]string, len(leaves))
	}
	s.mu.Unlock()

	for _, leaf := range leaves {
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParam("sender_name", leaf.Name).
			SetQueryParam("sender_host", selfAddr).
			Post(leaf.Host + "/register_leaf")
		if err != nil {
			return fmt.Errorf("httpserver: register with leaf %q: %w", leaf.Name, err)
		}
		pipelineID := string(resp.Body())
		s.mu.Lock()
		s.leafPipelineIDs[leaf.Name] = pipelineID
		s.mu.Unlock()
		s.Logger.Info("registered with leaf", "leaf", leaf.Name, "pipeline_id", pipelineID)
	}
	return nil
}

// AggregateStatus fans out GET <node>/status to every local node plus, for
// each registered leaf, the status of nodeName in that leaf's pipeline
// (spec §4.8 "Each server mounts every node's HTTP surface" — a root
// aggregates its leaves' surfaces the same way it reads its own). Keyed by
// "local:<name>" for this pipeline's own nodes and "<leaf-name>:<name>"
// for each leaf.
func (s *RootServer) AggregateStatus(ctx context.Context, nodeName string) (map[string]string, error) {
	out := make(map[string]string)
	for _, n := range s.Pipeline.Nodes() {
		if n.Name() == nodeName {
			out["local:"+nodeName] = n.Status().String()
			break
		}
	}

	s.mu.Lock()
	leaves := append([]LeafConfig(nil), s.leaves...)
	pipelineIDs := make(map[string]string, len(s.leafPipelineIDs))
	for k, v := range s.leafPipelineIDs {
		pipelineIDs[k] = v
	}
	s.mu.Unlock()

	for _, leaf := range leaves {
		pipelineID := pipelineIDs[leaf.Name]
		url := NodeStatusURL(leaf.Host, pipelineID, nodeName)
		resp, err := s.client.R().SetContext(ctx).Get(url)
		if err != nil {
			return nil, fmt.Errorf("httpserver: aggregate status from leaf %q: %w", leaf.Name, err)
		}
		out[leaf.Name+":"+nodeName] = string(resp.Body())
	}
	return out, nil
}

// Serve opens the shared HTTP client (lifespan start), starts the HTTP
// server, installs the SIGINT handler, and blocks until that handler fires
// (spec §4.8 steps 2-3).
func (s *RootServer) Serve(ctx context.Context) error {
	s.client = resty.New()
	defer s.client.GetClient().CloseIdleConnections()

	s.srv = &http.Server{Addr: s.addr, Handler: s.router()}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT)
	defer signal.Stop(sigs)

	select {
	case err := <-errCh:
		return err
	case <-sigs:
		s.Logger.Info("SIGINT received, stopping root server")
	}

	if err := s.srv.Shutdown(context.Background()); err != nil {
		s.Logger.Error("root server shutdown error", "error", err)
	}
	s.Pipeline.Terminate()
	return nil
}
