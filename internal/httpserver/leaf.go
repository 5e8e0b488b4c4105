package httpserver

import (
	"context"
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
	"github.com/google/uuid"
)

// LeafServer is a leaf pipeline's HTTP surface: every local node mounted
// under /<pipeline-id>/<node-name>/…, where pipeline-id is an opaque
// 128-bit value minted once per instance so a single server can host many
// leaf pipelines without name collisions (spec §4.8, §9).
type LeafServer struct {
	Pipeline   *pipeline.Pipeline
	Logger     alog.Logger
	PipelineID string

	addr string
	srv  *http.Server

	mu         sync.Mutex
	registered map[string]string // sender node name -> sender host
}

// NewLeafServer builds a leaf server listening on addr, minting a fresh
// pipeline-id.
func NewLeafServer(addr string, p *pipeline.Pipeline, logger alog.Logger) *LeafServer {
	return &LeafServer{
		Pipeline:   p,
		Logger:     logger,
		PipelineID: uuid.NewString(),
		addr:       addr,
		registered: make(map[string]string),
	}
}

func (s *LeafServer) router() http.Handler {
	logger := httplog.NewLogger("anacostia-leaf", httplog.Options{JSON: true})
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Post("/register_leaf", s.handleRegisterLeaf)

	r.Route("/"+s.PipelineID, func(r chi.Router) {
		for _, n := range s.Pipeline.Nodes() {
			MountNode(r, n)
		}
	})
	return r
}

// handleRegisterLeaf answers the root server's handshake (spec §4.8 step
// 1): record the sender's reachable host and hand back this instance's
// pipeline-id so subsequent sender traffic is addressed correctly.
func (s *LeafServer) handleRegisterLeaf(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("sender_name")
	host := r.URL.Query().Get("sender_host")
	if name == "" || host == "" {
		http.Error(w, "missing sender_name or sender_host", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.registered[name] = host
	s.mu.Unlock()

	s.Logger.Info("root registered", "sender", name, "host", host)
	_, _ = w.Write([]byte(s.PipelineID))
}

// Serve starts the HTTP server and installs the same SIGINT shutdown
// sequence as RootServer (spec §4.8 step 3).
func (s *LeafServer) Serve(ctx context.Context) error {
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
		s.Logger.Info("SIGINT received, stopping leaf server")
	}

	if err := s.srv.Shutdown(context.Background()); err != nil {
		s.Logger.Error("leaf server shutdown error", "error", err)
	}
	s.Pipeline.Terminate()
	return nil
}
