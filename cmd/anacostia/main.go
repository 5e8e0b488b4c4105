// Command anacostia wires one example local pipeline together and runs it
// until interrupted. It exists to give the module a runnable entrypoint;
// it is not part of the engine's public API (spec §1 Non-goals, "CLI").
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/anacostia-labs/anacostia/internal/actionnode"
	"github.com/anacostia-labs/anacostia/internal/alog"
	"github.com/anacostia-labs/anacostia/internal/artifact"
	"github.com/anacostia-labs/anacostia/internal/metadatanode"
	"github.com/anacostia-labs/anacostia/internal/node"
	"github.com/anacostia-labs/anacostia/internal/pipeline"
	"github.com/anacostia-labs/anacostia/internal/resourcenode"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var resourceDir string

func main() {
	cmd := &cobra.Command{
		Use:   "anacostia",
		Short: "Example DAG pipeline runner",
		Long:  "Wires a metadata-store, a directory-backed resource, and an action node into one local pipeline and runs it.",
	}

	cmd.AddCommand(runCmd())

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Run the example pipeline until Ctrl-C",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExamplePipeline(cmd.Context())
		},
	}
	c.Flags().StringVar(&resourceDir, "resource-dir", "./data", "directory the example resource node watches")
	return c
}

// metadataAdapter lets the resource node call through to the local
// metadata-store node without holding a direct reference to it outside the
// pipeline's dispatch plumbing (spec §9).
type metadataAdapter struct{ n *metadatanode.Node }

func (a metadataAdapter) CreateEntry(resource, location string, state artifact.State, runID *int) (artifact.Entry, error) {
	return a.n.CreateEntry(resource, location, state, runID)
}

func runExamplePipeline(ctx context.Context) error {
	if err := os.MkdirAll(resourceDir, 0o755); err != nil {
		return err
	}

	logger := alog.New(slog.LevelInfo, os.Stdout)

	meta := metadatanode.NewNode("metadata", metadatanode.NewMemStore(), metadatanode.Hooks{}, logger)
	resource := resourcenode.NewDirectoryNode("dataset", "metadata", resourceDir, true, metadataAdapter{n: meta}, logger)
	action := actionnode.NewNode("train", []string{"dataset"}, actionnode.Hooks{
		Execute: func(ctx context.Context) (bool, error) {
			logger.Info("running example training step")
			return true, nil
		},
	}, logger)

	p, err := pipeline.New(meta, resource, action)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	meta.Dispatcher = p
	resource.Dispatcher = p
	action.Dispatcher = p

	names := lo.Map(p.Nodes(), func(n node.Node, _ int) string { return n.Name() })
	logger.Info("launching pipeline", "nodes", names)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.Launch(runCtx)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	logger.Info("shutting down")
	p.Terminate()
	return nil
}
