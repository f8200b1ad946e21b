// Command agentcore-server wires configuration, persistence, the event
// bus, the session service, the background task manager, and the query
// executor contract into the HTTP/SSE adapter, then serves it until
// SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentcore/core/internal/config"
	"github.com/agentcore/core/internal/executor"
	"github.com/agentcore/core/internal/logging"
	"github.com/agentcore/core/internal/server"
	"github.com/agentcore/core/internal/session"
	"github.com/agentcore/core/internal/storage"
	"github.com/agentcore/core/internal/task"
	"github.com/agentcore/core/pkg/types"
)

var (
	configPath string
	port       int
	hostname   string
	store      string
)

func main() {
	root := &cobra.Command{
		Use:   "agentcore-server",
		Short: "Agent-core session, event, and background-task server",
		RunE:  run,
	}

	root.Flags().StringVar(&configPath, "config", "", "path to a YAML/JSONC config file")
	root.Flags().IntVar(&port, "port", 0, "server port (overrides config)")
	root.Flags().StringVar(&hostname, "hostname", "", "server bind address (overrides config)")
	root.Flags().StringVar(&store, "store", "", "persistence backend: memory|file|sqlite (overrides config)")

	if err := root.Execute(); err != nil {
		logging.Error().Err(err).Msg("agentcore-server exited with error")
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logging.Init(logging.DefaultConfig())

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port != 0 {
		cfg.Port = port
	}
	if hostname != "" {
		cfg.Hostname = hostname
	}
	if store != "" {
		cfg.Store = store
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logging.Init(logCfg)

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return fmt.Errorf("create data directories: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Flush(context.Background())

	sessions := session.NewService(st)
	exec := executor.New(sessions, unconfiguredModelClient{}, executor.NoTools(), types.ModelRef{})
	sessions.SetCompleter(exec)
	tasks := task.NewManager(sessions, exec, task.NewRegistry())

	srvConfig := server.DefaultConfig()
	srvConfig.Hostname = cfg.Hostname
	srvConfig.Port = cfg.Port
	srvConfig.BearerToken = cfg.BearerToken

	srv := server.New(srvConfig, sessions, exec, tasks)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", fmt.Sprintf("%s:%d", cfg.Hostname, cfg.Port)).Msg("agentcore-server listening")
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logging.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
	return nil
}

// openStore constructs the persistence backend cfg.Store names.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Store {
	case "memory":
		return storage.NewMemory(), nil
	case "sqlite":
		return storage.NewSQLite(cfg.DataDir + "/agentcore.db")
	case "file", "":
		return storage.NewFile(cfg.DataDir), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

// unconfiguredModelClient is the ModelClient wired in until an operator
// supplies a concrete provider SDK; concrete LLM provider integrations are
// out of scope for this repository. Every call fails clearly rather than
// silently returning empty completions.
type unconfiguredModelClient struct{}

func (unconfiguredModelClient) CreateCompletion(ctx context.Context, req executor.CompletionRequest) (executor.ChunkStream, error) {
	return nil, errors.New("agentcore-server: no model client configured; wire a provider SDK into cmd/agentcore-server")
}
