package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattmok/idea-spring-boot-assistant/internal/admin"
	"github.com/mattmok/idea-spring-boot-assistant/internal/lsp"
	"github.com/mattmok/idea-spring-boot-assistant/internal/tooling"
	"github.com/mattmok/idea-spring-boot-assistant/internal/watch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewLSPCommand creates the LSP command
func NewLSPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the spring-assistant Language Server Protocol (LSP) server.

This command starts an LSP server for application*.properties and
application*.yml files that provides:
  • Property key and value completion
  • Diagnostics for unknown, deprecated and mistyped properties
  • Hover documentation
  • Go-to-definition into metadata descriptors and configuration classes
  • Quick fixes for deprecated and misspelled keys
  • Document and workspace symbols, find references

Dependencies come from the client's initializationOptions
("dependencies", "classpath", "projectRoots"), falling back to the
configuration file and flags. Descriptor changes on disk trigger a
rebuild of the index.

The LSP server communicates via JSON-RPC over stdin/stdout.
It is typically started automatically by your editor/IDE.`,
		RunE: runLSP,
	}
}

func runLSP(cmd *cobra.Command, args []string) error {
	env, err := newEnvironment()
	if err != nil {
		return err
	}
	defer env.close()
	logger := env.logger

	var watcher *watch.FileWatcher
	if env.cfg.Watch.Enabled {
		watcher, err = watch.NewFileWatcher(env.manager, env.cfg.Watch.Delay(), logger.Named("watch"))
		if err != nil {
			return err
		}
		watcher.Start()
		defer func() {
			if err := watcher.Stop(); err != nil {
				logger.Warn("failed to stop watcher", zap.Error(err))
			}
		}()
	}

	if listen := env.cfg.Metrics.Listen; listen != "" {
		adminCfg := admin.DefaultConfig(listen)
		adminCfg.Pprof = env.cfg.Metrics.Pprof
		srv := admin.New(adminCfg, env.metrics, env.manager, logger.Named("admin"))
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("admin endpoint shutdown", zap.Error(err))
			}
		}()
	}

	// The workspace root arrives with initialize, so only the configured
	// closure is passed as the fallback here
	server := lsp.NewServer(lsp.Options{
		Logger:       logger.Named("lsp"),
		Manager:      env.manager,
		Watcher:      watcher,
		Tooling:      &tooling.Config{Completion: env.cfg.Completion, SourceRoots: append([]string(nil), env.cfg.SourceRoots...)},
		Dependencies: env.cfg.Resolve(""),
		Version:      Version,
	})

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return server.Run(ctx)
}
