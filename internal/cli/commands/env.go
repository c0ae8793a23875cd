package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattmok/idea-spring-boot-assistant/internal/cli/config"
	"github.com/mattmok/idea-spring-boot-assistant/internal/cli/ui"
	"github.com/mattmok/idea-spring-boot-assistant/internal/index"
	"github.com/mattmok/idea-spring-boot-assistant/internal/lifecycle"
	"github.com/mattmok/idea-spring-boot-assistant/internal/locator"
	"github.com/mattmok/idea-spring-boot-assistant/internal/logging"
	"github.com/mattmok/idea-spring-boot-assistant/internal/telemetry"
	"github.com/mattmok/idea-spring-boot-assistant/internal/tooling"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// shutdownTimeout bounds flushing traces and stopping rebuilds on exit
const shutdownTimeout = 5 * time.Second

// globalFlags are the persistent flags of the root command
type globalFlags struct {
	configFile   string
	project      string
	dependencies []string
	classpath    string
	logLevel     string
	noColor      bool
}

var flags globalFlags

// environment is the wired component graph a command runs against
type environment struct {
	cfg     *config.Config
	root    string
	logger  *zap.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	manager *lifecycle.Manager
}

// configLoadError marks a failure to read or validate the configuration so
// Execute can report it with configuration help
type configLoadError struct {
	err error
}

func (e *configLoadError) Error() string { return e.err.Error() }

func (e *configLoadError) Unwrap() error { return e.err }

// loadConfig reads the configuration file and applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, &configLoadError{err: err}
	}
	cfg.Dependencies = append(cfg.Dependencies, flags.dependencies...)
	if flags.classpath != "" {
		if cfg.Classpath != "" {
			cfg.Classpath += string(os.PathListSeparator)
		}
		cfg.Classpath += flags.classpath
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	return cfg, nil
}

// projectRoot is --project, else the enclosing Maven or Gradle project,
// else the working directory
func projectRoot() (string, error) {
	if flags.project != "" {
		return filepath.Abs(flags.project)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if root, err := config.ProjectRoot(wd); err == nil {
		return root, nil
	}
	return wd, nil
}

func newEnvironment() (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	root, err := projectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to determine project root: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	metrics := telemetry.NewMetrics(cfg.Metrics.Telemetry())
	tracer, err := telemetry.NewTracer(cfg.Tracing.Telemetry(), "spring-assistant", Version)
	if err != nil {
		return nil, err
	}

	manager, err := lifecycle.New(cfg.Index, locator.New(logger.Named("locator")), logger.Named("index"),
		lifecycle.WithMetrics(metrics),
		lifecycle.WithTracer(tracer),
	)
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}

	return &environment{
		cfg:     cfg,
		root:    root,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		manager: manager,
	}, nil
}

// dependencies is the project root followed by the configured closure
func (e *environment) dependencies() []locator.Dependency {
	return e.cfg.Resolve(e.root)
}

// toolingConfig anchors the configured source roots at the project root
func (e *environment) toolingConfig() *tooling.Config {
	roots := make([]string, 0, len(e.cfg.SourceRoots))
	for _, r := range e.cfg.SourceRoots {
		if !filepath.IsAbs(r) {
			r = filepath.Join(e.root, r)
		}
		roots = append(roots, r)
	}
	return &tooling.Config{Completion: e.cfg.Completion, SourceRoots: roots}
}

// buildIndex indexes the dependency closure, showing a spinner on the
// command's stderr while it waits
func (e *environment) buildIndex(cmd *cobra.Command) (*index.Index, error) {
	deps := e.dependencies()
	if err := e.manager.SetDependencies(tooling.DefaultModule, deps); err != nil {
		return nil, err
	}

	var idx *index.Index
	message := fmt.Sprintf("Indexing %d %s", len(deps), plural(len(deps), "dependency", "dependencies"))
	err := ui.WithSpinner(cmd.ErrOrStderr(), message, flags.noColor, func() error {
		var err error
		idx, err = e.manager.Wait(commandContext(cmd), tooling.DefaultModule)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}
	return idx, nil
}

// close stops rebuilds and flushes telemetry
func (e *environment) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.manager.Shutdown(ctx); err != nil {
		e.logger.Warn("index manager shutdown", zap.Error(err))
	}
	if err := e.tracer.Shutdown(ctx); err != nil {
		e.logger.Warn("tracer shutdown", zap.Error(err))
	}
	_ = e.logger.Sync()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
