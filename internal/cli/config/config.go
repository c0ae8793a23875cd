package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mattmok/idea-spring-boot-assistant/internal/completion"
	"github.com/mattmok/idea-spring-boot-assistant/internal/lifecycle"
	"github.com/mattmok/idea-spring-boot-assistant/internal/locator"
	"github.com/mattmok/idea-spring-boot-assistant/internal/logging"
	"github.com/mattmok/idea-spring-boot-assistant/internal/telemetry"
	"github.com/mattmok/idea-spring-boot-assistant/internal/watch"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SPRING_ASSISTANT_LOG_LEVEL
const EnvPrefix = "SPRING_ASSISTANT"

// Config represents the spring-assistant configuration
type Config struct {
	Log        logging.Config    `mapstructure:"log"`
	Completion completion.Config `mapstructure:"completion"`
	Index      lifecycle.Config  `mapstructure:"index"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Tracing    TracingConfig     `mapstructure:"tracing"`
	Watch      WatchConfig       `mapstructure:"watch"`

	// Dependencies are library jars or directories whose descriptors are
	// indexed, in classpath order
	Dependencies []string `mapstructure:"dependencies"`
	// Classpath is an OS path-list appended after Dependencies
	Classpath string `mapstructure:"classpath"`
	// ProjectRoots are the module output roots, indexed before libraries
	ProjectRoots []string `mapstructure:"project_roots"`
	// SourceRoots are searched for configuration class sources
	SourceRoots []string `mapstructure:"source_roots"`
}

// MetricsConfig enables Prometheus metrics
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	// Listen serves /metrics and /healthz on this address when set
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
	// Pprof adds /debug/pprof to the listener
	Pprof bool `mapstructure:"pprof"`
}

// TracingConfig enables OpenTelemetry tracing
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter" validate:"omitempty,oneof=stdout none"`
}

// WatchConfig tunes dependency watching
type WatchConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// DebounceMillis coalesces bursts of file events
	DebounceMillis int `mapstructure:"debounce_ms" validate:"gte=0"`
}

// Delay returns the debounce delay
func (w WatchConfig) Delay() time.Duration {
	return time.Duration(w.DebounceMillis) * time.Millisecond
}

// Telemetry returns the metrics settings in the form telemetry expects
func (m MetricsConfig) Telemetry() telemetry.MetricsConfig {
	return telemetry.MetricsConfig{Enabled: m.Enabled, Namespace: m.Namespace}
}

// Telemetry returns the tracing settings in the form telemetry expects
func (t TracingConfig) Telemetry() telemetry.TracingConfig {
	return telemetry.TracingConfig{Enabled: t.Enabled, Exporter: t.Exporter}
}

// Resolve returns the configured dependency closure in classpath order:
// projectRoot (when not empty) and ProjectRoots first, then Dependencies
// and Classpath. Relative paths are taken from projectRoot.
func (c *Config) Resolve(projectRoot string) []locator.Dependency {
	abs := func(p string) string {
		if projectRoot != "" && !filepath.IsAbs(p) {
			return filepath.Join(projectRoot, p)
		}
		return p
	}

	var deps []locator.Dependency
	if projectRoot != "" {
		deps = append(deps, locator.Dependency{ID: filepath.Base(projectRoot), Path: projectRoot, Kind: locator.KindProject})
	}
	for _, root := range c.ProjectRoots {
		root = abs(root)
		deps = append(deps, locator.Dependency{ID: filepath.Base(root), Path: root, Kind: locator.KindProject})
	}
	for _, p := range c.Dependencies {
		p = abs(p)
		deps = append(deps, locator.Dependency{ID: filepath.Base(p), Path: p, Kind: locator.KindLibrary})
	}
	for _, dep := range locator.ParseClasspath(c.Classpath, locator.KindLibrary) {
		dep.Path = abs(dep.Path)
		deps = append(deps, dep)
	}
	return deps
}

var validate = validator.New()

// Load reads spring-assistant.{yml,yaml,json,toml} from the working
// directory, or file when it is not empty, and applies environment
// overrides. A missing default file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("spring-assistant")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	cd := completion.DefaultConfig()
	v.SetDefault("completion.limit", cd.Limit)
	v.SetDefault("completion.fuzzy_limit", cd.FuzzyLimit)
	v.SetDefault("completion.timeout", cd.Timeout)

	ld := lifecycle.DefaultConfig()
	v.SetDefault("index.workers", ld.Workers)
	v.SetDefault("index.catalog_cache_size", ld.CatalogCacheSize)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("metrics.namespace", "spring_assistant")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.debounce_ms", int(watch.DefaultDelay/time.Millisecond))
	v.SetDefault("source_roots", []string{"src/main/java", "src/main/kotlin"})
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid configuration: %s fails %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Log.Output == "stdout" {
		return fmt.Errorf("invalid configuration: log.output cannot be stdout")
	}
	return nil
}

// buildFiles mark the root of a Maven or Gradle project
var buildFiles = []string{"pom.xml", "build.gradle", "build.gradle.kts", "settings.gradle", "settings.gradle.kts"}

// ProjectRoot walks up from dir to the nearest directory holding a Maven or
// Gradle build file
func ProjectRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		for _, name := range buildFiles {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a Maven or Gradle project (no build file found)")
		}
		dir = parent
	}
}
