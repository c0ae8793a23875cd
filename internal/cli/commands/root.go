package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/mattmok/idea-spring-boot-assistant/internal/cli/ui"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spring-assistant",
		Short: "Spring Boot configuration metadata index and completion engine",
		Long: color.CyanString(`spring-assistant - Spring Boot configuration assistant

Indexes the configuration metadata of a project and its libraries
(META-INF/spring-configuration-metadata.json) and uses it to complete,
document and validate application.properties and application.yml files.

Features:
  • Property key and value completion with fuzzy matching
  • Type, default and deprecation information
  • Validation of unknown, deprecated and mistyped properties
  • Language server for editor integration`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.noColor {
				color.NoColor = true
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (default ./spring-assistant.{yml,yaml,json,toml})")
	pf.StringVarP(&flags.project, "project", "p", "", "project root (default: enclosing Maven or Gradle project)")
	pf.StringArrayVarP(&flags.dependencies, "dependency", "d", nil, "library jar or directory to index (repeatable)")
	pf.StringVar(&flags.classpath, "classpath", "", "path list of library jars or directories to index")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewLSPCommand())
	rootCmd.AddCommand(NewIndexCommand())
	rootCmd.AddCommand(NewDescribeCommand())
	rootCmd.AddCommand(NewCompleteCommand())
	rootCmd.AddCommand(NewValidateCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the spring-assistant version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "spring-assistant version: ")
			fmt.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	return execute(NewRootCommand())
}

// execute runs rootCmd and reports a failure on its stderr. Configuration
// failures get configuration help; commands that already explained
// themselves are not repeated.
func execute(rootCmd *cobra.Command) error {
	err := rootCmd.Execute()
	if err == nil {
		return nil
	}

	var cfgErr *configLoadError
	switch {
	case errors.As(err, &cfgErr):
		fmt.Fprint(rootCmd.ErrOrStderr(), ui.ConfigError(cfgErr.Error(), flags.noColor))
	case errors.Is(err, errUnknownProperty):
	default:
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}
