package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattmok/idea-spring-boot-assistant/internal/cli/ui"
	"github.com/mattmok/idea-spring-boot-assistant/internal/tooling"
	"github.com/mattmok/idea-spring-boot-assistant/internal/utils"
	"github.com/spf13/cobra"
)

// errValidationFailed is returned when a validated file has errors, or
// warnings under --strict
var errValidationFailed = errors.New("validation failed")

type validateOptions struct {
	strict bool
	json   bool
}

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate [file|dir]...",
		Short: "Validate configuration files against the property index",
		Long: `Validate application*.properties and application*.yml files against the
property index and report unknown, deprecated, duplicated and mistyped
properties. Directories are searched recursively; without arguments
the project's src directory, or the project itself, is searched.

The command fails when any file has errors, or warnings with --strict.

Examples:
  spring-assistant validate
  spring-assistant validate src/main/resources/application.yml
  spring-assistant validate --strict --json src/main/resources`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail on warnings too")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output as JSON")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string, opts *validateOptions) error {
	env, err := newEnvironment()
	if err != nil {
		return err
	}
	defer env.close()

	if len(args) == 0 {
		args = []string{env.root}
		if info, err := os.Stat(filepath.Join(env.root, "src")); err == nil && info.IsDir() {
			args = []string{filepath.Join(env.root, "src")}
		}
	}
	files, err := utils.FindConfigFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprint(cmd.ErrOrStderr(), ui.Warning("No configuration files found.", flags.noColor))
		return nil
	}

	if _, err := env.buildIndex(cmd); err != nil {
		return err
	}

	api := tooling.NewAPIWithConfig(env.manager, env.logger, env.toolingConfig())
	results := make([]fileResult, 0, len(files))
	spinner := ui.NewSpinner(cmd.ErrOrStderr(), ui.SpinnerOptions{NoColor: flags.noColor})
	spinner.Start()
	for i, path := range files {
		spinner.UpdateMessage(fmt.Sprintf("Validating %s (%d/%d)", filepath.Base(path), i+1, len(files)))
		r, err := validateFile(cmd, api, path)
		if err != nil {
			spinner.Error(fmt.Sprintf("Validating %s failed", filepath.Base(path)))
			return err
		}
		results = append(results, r)
	}
	spinner.Stop()

	report := summarizeResults(results)
	out := cmd.OutOrStdout()
	if opts.json {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		renderReport(out, env.root, report)
	}

	if report.Errors > 0 || (opts.strict && report.Warnings > 0) {
		return errValidationFailed
	}
	return nil
}

// fileResult is the validation outcome of one file
type fileResult struct {
	Path        string               `json:"path"`
	Diagnostics []diagnosticLocation `json:"diagnostics"`
}

type diagnosticLocation struct {
	Line        int    `json:"line"`
	Column      int    `json:"column"`
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	Replacement string `json:"replacement,omitempty"`
}

type validationReport struct {
	Files    []fileResult `json:"files"`
	Errors   int          `json:"errors"`
	Warnings int          `json:"warnings"`
}

func validateFile(cmd *cobra.Command, api *tooling.API, path string) (fileResult, error) {
	result := fileResult{Path: path, Diagnostics: []diagnosticLocation{}}
	content, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("failed to read %s: %w", path, err)
	}
	docURI, err := fileURI(path)
	if err != nil {
		return result, err
	}
	if _, err := api.OpenDocument(docURI, string(content), 1); err != nil {
		return result, err
	}
	defer api.CloseDocument(docURI)

	for _, d := range api.GetDiagnostics(commandContext(cmd), docURI) {
		result.Diagnostics = append(result.Diagnostics, diagnosticLocation{
			Line:        d.Range.Start.Line + 1,
			Column:      d.Range.Start.Character + 1,
			Severity:    severityName(d.Severity),
			Code:        d.Code,
			Message:     d.Message,
			Replacement: d.Replacement,
		})
	}
	return result, nil
}

func severityName(s tooling.DiagnosticSeverity) string {
	switch s {
	case tooling.DiagnosticSeverityError:
		return "error"
	case tooling.DiagnosticSeverityWarning:
		return "warning"
	case tooling.DiagnosticSeverityInfo:
		return "info"
	default:
		return "hint"
	}
}

func summarizeResults(results []fileResult) validationReport {
	report := validationReport{Files: results}
	for _, r := range results {
		for _, d := range r.Diagnostics {
			switch d.Severity {
			case "error":
				report.Errors++
			case "warning":
				report.Warnings++
			}
		}
	}
	return report
}

func renderReport(w io.Writer, root string, report validationReport) {
	for _, r := range report.Files {
		path := r.Path
		if rel, err := filepath.Rel(root, path); err == nil && !filepath.IsAbs(rel) && rel != "" && rel[0] != '.' {
			path = rel
		}
		for _, d := range r.Diagnostics {
			fmt.Fprintln(w, ui.Diagnostic(path, d.Line-1, d.Column-1, d.Severity, d.Message, d.Code, flags.noColor))
		}
	}

	files := len(report.Files)
	summary := fmt.Sprintf("%d %s checked: %d %s, %d %s",
		files, plural(files, "file", "files"),
		report.Errors, plural(report.Errors, "error", "errors"),
		report.Warnings, plural(report.Warnings, "warning", "warnings"))
	if report.Errors > 0 {
		ui.WriteError(w, ui.ErrorOptions{Problem: summary, NoColor: flags.noColor})
		return
	}
	ui.WriteSuccess(w, summary, flags.noColor)
}
