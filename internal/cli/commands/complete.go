package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattmok/idea-spring-boot-assistant/internal/cli/ui"
	"github.com/mattmok/idea-spring-boot-assistant/internal/tooling"
	"github.com/spf13/cobra"
	"go.lsp.dev/uri"
)

// NewCompleteCommand creates the complete command
func NewCompleteCommand() *cobra.Command {
	var asJSON, stdin bool
	cmd := &cobra.Command{
		Use:   "complete <file> <line:column>",
		Short: "List completions at a position in a configuration file",
		Long: `List the completions the language server would offer at a position in an
application*.properties or application*.yml file. Line and column are
1-based; the column counts characters, not bytes.

With --stdin the file content is read from standard input and <file> only
selects the syntax and module.

Examples:
  spring-assistant complete src/main/resources/application.properties 3:8
  echo "server.p" | spring-assistant complete --stdin application.properties 1:9`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[1])
			if err != nil {
				return err
			}
			content, err := readContent(cmd.InOrStdin(), args[0], stdin)
			if err != nil {
				return err
			}

			env, err := newEnvironment()
			if err != nil {
				return err
			}
			defer env.close()
			if _, err := env.buildIndex(cmd); err != nil {
				return err
			}

			api := tooling.NewAPIWithConfig(env.manager, env.logger, env.toolingConfig())
			docURI, err := fileURI(args[0])
			if err != nil {
				return err
			}
			if _, err := api.OpenDocument(docURI, content, 1); err != nil {
				return err
			}
			items, err := api.GetCompletions(commandContext(cmd), docURI, pos)
			if err != nil {
				return err
			}
			return renderCompletions(cmd.OutOrStdout(), items, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "read the file content from standard input")
	return cmd
}

// parsePosition parses a 1-based "line:column" into a zero-based position
func parsePosition(s string) (tooling.Position, error) {
	lineStr, colStr, ok := strings.Cut(s, ":")
	if !ok {
		return tooling.Position{}, fmt.Errorf("invalid position %q: expected line:column", s)
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil || line < 1 {
		return tooling.Position{}, fmt.Errorf("invalid line in %q", s)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil || col < 1 {
		return tooling.Position{}, fmt.Errorf("invalid column in %q", s)
	}
	return tooling.Position{Line: line - 1, Character: col - 1}, nil
}

func readContent(stdin io.Reader, path string, fromStdin bool) (string, error) {
	if fromStdin {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read standard input: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func fileURI(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return string(uri.File(abs)), nil
}

type completionInfo struct {
	Label      string `json:"label"`
	Insert     string `json:"insert_text"`
	Detail     string `json:"detail,omitempty"`
	Kind       string `json:"kind"`
	Deprecated bool   `json:"deprecated,omitempty"`
}

func completionKindName(k tooling.CompletionKind) string {
	switch k {
	case tooling.CompletionKindGroup:
		return "group"
	case tooling.CompletionKindValue:
		return "value"
	case tooling.CompletionKindHint:
		return "hint"
	default:
		return "property"
	}
}

func renderCompletions(w io.Writer, items []tooling.CompletionItem, asJSON bool) error {
	if asJSON {
		out := make([]completionInfo, len(items))
		for i, item := range items {
			out[i] = completionInfo{
				Label:      item.Label,
				Insert:     item.InsertText,
				Detail:     item.Detail,
				Kind:       completionKindName(item.Kind),
				Deprecated: item.Deprecated,
			}
		}
		return writeJSON(w, out)
	}

	if len(items) == 0 {
		fmt.Fprint(w, ui.Warning("No completions.", flags.noColor))
		return nil
	}
	table := ui.NewTable(w, []string{"Label", "Kind", "Detail"}, &ui.TableOptions{NoColor: flags.noColor, MaxCellWidth: 60})
	for _, item := range items {
		label := item.Label
		if item.Deprecated {
			label += " (deprecated)"
		}
		table.AddRow(label, completionKindName(item.Kind), item.Detail)
	}
	table.Render()
	return nil
}
