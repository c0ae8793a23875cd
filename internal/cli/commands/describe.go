package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mattmok/idea-spring-boot-assistant/internal/cli/ui"
	"github.com/mattmok/idea-spring-boot-assistant/internal/index"
	"github.com/mattmok/idea-spring-boot-assistant/internal/resolve"
	"github.com/mattmok/idea-spring-boot-assistant/internal/validate"
	"github.com/spf13/cobra"
)

// errUnknownProperty is returned after the not-found message is printed
var errUnknownProperty = errors.New("unknown property")

// NewDescribeCommand creates the describe command
func NewDescribeCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "describe <key>",
		Short: "Show the metadata of a property",
		Long: `Show the type, default, description, deprecation and declaring
dependencies of a property. Keys are matched in relaxed form, so
server.ssl.key-store and server.ssl.keyStore describe the same property,
and map and list keys resolve to their property.

Examples:
  spring-assistant describe server.port
  spring-assistant describe logging.level.org.springframework`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment()
			if err != nil {
				return err
			}
			defer env.close()

			idx, err := env.buildIndex(cmd)
			if err != nil {
				return err
			}
			return describe(cmd.OutOrStdout(), cmd.ErrOrStderr(), idx, args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

// propertyInfo is the printable form of an index entry
type propertyInfo struct {
	Key         string   `json:"key"`
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Default     string   `json:"default,omitempty"`
	Deprecated  bool     `json:"deprecated,omitempty"`
	Reason      string   `json:"deprecation_reason,omitempty"`
	Replacement string   `json:"replacement,omitempty"`
	Values      []string `json:"values,omitempty"`
	SourceType  string   `json:"source_type,omitempty"`
	Origins     []string `json:"origins"`
}

func describeEntry(e *index.Entry) propertyInfo {
	def := e.Definition
	info := propertyInfo{
		Key:         e.Key,
		Type:        def.Type,
		Description: def.Description,
		Default:     def.Default,
		SourceType:  def.SourceType,
		Deprecated:  def.Deprecated(),
	}
	if def.Deprecation != nil {
		info.Reason = def.Deprecation.Reason
		info.Replacement = def.Deprecation.Replacement
	}
	for _, h := range e.ValueHints {
		info.Values = append(info.Values, h.Value)
	}
	for _, o := range e.Origins() {
		info.Origins = append(info.Origins, o.ID)
	}
	return info
}

func describe(out, errOut io.Writer, idx *index.Index, key string, asJSON bool) error {
	match, ok := resolve.New(idx).Best(key)
	if !ok {
		var suggestions []string
		if closest := validate.ClosestKey(idx, key); closest != "" {
			suggestions = append(suggestions, closest)
		}
		for _, m := range idx.FuzzyMatches(key, 3) {
			if m.Entry.Key != key && !contains(suggestions, m.Entry.Key) {
				suggestions = append(suggestions, m.Entry.Key)
			}
		}
		fmt.Fprint(errOut, ui.PropertyNotFoundError(key, suggestions, flags.noColor))
		return errUnknownProperty
	}

	info := describeEntry(match.Entry)
	if asJSON {
		return writeJSON(out, info)
	}

	ui.Header(out, info.Key, flags.noColor)
	kv := ui.NewKeyValueTable(out, flags.noColor)
	if match.Via != resolve.ViaExact {
		kv.AddRow("Matched", fmt.Sprintf("%s via %s", key, match.Via))
	}
	kv.AddRow("Type", info.Type)
	kv.AddRow("Default", info.Default)
	kv.AddRow("Values", strings.Join(info.Values, ", "))
	kv.AddRow("Declared in", info.SourceType)
	kv.AddRow("Origins", strings.Join(info.Origins, ", "))
	if info.Deprecated {
		kv.AddRow("Deprecated", nonEmpty(info.Reason, "yes"))
		kv.AddRow("Replacement", info.Replacement)
	}
	kv.Render()

	if info.Description != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, info.Description)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
