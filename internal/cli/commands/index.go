package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/goccy/go-json"
	"github.com/mattmok/idea-spring-boot-assistant/internal/cli/ui"
	"github.com/mattmok/idea-spring-boot-assistant/internal/index"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
	"github.com/spf13/cobra"
)

type indexOptions struct {
	prefix     string
	deprecated bool
	limit      int
	json       bool
}

// NewIndexCommand creates the index command
func NewIndexCommand() *cobra.Command {
	opts := &indexOptions{}
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the property index and show what it contains",
		Long: `Build the property index for the project and its dependencies and print a
summary: property and group counts and the descriptors that contributed.

With --prefix or --deprecated, list the matching properties instead.

Examples:
  spring-assistant index
  spring-assistant index --prefix server.ssl
  spring-assistant index --deprecated --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "list properties whose key starts with this prefix")
	cmd.Flags().BoolVar(&opts.deprecated, "deprecated", false, "list deprecated properties")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum number of properties to list (0 = all)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output as JSON")

	return cmd
}

func runIndex(cmd *cobra.Command, opts *indexOptions) error {
	env, err := newEnvironment()
	if err != nil {
		return err
	}
	defer env.close()

	idx, err := env.buildIndex(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.prefix == "" && !opts.deprecated {
		summary := summarize(idx, len(env.dependencies()))
		if opts.json {
			return writeJSON(out, summary)
		}
		renderSummary(out, summary)
		return nil
	}

	entries := selectEntries(idx, opts)
	if opts.json {
		props := make([]propertyInfo, len(entries))
		for i, e := range entries {
			props[i] = describeEntry(e)
		}
		return writeJSON(out, props)
	}
	renderEntries(out, entries)
	return nil
}

// indexSummary is the index command's report
type indexSummary struct {
	BuildID      string         `json:"build_id"`
	Fingerprint  string         `json:"fingerprint"`
	Dependencies int            `json:"dependencies"`
	Properties   int            `json:"properties"`
	Groups       int            `json:"groups"`
	Deprecated   int            `json:"deprecated"`
	Origins      []originCounts `json:"origins"`
}

type originCounts struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Location   string `json:"location"`
	Properties int    `json:"properties"`
}

func summarize(idx *index.Index, deps int) indexSummary {
	s := indexSummary{
		BuildID:      idx.BuildID(),
		Fingerprint:  fmt.Sprintf("%016x", idx.Fingerprint()),
		Dependencies: deps,
		Properties:   idx.Len(),
		Groups:       len(idx.Groups()),
		Origins:      []originCounts{},
	}

	counts := make(map[string]*originCounts)
	var order []string
	for _, e := range idx.Entries() {
		if e.Deprecated() {
			s.Deprecated++
		}
		for _, o := range e.Origins() {
			key := o.ID + "\x00" + o.Location
			c, ok := counts[key]
			if !ok {
				c = &originCounts{ID: o.ID, Kind: o.Kind.String(), Location: o.Location}
				counts[key] = c
				order = append(order, key)
			}
			c.Properties++
		}
	}
	sort.Strings(order)
	for _, key := range order {
		s.Origins = append(s.Origins, *counts[key])
	}
	return s
}

func renderSummary(w io.Writer, s indexSummary) {
	ui.Header(w, "Property index", flags.noColor)
	kv := ui.NewKeyValueTable(w, flags.noColor)
	kv.AddRow("Dependencies", fmt.Sprint(s.Dependencies))
	kv.AddRow("Properties", fmt.Sprint(s.Properties))
	kv.AddRow("Groups", fmt.Sprint(s.Groups))
	kv.AddRow("Deprecated", fmt.Sprint(s.Deprecated))
	kv.AddRow("Build ID", s.BuildID)
	kv.AddRow("Fingerprint", s.Fingerprint)
	kv.Render()

	if len(s.Origins) == 0 {
		fmt.Fprintln(w)
		fmt.Fprint(w, ui.Warning("No configuration metadata found. Pass library jars with --dependency or --classpath.", flags.noColor))
		return
	}

	fmt.Fprintln(w)
	table := ui.NewTable(w, []string{"Origin", "Kind", "Properties", "Descriptor"}, &ui.TableOptions{NoColor: flags.noColor})
	for _, o := range s.Origins {
		table.AddRow(o.ID, o.Kind, fmt.Sprint(o.Properties), o.Location)
	}
	table.Render()
}

func selectEntries(idx *index.Index, opts *indexOptions) []*index.Entry {
	var entries []*index.Entry
	if opts.prefix != "" {
		entries = idx.PrefixSearch(opts.prefix, 0)
	} else {
		entries = idx.Entries()
	}

	if opts.deprecated {
		kept := entries[:0:0]
		for _, e := range entries {
			if e.Deprecated() {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	if opts.limit > 0 && len(entries) > opts.limit {
		entries = entries[:opts.limit]
	}
	return entries
}

func renderEntries(w io.Writer, entries []*index.Entry) {
	if len(entries) == 0 {
		fmt.Fprint(w, ui.Warning("No matching properties.", flags.noColor))
		return
	}

	table := ui.NewTable(w, []string{"Key", "Type", "Default", "Origin"}, &ui.TableOptions{NoColor: flags.noColor, MaxCellWidth: 60})
	for _, e := range entries {
		key := e.Key
		if e.Deprecated() {
			key += " (deprecated)"
		}
		table.AddRow(key, metadata.ShortType(e.Definition.Type), e.Definition.Default, e.Definition.Origin.ID)
	}
	table.Render()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
