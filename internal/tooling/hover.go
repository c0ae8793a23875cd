package tooling

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattmok/idea-spring-boot-assistant/internal/completion"
	"github.com/mattmok/idea-spring-boot-assistant/internal/configfile"
	"github.com/mattmok/idea-spring-boot-assistant/internal/locator"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
	"github.com/mattmok/idea-spring-boot-assistant/internal/resolve"
	"go.lsp.dev/uri"
)

// GetHover returns hover information for the property at pos.
// Returns (nil, nil) if no known property is found at the position.
func (a *API) GetHover(ctx context.Context, docURI string, pos Position) (*Hover, error) {
	doc, exists := a.GetDocument(docURI)
	if !exists {
		return nil, fmt.Errorf("document not found: %s", docURI)
	}
	entry, ok := doc.File.EntryAt(pos)
	if !ok {
		return nil, nil //nolint:nilnil // nil hover is valid when no property at position
	}
	idx, err := a.await(ctx, doc.Module)
	if err != nil {
		return nil, nil //nolint:nilnil // no index, nothing to describe
	}
	match, ok := resolve.New(idx).Best(entry.Key)
	if !ok {
		return nil, nil //nolint:nilnil // unknown key
	}

	onValue := entry.HasValue && entry.ValueRange.Contains(pos) && !entry.KeyRange.Contains(pos)
	h := buildHover(match, entry, onValue)
	return h, nil
}

// buildHover creates hover information for a resolved entry
func buildHover(match resolve.Match, entry *configfile.Entry, onValue bool) *Hover {
	def := match.Entry.Definition
	var content strings.Builder

	content.WriteString("```properties\n")
	content.WriteString(fmt.Sprintf("%s: %s", match.Entry.Key, typeName(def.Type, match.Entry.Kind)))
	content.WriteString("\n```\n\n")

	switch match.Via {
	case resolve.ViaMap:
		content.WriteString(fmt.Sprintf("*Map entry of* `%s`, values are %s\n\n", match.Entry.Key, match.Kind))
	case resolve.ViaList:
		content.WriteString(fmt.Sprintf("*List element of* `%s`, elements are %s\n\n", match.Entry.Key, match.Kind))
	}

	if def.Description != "" {
		content.WriteString(def.Description)
		content.WriteString("\n\n")
	}

	if onValue {
		for _, h := range match.Entry.ValueHints {
			if strings.EqualFold(h.Value, strings.TrimSpace(entry.Value)) && h.Description != "" {
				content.WriteString(fmt.Sprintf("`%s`: %s\n\n", h.Value, h.Description))
				break
			}
		}
	}

	if def.HasDefault {
		content.WriteString(fmt.Sprintf("**Default:** `%s`\n\n", def.Default))
	}

	if def.Deprecated() {
		content.WriteString("---\n\n")
		content.WriteString(deprecationText(def.Deprecation))
		content.WriteString("\n\n")
	}

	origins := match.Entry.Origins()
	ids := make([]string, len(origins))
	for i, o := range origins {
		ids[i] = o.ID
	}
	content.WriteString(fmt.Sprintf("*Declared by:* %s\n", strings.Join(ids, ", ")))

	rng := entry.KeyRange
	if onValue {
		rng = entry.ValueRange
	}
	return &Hover{Contents: content.String(), Range: rng}
}

func typeName(javaType string, kind metadata.ValueKind) string {
	if javaType != "" {
		return metadata.ShortType(javaType)
	}
	return kind.String()
}

func deprecationText(d *metadata.Deprecation) string {
	var b strings.Builder
	b.WriteString("**Deprecated**")
	if d.Level == metadata.DeprecationError {
		b.WriteString(" and no longer supported")
	}
	if d.Since != "" {
		b.WriteString(" since " + d.Since)
	}
	if d.Reason != "" {
		b.WriteString(": " + d.Reason)
	}
	if d.Replacement != "" {
		b.WriteString(fmt.Sprintf(" Use `%s` instead.", d.Replacement))
	}
	return b.String()
}

// suggestionDocs renders the documentation of a completion suggestion
func suggestionDocs(s completion.Suggestion) string {
	var parts []string
	if s.Description != "" {
		parts = append(parts, s.Description)
	}
	if s.Default != "" {
		parts = append(parts, fmt.Sprintf("**Default:** `%s`", s.Default))
	}
	if s.Deprecated {
		text := "**Deprecated**"
		if s.Replacement != "" {
			text += fmt.Sprintf(" Use `%s` instead.", s.Replacement)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

// GetDefinition returns the descriptor records declaring the property at
// pos, in priority order, followed by the Java source of the configuration
// class when it is found under a source root.
func (a *API) GetDefinition(ctx context.Context, docURI string, pos Position) ([]Location, error) {
	doc, exists := a.GetDocument(docURI)
	if !exists {
		return nil, fmt.Errorf("document not found: %s", docURI)
	}
	entry, ok := doc.File.EntryAt(pos)
	if !ok {
		return []Location{}, nil
	}
	idx, err := a.await(ctx, doc.Module)
	if err != nil {
		return []Location{}, nil
	}
	match, ok := resolve.New(idx).Best(entry.Key)
	if !ok {
		return []Location{}, nil
	}

	locations := make([]Location, 0, len(match.Entry.Definitions)+1)
	for _, def := range match.Entry.Definitions {
		if def.Origin.Location == "" {
			continue
		}
		line := descriptorLine(def.Origin.Location, match.Entry.Key)
		locations = append(locations, Location{
			URI:   locationURI(def.Origin.Location),
			Range: lineStart(max(line, 0)),
		})
	}

	if src, line, ok := findSource(a.config.SourceRoots, match.Entry.Definition.SourceType); ok {
		locations = append(locations, Location{URI: string(uri.File(src)), Range: lineStart(line)})
	}
	return locations, nil
}

// descriptorLine finds the record of key in the descriptor at location, or -1
func descriptorLine(location, key string) int {
	rc, err := locator.OpenLocation(location)
	if err != nil {
		return -1
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return -1
	}
	return metadata.FindRecordLine(data, key)
}

// locationURI turns a descriptor location into a URI an editor can open
func locationURI(location string) string {
	if archive, entry := locator.SplitLocation(location); entry == "" {
		return string(uri.File(archive))
	}
	return location
}

// findSource locates the Java source of a fully qualified type below roots
// and the line declaring it
func findSource(roots []string, sourceType string) (string, int, bool) {
	if sourceType == "" {
		return "", 0, false
	}
	outer := sourceType
	simple := sourceType
	if i := strings.IndexByte(outer, '$'); i >= 0 {
		outer = outer[:i]
		simple = sourceType[strings.LastIndexByte(sourceType, '$')+1:]
	} else if i := strings.LastIndexByte(simple, '.'); i >= 0 {
		simple = simple[i+1:]
	}
	rel := filepath.FromSlash(strings.ReplaceAll(outer, ".", "/") + ".java")

	for _, root := range roots {
		path := filepath.Join(root, rel)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		line := declarationLine(f, simple)
		f.Close()
		return path, line, true
	}
	return "", 0, false
}

func declarationLine(r io.Reader, simple string) int {
	scanner := bufio.NewScanner(r)
	for n := 0; scanner.Scan(); n++ {
		text := scanner.Text()
		for _, kw := range []string{"class ", "record ", "interface ", "enum "} {
			if i := strings.Index(text, kw+simple); i >= 0 {
				rest := text[i+len(kw)+len(simple):]
				if rest == "" || strings.ContainsAny(rest[:1], " {<(") {
					return n
				}
			}
		}
	}
	return 0
}

func lineStart(line int) Range {
	p := Position{Line: line}
	return Range{Start: p, End: p}
}
