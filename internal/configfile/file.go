// Package configfile reads Spring Boot configuration files, in .properties or
// YAML form, into flat dotted key/value entries with exact source ranges.
// Both syntaxes map onto the same key address space, so "server.port=80"
// and "server:\n  port: 80" produce the same entry key.
package configfile

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Syntax is the on-disk format of a configuration file
type Syntax int

const (
	SyntaxProperties Syntax = iota
	SyntaxYAML
)

func (s Syntax) String() string {
	if s == SyntaxYAML {
		return "yaml"
	}
	return "properties"
}

// SyntaxFor returns the syntax implied by the file extension of path, which
// may also be a file:// URI.
func SyntaxFor(path string) (Syntax, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".properties":
		return SyntaxProperties, true
	case ".yml", ".yaml":
		return SyntaxYAML, true
	default:
		return SyntaxProperties, false
	}
}

// IsSpringConfig reports whether path names a Spring Boot configuration file,
// e.g. application.properties, application-dev.yml or bootstrap.yaml.
func IsSpringConfig(path string) bool {
	if _, ok := SyntaxFor(path); !ok {
		return false
	}
	base := strings.ToLower(filepath.Base(path))
	return strings.HasPrefix(base, "application") || strings.HasPrefix(base, "bootstrap")
}

// Entry is one key/value assignment. Key is the dotted key as written, not
// normalized; nested YAML mappings are joined with dots and sequence items
// become [i] indexes.
type Entry struct {
	Key      string
	KeyRange Range

	Value      string
	ValueRange Range
	// HasValue is false for a bare key or a YAML null
	HasValue bool

	// Document is the zero-based document index within a multi-document file
	Document int
	// Line is the zero-based line of the key
	Line int
}

// SyntaxError is a parse failure at a known line
type SyntaxError struct {
	Line    int // Zero-based line number, -1 when unknown
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Line < 0 {
		return "syntax error: " + e.Message
	}
	return fmt.Sprintf("line %d: %s", e.Line+1, e.Message)
}

// File is a parsed configuration file
type File struct {
	URI     string
	Syntax  Syntax
	Entries []Entry
	// Err is set when parsing stopped early. Entries read before the error
	// are kept.
	Err error
}

// EntryAt returns the entry whose key or value range contains pos
func (f *File) EntryAt(pos Position) (*Entry, bool) {
	for i := range f.Entries {
		e := &f.Entries[i]
		if e.KeyRange.Contains(pos) || (e.HasValue && e.ValueRange.Contains(pos)) {
			return e, true
		}
	}
	return nil, false
}

// Parse reads content in the given syntax. It never fails; problems are
// reported through File.Err.
func Parse(uri, content string, syntax Syntax) *File {
	f := &File{URI: uri, Syntax: syntax}
	if syntax == SyntaxYAML {
		f.Entries, f.Err = parseYAML(content)
	} else {
		f.Entries = parseProperties(content)
	}
	return f
}

func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.Split(content, "\n")
}

// parseProperties scans java.util.Properties syntax. A "#---" or "!---" line
// starts a new document.
func parseProperties(content string) []Entry {
	lines := splitLines(content)
	var entries []Entry
	doc := 0

	for l := 0; l < len(lines); l++ {
		runes := []rune(lines[l])
		i := skipSpace(runes, 0)
		if i == len(runes) {
			continue
		}
		if runes[i] == '#' || runes[i] == '!' {
			if rest := strings.TrimSpace(string(runes[i+1:])); rest == "---" {
				doc++
			}
			continue
		}

		e := Entry{Document: doc, Line: l}
		var key strings.Builder
		keyStart := i
		for i < len(runes) {
			r := runes[i]
			if r == '\\' && i+1 < len(runes) {
				key.WriteRune(unescape(runes[i+1]))
				i += 2
				continue
			}
			if r == '\\' || r == '=' || r == ':' || r == ' ' || r == '\t' || r == '\f' {
				break
			}
			key.WriteRune(r)
			i++
		}
		e.Key = key.String()
		e.KeyRange = lineRange(l, keyStart, i)

		i = skipSpace(runes, i)
		if i < len(runes) && (runes[i] == '=' || runes[i] == ':') {
			e.HasValue = true
			i = skipSpace(runes, i+1)
		}

		var value strings.Builder
		start := Position{Line: l, Character: i}
		end := start
		for {
			text, continued := trimContinuation(runes[i:])
			value.WriteString(unescapeValue(text))
			if len(strings.TrimSpace(text)) > 0 {
				end = Position{Line: l, Character: i + len([]rune(strings.TrimRight(text, " \t\f")))}
			}
			if !continued || l+1 >= len(lines) {
				break
			}
			l++
			runes = []rune(lines[l])
			i = skipSpace(runes, 0)
		}
		e.Value = strings.TrimRight(value.String(), " \t\f")
		if e.Value != "" {
			e.HasValue = true
		}
		e.ValueRange = Range{Start: start, End: end}
		entries = append(entries, e)
	}
	return entries
}

func skipSpace(runes []rune, i int) int {
	for i < len(runes) && (runes[i] == ' ' || runes[i] == '\t' || runes[i] == '\f') {
		i++
	}
	return i
}

// trimContinuation strips a trailing line-continuation backslash. An even
// run of backslashes is an escaped backslash, not a continuation.
func trimContinuation(runes []rune) (string, bool) {
	n := 0
	for j := len(runes) - 1; j >= 0 && runes[j] == '\\'; j-- {
		n++
	}
	if n%2 == 1 {
		return string(runes[:len(runes)-1]), true
	}
	return string(runes), false
}

func unescape(r rune) rune {
	switch r {
	case 't':
		return '\t'
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 'f':
		return '\f'
	default:
		return r
	}
}

func unescapeValue(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '\\' || i+1 == len(runes) {
			b.WriteRune(runes[i])
			continue
		}
		i++
		if runes[i] == 'u' && i+4 < len(runes) {
			if v, err := strconv.ParseUint(string(runes[i+1:i+5]), 16, 32); err == nil {
				b.WriteRune(rune(v))
				i += 4
				continue
			}
		}
		b.WriteRune(unescape(runes[i]))
	}
	return b.String()
}

// parseYAML flattens every document into leaf entries
func parseYAML(content string) ([]Entry, error) {
	lines := splitLines(content)
	dec := yaml.NewDecoder(strings.NewReader(content))
	var entries []Entry

	for doc := 0; ; doc++ {
		var root yaml.Node
		if err := dec.Decode(&root); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return entries, yamlError(err)
		}
		w := &yamlWalker{lines: lines, doc: doc}
		for _, n := range root.Content {
			w.walk(n, "", nil, 0)
		}
		entries = append(entries, w.entries...)
	}
}

// yamlError turns yaml.v3's "yaml: line 3: message" strings into a
// SyntaxError with a zero-based line.
func yamlError(err error) error {
	msg := err.Error()
	rest, ok := strings.CutPrefix(msg, "yaml: line ")
	if !ok {
		return &SyntaxError{Line: -1, Message: strings.TrimPrefix(msg, "yaml: ")}
	}
	num, text, ok := strings.Cut(rest, ":")
	line, convErr := strconv.Atoi(num)
	if !ok || convErr != nil {
		return &SyntaxError{Line: -1, Message: strings.TrimPrefix(msg, "yaml: ")}
	}
	return &SyntaxError{Line: line - 1, Message: strings.TrimSpace(text)}
}

const maxYAMLDepth = 64

type yamlWalker struct {
	lines   []string
	doc     int
	entries []Entry
}

func (w *yamlWalker) walk(n *yaml.Node, prefix string, key *yaml.Node, depth int) {
	if n == nil || depth > maxYAMLDepth {
		return
	}
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Value == "<<" && k.ShortTag() == "!!merge" {
				w.walk(v, prefix, key, depth+1)
				continue
			}
			w.walk(v, joinKey(prefix, k.Value), k, depth+1)
		}
	case yaml.SequenceNode:
		for i, item := range n.Content {
			w.walk(item, prefix+"["+strconv.Itoa(i)+"]", key, depth+1)
		}
	case yaml.AliasNode:
		w.walk(n.Alias, prefix, key, depth+1)
	case yaml.ScalarNode:
		if prefix == "" {
			return
		}
		e := Entry{Key: prefix, Document: w.doc}
		if key != nil {
			e.KeyRange = w.scalarRange(key)
		} else {
			e.KeyRange = w.scalarRange(n)
		}
		e.Line = e.KeyRange.Start.Line
		if n.ShortTag() != "!!null" {
			e.Value = n.Value
			e.HasValue = true
		}
		e.ValueRange = w.scalarRange(n)
		if !e.HasValue && n.Value == "" {
			// an absent value sits right after the key's colon
			e.ValueRange = Range{Start: e.KeyRange.End, End: e.KeyRange.End}
		}
		w.entries = append(w.entries, e)
	}
}

// scalarRange computes the source range of a scalar node. yaml.v3 reports
// one-based rune positions of the first character.
func (w *yamlWalker) scalarRange(n *yaml.Node) Range {
	line, col := n.Line-1, n.Column-1
	if line < 0 {
		return Range{}
	}
	switch {
	case n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0:
		// block scalars run to the last line indented deeper than their key
		base := indentOf(w.lineAt(line))
		end := line
		for l := line + 1; l < len(w.lines); l++ {
			text := w.lines[l]
			if strings.TrimSpace(text) == "" {
				continue
			}
			if indentOf(text) <= base {
				break
			}
			end = l
		}
		endChar := utf8.RuneCountInString(w.lineAt(end))
		if end == line {
			endChar = col + 1
		}
		return Range{Start: Position{Line: line, Character: col}, End: Position{Line: end, Character: endChar}}
	case n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0:
		return lineRange(line, col, col+w.quotedWidth(line, col))
	default:
		width := utf8.RuneCountInString(n.Value)
		if n.Value == "" && n.ShortTag() == "!!null" {
			width = 0
		}
		return lineRange(line, col, col+width)
	}
}

// quotedWidth measures a quoted scalar on its source line, including quotes
func (w *yamlWalker) quotedWidth(line, col int) int {
	runes := []rune(w.lineAt(line))
	if col >= len(runes) {
		return 0
	}
	quote := runes[col]
	for i := col + 1; i < len(runes); i++ {
		switch {
		case quote == '"' && runes[i] == '\\':
			i++
		case quote == '\'' && runes[i] == '\'' && i+1 < len(runes) && runes[i+1] == '\'':
			i++
		case runes[i] == quote:
			return i - col + 1
		}
	}
	return len(runes) - col
}

func (w *yamlWalker) lineAt(l int) string {
	if l < 0 || l >= len(w.lines) {
		return ""
	}
	return w.lines[l]
}

func indentOf(s string) int {
	return len(s) - len(strings.TrimLeft(s, " "))
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case strings.HasPrefix(key, "["):
		return prefix + key
	default:
		return prefix + "." + key
	}
}
