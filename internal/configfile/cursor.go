package configfile

import (
	"strconv"
	"strings"
)

// CursorPosition says which part of an assignment the cursor is in
type CursorPosition int

const (
	// CursorNone is inside a comment or somewhere nothing can be completed
	CursorNone CursorPosition = iota
	// CursorKey is on a key, or on an empty line where a key can start
	CursorKey
	// CursorValue is after the separator of an assignment
	CursorValue
)

func (p CursorPosition) String() string {
	switch p {
	case CursorKey:
		return "key"
	case CursorValue:
		return "value"
	default:
		return "none"
	}
}

// CursorContext describes what is being typed at a cursor
type CursorContext struct {
	Syntax   Syntax
	Position CursorPosition

	// Text is what has been typed of the current token up to the cursor
	Text string
	// Key is the full dotted key: for CursorKey the enclosing path joined with
	// Text, for CursorValue the key whose value is being written. For a YAML
	// list item it is the key of the list itself.
	Key string
	// Enclosing is the dotted path of the YAML mappings and sequence items
	// around the cursor. Always empty for .properties files.
	Enclosing string
	// Range covers the token a completion should replace
	Range Range
	// KeyRange covers the key of the assignment when Position is CursorValue
	KeyRange Range
	// Indent is the column where the current YAML key starts
	Indent int
	// ListItem is set on a YAML "- " sequence entry
	ListItem bool
}

// CursorAt analyzes content at pos
func CursorAt(content string, syntax Syntax, pos Position) CursorContext {
	lines := splitLines(content)
	if pos.Line < 0 || pos.Line >= len(lines) {
		return CursorContext{Syntax: syntax}
	}
	runes := []rune(lines[pos.Line])
	if pos.Character > len(runes) {
		pos.Character = len(runes)
	}
	if pos.Character < 0 {
		pos.Character = 0
	}
	if syntax == SyntaxYAML {
		return yamlCursor(lines, runes, pos)
	}
	return propertiesCursor(lines, runes, pos)
}

func propertiesCursor(lines []string, runes []rune, pos Position) CursorContext {
	cc := CursorContext{Syntax: SyntaxProperties}
	if pos.Line > 0 {
		if _, continued := trimContinuation([]rune(lines[pos.Line-1])); continued {
			return cc
		}
	}

	start := skipSpace(runes, 0)
	if start < len(runes) && (runes[start] == '#' || runes[start] == '!') && start < pos.Character {
		return cc
	}

	keyEnd := start
	for keyEnd < len(runes) {
		r := runes[keyEnd]
		if r == '\\' && keyEnd+1 < len(runes) {
			keyEnd += 2
			continue
		}
		if r == '=' || r == ':' || r == ' ' || r == '\t' || r == '\f' {
			break
		}
		keyEnd++
	}
	key := string(runes[start:keyEnd])

	if pos.Character <= keyEnd {
		cc.Position = CursorKey
		cc.Text = string(runes[start:max(start, pos.Character)])
		cc.Key = cc.Text
		cc.Range = lineRange(pos.Line, start, keyEnd)
		return cc
	}

	valueStart := skipSpace(runes, keyEnd)
	if valueStart < len(runes) && (runes[valueStart] == '=' || runes[valueStart] == ':') {
		valueStart = skipSpace(runes, valueStart+1)
	}
	if pos.Character < valueStart {
		valueStart = pos.Character
	}
	valueEnd := len([]rune(strings.TrimRight(string(runes), " \t\f\\")))
	if valueEnd < pos.Character {
		valueEnd = pos.Character
	}

	cc.Position = CursorValue
	cc.Key = key
	cc.KeyRange = lineRange(pos.Line, start, keyEnd)
	cc.Text = string(runes[valueStart:pos.Character])
	cc.Range = lineRange(pos.Line, valueStart, valueEnd)
	return cc
}

func yamlCursor(lines []string, runes []rune, pos Position) CursorContext {
	cc := CursorContext{Syntax: SyntaxYAML}
	line := string(runes)
	trimmed := strings.TrimSpace(line)
	if trimmed == "---" || trimmed == "..." {
		return cc
	}

	indent := indentOf(line)
	if pos.Character < indent || trimmed == "" {
		// cursor sits in the indentation; a key may start here
		cc.Position = CursorKey
		cc.Indent = pos.Character
		cc.Enclosing = yamlEnclosing(lines, pos.Line, pos.Character, false)
		cc.Key = joinKey(cc.Enclosing, "")
		cc.Range = lineRange(pos.Line, pos.Character, pos.Character)
		return cc
	}
	if strings.HasPrefix(trimmed, "#") {
		return cc
	}

	col := indent
	dashed := runes[indent] == '-' && (indent+1 == len(runes) || runes[indent+1] == ' ')
	if dashed {
		col = skipSpace(runes, indent+1)
		if pos.Character <= indent {
			return cc
		}
		if col > pos.Character {
			col = pos.Character
		}
	}
	cc.Indent = col
	cc.Enclosing = yamlEnclosing(lines, pos.Line, indent, dashed)

	rest := runes[col:]
	colon := yamlColon(rest)
	if colon < 0 || pos.Character <= col+colon {
		tokenEnd := len(rest)
		if colon >= 0 {
			tokenEnd = colon
		}
		typed := unquote(string(rest[:pos.Character-col]))
		if dashed && colon < 0 {
			// "- foo" is either a scalar list element or the first key of
			// a mapping item; callers decide from the list's element kind.
			cc.Position = CursorValue
			cc.ListItem = true
			cc.Key = trimIndex(cc.Enclosing)
		} else {
			cc.Position = CursorKey
			cc.Key = joinKey(cc.Enclosing, typed)
		}
		cc.Text = typed
		end := col + len([]rune(strings.TrimRight(string(rest[:tokenEnd]), " ")))
		cc.Range = lineRange(pos.Line, col, max(end, pos.Character))
		return cc
	}

	key := unquote(strings.TrimSpace(string(rest[:colon])))
	valueStart := col + colon + 1
	for valueStart < len(runes) && valueStart < pos.Character && runes[valueStart] == ' ' {
		valueStart++
	}
	if valueStart < pos.Character && (runes[valueStart] == '"' || runes[valueStart] == '\'') {
		valueStart++
	}
	valueEnd := valueStart + len([]rune(stripComment(string(runes[valueStart:]))))

	cc.Position = CursorValue
	cc.Key = joinKey(cc.Enclosing, key)
	cc.KeyRange = lineRange(pos.Line, col, col+len([]rune(strings.TrimRight(string(rest[:colon]), " "))))
	cc.Text = string(runes[valueStart:pos.Character])
	cc.Range = lineRange(pos.Line, valueStart, max(valueEnd, pos.Character))
	return cc
}

// yamlEnclosing walks upward from line to find the mappings and sequence
// items containing a line indented by indent. dashed is set when the line
// itself is a "- " sequence item.
func yamlEnclosing(lines []string, line, indent int, dashed bool) string {
	if indent == 0 && !dashed {
		return ""
	}
	var path []string
	cur := indent
	seq := dashed
	index := 0

	for l := line - 1; l >= 0; l-- {
		text := lines[l]
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if trimmed == "---" || strings.HasPrefix(trimmed, "--- ") {
			break
		}
		ind := indentOf(text)
		item := trimmed == "-" || strings.HasPrefix(trimmed, "- ")

		if seq {
			if ind > cur {
				continue
			}
			if item && ind == cur {
				index++
				continue
			}
			path = append(path, "["+strconv.Itoa(index)+"]")
			seq = false
		} else if ind >= cur {
			continue
		}

		if item {
			inner := strings.TrimLeft(trimmed[1:], " ")
			innerInd := ind + len(trimmed) - len(inner)
			if key, value, ok := yamlKeyValue(inner); ok && value == "" && innerInd < cur {
				path = append(path, key)
			}
			seq, cur, index = true, ind, 0
			continue
		}

		key, _, ok := yamlKeyValue(trimmed)
		if !ok {
			break
		}
		path = append(path, key)
		cur = ind
		if cur == 0 {
			break
		}
	}
	if seq {
		path = append(path, "["+strconv.Itoa(index)+"]")
	}

	var key string
	for i := len(path) - 1; i >= 0; i-- {
		key = joinKey(key, path[i])
	}
	return key
}

// yamlColon finds the mapping colon in a line: a ':' followed by a space or
// the end of line, outside quotes.
func yamlColon(runes []rune) int {
	var quote rune
	for i, r := range runes {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			if i == 0 {
				quote = r
			}
		case r == '#' && i > 0 && runes[i-1] == ' ':
			return -1
		case r == ':' && (i+1 == len(runes) || runes[i+1] == ' '):
			return i
		}
	}
	return -1
}

func yamlKeyValue(s string) (string, string, bool) {
	runes := []rune(s)
	colon := yamlColon(runes)
	if colon < 0 {
		return "", "", false
	}
	key := unquote(strings.TrimSpace(string(runes[:colon])))
	value := stripComment(strings.TrimSpace(string(runes[colon+1:])))
	return key, value, key != ""
}

func stripComment(s string) string {
	if strings.HasPrefix(s, "#") {
		return ""
	}
	if i := strings.Index(s, " #"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, " \"'")
}

func unquote(s string) string {
	if len(s) >= 1 && (s[0] == '"' || s[0] == '\'') {
		s = s[1:]
		if n := len(s); n > 0 && (s[n-1] == '"' || s[n-1] == '\'') {
			s = s[:n-1]
		}
	}
	return s
}

// trimIndex drops a trailing [n] index from key
func trimIndex(key string) string {
	if !strings.HasSuffix(key, "]") {
		return key
	}
	if open := strings.LastIndexByte(key, '['); open >= 0 {
		return key[:open]
	}
	return key
}
