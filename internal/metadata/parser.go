package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ErrNotADescriptor is returned when a document is not a JSON object
var ErrNotADescriptor = errors.New("document is not a configuration metadata descriptor")

// rawDocument keeps records undecoded so a malformed entry only costs that entry
type rawDocument struct {
	Groups     []json.RawMessage `json:"groups"`
	Properties []json.RawMessage `json:"properties"`
	Hints      []json.RawMessage `json:"hints"`
}

type rawGroup struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Description  string `json:"description"`
	SourceType   string `json:"sourceType"`
	SourceMethod string `json:"sourceMethod"`
}

type rawProperty struct {
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Description  string          `json:"description"`
	SourceType   string          `json:"sourceType"`
	DefaultValue json.RawMessage `json:"defaultValue"`
	Deprecated   bool            `json:"deprecated"`
	Deprecation  *rawDeprecation `json:"deprecation"`
}

type rawDeprecation struct {
	Level       string `json:"level"`
	Reason      string `json:"reason"`
	Replacement string `json:"replacement"`
	Since       string `json:"since"`
}

type rawHint struct {
	Name      string             `json:"name"`
	Values    []rawValueHint     `json:"values"`
	Providers []rawValueProvider `json:"providers"`
}

type rawValueHint struct {
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description"`
}

type rawValueProvider struct {
	Name       string                     `json:"name"`
	Parameters map[string]json.RawMessage `json:"parameters"`
}

// Parser turns descriptor documents into catalogs
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a parser that logs skipped records to logger
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// ParseReader reads r fully and parses it
func (p *Parser) ParseReader(r io.Reader, origin Origin) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor %s: %w", origin.Location, err)
	}
	return p.Parse(data, origin)
}

// Parse decodes a descriptor. Individual malformed records are logged and
// skipped; an error is returned only when the document as a whole cannot be
// decoded.
func (p *Parser) Parse(data []byte, origin Origin) (*Catalog, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotADescriptor, origin.Location, err)
	}

	log := p.logger.With(zap.String("origin", origin.ID), zap.String("location", origin.Location))
	catalog := &Catalog{Origin: origin}

	groupTypes := make(map[string]bool)
	groupKeys := make(map[string]bool)
	for i, raw := range doc.Groups {
		var g rawGroup
		if err := json.Unmarshal(raw, &g); err != nil {
			log.Warn("skipping malformed group", zap.Int("index", i), zap.Error(err))
			continue
		}
		name, err := parseDescriptorName(g.Name)
		if err != nil {
			log.Warn("skipping group with invalid name", zap.String("name", g.Name), zap.Error(err))
			continue
		}
		key := name.String()
		if groupKeys[key] {
			continue
		}
		groupKeys[key] = true
		if g.Type != "" {
			groupTypes[g.Type] = true
		}
		catalog.Groups = append(catalog.Groups, &GroupDefinition{
			Name:         name,
			Key:          key,
			Type:         g.Type,
			SourceType:   g.SourceType,
			SourceMethod: g.SourceMethod,
			Description:  g.Description,
			Origin:       origin,
		})
	}

	seen := make(map[string]bool)
	for i, raw := range doc.Properties {
		var rp rawProperty
		if err := json.Unmarshal(raw, &rp); err != nil {
			log.Warn("skipping malformed property", zap.Int("index", i), zap.Error(err))
			continue
		}
		name, err := parseDescriptorName(rp.Name)
		if err != nil {
			log.Warn("skipping property with invalid name", zap.String("name", rp.Name), zap.Error(err))
			continue
		}
		key := name.String()
		if seen[key] {
			log.Debug("skipping duplicate property", zap.String("name", key))
			continue
		}
		seen[key] = true

		kind := KindOf(rp.Type)
		if kind.Kind == KindOpaque && groupTypes[rp.Type] {
			kind = ValueKind{Kind: KindObject}
		}

		def := &PropertyDefinition{
			Name:        name,
			Key:         key,
			Type:        rp.Type,
			Kind:        kind,
			Description: rp.Description,
			SourceType:  rp.SourceType,
			Deprecation: buildDeprecation(rp),
			Group:       enclosingGroup(name, groupKeys),
			Origin:      origin,
		}
		if value, ok := renderValue(rp.DefaultValue); ok {
			def.Default = value
			def.HasDefault = true
		}
		catalog.Properties = append(catalog.Properties, def)
	}

	for i, raw := range doc.Hints {
		var rh rawHint
		if err := json.Unmarshal(raw, &rh); err != nil {
			log.Warn("skipping malformed hint", zap.Int("index", i), zap.Error(err))
			continue
		}
		name, err := parseDescriptorName(rh.Name)
		if err != nil {
			log.Warn("skipping hint with invalid name", zap.String("name", rh.Name), zap.Error(err))
			continue
		}
		hint := &Hint{Name: name, Key: name.String(), Origin: origin}
		for _, v := range rh.Values {
			value, ok := renderValue(v.Value)
			if !ok {
				continue
			}
			hint.Values = append(hint.Values, ValueHint{Value: value, Description: v.Description})
		}
		for _, pr := range rh.Providers {
			provider := ValueProvider{Name: pr.Name, Parameters: make(map[string]string, len(pr.Parameters))}
			for k, v := range pr.Parameters {
				if value, ok := renderValue(v); ok {
					provider.Parameters[k] = value
				}
			}
			hint.Providers = append(hint.Providers, provider)
		}
		catalog.Hints = append(catalog.Hints, hint)
	}

	log.Debug("parsed descriptor",
		zap.Int("groups", len(catalog.Groups)),
		zap.Int("properties", len(catalog.Properties)),
		zap.Int("hints", len(catalog.Hints)))

	return catalog, nil
}

// parseDescriptorName is stricter than ParseName: descriptors are generated
// in canonical form, so uppercase letters indicate a broken record.
func parseDescriptorName(raw string) (Name, error) {
	if strings.TrimSpace(raw) == "" {
		return Name{}, errors.New("missing name")
	}
	if HasUppercase(raw) {
		return Name{}, fmt.Errorf("name %q is not in canonical lowercase form", raw)
	}
	return ParseName(raw)
}

func buildDeprecation(rp rawProperty) *Deprecation {
	if rp.Deprecation == nil && !rp.Deprecated {
		return nil
	}
	d := &Deprecation{Level: DeprecationWarning}
	if rp.Deprecation != nil {
		if strings.EqualFold(rp.Deprecation.Level, "error") {
			d.Level = DeprecationError
		}
		d.Reason = strings.TrimSpace(rp.Deprecation.Reason)
		d.Since = rp.Deprecation.Since
		if r := strings.TrimSpace(rp.Deprecation.Replacement); r != "" {
			if name, err := ParseName(r); err == nil {
				d.Replacement = name.String()
			} else {
				d.Replacement = r
			}
		}
	}
	if d.Reason == "" && d.Replacement == "" {
		d.Reason = "deprecated without a stated reason"
	}
	return d
}

func enclosingGroup(name Name, groups map[string]bool) string {
	for n := name.Parent(); !n.IsEmpty(); n = n.Parent() {
		if key := n.String(); groups[key] {
			return key
		}
	}
	return ""
}

// renderValue turns a JSON literal into the text a user would write in a
// configuration file. Arrays become comma-separated lists.
func renderValue(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return "", false
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := renderValue(item); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ","), true
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return "", false
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s, ok := renderValue(m[k]); ok {
				parts = append(parts, k+"="+s)
			}
		}
		return strings.Join(parts, ","), true
	default:
		return string(raw), true
	}
}

// FindRecordLine returns the zero-based line of the record named key in a
// descriptor, or -1. Used for navigation only, never on the completion path.
func FindRecordLine(data []byte, key string) int {
	needle := []byte(strconv.Quote(key))
	offset := 0
	for {
		i := bytes.Index(data[offset:], needle)
		if i < 0 {
			return -1
		}
		at := offset + i
		// Require a preceding "name" member so descriptions mentioning the
		// key are not taken for the record itself.
		before := bytes.TrimRight(data[:at], " \t\r\n")
		if bytes.HasSuffix(before, []byte(":")) {
			before = bytes.TrimRight(before[:len(before)-1], " \t\r\n")
			if bytes.HasSuffix(before, []byte(`"name"`)) {
				return bytes.Count(data[:at], []byte("\n"))
			}
		}
		offset = at + len(needle)
	}
}
