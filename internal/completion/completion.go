// Package completion produces ranked key and value suggestions for a cursor
// in a configuration file. Completion never performs I/O: it queries an
// already built index and gives up with an empty result when none becomes
// available within the configured timeout.
package completion

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/mattmok/idea-spring-boot-assistant/internal/configfile"
	"github.com/mattmok/idea-spring-boot-assistant/internal/index"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
	"github.com/mattmok/idea-spring-boot-assistant/internal/telemetry"
	"go.uber.org/zap"
)

// ErrUnavailable is returned by a Source that has no index yet
var ErrUnavailable = errors.New("index unavailable")

// Source supplies the index to complete against. Await blocks until an index
// is available or ctx is done.
type Source interface {
	Await(ctx context.Context) (*index.Index, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) (*index.Index, error)

// Await calls f
func (f SourceFunc) Await(ctx context.Context) (*index.Index, error) {
	return f(ctx)
}

// Static returns a Source that always yields idx
func Static(idx *index.Index) Source {
	return SourceFunc(func(context.Context) (*index.Index, error) {
		if idx == nil {
			return nil, ErrUnavailable
		}
		return idx, nil
	})
}

// Kind categorizes a suggestion
type Kind int

const (
	// KindProperty is a complete property key
	KindProperty Kind = iota
	// KindGroup expands a branch of keys
	KindGroup
	// KindValue is a literal value
	KindValue
	// KindHint comes from a descriptor value or key hint
	KindHint
)

func (k Kind) String() string {
	switch k {
	case KindProperty:
		return "property"
	case KindGroup:
		return "group"
	case KindValue:
		return "value"
	default:
		return "hint"
	}
}

// Suggestion is one completion candidate
type Suggestion struct {
	Label      string
	InsertText string
	// FilterText is the single-line text clients match against what was
	// typed in Range: the key relative to the enclosing YAML mapping, or the
	// full key in properties files. Empty for values.
	FilterText string
	// Range is the text the insertion replaces
	Range configfile.Range
	Kind  Kind

	TypeHint    string
	Description string
	Default     string

	Deprecated  bool
	Replacement string

	// Origin names the module that declares the property
	Origin string
	// Placeholder is set when InsertText is a formatted example rather than
	// a literal to accept as-is, e.g. "10s" for a duration
	Placeholder bool

	// Rank is the zero-based position in the result list
	Rank int
}

// Config bounds completion work
type Config struct {
	// Limit caps the number of suggestions returned
	Limit int `mapstructure:"limit" validate:"gte=1"`
	// FuzzyLimit caps fuzzy matches appended after prefix matches
	FuzzyLimit int `mapstructure:"fuzzy_limit" validate:"gte=0"`
	// Timeout bounds the wait for an index that is still building
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// DefaultConfig returns the default completion limits
func DefaultConfig() Config {
	return Config{Limit: 200, FuzzyLimit: 50, Timeout: 250 * time.Millisecond}
}

// Engine answers completion requests
type Engine struct {
	config  Config
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

// NewEngine creates a completion engine. logger and metrics may be nil.
func NewEngine(cfg Config, logger *zap.Logger, metrics *telemetry.Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultConfig().Limit
	}
	return &Engine{config: cfg, logger: logger, metrics: metrics}
}

// Complete returns ranked suggestions for cc. It waits at most Config.Timeout
// for src to provide an index and returns an empty result otherwise.
func (e *Engine) Complete(ctx context.Context, src Source, cc configfile.CursorContext) []Suggestion {
	if cc.Position == configfile.CursorNone || src == nil {
		return nil
	}
	timer := telemetry.NewTimer()
	defer func() { e.metrics.ObserveQuery("completion", timer.Duration()) }()

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}
	idx, err := src.Await(ctx)
	if err != nil || idx == nil {
		e.logger.Debug("completion skipped, index not ready", zap.Error(err))
		return nil
	}
	return e.CompleteIndex(idx, cc)
}

// CompleteIndex is Complete against a known index
func (e *Engine) CompleteIndex(idx *index.Index, cc configfile.CursorContext) []Suggestion {
	var out []Suggestion
	switch cc.Position {
	case configfile.CursorKey:
		out = e.completeKey(idx, cc)
	case configfile.CursorValue:
		out = e.completeValue(idx, cc)
	}
	if len(out) > e.config.Limit {
		out = out[:e.config.Limit]
	}
	for i := range out {
		out[i].Rank = i
	}
	return out
}

// completeKey lists prefix matches first, then branch groups and map key
// hints, then fuzzy matches. Deprecated properties sink to the end of their
// block.
func (e *Engine) completeKey(idx *index.Index, cc configfile.CursorContext) []Suggestion {
	prefix := cc.Key
	complete, partial := splitKey(prefix)
	seen := make(map[string]bool)
	var out []Suggestion

	add := func(block []Suggestion) {
		sort.SliceStable(block, func(i, j int) bool {
			return !block[i].Deprecated && block[j].Deprecated
		})
		for _, s := range block {
			if seen[s.Label] {
				continue
			}
			seen[s.Label] = true
			out = append(out, s)
		}
	}

	var block []Suggestion
	for _, entry := range idx.PrefixSearch(prefix, e.config.Limit) {
		block = append(block, e.propertySuggestion(entry, cc))
	}
	add(block)

	block = block[:0]
	for _, child := range idx.Children(complete) {
		if !strings.HasPrefix(child, metadata.Kebab(partial)) {
			continue
		}
		key := joinKey(complete, child)
		s := Suggestion{
			Label:      key,
			InsertText: e.groupInsertText(key, cc),
			FilterText: filterText(key, cc),
			Range:      cc.Range,
			Kind:       KindGroup,
		}
		if g, ok := idx.Group(key); ok && g.Definition != nil {
			s.TypeHint = metadata.ShortType(g.Definition.Type)
			s.Description = g.Definition.Description
			if len(g.Origins) > 0 {
				s.Origin = g.Origins[0].ID
			}
		}
		block = append(block, s)
	}
	add(block)

	block = block[:0]
	if parent, ok := idx.Lookup(complete); ok && parent.Kind.Kind == metadata.KindMap {
		for _, h := range parent.KeyHints {
			if !strings.HasPrefix(strings.ToLower(h.Value), strings.ToLower(partial)) {
				continue
			}
			key := complete + "." + h.Value
			block = append(block, Suggestion{
				Label:       key,
				InsertText:  e.keyInsertText(key, parent.Kind.ElemKind(), cc),
				FilterText:  filterText(key, cc),
				Range:       cc.Range,
				Kind:        KindHint,
				TypeHint:    parent.Kind.ElemKind().String(),
				Description: h.Description,
				Origin:      parent.Definition.Origin.ID,
			})
		}
	}
	add(block)

	token := strings.TrimSpace(cc.Text)
	if token != "" && e.config.FuzzyLimit > 0 {
		block = block[:0]
		within := ""
		if cc.Enclosing != "" {
			within = metadata.Kebab(cc.Enclosing)
		}
		for _, entry := range idx.FuzzySearch(token, 0) {
			if within != "" && !strings.HasPrefix(entry.Key, within) {
				continue
			}
			block = append(block, e.propertySuggestion(entry, cc))
			if len(block) == e.config.FuzzyLimit {
				break
			}
		}
		add(block)
	}
	return out
}

func (e *Engine) propertySuggestion(entry *index.Entry, cc configfile.CursorContext) Suggestion {
	def := entry.Definition
	s := Suggestion{
		Label:       entry.Key,
		InsertText:  e.keyInsertText(entry.Key, entry.Kind, cc),
		FilterText:  filterText(entry.Key, cc),
		Range:       cc.Range,
		Kind:        KindProperty,
		TypeHint:    typeHint(def.Type, entry.Kind),
		Description: def.Description,
		Default:     def.Default,
		Deprecated:  entry.Deprecated(),
		Origin:      def.Origin.ID,
	}
	if def.Deprecation != nil {
		s.Replacement = def.Deprecation.Replacement
	}
	return s
}

func typeHint(javaType string, kind metadata.ValueKind) string {
	if javaType != "" {
		return metadata.ShortType(javaType)
	}
	return kind.String()
}

// keyInsertText renders the text that completes key. Properties files take
// the full key; YAML takes the key relative to the enclosing mapping, nested
// one level per segment.
func (e *Engine) keyInsertText(key string, kind metadata.ValueKind, cc configfile.CursorContext) string {
	if cc.Syntax != configfile.SyntaxYAML {
		return key
	}
	suffix := ": "
	if kind.IsContainer() {
		suffix = ":"
	}
	return nestYAML(relativeKey(key, cc.Enclosing), cc.Indent) + suffix
}

func (e *Engine) groupInsertText(key string, cc configfile.CursorContext) string {
	if cc.Syntax != configfile.SyntaxYAML {
		return key + "."
	}
	return nestYAML(relativeKey(key, cc.Enclosing), cc.Indent) + ":"
}

func filterText(key string, cc configfile.CursorContext) string {
	if cc.Syntax != configfile.SyntaxYAML {
		return key
	}
	return relativeKey(key, cc.Enclosing)
}

func relativeKey(key, enclosing string) string {
	if enclosing == "" {
		return key
	}
	enclosing = metadata.Kebab(enclosing)
	if rest, ok := strings.CutPrefix(key, enclosing); ok {
		return strings.TrimPrefix(rest, ".")
	}
	return key
}

// nestYAML turns "a.b.c" into "a:\n  b:\n    c" starting at column indent.
// Keys with brackets stay flat, since YAML accepts them as a single key.
func nestYAML(rel string, indent int) string {
	if strings.ContainsAny(rel, "[]") {
		return rel
	}
	parts := strings.Split(rel, ".")
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteString(":\n")
			b.WriteString(strings.Repeat(" ", indent+2*i))
		}
		b.WriteString(p)
	}
	return b.String()
}

func splitKey(prefix string) (complete, partial string) {
	if strings.HasSuffix(prefix, ".") {
		return strings.TrimSuffix(prefix, "."), ""
	}
	if i := strings.LastIndexByte(prefix, '.'); i >= 0 {
		return prefix[:i], prefix[i+1:]
	}
	return "", prefix
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
