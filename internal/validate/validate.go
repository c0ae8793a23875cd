// Package validate checks a parsed configuration file against a property
// index and reports diagnostics with exact source ranges. Validation is
// read-only and never consults anything but the index it is given.
package validate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/mattmok/idea-spring-boot-assistant/internal/configfile"
	"github.com/mattmok/idea-spring-boot-assistant/internal/index"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
	"github.com/mattmok/idea-spring-boot-assistant/internal/resolve"
	"github.com/mattmok/idea-spring-boot-assistant/internal/telemetry"
	"go.uber.org/zap"
)

// Severity of a diagnostic, ordered like LSP severities
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInformation
	SeverityHint
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "info"
	default:
		return "hint"
	}
}

// Diagnostic codes
const (
	CodeSyntax     = "syntax-error"
	CodeInvalidKey = "invalid-key"
	CodeUnknown    = "unknown-property"
	CodeDeprecated = "deprecated-property"
	CodeValue      = "invalid-value"
	CodeShadowed   = "shadowed-property"
	CodeDuplicate  = "duplicate-property"
)

// Diagnostic is one finding in a configuration file
type Diagnostic struct {
	Range    configfile.Range
	Severity Severity
	Code     string
	Message  string
	// Key is the property key as written in the file
	Key string
	// Replacement is a key the offending key can be replaced with, when one
	// is known
	Replacement string
	// Origins lists the declaring modules for shadowed-property findings
	Origins []metadata.Origin
}

// Validator validates configuration files
type Validator struct {
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

// New creates a validator. logger and metrics may be nil.
func New(logger *zap.Logger, metrics *telemetry.Metrics) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger, metrics: metrics}
}

// Validate checks file against idx with a default validator
func Validate(idx *index.Index, file *configfile.File) []Diagnostic {
	return New(nil, nil).Validate(idx, file)
}

// Validate checks every entry of file against idx. Diagnostics are sorted by
// position.
func (v *Validator) Validate(idx *index.Index, file *configfile.File) []Diagnostic {
	if file == nil {
		return nil
	}
	timer := telemetry.NewTimer()
	defer func() { v.metrics.ObserveQuery("validation", timer.Duration()) }()

	if idx == nil {
		idx = index.Empty()
	}
	r := resolve.New(idx)

	var diags []Diagnostic
	if d, ok := syntaxDiagnostic(file.Err); ok {
		diags = append(diags, d)
	}

	type seenKey struct {
		doc int
		key string
	}
	seen := make(map[seenKey]bool)

	for i := range file.Entries {
		e := &file.Entries[i]
		name, err := metadata.ParseName(e.Key)
		if err != nil {
			diags = append(diags, Diagnostic{
				Range:    e.KeyRange,
				Severity: SeverityWarning,
				Code:     CodeInvalidKey,
				Message:  fmt.Sprintf("invalid property name '%s': %v", e.Key, err),
				Key:      e.Key,
			})
			continue
		}

		sk := seenKey{doc: e.Document, key: name.Uniform()}
		if seen[sk] {
			diags = append(diags, Diagnostic{
				Range:    e.KeyRange,
				Severity: SeverityWarning,
				Code:     CodeDuplicate,
				Message:  fmt.Sprintf("duplicate property '%s'", e.Key),
				Key:      e.Key,
			})
		}
		seen[sk] = true

		match, ok := r.Best(e.Key)
		if !ok {
			if d, report := unknownDiagnostic(idx, e, name); report {
				diags = append(diags, d)
			}
			continue
		}

		if d, ok := deprecationDiagnostic(match, e); ok {
			diags = append(diags, d)
		}
		if d, ok := valueDiagnostic(match, e); ok {
			diags = append(diags, d)
		}
		if d, ok := shadowDiagnostic(match, e); ok {
			diags = append(diags, d)
		}
	}

	sort.SliceStable(diags, func(i, j int) bool {
		return diags[i].Range.Start.Before(diags[j].Range.Start)
	})
	for _, d := range diags {
		v.metrics.RecordDiagnostic(d.Code)
	}
	v.logger.Debug("validated configuration file",
		zap.String("uri", file.URI),
		zap.Int("entries", len(file.Entries)),
		zap.Int("diagnostics", len(diags)))
	return diags
}

func syntaxDiagnostic(err error) (Diagnostic, bool) {
	if err == nil {
		return Diagnostic{}, false
	}
	d := Diagnostic{Severity: SeverityError, Code: CodeSyntax, Message: err.Error()}
	var syntaxErr *configfile.SyntaxError
	if errors.As(err, &syntaxErr) {
		d.Message = syntaxErr.Message
		if syntaxErr.Line >= 0 {
			d.Range.Start.Line = syntaxErr.Line
			d.Range.End.Line = syntaxErr.Line
		}
	}
	return d, true
}

// unknownDiagnostic reports a key no definition covers. Keys that only name
// a branch of known keys, such as an empty YAML mapping, are not reported,
// and nothing is reported against an empty index.
func unknownDiagnostic(idx *index.Index, e *configfile.Entry, name metadata.Name) (Diagnostic, bool) {
	if idx.Len() == 0 {
		return Diagnostic{}, false
	}
	key := name.String()
	if _, ok := idx.Group(key); ok {
		return Diagnostic{}, false
	}
	if !e.HasValue && len(idx.PrefixSearch(key+".", 1)) > 0 {
		return Diagnostic{}, false
	}
	d := Diagnostic{
		Range:    e.KeyRange,
		Severity: SeverityWarning,
		Code:     CodeUnknown,
		Message:  fmt.Sprintf("unrecognized property '%s'", e.Key),
		Key:      e.Key,
	}
	if closest := ClosestKey(idx, key); closest != "" {
		d.Replacement = closest
		d.Message += fmt.Sprintf(", did you mean '%s'?", closest)
	}
	return d, true
}

// ClosestKey returns the known key with the smallest edit distance to key,
// provided the distance is small relative to the key length.
func ClosestKey(idx *index.Index, key string) string {
	limit := max(2, len(key)/4)
	best, bestDist := "", limit+1
	for _, entry := range idx.Entries() {
		if diff := len(entry.Key) - len(key); diff > limit || -diff > limit {
			continue
		}
		if d := levenshtein.ComputeDistance(key, entry.Key); d < bestDist {
			best, bestDist = entry.Key, d
		}
	}
	return best
}

func deprecationDiagnostic(match resolve.Match, e *configfile.Entry) (Diagnostic, bool) {
	def := match.Entry.Definition
	if !def.Deprecated() {
		return Diagnostic{}, false
	}
	dep := def.Deprecation
	d := Diagnostic{
		Range:       e.KeyRange,
		Code:        CodeDeprecated,
		Key:         e.Key,
		Replacement: dep.Replacement,
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "'%s' is deprecated", match.Entry.Key)
	switch {
	case dep.Level == metadata.DeprecationError:
		d.Severity = SeverityError
		msg.WriteString(" and no longer supported")
	case dep.Replacement != "":
		d.Severity = SeverityWarning
	default:
		d.Severity = SeverityInformation
	}
	if dep.Reason != "" {
		fmt.Fprintf(&msg, ": %s", dep.Reason)
	}
	if dep.Replacement != "" {
		fmt.Fprintf(&msg, "; use '%s' instead", dep.Replacement)
	}
	d.Message = msg.String()
	return d, true
}

func valueDiagnostic(match resolve.Match, e *configfile.Entry) (Diagnostic, bool) {
	if !e.HasValue {
		return Diagnostic{}, false
	}
	value := strings.TrimSpace(e.Value)
	if value == "" || strings.Contains(value, "${") {
		return Diagnostic{}, false
	}
	err := Coerce(match.Kind, value)
	if err == nil {
		return Diagnostic{}, false
	}
	return Diagnostic{
		Range:    e.ValueRange,
		Severity: SeverityError,
		Code:     CodeValue,
		Message:  fmt.Sprintf("cannot convert value for '%s' to %s: %v", e.Key, match.Kind, err),
		Key:      e.Key,
	}, true
}

// shadowDiagnostic reports keys declared by more than one module. The
// highest priority declaration is the one in effect.
func shadowDiagnostic(match resolve.Match, e *configfile.Entry) (Diagnostic, bool) {
	entry := match.Entry
	if len(entry.Definitions) < 2 || (match.Via != resolve.ViaExact && match.Via != resolve.ViaRelaxed) {
		return Diagnostic{}, false
	}
	origins := entry.Origins()
	ids := make([]string, len(origins))
	for i, o := range origins {
		ids[i] = o.ID
	}

	d := Diagnostic{
		Range:    e.KeyRange,
		Severity: SeverityHint,
		Code:     CodeShadowed,
		Key:      e.Key,
		Origins:  origins,
		Message: fmt.Sprintf("'%s' is declared by %d modules (%s); the definition from %s is used",
			entry.Key, len(ids), strings.Join(ids, ", "), ids[0]),
	}
	if entry.Conflicting() {
		d.Severity = SeverityInformation
		typed := make([]string, len(entry.Definitions))
		for i, def := range entry.Definitions {
			typed[i] = fmt.Sprintf("%s (%s)", def.Origin.ID, metadata.ShortType(def.Type))
		}
		d.Message = fmt.Sprintf("'%s' is declared with conflicting types by %s; the definition from %s is used",
			entry.Key, strings.Join(typed, ", "), ids[0])
	}
	return d, true
}
