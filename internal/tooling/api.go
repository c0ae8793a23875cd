// Package tooling provides a programmatic API for IDE integration via LSP.
// It keeps the open configuration files, resolves them against the property
// index of their module and answers editor queries in a thread-safe manner.
package tooling

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mattmok/idea-spring-boot-assistant/internal/completion"
	"github.com/mattmok/idea-spring-boot-assistant/internal/configfile"
	"github.com/mattmok/idea-spring-boot-assistant/internal/index"
	"github.com/mattmok/idea-spring-boot-assistant/internal/telemetry"
	"github.com/mattmok/idea-spring-boot-assistant/internal/validate"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
)

// DefaultModule is the module documents belong to unless Config.ModuleFor
// says otherwise
const DefaultModule = "default"

// ErrUnsupportedDocument is returned for files that are not Spring Boot
// configuration files
var ErrUnsupportedDocument = errors.New("not a spring boot configuration file")

// Indexes supplies module indexes. *lifecycle.Manager implements it.
type Indexes interface {
	Get(moduleID string) (*index.Index, bool)
	Source(moduleID string) completion.Source
	Modules() []string
}

// API provides thread-safe access to configuration file analysis for IDE
// integration
type API struct {
	// Document cache stores parsed files per URI
	documents map[string]*Document
	docsMutex sync.RWMutex

	// Symbol index over the keys of open documents
	symbolIndex *SymbolIndex

	indexes   Indexes
	completer *completion.Engine
	validator *validate.Validator
	logger    *zap.Logger
	config    *Config
}

// Config holds configuration for the tooling API
type Config struct {
	// ModuleFor maps a document URI to its module. Nil maps every document
	// to DefaultModule.
	ModuleFor func(uri string) string

	// SourceRoots are searched for the Java sources of configuration
	// classes when navigating to a definition
	SourceRoots []string

	Completion completion.Config
}

// Document is an open configuration file with its parsed content
type Document struct {
	URI     string
	Content string
	Version int
	Syntax  configfile.Syntax
	Module  string
	File    *configfile.File
	Symbols []*Symbol
}

// Position is a zero-based line and character offset, counted in runes
type Position = configfile.Position

// Range represents a range in a document
type Range = configfile.Range

// Location represents a source location with URI and range
type Location struct {
	URI   string
	Range Range
}

// Hover represents hover information for a property
type Hover struct {
	// Contents is the hover text (markdown formatted)
	Contents string

	// Range is the range of the hovered key or value
	Range Range
}

// CompletionItem represents a completion suggestion
type CompletionItem struct {
	// Label is the text to display
	Label string

	// Kind categorizes the completion
	Kind CompletionKind

	// Detail provides the value type and declaring module
	Detail string

	// Documentation provides help text
	Documentation string

	// InsertText replaces Range when the item is accepted
	InsertText string
	Range      Range

	// FilterText is matched against the text typed in Range; never
	// multi-line, unlike a nested YAML InsertText
	FilterText string

	// SortText preserves the engine's ranking
	SortText string

	Deprecated bool
}

// CompletionKind categorizes completion items
type CompletionKind int

const (
	// CompletionKindProperty is a property key
	CompletionKindProperty CompletionKind = iota
	// CompletionKindGroup is a branch of keys
	CompletionKindGroup
	// CompletionKindValue is a literal value
	CompletionKindValue
	// CompletionKindHint is a value or map key suggested by a descriptor
	CompletionKindHint
)

// Diagnostic represents a validation finding
type Diagnostic struct {
	Range    Range
	Severity DiagnosticSeverity
	Code     string
	Message  string
	Source   string
	// Replacement is the key a quick fix replaces the flagged key with
	Replacement string
}

// DiagnosticSeverity indicates the severity of a diagnostic
type DiagnosticSeverity int

const (
	// DiagnosticSeverityError represents an error diagnostic
	DiagnosticSeverityError DiagnosticSeverity = iota
	// DiagnosticSeverityWarning represents a warning diagnostic
	DiagnosticSeverityWarning
	// DiagnosticSeverityInfo represents an informational diagnostic
	DiagnosticSeverityInfo
	// DiagnosticSeverityHint represents a hint diagnostic
	DiagnosticSeverityHint
)

// diagnosticSource tags every diagnostic this package produces
const diagnosticSource = "spring-boot"

// NewAPI creates a tooling API over indexes
func NewAPI(indexes Indexes, logger *zap.Logger) *API {
	return NewAPIWithConfig(indexes, logger, &Config{Completion: completion.DefaultConfig()})
}

// NewAPIWithConfig creates a tooling API with custom configuration
func NewAPIWithConfig(indexes Indexes, logger *zap.Logger, config *Config) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config == nil {
		config = &Config{Completion: completion.DefaultConfig()}
	}
	metrics := metricsOf(indexes)
	return &API{
		documents:   make(map[string]*Document),
		symbolIndex: NewSymbolIndex(),
		indexes:     indexes,
		completer:   completion.NewEngine(config.Completion, logger, metrics),
		validator:   validate.New(logger, metrics),
		logger:      logger,
		config:      config,
	}
}

// Config returns the live configuration. Changes apply to later queries.
func (a *API) Config() *Config {
	return a.config
}

// OpenDocument parses and caches a document
func (a *API) OpenDocument(docURI, content string, version int) (*Document, error) {
	doc, err := a.parseDocument(docURI, content)
	if err != nil {
		return nil, err
	}
	doc.Version = version

	a.docsMutex.Lock()
	a.documents[docURI] = doc
	a.docsMutex.Unlock()

	a.symbolIndex.Index(docURI, doc.Symbols)
	return doc, nil
}

// UpdateDocument replaces the content of a document
func (a *API) UpdateDocument(docURI, content string, version int) (*Document, error) {
	a.docsMutex.RLock()
	old, exists := a.documents[docURI]
	a.docsMutex.RUnlock()
	if exists && old.Content == content {
		a.docsMutex.Lock()
		old.Version = version
		a.docsMutex.Unlock()
		return old, nil
	}
	return a.OpenDocument(docURI, content, version)
}

// parseDocument performs parsing without acquiring locks
func (a *API) parseDocument(docURI, content string) (*Document, error) {
	path := filenameOf(docURI)
	if !configfile.IsSpringConfig(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, docURI)
	}
	syntax, _ := configfile.SyntaxFor(path)
	file := configfile.Parse(docURI, content, syntax)

	doc := &Document{
		URI:     docURI,
		Content: content,
		Syntax:  syntax,
		Module:  a.moduleFor(docURI),
		File:    file,
	}
	doc.Symbols = extractSymbols(file)
	return doc, nil
}

// GetDocument retrieves a cached document
func (a *API) GetDocument(docURI string) (*Document, bool) {
	a.docsMutex.RLock()
	defer a.docsMutex.RUnlock()

	doc, exists := a.documents[docURI]
	return doc, exists
}

// DocumentVersion returns the version of an open document. Version is
// written by UpdateDocument, so read it here rather than off the Document.
func (a *API) DocumentVersion(docURI string) (int, bool) {
	a.docsMutex.RLock()
	defer a.docsMutex.RUnlock()

	doc, exists := a.documents[docURI]
	if !exists {
		return 0, false
	}
	return doc.Version, true
}

// Documents returns the URIs of all open documents
func (a *API) Documents() []string {
	a.docsMutex.RLock()
	defer a.docsMutex.RUnlock()
	uris := make([]string, 0, len(a.documents))
	for u := range a.documents {
		uris = append(uris, u)
	}
	return uris
}

// CloseDocument removes a document from the cache
func (a *API) CloseDocument(docURI string) {
	a.docsMutex.Lock()
	delete(a.documents, docURI)
	a.docsMutex.Unlock()

	a.symbolIndex.RemoveDocument(docURI)
}

// GetDiagnostics validates a document against its module index, waiting
// for the index as long as ctx allows. No index means no diagnostics.
func (a *API) GetDiagnostics(ctx context.Context, docURI string) []Diagnostic {
	doc, exists := a.GetDocument(docURI)
	if !exists {
		return nil
	}
	idx, err := a.await(ctx, doc.Module)
	if err != nil {
		a.logger.Debug("diagnostics skipped, index not ready", zap.String("uri", docURI), zap.Error(err))
		idx = index.Empty()
	}

	found := a.validator.Validate(idx, doc.File)
	diagnostics := make([]Diagnostic, 0, len(found))
	for _, d := range found {
		diagnostics = append(diagnostics, Diagnostic{
			Range:       d.Range,
			Severity:    severityOf(d.Severity),
			Code:        d.Code,
			Message:     d.Message,
			Source:      diagnosticSource,
			Replacement: d.Replacement,
		})
	}
	return diagnostics
}

// GetCompletions returns completion items for a position in a document
func (a *API) GetCompletions(ctx context.Context, docURI string, pos Position) ([]CompletionItem, error) {
	doc, exists := a.GetDocument(docURI)
	if !exists {
		return nil, fmt.Errorf("document not found: %s", docURI)
	}
	cc := configfile.CursorAt(doc.Content, doc.Syntax, pos)
	if a.indexes == nil {
		return []CompletionItem{}, nil
	}

	suggestions := a.completer.Complete(ctx, a.indexes.Source(doc.Module), cc)
	items := make([]CompletionItem, 0, len(suggestions))
	for _, s := range suggestions {
		items = append(items, completionItem(s))
	}
	return items, nil
}

func (a *API) await(ctx context.Context, module string) (*index.Index, error) {
	if a.indexes == nil {
		return nil, completion.ErrUnavailable
	}
	return a.indexes.Source(module).Await(ctx)
}

// current returns the module index without waiting
func (a *API) current(module string) (*index.Index, bool) {
	if a.indexes == nil {
		return nil, false
	}
	return a.indexes.Get(module)
}

func (a *API) moduleFor(docURI string) string {
	if a.config.ModuleFor != nil {
		if m := a.config.ModuleFor(docURI); m != "" {
			return m
		}
	}
	return DefaultModule
}

// Helper functions

func metricsOf(indexes Indexes) *telemetry.Metrics {
	if m, ok := indexes.(interface{ Metrics() *telemetry.Metrics }); ok {
		return m.Metrics()
	}
	return nil
}

func completionItem(s completion.Suggestion) CompletionItem {
	item := CompletionItem{
		Label:         s.Label,
		Kind:          completionKindOf(s.Kind),
		Detail:        s.TypeHint,
		Documentation: suggestionDocs(s),
		InsertText:    s.InsertText,
		FilterText:    s.FilterText,
		Range:         s.Range,
		SortText:      fmt.Sprintf("%05d", s.Rank),
		Deprecated:    s.Deprecated,
	}
	if item.FilterText == "" {
		item.FilterText = s.Label
	}
	if s.Origin != "" {
		if item.Detail != "" {
			item.Detail += " "
		}
		item.Detail += "(" + s.Origin + ")"
	}
	return item
}

func completionKindOf(k completion.Kind) CompletionKind {
	switch k {
	case completion.KindGroup:
		return CompletionKindGroup
	case completion.KindValue:
		return CompletionKindValue
	case completion.KindHint:
		return CompletionKindHint
	default:
		return CompletionKindProperty
	}
}

func severityOf(s validate.Severity) DiagnosticSeverity {
	switch s {
	case validate.SeverityError:
		return DiagnosticSeverityError
	case validate.SeverityWarning:
		return DiagnosticSeverityWarning
	case validate.SeverityInformation:
		return DiagnosticSeverityInfo
	default:
		return DiagnosticSeverityHint
	}
}

// filenameOf turns a file:// URI into a path; anything else is returned
// unchanged
func filenameOf(docURI string) string {
	if len(docURI) > 7 && docURI[:7] == "file://" {
		return uri.URI(docURI).Filename()
	}
	return docURI
}
