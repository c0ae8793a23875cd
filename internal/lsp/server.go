// Package lsp implements a Language Server Protocol server for Spring Boot
// configuration files. It provides completion, diagnostics, hover,
// go-to-definition, quick fixes and symbol search for application.properties
// and application.yml.
package lsp

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattmok/idea-spring-boot-assistant/internal/completion"
	"github.com/mattmok/idea-spring-boot-assistant/internal/lifecycle"
	"github.com/mattmok/idea-spring-boot-assistant/internal/locator"
	"github.com/mattmok/idea-spring-boot-assistant/internal/tooling"
	"github.com/mattmok/idea-spring-boot-assistant/internal/watch"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
)

// ServerName is reported to clients on initialize
const ServerName = "spring-assistant"

// diagnosticsTimeout bounds the wait for an index before diagnostics are
// published without one
const diagnosticsTimeout = 30 * time.Second

// Options configures a Server
type Options struct {
	Logger *zap.Logger
	// Manager builds the property indexes. Nil serves no index at all.
	Manager *lifecycle.Manager
	// Watcher, when set, is pointed at every dependency the client reports
	Watcher *watch.FileWatcher
	Tooling *tooling.Config
	// Dependencies are used when the client sends none
	Dependencies []locator.Dependency
	Version      string
}

// initializationOptions is what clients may send in initialize
type initializationOptions struct {
	// Dependencies are library archives or directories
	Dependencies []string `json:"dependencies"`
	// Classpath is an OS path list of library archives or directories
	Classpath string `json:"classpath"`
	// ProjectRoots are project output or source directories
	ProjectRoots []string `json:"projectRoots"`
}

// Server implements the LSP server
type Server struct {
	// api answers editor queries against the module indexes
	api *tooling.API

	manager *lifecycle.Manager
	watcher *watch.FileWatcher
	opts    Options

	// conn is the JSON-RPC connection
	conn jsonrpc2.Conn

	// publish sends diagnostics to the client
	publish func(ctx context.Context, params *protocol.PublishDiagnosticsParams) error

	logger *zap.Logger

	// workspaceRoot is the root directory of the workspace
	workspaceRoot string

	// Server capabilities
	capabilities protocol.ServerCapabilities

	// ctx outlives single requests; background diagnostics run in it
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a new LSP server instance
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	config := opts.Tooling
	if config == nil {
		config = &tooling.Config{Completion: completion.DefaultConfig()}
	}

	var indexes tooling.Indexes
	if opts.Manager != nil {
		indexes = opts.Manager
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		api:     tooling.NewAPIWithConfig(indexes, logger, config),
		manager: opts.Manager,
		watcher: opts.Watcher,
		opts:    opts,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		publish: func(context.Context, *protocol.PublishDiagnosticsParams) error { return nil },
		capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
				Save: &protocol.SaveOptions{
					IncludeText: false,
				},
			},
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{".", "=", ":", " ", "[", ","},
				ResolveProvider:   false,
			},
			HoverProvider: true,
			DefinitionProvider: &protocol.DefinitionOptions{
				WorkDoneProgressOptions: protocol.WorkDoneProgressOptions{
					WorkDoneProgress: false,
				},
			},
			CodeActionProvider: &protocol.CodeActionOptions{
				CodeActionKinds: []protocol.CodeActionKind{protocol.QuickFix},
			},
			ReferencesProvider:      true,
			DocumentSymbolProvider:  true,
			WorkspaceSymbolProvider: true,
		},
	}
}

// API returns the tooling API the server answers from
func (s *Server) API() *tooling.API {
	return s.api
}

// Run serves the protocol on stdin/stdout until exit or ctx ends
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, stdrwc{})
}

// Serve serves the protocol on rwc until exit or ctx ends
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	s.logger.Info("starting language server", zap.String("version", s.opts.Version))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
		case <-s.ctx.Done():
			cancel()
		}
	}()

	stream := jsonrpc2.NewStream(rwc)
	conn := jsonrpc2.NewConn(stream)
	s.conn = conn

	client := protocol.ClientDispatcher(conn, s.logger.Named("client"))
	s.publish = client.PublishDiagnostics

	conn.Go(ctx, s.handler())

	select {
	case <-ctx.Done():
	case <-conn.Done():
	}

	s.logger.Info("shutting down language server")
	s.stop()
	return conn.Close()
}

// handler returns the JSON-RPC handler function
func (s *Server) handler() jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		s.logger.Debug("received", zap.String("method", req.Method()))

		switch req.Method() {
		case protocol.MethodInitialize:
			return s.handleInitialize(ctx, reply, req)
		case protocol.MethodInitialized:
			return s.handleInitialized(ctx, reply, req)
		case protocol.MethodShutdown:
			return s.handleShutdown(ctx, reply, req)
		case protocol.MethodExit:
			return s.handleExit(ctx, reply, req)
		case protocol.MethodTextDocumentDidOpen:
			return s.handleTextDocumentDidOpen(ctx, reply, req)
		case protocol.MethodTextDocumentDidChange:
			return s.handleTextDocumentDidChange(ctx, reply, req)
		case protocol.MethodTextDocumentDidClose:
			return s.handleTextDocumentDidClose(ctx, reply, req)
		case protocol.MethodTextDocumentDidSave:
			return s.handleTextDocumentDidSave(ctx, reply, req)
		case protocol.MethodTextDocumentCompletion:
			return s.handleTextDocumentCompletion(ctx, reply, req)
		case protocol.MethodTextDocumentHover:
			return s.handleTextDocumentHover(ctx, reply, req)
		case protocol.MethodTextDocumentDefinition:
			return s.handleTextDocumentDefinition(ctx, reply, req)
		case protocol.MethodTextDocumentReferences:
			return s.handleTextDocumentReferences(ctx, reply, req)
		case protocol.MethodTextDocumentCodeAction:
			return s.handleTextDocumentCodeAction(ctx, reply, req)
		case protocol.MethodTextDocumentDocumentSymbol:
			return s.handleTextDocumentDocumentSymbol(ctx, reply, req)
		case protocol.MethodWorkspaceSymbol:
			return s.handleWorkspaceSymbol(ctx, reply, req)
		case protocol.MethodWorkspaceDidChangeWatchedFiles:
			return s.handleDidChangeWatchedFiles(ctx, reply, req)
		default:
			return reply(ctx, nil, jsonrpc2.ErrMethodNotFound)
		}
	}
}

// handleInitialize handles the initialize request
func (s *Server) handleInitialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse initialize params")
	}

	if params.ClientInfo != nil {
		s.logger.Info("initialize", zap.String("client", params.ClientInfo.Name), zap.String("clientVersion", params.ClientInfo.Version))
	}

	// Extract workspace root from params
	switch {
	case len(params.WorkspaceFolders) > 0:
		s.workspaceRoot = uri.URI(params.WorkspaceFolders[0].URI).Filename()
	case params.RootURI != "":
		s.workspaceRoot = params.RootURI.Filename()
	case params.RootPath != "":
		s.workspaceRoot = params.RootPath
	}
	if s.workspaceRoot != "" {
		s.logger.Info("workspace root set", zap.String("root", s.workspaceRoot))
	}

	var init initializationOptions
	if params.InitializationOptions != nil {
		raw, err := json.Marshal(params.InitializationOptions)
		if err == nil {
			err = json.Unmarshal(raw, &init)
		}
		if err != nil {
			return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse initializationOptions")
		}
	}

	deps := s.dependencies(init)
	s.configureSourceRoots()
	if err := s.index(deps); err != nil {
		s.logger.Warn("failed to start indexing", zap.Error(err))
	}

	result := protocol.InitializeResult{
		Capabilities: s.capabilities,
		ServerInfo: &protocol.ServerInfo{
			Name:    ServerName,
			Version: s.opts.Version,
		},
	}

	return reply(ctx, result, nil)
}

// dependencies merges the workspace project with the dependencies the
// client sent, falling back to the configured ones
func (s *Server) dependencies(init initializationOptions) []locator.Dependency {
	var deps []locator.Dependency
	if s.workspaceRoot != "" {
		deps = append(deps, locator.Dependency{ID: filepath.Base(s.workspaceRoot), Path: s.workspaceRoot, Kind: locator.KindProject})
	}
	for _, root := range init.ProjectRoots {
		deps = append(deps, locator.Dependency{ID: filepath.Base(root), Path: root, Kind: locator.KindProject})
	}

	var libs []locator.Dependency
	for _, p := range init.Dependencies {
		libs = append(libs, locator.Dependency{ID: filepath.Base(p), Path: p, Kind: locator.KindLibrary})
	}
	libs = append(libs, locator.ParseClasspath(init.Classpath, locator.KindLibrary)...)
	if len(libs) == 0 && len(init.ProjectRoots) == 0 {
		return append(deps, s.opts.Dependencies...)
	}
	return append(deps, libs...)
}

// configureSourceRoots anchors relative source roots at the workspace and
// defaults to its conventional source directories
func (s *Server) configureSourceRoots() {
	config := s.api.Config()
	if s.workspaceRoot == "" {
		return
	}
	if len(config.SourceRoots) == 0 {
		config.SourceRoots = []string{
			filepath.Join(s.workspaceRoot, "src", "main", "java"),
			filepath.Join(s.workspaceRoot, "src", "main", "kotlin"),
		}
		return
	}
	for i, root := range config.SourceRoots {
		if !filepath.IsAbs(root) {
			config.SourceRoots[i] = filepath.Join(s.workspaceRoot, root)
		}
	}
}

// index hands deps to the manager and the watcher
func (s *Server) index(deps []locator.Dependency) error {
	if s.manager == nil || len(deps) == 0 {
		return nil
	}
	if err := s.manager.SetDependencies(tooling.DefaultModule, deps); err != nil {
		return err
	}
	if s.watcher != nil {
		if err := s.watcher.Watch(deps); err != nil {
			s.logger.Warn("failed to watch dependencies", zap.Error(err))
		}
	}
	s.logger.Info("indexing dependencies", zap.Int("count", len(deps)))
	return nil
}

// handleInitialized handles the initialized notification
func (s *Server) handleInitialized(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.logger.Debug("client initialized")
	return reply(ctx, nil, nil)
}

// handleShutdown handles the shutdown request
func (s *Server) handleShutdown(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.logger.Info("shutdown requested")
	return reply(ctx, nil, nil)
}

// handleExit handles the exit notification
func (s *Server) handleExit(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.logger.Info("exit requested")
	// Reply first, then trigger shutdown
	if err := reply(ctx, nil, nil); err != nil {
		s.logger.Warn("error replying to exit", zap.Error(err))
	}
	s.cancel()
	return nil
}

// stop ends background work and waits for it
func (s *Server) stop() {
	s.cancel()
	s.wg.Wait()
}

// handleTextDocumentDidOpen handles document open notifications
func (s *Server) handleTextDocumentDidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didOpen params")
	}

	docURI := string(params.TextDocument.URI)
	version := int(params.TextDocument.Version)
	s.logger.Debug("document opened", zap.String("uri", docURI), zap.Int("version", version))

	if _, err := s.api.OpenDocument(docURI, params.TextDocument.Text, version); err != nil {
		s.logger.Debug("document ignored", zap.String("uri", docURI), zap.Error(err))
		return reply(ctx, nil, nil)
	}

	s.publishDiagnosticsAsync(docURI)
	return reply(ctx, nil, nil)
}

// handleTextDocumentDidChange handles document change notifications
func (s *Server) handleTextDocumentDidChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didChange params")
	}

	docURI := string(params.TextDocument.URI)
	version := int(params.TextDocument.Version)

	if len(params.ContentChanges) == 0 {
		return reply(ctx, nil, nil)
	}

	// We use full document sync, so take the last change
	content := params.ContentChanges[len(params.ContentChanges)-1].Text

	if _, err := s.api.UpdateDocument(docURI, content, version); err != nil {
		s.logger.Debug("document ignored", zap.String("uri", docURI), zap.Error(err))
		return reply(ctx, nil, nil)
	}

	s.publishDiagnosticsAsync(docURI)
	return reply(ctx, nil, nil)
}

// handleTextDocumentDidClose handles document close notifications
func (s *Server) handleTextDocumentDidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didClose params")
	}

	docURI := string(params.TextDocument.URI)
	s.logger.Debug("document closed", zap.String("uri", docURI))
	s.api.CloseDocument(docURI)

	// Clear diagnostics of the closed document
	if err := s.publish(ctx, &protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	}); err != nil {
		s.logger.Warn("error clearing diagnostics", zap.Error(err))
	}

	return reply(ctx, nil, nil)
}

// handleTextDocumentDidSave handles document save notifications
func (s *Server) handleTextDocumentDidSave(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didSave params")
	}

	docURI := string(params.TextDocument.URI)
	if _, ok := s.api.GetDocument(docURI); ok {
		s.publishDiagnosticsAsync(docURI)
	}
	return reply(ctx, nil, nil)
}

// handleDidChangeWatchedFiles invalidates the modules depending on changed
// archives or descriptors, then refreshes diagnostics of open documents
func (s *Server) handleDidChangeWatchedFiles(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeWatchedFilesParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didChangeWatchedFiles params")
	}
	if s.manager == nil {
		return reply(ctx, nil, nil)
	}

	var paths []string
	for _, change := range params.Changes {
		path := change.URI.Filename()
		if watch.Relevant(path) {
			paths = append(paths, path)
		}
	}
	if len(paths) > 0 {
		watch.Invalidate(s.manager, paths, s.logger)
		for _, docURI := range s.api.Documents() {
			s.publishDiagnosticsAsync(docURI)
		}
	}
	return reply(ctx, nil, nil)
}

// publishDiagnosticsAsync validates a document once its index is available
// and publishes the result, unless the document changed in the meantime
func (s *Server) publishDiagnosticsAsync(docURI string) {
	version, ok := s.api.DocumentVersion(docURI)
	if !ok {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, diagnosticsTimeout)
		defer cancel()
		s.publishDiagnostics(ctx, docURI, version)
	}()
}

// publishDiagnostics publishes diagnostics for a document
func (s *Server) publishDiagnostics(ctx context.Context, docURI string, version int) {
	diagnostics := s.api.GetDiagnostics(ctx, docURI)
	if s.ctx.Err() != nil {
		return
	}
	if current, ok := s.api.DocumentVersion(docURI); !ok || current != version {
		return
	}

	lspDiagnostics := make([]protocol.Diagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		lspDiagnostics = append(lspDiagnostics, convertDiagnostic(d))
	}

	params := protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(docURI),
		Version:     uint32(version),
		Diagnostics: lspDiagnostics,
	}
	if err := s.publish(ctx, &params); err != nil {
		s.logger.Warn("error publishing diagnostics", zap.String("uri", docURI), zap.Error(err))
	}
}

// replyWithError sends an LSP-compliant error response
func (s *Server) replyWithError(ctx context.Context, reply jsonrpc2.Replier, code jsonrpc2.Code, message string) error {
	return reply(ctx, nil, &jsonrpc2.Error{
		Code:    code,
		Message: message,
	})
}

func convertDiagnostic(d tooling.Diagnostic) protocol.Diagnostic {
	diag := protocol.Diagnostic{
		Range:    convertRange(d.Range),
		Severity: convertSeverity(d.Severity),
		Code:     d.Code,
		Source:   d.Source,
		Message:  d.Message,
	}
	if d.Code == "deprecated-property" {
		diag.Tags = []protocol.DiagnosticTag{protocol.DiagnosticTagDeprecated}
	}
	return diag
}

// convertSeverity converts tooling diagnostic severity to LSP severity
func convertSeverity(severity tooling.DiagnosticSeverity) protocol.DiagnosticSeverity {
	switch severity {
	case tooling.DiagnosticSeverityError:
		return protocol.DiagnosticSeverityError
	case tooling.DiagnosticSeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case tooling.DiagnosticSeverityInfo:
		return protocol.DiagnosticSeverityInformation
	case tooling.DiagnosticSeverityHint:
		return protocol.DiagnosticSeverityHint
	default:
		return protocol.DiagnosticSeverityError
	}
}

// stdrwc implements io.ReadWriteCloser for stdin/stdout
type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdrwc) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
