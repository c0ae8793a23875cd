package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattmok/idea-spring-boot-assistant/internal/lifecycle"
	"github.com/mattmok/idea-spring-boot-assistant/internal/tooling"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

const libraryDescriptor = `{
  "properties": [
    {"name": "server.port", "type": "java.lang.Integer", "description": "Server HTTP port.", "defaultValue": 8080},
    {
      "name": "server.ssl.enabled",
      "type": "java.lang.Boolean",
      "deprecation": {"replacement": "server.ssl.enabled-protocols"}
    },
    {"name": "server.ssl.enabled-protocols", "type": "java.lang.String[]"}
  ]
}`

type fixture struct {
	server     *Server
	manager    *lifecycle.Manager
	library    string
	descriptor string
	workspace  string
	published  chan *protocol.PublishDiagnosticsParams
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	library := filepath.Join(dir, "boot")
	descriptor := filepath.Join(library, "META-INF", "spring-configuration-metadata.json")
	if err := os.MkdirAll(filepath.Dir(descriptor), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(descriptor, []byte(libraryDescriptor), 0o644); err != nil {
		t.Fatal(err)
	}
	workspace := filepath.Join(dir, "app")
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		t.Fatal(err)
	}

	manager, err := lifecycle.New(lifecycle.Config{Workers: 2, CatalogCacheSize: 8}, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	server := NewServer(Options{Manager: manager, Version: "test"})
	published := make(chan *protocol.PublishDiagnosticsParams, 16)
	server.publish = func(_ context.Context, p *protocol.PublishDiagnosticsParams) error {
		published <- p
		return nil
	}
	t.Cleanup(func() {
		server.stop()
		_ = manager.Shutdown(context.Background())
	})
	return &fixture{
		server:     server,
		manager:    manager,
		library:    library,
		descriptor: descriptor,
		workspace:  workspace,
		published:  published,
	}
}

// call runs a request through the handler and returns what it replied
func (f *fixture) call(t *testing.T, method string, params interface{}) (interface{}, error) {
	t.Helper()
	req, err := jsonrpc2.NewCall(jsonrpc2.NewNumberID(1), method, params)
	if err != nil {
		t.Fatalf("Failed to build %s request: %v", method, err)
	}
	var result interface{}
	var replyErr error
	reply := func(_ context.Context, r interface{}, e error) error {
		result, replyErr = r, e
		return nil
	}
	if err := f.server.handler()(context.Background(), reply, req); err != nil {
		t.Fatalf("%s handler returned error: %v", method, err)
	}
	return result, replyErr
}

func (f *fixture) initialize(t *testing.T) {
	t.Helper()
	params := map[string]interface{}{
		"rootUri":               string(uri.File(f.workspace)),
		"initializationOptions": map[string]interface{}{"dependencies": []string{f.library}},
	}
	if _, err := f.call(t, protocol.MethodInitialize, params); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := f.manager.Wait(ctx, tooling.DefaultModule); err != nil {
		t.Fatalf("index not built: %v", err)
	}
}

func (f *fixture) open(t *testing.T, docURI, text string) {
	t.Helper()
	params := protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:     protocol.DocumentURI(docURI),
			Version: 1,
			Text:    text,
		},
	}
	if _, err := f.call(t, protocol.MethodTextDocumentDidOpen, params); err != nil {
		t.Fatalf("didOpen failed: %v", err)
	}
}

func (f *fixture) nextDiagnostics(t *testing.T) *protocol.PublishDiagnosticsParams {
	t.Helper()
	select {
	case p := <-f.published:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for diagnostics")
		return nil
	}
}

func (f *fixture) docURI(name string) string {
	return string(uri.File(filepath.Join(f.workspace, "src", "main", "resources", name)))
}

func TestServerInitialization(t *testing.T) {
	server := NewServer(Options{})
	if server == nil {
		t.Fatal("NewServer() returned nil")
	}
	if server.api == nil {
		t.Error("Server API is nil")
	}
	if server.logger == nil {
		t.Error("Server logger is nil")
	}

	caps := server.capabilities
	if caps.CompletionProvider == nil {
		t.Error("CompletionProvider is nil")
	}
	if caps.DefinitionProvider == nil {
		t.Error("DefinitionProvider is nil")
	}
	if caps.CodeActionProvider == nil {
		t.Error("CodeActionProvider is nil")
	}
	if caps.HoverProvider != true {
		t.Error("HoverProvider should be true")
	}
	if caps.ReferencesProvider != true {
		t.Error("ReferencesProvider should be true")
	}
	if caps.DocumentSymbolProvider != true {
		t.Error("DocumentSymbolProvider should be true")
	}
	if caps.WorkspaceSymbolProvider != true {
		t.Error("WorkspaceSymbolProvider should be true")
	}
}

func TestInitialize(t *testing.T) {
	f := newFixture(t)
	params := map[string]interface{}{
		"rootUri":               string(uri.File(f.workspace)),
		"initializationOptions": map[string]interface{}{"classpath": f.library},
	}

	result, err := f.call(t, protocol.MethodInitialize, params)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	init, ok := result.(protocol.InitializeResult)
	if !ok {
		t.Fatalf("Expected InitializeResult, got %T", result)
	}
	if init.ServerInfo == nil || init.ServerInfo.Name != ServerName || init.ServerInfo.Version != "test" {
		t.Errorf("Unexpected server info %+v", init.ServerInfo)
	}

	deps := f.manager.Dependencies(tooling.DefaultModule)
	if len(deps) != 2 || deps[0].Path != f.workspace || deps[1].Path != f.library {
		t.Errorf("Expected workspace then library dependency, got %+v", deps)
	}
	roots := f.server.API().Config().SourceRoots
	if len(roots) == 0 || roots[0] != filepath.Join(f.workspace, "src", "main", "java") {
		t.Errorf("Expected default source roots, got %v", roots)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	idx, err := f.manager.Wait(ctx, tooling.DefaultModule)
	if err != nil {
		t.Fatalf("index not built: %v", err)
	}
	if _, ok := idx.Lookup("server.port"); !ok {
		t.Error("Expected server.port to be indexed")
	}
}

func TestInitializeInvalidParams(t *testing.T) {
	f := newFixture(t)

	_, err := f.call(t, protocol.MethodInitialize, json.RawMessage(`"not an object"`))
	var rpcErr *jsonrpc2.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != jsonrpc2.InvalidParams {
		t.Errorf("Expected InvalidParams, got %v", err)
	}
}

func TestMethodNotFound(t *testing.T) {
	f := newFixture(t)

	if _, err := f.call(t, "textDocument/formatting", map[string]interface{}{}); !errors.Is(err, jsonrpc2.ErrMethodNotFound) {
		t.Errorf("Expected ErrMethodNotFound, got %v", err)
	}
}

func TestDidOpenPublishesDiagnostics(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	docURI := f.docURI("application.properties")
	f.open(t, docURI, "server.port=abc\nserver.ssl.enabled=true\n")

	params := f.nextDiagnostics(t)
	if string(params.URI) != docURI {
		t.Errorf("Expected diagnostics for %s, got %s", docURI, params.URI)
	}
	if len(params.Diagnostics) != 2 {
		t.Fatalf("Expected 2 diagnostics, got %+v", params.Diagnostics)
	}
	if params.Diagnostics[0].Severity != protocol.DiagnosticSeverityError || params.Diagnostics[0].Code != "invalid-value" {
		t.Errorf("Unexpected first diagnostic %+v", params.Diagnostics[0])
	}
	deprecated := params.Diagnostics[1]
	if len(deprecated.Tags) != 1 || deprecated.Tags[0] != protocol.DiagnosticTagDeprecated {
		t.Errorf("Expected deprecated tag, got %+v", deprecated)
	}
}

func TestDidOpenIgnoresOtherFiles(t *testing.T) {
	f := newFixture(t)

	f.open(t, f.docURI("notes.txt"), "hello")
	if len(f.server.API().Documents()) != 0 {
		t.Error("Expected non-configuration files to be ignored")
	}
	select {
	case p := <-f.published:
		t.Errorf("Unexpected diagnostics %+v", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDidCloseClearsDiagnostics(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	docURI := f.docURI("application.properties")
	f.open(t, docURI, "server.port=abc\n")
	f.nextDiagnostics(t)

	params := protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(docURI)},
	}
	if _, err := f.call(t, protocol.MethodTextDocumentDidClose, params); err != nil {
		t.Fatalf("didClose failed: %v", err)
	}
	cleared := f.nextDiagnostics(t)
	if len(cleared.Diagnostics) != 0 {
		t.Errorf("Expected empty diagnostics on close, got %+v", cleared.Diagnostics)
	}
}

func TestDidChangeWatchedFilesRebuilds(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	updated := `{"properties":[{"name":"management.port","type":"java.lang.Integer"}]}`
	if err := os.WriteFile(f.descriptor, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	params := protocol.DidChangeWatchedFilesParams{
		Changes: []*protocol.FileEvent{{URI: uri.File(f.descriptor), Type: protocol.FileChangeTypeChanged}},
	}
	if _, err := f.call(t, protocol.MethodWorkspaceDidChangeWatchedFiles, params); err != nil {
		t.Fatalf("didChangeWatchedFiles failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	idx, err := f.manager.Wait(ctx, tooling.DefaultModule)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if _, ok := idx.Lookup("management.port"); !ok {
		t.Error("Expected the rebuilt index to contain management.port")
	}
}

func TestConvertSeverity(t *testing.T) {
	tests := []struct {
		name     string
		input    tooling.DiagnosticSeverity
		expected protocol.DiagnosticSeverity
	}{
		{
			name:     "Error severity",
			input:    tooling.DiagnosticSeverityError,
			expected: protocol.DiagnosticSeverityError,
		},
		{
			name:     "Warning severity",
			input:    tooling.DiagnosticSeverityWarning,
			expected: protocol.DiagnosticSeverityWarning,
		},
		{
			name:     "Info severity",
			input:    tooling.DiagnosticSeverityInfo,
			expected: protocol.DiagnosticSeverityInformation,
		},
		{
			name:     "Hint severity",
			input:    tooling.DiagnosticSeverityHint,
			expected: protocol.DiagnosticSeverityHint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := convertSeverity(tt.input)
			if result != tt.expected {
				t.Errorf("convertSeverity(%v): expected %v, got %v", tt.input, tt.expected, result)
			}
		})
	}
}

func TestStdRWC(t *testing.T) {
	rwc := stdrwc{}

	_ = rwc.Read
	_ = rwc.Write
	_ = rwc.Close
}
