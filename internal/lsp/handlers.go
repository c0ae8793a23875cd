package lsp

import (
	"context"
	"encoding/json"

	"github.com/mattmok/idea-spring-boot-assistant/internal/tooling"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// handleTextDocumentCompletion handles completion requests
func (s *Server) handleTextDocumentCompletion(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.CompletionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse completion params")
	}

	docURI := string(params.TextDocument.URI)
	completions, err := s.api.GetCompletions(ctx, docURI, convertPosition(params.Position))
	if err != nil {
		s.logger.Warn("error getting completions", zap.String("uri", docURI), zap.Error(err))
		return s.replyWithError(ctx, reply, jsonrpc2.InternalError, "Failed to get completions")
	}

	// Convert to LSP completion items
	items := make([]protocol.CompletionItem, 0, len(completions))
	for _, c := range completions {
		items = append(items, convertCompletionItem(c))
	}

	result := protocol.CompletionList{
		IsIncomplete: false,
		Items:        items,
	}

	return reply(ctx, result, nil)
}

func convertCompletionItem(c tooling.CompletionItem) protocol.CompletionItem {
	item := protocol.CompletionItem{
		Label:  c.Label,
		Kind:   convertCompletionKind(c.Kind),
		Detail: c.Detail,
		// the edit replaces the whole typed key, so clients must filter on it
		FilterText:       c.FilterText,
		InsertTextFormat: protocol.InsertTextFormatPlainText,
		TextEdit: &protocol.TextEdit{
			Range:   convertRange(c.Range),
			NewText: c.InsertText,
		},
		SortText: c.SortText,
	}
	if c.Documentation != "" {
		item.Documentation = protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: c.Documentation,
		}
	}
	if c.Deprecated {
		item.Tags = []protocol.CompletionItemTag{protocol.CompletionItemTagDeprecated}
	}
	return item
}

// handleTextDocumentHover handles hover requests
func (s *Server) handleTextDocumentHover(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.HoverParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse hover params")
	}

	docURI := string(params.TextDocument.URI)
	hover, err := s.api.GetHover(ctx, docURI, convertPosition(params.Position))
	if err != nil {
		s.logger.Warn("error getting hover", zap.String("uri", docURI), zap.Error(err))
		return s.replyWithError(ctx, reply, jsonrpc2.InternalError, "Failed to get hover information")
	}

	if hover == nil {
		return reply(ctx, nil, nil)
	}

	rng := convertRange(hover.Range)
	result := protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: hover.Contents,
		},
		Range: &rng,
	}

	return reply(ctx, result, nil)
}

// handleTextDocumentDefinition handles go-to-definition requests
func (s *Server) handleTextDocumentDefinition(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DefinitionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse definition params")
	}

	docURI := string(params.TextDocument.URI)
	locations, err := s.api.GetDefinition(ctx, docURI, convertPosition(params.Position))
	if err != nil {
		s.logger.Warn("error getting definition", zap.String("uri", docURI), zap.Error(err))
		return s.replyWithError(ctx, reply, jsonrpc2.InternalError, "Failed to get definition")
	}

	if len(locations) == 0 {
		return reply(ctx, nil, nil)
	}
	return reply(ctx, convertLocations(locations), nil)
}

// handleTextDocumentReferences handles find references requests
func (s *Server) handleTextDocumentReferences(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.ReferenceParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse references params")
	}

	docURI := string(params.TextDocument.URI)
	references, err := s.api.GetReferences(docURI, convertPosition(params.Position))
	if err != nil {
		s.logger.Warn("error getting references", zap.String("uri", docURI), zap.Error(err))
		return s.replyWithError(ctx, reply, jsonrpc2.InternalError, "Failed to get references")
	}

	return reply(ctx, convertLocations(references), nil)
}

// handleTextDocumentCodeAction handles code action requests
func (s *Server) handleTextDocumentCodeAction(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.CodeActionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse code action params")
	}

	docURI := string(params.TextDocument.URI)
	rng := tooling.Range{
		Start: convertPosition(params.Range.Start),
		End:   convertPosition(params.Range.End),
	}
	actions, err := s.api.GetCodeActions(ctx, docURI, rng)
	if err != nil {
		s.logger.Warn("error getting code actions", zap.String("uri", docURI), zap.Error(err))
		return s.replyWithError(ctx, reply, jsonrpc2.InternalError, "Failed to get code actions")
	}

	result := make([]protocol.CodeAction, 0, len(actions))
	for _, a := range actions {
		edits := make([]protocol.TextEdit, 0, len(a.Edits))
		for _, e := range a.Edits {
			edits = append(edits, protocol.TextEdit{Range: convertRange(e.Range), NewText: e.NewText})
		}
		result = append(result, protocol.CodeAction{
			Title:       a.Title,
			Kind:        protocol.CodeActionKind(a.Kind),
			Diagnostics: []protocol.Diagnostic{convertDiagnostic(a.Diagnostic)},
			IsPreferred: a.Preferred,
			Edit: &protocol.WorkspaceEdit{
				Changes: map[protocol.DocumentURI][]protocol.TextEdit{
					protocol.DocumentURI(a.URI): edits,
				},
			},
		})
	}

	return reply(ctx, result, nil)
}

// handleTextDocumentDocumentSymbol handles document symbol requests
func (s *Server) handleTextDocumentDocumentSymbol(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DocumentSymbolParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse document symbol params")
	}

	docURI := string(params.TextDocument.URI)
	symbols, err := s.api.GetDocumentSymbols(docURI)
	if err != nil {
		s.logger.Warn("error getting document symbols", zap.String("uri", docURI), zap.Error(err))
		return s.replyWithError(ctx, reply, jsonrpc2.InternalError, "Failed to get document symbols")
	}

	// Convert to LSP document symbols
	lspSymbols := make([]protocol.DocumentSymbol, 0, len(symbols))
	for _, sym := range symbols {
		lspSymbols = append(lspSymbols, protocol.DocumentSymbol{
			Name:           sym.Name,
			Kind:           convertSymbolKind(sym.Kind),
			Detail:         sym.Detail,
			Range:          convertRange(sym.Range),
			SelectionRange: convertRange(sym.SelectionRange),
		})
	}

	return reply(ctx, lspSymbols, nil)
}

// handleWorkspaceSymbol handles workspace symbol search requests
func (s *Server) handleWorkspaceSymbol(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.WorkspaceSymbolParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse workspace symbol params")
	}

	found, err := s.api.GetWorkspaceSymbols(ctx, params.Query)
	if err != nil {
		s.logger.Warn("error searching workspace symbols", zap.Error(err))
		return s.replyWithError(ctx, reply, jsonrpc2.InternalError, "Failed to search workspace symbols")
	}

	symbols := make([]protocol.SymbolInformation, 0, len(found))
	for _, sym := range found {
		symbols = append(symbols, protocol.SymbolInformation{
			Name: sym.Name,
			Kind: convertSymbolKind(sym.Kind),
			Location: protocol.Location{
				URI:   protocol.DocumentURI(sym.Location.URI),
				Range: convertRange(sym.Location.Range),
			},
			ContainerName: sym.ContainerName,
		})
	}

	return reply(ctx, symbols, nil)
}

// Helper functions to convert between tooling and LSP types

func convertPosition(p protocol.Position) tooling.Position {
	return tooling.Position{Line: int(p.Line), Character: int(p.Character)}
}

func convertRange(r tooling.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{
			Line:      uint32(r.Start.Line),
			Character: uint32(r.Start.Character),
		},
		End: protocol.Position{
			Line:      uint32(r.End.Line),
			Character: uint32(r.End.Character),
		},
	}
}

func convertLocations(locations []tooling.Location) []protocol.Location {
	out := make([]protocol.Location, 0, len(locations))
	for _, l := range locations {
		out = append(out, protocol.Location{
			URI:   protocol.DocumentURI(l.URI),
			Range: convertRange(l.Range),
		})
	}
	return out
}

func convertCompletionKind(kind tooling.CompletionKind) protocol.CompletionItemKind {
	switch kind {
	case tooling.CompletionKindProperty:
		return protocol.CompletionItemKindProperty
	case tooling.CompletionKindGroup:
		return protocol.CompletionItemKindModule
	case tooling.CompletionKindValue:
		return protocol.CompletionItemKindValue
	case tooling.CompletionKindHint:
		return protocol.CompletionItemKindEnumMember
	default:
		return protocol.CompletionItemKindText
	}
}

func convertSymbolKind(kind tooling.SymbolKind) protocol.SymbolKind {
	switch kind {
	case tooling.SymbolKindProperty:
		return protocol.SymbolKindProperty
	case tooling.SymbolKindElement:
		return protocol.SymbolKindArray
	case tooling.SymbolKindDeclaration:
		return protocol.SymbolKindField
	default:
		return protocol.SymbolKindObject
	}
}
