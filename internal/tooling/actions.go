package tooling

import (
	"context"
	"fmt"

	"github.com/mattmok/idea-spring-boot-assistant/internal/validate"
)

// CodeActionQuickFix is the kind of every action offered
const CodeActionQuickFix = "quickfix"

// TextEdit replaces Range with NewText
type TextEdit struct {
	Range   Range
	NewText string
}

// CodeAction is an edit fixing a diagnostic
type CodeAction struct {
	Title      string
	Kind       string
	Diagnostic Diagnostic
	URI        string
	Edits      []TextEdit
	// Preferred marks the single obvious fix
	Preferred bool
}

// GetCodeActions returns fixes for the diagnostics overlapping rng: a
// deprecated key is replaced by its replacement, an unknown key by the
// closest known one.
func (a *API) GetCodeActions(ctx context.Context, docURI string, rng Range) ([]CodeAction, error) {
	if _, exists := a.GetDocument(docURI); !exists {
		return nil, fmt.Errorf("document not found: %s", docURI)
	}

	actions := make([]CodeAction, 0)
	for _, d := range a.GetDiagnostics(ctx, docURI) {
		if d.Replacement == "" || !overlaps(d.Range, rng) {
			continue
		}
		title := fmt.Sprintf("Replace with '%s'", d.Replacement)
		if d.Code == validate.CodeUnknown {
			title = fmt.Sprintf("Change to '%s'", d.Replacement)
		}
		actions = append(actions, CodeAction{
			Title:      title,
			Kind:       CodeActionQuickFix,
			Diagnostic: d,
			URI:        docURI,
			Edits:      []TextEdit{{Range: d.Range, NewText: d.Replacement}},
			Preferred:  d.Code == validate.CodeDeprecated,
		})
	}
	return actions, nil
}

func overlaps(a, b Range) bool {
	return !a.End.Before(b.Start) && !b.End.Before(a.Start)
}
