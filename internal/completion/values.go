package completion

import (
	"strings"

	"github.com/mattmok/idea-spring-boot-assistant/internal/configfile"
	"github.com/mattmok/idea-spring-boot-assistant/internal/index"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
	"github.com/mattmok/idea-spring-boot-assistant/internal/resolve"
)

var booleanValues = []string{"true", "false"}

// completeValue enumerates the values of the property at cc.Key. Container
// kinds expand into their nested keys instead.
func (e *Engine) completeValue(idx *index.Index, cc configfile.CursorContext) []Suggestion {
	match, ok := resolve.New(idx).Best(cc.Key)
	if !ok {
		return nil
	}
	kind := match.Kind
	text := cc.Text
	rng := cc.Range

	if cc.ListItem {
		// a "- x" item under a list: scalar elements complete as values,
		// anything else starts the first key of a mapping item
		if kind.Kind != metadata.KindList {
			return nil
		}
		elem := kind.ElemKind()
		if elem.IsContainer() || (elem.Kind == metadata.KindOpaque && len(match.Entry.ValueHints) == 0) {
			item := cc
			item.Position = configfile.CursorKey
			item.Key = joinKey(item.Enclosing, item.Text)
			item.ListItem = false
			return e.completeKey(idx, item)
		}
		kind = elem
	} else if kind.Kind == metadata.KindList && !kind.ElemKind().IsContainer() && cc.Syntax == configfile.SyntaxProperties {
		// comma separated list: complete the element after the last comma
		if i := strings.LastIndexByte(text, ','); i >= 0 {
			rng.Start.Character += len([]rune(text[:i+1]))
			text = text[i+1:]
		}
		kind = kind.ElemKind()
	}

	if kind.IsContainer() {
		return e.expandKeys(idx, match, cc)
	}

	seen := make(map[string]bool)
	var out []Suggestion
	add := func(s Suggestion) {
		folded := strings.ToLower(s.Label)
		if seen[folded] || !strings.HasPrefix(folded, strings.ToLower(strings.TrimSpace(text))) {
			return
		}
		seen[folded] = true
		s.Range = rng
		if s.InsertText == "" {
			s.InsertText = s.Label
		}
		out = append(out, s)
	}

	origin := match.Entry.Definition.Origin.ID
	for _, h := range match.Entry.ValueHints {
		add(Suggestion{Label: h.Value, Kind: KindHint, Description: h.Description, Origin: origin})
	}

	switch kind.Kind {
	case metadata.KindBoolean:
		for _, v := range booleanValues {
			add(Suggestion{Label: v, Kind: KindValue, TypeHint: kind.String()})
		}
	case metadata.KindEnum:
		for _, v := range kind.Values {
			add(Suggestion{Label: v, Kind: KindValue, TypeHint: kind.String()})
		}
	case metadata.KindDuration, metadata.KindSize:
		example := kind.Example()
		add(Suggestion{
			Label:       example,
			Kind:        KindValue,
			TypeHint:    kind.String(),
			Description: placeholderDescription(kind.Kind),
			Placeholder: true,
		})
	}

	if def := match.Entry.Definition; def.HasDefault && def.Default != "" && match.Via != resolve.ViaMap {
		add(Suggestion{Label: def.Default, Kind: KindValue, TypeHint: kind.String(), Description: "default value"})
	}
	return out
}

func placeholderDescription(kind metadata.Kind) string {
	if kind == metadata.KindDuration {
		return "duration, e.g. 500ms, 10s, 5m, 1h, 2d or ISO-8601 PT10S"
	}
	return "data size, e.g. 512B, 10KB, 10MB, 1GB"
}

// expandKeys suggests the keys nested below a container property when the
// cursor is in its value position.
func (e *Engine) expandKeys(idx *index.Index, match resolve.Match, cc configfile.CursorContext) []Suggestion {
	base := match.Entry.Key
	if match.Via == resolve.ViaMap || match.Via == resolve.ViaList {
		base = metadata.Kebab(cc.Key)
	}

	inner := configfile.CursorContext{
		Syntax:    cc.Syntax,
		Position:  configfile.CursorKey,
		Key:       base + ".",
		Enclosing: base,
		Indent:    cc.Indent + 2,
	}
	suggestions := e.completeKey(idx, inner)
	for i := range suggestions {
		s := &suggestions[i]
		if cc.Syntax == configfile.SyntaxYAML {
			s.InsertText = "\n" + strings.Repeat(" ", inner.Indent) + s.InsertText
			s.Range = cc.Range
			continue
		}
		// properties: rewrite the whole assignment from the key onwards
		s.InsertText = s.Label + "="
		if s.Kind == KindGroup {
			s.InsertText = s.Label + "."
		}
		s.Range = configfile.Range{Start: cc.KeyRange.Start, End: cc.Range.End}
	}
	return suggestions
}
