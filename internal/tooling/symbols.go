package tooling

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mattmok/idea-spring-boot-assistant/internal/configfile"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
)

// Symbol is one key assignment in an open document
type Symbol struct {
	// Name is the key as written
	Name string
	Kind SymbolKind
	// Range spans the key and its value
	Range Range
	// SelectionRange is the key alone
	SelectionRange Range
	Detail         string
	// ContainerName is the dotted parent of the key
	ContainerName string
}

// SymbolKind categorizes symbols
type SymbolKind int

const (
	// SymbolKindProperty is a key assignment
	SymbolKindProperty SymbolKind = iota
	// SymbolKindElement is an indexed list element such as a[0]
	SymbolKindElement
	// SymbolKindDeclaration is a property declared by a descriptor
	SymbolKindDeclaration
)

// WorkspaceSymbol is a symbol located anywhere in the workspace
type WorkspaceSymbol struct {
	Name          string
	Kind          SymbolKind
	Location      Location
	ContainerName string
	Detail        string
}

// SymbolIndex maintains a searchable index of the keys of all open documents
type SymbolIndex struct {
	// symbols maps a normalized key to every assignment of it
	symbols map[string][]*IndexedSymbol
	mutex   sync.RWMutex
}

// IndexedSymbol represents a symbol with its location
type IndexedSymbol struct {
	URI string
	*Symbol
}

// NewSymbolIndex creates a new symbol index
func NewSymbolIndex() *SymbolIndex {
	return &SymbolIndex{
		symbols: make(map[string][]*IndexedSymbol),
	}
}

// Index replaces the symbols of a document
func (si *SymbolIndex) Index(uri string, symbols []*Symbol) {
	si.mutex.Lock()
	defer si.mutex.Unlock()

	si.removeDocumentLocked(uri)
	for _, sym := range symbols {
		key := normalizeKey(sym.Name)
		si.symbols[key] = append(si.symbols[key], &IndexedSymbol{URI: uri, Symbol: sym})
	}
}

// RemoveDocument removes all symbols from a document
func (si *SymbolIndex) RemoveDocument(uri string) {
	si.mutex.Lock()
	defer si.mutex.Unlock()

	si.removeDocumentLocked(uri)
}

func (si *SymbolIndex) removeDocumentLocked(uri string) {
	for key, syms := range si.symbols {
		filtered := syms[:0:0]
		for _, sym := range syms {
			if sym.URI != uri {
				filtered = append(filtered, sym)
			}
		}
		if len(filtered) > 0 {
			si.symbols[key] = filtered
		} else {
			delete(si.symbols, key)
		}
	}
}

// FindReferences finds every assignment of key in any relaxed spelling,
// ordered by URI and position
func (si *SymbolIndex) FindReferences(key string) []Location {
	si.mutex.RLock()
	syms := si.symbols[normalizeKey(key)]
	locations := make([]Location, len(syms))
	for i, sym := range syms {
		locations[i] = Location{URI: sym.URI, Range: sym.SelectionRange}
	}
	si.mutex.RUnlock()

	sort.Slice(locations, func(i, j int) bool {
		if locations[i].URI != locations[j].URI {
			return locations[i].URI < locations[j].URI
		}
		return locations[i].Range.Start.Before(locations[j].Range.Start)
	})
	return locations
}

// SearchSymbols returns the symbols whose key contains query, case
// insensitive. An empty query matches everything.
func (si *SymbolIndex) SearchSymbols(query string) []*IndexedSymbol {
	si.mutex.RLock()
	defer si.mutex.RUnlock()

	query = strings.ToLower(query)
	result := make([]*IndexedSymbol, 0)
	for _, syms := range si.symbols {
		for _, sym := range syms {
			if query == "" || strings.Contains(strings.ToLower(sym.Name), query) {
				result = append(result, sym)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].URI < result[j].URI
	})
	return result
}

// normalizeKey maps every relaxed spelling of a key to one string
func normalizeKey(key string) string {
	if name, err := metadata.ParseName(key); err == nil {
		return name.Uniform()
	}
	return strings.ToLower(key)
}

// extractSymbols turns the entries of a parsed file into symbols
func extractSymbols(file *configfile.File) []*Symbol {
	if file == nil {
		return nil
	}
	symbols := make([]*Symbol, 0, len(file.Entries))
	for i := range file.Entries {
		e := &file.Entries[i]
		kind := SymbolKindProperty
		if strings.HasSuffix(e.Key, "]") {
			kind = SymbolKindElement
		}
		rng := e.KeyRange
		detail := ""
		if e.HasValue {
			if e.ValueRange.End.Line > rng.End.Line ||
				(e.ValueRange.End.Line == rng.End.Line && rng.End.Before(e.ValueRange.End)) {
				rng.End = e.ValueRange.End
			}
			detail = e.Value
		}
		symbols = append(symbols, &Symbol{
			Name:           e.Key,
			Kind:           kind,
			Range:          rng,
			SelectionRange: e.KeyRange,
			Detail:         detail,
			ContainerName:  parentKey(e.Key),
		})
	}
	return symbols
}

func parentKey(key string) string {
	if name, err := metadata.ParseName(key); err == nil && name.Len() > 1 {
		return name.Parent().String()
	}
	return ""
}

// GetDocumentSymbols returns the key assignments of a document in order
func (a *API) GetDocumentSymbols(docURI string) ([]*Symbol, error) {
	doc, exists := a.GetDocument(docURI)
	if !exists {
		return nil, fmt.Errorf("document not found: %s", docURI)
	}
	return doc.Symbols, nil
}

// GetReferences returns every assignment, across open documents, of the
// property whose key is at pos
func (a *API) GetReferences(docURI string, pos Position) ([]Location, error) {
	doc, exists := a.GetDocument(docURI)
	if !exists {
		return nil, fmt.Errorf("document not found: %s", docURI)
	}
	entry, ok := doc.File.EntryAt(pos)
	if !ok {
		return []Location{}, nil
	}
	return a.symbolIndex.FindReferences(entry.Key), nil
}

// workspaceDeclarations caps declarations returned per module
const workspaceDeclarations = 50

// GetWorkspaceSymbols searches keys assigned in open documents and, fuzzily,
// properties declared in the index of every built module. Modules still
// building are skipped.
func (a *API) GetWorkspaceSymbols(ctx context.Context, query string) ([]WorkspaceSymbol, error) {
	result := make([]WorkspaceSymbol, 0)
	for _, sym := range a.symbolIndex.SearchSymbols(query) {
		result = append(result, WorkspaceSymbol{
			Name:          sym.Name,
			Kind:          sym.Kind,
			Location:      Location{URI: sym.URI, Range: sym.SelectionRange},
			ContainerName: sym.ContainerName,
			Detail:        sym.Detail,
		})
	}
	if query == "" || a.indexes == nil {
		return result, nil
	}

	seen := make(map[string]bool)
	for _, module := range a.indexes.Modules() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		idx, ok := a.current(module)
		if !ok {
			continue
		}
		for _, m := range idx.FuzzyMatches(query, workspaceDeclarations) {
			def := m.Entry.Definition
			if seen[m.Entry.Key] || def.Origin.Location == "" {
				continue
			}
			seen[m.Entry.Key] = true
			result = append(result, WorkspaceSymbol{
				Name: m.Entry.Key,
				Kind: SymbolKindDeclaration,
				Location: Location{
					URI:   locationURI(def.Origin.Location),
					Range: lineStart(max(descriptorLine(def.Origin.Location, m.Entry.Key), 0)),
				},
				ContainerName: def.Origin.ID,
				Detail:        typeName(def.Type, m.Entry.Kind),
			})
		}
	}
	return result, nil
}
