// Package index holds the merged, immutable property index built from parsed
// metadata catalogs. An Index is never mutated after Build returns, so any
// number of goroutines may query it concurrently.
package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
)

// Entry is the merged, queryable unit for one property key
type Entry struct {
	Key  string
	Name metadata.Name

	// Definition is the winning declaration (highest priority origin)
	Definition *metadata.PropertyDefinition
	// Definitions holds every declaration in priority order, Definition first
	Definitions []*metadata.PropertyDefinition

	// Kind is the effective value kind, which a handle-as hint may override
	Kind metadata.ValueKind

	ValueHints []metadata.ValueHint
	KeyHints   []metadata.ValueHint
	Providers  []metadata.ValueProvider
}

// Origins lists every origin that declares the key, in priority order
func (e *Entry) Origins() []metadata.Origin {
	origins := make([]metadata.Origin, len(e.Definitions))
	for i, d := range e.Definitions {
		origins[i] = d.Origin
	}
	return origins
}

// Conflicting reports whether origins disagree about the declared type
func (e *Entry) Conflicting() bool {
	for _, d := range e.Definitions[1:] {
		if d.Type != e.Definition.Type {
			return true
		}
	}
	return false
}

// Deprecated reports whether the winning definition is deprecated
func (e *Entry) Deprecated() bool {
	return e.Definition.Deprecated()
}

// Group is a key prefix with its children, merged across catalogs
type Group struct {
	Key        string
	Name       metadata.Name
	Definition *metadata.GroupDefinition
	Origins    []metadata.Origin
	Properties []*Entry
	Groups     []*Group
}

// Index is an immutable, queryable property index
type Index struct {
	buildID string
	entries []*Entry
	byKey   map[string]*Entry
	uniform map[string][]*Entry
	groups  map[string]*Group
	hints   map[string]*metadata.Hint
	root    *node
	// runes maps each rune to the set of entry ids whose key contains it
	runes map[rune]*roaring.Bitmap
}

// Empty returns an index with no entries
func Empty() *Index {
	return Build()
}

// Build merges catalogs in priority order. When two catalogs declare the
// same key, the earlier catalog wins for type and description but every
// origin is retained.
func Build(catalogs ...*metadata.Catalog) *Index {
	idx := &Index{
		buildID: uuid.NewString(),
		byKey:   make(map[string]*Entry),
		uniform: make(map[string][]*Entry),
		groups:  make(map[string]*Group),
		hints:   make(map[string]*metadata.Hint),
		root:    newNode(""),
		runes:   make(map[rune]*roaring.Bitmap),
	}

	for _, c := range catalogs {
		if c == nil {
			continue
		}
		for _, p := range c.Properties {
			if e, ok := idx.byKey[p.Key]; ok {
				e.Definitions = append(e.Definitions, p)
				continue
			}
			e := &Entry{
				Key:         p.Key,
				Name:        p.Name,
				Definition:  p,
				Definitions: []*metadata.PropertyDefinition{p},
				Kind:        p.Kind,
			}
			idx.byKey[p.Key] = e
			idx.entries = append(idx.entries, e)
		}
		for _, g := range c.Groups {
			if existing, ok := idx.groups[g.Key]; ok {
				existing.Origins = append(existing.Origins, g.Origin)
				continue
			}
			idx.groups[g.Key] = &Group{Key: g.Key, Name: g.Name, Definition: g, Origins: []metadata.Origin{g.Origin}}
		}
		for _, h := range c.Hints {
			if _, ok := idx.hints[h.Key]; !ok {
				idx.hints[h.Key] = h
			}
		}
	}

	sort.Slice(idx.entries, func(i, j int) bool {
		return idx.entries[i].Key < idx.entries[j].Key
	})

	for id, e := range idx.entries {
		idx.attachHints(e)
		idx.root.insert(e)
		u := e.Name.Uniform()
		idx.uniform[u] = append(idx.uniform[u], e)
		for _, r := range e.Key {
			bm, ok := idx.runes[r]
			if !ok {
				bm = roaring.New()
				idx.runes[r] = bm
			}
			bm.Add(uint32(id))
		}
	}
	for _, bm := range idx.runes {
		bm.RunOptimize()
	}

	idx.linkGroups()
	return idx
}

func (idx *Index) attachHints(e *Entry) {
	if h := idx.valueHint(e.Key); h != nil {
		e.ValueHints = h.Values
		e.Providers = h.Providers
		for _, p := range h.Providers {
			if p.Name == "handle-as" && p.Parameters["target"] != "" {
				if kind := metadata.KindOf(p.Parameters["target"]); kind.Kind != metadata.KindOpaque {
					e.Kind = kind
				}
			}
		}
	}
	if h, ok := idx.hints[e.Key+".keys"]; ok {
		e.KeyHints = h.Values
	}
}

func (idx *Index) valueHint(key string) *metadata.Hint {
	if h, ok := idx.hints[key]; ok {
		return h
	}
	if h, ok := idx.hints[key+".values"]; ok {
		return h
	}
	return nil
}

// linkGroups attaches each entry and group to its closest enclosing group
func (idx *Index) linkGroups() {
	parentOf := func(name metadata.Name) *Group {
		for n := name.Parent(); !n.IsEmpty(); n = n.Parent() {
			if g, ok := idx.groups[n.String()]; ok {
				return g
			}
		}
		return nil
	}

	for _, e := range idx.entries {
		if g := parentOf(e.Name); g != nil {
			g.Properties = append(g.Properties, e)
		}
	}

	keys := make([]string, 0, len(idx.groups))
	for k := range idx.groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		g := idx.groups[k]
		if parent := parentOf(g.Name); parent != nil {
			parent.Groups = append(parent.Groups, g)
		}
	}
}

// BuildID identifies this particular build. It is not part of structural
// equality.
func (idx *Index) BuildID() string {
	return idx.buildID
}

// Len returns the number of property entries
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entries returns all entries sorted by key. The slice must not be modified.
func (idx *Index) Entries() []*Entry {
	return idx.entries
}

// Lookup returns the entry whose canonical key equals key
func (idx *Index) Lookup(key string) (*Entry, bool) {
	name, err := metadata.ParseName(key)
	if err != nil {
		return nil, false
	}
	return idx.LookupName(name)
}

// LookupName walks the trie segment by segment
func (idx *Index) LookupName(name metadata.Name) (*Entry, bool) {
	n := idx.root.find(name)
	if n == nil || n.entry == nil {
		return nil, false
	}
	return n.entry, true
}

// LookupRelaxed returns entries equal to name under relaxed comparison,
// e.g. server.ssl.keyStore and server.ssl.key_store both find
// server.ssl.key-store.
func (idx *Index) LookupRelaxed(name metadata.Name) []*Entry {
	return idx.uniform[name.Uniform()]
}

// Group returns the group declared at key
func (idx *Index) Group(key string) (*Group, bool) {
	g, ok := idx.groups[key]
	return g, ok
}

// Groups returns all groups sorted by key
func (idx *Index) Groups() []*Group {
	groups := make([]*Group, 0, len(idx.groups))
	for _, g := range idx.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// Hint returns the raw hint declared at key, e.g. "logging.level.keys"
func (idx *Index) Hint(key string) (*metadata.Hint, bool) {
	h, ok := idx.hints[key]
	return h, ok
}

// ValueHints returns value hints for key even when no property is declared
// there.
func (idx *Index) ValueHints(key string) []metadata.ValueHint {
	if e, ok := idx.byKey[key]; ok {
		return e.ValueHints
	}
	if h := idx.valueHint(key); h != nil {
		return h.Values
	}
	return nil
}

// KeyHints returns map key hints for key
func (idx *Index) KeyHints(key string) []metadata.ValueHint {
	if h, ok := idx.hints[key+".keys"]; ok {
		return h.Values
	}
	return nil
}

// Children returns the direct child segments below key that lead to further
// properties, sorted. Used to offer "expand this branch" completions.
func (idx *Index) Children(key string) []string {
	name, err := metadata.ParseName(key)
	if err != nil {
		return nil
	}
	n := idx.root.find(name)
	if n == nil {
		return nil
	}
	var children []string
	for _, seg := range n.order {
		if len(n.children[seg].children) > 0 {
			children = append(children, seg)
		}
	}
	return children
}
