// Package resolve maps user-typed configuration keys, which may use relaxed
// spelling, list indexes, map keys or placeholders, onto index entries.
package resolve

import (
	"strings"

	"github.com/mattmok/idea-spring-boot-assistant/internal/index"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
)

// Via records how a key was matched
type Via int

const (
	// ViaExact is a literal canonical match
	ViaExact Via = iota
	// ViaRelaxed matched after relaxed-name normalization
	ViaRelaxed
	// ViaPlaceholder matched through a placeholder on either side
	ViaPlaceholder
	// ViaMap is a key nested below a map-typed property
	ViaMap
	// ViaList is an element of a list-typed property
	ViaList
	// ViaObject is a key nested below an object-typed property with no
	// declared children
	ViaObject
)

func (v Via) String() string {
	switch v {
	case ViaExact:
		return "exact"
	case ViaRelaxed:
		return "relaxed"
	case ViaPlaceholder:
		return "placeholder"
	case ViaMap:
		return "map"
	case ViaList:
		return "list"
	default:
		return "object"
	}
}

// Match is one interpretation of a key
type Match struct {
	Entry *index.Entry
	Via   Via
	// Kind is the value kind expected at the matched key. For keys bound
	// through a map or list it is the element kind.
	Kind metadata.ValueKind
}

// Resolver resolves keys against one index
type Resolver struct {
	idx *index.Index
}

// New creates a resolver for idx
func New(idx *index.Index) *Resolver {
	if idx == nil {
		idx = index.Empty()
	}
	return &Resolver{idx: idx}
}

// Resolve returns every definition key can match, best interpretation first.
// An empty result means the key has no interpretation; that is not an error.
func (r *Resolver) Resolve(key string) []Match {
	name, err := metadata.ParseName(key)
	if err != nil || name.IsEmpty() {
		return nil
	}
	return r.ResolveName(name)
}

// ResolveName is Resolve for an already parsed name
func (r *Resolver) ResolveName(name metadata.Name) []Match {
	if !name.HasPlaceholder() {
		if e, ok := r.idx.LookupName(name); ok {
			return []Match{{Entry: e, Via: ViaExact, Kind: e.Kind}}
		}
		if relaxed := r.idx.LookupRelaxed(name); len(relaxed) > 0 {
			matches := make([]Match, len(relaxed))
			for i, e := range relaxed {
				matches[i] = Match{Entry: e, Via: ViaRelaxed, Kind: e.Kind}
			}
			return matches
		}
	}

	if expanded := r.idx.Match(name); len(expanded) > 0 {
		matches := make([]Match, len(expanded))
		for i, e := range expanded {
			matches[i] = Match{Entry: e, Via: ViaPlaceholder, Kind: e.Kind}
		}
		return matches
	}

	if m, ok := r.bind(name); ok {
		return []Match{m}
	}
	return nil
}

// bind matches keys nested below a container property: any key below a map,
// an index below a list, and anything below an object that declares no
// children of its own.
func (r *Resolver) bind(name metadata.Name) (Match, bool) {
	parent, ok := r.nearestParent(name)
	if !ok {
		return Match{}, false
	}
	depth := parent.Name.Len()
	next := name.Segments()[depth]
	nested := name.Len()-depth > 1

	switch parent.Kind.Kind {
	case metadata.KindMap:
		// Map keys may themselves contain dots, e.g. logging.level.org.example
		kind := parent.Kind.ElemKind()
		if nested && kind.IsContainer() {
			kind = metadata.ValueKind{Kind: metadata.KindOpaque}
		}
		return Match{Entry: parent, Via: ViaMap, Kind: kind}, true
	case metadata.KindList:
		if next.Kind != metadata.SegmentIndex && next.Kind != metadata.SegmentAnyIndex {
			return Match{}, false
		}
		kind := parent.Kind.ElemKind()
		if nested {
			kind = metadata.ValueKind{Kind: metadata.KindOpaque}
		}
		return Match{Entry: parent, Via: ViaList, Kind: kind}, true
	case metadata.KindObject:
		if len(r.idx.PrefixSearch(parent.Key+".", 1)) > 0 {
			return Match{}, false
		}
		return Match{Entry: parent, Via: ViaObject, Kind: metadata.ValueKind{Kind: metadata.KindOpaque}}, true
	default:
		return Match{}, false
	}
}

// Best returns the best interpretation of key
func (r *Resolver) Best(key string) (Match, bool) {
	matches := r.Resolve(key)
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}

// NearestParent returns the closest strict ancestor of key that is itself a
// declared property.
func (r *Resolver) NearestParent(key string) (*index.Entry, bool) {
	name, err := metadata.ParseName(key)
	if err != nil {
		return nil, false
	}
	return r.nearestParent(name)
}

func (r *Resolver) nearestParent(name metadata.Name) (*index.Entry, bool) {
	for n := name.Parent(); !n.IsEmpty(); n = n.Parent() {
		if e, ok := r.idx.LookupName(n); ok {
			return e, true
		}
		if relaxed := r.idx.LookupRelaxed(n); len(relaxed) > 0 {
			return relaxed[0], true
		}
	}
	return nil, false
}

// Continues reports whether prefix can still grow into a valid property key:
// some entry starts with it, it matches a placeholder branch, or it already
// lies below a container property.
func (r *Resolver) Continues(prefix string) bool {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return r.idx.Len() > 0
	}
	if len(r.idx.PrefixSearch(prefix, 1)) > 0 {
		return true
	}

	complete, partial := prefix, ""
	if strings.HasSuffix(prefix, ".") {
		complete = strings.TrimSuffix(prefix, ".")
	} else if i := strings.LastIndexAny(prefix, ".["); i >= 0 {
		complete, partial = prefix[:i], strings.TrimPrefix(prefix[i:], ".")
	} else {
		complete, partial = "", prefix
	}

	name, err := metadata.ParseName(complete)
	if err != nil {
		return false
	}
	next := metadata.Segment{Kind: metadata.SegmentAnyKey}
	switch {
	case strings.HasPrefix(partial, "["):
		next = metadata.Segment{Kind: metadata.SegmentAnyIndex}
		if strings.HasSuffix(partial, "]") {
			if n, err := metadata.ParseName("x" + partial); err == nil {
				next = n.Last()
			}
		}
	case partial != "":
		next = metadata.Segment{Kind: metadata.SegmentNamed, Value: metadata.Kebab(partial)}
	}

	candidate := name.Append(next)
	if _, ok := r.bind(candidate); ok {
		return true
	}
	if len(r.idx.Match(candidate)) > 0 {
		return true
	}
	return len(r.idx.Match(candidate.Append(metadata.Segment{Kind: metadata.SegmentAnyKey}))) > 0
}

// Group returns the group declared at key, if any
func (r *Resolver) Group(key string) (*index.Group, bool) {
	name, err := metadata.ParseName(key)
	if err != nil {
		return nil, false
	}
	return r.idx.Group(name.String())
}

// Index returns the index the resolver queries
func (r *Resolver) Index() *index.Index {
	return r.idx
}
