package index

import (
	"sort"

	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
)

// node is a trie node keyed by canonical segment text
type node struct {
	segment  string
	kind     metadata.SegmentKind
	children map[string]*node
	// order keeps child segments sorted for deterministic traversal
	order []string
	entry *Entry
}

func newNode(segment string) *node {
	return &node{segment: segment}
}

func (n *node) insert(e *Entry) {
	cur := n
	for _, seg := range e.Name.Segments() {
		key := seg.String()
		child, ok := cur.children[key]
		if !ok {
			if cur.children == nil {
				cur.children = make(map[string]*node)
			}
			child = newNode(key)
			child.kind = seg.Kind
			cur.children[key] = child
			i := sort.SearchStrings(cur.order, key)
			cur.order = append(cur.order, "")
			copy(cur.order[i+1:], cur.order[i:])
			cur.order[i] = key
		}
		cur = child
	}
	cur.entry = e
}

func (n *node) find(name metadata.Name) *node {
	cur := n
	for _, seg := range name.Segments() {
		child, ok := cur.children[seg.String()]
		if !ok {
			return nil
		}
		cur = child
	}
	return cur
}

// collect appends every entry in the subtree, depth first in segment order
func (n *node) collect(out []*Entry) []*Entry {
	if n.entry != nil {
		out = append(out, n.entry)
	}
	for _, seg := range n.order {
		out = n.children[seg].collect(out)
	}
	return out
}

func (n *node) segmentOf() metadata.Segment {
	switch n.kind {
	case metadata.SegmentNamed:
		return metadata.Segment{Kind: n.kind, Value: n.segment}
	case metadata.SegmentAnyKey, metadata.SegmentAnyIndex:
		return metadata.Segment{Kind: n.kind}
	default:
		return metadata.Segment{Kind: n.kind, Value: n.segment[1 : len(n.segment)-1]}
	}
}

// Match returns entries whose names match pattern, where placeholders on
// either side stand for any key or index. A trailing any-key placeholder in
// the pattern also matches every descendant, so "server.servlet.*" expands
// to the whole branch. Results are sorted by key.
func (idx *Index) Match(pattern metadata.Name) []*Entry {
	segments := pattern.Segments()
	if len(segments) == 0 {
		return nil
	}
	var out []*Entry
	var walk func(n *node, depth int)
	walk = func(n *node, depth int) {
		if depth == len(segments) {
			if n.entry != nil {
				out = append(out, n.entry)
			}
			return
		}
		want := segments[depth]
		last := depth == len(segments)-1
		for _, key := range n.order {
			child := n.children[key]
			if !child.segmentOf().Matches(want) {
				continue
			}
			if last && want.Kind == metadata.SegmentAnyKey {
				out = child.collect(out)
				continue
			}
			walk(child, depth+1)
		}
	}
	walk(idx.root, 0)

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return dedupe(out)
}

func dedupe(entries []*Entry) []*Entry {
	if len(entries) < 2 {
		return entries
	}
	out := entries[:1]
	for _, e := range entries[1:] {
		if e != out[len(out)-1] {
			out = append(out, e)
		}
	}
	return out
}
