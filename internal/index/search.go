package index

import (
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
)

// PrefixSearch returns entries whose canonical key starts with prefix. When
// the prefix names a node exactly (with or without a trailing dot), the entry
// at that node comes first, then its direct children; everything else
// follows alphabetically. A limit <= 0 returns all matches.
func (idx *Index) PrefixSearch(prefix string, limit int) []*Entry {
	p := metadata.Kebab(strings.TrimSpace(prefix))
	complete, partial := splitPrefix(p)

	parent := idx.root
	for _, seg := range complete {
		child, ok := parent.children[seg]
		if !ok {
			return nil
		}
		parent = child
	}

	var exact *node
	var candidates []*Entry
	for _, seg := range parent.order {
		if !strings.HasPrefix(seg, partial) {
			continue
		}
		child := parent.children[seg]
		if partial != "" && seg == partial {
			exact = child
		}
		candidates = child.collect(candidates)
	}
	if partial == "" {
		exact = parent
	}

	results := candidates[:0]
	for _, e := range candidates {
		if strings.HasPrefix(e.Key, p) {
			results = append(results, e)
		}
	}

	exactKey := strings.TrimSuffix(p, ".")
	rank := func(e *Entry) int {
		switch {
		case exact == nil:
			return 2
		case e.Key == exactKey:
			return 0
		case e.Name.Parent().String() == exactKey:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := rank(results[i]), rank(results[j])
		if ri != rj {
			return ri < rj
		}
		return results[i].Key < results[j].Key
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// splitPrefix splits a typed key into complete trie segments and the
// trailing partial segment text, e.g. "server.ss" -> [server], "ss" and
// "a.b[0" -> [a b], "[0".
func splitPrefix(p string) ([]string, string) {
	var complete []string
	start := 0
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '.':
			if i > start {
				complete = append(complete, p[start:i])
			}
			start = i + 1
		case '[':
			if i > start {
				complete = append(complete, p[start:i])
			}
			end := strings.IndexByte(p[i:], ']')
			if end < 0 {
				return complete, p[i:]
			}
			complete = append(complete, p[i:i+end+1])
			i += end
			start = i + 1
		}
	}
	return complete, p[start:]
}

// Fuzzy scoring weights. A match scores matchScore plus any position bonus;
// gaps between matched characters cost gapOpen once and gapExtend per
// additional skipped character.
const (
	matchScore        = 16
	segmentStartBonus = 12
	wordStartBonus    = 8
	consecutiveBonus  = 6
	gapOpen           = 3
	gapExtend         = 1
	segmentSkipCost   = 2
)

// FuzzyMatch is a fuzzy search hit
type FuzzyMatch struct {
	Entry *Entry
	Score int
}

// FuzzySearch returns entries whose key contains token as a subsequence,
// ranked by match quality. Ties go to the shorter key, then alphabetical.
func (idx *Index) FuzzySearch(token string, limit int) []*Entry {
	matches := idx.FuzzyMatches(token, limit)
	out := make([]*Entry, len(matches))
	for i, m := range matches {
		out[i] = m.Entry
	}
	return out
}

// FuzzyMatches is FuzzySearch with scores
func (idx *Index) FuzzyMatches(token string, limit int) []FuzzyMatch {
	pattern := []rune(strings.ToLower(strings.Join(strings.Fields(token), "")))
	if len(pattern) == 0 {
		return nil
	}

	var candidates *roaring.Bitmap
	seen := make(map[rune]bool, len(pattern))
	for _, r := range pattern {
		if seen[r] {
			continue
		}
		seen[r] = true
		bm, ok := idx.runes[r]
		if !ok {
			return nil
		}
		if candidates == nil {
			candidates = bm.Clone()
		} else {
			candidates = roaring.And(candidates, bm)
		}
		if candidates.IsEmpty() {
			return nil
		}
	}

	var matches []FuzzyMatch
	for _, id := range candidates.ToArray() {
		e := idx.entries[id]
		if score, ok := fuzzyScore(pattern, []rune(e.Key)); ok {
			matches = append(matches, FuzzyMatch{Entry: e, Score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.Entry.Key) != len(b.Entry.Key) {
			return len(a.Entry.Key) < len(b.Entry.Key)
		}
		return a.Entry.Key < b.Entry.Key
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// fuzzyScore aligns pattern against text as a subsequence, Smith-Waterman
// style with affine gaps, and returns the best score. ok is false when
// pattern is not a subsequence of text.
func fuzzyScore(pattern, text []rune) (int, bool) {
	n, m := len(pattern), len(text)
	if n > m {
		return 0, false
	}

	const unset = -1 << 30
	bonus := make([]int, m)
	depth := make([]int, m)
	for j := range text {
		switch {
		case j == 0:
			bonus[j] = segmentStartBonus
		case text[j-1] == '.' || text[j-1] == '[':
			bonus[j] = segmentStartBonus
		case text[j-1] == '-' || text[j-1] == '_':
			bonus[j] = wordStartBonus
		}
		if j > 0 {
			depth[j] = depth[j-1]
			if text[j-1] == '.' {
				depth[j]++
			}
		}
	}

	prev := make([]int, m)
	cur := make([]int, m)
	for j := 0; j < m; j++ {
		prev[j] = unset
		if text[j] == pattern[0] {
			prev[j] = matchScore + bonus[j] - segmentSkipCost*depth[j]
		}
	}

	for i := 1; i < n; i++ {
		carry := unset
		for j := 0; j < m; j++ {
			cur[j] = unset
			// carry holds the best score for pattern[i-1] ending two or more
			// positions before j, already charged for the gap.
			if j >= 2 {
				open := unset
				if prev[j-2] != unset {
					open = prev[j-2] - gapOpen
				}
				if carry != unset {
					carry -= gapExtend
				}
				if open > carry {
					carry = open
				}
			}
			if text[j] != pattern[i] {
				continue
			}
			best := unset
			if j >= 1 && prev[j-1] != unset {
				best = prev[j-1] + consecutiveBonus
			}
			if carry > best {
				best = carry
			}
			if best == unset {
				continue
			}
			cur[j] = best + matchScore + bonus[j]
		}
		prev, cur = cur, prev
	}

	best := unset
	for _, s := range prev {
		if s > best {
			best = s
		}
	}
	if best == unset {
		return 0, false
	}
	return best, true
}
