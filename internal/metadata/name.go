package metadata

import (
	"fmt"
	"strings"
	"unicode"
)

// SegmentKind classifies one element of a dotted property name.
type SegmentKind int

const (
	// SegmentNamed is a plain dotted element such as "server" or "key-store".
	SegmentNamed SegmentKind = iota
	// SegmentIndex is a numeric bracket element such as "[0]".
	SegmentIndex
	// SegmentMapKey is a literal bracket element such as "[org.example]".
	SegmentMapKey
	// SegmentAnyKey is the map-key placeholder, written "*" or "[*]".
	SegmentAnyKey
	// SegmentAnyIndex is the list-index placeholder, written "[#]".
	SegmentAnyIndex
)

// Segment is a single element of a Name
type Segment struct {
	Kind  SegmentKind
	Value string
}

// IsPlaceholder reports whether the segment stands for any key or index
func (s Segment) IsPlaceholder() bool {
	return s.Kind == SegmentAnyKey || s.Kind == SegmentAnyIndex
}

// String returns the trie form of the segment: bracketed for everything but
// named segments.
func (s Segment) String() string {
	switch s.Kind {
	case SegmentNamed:
		return s.Value
	case SegmentAnyKey:
		return "[*]"
	case SegmentAnyIndex:
		return "[#]"
	default:
		return "[" + s.Value + "]"
	}
}

// uniform is the relaxed comparison form: lowercase with dashes and
// underscores removed, so key-store, keyStore and key_store compare equal.
func (s Segment) uniform() string {
	if s.Kind != SegmentNamed && s.Kind != SegmentMapKey {
		return s.String()
	}
	var b strings.Builder
	for _, r := range s.Value {
		if r == '-' || r == '_' {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Matches compares two segments treating placeholders on either side as
// wildcards. An any-key placeholder never matches a numeric index.
func (s Segment) Matches(o Segment) bool {
	switch {
	case s.Kind == SegmentAnyKey:
		return o.Kind == SegmentNamed || o.Kind == SegmentMapKey || o.Kind == SegmentAnyKey
	case s.Kind == SegmentAnyIndex:
		return o.Kind == SegmentIndex || o.Kind == SegmentAnyIndex
	case o.Kind == SegmentAnyKey || o.Kind == SegmentAnyIndex:
		return o.Matches(s)
	case s.Kind == SegmentIndex || o.Kind == SegmentIndex:
		return s.Kind == o.Kind && s.Value == o.Value
	default:
		return s.uniform() == o.uniform()
	}
}

// Name is a parsed configuration property name. The zero value is the root.
type Name struct {
	segments []Segment
}

// ParseName parses a dotted property name in relaxed form. Named segments are
// normalized to lowercase kebab-case; bracket contents are kept verbatim.
func ParseName(s string) (Name, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Name{}, nil
	}

	var segments []Segment
	i := 0
	for i < len(s) {
		switch s[i] {
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return Name{}, fmt.Errorf("unclosed bracket in %q", s)
			}
			segments = append(segments, bracketSegment(s[i+1:i+end]))
			i += end + 1
			if i < len(s) && s[i] != '.' && s[i] != '[' {
				return Name{}, fmt.Errorf("unexpected %q after bracket in %q", s[i], s)
			}
			if i < len(s) && s[i] == '.' {
				i++
				if i == len(s) {
					return Name{}, fmt.Errorf("trailing dot in %q", s)
				}
			}
		case '.':
			return Name{}, fmt.Errorf("empty element in %q", s)
		default:
			end := i
			for end < len(s) && s[end] != '.' && s[end] != '[' {
				end++
			}
			text := s[i:end]
			if text == "*" {
				segments = append(segments, Segment{Kind: SegmentAnyKey})
			} else {
				segments = append(segments, Segment{Kind: SegmentNamed, Value: Kebab(text)})
			}
			i = end
			if i < len(s) && s[i] == '.' {
				i++
				if i == len(s) {
					return Name{}, fmt.Errorf("trailing dot in %q", s)
				}
			}
		}
	}

	return Name{segments: segments}, nil
}

// MustParseName is like ParseName but panics on error. Intended for tests and
// static tables.
func MustParseName(s string) Name {
	n, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return n
}

func bracketSegment(content string) Segment {
	content = strings.Trim(content, `"'`)
	switch {
	case content == "*":
		return Segment{Kind: SegmentAnyKey}
	case content == "#":
		return Segment{Kind: SegmentAnyIndex}
	case content != "" && isDigits(content):
		return Segment{Kind: SegmentIndex, Value: content}
	default:
		return Segment{Kind: SegmentMapKey, Value: content}
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Kebab converts camelCase and snake_case text to lowercase kebab-case.
// Bracketed regions are copied unchanged.
func Kebab(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	depth := 0
	var prev rune
	for _, r := range s {
		switch {
		case r == '[':
			depth++
			b.WriteRune(r)
		case r == ']':
			if depth > 0 {
				depth--
			}
			b.WriteRune(r)
		case depth > 0:
			b.WriteRune(r)
		case r == '_':
			b.WriteByte('-')
		case unicode.IsUpper(r):
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}

// Segments returns the elements of the name
func (n Name) Segments() []Segment {
	return n.segments
}

// Len returns the number of segments
func (n Name) Len() int {
	return len(n.segments)
}

// IsEmpty reports whether the name has no segments
func (n Name) IsEmpty() bool {
	return len(n.segments) == 0
}

// Last returns the final segment; the zero Segment for the root.
func (n Name) Last() Segment {
	if len(n.segments) == 0 {
		return Segment{}
	}
	return n.segments[len(n.segments)-1]
}

// Parent returns the name without its final segment
func (n Name) Parent() Name {
	if len(n.segments) == 0 {
		return n
	}
	return Name{segments: n.segments[:len(n.segments)-1]}
}

// Prefix returns the first count segments
func (n Name) Prefix(count int) Name {
	if count >= len(n.segments) {
		return n
	}
	return Name{segments: n.segments[:count]}
}

// Append returns a new name with seg appended
func (n Name) Append(seg Segment) Name {
	segments := make([]Segment, len(n.segments), len(n.segments)+1)
	copy(segments, n.segments)
	return Name{segments: append(segments, seg)}
}

// HasPlaceholder reports whether any segment is a placeholder
func (n Name) HasPlaceholder() bool {
	for _, s := range n.segments {
		if s.IsPlaceholder() {
			return true
		}
	}
	return false
}

// HasUppercase reports whether any named segment carried uppercase letters
// before normalization. Descriptor names are expected in canonical form.
func HasUppercase(raw string) bool {
	depth := 0
	for _, r := range raw {
		switch {
		case r == '[':
			depth++
		case r == ']':
			depth--
		case depth == 0 && unicode.IsUpper(r):
			return true
		}
	}
	return false
}

// String returns the canonical form, e.g. "server.ssl.key-store" or
// "spring.datasource.urls[0]".
func (n Name) String() string {
	var b strings.Builder
	for i, s := range n.segments {
		if i > 0 && s.Kind == SegmentNamed {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// Uniform returns the relaxed comparison form of the full name
func (n Name) Uniform() string {
	parts := make([]string, len(n.segments))
	for i, s := range n.segments {
		parts[i] = s.uniform()
	}
	return strings.Join(parts, ".")
}

// Equal reports structural equality
func (n Name) Equal(o Name) bool {
	if len(n.segments) != len(o.segments) {
		return false
	}
	for i := range n.segments {
		if n.segments[i] != o.segments[i] {
			return false
		}
	}
	return true
}

// Matches reports whether the names are equal under relaxed comparison,
// with placeholders on either side standing for any key or index.
func (n Name) Matches(o Name) bool {
	if len(n.segments) != len(o.segments) {
		return false
	}
	for i := range n.segments {
		if !n.segments[i].Matches(o.segments[i]) {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether n is a strict prefix of o under relaxed
// comparison.
func (n Name) IsAncestorOf(o Name) bool {
	if len(n.segments) >= len(o.segments) {
		return false
	}
	for i := range n.segments {
		if !n.segments[i].Matches(o.segments[i]) {
			return false
		}
	}
	return true
}

// TrimPrefix returns the segments of n after ancestor, rendered canonically.
// It returns n unchanged when ancestor is not a prefix.
func (n Name) TrimPrefix(ancestor Name) Name {
	if !ancestor.IsAncestorOf(n) {
		return n
	}
	return Name{segments: n.segments[len(ancestor.segments):]}
}
