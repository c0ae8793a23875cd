package configfile

import "fmt"

// Position is a zero-based line and character offset. Characters are counted
// in runes.
type Position struct {
	Line      int // Zero-based line number
	Character int // Zero-based character offset
}

// Before reports whether p comes strictly before o
func (p Position) Before(o Position) bool {
	return p.Line < o.Line || (p.Line == o.Line && p.Character < o.Character)
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Character+1)
}

// Range represents a range in a document
type Range struct {
	Start Position
	End   Position
}

// Contains reports whether pos lies within the range, end inclusive so a
// cursor placed right after a token still counts as inside it.
func (r Range) Contains(pos Position) bool {
	return !pos.Before(r.Start) && !r.End.Before(pos)
}

// IsEmpty reports whether the range spans no characters
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

func lineRange(line, start, end int) Range {
	return Range{Start: Position{Line: line, Character: start}, End: Position{Line: line, Character: end}}
}
