package index

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
)

// Fingerprint hashes the structural content of the index: entries, their
// definitions and origins, groups and hints. Two indexes built from the same
// catalogs have the same fingerprint regardless of build ID.
func (idx *Index) Fingerprint() uint64 {
	h := xxhash.New()
	w := func(parts ...string) {
		for _, p := range parts {
			_, _ = h.WriteString(p)
			_, _ = h.WriteString("\x00")
		}
	}

	for _, e := range idx.entries {
		w("entry", e.Key, e.Kind.String())
		for _, d := range e.Definitions {
			w(d.Type, d.Description, d.Default, strconv.FormatBool(d.HasDefault), d.Group, d.SourceType)
			writeOrigin(w, d.Origin)
			if d.Deprecation != nil {
				w(d.Deprecation.Level.String(), d.Deprecation.Reason, d.Deprecation.Replacement)
			}
		}
		for _, v := range e.ValueHints {
			w("value", v.Value, v.Description)
		}
		for _, v := range e.KeyHints {
			w("key", v.Value, v.Description)
		}
	}
	for _, g := range idx.Groups() {
		w("group", g.Key, g.Definition.Type, g.Definition.SourceType)
		for _, o := range g.Origins {
			writeOrigin(w, o)
		}
	}
	return h.Sum64()
}

func writeOrigin(w func(...string), o metadata.Origin) {
	w(o.ID, o.Kind.String(), o.Location, strconv.Itoa(o.Priority))
}

// Equal reports structural equality with other
func (idx *Index) Equal(other *Index) bool {
	if idx == nil || other == nil {
		return idx == other
	}
	return idx.Len() == other.Len() && idx.Fingerprint() == other.Fingerprint()
}
