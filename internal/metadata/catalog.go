// Package metadata models Spring Boot configuration metadata: relaxed
// property names, the closed set of value kinds, and the catalog parsed from
// one spring-configuration-metadata.json descriptor.
package metadata

// OriginKind distinguishes project-owned descriptors from library ones
type OriginKind int

const (
	OriginProject OriginKind = iota
	OriginLibrary
)

func (k OriginKind) String() string {
	if k == OriginProject {
		return "project"
	}
	return "library"
}

// Origin identifies the module or library that declared a definition
type Origin struct {
	// ID is the dependency identity, e.g. "spring-boot-autoconfigure-3.2.0.jar"
	ID string
	// Kind is project or library
	Kind OriginKind
	// Location is the descriptor location, a path or a jar:file: URL
	Location string
	// Priority orders origins; lower wins
	Priority int
}

// DeprecationLevel is the severity a descriptor assigns to a deprecation
type DeprecationLevel int

const (
	DeprecationNone DeprecationLevel = iota
	DeprecationWarning
	DeprecationError
)

func (l DeprecationLevel) String() string {
	switch l {
	case DeprecationWarning:
		return "warning"
	case DeprecationError:
		return "error"
	default:
		return "none"
	}
}

// Deprecation records why a property is deprecated and what replaces it.
// A parsed Deprecation always carries a Reason or a Replacement.
type Deprecation struct {
	Level       DeprecationLevel
	Reason      string
	Replacement string
	Since       string
}

// PropertyDefinition is one property declared in a descriptor. Immutable
// once parsed.
type PropertyDefinition struct {
	Name        Name
	Key         string
	Type        string
	Kind        ValueKind
	Description string
	Default     string
	HasDefault  bool
	Deprecation *Deprecation
	// Group is the key of the closest enclosing group in the same catalog
	Group      string
	SourceType string
	Origin     Origin
}

// Deprecated reports whether the definition carries a deprecation record
func (p *PropertyDefinition) Deprecated() bool {
	return p.Deprecation != nil && p.Deprecation.Level != DeprecationNone
}

// GroupDefinition is a key prefix bound to a structured configuration type
type GroupDefinition struct {
	Name         Name
	Key          string
	Type         string
	SourceType   string
	SourceMethod string
	Description  string
	Origin       Origin
}

// ValueHint is a suggested value or map key with an optional description
type ValueHint struct {
	Value       string
	Description string
}

// ValueProvider names a descriptor value provider such as "handle-as"
type ValueProvider struct {
	Name       string
	Parameters map[string]string
}

// Hint carries the hints a descriptor attaches to a property name. Keys
// ending in ".keys" describe map keys; ".values" or a bare name describe
// values.
type Hint struct {
	Name      Name
	Key       string
	Values    []ValueHint
	Providers []ValueProvider
	Origin    Origin
}

// Catalog is the parsed content of one descriptor document
type Catalog struct {
	Origin     Origin
	Properties []*PropertyDefinition
	Groups     []*GroupDefinition
	Hints      []*Hint
}

// Len returns the number of properties in the catalog
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Properties)
}
