package metadata

import (
	"strings"
)

// Kind is the closed set of semantic value kinds a property can hold.
type Kind int

const (
	KindOpaque Kind = iota
	KindBoolean
	KindNumeric
	KindString
	KindEnum
	KindDuration
	KindSize
	KindList
	KindMap
	KindObject
)

var kindNames = [...]string{
	KindOpaque:   "opaque",
	KindBoolean:  "boolean",
	KindNumeric:  "numeric",
	KindString:   "string",
	KindEnum:     "enum",
	KindDuration: "duration",
	KindSize:     "size",
	KindList:     "list",
	KindMap:      "map",
	KindObject:   "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ValueKind is the resolved value type of a property.
type ValueKind struct {
	Kind Kind

	// Integer and Bits describe numeric kinds. Bits is 0 for unbounded
	// integers (BigInteger) and decimals.
	Integer bool
	Bits    int

	// Values lists enum literals in declaration order
	Values []string

	// Key and Elem describe map keys and list or map elements
	Key  *ValueKind
	Elem *ValueKind
}

// IsContainer reports whether values of this kind are written as nested keys
// rather than a single literal.
func (v ValueKind) IsContainer() bool {
	return v.Kind == KindList || v.Kind == KindMap || v.Kind == KindObject
}

// String returns a short human-readable description such as "list<duration>"
func (v ValueKind) String() string {
	switch v.Kind {
	case KindList:
		return "list<" + v.elem().String() + ">"
	case KindMap:
		key := ValueKind{Kind: KindString}
		if v.Key != nil {
			key = *v.Key
		}
		return "map<" + key.String() + ", " + v.elem().String() + ">"
	case KindNumeric:
		if v.Integer {
			return "integer"
		}
		return "decimal"
	default:
		return v.Kind.String()
	}
}

func (v ValueKind) elem() ValueKind {
	if v.Elem == nil {
		return ValueKind{Kind: KindOpaque}
	}
	return *v.Elem
}

// ElemKind returns the element kind of a list or the value kind of a map
func (v ValueKind) ElemKind() ValueKind {
	return v.elem()
}

// Example returns a formatted sample literal for kinds that are not
// enumerable, or "" when no sample applies.
func (v ValueKind) Example() string {
	switch v.Kind {
	case KindDuration:
		return "10s"
	case KindSize:
		return "10MB"
	default:
		return ""
	}
}

// KindOf maps a Java type string from a descriptor onto a ValueKind. The
// mapping is deterministic; anything unrecognized becomes KindOpaque.
func KindOf(javaType string) ValueKind {
	t := strings.TrimSpace(javaType)
	if t == "" {
		return ValueKind{Kind: KindOpaque}
	}

	if strings.HasSuffix(t, "[]") {
		elem := KindOf(strings.TrimSuffix(t, "[]"))
		if elem.Kind == KindNumeric && t == "byte[]" {
			return ValueKind{Kind: KindString}
		}
		return ValueKind{Kind: KindList, Elem: &elem}
	}

	raw, args := splitGeneric(t)
	raw = strings.TrimPrefix(raw, "? extends ")
	raw = strings.TrimPrefix(raw, "? super ")

	switch raw {
	case "boolean", "java.lang.Boolean":
		return ValueKind{Kind: KindBoolean}
	case "byte", "java.lang.Byte":
		return ValueKind{Kind: KindNumeric, Integer: true, Bits: 8}
	case "short", "java.lang.Short":
		return ValueKind{Kind: KindNumeric, Integer: true, Bits: 16}
	case "int", "java.lang.Integer":
		return ValueKind{Kind: KindNumeric, Integer: true, Bits: 32}
	case "long", "java.lang.Long":
		return ValueKind{Kind: KindNumeric, Integer: true, Bits: 64}
	case "java.math.BigInteger":
		return ValueKind{Kind: KindNumeric, Integer: true}
	case "float", "java.lang.Float", "double", "java.lang.Double", "java.math.BigDecimal", "java.lang.Number":
		return ValueKind{Kind: KindNumeric}
	case "java.lang.String", "java.lang.CharSequence", "char", "java.lang.Character",
		"java.nio.charset.Charset", "java.util.Locale", "java.util.TimeZone", "java.time.ZoneId",
		"java.net.URI", "java.net.URL", "java.net.InetAddress", "java.io.File", "java.nio.file.Path",
		"java.util.regex.Pattern", "java.lang.Class", "org.springframework.core.io.Resource",
		"org.springframework.util.MimeType", "org.springframework.http.MediaType",
		"java.util.UUID", "java.time.Period":
		return ValueKind{Kind: KindString}
	case "java.time.Duration":
		return ValueKind{Kind: KindDuration}
	case "org.springframework.util.unit.DataSize":
		return ValueKind{Kind: KindSize}
	case "java.util.List", "java.util.Set", "java.util.Collection", "java.lang.Iterable",
		"java.util.SortedSet", "java.util.ArrayList", "java.util.LinkedList", "java.util.HashSet",
		"java.util.LinkedHashSet", "java.util.TreeSet", "java.util.Queue", "java.util.Deque":
		elem := ValueKind{Kind: KindOpaque}
		if len(args) == 1 {
			elem = KindOf(args[0])
		}
		return ValueKind{Kind: KindList, Elem: &elem}
	case "java.util.Map", "java.util.HashMap", "java.util.LinkedHashMap", "java.util.TreeMap",
		"java.util.SortedMap", "java.util.concurrent.ConcurrentHashMap", "java.util.EnumMap":
		key := ValueKind{Kind: KindString}
		elem := ValueKind{Kind: KindOpaque}
		if len(args) == 2 {
			key = KindOf(args[0])
			elem = KindOf(args[1])
		}
		return ValueKind{Kind: KindMap, Key: &key, Elem: &elem}
	case "java.util.Properties":
		key := ValueKind{Kind: KindString}
		elem := ValueKind{Kind: KindString}
		return ValueKind{Kind: KindMap, Key: &key, Elem: &elem}
	case "java.lang.Object":
		return ValueKind{Kind: KindObject}
	}

	if values, ok := knownEnums[raw]; ok {
		return ValueKind{Kind: KindEnum, Values: values}
	}
	// Nested types are sometimes written Outer.Inner instead of Outer$Inner.
	if i := strings.LastIndexByte(raw, '.'); i > 0 {
		if values, ok := knownEnums[raw[:i]+"$"+raw[i+1:]]; ok {
			return ValueKind{Kind: KindEnum, Values: values}
		}
	}

	return ValueKind{Kind: KindOpaque}
}

// splitGeneric splits "java.util.Map<java.lang.String,java.util.List<X>>"
// into the raw type and its top-level type arguments.
func splitGeneric(t string) (string, []string) {
	open := strings.IndexByte(t, '<')
	if open < 0 || !strings.HasSuffix(t, ">") {
		return t, nil
	}
	raw := strings.TrimSpace(t[:open])
	inner := t[open+1 : len(t)-1]

	var args []string
	depth, start := 0, 0
	for i, r := range inner {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	args = append(args, strings.TrimSpace(inner[start:]))
	return raw, args
}

// ShortType renders a Java type without package qualifiers, e.g.
// "Map<String, LogLevel>".
func ShortType(javaType string) string {
	raw, args := splitGeneric(strings.TrimSpace(javaType))
	if i := strings.LastIndexAny(raw, ".$"); i >= 0 {
		raw = raw[i+1:]
	}
	if len(args) == 0 {
		return raw
	}
	short := make([]string, len(args))
	for i, a := range args {
		short[i] = ShortType(a)
	}
	return raw + "<" + strings.Join(short, ", ") + ">"
}

// knownEnums holds the literals of enum types commonly referenced by Spring
// Boot descriptors. Keys use '$' for nested types.
var knownEnums = map[string][]string{
	"org.springframework.boot.logging.LogLevel":                      {"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", "OFF"},
	"org.springframework.boot.web.server.Shutdown":                   {"GRACEFUL", "IMMEDIATE"},
	"org.springframework.boot.WebApplicationType":                    {"NONE", "SERVLET", "REACTIVE"},
	"org.springframework.boot.Banner$Mode":                           {"OFF", "CONSOLE", "LOG"},
	"org.springframework.boot.sql.init.DatabaseInitializationMode":   {"ALWAYS", "EMBEDDED", "NEVER"},
	"org.springframework.boot.web.server.Ssl$ClientAuth":             {"NONE", "WANT", "NEED"},
	"org.springframework.boot.cloud.CloudPlatform":                   {"NONE", "CLOUD_FOUNDRY", "HEROKU", "SAP", "NOMAD", "KUBERNETES", "AZURE_APP_SERVICE"},
	"org.springframework.boot.autoconfigure.web.ServerProperties$ForwardHeadersStrategy": {"NATIVE", "FRAMEWORK", "NONE"},
	"org.springframework.boot.autoconfigure.data.redis.RedisProperties$ClientType":       {"LETTUCE", "JEDIS"},
	"org.springframework.boot.autoconfigure.jdbc.DataSourceInitializationMode":           {"ALWAYS", "EMBEDDED", "NEVER"},
	"org.springframework.boot.actuate.endpoint.Show":                                    {"NEVER", "WHEN_AUTHORIZED", "ALWAYS"},
	"org.springframework.boot.actuate.health.ShowDetails":                               {"NEVER", "WHEN_AUTHORIZED", "ALWAYS"},
	"org.springframework.orm.jpa.vendor.Database": {
		"DEFAULT", "DB2", "DERBY", "H2", "HANA", "HSQL", "INFORMIX", "MYSQL", "ORACLE", "POSTGRESQL", "SQL_SERVER", "SYBASE",
	},
	"org.springframework.transaction.annotation.Isolation": {
		"DEFAULT", "READ_UNCOMMITTED", "READ_COMMITTED", "REPEATABLE_READ", "SERIALIZABLE",
	},
	"java.util.concurrent.TimeUnit": {
		"NANOSECONDS", "MICROSECONDS", "MILLISECONDS", "SECONDS", "MINUTES", "HOURS", "DAYS",
	},
	"java.time.temporal.ChronoUnit": {
		"NANOS", "MICROS", "MILLIS", "SECONDS", "MINUTES", "HOURS", "HALF_DAYS", "DAYS",
		"WEEKS", "MONTHS", "YEARS", "DECADES", "CENTURIES", "MILLENNIA", "ERAS", "FOREVER",
	},
	"java.math.RoundingMode": {"UP", "DOWN", "CEILING", "FLOOR", "HALF_UP", "HALF_DOWN", "HALF_EVEN", "UNNECESSARY"},
}
