package resolve

import (
	"testing"

	"github.com/mattmok/idea-spring-boot-assistant/internal/index"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const descriptor = `{
  "groups": [
    {"name": "server", "type": "org.springframework.boot.autoconfigure.web.ServerProperties"},
    {"name": "server.ssl", "type": "org.springframework.boot.web.server.Ssl"}
  ],
  "properties": [
    {"name": "server.port", "type": "java.lang.Integer"},
    {"name": "server.ssl.key-store", "type": "java.lang.String"},
    {"name": "server.ssl.enabled", "type": "java.lang.Boolean"},
    {"name": "logging.level", "type": "java.util.Map<java.lang.String,org.springframework.boot.logging.LogLevel>"},
    {"name": "spring.profiles.active", "type": "java.util.List<java.lang.String>"},
    {"name": "app.clients[*].url", "type": "java.lang.String"},
    {"name": "app.extra", "type": "java.lang.Object"}
  ]
}`

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	c, err := metadata.NewParser(nil).Parse([]byte(descriptor), metadata.Origin{ID: "spring-boot"})
	require.NoError(t, err)
	return New(index.Build(c))
}

func TestResolve(t *testing.T) {
	r := newResolver(t)

	tests := []struct {
		name  string
		key   string
		entry string
		via   Via
		kind  metadata.Kind
	}{
		{name: "exact", key: "server.port", entry: "server.port", via: ViaExact, kind: metadata.KindNumeric},
		{name: "camel case normalizes to exact", key: "server.ssl.keyStore", entry: "server.ssl.key-store", via: ViaExact, kind: metadata.KindString},
		{name: "relaxed", key: "server.ssl.keystore", entry: "server.ssl.key-store", via: ViaRelaxed, kind: metadata.KindString},
		{name: "upper snake normalizes to exact", key: "SERVER.SSL.KEY_STORE", entry: "server.ssl.key-store", via: ViaExact, kind: metadata.KindString},
		{name: "placeholder", key: "app.clients.primary.url", entry: "app.clients[*].url", via: ViaPlaceholder, kind: metadata.KindString},
		{name: "bracket map key", key: "app.clients[primary].url", entry: "app.clients[*].url", via: ViaPlaceholder, kind: metadata.KindString},
		{name: "map", key: "logging.level.org.example", entry: "logging.level", via: ViaMap, kind: metadata.KindEnum},
		{name: "list index", key: "spring.profiles.active[0]", entry: "spring.profiles.active", via: ViaList, kind: metadata.KindString},
		{name: "object", key: "app.extra.anything", entry: "app.extra", via: ViaObject, kind: metadata.KindOpaque},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := r.Best(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.entry, m.Entry.Key)
			assert.Equal(t, tt.via, m.Via)
			assert.Equal(t, tt.kind, m.Kind.Kind)
		})
	}
}

func TestResolve_MapElementKind(t *testing.T) {
	r := newResolver(t)

	m, ok := r.Best("logging.level.org.example")
	require.True(t, ok)
	assert.Equal(t, []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", "OFF"}, m.Kind.Values)
}

func TestResolve_NoInterpretation(t *testing.T) {
	r := newResolver(t)

	for _, key := range []string{"server.bogus", "spring.profiles.active.foo", "app.clients[0].url", "", "server..port"} {
		t.Run(key, func(t *testing.T) {
			assert.Empty(t, r.Resolve(key))
			_, ok := r.Best(key)
			assert.False(t, ok)
		})
	}
}

func TestResolve_TrailingWildcard(t *testing.T) {
	r := newResolver(t)

	matches := r.Resolve("server.ssl.*")
	require.Len(t, matches, 2)
	assert.Equal(t, "server.ssl.enabled", matches[0].Entry.Key)
	assert.Equal(t, "server.ssl.key-store", matches[1].Entry.Key)
	for _, m := range matches {
		assert.Equal(t, ViaPlaceholder, m.Via)
	}
}

func TestNearestParent(t *testing.T) {
	r := newResolver(t)

	e, ok := r.NearestParent("logging.level.org.example")
	require.True(t, ok)
	assert.Equal(t, "logging.level", e.Key)

	_, ok = r.NearestParent("server.port")
	assert.False(t, ok, "groups are not properties")
}

func TestContinues(t *testing.T) {
	r := newResolver(t)

	tests := []struct {
		prefix string
		want   bool
	}{
		{prefix: "server.ss", want: true},
		{prefix: "server.", want: true},
		{prefix: "logging.level.org.", want: true},
		{prefix: "app.clients.prim", want: true},
		{prefix: "spring.profiles.active[", want: true},
		{prefix: "server.sslx", want: false},
		{prefix: "nothing.x", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Continues(tt.prefix))
		})
	}
}

func TestGroup(t *testing.T) {
	r := newResolver(t)

	g, ok := r.Group("server.ssl")
	require.True(t, ok)
	assert.Equal(t, "org.springframework.boot.web.server.Ssl", g.Definition.Type)

	_, ok = r.Group("logging")
	assert.False(t, ok)
}

func TestNew_NilIndex(t *testing.T) {
	r := New(nil)
	assert.Empty(t, r.Resolve("server.port"))
	assert.False(t, r.Continues("server"))
	assert.Equal(t, 0, r.Index().Len())
}
