package index

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serverDescriptor = `{
  "groups": [
    {"name": "server", "type": "org.springframework.boot.autoconfigure.web.ServerProperties"},
    {"name": "server.ssl", "type": "org.springframework.boot.web.server.Ssl"},
    {"name": "server.servlet", "type": "org.springframework.boot.autoconfigure.web.ServerProperties$Servlet"}
  ],
  "properties": [
    {"name": "server.port", "type": "java.lang.Integer", "description": "Server HTTP port.", "defaultValue": 8080},
    {"name": "server.address", "type": "java.net.InetAddress"},
    {
      "name": "server.ssl.enabled",
      "type": "java.lang.Boolean",
      "deprecation": {"replacement": "server.ssl.enabled-protocols"}
    },
    {"name": "server.ssl.enabled-protocols", "type": "java.lang.String[]"},
    {"name": "server.servlet.context-path", "type": "java.lang.String"},
    {"name": "server.shutdown", "type": "org.springframework.boot.web.server.Shutdown"},
    {"name": "logging.level", "type": "java.util.Map<java.lang.String,org.springframework.boot.logging.LogLevel>"},
    {"name": "spring.rsocket.server.port", "type": "java.lang.Integer"},
    {"name": "app.clients[*].url", "type": "java.lang.String"},
    {"name": "spring.jpa.database-platform", "type": "java.lang.Object"}
  ],
  "hints": [
    {"name": "logging.level.keys", "values": [{"value": "root", "description": "Root logger."}]},
    {"name": "logging.level.values", "values": [{"value": "info"}]},
    {"name": "server.ssl.enabled-protocols", "values": [{"value": "TLSv1.2"}, {"value": "TLSv1.3"}]},
    {"name": "spring.jpa.database-platform", "providers": [{"name": "handle-as", "parameters": {"target": "java.lang.String"}}]}
  ]
}`

func parseCatalog(t *testing.T, doc string, origin metadata.Origin) *metadata.Catalog {
	t.Helper()
	c, err := metadata.NewParser(nil).Parse([]byte(doc), origin)
	require.NoError(t, err)
	return c
}

func buildServerIndex(t *testing.T) *Index {
	t.Helper()
	return Build(parseCatalog(t, serverDescriptor, metadata.Origin{ID: "spring-boot", Kind: metadata.OriginLibrary, Priority: 0}))
}

func keys(entries []*Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}

func TestBuild_Lookup(t *testing.T) {
	idx := buildServerIndex(t)

	e, ok := idx.Lookup("server.port")
	require.True(t, ok)
	assert.Equal(t, "java.lang.Integer", e.Definition.Type)
	assert.Equal(t, "8080", e.Definition.Default)

	_, ok = idx.Lookup("server.bogus")
	assert.False(t, ok)

	_, ok = idx.Lookup("server")
	assert.False(t, ok, "groups are not property entries")

	relaxed := idx.LookupRelaxed(metadata.MustParseName("server.servlet.contextPath"))
	require.Len(t, relaxed, 1)
	assert.Equal(t, "server.servlet.context-path", relaxed[0].Key)
}

func TestBuild_PriorityAndOrigins(t *testing.T) {
	project := parseCatalog(t, `{"properties":[{"name":"app.timeout","type":"java.time.Duration","description":"project"}]}`,
		metadata.Origin{ID: "project", Kind: metadata.OriginProject, Priority: 0})
	libA := parseCatalog(t, `{"properties":[{"name":"app.timeout","type":"java.lang.Integer","description":"libA"}]}`,
		metadata.Origin{ID: "libA", Kind: metadata.OriginLibrary, Priority: 1})
	libB := parseCatalog(t, `{"properties":[{"name":"app.timeout","type":"java.time.Duration","description":"libB"}]}`,
		metadata.Origin{ID: "libB", Kind: metadata.OriginLibrary, Priority: 2})

	idx := Build(project, libA, libB)
	e, ok := idx.Lookup("app.timeout")
	require.True(t, ok)
	assert.Equal(t, "project", e.Definition.Description)
	assert.Equal(t, metadata.KindDuration, e.Kind.Kind)

	ids := make([]string, 0, 3)
	for _, o := range e.Origins() {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"project", "libA", "libB"}, ids)
	assert.True(t, e.Conflicting())
	assert.Equal(t, 1, idx.Len())
}

func TestPrefixSearch_Example(t *testing.T) {
	idx := Build(parseCatalog(t, `{"properties":[
		{"name":"server.ssl.enabled","type":"java.lang.Boolean","deprecation":{"replacement":"server.ssl.enabled-protocols"}},
		{"name":"server.port","type":"java.lang.Integer"}
	]}`, metadata.Origin{ID: "lib"}))

	assert.Equal(t, []string{"server.port", "server.ssl.enabled"}, keys(idx.PrefixSearch("server.", 10)))
}

func TestPrefixSearch_DirectChildrenFirst(t *testing.T) {
	idx := buildServerIndex(t)

	results := keys(idx.PrefixSearch("server.", 0))
	assert.Equal(t, []string{
		"server.address",
		"server.port",
		"server.shutdown",
		"server.servlet.context-path",
		"server.ssl.enabled",
		"server.ssl.enabled-protocols",
	}, results)

	assert.Equal(t, []string{"server.ssl.enabled", "server.ssl.enabled-protocols"},
		keys(idx.PrefixSearch("server.ssl", 0)))
	assert.Equal(t, []string{"server.servlet.context-path", "server.shutdown", "server.ssl.enabled"},
		keys(idx.PrefixSearch("server.s", 3)))
	assert.Empty(t, idx.PrefixSearch("nothing.here", 10))
}

func TestPrefixSearch_LiteralPrefixAndRankOrder(t *testing.T) {
	idx := buildServerIndex(t)

	for _, prefix := range []string{"s", "se", "server", "server.", "server.ss", "spring.", "l", "app.clients"} {
		t.Run(prefix, func(t *testing.T) {
			results := idx.PrefixSearch(prefix, 0)
			exact := strings.TrimSuffix(prefix, ".")
			lastRank := -1
			for _, e := range results {
				assert.True(t, strings.HasPrefix(e.Key, prefix), "%s does not start with %s", e.Key, prefix)
				rank := 2
				if e.Key == exact {
					rank = 0
				} else if e.Name.Parent().String() == exact {
					rank = 1
				}
				assert.GreaterOrEqual(t, rank, lastRank)
				lastRank = rank
			}
		})
	}
}

func TestPrefixSearch_NormalizesCamelCase(t *testing.T) {
	idx := buildServerIndex(t)
	assert.Equal(t, []string{"server.servlet.context-path"}, keys(idx.PrefixSearch("server.servlet.contextP", 0)))
}

func TestFuzzySearch(t *testing.T) {
	idx := buildServerIndex(t)

	results := idx.FuzzySearch("srvport", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "server.port", results[0].Key)
	assert.Contains(t, keys(results), "spring.rsocket.server.port")

	ssl := keys(idx.FuzzySearch("ssl", 0))
	require.NotEmpty(t, ssl)
	assert.Equal(t, "server.ssl.enabled", ssl[0])

	assert.Empty(t, idx.FuzzySearch("zzz", 5))
	assert.Empty(t, idx.FuzzySearch("", 5))
}

func TestFuzzySearch_RankingIsDeterministic(t *testing.T) {
	idx := buildServerIndex(t)

	matches := idx.FuzzyMatches("port", 0)
	require.Len(t, matches, 2)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, "server.port", matches[0].Entry.Key)
}

func TestFuzzyScore(t *testing.T) {
	_, ok := fuzzyScore([]rune("abc"), []rune("acb"))
	assert.False(t, ok)

	consecutive, ok := fuzzyScore([]rune("port"), []rune("server.port"))
	require.True(t, ok)
	scattered, ok := fuzzyScore([]rune("port"), []rune("server.pool-rate"))
	require.True(t, ok)
	assert.Greater(t, consecutive, scattered)
}

func TestMatch_Placeholders(t *testing.T) {
	idx := buildServerIndex(t)

	assert.Equal(t, []string{"app.clients[*].url"}, keys(idx.Match(metadata.MustParseName("app.clients.primary.url"))))
	assert.Empty(t, idx.Match(metadata.MustParseName("app.clients[0].url")))

	branch := keys(idx.Match(metadata.MustParseName("server.ssl.*")))
	assert.Equal(t, []string{"server.ssl.enabled", "server.ssl.enabled-protocols"}, branch)

	mid := keys(idx.Match(metadata.MustParseName("server.*.enabled")))
	assert.Equal(t, []string{"server.ssl.enabled"}, mid)
}

func TestHints(t *testing.T) {
	idx := buildServerIndex(t)

	level, ok := idx.Lookup("logging.level")
	require.True(t, ok)
	assert.Equal(t, []metadata.ValueHint{{Value: "root", Description: "Root logger."}}, level.KeyHints)
	assert.Equal(t, []metadata.ValueHint{{Value: "info"}}, level.ValueHints)
	assert.Equal(t, level.KeyHints, idx.KeyHints("logging.level"))

	protocols, ok := idx.Lookup("server.ssl.enabled-protocols")
	require.True(t, ok)
	assert.Len(t, protocols.ValueHints, 2)

	platform, ok := idx.Lookup("spring.jpa.database-platform")
	require.True(t, ok)
	assert.Equal(t, metadata.KindString, platform.Kind.Kind)
	assert.Equal(t, metadata.KindObject, platform.Definition.Kind.Kind)
}

func TestGroups(t *testing.T) {
	idx := buildServerIndex(t)

	server, ok := idx.Group("server")
	require.True(t, ok)
	assert.Equal(t, []string{"server.address", "server.port", "server.shutdown"}, keys(server.Properties))
	require.Len(t, server.Groups, 2)
	assert.Equal(t, "server.servlet", server.Groups[0].Key)
	assert.Equal(t, "server.ssl", server.Groups[1].Key)

	assert.Equal(t, []string{"servlet", "ssl"}, idx.Children("server"))
	assert.Len(t, idx.Groups(), 3)
}

func TestBuild_Idempotent(t *testing.T) {
	first := buildServerIndex(t)
	second := buildServerIndex(t)

	assert.NotEqual(t, first.BuildID(), second.BuildID())
	assert.Empty(t, cmp.Diff(first.Entries(), second.Entries()))
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())
	assert.True(t, first.Equal(second))

	other := Build(parseCatalog(t, `{"properties":[{"name":"server.port","type":"java.lang.Long"}]}`, metadata.Origin{}))
	assert.False(t, first.Equal(other))
}

func TestEmpty(t *testing.T) {
	idx := Empty()
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.PrefixSearch("", 10))
	assert.Empty(t, idx.FuzzySearch("a", 10))
}

func TestIndex_ConcurrentReads(t *testing.T) {
	idx := buildServerIndex(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = idx.Lookup("server.port")
				_ = idx.PrefixSearch("server.", 5)
				_ = idx.FuzzySearch("srvport", 5)
				_ = idx.Match(metadata.MustParseName("server.*"))
			}
		}()
	}
	wg.Wait()
}
