package validate

import (
	"testing"

	"github.com/mattmok/idea-spring-boot-assistant/internal/configfile"
	"github.com/mattmok/idea-spring-boot-assistant/internal/index"
	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bootDescriptor = `{
  "groups": [{"name": "server", "type": "org.springframework.boot.autoconfigure.web.ServerProperties"}],
  "properties": [
    {"name": "server.port", "type": "java.lang.Integer"},
    {
      "name": "server.ssl.enabled",
      "type": "java.lang.Boolean",
      "deprecation": {"replacement": "server.ssl.enabled-protocols"}
    },
    {"name": "server.ssl.enabled-protocols", "type": "java.lang.String[]"},
    {"name": "server.shutdown", "type": "org.springframework.boot.web.server.Shutdown"},
    {"name": "server.servlet.session.timeout", "type": "java.time.Duration"},
    {"name": "spring.servlet.multipart.max-file-size", "type": "org.springframework.util.unit.DataSize"},
    {"name": "logging.level", "type": "java.util.Map<java.lang.String,org.springframework.boot.logging.LogLevel>"},
    {"name": "spring.profiles.active", "type": "java.util.List<java.lang.String>"},
    {"name": "legacy.mode", "type": "java.lang.String", "deprecation": {"reason": "No longer used."}},
    {"name": "legacy.removed", "type": "java.lang.String", "deprecation": {"level": "error", "replacement": "app.name"}}
  ]
}`

func catalog(t *testing.T, doc string, origin metadata.Origin) *metadata.Catalog {
	t.Helper()
	c, err := metadata.NewParser(nil).Parse([]byte(doc), origin)
	require.NoError(t, err)
	return c
}

func bootIndex(t *testing.T) *index.Index {
	return index.Build(catalog(t, bootDescriptor, metadata.Origin{ID: "spring-boot", Kind: metadata.OriginLibrary}))
}

func validateProperties(t *testing.T, idx *index.Index, content string) []Diagnostic {
	t.Helper()
	return Validate(idx, configfile.Parse("file:///application.properties", content, configfile.SyntaxProperties))
}

func TestValidate_InvalidValue(t *testing.T) {
	diags := validateProperties(t, bootIndex(t), "server.port=notanumber")
	require.Len(t, diags, 1)

	d := diags[0]
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, CodeValue, d.Code)
	assert.Equal(t, configfile.Range{
		Start: configfile.Position{Line: 0, Character: 12},
		End:   configfile.Position{Line: 0, Character: 22},
	}, d.Range)
}

func TestValidate_UnknownProperty(t *testing.T) {
	diags := validateProperties(t, bootIndex(t), "server.bogus=1")
	require.Len(t, diags, 1)

	d := diags[0]
	assert.Equal(t, SeverityWarning, d.Severity)
	assert.Equal(t, CodeUnknown, d.Code)
	assert.Contains(t, d.Message, "unrecognized property")
	assert.Equal(t, 0, d.Range.Start.Character)
	assert.Equal(t, 12, d.Range.End.Character)
}

func TestValidate_UnknownPropertySuggestsClosestKey(t *testing.T) {
	diags := validateProperties(t, bootIndex(t), "server.prot=8080")
	require.Len(t, diags, 1)
	assert.Equal(t, "server.port", diags[0].Replacement)
	assert.Contains(t, diags[0].Message, "server.port")
}

func TestValidate_Deprecated(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		severity Severity
		contains string
	}{
		{"with replacement", "server.ssl.enabled=true", SeverityWarning, "server.ssl.enabled-protocols"},
		{"reason only", "legacy.mode=x", SeverityInformation, "No longer used."},
		{"error level", "legacy.removed=x", SeverityError, "no longer supported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := validateProperties(t, bootIndex(t), tt.content)
			require.Len(t, diags, 1)
			assert.Equal(t, CodeDeprecated, diags[0].Code)
			assert.Equal(t, tt.severity, diags[0].Severity)
			assert.Contains(t, diags[0].Message, tt.contains)
		})
	}
}

func TestValidate_DeprecatedReplacementQuickFix(t *testing.T) {
	diags := validateProperties(t, bootIndex(t), "server.ssl.enabled=true")
	require.Len(t, diags, 1)
	assert.Equal(t, "server.ssl.enabled-protocols", diags[0].Replacement)
}

func TestValidate_ValidValues(t *testing.T) {
	content := `server.port=8080
server.ssl.enabled-protocols=TLSv1.2,TLSv1.3
server.shutdown=graceful
server.servlet.session.timeout=30m
spring.servlet.multipart.max-file-size=10MB
logging.level.org.example=debug
spring.profiles.active=dev,local
server.port=${PORT:8080}
`
	diags := validateProperties(t, bootIndex(t), content)
	for _, d := range diags {
		assert.NotEqual(t, CodeValue, d.Code, d.Message)
		assert.NotEqual(t, CodeUnknown, d.Code, d.Message)
	}
	// the second server.port is the only finding
	require.Len(t, diags, 1)
	assert.Equal(t, CodeDuplicate, diags[0].Code)
	assert.Equal(t, 7, diags[0].Range.Start.Line)
}

func TestValidate_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"enum", "server.shutdown=sometimes"},
		{"duration", "server.servlet.session.timeout=10 minutes"},
		{"size", "spring.servlet.multipart.max-file-size=10XB"},
		{"map element", "logging.level.org.example=LOUD"},
		{"integer overflow", "server.port=99999999999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := validateProperties(t, bootIndex(t), tt.content)
			require.Len(t, diags, 1)
			assert.Equal(t, CodeValue, diags[0].Code)
			assert.Equal(t, SeverityError, diags[0].Severity)
		})
	}
}

func TestValidate_YAML(t *testing.T) {
	content := "server:\n  port: notanumber\n  bogus: 1\n  ssl:\n    enabled-protocols:\n      - TLSv1.2\n"
	file := configfile.Parse("file:///application.yml", content, configfile.SyntaxYAML)
	diags := Validate(bootIndex(t), file)
	require.Len(t, diags, 2)

	assert.Equal(t, CodeValue, diags[0].Code)
	assert.Equal(t, configfile.Range{
		Start: configfile.Position{Line: 1, Character: 8},
		End:   configfile.Position{Line: 1, Character: 18},
	}, diags[0].Range)

	assert.Equal(t, CodeUnknown, diags[1].Code)
	assert.Equal(t, 2, diags[1].Range.Start.Line)
}

func TestValidate_EmptyMappingIsNotUnknown(t *testing.T) {
	file := configfile.Parse("file:///application.yml", "server:\n", configfile.SyntaxYAML)
	assert.Empty(t, Validate(bootIndex(t), file))
}

func TestValidate_SyntaxError(t *testing.T) {
	file := configfile.Parse("file:///application.yml", "server:\n  port: [1, 2\n", configfile.SyntaxYAML)
	diags := Validate(bootIndex(t), file)
	require.NotEmpty(t, diags)
	assert.Equal(t, CodeSyntax, diags[0].Code)
	assert.Equal(t, SeverityError, diags[0].Severity)
}

func TestValidate_MultipleOrigins(t *testing.T) {
	doc := `{"properties":[{"name":"app.timeout","type":"java.time.Duration"}]}`
	idx := index.Build(
		catalog(t, doc, metadata.Origin{ID: "project", Kind: metadata.OriginProject, Priority: 0}),
		catalog(t, doc, metadata.Origin{ID: "libA", Kind: metadata.OriginLibrary, Priority: 1}),
		catalog(t, doc, metadata.Origin{ID: "libB", Kind: metadata.OriginLibrary, Priority: 2}),
	)

	entry, ok := idx.Lookup("app.timeout")
	require.True(t, ok)
	assert.Equal(t, "project", entry.Definition.Origin.ID)

	diags := validateProperties(t, idx, "app.timeout=5s")
	require.Len(t, diags, 1)
	d := diags[0]
	assert.Equal(t, CodeShadowed, d.Code)
	assert.Equal(t, SeverityHint, d.Severity)
	for _, id := range []string{"project", "libA", "libB"} {
		assert.Contains(t, d.Message, id)
	}
	require.Len(t, d.Origins, 3)
	assert.Equal(t, "libB", d.Origins[2].ID)
}

func TestValidate_ConflictingOrigins(t *testing.T) {
	idx := index.Build(
		catalog(t, `{"properties":[{"name":"app.size","type":"java.lang.Integer"}]}`,
			metadata.Origin{ID: "project", Kind: metadata.OriginProject}),
		catalog(t, `{"properties":[{"name":"app.size","type":"java.lang.String"}]}`,
			metadata.Origin{ID: "libA", Kind: metadata.OriginLibrary, Priority: 1}),
	)

	diags := validateProperties(t, idx, "app.size=12")
	require.Len(t, diags, 1)
	assert.Equal(t, SeverityInformation, diags[0].Severity)
	assert.Contains(t, diags[0].Message, "project (Integer)")
	assert.Contains(t, diags[0].Message, "libA (String)")
}

func TestValidate_EmptyIndexReportsNothing(t *testing.T) {
	assert.Empty(t, validateProperties(t, index.Empty(), "anything.goes=1"))
	assert.Empty(t, validateProperties(t, nil, "anything.goes=1"))
	assert.Nil(t, Validate(bootIndex(t), nil))
}
