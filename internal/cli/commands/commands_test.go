package commands

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/mattmok/idea-spring-boot-assistant/internal/tooling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bootDescriptor = `{
  "groups": [
    {"name": "server", "type": "org.example.ServerProperties", "sourceType": "org.example.ServerProperties"}
  ],
  "properties": [
    {
      "name": "server.port",
      "type": "java.lang.Integer",
      "description": "Server HTTP port.",
      "sourceType": "org.example.ServerProperties",
      "defaultValue": 8080
    },
    {
      "name": "server.ssl.enabled",
      "type": "java.lang.Boolean",
      "deprecation": {"reason": "Use protocols instead.", "replacement": "server.ssl.enabled-protocols"}
    },
    {
      "name": "server.ssl.enabled-protocols",
      "type": "java.lang.String[]"
    }
  ]
}`

// project is a Maven project directory with a library holding a descriptor
type project struct {
	root string
	lib  string
}

func newProject(t *testing.T) *project {
	t.Helper()
	root := t.TempDir()
	lib := filepath.Join(t.TempDir(), "boot")

	write(t, filepath.Join(root, "pom.xml"), "<project/>")
	write(t, filepath.Join(lib, "META-INF", "spring-configuration-metadata.json"), bootDescriptor)

	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(root))
	t.Cleanup(func() { os.Chdir(oldWd) })

	return &project{root: root, lib: lib}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// run executes the root command with the project's library and returns
// stdout, stderr and the error
func (p *project) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--no-color", "--log-level", "error", "--dependency", p.lib}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestIndexCommandSummary(t *testing.T) {
	p := newProject(t)

	stdout, stderr, err := p.run(t, "index", "--json")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Indexing 2 dependencies")

	var summary indexSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 2, summary.Dependencies)
	assert.Equal(t, 3, summary.Properties)
	assert.Equal(t, 1, summary.Deprecated)
	assert.NotEmpty(t, summary.BuildID)
	assert.Len(t, summary.Fingerprint, 16)
	require.Len(t, summary.Origins, 1)
	assert.Equal(t, "boot", summary.Origins[0].ID)
	assert.Equal(t, "library", summary.Origins[0].Kind)
	assert.Equal(t, 3, summary.Origins[0].Properties)
}

func TestIndexCommandTable(t *testing.T) {
	p := newProject(t)

	stdout, _, err := p.run(t, "index")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Property index")
	assert.Contains(t, stdout, "Properties:")
	assert.Contains(t, stdout, "spring-configuration-metadata.json")
}

func TestIndexCommandWithoutMetadata(t *testing.T) {
	newProject(t)

	var stdout bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--no-color", "--log-level", "error", "index"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "No configuration metadata found")
}

func TestIndexCommandPrefix(t *testing.T) {
	p := newProject(t)

	stdout, _, err := p.run(t, "index", "--prefix", "server.ssl")
	require.NoError(t, err)
	assert.Contains(t, stdout, "server.ssl.enabled (deprecated)")
	assert.Contains(t, stdout, "server.ssl.enabled-protocols")
	assert.NotContains(t, stdout, "server.port")
}

func TestIndexCommandDeprecatedJSON(t *testing.T) {
	p := newProject(t)

	stdout, _, err := p.run(t, "index", "--deprecated", "--json")
	require.NoError(t, err)

	var props []propertyInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &props))
	require.Len(t, props, 1)
	assert.Equal(t, "server.ssl.enabled", props[0].Key)
	assert.Equal(t, "server.ssl.enabled-protocols", props[0].Replacement)
}

func TestDescribeCommand(t *testing.T) {
	p := newProject(t)

	stdout, _, err := p.run(t, "describe", "server.port")
	require.NoError(t, err)
	assert.Contains(t, stdout, "java.lang.Integer")
	assert.Contains(t, stdout, "8080")
	assert.Contains(t, stdout, "Server HTTP port.")
	assert.Contains(t, stdout, "org.example.ServerProperties")
	assert.NotContains(t, stdout, "Matched")
}

func TestDescribeCommandRelaxed(t *testing.T) {
	p := newProject(t)

	stdout, _, err := p.run(t, "describe", "server.ssl.enabledprotocols")
	require.NoError(t, err)
	assert.Contains(t, stdout, "server.ssl.enabled-protocols")
	assert.Contains(t, stdout, "server.ssl.enabledprotocols via relaxed")
}

func TestDescribeCommandCamelCase(t *testing.T) {
	p := newProject(t)

	// camelCase segments normalize to the canonical kebab-case key
	stdout, _, err := p.run(t, "describe", "server.ssl.enabledProtocols")
	require.NoError(t, err)
	assert.Contains(t, stdout, "server.ssl.enabled-protocols")
	assert.Contains(t, stdout, "java.lang.String[]")
	assert.NotContains(t, stdout, "Matched")
}

func TestDescribeCommandUnknown(t *testing.T) {
	p := newProject(t)

	_, stderr, err := p.run(t, "describe", "server.prot")
	require.ErrorIs(t, err, errUnknownProperty)
	assert.Contains(t, stderr, "Did you mean: server.port")
}

func TestCompleteCommand(t *testing.T) {
	p := newProject(t)
	file := filepath.Join(p.root, "src", "main", "resources", "application.properties")
	write(t, file, "server.p")

	stdout, _, err := p.run(t, "complete", "--json", file, "1:9")
	require.NoError(t, err)

	var items []completionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &items))
	require.NotEmpty(t, items)
	assert.Equal(t, "server.port", items[0].Label)
	assert.Equal(t, "property", items[0].Kind)
}

func TestCompleteCommandStdin(t *testing.T) {
	p := newProject(t)

	var stdout bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("server:\n  ssl:\n    en"))
	cmd.SetArgs([]string{"--no-color", "--log-level", "error", "--dependency", p.lib, "complete", "--stdin", "application.yml", "3:7"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, stdout.String(), "enabled")
	assert.Contains(t, stdout.String(), "(deprecated)")
}

func TestCompleteCommandBadPosition(t *testing.T) {
	p := newProject(t)

	_, _, err := p.run(t, "complete", "application.properties", "nine")
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	p := newProject(t)
	write(t, filepath.Join(p.root, "src", "main", "resources", "application.properties"), "server.port=abc\nserver.ssl.enabled=true\n")
	// build output is never searched
	write(t, filepath.Join(p.root, "src", "build", "application.properties"), "server.port=abc\n")

	stdout, _, err := p.run(t, "validate")
	require.ErrorIs(t, err, errValidationFailed)

	assert.Contains(t, stdout, filepath.Join("src", "main", "resources", "application.properties")+":1:13: error:")
	assert.Contains(t, stdout, "[invalid-value]")
	assert.Contains(t, stdout, "[deprecated-property]")
	assert.Contains(t, stdout, "1 file checked: 1 error, 1 warning")
}

func TestValidateCommandClean(t *testing.T) {
	p := newProject(t)
	file := filepath.Join(p.root, "application.yml")
	write(t, file, "server:\n  port: 8080\n")

	stdout, _, err := p.run(t, "validate", file)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ 1 file checked: 0 errors, 0 warnings")
}

func TestValidateCommandStrictJSON(t *testing.T) {
	p := newProject(t)
	file := filepath.Join(p.root, "application.properties")
	write(t, file, "server.ssl.enabled=true\n")

	stdout, _, err := p.run(t, "validate", "--json", file)
	require.NoError(t, err, "warnings alone pass without --strict")

	var report validationReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Len(t, report.Files, 1)
	require.Len(t, report.Files[0].Diagnostics, 1)
	d := report.Files[0].Diagnostics[0]
	assert.Equal(t, "warning", d.Severity)
	assert.Equal(t, "deprecated-property", d.Code)
	assert.Equal(t, "server.ssl.enabled-protocols", d.Replacement)

	_, _, err = p.run(t, "validate", "--strict", file)
	assert.True(t, errors.Is(err, errValidationFailed))
}

func TestValidateCommandNoFiles(t *testing.T) {
	p := newProject(t)

	_, stderr, err := p.run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, stderr, "No configuration files found.")
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in      string
		want    tooling.Position
		wantErr bool
	}{
		{"1:1", tooling.Position{Line: 0, Character: 0}, false},
		{"12:7", tooling.Position{Line: 11, Character: 6}, false},
		{"0:1", tooling.Position{}, true},
		{"1:0", tooling.Position{}, true},
		{"3", tooling.Position{}, true},
		{"a:b", tooling.Position{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePosition(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecuteReportsConfigErrors(t *testing.T) {
	p := newProject(t)
	write(t, filepath.Join(p.root, "spring-assistant.yml"), "log:\n  level: loud\n")

	var stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--no-color", "index"})

	err := execute(cmd)
	var cfgErr *configLoadError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, stderr.String(), "CONFIGURATION ERROR")
	assert.Contains(t, stderr.String(), "invalid configuration")
	assert.Contains(t, stderr.String(), "spring-assistant --help")
	assert.NotContains(t, stderr.String(), "Error: invalid configuration")
}

func TestExecuteUnknownPropertyReportedOnce(t *testing.T) {
	p := newProject(t)

	var stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--no-color", "--log-level", "error", "--dependency", p.lib, "describe", "server.prot"})

	require.ErrorIs(t, execute(cmd), errUnknownProperty)
	assert.Contains(t, stderr.String(), "Did you mean: server.port")
	assert.NotContains(t, stderr.String(), "Error: unknown property")
}

func TestExecuteReportsCommandErrors(t *testing.T) {
	p := newProject(t)

	var stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--no-color", "--dependency", p.lib, "validate", filepath.Join(p.root, "missing")})

	require.Error(t, execute(cmd))
	assert.Contains(t, stderr.String(), "Error: ")
}
