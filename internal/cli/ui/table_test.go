package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"Key", "Type", "Default"}, &TableOptions{NoColor: true})

	table.AddRow("server.port", "Integer", "8080")
	table.AddRow("server.address", "InetAddress", "")
	table.AddRow("spring.main.banner-mode", "Mode", "console")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("Expected header, separator and 3 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "Key") || !strings.Contains(lines[0], "Default") {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "─") {
		t.Errorf("Expected separator, got %q", lines[1])
	}

	// columns line up on the widest key
	typeCol := strings.Index(lines[2], "Integer")
	if typeCol != len("spring.main.banner-mode")+2 {
		t.Errorf("Expected type column at %d, got %d", len("spring.main.banner-mode")+2, typeCol)
	}
	if strings.Index(lines[4], "Mode") != typeCol {
		t.Errorf("Columns are not aligned:\n%s", buf.String())
	}
	if table.Len() != 3 {
		t.Errorf("Expected 3 rows, got %d", table.Len())
	}
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, nil, nil).Render()
	if buf.Len() != 0 {
		t.Errorf("Expected no output without headers, got %q", buf.String())
	}
}

func TestTableTruncation(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"Key", "Description"}, &TableOptions{NoColor: true, MaxCellWidth: 10})
	table.AddRow("a", "Whether to enable the banner on startup.")
	table.Render()

	if !strings.Contains(buf.String(), "Whether t…") {
		t.Errorf("Expected a truncated cell, got:\n%s", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 0, "short"},
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"truncated", 5, "trun…"},
		{"größe-wert", 6, "größe…"},
		{"ab", 1, "…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewKeyValueTable(&buf, true)
	table.AddRow("Type", "java.lang.Integer")
	table.AddRow("Default", "")
	table.AddRow("Declared by", "spring-boot-autoconfigure.jar")
	table.Render()

	output := buf.String()
	if strings.Contains(output, "Default") {
		t.Errorf("Expected empty values skipped, got:\n%s", output)
	}
	if !strings.Contains(output, "Type:        java.lang.Integer") {
		t.Errorf("Expected aligned values, got:\n%s", output)
	}
	if !strings.Contains(output, "Declared by: spring-boot-autoconfigure.jar") {
		t.Errorf("Missing row, got:\n%s", output)
	}
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer
	Header(&buf, "Index", true)

	if buf.String() != "Index\n─────\n" {
		t.Errorf("Unexpected header %q", buf.String())
	}
}
