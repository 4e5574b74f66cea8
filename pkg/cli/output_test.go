package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

type candidateRow struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type candidateTable []candidateRow

func (c candidateTable) Header() []string { return []string{"NAME", "SCORE"} }

func (c candidateTable) Rows() [][]string {
	rows := make([][]string, len(c))
	for i, r := range c {
		rows[i] = []string{r.Name, strconv.FormatFloat(r.Score, 'f', -1, 64)}
	}
	return rows
}

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer

	data := map[string]any{
		"name":  "test",
		"value": 123,
	}

	err := Output(data, OutputOptions{
		Format: FormatJSON,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}

	if result["name"] != "test" {
		t.Errorf("name = %v, want %q", result["name"], "test")
	}
}

func TestOutput_YAML(t *testing.T) {
	var buf bytes.Buffer

	data := map[string]any{
		"name":  "test",
		"value": 123,
	}

	err := Output(data, OutputOptions{
		Format: FormatYAML,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "name: test") {
		t.Errorf("Output should contain 'name: test', got: %s", output)
	}
}

func TestOutput_DefaultFormat(t *testing.T) {
	var buf bytes.Buffer

	// Empty format should default to YAML
	err := Output(map[string]string{"key": "value"}, OutputOptions{Writer: &buf})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	if !strings.Contains(buf.String(), "key: value") {
		t.Errorf("Default format should be YAML, got: %s", buf.String())
	}
}

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer

	data := candidateTable{{"school_uniform", 0.95}, {"long_hair", 0.5}}
	if err := Output(data, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"NAME", "SCORE", "school_uniform", "0.95", "long_hair"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "school_uniform") > strings.Index(out, "long_hair") {
		t.Errorf("rows out of order:\n%s", out)
	}
}

func TestOutput_TableUnsupported(t *testing.T) {
	var buf bytes.Buffer
	err := Output(map[string]int{"a": 1}, OutputOptions{Format: FormatTable, Writer: &buf})
	if err == nil {
		t.Error("Output should fail for a result without rows")
	}
}

func TestOutput_Query(t *testing.T) {
	data := candidateTable{{"school_uniform", 0.95}, {"long_hair", 0.5}}

	var buf bytes.Buffer
	err := Output(data, OutputOptions{
		Format: FormatJSON,
		Query:  `[.[] | select(.score > 0.9) | .name]`,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}
	var names []string
	if err := json.Unmarshal(buf.Bytes(), &names); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if len(names) != 1 || names[0] != "school_uniform" {
		t.Errorf("names = %q", names)
	}

	// Several results become a list.
	buf.Reset()
	err = Output(data, OutputOptions{Format: FormatJSON, Query: `.[].name`, Writer: &buf})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}
	names = nil
	if err := json.Unmarshal(buf.Bytes(), &names); err != nil || len(names) != 2 {
		t.Errorf("names = %q, err = %v", names, err)
	}
}

func TestOutput_QueryErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := Output([]int{1}, OutputOptions{Query: ".[", Writer: &buf}); err == nil {
		t.Error("expected parse error")
	}
	if err := Output([]int{1}, OutputOptions{Query: ".foo", Writer: &buf}); err == nil {
		t.Error("expected runtime error indexing an array")
	}
}

func TestOutput_Raw(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{"bytes", []byte("raw binary data"), "raw binary data"},
		{"string", "raw string data", "raw string data"},
		{"lines", []string{"a", "b"}, "a\nb\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Output(tt.data, OutputOptions{Format: FormatRaw, Writer: &buf}); err != nil {
				t.Fatalf("Output error: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("Output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestOutput_Raw_Other(t *testing.T) {
	var buf bytes.Buffer

	// Non-string/bytes should fall back to YAML
	err := Output(map[string]int{"count": 42}, OutputOptions{Format: FormatRaw, Writer: &buf})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	if !strings.Contains(buf.String(), "count: 42") {
		t.Errorf("Output should contain YAML, got: %s", buf.String())
	}
}

func TestOutput_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer

	err := Output("data", OutputOptions{
		Format: "invalid",
		Writer: &buf,
	})
	if err == nil {
		t.Error("Output should fail for unsupported format")
	}
}

func TestOutput_ToFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "output.json")

	err := Output(map[string]string{"key": "value"}, OutputOptions{
		Format: FormatJSON,
		File:   filePath,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}

	var result map[string]string
	if err := json.Unmarshal(content, &result); err != nil {
		t.Fatalf("Invalid JSON in file: %v", err)
	}

	if result["key"] != "value" {
		t.Errorf("key = %q, want %q", result["key"], "value")
	}
}

func TestOutput_JSONIndent(t *testing.T) {
	var buf bytes.Buffer

	err := Output(map[string]string{"key": "value"}, OutputOptions{
		Format: FormatJSON,
		Writer: &buf,
		Indent: "    ", // 4 spaces
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	if !strings.Contains(buf.String(), "    ") {
		t.Errorf("Output should be indented, got: %s", buf.String())
	}
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{
		"":      FormatYAML,
		"yaml":  FormatYAML,
		"json":  FormatJSON,
		"table": FormatTable,
		"raw":   FormatRaw,
	} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("ParseOutputFormat(xml) should fail")
	}
}
