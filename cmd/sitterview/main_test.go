package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sitterview/internal/replay"
	"github.com/Sumatoshi-tech/sitterview/pkg/textutil"
)

const testConfig = `
editor:
  units: utf16
render:
  debounce: 0s
  caret_debounce: 0s
logging:
  level: error
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// execute runs the CLI with args against a test config and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfg := writeFile(t, t.TempDir(), "sitterview.yaml", testConfig)

	root := newRootCmd()

	var out bytes.Buffer

	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfg}, args...))

	err := root.Execute()

	return out.String(), err
}

func TestCLI_HelpAndSubcommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args    []string
		wantOut string
		wantErr bool
	}{
		{args: []string{"--help"}, wantOut: "Incremental syntax tree outline playground"},
		{args: []string{"parse", "--help"}, wantOut: "print its outline"},
		{args: []string{"replay", "--help"}, wantOut: "Example script"},
		{args: []string{"explore", "--help"}, wantOut: "ctrl+l"},
		{args: []string{"lsp", "--help"}, wantOut: "document symbols"},
		{args: []string{"mcp", "--help"}, wantOut: "sitterview_node_at"},
		{args: []string{"version"}, wantOut: "sitterview "},
		{args: []string{"unknown"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			t.Parallel()

			out, err := execute(t, tt.args...)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestParse_JSON(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "app.js", "let a = 1")

	out, err := execute(t, "parse", "-f", "json", "-s", "ident", path)
	require.NoError(t, err)

	var got parseOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	assert.Equal(t, "javascript", got.Grammar)
	require.Len(t, got.Rows, 5)
	assert.Equal(t, "lexical_declaration", got.Rows[1].Label)
	assert.Equal(t, 3, got.Rows[3].Depth)
	assert.Equal(t, []int{3}, got.Matches)
}

func TestParse_TreeAndTable(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "app.js", "foo(bar)")

	out, err := execute(t, "parse", "--no-color", path)
	require.NoError(t, err)
	assert.Contains(t, out, "program [0, 0]")
	assert.Contains(t, out, "\n    call_expression [0, 0] - [0, 8]\n")
	assert.Contains(t, out, "javascript: 6 rows, 0 problems")

	out, err = execute(t, "parse", "-f", "table", path)
	require.NoError(t, err)
	assert.Contains(t, out, "call_expression")
	assert.Contains(t, out, "Total: ")
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	unknown := writeFile(t, dir, "notes.unknown-extension", "text")
	js := writeFile(t, dir, "app.js", "x")

	_, err := execute(t, "parse", unknown)
	require.ErrorIs(t, err, ErrNoGrammar)

	_, err = execute(t, "parse", "-f", "xml", js)
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = execute(t, "parse", "-l", "cobol", js)
	require.Error(t, err)

	_, err = execute(t, "parse", filepath.Join(dir, "missing.js"))
	require.Error(t, err)
}

func TestResolveGrammar(t *testing.T) {
	t.Parallel()

	got, err := resolveGrammar("python", "main.go", "", "")
	require.NoError(t, err)
	assert.Equal(t, "python", got)

	got, err = resolveGrammar("", "main.go", "", "json")
	require.NoError(t, err)
	assert.Equal(t, "go", got)

	got, err = resolveGrammar("", "-", "", "json")
	require.NoError(t, err)
	assert.Equal(t, "json", got)

	_, err = resolveGrammar("", "-", "", "")
	require.ErrorIs(t, err, ErrNoGrammar)
}

func TestReadInput_Stdin(t *testing.T) {
	t.Parallel()

	text, label, err := readInput("-", strings.NewReader("let a"))
	require.NoError(t, err)
	assert.Equal(t, "let a", text)
	assert.Equal(t, "stdin", label)

	_, _, err = readInput("-", strings.NewReader("a\x00b"))
	require.ErrorIs(t, err, textutil.ErrBinary)
}

func TestLanguages(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "languages")
	require.NoError(t, err)
	assert.Contains(t, out, "javascript")
	assert.Contains(t, out, "Total: ")

	path := writeFile(t, t.TempDir(), "lib.py", "x = 1")

	out, err = execute(t, "languages", path)
	require.NoError(t, err)
	assert.Contains(t, out, "python")
}

func TestReplay(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeFile(t, dir, "session.yaml", `
grammar: javascript
text: "let a = 1"
steps:
  - name: terminate
    edit:
      from: {row: 0, column: 9}
      text: ";"
  - caret:
      anchor: {row: 0, column: 4}
  - click: 0
`)
	chart := filepath.Join(dir, "chart.html")

	out, err := execute(t, "replay", "-f", "json", "--chart", chart, script)
	require.NoError(t, err)

	var report replay.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	require.Len(t, report.Frames, 4)
	assert.Equal(t, "terminate", report.Frames[1].Label)
	assert.True(t, report.Frames[1].Incremental)
	assert.Equal(t, "identifier [0, 4]-[0, 5]", report.Frames[2].Highlighted)
	assert.Equal(t, "let a = 1;", report.Final.Text)

	html, err := os.ReadFile(chart)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Parse (ms)")
}
