package replay_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sitterview/internal/replay"
	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/outline"
	"github.com/Sumatoshi-tech/sitterview/pkg/playground"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax/syntaxtest"
)

const sampleScript = `
grammar: lines
units: utf16
text: "let x = 1"
steps:
  - name: open call
    edit:
      from: {row: 0, column: 9}
      text: "\nfoo(bar"
  - caret:
      anchor: {row: 0, column: 4}
  - name: close call
    edit:
      from: {row: 1, column: 7}
      text: ")"
  - click: 0
  - edit:
      from: {row: 9, column: 0}
      text: "x"
  - grammar: cobol
  - logging: true
`

func TestDecodeScript(t *testing.T) {
	t.Parallel()

	script, err := replay.DecodeScript([]byte(sampleScript))
	require.NoError(t, err)

	assert.Equal(t, "lines", script.Grammar)
	assert.Equal(t, "let x = 1", script.Text)
	require.Len(t, script.Steps, 7)

	first := script.Steps[0]
	assert.Equal(t, "edit", first.Op())
	assert.Equal(t, "open call", first.Label())
	assert.Equal(t, edit.Position{Row: 0, Column: 9}, first.Edit.From)
	assert.Nil(t, first.Edit.To)
	assert.Equal(t, "\nfoo(bar", first.Edit.Text)

	assert.Equal(t, "caret", script.Steps[1].Label())
	assert.Equal(t, 0, *script.Steps[3].Click)
	assert.Equal(t, "grammar", script.Steps[5].Op())
	assert.True(t, *script.Steps[6].Logging)

	units, err := script.InputUnits()
	require.NoError(t, err)
	assert.Equal(t, edit.UTF16, units)
}

func TestDecodeScript_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
	}{
		{name: "empty", script: ""},
		{name: "missing text", script: "grammar: lines\n"},
		{name: "unknown units", script: "text: x\nunits: furlongs\n"},
		{name: "two actions", script: "text: x\nsteps:\n  - click: 1\n    logging: true\n"},
		{name: "no action", script: "text: x\nsteps:\n  - name: nothing\n"},
		{name: "negative row", script: "text: x\nsteps:\n  - caret: {anchor: {row: -1, column: 0}}\n"},
		{name: "unknown field", script: "text: x\nspeed: 3\n"},
		{name: "malformed yaml", script: "text: [x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := replay.DecodeScript([]byte(tt.script))
			require.ErrorIs(t, err, replay.ErrInvalidScript)
		})
	}
}

func TestLoadScript(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleScript), 0o600))

	script, err := replay.LoadScript(path)
	require.NoError(t, err)
	assert.Len(t, script.Steps, 7)

	_, err = replay.LoadScript(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func runSample(t *testing.T) *replay.Report {
	t.Helper()

	script, err := replay.DecodeScript([]byte(sampleScript))
	require.NoError(t, err)

	opts := playground.DefaultOptions()
	opts.RenderDebounce = 0
	opts.CaretDebounce = 0
	opts.Logger = slog.New(slog.DiscardHandler)

	c := playground.New(syntaxtest.NewParser(edit.UTF16), syntaxtest.NewLoader(), outline.NewBuffer(400, 20), opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	done := make(chan error, 1)

	go func() { done <- c.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-done
		c.Close()
	})

	report, err := replay.NewRunner(c, edit.UTF16, opts.Logger).Run(ctx, script)
	require.NoError(t, err)

	return report
}

func TestRunner_Run(t *testing.T) {
	t.Parallel()

	report := runSample(t)
	require.Len(t, report.Frames, 8)

	open := report.Frames[0]
	assert.Equal(t, "open", open.Op)
	assert.Equal(t, "lines", open.Grammar)
	assert.Empty(t, open.Err)

	opened := report.Frames[1]
	assert.Equal(t, "open call", opened.Label)
	assert.True(t, opened.Incremental)
	assert.Greater(t, opened.Generation, open.Generation)
	assert.Empty(t, opened.Err)

	caret := report.Frames[2]
	assert.Equal(t, "identifier [0, 4]-[0, 5]", caret.Highlighted)

	closed := report.Frames[3]
	assert.Equal(t, opened.Rows, closed.Rows+1, "the missing ) row is gone")

	click := report.Frames[4]
	assert.Equal(t, "program [0, 0]-[2, 0]", click.Highlighted)

	invalid := report.Frames[5]
	assert.NotEmpty(t, invalid.Err)
	assert.Equal(t, closed.Generation, invalid.Generation)

	grammar := report.Frames[6]
	assert.Contains(t, grammar.Err, "cobol")
	assert.Equal(t, "lines", grammar.Grammar)

	assert.True(t, report.Final.Logging)
	assert.Equal(t, "let x = 1\nfoo(bar)", report.Final.Text)
}

func TestWriteTableAndChart(t *testing.T) {
	t.Parallel()

	report := runSample(t)

	var tbl bytes.Buffer
	replay.WriteTable(&tbl, report)

	out := tbl.String()
	assert.Contains(t, out, "open call")
	assert.Contains(t, out, "incremental")
	assert.Contains(t, out, "Total: 8 steps")

	var chart bytes.Buffer
	require.NoError(t, replay.WriteChart(&chart, report))
	assert.Contains(t, chart.String(), "echarts")
	assert.Contains(t, chart.String(), "Parse (ms)")
}
