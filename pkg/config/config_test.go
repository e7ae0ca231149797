package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sitterview/pkg/config"
	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".sitterview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultEditorUnits, cfg.Editor.Units)
	assert.Equal(t, edit.UTF16, cfg.InputUnits())
	assert.True(t, cfg.Editor.TrailingNewline)
	assert.Equal(t, config.DefaultRenderBatchSize, cfg.Render.BatchSize)
	assert.Equal(t, config.DefaultRenderDebounce, cfg.Render.Debounce)
	assert.Equal(t, config.DefaultCaretDebounce, cfg.Render.CaretDebounce)
	assert.Equal(t, config.DefaultRowHeight, cfg.Scroll.RowHeight)
	assert.Equal(t, config.DefaultTopMargin, cfg.Scroll.TopMargin)
	assert.Equal(t, config.DefaultBottomMargin, cfg.Scroll.BottomMargin)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
	assert.InDelta(t, config.DefaultSampleRatio, cfg.Telemetry.SampleRatio, 0.001)
	assert.Empty(t, cfg.Telemetry.MetricsAddr)
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `editor:
  units: bytes
  grammar: javascript
  trailing_newline: false
render:
  batch_size: 500
  debounce: 10ms
  caret_debounce: 0s
scroll:
  row_height: 1
  top_margin: 2
  bottom_margin: 3
logging:
  level: debug
  format: json
telemetry:
  metrics_addr: "127.0.0.1:9464"
  sample_ratio: 0.25
unknown_section:
  unknown_key: value
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, edit.Bytes, cfg.InputUnits())
	assert.Equal(t, "javascript", cfg.Editor.Grammar)
	assert.False(t, cfg.Editor.TrailingNewline)
	assert.Equal(t, 500, cfg.Render.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.Render.Debounce)
	assert.Zero(t, cfg.Render.CaretDebounce)
	assert.Equal(t, config.ScrollConfig{RowHeight: 1, TopMargin: 2, BottomMargin: 3}, cfg.Scroll)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "127.0.0.1:9464", cfg.Telemetry.MetricsAddr)
	assert.InDelta(t, 0.25, cfg.Telemetry.SampleRatio, 0.001)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "render:\n  batch_size: 500\n")

	t.Setenv("SITTERVIEW_RENDER_BATCH_SIZE", "42")
	t.Setenv("SITTERVIEW_EDITOR_GRAMMAR", "go")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.Render.BatchSize)
	assert.Equal(t, "go", cfg.Editor.Grammar)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, "render:\n  batch_size: [oops\n"))
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"units", "editor:\n  units: nibbles\n", edit.ErrUnknownUnits},
		{"batch size", "render:\n  batch_size: 0\n", config.ErrInvalidBatchSize},
		{"debounce", "render:\n  debounce: -1s\n", config.ErrInvalidDebounce},
		{"row height", "scroll:\n  row_height: 0\n", config.ErrInvalidRowHeight},
		{"margin", "scroll:\n  top_margin: -5\n", config.ErrInvalidMargin},
		{"log level", "logging:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"log format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
		{"sample ratio", "telemetry:\n  sample_ratio: 2\n", config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, cfg)
		})
	}
}
