// Package config loads sitterview settings from .sitterview.yaml and
// SITTERVIEW_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
)

// Sentinel validation errors.
var (
	ErrInvalidBatchSize   = errors.New("render batch size must be positive")
	ErrInvalidDebounce    = errors.New("debounce must not be negative")
	ErrInvalidRowHeight   = errors.New("scroll row height must be positive")
	ErrInvalidMargin      = errors.New("scroll margins must not be negative")
	ErrInvalidLogLevel    = errors.New("unknown log level")
	ErrInvalidLogFormat   = errors.New("unknown log format")
	ErrInvalidSampleRatio = errors.New("trace sample ratio must be within [0, 1]")
)

// EnvPrefix prefixes environment overrides: render.batch_size is read from
// SITTERVIEW_RENDER_BATCH_SIZE.
const EnvPrefix = "SITTERVIEW"

// ConfigName is the base name of the config file searched for when no path
// is given.
const ConfigName = ".sitterview"

// Config holds all sitterview settings.
type Config struct {
	Editor    EditorConfig    `mapstructure:"editor"`
	Render    RenderConfig    `mapstructure:"render"`
	Scroll    ScrollConfig    `mapstructure:"scroll"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// EditorConfig describes the editing surface.
type EditorConfig struct {
	// Units is the unit system of columns the surface reports: utf16,
	// bytes or runes.
	Units   string `mapstructure:"units"`
	Grammar string `mapstructure:"grammar"`
	// TrailingNewline terminates the parse input with a newline.
	TrailingNewline bool `mapstructure:"trailing_newline"`
}

// RenderConfig tunes outline rendering.
type RenderConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	Debounce      time.Duration `mapstructure:"debounce"`
	CaretDebounce time.Duration `mapstructure:"caret_debounce"`
}

// ScrollConfig is the highlight scroll geometry.
type ScrollConfig struct {
	RowHeight    int `mapstructure:"row_height"`
	TopMargin    int `mapstructure:"top_margin"`
	BottomMargin int `mapstructure:"bottom_margin"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds tracing and metrics export settings.
type TelemetryConfig struct {
	OTLPEndpoint    string        `mapstructure:"otlp_endpoint"`
	OTLPHeaders     string        `mapstructure:"otlp_headers"`
	OTLPInsecure    bool          `mapstructure:"otlp_insecure"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	SampleRatio     float64       `mapstructure:"sample_ratio"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// InputUnits returns the parsed editor units.
func (c *Config) InputUnits() edit.Units {
	units, err := edit.ParseUnits(c.Editor.Units)
	if err != nil {
		return edit.UTF16
	}

	return units
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.Logging.Level))
	if err != nil {
		return slog.LevelInfo
	}

	return level
}

// LoadConfig loads configuration from configPath, or from .sitterview.yaml in
// the working or home directory when configPath is empty, then applies
// environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(ConfigName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("editor.units", DefaultEditorUnits)
	viperCfg.SetDefault("editor.grammar", DefaultGrammar)
	viperCfg.SetDefault("editor.trailing_newline", DefaultTrailingNewline)

	viperCfg.SetDefault("render.batch_size", DefaultRenderBatchSize)
	viperCfg.SetDefault("render.debounce", DefaultRenderDebounce)
	viperCfg.SetDefault("render.caret_debounce", DefaultCaretDebounce)

	viperCfg.SetDefault("scroll.row_height", DefaultRowHeight)
	viperCfg.SetDefault("scroll.top_margin", DefaultTopMargin)
	viperCfg.SetDefault("scroll.bottom_margin", DefaultBottomMargin)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_addr", "")
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("telemetry.shutdown_timeout", DefaultShutdownTimeout)
}

func validateConfig(config *Config) error {
	_, err := edit.ParseUnits(config.Editor.Units)
	if err != nil {
		return err
	}

	if config.Render.BatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, config.Render.BatchSize)
	}

	if config.Render.Debounce < 0 || config.Render.CaretDebounce < 0 {
		return fmt.Errorf("%w: %s, %s", ErrInvalidDebounce, config.Render.Debounce, config.Render.CaretDebounce)
	}

	if config.Scroll.RowHeight <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRowHeight, config.Scroll.RowHeight)
	}

	if config.Scroll.TopMargin < 0 || config.Scroll.BottomMargin < 0 {
		return fmt.Errorf("%w: %d, %d", ErrInvalidMargin, config.Scroll.TopMargin, config.Scroll.BottomMargin)
	}

	var level slog.Level

	err = level.UnmarshalText([]byte(config.Logging.Level))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	switch config.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	return nil
}
