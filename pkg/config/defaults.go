package config

import "time"

// Editor defaults.
const (
	DefaultEditorUnits     = "utf16"
	DefaultGrammar         = ""
	DefaultTrailingNewline = true
)

// Render defaults.
const (
	DefaultRenderBatchSize = 10_000
	DefaultRenderDebounce  = 50 * time.Millisecond
	DefaultCaretDebounce   = 150 * time.Millisecond
)

// Scroll defaults, in list pixels.
const (
	DefaultRowHeight    = 20
	DefaultTopMargin    = 20
	DefaultBottomMargin = 40
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Telemetry defaults.
const (
	DefaultSampleRatio     = 1.0
	DefaultShutdownTimeout = 5 * time.Second
)
