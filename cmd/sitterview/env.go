package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/Sumatoshi-tech/sitterview/pkg/config"
	"github.com/Sumatoshi-tech/sitterview/pkg/observability"
	"github.com/Sumatoshi-tech/sitterview/pkg/outline"
	"github.com/Sumatoshi-tech/sitterview/pkg/playground"
	"github.com/Sumatoshi-tech/sitterview/pkg/version"
)

// env is the configuration and telemetry shared by a command run.
type env struct {
	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
	session   *observability.SessionMetrics
	red       *observability.REDMetrics
}

// setup loads the config and starts telemetry for mode. When a metrics
// address is configured the Prometheus endpoint is served until ctx is done.
func setup(ctx context.Context, flags *globalFlags, mode observability.AppMode) (*env, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.Prometheus = cfg.Telemetry.MetricsAddr != ""
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.ShutdownTimeoutSec = int(cfg.Telemetry.ShutdownTimeout / time.Second)
	obsCfg.LogJSON = cfg.Logging.Format == "json"
	obsCfg.LogLevel = cfg.LogLevel()

	switch {
	case flags.quiet:
		obsCfg.LogLevel = slog.LevelError
	case flags.verbose:
		obsCfg.LogLevel = slog.LevelDebug
	}

	// The explorer owns the terminal.
	if mode == observability.ModeTUI {
		obsCfg.LogOutput = io.Discard
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	e := &env{cfg: cfg, providers: providers, logger: providers.Logger}

	e.session, err = observability.NewSessionMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, e.shutdown())
	}

	e.red, err = observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, e.shutdown())
	}

	if providers.MetricsHandler != nil {
		err = e.serveMetrics(ctx, cfg.Telemetry.MetricsAddr)
		if err != nil {
			return nil, errors.Join(err, e.shutdown())
		}
	}

	return e, nil
}

func (e *env) serveMetrics(ctx context.Context, addr string) error {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}

	go func() {
		serveErr := observability.ServeMetrics(ctx, ln, e.providers.MetricsHandler, e.providers.Tracer, e.logger)
		if serveErr != nil {
			e.logger.Warn("metrics server stopped", "error", serveErr)
		}
	}()

	return nil
}

func (e *env) shutdown() error {
	return e.providers.Shutdown(context.Background())
}

// close flushes telemetry, logging rather than returning a failure.
func (e *env) close() {
	err := e.shutdown()
	if err != nil {
		e.logger.Warn("observability shutdown failed", "error", err)
	}
}

// playgroundOptions maps the config onto controller options.
func (e *env) playgroundOptions() playground.Options {
	opts := playground.DefaultOptions()
	opts.BatchSize = e.cfg.Render.BatchSize
	opts.RenderDebounce = e.cfg.Render.Debounce
	opts.CaretDebounce = e.cfg.Render.CaretDebounce
	opts.Margins = outline.Margins{Top: e.cfg.Scroll.TopMargin, Bottom: e.cfg.Scroll.BottomMargin}
	opts.InputUnits = e.cfg.InputUnits()
	opts.TrailingNewline = e.cfg.Editor.TrailingNewline
	opts.Logger = e.logger
	opts.Metrics = e.session
	opts.Tracer = e.providers.Tracer

	return opts
}

// runController starts c's loop in the background and returns a function
// that stops it and waits for it to exit.
func runController(ctx context.Context, c *playground.Controller, logger *slog.Logger) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		err := c.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("controller stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
		c.Close()
	}
}
