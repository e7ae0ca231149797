// Package mcp implements a Model Context Protocol server exposing syntax
// outlines, caret-to-node lookup and edit translation as MCP tools over
// stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/sitterview/pkg/observability"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
	"github.com/Sumatoshi-tech/sitterview/pkg/version"
)

const (
	serverName = "sitterview"

	// outline, node_at, edit, languages.
	toolCount = 4
)

// ServerDeps wires the parser and telemetry into the tools.
type ServerDeps struct {
	// NewParser creates a parser per tool call. Required.
	NewParser func() syntax.Parser

	// Loader resolves grammar names. Required.
	Loader syntax.GrammarLoader

	// Languages is the grammar catalogue reported by sitterview_languages.
	Languages []string

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics records one request per tool call when set.
	Metrics *observability.REDMetrics

	// SessionMetrics records parses made by tool calls.
	SessionMetrics *observability.SessionMetrics

	// Tracer starts one span per tool call when set.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with sitterview tool registrations.
type Server struct {
	inner  *mcpsdk.Server
	deps   ServerDeps
	logger *slog.Logger
	mu     sync.RWMutex
	tools  []string
}

// NewServer registers the outline tools on a new SDK server.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		opts,
	)

	srv := &Server{
		inner:  inner,
		deps:   deps,
		logger: observability.Component(deps.Logger, "mcp"),
		tools:  make([]string, 0, toolCount),
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the registered tool names in sorted order.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport is Run over an arbitrary transport.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	addTool(s, ToolNameOutline, outlineToolDescription, s.handleOutline)
	addTool(s, ToolNameNodeAt, nodeAtToolDescription, s.handleNodeAt)
	addTool(s, ToolNameEdit, editToolDescription, s.handleEdit)
	addTool(s, ToolNameLanguages, languagesToolDescription, s.handleLanguages)
}

func addTool[Input any](s *Server, name, description string, handler mcpsdk.ToolHandlerFor[Input, ToolOutput]) {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        name,
		Description: description,
	}, instrument(s.deps.Metrics, s.deps.Tracer, name, handler))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

const (
	opPrefix = "mcp."

	// Appended to tool results as "trace_id=<id>" when the span is sampled.
	traceIDMetaKey = "trace_id"
)

// instrument records a RED request and a server span around each call. Either
// may be nil.
func instrument[Input any](
	metrics *observability.REDMetrics,
	tracer trace.Tracer,
	toolName string,
	handler mcpsdk.ToolHandlerFor[Input, ToolOutput],
) mcpsdk.ToolHandlerFor[Input, ToolOutput] {
	if metrics == nil && tracer == nil {
		return handler
	}

	op := opPrefix + toolName

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		var end func(failed bool)

		if metrics != nil {
			end = metrics.Start(ctx, op)
		}

		var span trace.Span

		if tracer != nil {
			ctx, span = tracer.Start(ctx, op,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attribute.String("mcp.tool", toolName)),
			)
			defer span.End()
		}

		result, output, err := handler(ctx, req, input)

		if span != nil && span.SpanContext().IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{
				Text: fmt.Sprintf("%s=%s", traceIDMetaKey, span.SpanContext().TraceID()),
			})
		}

		if end != nil {
			end(err != nil || (result != nil && result.IsError))
		}

		return result, output, err
	}
}

// Tool description constants.
const (
	outlineToolDescription = "Parse source code with a tree-sitter grammar and return its outline: " +
		"one row per named or missing node with depth and [row, column] range. " +
		"An optional query filters row labels."

	nodeAtToolDescription = "Return the outline row of the smallest named node at a caret position, " +
		"with the labels of its ancestors."

	editToolDescription = "Translate a text replacement into the incremental edit descriptor a " +
		"tree-sitter tree expects (start, old end and new end as offsets and positions)."

	languagesToolDescription = "List the grammar names accepted by the other tools."
)
