// Package lsp serves the syntax outline of one open document over the
// Language Server Protocol: document symbols mirror the outline rows, hover
// shows the smallest named node under the cursor, and ERROR and MISSING
// nodes are published as diagnostics.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/sitterview/pkg/document"
	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/observability"
	"github.com/Sumatoshi-tech/sitterview/pkg/outline"
	"github.com/Sumatoshi-tech/sitterview/pkg/session"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
	"github.com/Sumatoshi-tech/sitterview/pkg/version"
)

const (
	serverName       = "sitterview"
	diagnosticSource = "sitterview"
	errorNodeType    = "ERROR"
	fileScheme       = "file://"
	methodDiagnostic = "textDocument/publishDiagnostics"
)

// ErrNoGrammarFor indicates a document no grammar could be chosen for.
var ErrNoGrammarFor = errors.New("lsp: no grammar for document")

// DetectFunc guesses a grammar name from a file name and content.
type DetectFunc func(filename string, content []byte) string

// Options configures a Server.
type Options struct {
	// DefaultGrammar is tried when neither the client's language id nor
	// detection yields a loadable grammar.
	DefaultGrammar  string
	TrailingNewline bool
	Detect          DetectFunc
	Logger          *slog.Logger
	Metrics         *observability.SessionMetrics
	RED             *observability.REDMetrics
	Tracer          trace.Tracer
}

// Server is a single-document outline language server. Opening a document
// replaces the previous one.
type Server struct {
	mu   sync.Mutex
	sess *session.Session
	uri  string

	opts    Options
	logger  *slog.Logger
	handler protocol.Handler
}

// NewServer creates a server parsing with parser and grammars from loader.
func NewServer(parser syntax.Parser, loader syntax.GrammarLoader, opts Options) *Server {
	srv := &Server{
		sess: session.New(parser, loader, session.Options{
			TrailingNewline: opts.TrailingNewline,
			Logger:          opts.Logger,
			Metrics:         opts.Metrics,
			Tracer:          opts.Tracer,
		}),
		opts:   opts,
		logger: observability.Component(opts.Logger, "lsp"),
	}

	srv.handler = protocol.Handler{
		Initialize:                 srv.initialize,
		Initialized:                srv.initialized,
		Shutdown:                   srv.shutdown,
		SetTrace:                   srv.setTrace,
		TextDocumentDidOpen:        srv.didOpen,
		TextDocumentDidChange:      srv.didChange,
		TextDocumentDidClose:       srv.didClose,
		TextDocumentDocumentSymbol: srv.documentSymbol,
		TextDocumentHover:          srv.hover,
	}

	return srv
}

// RunStdio serves the protocol on stdin and stdout until the client exits.
func (srv *Server) RunStdio() error {
	lspServer := server.NewServer(&srv.handler, serverName, false)

	err := lspServer.RunStdio()
	if err != nil {
		return fmt.Errorf("lsp server: %w", err)
	}

	return nil
}

// Close releases the session.
func (srv *Server) Close() {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.sess.Close()
}

func (srv *Server) initialize(_ *glsp.Context, _ *protocol.InitializeParams) (any, error) {
	capabilities := srv.handler.CreateServerCapabilities()

	openClose := true
	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = protocol.TextDocumentSyncOptions{
		OpenClose: &openClose,
		Change:    &syncKind,
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &version.Version,
		},
	}, nil
}

func (srv *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	return nil
}

func (srv *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)

	return nil
}

func (srv *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)

	return nil
}

func (srv *Server) didOpen(glspCtx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	return srv.observe("lsp.didOpen", func(ctx context.Context) error {
		srv.mu.Lock()
		defer srv.mu.Unlock()

		doc := params.TextDocument

		err := srv.chooseGrammar(ctx, doc.URI, doc.LanguageID, doc.Text)
		if err != nil {
			return err
		}

		srv.uri = doc.URI

		_, err = srv.sess.Reset(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("open %s: %w", doc.URI, err)
		}

		srv.publishDiagnostics(ctx, glspCtx)

		return nil
	})
}

// chooseGrammar activates the first loadable grammar among the client's
// language id, the detected language and the default.
func (srv *Server) chooseGrammar(ctx context.Context, uri, languageID, text string) error {
	candidates := []string{languageID}

	if srv.opts.Detect != nil {
		candidates = append(candidates, srv.opts.Detect(strings.TrimPrefix(uri, fileScheme), []byte(text)))
	}

	candidates = append(candidates, srv.opts.DefaultGrammar)

	var errs []error

	for _, name := range candidates {
		if name == "" {
			continue
		}

		if name == srv.sess.GrammarName() {
			return nil
		}

		_, err := srv.sess.SwitchGrammar(ctx, name)
		if err == nil {
			return nil
		}

		errs = append(errs, err)
	}

	return fmt.Errorf("%w %s: %w", ErrNoGrammarFor, uri, errors.Join(errs...))
}

func (srv *Server) didChange(glspCtx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	return srv.observe("lsp.didChange", func(ctx context.Context) error {
		srv.mu.Lock()
		defer srv.mu.Unlock()

		if params.TextDocument.URI != srv.uri {
			return nil
		}

		for _, raw := range params.ContentChanges {
			change, err := decodeChange(raw)
			if err != nil {
				return err
			}

			err = srv.applyChange(ctx, change)
			if err != nil {
				return err
			}
		}

		srv.publishDiagnostics(ctx, glspCtx)

		return nil
	})
}

// contentChange is either a ranged or a whole-document change event.
type contentChange struct {
	Range *protocol.Range `json:"range,omitempty"`
	Text  string          `json:"text"`
}

// decodeChange normalizes a change event, typed or generic, by its JSON form.
func decodeChange(raw any) (contentChange, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return contentChange{}, fmt.Errorf("encode change: %w", err)
	}

	var change contentChange

	err = json.Unmarshal(data, &change)
	if err != nil {
		return contentChange{}, fmt.Errorf("decode change: %w", err)
	}

	return change, nil
}

func (srv *Server) applyChange(ctx context.Context, change contentChange) error {
	doc := srv.sess.Document()

	if change.Range == nil {
		deltas := document.Diff(doc.Text(), change.Text, doc.Units())
		if len(deltas) == 0 {
			return nil
		}

		_, err := srv.sess.Edit(ctx, deltas...)

		return err
	}

	from, err := doc.ConvertPosition(fromProtocol(change.Range.Start), edit.UTF16)
	if err != nil {
		return fmt.Errorf("change range start: %w", err)
	}

	to, err := doc.ConvertPosition(fromProtocol(change.Range.End), edit.UTF16)
	if err != nil {
		return fmt.Errorf("change range end: %w", err)
	}

	delta, err := doc.DeltaFor(from, to, change.Text)
	if err != nil {
		return err
	}

	_, err = srv.sess.Edit(ctx, delta)

	return err
}

func (srv *Server) didClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	return srv.observe("lsp.didClose", func(ctx context.Context) error {
		srv.mu.Lock()
		defer srv.mu.Unlock()

		if params.TextDocument.URI != srv.uri {
			return nil
		}

		srv.uri = ""

		_, err := srv.sess.Reset(ctx, "")

		return err
	})
}

func (srv *Server) documentSymbol(_ *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	var symbols []protocol.DocumentSymbol

	err := srv.observe("lsp.documentSymbol", func(ctx context.Context) error {
		srv.mu.Lock()
		defer srv.mu.Unlock()

		if params.TextDocument.URI != srv.uri || srv.sess.Tree() == nil {
			return nil
		}

		rows, err := outline.Flatten(ctx, srv.sess.Tree(), srv.sess, outline.Options{})
		if err != nil {
			return err
		}

		symbols = buildSymbols(rows, srv.protocolRange)

		return nil
	})

	return symbols, err
}

func (srv *Server) hover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	var result *protocol.Hover

	err := srv.observe("lsp.hover", func(_ context.Context) error {
		srv.mu.Lock()
		defer srv.mu.Unlock()

		tree := srv.sess.Tree()
		if params.TextDocument.URI != srv.uri || tree == nil {
			return nil
		}

		pos, err := srv.sess.Document().ConvertPosition(fromProtocol(params.Position), edit.UTF16)
		if err != nil {
			return nil //nolint:nilerr // positions outside the document have no hover
		}

		node, ok := tree.NamedDescendantForRange(pos, pos)
		if !ok {
			return nil
		}

		rng := srv.protocolRange(node.Start, node.End)
		stats := srv.sess.LastParse()

		result = &protocol.Hover{
			Contents: protocol.MarkupContent{
				Kind: protocol.MarkupKindMarkdown,
				Value: fmt.Sprintf("**%s** `%s - %s`\n\n%s grammar, generation %d",
					node.Label(), node.Start, node.End, stats.Grammar, stats.Generation),
			},
			Range: &rng,
		}

		return nil
	})

	return result, err
}

// publishDiagnostics reports ERROR and MISSING nodes of the current tree.
func (srv *Server) publishDiagnostics(ctx context.Context, glspCtx *glsp.Context) {
	if glspCtx == nil || glspCtx.Notify == nil || srv.sess.Tree() == nil {
		return
	}

	rows, err := outline.Flatten(ctx, srv.sess.Tree(), srv.sess, outline.Options{})
	if err != nil {
		srv.logger.WarnContext(ctx, "diagnostics skipped", "error", err)

		return
	}

	glspCtx.Notify(methodDiagnostic, &protocol.PublishDiagnosticsParams{
		URI:         srv.uri,
		Diagnostics: diagnostics(rows, srv.protocolRange),
	})
}

func diagnostics(rows []outline.Row, toRange func(start, end edit.Position) protocol.Range) []protocol.Diagnostic {
	out := []protocol.Diagnostic{}
	source := diagnosticSource

	for _, row := range rows {
		var (
			message  string
			severity protocol.DiagnosticSeverity
		)

		switch {
		case row.Label == errorNodeType:
			message, severity = "syntax error", protocol.DiagnosticSeverityError
		case strings.HasPrefix(row.Label, syntax.MissingPrefix):
			message = "missing " + strings.TrimPrefix(row.Label, syntax.MissingPrefix)
			severity = protocol.DiagnosticSeverityError
		default:
			continue
		}

		out = append(out, protocol.Diagnostic{
			Range:    toRange(row.Start, row.End),
			Severity: &severity,
			Source:   &source,
			Message:  message,
		})
	}

	return out
}

// protocolRange converts a document range to UTF-16 protocol positions,
// clamped to the document.
func (srv *Server) protocolRange(start, end edit.Position) protocol.Range {
	return protocol.Range{
		Start: srv.protocolPosition(start),
		End:   srv.protocolPosition(end),
	}
}

func (srv *Server) protocolPosition(p edit.Position) protocol.Position {
	doc := srv.sess.Document()

	if edit.Compare(p, doc.End()) > 0 {
		p = doc.End()
	}

	out, err := doc.ExportPosition(p, edit.UTF16)
	if err != nil {
		out = p
	}

	return protocol.Position{Line: out.Row, Character: out.Column}
}

func fromProtocol(p protocol.Position) edit.Position {
	return edit.Position{Row: p.Line, Column: p.Character}
}

// observe runs fn inside a span and records its RED metrics.
func (srv *Server) observe(op string, fn func(ctx context.Context) error) (err error) {
	ctx := context.Background()

	if srv.opts.Tracer != nil {
		var span trace.Span

		ctx, span = srv.opts.Tracer.Start(ctx, op)
		defer span.End()
	}

	if srv.opts.RED != nil {
		end := srv.opts.RED.Start(ctx, op)
		defer func() { end(err != nil) }()
	}

	err = fn(ctx)
	if err != nil {
		srv.logger.WarnContext(ctx, "request failed", "op", op, "error", err)

		trace.SpanFromContext(ctx).SetStatus(codes.Error, err.Error())
	}

	return err
}
