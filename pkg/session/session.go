// Package session keeps a syntax tree in step with a document under edit.
// Every edit is applied to the previous tree in place before the document is
// re-parsed, so the parser can reuse unchanged subtrees.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/sitterview/pkg/document"
	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/observability"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
)

// Sentinel errors for session operations.
var (
	// ErrSwitchInProgress indicates a grammar switch requested while another
	// one is still loading.
	ErrSwitchInProgress = errors.New("session: grammar switch already in progress")
	// ErrClosed indicates use of a closed session.
	ErrClosed = errors.New("session: closed")
)

// GrammarLoadError reports a grammar that could not be loaded or activated.
// The active grammar is unchanged.
type GrammarLoadError struct {
	Name string
	Err  error
}

func (e *GrammarLoadError) Error() string {
	return fmt.Sprintf("session: load grammar %q: %v", e.Name, e.Err)
}

func (e *GrammarLoadError) Unwrap() error {
	return e.Err
}

// ParseStats describes one successful parse.
type ParseStats struct {
	Generation  uint64        `json:"generation"`
	Grammar     string        `json:"grammar"`
	Duration    time.Duration `json:"duration"`
	Incremental bool          `json:"incremental"`
	Edits       int           `json:"edits"`
	Bytes       int           `json:"bytes"`
}

// Options configures a Session.
type Options struct {
	// TrailingNewline terminates the parse input with "\n" so the final line
	// is always complete for the grammar. The document is not changed.
	TrailingNewline bool
	// Logger receives session logs; nil uses slog.Default.
	Logger *slog.Logger
	// Metrics records parse and edit metrics; nil disables them.
	Metrics *observability.SessionMetrics
	// Tracer creates a span per parse; nil disables tracing.
	Tracer trace.Tracer
}

// Session owns a document, a parser and the current tree. It is not safe for
// concurrent use except for LoadGrammar, Generation and SwitchGrammar's
// in-progress guard.
type Session struct {
	doc      *document.Document
	parser   syntax.Parser
	loader   syntax.GrammarLoader
	grammars *gocache.Cache
	opts     Options
	logger   *slog.Logger

	tree        syntax.Tree
	grammarName string
	last        ParseStats
	logging     bool
	closed      bool

	generation atomic.Uint64
	switching  atomic.Bool
}

// New creates a session with an empty document measured in the parser's
// units and no grammar.
func New(parser syntax.Parser, loader syntax.GrammarLoader, opts Options) *Session {
	return &Session{
		doc:      document.New("", parser.Units()),
		parser:   parser,
		loader:   loader,
		grammars: gocache.New(gocache.NoExpiration, 0),
		opts:     opts,
		logger:   observability.Component(opts.Logger, "session"),
	}
}

// Document returns the session document. Callers must not apply edits to it
// directly; use Edit so the tree follows.
func (s *Session) Document() *document.Document {
	return s.doc
}

// Units reports the units of document positions.
func (s *Session) Units() edit.Units {
	return s.doc.Units()
}

// Generation returns the render generation, bumped on every successful parse.
// It is safe for concurrent use.
func (s *Session) Generation() uint64 {
	return s.generation.Load()
}

// Tree returns the current tree, or nil before the first parse.
func (s *Session) Tree() syntax.Tree {
	return s.tree
}

// LastParse returns the stats of the latest successful parse.
func (s *Session) LastParse() ParseStats {
	return s.last
}

// GrammarName returns the active grammar name, or "" when none is set.
func (s *Session) GrammarName() string {
	return s.grammarName
}

// Reset replaces the document text and parses it from scratch.
func (s *Session) Reset(ctx context.Context, text string) (ParseStats, error) {
	if s.closed {
		return ParseStats{}, ErrClosed
	}

	s.doc.SetText(text)
	s.discardTree()

	return s.parse(ctx, 0)
}

// Edit applies deltas, whose positions are in the session's units, and
// re-parses incrementally.
func (s *Session) Edit(ctx context.Context, deltas ...edit.Delta) (ParseStats, error) {
	return s.EditFrom(ctx, s.doc.Units(), deltas...)
}

// EditFrom applies deltas whose positions are measured in units. Each delta
// is converted against the document as left by the deltas before it, applied
// to the current tree in place, then to the document. One parse follows the
// whole batch. When a delta fails, the deltas before it stay applied and are
// parsed before the error is returned.
func (s *Session) EditFrom(ctx context.Context, units edit.Units, deltas ...edit.Delta) (ParseStats, error) {
	if s.closed {
		return ParseStats{}, ErrClosed
	}

	applied := 0

	var editErr error

	for _, d := range deltas {
		err := s.applyDelta(d, units)
		if err != nil {
			editErr = fmt.Errorf("session: edit %d of %d: %w", applied+1, len(deltas), err)

			break
		}

		applied++
	}

	s.opts.Metrics.RecordEdits(ctx, applied)

	if applied == 0 {
		return ParseStats{}, editErr
	}

	stats, err := s.parse(ctx, applied)

	return stats, errors.Join(editErr, err)
}

func (s *Session) applyDelta(d edit.Delta, units edit.Units) error {
	d, err := s.convertDelta(d, units)
	if err != nil {
		return err
	}

	var desc edit.Descriptor

	if s.tree != nil {
		start, offsetErr := s.doc.OffsetAt(d.From)
		if offsetErr != nil {
			return offsetErr
		}

		desc, err = edit.Translate(d, start, s.doc.Units())
		if err != nil {
			return err
		}
	}

	err = s.doc.Apply(d)
	if err != nil {
		return err
	}

	if s.tree != nil {
		s.tree.Edit(desc)
	}

	return nil
}

func (s *Session) convertDelta(d edit.Delta, units edit.Units) (edit.Delta, error) {
	if units == s.doc.Units() {
		return d, nil
	}

	from, err := s.doc.ConvertPosition(d.From, units)
	if err != nil {
		return edit.Delta{}, err
	}

	to, err := s.doc.ConvertPosition(d.To, units)
	if err != nil {
		return edit.Delta{}, err
	}

	d.From, d.To = from, to

	return d, nil
}

// Reparse parses the document from scratch, discarding the current tree.
func (s *Session) Reparse(ctx context.Context) (ParseStats, error) {
	if s.closed {
		return ParseStats{}, ErrClosed
	}

	s.discardTree()

	return s.parse(ctx, 0)
}

// LoadGrammar returns the grammar called name, loading it on first use. This
// is the only grammar cache: loaded grammars are kept for the session
// lifetime, failures are not kept. LoadGrammar is safe for concurrent use;
// failures are *GrammarLoadError.
func (s *Session) LoadGrammar(ctx context.Context, name string) (syntax.Grammar, error) {
	if cached, ok := s.grammars.Get(name); ok {
		g, castOK := cached.(syntax.Grammar)
		if castOK {
			return g, nil
		}
	}

	g, err := s.loader.Load(ctx, name)
	if err != nil {
		s.opts.Metrics.RecordGrammarLoadError(ctx, name)
		s.logger.WarnContext(ctx, "grammar load failed", "grammar", name, "error", err)

		return nil, &GrammarLoadError{Name: name, Err: err}
	}

	s.grammars.Set(name, g, gocache.NoExpiration)

	return g, nil
}

// ActivateGrammar makes g the active grammar under name, discards the current
// tree and parses the document from scratch.
func (s *Session) ActivateGrammar(ctx context.Context, name string, g syntax.Grammar) (ParseStats, error) {
	if s.closed {
		return ParseStats{}, ErrClosed
	}

	err := s.parser.SetGrammar(g)
	if err != nil {
		s.opts.Metrics.RecordGrammarLoadError(ctx, name)

		return ParseStats{}, &GrammarLoadError{Name: name, Err: err}
	}

	previous := s.grammarName
	s.grammarName = name
	s.discardTree()

	s.logger.InfoContext(ctx, "grammar switched", "from", previous, "to", name)

	return s.parse(ctx, 0)
}

// SwitchGrammar loads and activates the grammar called name. A call made
// while another switch is loading fails with ErrSwitchInProgress.
func (s *Session) SwitchGrammar(ctx context.Context, name string) (ParseStats, error) {
	if !s.switching.CompareAndSwap(false, true) {
		return ParseStats{}, ErrSwitchInProgress
	}
	defer s.switching.Store(false)

	g, err := s.LoadGrammar(ctx, name)
	if err != nil {
		return ParseStats{}, err
	}

	return s.ActivateGrammar(ctx, name, g)
}

// SetLogging turns parser diagnostics on or off. Diagnostics are logged at
// info level with the parser's message kind. The hook runs inside Parse, on
// the goroutine that owns the session.
func (s *Session) SetLogging(on bool) {
	s.logging = on

	if !on {
		s.parser.SetLogger(nil)

		return
	}

	s.parser.SetLogger(func(kind syntax.LogKind, message string) {
		s.logger.Info("parser", "grammar", s.grammarName, "kind", kind.String(), "message", message)
	})
}

// Logging reports whether parser diagnostics are on.
func (s *Session) Logging() bool {
	return s.logging
}

// Close releases the tree and the parser.
func (s *Session) Close() {
	if s.closed {
		return
	}

	s.closed = true
	s.discardTree()
	s.parser.Close()
}

func (s *Session) discardTree() {
	if s.tree != nil {
		s.tree.Close()
		s.tree = nil
	}
}

func (s *Session) parseInput() []byte {
	text := s.doc.Text()
	if s.opts.TrailingNewline {
		text += "\n"
	}

	return []byte(text)
}

// parse re-parses the document against the current tree, if any. Without a
// grammar it does nothing.
func (s *Session) parse(ctx context.Context, edits int) (ParseStats, error) {
	if s.grammarName == "" {
		return ParseStats{Generation: s.Generation()}, nil
	}

	if s.opts.Tracer != nil {
		var span trace.Span

		ctx, span = s.opts.Tracer.Start(ctx, "session.parse", trace.WithAttributes(
			attribute.String("grammar", s.grammarName),
			attribute.Bool("incremental", s.tree != nil),
			attribute.Int("edits", edits),
		))
		defer span.End()
	}

	input := s.parseInput()
	previous := s.tree
	start := time.Now()

	tree, err := s.parser.Parse(ctx, input, previous)
	if err != nil {
		return ParseStats{}, fmt.Errorf("session: parse: %w", err)
	}

	elapsed := time.Since(start)

	if previous != nil {
		previous.Close()
	}

	s.tree = tree

	s.last = ParseStats{
		Generation:  s.generation.Add(1),
		Grammar:     s.grammarName,
		Duration:    elapsed,
		Incremental: previous != nil,
		Edits:       edits,
		Bytes:       len(input),
	}

	s.opts.Metrics.RecordParse(ctx, s.grammarName, s.last.Incremental, elapsed)
	s.logger.DebugContext(ctx, "parsed",
		"generation", s.last.Generation,
		"grammar", s.grammarName,
		"incremental", s.last.Incremental,
		"duration", elapsed,
	)

	return s.last, nil
}
