package syntaxtest

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/safeconv"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
)

// LinesGrammar is the name of the toy grammar every Loader knows.
const LinesGrammar = "lines"

// Toy grammar node types.
const (
	TypeProgram    = "program"
	TypeLine       = "line"
	TypeIdentifier = "identifier"
	TypeNumber     = "number"
)

var keywords = []string{"let", "var", "const", "function", "return", "if"}

// Grammar is a toy grammar. Every grammar parses the same line/word language.
type Grammar struct {
	name string
}

// Name returns the grammar name.
func (g *Grammar) Name() string {
	return g.name
}

// Loader resolves toy grammars by name. It is safe for concurrent use.
type Loader struct {
	mu      sync.Mutex
	known   map[string]bool
	gates   map[string]chan struct{}
	loads   map[string]int
	waiting map[string]int
	failErr error
}

// NewLoader creates a loader that knows LinesGrammar plus names.
func NewLoader(names ...string) *Loader {
	l := &Loader{
		known:   map[string]bool{LinesGrammar: true},
		gates:   make(map[string]chan struct{}),
		loads:   make(map[string]int),
		waiting: make(map[string]int),
	}

	for _, name := range names {
		l.known[name] = true
	}

	return l
}

// Block makes loads of name wait until the returned release is called.
func (l *Loader) Block(name string) (release func()) {
	gate := make(chan struct{})

	l.mu.Lock()
	l.gates[name] = gate
	l.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() { close(gate) })
	}
}

// FailWith makes every subsequent load fail with err; nil restores loading.
func (l *Loader) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failErr = err
}

// Loads reports how many times name was loaded.
func (l *Loader) Loads(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.loads[name]
}

// Waiting reports how many loads of name are held by Block.
func (l *Loader) Waiting(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.waiting[name]
}

// Load returns the grammar called name.
func (l *Loader) Load(ctx context.Context, name string) (syntax.Grammar, error) {
	l.mu.Lock()
	gate := l.gates[name]
	l.mu.Unlock()

	if gate != nil {
		err := l.wait(ctx, name, gate)
		if err != nil {
			return nil, err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.loads[name]++

	if l.failErr != nil {
		return nil, l.failErr
	}

	if !l.known[name] {
		return nil, fmt.Errorf("%w: %s", syntax.ErrUnknownGrammar, name)
	}

	return &Grammar{name: name}, nil
}

func (l *Loader) wait(ctx context.Context, name string, gate chan struct{}) error {
	l.mu.Lock()
	l.waiting[name]++
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.waiting[name]--
		l.mu.Unlock()
	}()

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParseCall records one Parse invocation.
type ParseCall struct {
	Text     string
	Grammar  string
	Previous *Tree
	// Edits holds the descriptors the previous tree had received.
	Edits []edit.Descriptor
}

// Parser parses the toy grammar: every non-blank line becomes a "line" node
// holding identifier and number leaves plus unnamed keyword and punctuation
// tokens. An unclosed "(" gets a missing ")" at the end of its line.
type Parser struct {
	units edit.Units

	mu      sync.Mutex
	grammar *Grammar
	logger  syntax.Logger
	calls   []ParseCall
	failErr error
	closed  bool
}

// NewParser creates a toy parser measuring columns in units.
func NewParser(units edit.Units) *Parser {
	return &Parser{units: units}
}

// SetGrammar sets the grammar.
func (p *Parser) SetGrammar(g syntax.Grammar) error {
	toy, ok := g.(*Grammar)
	if !ok {
		return syntax.ErrForeignGrammar
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.grammar = toy

	return nil
}

// SetLogger installs the diagnostic hook.
func (p *Parser) SetLogger(l syntax.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger = l
}

// Units reports the column units.
func (p *Parser) Units() edit.Units {
	return p.units
}

// FailWith makes subsequent parses fail with err; nil restores parsing.
func (p *Parser) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failErr = err
}

// Calls returns the recorded parses.
func (p *Parser) Calls() []ParseCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.calls)
}

// Close marks the parser closed.
func (p *Parser) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
}

// Closed reports whether Close was called.
func (p *Parser) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

// Parse builds a fresh tree for text.
func (p *Parser) Parse(ctx context.Context, text []byte, previous syntax.Tree) (syntax.Tree, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	grammar, logger, failErr := p.grammar, p.logger, p.failErr
	p.mu.Unlock()

	if grammar == nil {
		return nil, syntax.ErrNoGrammar
	}

	var prev *Tree

	if previous != nil {
		var ok bool

		prev, ok = previous.(*Tree)
		if !ok {
			return nil, syntax.ErrForeignTree
		}
	}

	call := ParseCall{Text: string(text), Grammar: grammar.name, Previous: prev}
	if prev != nil {
		call.Edits = prev.Edits()
	}

	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()

	if logger != nil {
		logger(syntax.LogParse, "new_parse")
	}

	if failErr != nil {
		return nil, failErr
	}

	spec, tokens := p.program(string(text))

	if logger != nil {
		logger(syntax.LogLex, "lexed "+strconv.Itoa(tokens)+" tokens")
		logger(syntax.LogParse, "done")
	}

	return Build(spec), nil
}

// Parse is a convenience for tests: it parses text with a fresh toy parser.
func Parse(text string, units edit.Units) *Tree {
	p := NewParser(units)
	_ = p.SetGrammar(&Grammar{name: LinesGrammar}) //nolint:errcheck // toy grammar always accepted

	tree, err := p.Parse(context.Background(), []byte(text), nil)
	if err != nil {
		panic(err)
	}

	return tree.(*Tree) //nolint:forcetypeassert // Parse returns *Tree
}

func (p *Parser) program(text string) (Spec, int) {
	lines := strings.Split(text, "\n")
	last := lines[len(lines)-1]
	root := Named(TypeProgram, edit.Position{}, edit.Position{
		Row:    safeconv.MustIntToUint32(len(lines) - 1),
		Column: safeconv.MustIntToUint32(p.units.Len(last)),
	})

	tokens := 0

	for row, line := range lines {
		children := p.lex(safeconv.MustIntToUint32(row), line)
		if len(children) == 0 {
			continue
		}

		tokens += len(children)
		root.Children = append(root.Children, Named(TypeLine,
			children[0].Start, children[len(children)-1].End, children...))
	}

	return root, tokens
}

func (p *Parser) lex(row uint32, line string) []Spec {
	var (
		out  []Spec
		open int
	)

	at := func(byteIdx int) edit.Position {
		return edit.Position{Row: row, Column: safeconv.MustIntToUint32(p.units.Len(line[:byteIdx]))}
	}

	runes := []rune(line)
	byteIdx := 0

	for i := 0; i < len(runes); {
		r := runes[i]
		start := byteIdx

		switch {
		case unicode.IsSpace(r):
			i++
			byteIdx += len(string(r))

			continue
		case r == '_' || unicode.IsLetter(r):
			j := i
			for j < len(runes) && (runes[j] == '_' || unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j])) {
				byteIdx += len(string(runes[j]))
				j++
			}

			word := string(runes[i:j])
			if slices.Contains(keywords, word) {
				out = append(out, Anon(word, at(start), at(byteIdx)))
			} else {
				out = append(out, Named(TypeIdentifier, at(start), at(byteIdx)))
			}

			i = j
		case unicode.IsDigit(r):
			j := i
			for j < len(runes) && unicode.IsDigit(runes[j]) {
				byteIdx += len(string(runes[j]))
				j++
			}

			out = append(out, Named(TypeNumber, at(start), at(byteIdx)))
			i = j
		default:
			switch r {
			case '(':
				open++
			case ')':
				if open > 0 {
					open--
				}
			}

			byteIdx += len(string(r))
			out = append(out, Anon(string(r), at(start), at(byteIdx)))
			i++
		}
	}

	if len(out) > 0 {
		end := out[len(out)-1].End
		for range open {
			out = append(out, Missing(")", end))
		}
	}

	return out
}
