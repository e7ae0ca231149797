// Package sitter implements the syntax capabilities on top of tree-sitter.
package sitter

import (
	"context"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
	"unsafe"

	forest "github.com/alexaandru/go-sitter-forest"
	"github.com/alexaandru/go-sitter-forest/bash"
	"github.com/alexaandru/go-sitter-forest/c"
	"github.com/alexaandru/go-sitter-forest/c_sharp"
	"github.com/alexaandru/go-sitter-forest/cpp"
	"github.com/alexaandru/go-sitter-forest/css"
	golang "github.com/alexaandru/go-sitter-forest/go"
	"github.com/alexaandru/go-sitter-forest/html"
	"github.com/alexaandru/go-sitter-forest/java"
	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/json"
	"github.com/alexaandru/go-sitter-forest/lua"
	"github.com/alexaandru/go-sitter-forest/markdown"
	"github.com/alexaandru/go-sitter-forest/php"
	"github.com/alexaandru/go-sitter-forest/python"
	"github.com/alexaandru/go-sitter-forest/ruby"
	"github.com/alexaandru/go-sitter-forest/rust"
	"github.com/alexaandru/go-sitter-forest/sql"
	"github.com/alexaandru/go-sitter-forest/toml"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"
	"github.com/alexaandru/go-sitter-forest/yaml"
	"github.com/alexaandru/go-sitter-forest/zig"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
)

// grammarFuncs maps grammar names to their tree-sitter GetLanguage functions.
// Names outside the table are looked up in the forest registry.
var grammarFuncs = map[string]func() unsafe.Pointer{
	"bash":       bash.GetLanguage,
	"c":          c.GetLanguage,
	"c_sharp":    c_sharp.GetLanguage,
	"cpp":        cpp.GetLanguage,
	"css":        css.GetLanguage,
	"go":         golang.GetLanguage,
	"html":       html.GetLanguage,
	"java":       java.GetLanguage,
	"javascript": javascript.GetLanguage,
	"json":       json.GetLanguage,
	"lua":        lua.GetLanguage,
	"markdown":   markdown.GetLanguage,
	"php":        php.GetLanguage,
	"python":     python.GetLanguage,
	"ruby":       ruby.GetLanguage,
	"rust":       rust.GetLanguage,
	"sql":        sql.GetLanguage,
	"toml":       toml.GetLanguage,
	"tsx":        tsx.GetLanguage,
	"typescript": typescript.GetLanguage,
	"yaml":       yaml.GetLanguage,
	"zig":        zig.GetLanguage,
}

// enryNames maps enry language names onto grammar names where they differ.
var enryNames = map[string]string{
	"c#":    "c_sharp",
	"c++":   "cpp",
	"shell": "bash",
}

// Grammar is a loaded tree-sitter language.
type Grammar struct {
	name string
	lang *sitter.Language
}

// Name returns the grammar name.
func (g *Grammar) Name() string {
	return g.name
}

// Languages returns the grammar names with a built-in table entry, sorted.
func Languages() []string {
	return slices.Sorted(maps.Keys(grammarFuncs))
}

// Loader resolves grammar names to tree-sitter languages. It keeps no
// state: callers cache the grammars they load (see session.Session). Loader
// is safe for concurrent use.
type Loader struct{}

// NewLoader creates a grammar loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load returns the grammar called name.
func (*Loader) Load(ctx context.Context, name string) (syntax.Grammar, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	name = strings.ToLower(strings.TrimSpace(name))

	lang := lookupLanguage(name)
	if lang == nil {
		return nil, fmt.Errorf("%w: %s", syntax.ErrUnknownGrammar, name)
	}

	return &Grammar{name: name, lang: lang}, nil
}

func lookupLanguage(name string) *sitter.Language {
	if fn, ok := grammarFuncs[name]; ok {
		return sitter.NewLanguage(fn())
	}

	var lang *sitter.Language

	func() {
		defer func() {
			_ = recover() //nolint:errcheck // recover() returns any, not error
		}()

		lang = forest.GetLanguage(name)
	}()

	return lang
}

// DetectLanguage guesses the grammar name for a file from its name and,
// when the name is inconclusive, its content. It returns "" when no grammar
// in the table matches.
func DetectLanguage(filename string, content []byte) string {
	lang := enry.GetLanguage(path.Base(filename), nil)
	if lang == "" && len(content) > 0 {
		lang = enry.GetLanguage(path.Base(filename), content)
	}

	if lang == "" {
		return ""
	}

	name := strings.ToLower(lang)
	if mapped, ok := enryNames[name]; ok {
		name = mapped
	}

	if strings.HasSuffix(filename, ".tsx") {
		name = "tsx"
	}

	if _, ok := grammarFuncs[name]; !ok {
		return ""
	}

	return name
}
