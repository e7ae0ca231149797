package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/sitterview/pkg/document"
	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/outline"
	"github.com/Sumatoshi-tech/sitterview/pkg/safeconv"
	"github.com/Sumatoshi-tech/sitterview/pkg/session"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
)

// Tool name constants.
const (
	ToolNameOutline   = "sitterview_outline"
	ToolNameNodeAt    = "sitterview_node_at"
	ToolNameEdit      = "sitterview_edit"
	ToolNameLanguages = "sitterview_languages"
)

// Input size limits.
const (
	// MaxCodeInputBytes is the maximum allowed size for inline code input (1 MB).
	MaxCodeInputBytes = 1 << 20
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyCode indicates the code parameter is empty.
	ErrEmptyCode = errors.New("code parameter is required and must not be empty")
	// ErrEmptyLanguage indicates the language parameter is empty.
	ErrEmptyLanguage = errors.New("language parameter is required and must not be empty")
	// ErrCodeTooLarge indicates the code input exceeds the size limit.
	ErrCodeTooLarge = errors.New("code input exceeds maximum size")
	// ErrNoRowAt indicates no outline row covers the requested position.
	ErrNoRowAt = errors.New("no outline row at position")
)

// Input types (auto-generate JSON schemas via struct tags).

// OutlineInput is the input schema for the sitterview_outline tool.
type OutlineInput struct {
	Code     string `json:"code"            jsonschema:"source code to parse"`
	Language string `json:"language"        jsonschema:"grammar name (e.g. go python javascript)"`
	Query    string `json:"query,omitempty" jsonschema:"optional case-insensitive filter on row labels"`
}

// NodeAtInput is the input schema for the sitterview_node_at tool.
type NodeAtInput struct {
	Code     string `json:"code"            jsonschema:"source code to parse"`
	Language string `json:"language"        jsonschema:"grammar name (e.g. go python javascript)"`
	Row      uint32 `json:"row"             jsonschema:"zero-based line of the caret"`
	Column   uint32 `json:"column"          jsonschema:"zero-based column of the caret"`
	Units    string `json:"units,omitempty" jsonschema:"column units: utf16 (default) bytes or runes"`
}

// EditInput is the input schema for the sitterview_edit tool.
type EditInput struct {
	Text     string        `json:"text"            jsonschema:"document text before the edit"`
	From     edit.Position `json:"from"            jsonschema:"start of the replaced range"`
	To       edit.Position `json:"to"              jsonschema:"end of the replaced range"`
	Inserted string        `json:"inserted"        jsonschema:"replacement text"`
	Units    string        `json:"units,omitempty" jsonschema:"column and offset units: utf16 (default) bytes or runes"`
}

// LanguagesInput is the input schema for the sitterview_languages tool.
type LanguagesInput struct {
	Prefix string `json:"prefix,omitempty" jsonschema:"optional name prefix filter"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// OutlineResult is the payload of the sitterview_outline tool.
type OutlineResult struct {
	Grammar     string        `json:"grammar"`
	ParseTime   string        `json:"parse_time"`
	Bytes       string        `json:"bytes"`
	Rows        []outline.Row `json:"rows"`
	Matches     []int         `json:"matches,omitempty"`
	Diagnostics int           `json:"diagnostics"`
}

// NodeAtResult is the payload of the sitterview_node_at tool.
type NodeAtResult struct {
	Index int         `json:"index"`
	Row   outline.Row `json:"row"`
	Path  []string    `json:"path"`
}

// EditResult is the payload of the sitterview_edit tool.
type EditResult struct {
	Delta      edit.Delta      `json:"delta"`
	Descriptor edit.Descriptor `json:"descriptor"`
	Text       string          `json:"text"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validateCodeInput checks common code input constraints.
func validateCodeInput(code, language string) error {
	if code == "" {
		return ErrEmptyCode
	}

	if language == "" {
		return ErrEmptyLanguage
	}

	if len(code) > MaxCodeInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(code), MaxCodeInputBytes)
	}

	return nil
}

// parseCode opens a throwaway session, parses code with language and
// returns it with its rendered rows. The caller closes the session.
func (s *Server) parseCode(ctx context.Context, code, language string) (*session.Session, []outline.Row, error) {
	sess := session.New(s.deps.NewParser(), s.deps.Loader, session.Options{
		Logger:  s.logger,
		Metrics: s.deps.SessionMetrics,
		Tracer:  s.deps.Tracer,
	})

	_, err := sess.SwitchGrammar(ctx, language)
	if err != nil {
		sess.Close()

		return nil, nil, err
	}

	_, err = sess.Reset(ctx, code)
	if err != nil {
		sess.Close()

		return nil, nil, err
	}

	rows, err := outline.Flatten(ctx, sess.Tree(), sess, outline.Options{})
	if err != nil {
		sess.Close()

		return nil, nil, err
	}

	return sess, rows, nil
}

func (s *Server) handleOutline(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input OutlineInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateCodeInput(input.Code, input.Language)
	if err != nil {
		return errorResult(err)
	}

	sess, rows, err := s.parseCode(ctx, input.Code, input.Language)
	if err != nil {
		return errorResult(err)
	}
	defer sess.Close()

	stats := sess.LastParse()

	result := OutlineResult{
		Grammar:   stats.Grammar,
		ParseTime: stats.Duration.String(),
		Bytes:     humanize.Bytes(safeconv.MustIntToUint64(stats.Bytes)),
		Rows:      rows,
		Matches:   outline.Search(rows, input.Query),
	}

	for _, row := range rows {
		if row.Label == "ERROR" || strings.HasPrefix(row.Label, syntax.MissingPrefix) {
			result.Diagnostics++
		}
	}

	return jsonResult(result)
}

func (s *Server) handleNodeAt(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input NodeAtInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateCodeInput(input.Code, input.Language)
	if err != nil {
		return errorResult(err)
	}

	units, err := parseUnits(input.Units)
	if err != nil {
		return errorResult(err)
	}

	sess, rows, err := s.parseCode(ctx, input.Code, input.Language)
	if err != nil {
		return errorResult(err)
	}
	defer sess.Close()

	caret, err := sess.Document().ConvertPosition(edit.Position{Row: input.Row, Column: input.Column}, units)
	if err != nil {
		return errorResult(err)
	}

	model := outline.NewModel(outline.DefaultMargins())
	model.SetRows(rows, sess.Generation())
	model.Sync(sess.Tree(), caret, caret, outline.Viewport{})

	index, ok := model.Highlighted()
	if !ok {
		return errorResult(fmt.Errorf("%w %s", ErrNoRowAt, caret))
	}

	row, _ := model.Row(index)

	return jsonResult(NodeAtResult{Index: index, Row: row, Path: ancestry(rows, index)})
}

// ancestry returns the labels from the root down to rows[index].
func ancestry(rows []outline.Row, index int) []string {
	path := []string{rows[index].Label}
	depth := rows[index].Depth

	for i := index - 1; i >= 0 && depth > 0; i-- {
		if rows[i].Depth < depth {
			path = append(path, rows[i].Label)
			depth = rows[i].Depth
		}
	}

	slices.Reverse(path)

	return path
}

func (s *Server) handleEdit(
	_ context.Context, _ *mcpsdk.CallToolRequest, input EditInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if len(input.Text) > MaxCodeInputBytes {
		return errorResult(fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(input.Text), MaxCodeInputBytes))
	}

	units, err := parseUnits(input.Units)
	if err != nil {
		return errorResult(err)
	}

	doc := document.New(input.Text, units)

	start, err := doc.OffsetAt(input.From)
	if err != nil {
		return errorResult(err)
	}

	delta, err := doc.DeltaFor(input.From, input.To, input.Inserted)
	if err != nil {
		return errorResult(err)
	}

	desc, err := edit.Translate(delta, start, units)
	if err != nil {
		return errorResult(err)
	}

	err = doc.Apply(delta)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(EditResult{Delta: delta, Descriptor: desc, Text: doc.Text()})
}

func (s *Server) handleLanguages(
	_ context.Context, _ *mcpsdk.CallToolRequest, input LanguagesInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	names := make([]string, 0, len(s.deps.Languages))

	for _, name := range s.deps.Languages {
		if strings.HasPrefix(name, input.Prefix) {
			names = append(names, name)
		}
	}

	return jsonResult(names)
}

func parseUnits(name string) (edit.Units, error) {
	if name == "" {
		return edit.UTF16, nil
	}

	return edit.ParseUnits(name)
}
