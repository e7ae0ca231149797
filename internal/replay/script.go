// Package replay drives a playground controller through a scripted editing
// session and reports what each step did to the parse and the outline.
package replay

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
)

//go:embed script.schema.json
var scriptSchema []byte

// ErrInvalidScript indicates a script that does not match the script schema.
var ErrInvalidScript = errors.New("invalid replay script")

// Script is a scripted editing session: an initial text and grammar followed
// by steps applied one after another.
type Script struct {
	Grammar string `yaml:"grammar,omitempty"`
	Units   string `yaml:"units,omitempty"`
	Text    string `yaml:"text"`
	Steps   []Step `yaml:"steps,omitempty"`
}

// Step is one scripted action. Exactly one of the action fields is set.
type Step struct {
	Name    string     `yaml:"name,omitempty"`
	Edit    *EditStep  `yaml:"edit,omitempty"`
	Caret   *CaretStep `yaml:"caret,omitempty"`
	Grammar string     `yaml:"grammar,omitempty"`
	Click   *int       `yaml:"click,omitempty"`
	Logging *bool      `yaml:"logging,omitempty"`
}

// EditStep replaces the text between From and To. To defaults to From.
type EditStep struct {
	From edit.Position  `yaml:"from"`
	To   *edit.Position `yaml:"to,omitempty"`
	Text string         `yaml:"text,omitempty"`
}

// CaretStep moves the selection. Head defaults to Anchor.
type CaretStep struct {
	Anchor edit.Position  `yaml:"anchor"`
	Head   *edit.Position `yaml:"head,omitempty"`
}

// Op returns the action name of the step.
func (s Step) Op() string {
	switch {
	case s.Edit != nil:
		return "edit"
	case s.Caret != nil:
		return "caret"
	case s.Grammar != "":
		return "grammar"
	case s.Click != nil:
		return "click"
	case s.Logging != nil:
		return "logging"
	default:
		return ""
	}
}

// Label returns the step name, or its action when unnamed.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}

	return s.Op()
}

// InputUnits returns the units script positions are measured in.
func (s *Script) InputUnits() (edit.Units, error) {
	if s.Units == "" {
		return edit.UTF16, nil
	}

	return edit.ParseUnits(s.Units)
}

// LoadScript reads and decodes a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	return DecodeScript(data)
}

// DecodeScript validates data against the script schema and decodes it.
func DecodeScript(data []byte) (*Script, error) {
	var raw any

	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(scriptSchema),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("validate script: %w", err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			problems = append(problems, verr.Field()+": "+verr.Description())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidScript, strings.Join(problems, "; "))
	}

	var script Script

	err = yaml.Unmarshal(data, &script)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}

	return &script, nil
}
