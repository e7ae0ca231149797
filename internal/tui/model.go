// Package tui is the terminal front end of the playground: a text editor on
// the left and the live syntax outline on the right.
package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Sumatoshi-tech/sitterview/pkg/document"
	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/outline"
	"github.com/Sumatoshi-tech/sitterview/pkg/playground"
	"github.com/Sumatoshi-tech/sitterview/pkg/safeconv"
)

// InputUnits is the unit system the editor reports positions in.
const InputUnits = edit.Runes

// RefreshInterval is how often the outline pane polls the controller.
const RefreshInterval = 50 * time.Millisecond

const (
	statusHeight = 1
	minPaneWidth = 10
	indentWidth  = 2
)

// Controller is the part of the playground the explorer drives.
type Controller interface {
	Edit(ctx context.Context, deltas ...edit.Delta) error
	MoveCaret(ctx context.Context, anchor, head edit.Position) error
	Click(ctx context.Context, index int) (document.Selection, error)
	SetLogging(ctx context.Context, on bool) error
	Snapshot(ctx context.Context) (playground.Snapshot, error)
}

type focus int

const (
	focusEditor focus = iota
	focusOutline
	focusSearch
)

type (
	tickMsg     struct{}
	syncMsg     struct{}
	snapshotMsg struct {
		snap playground.Snapshot
		err  error
	}
)

// Model is the bubbletea model of the explorer.
type Model struct {
	ctx  context.Context
	ctrl Controller
	list *outline.Buffer

	editor textarea.Model
	search textinput.Model
	focus  focus

	// last is the editor text the controller has seen.
	last  string
	caret edit.Position

	snap    playground.Snapshot
	cursor  int
	matches []int
	status  string
	err     error

	width  int
	height int
}

// New creates an explorer over ctrl, whose outline rows are pushed into list.
// list must use a row height of one. text is the document the controller was
// opened with.
func New(ctx context.Context, ctrl Controller, list *outline.Buffer, text string) Model {
	ta := textarea.New()
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.ShowLineNumbers = true
	ta.SetValue(text)
	ta.Focus()

	si := textinput.New()
	si.Prompt = "/"
	si.Placeholder = "search rows"

	return Model{
		ctx:    ctx,
		ctrl:   ctrl,
		list:   list,
		editor: ta,
		search: si,
		last:   text,
	}
}

// Init starts the refresh loop and syncs the editor's normalized text.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, tick(), func() tea.Msg { return syncMsg{} })
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) fetch() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.ctrl.Snapshot(m.ctx)

		return snapshotMsg{snap: snap, err: err}
	}
}

// Update handles a message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

		return m, nil
	case tickMsg:
		return m, tea.Batch(m.fetch(), tick())
	case snapshotMsg:
		m.applySnapshot(msg)

		return m, nil
	case syncMsg:
		m.syncEditor()

		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.focus == focusEditor {
		var cmd tea.Cmd

		m.editor, cmd = m.editor.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+l":
		on := !m.snap.Logging
		m.setErr(m.ctrl.SetLogging(m.ctx, on))
		m.snap.Logging = on

		return m, nil
	case "tab":
		if m.focus == focusSearch {
			break
		}

		m.toggleFocus()

		return m, nil
	}

	switch m.focus {
	case focusSearch:
		return m.handleSearchKey(msg)
	case focusOutline:
		return m.handleOutlineKey(msg)
	default:
		if msg.Type == tea.KeyEsc {
			m.toggleFocus()

			return m, nil
		}

		var cmd tea.Cmd

		m.editor, cmd = m.editor.Update(msg)
		m.syncEditor()

		return m, cmd
	}
}

func (m *Model) toggleFocus() {
	if m.focus == focusEditor {
		m.focus = focusOutline
		m.editor.Blur()

		return
	}

	m.focus = focusEditor
	m.editor.Focus()
}

func (m Model) handleOutlineKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "pgup":
		m.moveCursor(-m.outlineHeight())
	case "pgdown":
		m.moveCursor(m.outlineHeight())
	case "enter":
		sel, err := m.ctrl.Click(m.ctx, m.cursor)
		m.setErr(err)

		if err == nil {
			m.status = fmt.Sprintf("selected %s-%s", sel.Anchor, sel.Head)
		}
	case "/":
		m.focus = focusSearch
		m.search.SetValue("")

		return m, m.search.Focus()
	case "n":
		next, ok := outline.NextMatch(m.matches, m.cursor)
		if ok {
			m.moveCursor(next - m.cursor)
		}
	}

	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.search.Blur()
		m.focus = focusOutline

		if msg.Type == tea.KeyEsc {
			m.matches = nil

			return m, nil
		}

		m.matches = outline.Search(m.snap.Rows, m.search.Value())
		m.status = fmt.Sprintf("%d matches", len(m.matches))

		next, ok := outline.NextMatch(m.matches, m.cursor-1)
		if ok {
			m.moveCursor(next - m.cursor)
		}

		return m, nil
	default:
		var cmd tea.Cmd

		m.search, cmd = m.search.Update(msg)

		return m, cmd
	}
}

// syncEditor sends the difference between the editor and what the
// controller has seen, then the caret.
func (m *Model) syncEditor() {
	text := m.editor.Value()

	if text != m.last {
		deltas := document.Diff(m.last, text, InputUnits)
		m.last = text

		err := m.ctrl.Edit(m.ctx, deltas...)
		if err != nil {
			m.setErr(err)

			return
		}
	}

	info := m.editor.LineInfo()
	caret := edit.Position{
		Row:    safeconv.MustIntToUint32(m.editor.Line()),
		Column: safeconv.MustIntToUint32(info.StartColumn + info.ColumnOffset),
	}

	if caret == m.caret {
		return
	}

	m.caret = caret
	m.setErr(m.ctrl.MoveCaret(m.ctx, caret, caret))
}

func (m *Model) applySnapshot(msg snapshotMsg) {
	if msg.err != nil {
		m.setErr(msg.err)

		return
	}

	m.snap = msg.snap

	if m.focus == focusEditor && m.snap.Highlighted >= 0 {
		m.cursor = m.snap.Highlighted
	}

	m.cursor = min(m.cursor, max(0, len(m.snap.Rows)-1))
}

func (m *Model) moveCursor(delta int) {
	if len(m.snap.Rows) == 0 {
		return
	}

	m.cursor = min(max(0, m.cursor+delta), len(m.snap.Rows)-1)

	vp := m.list.Viewport()
	top := vp.ScrollTop

	switch {
	case m.cursor < top:
		m.list.ScrollTo(m.cursor)
	case m.cursor >= top+vp.Height:
		m.list.ScrollTo(m.cursor - vp.Height + 1)
	}
}

func (m *Model) setErr(err error) {
	m.err = err
	if err != nil {
		m.status = ""
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	editorWidth := max(minPaneWidth, width/2)
	m.editor.SetWidth(editorWidth)
	m.editor.SetHeight(max(1, height-statusHeight))
	m.list.Resize(m.outlineHeight())
}

func (m Model) outlineHeight() int {
	return max(1, m.height-statusHeight)
}

// View renders the explorer.
func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	outlineWidth := max(minPaneWidth, m.width-m.editor.Width()-paneGap)

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.editor.View(),
		strings.Repeat(" ", paneGap),
		m.renderOutline(outlineWidth),
	)

	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderStatus())
}

func (m Model) renderOutline(width int) string {
	vp := m.list.Viewport()
	first, last := vp.VisibleRange(len(m.snap.Rows))

	lines := make([]string, 0, last-first)

	for i := first; i < last; i++ {
		lines = append(lines, m.renderRow(i, width))
	}

	return outlineStyle.Width(width).Height(m.outlineHeight()).Render(strings.Join(lines, "\n"))
}

func (m Model) renderRow(i, width int) string {
	row := m.snap.Rows[i]

	marker := "  "
	if i == m.cursor && m.focus != focusEditor {
		marker = "> "
	}

	label := row.Label

	switch {
	case row.Label == "ERROR" || strings.HasPrefix(row.Label, "MISSING "):
		label = errorRowStyle.Render(label)
	case slices.Contains(m.matches, i):
		label = matchStyle.Render(label)
	}

	text := marker + strings.Repeat(" ", row.Depth*indentWidth) + label + " " +
		rangeStyle.Render(fmt.Sprintf("%s - %s", row.Start, row.End))

	if row.Highlighted {
		return highlightStyle.MaxWidth(width).Render(text)
	}

	return lipgloss.NewStyle().MaxWidth(width).Render(text)
}

func (m Model) renderStatus() string {
	if m.focus == focusSearch {
		return m.search.View()
	}

	parts := []string{
		grammarStyle.Render(orNone(m.snap.Grammar)),
		fmt.Sprintf("gen %d", m.snap.Generation),
		fmt.Sprintf("%d rows", len(m.snap.Rows)),
		"parse " + m.snap.Parse.Duration.String(),
	}

	if m.snap.Loading != "" {
		parts = append(parts, "loading "+m.snap.Loading)
	}

	if !m.snap.Settled() {
		parts = append(parts, "rendering")
	}

	if m.snap.Logging {
		parts = append(parts, "logging")
	}

	switch {
	case m.err != nil:
		parts = append(parts, errorStyle.Render(m.err.Error()))
	case m.snap.GrammarError != "":
		parts = append(parts, errorStyle.Render(m.snap.GrammarError))
	case m.status != "":
		parts = append(parts, m.status)
	}

	return statusStyle.Render(strings.Join(parts, " | "))
}

func orNone(s string) string {
	if s == "" {
		return "no grammar"
	}

	return s
}
