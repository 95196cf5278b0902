package shell

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Editor is a terminal line editor with history recall.
type Editor struct {
	in      io.Reader
	out     io.Writer
	prompt  string
	theme   Theme
	history []string
	limit   int
}

// NewEditor returns an editor reading keys from in and drawing on out.
// history is preloaded oldest first; at most limit lines are kept.
func NewEditor(in io.Reader, out io.Writer, prompt string, theme Theme, history []string, limit int) *Editor {
	e := &Editor{in: in, out: out, prompt: prompt, theme: theme, limit: limit}
	for _, line := range history {
		e.remember(line)
	}
	return e
}

// ReadLine runs the editor until a line is entered.
func (e *Editor) ReadLine() (string, error) {
	p := tea.NewProgram(newEditorModel(e.prompt, e.theme, e.history),
		tea.WithInput(e.in),
		tea.WithOutput(e.out),
	)
	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("line editor: %w", err)
	}
	m := final.(editorModel)
	if m.err != nil {
		return "", m.err
	}
	e.remember(m.line)
	return m.line, nil
}

func (e *Editor) remember(line string) {
	if line == "" {
		return
	}
	if n := len(e.history); n > 0 && e.history[n-1] == line {
		return
	}
	e.history = append(e.history, line)
	if e.limit > 0 && len(e.history) > e.limit {
		e.history = e.history[len(e.history)-e.limit:]
	}
}

type editorModel struct {
	input   textinput.Model
	theme   Theme
	history []string
	// cursor indexes history; len(history) is the line being typed.
	cursor int
	draft  string

	line string
	done bool
	err  error
}

func newEditorModel(prompt string, theme Theme, history []string) editorModel {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.PromptStyle = theme.Prompt
	ti.TextStyle = theme.Input
	ti.CharLimit = 4096
	ti.Focus()

	return editorModel{
		input:   ti,
		theme:   theme,
		history: history,
		cursor:  len(history),
	}
}

func (m editorModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m editorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.line = m.input.Value()
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC:
			m.err = ErrInterrupted
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlD:
			if m.input.Value() == "" {
				m.err = io.EOF
				m.done = true
				return m, tea.Quit
			}
		case tea.KeyCtrlL:
			return m, tea.ClearScreen
		case tea.KeyUp:
			if m.cursor > 0 {
				if m.cursor == len(m.history) {
					m.draft = m.input.Value()
				}
				m.cursor--
				m.input.SetValue(m.history[m.cursor])
				m.input.CursorEnd()
			}
			return m, nil
		case tea.KeyDown:
			if m.cursor < len(m.history) {
				m.cursor++
				if m.cursor == len(m.history) {
					m.input.SetValue(m.draft)
				} else {
					m.input.SetValue(m.history[m.cursor])
				}
				m.input.CursorEnd()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m editorModel) View() string {
	if m.done {
		// Leave the accepted line on screen without the cursor.
		if m.err != nil {
			return m.theme.Prompt.Render(m.input.Prompt) + "\n"
		}
		return m.theme.Prompt.Render(m.input.Prompt) + m.line + "\n"
	}
	return m.input.View()
}
