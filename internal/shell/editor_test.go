package shell

import (
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func press(m editorModel, msgs ...tea.Msg) editorModel {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(editorModel)
	}
	return m
}

func typed(s string) tea.Msg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testTheme() Theme {
	return NewDefaultTheme(lipgloss.NewRenderer(io.Discard))
}

func TestEditorEnter(t *testing.T) {
	m := newEditorModel(Prompt, testTheme(), nil)
	m = press(m, typed("map"), tea.KeyMsg{Type: tea.KeyEnter})

	assert.True(t, m.done)
	assert.NoError(t, m.err)
	assert.Equal(t, "map", m.line)
	assert.Equal(t, "halyard> map\n", m.View())
}

func TestEditorInterruptAndEOF(t *testing.T) {
	m := press(newEditorModel(Prompt, testTheme(), nil), tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.ErrorIs(t, m.err, ErrInterrupted)

	m = press(newEditorModel(Prompt, testTheme(), nil), tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.ErrorIs(t, m.err, io.EOF)

	// Ctrl-D on a non-empty line does not end input.
	m = press(newEditorModel(Prompt, testTheme(), nil), typed("ma"), tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.NoError(t, m.err)
	assert.False(t, m.done)
}

func TestEditorHistoryRecall(t *testing.T) {
	m := newEditorModel(Prompt, testTheme(), []string{"manifest", "map"})
	m = press(m, typed("read"))

	m = press(m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "map", m.input.Value())
	m = press(m, tea.KeyMsg{Type: tea.KeyUp}, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "manifest", m.input.Value())

	m = press(m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "map", m.input.Value())
	m = press(m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "read", m.input.Value())
}

func TestEditorRemember(t *testing.T) {
	e := NewEditor(nil, io.Discard, Prompt, testTheme(), []string{"a", "b", "b", "", "c"}, 2)
	assert.Equal(t, []string{"b", "c"}, e.history)

	e.remember("c")
	e.remember("d")
	assert.Equal(t, []string{"c", "d"}, e.history)
}
