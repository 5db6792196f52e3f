package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
)

// StatusHideDelay is how long a success message stays on screen.
const StatusHideDelay = 2 * time.Second

// Status messages shown by the settings form.
const (
	StatusSaved         = "Saved!"
	StatusSavedNoTarget = "Saved. No running engine was reached; changes apply when one starts."
	StatusSaveFailed    = "Failed to save. Please try again."
	StatusLoadFailed    = "Failed to load settings."
)

// SettingsBackend is what the form needs from the prefix store.
type SettingsBackend interface {
	Load(ctx context.Context) ([]string, error)
	// Save persists text and notifies running engines, returning how many acknowledged.
	Save(ctx context.Context, text string) (notified int, err error)
}

type loadedMsg struct {
	list []string
	err  error
}

type savedMsg struct {
	notified int
	err      error
}

type hideStatusMsg struct{ seq int }

// SettingsModel is the bubbletea model of the prefix settings form.
type SettingsModel struct {
	backend SettingsBackend
	styles  Styles
	editor  textarea.Model

	status      string
	statusError bool
	statusSeq   int
	saving      bool
	hideDelay   time.Duration
}

// NewSettingsModel creates the form. The editor is filled once Init's load completes.
func NewSettingsModel(backend SettingsBackend, styles Styles) SettingsModel {
	ta := textarea.New()
	ta.Placeholder = "One prefix per line"
	ta.ShowLineNumbers = false
	ta.SetWidth(48)
	ta.SetHeight(10)
	ta.Focus()

	return SettingsModel{
		backend:   backend,
		styles:    styles,
		editor:    ta,
		hideDelay: StatusHideDelay,
	}
}

// Init loads the stored prefixes.
func (m SettingsModel) Init() tea.Cmd {
	backend := m.backend
	return tea.Batch(textarea.Blink, func() tea.Msg {
		list, err := backend.Load(context.Background())
		return loadedMsg{list: list, err: err}
	})
}

// Update handles key presses and async results.
func (m SettingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlS:
			return m.save()
		}

	case loadedMsg:
		if msg.err != nil {
			return m.showStatus(StatusLoadFailed, true)
		}
		m.editor.SetValue(strings.Join(msg.list, "\n"))
		return m, nil

	case savedMsg:
		m.saving = false
		switch {
		case msg.err != nil:
			return m.showStatus(StatusSaveFailed, true)
		case msg.notified == 0:
			return m.showStatus(StatusSavedNoTarget, false)
		default:
			return m.showStatus(StatusSaved, false)
		}

	case hideStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m SettingsModel) save() (tea.Model, tea.Cmd) {
	if m.saving {
		return m, nil
	}
	m.saving = true
	backend, text := m.backend, m.editor.Value()
	return m, func() tea.Msg {
		n, err := backend.Save(context.Background(), text)
		return savedMsg{notified: n, err: err}
	}
}

// showStatus replaces the status line. Success messages clear after hideDelay;
// errors stay until replaced.
func (m SettingsModel) showStatus(text string, isError bool) (tea.Model, tea.Cmd) {
	m.statusSeq++
	m.status = text
	m.statusError = isError
	if isError {
		return m, nil
	}
	seq := m.statusSeq
	return m, tea.Tick(m.hideDelay, func(time.Time) tea.Msg { return hideStatusMsg{seq: seq} })
}

// Status returns the current status line and whether it is an error.
func (m SettingsModel) Status() (string, bool) {
	return m.status, m.statusError
}

// Value returns the editor contents.
func (m SettingsModel) Value() string {
	return m.editor.Value()
}

// View renders the form.
func (m SettingsModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Channel prefixes to hide"))
	b.WriteString("\n")
	b.WriteString(m.styles.Editor.Render(m.editor.View()))
	b.WriteString("\n")

	switch {
	case m.saving:
		b.WriteString(m.styles.Muted.Render("Saving..."))
	case m.status != "" && m.statusError:
		b.WriteString(m.styles.Error.Render(m.status))
	case m.status != "":
		b.WriteString(m.styles.Success.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Footer.Render(fmt.Sprintf("%s save  %s quit", "ctrl+s", "esc")))
	return b.String()
}
