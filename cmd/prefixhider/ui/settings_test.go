package ui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	stored   []string
	loadErr  error
	saveErr  error
	notified int
	saved    []string
}

func (f *fakeBackend) Load(context.Context) ([]string, error) {
	return f.stored, f.loadErr
}

func (f *fakeBackend) Save(_ context.Context, text string) (int, error) {
	f.saved = append(f.saved, text)
	return f.notified, f.saveErr
}

func update(t *testing.T, m SettingsModel, msg tea.Msg) (SettingsModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	sm, ok := next.(SettingsModel)
	require.True(t, ok)
	return sm, cmd
}

func TestSettingsLoadFillsEditor(t *testing.T) {
	m := NewSettingsModel(&fakeBackend{}, NewStyles(LightTheme()))
	m, _ = update(t, m, loadedMsg{list: []string{"team", "proj"}})
	assert.Equal(t, "team\nproj", m.Value())

	status, _ := m.Status()
	assert.Empty(t, status)
}

func TestSettingsLoadFailureIsSticky(t *testing.T) {
	m := NewSettingsModel(&fakeBackend{}, NewStyles(LightTheme()))
	m, cmd := update(t, m, loadedMsg{err: errors.New("disk")})
	assert.Nil(t, cmd, "errors do not schedule a hide")

	status, isErr := m.Status()
	assert.Equal(t, StatusLoadFailed, status)
	assert.True(t, isErr)
}

func TestSettingsSaveFlow(t *testing.T) {
	tests := []struct {
		name     string
		notified int
		saveErr  error
		want     string
		wantErr  bool
	}{
		{"engines reached", 2, nil, StatusSaved, false},
		{"no engines", 0, nil, StatusSavedNoTarget, false},
		{"failure", 0, errors.New("locked"), StatusSaveFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{notified: tt.notified, saveErr: tt.saveErr}
			m := NewSettingsModel(backend, NewStyles(LightTheme()))
			m, _ = update(t, m, loadedMsg{list: []string{"team"}})

			m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
			require.NotNil(t, cmd)
			assert.Contains(t, m.View(), "Saving...")

			msg := cmd()
			require.Equal(t, []string{"team"}, backend.saved)

			m, hide := update(t, m, msg)
			status, isErr := m.Status()
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.wantErr, isErr)
			assert.Equal(t, tt.wantErr, hide == nil, "only success schedules a hide")
		})
	}
}

func TestSettingsHideOnlyClearsLatestStatus(t *testing.T) {
	m := NewSettingsModel(&fakeBackend{}, NewStyles(LightTheme()))

	m, _ = update(t, m, savedMsg{notified: 1})
	first := m.statusSeq
	m, _ = update(t, m, savedMsg{notified: 0})

	m, _ = update(t, m, hideStatusMsg{seq: first})
	status, _ := m.Status()
	assert.Equal(t, StatusSavedNoTarget, status, "a stale hide leaves the newer status")

	m, _ = update(t, m, hideStatusMsg{seq: m.statusSeq})
	status, _ = m.Status()
	assert.Empty(t, status)
}

func TestSettingsIgnoresSaveWhileSaving(t *testing.T) {
	m := NewSettingsModel(&fakeBackend{}, NewStyles(LightTheme()))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Nil(t, cmd)
}

func TestSettingsEscQuits(t *testing.T) {
	m := NewSettingsModel(&fakeBackend{}, NewStyles(LightTheme()))
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("PREFIXHIDER_DARK_MODE", "1")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme when PREFIXHIDER_DARK_MODE=1")
	}

	t.Setenv("PREFIXHIDER_DARK_MODE", "")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme when PREFIXHIDER_DARK_MODE is unset")
	}

	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme for a black background")
	}
}
