package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/pomodash/internal/store"
)

type settingsModel struct {
	ctx    context.Context
	store  *store.Store
	width  int
	height int

	settings   store.Settings
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	focusMinutes *string
	breakMinutes *string
	perCycle     *string
	dailyGoal    *string
}

func newSettingsModel(ctx context.Context, s *store.Store) settingsModel {
	fm, bm, pc, dg := "", "", "", ""
	return settingsModel{
		ctx:          ctx,
		store:        s,
		settings:     store.DefaultSettings(),
		focusMinutes: &fm,
		breakMinutes: &bm,
		perCycle:     &pc,
		dailyGoal:    &dg,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings store.Settings
}

func (s settingsModel) refresh() tea.Cmd {
	ctx, st := s.ctx, s.store
	return func() tea.Msg {
		settings, err := st.GetSettings(ctx)
		if err != nil {
			return statusMsg{text: "Loading settings failed: " + err.Error(), isError: true}
		}
		return settingsDataMsg{settings: settings}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case settingsDataMsg:
		s.settings = msg.settings
		return s, nil
	case settingsSavedMsg:
		s.settings = msg.settings
		return s, nil
	}

	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Edit):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.focusMinutes = strconv.Itoa(s.settings.FocusMinutes)
	*s.breakMinutes = strconv.Itoa(s.settings.BreakMinutes)
	*s.perCycle = strconv.Itoa(s.settings.SessionsPerCycle)
	*s.dailyGoal = strconv.Itoa(s.settings.DailyGoalSessions)

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Focus (min)").Value(s.focusMinutes).Validate(validatePositive),
			huh.NewInput().Title("Break (min)").Value(s.breakMinutes).Validate(validatePositive),
			huh.NewInput().Title("Sessions per cycle").Value(s.perCycle).Validate(validatePositive),
			huh.NewInput().Title("Daily goal (sessions)").Value(s.dailyGoal).Validate(validatePositive),
		).Title("Pomodoro"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		s.form = nil
		return s, s.saveSettings(s.formValues())
	}

	return s, cmd
}

// formValues reads the validated form back into Settings.
func (s settingsModel) formValues() store.Settings {
	atoi := func(v string, fallback int) int {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			return fallback
		}
		return n
	}
	return store.Settings{
		FocusMinutes:      atoi(*s.focusMinutes, s.settings.FocusMinutes),
		BreakMinutes:      atoi(*s.breakMinutes, s.settings.BreakMinutes),
		SessionsPerCycle:  atoi(*s.perCycle, s.settings.SessionsPerCycle),
		DailyGoalSessions: atoi(*s.dailyGoal, s.settings.DailyGoalSessions),
	}
}

func (s settingsModel) saveSettings(settings store.Settings) tea.Cmd {
	ctx, st := s.ctx, s.store
	return func() tea.Msg {
		if err := st.SaveSettings(ctx, settings); err != nil {
			return statusMsg{text: "Saving settings failed: " + err.Error(), isError: true}
		}
		return settingsSavedMsg{settings: settings}
	}
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Settings")

	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	rows := []string{title, ""}
	for _, kv := range []struct {
		label string
		value string
	}{
		{"Focus", fmt.Sprintf("%d min", s.settings.FocusMinutes)},
		{"Break", fmt.Sprintf("%d min", s.settings.BreakMinutes)},
		{"Sessions per cycle", strconv.Itoa(s.settings.SessionsPerCycle)},
		{"Daily goal", fmt.Sprintf("%d sessions", s.settings.DailyGoalSessions)},
	} {
		label := lipgloss.NewStyle().Width(24).Render(kv.label)
		rows = append(rows, fmt.Sprintf("  %s %s", label, highlightStyle.Render(kv.value)))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("Press enter to edit settings"))
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
