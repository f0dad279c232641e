package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	progressbar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/pomodash/internal/session"
	"github.com/sadopc/pomodash/internal/store"
	"github.com/sadopc/pomodash/internal/timer"
)

// timerModel is the main view: countdown, current task, today's totals and
// the completion dialog.
type timerModel struct {
	session *session.Coordinator
	width   int
	height  int

	dialog   completionModel
	phaseBar progressbar.Model
	dayBar   progressbar.Model
}

func newTimerModel(c *session.Coordinator) timerModel {
	return timerModel{
		session:  c,
		dialog:   newCompletionModel(),
		phaseBar: progressbar.New(progressbar.WithSolidFill(string(colorFocus)), progressbar.WithoutPercentage()),
		dayBar:   progressbar.New(progressbar.WithDefaultGradient()),
	}
}

func (t *timerModel) setSize(w, h int) {
	t.width = w
	t.height = h
	barWidth := min(max(w-16, 10), 60)
	t.phaseBar.Width = barWidth
	t.dayBar.Width = barWidth
}

// dialogOpen reports whether the completion dialog is capturing input.
func (t timerModel) dialogOpen() bool { return t.dialog.active() }

func (t timerModel) openDialog(comp *session.Completion) (timerModel, tea.Cmd) {
	var cmd tea.Cmd
	t.dialog, cmd = t.dialog.open(comp)
	return t, cmd
}

// update handles timer keys. A non-nil commit means a focus phase was
// acknowledged and must be persisted.
func (t timerModel) update(msg tea.Msg) (timerModel, tea.Cmd, *session.FocusCommit) {
	if t.dialog.active() {
		var cmd tea.Cmd
		var acked bool
		t.dialog, cmd, acked = t.dialog.update(msg)
		if !acked {
			return t, cmd, nil
		}
		commit, err := t.session.Continue(t.dialog.text())
		if err != nil {
			return t, statusCmd(err.Error(), true), nil
		}
		return t, nil, commit
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return t, nil, nil
	}
	switch {
	case key.Matches(km, keys.Start):
		if err := t.session.Start(); err != nil {
			return t, statusCmd("Timer is already running", false), nil
		}
		return t, statusCmd("Timer started", false), nil
	case key.Matches(km, keys.Pause):
		if t.session.State().IsRunning {
			t.session.Pause()
			return t, statusCmd("Paused", false), nil
		}
		if err := t.session.Start(); err == nil {
			return t, statusCmd("Resumed", false), nil
		}
	case key.Matches(km, keys.Reset):
		t.session.Reset()
		return t, statusCmd("Timer reset", false), nil
	case key.Matches(km, keys.Skip):
		t.session.Skip()
		return t, statusCmd("Skipped to next phase", false), nil
	}
	return t, nil, nil
}

func (t timerModel) view() string {
	w := t.width - 4
	st := t.session.State()
	settings := t.session.Settings()

	title := titleStyle.Render("Pomodoro")

	label, clockStyle := "FOCUS", focusClockStyle
	if st.Mode == timer.Break {
		label, clockStyle = "BREAK", breakClockStyle
	}
	if !st.IsRunning && !st.Pristine() {
		clockStyle = pausedClockStyle
	}
	clock := clockStyle.Width(w - 6).Render(formatClock(st.TimeRemaining))
	phaseLabel := clockStyle.Width(w - 6).Render(label)

	stateLine := mutedStyle.Render("Ready. Press s to start")
	switch {
	case st.IsRunning:
		stateLine = successStyle.Render("● running")
	case !st.Pristine():
		stateLine = warningStyle.Render("⏸ paused")
	}

	elapsed := st.SessionTotalTime - st.TimeRemaining
	phaseProgress := t.phaseBar.ViewAs(ratio(elapsed, st.SessionTotalTime))

	content := lipgloss.JoinVertical(lipgloss.Center,
		title,
		"",
		phaseLabel,
		clock,
		stateLine,
		"",
		phaseProgress,
		renderSessionDots(st, settings.SessionsPerCycle),
	)

	sections := []string{
		lipgloss.NewStyle().Width(w - 6).Align(lipgloss.Center).Render(content),
		"",
		t.renderCurrentTask(w - 6),
		"",
		t.renderToday(settings),
	}
	if t.dialog.active() {
		sections = append(sections, "", t.dialog.view(w-10))
	} else {
		sections = append(sections, "", t.renderRecent(w-6))
		sections = append(sections, "", mutedStyle.Render("s: start  space: pause/resume  r: reset  >: skip"))
	}

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (t timerModel) renderCurrentTask(w int) string {
	task := t.session.CurrentTask()
	if task == nil {
		return mutedStyle.Render("No open tasks. Press 2 to add one.")
	}
	poms := fmt.Sprintf("%d poms", task.CompletedPoms)
	if task.TotalPoms != nil {
		poms = fmt.Sprintf("%d/%d poms", task.CompletedPoms, *task.TotalPoms)
	}
	line := subtitleStyle.Render("Current task: ") + highlightStyle.Render(truncate(task.Text, w-30))
	return line + mutedStyle.Render("  "+poms)
}

func (t timerModel) renderToday(settings store.Settings) string {
	daily := t.session.Daily()
	goal := settings.DailyGoalSessions
	header := fmt.Sprintf("Today  %d/%d sessions  %s focused",
		daily.CompletedSessions, goal, formatMinutes(daily.TotalFocusMinutes))
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(header),
		t.dayBar.ViewAs(ratio(daily.CompletedSessions, goal)),
	)
}

func (t timerModel) renderRecent(w int) string {
	history := t.session.History()
	if len(history) == 0 {
		return mutedStyle.Render("No sessions yet today.")
	}

	names := make(map[string]string)
	for _, task := range t.session.Tasks() {
		names[task.ID] = task.Text
	}

	rows := []string{subtitleStyle.Render("Recent")}
	for i, h := range history {
		if i == 5 {
			break
		}
		name := "(no task)"
		if h.TaskID != nil {
			if n, ok := names[*h.TaskID]; ok {
				name = n
			}
		}
		pending := ""
		if strings.HasPrefix(h.ID, "local-") {
			pending = mutedStyle.Render(" saving…")
		}
		rows = append(rows, fmt.Sprintf("  %s  %s %s%s",
			mutedStyle.Render(h.EndedAt.Local().Format("15:04")),
			padRight(name, max(w-24, 8)),
			accentStyle.Render(fmt.Sprintf("%3dm", h.DurationMinutes)),
			pending,
		))
	}
	return strings.Join(rows, "\n")
}

func statusCmd(text string, isError bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isError: isError}
	}
}
