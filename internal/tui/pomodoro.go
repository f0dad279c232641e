package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/pomodash/internal/session"
	"github.com/sadopc/pomodash/internal/timer"
)

// completionModel is the dialog shown when a phase ends. After focus phases
// it carries an optional comment field.
type completionModel struct {
	comp *session.Completion
	form *huh.Form

	// Form field pointer (survives value copies)
	comment *string
}

func newCompletionModel() completionModel {
	c := ""
	return completionModel{comment: &c}
}

func (c completionModel) active() bool { return c.comp != nil }

func (c completionModel) open(comp *session.Completion) (completionModel, tea.Cmd) {
	c.comp = comp
	*c.comment = ""
	c.form = nil
	if !comp.AllowComment {
		return c, nil
	}
	c.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("What did you get done? (optional)").
				CharLimit(200).
				Value(c.comment),
		),
	).WithShowHelp(false)
	return c, c.form.Init()
}

// update feeds msg to the dialog. The bool reports that the user continued;
// the comment is then available from text.
func (c completionModel) update(msg tea.Msg) (completionModel, tea.Cmd, bool) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case km.String() == "esc":
			// Continue without a comment.
			*c.comment = ""
			return c.close(), nil, true
		case c.form == nil && key.Matches(km, keys.Enter):
			return c.close(), nil, true
		}
	}
	if c.form == nil {
		return c, nil, false
	}

	form, cmd := c.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		c.form = f
	}
	switch c.form.State {
	case huh.StateCompleted:
		return c.close(), nil, true
	case huh.StateAborted:
		*c.comment = ""
		return c.close(), nil, true
	}
	return c, cmd, false
}

func (c completionModel) close() completionModel {
	c.comp = nil
	c.form = nil
	return c
}

func (c completionModel) text() string {
	return strings.TrimSpace(*c.comment)
}

func (c completionModel) view(w int) string {
	if c.comp == nil {
		return ""
	}
	comp := c.comp

	headline := accentStyle.Bold(true).Render(comp.Message())
	if comp.Mode == timer.Break {
		headline = breakClockStyle.Render(comp.Message())
	}

	rows := []string{headline, ""}
	if comp.Mode == timer.Focus {
		rows = append(rows, mutedStyle.Render(fmt.Sprintf("+%d focus minutes", comp.Minutes)))
	}
	if comp.Task != nil {
		label := "Worked on"
		if comp.Mode == timer.Break {
			label = "Up next"
		}
		rows = append(rows, fmt.Sprintf("%s %s", mutedStyle.Render(label+":"), highlightStyle.Render(truncate(comp.Task.Text, w-16))))
	}
	rows = append(rows, "")

	if c.form != nil {
		rows = append(rows, c.form.View(), "")
		rows = append(rows, mutedStyle.Render("enter: continue  esc: continue without comment"))
	} else {
		next := "focus"
		if comp.NextMode == timer.Break {
			next = "break"
		}
		rows = append(rows, mutedStyle.Render("enter: start "+next))
	}

	return dialogStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderSessionDots draws the position within the cycle.
func renderSessionDots(st timer.State, perCycle int) string {
	var parts []string
	for i := 1; i <= perCycle; i++ {
		switch {
		case i < st.CurrentSession, i == st.CurrentSession && st.Mode == timer.Break:
			parts = append(parts, successStyle.Render("●"))
		case i == st.CurrentSession:
			parts = append(parts, accentStyle.Render("◐"))
		default:
			parts = append(parts, mutedStyle.Render("○"))
		}
	}
	counter := mutedStyle.Render(fmt.Sprintf("  %d/%d", st.CurrentSession, perCycle))
	return strings.Join(parts, " ") + counter
}
