package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	progressbar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/sadopc/pomodash/internal/progress"
	"github.com/sadopc/pomodash/internal/store"
)

// targetsModel lists tag-based minute targets.
type targetsModel struct {
	ctx    context.Context
	store  *store.Store
	engine *progress.Engine
	logger zerolog.Logger
	width  int
	height int

	targets []store.Target
	cursor  int
	bar     progressbar.Model

	formActive bool
	form       *huh.Form

	formName    *string
	formTags    *string
	formMinutes *string
	formStart   *string

	editing *store.Target
}

func newTargetsModel(ctx context.Context, s *store.Store, e *progress.Engine, logger zerolog.Logger) targetsModel {
	name, tags, minutes, start := "", "", "", ""
	return targetsModel{
		ctx:         ctx,
		store:       s,
		engine:      e,
		logger:      logger,
		bar:         progressbar.New(progressbar.WithSolidFill(string(colorBreak)), progressbar.WithWidth(24)),
		formName:    &name,
		formTags:    &tags,
		formMinutes: &minutes,
		formStart:   &start,
	}
}

func (t *targetsModel) setSize(w, h int) {
	t.width = w
	t.height = h
}

type targetsDataMsg struct {
	targets []store.Target
	status  string
	err     error
}

func (t targetsModel) refresh() tea.Cmd {
	ctx, s := t.ctx, t.store
	return func() tea.Msg {
		targets, err := s.ListTargets(ctx)
		return targetsDataMsg{targets: targets, err: err}
	}
}

func (t targetsModel) update(msg tea.Msg) (targetsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case targetsDataMsg:
		if msg.err != nil {
			return t, statusCmd("Loading targets failed: "+msg.err.Error(), true)
		}
		t.targets = msg.targets
		if t.cursor >= len(t.targets) {
			t.cursor = max(0, len(t.targets)-1)
		}
		if msg.status != "" {
			return t, statusCmd(msg.status, false)
		}
		return t, nil
	}

	if t.formActive && t.form != nil {
		return t.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if t.cursor > 0 {
				t.cursor--
			}
		case key.Matches(msg, keys.Down):
			if t.cursor < len(t.targets)-1 {
				t.cursor++
			}
		case key.Matches(msg, keys.New):
			return t.showForm(nil)
		case key.Matches(msg, keys.Edit), key.Matches(msg, keys.Enter):
			if len(t.targets) > 0 {
				tg := t.targets[t.cursor]
				return t.showForm(&tg)
			}
		case key.Matches(msg, keys.Delete):
			if len(t.targets) > 0 {
				return t, t.deleteTarget(t.targets[t.cursor].ID)
			}
		}
	}
	return t, nil
}

func (t targetsModel) showForm(tg *store.Target) (targetsModel, tea.Cmd) {
	t.editing = tg
	*t.formName, *t.formTags, *t.formMinutes, *t.formStart = "", "", "", ""
	if tg != nil {
		*t.formName = tg.Name
		*t.formTags = strings.Join(tg.Tags, ", ")
		*t.formMinutes = fmt.Sprintf("%d", tg.TargetMinutes)
		*t.formStart = datePtr(tg.StartDate)
	}

	t.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Target name").Value(t.formName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),
			huh.NewInput().Title("Tags (comma-separated)").Value(t.formTags).
				Validate(func(s string) error {
					if len(parseTags(s)) == 0 {
						return fmt.Errorf("at least one tag is required")
					}
					return nil
				}),
			huh.NewInput().Title("Target minutes").Value(t.formMinutes).Validate(validatePositive),
			huh.NewInput().Title("Count from (YYYY-MM-DD, blank = creation)").Value(t.formStart).Validate(validateOptionalDate),
		),
	).WithShowHelp(true).WithShowErrors(true)

	t.formActive = true
	return t, t.form.Init()
}

func (t targetsModel) updateForm(msg tea.Msg) (targetsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			t.formActive = false
			t.form = nil
			return t, nil
		}
	}

	form, cmd := t.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		t.form = f
	}

	if t.form.State == huh.StateCompleted {
		t.formActive = false
		t.form = nil
		return t, t.saveTarget()
	}

	return t, cmd
}

func (t targetsModel) saveTarget() tea.Cmd {
	var tg store.Target
	if t.editing != nil {
		tg = *t.editing
	}
	tg.Name = strings.TrimSpace(*t.formName)
	tg.Tags = parseTags(*t.formTags)
	if minutes, err := parseOptionalInt(*t.formMinutes); err == nil && minutes != nil {
		tg.TargetMinutes = *minutes
	}
	tg.StartDate, _ = parseOptionalDate(*t.formStart)

	ctx, s, e := t.ctx, t.store, t.engine
	creating := t.editing == nil
	return t.mutate(func() (string, error) {
		id := tg.ID
		if creating {
			created, err := s.CreateTarget(ctx, tg)
			if err != nil || created == nil {
				return "", err
			}
			id = created.ID
		} else if err := s.UpdateTarget(ctx, &tg); err != nil {
			return "", err
		}
		if _, err := e.RecalculateTarget(ctx, id); err != nil {
			return "", err
		}
		return "Target saved", nil
	})
}

func (t targetsModel) deleteTarget(id string) tea.Cmd {
	ctx, s := t.ctx, t.store
	return t.mutate(func() (string, error) {
		return "Target deleted", s.DeleteTarget(ctx, id)
	})
}

func (t targetsModel) mutate(op func() (string, error)) tea.Cmd {
	ctx, s, logger := t.ctx, t.store, t.logger
	return func() tea.Msg {
		status, err := op()
		if err != nil {
			logger.Warn().Err(err).Msg("target write failed")
			return statusMsg{text: err.Error(), isError: true}
		}
		targets, err := s.ListTargets(ctx)
		return targetsDataMsg{targets: targets, status: status, err: err}
	}
}

func (t targetsModel) view() string {
	w := t.width - 4

	if t.formActive && t.form != nil {
		title := titleStyle.Render("New Target")
		if t.editing != nil {
			title = titleStyle.Render("Edit Target")
		}
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", t.form.View()))
	}

	title := titleStyle.Render("Targets")
	if len(t.targets) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No targets yet. Press n to track minutes by tag."),
		))
	}

	nameWidth := max(w-64, 12)
	rows := []string{title, ""}
	for i, tg := range t.targets {
		cursor := "  "
		style := normalItemStyle
		if i == t.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		done := ""
		if tg.CompletedAt != nil {
			done = successStyle.Render(" ✓")
		}
		rows = append(rows, fmt.Sprintf("%s%s %s %s %s%s",
			cursor,
			style.Render(padRight(tg.Name, nameWidth)),
			t.bar.ViewAs(ratio(tg.ProgressMinutes, tg.TargetMinutes)),
			mutedStyle.Render(fmt.Sprintf("%5d/%-5d min", tg.ProgressMinutes, tg.TargetMinutes)),
			highlightStyle.Render(truncate("#"+strings.Join(tg.Tags, " #"), 20)),
			done,
		))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  e: edit  d: delete"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
