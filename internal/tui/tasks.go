package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/sadopc/pomodash/internal/progress"
	"github.com/sadopc/pomodash/internal/session"
	"github.com/sadopc/pomodash/internal/store"
)

// taskForm holds the huh field values (pointers survive value copies).
type taskForm struct {
	text      *string
	totalPoms *string
	tags      *string
	projectID *string
	focus     *string
	brk       *string
	due       *string
}

func newTaskForm() taskForm {
	var a, b, c, d, e, f, g string
	return taskForm{text: &a, totalPoms: &b, tags: &c, projectID: &d, focus: &e, brk: &f, due: &g}
}

func (f taskForm) reset(t *store.Task) {
	*f.text, *f.totalPoms, *f.tags, *f.projectID, *f.focus, *f.brk, *f.due = "", "", "", "", "", "", ""
	if t == nil {
		*f.totalPoms = "1"
		return
	}
	*f.text = t.Text
	*f.totalPoms = itoaPtr(t.TotalPoms)
	*f.tags = strings.Join(t.Tags, ", ")
	if t.ProjectID != nil {
		*f.projectID = *t.ProjectID
	}
	*f.focus = itoaPtr(t.CustomFocusMinutes)
	*f.brk = itoaPtr(t.CustomBreakMinutes)
	*f.due = datePtr(t.DueDate)
}

// apply copies the form into t. Inputs were validated by the form.
func (f taskForm) apply(t *store.Task) {
	t.Text = strings.TrimSpace(*f.text)
	t.TotalPoms, _ = parseOptionalInt(*f.totalPoms)
	t.Tags = parseTags(*f.tags)
	t.ProjectID = nil
	if *f.projectID != "" {
		t.ProjectID = store.StringPtr(*f.projectID)
	}
	t.CustomFocusMinutes, _ = parseOptionalInt(*f.focus)
	t.CustomBreakMinutes, _ = parseOptionalInt(*f.brk)
	t.DueDate, _ = parseOptionalDate(*f.due)
}

// tasksModel lists the task queue. Rows come from the session cache so the
// optimistic pomodoro counts show up immediately.
type tasksModel struct {
	ctx     context.Context
	store   *store.Store
	engine  *progress.Engine
	session *session.Coordinator
	logger  zerolog.Logger
	width   int
	height  int

	cursor int

	formActive bool
	form       *huh.Form
	fields     taskForm
	editing    *store.Task
}

func newTasksModel(ctx context.Context, s *store.Store, e *progress.Engine, c *session.Coordinator, logger zerolog.Logger) tasksModel {
	return tasksModel{
		ctx:     ctx,
		store:   s,
		engine:  e,
		session: c,
		logger:  logger,
		fields:  newTaskForm(),
	}
}

func (m *tasksModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m tasksModel) tasks() []store.Task { return m.session.Tasks() }

func (m tasksModel) update(msg tea.Msg) (tasksModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tasksChangedMsg:
		if m.cursor >= len(msg.tasks) {
			m.cursor = max(0, len(msg.tasks)-1)
		}
		return m, nil
	}

	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		tasks := m.tasks()
		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(tasks)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.New):
			return m.showForm(nil)
		case key.Matches(msg, keys.Edit), key.Matches(msg, keys.Enter):
			if len(tasks) > 0 {
				t := tasks[m.cursor].Clone()
				return m.showForm(&t)
			}
		case key.Matches(msg, keys.Delete):
			if len(tasks) > 0 {
				return m, m.deleteTask(tasks[m.cursor].Clone())
			}
		case key.Matches(msg, keys.Done):
			if len(tasks) > 0 {
				return m, m.toggleDone(tasks[m.cursor].Clone())
			}
		case key.Matches(msg, keys.MoveUp):
			if m.cursor > 0 {
				m.cursor--
				return m, m.swap(m.cursor, m.cursor+1)
			}
		case key.Matches(msg, keys.MoveDown):
			if m.cursor < len(tasks)-1 {
				m.cursor++
				return m, m.swap(m.cursor-1, m.cursor)
			}
		}
	}
	return m, nil
}

func (m tasksModel) showForm(t *store.Task) (tasksModel, tea.Cmd) {
	m.editing = t
	m.fields.reset(t)

	projectOptions := []huh.Option[string]{huh.NewOption("(none)", "")}
	if projects, err := m.store.ListProjects(m.ctx); err == nil {
		for _, p := range projects {
			projectOptions = append(projectOptions, huh.NewOption(p.Name, p.ID))
		}
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Task").Value(m.fields.text).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("task text is required")
					}
					return nil
				}),
			huh.NewInput().Title("Pomodoros (blank = open-ended)").Value(m.fields.totalPoms).Validate(validateOptionalInt),
			huh.NewInput().Title("Tags (comma-separated)").Value(m.fields.tags),
			huh.NewSelect[string]().Title("Project").Options(projectOptions...).Value(m.fields.projectID),
		),
		huh.NewGroup(
			huh.NewInput().Title("Focus minutes (blank = default)").Value(m.fields.focus).Validate(validateOptionalInt),
			huh.NewInput().Title("Break minutes (blank = default)").Value(m.fields.brk).Validate(validateOptionalInt),
			huh.NewInput().Title("Due date (YYYY-MM-DD)").Value(m.fields.due).Validate(validateOptionalDate),
		).Title("Optional"),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m tasksModel) updateForm(msg tea.Msg) (tasksModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			m.formActive = false
			m.form = nil
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.formActive = false
		m.form = nil
		return m, m.submit()
	}

	return m, cmd
}

// submit writes the form fields. An edited pomodoro target re-derives
// completion, so raising it reopens a task and lowering it can complete one.
func (m tasksModel) submit() tea.Cmd {
	if m.editing == nil {
		var t store.Task
		m.fields.apply(&t)
		progress.SyncCompletion(&t, timeNow())
		return m.createTask(t)
	}
	before := m.editing.Clone()
	after := before.Clone()
	m.fields.apply(&after)
	progress.SyncCompletion(&after, timeNow())
	return m.saveTask(before, after)
}

func (m tasksModel) createTask(t store.Task) tea.Cmd {
	ctx, s, e := m.ctx, m.store, m.engine
	return m.mutate(func() (string, error) {
		created, err := s.CreateTask(ctx, t)
		if err != nil || created == nil {
			return "", err
		}
		_, err = e.TaskChanged(ctx, nil, created)
		return "Task created", err
	})
}

func (m tasksModel) saveTask(before, after store.Task) tea.Cmd {
	ctx, s, e := m.ctx, m.store, m.engine
	return m.mutate(func() (string, error) {
		if err := s.UpdateTask(ctx, &after); err != nil {
			return "", err
		}
		_, err := e.TaskChanged(ctx, &before, &after)
		return "Task saved", err
	})
}

// toggleDone flips completion. A countdown task is completed by filling its
// pomodoros and reopened by taking one back, so CompletedAt always follows
// the counters.
func (m tasksModel) toggleDone(t store.Task) tea.Cmd {
	before := t.Clone()
	switch {
	case t.Stopwatch() && t.Done():
		t.CompletedAt = nil
	case t.Stopwatch():
		t.CompletedAt = store.TimePtr(timeNow())
	case t.Done():
		t.CompletedPoms = max(min(t.CompletedPoms, *t.TotalPoms-1), 0)
	default:
		t.CompletedPoms = max(t.CompletedPoms, *t.TotalPoms)
	}
	progress.SyncCompletion(&t, timeNow())
	return m.saveTask(before, t)
}

func (m tasksModel) deleteTask(t store.Task) tea.Cmd {
	ctx, s, e := m.ctx, m.store, m.engine
	return m.mutate(func() (string, error) {
		if err := s.DeleteTask(ctx, t.ID); err != nil {
			return "", err
		}
		_, err := e.TaskDeleted(ctx, t)
		return "Task deleted", err
	})
}

func (m tasksModel) swap(i, j int) tea.Cmd {
	tasks := m.tasks()
	ids := make([]string, len(tasks))
	for k, t := range tasks {
		ids[k] = t.ID
	}
	ids[i], ids[j] = ids[j], ids[i]
	ctx, s := m.ctx, m.store
	return m.mutate(func() (string, error) {
		return "", s.ReorderTasks(ctx, ids)
	})
}

// mutate runs op off the event loop and reloads the task list.
func (m tasksModel) mutate(op func() (string, error)) tea.Cmd {
	ctx, s, logger := m.ctx, m.store, m.logger
	return func() tea.Msg {
		status, err := op()
		if err != nil {
			logger.Warn().Err(err).Msg("task write failed")
		}
		tasks, lerr := s.ListTasks(ctx)
		if lerr != nil && err == nil {
			err = lerr
		}
		return tasksChangedMsg{tasks: tasks, status: status, err: err}
	}
}

func (m tasksModel) view() string {
	w := m.width - 4

	if m.formActive && m.form != nil {
		title := titleStyle.Render("New Task")
		if m.editing != nil {
			title = titleStyle.Render("Edit Task")
		}
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View()))
	}

	title := titleStyle.Render("Tasks")
	tasks := m.tasks()
	if len(tasks) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No tasks yet. Press n to create one."),
		))
	}

	current := m.session.CurrentTask()
	nameWidth := max(w-40, 12)

	rows := []string{title, ""}
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("    %s %-9s %s", padRight("Task", nameWidth), "Poms", "Tags")))
	for i, t := range tasks {
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		if t.Done() {
			style = doneItemStyle
		}
		marker := " "
		if current != nil && current.ID == t.ID {
			marker = accentStyle.Render("▶")
		}
		poms := fmt.Sprintf("%d", t.CompletedPoms)
		if t.TotalPoms != nil {
			poms = fmt.Sprintf("%d/%d", t.CompletedPoms, *t.TotalPoms)
		}
		row := cursor + marker + " " + style.Render(padRight(t.Text, nameWidth)) + " " +
			mutedStyle.Render(fmt.Sprintf("%-9s", poms)) + " " +
			mutedStyle.Render(truncate(strings.Join(t.Tags, ", "), 20))
		rows = append(rows, row)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  e: edit  d: delete  c: done  [/]: reorder"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
