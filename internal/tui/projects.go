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

type projectsModel struct {
	ctx    context.Context
	store  *store.Store
	engine *progress.Engine
	logger zerolog.Logger
	width  int
	height int

	projects     []store.Project
	tasks        []store.Task
	cursor       int
	taskCursor   int
	viewingTasks bool // true = viewing tasks of selected project

	bar progressbar.Model

	formActive bool
	form       *huh.Form

	// Form field pointers (survive value copies)
	formName     *string
	formCriteria *string
	formValue    *string
	formDeadline *string

	editing *store.Project
}

func newProjectsModel(ctx context.Context, s *store.Store, e *progress.Engine, logger zerolog.Logger) projectsModel {
	name, criteria, value, deadline := "", store.CriteriaTaskCount, "", ""
	return projectsModel{
		ctx:          ctx,
		store:        s,
		engine:       e,
		logger:       logger,
		bar:          progressbar.New(progressbar.WithDefaultGradient(), progressbar.WithWidth(20)),
		formName:     &name,
		formCriteria: &criteria,
		formValue:    &value,
		formDeadline: &deadline,
	}
}

func (p *projectsModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

type projectsDataMsg struct {
	projects []store.Project
	status   string
	err      error
}

type projectTasksMsg struct {
	tasks []store.Task
}

func (p projectsModel) refresh() tea.Cmd {
	ctx, s := p.ctx, p.store
	return func() tea.Msg {
		projects, err := s.ListProjects(ctx)
		return projectsDataMsg{projects: projects, err: err}
	}
}

func (p projectsModel) refreshTasks() tea.Cmd {
	if p.cursor >= len(p.projects) {
		return nil
	}
	ctx, s, pid := p.ctx, p.store, p.projects[p.cursor].ID
	return func() tea.Msg {
		tasks, _ := s.ListProjectTasks(ctx, pid)
		return projectTasksMsg{tasks: tasks}
	}
}

func (p projectsModel) update(msg tea.Msg) (projectsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case projectsDataMsg:
		if msg.err != nil {
			return p, statusCmd("Loading projects failed: "+msg.err.Error(), true)
		}
		p.projects = msg.projects
		if p.cursor >= len(p.projects) {
			p.cursor = max(0, len(p.projects)-1)
		}
		if msg.status != "" {
			return p, statusCmd(msg.status, false)
		}
		return p, nil

	case projectTasksMsg:
		p.tasks = msg.tasks
		if p.taskCursor >= len(p.tasks) {
			p.taskCursor = max(0, len(p.tasks)-1)
		}
		return p, nil
	}

	if p.formActive && p.form != nil {
		return p.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if p.viewingTasks {
			return p.updateTaskView(msg)
		}
		return p.updateProjectList(msg)
	}
	return p, nil
}

func (p projectsModel) updateProjectList(msg tea.KeyMsg) (projectsModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(msg, keys.Down):
		if p.cursor < len(p.projects)-1 {
			p.cursor++
		}
	case key.Matches(msg, keys.Enter):
		if len(p.projects) > 0 {
			p.viewingTasks = true
			p.taskCursor = 0
			return p, p.refreshTasks()
		}
	case key.Matches(msg, keys.New):
		return p.showForm(nil)
	case key.Matches(msg, keys.Edit):
		if len(p.projects) > 0 {
			proj := p.projects[p.cursor]
			return p.showForm(&proj)
		}
	case key.Matches(msg, keys.Delete):
		if len(p.projects) > 0 {
			return p, p.deleteProject(p.projects[p.cursor].ID)
		}
	case key.Matches(msg, keys.Done):
		if len(p.projects) > 0 && p.projects[p.cursor].CriteriaType == store.CriteriaManual {
			return p, p.toggleManual(p.projects[p.cursor])
		}
	}
	return p, nil
}

func (p projectsModel) updateTaskView(msg tea.KeyMsg) (projectsModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		p.viewingTasks = false
		return p, nil
	case key.Matches(msg, keys.Up):
		if p.taskCursor > 0 {
			p.taskCursor--
		}
	case key.Matches(msg, keys.Down):
		if p.taskCursor < len(p.tasks)-1 {
			p.taskCursor++
		}
	}
	return p, nil
}

func (p projectsModel) showForm(proj *store.Project) (projectsModel, tea.Cmd) {
	p.editing = proj
	*p.formName, *p.formCriteria, *p.formValue, *p.formDeadline = "", store.CriteriaTaskCount, "", ""
	if proj != nil {
		*p.formName = proj.Name
		*p.formCriteria = proj.CriteriaType
		*p.formValue = itoaPtr(proj.CriteriaValue)
		*p.formDeadline = datePtr(proj.Deadline)
	}

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Project name").Value(p.formName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),
			huh.NewSelect[string]().Title("Completion criteria").
				Options(
					huh.NewOption("Completed tasks", store.CriteriaTaskCount),
					huh.NewOption("Focus minutes", store.CriteriaDurationMinutes),
					huh.NewOption("Manual", store.CriteriaManual),
				).Value(p.formCriteria),
			huh.NewInput().Title("Threshold (tasks or minutes, blank for manual)").Value(p.formValue).Validate(validateOptionalInt),
			huh.NewInput().Title("Deadline (YYYY-MM-DD)").Value(p.formDeadline).Validate(validateOptionalDate),
		),
	).WithShowHelp(true).WithShowErrors(true)

	p.formActive = true
	return p, p.form.Init()
}

func (p projectsModel) updateForm(msg tea.Msg) (projectsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			p.formActive = false
			p.form = nil
			return p, nil
		}
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	if p.form.State == huh.StateCompleted {
		p.formActive = false
		p.form = nil
		return p, p.saveProject()
	}

	return p, cmd
}

func (p projectsModel) saveProject() tea.Cmd {
	var proj store.Project
	if p.editing != nil {
		proj = *p.editing
	}
	proj.Name = strings.TrimSpace(*p.formName)
	proj.CriteriaType = *p.formCriteria
	proj.CriteriaValue, _ = parseOptionalInt(*p.formValue)
	if proj.CriteriaType == store.CriteriaManual {
		proj.CriteriaValue = nil
	}
	proj.Deadline, _ = parseOptionalDate(*p.formDeadline)

	ctx, s, e := p.ctx, p.store, p.engine
	creating := p.editing == nil
	return p.mutate(func() (string, error) {
		id := proj.ID
		if creating {
			created, err := s.CreateProject(ctx, proj)
			if err != nil || created == nil {
				return "", err
			}
			id = created.ID
		} else if err := s.UpdateProject(ctx, &proj); err != nil {
			return "", err
		}
		if _, err := e.RecalculateProject(ctx, id); err != nil {
			return "", err
		}
		return "Project saved", nil
	})
}

// toggleManual flips a manual project between active and completed.
func (p projectsModel) toggleManual(proj store.Project) tea.Cmd {
	if proj.Status == store.StatusCompleted {
		proj.Status = store.StatusActive
		proj.CompletedAt = nil
	} else {
		proj.Status = store.StatusCompleted
		proj.CompletedAt = store.TimePtr(timeNow())
	}
	ctx, s := p.ctx, p.store
	return p.mutate(func() (string, error) {
		return "Project updated", s.UpdateProject(ctx, &proj)
	})
}

func (p projectsModel) deleteProject(id string) tea.Cmd {
	ctx, s := p.ctx, p.store
	return p.mutate(func() (string, error) {
		return "Project deleted", s.DeleteProject(ctx, id)
	})
}

// mutate runs op off the event loop and reloads the project list.
func (p projectsModel) mutate(op func() (string, error)) tea.Cmd {
	ctx, s, logger := p.ctx, p.store, p.logger
	return func() tea.Msg {
		status, err := op()
		if err != nil {
			logger.Warn().Err(err).Msg("project write failed")
			return statusMsg{text: err.Error(), isError: true}
		}
		projects, err := s.ListProjects(ctx)
		return projectsDataMsg{projects: projects, status: status, err: err}
	}
}

func (p projectsModel) view() string {
	w := p.width - 4

	if p.formActive && p.form != nil {
		title := titleStyle.Render("New Project")
		if p.editing != nil {
			title = titleStyle.Render("Edit Project")
		}
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", p.form.View()))
	}

	if p.viewingTasks && p.cursor < len(p.projects) {
		return p.renderTaskView(w)
	}
	return p.renderProjectList(w)
}

func (p projectsModel) renderProjectList(w int) string {
	title := titleStyle.Render("Projects")
	if len(p.projects) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No projects yet. Press n to create one."),
		))
	}

	nameWidth := max(w-60, 12)
	rows := []string{title, ""}
	for i, proj := range p.projects {
		cursor := "  "
		style := normalItemStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedItemStyle
		}

		var bar, amount string
		switch {
		case proj.CriteriaType == store.CriteriaManual:
			bar = padRight("", p.bar.Width)
			amount = "manual"
		case proj.CriteriaValue == nil:
			bar = p.bar.ViewAs(0)
			amount = fmt.Sprintf("%d", proj.ProgressValue)
		default:
			bar = p.bar.ViewAs(ratio(proj.ProgressValue, *proj.CriteriaValue))
			unit := "tasks"
			if proj.CriteriaType == store.CriteriaDurationMinutes {
				unit = "min"
			}
			amount = fmt.Sprintf("%d/%d %s", proj.ProgressValue, *proj.CriteriaValue, unit)
		}

		deadline := ""
		if proj.Deadline != nil {
			deadline = mutedStyle.Render(" due " + datePtr(proj.Deadline))
		}

		rows = append(rows, fmt.Sprintf("%s%s %s %s %s%s",
			cursor,
			style.Render(padRight(proj.Name, nameWidth)),
			bar,
			mutedStyle.Render(fmt.Sprintf("%-14s", amount)),
			statusStyle(proj.Status).Render(fmt.Sprintf("%-9s", proj.Status)),
			deadline,
		))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  e: edit  d: delete  c: complete (manual)  enter: tasks"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (p projectsModel) renderTaskView(w int) string {
	proj := p.projects[p.cursor]
	title := titleStyle.Render(proj.Name) + mutedStyle.Render(" › tasks")

	rows := []string{title, ""}
	if len(p.tasks) == 0 {
		rows = append(rows, mutedStyle.Render("  No tasks in this project."))
	}
	for i, t := range p.tasks {
		cursor := "  "
		style := normalItemStyle
		if i == p.taskCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		if t.Done() {
			style = doneItemStyle
		}
		rows = append(rows, cursor+style.Render(padRight(t.Text, max(w-20, 12)))+
			mutedStyle.Render(fmt.Sprintf(" %d poms", t.CompletedPoms)))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  esc: back"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
