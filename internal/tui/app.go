package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/sadopc/pomodash/internal/export"
	"github.com/sadopc/pomodash/internal/progress"
	"github.com/sadopc/pomodash/internal/session"
	"github.com/sadopc/pomodash/internal/snapshot"
	"github.com/sadopc/pomodash/internal/store"
	"github.com/sadopc/pomodash/internal/timer"
)

var exportFormats = []export.Format{export.CSV, export.JSON, export.YAML}

// Deps are the collaborators the TUI drives. Session must already be
// hydrated.
type Deps struct {
	Store     *store.Store
	Session   *session.Coordinator
	Engine    *progress.Engine
	Snapshots *snapshot.Store
	// Watch delivers snapshot rewrites from other instances. May be nil.
	Watch        <-chan []byte
	Logger       zerolog.Logger
	TickInterval time.Duration
	// ExportDir defaults to the home directory.
	ExportDir string
}

// App is the root Bubble Tea model.
type App struct {
	ctx       context.Context
	store     *store.Store
	session   *session.Coordinator
	engine    *progress.Engine
	snapshots *snapshot.Store
	watch     <-chan []byte
	logger    zerolog.Logger
	interval  time.Duration
	exportDir string

	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	timer    timerModel
	tasks    tasksModel
	projects projectsModel
	targets  targetsModel
	reports  reportsModel
	settings settingsModel

	help    help.Model
	status  string
	isError bool
}

func NewApp(ctx context.Context, d Deps) App {
	h := help.New()
	h.ShowAll = false

	interval := d.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	logger := d.Logger.With().Str("component", "tui").Logger()

	return App{
		ctx:        ctx,
		store:      d.Store,
		session:    d.Session,
		engine:     d.Engine,
		snapshots:  d.Snapshots,
		watch:      d.Watch,
		logger:     logger,
		interval:   interval,
		exportDir:  d.ExportDir,
		activeView: viewTimer,
		timer:      newTimerModel(d.Session),
		tasks:      newTasksModel(ctx, d.Store, d.Engine, d.Session, logger),
		projects:   newProjectsModel(ctx, d.Store, d.Engine, logger),
		targets:    newTargetsModel(ctx, d.Store, d.Engine, logger),
		reports:    newReportsModel(ctx, d.Store),
		settings:   newSettingsModel(ctx, d.Store),
		help:       h,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(a.interval),
		waitForSnapshot(a.watch),
		a.projects.refresh(),
		a.targets.refresh(),
		a.settings.refresh(),
	)
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForSnapshot blocks for the next external snapshot. It re-arms itself
// from the snapshotMsg handler.
func waitForSnapshot(ch <-chan []byte) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		data, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg{data: data}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.timer.setSize(a.width, contentHeight)
		a.tasks.setSize(a.width, contentHeight)
		a.projects.setSize(a.width, contentHeight)
		a.targets.setSize(a.width, contentHeight)
		a.reports.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a.quit()
		}
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// The completion dialog and forms capture all keys.
		if a.timer.dialogOpen() {
			a.activeView = viewTimer
			return a.updateActiveView(msg)
		}
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a.quit()
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Recalc):
			return a, a.recalculate()
		case key.Matches(msg, keys.Tab1):
			return a.switchTo(viewTimer)
		case key.Matches(msg, keys.Tab2):
			return a.switchTo(viewTasks)
		case key.Matches(msg, keys.Tab3):
			return a.switchTo(viewProjects)
		case key.Matches(msg, keys.Tab4):
			return a.switchTo(viewTargets)
		case key.Matches(msg, keys.Tab5):
			return a.switchTo(viewReports)
		case key.Matches(msg, keys.Tab6):
			return a.switchTo(viewSettings)
		case key.Matches(msg, keys.Tab):
			return a.switchTo((a.activeView + 1) % viewState(len(viewNames)))
		}

	case tickMsg:
		cmds := []tea.Cmd{tickCmd(a.interval)}
		if comp := a.session.Tick(); comp != nil {
			a.activeView = viewTimer
			var cmd tea.Cmd
			a.timer, cmd = a.timer.openDialog(comp)
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)

	case statusMsg:
		a.status = msg.text
		a.isError = msg.isError
		return a, nil

	case persistDoneMsg:
		a.session.Reconcile(msg.res)
		switch {
		case msg.res.RolledBack:
			a.setStatus("Session not saved; task progress restored", true)
		case msg.res.Err != nil:
			a.setStatus("Session save incomplete: "+msg.res.Err.Error(), true)
		}
		return a, tea.Batch(a.projects.refresh(), a.targets.refresh())

	case snapshotMsg:
		a.adoptSnapshot(msg.data)
		return a, waitForSnapshot(a.watch)

	case tasksChangedMsg:
		if msg.err != nil {
			a.setStatus(msg.err.Error(), true)
		} else if msg.status != "" {
			a.setStatus(msg.status, false)
		}
		if msg.tasks != nil || msg.err == nil {
			a.session.SetTasks(msg.tasks)
		}
		var cmd tea.Cmd
		a.tasks, cmd = a.tasks.update(msg)
		return a, tea.Batch(cmd, a.projects.refresh(), a.targets.refresh())

	case settingsSavedMsg:
		a.session.SetSettings(msg.settings)
		a.setStatus("Settings saved", false)
		var cmd tea.Cmd
		a.settings, cmd = a.settings.update(msg)
		return a, cmd

	case progressMsg:
		if msg.err != nil {
			a.setStatus("Recalculation failed: "+msg.err.Error(), true)
		} else {
			a.setStatus(fmt.Sprintf("Recalculated %d project(s), %d target(s)", len(msg.res.Projects), len(msg.res.Targets)), false)
		}
		return a, tea.Batch(a.projects.refresh(), a.targets.refresh(), a.reports.refresh())

	case exportDoneMsg:
		a.setStatus("Exported to "+msg.path, false)
		a.exportPicking = false
		return a, nil

	// Data messages are routed to their owner regardless of the active view.
	case projectsDataMsg, projectTasksMsg:
		var cmd tea.Cmd
		a.projects, cmd = a.projects.update(msg)
		return a, cmd
	case targetsDataMsg:
		var cmd tea.Cmd
		a.targets, cmd = a.targets.update(msg)
		return a, cmd
	case reportsDataMsg:
		var cmd tea.Cmd
		a.reports, cmd = a.reports.update(msg)
		return a, cmd
	case settingsDataMsg:
		var cmd tea.Cmd
		a.settings, cmd = a.settings.update(msg)
		return a, cmd
	}

	return a.updateActiveView(msg)
}

// quit writes a focus session still waiting on its dialog, then exits.
func (a App) quit() (tea.Model, tea.Cmd) {
	a.session.Flush(a.ctx)
	return a, tea.Quit
}

func (a *App) setStatus(text string, isError bool) {
	a.status = text
	a.isError = isError
}

func (a App) switchTo(v viewState) (tea.Model, tea.Cmd) {
	a.activeView = v
	return a, a.refreshCurrentView()
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewTimer:
		var commit *session.FocusCommit
		a.timer, cmd, commit = a.timer.update(msg)
		if commit != nil {
			return a, tea.Batch(cmd, a.persistCmd(*commit))
		}
	case viewTasks:
		a.tasks, cmd = a.tasks.update(msg)
	case viewProjects:
		a.projects, cmd = a.projects.update(msg)
	case viewTargets:
		a.targets, cmd = a.targets.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

// persistCmd writes a focus commit off the event loop.
func (a App) persistCmd(commit session.FocusCommit) tea.Cmd {
	ctx, c := a.ctx, a.session
	return func() tea.Msg {
		return persistDoneMsg{res: c.Persist(ctx, commit)}
	}
}

func (a App) recalculate() tea.Cmd {
	ctx, e := a.ctx, a.engine
	return func() tea.Msg {
		res, err := e.RecalculateAll(ctx)
		return progressMsg{res: res, err: err}
	}
}

// adoptSnapshot applies a snapshot written by another instance. An empty
// payload means the other instance reset its timer.
func (a App) adoptSnapshot(data []byte) {
	if len(data) == 0 {
		if a.session.Adopt(timer.Default(a.session.FocusSeconds()), nil) {
			a.logger.Debug().Msg("adopted external timer reset")
		}
		return
	}
	res, err := a.snapshots.Parse(data)
	if err != nil {
		a.logger.Warn().Err(err).Msg("ignoring external timer snapshot")
		return
	}
	if a.session.Adopt(res.State, res.PhaseEnd) {
		a.logger.Debug().Bool("running", res.State.IsRunning).Msg("adopted external timer snapshot")
	}
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewTasks:
		return a.tasks.formActive
	case viewProjects:
		return a.projects.formActive
	case viewTargets:
		return a.targets.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewProjects:
		return a.projects.refresh()
	case viewTargets:
		return a.targets.refresh()
	case viewReports:
		return a.reports.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewTimer:
		content = a.timer.view()
	case viewTasks:
		content = a.tasks.view()
	case viewProjects:
		content = a.projects.view()
	case viewTargets:
		content = a.targets.view()
	case viewReports:
		content = a.reports.view()
	case viewSettings:
		content = a.settings.view()
	}

	contentHeight := max(a.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("pomodash")
	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		style := mutedStyle
		if a.isError {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	// Timer indicator when another view is active
	timerInfo := ""
	if a.activeView != viewTimer {
		st := a.session.State()
		switch {
		case st.IsRunning:
			timerInfo = successStyle.Render(" ● " + formatClock(st.TimeRemaining))
		case !st.Pristine():
			timerInfo = warningStyle.Render(" ⏸ " + formatClock(st.TimeRemaining))
		}
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	rows := []string{titleStyle.Render("Export History"), ""}
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+string(f)))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(exportFormats[a.exportCursor])
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format export.Format) tea.Cmd {
	ctx, s, dir := a.ctx, a.store, a.exportDir
	return func() tea.Msg {
		path, err := exportHistory(ctx, s, format, dir, timeNow())
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		return exportDoneMsg{path: path}
	}
}

// exportHistory writes all history into dir, the home directory when blank.
func exportHistory(ctx context.Context, s *store.Store, format export.Format, dir string, now time.Time) (string, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = home
	}
	return export.History(ctx, s, format, dir, now)
}
