package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/pomodash/internal/store"
)

type reportMode int

const (
	reportDaily reportMode = iota
	reportWeekly
)

type reportsModel struct {
	ctx    context.Context
	store  *store.Store
	width  int
	height int

	mode   reportMode
	logs   []store.DailyLog
	goal   int
	offset int // 7-day blocks back from today (0 = current)

	chart barchart.Model
}

func newReportsModel(ctx context.Context, s *store.Store) reportsModel {
	return reportsModel{
		ctx:   ctx,
		store: s,
		chart: barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type reportsDataMsg struct {
	logs []store.DailyLog
	goal int
	err  error
}

func (r reportsModel) refresh() tea.Cmd {
	ctx, s := r.ctx, r.store
	from, to := r.dateRange()
	return func() tea.Msg {
		logs, err := s.ListDailyLogs(ctx, store.DateOf(from), store.DateOf(to.AddDate(0, 0, -1)))
		settings, _ := s.GetSettings(ctx)
		return reportsDataMsg{logs: logs, goal: settings.DailyGoalSessions, err: err}
	}
}

// dateRange returns the half-open local day range [from, to) on display.
func (r reportsModel) dateRange() (time.Time, time.Time) {
	now := timeNow()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	switch r.mode {
	case reportWeekly:
		weekday := today.Weekday()
		if weekday == time.Sunday {
			weekday = 7
		}
		startOfWeek := today.AddDate(0, 0, -int(weekday-time.Monday))
		startOfWeek = startOfWeek.AddDate(0, 0, -7*r.offset)
		return startOfWeek, startOfWeek.AddDate(0, 0, 7)
	default:
		end := today.AddDate(0, 0, 1-7*r.offset)
		return end.AddDate(0, 0, -7), end
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		if msg.err != nil {
			return r, statusCmd("Loading reports failed: "+msg.err.Error(), true)
		}
		r.logs = msg.logs
		r.goal = msg.goal
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			return r, r.refresh()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			return r, r.refresh()
		case key.Matches(msg, keys.Mode):
			if r.mode == reportDaily {
				r.mode = reportWeekly
			} else {
				r.mode = reportDaily
			}
			r.offset = 0
			return r, r.refresh()
		}
	}
	return r, nil
}

func (r reportsModel) byDate() map[string]store.DailyLog {
	m := make(map[string]store.DailyLog, len(r.logs))
	for _, l := range r.logs {
		m[l.Date] = l
	}
	return m
}

func (r *reportsModel) buildChart() {
	chartWidth := max(r.width-8, 20)
	chartHeight := 12
	if r.height > 30 {
		chartHeight = 16
	}

	r.chart = barchart.New(chartWidth, chartHeight)

	logs := r.byDate()
	focus := lipgloss.NewStyle().Foreground(colorFocus)
	met := lipgloss.NewStyle().Foreground(colorSuccess)

	from, to := r.dateRange()
	var bars []barchart.BarData
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		l := logs[store.DateOf(d)]
		style := focus
		if r.goal > 0 && l.CompletedSessions >= r.goal {
			style = met
		}
		bars = append(bars, barchart.BarData{
			Label: d.Format("Mon 02"),
			Values: []barchart.BarValue{{
				Name:  "focus",
				Value: float64(l.TotalFocusMinutes),
				Style: style,
			}},
		})
	}

	r.chart.PushAll(bars)
	r.chart.Draw()
}

// totals sums the logs on display.
func (r reportsModel) totals() (sessions, minutes, goalDays int) {
	for _, l := range r.logs {
		sessions += l.CompletedSessions
		minutes += l.TotalFocusMinutes
		if r.goal > 0 && l.CompletedSessions >= r.goal {
			goalDays++
		}
	}
	return sessions, minutes, goalDays
}

func (r reportsModel) view() string {
	w := r.width - 4

	dailyTab := inactiveTabStyle.Render("Last 7 days")
	weeklyTab := inactiveTabStyle.Render("Week")
	if r.mode == reportDaily {
		dailyTab = activeTabStyle.Render("Last 7 days")
	} else {
		weeklyTab = activeTabStyle.Render("Week")
	}
	modeTabs := lipgloss.JoinHorizontal(lipgloss.Bottom, dailyTab, weeklyTab)

	from, to := r.dateRange()
	dateLabel := mutedStyle.Render(fmt.Sprintf("%s to %s", from.Format("Jan 02"), to.AddDate(0, 0, -1).Format("Jan 02, 2006")))

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ", modeTabs, "  ", dateLabel,
	)

	sessions, minutes, goalDays := r.totals()
	summary := fmt.Sprintf("  %s sessions  %s focused  %s",
		highlightStyle.Render(fmt.Sprintf("%d", sessions)),
		highlightStyle.Render(formatMinutes(minutes)),
		mutedStyle.Render(fmt.Sprintf("goal met on %d day(s)", goalDays)),
	)

	nav := mutedStyle.Render("  ←/→: navigate  m: switch mode")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", r.chart.View(), "", summary, "", r.renderTable(w), "", nav,
		),
	)
}

func (r reportsModel) renderTable(w int) string {
	if len(r.logs) == 0 {
		return mutedStyle.Render("  No sessions in this period")
	}

	rows := []string{
		mutedStyle.Render(fmt.Sprintf("  %-12s %10s %10s", "Date", "Sessions", "Focus")),
		mutedStyle.Render("  " + strings.Repeat("─", max(min(w-6, 34), 0))),
	}
	for _, l := range r.logs {
		mark := " "
		if r.goal > 0 && l.CompletedSessions >= r.goal {
			mark = successStyle.Render("✓")
		}
		rows = append(rows, fmt.Sprintf("  %-12s %10d %10s %s",
			l.Date, l.CompletedSessions, formatMinutes(l.TotalFocusMinutes), mark))
	}
	return strings.Join(rows, "\n")
}
