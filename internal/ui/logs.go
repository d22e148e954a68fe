package ui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/storyboard/internal/logtail"
)

var logLevels = []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}

// logState holds the client log view state.
type logState struct {
	raw      []string
	minLevel slog.Level
	query    string
	err      error
}

func newLogState() logState {
	return logState{minLevel: slog.LevelInfo}
}

func (s *logState) cycleLevel() {
	for i, l := range logLevels {
		if l == s.minLevel {
			s.minLevel = logLevels[(i+1)%len(logLevels)]
			return
		}
	}
	s.minLevel = slog.LevelInfo
}

// initLogViewport initializes the log viewport.
func (m *Model) initLogViewport() {
	m.logViewport = viewport.New(max(m.width-4, 10), max(m.contentHeight()-3, 1))
}

// updateLogViewport re-renders filtered log lines and scrolls to the end.
func (m *Model) updateLogViewport() {
	m.logViewport.Width = max(m.width-4, 10)
	m.logViewport.Height = max(m.contentHeight()-3, 1)
	m.logViewport.SetContent(m.renderLogContent())
	m.logViewport.GotoBottom()
}

func (m *Model) handleLogs(msg logsMsg) {
	m.logState.raw = msg.lines
	m.logState.err = msg.err
	m.updateLogViewport()
}

// handleLogsKey processes keyboard input for the log view.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.currentView = m.returnView()
		return m, nil
	case key.Matches(msg, m.keys.Level):
		m.logState.cycleLevel()
		m.updateLogViewport()
		return m, nil
	case key.Matches(msg, m.keys.Search):
		return m.startInput(inputLogFilter, "filter", m.logState.query)
	case key.Matches(msg, m.keys.Refresh):
		return m, loadLogsCmd(m.logFile)
	}
	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	return m, cmd
}

func (m Model) renderLogContent() string {
	styles := m.theme.Styles()
	if m.logState.err != nil {
		return styles.DangerText.Render(m.logState.err.Error())
	}
	entries := logtail.Filter(m.logState.raw, m.logState.minLevel, m.logState.query)
	if len(entries) == 0 {
		return styles.FaintText.Render("Nothing logged at this level.")
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, m.renderLogEntry(e))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderLogEntry(e logtail.Entry) string {
	styles := m.theme.Styles()
	level := styles.InfoText
	switch {
	case e.Level >= slog.LevelError:
		level = styles.DangerText
	case e.Level >= slog.LevelWarn:
		level = styles.WarningText.Bold(true)
	case e.Level < slog.LevelInfo:
		level = styles.FaintText
	}
	ts := e.Time
	if len(ts) >= 19 {
		ts = ts[11:19]
	}
	parts := []string{
		styles.FaintText.Render(ts),
		level.Render(fmt.Sprintf("%-5s", e.Level.String())),
		styles.Text.Render(e.Msg),
	}
	if e.Attrs != "" {
		parts = append(parts, styles.MutedText.Render(e.Attrs))
	}
	return strings.Join(parts, " ")
}

// renderLogs renders the log view.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	title := styles.Text.Bold(true).Render("Client log") + "  " +
		styles.MutedText.Render("level ≥ "+m.logState.minLevel.String())
	if m.logState.query != "" {
		title += "  " + styles.AccentText.Render("filter: "+m.logState.query)
	}
	body := title + "\n" + styles.FaintText.Render(truncateMiddle(m.logFile, max(m.width-8, 10))) + "\n" + m.logViewport.View()
	if m.inputMode == inputLogFilter {
		body += "\n" + m.input.View()
	}
	return styles.FocusPanel.Width(max(m.width-4, 10)).Height(m.contentHeight() - 2).Render(
		lipgloss.NewStyle().MaxHeight(m.contentHeight() - 2).Render(body))
}
