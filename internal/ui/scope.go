package ui

import (
	"fmt"
	"path"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/storyboard/internal/gallery"
)

// scopeState backs the folder prompt.
type scopeState struct {
	listed   string
	dirs     []gallery.DirEntry
	selected int
	err      error
	loading  bool
}

func (s *scopeState) apply(msg dirsMsg) {
	s.listed = msg.path
	s.dirs = msg.entries
	s.err = msg.err
	s.selected = 0
	s.loading = false
}

func (s *scopeState) move(delta int) {
	if len(s.dirs) == 0 {
		return
	}
	s.selected = (s.selected + delta + len(s.dirs)) % len(s.dirs)
}

// openScopePrompt starts the folder prompt at the active scope.
func (m Model) openScopePrompt() (tea.Model, tea.Cmd) {
	current := m.snapshot.Path
	m.scope = scopeState{listed: current, loading: true}
	next, focus := m.startInput(inputScope, "harbor/chapter-1", current)
	nm := next.(Model)
	return nm, tea.Batch(focus, dirsCmd(m.ctx, m.session, current))
}

// descendScope appends the highlighted folder to the input and lists it.
func (m Model) descendScope() (tea.Model, tea.Cmd) {
	if len(m.scope.dirs) == 0 {
		return m, nil
	}
	target := path.Join(m.scope.listed, m.scope.dirs[m.scope.selected].Name)
	target = strings.Trim(target, "/")
	m.input.SetValue(target)
	m.input.CursorEnd()
	m.scope.loading = true
	return m, dirsCmd(m.ctx, m.session, target)
}

// renderScopePrompt renders the folder prompt as a centered modal.
func (m Model) renderScopePrompt() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Open folder"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	b.WriteString(styles.MutedText.Render("in " + displayPath(m.scope.listed)))
	b.WriteString("\n")
	switch {
	case m.scope.loading:
		b.WriteString(styles.FaintText.Render("loading..."))
	case m.scope.err != nil:
		b.WriteString(styles.DangerText.Render(m.scope.err.Error()))
	case len(m.scope.dirs) == 0:
		b.WriteString(styles.FaintText.Render("no subfolders"))
	default:
		for i, d := range m.scope.dirs {
			line := fmt.Sprintf("%-24s %3d images  %2d folders", truncate(d.Name+"/", 24), d.ImageCount, d.DirCount)
			if i == m.scope.selected {
				b.WriteString(styles.Selected.Render(line))
			} else {
				b.WriteString(styles.Text.Render(line))
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("up/down select  tab enter folder  enter open  esc cancel"))

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(min(60, max(m.width-4, 20)))

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}
