package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/storyboard/internal/lightbox"
)

// renderHeader renders the status bar.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth

	parts := []string{bg.Render("storyboard", styles.Logo)}

	if m.session.Connected() {
		parts = append(parts, styles.Badge("live").Render("LIVE"))
	} else {
		parts = append(parts, styles.Badge("offline").Render("OFFLINE"))
	}
	if m.session.EditMode() {
		parts = append(parts, styles.Badge("edit").Render("EDIT"))
	}

	parts = append(parts, bg.Render(displayPath(m.snapshot.Path), styles.AccentText))
	parts = append(parts,
		bg.Render("Images:", styles.MutedText)+bg.Spaces(1)+
			bg.Render(fmt.Sprintf("%d", len(m.snapshot.Images)), styles.Text))

	if m.snapshot.Pending > 0 {
		parts = append(parts, styles.Badge("syncing").Render(fmt.Sprintf("SYNCING %d", m.snapshot.Pending)))
	}
	if n := m.session.Dialogs().Pending(); n > 0 {
		parts = append(parts, styles.Badge("pending").Render(fmt.Sprintf("%d UNSAVED", n)))
	}
	if !compact && !m.lastUpdated.IsZero() {
		parts = append(parts, bg.Render("updated "+m.lastUpdated.Format("15:04:05"), styles.FaintText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, 2))
}

// renderStatusLine shows the current alert, a load error or the last status.
func (m Model) renderStatusLine() string {
	styles := m.theme.Styles()
	line := ""
	switch {
	case m.alert != "":
		line = styles.DangerText.Render("! " + m.alert)
	case m.snapshot.LastError != nil:
		line = styles.WarningText.Render(fmt.Sprintf("Load failed (%d in a row): %v", m.snapshot.ConsecutiveFailures, m.snapshot.LastError))
	case m.status != "":
		line = styles.MutedText.Render(m.status)
	}
	return lipgloss.NewStyle().Padding(0, 1).MaxWidth(m.width).Render(truncate(line, max(m.width-2, 1)))
}

// renderFooter renders the short help for the current view.
func (m Model) renderFooter() string {
	bindings := m.keys.ShortHelp()
	switch m.currentView {
	case ViewLightbox:
		bindings = m.keys.lightboxHelp(m.session.EditMode(), m.lightbox.Mode == lightbox.ModeText)
	case ViewLogs:
		bindings = []key.Binding{m.keys.Level, m.keys.Search, m.keys.Refresh, m.keys.Escape}
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(m.help.ShortHelpView(bindings))
}
