package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/storyboard/internal/lightbox"
)

// renderLightbox renders the open image with its caption.
func (m Model) renderLightbox() string {
	styles := m.theme.Styles()
	innerWidth := max(m.width-4, 10)
	height := m.contentHeight()
	st := m.lightbox
	editing := m.session.EditMode()

	var b strings.Builder

	title := fmt.Sprintf("Image %d of %d", st.Index+1, len(m.snapshot.Images))
	b.WriteString(styles.Text.Bold(true).Render(title))
	b.WriteString("  ")
	b.WriteString(styles.MutedText.Render(st.ID))
	b.WriteString("  ")
	b.WriteString(styles.Badge(st.Mode.String()).Render(strings.ToUpper(st.Mode.String())))
	if editing {
		b.WriteString(" ")
		b.WriteString(styles.Badge("edit").Render("EDIT"))
	}
	b.WriteString("\n")
	if img, ok := m.snapshot.Find(st.ID); ok {
		b.WriteString(styles.FaintText.Render(truncateMiddle(m.session.RenderURL(img), innerWidth)))
	}
	b.WriteString("\n\n")

	if st.Mode == lightbox.ModeDialog {
		b.WriteString(m.renderDialog(innerWidth, editing))
	} else {
		b.WriteString(m.renderDescription(innerWidth))
	}

	if m.inputMode == inputLine || m.inputMode == inputNewLine || m.inputMode == inputSpeakerName {
		b.WriteString("\n\n")
		b.WriteString(styles.AccentText.Render(m.input.Placeholder + ": "))
		b.WriteString(m.input.View())
	}

	return styles.FocusPanel.Width(innerWidth).Height(height - 2).Render(b.String())
}

func (m Model) renderDialog(width int, editing bool) string {
	styles := m.theme.Styles()
	reg := m.session.Speakers()
	d := m.session.Dialogs().Get(m.lightbox.ID)

	lines := make([]string, 0, len(d))
	for i, line := range d {
		cursor := "  "
		if editing && i == m.lineCursor {
			cursor = styles.AccentText.Render("› ")
		}
		text := line.Text
		if text == "" {
			text = styles.FaintText.Render("…")
		}
		var rendered string
		if line.IsNarrator() {
			rendered = styles.Text.Italic(true).Render(text)
		} else {
			name := reg.Name(line.SpeakerID)
			if name == "" {
				name = "Speaker " + itoa(line.SpeakerID)
			}
			rendered = styles.Speaker(reg.Color(line.SpeakerID)).Bold(true).Render(name+":") + " " + styles.Text.Render(text)
		}
		lines = append(lines, cursor+lipgloss.NewStyle().MaxWidth(width-2).Render(rendered))
	}
	if len(lines) == 0 {
		lines = append(lines, styles.FaintText.Render("No caption."))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDescription(width int) string {
	styles := m.theme.Styles()
	desc := strings.TrimSpace(m.lightbox.Description)
	var b strings.Builder
	if desc == "" {
		b.WriteString(styles.FaintText.Render("No description."))
	} else {
		b.WriteString(styles.Text.Width(width).Render(desc))
	}
	b.WriteString("\n\n")
	b.WriteString(styles.MutedText.Render("c  turn the description into a dialog"))
	return b.String()
}
