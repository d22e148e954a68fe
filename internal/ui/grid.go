package ui

import (
	"fmt"
	"strings"
)

// visibleRange returns the slice of rows that keeps the selection on screen.
func visibleRange(selected, total, rows int) (int, int) {
	if rows <= 0 || total <= rows {
		return 0, total
	}
	start := selected - rows/2
	if start < 0 {
		start = 0
	}
	if start > total-rows {
		start = total - rows
	}
	return start, start + rows
}

// renderGrid renders the ordered image list of the active scope.
func (m Model) renderGrid() string {
	styles := m.theme.Styles()
	height := m.contentHeight()
	innerWidth := max(m.width-4, 10)

	if m.snapshot.Path == "" && !m.snapshot.Loaded {
		return styles.Panel.Width(innerWidth).Height(height - 2).Render(
			styles.MutedText.Render("No folder open. Press o to pick one."))
	}
	if len(m.snapshot.Images) == 0 {
		msg := "No images in " + displayPath(m.snapshot.Path)
		if !m.snapshot.Loaded {
			msg = "Loading " + displayPath(m.snapshot.Path) + "..."
		}
		return styles.Panel.Width(innerWidth).Height(height - 2).Render(styles.MutedText.Render(msg))
	}

	showURL := m.width >= LayoutCompactWidth
	showTime := m.width >= LayoutTimestampWidth

	rows := height - 2
	start, end := visibleRange(m.selectedRow, len(m.snapshot.Images), rows)
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		img := m.snapshot.Images[i]

		marker := " "
		if m.lightbox.Open && m.lightbox.ID == img.ID {
			marker = "●"
		}
		preview := m.session.Preview(img.ID)
		if preview == "" {
			preview = "—"
		}

		fixed := fmt.Sprintf("%s %3d  %-8s  ", marker, i+1, shortID(img.ID))
		var tail string
		if showTime {
			if ts := img.ParsedTimestamp(); !ts.IsZero() {
				tail += "  " + ts.Local().Format("Jan 02 15:04:05")
			}
		}
		if showURL {
			tail = "  " + truncateMiddle(m.session.RenderURL(img), 40) + tail
		}
		previewWidth := max(innerWidth-len([]rune(fixed))-len([]rune(tail)), 8)
		line := fixed + padRight(truncate(preview, previewWidth), previewWidth) + tail

		if i == m.selectedRow {
			lines = append(lines, styles.Selected.Width(innerWidth).Render(line))
		} else {
			lines = append(lines, styles.Text.Render(line))
		}
	}

	return styles.Panel.Width(innerWidth).Height(rows).Render(strings.Join(lines, "\n"))
}

func padRight(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
