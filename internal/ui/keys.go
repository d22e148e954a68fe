package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Logs       key.Binding
	Escape     key.Binding
	Confirm    key.Binding

	// Grid
	Up        key.Binding
	Down      key.Binding
	Top       key.Binding
	Bottom    key.Binding
	MoveUp    key.Binding
	MoveDown  key.Binding
	MoveFirst key.Binding
	MoveLast  key.Binding
	Delete    key.Binding
	Open      key.Binding
	Scope     key.Binding
	Refresh   key.Binding
	EditMode  key.Binding

	// Lightbox
	Prev        key.Binding
	Next        key.Binding
	EditLine    key.Binding
	AddLine     key.Binding
	RemoveLine  key.Binding
	Speaker     key.Binding
	NameSpeaker key.Binding
	Convert     key.Binding

	// Logs
	Level  key.Binding
	Search key.Binding

	// Scope prompt
	Complete key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Logs: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Client log"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		MoveUp: key.NewBinding(
			key.WithKeys("K", "shift+up"),
			key.WithHelp("K", "Move image earlier"),
		),
		MoveDown: key.NewBinding(
			key.WithKeys("J", "shift+down"),
			key.WithHelp("J", "Move image later"),
		),
		MoveFirst: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("ctrl+k", "Move image to start"),
		),
		MoveLast: key.NewBinding(
			key.WithKeys("ctrl+j"),
			key.WithHelp("ctrl+j", "Move image to end"),
		),
		Delete: key.NewBinding(
			key.WithKeys("D", "delete"),
			key.WithHelp("D", "Delete image"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "Open/close image"),
		),
		Scope: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "Open folder"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh"),
		),
		EditMode: key.NewBinding(
			key.WithKeys("E"),
			key.WithHelp("E", "Toggle edit mode"),
		),

		Prev: key.NewBinding(
			key.WithKeys("left", "p"),
			key.WithHelp("p/left", "Previous image"),
		),
		Next: key.NewBinding(
			key.WithKeys("right", "n"),
			key.WithHelp("n/right", "Next image"),
		),
		EditLine: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "Edit line"),
		),
		AddLine: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Add line"),
		),
		RemoveLine: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Remove line"),
		),
		Speaker: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Cycle speaker"),
		),
		NameSpeaker: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "Name speaker"),
		),
		Convert: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Description to dialog"),
		),

		Level: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "Cycle level"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "Filter log"),
		),

		Complete: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Enter folder"),
		),
	}
}

// ShortHelp returns key bindings for the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.MoveUp, k.MoveDown, k.Scope, k.EditMode, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.MoveUp, k.MoveDown, k.MoveFirst, k.MoveLast, k.Delete},
		{k.Open, k.Prev, k.Next, k.Escape},
		{k.EditLine, k.AddLine, k.RemoveLine, k.Speaker, k.NameSpeaker, k.Convert},
		{k.Scope, k.Refresh, k.EditMode, k.Logs},
		{k.CycleTheme, k.Help, k.Quit},
	}
}

// lightboxHelp returns the footer bindings shown while an image is open.
func (k keyMap) lightboxHelp(editing, text bool) []key.Binding {
	switch {
	case text:
		return []key.Binding{k.Prev, k.Next, k.Convert, k.EditMode, k.Escape}
	case editing:
		return []key.Binding{k.Prev, k.Next, k.EditLine, k.AddLine, k.RemoveLine, k.Speaker, k.Escape}
	}
	return []key.Binding{k.Prev, k.Next, k.EditMode, k.Escape}
}
