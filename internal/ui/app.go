// Package ui is the Bubble Tea front end of the storyboard client.
package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/storyboard/internal/dialog"
	"github.com/five82/storyboard/internal/lightbox"
	"github.com/five82/storyboard/internal/prefs"
	"github.com/five82/storyboard/internal/reorder"
	"github.com/five82/storyboard/internal/session"
	"github.com/five82/storyboard/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewGrid View = iota
	ViewLightbox
	ViewLogs
)

// inputMode names what the text input is collecting.
type inputMode int

const (
	inputNone inputMode = iota
	inputScope
	inputLine
	inputNewLine
	inputSpeakerName
	inputLogFilter
)

// Options configures the UI.
type Options struct {
	Context   context.Context
	Session   *session.Session
	ThemeName string
	PrefsPath string
	LogFile   string
	// StartErr is shown in the header when the first scope failed to load.
	StartErr error
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx       context.Context
	session   *session.Session
	prefsPath string
	logFile   string
	keys      keyMap
	help      help.Model

	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool

	snapshot    state.Snapshot
	lastUpdated time.Time
	selectedRow int

	lightbox   lightbox.State
	lineCursor int

	input     textinput.Model
	inputMode inputMode
	scope     scopeState

	logViewport viewport.Model
	logState    logState

	alert    string
	alertAt  time.Time
	status   string
	showHelp bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = themeOrder[0]
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	ti := textinput.New()
	ti.CharLimit = 500

	m := Model{
		ctx:         ctx,
		session:     opts.Session,
		prefsPath:   prefsPath,
		logFile:     opts.LogFile,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		theme:       GetTheme(themeName),
		currentView: ViewGrid,
		input:       ti,
		logState:    newLogState(),
	}
	if m.session != nil {
		m.snapshot = m.session.Snapshot()
		m.lastUpdated = m.snapshot.LastUpdated
	}
	if opts.StartErr != nil {
		m.setAlert(opts.StartErr)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tickCmd(TickInterval),
	}
	if m.session != nil {
		cmds = append(cmds, waitForChange(m.session), waitForAlert(m.session))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if !m.ready {
			m.initLogViewport()
		}
		m.ready = true
		m.updateLogViewport()
		return m, nil

	case tickMsg:
		if m.alert != "" && time.Since(m.alertAt) > AlertTTL {
			m.alert = ""
		}
		return m, tickCmd(TickInterval)

	case snapshotMsg:
		m.applySnapshot(state.Snapshot(msg))
		return m, waitForChange(m.session)

	case alertMsg:
		m.setAlert(msg.err)
		return m, waitForAlert(m.session)

	case scopeLoadedMsg:
		if msg.err != nil {
			m.setAlert(msg.err)
		} else {
			m.status = "Opened " + displayPath(msg.path)
			m.selectedRow = 0
			_ = prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.LastPath = msg.path })
		}
		m.applySnapshot(msg.snap)
		return m, nil

	case dirsMsg:
		m.scope.apply(msg)
		return m, nil

	case lightboxMsg:
		m.applyLightbox(msg.state)
		if msg.err != nil && !errors.Is(msg.err, lightbox.ErrNotOpen) {
			m.setAlert(msg.err)
		}
		return m, nil

	case editModeMsg:
		m.status = "Edit mode off"
		if msg.on {
			m.status = "Edit mode on"
		}
		if msg.err != nil {
			m.setAlert(msg.err)
		}
		m.applyLightbox(m.session.Lightbox().State())
		_ = prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.EditMode = msg.on })
		return m, nil

	case opDoneMsg:
		if msg.err != nil {
			m.setAlert(msg.err)
		} else if msg.status != "" {
			m.status = msg.status
		}
		return m, nil

	case logsMsg:
		m.handleLogs(msg)
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.inputMode == inputScope {
		return m.renderScopePrompt()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.inputMode != inputNone {
		return m.handleInputKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		_ = prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.Theme = m.theme.Name })
		return m, nil

	case key.Matches(msg, m.keys.EditMode):
		return m, editModeCmd(m.ctx, m.session, !m.session.EditMode())

	case key.Matches(msg, m.keys.Logs):
		if m.currentView == ViewLogs {
			m.currentView = m.returnView()
			return m, nil
		}
		m.currentView = ViewLogs
		return m, loadLogsCmd(m.logFile)
	}

	switch m.currentView {
	case ViewGrid:
		return m.handleGridKey(msg)
	case ViewLightbox:
		return m.handleLightboxKey(msg)
	case ViewLogs:
		return m.handleLogsKey(msg)
	}
	return m, nil
}

// returnView is where esc from the log view goes.
func (m Model) returnView() View {
	if m.lightbox.Open {
		return ViewLightbox
	}
	return ViewGrid
}

// handleGridKey processes keyboard input for the image list.
func (m Model) handleGridKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Scope):
		return m.openScopePrompt()
	case key.Matches(msg, m.keys.Refresh):
		m.status = "Refreshing..."
		return m, refreshCmd(m.ctx, m.session)
	}

	count := len(m.snapshot.Images)
	if count == 0 {
		return m, nil
	}
	selected := m.snapshot.Images[m.selectedRow].ID

	switch {
	case key.Matches(msg, m.keys.Down):
		if m.selectedRow < count-1 {
			m.selectedRow++
		}
	case key.Matches(msg, m.keys.Up):
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case key.Matches(msg, m.keys.Top):
		m.selectedRow = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selectedRow = count - 1
	case key.Matches(msg, m.keys.MoveUp):
		m.shift(selected, -1)
	case key.Matches(msg, m.keys.MoveDown):
		m.shift(selected, 1)
	case key.Matches(msg, m.keys.MoveFirst):
		m.shift(selected, -m.selectedRow)
	case key.Matches(msg, m.keys.MoveLast):
		m.shift(selected, count-1-m.selectedRow)
	case key.Matches(msg, m.keys.Delete):
		if err := m.session.Delete(selected); err != nil {
			m.setAlert(err)
		} else {
			m.status = "Deleted " + shortID(selected)
		}
		m.applySnapshot(m.session.Snapshot())
	case key.Matches(msg, m.keys.Open):
		return m.openImage(selected)
	}
	return m, nil
}

// shift moves id and keeps it selected.
func (m *Model) shift(id string, delta int) {
	if delta == 0 {
		return
	}
	if _, err := m.session.Shift(id, delta); err != nil {
		if !errors.Is(err, reorder.ErrNoMove) {
			m.setAlert(err)
		}
		return
	}
	m.applySnapshot(m.session.Snapshot())
	if idx := m.snapshot.IndexOf(id); idx >= 0 {
		m.selectedRow = idx
	}
}

// openImage toggles the lightbox on id.
func (m Model) openImage(id string) (tea.Model, tea.Cmd) {
	if m.lightbox.Open && m.lightbox.ID == id {
		return m, closeLightboxCmd(m.ctx, m.session)
	}
	st, err := m.session.Lightbox().Open(id)
	if err != nil {
		m.setAlert(err)
		return m, nil
	}
	return m.enteredImage(st)
}

// enteredImage shows st and fetches the description for text mode.
func (m Model) enteredImage(st lightbox.State) (tea.Model, tea.Cmd) {
	m.applyLightbox(st)
	m.lineCursor = 0
	if st.Mode == lightbox.ModeText {
		return m, loadDescriptionCmd(m.ctx, m.session)
	}
	return m, nil
}

// handleLightboxKey processes keyboard input while an image is open.
func (m Model) handleLightboxKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	lb := m.session.Lightbox()
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Confirm):
		return m, closeLightboxCmd(m.ctx, m.session)
	case key.Matches(msg, m.keys.Next):
		st, err := lb.Next()
		if err != nil {
			m.setAlert(err)
			return m, nil
		}
		if st.ID == m.lightbox.ID {
			return m, nil
		}
		return m.enteredImage(st)
	case key.Matches(msg, m.keys.Prev):
		st, err := lb.Prev()
		if err != nil {
			m.setAlert(err)
			return m, nil
		}
		if st.ID == m.lightbox.ID {
			return m, nil
		}
		return m.enteredImage(st)
	}

	d := m.session.Dialogs().Get(m.lightbox.ID)
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.lineCursor < len(d)-1 {
			m.lineCursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.lineCursor > 0 {
			m.lineCursor--
		}
		return m, nil
	}

	if m.lightbox.Mode == lightbox.ModeText {
		if key.Matches(msg, m.keys.Convert) {
			return m, convertCmd(m.ctx, m.session)
		}
		return m, nil
	}
	if !m.session.EditMode() {
		return m, nil
	}

	id := m.lightbox.ID
	switch {
	case key.Matches(msg, m.keys.EditLine):
		if m.lineCursor < len(d) {
			return m.startInput(inputLine, "Line text", d[m.lineCursor].Text)
		}
	case key.Matches(msg, m.keys.AddLine):
		return m.startInput(inputNewLine, "New line", "")
	case key.Matches(msg, m.keys.RemoveLine):
		if err := m.session.Dialogs().RemoveLine(id, m.lineCursor); err != nil {
			m.setAlert(err)
		}
		if n := len(m.session.Dialogs().Get(id)); m.lineCursor >= n && n > 0 {
			m.lineCursor = n - 1
		}
	case key.Matches(msg, m.keys.Speaker):
		if m.lineCursor < len(d) {
			line := d[m.lineCursor]
			line.SpeakerID = m.session.Speakers().NextSpeaker(line.SpeakerID)
			if err := m.session.Dialogs().SetLine(id, m.lineCursor, line); err != nil {
				m.setAlert(err)
			}
		}
	case key.Matches(msg, m.keys.NameSpeaker):
		if m.lineCursor < len(d) {
			speaker := d[m.lineCursor].SpeakerID
			return m.startInput(inputSpeakerName, "Name for speaker "+itoa(speaker), m.session.Speakers().Name(speaker))
		}
	}
	return m, nil
}

// startInput focuses the text input for mode.
func (m Model) startInput(mode inputMode, placeholder, value string) (tea.Model, tea.Cmd) {
	m.inputMode = mode
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	cmd := m.input.Focus()
	return m, cmd
}

// handleInputKey routes keys to the focused text input.
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.inputMode = inputNone
		m.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		return m.commitInput()
	}

	if m.inputMode == inputScope {
		switch {
		case key.Matches(msg, m.keys.Complete):
			return m.descendScope()
		case msg.Type == tea.KeyUp:
			m.scope.move(-1)
			return m, nil
		case msg.Type == tea.KeyDown:
			m.scope.move(1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// commitInput applies the text input according to inputMode.
func (m Model) commitInput() (tea.Model, tea.Cmd) {
	mode := m.inputMode
	value := m.input.Value()
	m.inputMode = inputNone
	m.input.Blur()

	id := m.lightbox.ID
	switch mode {
	case inputScope:
		path := strings.Trim(strings.TrimSpace(value), "/")
		m.status = "Opening " + displayPath(path) + "..."
		return m, switchScopeCmd(m.ctx, m.session, path)

	case inputLine:
		d := m.session.Dialogs().Get(id)
		if m.lineCursor < len(d) {
			line := d[m.lineCursor]
			line.Text = value
			if err := m.session.Dialogs().SetLine(id, m.lineCursor, line); err != nil {
				m.setAlert(err)
			}
		}

	case inputNewLine:
		speaker := dialog.NarratorID
		if d := m.session.Dialogs().Get(id); m.lineCursor < len(d) {
			speaker = d[m.lineCursor].SpeakerID
		}
		m.session.Dialogs().AppendLine(id, dialog.Line{SpeakerID: speaker, Text: value})
		m.lineCursor = len(m.session.Dialogs().Get(id)) - 1

	case inputSpeakerName:
		d := m.session.Dialogs().Get(id)
		if m.lineCursor < len(d) && strings.TrimSpace(value) != "" {
			return m, nameSpeakerCmd(m.ctx, m.session, d[m.lineCursor].SpeakerID, value)
		}

	case inputLogFilter:
		m.logState.query = value
		m.updateLogViewport()
	}
	return m, nil
}

// applySnapshot stores snap and keeps the selection and lightbox valid.
func (m *Model) applySnapshot(snap state.Snapshot) {
	m.snapshot = snap
	if !snap.LastUpdated.IsZero() {
		m.lastUpdated = snap.LastUpdated
	}
	if m.selectedRow >= len(snap.Images) {
		m.selectedRow = len(snap.Images) - 1
	}
	if m.selectedRow < 0 {
		m.selectedRow = 0
	}
	if m.session != nil {
		m.applyLightbox(m.session.Lightbox().State())
	}
}

// applyLightbox mirrors the lightbox state into the view.
func (m *Model) applyLightbox(st lightbox.State) {
	m.lightbox = st
	if st.Open {
		if m.currentView == ViewGrid {
			m.currentView = ViewLightbox
		}
		m.selectedRow = st.Index
		n := len(m.session.Dialogs().Get(st.ID))
		if m.lineCursor >= n {
			m.lineCursor = max(n-1, 0)
		}
		return
	}
	if m.currentView == ViewLightbox {
		m.currentView = ViewGrid
	}
	if m.inputMode == inputLine || m.inputMode == inputNewLine || m.inputMode == inputSpeakerName {
		m.inputMode = inputNone
		m.input.Blur()
	}
}

func (m *Model) setAlert(err error) {
	if err == nil {
		return
	}
	m.alert = err.Error()
	m.alertAt = time.Now()
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewGrid:
		return m.renderGrid()
	case ViewLightbox:
		return m.renderLightbox()
	case ViewLogs:
		return m.renderLogs()
	default:
		return ""
	}
}

// contentHeight is the number of rows between the header and the footer.
func (m Model) contentHeight() int {
	return max(m.height-3, 3)
}

func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return "/" + path
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
