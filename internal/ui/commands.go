package ui

import (
	"context"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/storyboard/internal/gallery"
	"github.com/five82/storyboard/internal/lightbox"
	"github.com/five82/storyboard/internal/logtail"
	"github.com/five82/storyboard/internal/session"
	"github.com/five82/storyboard/internal/state"
)

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type alertMsg struct{ err error }

type scopeLoadedMsg struct {
	path string
	snap state.Snapshot
	err  error
}

type dirsMsg struct {
	path    string
	entries []gallery.DirEntry
	err     error
}

type lightboxMsg struct {
	state lightbox.State
	err   error
}

type editModeMsg struct {
	on  bool
	err error
}

type opDoneMsg struct {
	status string
	err    error
}

type logsMsg struct {
	lines []string
	err   error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForChange(s *session.Session) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-s.Changes())
	}
}

func waitForAlert(s *session.Session) tea.Cmd {
	return func() tea.Msg {
		return alertMsg{err: <-s.Alerts()}
	}
}

func switchScopeCmd(ctx context.Context, s *session.Session, path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, OpTimeout)
		defer cancel()
		snap, err := s.SwitchScope(ctx, path)
		return scopeLoadedMsg{path: path, snap: snap, err: err}
	}
}

func refreshCmd(ctx context.Context, s *session.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, OpTimeout)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			return opDoneMsg{err: err}
		}
		return opDoneMsg{status: "Refreshed"}
	}
}

func dirsCmd(ctx context.Context, s *session.Session, path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, OpTimeout)
		defer cancel()
		entries, err := s.ListDirs(ctx, path)
		return dirsMsg{path: path, entries: entries, err: err}
	}
}

func closeLightboxCmd(ctx context.Context, s *session.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, OpTimeout)
		defer cancel()
		err := s.Lightbox().Close(ctx)
		return lightboxMsg{state: s.Lightbox().State(), err: err}
	}
}

func loadDescriptionCmd(ctx context.Context, s *session.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, OpTimeout)
		defer cancel()
		st, err := s.Lightbox().LoadDescription(ctx)
		return lightboxMsg{state: st, err: err}
	}
}

func convertCmd(ctx context.Context, s *session.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, OpTimeout)
		defer cancel()
		st, err := s.Lightbox().ConvertToDialog(ctx)
		return lightboxMsg{state: st, err: err}
	}
}

// editModeCmd switches edit mode. Turning it on re-enters an open image with
// neither caption nor description so it gets its placeholder line. A shown
// description stays in text mode until it is converted.
func editModeCmd(ctx context.Context, s *session.Session, on bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, OpTimeout)
		defer cancel()
		err := s.SetEditMode(ctx, on)
		st := s.Lightbox().State()
		if on && st.Open && st.Mode == lightbox.ModeText && strings.TrimSpace(st.Description) == "" {
			_, _ = s.Lightbox().Open(st.ID)
		}
		return editModeMsg{on: on, err: err}
	}
}

func nameSpeakerCmd(ctx context.Context, s *session.Session, id int, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, OpTimeout)
		defer cancel()
		if err := s.NameSpeaker(ctx, id, name, ""); err != nil {
			return opDoneMsg{err: err}
		}
		return opDoneMsg{status: "Speaker " + itoa(id) + " is now " + name}
	}
}

func loadLogsCmd(path string) tea.Cmd {
	return func() tea.Msg {
		lines, err := logtail.Read(path, LogTailLines)
		return logsMsg{lines: lines, err: err}
	}
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
