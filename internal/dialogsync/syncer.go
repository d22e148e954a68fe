package dialogsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/five82/storyboard/internal/dialog"
	"github.com/five82/storyboard/internal/gallery"
	"github.com/five82/storyboard/internal/state"
)

// DefaultQuiet is the debounce window applied to dialog edits.
const DefaultQuiet = time.Second

// ErrLineIndex is returned when an edit addresses a line that does not exist.
var ErrLineIndex = errors.New("dialog line index out of range")

// Persister writes a dialog to the authority.
type Persister interface {
	SaveDialog(ctx context.Context, path, id string, lines []string) error
}

var _ Persister = (*gallery.Client)(nil)

// Scope exposes the active path and its dialog cache.
type Scope interface {
	Path() string
	Dialogs() *state.DialogCache
}

var _ Scope = (*state.Store)(nil)

// Options configure a Syncer.
type Options struct {
	Scope     Scope
	Persister Persister
	Quiet     time.Duration
	Logger    *slog.Logger
}

type pendingWrite struct {
	timer *time.Timer
	path  string
}

// Syncer buffers caption edits per image and writes each burst once.
type Syncer struct {
	ctx       context.Context
	scope     Scope
	persister Persister
	quiet     time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingWrite
	stopped bool

	inflight sync.WaitGroup
}

// New returns a Syncer. Timer-driven writes use ctx.
func New(ctx context.Context, opts Options) *Syncer {
	quiet := opts.Quiet
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		ctx:       ctx,
		scope:     opts.Scope,
		persister: opts.Persister,
		quiet:     quiet,
		logger:    logger,
		pending:   make(map[string]*pendingWrite),
	}
}

// Get returns the cached dialog for id, empty when absent.
func (s *Syncer) Get(id string) dialog.Dialog {
	return s.scope.Dialogs().Get(id)
}

// SetLine replaces line index of id and schedules a write.
func (s *Syncer) SetLine(id string, index int, line dialog.Line) error {
	d := s.Get(id)
	if index < 0 || index >= len(d) {
		return fmt.Errorf("%w: %d of %d", ErrLineIndex, index, len(d))
	}
	d[index] = line
	s.scope.Dialogs().Set(id, d)
	s.schedule(id)
	return nil
}

// AppendLine adds line to the end of id's dialog and schedules a write.
func (s *Syncer) AppendLine(id string, line dialog.Line) {
	d := append(s.Get(id), line)
	s.scope.Dialogs().Set(id, d)
	s.schedule(id)
}

// RemoveLine deletes line index of id and schedules a write.
func (s *Syncer) RemoveLine(id string, index int) error {
	d := s.Get(id)
	if index < 0 || index >= len(d) {
		return fmt.Errorf("%w: %d of %d", ErrLineIndex, index, len(d))
	}
	d = append(d[:index], d[index+1:]...)
	s.scope.Dialogs().Set(id, d)
	s.schedule(id)
	return nil
}

// EnsureInitialized seeds an empty dialog with the narrator placeholder and
// writes it right away so other clients can see it. Outside edit mode it does
// nothing. It reports whether a placeholder was seeded.
func (s *Syncer) EnsureInitialized(id string, editMode bool) bool {
	if !editMode || !s.Get(id).Empty() {
		return false
	}
	path := s.scope.Path()
	s.scope.Dialogs().Set(id, dialog.Placeholder())
	s.cancel(id)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.persist(s.ctx, path, id)
	}()
	return true
}

// Flush writes id's pending edits now. It is a no-op when nothing is pending.
func (s *Syncer) Flush(ctx context.Context, id string) error {
	pw := s.cancel(id)
	if pw == nil {
		return nil
	}
	return s.persist(ctx, pw.path, id)
}

// FlushAll writes every pending dialog now.
func (s *Syncer) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := s.Flush(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReplaceNow stores d for id and writes it immediately, superseding any
// pending edit.
func (s *Syncer) ReplaceNow(ctx context.Context, id string, d dialog.Dialog) error {
	s.cancel(id)
	s.scope.Dialogs().Set(id, d)
	return s.persist(ctx, s.scope.Path(), id)
}

// Pending reports how many ids have an unsent edit.
func (s *Syncer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// IsPending reports whether id has an unsent edit.
func (s *Syncer) IsPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// Stop abandons every pending timer. Edits made afterwards stay local.
func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, pw := range s.pending {
		pw.timer.Stop()
		delete(s.pending, id)
	}
}

// Wait blocks until writes already started have returned.
func (s *Syncer) Wait() {
	s.inflight.Wait()
}

func (s *Syncer) schedule(id string) {
	path := s.scope.Path()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if pw, ok := s.pending[id]; ok && pw.path == path {
		pw.timer.Reset(s.quiet)
		return
	} else if ok {
		pw.timer.Stop()
	}

	pw := &pendingWrite{path: path}
	pw.timer = time.AfterFunc(s.quiet, func() { s.fire(id, pw) })
	s.pending[id] = pw
}

func (s *Syncer) fire(id string, pw *pendingWrite) {
	s.mu.Lock()
	if s.pending[id] != pw {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	s.persist(s.ctx, pw.path, id)
}

func (s *Syncer) cancel(id string) *pendingWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	pw, ok := s.pending[id]
	if !ok {
		return nil
	}
	pw.timer.Stop()
	delete(s.pending, id)
	return pw
}

// persist sends the cached state of id. Failures are logged and dropped.
func (s *Syncer) persist(ctx context.Context, path, id string) error {
	if current := s.scope.Path(); current != path {
		s.logger.Warn("dialog write dropped", "id", id, "path", path, "active_path", current)
		return nil
	}
	lines := s.Get(id).Encode()
	if err := s.persister.SaveDialog(ctx, path, id, lines); err != nil {
		s.logger.Warn("dialog persist failed", "id", id, "path", path, "error", err)
		return fmt.Errorf("save dialog %s: %w", id, err)
	}
	s.logger.Debug("dialog persisted", "id", id, "path", path, "lines", len(lines))
	return nil
}
