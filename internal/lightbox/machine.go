// Package lightbox tracks which image is open and how its caption is shown.
package lightbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/five82/storyboard/internal/dialog"
	"github.com/five82/storyboard/internal/dialogsync"
	"github.com/five82/storyboard/internal/gallery"
	"github.com/five82/storyboard/internal/state"
)

var (
	// ErrUnknownImage is returned when opening an id absent from the collection.
	ErrUnknownImage = errors.New("image not in collection")
	// ErrNotOpen is returned by operations that need an open image.
	ErrNotOpen = errors.New("lightbox is closed")
)

// Mode selects how the open image's description is shown.
type Mode int

const (
	ModeText Mode = iota
	ModeDialog
)

func (m Mode) String() string {
	if m == ModeDialog {
		return "dialog"
	}
	return "text"
}

// State is a copy of the lightbox state.
type State struct {
	Open        bool
	ID          string
	Index       int
	Mode        Mode
	Description string
}

// EditMode supplies the global edit flag.
type EditMode interface {
	Enabled() bool
}

// Toggle is a concurrency-safe EditMode.
type Toggle struct {
	on atomic.Bool
}

// Enabled reports the flag.
func (t *Toggle) Enabled() bool { return t.on.Load() }

// Set stores the flag.
func (t *Toggle) Set(on bool) { t.on.Store(on) }

// Flip inverts the flag and returns the new value.
func (t *Toggle) Flip() bool {
	for {
		old := t.on.Load()
		if t.on.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Collection is the part of the store the lightbox reads.
type Collection interface {
	Snapshot() state.Snapshot
	RefreshDialogs(ctx context.Context) error
}

// Dialogs is the part of dialog sync the lightbox drives.
type Dialogs interface {
	Get(id string) dialog.Dialog
	EnsureInitialized(id string, editMode bool) bool
	Flush(ctx context.Context, id string) error
	ReplaceNow(ctx context.Context, id string, d dialog.Dialog) error
}

// Describer fetches an image's plain text description.
type Describer interface {
	FetchDescription(ctx context.Context, path, id string) (string, error)
}

var (
	_ Collection = (*state.Store)(nil)
	_ Dialogs    = (*dialogsync.Syncer)(nil)
	_ Describer  = (*gallery.Client)(nil)
)

// Options configure a Machine.
type Options struct {
	Collection Collection
	Dialogs    Dialogs
	EditMode   EditMode
	Describer  Describer
	Logger     *slog.Logger
}

// Machine tracks the single open image and its description mode.
type Machine struct {
	coll      Collection
	dialogs   Dialogs
	edit      EditMode
	describer Describer
	logger    *slog.Logger

	mu    sync.Mutex
	state State
}

// New returns a closed Machine.
func New(opts Options) *Machine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	edit := opts.EditMode
	if edit == nil {
		edit = &Toggle{}
	}
	return &Machine{
		coll:      opts.Collection,
		dialogs:   opts.Dialogs,
		edit:      edit,
		describer: opts.Describer,
		logger:    logger,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Open shows id, replacing any open image.
func (m *Machine) Open(id string) (State, error) {
	snap := m.coll.Snapshot()
	idx := snap.IndexOf(id)
	if idx < 0 {
		return m.State(), fmt.Errorf("%w: %s", ErrUnknownImage, id)
	}
	return m.enter(id, idx), nil
}

// Toggle opens id, or closes the lightbox when id is already open.
func (m *Machine) Toggle(ctx context.Context, id string) (State, error) {
	cur := m.State()
	if cur.Open && cur.ID == id {
		err := m.Close(ctx)
		return m.State(), err
	}
	return m.Open(id)
}

// Next moves to the following image, stopping at the last one.
func (m *Machine) Next() (State, error) {
	return m.step(1)
}

// Prev moves to the preceding image, stopping at the first one.
func (m *Machine) Prev() (State, error) {
	return m.step(-1)
}

func (m *Machine) step(delta int) (State, error) {
	cur := m.State()
	if !cur.Open {
		return cur, ErrNotOpen
	}
	snap := m.coll.Snapshot()
	idx := snap.IndexOf(cur.ID)
	if idx < 0 {
		return cur, fmt.Errorf("%w: %s", ErrUnknownImage, cur.ID)
	}
	next := idx + delta
	if next < 0 || next >= len(snap.Images) {
		return cur, nil
	}
	return m.enter(snap.Images[next].ID, next), nil
}

// enter applies the entry rule for id.
func (m *Machine) enter(id string, idx int) State {
	mode := ModeText
	if !m.dialogs.Get(id).Empty() {
		mode = ModeDialog
	} else if m.edit.Enabled() {
		m.dialogs.EnsureInitialized(id, true)
		mode = ModeDialog
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{Open: true, ID: id, Index: idx, Mode: mode}
	m.logger.Debug("lightbox open", "id", id, "mode", mode.String())
	return m.state
}

// Close flushes pending dialog edits when editing, clears the selection and
// refreshes the dialog cache. The lightbox is closed even when an error is
// returned.
func (m *Machine) Close(ctx context.Context) error {
	m.mu.Lock()
	cur := m.state
	m.mu.Unlock()
	if !cur.Open {
		return nil
	}

	var errs []error
	if m.edit.Enabled() && cur.Mode == ModeDialog {
		if err := m.dialogs.Flush(ctx, cur.ID); err != nil {
			errs = append(errs, fmt.Errorf("flush dialog: %w", err))
		}
	}

	m.mu.Lock()
	if m.state.ID == cur.ID {
		m.state = State{}
	}
	m.mu.Unlock()

	if err := m.coll.RefreshDialogs(ctx); err != nil && !errors.Is(err, state.ErrNoScope) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ConvertToDialog turns the plain text description of the open image into a
// one-line dialog, writes it immediately and switches to dialog mode.
func (m *Machine) ConvertToDialog(ctx context.Context) (State, error) {
	cur := m.State()
	if !cur.Open {
		return cur, ErrNotOpen
	}
	if err := m.dialogs.ReplaceNow(ctx, cur.ID, dialog.FromDescription(cur.Description)); err != nil {
		m.logger.Warn("dialog conversion not persisted", "id", cur.ID, "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Open && m.state.ID == cur.ID {
		m.state.Mode = ModeDialog
	}
	return m.state, nil
}

// LoadDescription fetches the open image's plain text description. A failed
// fetch leaves the description empty.
func (m *Machine) LoadDescription(ctx context.Context) (State, error) {
	cur := m.State()
	if !cur.Open {
		return cur, ErrNotOpen
	}
	path := m.coll.Snapshot().Path
	desc, err := m.describer.FetchDescription(ctx, path, cur.ID)
	if err != nil {
		m.logger.Warn("description fetch failed", "id", cur.ID, "error", err)
		desc = ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Open && m.state.ID == cur.ID {
		m.state.Description = desc
	}
	return m.state, nil
}

// Reconcile adjusts the lightbox after the collection or dialogs changed. If
// the open image is gone the lightbox closes without flushing; a text-mode
// image that gained a dialog switches to dialog mode.
func (m *Machine) Reconcile(snap state.Snapshot) State {
	m.mu.Lock()
	cur := m.state
	m.mu.Unlock()
	if !cur.Open {
		return cur
	}

	idx := snap.IndexOf(cur.ID)
	hasDialog := idx >= 0 && !m.dialogs.Get(cur.ID).Empty()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.ID != cur.ID {
		return m.state
	}
	if idx < 0 {
		m.logger.Info("open image removed", "id", cur.ID)
		m.state = State{}
		return m.state
	}
	m.state.Index = idx
	if hasDialog {
		m.state.Mode = ModeDialog
	}
	return m.state
}
