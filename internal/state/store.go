package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/five82/storyboard/internal/gallery"
)

// ErrNoScope is returned when an operation needs a loaded scope.
var ErrNoScope = errors.New("no scope loaded")

// Loader fetches authoritative scope data.
type Loader interface {
	FetchImages(ctx context.Context, path string) ([]gallery.ImageRecord, error)
	FetchDialogs(ctx context.Context, path string) (map[string][]string, error)
}

var _ Loader = (*gallery.Client)(nil)

// Snapshot is a copy of the collection as the UI should render it.
type Snapshot struct {
	Path                string
	Loaded              bool
	Images              []gallery.ImageRecord
	Pending             int // optimistic mutations not yet confirmed
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IndexOf returns the position of id, or -1.
func (s Snapshot) IndexOf(id string) int {
	return indexOf(s.Images, id)
}

// Find returns the record for id.
func (s Snapshot) Find(id string) (gallery.ImageRecord, bool) {
	if i := s.IndexOf(id); i >= 0 {
		return s.Images[i], true
	}
	return gallery.ImageRecord{}, false
}

// IDs returns the ids in display order.
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s.Images))
	for i, img := range s.Images {
		ids[i] = img.ID
	}
	return ids
}

// Store owns the ordered collection of one scope and its dialog cache.
//
// Local mutations are tentative until confirmed. The store keeps the last
// authoritative order next to the visible one so that a rejected mutation can
// be reverted without a round trip.
type Store struct {
	loader  Loader
	dialogs *DialogCache
	logger  *slog.Logger

	mu            sync.RWMutex
	snapshot      Snapshot
	authoritative []gallery.ImageRecord
	generation    uint64

	group    singleflight.Group
	preserve func(id string) bool

	listenersMu  sync.Mutex
	listeners    map[int]func(Snapshot)
	nextListener int
}

// NewStore returns an empty store reading from loader.
func NewStore(loader Loader, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		loader:    loader,
		dialogs:   NewDialogCache(),
		logger:    logger,
		listeners: make(map[int]func(Snapshot)),
	}
}

// Dialogs returns the dialog cache kept coherent with the collection.
func (s *Store) Dialogs() *DialogCache {
	return s.dialogs
}

// PreserveDialogs registers fn to name dialogs with unsent local edits.
// Reloads of the same scope keep those entries instead of the authority's.
func (s *Store) PreserveDialogs(fn func(id string) bool) {
	s.mu.Lock()
	s.preserve = fn
	s.mu.Unlock()
}

// Path returns the active scope.
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Path
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to run after every settled change. The returned
// function removes it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Load replaces the collection and the dialog cache with the data of path.
// Nothing from a previous scope survives, even when the load fails.
func (s *Store) Load(ctx context.Context, path string) (Snapshot, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	changed := s.snapshot.Path != path || !s.snapshot.Loaded
	if changed {
		s.snapshot = Snapshot{Path: path}
		s.authoritative = nil
		s.dialogs.Replace(nil)
	}
	s.mu.Unlock()

	var (
		images  []gallery.ImageRecord
		dialogs map[string][]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		images, err = s.loader.FetchImages(gctx, path)
		if err != nil {
			return fmt.Errorf("fetch images: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		dialogs, err = s.loader.FetchDialogs(gctx, path)
		if err != nil {
			return fmt.Errorf("fetch dialogs: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("scope load failed", "path", path, "error", err)
		return s.recordFailure(gen, err), err
	}

	s.mu.Lock()
	if gen != s.generation {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}
	s.authoritative = cloneImages(images)
	s.snapshot = Snapshot{
		Path:        path,
		Loaded:      true,
		Images:      cloneImages(images),
		LastUpdated: time.Now(),
	}
	if changed {
		s.dialogs.Replace(dialogs)
	} else {
		s.dialogs.ReplaceKeeping(dialogs, s.preserve)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap, nil
}

// Invalidate discards the visible collection and reloads it from the
// authority. Concurrent calls for the same scope share one request. A path
// other than the active scope is loaded with Load.
func (s *Store) Invalidate(ctx context.Context, path string) (Snapshot, error) {
	s.mu.RLock()
	current, loaded, gen := s.snapshot.Path, s.snapshot.Loaded, s.generation
	s.mu.RUnlock()
	if path != current || !loaded {
		return s.Load(ctx, path)
	}

	v, err, _ := s.group.Do(path, func() (any, error) {
		images, err := s.loader.FetchImages(ctx, path)
		if err != nil {
			s.logger.Warn("collection refresh failed", "path", path, "error", err)
			return s.recordFailure(gen, err), fmt.Errorf("fetch images: %w", err)
		}

		s.mu.Lock()
		if gen != s.generation {
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return snap, nil
		}
		s.authoritative = cloneImages(images)
		s.snapshot.Images = cloneImages(images)
		s.snapshot.Pending = 0
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.LastError = nil
		s.snapshot.ConsecutiveFailures = 0
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.notify(snap)
		return snap, nil
	})
	snap, _ := v.(Snapshot)
	return snap, err
}

// RefreshDialogs reloads the dialog cache of the active scope.
func (s *Store) RefreshDialogs(ctx context.Context) error {
	s.mu.RLock()
	path, loaded, gen := s.snapshot.Path, s.snapshot.Loaded, s.generation
	s.mu.RUnlock()
	if !loaded {
		return ErrNoScope
	}

	dialogs, err := s.loader.FetchDialogs(ctx, path)
	if err != nil {
		s.logger.Warn("dialog refresh failed", "path", path, "error", err)
		return fmt.Errorf("fetch dialogs: %w", err)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	s.dialogs.ReplaceKeeping(dialogs, s.preserve)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// ApplyOptimisticMove moves intent.MovedID next to its new neighbors. It
// reports false and leaves the collection unchanged when the id is gone,
// which happens when a refresh superseded the gesture.
func (s *Store) ApplyOptimisticMove(intent gallery.ReorderIntent) (Snapshot, bool) {
	s.mu.Lock()
	moved, ok := MoveNeighbor(s.snapshot.Images, intent)
	if !ok {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, false
	}
	s.snapshot.Images = moved
	s.snapshot.Pending++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap, true
}

// ConfirmMove records that the authority accepted intent.
func (s *Store) ConfirmMove(intent gallery.ReorderIntent) {
	s.mu.Lock()
	if moved, ok := MoveNeighbor(s.authoritative, intent); ok {
		s.authoritative = moved
	}
	s.settleLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// RemoveOptimistic hides id from the collection ahead of confirmation.
func (s *Store) RemoveOptimistic(id string) (Snapshot, bool) {
	s.mu.Lock()
	rest, ok := without(s.snapshot.Images, id)
	if !ok {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, false
	}
	s.snapshot.Images = rest
	s.snapshot.Pending++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap, true
}

// ConfirmRemove records that the authority deleted id.
func (s *Store) ConfirmRemove(id string) {
	s.mu.Lock()
	if rest, ok := without(s.authoritative, id); ok {
		s.authoritative = rest
	}
	s.dialogs.Delete(id)
	s.settleLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Revert restores the last authoritative order, dropping every tentative
// mutation.
func (s *Store) Revert() Snapshot {
	s.mu.Lock()
	s.snapshot.Images = cloneImages(s.authoritative)
	s.snapshot.Pending = 0
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap
}

func (s *Store) settleLocked() {
	if s.snapshot.Pending > 0 {
		s.snapshot.Pending--
	}
}

// recordFailure keeps the previous data but records err for visibility.
func (s *Store) recordFailure(gen uint64, err error) Snapshot {
	s.mu.Lock()
	if gen == s.generation {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap
}

func (s *Store) snapshotLocked() Snapshot {
	snap := s.snapshot
	snap.Images = cloneImages(s.snapshot.Images)
	return snap
}

func (s *Store) notify(snap Snapshot) {
	s.listenersMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
