package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/storyboard/internal/dialog"
	"github.com/five82/storyboard/internal/dialogsync"
	"github.com/five82/storyboard/internal/gallery"
	"github.com/five82/storyboard/internal/lightbox"
	"github.com/five82/storyboard/internal/reorder"
	"github.com/five82/storyboard/internal/state"
	"github.com/five82/storyboard/internal/updates"
)

// closeTimeout bounds the final flush of pending dialog edits.
const closeTimeout = 5 * time.Second

// Options configure a Session.
type Options struct {
	Client         *gallery.Client
	DialogDebounce time.Duration
	UpdateCoalesce time.Duration
	Reconnect      bool
	EditMode       bool
	Logger         *slog.Logger
}

// Session owns one client's view of the collection: the store, the dialog
// syncer, the reorder coordinator, the lightbox and the push stream.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	client *gallery.Client
	logger *slog.Logger

	store    *state.Store
	busts    *state.BustCounter
	syncer   *dialogsync.Syncer
	coord    *reorder.Coordinator
	bridge   *updates.Bridge
	lightbox *lightbox.Machine
	edit     *lightbox.Toggle

	speakersMu sync.RWMutex
	speakers   dialog.Registry
	meta       gallery.SpeakerMeta

	changes chan state.Snapshot
	alerts  chan error

	unsubscribe func()
	started     atomic.Bool
	updatesDone chan struct{}
	closeOnce   sync.Once
}

// New wires a Session. Background work stops when ctx is cancelled or Close
// is called. Call Start to open the push stream.
func New(ctx context.Context, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)

	s := &Session{
		ctx:         ctx,
		cancel:      cancel,
		client:      opts.Client,
		logger:      logger,
		busts:       state.NewBustCounter(),
		edit:        &lightbox.Toggle{},
		speakers:    dialog.DefaultRegistry(),
		meta:        gallery.DefaultSpeakers(),
		changes:     make(chan state.Snapshot, 1),
		alerts:      make(chan error, 8),
		updatesDone: make(chan struct{}),
	}
	s.edit.Set(opts.EditMode)

	s.store = state.NewStore(opts.Client, logger.With("component", "store"))
	s.syncer = dialogsync.New(ctx, dialogsync.Options{
		Scope:     s.store,
		Persister: opts.Client,
		Quiet:     opts.DialogDebounce,
		Logger:    logger.With("component", "dialogs"),
	})
	s.store.PreserveDialogs(s.syncer.IsPending)

	s.coord = reorder.New(ctx, reorder.Options{
		Store:     s.store,
		Busts:     s.busts,
		Remote:    opts.Client,
		OnFailure: s.alert,
		Logger:    logger.With("component", "reorder"),
	})
	s.lightbox = lightbox.New(lightbox.Options{
		Collection: s.store,
		Dialogs:    s.syncer,
		EditMode:   s.edit,
		Describer:  opts.Client,
		Logger:     logger.With("component", "lightbox"),
	})
	s.bridge = updates.New(updates.Options{
		Opener:    opts.Client,
		OnChange:  s.onRemoteChange,
		Coalesce:  opts.UpdateCoalesce,
		Reconnect: opts.Reconnect,
		Logger:    logger.With("component", "updates"),
	})

	s.unsubscribe = s.store.Subscribe(func(snap state.Snapshot) {
		s.lightbox.Reconcile(snap)
		offer(s.changes, snap)
	})
	return s
}

// Start opens the push stream in the background.
func (s *Session) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	startUpdates(s.ctx, s.bridge, s.logger, s.updatesDone)
}

// Store returns the collection store.
func (s *Session) Store() *state.Store { return s.store }

// Dialogs returns the debounced dialog editor.
func (s *Session) Dialogs() *dialogsync.Syncer { return s.syncer }

// Lightbox returns the selection state machine.
func (s *Session) Lightbox() *lightbox.Machine { return s.lightbox }

// Snapshot returns the current collection.
func (s *Session) Snapshot() state.Snapshot { return s.store.Snapshot() }

// Path returns the active scope.
func (s *Session) Path() string { return s.store.Path() }

// Changes delivers the latest settled snapshot. Intermediate snapshots are
// dropped when the reader falls behind.
func (s *Session) Changes() <-chan state.Snapshot { return s.changes }

// Alerts delivers rejected reorders and deletes.
func (s *Session) Alerts() <-chan error { return s.alerts }

// Connected reports whether the push stream is open.
func (s *Session) Connected() bool { return s.bridge.Connected() }

// EditMode reports whether dialog editing is enabled.
func (s *Session) EditMode() bool { return s.edit.Enabled() }

// SetEditMode switches dialog editing. Leaving edit mode flushes the open
// image's pending edit.
func (s *Session) SetEditMode(ctx context.Context, on bool) error {
	was := s.edit.Enabled()
	s.edit.Set(on)
	if was && !on {
		if st := s.lightbox.State(); st.Open {
			return s.syncer.Flush(ctx, st.ID)
		}
	}
	return nil
}

// SwitchScope closes the lightbox, writes pending dialog edits for the old
// scope and loads path.
func (s *Session) SwitchScope(ctx context.Context, path string) (state.Snapshot, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	var errs []error
	if err := s.lightbox.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.syncer.FlushAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		s.logger.Warn("pending dialogs not written before scope change", "path", s.store.Path(), "error", errors.Join(errs...))
	}

	snap, err := s.store.Load(ctx, path)
	if err != nil {
		return snap, fmt.Errorf("load %q: %w", path, err)
	}
	s.logger.Info("scope loaded", "path", path, "images", len(snap.Images), "dialogs", s.store.Dialogs().Len())
	return snap, nil
}

// Refresh reloads images and dialogs of the active scope.
func (s *Session) Refresh(ctx context.Context) error {
	snap := s.store.Snapshot()
	path := snap.Path
	if !snap.Loaded {
		if path == "" {
			return state.ErrNoScope
		}
		_, err := s.store.Load(ctx, path)
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.store.Invalidate(gctx, path)
		return err
	})
	g.Go(func() error {
		return s.store.RefreshDialogs(gctx)
	})
	return g.Wait()
}

// Shift moves id by delta positions.
func (s *Session) Shift(id string, delta int) (gallery.ReorderIntent, error) {
	return s.coord.Shift(id, delta)
}

// Drop applies a completed drag whose result is arrangement.
func (s *Session) Drop(movedID string, arrangement []string) (gallery.ReorderIntent, error) {
	return s.coord.Drop(movedID, arrangement)
}

// Delete removes id optimistically.
func (s *Session) Delete(id string) error {
	return s.coord.Delete(id)
}

// RenderURL returns the cache-busted asset URL of img.
func (s *Session) RenderURL(img gallery.ImageRecord) string {
	return img.RenderURL(s.busts.Get(img.ID))
}

// Preview returns the labelled first dialog line of id.
func (s *Session) Preview(id string) string {
	return s.Speakers().Preview(s.syncer.Get(id))
}

// ListDirs lists the subdirectories of path.
func (s *Session) ListDirs(ctx context.Context, path string) ([]gallery.DirEntry, error) {
	return s.client.FetchDirs(ctx, strings.Trim(path, "/"))
}

// DefaultPath asks the authority which scope to open.
func (s *Session) DefaultPath(ctx context.Context) (string, error) {
	return s.client.FetchDefaultPath(ctx)
}

// Speakers returns the speaker registry.
func (s *Session) Speakers() dialog.Registry {
	s.speakersMu.RLock()
	defer s.speakersMu.RUnlock()
	return s.speakers
}

// LoadSpeakers fetches the speaker registry. On failure the narrator-only
// registry stays in place.
func (s *Session) LoadSpeakers(ctx context.Context) error {
	meta, err := s.client.FetchSpeakers(ctx)
	if err != nil {
		s.logger.Warn("speaker fetch failed", "error", err)
		return err
	}
	s.setSpeakers(meta)
	return nil
}

// NameSpeaker registers or renames speaker id and saves the registry.
func (s *Session) NameSpeaker(ctx context.Context, id int, name, color string) error {
	s.speakersMu.RLock()
	meta := gallery.SpeakerMeta{
		Names:  make(map[string]string, len(s.meta.Names)+1),
		Colors: make(map[string]string, len(s.meta.Colors)+1),
	}
	for k, v := range s.meta.Names {
		meta.Names[k] = v
	}
	for k, v := range s.meta.Colors {
		meta.Colors[k] = v
	}
	s.speakersMu.RUnlock()

	key := strconv.Itoa(id)
	meta.Names[key] = strings.TrimSpace(name)
	if color = strings.TrimSpace(color); color != "" {
		meta.Colors[key] = color
	}
	if err := s.client.SaveSpeakers(ctx, meta); err != nil {
		return fmt.Errorf("save speakers: %w", err)
	}
	s.setSpeakers(meta)
	return nil
}

func (s *Session) setSpeakers(meta gallery.SpeakerMeta) {
	s.speakersMu.Lock()
	s.meta = meta
	s.speakers = dialog.NewRegistry(meta)
	s.speakersMu.Unlock()
}

// Close writes pending edits, stops the push stream and waits for
// background work.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), closeTimeout)
		defer cancel()

		var errs []error
		if e := s.lightbox.Close(ctx); e != nil {
			errs = append(errs, e)
		}
		if e := s.syncer.FlushAll(ctx); e != nil {
			errs = append(errs, e)
		}
		s.syncer.Stop()
		s.unsubscribe()
		s.cancel()

		s.coord.Wait()
		s.syncer.Wait()
		if s.started.Load() {
			select {
			case <-s.updatesDone:
			case <-ctx.Done():
			}
		}
		err = errors.Join(errs...)
	})
	return err
}

func (s *Session) alert(err error) {
	s.logger.Debug("alert queued", "error", err)
	select {
	case s.alerts <- err:
	default:
	}
}

// onRemoteChange runs once per coalesced burst of push events.
func (s *Session) onRemoteChange() {
	if !s.store.Snapshot().Loaded {
		return
	}
	if err := s.Refresh(s.ctx); err != nil && s.ctx.Err() == nil {
		s.logger.Warn("refresh after update failed", "path", s.store.Path(), "error", err)
	}
}

// offer replaces any unread value in ch with v.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
