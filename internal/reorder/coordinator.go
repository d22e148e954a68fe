// Package reorder turns drag gestures into neighbor-relative moves.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/five82/storyboard/internal/gallery"
	"github.com/five82/storyboard/internal/state"
)

var (
	// ErrNotInArrangement means the moved id is absent from the drop result.
	ErrNotInArrangement = errors.New("moved id not in arrangement")
	// ErrSuperseded means a refresh removed the id before the move applied.
	ErrSuperseded = errors.New("move superseded by refresh")
	// ErrNoMove means the gesture left the item where it was.
	ErrNoMove = errors.New("position unchanged")
)

// Remote submits mutations to the authority.
type Remote interface {
	Reorder(ctx context.Context, path string, intent gallery.ReorderIntent) error
	DeleteImage(ctx context.Context, path, id string) error
}

var _ Remote = (*gallery.Client)(nil)

// Options configure a Coordinator.
type Options struct {
	Store  *state.Store
	Busts  *state.BustCounter
	Remote Remote
	// OnFailure receives rejected mutations for a user-visible alert.
	OnFailure func(error)
	Logger    *slog.Logger
}

// Coordinator applies moves optimistically and confirms them in the
// background. Submissions reach the authority in gesture order.
type Coordinator struct {
	ctx       context.Context
	store     *state.Store
	busts     *state.BustCounter
	remote    Remote
	onFailure func(error)
	logger    *slog.Logger

	mu   sync.Mutex
	tail chan struct{}
	wg   sync.WaitGroup
}

// New returns a Coordinator whose background submissions stop with ctx.
func New(ctx context.Context, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	busts := opts.Busts
	if busts == nil {
		busts = state.NewBustCounter()
	}
	onFailure := opts.OnFailure
	if onFailure == nil {
		onFailure = func(error) {}
	}
	return &Coordinator{
		ctx:       ctx,
		store:     opts.Store,
		busts:     busts,
		remote:    opts.Remote,
		onFailure: onFailure,
		logger:    logger,
	}
}

// Neighbors derives the intent for movedID from the post-drop order.
func Neighbors(arrangement []string, movedID string) (gallery.ReorderIntent, error) {
	intent := gallery.ReorderIntent{MovedID: movedID}
	for i, id := range arrangement {
		if id != movedID {
			continue
		}
		if i > 0 {
			intent.PrevID = arrangement[i-1]
		}
		if i < len(arrangement)-1 {
			intent.NextID = arrangement[i+1]
		}
		return intent, nil
	}
	return intent, ErrNotInArrangement
}

// Drop handles a completed drag. arrangement is the id order after the drop.
func (c *Coordinator) Drop(movedID string, arrangement []string) (gallery.ReorderIntent, error) {
	intent, err := Neighbors(arrangement, movedID)
	if err != nil {
		return intent, err
	}

	before := c.store.Snapshot()
	oldPrev, oldNext := neighborsOf(before.IDs(), movedID)

	if _, ok := c.store.ApplyOptimisticMove(intent); !ok {
		c.logger.Debug("reorder skipped", "id", movedID, "reason", "not in collection")
		return intent, ErrSuperseded
	}
	c.busts.Bump(movedID, oldPrev, oldNext, intent.PrevID, intent.NextID)

	path := before.Path
	c.enqueue(func(ctx context.Context) {
		if err := c.remote.Reorder(ctx, path, intent); err != nil {
			c.fail(ctx, path, fmt.Errorf("reorder %s: %w", movedID, err))
			return
		}
		c.store.ConfirmMove(intent)
	})
	return intent, nil
}

// Shift moves id by delta positions, the keyboard equivalent of a drag.
func (c *Coordinator) Shift(id string, delta int) (gallery.ReorderIntent, error) {
	ids := c.store.Snapshot().IDs()
	from := -1
	for i, v := range ids {
		if v == id {
			from = i
		}
	}
	if from < 0 {
		return gallery.ReorderIntent{MovedID: id}, ErrSuperseded
	}
	to := from + delta
	if to < 0 {
		to = 0
	}
	if to > len(ids)-1 {
		to = len(ids) - 1
	}
	if to == from {
		return gallery.ReorderIntent{MovedID: id}, ErrNoMove
	}
	return c.Drop(id, arrayMove(ids, from, to))
}

// Delete hides id immediately and removes it at the authority.
func (c *Coordinator) Delete(id string) error {
	snap, ok := c.store.RemoveOptimistic(id)
	if !ok {
		return ErrSuperseded
	}
	path := snap.Path
	c.enqueue(func(ctx context.Context) {
		if err := c.remote.DeleteImage(ctx, path, id); err != nil {
			c.fail(ctx, path, fmt.Errorf("delete %s: %w", id, err))
			return
		}
		c.store.ConfirmRemove(id)
	})
	return nil
}

// Wait blocks until every queued submission has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) enqueue(job func(ctx context.Context)) {
	c.mu.Lock()
	prev := c.tail
	done := make(chan struct{})
	c.tail = done
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		job(c.ctx)
	}()
}

// fail surfaces err, drops tentative state and resynchronizes with the
// authority. Nothing is retried.
func (c *Coordinator) fail(ctx context.Context, path string, err error) {
	c.logger.Error("mutation rejected", "path", path, "error", err)
	c.onFailure(err)

	if c.store.Path() != path {
		return
	}
	c.store.Revert()
	if _, ierr := c.store.Invalidate(ctx, path); ierr != nil {
		c.logger.Warn("refresh after rejected mutation failed", "path", path, "error", ierr)
	}
}

func neighborsOf(ids []string, id string) (prev, next string) {
	for i, v := range ids {
		if v != id {
			continue
		}
		if i > 0 {
			prev = ids[i-1]
		}
		if i < len(ids)-1 {
			next = ids[i+1]
		}
		return prev, next
	}
	return "", ""
}

// arrayMove returns a copy of ids with the element at from relocated to to.
func arrayMove(ids []string, from, to int) []string {
	out := make([]string, 0, len(ids))
	out = append(out, ids[:from]...)
	out = append(out, ids[from+1:]...)
	moved := ids[from]
	out = append(out[:to], append([]string{moved}, out[to:]...)...)
	return out
}
