package updates

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/storyboard/internal/gallery"
)

const (
	// EventUpdate is the only event name the bridge reacts to.
	EventUpdate = "update"

	defaultCoalesce    = 100 * time.Millisecond
	defaultBackoffBase = 2 * time.Second
	maxBackoff         = 30 * time.Second
	maxLineBytes       = 1 << 20
)

// ErrStreamClosed is returned when the authority ends the stream cleanly.
var ErrStreamClosed = errors.New("update stream closed")

// Opener opens the authority's event stream.
type Opener interface {
	OpenUpdates(ctx context.Context) (io.ReadCloser, error)
}

var _ Opener = (*gallery.Client)(nil)

// Options configure a Bridge.
type Options struct {
	Opener   Opener
	OnChange func()
	// Coalesce is the quiet window that merges bursts into one OnChange.
	Coalesce time.Duration
	// Reconnect reopens a failed stream with exponential backoff instead of
	// giving up.
	Reconnect   bool
	BackoffBase time.Duration
	Logger      *slog.Logger
}

// Bridge turns the authority's push stream into coalesced change callbacks.
type Bridge struct {
	opener    Opener
	onChange  func()
	coalesce  time.Duration
	reconnect bool
	base      time.Duration
	logger    *slog.Logger

	connected atomic.Bool
	received  atomic.Int64
}

// New returns a Bridge. It does nothing until Run.
func New(opts Options) *Bridge {
	coalesce := opts.Coalesce
	if coalesce <= 0 {
		coalesce = defaultCoalesce
	}
	base := opts.BackoffBase
	if base <= 0 {
		base = defaultBackoffBase
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	onChange := opts.OnChange
	if onChange == nil {
		onChange = func() {}
	}
	return &Bridge{
		opener:    opts.Opener,
		onChange:  onChange,
		coalesce:  coalesce,
		reconnect: opts.Reconnect,
		base:      base,
		logger:    logger,
	}
}

// Connected reports whether a stream is currently open.
func (b *Bridge) Connected() bool {
	return b.connected.Load()
}

// Received reports how many update events arrived since New.
func (b *Bridge) Received() int64 {
	return b.received.Load()
}

// Run consumes the stream until ctx is cancelled. Without Reconnect it
// returns the first stream error; cancellation returns nil.
func (b *Bridge) Run(ctx context.Context) error {
	c := newCoalescer(b.coalesce, b.onChange)
	defer func() { c.stop(ctx.Err() == nil) }()

	failures := 0
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(failures-1, b.base)
			b.logger.Info("reconnecting to update stream", "delay", delay, "failures", failures)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
		}

		opened, err := b.consume(ctx, c, attempt > 0)
		if ctx.Err() != nil {
			return nil
		}
		if opened {
			failures = 0
		}
		failures++
		b.logger.Warn("update stream ended", "error", err)
		if !b.reconnect {
			return err
		}
	}
}

// consume reads one connection. opened reports whether the stream was
// established before it failed.
func (b *Bridge) consume(ctx context.Context, c *coalescer, resumed bool) (opened bool, err error) {
	body, err := b.opener.OpenUpdates(ctx)
	if err != nil {
		return false, fmt.Errorf("open update stream: %w", err)
	}
	defer body.Close()

	b.connected.Store(true)
	defer b.connected.Store(false)
	b.logger.Debug("update stream open")

	// Events may have been missed while disconnected.
	if resumed {
		c.trigger()
	}

	err = readEvents(body, func(ev event) {
		if ev.name != EventUpdate {
			return
		}
		b.received.Add(1)
		b.logger.Debug("update event", "data", ev.data)
		c.trigger()
	})
	if err == nil {
		err = ErrStreamClosed
	}
	return true, err
}

type event struct {
	name string
	data string
}

// readEvents parses a text/event-stream body and calls fn per dispatched
// event. It returns nil at EOF.
func readEvents(r io.Reader, fn func(event)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)

	var (
		name    string
		data    []string
		hasData bool
	)
	dispatch := func() {
		if name == "" && !hasData {
			return
		}
		if name == "" {
			name = "message"
		}
		fn(event{name: name, data: strings.Join(data, "\n")})
		name, data, hasData = "", nil, false
	}

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			dispatch()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
			hasData = true
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read update stream: %w", err)
	}
	return nil
}

// calculateBackoff returns base doubled once per failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// coalescer calls fn once per quiet window, however many triggers arrive.
type coalescer struct {
	window time.Duration
	fn     func()

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	stopped bool
}

func newCoalescer(window time.Duration, fn func()) *coalescer {
	return &coalescer{window: window, fn: fn}
}

func (c *coalescer) trigger() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	seq := c.seq
	c.timer = time.AfterFunc(c.window, func() { c.fire(seq) })
}

func (c *coalescer) fire(seq uint64) {
	c.mu.Lock()
	if c.stopped || seq != c.seq || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()
	c.fn()
}

// stop disarms the coalescer. With flush set, a pending notification is
// delivered before returning.
func (c *coalescer) stop(flush bool) {
	c.mu.Lock()
	pending := c.timer != nil
	if pending {
		c.timer.Stop()
	}
	c.timer = nil
	c.stopped = true
	c.mu.Unlock()
	if pending && flush {
		c.fn()
	}
}
