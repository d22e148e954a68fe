package updates

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-contrib/sse"

	"github.com/five82/storyboard/internal/gallery"
)

func encodeEvents(t *testing.T, events ...sse.Event) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, ev := range events {
		if err := sse.Encode(&buf, ev); err != nil {
			t.Fatalf("sse.Encode: %v", err)
		}
	}
	return buf.Bytes()
}

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		": keepalive",
		"",
		"event: update",
		"data: ch1",
		"",
		"data: first",
		"data: second",
		"",
		"event:ping",
		"",
		"event:update",
		"",
		"",
	}, "\n")

	var got []event
	if err := readEvents(strings.NewReader(stream), func(ev event) { got = append(got, ev) }); err != nil {
		t.Fatalf("readEvents returned error: %v", err)
	}
	want := []event{
		{name: "update", data: "ch1"},
		{name: "message", data: "first\nsecond"},
		{name: "ping"},
		{name: "update"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %#v, want %#v", got, want)
	}
}

func TestReadEvents_DropsUnterminatedEvent(t *testing.T) {
	stream := "event: update\ndata: ch1\n\nevent: update\ndata: ch2\n"

	var got []event
	if err := readEvents(strings.NewReader(stream), func(ev event) { got = append(got, ev) }); err != nil {
		t.Fatalf("readEvents returned error: %v", err)
	}
	want := []event{{name: "update", data: "ch1"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %#v, want %#v", got, want)
	}
}

func TestReadEvents_GinEncoding(t *testing.T) {
	raw := encodeEvents(t,
		sse.Event{Event: "update", Data: "stories/a b"},
		sse.Event{Event: "update", Data: ""},
	)
	var names []string
	if err := readEvents(bytes.NewReader(raw), func(ev event) { names = append(names, ev.name) }); err != nil {
		t.Fatalf("readEvents returned error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"update", "update"}) {
		t.Fatalf("names = %v, want two updates", names)
	}
}

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second},
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	for failures := 0; failures <= 64; failures++ {
		if got := calculateBackoff(failures, 2*time.Second); got > maxBackoff {
			t.Errorf("calculateBackoff(%d) = %v, exceeds maxBackoff %v", failures, got, maxBackoff)
		}
	}
}

func TestBridge_CoalescesBurstOverHTTP(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/updates" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i := 0; i < 5; i++ {
			_ = sse.Encode(w, sse.Event{Event: "update", Data: "ch1"})
			_ = sse.Encode(w, sse.Event{Event: "heartbeat", Data: "x"})
			flusher.Flush()
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := gallery.NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	var calls atomic.Int32
	b := New(Options{
		Opener:   client,
		OnChange: func() { calls.Add(1) },
		Coalesce: 30 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for b.Received() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := b.Received(); got != 5 {
		t.Fatalf("Received = %d, want 5 (heartbeats ignored)", got)
	}
	if !b.Connected() {
		t.Fatalf("Connected = false while stream open")
	}
	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("OnChange calls = %d, want 1", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestBridge_FailedOpenWithoutReconnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := gallery.NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	b := New(Options{Opener: client})
	err = b.Run(context.Background())
	var statusErr *gallery.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("Run error = %v, want StatusError 503", err)
	}
}

type scriptedOpener struct {
	mu      sync.Mutex
	streams [][]byte
	errs    []error
	opens   int
}

func (s *scriptedOpener) OpenUpdates(ctx context.Context) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.opens
	s.opens++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.streams) {
		return io.NopCloser(bytes.NewReader(s.streams[i])), nil
	}
	// Hold the connection open until cancelled.
	pr, pw := io.Pipe()
	go func() {
		<-ctx.Done()
		pw.CloseWithError(ctx.Err())
	}()
	return pr, nil
}

func (s *scriptedOpener) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

func TestBridge_StreamEndDeliversPendingChange(t *testing.T) {
	opener := &scriptedOpener{streams: [][]byte{encodeEvents(t,
		sse.Event{Event: "update", Data: "ch1"},
		sse.Event{Event: "update", Data: "ch1"},
	)}}
	var calls atomic.Int32
	b := New(Options{Opener: opener, OnChange: func() { calls.Add(1) }, Coalesce: time.Hour})

	err := b.Run(context.Background())
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("Run error = %v, want ErrStreamClosed", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("OnChange calls = %d, want 1", got)
	}
	if opener.count() != 1 {
		t.Fatalf("opens = %d, want 1 without reconnect", opener.count())
	}
}

func TestBridge_ReconnectResumesWithRefresh(t *testing.T) {
	opener := &scriptedOpener{
		errs:    []error{errors.New("refused"), nil},
		streams: [][]byte{nil, encodeEvents(t, sse.Event{Event: "ping", Data: "x"})},
	}
	var calls atomic.Int32
	b := New(Options{
		Opener:      opener,
		OnChange:    func() { calls.Add(1) },
		Coalesce:    10 * time.Millisecond,
		Reconnect:   true,
		BackoffBase: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for opener.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if opener.count() < 3 {
		t.Fatalf("opens = %d, want at least 3", opener.count())
	}
	time.Sleep(50 * time.Millisecond)
	if calls.Load() == 0 {
		t.Fatalf("OnChange not called after reconnect")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run after cancel = %v, want nil", err)
	}
}
