package state

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/storyboard/internal/dialog"
	"github.com/five82/storyboard/internal/gallery"
)

type fakeLoader struct {
	mu       sync.Mutex
	images   map[string][]gallery.ImageRecord
	dialogs  map[string]map[string][]string
	imageErr error
	calls    atomic.Int32
	gate     chan struct{}
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		images:  map[string][]gallery.ImageRecord{},
		dialogs: map[string]map[string][]string{},
	}
}

func (f *fakeLoader) FetchImages(ctx context.Context, path string) ([]gallery.ImageRecord, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return cloneImages(f.images[path]), nil
}

func (f *fakeLoader) FetchDialogs(_ context.Context, path string) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string][]string{}
	for k, v := range f.dialogs[path] {
		out[k] = append([]string(nil), v...)
	}
	return out, nil
}

func records(ids ...string) []gallery.ImageRecord {
	out := make([]gallery.ImageRecord, len(ids))
	for i, id := range ids {
		out[i] = gallery.ImageRecord{ID: id, URL: "/images/" + id + ".png", Timestamp: "t"}
	}
	return out
}

func idsOf(images []gallery.ImageRecord) []string {
	return Snapshot{Images: images}.IDs()
}

func loadedStore(t *testing.T, ids ...string) (*Store, *fakeLoader) {
	t.Helper()
	loader := newFakeLoader()
	loader.images["ch1"] = records(ids...)
	s := NewStore(loader, nil)
	if _, err := s.Load(context.Background(), "ch1"); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return s, loader
}

func TestStore_LoadAndSnapshotClone(t *testing.T) {
	loader := newFakeLoader()
	loader.images["ch1"] = records("a", "b")
	loader.dialogs["ch1"] = map[string][]string{"a": {"0:hello"}}
	s := NewStore(loader, nil)

	before := time.Now()
	snap, err := s.Load(context.Background(), "ch1")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !snap.Loaded || snap.Path != "ch1" {
		t.Fatalf("snapshot = %#v, want loaded ch1", snap)
	}
	if got := idsOf(snap.Images); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("ids = %v, want [a b]", got)
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}
	if d := s.Dialogs().Get("a"); len(d) != 1 || d[0].Text != "hello" {
		t.Fatalf("dialog a = %#v, want hello", d)
	}

	snap.Images[0].ID = "mutated"
	if got := s.Snapshot().Images[0].ID; got != "a" {
		t.Fatalf("Snapshot should clone images; got %q want a", got)
	}
}

func TestStore_PathChangeReplacesEverything(t *testing.T) {
	loader := newFakeLoader()
	loader.images["one"] = records("a", "b")
	loader.dialogs["one"] = map[string][]string{"a": {"0:x"}, "b": {"1:y"}}
	loader.images["two"] = records("c")
	loader.dialogs["two"] = map[string][]string{"c": {"0:z"}}
	s := NewStore(loader, nil)
	ctx := context.Background()

	if _, err := s.Load(ctx, "one"); err != nil {
		t.Fatalf("Load(one): %v", err)
	}
	snap, err := s.Load(ctx, "two")
	if err != nil {
		t.Fatalf("Load(two): %v", err)
	}
	if got := idsOf(snap.Images); !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("ids = %v, want [c]", got)
	}
	all := s.Dialogs().All()
	if len(all) != 1 || all["c"] == nil {
		t.Fatalf("dialogs = %v, want only c", all)
	}
}

func TestStore_FailedLoadOfNewScopeDropsOldData(t *testing.T) {
	s, loader := loadedStore(t, "a", "b")
	s.Dialogs().Set("a", nil)
	loader.imageErr = errors.New("boom")

	snap, err := s.Load(context.Background(), "other")
	if err == nil {
		t.Fatalf("Load returned nil error, want boom")
	}
	if snap.Path != "other" || len(snap.Images) != 0 || snap.Loaded {
		t.Fatalf("snapshot = %#v, want empty unloaded scope other", snap)
	}
	if snap.LastError == nil || snap.ConsecutiveFailures != 1 {
		t.Fatalf("failure not recorded: %#v", snap)
	}
	if s.Dialogs().Len() != 0 {
		t.Fatalf("dialog cache kept %d entries from previous scope", s.Dialogs().Len())
	}
}

func TestStore_RollbackScenario(t *testing.T) {
	s, _ := loadedStore(t, "A", "B", "C")

	snap, ok := s.ApplyOptimisticMove(gallery.ReorderIntent{MovedID: "C", PrevID: "A", NextID: "B"})
	if !ok {
		t.Fatalf("ApplyOptimisticMove reported not applied")
	}
	if got := idsOf(snap.Images); !reflect.DeepEqual(got, []string{"A", "C", "B"}) {
		t.Fatalf("optimistic order = %v, want [A C B]", got)
	}
	if snap.Pending != 1 {
		t.Fatalf("Pending = %d, want 1", snap.Pending)
	}

	reverted := s.Revert()
	if got := idsOf(reverted.Images); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("reverted order = %v, want [A B C]", got)
	}

	snap, err := s.Invalidate(context.Background(), "ch1")
	if err != nil {
		t.Fatalf("Invalidate returned error: %v", err)
	}
	if got := idsOf(snap.Images); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("invalidated order = %v, want [A B C]", got)
	}
	if snap.Pending != 0 {
		t.Fatalf("Pending = %d, want 0 after invalidate", snap.Pending)
	}
}

func TestStore_ConfirmedMoveSurvivesRevert(t *testing.T) {
	s, _ := loadedStore(t, "A", "B", "C", "D")

	first := gallery.ReorderIntent{MovedID: "D", NextID: "A"}
	s.ApplyOptimisticMove(first)
	s.ConfirmMove(first)

	s.ApplyOptimisticMove(gallery.ReorderIntent{MovedID: "A", PrevID: "C"})
	snap := s.Revert()
	if got := idsOf(snap.Images); !reflect.DeepEqual(got, []string{"D", "A", "B", "C"}) {
		t.Fatalf("order = %v, want confirmed [D A B C]", got)
	}
}

func TestStore_MoveOfMissingIDIsNoop(t *testing.T) {
	s, _ := loadedStore(t, "A", "B")
	var notified int
	s.Subscribe(func(Snapshot) { notified++ })

	snap, ok := s.ApplyOptimisticMove(gallery.ReorderIntent{MovedID: "Z", PrevID: "A"})
	if ok {
		t.Fatalf("ApplyOptimisticMove reported applied for missing id")
	}
	if got := idsOf(snap.Images); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("order = %v, want unchanged", got)
	}
	if snap.Pending != 0 || notified != 0 {
		t.Fatalf("Pending = %d notified = %d, want 0/0", snap.Pending, notified)
	}
}

func TestStore_OptimisticRemove(t *testing.T) {
	s, _ := loadedStore(t, "A", "B", "C")
	s.Dialogs().Set("B", nil)

	snap, ok := s.RemoveOptimistic("B")
	if !ok || !reflect.DeepEqual(idsOf(snap.Images), []string{"A", "C"}) {
		t.Fatalf("RemoveOptimistic = %v, %v", idsOf(snap.Images), ok)
	}
	if got := idsOf(s.Revert().Images); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("revert = %v, want [A B C]", got)
	}

	s.RemoveOptimistic("B")
	s.ConfirmRemove("B")
	if got := idsOf(s.Revert().Images); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Fatalf("revert after confirm = %v, want [A C]", got)
	}
	if s.Dialogs().Len() != 0 {
		t.Fatalf("dialog for removed id kept")
	}
}

func TestStore_InvalidateCoalescesConcurrentCalls(t *testing.T) {
	s, loader := loadedStore(t, "A")
	loader.calls.Store(0)
	loader.gate = make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Invalidate(context.Background(), "ch1"); err != nil {
				t.Errorf("Invalidate returned error: %v", err)
			}
		}()
	}
	// Let every caller join the in-flight request before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(loader.gate)
	wg.Wait()

	if got := loader.calls.Load(); got != 1 {
		t.Fatalf("FetchImages calls = %d, want 1", got)
	}
}

func TestStore_InvalidateFailureKeepsData(t *testing.T) {
	s, loader := loadedStore(t, "A", "B")
	loader.imageErr = errors.New("offline")

	snap, err := s.Invalidate(context.Background(), "ch1")
	if err == nil {
		t.Fatalf("Invalidate returned nil error, want offline")
	}
	if got := idsOf(snap.Images); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("order = %v, want previous data", got)
	}
	if snap.ConsecutiveFailures != 1 {
		t.Fatalf("ConsecutiveFailures = %d, want 1", snap.ConsecutiveFailures)
	}
}

func TestStore_RefreshDialogs(t *testing.T) {
	s, loader := loadedStore(t, "A")
	loader.dialogs["ch1"] = map[string][]string{"A": {"2:late"}}

	if err := s.RefreshDialogs(context.Background()); err != nil {
		t.Fatalf("RefreshDialogs returned error: %v", err)
	}
	if d := s.Dialogs().Get("A"); len(d) != 1 || d[0].SpeakerID != 2 {
		t.Fatalf("dialog = %#v, want speaker 2", d)
	}

	empty := NewStore(newFakeLoader(), nil)
	if err := empty.RefreshDialogs(context.Background()); !errors.Is(err, ErrNoScope) {
		t.Fatalf("RefreshDialogs on empty store = %v, want ErrNoScope", err)
	}
}

func TestStore_SubscribeSeesSettledState(t *testing.T) {
	s, _ := loadedStore(t, "A", "B", "C")
	var seen [][]string
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		seen = append(seen, idsOf(snap.Images))
	})

	s.ApplyOptimisticMove(gallery.ReorderIntent{MovedID: "A", PrevID: "C"})
	unsubscribe()
	s.Revert()

	if len(seen) != 1 || !reflect.DeepEqual(seen[0], []string{"B", "C", "A"}) {
		t.Fatalf("notifications = %v, want one with [B C A]", seen)
	}
}

func TestStore_RefreshKeepsUnsentDialogs(t *testing.T) {
	s, loader := loadedStore(t, "A", "B")
	s.Dialogs().Set("A", dialog.Dialog{{SpeakerID: 1, Text: "typing"}})
	s.PreserveDialogs(func(id string) bool { return id == "A" })
	loader.dialogs["ch1"] = map[string][]string{"A": {"1:old"}, "B": {"2:remote"}}

	if err := s.RefreshDialogs(context.Background()); err != nil {
		t.Fatalf("RefreshDialogs returned error: %v", err)
	}
	if d := s.Dialogs().Get("A"); d[0].Text != "typing" {
		t.Fatalf("unsent dialog overwritten: %#v", d)
	}
	if d := s.Dialogs().Get("B"); d[0].Text != "remote" {
		t.Fatalf("dialog B = %#v, want remote", d)
	}
}
