package state

import (
	"strconv"
	"sync"
	"testing"

	"github.com/five82/storyboard/internal/dialog"
)

func TestDialogCache_GetSetClone(t *testing.T) {
	c := NewDialogCache()
	if got := c.Get("missing"); got != nil {
		t.Fatalf("Get(missing) = %#v, want nil", got)
	}

	d := dialog.Dialog{{SpeakerID: 1, Text: "hi"}}
	c.Set("a", d)
	d[0].Text = "changed"

	got := c.Get("a")
	if got[0].Text != "hi" {
		t.Fatalf("Set should store a copy; got %q", got[0].Text)
	}
	got[0].Text = "again"
	if c.Get("a")[0].Text != "hi" {
		t.Fatalf("Get should return a copy")
	}
}

func TestDialogCache_ReplaceAndRetain(t *testing.T) {
	c := NewDialogCache()
	c.Set("old", dialog.Placeholder())

	c.Replace(map[string][]string{"a": {"0:x"}, "b": {"2:y"}, "c": {}})
	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}
	if c.Get("old") != nil {
		t.Fatalf("Replace kept entry from previous contents")
	}
	if got := c.Get("b"); len(got) != 1 || got[0].SpeakerID != 2 {
		t.Fatalf("Get(b) = %#v", got)
	}

	c.Retain(map[string]struct{}{"a": {}})
	all := c.All()
	if len(all) != 1 || all["a"] == nil {
		t.Fatalf("All after Retain = %v, want only a", all)
	}

	c.Delete("a")
	if c.Len() != 0 {
		t.Fatalf("Len after Delete = %d, want 0", c.Len())
	}
}

func TestBustCounter(t *testing.T) {
	b := NewBustCounter()
	b.Bump("a", "b", "", "a")
	b.Bump("b")

	if got := b.Get("a"); got != 1 {
		t.Fatalf("Get(a) = %d, want 1 (duplicates in one call count once)", got)
	}
	if got := b.Get("b"); got != 2 {
		t.Fatalf("Get(b) = %d, want 2", got)
	}
	if got := b.Get(""); got != 0 {
		t.Fatalf("Get(\"\") = %d, want 0", got)
	}
}

func TestDialogCache_ReplaceKeeping(t *testing.T) {
	c := NewDialogCache()
	c.Set("a", dialog.Dialog{{SpeakerID: 1, Text: "local draft"}})
	c.Set("b", dialog.Dialog{{Text: "stale"}})

	c.ReplaceKeeping(map[string][]string{"a": {"1:server"}, "b": {"0:fresh"}}, func(id string) bool {
		return id == "a"
	})
	if got := c.Get("a"); got[0].Text != "local draft" {
		t.Fatalf("kept entry = %#v, want local draft", got)
	}
	if got := c.Get("b"); got[0].Text != "fresh" {
		t.Fatalf("replaced entry = %#v, want fresh", got)
	}
}

func TestDialogCache_ConcurrentWritesSurviveSwap(t *testing.T) {
	c := NewDialogCache()
	keepLocal := func(id string) bool { return id != "remote" }

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		id := "w" + strconv.Itoa(w)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Set(id, dialog.Dialog{{Text: strconv.Itoa(i)}})
				c.Delete("stale")
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			c.ReplaceKeeping(map[string][]string{"remote": {"0:r"}}, keepLocal)
			c.Retain(map[string]struct{}{"w0": {}, "w1": {}, "w2": {}, "w3": {}, "remote": {}})
		}
	}()
	wg.Wait()

	for w := 0; w < 4; w++ {
		id := "w" + strconv.Itoa(w)
		if got := c.Get(id); len(got) != 1 || got[0].Text != "199" {
			t.Fatalf("Get(%s) = %#v, want last write 199", id, got)
		}
	}
	if got := c.Get("remote"); len(got) != 1 || got[0].Text != "r" {
		t.Fatalf("Get(remote) = %#v", got)
	}
}
