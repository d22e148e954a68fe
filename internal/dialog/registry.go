package dialog

import (
	"sort"
	"strconv"
	"strings"

	"github.com/five82/storyboard/internal/gallery"
)

const defaultColor = "#000000"

// Registry resolves speaker ids to display names and colors. It is read-only
// from the point of view of the sync core.
type Registry struct {
	names  map[int]string
	colors map[int]string
}

// NewRegistry builds a Registry from the wire representation.
func NewRegistry(meta gallery.SpeakerMeta) Registry {
	r := Registry{names: map[int]string{}, colors: map[int]string{}}
	for k, v := range meta.Names {
		if id, ok := parseID(k); ok {
			r.names[id] = v
		}
	}
	for k, v := range meta.Colors {
		if id, ok := parseID(k); ok {
			r.colors[id] = v
		}
	}
	return r
}

// DefaultRegistry holds only the narrator.
func DefaultRegistry() Registry {
	return NewRegistry(gallery.DefaultSpeakers())
}

// Name returns the speaker's display name, or "" when unknown.
func (r Registry) Name(id int) string {
	return r.names[id]
}

// Color returns the speaker's color, falling back to black.
func (r Registry) Color(id int) string {
	if c := strings.TrimSpace(r.colors[id]); c != "" {
		return c
	}
	return defaultColor
}

// IDs returns every registered speaker id in ascending order.
func (r Registry) IDs() []int {
	seen := map[int]struct{}{NarratorID: {}}
	for id := range r.names {
		seen[id] = struct{}{}
	}
	for id := range r.colors {
		seen[id] = struct{}{}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// NextSpeaker returns the registered id following current, wrapping around.
func (r Registry) NextSpeaker(current int) int {
	ids := r.IDs()
	for i, id := range ids {
		if id == current {
			return ids[(i+1)%len(ids)]
		}
	}
	return ids[0]
}

// Label renders a line for display: narrator text as-is, otherwise
// "Name: text".
func (r Registry) Label(l Line) string {
	if l.IsNarrator() {
		return l.Text
	}
	name := r.Name(l.SpeakerID)
	if name == "" {
		name = "Speaker " + strconv.Itoa(l.SpeakerID)
	}
	return name + ": " + l.Text
}

// Preview returns the label of the first line, or "" for an empty dialog.
func (r Registry) Preview(d Dialog) string {
	if d.Empty() {
		return ""
	}
	return r.Label(d[0])
}

func parseID(key string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
