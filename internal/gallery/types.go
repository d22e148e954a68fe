package gallery

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ImageRecord mirrors one entry returned by /api/images. Identity is ID;
// Timestamp changes when the underlying asset is replaced.
type ImageRecord struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
}

// ParsedTimestamp returns the timestamp as time.Time when possible.
func (r ImageRecord) ParsedTimestamp() time.Time {
	return parseTime(r.Timestamp)
}

// RenderURL returns the asset URL with cache-busting parameters so a renderer
// refetches the image when either its timestamp or its bust counter changes.
func (r ImageRecord) RenderURL(bust int) string {
	if r.URL == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(r.URL, "?") {
		sep = "&"
	}
	return r.URL + sep + "t=" + url.QueryEscape(r.Timestamp) + "&b=" + strconv.Itoa(bust)
}

// ReorderIntent describes a move relative to the item's new neighbors. An
// empty PrevID or NextID means there is no neighbor on that side.
type ReorderIntent struct {
	MovedID string
	PrevID  string
	NextID  string
}

// reorderRequest is the body of POST /api/images/{id}/reorder. Missing
// neighbors are sent as JSON null.
type reorderRequest struct {
	PrevID *string `json:"prev_id"`
	NextID *string `json:"next_id"`
}

func newReorderRequest(intent ReorderIntent) reorderRequest {
	var req reorderRequest
	if intent.PrevID != "" {
		prev := intent.PrevID
		req.PrevID = &prev
	}
	if intent.NextID != "" {
		next := intent.NextID
		req.NextID = &next
	}
	return req
}

// DialogPayload mirrors GET/POST /api/images/{id}/dialog.
type DialogPayload struct {
	Dialog []string `json:"dialog"`
}

// DialogsPayload mirrors /api/dialogs.
type DialogsPayload struct {
	Dialogs map[string][]string `json:"dialogs"`
}

// SpeakerMeta mirrors /api/speakers. Keys are decimal speaker ids.
type SpeakerMeta struct {
	Colors map[string]string `json:"speaker_colors"`
	Names  map[string]string `json:"speaker_names"`
}

// DefaultSpeakers returns the registry the server falls back to.
func DefaultSpeakers() SpeakerMeta {
	return SpeakerMeta{
		Colors: map[string]string{"0": "#000000"},
		Names:  map[string]string{"0": "Narrator"},
	}
}

// IDs returns the registered speaker ids in ascending order. Keys that are not
// non-negative integers are skipped.
func (m SpeakerMeta) IDs() []int {
	seen := make(map[int]struct{}, len(m.Names))
	for _, keys := range []map[string]string{m.Names, m.Colors} {
		for k := range keys {
			id, err := strconv.Atoi(strings.TrimSpace(k))
			if err != nil || id < 0 {
				continue
			}
			seen[id] = struct{}{}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// DirEntry describes a subdirectory returned by /api/dirs.
type DirEntry struct {
	Name       string `json:"name"`
	ImageCount int    `json:"image_count"`
	DirCount   int    `json:"dir_count"`
}

type descriptionPayload struct {
	Description string `json:"description"`
}

type pathPayload struct {
	Path string `json:"path"`
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
