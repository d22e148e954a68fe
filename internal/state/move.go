package state

import "github.com/five82/storyboard/internal/gallery"

// MoveNeighbor returns a copy of images with intent.MovedID reinserted
// immediately after PrevID, or immediately before NextID when PrevID is
// empty or unknown, or at the end when neither neighbor is found. The bool is
// false, and images is returned unchanged, when MovedID is not present.
func MoveNeighbor(images []gallery.ImageRecord, intent gallery.ReorderIntent) ([]gallery.ImageRecord, bool) {
	from := indexOf(images, intent.MovedID)
	if intent.MovedID == "" || from < 0 {
		return images, false
	}
	moved := images[from]

	rest := make([]gallery.ImageRecord, 0, len(images))
	rest = append(rest, images[:from]...)
	rest = append(rest, images[from+1:]...)

	at := len(rest)
	if p := indexOf(rest, intent.PrevID); intent.PrevID != "" && p >= 0 {
		at = p + 1
	} else if n := indexOf(rest, intent.NextID); intent.NextID != "" && n >= 0 {
		at = n
	}

	out := make([]gallery.ImageRecord, 0, len(images))
	out = append(out, rest[:at]...)
	out = append(out, moved)
	out = append(out, rest[at:]...)
	return out, true
}

// without returns a copy of images lacking id.
func without(images []gallery.ImageRecord, id string) ([]gallery.ImageRecord, bool) {
	idx := indexOf(images, id)
	if id == "" || idx < 0 {
		return images, false
	}
	out := make([]gallery.ImageRecord, 0, len(images)-1)
	out = append(out, images[:idx]...)
	out = append(out, images[idx+1:]...)
	return out, true
}

func indexOf(images []gallery.ImageRecord, id string) int {
	for i, img := range images {
		if img.ID == id {
			return i
		}
	}
	return -1
}

func cloneImages(images []gallery.ImageRecord) []gallery.ImageRecord {
	if len(images) == 0 {
		return nil
	}
	dup := make([]gallery.ImageRecord, len(images))
	copy(dup, images)
	return dup
}
