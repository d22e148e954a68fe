// Package dialog encodes speaker-tagged caption lines.
//
// A line travels as "<speakerId>:<text>". Only the first colon separates the
// two parts, so text may contain colons. Speaker 0 is the narrator and is
// rendered without a name label.
package dialog

import (
	"strconv"
	"strings"
)

// NarratorID is the reserved speaker id rendered without a label.
const NarratorID = 0

// Line is one caption line.
type Line struct {
	SpeakerID int
	Text      string
}

// ParseLine decodes "<id>:<text>". A line without a non-negative integer
// prefix is narrator text made of the whole input.
func ParseLine(raw string) Line {
	prefix, text, ok := strings.Cut(raw, ":")
	if !ok {
		return Line{SpeakerID: NarratorID, Text: raw}
	}
	id, err := strconv.Atoi(prefix)
	if err != nil || id < 0 || prefix == "" || prefix[0] == '+' {
		return Line{SpeakerID: NarratorID, Text: raw}
	}
	return Line{SpeakerID: id, Text: text}
}

// String encodes the line. Negative speaker ids are written as the narrator.
func (l Line) String() string {
	id := l.SpeakerID
	if id < 0 {
		id = NarratorID
	}
	return strconv.Itoa(id) + ":" + l.Text
}

// IsNarrator reports whether the line has no speaker label.
func (l Line) IsNarrator() bool {
	return l.SpeakerID <= NarratorID
}

// Dialog is the ordered caption of one image. An empty Dialog means the image
// has no caption yet.
type Dialog []Line

// Placeholder returns the single empty narrator line used to seed new dialogs.
func Placeholder() Dialog {
	return Dialog{{SpeakerID: NarratorID}}
}

// Decode parses wire lines.
func Decode(raw []string) Dialog {
	if len(raw) == 0 {
		return nil
	}
	d := make(Dialog, len(raw))
	for i, s := range raw {
		d[i] = ParseLine(s)
	}
	return d
}

// Encode renders the dialog as wire lines. The result is never nil so it
// serializes as an empty JSON array.
func (d Dialog) Encode() []string {
	out := make([]string, len(d))
	for i, l := range d {
		out[i] = l.String()
	}
	return out
}

// Clone returns an independent copy.
func (d Dialog) Clone() Dialog {
	if len(d) == 0 {
		return nil
	}
	dup := make(Dialog, len(d))
	copy(dup, d)
	return dup
}

// Empty reports whether the dialog has no lines.
func (d Dialog) Empty() bool {
	return len(d) == 0
}

// FromDescription converts a plain text description into a dialog. An empty
// description yields an empty dialog.
func FromDescription(desc string) Dialog {
	if desc == "" {
		return nil
	}
	return Dialog{{SpeakerID: NarratorID, Text: desc}}
}
