package dialog

import (
	"reflect"
	"testing"

	"github.com/five82/storyboard/internal/gallery"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Line
	}{
		{"narrator", "0:once upon a time", Line{0, "once upon a time"}},
		{"speaker", "3:hello", Line{3, "hello"}},
		{"colons in text", "2:time: 12:30", Line{2, "time: 12:30"}},
		{"empty text", "0:", Line{0, ""}},
		{"no colon", "just words", Line{0, "just words"}},
		{"non numeric prefix", "note: keep", Line{0, "note: keep"}},
		{"negative prefix", "-1:x", Line{0, "-1:x"}},
		{"signed prefix", "+4:x", Line{0, "+4:x"}},
		{"empty prefix", ":x", Line{0, ":x"}},
		{"empty", "", Line{0, ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseLine(tc.in); got != tc.want {
				t.Fatalf("ParseLine(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestLine_RoundTrip(t *testing.T) {
	texts := []string{"", "plain", "a:b:c", ":leading", "trailing:", "::", "unicode ✓: ok"}
	for _, id := range []int{0, 1, 7, 42, 1 << 20} {
		for _, text := range texts {
			in := Line{SpeakerID: id, Text: text}
			if got := ParseLine(in.String()); got != in {
				t.Fatalf("round trip %#v -> %q -> %#v", in, in.String(), got)
			}
		}
	}
}

func TestLine_NegativeEncodesAsNarrator(t *testing.T) {
	if got := (Line{SpeakerID: -3, Text: "x"}).String(); got != "0:x" {
		t.Fatalf("String = %q, want 0:x", got)
	}
}

func TestDialog_DecodeEncode(t *testing.T) {
	d := Decode([]string{"0:intro", "1:hi: there"})
	want := Dialog{{0, "intro"}, {1, "hi: there"}}
	if !reflect.DeepEqual(d, want) {
		t.Fatalf("Decode = %#v, want %#v", d, want)
	}
	if got := d.Encode(); !reflect.DeepEqual(got, []string{"0:intro", "1:hi: there"}) {
		t.Fatalf("Encode = %v", got)
	}
	if got := Dialog(nil).Encode(); got == nil || len(got) != 0 {
		t.Fatalf("Encode(nil) = %#v, want empty non-nil slice", got)
	}
	if Decode(nil) != nil {
		t.Fatalf("Decode(nil) should be nil")
	}
}

func TestDialog_CloneIsIndependent(t *testing.T) {
	d := Dialog{{1, "a"}}
	dup := d.Clone()
	dup[0].Text = "b"
	if d[0].Text != "a" {
		t.Fatalf("Clone shares backing array")
	}
}

func TestPlaceholderAndFromDescription(t *testing.T) {
	if got := Placeholder(); len(got) != 1 || got[0] != (Line{}) {
		t.Fatalf("Placeholder = %#v, want one empty narrator line", got)
	}
	if got := FromDescription(""); !got.Empty() {
		t.Fatalf("FromDescription(\"\") = %#v, want empty", got)
	}
	if got := FromDescription("Title: sub"); len(got) != 1 || got[0] != (Line{0, "Title: sub"}) {
		t.Fatalf("FromDescription = %#v", got)
	}
	if got := FromDescription("Title: sub").Encode()[0]; ParseLine(got) != (Line{0, "Title: sub"}) {
		t.Fatalf("description does not survive encoding: %q", got)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(gallery.SpeakerMeta{
		Names:  map[string]string{"0": "Narrator", "1": "Ann", "bad": "x"},
		Colors: map[string]string{"1": "#ff0000", "3": "#00ff00"},
	})

	if got := reg.IDs(); !reflect.DeepEqual(got, []int{0, 1, 3}) {
		t.Fatalf("IDs = %v, want [0 1 3]", got)
	}
	if got := reg.Color(0); got != defaultColor {
		t.Fatalf("Color(0) = %q, want default", got)
	}
	if got := reg.Color(1); got != "#ff0000" {
		t.Fatalf("Color(1) = %q", got)
	}
	if got := reg.NextSpeaker(3); got != 0 {
		t.Fatalf("NextSpeaker(3) = %d, want wrap to 0", got)
	}
	if got := reg.NextSpeaker(9); got != 0 {
		t.Fatalf("NextSpeaker(unknown) = %d, want 0", got)
	}

	cases := []struct {
		line Line
		want string
	}{
		{Line{0, "It rained."}, "It rained."},
		{Line{1, "Hi"}, "Ann: Hi"},
		{Line{3, "Yo"}, "Speaker 3: Yo"},
	}
	for _, tc := range cases {
		if got := reg.Label(tc.line); got != tc.want {
			t.Fatalf("Label(%#v) = %q, want %q", tc.line, got, tc.want)
		}
	}
	if got := reg.Preview(Dialog{{1, "Hi"}, {0, "later"}}); got != "Ann: Hi" {
		t.Fatalf("Preview = %q", got)
	}
	if got := reg.Preview(nil); got != "" {
		t.Fatalf("Preview(nil) = %q, want empty", got)
	}
}
