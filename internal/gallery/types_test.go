package gallery

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestImageRecord_RenderURL(t *testing.T) {
	cases := []struct {
		name string
		rec  ImageRecord
		bust int
		want string
	}{
		{"empty url", ImageRecord{ID: "a"}, 3, ""},
		{"plain", ImageRecord{URL: "/images/a.png", Timestamp: "2024-01-01T00:00:00+02:00"}, 2, "/images/a.png?t=2024-01-01T00%3A00%3A00%2B02%3A00&b=2"},
		{"existing query", ImageRecord{URL: "/img?id=a", Timestamp: "x"}, 0, "/img?id=a&t=x&b=0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rec.RenderURL(tc.bust); got != tc.want {
				t.Fatalf("RenderURL = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestReorderRequest_NullNeighbors(t *testing.T) {
	raw, err := json.Marshal(newReorderRequest(ReorderIntent{MovedID: "c", NextID: "a"}))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got, want := string(raw), `{"prev_id":null,"next_id":"a"}`; got != want {
		t.Fatalf("body = %s, want %s", got, want)
	}
}

func TestSpeakerMeta_IDs(t *testing.T) {
	meta := SpeakerMeta{
		Names:  map[string]string{"0": "Narrator", "2": "Bo", "x": "bad"},
		Colors: map[string]string{"1": "#fff", "-1": "#000"},
	}
	if got, want := meta.IDs(), []int{0, 1, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("IDs = %v, want %v", got, want)
	}
}

func TestImageRecord_ParsedTimestamp(t *testing.T) {
	if ts := (ImageRecord{Timestamp: "2024-05-06T07:08:09.123Z"}).ParsedTimestamp(); ts.IsZero() {
		t.Fatalf("ParsedTimestamp returned zero for RFC3339Nano input")
	}
	if ts := (ImageRecord{Timestamp: "yesterday"}).ParsedTimestamp(); !ts.IsZero() {
		t.Fatalf("ParsedTimestamp = %v, want zero for unparseable input", ts)
	}
}
