package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("scheme = %q, want http", u.Scheme)
	}
	if u.Host != defaultAPIURL {
		t.Fatalf("host = %q, want %q", u.Host, defaultAPIURL)
	}

	u, err = parseBaseURL("https://example.com:1234/path?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
	if u.Scheme != "https" {
		t.Fatalf("scheme = %q, want https", u.Scheme)
	}
}

func TestClient_EncodesPathsAndQueries(t *testing.T) {
	t.Parallel()

	type call struct {
		method  string
		rawPath string
		scope   string
		body    string
	}
	var calls []call
	var gotClientID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		calls = append(calls, call{
			method:  r.Method,
			rawPath: r.URL.EscapedPath(),
			scope:   r.URL.Query().Get("path"),
			body:    strings.TrimSpace(string(raw)),
		})
		gotClientID = r.Header.Get(clientIDHeader)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/api/images" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode([]ImageRecord{{ID: "a", URL: "/images/a.png", Timestamp: "2024-01-01T00:00:00Z"}})
		case r.URL.Path == "/api/dialogs":
			_ = json.NewEncoder(w).Encode(DialogsPayload{Dialogs: map[string][]string{"a": {"0:hi"}}})
		case strings.HasSuffix(r.URL.Path, "/dialog") && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(DialogPayload{Dialog: []string{"1:hello"}})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	images, err := c.FetchImages(ctx, "chapter 1/a&b")
	if err != nil {
		t.Fatalf("FetchImages returned error: %v", err)
	}
	if len(images) != 1 || images[0].ID != "a" {
		t.Fatalf("FetchImages = %#v, want one image a", images)
	}

	if err := c.Reorder(ctx, "ch", ReorderIntent{MovedID: "x/y", PrevID: "p"}); err != nil {
		t.Fatalf("Reorder returned error: %v", err)
	}
	lines, err := c.FetchDialog(ctx, "ch", "a b")
	if err != nil {
		t.Fatalf("FetchDialog returned error: %v", err)
	}
	if len(lines) != 1 || lines[0] != "1:hello" {
		t.Fatalf("FetchDialog = %v, want [1:hello]", lines)
	}
	if err := c.SaveDialog(ctx, "", "a", nil); err != nil {
		t.Fatalf("SaveDialog returned error: %v", err)
	}
	dialogs, err := c.FetchDialogs(ctx, "ch")
	if err != nil {
		t.Fatalf("FetchDialogs returned error: %v", err)
	}
	if got := dialogs["a"]; len(got) != 1 || got[0] != "0:hi" {
		t.Fatalf("FetchDialogs = %v, want a -> [0:hi]", dialogs)
	}
	if err := c.DeleteImage(ctx, "ch", "a"); err != nil {
		t.Fatalf("DeleteImage returned error: %v", err)
	}

	want := []call{
		{method: http.MethodGet, rawPath: "/api/images", scope: "chapter 1/a&b"},
		{method: http.MethodPost, rawPath: "/api/images/x%2Fy/reorder", scope: "ch", body: `{"prev_id":"p","next_id":null}`},
		{method: http.MethodGet, rawPath: "/api/images/a%20b/dialog", scope: "ch"},
		{method: http.MethodPost, rawPath: "/api/images/a/dialog", scope: "", body: `{"dialog":[]}`},
		{method: http.MethodGet, rawPath: "/api/dialogs", scope: "ch"},
		{method: http.MethodDelete, rawPath: "/api/images/a", scope: "ch"},
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %#v, want %d calls", calls, len(want))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %#v, want %#v", i, calls[i], want[i])
		}
	}
	if gotClientID == "" || gotClientID != c.ClientID() {
		t.Fatalf("client id header = %q, want %q", gotClientID, c.ClientID())
	}
}

func TestClient_ReorderRequiresMovedID(t *testing.T) {
	c, err := NewClient("127.0.0.1:1")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if err := c.Reorder(context.Background(), "", ReorderIntent{}); err == nil {
		t.Fatalf("Reorder returned nil error, want error")
	}
}

func TestClient_StatusAndDecodeErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/images":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{not-json"))
		default:
			http.Error(w, "nope", http.StatusConflict)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	_, err = c.FetchImages(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("FetchImages error = %v, want decode response error", err)
	}

	err = c.Reorder(context.Background(), "", ReorderIntent{MovedID: "a"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Reorder error = %v, want *StatusError", err)
	}
	if statusErr.Code != http.StatusConflict {
		t.Fatalf("status code = %d, want %d", statusErr.Code, http.StatusConflict)
	}
}

func TestClient_SpeakersPathAndDescription(t *testing.T) {
	t.Parallel()

	var saved SpeakerMeta
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/speakers":
			if r.Method == http.MethodPost {
				_ = json.NewDecoder(r.Body).Decode(&saved)
				return
			}
			_ = json.NewEncoder(w).Encode(DefaultSpeakers())
		case "/api/path":
			_, _ = w.Write([]byte(`{"path":"book/ch1"}`))
		case "/api/dirs":
			_, _ = w.Write([]byte(`[{"name":"ch1","image_count":3,"dir_count":0}]`))
		case "/api/images/a/description":
			_, _ = w.Write([]byte(`{"description":"a caption: with colon"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, WithRateLimit(100))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()

	meta, err := c.FetchSpeakers(ctx)
	if err != nil {
		t.Fatalf("FetchSpeakers returned error: %v", err)
	}
	if meta.Names["0"] != "Narrator" {
		t.Fatalf("speaker 0 = %q, want Narrator", meta.Names["0"])
	}
	meta.Names["1"] = "Ann"
	if err := c.SaveSpeakers(ctx, meta); err != nil {
		t.Fatalf("SaveSpeakers returned error: %v", err)
	}
	if saved.Names["1"] != "Ann" {
		t.Fatalf("saved names = %v, want 1 -> Ann", saved.Names)
	}

	path, err := c.FetchDefaultPath(ctx)
	if err != nil || path != "book/ch1" {
		t.Fatalf("FetchDefaultPath = %q, %v, want book/ch1", path, err)
	}
	dirs, err := c.FetchDirs(ctx, "book")
	if err != nil || len(dirs) != 1 || dirs[0].ImageCount != 3 {
		t.Fatalf("FetchDirs = %#v, %v, want one dir with 3 images", dirs, err)
	}
	desc, err := c.FetchDescription(ctx, "", "a")
	if err != nil || desc != "a caption: with colon" {
		t.Fatalf("FetchDescription = %q, %v", desc, err)
	}
}

func TestClient_OpenUpdatesRejectsNon2xx(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	body, err := c.OpenUpdates(context.Background())
	if err == nil {
		_ = body.Close()
		t.Fatalf("OpenUpdates returned nil error, want status error")
	}
}
