package app

import (
	"io"
	"log/slog"
	"testing"

	"github.com/five82/storyboard/internal/gallery"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClient(t *testing.T, url string) *gallery.Client {
	t.Helper()
	c, err := gallery.NewClient(url)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}
