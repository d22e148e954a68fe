// Package logtail reads the tail of the client log for the in-app log view.
//
// Read keeps a ring buffer of maxLines so only the newest lines are held in
// memory while the file is scanned once. A missing file yields nil, nil so the
// view can show an empty pane before anything has been logged.
//
// Parse and Filter understand the key=value lines written by slog's text
// handler:
//
//	time=2026-10-18T09:12:03.114+02:00 level=WARN msg="dialog persist failed" id=7f3c path=harbor/chapter-1 error="..."
//
// Lines from other writers are kept as INFO entries with the whole line as the
// message.
package logtail
