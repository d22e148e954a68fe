// Package updates bridges the authority's server-sent event stream to the
// collection store.
//
// Only events named "update" count; their payload is ignored. Bursts are
// merged: each event re-arms a short quiet timer and OnChange runs once the
// stream has been quiet for the window (100ms by default).
//
// By default a failed or closed stream is not reopened and Run returns the
// error, leaving the view to go stale until the scope is reopened. With
// Reconnect set, Run reopens with exponential backoff:
//
//	failure 1 → base (2s)
//	failure 2 → 4s
//	failure 3 → 8s
//	...       → capped at 30s
//
// A reopened stream triggers one OnChange because events may have been missed.
package updates
