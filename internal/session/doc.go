// Package session wires the collection store, dialog syncer, reorder
// coordinator, lightbox and push stream of one client.
//
//	push stream ──> bridge (coalesce) ──> Refresh ──> store ──> listeners
//	                                                    │          ├─> lightbox.Reconcile
//	UI gestures ──> coordinator ──> store (optimistic)  │          └─> Changes()
//	caption edits ─> syncer (debounce) ─> authority     │
//	                                   rejected ──> Alerts()
//
// SwitchScope closes the lightbox and flushes pending caption edits before
// the new scope loads, so no edit is written under the wrong path. Dialog
// reloads keep entries whose edits have not been sent yet.
package session
