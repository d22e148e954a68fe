// Package dialogsync buffers caption edits and writes them to the authority.
//
// Every edit updates the shared dialog cache immediately and (re)arms a
// per-image timer. When an image stays quiet for the debounce window the
// timer sends the cache's current state, so a burst of k edits becomes one
// write carrying the last edit.
//
// Timers are held in an explicit table keyed by image id:
//
//	SetLine / AppendLine / RemoveLine   arm or reset the timer for id
//	Flush(id)                           cancel the timer and write now
//	FlushAll                            Flush every armed id
//	Stop                                cancel every timer without writing
//
// A timer remembers the scope it was armed in. If the scope changed before it
// fires, the write is dropped and logged because the cache no longer holds
// that scope's data. Callers that switch scope run FlushAll first.
//
// Write failures are logged and dropped. Nothing is retried.
package dialogsync
