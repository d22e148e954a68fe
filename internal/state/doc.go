// Package state holds the client-side view of one gallery scope.
//
// # Overview
//
// Store keeps the ordered image collection and the per-image dialog cache for
// the active scope (a directory path on the server). It is the single place
// where optimistic local changes meet authoritative data from the server.
//
// # Two Orders
//
// The store tracks two sequences:
//
//	visible        what the UI renders, including tentative local mutations
//	authoritative  the last order the server confirmed
//
// A local mutation moves through three states:
//
//	ApplyOptimisticMove / RemoveOptimistic   tentative (visible only)
//	ConfirmMove / ConfirmRemove              confirmed (applied to authoritative)
//	Revert                                   reverted (visible = authoritative)
//
// Revert never needs the network, which keeps the rollback path testable on
// its own. Callers normally follow it with Invalidate so the visible order
// converges on the server's order within one round trip.
//
// # Reloads
//
//	Load(path)        scope change: images and dialogs fetched concurrently,
//	                  everything from the previous scope dropped
//	Invalidate(path)  same scope: images refetched, concurrent callers share
//	                  one request
//	RefreshDialogs()  same scope: dialog cache refetched
//
// Results that arrive after the scope changed are discarded. Between two
// authoritative writers the later arrival wins.
//
// # Update Semantics
//
// Failed reloads keep the previous data and record the error:
//
//	→ snapshot.Images = <unchanged>
//	→ snapshot.LastError = err
//	→ snapshot.ConsecutiveFailures++
//
// A failed Load of a different scope still leaves an empty snapshot for the
// new path so ids from the old scope never show under the new one.
//
// # Notifications
//
// Subscribe registers callbacks that run synchronously after each change has
// settled. A move is published once, after removal and reinsertion, so no
// listener sees a collection that lacks the moved id.
//
// # Render Versions
//
// BustCounter is independent of the scope. It counts local reorders per id
// so renderers can bypass url-level caches for images whose neighbors moved.
package state
