package state

import (
	"sync"

	"github.com/patrickmn/go-cache"

	"github.com/five82/storyboard/internal/dialog"
)

// DialogCache maps image ids to their dialogs for the active scope. Entries
// never expire; the whole cache is swapped when the scope reloads.
type DialogCache struct {
	// mu orders writers against the scope swap in ReplaceKeeping.
	mu    sync.RWMutex
	items *cache.Cache
}

// NewDialogCache returns an empty cache.
func NewDialogCache() *DialogCache {
	return &DialogCache{items: cache.New(cache.NoExpiration, 0)}
}

// Get returns a copy of the dialog for id, or nil when absent.
func (c *DialogCache) Get(id string) dialog.Dialog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items.Get(id)
	if !ok {
		return nil
	}
	return v.(dialog.Dialog).Clone()
}

// Set stores a copy of d for id.
func (c *DialogCache) Set(id string, d dialog.Dialog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Set(id, d.Clone(), cache.NoExpiration)
}

// Delete drops the entry for id.
func (c *DialogCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Delete(id)
}

// Replace swaps the cache contents for the decoded wire map in one step, so
// readers never observe a mix of old and new scope entries.
func (c *DialogCache) Replace(raw map[string][]string) {
	c.ReplaceKeeping(raw, nil)
}

// ReplaceKeeping is Replace, except that current entries for which keep
// reports true survive and win over raw.
func (c *DialogCache) ReplaceKeeping(raw map[string][]string, keep func(id string) bool) {
	items := make(map[string]cache.Item, len(raw))
	for id, lines := range raw {
		items[id] = cache.Item{Object: dialog.Decode(lines)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if keep != nil {
		for id, item := range c.items.Items() {
			if keep(id) {
				items[id] = cache.Item{Object: item.Object}
			}
		}
	}
	c.items = cache.NewFrom(cache.NoExpiration, 0, items)
}

// Retain drops every entry whose id is not in keep.
func (c *DialogCache) Retain(keep map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.items.Items() {
		if _, ok := keep[id]; !ok {
			c.items.Delete(id)
		}
	}
}

// All returns a copy of every cached dialog.
func (c *DialogCache) All() map[string]dialog.Dialog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items := c.items.Items()
	out := make(map[string]dialog.Dialog, len(items))
	for id, item := range items {
		out[id] = item.Object.(dialog.Dialog).Clone()
	}
	return out
}

// Len reports the number of cached dialogs.
func (c *DialogCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items.ItemCount()
}
