// Package core implements the in-memory session/room coordination engine:
// the room registry, nickname bindings, per-room history, the ban list, and
// the coordinator that serializes all mutations and decides who receives
// each broadcast. All state is process-lifetime only.
package core

import (
	"sort"
	"sync"
)

// BanList is the set of banned origin identifiers (remote addresses).
// Entries are added by admin action and removed by an explicit unban.
type BanList struct {
	mu      sync.RWMutex
	origins map[string]struct{}
}

// NewBanList returns an empty ban list.
func NewBanList() *BanList {
	return &BanList{origins: make(map[string]struct{})}
}

// IsBanned reports whether the origin is currently banned.
func (b *BanList) IsBanned(origin string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, banned := b.origins[origin]
	return banned
}

// Ban adds the origin to the list. Idempotent.
func (b *BanList) Ban(origin string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.origins[origin] = struct{}{}
}

// Unban removes the origin from the list. No-op if absent.
func (b *BanList) Unban(origin string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.origins, origin)
}

// List returns the banned origins in sorted order.
func (b *BanList) List() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.origins))
	for origin := range b.origins {
		out = append(out, origin)
	}
	sort.Strings(out)
	return out
}
