/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package catalog

import (
	"context"
	"sync"
)

// ReleaseSource provides release lists by mod name. *Client implements it.
type ReleaseSource interface {
	Releases(ctx context.Context, mod string) ([]Release, error)
}

// ReleaseCache deduplicates release lookups made during one operation.
// It is safe for concurrent use; callers create a fresh cache per
// operation so metadata is never reused across invocations.
type ReleaseCache struct {
	source  ReleaseSource
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	releases []Release
	once     sync.Once
	err      error
}

// NewReleaseCache creates an empty cache in front of source.
func NewReleaseCache(source ReleaseSource) *ReleaseCache {
	return &ReleaseCache{
		source:  source,
		entries: make(map[string]*cacheEntry),
	}
}

// Releases returns the release list of mod, loading it at most once even
// with concurrent callers. Failed loads are cached too.
func (c *ReleaseCache) Releases(ctx context.Context, mod string) ([]Release, error) {
	c.mu.Lock()
	entry, ok := c.entries[mod]
	if !ok {
		entry = &cacheEntry{}
		c.entries[mod] = entry
	}
	c.mu.Unlock()

	// Load outside the lock
	entry.once.Do(func() {
		entry.releases, entry.err = c.source.Releases(ctx, mod)
	})
	return entry.releases, entry.err
}

// Size returns the number of mods looked up so far.
func (c *ReleaseCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
