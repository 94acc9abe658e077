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

package modinfo

import "sync"

// Cache holds parsed manifests keyed by file path, so repeated scans of a
// large mods directory do not reopen every archive.
type Cache interface {
	// Get retrieves a cached manifest by its file path.
	Get(path string) (*Info, bool)

	// Set stores a parsed manifest.
	Set(path string, info *Info)

	// Invalidate removes a cached entry, typically after a mod is replaced.
	Invalidate(path string)

	// GetOrLoad retrieves from cache or loads using the provided function.
	// Only one goroutine runs the loader for a given path; others wait.
	GetOrLoad(path string, loader func() (*Info, error)) (*Info, error)
}

type cacheEntry struct {
	info *Info
	err  error
	once sync.Once
}

// MemoryCache is a goroutine-safe in-memory Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	cache   map[string]*Info
	loading sync.Map // map[string]*cacheEntry
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		cache: make(map[string]*Info),
	}
}

// Get retrieves a cached manifest by its file path.
func (c *MemoryCache) Get(path string) (*Info, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.cache[path]
	return info, ok
}

// Set stores a parsed manifest.
func (c *MemoryCache) Set(path string, info *Info) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[path] = info
}

// Invalidate removes a cached entry and any in-flight loading state.
func (c *MemoryCache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.cache, path)
	c.mu.Unlock()
	c.loading.Delete(path)
}

// GetOrLoad retrieves from cache or loads using loader. Failed loads are
// not stored, but callers waiting on the same load share its error.
func (c *MemoryCache) GetOrLoad(path string, loader func() (*Info, error)) (*Info, error) {
	c.mu.RLock()
	if info, ok := c.cache[path]; ok {
		c.mu.RUnlock()
		return info, nil
	}
	c.mu.RUnlock()

	actual, _ := c.loading.LoadOrStore(path, &cacheEntry{})
	entry := actual.(*cacheEntry)

	entry.once.Do(func() {
		entry.info, entry.err = loader()
		if entry.err == nil {
			c.mu.Lock()
			c.cache[path] = entry.info
			c.mu.Unlock()
		} else {
			c.loading.Delete(path)
		}
	})

	return entry.info, entry.err
}
