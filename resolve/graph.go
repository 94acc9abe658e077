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

package resolve

import (
	"maps"
	"slices"
	"sync"
)

// Graph records the declared relationships between resolved mods.
type Graph struct {
	mu sync.RWMutex

	// dependsOn maps mod name -> set of mods it pulls in
	// e.g., "Krastorio2" -> {"flib": true, "Krastorio2Assets": true}
	dependsOn map[string]map[string]bool

	// dependents maps mod name -> set of mods that pull it in
	dependents map[string]map[string]bool

	// incompatible maps mod name -> set of mods it declares "!" against
	incompatible map[string]map[string]bool
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		dependsOn:    make(map[string]map[string]bool),
		dependents:   make(map[string]map[string]bool),
		incompatible: make(map[string]map[string]bool),
	}
}

func addEdge(m map[string]map[string]bool, from, to string) {
	if m[from] == nil {
		m[from] = make(map[string]bool)
	}
	m[from][to] = true
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(set))
}

// AddDependency records that mod pulls in dep.
func (g *Graph) AddDependency(mod, dep string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	addEdge(g.dependsOn, mod, dep)
	addEdge(g.dependents, dep, mod)
}

// AddIncompatibility records that mod declares dep incompatible.
func (g *Graph) AddIncompatibility(mod, dep string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	addEdge(g.incompatible, mod, dep)
}

// Dependencies returns the mods that mod directly pulls in.
func (g *Graph) Dependencies(mod string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.dependsOn[mod])
}

// Dependents returns all mods that directly pull in mod.
func (g *Graph) Dependents(mod string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.dependents[mod])
}

// Incompatibilities returns the mods that mod declares incompatible.
func (g *Graph) Incompatibilities(mod string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.incompatible[mod])
}

// TransitiveDependents returns every mod that pulls in mod directly or
// through a chain of dependencies, sorted. mod itself is excluded even
// when a cycle leads back to it.
func (g *Graph) TransitiveDependents(mod string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]bool{mod: true}
	queue := []string{mod}
	var result []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for dep := range g.dependents[current] {
			if !visited[dep] {
				visited[dep] = true
				result = append(result, dep)
				queue = append(queue, dep)
			}
		}
	}

	slices.Sort(result)
	return result
}

// Edges returns a copy of the dependency adjacency, keyed by mod name.
func (g *Graph) Edges() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string][]string, len(g.dependsOn))
	for mod, deps := range g.dependsOn {
		out[mod] = sortedKeys(deps)
	}
	return out
}

// RemoveMod removes a mod and all its dependency edges from the graph.
// Returns the mods that pulled in the removed mod.
func (g *Graph) RemoveMod(mod string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	result := sortedKeys(g.dependents[mod])

	for dep := range g.dependsOn[mod] {
		delete(g.dependents[dep], mod)
	}
	for dependent := range g.dependents[mod] {
		delete(g.dependsOn[dependent], mod)
	}

	delete(g.dependsOn, mod)
	delete(g.dependents, mod)
	return result
}
