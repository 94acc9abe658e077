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

// Package resolve computes the set of mods to install for a requested set,
// following the dependency declarations of each mod's latest release.
package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/factorio-headless/fhctl/catalog"
	"github.com/factorio-headless/fhctl/dependency"
	"github.com/factorio-headless/fhctl/internal/logging"
	"github.com/factorio-headless/fhctl/internal/metrics"
)

// BaseMod is the platform mod every game ships with. It is never fetched
// from the catalog and never part of a result.
const BaseMod = "base"

// DefaultMaxDepth expands only the requested mods' own dependencies.
const DefaultMaxDepth = 1

// Resolver computes install sets against a release source.
type Resolver struct {
	source       catalog.ReleaseSource
	logger       logging.Logger
	keepOptional bool
	maxDepth     int // 0 = full transitive closure
}

// New creates a resolver that reads releases from source.
func New(source catalog.ReleaseSource) *Resolver {
	return &Resolver{
		source:   source,
		logger:   logging.Nop(),
		maxDepth: DefaultMaxDepth,
	}
}

// WithLogger returns a new Resolver with the specified logger.
func (r *Resolver) WithLogger(logger logging.Logger) *Resolver {
	return &Resolver{
		source:       r.source,
		logger:       logging.OrNop(logger),
		keepOptional: r.keepOptional,
		maxDepth:     r.maxDepth,
	}
}

// WithKeepOptional returns a new Resolver that also installs optional
// dependencies ("?" and "(?)").
func (r *Resolver) WithKeepOptional(keep bool) *Resolver {
	return &Resolver{
		source:       r.source,
		logger:       r.logger,
		keepOptional: keep,
		maxDepth:     r.maxDepth,
	}
}

// WithMaxDepth returns a new Resolver that expands dependency declarations
// up to depth levels below the requested mods. Zero follows dependencies of
// dependencies until no new mods appear. Negative values are treated as zero.
func (r *Resolver) WithMaxDepth(depth int) *Resolver {
	return &Resolver{
		source:       r.source,
		logger:       r.logger,
		keepOptional: r.keepOptional,
		maxDepth:     max(depth, 0),
	}
}

// MaxDepth returns the configured expansion depth.
func (r *Resolver) MaxDepth() int {
	return r.maxDepth
}

type pending struct {
	mod   string
	depth int
}

// Resolve returns the install set for requested. A catalog or parse failure
// aborts the whole resolution and no partial result is returned.
func (r *Resolver) Resolve(ctx context.Context, requested []string) (*Result, error) {
	cache := catalog.NewReleaseCache(r.source)
	graph := NewGraph()
	releases := make(map[string]catalog.Release)
	seen := make(map[string]bool)

	var queue []pending
	for _, mod := range requested {
		if !seen[mod] {
			seen[mod] = true
			queue = append(queue, pending{mod: mod})
		}
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]

		if current.mod == BaseMod || (r.maxDepth > 0 && current.depth >= r.maxDepth) {
			continue
		}

		list, err := cache.Releases(ctx, current.mod)
		if err != nil {
			return nil, err
		}
		latest, err := catalog.LatestRelease(list)
		if err != nil {
			return nil, fmt.Errorf("mod %s: %w", current.mod, err)
		}
		releases[current.mod] = latest
		r.logger.Debug("expanding mod", "mod", current.mod, "version", latest.Version, "depth", current.depth)

		for _, decl := range latest.Dependencies() {
			spec, err := dependency.Parse(decl)
			if err != nil {
				return nil, fmt.Errorf("mod %s %s: %w", current.mod, latest.Version, err)
			}
			if !spec.Compatible() {
				graph.AddIncompatibility(current.mod, spec.Name())
				continue
			}
			if !keep(spec, r.keepOptional) {
				continue
			}
			graph.AddDependency(current.mod, spec.Name())
			if !seen[spec.Name()] {
				seen[spec.Name()] = true
				queue = append(queue, pending{mod: spec.Name(), depth: current.depth + 1})
			}
		}
	}

	delete(seen, BaseMod)
	if needs := graph.RemoveMod(BaseMod); len(needs) > 0 {
		r.logger.Debug("base is provided by the server", "required_by", needs)
	}

	result := &Result{
		mods:     slices.Sorted(maps.Keys(seen)),
		graph:    graph,
		releases: releases,
	}
	for _, c := range result.Conflicts() {
		r.logger.Warn("resolved set contains an incompatible mod", "mod", c.Mod, "incompatible", c.With)
	}
	metrics.ModsResolved.Set(float64(len(result.mods)))
	return result, nil
}

func keep(spec dependency.Spec, keepOptional bool) bool {
	return spec.Required() || (spec.Compatible() && keepOptional)
}

// NeededDependencies parses decls and returns, in declaration order, the
// names of the mods that must be installed alongside the declarer.
// Optional dependencies are included when keepOptional is set.
// Incompatible declarations are never included.
func NeededDependencies(decls []string, keepOptional bool) ([]string, error) {
	var names []string
	for _, decl := range decls {
		spec, err := dependency.Parse(decl)
		if err != nil {
			return nil, err
		}
		if keep(spec, keepOptional) {
			names = append(names, spec.Name())
		}
	}
	return names, nil
}

// Conflict is a resolved mod that another resolved mod declares incompatible.
type Conflict struct {
	Mod  string `json:"mod"`
	With string `json:"with"`
}

// Result is the outcome of one resolution.
type Result struct {
	mods     []string
	graph    *Graph
	releases map[string]catalog.Release
}

// Mods returns the install set, sorted and without the base mod.
func (r *Result) Mods() []string {
	return slices.Clone(r.mods)
}

// Contains reports whether mod is in the install set.
func (r *Result) Contains(mod string) bool {
	_, found := slices.BinarySearch(r.mods, mod)
	return found
}

// Graph returns the dependency graph built during resolution.
func (r *Result) Graph() *Graph {
	return r.graph
}

// Release returns the latest release seen for an expanded mod.
// Mods beyond the expansion depth have no release recorded.
func (r *Result) Release(mod string) (catalog.Release, bool) {
	rel, ok := r.releases[mod]
	return rel, ok
}

// RequiredBy returns the resolved mods that pull in mod directly or
// through other dependencies. Requested mods nothing depends on have none.
func (r *Result) RequiredBy(mod string) []string {
	return r.graph.TransitiveDependents(mod)
}

// Conflicts returns the pairs where one resolved mod declares another
// resolved mod incompatible.
func (r *Result) Conflicts() []Conflict {
	var out []Conflict
	for _, mod := range r.mods {
		for _, other := range r.graph.Incompatibilities(mod) {
			if r.Contains(other) {
				out = append(out, Conflict{Mod: mod, With: other})
			}
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (r *Result) MarshalJSON() ([]byte, error) {
	versions := make(map[string]string, len(r.releases))
	for mod, rel := range r.releases {
		versions[mod] = rel.Version
	}
	requiredBy := make(map[string][]string)
	for _, mod := range r.mods {
		if by := r.RequiredBy(mod); len(by) > 0 {
			requiredBy[mod] = by
		}
	}
	return json.Marshal(struct {
		Mods         []string            `json:"mods"`
		Versions     map[string]string   `json:"versions,omitempty"`
		Dependencies map[string][]string `json:"dependencies,omitempty"`
		RequiredBy   map[string][]string `json:"requiredBy,omitempty"`
		Conflicts    []Conflict          `json:"conflicts,omitempty"`
	}{
		Mods:         r.Mods(),
		Versions:     versions,
		Dependencies: r.graph.Edges(),
		RequiredBy:   requiredBy,
		Conflicts:    r.Conflicts(),
	})
}
