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

// Package reconcile mirrors one or more mod source trees into the single
// directory the server reads, using symbolic links.
package reconcile

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/factorio-headless/fhctl/fs"
	"github.com/factorio-headless/fhctl/internal/logging"
	"github.com/factorio-headless/fhctl/internal/metrics"
)

// ErrFilesystemConflict is returned when two sources claim the same
// destination path or when the destination cannot be rebuilt.
var ErrFilesystemConflict = errors.New("filesystem conflict")

// ConflictPolicy decides what happens when two sources provide the same
// relative path.
type ConflictPolicy int

const (
	// FailOnConflict aborts the merge before the destination is touched.
	FailOnConflict ConflictPolicy = iota
	// LastWins links the path from the last source that provides it.
	LastWins
)

// ParseConflictPolicy parses "fail" or "last-wins".
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(s) {
	case "", "fail":
		return FailOnConflict, nil
	case "last-wins", "lastwins":
		return LastWins, nil
	}
	return 0, fmt.Errorf("unknown conflict policy %q (want fail or last-wins)", s)
}

func (p ConflictPolicy) String() string {
	if p == LastWins {
		return "last-wins"
	}
	return "fail"
}

// Collision is a destination path provided by more than one source.
type Collision struct {
	Path    string   `json:"path"`
	Sources []string `json:"sources"`
}

// ConflictError lists every collision found while planning a merge.
type ConflictError struct {
	Collisions []Collision
}

func (e *ConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d path(s) provided by more than one source", ErrFilesystemConflict, len(e.Collisions))
	for _, c := range e.Collisions {
		fmt.Fprintf(&b, "\n  %s: %s", c.Path, strings.Join(c.Sources, ", "))
	}
	return b.String()
}

// Unwrap returns ErrFilesystemConflict.
func (e *ConflictError) Unwrap() error {
	return ErrFilesystemConflict
}

// Report summarises a completed merge.
type Report struct {
	Destination string      `json:"destination"`
	Sources     []string    `json:"sources"`
	Links       int         `json:"links"`
	Ignored     int         `json:"ignored"`
	Collisions  []Collision `json:"collisions,omitempty"`
}

type options struct {
	fsys   fs.FileSystem
	policy ConflictPolicy
	ignore []string
	logger logging.Logger
	now    func() time.Time
}

// Option configures Merge.
type Option func(*options)

// WithFileSystem sets the filesystem to operate on.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

// WithPolicy sets the collision policy.
func WithPolicy(p ConflictPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithIgnore skips source files whose path relative to their source root
// matches any of the doublestar patterns, e.g. "**/*.tmp".
func WithIgnore(patterns ...string) Option {
	return func(o *options) {
		o.ignore = append(o.ignore, patterns...)
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		o.logger = logging.OrNop(l)
	}
}

// SourceFile is a leaf file of a source tree.
type SourceFile struct {
	// Path is the file's path including the source root.
	Path string
	// Rel is the path relative to the source root, which is also its
	// path under the destination.
	Rel string
}

// Merge makes dest an exact symbolic-link mirror of the union of sources.
// The new tree is built in a sibling staging directory and swapped into
// place, so nothing that was in dest before survives. With FailOnConflict
// a collision aborts the merge before dest is modified.
func Merge(sources []string, dest string, opts ...Option) (*Report, error) {
	o := options{
		fsys:   fs.NewOSFileSystem(),
		logger: logging.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	for _, pattern := range o.ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}

	dest, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFilesystemConflict, err)
	}

	report := &Report{Destination: dest}
	links := make(map[string]string)
	providers := make(map[string][]string)
	for _, source := range sources {
		root, err := filepath.Abs(source)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFilesystemConflict, err)
		}
		switch {
		case root == dest:
			return nil, fmt.Errorf("%w: source %s is the destination", ErrFilesystemConflict, root)
		case within(dest, root):
			return nil, fmt.Errorf("%w: source %s is inside the destination %s", ErrFilesystemConflict, root, dest)
		case within(root, dest):
			return nil, fmt.Errorf("%w: destination %s is inside the source %s", ErrFilesystemConflict, dest, root)
		}
		if slices.Contains(report.Sources, root) {
			continue
		}
		report.Sources = append(report.Sources, root)

		files, err := ListSourceFiles(o.fsys, root)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if ignored(o.ignore, f.Rel) {
				report.Ignored++
				continue
			}
			links[f.Rel] = f.Path
			providers[f.Rel] = append(providers[f.Rel], f.Path)
		}
	}

	for _, rel := range slices.Sorted(maps.Keys(providers)) {
		if len(providers[rel]) > 1 {
			report.Collisions = append(report.Collisions, Collision{Path: rel, Sources: providers[rel]})
		}
	}
	if len(report.Collisions) > 0 {
		if o.policy == FailOnConflict {
			return nil, &ConflictError{Collisions: report.Collisions}
		}
		for _, c := range report.Collisions {
			o.logger.Warn("path provided by several sources, last one wins", "path", c.Path, "winner", links[c.Path])
		}
	}

	staging, err := build(o, dest, links)
	if err != nil {
		return nil, err
	}
	if err := swap(o, staging, dest); err != nil {
		_ = o.fsys.RemoveAll(staging)
		return nil, err
	}

	report.Links = len(links)
	metrics.MergeLinks.Set(float64(report.Links))
	o.logger.Info("merged mod sources", "destination", dest, "sources", len(report.Sources), "links", report.Links)
	return report, nil
}

// within reports whether path lies strictly below dir. Both are absolute
// and cleaned.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func ignored(patterns []string, rel string) bool {
	slashed := filepath.ToSlash(rel)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
	}
	return false
}

// build creates every link under a fresh staging directory next to dest.
func build(o options, dest string, links map[string]string) (string, error) {
	suffix := strconv.FormatInt(o.now().UnixNano(), 36)
	staging := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".staging-"+suffix)
	if err := o.fsys.MkdirAll(staging, 0755); err != nil {
		return "", fmt.Errorf("%w: creating staging directory: %w", ErrFilesystemConflict, err)
	}

	for _, rel := range slices.Sorted(maps.Keys(links)) {
		target := filepath.Join(staging, rel)
		if err := o.fsys.MkdirAll(filepath.Dir(target), 0755); err != nil {
			_ = o.fsys.RemoveAll(staging)
			return "", fmt.Errorf("%w: %s: %w", ErrFilesystemConflict, rel, err)
		}
		if err := o.fsys.Symlink(links[rel], target); err != nil {
			_ = o.fsys.RemoveAll(staging)
			return "", fmt.Errorf("%w: %s: %w", ErrFilesystemConflict, rel, err)
		}
	}
	return staging, nil
}

// swap replaces dest with staging. When dest itself cannot be renamed,
// as with a mount point, its contents are replaced instead.
func swap(o options, staging, dest string) error {
	if !o.fsys.Exists(dest) {
		if err := o.fsys.Rename(staging, dest); err != nil {
			return fmt.Errorf("%w: moving staging into place: %w", ErrFilesystemConflict, err)
		}
		return nil
	}

	old := strings.Replace(staging, ".staging-", ".old-", 1)
	if err := o.fsys.Rename(dest, old); err != nil {
		o.logger.Debug("destination cannot be renamed, replacing contents", "destination", dest, "err", err)
		return replaceContents(o, staging, dest)
	}
	if err := o.fsys.Rename(staging, dest); err != nil {
		if restoreErr := o.fsys.Rename(old, dest); restoreErr != nil {
			return fmt.Errorf("%w: moving staging into place: %w (previous tree left at %s)", ErrFilesystemConflict, err, old)
		}
		return fmt.Errorf("%w: moving staging into place: %w", ErrFilesystemConflict, err)
	}
	if err := o.fsys.RemoveAll(old); err != nil {
		o.logger.Warn("could not remove previous mods tree", "path", old, "err", err)
	}
	return nil
}

func replaceContents(o options, staging, dest string) error {
	if err := DeleteContents(o.fsys, dest); err != nil {
		return err
	}
	entries, err := o.fsys.ReadDir(staging)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFilesystemConflict, err)
	}
	for _, entry := range entries {
		if err := o.fsys.Rename(filepath.Join(staging, entry.Name()), filepath.Join(dest, entry.Name())); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrFilesystemConflict, entry.Name(), err)
		}
	}
	if err := o.fsys.RemoveAll(staging); err != nil {
		return fmt.Errorf("%w: %w", ErrFilesystemConflict, err)
	}
	return nil
}

// StripSource returns file's path relative to root. root may be given
// with or without a trailing separator.
func StripSource(file, root string) (string, error) {
	root = filepath.Clean(root)
	rel, err := filepath.Rel(root, filepath.Clean(file))
	if err != nil {
		return "", fmt.Errorf("%s is not under %s: %w", file, root, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not under %s", file, root)
	}
	return rel, nil
}

// ListSourceFiles returns every leaf below root. Directories are descended;
// files, archives and symbolic links are leaves. Results are in lexical order.
func ListSourceFiles(fsys fs.FileSystem, root string) ([]SourceFile, error) {
	var files []SourceFile
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("%w: reading %s: %w", ErrFilesystemConflict, dir, err)
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				if err := walk(path); err != nil {
					return err
				}
				continue
			}
			rel, err := StripSource(path, root)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrFilesystemConflict, err)
			}
			files = append(files, SourceFile{Path: path, Rel: rel})
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return files, nil
}

// DeleteContents removes everything inside dir, leaving dir itself.
func DeleteContents(fsys fs.FileSystem, dir string) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrFilesystemConflict, dir, err)
	}
	for _, entry := range entries {
		if err := fsys.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("%w: %w", ErrFilesystemConflict, err)
		}
	}
	return nil
}

// DiscoverSources returns the provider directories directly below the mods
// source root, one per provider (for example "__managed_mods" or "local").
// Hidden entries and plain files are skipped. Results are sorted.
func DiscoverSources(fsys fs.FileSystem, modsRoot string) ([]string, error) {
	entries, err := fsys.ReadDir(modsRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrFilesystemConflict, modsRoot, err)
	}
	var sources []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(modsRoot, entry.Name())
		info, err := fsys.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		sources = append(sources, path)
	}
	slices.Sort(sources)
	return sources, nil
}
