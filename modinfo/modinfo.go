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

// Package modinfo reads mod manifests (info.json) from loose mod
// directories and zipped mod archives.
package modinfo

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/factorio-headless/fhctl/dependency"
	"github.com/factorio-headless/fhctl/fs"
)

// ManifestName is the file every mod carries at its root.
const ManifestName = "info.json"

// ErrInvalidManifest is returned for a manifest without a name or version,
// or an archive without a manifest.
var ErrInvalidManifest = errors.New("invalid mod manifest")

// Info is the subset of info.json relevant for dependency checks.
type Info struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	Title           string   `json:"title,omitempty"`
	Author          string   `json:"author,omitempty"`
	FactorioVersion string   `json:"factorio_version,omitempty"`
	Dependencies    []string `json:"dependencies,omitempty"`
}

// Specs parses the dependency declarations.
func (i *Info) Specs() ([]dependency.Spec, error) {
	specs := make([]dependency.Spec, 0, len(i.Dependencies))
	for _, decl := range i.Dependencies {
		s, err := dependency.Parse(decl)
		if err != nil {
			return nil, fmt.Errorf("mod %s: %w", i.Name, err)
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// Parse parses info.json data.
func Parse(data []byte) (*Info, error) {
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if info.Name == "" || info.Version == "" {
		return nil, fmt.Errorf("%w: name and version are required", ErrInvalidManifest)
	}
	return &info, nil
}

// ParseFile parses an info.json file.
func ParseFile(fsys fs.FileSystem, path string) (*Info, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

// ParseArchive parses the manifest of a zipped mod. The manifest sits one
// directory below the archive root, usually in <name>_<version>/.
func ParseArchive(fsys fs.FileSystem, archivePath string) (*Info, error) {
	data, err := fsys.ReadFile(archivePath)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", archivePath, err)
	}
	for _, f := range zr.File {
		dir, base := path.Split(f.Name)
		if base != ManifestName || strings.Count(dir, "/") != 1 {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", archivePath, err)
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", archivePath, err)
		}
		info, err := Parse(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", archivePath, err)
		}
		return info, nil
	}
	return nil, fmt.Errorf("%s: %w: no %s in archive", archivePath, ErrInvalidManifest, ManifestName)
}

// Mod is an installed mod found by Scan.
type Mod struct {
	Info    *Info
	Path    string
	Archive bool
}

// Scanner reads the mods in a directory, reusing manifests it already parsed.
type Scanner struct {
	fsys  fs.FileSystem
	cache Cache
}

// NewScanner creates a Scanner with a fresh MemoryCache.
func NewScanner(fsys fs.FileSystem) *Scanner {
	return &Scanner{fsys: fsys, cache: NewMemoryCache()}
}

// WithCache returns a copy of the scanner using cache.
func (s *Scanner) WithCache(cache Cache) *Scanner {
	return &Scanner{fsys: s.fsys, cache: cache}
}

// Scan lists the mods directly inside dir: subdirectories carrying an
// info.json and .zip archives. Other entries are ignored. The result is
// sorted by mod name.
func (s *Scanner) Scan(dir string) ([]Mod, error) {
	entries, err := s.fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var mods []Mod
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)

		if strings.HasSuffix(name, ".zip") {
			info, err := s.cache.GetOrLoad(full, func() (*Info, error) {
				return ParseArchive(s.fsys, full)
			})
			if err != nil {
				return nil, err
			}
			mods = append(mods, Mod{Info: info, Path: full, Archive: true})
			continue
		}

		manifest := filepath.Join(full, ManifestName)
		if !s.isDir(full) || !s.fsys.Exists(manifest) {
			continue
		}
		info, err := s.cache.GetOrLoad(manifest, func() (*Info, error) {
			return ParseFile(s.fsys, manifest)
		})
		if err != nil {
			return nil, err
		}
		mods = append(mods, Mod{Info: info, Path: full})
	}

	slices.SortStableFunc(mods, func(a, b Mod) int {
		return strings.Compare(a.Info.Name, b.Info.Name)
	})
	return mods, nil
}

func (s *Scanner) isDir(p string) bool {
	fi, err := s.fsys.Stat(p)
	return err == nil && fi.IsDir()
}

// Scan lists the mods directly inside dir with a throwaway Scanner.
func Scan(fsys fs.FileSystem, dir string) ([]Mod, error) {
	return NewScanner(fsys).Scan(dir)
}
