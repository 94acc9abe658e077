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

// Package testutil loads the shared testdata fixtures into in-memory or
// temporary on-disk filesystems.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/factorio-headless/fhctl/internal/mapfs"
)

// FixturePath returns the on-disk path of a testdata-relative fixture.
// Packages sit one or two levels below the module root, so each level is
// tried in turn.
func FixturePath(t *testing.T, rel string) string {
	t.Helper()
	for _, prefix := range []string{".", "..", filepath.Join("..", "..")} {
		path := filepath.Join(prefix, "testdata", rel)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	t.Fatalf("fixture %s not found under any testdata directory", rel)
	return ""
}

// LoadFixtureFile returns the content of a testdata-relative file.
func LoadFixtureFile(t *testing.T, rel string) []byte {
	t.Helper()
	data, err := os.ReadFile(FixturePath(t, rel))
	if err != nil {
		t.Fatalf("reading fixture %s: %v", rel, err)
	}
	return data
}

// walkFixture calls visit for every entry of the fixture directory with its
// path relative to dir. content is nil for directories.
func walkFixture(t *testing.T, dir string, visit func(rel string, content []byte) error) {
	t.Helper()
	root := FixturePath(t, dir)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			return visit(rel, nil)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return visit(rel, content)
	})
	if err != nil {
		t.Fatalf("loading fixture %s: %v", dir, err)
	}
}

// NewFixtureFS returns an in-memory filesystem holding the fixture
// directory dir mounted at root.
func NewFixtureFS(t *testing.T, dir, root string) *mapfs.MapFileSystem {
	t.Helper()
	mfs := mapfs.New()
	walkFixture(t, dir, func(rel string, content []byte) error {
		target := filepath.Join(root, rel)
		if content == nil {
			mfs.AddDir(target, 0755)
		} else {
			mfs.AddFile(target, string(content), 0644)
		}
		return nil
	})
	return mfs
}

// CopyFixtureDir copies the fixture directory dir into a fresh temporary
// directory and returns its path. Tests needing real symbolic links use it
// instead of NewFixtureFS.
func CopyFixtureDir(t *testing.T, dir string) string {
	t.Helper()
	dest := t.TempDir()
	walkFixture(t, dir, func(rel string, content []byte) error {
		target := filepath.Join(dest, rel)
		if content == nil {
			return os.MkdirAll(target, 0755)
		}
		return os.WriteFile(target, content, 0644)
	})
	return dest
}
