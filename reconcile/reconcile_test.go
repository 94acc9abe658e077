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

package reconcile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fhfs "github.com/factorio-headless/fhctl/fs"
	"github.com/factorio-headless/fhctl/internal/mapfs"
	"github.com/factorio-headless/fhctl/testutil"
)

// snapshot maps every entry below root to its link target, or "" for
// regular files and "dir" for directories.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			out[rel] = target
		case d.IsDir():
			out[rel] = "dir"
		default:
			out[rel] = ""
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestMerge(t *testing.T) {
	modsRoot := testutil.CopyFixtureDir(t, "mods")
	dest := filepath.Join(t.TempDir(), "mods")
	writeFile(t, filepath.Join(dest, "stale.zip"), "left over")
	writeFile(t, filepath.Join(dest, "old-mod", "info.json"), "{}")

	sources, err := DiscoverSources(fhfs.NewOSFileSystem(), modsRoot)
	require.NoError(t, err)

	report, err := Merge(sources, dest)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Links)
	assert.Empty(t, report.Collisions)

	managed := filepath.Join(modsRoot, "__managed_mods")
	local := filepath.Join(modsRoot, "local")
	want := map[string]string{
		"even-distribution_1.0.10.zip": filepath.Join(managed, "even-distribution_1.0.10.zip"),
		"flib_0.12.4.zip":              filepath.Join(managed, "flib_0.12.4.zip"),
		"my-mod":                       "dir",
		"my-mod/data.lua":              filepath.Join(local, "my-mod", "data.lua"),
		"my-mod/info.json":             filepath.Join(local, "my-mod", "info.json"),
		"my-mod/locale":                "dir",
		"my-mod/locale/en":             "dir",
		"my-mod/locale/en/strings.cfg": filepath.Join(local, "my-mod", "locale", "en", "strings.cfg"),
	}
	assert.Equal(t, want, snapshot(t, dest))

	siblings, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, siblings, 1, "staging or previous trees left next to the destination")
}

func TestMergeIdempotent(t *testing.T) {
	modsRoot := testutil.CopyFixtureDir(t, "mods")
	dest := filepath.Join(t.TempDir(), "mods")
	sources := []string{filepath.Join(modsRoot, "__managed_mods"), filepath.Join(modsRoot, "local") + string(filepath.Separator)}

	_, err := Merge(sources, dest)
	require.NoError(t, err)
	first := snapshot(t, dest)

	_, err = Merge(sources, dest)
	require.NoError(t, err)
	assert.Equal(t, first, snapshot(t, dest))
}

func TestMergeConflicts(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	writeFile(t, filepath.Join(a, "shared", "info.json"), "a")
	writeFile(t, filepath.Join(b, "shared", "info.json"), "b")
	writeFile(t, filepath.Join(a, "only-a.zip"), "a")
	dest := filepath.Join(root, "dest")
	writeFile(t, filepath.Join(dest, "keep-me.zip"), "previous")

	t.Run("fail", func(t *testing.T) {
		_, err := Merge([]string{a, b}, dest)
		require.ErrorIs(t, err, ErrFilesystemConflict)

		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, []Collision{{
			Path:    filepath.Join("shared", "info.json"),
			Sources: []string{filepath.Join(a, "shared", "info.json"), filepath.Join(b, "shared", "info.json")},
		}}, conflict.Collisions)

		assert.Equal(t, map[string]string{"keep-me.zip": ""}, snapshot(t, dest), "destination modified by a failed merge")
	})

	t.Run("last wins", func(t *testing.T) {
		report, err := Merge([]string{a, b}, dest, WithPolicy(LastWins))
		require.NoError(t, err)
		assert.Len(t, report.Collisions, 1)

		target, err := os.Readlink(filepath.Join(dest, "shared", "info.json"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(b, "shared", "info.json"), target)
		assert.NoFileExists(t, filepath.Join(dest, "keep-me.zip"))
	})
}

func TestMergeIgnore(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeFile(t, filepath.Join(src, "mod", "info.json"), "{}")
	writeFile(t, filepath.Join(src, "mod", "notes.tmp"), "")
	writeFile(t, filepath.Join(src, "mod-settings.dat"), "")
	dest := filepath.Join(root, "dest")

	report, err := Merge([]string{src}, dest, WithIgnore("**/*.tmp", "mod-settings.dat"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Links)
	assert.Equal(t, 2, report.Ignored)

	_, err = Merge([]string{src}, dest, WithIgnore("[unclosed"))
	require.Error(t, err)
}

func TestMergeErrors(t *testing.T) {
	root := t.TempDir()
	_, err := Merge([]string{filepath.Join(root, "missing")}, filepath.Join(root, "dest"))
	require.ErrorIs(t, err, ErrFilesystemConflict)

	_, err = Merge([]string{root}, root)
	require.ErrorIs(t, err, ErrFilesystemConflict)

	// A source below the destination would be deleted with the old tree.
	dest := filepath.Join(root, "mods")
	nested := filepath.Join(dest, "local")
	writeFile(t, filepath.Join(nested, "my-mod", "info.json"), "{}")
	_, err = Merge([]string{nested}, dest)
	require.ErrorIs(t, err, ErrFilesystemConflict)
	assert.FileExists(t, filepath.Join(nested, "my-mod", "info.json"))

	// A destination below a source would be mirrored into itself.
	src := filepath.Join(root, "src")
	writeFile(t, filepath.Join(src, "my-mod", "info.json"), "{}")
	active := filepath.Join(src, "active")
	_, err = Merge([]string{src}, active)
	require.ErrorIs(t, err, ErrFilesystemConflict)
	assert.NoDirExists(t, active)
}

func TestMergeSiblingPrefix(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "mods")
	writeFile(t, filepath.Join(src, "flib_0.12.4.zip"), "zip")

	// "mods-active" shares a prefix with "mods" but is not inside it.
	dest := filepath.Join(root, "mods-active")
	for range 2 {
		report, err := Merge([]string{src}, dest)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Links)
	}
	assert.FileExists(t, filepath.Join(dest, "flib_0.12.4.zip"))
}

func TestWithin(t *testing.T) {
	tests := []struct {
		dir, path string
		want      bool
	}{
		{"/srv/mods", "/srv/mods/local", true},
		{"/srv/mods", "/srv/mods/a/b", true},
		{"/srv/mods", "/srv/mods", false},
		{"/srv/mods", "/srv/mods-active", false},
		{"/srv/mods", "/srv", false},
		{"/srv/mods", "/srv/..mods", false},
	}
	for _, tt := range tests {
		if got := within(filepath.FromSlash(tt.dir), filepath.FromSlash(tt.path)); got != tt.want {
			t.Errorf("within(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestMergeInMemory(t *testing.T) {
	mfs := testutil.NewFixtureFS(t, "mods/local", "/srv/mods/local")
	mfs.AddFile("/srv/mods/__managed_mods/flib_0.12.4.zip", "zip", 0644)
	mfs.AddFile("/srv/active/stale.zip", "old", 0644)

	sources, err := DiscoverSources(mfs, "/srv/mods")
	require.NoError(t, err)
	require.Equal(t, []string{"/srv/mods/__managed_mods", "/srv/mods/local"}, sources)

	report, err := Merge(sources, "/srv/active", WithFileSystem(mfs))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Links)

	target, err := mfs.Readlink("/srv/active/my-mod/locale/en/strings.cfg")
	require.NoError(t, err)
	assert.Equal(t, "/srv/mods/local/my-mod/locale/en/strings.cfg", target)
	assert.False(t, mfs.Exists("/srv/active/stale.zip"))

	data, err := mfs.ReadFile("/srv/active/flib_0.12.4.zip")
	require.NoError(t, err, "link should resolve to the source archive")
	assert.Equal(t, "zip", string(data))
}

func TestStripSource(t *testing.T) {
	tests := []struct {
		file    string
		root    string
		want    string
		wantErr bool
	}{
		{"/root/sub/mod_1/info.json", "/root/", "sub/mod_1/info.json", false},
		{"/root/sub/mod_1/info.json", "/root", "sub/mod_1/info.json", false},
		{"/root/flib_0.12.4.zip", "/root", "flib_0.12.4.zip", false},
		{"/rooted/file", "/root", "", true},
		{"/root", "/root/", "", true},
	}

	for _, tt := range tests {
		got, err := StripSource(filepath.FromSlash(tt.file), filepath.FromSlash(tt.root))
		if (err != nil) != tt.wantErr {
			t.Errorf("StripSource(%q, %q) error = %v, wantErr %v", tt.file, tt.root, err, tt.wantErr)
			continue
		}
		if got != filepath.FromSlash(tt.want) {
			t.Errorf("StripSource(%q, %q) = %q, want %q", tt.file, tt.root, got, tt.want)
		}
	}
}

func TestDeleteContents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "file.zip"), "")
	writeFile(t, filepath.Join(dir, "nested", "deep", "info.json"), "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "file.zip"), filepath.Join(dir, "link.zip")))

	require.NoError(t, DeleteContents(fhfs.NewOSFileSystem(), dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.DirExists(t, dir)
}

func TestListSourceFiles(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/src/a/info.json", "{}", 0644)
	mfs.AddFile("/src/b.zip", "", 0644)
	mfs.AddDir("/src/empty", 0755)

	files, err := ListSourceFiles(mfs, "/src")
	require.NoError(t, err)
	assert.Equal(t, []SourceFile{
		{Path: filepath.FromSlash("/src/a/info.json"), Rel: filepath.FromSlash("a/info.json")},
		{Path: filepath.FromSlash("/src/b.zip"), Rel: "b.zip"},
	}, files)
}

func TestParseConflictPolicy(t *testing.T) {
	for input, want := range map[string]ConflictPolicy{"": FailOnConflict, "fail": FailOnConflict, "last-wins": LastWins} {
		got, err := ParseConflictPolicy(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseConflictPolicy("first-wins")
	assert.Error(t, err)
}
