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

package modinfo_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/factorio-headless/fhctl/modinfo"
	"github.com/factorio-headless/fhctl/testutil"
)

func zipOf(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    *modinfo.Info
		wantErr bool
	}{
		{
			name: "full",
			data: `{"name":"flib","version":"0.12.4","title":"Factorio Library","factorio_version":"1.1","dependencies":["base >= 1.1.0"]}`,
			want: &modinfo.Info{Name: "flib", Version: "0.12.4", Title: "Factorio Library", FactorioVersion: "1.1", Dependencies: []string{"base >= 1.1.0"}},
		},
		{
			name: "no dependencies",
			data: `{"name":"tiny","version":"1.0.0"}`,
			want: &modinfo.Info{Name: "tiny", Version: "1.0.0"},
		},
		{name: "missing version", data: `{"name":"tiny"}`, wantErr: true},
		{name: "not json", data: `name = tiny`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := modinfo.Parse([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, modinfo.ErrInvalidManifest) {
					t.Errorf("Parse() error = %v, want ErrInvalidManifest", err)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	mfs := testutil.NewFixtureFS(t, "mods/local", "/mods")

	info, err := modinfo.ParseFile(mfs, "/mods/my-mod/info.json")
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if info.Name != "my-mod" || info.Version != "0.3.1" {
		t.Errorf("ParseFile() = %s %s, want my-mod 0.3.1", info.Name, info.Version)
	}

	specs, err := info.Specs()
	if err != nil {
		t.Fatalf("Specs failed: %v", err)
	}
	if len(specs) != 4 {
		t.Fatalf("Specs() returned %d specs, want 4", len(specs))
	}
	if specs[3].Name() != "bobinserters" || specs[3].Compatible() {
		t.Errorf("Specs()[3] = %s, want incompatible bobinserters", specs[3])
	}
}

func TestParseArchive(t *testing.T) {
	mfs := testutil.NewFixtureFS(t, "mods/__managed_mods", "/managed")
	mfs.AddFile("/managed/nested.zip", zipOf(t, map[string]string{
		"deep/inner/info.json": `{"name":"wrong","version":"1.0.0"}`,
		"nested/info.json":     `{"name":"nested","version":"2.0.0"}`,
	}), 0644)
	mfs.AddFile("/managed/empty.zip", zipOf(t, map[string]string{"readme.txt": "hi"}), 0644)
	mfs.AddFile("/managed/broken.zip", "not a zip", 0644)

	tests := []struct {
		path    string
		name    string
		version string
		wantErr bool
	}{
		{"/managed/flib_0.12.4.zip", "flib", "0.12.4", false},
		{"/managed/even-distribution_1.0.10.zip", "even-distribution", "1.0.10", false},
		{"/managed/nested.zip", "nested", "2.0.0", false},
		{"/managed/empty.zip", "", "", true},
		{"/managed/broken.zip", "", "", true},
		{"/managed/absent.zip", "", "", true},
	}

	for _, tt := range tests {
		info, err := modinfo.ParseArchive(mfs, tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseArchive(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			continue
		}
		if err != nil {
			continue
		}
		if info.Name != tt.name || info.Version != tt.version {
			t.Errorf("ParseArchive(%q) = %s %s, want %s %s", tt.path, info.Name, info.Version, tt.name, tt.version)
		}
	}
}

func TestScan(t *testing.T) {
	mfs := testutil.NewFixtureFS(t, "mods", "/srv/mods")
	mfs.AddFile("/srv/mods/local/notes.txt", "ignored", 0644)
	mfs.AddDir("/srv/mods/local/empty-dir", 0755)

	managed, err := modinfo.Scan(mfs, "/srv/mods/__managed_mods")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	local, err := modinfo.Scan(mfs, "/srv/mods/local")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	var names []string
	for _, m := range append(managed, local...) {
		names = append(names, m.Info.Name)
	}
	want := []string{"even-distribution", "flib", "my-mod"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Scan() names = %v, want %v", names, want)
	}
	if !managed[0].Archive || local[0].Archive {
		t.Error("Archive flag not set from entry type")
	}
	if local[0].Path != "/srv/mods/local/my-mod" {
		t.Errorf("Scan() path = %q, want /srv/mods/local/my-mod", local[0].Path)
	}
}

func TestScanFollowsLinks(t *testing.T) {
	mfs := testutil.NewFixtureFS(t, "mods", "/srv/mods")
	if err := mfs.Symlink("/srv/mods/__managed_mods/flib_0.12.4.zip", "/srv/active/flib_0.12.4.zip"); err != nil {
		t.Fatal(err)
	}
	if err := mfs.Symlink("/srv/mods/local/my-mod/info.json", "/srv/active/my-mod/info.json"); err != nil {
		t.Fatal(err)
	}

	mods, err := modinfo.Scan(mfs, "/srv/active")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(mods) != 2 || mods[0].Info.Name != "flib" || mods[1].Info.Name != "my-mod" {
		t.Errorf("Scan() = %+v, want flib and my-mod", mods)
	}
}

func TestScannerCache(t *testing.T) {
	mfs := testutil.NewFixtureFS(t, "mods/local", "/mods")
	cache := modinfo.NewMemoryCache()
	scanner := modinfo.NewScanner(mfs).WithCache(cache)

	if _, err := scanner.Scan("/mods"); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.Get("/mods/my-mod/info.json"); !ok {
		t.Fatal("Expected manifest to be cached after Scan")
	}

	mfs.AddFile("/mods/my-mod/info.json", `{"name":"my-mod","version":"0.4.0"}`, 0644)
	mods, _ := scanner.Scan("/mods")
	if mods[0].Info.Version != "0.3.1" {
		t.Errorf("Scan() version = %s, want cached 0.3.1", mods[0].Info.Version)
	}

	cache.Invalidate("/mods/my-mod/info.json")
	mods, _ = scanner.Scan("/mods")
	if mods[0].Info.Version != "0.4.0" {
		t.Errorf("Scan() version = %s after Invalidate, want 0.4.0", mods[0].Info.Version)
	}
}

func TestMemoryCacheGetOrLoadConcurrent(t *testing.T) {
	cache := modinfo.NewMemoryCache()
	var loads atomic.Int32

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			info, err := cache.GetOrLoad("/mods/a/info.json", func() (*modinfo.Info, error) {
				loads.Add(1)
				return &modinfo.Info{Name: "a", Version: "1.0.0"}, nil
			})
			if err != nil || info.Name != "a" {
				t.Errorf("GetOrLoad() = %v, %v", info, err)
			}
		})
	}
	wg.Wait()

	if n := loads.Load(); n != 1 {
		t.Errorf("loader ran %d times, want 1", n)
	}
}

func TestMemoryCacheRetriesFailedLoad(t *testing.T) {
	cache := modinfo.NewMemoryCache()
	boom := errors.New("boom")

	if _, err := cache.GetOrLoad("/x", func() (*modinfo.Info, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("GetOrLoad() error = %v, want boom", err)
	}
	info, err := cache.GetOrLoad("/x", func() (*modinfo.Info, error) { return &modinfo.Info{Name: "x"}, nil })
	if err != nil || info.Name != "x" {
		t.Errorf("GetOrLoad() after failure = %v, %v", info, err)
	}
}

func mod(name, version string, deps ...string) modinfo.Mod {
	return modinfo.Mod{Info: &modinfo.Info{Name: name, Version: version, Dependencies: deps}}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name        string
		mods        []modinfo.Mod
		baseVersion string
		want        []string
	}{
		{
			name: "consistent",
			mods: []modinfo.Mod{
				mod("flib", "0.12.4", "base >= 1.1.0"),
				mod("my-mod", "0.3.1", "base >= 1.1.0", "flib >= 0.12.0", "? space-exploration", "! bobinserters"),
			},
			baseVersion: "1.1.104",
		},
		{
			name: "missing required",
			mods: []modinfo.Mod{mod("my-mod", "0.3.1", "flib >= 0.12.0", "~ stdlib")},
			want: []string{
				"my-mod: requires flib >= 0.12.0, not installed",
				"my-mod: requires ~ stdlib, not installed",
			},
		},
		{
			name: "incompatible present",
			mods: []modinfo.Mod{
				mod("bobinserters", "1.1.0"),
				mod("my-mod", "0.3.1", "! bobinserters"),
			},
			want: []string{"my-mod: incompatible with bobinserters 1.1.0, which is installed"},
		},
		{
			name: "constraint unsatisfied",
			mods: []modinfo.Mod{
				mod("flib", "0.11.2"),
				mod("my-mod", "0.3.1", "flib >= 0.12.0", "? helmod < 1.0"),
				mod("helmod", "1.2.0"),
			},
			want: []string{
				"my-mod: requires flib >= 0.12.0, found 0.11.2",
				"my-mod: requires ? helmod < 1.0, found 1.2.0",
			},
		},
		{
			name:        "base constraint",
			mods:        []modinfo.Mod{mod("flib", "0.12.4", "base >= 1.1.0")},
			baseVersion: "1.0.0",
			want:        []string{"flib: requires base >= 1.1.0, found 1.0.0"},
		},
		{
			name: "base version unknown",
			mods: []modinfo.Mod{mod("flib", "0.12.4", "base >= 1.1.0")},
		},
		{
			name: "duplicate",
			mods: []modinfo.Mod{mod("flib", "0.12.3"), mod("flib", "0.12.4")},
			want: []string{"flib: installed more than once (0.12.3, 0.12.4)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems, err := modinfo.Check(tt.mods, tt.baseVersion)
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			var got []string
			for _, p := range problems {
				got = append(got, p.String())
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Check() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckMalformed(t *testing.T) {
	_, err := modinfo.Check([]modinfo.Mod{mod("bad", "1.0.0", "flib ~= 1.0")}, "")
	if err == nil {
		t.Error("Check() expected error for malformed declaration")
	}
}
