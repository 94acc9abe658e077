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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/factorio-headless/fhctl/testutil"
)

// MockFetcher is a test implementation of the Fetcher interface.
type MockFetcher struct {
	mu        sync.Mutex
	responses map[string][]byte
	errors    map[string]error
	calls     map[string]int
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		responses: make(map[string][]byte),
		errors:    make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (m *MockFetcher) AddResponse(url string, data []byte) {
	m.responses[url] = data
}

func (m *MockFetcher) AddError(url string, err error) {
	m.errors[url] = err
}

func (m *MockFetcher) Calls(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	m.calls[url]++
	m.mu.Unlock()
	if err, ok := m.errors[url]; ok {
		return nil, err
	}
	if data, ok := m.responses[url]; ok {
		return data, nil
	}
	return nil, &FetchError{URL: url, StatusCode: 404, Message: "Not Found"}
}

const testPortal = "https://portal.test"

func TestClientReleases(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.AddResponse(testPortal+"/api/mods/flib/full", testutil.LoadFixtureFile(t, "catalog/flib.json"))
	client := NewClientWithURL(fetcher, testPortal+"/")

	releases, err := client.Releases(context.Background(), "flib")
	if err != nil {
		t.Fatalf("Releases() error = %v", err)
	}
	if len(releases) != 3 {
		t.Fatalf("Releases() returned %d releases, want 3", len(releases))
	}
	first := releases[0]
	if first.Version != "0.5.0" || first.FileName != "flib_0.5.0.zip" {
		t.Errorf("releases[0] = %+v", first)
	}
	want := time.Date(2020, 11, 23, 17, 59, 46, 474000000, time.UTC)
	if !first.ReleasedAt.Equal(want) {
		t.Errorf("releases[0].ReleasedAt = %v, want %v", first.ReleasedAt, want)
	}
	if deps := releases[1].Dependencies(); len(deps) != 2 || deps[1] != "? space-exploration >= 0.6.0" {
		t.Errorf("releases[1].Dependencies() = %v", deps)
	}
}

func TestClientLatest(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.AddResponse(testPortal+"/api/mods/flib/full", testutil.LoadFixtureFile(t, "catalog/flib.json"))
	client := NewClientWithURL(fetcher, testPortal)

	latest, err := client.Latest(context.Background(), "flib")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Version != "0.12.4" {
		t.Errorf("Latest().Version = %q, want %q", latest.Version, "0.12.4")
	}
	if got, want := client.DownloadURL(latest), testPortal+"/download/flib/63e2b1f4c2d1a0f5c0e1d2c3"; got != want {
		t.Errorf("DownloadURL() = %q, want %q", got, want)
	}
}

func TestClientUnavailable(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.AddResponse(testPortal+"/api/mods/garbled/full", []byte(`{"releases": [`))
	fetcher.AddError(testPortal+"/api/mods/down/full", &FetchError{URL: "x", Message: "connection refused"})
	fetcher.AddResponse(testPortal+"/api/mods/empty/full", []byte(`{"name":"empty","releases":[]}`))
	client := NewClientWithURL(fetcher, testPortal)

	tests := []struct {
		mod      string
		notFound bool
	}{
		{"garbled", false},
		{"down", false},
		{"missing", true},
	}
	for _, tt := range tests {
		t.Run(tt.mod, func(t *testing.T) {
			_, err := client.Releases(context.Background(), tt.mod)
			if !errors.Is(err, ErrCatalogUnavailable) {
				t.Fatalf("Releases(%q) error = %v, want ErrCatalogUnavailable", tt.mod, err)
			}
			var fetchErr *FetchError
			if got := errors.As(err, &fetchErr) && fetchErr.IsNotFound(); got != tt.notFound {
				t.Errorf("Releases(%q) not found = %v, want %v", tt.mod, got, tt.notFound)
			}
		})
	}

	_, err := client.Latest(context.Background(), "empty")
	if !errors.Is(err, ErrNoReleases) || !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("Latest(empty) error = %v, want ErrNoReleases", err)
	}
}

func TestLatestRelease(t *testing.T) {
	releases := []Release{
		{Version: "0.0.1", ReleasedAt: mustTimestamp(t, "2000-01-01 00:00:00Z")},
		{Version: "0.0.2", ReleasedAt: mustTimestamp(t, "2000-01-03 00:00:00Z")},
		{Version: "0.0.3", ReleasedAt: mustTimestamp(t, "2000-01-03 00:00:00Z")},
		{Version: "0.0.4", ReleasedAt: mustTimestamp(t, "2000-01-02 00:00:00Z")},
	}

	got, err := LatestRelease(releases)
	if err != nil {
		t.Fatalf("LatestRelease() error = %v", err)
	}
	if got.Version != "0.0.2" {
		t.Errorf("LatestRelease() = %q, want first of the tied releases %q", got.Version, "0.0.2")
	}

	if _, err := LatestRelease(nil); !errors.Is(err, ErrNoReleases) {
		t.Errorf("LatestRelease(nil) error = %v, want ErrNoReleases", err)
	}
}

func TestLatestReleaseSpaceSeparatedFixture(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.AddResponse(testPortal+"/api/mods/legacy/full", testutil.LoadFixtureFile(t, "catalog/legacy.json"))
	client := NewClientWithURL(fetcher, testPortal)

	latest, err := client.Latest(context.Background(), "legacy")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Version != "0.0.2" {
		t.Errorf("Latest().Version = %q, want %q", latest.Version, "0.0.2")
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"2020-11-23T17:59:46.474000Z", time.Date(2020, 11, 23, 17, 59, 46, 474000000, time.UTC), false},
		{"2020-11-23T17:59:46Z", time.Date(2020, 11, 23, 17, 59, 46, 0, time.UTC), false},
		{"2000-01-01 00:00:00Z", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"2000-01-01", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		got, err := ParseTimestamp(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimestamp(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestWithTemplate(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.AddResponse("https://mirror.test/mods/Big%20Mod.json", []byte(`{"releases":[]}`))
	client, err := NewClient(fetcher).WithTemplate("https://mirror.test/mods/{mod}.json")
	if err != nil {
		t.Fatalf("WithTemplate() error = %v", err)
	}

	m, err := client.Mod(context.Background(), "Big Mod")
	if err != nil {
		t.Fatalf("Mod() error = %v", err)
	}
	if m.Name != "Big Mod" {
		t.Errorf("Mod().Name = %q, want %q", m.Name, "Big Mod")
	}
}

func TestParseTemplate(t *testing.T) {
	tests := []struct {
		pattern string
		wantErr bool
	}{
		{DefaultModTemplate, false},
		{"https://mirror.test/{mod}", false},
		{"", true},
		{"{portal}/api/mods", true},
		{"{portal}/{package}/{mod}", true},
	}

	for _, tt := range tests {
		_, err := ParseTemplate(tt.pattern)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTemplate(%q) error = %v, wantErr %v", tt.pattern, err, tt.wantErr)
		}
	}
}

type countingSource struct {
	calls atomic.Int32
}

func (s *countingSource) Releases(ctx context.Context, mod string) ([]Release, error) {
	s.calls.Add(1)
	time.Sleep(5 * time.Millisecond)
	if mod == "broken" {
		return nil, fmt.Errorf("%w: broken", ErrCatalogUnavailable)
	}
	return []Release{{Version: "1.0.0"}}, nil
}

func TestReleaseCacheLoadsOnce(t *testing.T) {
	source := &countingSource{}
	cache := NewReleaseCache(source)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Releases(context.Background(), "flib"); err != nil {
				t.Errorf("Releases() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := source.calls.Load(); got != 1 {
		t.Errorf("source called %d times, want 1", got)
	}

	for range 2 {
		if _, err := cache.Releases(context.Background(), "broken"); !errors.Is(err, ErrCatalogUnavailable) {
			t.Errorf("Releases(broken) error = %v", err)
		}
	}
	if got := source.calls.Load(); got != 2 {
		t.Errorf("source called %d times, want 2", got)
	}
	if cache.Size() != 2 {
		t.Errorf("Size() = %d, want 2", cache.Size())
	}
}

func TestLimitedFetcherPassesThrough(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.AddResponse("https://portal.test/a", []byte("ok"))
	limited := NewLimitedFetcher(fetcher, 0)

	body, err := limited.Fetch(context.Background(), "https://portal.test/a")
	if err != nil || string(body) != "ok" {
		t.Errorf("Fetch() = %q, %v", body, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := NewLimitedFetcher(fetcher, 0.001)
	_, _ = slow.Fetch(context.Background(), "https://portal.test/a")
	if _, err := slow.Fetch(ctx, "https://portal.test/a"); err == nil {
		t.Error("Fetch() with cancelled context expected error")
	}
	if got := fetcher.Calls("https://portal.test/a"); got != 2 {
		t.Errorf("portal reached %d times, want 2 (the cancelled wait must not fetch)", got)
	}
}

func TestFetchErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		notFound  bool
		temporary bool
		outcome   string
	}{
		{"success", nil, false, false, "ok"},
		{"unknown mod", &FetchError{URL: "u", StatusCode: 404}, true, false, "not_found"},
		{"rate limited", &FetchError{URL: "u", StatusCode: 429}, false, true, "error"},
		{"server error", &FetchError{URL: "u", StatusCode: 502}, false, true, "error"},
		{"no response", &FetchError{URL: "u", Message: "connection refused"}, false, true, "error"},
		{"forbidden", &FetchError{URL: "u", StatusCode: 403}, false, false, "error"},
		{"wrapped", fmt.Errorf("mod x: %w", &FetchError{URL: "u", StatusCode: 404}), true, false, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outcome(tt.err); got != tt.outcome {
				t.Errorf("outcome() = %q, want %q", got, tt.outcome)
			}
			var fe *FetchError
			if !errors.As(tt.err, &fe) {
				return
			}
			if fe.IsNotFound() != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", fe.IsNotFound(), tt.notFound)
			}
			if fe.Temporary() != tt.temporary {
				t.Errorf("Temporary() = %v, want %v", fe.Temporary(), tt.temporary)
			}
		})
	}
}

func TestFetcherFunc(t *testing.T) {
	var got string
	f := FetcherFunc(func(_ context.Context, url string) ([]byte, error) {
		got = url
		return []byte("{}"), nil
	})
	client := NewClientWithURL(f, "https://portal.test")
	if _, err := client.Mod(context.Background(), "flib"); err != nil {
		t.Fatalf("Mod() error = %v", err)
	}
	if got != "https://portal.test/api/mods/flib/full" {
		t.Errorf("fetched %q", got)
	}
}

func mustTimestamp(t *testing.T, s string) Timestamp {
	t.Helper()
	ts, err := ParseTimestamp(s)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}
