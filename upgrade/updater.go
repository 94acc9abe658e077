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

package upgrade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/factorio-headless/fhctl/fs"
)

const (
	// DefaultUpdaterURL is the public update server.
	DefaultUpdaterURL = "https://updater.factorio.com"

	// DefaultPackage is the headless Linux server build.
	DefaultPackage = "core-linux_headless64"
)

// UpdaterClient reads the update server's edge table and downloads patches.
type UpdaterClient struct {
	httpClient *http.Client
	baseURL    string
	pkg        string
	workDir    string
	fsys       fs.FileSystem
}

// ClientOption configures an UpdaterClient during construction.
type ClientOption func(*UpdaterClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(u *UpdaterClient) {
		u.httpClient = c
	}
}

// WithBaseURL overrides the update server URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(u *UpdaterClient) {
		u.baseURL = strings.TrimRight(base, "/")
	}
}

// WithPackage selects the build whose edges are read.
func WithPackage(pkg string) ClientOption {
	return func(u *UpdaterClient) {
		u.pkg = pkg
	}
}

// WithWorkDir sets the directory patches are staged in.
func WithWorkDir(dir string) ClientOption {
	return func(u *UpdaterClient) {
		u.workDir = dir
	}
}

// WithFileSystem sets the filesystem patches are written to.
func WithFileSystem(fsys fs.FileSystem) ClientOption {
	return func(u *UpdaterClient) {
		u.fsys = fsys
	}
}

// NewUpdaterClient creates a client with defaults: DefaultUpdaterURL,
// DefaultPackage, http.DefaultClient and the OS temp directory.
func NewUpdaterClient(opts ...ClientOption) *UpdaterClient {
	u := &UpdaterClient{
		httpClient: http.DefaultClient,
		baseURL:    DefaultUpdaterURL,
		pkg:        DefaultPackage,
		fsys:       fs.NewOSFileSystem(),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.workDir == "" {
		u.workDir = filepath.Join(u.fsys.TempDir(), "fhctl-upgrade")
	}
	return u
}

// Package returns the build identifier edges are read for.
func (u *UpdaterClient) Package() string {
	return u.pkg
}

// AvailableEdges fetches the edge table for the configured package.
// Entries without a To (such as the "stable" marker) are dropped; entries
// without a From are kept so callers see the full table.
func (u *UpdaterClient) AvailableEdges(ctx context.Context) ([]Edge, error) {
	body, err := u.get(ctx, u.baseURL+"/get-available-versions")
	if err != nil {
		return nil, err
	}
	return DecodeEdges(body, u.pkg)
}

// DecodeEdges parses a get-available-versions document and returns the
// edges listed for pkg.
func DecodeEdges(data []byte, pkg string) ([]Edge, error) {
	var table map[string][]Edge
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decoding available versions: %w", err)
	}
	entries, ok := table[pkg]
	if !ok {
		return nil, fmt.Errorf("no versions listed for package %s", pkg)
	}
	edges := make([]Edge, 0, len(entries))
	for _, e := range entries {
		if e.To != "" {
			edges = append(edges, e)
		}
	}
	return edges, nil
}

// DownloadLink returns the patch URL for step.
func (u *UpdaterClient) DownloadLink(ctx context.Context, step Edge) (string, error) {
	q := url.Values{}
	q.Set("package", u.pkg)
	q.Set("from", step.From)
	q.Set("to", step.To)
	body, err := u.get(ctx, u.baseURL+"/get-download-link?"+q.Encode())
	if err != nil {
		return "", err
	}

	var links []string
	if err := json.Unmarshal(body, &links); err != nil {
		return "", fmt.Errorf("decoding download link for %s: %w", step, err)
	}
	if len(links) == 0 {
		return "", fmt.Errorf("no download link for %s", step)
	}
	return links[0], nil
}

// FetchPatch implements PatchFetcher. The patch is written to
// <workdir>/<to>.zip.
func (u *UpdaterClient) FetchPatch(ctx context.Context, step Edge) (_ string, err error) {
	link, err := u.DownloadLink(ctx, step)
	if err != nil {
		return "", err
	}

	resp, err := u.do(ctx, link)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := u.fsys.MkdirAll(u.workDir, 0755); err != nil {
		return "", fmt.Errorf("creating work directory: %w", err)
	}
	tmp, err := u.fsys.CreateTemp(u.workDir, step.To+".zip.part-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = u.fsys.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("writing patch %s: %w", step, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing patch %s: %w", step, err)
	}

	path := filepath.Join(u.workDir, step.To+".zip")
	if err := u.fsys.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("staging patch %s: %w", step, err)
	}
	return path, nil
}

func (u *UpdaterClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	resp, err := u.do(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", reqURL, err)
	}
	return body, nil
}

// do issues a GET and fails on any non-200 status.
func (u *UpdaterClient) do(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, &StatusError{URL: reqURL, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}

// StatusError is a non-200 answer from the update server.
type StatusError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: HTTP %d: %s", e.URL, e.StatusCode, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
