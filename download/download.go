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

// Package download fetches mod archives from the portal into a staging
// directory.
package download

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/factorio-headless/fhctl/catalog"
	"github.com/factorio-headless/fhctl/fs"
	"github.com/factorio-headless/fhctl/internal/logging"
	"github.com/factorio-headless/fhctl/internal/metrics"
)

var (
	// ErrUnexpectedContentType is returned when the portal answers a
	// download with something other than a binary archive, typically a
	// login page after a credentials failure.
	ErrUnexpectedContentType = errors.New("unexpected content type")

	// ErrTransferFailed is returned when the download request fails or
	// the body cannot be written completely.
	ErrTransferFailed = errors.New("transfer failed")
)

const (
	// DefaultChunkSize is the size of the buffer used to stream archives.
	DefaultChunkSize = 8192

	// ArtifactContentType is the only media type accepted for archives.
	ArtifactContentType = "application/octet-stream"
)

// Catalog looks up the release to download. *catalog.Client implements it.
type Catalog interface {
	Latest(ctx context.Context, mod string) (catalog.Release, error)
	DownloadURL(r catalog.Release) string
}

// Downloader streams mod archives into a directory.
type Downloader struct {
	catalog     Catalog
	httpClient  *http.Client
	fsys        fs.FileSystem
	chunkSize   int
	concurrency int
	logger      logging.Logger
}

// Option configures a Downloader during construction.
type Option func(*Downloader)

// WithHTTPClient sets the client used for archive requests.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) {
		d.httpClient = c
	}
}

// WithFileSystem sets the filesystem archives are written to.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(d *Downloader) {
		d.fsys = fsys
	}
}

// WithChunkSize sets the streaming buffer size. Non-positive values keep
// DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.chunkSize = n
		}
	}
}

// WithConcurrency sets how many archives DownloadAll fetches at once.
// Values below one mean one at a time.
func WithConcurrency(n int) Option {
	return func(d *Downloader) {
		d.concurrency = max(n, 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(d *Downloader) {
		d.logger = logging.OrNop(l)
	}
}

// New creates a Downloader. Defaults: http.DefaultClient, the OS
// filesystem, DefaultChunkSize and sequential DownloadAll.
func New(cat Catalog, opts ...Option) *Downloader {
	d := &Downloader{
		catalog:     cat,
		httpClient:  http.DefaultClient,
		fsys:        fs.NewOSFileSystem(),
		chunkSize:   DefaultChunkSize,
		concurrency: 1,
		logger:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches the latest release of mod into destDir and returns the
// path of the written archive. The archive appears at its final path only
// once it has been received completely and verified.
func (d *Downloader) Download(ctx context.Context, mod string, creds Credentials, destDir string) (string, error) {
	release, err := d.catalog.Latest(ctx, mod)
	if err != nil {
		return "", err
	}
	d.logger.Info("downloading mod", "mod", mod, "version", release.Version, "file", release.FileName, "user", creds.Username)

	start := time.Now()
	path, err := d.fetch(ctx, release, creds, destDir)
	if err != nil {
		return "", fmt.Errorf("mod %s %s: %w", mod, release.Version, err)
	}
	metrics.DownloadDuration.Observe(time.Since(start).Seconds())
	return path, nil
}

// DownloadAll downloads every mod in mods into destDir and returns the
// archive paths in the order of mods. The first failure cancels the
// remaining downloads.
func (d *Downloader) DownloadAll(ctx context.Context, mods []string, creds Credentials, destDir string) ([]string, error) {
	paths := make([]string, len(mods))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, mod := range mods {
		if slices.Index(mods, mod) != i {
			continue
		}
		g.Go(func() error {
			path, err := d.Download(gctx, mod, creds, destDir)
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, mod := range mods {
		if first := slices.Index(mods, mod); first != i {
			paths[i] = paths[first]
		}
	}
	return paths, nil
}

func (d *Downloader) fetch(ctx context.Context, release catalog.Release, creds Credentials, destDir string) (_ string, err error) {
	fileName := filepath.Base(release.FileName)
	if fileName == "." || fileName == string(filepath.Separator) || release.FileName == "" {
		return "", fmt.Errorf("%w: release has no file name", ErrTransferFailed)
	}

	rawURL := d.catalog.DownloadURL(release)
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid download url: %w", ErrTransferFailed, err)
	}
	q := u.Query()
	q.Set("username", creds.Username)
	q.Set("token", creds.Token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %w", ErrTransferFailed, unwrapURLError(err))
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrTransferFailed, redactURL(rawURL), unwrapURLError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s: HTTP %d", ErrTransferFailed, redactURL(rawURL), resp.StatusCode)
	}
	if err := checkContentType(resp.Header.Get("Content-Type")); err != nil {
		return "", err
	}

	if err := d.fsys.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("%w: creating %s: %w", ErrTransferFailed, destDir, err)
	}
	tmp, err := d.fsys.CreateTemp(destDir, "."+fileName+".part-*")
	if err != nil {
		return "", fmt.Errorf("%w: creating temp file: %w", ErrTransferFailed, err)
	}
	tmpName := tmp.Name()
	closed := false
	defer func() {
		if !closed {
			_ = tmp.Close()
		}
		if err != nil {
			// Best-effort removal of the partial archive.
			_ = d.fsys.Remove(tmpName)
		}
	}()

	var sum hash.Hash
	if release.SHA1 != "" {
		sum = sha1.New()
	}
	written, err := copyChunks(tmp, resp.Body, sum, d.chunkSize)
	metrics.DownloadBytes.Add(float64(written))
	if err != nil {
		return "", fmt.Errorf("%w: writing %s: %w", ErrTransferFailed, fileName, err)
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: closing %s: %w", ErrTransferFailed, fileName, err)
	}
	if sum != nil {
		if got := hex.EncodeToString(sum.Sum(nil)); !strings.EqualFold(got, release.SHA1) {
			return "", fmt.Errorf("%w: %s: sha1 %s, want %s", ErrTransferFailed, fileName, got, release.SHA1)
		}
	}

	final := filepath.Join(destDir, fileName)
	if err := d.fsys.Rename(tmpName, final); err != nil {
		return "", fmt.Errorf("%w: moving %s into place: %w", ErrTransferFailed, fileName, err)
	}
	d.logger.Debug("wrote archive", "path", final, "bytes", written)
	return final, nil
}

// copyChunks streams src to dst through a buffer of size bytes, feeding
// sum when it is non-nil.
func copyChunks(dst io.Writer, src io.Reader, sum hash.Hash, size int) (int64, error) {
	buf := make([]byte, size)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			if sum != nil {
				sum.Write(buf[:n])
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

func checkContentType(header string) error {
	if header == "" {
		return fmt.Errorf("%w: response has no Content-Type", ErrUnexpectedContentType)
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrUnexpectedContentType, header, err)
	}
	if mediaType != ArtifactContentType {
		return fmt.Errorf("%w: got %q, want %q", ErrUnexpectedContentType, mediaType, ArtifactContentType)
	}
	return nil
}

// unwrapURLError drops the *url.Error wrapper, whose message carries the
// full request URL including the token.
func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

// redactURL strips query parameters and fragments from a URL for safe
// inclusion in error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
