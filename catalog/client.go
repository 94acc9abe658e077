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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/factorio-headless/fhctl/internal/logging"
)

// DefaultPortalURL is the public mod portal.
const DefaultPortalURL = "https://mods.factorio.com"

// Client provides access to the mod portal. It does not cache: every call
// fetches fresh metadata.
type Client struct {
	fetcher   Fetcher
	portalURL string
	template  *Template
	logger    logging.Logger
}

// NewClient creates a client for the public portal.
func NewClient(fetcher Fetcher) *Client {
	return NewClientWithURL(fetcher, DefaultPortalURL)
}

// NewClientWithURL creates a client with a custom portal URL.
func NewClientWithURL(fetcher Fetcher, portalURL string) *Client {
	tmpl, _ := ParseTemplate(DefaultModTemplate)
	return &Client{
		fetcher:   fetcher,
		portalURL: strings.TrimSuffix(portalURL, "/"),
		template:  tmpl,
		logger:    logging.Nop(),
	}
}

// WithTemplate returns a new Client that builds metadata URLs from pattern.
func (c *Client) WithTemplate(pattern string) (*Client, error) {
	tmpl, err := ParseTemplate(pattern)
	if err != nil {
		return nil, err
	}
	return &Client{
		fetcher:   c.fetcher,
		portalURL: c.portalURL,
		template:  tmpl,
		logger:    c.logger,
	}, nil
}

// WithLogger returns a new Client with the specified logger.
func (c *Client) WithLogger(logger logging.Logger) *Client {
	return &Client{
		fetcher:   c.fetcher,
		portalURL: c.portalURL,
		template:  c.template,
		logger:    logging.OrNop(logger),
	}
}

// PortalURL returns the portal base URL without a trailing slash.
func (c *Client) PortalURL() string {
	return c.portalURL
}

// ModURL returns the metadata URL for mod.
func (c *Client) ModURL(mod string) string {
	return c.template.Expand(c.portalURL, mod)
}

// Mod fetches the full metadata for mod.
func (c *Client) Mod(ctx context.Context, mod string) (*Mod, error) {
	url := c.ModURL(mod)
	c.logger.Debug("fetching mod metadata", "mod", mod, "url", url)

	data, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: mod %s: %w", ErrCatalogUnavailable, mod, err)
	}

	var m Mod
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: mod %s: decode metadata: %w", ErrCatalogUnavailable, mod, err)
	}
	if m.Name == "" {
		m.Name = mod
	}
	return &m, nil
}

// Releases fetches the release list of mod.
func (c *Client) Releases(ctx context.Context, mod string) ([]Release, error) {
	m, err := c.Mod(ctx, mod)
	if err != nil {
		return nil, err
	}
	return m.Releases, nil
}

// Latest fetches the release list of mod and returns its newest release.
func (c *Client) Latest(ctx context.Context, mod string) (Release, error) {
	releases, err := c.Releases(ctx, mod)
	if err != nil {
		return Release{}, err
	}
	latest, err := LatestRelease(releases)
	if err != nil {
		return Release{}, fmt.Errorf("mod %s: %w", mod, err)
	}
	return latest, nil
}

// DownloadURL returns the absolute artifact URL of r, without credentials.
func (c *Client) DownloadURL(r Release) string {
	if strings.HasPrefix(r.DownloadURL, "http://") || strings.HasPrefix(r.DownloadURL, "https://") {
		return r.DownloadURL
	}
	return c.portalURL + "/" + strings.TrimPrefix(r.DownloadURL, "/")
}
