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

// Package catalog reads mod metadata from the mod portal.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tinywasm/fetch"
	"golang.org/x/time/rate"

	"github.com/factorio-headless/fhctl/internal/metrics"
)

// Fetcher retrieves the body served at a portal URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// HTTPFetcher fetches metadata over HTTP with tinywasm/fetch. Anything but
// a 200 response is a *FetchError.
type HTTPFetcher struct{}

// NewHTTPFetcher returns an HTTPFetcher.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{}
}

// Fetch implements Fetcher. The request keeps running in the background
// when ctx ends first; its result is discarded.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	type reply struct {
		body []byte
		err  error
	}
	replies := make(chan reply, 1)

	fetch.Get(url).Send(func(resp *fetch.Response, err error) {
		switch {
		case err != nil:
			replies <- reply{err: &FetchError{URL: url, Message: err.Error()}}
		case resp.Status != http.StatusOK:
			replies <- reply{err: &FetchError{URL: url, StatusCode: resp.Status, Message: http.StatusText(resp.Status)}}
		default:
			replies <- reply{body: resp.Body()}
		}
	})

	select {
	case r := <-replies:
		return r.body, r.err
	case <-ctx.Done():
		return nil, &FetchError{URL: url, Message: ctx.Err().Error()}
	}
}

// LimitedFetcher spaces requests to the portal with a token bucket and
// counts their outcome in metrics.CatalogRequests.
type LimitedFetcher struct {
	next    Fetcher
	limiter *rate.Limiter
}

// NewLimitedFetcher allows perSecond requests per second through to next,
// with no bursts. Zero or less means unlimited.
func NewLimitedFetcher(next Fetcher, perSecond float64) *LimitedFetcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &LimitedFetcher{next: next, limiter: rate.NewLimiter(limit, 1)}
}

// Fetch implements Fetcher.
func (f *LimitedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: url, Message: err.Error()}
	}
	body, err := f.next.Fetch(ctx, url)
	metrics.CatalogRequests.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	return body, nil
}

func outcome(err error) string {
	var fe *FetchError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &fe) && fe.IsNotFound():
		return "not_found"
	default:
		return "error"
	}
}

// FetchError describes a failed portal request. StatusCode is zero when no
// response arrived.
type FetchError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %s", e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

// IsNotFound reports whether the portal answered 404, which it does for
// mods it does not know.
func (e *FetchError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Temporary reports whether repeating the request later could succeed:
// no response, rate limiting or a server error.
func (e *FetchError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
