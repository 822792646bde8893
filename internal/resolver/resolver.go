// Package resolver turns page/video references into direct playable URLs and
// display titles.
package resolver

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/sync/singleflight"

	"github.com/vidwall/vidwall/internal/cache"
)

const (
	defaultCacheCapacity = 256
	defaultCacheTTL      = 30 * time.Minute
)

// Resolution is a successful lookup for one reference.
type Resolution struct {
	MediaURL string
	Title    string
}

// Resolver resolves references through an injected Fetcher. Successful
// resolutions are cached by the original reference; concurrent lookups for
// the same uncached reference collapse into a single fetch.
type Resolver struct {
	log     zerolog.Logger
	fetcher Fetcher
	results *cache.Cache[string, Resolution]
	sf      singleflight.Group
}

// New creates a resolver around the given fetcher.
func New(fetcher Fetcher, log zerolog.Logger) *Resolver {
	return &Resolver{
		log:     log,
		fetcher: fetcher,
		results: cache.New[string, Resolution](defaultCacheCapacity, defaultCacheTTL),
	}
}

// ResolveURL returns the direct playable URL for a reference, or absent when
// the reference cannot be resolved. References that already carry a direct
// media extension are returned unchanged without any network access.
func (r *Resolver) ResolveURL(ctx context.Context, reference string) (string, bool) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", false
	}
	if isDirectMedia(reference) {
		return reference, true
	}

	res, ok := r.resolve(ctx, reference)
	if !ok || res.MediaURL == "" {
		return "", false
	}
	return res.MediaURL, true
}

// ResolveTitle returns the display title extracted from the reference's page,
// or absent. Title extraction shares the cached resolution with ResolveURL.
func (r *Resolver) ResolveTitle(ctx context.Context, reference string) (string, bool) {
	reference = strings.TrimSpace(reference)
	if reference == "" || isDirectMedia(reference) {
		return "", false
	}

	res, ok := r.resolve(ctx, reference)
	if !ok || res.Title == "" {
		return "", false
	}
	return res.Title, true
}

type flightResult struct {
	res Resolution
	ok  bool
}

// resolve performs the cached, single-flight page lookup. It never returns
// an error: every failure mode collapses to absent.
func (r *Resolver) resolve(ctx context.Context, reference string) (Resolution, bool) {
	if res, ok := r.results.Get(reference); ok {
		return res, true
	}

	v, _, _ := r.sf.Do(reference, func() (any, error) {
		// A racing flight may have populated the cache between our miss and
		// this critical section.
		if res, ok := r.results.Get(reference); ok {
			return flightResult{res: res, ok: true}, nil
		}

		res, ok := r.fetchAndExtract(ctx, reference)
		if ok {
			r.results.Set(reference, res)
		}
		return flightResult{res: res, ok: ok}, nil
	})

	fr, ok := v.(flightResult)
	if !ok {
		return Resolution{}, false
	}
	return fr.res, fr.ok
}

func (r *Resolver) fetchAndExtract(ctx context.Context, reference string) (Resolution, bool) {
	pageURL, err := url.Parse(reference)
	if err != nil || pageURL.Scheme == "" || pageURL.Host == "" {
		r.log.Debug().Str("reference", reference).Msg("reference is not a resolvable url")
		return Resolution{}, false
	}

	body, err := r.fetcher.FetchHTML(ctx, reference)
	if err != nil {
		r.log.Debug().Err(err).Str("reference", reference).Msg("page fetch failed")
		return Resolution{}, false
	}
	if strings.TrimSpace(body) == "" {
		return Resolution{}, false
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		r.log.Debug().Err(err).Str("reference", reference).Msg("page parse failed")
		return Resolution{}, false
	}

	res := Resolution{
		MediaURL: extractMediaURL(doc, pageURL),
		Title:    extractTitle(doc),
	}
	if res.MediaURL == "" && res.Title == "" {
		return Resolution{}, false
	}

	r.log.Debug().
		Str("reference", reference).
		Str("media_url", res.MediaURL).
		Str("title", res.Title).
		Msg("reference resolved")
	return res, true
}
