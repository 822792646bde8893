package orchestrator

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vidwall/vidwall/internal/domain"
)

// normalizeQueue validates and resolves one surface's item list. Items whose
// reference is neither an absolute local path nor a well-formed http(s) URL
// are silently dropped; everything else stays in queue order with its
// validation fields filled in. Items are processed concurrently.
func (s *Service) normalizeQueue(ctx context.Context, items []*domain.MediaItem) []*domain.MediaItem {
	kept := make([]*domain.MediaItem, len(items))

	g, ctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			if s.normalizeItem(ctx, item) {
				kept[i] = item
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*domain.MediaItem, 0, len(items))
	for _, item := range kept {
		if item != nil {
			out = append(out, item)
		}
	}
	return out
}

// normalizeItem fills in validation and resolution state. It reports whether
// the item belongs in the queue at all.
func (s *Service) normalizeItem(ctx context.Context, item *domain.MediaItem) bool {
	if item == nil {
		return false
	}
	ref := strings.TrimSpace(item.Reference)
	if ref == "" {
		return false
	}

	if isRemoteRef(ref) {
		s.normalizeRemote(ctx, item, ref)
		return true
	}
	if filepath.IsAbs(ref) {
		s.normalizeLocal(item, ref)
		return true
	}

	s.log.Debug().Str("reference", ref).Msg("malformed reference excluded from queue")
	return false
}

func (s *Service) normalizeRemote(ctx context.Context, item *domain.MediaItem, ref string) {
	if resolved, ok := s.resolver.ResolveURL(ctx, ref); ok {
		item.ResolvedURL = resolved
		item.Validation = domain.ValidationValid
	}
	if item.Title == "" {
		if title, ok := s.resolver.ResolveTitle(ctx, ref); ok {
			item.Title = title
		}
	}
	// An unresolvable page stays Unknown: the backend may still be able to
	// play the raw reference.
}

func (s *Service) normalizeLocal(item *domain.MediaItem, ref string) {
	path := filepath.Clean(ref)
	exists, ok := s.exists.Get(path)
	if !ok {
		exists = s.statFile(path) == nil
		s.exists.Set(path, exists)
	}
	if exists {
		item.Validation = domain.ValidationValid
		return
	}
	item.Validation = domain.ValidationMissing
	item.ValidationError = "file not found: " + path
}

func isRemoteRef(ref string) bool {
	parsed, err := url.Parse(ref)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}

func defaultStatFile(path string) error {
	_, err := os.Stat(path)
	return err
}
