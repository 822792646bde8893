package go2tv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vidwall/vidwall/internal/adapters"
	"github.com/vidwall/vidwall/internal/discovery"
	"github.com/vidwall/vidwall/internal/domain"
	"github.com/vidwall/vidwall/internal/playback"
)

const (
	defaultPollEvery          = 2 * time.Second
	defaultDiscoveryTimeoutMS = 2500
)

// shutdowner is the teardown contract shared by both surface kinds.
type shutdowner interface {
	shutdown()
}

// Provider exposes discovered renderers as playback surfaces.
type Provider struct {
	log                zerolog.Logger
	discovery          *discovery.Service
	dlna               DLNAFactory
	cast               CastFactory
	servers            StreamServerFactory
	pollEvery          time.Duration
	timeoutMS          int
	includeUnreachable bool

	mu        sync.Mutex
	renderers map[domain.SurfaceID]discovery.Renderer
	open      map[domain.SurfaceID]shutdowner
}

// ProviderConfig carries the injectable collaborators; zero fields fall back
// to the real go2tv stack.
type ProviderConfig struct {
	Logger      zerolog.Logger
	Discovery   *discovery.Service
	DLNAFactory DLNAFactory
	CastFactory CastFactory
	Servers     StreamServerFactory
	PollEvery   time.Duration
	TimeoutMS   int
	// IncludeUnreachable skips the TCP reachability probe during scans.
	IncludeUnreachable bool
}

func NewProvider(cfg ProviderConfig) *Provider {
	if cfg.Discovery == nil {
		cfg.Discovery = discovery.NewService(DiscoveryAdapter{}, context.Background())
	}
	if cfg.DLNAFactory == nil {
		cfg.DLNAFactory = dlnaFactory{}
	}
	if cfg.CastFactory == nil {
		cfg.CastFactory = castFactory{}
	}
	if cfg.Servers == nil {
		cfg.Servers = streamServerFactory{}
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = defaultPollEvery
	}
	if cfg.TimeoutMS <= 0 {
		cfg.TimeoutMS = defaultDiscoveryTimeoutMS
	}
	return &Provider{
		log:                cfg.Logger,
		discovery:          cfg.Discovery,
		dlna:               cfg.DLNAFactory,
		cast:               cfg.CastFactory,
		servers:            cfg.Servers,
		pollEvery:          cfg.PollEvery,
		timeoutMS:          cfg.TimeoutMS,
		includeUnreachable: cfg.IncludeUnreachable,
		renderers:          map[domain.SurfaceID]discovery.Renderer{},
		open:               map[domain.SurfaceID]shutdowner{},
	}
}

// Surfaces scans the network and returns the reachable renderers as surface
// descriptors. The first renderer in the stable sort order is primary.
func (p *Provider) Surfaces(ctx context.Context) ([]domain.SurfaceDescriptor, error) {
	renderers, err := p.discovery.ListRenderers(ctx, p.timeoutMS, p.includeUnreachable)
	if err != nil {
		return nil, fmt.Errorf("scan renderers: %w", err)
	}

	p.mu.Lock()
	for _, r := range renderers {
		p.renderers[r.ID] = r
	}
	p.mu.Unlock()

	out := make([]domain.SurfaceDescriptor, 0, len(renderers))
	for i, r := range renderers {
		out = append(out, r.Descriptor(i == 0))
	}
	return out, nil
}

// Open binds a playback surface to a previously discovered renderer. Opening
// a surface that already has one tears the old one down first.
func (p *Provider) Open(ctx context.Context, id domain.SurfaceID, events adapters.EventSink) (playback.Surface, error) {
	p.mu.Lock()
	renderer, known := p.renderers[id]
	p.mu.Unlock()
	if !known {
		if _, err := p.Surfaces(ctx); err != nil {
			return nil, err
		}
		p.mu.Lock()
		renderer, known = p.renderers[id]
		p.mu.Unlock()
		if !known {
			return nil, fmt.Errorf("unknown surface %q", id)
		}
	}

	var surface playback.Surface
	var teardown shutdowner
	switch renderer.Protocol {
	case "dlna":
		s := newDLNASurface(p.log, renderer, events, p.dlna, p.servers, p.pollEvery)
		surface, teardown = s, s
	case "chromecast":
		s := newCastSurface(p.log, renderer, events, p.cast, p.pollEvery)
		surface, teardown = s, s
	default:
		return nil, fmt.Errorf("surface %q: unsupported renderer protocol %q", id, renderer.Protocol)
	}

	p.mu.Lock()
	old := p.open[id]
	p.open[id] = teardown
	p.mu.Unlock()
	if old != nil {
		old.shutdown()
	}
	return surface, nil
}

// Close tears down the open surface for the renderer, if any.
func (p *Provider) Close(id domain.SurfaceID) {
	p.mu.Lock()
	open := p.open[id]
	delete(p.open, id)
	p.mu.Unlock()
	if open != nil {
		open.shutdown()
	}
}

var _ adapters.SurfaceProvider = (*Provider)(nil)
