package go2tv

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vidwall/vidwall/internal/adapters"
	"github.com/vidwall/vidwall/internal/discovery"
	"github.com/vidwall/vidwall/internal/domain"
)

// castSurface drives one Chromecast renderer. The cast control channel has
// no pause/resume in the wired client surface, so those commands are logged
// and dropped; opened/ended detection comes from polling player status.
type castSurface struct {
	log       zerolog.Logger
	id        domain.SurfaceID
	address   string
	events    adapters.EventSink
	factory   CastFactory
	pollEvery time.Duration

	mu      sync.Mutex
	session *castSession
}

type castSession struct {
	url    string
	client CastClient
	cancel context.CancelFunc
	done   chan struct{}
}

func newCastSurface(log zerolog.Logger, r discovery.Renderer, events adapters.EventSink, factory CastFactory, pollEvery time.Duration) *castSurface {
	return &castSurface{
		log:       log.With().Str("surface", string(r.ID)).Str("protocol", "chromecast").Logger(),
		id:        r.ID,
		address:   r.Address,
		events:    events,
		factory:   factory,
		pollEvery: pollEvery,
	}
}

func (s *castSurface) Show(url string) {
	s.teardownSession(false)

	client, err := s.factory.NewCastClient(s.address)
	if err != nil {
		s.log.Error().Err(err).Msg("cast client init failed")
		s.events.MediaFailed(s.id, url, "renderer_unreachable")
		return
	}
	if err := client.Connect(); err != nil {
		s.log.Error().Err(err).Msg("cast connect failed")
		s.events.MediaFailed(s.id, url, "renderer_unreachable")
		return
	}
	if err := client.Load(url, detectMediaType(url), 0, 0, "", false); err != nil {
		_ = client.Close(true)
		s.log.Error().Err(err).Str("url", url).Msg("cast load failed")
		s.events.MediaFailed(s.id, url, "renderer_unreachable")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &castSession{
		url:    url,
		client: client,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	go s.monitor(ctx, sess)
}

func (s *castSurface) monitor(ctx context.Context, sess *castSession) {
	defer close(sess.done)

	opened := false
	pollErrors := 0

	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := sess.client.GetStatus()
			if err != nil || status == nil {
				pollErrors++
				if pollErrors >= maxMonitorPollErrors && !opened {
					s.events.MediaFailed(s.id, sess.url, "renderer_unreachable")
					return
				}
				continue
			}
			pollErrors = 0

			switch normalizeRendererState(status.PlayerState) {
			case "playing":
				if !opened {
					opened = true
					s.events.MediaOpened(s.id, sess.url)
				}
			case "stopped", "idle":
				if opened {
					s.events.MediaEnded(s.id, sess.url)
					return
				}
			}
		}
	}
}

func (s *castSurface) Play() {
	s.log.Debug().Msg("resume ignored for chromecast renderer")
}

func (s *castSurface) Pause() {
	s.log.Debug().Msg("pause ignored for chromecast renderer")
}

func (s *castSurface) Stop() {
	s.teardownSession(true)
}

func (s *castSurface) Seek(position time.Duration) {
	s.log.Debug().Dur("position", position).Msg("seek ignored for chromecast renderer")
}

func (s *castSurface) SetOpacity(v float64) {
	s.log.Debug().Float64("opacity", v).Msg("opacity ignored for chromecast renderer")
}

func (s *castSurface) SetVolume(v float64) {
	s.log.Debug().Float64("volume", v).Msg("volume ignored for chromecast renderer")
}

func (s *castSurface) teardownSession(stopMedia bool) {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()
	if sess == nil {
		return
	}

	sess.cancel()
	select {
	case <-sess.done:
	case <-time.After(2 * time.Second):
	}

	if stopMedia {
		if err := sess.client.Stop(); err != nil {
			s.log.Debug().Err(err).Msg("cast stop request failed")
		}
	}
	if err := sess.client.Close(true); err != nil {
		s.log.Debug().Err(err).Msg("cast close failed")
	}
}

func (s *castSurface) shutdown() {
	s.teardownSession(true)
}
