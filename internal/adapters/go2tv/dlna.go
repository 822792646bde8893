package go2tv

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go2tv.app/go2tv/v2/soapcalls"

	"github.com/vidwall/vidwall/internal/adapters"
	"github.com/vidwall/vidwall/internal/discovery"
	"github.com/vidwall/vidwall/internal/domain"
)

const (
	callbackQueueSize    = 8
	maxMonitorPollErrors = 5
)

// dlnaSurface drives one DLNA renderer. A local HTTP server streams file
// sources to the device; direct URLs are handed to the renderer as-is.
type dlnaSurface struct {
	log       zerolog.Logger
	id        domain.SurfaceID
	address   string
	events    adapters.EventSink
	factory   DLNAFactory
	servers   StreamServerFactory
	pollEvery time.Duration

	mu      sync.Mutex
	session *dlnaSession
}

type dlnaSession struct {
	url        string
	payload    DLNAPayload
	server     StreamServer
	callbackCh chan string
	cancel     context.CancelFunc
	done       chan struct{}
}

func newDLNASurface(log zerolog.Logger, r discovery.Renderer, events adapters.EventSink, factory DLNAFactory, servers StreamServerFactory, pollEvery time.Duration) *dlnaSurface {
	return &dlnaSurface{
		log:       log.With().Str("surface", string(r.ID)).Str("protocol", "dlna").Logger(),
		id:        r.ID,
		address:   r.Address,
		events:    events,
		factory:   factory,
		servers:   servers,
		pollEvery: pollEvery,
	}
}

func (s *dlnaSurface) Show(url string) {
	s.teardownSession(false)

	ctx, cancel := context.WithCancel(context.Background())
	payload, err := s.factory.NewTVPayload(&soapcalls.Options{
		Ctx:   ctx,
		DMR:   s.address,
		Media: url,
		Mtype: detectMediaType(url),
		Seek:  true,
	})
	if err != nil {
		cancel()
		s.log.Error().Err(err).Str("url", url).Msg("dlna payload init failed")
		s.events.MediaFailed(s.id, url, "renderer_unreachable")
		return
	}
	payload.SetContext(ctx)

	server := s.servers.New(payload.ListenAddress())
	started := make(chan error, 1)
	callbackCh := make(chan string, callbackQueueSize)
	screen := &monitorScreen{stateCh: callbackCh}

	go server.StartServer(started, mediaForSource(url), "", payload.RawPayload(), screen)
	if err := <-started; err != nil {
		cancel()
		s.log.Error().Err(err).Msg("dlna stream server failed to start")
		s.events.MediaFailed(s.id, url, "stream_server_failed")
		return
	}

	if isRemoteURL(url) {
		// The renderer pulls straight from the origin; the local server only
		// hosts the SOAP callback endpoint.
		payload.SetMediaURL(url)
	}

	if err := payload.SendtoTV("Play1"); err != nil {
		server.StopServer()
		cancel()
		s.log.Error().Err(err).Str("url", url).Msg("dlna play request failed")
		s.events.MediaFailed(s.id, url, "renderer_unreachable")
		return
	}

	sess := &dlnaSession{
		url:        url,
		payload:    payload,
		server:     server,
		callbackCh: callbackCh,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	go s.monitor(ctx, sess)
}

// monitor translates transport observations into playback events. Callback
// notifications from the renderer and periodic polls feed the same path.
func (s *dlnaSurface) monitor(ctx context.Context, sess *dlnaSession) {
	defer close(sess.done)

	opened := false
	pollErrors := 0

	handle := func(state string) bool {
		switch state {
		case "playing":
			if !opened {
				opened = true
				s.events.MediaOpened(s.id, sess.url)
			}
		case "stopped":
			if opened {
				s.events.MediaEnded(s.id, sess.url)
				return true
			}
		}
		return false
	}

	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-sess.callbackCh:
			if !ok {
				sess.callbackCh = nil
				continue
			}
			if handle(normalizeRendererState(update)) {
				return
			}
		case <-ticker.C:
			transport, err := sess.payload.GetTransportInfo()
			if err != nil {
				pollErrors++
				if pollErrors >= maxMonitorPollErrors && !opened {
					s.events.MediaFailed(s.id, sess.url, "renderer_unreachable")
					return
				}
				continue
			}
			pollErrors = 0
			if handle(normalizeTransport(transport)) {
				return
			}
		}
	}
}

func (s *dlnaSurface) Play() {
	if sess := s.current(); sess != nil {
		if err := sess.payload.SendtoTV("Play"); err != nil {
			s.log.Error().Err(err).Msg("dlna resume failed")
		}
	}
}

func (s *dlnaSurface) Pause() {
	if sess := s.current(); sess != nil {
		if err := sess.payload.SendtoTV("Pause"); err != nil {
			s.log.Error().Err(err).Msg("dlna pause failed")
		}
	}
}

func (s *dlnaSurface) Stop() {
	s.teardownSession(true)
}

// Seek is not wired for DLNA renderers: seek target formats vary per device
// and the transport poll would race the position anyway.
func (s *dlnaSurface) Seek(position time.Duration) {
	s.log.Debug().Dur("position", position).Msg("seek ignored for dlna renderer")
}

// Remote renderers have no composition layer, so opacity has no effect.
func (s *dlnaSurface) SetOpacity(v float64) {
	s.log.Debug().Float64("opacity", v).Msg("opacity ignored for dlna renderer")
}

func (s *dlnaSurface) SetVolume(v float64) {
	s.log.Debug().Float64("volume", v).Msg("volume ignored for dlna renderer")
}

func (s *dlnaSurface) current() *dlnaSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *dlnaSurface) teardownSession(stopMedia bool) {
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
		if err := sess.payload.SendtoTV("Stop"); err != nil {
			s.log.Debug().Err(err).Msg("dlna stop request failed")
		}
	}
	sess.server.StopServer()
}

func (s *dlnaSurface) shutdown() {
	s.teardownSession(true)
}

// monitorScreen adapts the go2tv screen callback into a state channel.
type monitorScreen struct {
	stateCh chan<- string
}

func (m *monitorScreen) EmitMsg(msg string) {
	if m == nil || m.stateCh == nil {
		return
	}
	select {
	case m.stateCh <- msg:
	default:
	}
}

func (m *monitorScreen) Fini() {}

func (m *monitorScreen) SetMediaType(string) {}

func normalizeRendererState(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.ReplaceAll(v, " ", "_")
	switch v {
	case "playing":
		return "playing"
	case "paused", "paused_playback":
		return "paused"
	case "stopped", "no_media_present":
		return "stopped"
	case "buffering", "transitioning":
		return "buffering"
	default:
		return v
	}
}

func normalizeTransport(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return normalizeRendererState(v[0])
}
