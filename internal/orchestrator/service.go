// Package orchestrator owns the per-surface playback controllers and the
// global command surface that fans out across them.
package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vidwall/vidwall/internal/adapters"
	"github.com/vidwall/vidwall/internal/cache"
	"github.com/vidwall/vidwall/internal/domain"
	"github.com/vidwall/vidwall/internal/playback"
)

const (
	existsCacheCapacity = 512
	existsCacheTTL      = 30 * time.Second
)

// Config wires the orchestration service. All collaborators are injected;
// there is no ambient lookup.
type Config struct {
	Provider adapters.SurfaceProvider
	Resolver URLResolver
	Observer domain.Observer
	Logger   zerolog.Logger
	Shuffle  bool
	Loop     bool
	// Rand seeds the shuffle permutations handed to controllers.
	Rand *rand.Rand
	// StatFile overrides filesystem existence probing, for tests.
	StatFile func(path string) error
}

// URLResolver is the slice of the source resolver the orchestrator needs.
type URLResolver interface {
	ResolveURL(ctx context.Context, reference string) (string, bool)
	ResolveTitle(ctx context.Context, reference string) (string, bool)
}

// Service owns one PlaybackController per assigned surface. Controllers
// share no state with one another; the service addresses them by SurfaceID
// and treats them as independent workers.
type Service struct {
	log      zerolog.Logger
	provider adapters.SurfaceProvider
	resolver URLResolver
	observer domain.Observer
	exists   *cache.Cache[string, bool]
	statFile func(path string) error
	shuffle  bool
	loop     bool
	rngMu    sync.Mutex
	rng      *rand.Rand

	mu          sync.Mutex
	controllers map[domain.SurfaceID]*playback.Controller
}

// New creates an empty orchestration service.
func New(cfg Config) *Service {
	statFile := cfg.StatFile
	if statFile == nil {
		statFile = defaultStatFile
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		log:         cfg.Logger,
		provider:    cfg.Provider,
		resolver:    cfg.Resolver,
		observer:    cfg.Observer,
		exists:      cache.New[string, bool](existsCacheCapacity, existsCacheTTL),
		statFile:    statFile,
		shuffle:     cfg.Shuffle,
		loop:        cfg.Loop,
		rng:         rng,
		controllers: map[domain.SurfaceID]*playback.Controller{},
	}
}

// Surfaces lists the display targets the provider currently knows about.
func (s *Service) Surfaces(ctx context.Context) ([]domain.SurfaceDescriptor, error) {
	if s.provider == nil {
		return nil, nil
	}
	return s.provider.Surfaces(ctx)
}

// Assign normalizes each surface's item list and replaces that surface's
// controller with one seeded from the normalized queue. Normalization runs
// concurrently across surfaces and across items within a surface, and all of
// it completes before any controller is constructed, so a caller invoking a
// global command right after Assign observes a fully seeded set. A list that
// normalizes to nothing still supersedes: the surface's old controller is
// stopped and removed, it just gets no replacement.
func (s *Service) Assign(ctx context.Context, assignments map[domain.SurfaceID][]*domain.MediaItem) {
	queues := make(map[domain.SurfaceID][]*domain.MediaItem, len(assignments))
	var queuesMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for id, items := range assignments {
		g.Go(func() error {
			queue := s.normalizeQueue(gctx, items)
			queuesMu.Lock()
			queues[id] = queue
			queuesMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	replaced := s.installControllers(ctx, queues)
	for _, old := range replaced {
		old.Stop()
	}
}

// installControllers swaps the live controller set. Superseded controllers
// are returned for teardown; any backend event still in flight for them finds
// no live entry and is dropped.
func (s *Service) installControllers(ctx context.Context, queues map[domain.SurfaceID][]*domain.MediaItem) []*playback.Controller {
	fresh := make(map[domain.SurfaceID]*playback.Controller, len(queues))
	for id, queue := range queues {
		if len(queue) == 0 {
			s.log.Debug().Str("surface", string(id)).Msg("assignment normalized to empty queue")
			continue
		}
		surface, err := s.openSurface(ctx, id)
		if err != nil {
			s.log.Error().Err(err).Str("surface", string(id)).Msg("surface unavailable, assignment skipped")
			continue
		}
		ctrl := playback.NewController(playback.Config{
			SurfaceID: id,
			Surface:   surface,
			Observer:  s.observer,
			Logger:    s.log,
			Shuffle:   s.shuffle,
			Loop:      s.loop,
			Rand:      rand.New(rand.NewSource(s.randSeed())),
		})
		fresh[id] = ctrl
	}

	s.mu.Lock()
	var replaced []*playback.Controller
	for id, old := range s.controllers {
		// Any surface named in the assignment supersedes its old controller,
		// even when normalization produced no fresh one to take its place.
		if _, assigned := queues[id]; assigned {
			replaced = append(replaced, old)
		} else {
			fresh[id] = old
		}
	}
	s.controllers = fresh
	s.mu.Unlock()

	// Seeding starts playback of the first resolvable item per surface.
	for id, queue := range queues {
		if ctrl := s.controller(id); ctrl != nil && len(queue) > 0 {
			ctrl.SetQueue(queue)
		}
	}
	return replaced
}

func (s *Service) randSeed() int64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Int63()
}

func (s *Service) openSurface(ctx context.Context, id domain.SurfaceID) (playback.Surface, error) {
	if s.provider == nil {
		return nil, nil
	}
	return s.provider.Open(ctx, id, s)
}

func (s *Service) controller(id domain.SurfaceID) *playback.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controllers[id]
}

// snapshot returns the live controllers without holding the lock during
// fan-out, the same discipline the command dispatchers rely on: no dispatch
// ever blocks on another controller's work.
func (s *Service) snapshot() []*playback.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*playback.Controller, 0, len(s.controllers))
	for _, ctrl := range s.controllers {
		out = append(out, ctrl)
	}
	return out
}

// PlayAll starts or resumes playback on every live controller. An empty
// controller set is a no-op.
func (s *Service) PlayAll() {
	for _, ctrl := range s.snapshot() {
		ctrl.Play()
	}
}

// PauseAll pauses every live controller.
func (s *Service) PauseAll() {
	for _, ctrl := range s.snapshot() {
		ctrl.Pause()
	}
}

// ContinueAll resumes every paused controller.
func (s *Service) ContinueAll() {
	for _, ctrl := range s.snapshot() {
		ctrl.Continue()
	}
}

// StopAll terminates every session. Surfaces may be reassigned afterwards.
func (s *Service) StopAll() {
	for _, ctrl := range s.snapshot() {
		ctrl.Stop()
	}
}

// ReshuffleAll recomputes every controller's play order.
func (s *Service) ReshuffleAll() {
	for _, ctrl := range s.snapshot() {
		ctrl.Reshuffle()
	}
}

// SyncPositionAll broadcasts a best-effort seek to every live controller.
// Zero is a valid target position.
func (s *Service) SyncPositionAll(position time.Duration) {
	for _, ctrl := range s.snapshot() {
		ctrl.SyncPosition(position)
	}
}

// SetVolumeAll broadcasts an unclamped volume to every live controller.
func (s *Service) SetVolumeAll(v float64) {
	for _, ctrl := range s.snapshot() {
		ctrl.SetVolume(v)
	}
}

// SetOpacityAll broadcasts an unclamped opacity to every live controller.
func (s *Service) SetOpacityAll(v float64) {
	for _, ctrl := range s.snapshot() {
		ctrl.SetOpacity(v)
	}
}

// IsPlaying reports whether at least one controller is currently playing.
func (s *Service) IsPlaying() bool {
	for _, ctrl := range s.snapshot() {
		if ctrl.State() == domain.StatePlaying {
			return true
		}
	}
	return false
}

// States returns the transport state of every live controller.
func (s *Service) States() map[domain.SurfaceID]domain.PlaybackState {
	out := map[domain.SurfaceID]domain.PlaybackState{}
	for _, ctrl := range s.snapshot() {
		out[ctrl.SurfaceID()] = ctrl.State()
	}
	return out
}

// ClearFileExistenceCache drops the existence-check memoization. Idempotent.
func (s *Service) ClearFileExistenceCache() {
	s.exists.Clear()
}

// Panic is the out-of-process kill switch. It maps straight onto StopAll and
// is safe to invoke from any goroutine.
func (s *Service) Panic() {
	s.log.Warn().Msg("panic signal received, stopping all surfaces")
	s.StopAll()
}

// MediaOpened routes a backend open acknowledgment to the live controller
// for its surface. Events for surfaces no longer in the live set are dropped.
func (s *Service) MediaOpened(id domain.SurfaceID, source string) {
	if ctrl := s.controller(id); ctrl != nil {
		ctrl.OnMediaOpened(source)
	}
}

// MediaEnded routes an end-of-media event to the live controller.
func (s *Service) MediaEnded(id domain.SurfaceID, source string) {
	if ctrl := s.controller(id); ctrl != nil {
		ctrl.OnMediaEnded(source)
	}
}

// MediaFailed classifies the raw backend error code at this boundary and
// routes the failure to the live controller.
func (s *Service) MediaFailed(id domain.SurfaceID, source string, code string) {
	if ctrl := s.controller(id); ctrl != nil {
		ctrl.OnMediaFailed(source, domain.ClassifyBackendError(code))
	}
}

var _ adapters.EventSink = (*Service)(nil)
