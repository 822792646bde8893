// Package playback drives one display surface through its media queue.
package playback

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vidwall/vidwall/internal/domain"
)

// maxTransientFailures is the number of transient failures one item may
// accumulate before it is permanently excluded. The second failure excludes,
// so each item gets exactly one retry.
const maxTransientFailures = 2

// Config wires a controller to its collaborators. Surface and Observer may be
// nil; every operation stays safely callable.
type Config struct {
	SurfaceID domain.SurfaceID
	Surface   Surface
	Observer  domain.Observer
	Logger    zerolog.Logger
	Shuffle   bool
	Loop      bool
	// Rand supplies the shuffle permutation source. Falls back to a
	// time-seeded source when nil.
	Rand *rand.Rand
}

// Controller is the per-surface playback state machine. It owns one queue,
// tracks failure history per item, and filters stale backend events against
// the source it expects to be active.
type Controller struct {
	id        string
	surfaceID domain.SurfaceID
	surface   Surface
	observer  domain.Observer
	log       zerolog.Logger
	rng       *rand.Rand

	mu             sync.Mutex
	state          domain.PlaybackState
	queue          []*domain.MediaItem
	order          []int
	cursor         int
	excluded       map[int]bool
	expectedSource string
	shuffle        bool
	loop           bool
	opacity        float64
	volume         float64
	opacitySet     bool
	volumeSet      bool
}

// NewController creates an idle controller for one surface. Each controller
// carries a unique generation ID so events addressed to a superseded
// controller are detectable as stale.
func NewController(cfg Config) *Controller {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Controller{
		id:        uuid.NewString(),
		surfaceID: cfg.SurfaceID,
		surface:   cfg.Surface,
		observer:  cfg.Observer,
		log:       cfg.Logger.With().Str("surface", string(cfg.SurfaceID)).Logger(),
		rng:       rng,
		state:     domain.StateIdle,
		excluded:  map[int]bool{},
		shuffle:   cfg.Shuffle,
		loop:      cfg.Loop,
	}
}

// ID returns the controller's generation identifier.
func (c *Controller) ID() string { return c.id }

// SurfaceID returns the display target this controller drives.
func (c *Controller) SurfaceID() domain.SurfaceID { return c.surfaceID }

// State returns the current transport state.
func (c *Controller) State() domain.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Queue returns a snapshot of the queue in storage order.
func (c *Controller) Queue() []*domain.MediaItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.MediaItem, len(c.queue))
	copy(out, c.queue)
	return out
}

// plan is the work a locked transition decided on, executed after the lock is
// released so a surface that reports events synchronously cannot deadlock the
// controller.
type plan struct {
	events []domain.PlaybackEvent

	show        bool
	showURL     string
	showOpacity float64
	showVolume  float64

	play, pause, stop bool
	seek              *time.Duration
	opacity, volume   *float64
}

func (c *Controller) execute(p plan) {
	if c.surface != nil {
		switch {
		case p.show:
			c.surface.Show(p.showURL)
			c.surface.SetOpacity(p.showOpacity)
			c.surface.SetVolume(p.showVolume)
		case p.play:
			c.surface.Play()
		case p.pause:
			c.surface.Pause()
		case p.stop:
			c.surface.Stop()
		}
		if p.seek != nil {
			c.surface.Seek(*p.seek)
		}
		if p.opacity != nil {
			c.surface.SetOpacity(*p.opacity)
		}
		if p.volume != nil {
			c.surface.SetVolume(*p.volume)
		}
	}
	for _, ev := range p.events {
		if c.observer != nil {
			c.observer.OnPlaybackEvent(ev)
		}
	}
}

func (c *Controller) event(kind domain.EventKind, ev domain.PlaybackEvent) domain.PlaybackEvent {
	ev.Surface = c.surfaceID
	ev.Kind = kind
	ev.State = c.state
	return ev
}

// SetQueue replaces the queue, resets the cursor, computes the play order and
// immediately attempts to start the first resolvable item.
func (c *Controller) SetQueue(items []*domain.MediaItem) {
	c.mu.Lock()
	c.queue = append([]*domain.MediaItem{}, items...)
	c.excluded = map[int]bool{}
	c.order = c.computeOrder()
	c.cursor = 0
	c.expectedSource = ""
	var p plan
	if len(c.queue) == 0 {
		c.toStateLocked(&p, domain.StateIdle)
	} else {
		c.startFromCursorLocked(&p)
	}
	c.mu.Unlock()

	c.execute(p)
}

func (c *Controller) computeOrder() []int {
	order := make([]int, len(c.queue))
	for i := range order {
		order[i] = i
	}
	if c.shuffle && len(order) > 1 {
		c.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return order
}

// startFromCursorLocked advances the cursor to the next startable item and
// plans its playback. With nothing startable the controller parks in Idle
// (empty queue) or Stopped.
func (c *Controller) startFromCursorLocked(p *plan) {
	for c.cursor < len(c.order) {
		idx := c.order[c.cursor]
		item := c.queue[idx]
		if item.Playable() && !c.excluded[idx] {
			c.startItemLocked(p, item)
			return
		}
		c.cursor++
	}
	c.toStateLocked(p, domain.StateStopped)
}

func (c *Controller) startItemLocked(p *plan, item *domain.MediaItem) {
	url := item.PlayableURL()
	c.expectedSource = url
	c.toStateLocked(p, domain.StateLoading)

	p.show = true
	p.showURL = url
	p.showOpacity = item.Opacity
	p.showVolume = item.Volume
	if c.opacitySet {
		p.showOpacity = c.opacity
	}
	if c.volumeSet {
		p.showVolume = c.volume
	}
	p.events = append(p.events, c.event(domain.EventItemStarted, domain.PlaybackEvent{Reference: item.Reference}))
}

func (c *Controller) toStateLocked(p *plan, next domain.PlaybackState) {
	if c.state == next {
		return
	}
	c.state = next
	p.events = append(p.events, c.event(domain.EventStateChanged, domain.PlaybackEvent{}))
}

// Play requests playback. With a paused session it resumes; with a stopped or
// idle session and a queue it restarts the current item. Always emits its
// outward command event, queue or not.
func (c *Controller) Play() {
	c.mu.Lock()
	var p plan
	switch {
	case len(c.queue) == 0:
		// nothing to drive, command event still goes out
	case c.state == domain.StatePaused:
		c.toStateLocked(&p, domain.StatePlaying)
		p.play = true
	case c.state == domain.StateIdle || c.state == domain.StateStopped:
		c.cursor = 0
		c.excludedResetIfFinishedLocked()
		c.startFromCursorLocked(&p)
	default:
		p.play = true
	}
	p.events = append(p.events, c.event(domain.EventCommand, domain.PlaybackEvent{Command: "play"}))
	c.mu.Unlock()

	c.execute(p)
}

// excludedResetIfFinishedLocked clears exclusions when a replay is requested
// after the whole queue failed, so an explicit play gets a fresh attempt.
func (c *Controller) excludedResetIfFinishedLocked() {
	if len(c.excluded) == len(c.queue) {
		c.excluded = map[int]bool{}
		for _, item := range c.queue {
			item.FailureCount = 0
		}
	}
}

// Continue resumes a paused session and is a no-op otherwise. The command
// event is emitted unconditionally.
func (c *Controller) Continue() {
	c.mu.Lock()
	var p plan
	if c.state == domain.StatePaused {
		c.toStateLocked(&p, domain.StatePlaying)
		p.play = true
	}
	p.events = append(p.events, c.event(domain.EventCommand, domain.PlaybackEvent{Command: "continue"}))
	c.mu.Unlock()

	c.execute(p)
}

// Pause requests a pause of active playback.
func (c *Controller) Pause() {
	c.mu.Lock()
	var p plan
	if c.state == domain.StatePlaying || c.state == domain.StateLoading {
		c.toStateLocked(&p, domain.StatePaused)
		p.pause = true
	}
	p.events = append(p.events, c.event(domain.EventCommand, domain.PlaybackEvent{Command: "pause"}))
	c.mu.Unlock()

	c.execute(p)
}

// Stop terminates the session. The surface may be reseeded with a new queue
// afterwards.
func (c *Controller) Stop() {
	c.mu.Lock()
	var p plan
	c.expectedSource = ""
	if c.state != domain.StateStopped {
		c.toStateLocked(&p, domain.StateStopped)
		p.stop = true
	}
	p.events = append(p.events, c.event(domain.EventCommand, domain.PlaybackEvent{Command: "stop"}))
	c.mu.Unlock()

	c.execute(p)
}

// Reshuffle recomputes the play order for the remaining session.
func (c *Controller) Reshuffle() {
	c.mu.Lock()
	c.shuffle = true
	c.order = c.computeOrder()
	c.cursor = 0
	c.mu.Unlock()
}

// SyncPosition forwards a best-effort seek. Zero seeks to the start and is
// not special-cased.
func (c *Controller) SyncPosition(position time.Duration) {
	c.mu.Lock()
	var p plan
	if c.state != domain.StateIdle && c.state != domain.StateStopped {
		p.seek = &position
	}
	c.mu.Unlock()

	c.execute(p)
}

// OnMediaOpened acknowledges that the surface started rendering a source.
// Events for a source other than the expected one are stale and discarded.
func (c *Controller) OnMediaOpened(source string) {
	c.mu.Lock()
	var p plan
	if !c.expectsLocked(source) {
		c.mu.Unlock()
		return
	}
	if c.state == domain.StateLoading {
		c.toStateLocked(&p, domain.StatePlaying)
	}
	c.mu.Unlock()

	c.execute(p)
}

// OnMediaEnded advances to the next item, looping to the start when loop mode
// is enabled and stopping otherwise.
func (c *Controller) OnMediaEnded(source string) {
	c.mu.Lock()
	var p plan
	if !c.expectsLocked(source) || c.state == domain.StateStopped {
		c.mu.Unlock()
		return
	}
	c.advanceLocked(&p)
	c.mu.Unlock()

	c.execute(p)
}

func (c *Controller) advanceLocked(p *plan) {
	c.cursor++
	if c.cursor >= len(c.order) {
		if !c.loop {
			c.expectedSource = ""
			c.toStateLocked(p, domain.StateStopped)
			return
		}
		c.cursor = 0
	}
	c.startFromCursorLocked(p)
}

// OnMediaFailed classifies the failure. Unrecoverable failures exclude the
// item immediately; transients get exactly one retry before exclusion. When
// every item has been excluded the controller stops and raises the terminal
// all-items-failed notification instead of looping forever.
func (c *Controller) OnMediaFailed(source string, class domain.FailureClass) {
	c.mu.Lock()
	var p plan
	if !c.expectsLocked(source) || c.state == domain.StateStopped {
		c.mu.Unlock()
		return
	}

	idx := -1
	if c.cursor < len(c.order) {
		idx = c.order[c.cursor]
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	item := c.queue[idx]

	switch class {
	case domain.FailureUnrecoverable:
		c.excludeLocked(&p, idx, item, "unrecoverable")
	default:
		item.FailureCount++
		if item.FailureCount < maxTransientFailures {
			c.log.Debug().Str("reference", item.Reference).Int("failures", item.FailureCount).Msg("retrying item after transient failure")
			c.startItemLocked(&p, item)
			c.mu.Unlock()
			c.execute(p)
			return
		}
		c.excludeLocked(&p, idx, item, "transient retries exhausted")
	}

	if c.allExcludedLocked() {
		c.expectedSource = ""
		c.toStateLocked(&p, domain.StateStopped)
		p.events = append(p.events, c.event(domain.EventAllItemsFailed, domain.PlaybackEvent{Detail: "every queue item failed"}))
		c.mu.Unlock()
		c.execute(p)
		return
	}

	c.advanceAfterExclusionLocked(&p)
	c.mu.Unlock()
	c.execute(p)
}

func (c *Controller) excludeLocked(p *plan, idx int, item *domain.MediaItem, reason string) {
	c.excluded[idx] = true
	c.log.Warn().Str("reference", item.Reference).Str("reason", reason).Msg("item excluded from playback")
	p.events = append(p.events, c.event(domain.EventItemExcluded, domain.PlaybackEvent{Reference: item.Reference, Detail: reason}))
}

// advanceAfterExclusionLocked moves past the excluded item. Unlike a natural
// end-of-media advance, exclusions keep searching from the queue start when
// loop mode is off but items remain, so one bad asset cannot strand the
// session.
func (c *Controller) advanceAfterExclusionLocked(p *plan) {
	c.cursor++
	if c.cursor >= len(c.order) {
		if !c.loop && !c.anyStartableLocked() {
			c.expectedSource = ""
			c.toStateLocked(p, domain.StateStopped)
			return
		}
		c.cursor = 0
	}
	c.startFromCursorLocked(p)
}

func (c *Controller) anyStartableLocked() bool {
	for idx, item := range c.queue {
		if item.Playable() && !c.excluded[idx] {
			return true
		}
	}
	return false
}

func (c *Controller) allExcludedLocked() bool {
	if len(c.queue) == 0 {
		return false
	}
	for idx := range c.queue {
		if !c.excluded[idx] {
			return false
		}
	}
	return true
}

func (c *Controller) expectsLocked(source string) bool {
	if source != c.expectedSource {
		c.log.Debug().Str("got", source).Str("expected", c.expectedSource).Msg("stale backend event discarded")
		return false
	}
	return c.expectedSource != ""
}

// SetOpacity stores the unclamped value and applies it to the live surface
// when a session is active. No range is enforced.
func (c *Controller) SetOpacity(v float64) {
	c.mu.Lock()
	c.opacity = v
	c.opacitySet = true
	var p plan
	if c.liveLocked() {
		p.opacity = &v
	}
	if item := c.currentItemLocked(); item != nil {
		item.Opacity = v
	}
	c.mu.Unlock()

	c.execute(p)
}

// SetVolume stores the unclamped value and applies it to the live surface
// when a session is active.
func (c *Controller) SetVolume(v float64) {
	c.mu.Lock()
	c.volume = v
	c.volumeSet = true
	var p plan
	if c.liveLocked() {
		p.volume = &v
	}
	if item := c.currentItemLocked(); item != nil {
		item.Volume = v
	}
	c.mu.Unlock()

	c.execute(p)
}

// Opacity returns the last explicitly set opacity, verbatim.
func (c *Controller) Opacity() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opacity
}

// Volume returns the last explicitly set volume, verbatim.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// RefreshOpacity re-applies the stored opacity to the live surface.
func (c *Controller) RefreshOpacity() {
	c.mu.Lock()
	var p plan
	if c.opacitySet && c.liveLocked() {
		v := c.opacity
		p.opacity = &v
	}
	c.mu.Unlock()

	c.execute(p)
}

func (c *Controller) liveLocked() bool {
	return c.state == domain.StateLoading || c.state == domain.StatePlaying || c.state == domain.StatePaused
}

func (c *Controller) currentItemLocked() *domain.MediaItem {
	if c.cursor >= len(c.order) {
		return nil
	}
	idx := c.order[c.cursor]
	if idx < 0 || idx >= len(c.queue) {
		return nil
	}
	return c.queue[idx]
}

// MoveItem moves the queue entry at from to position to. Out-of-range or
// negative indices leave the queue order unchanged.
func (c *Controller) MoveItem(from, to int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if from < 0 || from >= len(c.queue) || to < 0 || to >= len(c.queue) || from == to {
		return
	}

	item := c.queue[from]
	c.queue = append(c.queue[:from], c.queue[from+1:]...)
	rest := append([]*domain.MediaItem{}, c.queue[to:]...)
	c.queue = append(c.queue[:to], append([]*domain.MediaItem{item}, rest...)...)

	for i, idx := range c.order {
		c.order[i] = remapIndex(idx, from, to)
	}
	remapped := map[int]bool{}
	for idx := range c.excluded {
		remapped[remapIndex(idx, from, to)] = true
	}
	c.excluded = remapped
}

// remapIndex translates a queue index through a single move operation.
func remapIndex(idx, from, to int) int {
	switch {
	case idx == from:
		return to
	case from < to && idx > from && idx <= to:
		return idx - 1
	case to < from && idx >= to && idx < from:
		return idx + 1
	default:
		return idx
	}
}
