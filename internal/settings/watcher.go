package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const debounceDelay = 500 * time.Millisecond

// Holder keeps the current settings and reloads them when the backing file
// changes. Reads are cheap and safe from any goroutine.
type Holder struct {
	mu      sync.RWMutex
	current Settings
	path    string
	log     zerolog.Logger
	watcher *fsnotify.Watcher
	// onChange is invoked after every successful reload.
	onChange func(Settings)
}

// NewHolder loads the file once and returns a holder around the result.
func NewHolder(path string, log zerolog.Logger, onChange func(Settings)) *Holder {
	return &Holder{
		current:  Load(path),
		path:     path,
		log:      log,
		onChange: onChange,
	}
}

// Get returns the current settings.
func (h *Holder) Get() Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload re-reads the settings file and swaps the current set. Malformed
// files fall back to defaults, so a reload cannot fail partway.
func (h *Holder) Reload() {
	next := Load(h.path)

	h.mu.Lock()
	h.current = next
	h.mu.Unlock()

	h.log.Info().Str("path", h.path).Msg("settings reloaded")
	if h.onChange != nil {
		h.onChange(next)
	}
}

// Watch reloads whenever the settings file is written. It returns once the
// watcher is installed; the watch loop runs until ctx is done. An empty path
// disables watching.
func (h *Holder) Watch(ctx context.Context) error {
	if h.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	// Watch the directory, not the file: editors that rename-and-replace
	// would otherwise detach the watch.
	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch settings dir: %w", err)
	}
	h.watcher = watcher

	go h.watchLoop(ctx)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context) {
	defer func() { _ = h.watcher.Close() }()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(h.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, h.Reload)
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.log.Error().Err(err).Msg("settings watcher error")
		}
	}
}
