package domain

// EventKind discriminates playback events flowing from a controller to its
// subscribers.
type EventKind string

const (
	// EventStateChanged fires on every controller state transition.
	EventStateChanged EventKind = "state_changed"
	// EventItemStarted fires when a queue item is handed to the surface.
	EventItemStarted EventKind = "item_started"
	// EventItemExcluded fires when an item is permanently excluded after
	// failure.
	EventItemExcluded EventKind = "item_excluded"
	// EventAllItemsFailed is the terminal notification raised when every
	// queue item has been excluded.
	EventAllItemsFailed EventKind = "all_items_failed"
	// EventCommand mirrors an outward play/pause/stop request, emitted even
	// when the controller holds no queue so global fan-out stays uniform.
	EventCommand EventKind = "command"
)

// PlaybackEvent is the observer-facing notification emitted by a controller.
type PlaybackEvent struct {
	Surface   SurfaceID     `json:"surface"`
	Kind      EventKind     `json:"kind"`
	State     PlaybackState `json:"state"`
	Reference string        `json:"reference,omitempty"`
	Command   string        `json:"command,omitempty"`
	Detail    string        `json:"detail,omitempty"`
}

// Observer receives playback events. Implementations must not block: events
// are delivered synchronously from controller operations.
type Observer interface {
	OnPlaybackEvent(PlaybackEvent)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(PlaybackEvent)

func (f ObserverFunc) OnPlaybackEvent(ev PlaybackEvent) {
	if f != nil {
		f(ev)
	}
}
