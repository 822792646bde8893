package adapters

import (
	"context"

	"github.com/vidwall/vidwall/internal/domain"
	"github.com/vidwall/vidwall/internal/playback"
)

// EventSink receives backend playback events. Every event is tagged with the
// surface that produced it and the media URL it refers to, so stale events
// can be detected downstream.
type EventSink interface {
	MediaOpened(id domain.SurfaceID, source string)
	MediaEnded(id domain.SurfaceID, source string)
	MediaFailed(id domain.SurfaceID, source string, code string)
}

// SurfaceProvider is the windowing/device collaborator: it enumerates the
// physical display targets and opens playback surfaces on them. The core
// never creates, sizes, or styles surfaces itself.
type SurfaceProvider interface {
	Surfaces(ctx context.Context) ([]domain.SurfaceDescriptor, error)
	Open(ctx context.Context, id domain.SurfaceID, events EventSink) (playback.Surface, error)
	Close(id domain.SurfaceID)
}
