package playback

import "time"

// Surface is the opaque media backend handle for one display target. All
// requests are fire-and-forget: the backend acknowledges by reporting
// opened/ended/failed events tagged with the URL that produced them. The
// controller never creates, sizes, or styles surfaces.
type Surface interface {
	// Show loads the given URL and begins playback.
	Show(url string)
	Play()
	Pause()
	Stop()
	// Seek is a best-effort position request. Zero is a valid target.
	Seek(position time.Duration)
	SetOpacity(v float64)
	SetVolume(v float64)
}
