package domain

// SurfaceID identifies one physical display target. Equality is by stable
// device identity, never by object identity.
type SurfaceID string

// Bounds describes the pixel rectangle a surface covers.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SurfaceDescriptor is supplied by the windowing/device collaborator for each
// display target the orchestrator can address.
type SurfaceDescriptor struct {
	ID      SurfaceID `json:"id"`
	Name    string    `json:"name"`
	Bounds  Bounds    `json:"bounds"`
	Primary bool      `json:"primary"`
}

// PlaybackState is the controller-visible transport state of one surface.
type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StateLoading
	StatePlaying
	StatePaused
	StateStopped
)

func (s PlaybackState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}
