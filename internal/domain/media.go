package domain

import "strings"

// Validation is the lazily-computed validity of a MediaItem reference.
type Validation int

const (
	ValidationUnknown Validation = iota
	ValidationValid
	ValidationInvalid
	ValidationMissing
)

func (v Validation) String() string {
	switch v {
	case ValidationValid:
		return "valid"
	case ValidationInvalid:
		return "invalid"
	case ValidationMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// MediaItem is one playback queue entry. Opacity and volume are deliberately
// unclamped: callers may store out-of-domain values and they round-trip
// verbatim.
type MediaItem struct {
	Reference       string    `json:"reference"`
	ResolvedURL     string    `json:"resolved_url,omitempty"`
	Title           string    `json:"title,omitempty"`
	Opacity         float64   `json:"opacity"`
	Volume          float64   `json:"volume"`
	Surface         SurfaceID `json:"surface"`
	Validation      Validation `json:"validation"`
	ValidationError string    `json:"validation_error,omitempty"`
	FailureCount    int       `json:"failure_count,omitempty"`
}

// PlayableURL returns the URL the media backend should load: the resolved
// direct URL when resolution succeeded, the raw reference otherwise.
func (m *MediaItem) PlayableURL() string {
	if m == nil {
		return ""
	}
	if strings.TrimSpace(m.ResolvedURL) != "" {
		return m.ResolvedURL
	}
	return m.Reference
}

// DisplayTitle falls back to the raw reference when no title was resolved.
func (m *MediaItem) DisplayTitle() string {
	if m == nil {
		return ""
	}
	if strings.TrimSpace(m.Title) != "" {
		return m.Title
	}
	return m.Reference
}

// Playable reports whether the item may be handed to a controller: items
// proven invalid or missing are skipped, unknown items are attempted.
func (m *MediaItem) Playable() bool {
	if m == nil {
		return false
	}
	return m.Validation == ValidationValid || m.Validation == ValidationUnknown
}
