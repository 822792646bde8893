package domain

import "strings"

// FailureClass is the closed classification of a backend playback failure.
// The state machine only ever sees this enum; raw backend codes are mapped at
// the adapter boundary by ClassifyBackendError.
type FailureClass int

const (
	FailureUnknown FailureClass = iota
	FailureTransient
	FailureUnrecoverable
)

func (c FailureClass) String() string {
	switch c {
	case FailureTransient:
		return "transient"
	case FailureUnrecoverable:
		return "unrecoverable"
	default:
		return "unknown"
	}
}

// Backend error codes that will never succeed on retry. The asset itself is
// unplayable, so the item is excluded immediately.
var unrecoverableCodes = map[string]struct{}{
	"unsupported_codec":    {},
	"unsupported_format":   {},
	"media_corrupt":        {},
	"drm_blocked":          {},
	"render_target_failed": {},
}

// ClassifyBackendError maps a raw backend error code onto the closed failure
// taxonomy. Empty codes classify as unknown and are handled like transients.
func ClassifyBackendError(code string) FailureClass {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return FailureUnknown
	}
	if _, ok := unrecoverableCodes[code]; ok {
		return FailureUnrecoverable
	}
	return FailureTransient
}
