// Package diagnostics produces the self-test wiring report.
package diagnostics

import "os"

var statFile = os.Stat

type FileStatus struct {
	Path     string `json:"path,omitempty"`
	Readable bool   `json:"readable"`
}

// WiringReport summarizes whether the launcher's collaborators are usable.
type FileInputs struct {
	Settings FileStatus `json:"settings"`
	Playlist FileStatus `json:"playlist"`
}

type WiringReport struct {
	ProviderWired bool       `json:"provider_wired"`
	ControlWired  bool       `json:"control_wired"`
	Files         FileInputs `json:"files"`
}

type Inputs struct {
	ProviderWired bool
	ControlWired  bool
	SettingsPath  string
	PlaylistPath  string
}

func Detect(in Inputs) WiringReport {
	return WiringReport{
		ProviderWired: in.ProviderWired,
		ControlWired:  in.ControlWired,
		Files: FileInputs{
			Settings: detectFile(in.SettingsPath),
			Playlist: detectFile(in.PlaylistPath),
		},
	}
}

func detectFile(path string) FileStatus {
	if path == "" {
		return FileStatus{}
	}
	info, err := statFile(path)
	return FileStatus{
		Path:     path,
		Readable: err == nil && !info.IsDir(),
	}
}
