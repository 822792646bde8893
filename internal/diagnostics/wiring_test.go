package diagnostics

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestDetectReportsFileReadability(t *testing.T) {
	orig := statFile
	t.Cleanup(func() {
		statFile = orig
	})

	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(settings, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	statFile = func(path string) (fs.FileInfo, error) {
		if path == settings {
			return os.Stat(settings)
		}
		return nil, errors.New("not found")
	}

	report := Detect(Inputs{
		ProviderWired: true,
		ControlWired:  true,
		SettingsPath:  settings,
		PlaylistPath:  filepath.Join(dir, "missing.json"),
	})

	if !report.ProviderWired || !report.ControlWired {
		t.Fatalf("expected wiring flags set: %+v", report)
	}
	if !report.Files.Settings.Readable {
		t.Fatal("expected settings to be readable")
	}
	if report.Files.Playlist.Readable {
		t.Fatal("expected playlist to be unreadable")
	}
}

func TestDetectEmptyPathsAreOmitted(t *testing.T) {
	report := Detect(Inputs{})
	if report.Files.Settings.Path != "" || report.Files.Settings.Readable {
		t.Fatalf("expected empty settings status: %+v", report.Files.Settings)
	}
}
