// Package settings loads and persists user preferences, with optional hot
// reload of the settings file.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Hotkey modifier bitmask values, combinable with bitwise OR.
const (
	ModCtrl  = 1 << 0
	ModShift = 1 << 1
	ModAlt   = 1 << 2
	ModSuper = 1 << 3
)

// Settings is the on-disk user preference set. Zero values are not usable
// defaults, so construction goes through Default.
type Settings struct {
	// DefaultOpacity and DefaultVolume seed newly added items.
	DefaultOpacity float64 `json:"default_opacity"`
	DefaultVolume  float64 `json:"default_volume"`
	// AutoLoadPlaylist restores the last playlist on startup.
	AutoLoadPlaylist bool `json:"auto_load_playlist"`
	// PanicModifiers is a bitmask of Mod* values; PanicKey names the key.
	PanicModifiers int    `json:"panic_modifiers"`
	PanicKey       string `json:"panic_key"`
}

// Default returns the settings used when no file exists or the file is
// unreadable.
func Default() Settings {
	return Settings{
		DefaultOpacity:   1.0,
		DefaultVolume:    1.0,
		AutoLoadPlaylist: true,
		PanicModifiers:   ModCtrl | ModShift,
		PanicKey:         "Escape",
	}
}

// Load reads the settings file at path. A missing or malformed file yields
// Default() without an error: preferences never block startup.
func Load(path string) Settings {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default()
	}
	return cfg
}

// Save writes the settings to path, creating parent directories as needed.
func Save(path string, cfg Settings) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
