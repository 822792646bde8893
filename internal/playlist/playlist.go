// Package playlist persists media assignments as a JSON file on disk.
package playlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vidwall/vidwall/internal/domain"
)

// Entry is the on-disk shape of one playlist row. Opacity and Volume are
// stored exactly as the user last set them, without clamping.
type Entry struct {
	FilePath         string  `json:"FilePath"`
	ScreenDeviceName string  `json:"ScreenDeviceName"`
	Opacity          float64 `json:"Opacity"`
	Volume           float64 `json:"Volume"`
}

// Load reads a playlist file and groups its rows by surface. Rows naming a
// screen device that is not in surfaces are assigned to the default surface.
// Validation state is deliberately not persisted: every loaded item starts
// Unknown and is re-validated on the next assignment.
func Load(path string, surfaces []domain.SurfaceDescriptor) (map[domain.SurfaceID][]*domain.MediaItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse playlist %s: %w", path, err)
	}

	byName := make(map[string]domain.SurfaceID, len(surfaces))
	var fallback domain.SurfaceID
	for _, s := range surfaces {
		byName[s.Name] = s.ID
		if s.Primary || fallback == "" {
			fallback = s.ID
		}
	}

	out := map[domain.SurfaceID][]*domain.MediaItem{}
	for _, e := range entries {
		if e.FilePath == "" {
			continue
		}
		id, ok := byName[e.ScreenDeviceName]
		if !ok {
			id = fallback
		}
		if id == "" {
			continue
		}
		out[id] = append(out[id], &domain.MediaItem{
			Reference:  e.FilePath,
			Opacity:    e.Opacity,
			Volume:     e.Volume,
			Surface:    id,
			Validation: domain.ValidationUnknown,
		})
	}
	return out, nil
}

// Save writes the assignments back out in a stable shape. Surface IDs are
// translated to display names so the file survives monitor re-enumeration.
func Save(path string, assignments map[domain.SurfaceID][]*domain.MediaItem, surfaces []domain.SurfaceDescriptor) error {
	names := make(map[domain.SurfaceID]string, len(surfaces))
	for _, s := range surfaces {
		names[s.ID] = s.Name
	}

	var entries []Entry
	for id, items := range assignments {
		for _, item := range items {
			if item == nil || item.Reference == "" {
				continue
			}
			entries = append(entries, Entry{
				FilePath:         item.Reference,
				ScreenDeviceName: names[id],
				Opacity:          item.Opacity,
				Volume:           item.Volume,
			})
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode playlist: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create playlist dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write playlist: %w", err)
	}
	return nil
}
