package playlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidwall/vidwall/internal/domain"
)

var testSurfaces = []domain.SurfaceDescriptor{
	{ID: "s1", Name: "DELL U2720Q", Primary: true},
	{ID: "s2", Name: "LG HDR 4K"},
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playlist.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadGroupsBySurface(t *testing.T) {
	path := writeTemp(t, `[
		{"FilePath": "/media/a.mp4", "ScreenDeviceName": "DELL U2720Q", "Opacity": 0.8, "Volume": 0.5},
		{"FilePath": "/media/b.mp4", "ScreenDeviceName": "LG HDR 4K", "Opacity": 1.0, "Volume": 1.0},
		{"FilePath": "http://site/page", "ScreenDeviceName": "DELL U2720Q", "Opacity": 1.0, "Volume": 0.2}
	]`)

	got, err := Load(path, testSurfaces)
	require.NoError(t, err)
	require.Len(t, got["s1"], 2)
	require.Len(t, got["s2"], 1)

	first := got["s1"][0]
	assert.Equal(t, "/media/a.mp4", first.Reference)
	assert.Equal(t, 0.8, first.Opacity)
	assert.Equal(t, 0.5, first.Volume)
	assert.Equal(t, domain.SurfaceID("s1"), first.Surface)
	assert.Equal(t, domain.ValidationUnknown, first.Validation)
}

func TestLoadUnknownDeviceFallsBackToPrimary(t *testing.T) {
	path := writeTemp(t, `[
		{"FilePath": "/media/a.mp4", "ScreenDeviceName": "Unplugged Monitor", "Opacity": 1.0, "Volume": 1.0}
	]`)

	got, err := Load(path, testSurfaces)
	require.NoError(t, err)
	require.Len(t, got["s1"], 1)
	assert.Empty(t, got["s2"])
}

func TestLoadPreservesUnclampedValues(t *testing.T) {
	path := writeTemp(t, `[
		{"FilePath": "/media/a.mp4", "ScreenDeviceName": "DELL U2720Q", "Opacity": -1.0, "Volume": 99.0}
	]`)

	got, err := Load(path, testSurfaces)
	require.NoError(t, err)
	require.Len(t, got["s1"], 1)
	assert.Equal(t, -1.0, got["s1"][0].Opacity)
	assert.Equal(t, 99.0, got["s1"][0].Volume)
}

func TestLoadSkipsRowsWithoutPath(t *testing.T) {
	path := writeTemp(t, `[
		{"FilePath": "", "ScreenDeviceName": "DELL U2720Q"},
		{"FilePath": "/media/a.mp4", "ScreenDeviceName": "DELL U2720Q"}
	]`)

	got, err := Load(path, testSurfaces)
	require.NoError(t, err)
	require.Len(t, got["s1"], 1)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), testSurfaces)
	assert.Error(t, err)

	_, err = Load(writeTemp(t, `{not json`), testSurfaces)
	assert.Error(t, err)
}

func TestSaveRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "playlist.json")
	assignments := map[domain.SurfaceID][]*domain.MediaItem{
		"s1": {
			{Reference: "/media/a.mp4", Opacity: 0.8, Volume: 0.5},
			{Reference: "http://site/page", Opacity: -1.0, Volume: 99.0},
		},
		"s2": {
			{Reference: "/media/b.mp4", Opacity: 1.0, Volume: 1.0},
		},
	}

	require.NoError(t, Save(path, assignments, testSurfaces))

	got, err := Load(path, testSurfaces)
	require.NoError(t, err)
	require.Len(t, got["s1"], 2)
	require.Len(t, got["s2"], 1)

	refs := []string{got["s1"][0].Reference, got["s1"][1].Reference}
	assert.ElementsMatch(t, []string{"/media/a.mp4", "http://site/page"}, refs)
	for _, item := range got["s1"] {
		if item.Reference == "http://site/page" {
			assert.Equal(t, -1.0, item.Opacity)
			assert.Equal(t, 99.0, item.Volume)
		}
	}
}
