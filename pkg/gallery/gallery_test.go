package gallery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGallery(t *testing.T) IGallery {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GALLERY_DIR", filepath.Join(dir, "gallery"))
	t.Setenv("UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("ANNOTATED_DIR", filepath.Join(dir, "annotated"))

	g, err := New(logrus.New())
	require.NoError(t, err)
	return g
}

func TestSaveCaptureWritesSidecar(t *testing.T) {
	g := newTestGallery(t)

	imagePath, err := g.SaveCapture([]byte{0xff, 0xd8}, "frame.jpg", Sidecar{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Score:      0.9,
		Indicators: []string{"rope"},
		Origin:     "cam1",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(imagePath, ".jpg"))

	sidecarPath := strings.TrimSuffix(imagePath, ".jpg") + ".json"
	payload, err := os.ReadFile(sidecarPath)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"score": 0.9`)
	assert.Contains(t, string(payload), `"cam1"`)
}

func TestSaveCaptureNamesAreUnique(t *testing.T) {
	g := newTestGallery(t)

	first, err := g.SaveCapture([]byte{1}, "a.jpg", Sidecar{})
	require.NoError(t, err)
	second, err := g.SaveCapture([]byte{2}, "a.jpg", Sidecar{})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestSaveAnnotatedNaming(t *testing.T) {
	g := newTestGallery(t)

	path, err := g.SaveAnnotated("kitchen.png", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "kitchen_annotated.png", filepath.Base(path))
}

func TestListReturnsEntriesNewestFirst(t *testing.T) {
	g := newTestGallery(t)

	older := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	newer := time.Now().UTC().Format(time.RFC3339)

	_, err := g.SaveCapture([]byte{1}, "a.jpg", Sidecar{Timestamp: older, Origin: "cam1", Score: 0.6})
	require.NoError(t, err)
	_, err = g.SaveCapture([]byte{2}, "b.jpg", Sidecar{Timestamp: newer, Origin: "cam2", Score: 0.8})
	require.NoError(t, err)

	entries, err := g.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "cam2", entries[0].Origin)
	assert.Equal(t, "cam1", entries[1].Origin)
	assert.NotEmpty(t, entries[0].Image)
}

func TestListSkipsMalformedSidecar(t *testing.T) {
	g := newTestGallery(t)

	_, err := g.SaveCapture([]byte{1}, "a.jpg", Sidecar{Timestamp: time.Now().UTC().Format(time.RFC3339)})
	require.NoError(t, err)

	bad := filepath.Join(os.Getenv("GALLERY_DIR"), "broken.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))

	entries, err := g.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
