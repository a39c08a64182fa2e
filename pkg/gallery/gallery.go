// Package gallery persists alert captures and uploaded images on disk. Every
// capture gets a collision-resistant ULID name and a same-stem JSON sidecar
// carrying the detection metadata; the listing view reads the sidecars back.
package gallery

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"VisionGuard/internal/entity"
)

type IGallery interface {
	SaveCapture(imageData []byte, filename string, meta Sidecar) (string, error)
	SaveUpload(filename string, data []byte) (string, error)
	SaveAnnotated(originalName string, data []byte) (string, error)
	List() ([]entity.GalleryEntry, error)
}

// Sidecar is the metadata written next to every persisted capture.
type Sidecar struct {
	Timestamp  string   `json:"timestamp"`
	Score      float64  `json:"score"`
	Indicators []string `json:"indicators"`
	Origin     string   `json:"origin"`
}

type gallery struct {
	galleryDir   string
	uploadDir    string
	annotatedDir string
	log          *logrus.Logger
}

func New(log *logrus.Logger) (IGallery, error) {
	g := &gallery{
		galleryDir:   envDir("GALLERY_DIR", "storage/gallery"),
		uploadDir:    envDir("UPLOAD_DIR", "storage/uploads"),
		annotatedDir: envDir("ANNOTATED_DIR", "storage/annotated"),
		log:          log,
	}

	for _, dir := range []string{g.galleryDir, g.uploadDir, g.annotatedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create gallery directory %s: %w", dir, err)
		}
	}
	return g, nil
}

func envDir(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SaveCapture writes the image and its sidecar, returning the image path.
// The sidecar shares the image's stem with a .json extension.
func (g *gallery) SaveCapture(imageData []byte, filename string, meta Sidecar) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}

	stem, err := newStem()
	if err != nil {
		return "", err
	}

	imagePath := filepath.Join(g.galleryDir, stem+ext)
	if err := os.WriteFile(imagePath, imageData, 0o644); err != nil {
		return "", fmt.Errorf("failed to write capture: %w", err)
	}

	sidecarPath := filepath.Join(g.galleryDir, stem+".json")
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return imagePath, fmt.Errorf("failed to encode sidecar: %w", err)
	}
	if err := os.WriteFile(sidecarPath, payload, 0o644); err != nil {
		return imagePath, fmt.Errorf("failed to write sidecar: %w", err)
	}

	return imagePath, nil
}

func (g *gallery) SaveUpload(filename string, data []byte) (string, error) {
	path := filepath.Join(g.uploadDir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return path, nil
}

// SaveAnnotated stores the annotated copy as {stem}_annotated{ext}.
func (g *gallery) SaveAnnotated(originalName string, data []byte) (string, error) {
	base := filepath.Base(originalName)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".jpg"
	}

	path := filepath.Join(g.annotatedDir, stem+"_annotated"+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write annotated image: %w", err)
	}
	return path, nil
}

// List reads the sidecars back, newest first. A sidecar that fails to parse
// is skipped rather than failing the whole listing.
func (g *gallery) List() ([]entity.GalleryEntry, error) {
	sidecars, err := filepath.Glob(filepath.Join(g.galleryDir, "*.json"))
	if err != nil {
		return nil, err
	}

	entries := make([]entity.GalleryEntry, 0, len(sidecars))
	for _, sidecarPath := range sidecars {
		payload, err := os.ReadFile(sidecarPath)
		if err != nil {
			g.log.Warnf("skipping unreadable sidecar %s: %v", sidecarPath, err)
			continue
		}

		var meta Sidecar
		if err := json.Unmarshal(payload, &meta); err != nil {
			g.log.Warnf("skipping malformed sidecar %s: %v", sidecarPath, err)
			continue
		}

		ts, _ := time.Parse(time.RFC3339, meta.Timestamp)
		entries = append(entries, entity.GalleryEntry{
			Image:      g.findImageFor(sidecarPath),
			Sidecar:    sidecarPath,
			Timestamp:  ts,
			Score:      meta.Score,
			Indicators: meta.Indicators,
			Origin:     meta.Origin,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

func (g *gallery) findImageFor(sidecarPath string) string {
	stem := strings.TrimSuffix(sidecarPath, ".json")
	for _, ext := range []string{".jpg", ".jpeg", ".png"} {
		if _, err := os.Stat(stem + ext); err == nil {
			return stem + ext
		}
	}
	return ""
}

func newStem() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", fmt.Errorf("failed to generate capture name: %w", err)
	}
	return id.String(), nil
}
