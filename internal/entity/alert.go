package entity

import "time"

// AlertEvent is handed to the notification sender when the risk gate fires.
// It is immutable and consumed once; failed sends are not retried.
type AlertEvent struct {
	Score      float64           `json:"score"`
	Indicators []string          `json:"indicators"`
	Source     string            `json:"source"`
	ImagePath  string            `json:"image_path,omitempty"`
	ImageBytes []byte            `json:"-"`
	Filename   string            `json:"filename,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// GalleryEntry is a persisted capture: the image file plus its JSON sidecar.
type GalleryEntry struct {
	Image      string    `json:"image"`
	Sidecar    string    `json:"sidecar"`
	Timestamp  time.Time `json:"timestamp"`
	Score      float64   `json:"score"`
	Indicators []string  `json:"indicators"`
	Origin     string    `json:"origin"`
}
