package monitor

import "VisionGuard/internal/entity"

type DetectRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
	Prompt      string `json:"prompt"`
}

type DetectResponse struct {
	Boxes     []entity.BoundingBox `json:"boxes"`
	Annotated string               `json:"annotated,omitempty"`
	Error     string               `json:"error,omitempty"`
}

type RiskResultMessage struct {
	Source     string   `json:"source"`
	Score      float64  `json:"score"`
	Indicators []string `json:"indicators"`
	Alerted    bool     `json:"alerted"`
}

type GalleryResponse struct {
	Entries []entity.GalleryEntry `json:"entries"`
}
