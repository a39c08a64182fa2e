// Package vision turns free-form model output into structured detection
// results. Box parsing fails hard when nothing usable is found; risk parsing
// never fails and degrades to a zero-score assessment instead, so a garbled
// model reply cannot take down the monitoring path.
package vision

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"VisionGuard/internal/entity"
)

var ErrNoBoxes = errors.New("no bounding boxes found in model response")

const (
	maxIndicators      = 10
	maxIndicatorLength = 40

	// Gemini emits box_2d coordinates on a 0-1000 grid in
	// ymin,xmin,ymax,xmax order.
	modelGridSize = 1000.0
)

// Clamp01 clamps s into [0,1]. It is idempotent.
func Clamp01(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

type rawBox struct {
	Box2D []float64 `json:"box_2d"`
	Label string    `json:"label"`
}

// ParseBoxes extracts bounding boxes from resultText and normalizes them
// into pixel coordinates of a width x height image. Entries that fail to
// parse are dropped individually; a response with no usable array at all is
// an error.
func ParseBoxes(resultText string, width, height int) ([]entity.BoundingBox, error) {
	arrayStart := strings.Index(resultText, "[")
	arrayEnd := strings.LastIndex(resultText, "]")
	if arrayStart == -1 || arrayEnd == -1 || arrayEnd <= arrayStart {
		return nil, ErrNoBoxes
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(resultText[arrayStart:arrayEnd+1]), &entries); err != nil {
		return nil, ErrNoBoxes
	}

	boxes := make([]entity.BoundingBox, 0, len(entries))
	for _, raw := range entries {
		var rb rawBox
		if err := json.Unmarshal(raw, &rb); err != nil {
			continue
		}
		if len(rb.Box2D) != 4 {
			continue
		}
		boxes = append(boxes, toPixelBox(rb, width, height))
	}

	if len(boxes) == 0 {
		return nil, ErrNoBoxes
	}
	return boxes, nil
}

func toPixelBox(rb rawBox, width, height int) entity.BoundingBox {
	scaleX := float64(width) / modelGridSize
	scaleY := float64(height) / modelGridSize

	if maxCoord(rb.Box2D) <= 1.0 {
		// Relative coordinates.
		scaleX = float64(width)
		scaleY = float64(height)
	}

	y1 := rb.Box2D[0] * scaleY
	x1 := rb.Box2D[1] * scaleX
	y2 := rb.Box2D[2] * scaleY
	x2 := rb.Box2D[3] * scaleX

	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}

	return entity.BoundingBox{
		X1:    clampRange(x1, float64(width)),
		Y1:    clampRange(y1, float64(height)),
		X2:    clampRange(x2, float64(width)),
		Y2:    clampRange(y2, float64(height)),
		Label: rb.Label,
	}
}

func maxCoord(coords []float64) float64 {
	m := coords[0]
	for _, c := range coords[1:] {
		if c > m {
			m = c
		}
	}
	return m
}

func clampRange(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}

// ParseRisk extracts a risk assessment from resultText. The model is asked
// for pure JSON but rarely complies, so a failed direct parse retries on the
// substring between the first "{" and the last "}". When both fail the
// result is a zero-score assessment with the raw text preserved.
func ParseRisk(resultText string) entity.RiskAssessment {
	assessment := entity.RiskAssessment{
		Indicators: []string{},
		Raw:        resultText,
	}

	var payload struct {
		Score      interface{} `json:"score"`
		Indicators interface{} `json:"indicators"`
	}

	if err := json.Unmarshal([]byte(resultText), &payload); err != nil {
		jsonStart := strings.Index(resultText, "{")
		jsonEnd := strings.LastIndex(resultText, "}")
		if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
			return assessment
		}
		if err := json.Unmarshal([]byte(resultText[jsonStart:jsonEnd+1]), &payload); err != nil {
			return assessment
		}
	}

	assessment.Score = Clamp01(coerceScore(payload.Score))
	assessment.Indicators = normalizeIndicators(payload.Indicators)
	return assessment
}

func coerceScore(v interface{}) float64 {
	switch s := v.(type) {
	case float64:
		return s
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func normalizeIndicators(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return []string{}
	}

	out := make([]string, 0, maxIndicators)
	for _, item := range list {
		if len(out) == maxIndicators {
			break
		}
		s, ok := item.(string)
		if !ok {
			continue
		}
		if len(s) > maxIndicatorLength {
			s = s[:maxIndicatorLength]
		}
		out = append(out, strings.ToLower(s))
	}
	return out
}
