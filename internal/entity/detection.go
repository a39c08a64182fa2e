package entity

// BoundingBox is an axis-aligned box in pixel coordinates of the source
// image, with (X1, Y1) the top-left corner and (X2, Y2) the bottom-right.
type BoundingBox struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Label string  `json:"label"`
}

// RiskAssessment is the parsed verdict for a single analyzed frame. Raw
// always keeps the unmodified model output for auditing.
type RiskAssessment struct {
	Score      float64  `json:"score"`
	Indicators []string `json:"indicators"`
	Raw        string   `json:"-"`
}
