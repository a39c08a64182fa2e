package monitorService

import (
	"os"
	"strconv"
	"time"

	"VisionGuard/internal/entity"
	"VisionGuard/pkg/gallery"
)

const defaultRiskThreshold = 0.5

// riskGate decides whether a detection is alert-worthy.
type riskGate struct {
	threshold float64
}

func newRiskGate() *riskGate {
	threshold := defaultRiskThreshold
	if raw := os.Getenv("ALERT_RISK_THRESHOLD"); raw != "" {
		if t, err := strconv.ParseFloat(raw, 64); err == nil {
			threshold = t
		}
	}
	return &riskGate{threshold: threshold}
}

// Evaluate fires when the score reaches the threshold or any indicator is
// present.
func (g *riskGate) Evaluate(score float64, indicators []string) bool {
	return score >= g.threshold || len(indicators) > 0
}

// fireAlert persists the frame and triggers notification, in that order.
// Neither failure aborts the pipeline; the caller still gets its result.
// The send runs detached so the detection worker never waits on SMTP.
func (s *monitorService) fireAlert(frame entity.Frame, assessment entity.RiskAssessment) {
	meta := gallery.Sidecar{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Score:      assessment.Score,
		Indicators: assessment.Indicators,
		Origin:     frame.Source,
	}

	filename := frame.Filename
	if filename == "" {
		filename = "frame.jpg"
	}

	imagePath, err := s.gallery.SaveCapture(frame.Data, filename, meta)
	if err != nil {
		s.log.Errorf("failed to persist alert capture for %s: %v", frame.Source, err)
	}

	event := entity.AlertEvent{
		Score:      assessment.Score,
		Indicators: assessment.Indicators,
		Source:     frame.Source,
		ImagePath:  imagePath,
		ImageBytes: frame.Data,
		Filename:   filename,
		Extra:      map[string]string{"Capture": imagePath},
	}

	go func() {
		outcome := s.notifier.Send(event)
		s.log.WithField("source", frame.Source).
			Infof("risk alert: score=%.3f indicators=%d notification=%s",
				assessment.Score, len(assessment.Indicators), outcome)
	}()
}
