package monitorService

import (
	"bytes"
	"image"
	"path/filepath"

	"golang.org/x/net/context"

	"VisionGuard/internal/api/monitor"
	"VisionGuard/internal/entity"
	"VisionGuard/pkg/annotate"
	"VisionGuard/pkg/gemini"
	"VisionGuard/pkg/vision"
)

const (
	modelTemperature = 0.4
	maxOutputTokens  = 1024

	defaultBoxPrompt = "Detect objects."
	boxPromptSuffix  = ` Output a JSON list of bounding boxes where each entry contains the 2D bounding box in the key "box_2d", and the text label in the key "label". Use descriptive labels.`

	riskPrompt = `You are monitoring a live camera feed for signs that a person may harm themselves. ` +
		`Assess the image and respond with ONLY a JSON object of the form ` +
		`{"score": <number between 0 and 1>, "indicators": [<short strings naming concrete risk signals>]}. ` +
		`Use an empty indicators list and a low score when nothing concerning is visible.`
)

func (s *monitorService) SubmitRiskFrame(ctx context.Context, frame entity.Frame, deliver DeliverFunc) bool {
	job := detectionJob{frame: frame, deliver: deliver}

	runNow, accepted := s.admission.Admit(frame.Source, job)
	if !accepted {
		// Intentional throttle: the producer is faster than the model.
		return false
	}
	if runNow {
		go s.detectWorker(ctx, job)
	}
	return true
}

// detectWorker owns a source's detection slot until its queue drains. The
// deferred Release guarantees the slot is freed on every exit path,
// including a panic anywhere in the detection chain.
func (s *monitorService) detectWorker(ctx context.Context, job detectionJob) {
	source := job.frame.Source
	defer s.admission.Release(source)
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("risk detection worker for %s panicked: %v", source, r)
		}
	}()

	for {
		s.runRiskDetection(ctx, job)

		next, ok := s.admission.NextQueued(source)
		if !ok {
			return
		}
		job = next
	}
}

func (s *monitorService) runRiskDetection(ctx context.Context, job detectionJob) {
	frame := job.frame
	mime := s.utils.DetectImageMIME(frame.Filename, frame.Data)

	text, err := s.gemini.GenerateVision(ctx,
		gemini.ImagePart{MIME: mime, Data: frame.Data},
		riskPrompt,
		gemini.CallOptions{Temperature: modelTemperature, MaxOutputTokens: maxOutputTokens},
	)
	if err != nil {
		s.log.Errorf("risk detection for %s failed: %v", frame.Source, err)
		job.deliver(nil, false, err)
		return
	}

	assessment := vision.ParseRisk(text)

	alerted := false
	if s.gate.Evaluate(assessment.Score, assessment.Indicators) {
		s.fireAlert(frame, assessment)
		alerted = true
	}

	job.deliver(&assessment, alerted, nil)
}

// DetectObjects runs the user-facing box detection on an uploaded image.
// Unlike the risk path this fails hard: an unparsable model response is an
// error the caller sees.
func (s *monitorService) DetectObjects(ctx context.Context, imageData []byte, filename, prompt string) ([]entity.BoundingBox, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, "", monitor.ErrInvalidImagePayload
	}

	if prompt == "" {
		prompt = defaultBoxPrompt
	}
	mime := s.utils.DetectImageMIME(filename, imageData)

	text, err := s.gemini.GenerateVision(ctx,
		gemini.ImagePart{MIME: mime, Data: imageData},
		prompt+boxPromptSuffix,
		gemini.CallOptions{Temperature: modelTemperature, MaxOutputTokens: maxOutputTokens},
	)
	if err != nil {
		return nil, "", err
	}

	boxes, err := vision.ParseBoxes(text, cfg.Width, cfg.Height)
	if err != nil {
		return nil, "", monitor.ErrNoDetections
	}

	if _, err := s.gallery.SaveUpload(filename, imageData); err != nil {
		s.log.Warnf("failed to persist upload %s: %v", filename, err)
	}

	annotated, err := annotate.Draw(imageData, boxes)
	if err != nil {
		s.log.Warnf("failed to annotate %s: %v", filename, err)
		return boxes, "", nil
	}

	annotatedPath, err := s.gallery.SaveAnnotated(filename, annotated)
	if err != nil {
		s.log.Warnf("failed to persist annotated copy of %s: %v", filename, err)
		return boxes, "", nil
	}

	return boxes, filepath.Base(annotatedPath), nil
}

func (s *monitorService) ListGallery() ([]entity.GalleryEntry, error) {
	return s.gallery.List()
}
