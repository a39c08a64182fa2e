package monitorService

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"VisionGuard/internal/entity"
	"VisionGuard/pkg/alert"
	"VisionGuard/pkg/gallery"
	"VisionGuard/pkg/gemini"
	"VisionGuard/pkg/utils"
)

// DeliverFunc receives the outcome of an admitted risk detection. result is
// nil when the model call failed end to end.
type DeliverFunc func(result *entity.RiskAssessment, alerted bool, err error)

type IMonitorService interface {
	// SubmitRiskFrame admits a frame for risk detection. It returns false
	// when the frame was dropped because a detection is already in flight
	// for its source; a drop is a throttle, not an error. Admitted work
	// runs on its own goroutine and reports through deliver.
	SubmitRiskFrame(ctx context.Context, frame entity.Frame, deliver DeliverFunc) bool

	DetectObjects(ctx context.Context, imageData []byte, filename, prompt string) ([]entity.BoundingBox, string, error)
	ListGallery() ([]entity.GalleryEntry, error)
}

type monitorService struct {
	log       *logrus.Logger
	gemini    gemini.IGemini
	notifier  alert.INotifier
	gallery   gallery.IGallery
	utils     utils.IUtils
	admission *admissionState
	gate      *riskGate
}

func NewMonitorService(
	log *logrus.Logger,
	geminiClient gemini.IGemini,
	notifier alert.INotifier,
	galleryStore gallery.IGallery,
	utils utils.IUtils,
) IMonitorService {
	return &monitorService{
		log:       log,
		gemini:    geminiClient,
		notifier:  notifier,
		gallery:   galleryStore,
		utils:     utils,
		admission: newAdmissionState(),
		gate:      newRiskGate(),
	}
}
