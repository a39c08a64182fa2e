package monitorService

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VisionGuard/internal/entity"
	"VisionGuard/pkg/alert"
	"VisionGuard/pkg/gallery"
	"VisionGuard/pkg/gemini"
	"VisionGuard/pkg/utils"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

type fakeModel struct {
	response string
	err      error
	delay    time.Duration

	calls       atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (f *fakeModel) GenerateVision(ctx context.Context, img gemini.ImagePart, prompt string, opts gemini.CallOptions) (string, error) {
	f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	for {
		max := f.maxInFlight.Load()
		if current <= max || f.maxInFlight.CompareAndSwap(max, current) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.response, f.err
}

type fakeNotifier struct {
	outcome alert.SendOutcome
	events  chan entity.AlertEvent
}

func newFakeNotifier(outcome alert.SendOutcome) *fakeNotifier {
	return &fakeNotifier{outcome: outcome, events: make(chan entity.AlertEvent, 16)}
}

func (f *fakeNotifier) Enabled() bool { return f.outcome != alert.SendSkipped }

func (f *fakeNotifier) Send(event entity.AlertEvent) alert.SendOutcome {
	f.events <- event
	return f.outcome
}

type fakeGallery struct {
	mu       sync.Mutex
	captures []gallery.Sidecar
	failSave bool
}

func (f *fakeGallery) SaveCapture(_ []byte, _ string, meta gallery.Sidecar) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return "", assert.AnError
	}
	f.captures = append(f.captures, meta)
	return "/gallery/capture.jpg", nil
}

func (f *fakeGallery) SaveUpload(string, []byte) (string, error)    { return "/uploads/x.jpg", nil }
func (f *fakeGallery) SaveAnnotated(string, []byte) (string, error) { return "/annotated/x.jpg", nil }
func (f *fakeGallery) List() ([]entity.GalleryEntry, error)         { return nil, nil }

func (f *fakeGallery) captureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.captures)
}

func newTestService(model gemini.IGemini, notifier alert.INotifier, store gallery.IGallery) *monitorService {
	return &monitorService{
		log:       testLogger(),
		gemini:    model,
		notifier:  notifier,
		gallery:   store,
		utils:     utils.New(),
		admission: newAdmissionState(),
		gate:      &riskGate{threshold: 0.5},
	}
}

func TestRiskGateBoundaries(t *testing.T) {
	gate := &riskGate{threshold: 0.5}

	assert.True(t, gate.Evaluate(0.5, nil))
	assert.False(t, gate.Evaluate(0.49, nil))
	assert.True(t, gate.Evaluate(0.0, []string{"cutting"}))
	assert.False(t, gate.Evaluate(0.0, []string{}))
}

func TestSubmitRiskFrameAlertsAboveThreshold(t *testing.T) {
	model := &fakeModel{response: `{"score": 0.9, "indicators": ["rope"]}`}
	notifier := newFakeNotifier(alert.SendOK)
	store := &fakeGallery{}
	svc := newTestService(model, notifier, store)

	results := make(chan entity.RiskAssessment, 1)
	alerted := make(chan bool, 1)
	ok := svc.SubmitRiskFrame(context.Background(), entity.Frame{Source: "cam1", Data: []byte{1}},
		func(result *entity.RiskAssessment, fired bool, err error) {
			require.NoError(t, err)
			results <- *result
			alerted <- fired
		})
	require.True(t, ok)

	result := <-results
	assert.Equal(t, 0.9, result.Score)
	assert.Equal(t, []string{"rope"}, result.Indicators)
	assert.True(t, <-alerted)

	select {
	case event := <-notifier.events:
		assert.Equal(t, "cam1", event.Source)
		assert.Equal(t, 0.9, event.Score)
	case <-time.After(time.Second):
		t.Fatal("notification was never attempted")
	}
	assert.Equal(t, 1, store.captureCount())
}

func TestSubmitRiskFrameFailsSoftOnGarbageResponse(t *testing.T) {
	model := &fakeModel{response: "the model rambles with no json"}
	notifier := newFakeNotifier(alert.SendOK)
	svc := newTestService(model, notifier, &fakeGallery{})

	done := make(chan struct{})
	svc.SubmitRiskFrame(context.Background(), entity.Frame{Source: "cam1", Data: []byte{1}},
		func(result *entity.RiskAssessment, fired bool, err error) {
			require.NoError(t, err)
			assert.Equal(t, 0.0, result.Score)
			assert.Empty(t, result.Indicators)
			assert.False(t, fired)
			close(done)
		})

	<-done
	select {
	case <-notifier.events:
		t.Fatal("no alert expected for a zero-score assessment")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubmitRiskFrameDeliversModelError(t *testing.T) {
	model := &fakeModel{err: &gemini.ModelError{Kind: gemini.Fatal, Message: "bad image"}}
	svc := newTestService(model, newFakeNotifier(alert.SendSkipped), &fakeGallery{})

	done := make(chan error, 1)
	svc.SubmitRiskFrame(context.Background(), entity.Frame{Source: "cam1", Data: []byte{1}},
		func(result *entity.RiskAssessment, fired bool, err error) {
			assert.Nil(t, result)
			done <- err
		})

	assert.Error(t, <-done)
	assert.Eventually(t, func() bool { return !svc.admission.InFlight("cam1") },
		time.Second, time.Millisecond, "slot must be released after a model error")
}

func TestAdmissionInvariantUnderConcurrentLoad(t *testing.T) {
	model := &fakeModel{response: `{"score": 0.1, "indicators": []}`, delay: 50 * time.Millisecond}
	svc := newTestService(model, newFakeNotifier(alert.SendSkipped), &fakeGallery{})

	const submissions = 20
	var admitted atomic.Int64
	var delivered atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok := svc.SubmitRiskFrame(context.Background(), entity.Frame{Source: "cam1", Data: []byte{1}},
				func(*entity.RiskAssessment, bool, error) { delivered.Add(1) })
			if ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool { return !svc.admission.InFlight("cam1") },
		time.Second, time.Millisecond)

	assert.Equal(t, int64(1), admitted.Load(), "exactly one frame admitted")
	assert.Equal(t, int64(1), delivered.Load(), "dropped frames get no result")
	assert.Equal(t, int64(1), model.maxInFlight.Load(), "never more than one detection per source")
	assert.Equal(t, int64(1), model.calls.Load())
}

func TestSourcesAreIndependent(t *testing.T) {
	model := &fakeModel{response: `{"score": 0.1, "indicators": []}`, delay: 50 * time.Millisecond}
	svc := newTestService(model, newFakeNotifier(alert.SendSkipped), &fakeGallery{})

	ok1 := svc.SubmitRiskFrame(context.Background(), entity.Frame{Source: "cam1", Data: []byte{1}},
		func(*entity.RiskAssessment, bool, error) {})
	require.True(t, ok1)

	// cam1 is busy: a second cam1 frame is dropped, a cam2 frame is not.
	assert.False(t, svc.SubmitRiskFrame(context.Background(), entity.Frame{Source: "cam1", Data: []byte{2}},
		func(*entity.RiskAssessment, bool, error) {}))
	assert.True(t, svc.SubmitRiskFrame(context.Background(), entity.Frame{Source: "cam2", Data: []byte{3}},
		func(*entity.RiskAssessment, bool, error) {}))

	assert.Eventually(t, func() bool {
		return !svc.admission.InFlight("cam1") && !svc.admission.InFlight("cam2")
	}, time.Second, time.Millisecond)
}

func TestQueueDepthBuffersInsteadOfDropping(t *testing.T) {
	t.Setenv("DISPATCH_QUEUE_DEPTH", "2")

	model := &fakeModel{response: `{"score": 0.1, "indicators": []}`, delay: 20 * time.Millisecond}
	svc := newTestService(model, newFakeNotifier(alert.SendSkipped), &fakeGallery{})
	svc.admission = newAdmissionState()

	var delivered atomic.Int64
	deliver := func(*entity.RiskAssessment, bool, error) { delivered.Add(1) }

	frame := entity.Frame{Source: "cam1", Data: []byte{1}}
	require.True(t, svc.SubmitRiskFrame(context.Background(), frame, deliver))
	require.True(t, svc.SubmitRiskFrame(context.Background(), frame, deliver))
	require.True(t, svc.SubmitRiskFrame(context.Background(), frame, deliver))
	// Queue full now: one running, two buffered.
	assert.False(t, svc.SubmitRiskFrame(context.Background(), frame, deliver))

	assert.Eventually(t, func() bool { return delivered.Load() == 3 },
		2*time.Second, time.Millisecond)
	assert.Equal(t, int64(1), model.maxInFlight.Load())
}

func TestReleaseSurvivesPanickingDeliver(t *testing.T) {
	model := &fakeModel{response: `{"score": 0.1, "indicators": []}`}
	svc := newTestService(model, newFakeNotifier(alert.SendSkipped), &fakeGallery{})

	svc.SubmitRiskFrame(context.Background(), entity.Frame{Source: "cam1", Data: []byte{1}},
		func(*entity.RiskAssessment, bool, error) { panic("consumer bug") })

	assert.Eventually(t, func() bool { return !svc.admission.InFlight("cam1") },
		time.Second, time.Millisecond, "a panic in the detection path must still release the slot")
}
