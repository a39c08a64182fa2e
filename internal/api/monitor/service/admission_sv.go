package monitorService

import (
	"os"
	"strconv"
	"sync"

	"VisionGuard/internal/entity"
)

type detectionJob struct {
	frame   entity.Frame
	deliver DeliverFunc
}

// admissionState enforces at most one in-flight detection per source. The
// lock is held only for the check-and-set, never across a model call.
//
// queueDepth is 0 by default: a frame arriving while its source is busy is
// dropped. A positive DISPATCH_QUEUE_DEPTH trades latency for completeness
// by buffering up to that many frames per source instead.
type admissionState struct {
	mu         sync.Mutex
	busy       map[string]bool
	queues     map[string][]detectionJob
	queueDepth int
}

func newAdmissionState() *admissionState {
	depth := 0
	if raw := os.Getenv("DISPATCH_QUEUE_DEPTH"); raw != "" {
		if d, err := strconv.Atoi(raw); err == nil && d > 0 {
			depth = d
		}
	}

	return &admissionState{
		busy:       make(map[string]bool),
		queues:     make(map[string][]detectionJob),
		queueDepth: depth,
	}
}

// Admit decides the fate of an incoming job in one critical section:
// runNow means the caller owns the source's detection slot and must start a
// worker; accepted-but-not-runNow means the job was buffered for the
// current worker; not accepted means the frame is dropped.
func (a *admissionState) Admit(source string, job detectionJob) (runNow, accepted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.busy[source] {
		a.busy[source] = true
		return true, true
	}

	if a.queueDepth > 0 && len(a.queues[source]) < a.queueDepth {
		a.queues[source] = append(a.queues[source], job)
		return false, true
	}

	return false, false
}

// Release clears the busy flag and discards anything still queued. Workers
// defer it so no exit path can leave a source stuck in Detecting.
func (a *admissionState) Release(source string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.busy, source)
	delete(a.queues, source)
}

// NextQueued pops the oldest buffered job for source, keeping the busy flag
// set. The worker calls it after finishing a detection.
func (a *admissionState) NextQueued(source string) (detectionJob, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	queue := a.queues[source]
	if len(queue) == 0 {
		return detectionJob{}, false
	}

	job := queue[0]
	a.queues[source] = queue[1:]
	return job, true
}

func (a *admissionState) InFlight(source string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.busy[source]
}
