package broadcast

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultFrameInterval = 33 * time.Millisecond

// CaptureSource produces one encoded frame per call. Close releases the
// underlying device or connection.
type CaptureSource interface {
	Capture() ([]byte, error)
	Close() error
}

// Loop drives capture-and-fanout on a timer. One goroutine owns the whole
// cycle; cancellation is observed between ticks, so a tick in progress
// finishes and nothing is captured afterwards.
type Loop struct {
	source   CaptureSource
	hub      *Hub
	interval time.Duration
	log      *logrus.Logger
}

func NewLoop(source CaptureSource, hub *Hub, log *logrus.Logger) *Loop {
	interval := defaultFrameInterval
	if raw := os.Getenv("FRAME_INTERVAL_MS"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			interval = time.Duration(ms) * time.Millisecond
		}
	}

	return &Loop{
		source:   source,
		hub:      hub,
		interval: interval,
		log:      log,
	}
}

func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		if err := l.source.Close(); err != nil {
			l.log.Warnf("failed to close capture source: %v", err)
		}
	}()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.log.Infof("capture loop started, interval %s", l.interval)

	for {
		select {
		case <-ctx.Done():
			l.log.Info("capture loop stopped")
			return nil
		case <-ticker.C:
			frame, err := l.source.Capture()
			if err != nil {
				l.log.Warnf("frame capture failed: %v", err)
				continue
			}
			l.hub.Broadcast(frame)
		}
	}
}
