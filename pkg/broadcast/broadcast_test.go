package broadcast

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestHubDeliversToAllSubscribers(t *testing.T) {
	hub := NewHub(testLogger())
	a := hub.Subscribe()
	b := hub.Subscribe()

	hub.Broadcast([]byte("frame-1"))

	assert.Equal(t, []byte("frame-1"), <-a.Frames())
	assert.Equal(t, []byte("frame-1"), <-b.Frames())
}

func TestHubSlowConsumerMissesFrames(t *testing.T) {
	hub := NewHub(testLogger())
	slow := hub.Subscribe()

	// Nobody reads between broadcasts; only the newest frame survives.
	hub.Broadcast([]byte("old"))
	hub.Broadcast([]byte("newer"))
	hub.Broadcast([]byte("newest"))

	assert.Equal(t, []byte("newest"), <-slow.Frames())

	select {
	case f := <-slow.Frames():
		t.Fatalf("expected empty mailbox, got %q", f)
	default:
	}
}

func TestHubBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Subscribe() // never reads

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Broadcast([]byte{byte(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a dead subscriber")
	}
}

func TestHubUnsubscribeRemovesOnlyThatViewer(t *testing.T) {
	hub := NewHub(testLogger())
	gone := hub.Subscribe()
	stays := hub.Subscribe()

	hub.Unsubscribe(gone)
	require.Equal(t, 1, hub.SubscriberCount())

	hub.Broadcast([]byte("tick"))
	assert.Equal(t, []byte("tick"), <-stays.Frames())

	_, open := <-gone.Frames()
	assert.False(t, open, "unsubscribed viewer channel should be closed")
}

type scriptedSource struct {
	captures atomic.Int64
	closed   atomic.Bool
	fail     bool
}

func (s *scriptedSource) Capture() ([]byte, error) {
	s.captures.Add(1)
	if s.fail {
		return nil, errors.New("camera offline")
	}
	return []byte("frame"), nil
}

func (s *scriptedSource) Close() error {
	s.closed.Store(true)
	return nil
}

func newTestLoop(source CaptureSource, hub *Hub) *Loop {
	return &Loop{
		source:   source,
		hub:      hub,
		interval: time.Millisecond,
		log:      testLogger(),
	}
}

func TestLoopBroadcastsAndStopsOnCancel(t *testing.T) {
	hub := NewHub(testLogger())
	sub := hub.Subscribe()
	source := &scriptedSource{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- newTestLoop(source, hub).Run(ctx)
	}()

	select {
	case frame := <-sub.Frames():
		assert.Equal(t, []byte("frame"), frame)
	case <-time.After(time.Second):
		t.Fatal("no frame broadcast before timeout")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on cancel")
	}

	assert.True(t, source.closed.Load(), "capture source must be released on stop")

	after := source.captures.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, source.captures.Load(), "no capture may happen after stop")
}

func TestLoopSurvivesCaptureFailures(t *testing.T) {
	hub := NewHub(testLogger())
	source := &scriptedSource{fail: true}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- newTestLoop(source, hub).Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return source.captures.Load() >= 3
	}, time.Second, time.Millisecond, "loop should keep ticking past capture errors")

	cancel()
	require.NoError(t, <-done)
}
