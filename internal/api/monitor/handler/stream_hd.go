package monitorHandler

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"

	"VisionGuard/internal/api/monitor"
	"VisionGuard/internal/entity"
)

// handleFrameWebSocket is the risk-frame ingest loop. Each connection is one
// producer; its source id comes from the query string or gets generated.
// Frames arriving while a detection is in flight for the source are dropped
// silently, so a fast producer only throttles itself.
func (h *MonitorHandler) handleFrameWebSocket(c *websocket.Conn) {
	source := c.Query("source")
	if source == "" {
		if id, err := h.utils.NewULIDFromTimestamp(time.Now()); err == nil {
			source = id
		} else {
			source = "unknown"
		}
	}

	h.log.Infof("frame producer connected: %s", source)
	defer h.log.Infof("frame producer disconnected: %s", source)

	// Detection results arrive from worker goroutines while the read loop
	// may be writing decode errors; serialize all writes.
	var writeMu sync.Mutex

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			break
		}

		var data []byte
		if messageType == websocket.BinaryMessage {
			data = message
		} else {
			data, err = h.utils.DecodeFramePayload(message)
			if err != nil {
				writeMu.Lock()
				writeErr := c.WriteJSON(map[string]string{"error": monitor.ErrInvalidImagePayload.Error()})
				writeMu.Unlock()
				if writeErr != nil {
					break
				}
				continue
			}
		}

		frame := entity.Frame{
			Source:     source,
			Data:       data,
			CapturedAt: time.Now().UTC(),
		}

		h.monitorService.SubmitRiskFrame(context.Background(), frame,
			func(result *entity.RiskAssessment, alerted bool, err error) {
				writeMu.Lock()
				defer writeMu.Unlock()

				c.SetWriteDeadline(time.Now().Add(10 * time.Second))
				defer c.SetWriteDeadline(time.Time{})

				if err != nil {
					c.WriteJSON(map[string]string{"error": err.Error()})
					return
				}
				c.WriteJSON(monitor.RiskResultMessage{
					Source:     source,
					Score:      result.Score,
					Indicators: result.Indicators,
					Alerted:    alerted,
				})
			})
	}
}

// handleLiveWebSocket streams broadcast frames to one viewer until it goes
// away. A viewer that cannot keep up misses frames; it is never queued
// behind and never stalls the capture loop.
func (h *MonitorHandler) handleLiveWebSocket(c *websocket.Conn) {
	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	h.log.Info("live viewer connected")
	defer h.log.Info("live viewer disconnected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			c.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		}
	}
}
