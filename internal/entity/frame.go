package entity

import "time"

// Frame is a single encoded image taken from a producer. Data is consumed at
// most once by the dispatcher; the frame is discarded after the detection
// completes or the frame is dropped.
type Frame struct {
	Source     string    `json:"source"`
	Data       []byte    `json:"-"`
	Filename   string    `json:"filename,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}
