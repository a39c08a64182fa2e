package monitor

import (
	"VisionGuard/pkg/response"
	"errors"
	"net/http"
)

var (
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
	ErrBadRequest          = response.NewError(http.StatusBadRequest, "bad request")

	// ErrInvalidImagePayload covers malformed base64 or undecodable image
	// data; never retried.
	ErrInvalidImagePayload = errors.New("invalid image payload")

	// ErrNoDetections is the user-visible outcome of a box detection whose
	// model response contained nothing parsable.
	ErrNoDetections = errors.New("no detections found in model response")
)
