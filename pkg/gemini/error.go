package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

type ErrorKind int

const (
	Transient ErrorKind = iota
	Fatal
)

func (k ErrorKind) String() string {
	if k == Transient {
		return "transient"
	}
	return "fatal"
}

// ModelError is the structured failure of a model call. Status is the HTTP
// status reported by the API when one was available, zero otherwise.
type ModelError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *ModelError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("model call failed (%s, status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("model call failed (%s): %s", e.Kind, e.Message)
}

func (e *ModelError) Retryable() bool {
	return e.Kind == Transient
}

var retryableStatuses = map[int]bool{
	500: true,
	503: true,
}

// classify maps an arbitrary call failure to a ModelError. The API status
// code decides when present; the substring check is a compatibility shim for
// errors that reach us as bare text.
func classify(err error) *ModelError {
	var mErr *ModelError
	if errors.As(err, &mErr) {
		return mErr
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		kind := Fatal
		if retryableStatuses[gErr.Code] {
			kind = Transient
		}
		return &ModelError{Kind: kind, Status: gErr.Code, Message: gErr.Message}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ModelError{Kind: Transient, Message: "model call timed out"}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unavailable") || strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "500") {
		return &ModelError{Kind: Transient, Message: err.Error()}
	}

	return &ModelError{Kind: Fatal, Message: err.Error()}
}
