package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNoCandidates is returned when a client is built without base URLs.
	ErrNoCandidates = errors.New("no backend candidates configured")

	// ErrTimeout marks an attempt aborted by the per-attempt timeout.
	ErrTimeout = errors.New("request timed out")
)

// StatusError is a non-2xx response from a candidate.
type StatusError struct {
	Status  int
	Message string
	URL     string
}

func (e *StatusError) Error() string {
	return e.Message
}

// IsClientError reports a 4xx status.
func (e *StatusError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// newStatusError builds the error from a response body, preferring the
// server-provided {"error": "..."} message.
func newStatusError(status int, body []byte, url string) *StatusError {
	msg := fmt.Sprintf("HTTP %d", status)
	var eb struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case strings.TrimSpace(eb.Error) != "":
			msg = eb.Error
		case strings.TrimSpace(eb.Message) != "":
			msg = eb.Message
		}
	}
	return &StatusError{Status: status, Message: msg, URL: url}
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	// ActionFailover moves on to the next candidate, then to the next retry round.
	ActionFailover ErrorAction = iota
	// ActionFatal stops immediately.
	ActionFatal
)

func (a ErrorAction) String() string {
	if a == ActionFatal {
		return "fatal"
	}
	return "failover"
}

// Classify determines the action for a given error.
// Client errors (4xx) are fatal, except 429 which is treated as backend
// pressure. Caller cancellation is fatal. Everything else is transient.
func Classify(err error) ErrorAction {
	if err == nil {
		return ActionFailover
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ActionFatal
	}

	var se *StatusError
	if errors.As(err, &se) {
		if se.Status == http.StatusTooManyRequests {
			return ActionFailover
		}
		if se.IsClientError() {
			return ActionFatal
		}
	}

	return ActionFailover
}

// errorType labels an error for metrics.
func errorType(err error) string {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return fmt.Sprintf("%dxx", se.Status/100)
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "network"
	}
}
