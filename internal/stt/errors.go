package stt

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexiqai/transcriber/internal/resilience"
)

// Sentinel errors backends wrap so callers can classify failures
// without knowing which backend produced them.
var (
	// ErrUnsupportedAudio means the backend could not decode the upload
	ErrUnsupportedAudio = errors.New("unsupported or undecodable audio")

	// ErrUnavailable means the backend is unreachable, failing, or its circuit is open
	ErrUnavailable = errors.New("speech-to-text backend unavailable")

	// ErrRateLimited means the backend asked us to slow down
	ErrRateLimited = errors.New("speech-to-text backend rate limited")
)

// BackendError records which backend failed and how
type BackendError struct {
	Backend    string
	StatusCode int // upstream HTTP status, 0 if none
	Kind       error
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %v (status %d): %v", e.Backend, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Backend, e.Kind, e.Err)
}

// Is lets errors.Is match the classification sentinel
func (e *BackendError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an upstream HTTP status to a sentinel, nil for success codes
func classifyStatus(status int) error {
	switch {
	case status < 400:
		return nil
	case status == 400, status == 413, status == 415, status == 422:
		return ErrUnsupportedAudio
	case status == 429:
		return ErrRateLimited
	case status == 408, status >= 500:
		return ErrUnavailable
	default:
		// Auth and other client errors are our misconfiguration, not the caller's audio
		return ErrUnavailable
	}
}

// IsRetryable reports whether another attempt could succeed
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	var be *BackendError
	if errors.As(err, &be) && be.StatusCode >= 400 && be.StatusCode < 500 && be.StatusCode != 408 && be.StatusCode != 429 {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited) {
		return true
	}
	return resilience.IsRetryable(err) || resilience.IsRetryableNetworkError(err)
}

// countsAsFailure reports whether err says something about backend health
func countsAsFailure(err error) bool {
	switch {
	case errors.Is(err, ErrUnsupportedAudio),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
