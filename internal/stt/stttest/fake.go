// Package stttest provides an in-memory Recognizer for tests.
package stttest

import (
	"context"
	"sync"

	"github.com/lexiqai/transcriber/internal/stt"
)

// Fake is a scripted Recognizer. The zero value returns no segments.
type Fake struct {
	// BackendName is returned by Name, "fake" when empty
	BackendName string

	// Segments are returned for every call unless TranscribeFunc is set
	Segments []stt.Segment
	Info     stt.Info
	Err      error

	// TranscribeFunc overrides the scripted response when set
	TranscribeFunc func(ctx context.Context, audio stt.Audio) ([]stt.Segment, stt.Info, error)

	// ReadyErr is returned by Ready
	ReadyErr error

	mu    sync.Mutex
	calls []stt.Audio
}

// FromTexts returns a Fake that yields one segment per text
func FromTexts(texts ...string) *Fake {
	segments := make([]stt.Segment, len(texts))
	for i, text := range texts {
		segments[i] = stt.Segment{Text: text, Start: float64(i), End: float64(i + 1)}
	}
	return &Fake{Segments: segments}
}

// Name returns the backend name.
func (f *Fake) Name() string {
	if f.BackendName == "" {
		return "fake"
	}
	return f.BackendName
}

// Ready returns ReadyErr.
func (f *Fake) Ready(ctx context.Context) error { return f.ReadyErr }

// Transcribe records the call and returns the scripted result.
func (f *Fake) Transcribe(ctx context.Context, audio stt.Audio) ([]stt.Segment, stt.Info, error) {
	f.mu.Lock()
	f.calls = append(f.calls, audio)
	f.mu.Unlock()

	if f.TranscribeFunc != nil {
		return f.TranscribeFunc(ctx, audio)
	}
	if f.Err != nil {
		return nil, stt.Info{}, f.Err
	}
	segments := make([]stt.Segment, len(f.Segments))
	copy(segments, f.Segments)
	return segments, f.Info, nil
}

// Calls returns the audio passed to each Transcribe call, in order
func (f *Fake) Calls() []stt.Audio {
	f.mu.Lock()
	defer f.mu.Unlock()

	calls := make([]stt.Audio, len(f.calls))
	copy(calls, f.calls)
	return calls
}
