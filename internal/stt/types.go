package stt

import (
	"context"
	"fmt"
	"strings"
)

// Audio is one uploaded file held in memory for the duration of a request
type Audio struct {
	// Data is the raw file content, passed to the backend unchanged
	Data []byte

	// Filename is the client filename, or a synthesized one carrying
	// an extension derived from the sniffed content type
	Filename string

	// MIME is the sniffed content type ("application/octet-stream" when unknown)
	MIME string
}

// Segment is one decoded span of speech, in backend order
type Segment struct {
	Text  string
	Start float64 // seconds, 0 if the backend does not report timing
	End   float64
}

// Info carries auxiliary details a backend reports alongside its segments.
// It is logged but never returned to HTTP clients.
type Info struct {
	Language string
	Duration float64 // seconds of audio
	Model    string
}

// Recognizer is a speech-to-text backend constructed once and shared by all requests
type Recognizer interface {
	// Name identifies the backend in logs and metrics
	Name() string

	// Transcribe decodes audio into ordered segments
	Transcribe(ctx context.Context, audio Audio) ([]Segment, Info, error)

	// Ready reports whether the backend can currently serve requests
	Ready(ctx context.Context) error
}

// ModelSize selects the whisper checkpoint the backend loads
type ModelSize string

const (
	ModelTiny   ModelSize = "tiny"
	ModelBase   ModelSize = "base"
	ModelSmall  ModelSize = "small"
	ModelMedium ModelSize = "medium"
	ModelLarge  ModelSize = "large"
)

// ParseModelSize validates a size selector, case-insensitively
func ParseModelSize(s string) (ModelSize, error) {
	switch size := ModelSize(strings.ToLower(strings.TrimSpace(s))); size {
	case ModelTiny, ModelBase, ModelSmall, ModelMedium, ModelLarge:
		return size, nil
	default:
		return "", fmt.Errorf("unknown model size %q (want tiny, base, small, medium or large)", s)
	}
}

// Texts returns the segment texts in order
func Texts(segments []Segment) []string {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	return texts
}
