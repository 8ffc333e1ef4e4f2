// Package transcription turns one uploaded file into one transcript.
package transcription

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/transcriber/internal/apperr"
	"github.com/lexiqai/transcriber/internal/audio"
	"github.com/lexiqai/transcriber/internal/observability"
	"github.com/lexiqai/transcriber/internal/stt"
)

// Options tunes a Service
type Options struct {
	// Timeout bounds each backend call, 0 means no extra deadline
	Timeout time.Duration

	// RejectNonAudio refuses uploads whose content does not sniff as audio.
	// Empty uploads are always passed through.
	RejectNonAudio bool
}

// Result is a finished transcription
type Result struct {
	Text     string
	Segments int
	Info     stt.Info
	MIME     string
}

// Service calls the shared recognizer and joins its segments
type Service struct {
	recognizer stt.Recognizer
	opts       Options
}

// New creates a Service around a recognizer built once at startup
func New(recognizer stt.Recognizer, opts Options) *Service {
	return &Service{recognizer: recognizer, opts: opts}
}

// Backend returns the recognizer name
func (s *Service) Backend() string {
	return s.recognizer.Name()
}

// Ready reports whether the recognizer can take requests
func (s *Service) Ready(ctx context.Context) error {
	return s.recognizer.Ready(ctx)
}

// Transcribe sends data to the recognizer and joins the segment texts with
// single spaces, in order. Zero segments yield an empty text.
func (s *Service) Transcribe(ctx context.Context, data []byte, filename string) (*Result, error) {
	logger := zerolog.Ctx(ctx)
	metrics := observability.NewRequestMetrics(s.recognizer.Name())
	metrics.RecordAudioBytes(len(data))

	detected := audio.Detect(data)
	if s.opts.RejectNonAudio && len(data) > 0 && !detected.IsAudio {
		metrics.RecordEnd("rejected")
		return nil, apperr.UnsupportedMediaType(detected.MIME)
	}

	input := stt.Audio{
		Data:     data,
		Filename: audio.Filename(filename, detected),
		MIME:     detected.MIME,
	}

	callCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	segments, info, err := s.recognizer.Transcribe(callCtx, input)
	if err != nil {
		metrics.RecordEnd("error")
		return nil, err
	}
	metrics.RecordSegments(len(segments))
	metrics.RecordEnd("success")

	text := strings.Join(stt.Texts(segments), " ")

	logger.Info().
		Str("backend", s.recognizer.Name()).
		Str("filename", input.Filename).
		Str("mime", input.MIME).
		Int("bytes", len(data)).
		Int("segments", len(segments)).
		Str("language", info.Language).
		Float64("audio_seconds", info.Duration).
		Dur("elapsed", time.Since(start)).
		Msg("Transcription completed")

	return &Result{
		Text:     text,
		Segments: len(segments),
		Info:     info,
		MIME:     input.MIME,
	}, nil
}
