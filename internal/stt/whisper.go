package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lexiqai/transcriber/internal/resilience"
)

const whisperBackendName = "whisper"

// maxErrorBody bounds how much of an upstream error body ends up in logs
const maxErrorBody = 512

// WhisperConfig configures the faster-whisper HTTP sidecar backend
type WhisperConfig struct {
	URL         string
	Model       ModelSize
	Language    string
	Device      string
	ComputeType string
	Timeout     time.Duration
}

// WhisperBackend sends audio to a faster-whisper sidecar that keeps the model loaded.
// The sidecar accepts a multipart POST /transcribe with an "audio" file part
// and answers {"text", "language", "duration", "segments": [{"text","start","end"}]}.
type WhisperBackend struct {
	cfg    WhisperConfig
	client *http.Client
}

// NewWhisperBackend creates a sidecar client. No request is made until first use.
func NewWhisperBackend(cfg WhisperConfig, client *http.Client) *WhisperBackend {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Model == "" {
		cfg.Model = ModelBase
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &WhisperBackend{cfg: cfg, client: client}
}

// Name returns the backend name.
func (w *WhisperBackend) Name() string { return whisperBackendName }

// Ready checks that the sidecar answers its health endpoint.
func (w *WhisperBackend) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.URL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return w.transportError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &BackendError{Backend: whisperBackendName, StatusCode: resp.StatusCode, Kind: ErrUnavailable, Err: errors.New("health check failed")}
	}
	return nil
}

// Transcribe uploads the audio bytes and returns the sidecar's segments.
func (w *WhisperBackend) Transcribe(ctx context.Context, audio Audio) ([]Segment, Info, error) {
	body, contentType, err := w.encode(audio)
	if err != nil {
		return nil, Info{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL+"/transcribe", body)
	if err != nil {
		return nil, Info{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, Info{}, w.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, Info{}, &BackendError{
			Backend:    whisperBackendName,
			StatusCode: resp.StatusCode,
			Kind:       classifyStatus(resp.StatusCode),
			Err:        errors.New(strings.TrimSpace(string(msg))),
		}
	}

	var result whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// A body cut short means the sidecar died mid-response
			return nil, Info{}, resilience.NewRetryableError(fmt.Errorf("decode whisper response: %w", err))
		}
		return nil, Info{}, fmt.Errorf("decode whisper response: %w", err)
	}

	return result.segments(), result.info(string(w.cfg.Model)), nil
}

func (w *WhisperBackend) encode(audio Audio) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := audio.Filename
	if filename == "" {
		filename = "audio"
	}
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}

	fields := map[string]string{
		"model":        string(w.cfg.Model),
		"language":     w.cfg.Language,
		"device":       w.cfg.Device,
		"compute_type": w.cfg.ComputeType,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// transportError keeps context errors intact so callers can tell timeouts
// and cancellations apart from an unreachable sidecar.
func (w *WhisperBackend) transportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("whisper request: %w", err)
	}
	return &BackendError{Backend: whisperBackendName, Kind: ErrUnavailable, Err: err}
}

// --- sidecar response types ---

type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
}

type whisperSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (r *whisperResponse) segments() []Segment {
	segments := make([]Segment, len(r.Segments))
	for i, seg := range r.Segments {
		segments[i] = Segment{Text: seg.Text, Start: seg.Start, End: seg.End}
	}
	return segments
}

func (r *whisperResponse) info(model string) Info {
	duration := r.Duration
	if duration == 0 && len(r.Segments) > 0 {
		duration = r.Segments[len(r.Segments)-1].End
	}
	return Info{Language: r.Language, Duration: duration, Model: model}
}
