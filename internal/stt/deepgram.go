package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

const deepgramBackendName = "deepgram"

// DeepgramConfig configures the Deepgram pre-recorded backend
type DeepgramConfig struct {
	APIKey   string
	Model    string // nova-2, enhanced, base
	Language string
}

// streamFunc sends one pre-recorded payload and returns the SDK response
type streamFunc func(ctx context.Context, src io.Reader) (any, error)

// DeepgramBackend transcribes whole files with Deepgram's pre-recorded API.
// Utterances are requested so the response splits into segments.
type DeepgramBackend struct {
	cfg        DeepgramConfig
	fromStream streamFunc
}

// NewDeepgramBackend creates a REST client for the pre-recorded API
func NewDeepgramBackend(cfg DeepgramConfig) *DeepgramBackend {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       cfg.Model,
		Language:    cfg.Language,
		Punctuate:   true,
		SmartFormat: true,
		Utterances:  true,
	}
	if cfg.Language == "" {
		options.DetectLanguage = true
	}

	dg := api.New(client.NewREST(cfg.APIKey, &interfaces.ClientOptions{}))

	return &DeepgramBackend{
		cfg: cfg,
		fromStream: func(ctx context.Context, src io.Reader) (any, error) {
			return dg.FromStream(ctx, src, options)
		},
	}
}

// Name returns the backend name.
func (d *DeepgramBackend) Name() string { return deepgramBackendName }

// Ready reports whether an API key is configured. Reachability is tracked
// by the circuit breaker wrapping this backend.
func (d *DeepgramBackend) Ready(ctx context.Context) error {
	if d.cfg.APIKey == "" {
		return &BackendError{Backend: deepgramBackendName, Kind: ErrUnavailable, Err: errors.New("no API key configured")}
	}
	return ctx.Err()
}

// Transcribe uploads the audio and converts utterances into segments
func (d *DeepgramBackend) Transcribe(ctx context.Context, audio Audio) ([]Segment, Info, error) {
	res, err := d.fromStream(ctx, bytes.NewReader(audio.Data))
	if err != nil {
		return nil, Info{}, classifyDeepgramError(err)
	}

	// Decode through JSON so we depend on the documented wire shape
	// rather than the SDK's Go field layout.
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, Info{}, fmt.Errorf("encode deepgram response: %w", err)
	}
	var result deepgramResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, Info{}, fmt.Errorf("decode deepgram response: %w", err)
	}

	return result.segments(), result.info(d.cfg.Model), nil
}

func classifyDeepgramError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("deepgram request: %w", err)
	}

	var se *interfaces.StatusError
	if errors.As(err, &se) && se.Resp != nil {
		if kind := classifyStatus(se.Resp.StatusCode); kind != nil {
			return &BackendError{Backend: deepgramBackendName, StatusCode: se.Resp.StatusCode, Kind: kind, Err: err}
		}
	}

	// Transport failures carry no status; fall back to the message
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"), strings.Contains(msg, "rate limit"):
		return &BackendError{Backend: deepgramBackendName, StatusCode: 429, Kind: ErrRateLimited, Err: err}
	case strings.Contains(msg, "corrupt"), strings.Contains(msg, "unsupported data"),
		strings.Contains(msg, "failed to process audio"), strings.Contains(msg, "bad request"):
		return &BackendError{Backend: deepgramBackendName, StatusCode: 400, Kind: ErrUnsupportedAudio, Err: err}
	default:
		return &BackendError{Backend: deepgramBackendName, Kind: ErrUnavailable, Err: err}
	}
}

// --- pre-recorded response wire format ---

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Transcript string  `json:"transcript"`
		} `json:"utterances"`
	} `json:"results"`
}

func (r *deepgramResponse) segments() []Segment {
	if len(r.Results.Utterances) > 0 {
		segments := make([]Segment, 0, len(r.Results.Utterances))
		for _, u := range r.Results.Utterances {
			segments = append(segments, Segment{Text: u.Transcript, Start: u.Start, End: u.End})
		}
		return segments
	}

	// Without utterances fall back to the first channel's best alternative.
	// Silence comes back as an empty transcript, which is zero segments.
	if len(r.Results.Channels) == 0 || len(r.Results.Channels[0].Alternatives) == 0 {
		return []Segment{}
	}
	transcript := r.Results.Channels[0].Alternatives[0].Transcript
	if transcript == "" {
		return []Segment{}
	}
	return []Segment{{Text: transcript, End: r.Metadata.Duration}}
}

func (r *deepgramResponse) info(model string) Info {
	info := Info{Duration: r.Metadata.Duration, Model: model}
	if len(r.Results.Channels) > 0 {
		info.Language = r.Results.Channels[0].DetectedLanguage
	}
	return info
}
