package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const openAIBackendName = "openai"

// OpenAIConfig configures the OpenAI-compatible transcription backend
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string // empty means api.openai.com; set for whisper.cpp or other compatible servers
	Model    string
	Language string
}

// OpenAIBackend transcribes through the /audio/transcriptions API
type OpenAIBackend struct {
	cfg    OpenAIConfig
	client *openai.Client
}

// NewOpenAIBackend creates a client for the OpenAI transcription API.
// httpClient may be nil to use the library default.
func NewOpenAIBackend(cfg OpenAIConfig, httpClient *http.Client) *OpenAIBackend {
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	return &OpenAIBackend{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// Name returns the backend name.
func (o *OpenAIBackend) Name() string { return openAIBackendName }

// Ready lists models to prove the endpoint is reachable and the key is accepted.
// Compatible servers that do not implement /models answer 404, which still counts as ready.
func (o *OpenAIBackend) Ready(ctx context.Context) error {
	_, err := o.client.ListModels(ctx)
	if err == nil {
		return nil
	}
	if status := openAIStatus(err); status == http.StatusNotFound {
		return nil
	}
	return o.classify(err)
}

// Transcribe requests verbose_json so the response carries per-segment text.
func (o *OpenAIBackend) Transcribe(ctx context.Context, audio Audio) ([]Segment, Info, error) {
	filename := audio.Filename
	if filename == "" {
		filename = "audio"
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.cfg.Model,
		FilePath: filename,
		Reader:   bytes.NewReader(audio.Data),
		Language: o.cfg.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, Info{}, o.classify(err)
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		segments = append(segments, Segment{Text: seg.Text, Start: seg.Start, End: seg.End})
	}
	// Some compatible servers ignore response_format and only return text
	if len(segments) == 0 && resp.Text != "" {
		segments = append(segments, Segment{Text: resp.Text, End: resp.Duration})
	}

	info := Info{Language: resp.Language, Duration: resp.Duration, Model: o.cfg.Model}
	return segments, info, nil
}

func (o *OpenAIBackend) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("openai request: %w", err)
	}

	status := openAIStatus(err)
	if status == 0 {
		// No HTTP response at all: DNS, refused connection, TLS
		return &BackendError{Backend: openAIBackendName, Kind: ErrUnavailable, Err: err}
	}
	return &BackendError{Backend: openAIBackendName, StatusCode: status, Kind: classifyStatus(status), Err: err}
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
