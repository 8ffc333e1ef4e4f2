package stt

import (
	"fmt"
	"time"

	"github.com/lexiqai/transcriber/internal/config"
	"github.com/lexiqai/transcriber/internal/observability"
	"github.com/lexiqai/transcriber/internal/resilience"
)

// New builds the configured backend once, wrapped in the resilience
// and concurrency decorators. The result is safe to share across requests.
func New(cfg *config.Config) (Recognizer, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(backend, cfg), nil
}

// NewBackend builds the bare backend selected by STT_BACKEND
func NewBackend(cfg *config.Config) (Recognizer, error) {
	size, err := ParseModelSize(cfg.ModelSize)
	if err != nil {
		return nil, err
	}

	logger := observability.GetLogger()

	switch cfg.Backend {
	case config.BackendWhisper:
		logger.Info().
			Str("url", cfg.WhisperURL).
			Str("model_size", string(size)).
			Str("device", cfg.WhisperDevice).
			Str("compute_type", cfg.WhisperComputeType).
			Msg("Using faster-whisper backend")
		return NewWhisperBackend(WhisperConfig{
			URL:         cfg.WhisperURL,
			Model:       size,
			Language:    cfg.Language,
			Device:      cfg.WhisperDevice,
			ComputeType: cfg.WhisperComputeType,
			Timeout:     cfg.TranscriptionTimeout(),
		}, nil), nil

	case config.BackendOpenAI:
		logger.Info().
			Str("model", cfg.OpenAIModel).
			Str("base_url", cfg.OpenAIBaseURL).
			Str("model_size", string(size)).
			Msg("Using OpenAI-compatible backend (model size selector ignored)")
		return NewOpenAIBackend(OpenAIConfig{
			APIKey:   cfg.OpenAIAPIKey,
			BaseURL:  cfg.OpenAIBaseURL,
			Model:    cfg.OpenAIModel,
			Language: cfg.Language,
		}, nil), nil

	case config.BackendDeepgram:
		logger.Info().
			Str("model", cfg.DeepgramModel).
			Str("model_size", string(size)).
			Msg("Using Deepgram backend (model size selector ignored)")
		return NewDeepgramBackend(DeepgramConfig{
			APIKey:   cfg.DeepgramAPIKey,
			Model:    cfg.DeepgramModel,
			Language: cfg.Language,
		}), nil

	default:
		return nil, fmt.Errorf("unknown STT backend %q", cfg.Backend)
	}
}

// Wrap applies the circuit breaker, retry and concurrency guard from cfg
func Wrap(backend Recognizer, cfg *config.Config) Recognizer {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.InitialBackoff = time.Duration(cfg.RetryInitialBackoff) * time.Millisecond

	resilient := NewResilient(backend, ResilienceConfig{
		MaxFailures:  cfg.CircuitBreakerMaxFailures,
		ResetTimeout: time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second,
		Retry:        retry,
	})

	return NewLimited(resilient, cfg.ModelConcurrency)
}
