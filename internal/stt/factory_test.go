package stt

import (
	"testing"

	"github.com/lexiqai/transcriber/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Backend:                    config.BackendWhisper,
		ModelSize:                  "base",
		WhisperURL:                 "http://localhost:9000",
		OpenAIModel:                "whisper-1",
		DeepgramModel:              "nova-2",
		STTTimeout:                 60,
		ModelConcurrency:           2,
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
		RetryMaxAttempts:           2,
		RetryInitialBackoff:        100,
	}
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		backend  string
		expected string
	}{
		{config.BackendWhisper, "whisper"},
		{config.BackendOpenAI, "openai"},
		{config.BackendDeepgram, "deepgram"},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := testConfig()
			cfg.Backend = tt.backend
			cfg.OpenAIAPIKey = "sk-test"
			cfg.DeepgramAPIKey = "dg-test"

			backend, err := NewBackend(cfg)
			if err != nil {
				t.Fatalf("NewBackend failed: %v", err)
			}
			if backend.Name() != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, backend.Name())
			}
		})
	}
}

func TestNewBackend_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.ModelSize = "huge"
	if _, err := NewBackend(cfg); err == nil {
		t.Error("Expected error for unknown model size")
	}

	cfg = testConfig()
	cfg.Backend = "vosk"
	if _, err := NewBackend(cfg); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestNew_WrapsBackend(t *testing.T) {
	recognizer, err := New(testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	limited, ok := recognizer.(*Limited)
	if !ok {
		t.Fatalf("Expected *Limited, got %T", recognizer)
	}
	if limited.Size() != 2 {
		t.Errorf("Expected width 2, got %d", limited.Size())
	}
	if _, ok := limited.next.(*Resilient); !ok {
		t.Errorf("Expected *Resilient inside the guard, got %T", limited.next)
	}
	if recognizer.Name() != "whisper" {
		t.Errorf("Expected name 'whisper', got '%s'", recognizer.Name())
	}
}
