package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported speech-to-text backends
const (
	BackendWhisper  = "whisper"
	BackendOpenAI   = "openai"
	BackendDeepgram = "deepgram"
)

// Config holds all configuration for the transcriber service
type Config struct {
	// Server configuration
	Port             string `envconfig:"PORT" default:"8080"`
	HTTPReadTimeout  int    `envconfig:"HTTP_READ_TIMEOUT" default:"60" validate:"min=1"`   // seconds
	HTTPWriteTimeout int    `envconfig:"HTTP_WRITE_TIMEOUT" default:"180" validate:"min=1"` // seconds, must outlive STT_TIMEOUT
	ShutdownTimeout  int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30" validate:"min=1"`    // seconds

	// Upload handling
	MaxUploadBytes     int64    `envconfig:"MAX_UPLOAD_BYTES" default:"26214400" validate:"min=1"` // 25 MiB
	RejectNonAudio     bool     `envconfig:"REJECT_NON_AUDIO" default:"false"`                     // Reject uploads that do not sniff as audio/video
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Speech-to-text backend selection
	Backend          string `envconfig:"STT_BACKEND" default:"whisper" validate:"oneof=whisper openai deepgram"`
	ModelSize        string `envconfig:"MODEL_SIZE" default:"base" validate:"oneof=tiny base small medium large"`
	Language         string `envconfig:"STT_LANGUAGE" default:""`                    // Empty lets the backend detect it
	STTTimeout       int    `envconfig:"STT_TIMEOUT" default:"120" validate:"min=1"` // seconds per transcription
	ModelConcurrency int    `envconfig:"MODEL_CONCURRENCY" default:"1" validate:"min=1"`

	// faster-whisper sidecar
	WhisperURL         string `envconfig:"WHISPER_URL" default:"http://localhost:8387" validate:"url"`
	WhisperDevice      string `envconfig:"WHISPER_DEVICE" default:""`       // cpu, cuda
	WhisperComputeType string `envconfig:"WHISPER_COMPUTE_TYPE" default:""` // int8, float16, ...

	// OpenAI-compatible transcription API
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"" validate:"omitempty,url"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"whisper-1"`

	// Deepgram pre-recorded API
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel  string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5" validate:"min=1"`  // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30" validate:"min=1"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3" validate:"min=1"`             // Attempts including the first
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100" validate:"min=0"`        // Initial backoff in milliseconds

	// Observability configuration
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:""`   // Empty disables the gRPC health server
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

var validate = validator.New()

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	applyBlankDefaults(&cfg)

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.ModelSize = strings.ToLower(strings.TrimSpace(cfg.ModelSize))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints and the keys required by the selected backend
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Backend {
	case BackendOpenAI:
		// A custom base URL usually points at a local whisper.cpp server that needs no key
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when STT_BACKEND=openai")
		}
	case BackendDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when STT_BACKEND=deepgram")
		}
	}

	if c.HTTPWriteTimeout <= c.STTTimeout {
		return fmt.Errorf("HTTP_WRITE_TIMEOUT (%ds) must be greater than STT_TIMEOUT (%ds)", c.HTTPWriteTimeout, c.STTTimeout)
	}

	return nil
}

// applyBlankDefaults treats a variable that is set but empty (KEY= in a
// compose file) as unset. envconfig only applies default tags to unset variables.
func applyBlankDefaults(c *Config) {
	c.Port = GetEnv("PORT", "8080")
	c.Backend = GetEnv("STT_BACKEND", BackendWhisper)
	c.ModelSize = GetEnv("MODEL_SIZE", "base")
	c.WhisperURL = GetEnv("WHISPER_URL", "http://localhost:8387")
	c.OpenAIModel = GetEnv("OPENAI_MODEL", "whisper-1")
	c.DeepgramModel = GetEnv("DEEPGRAM_MODEL", "nova-2")
	c.LogLevel = GetEnv("LOG_LEVEL", "info")
}

// TranscriptionTimeout returns STT_TIMEOUT as a duration
func (c *Config) TranscriptionTimeout() time.Duration {
	return time.Duration(c.STTTimeout) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
