package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newWhisperSidecar(t *testing.T, handler http.HandlerFunc) *WhisperBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewWhisperBackend(WhisperConfig{
		URL:         srv.URL + "/",
		Model:       ModelSmall,
		Language:    "en",
		ComputeType: "int8",
		Timeout:     5 * time.Second,
	}, nil)
}

func TestWhisperBackend_Transcribe(t *testing.T) {
	backend := newWhisperSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transcribe" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if got := r.FormValue("model"); got != "small" {
			t.Errorf("Expected model 'small', got '%s'", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("Expected language 'en', got '%s'", got)
		}
		if got := r.FormValue("compute_type"); got != "int8" {
			t.Errorf("Expected compute_type 'int8', got '%s'", got)
		}
		if _, ok := r.MultipartForm.Value["device"]; ok {
			t.Error("Expected empty device to be omitted")
		}

		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("Expected audio part: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "RIFF-bytes" {
			t.Errorf("Expected audio bytes to pass through unchanged, got %q", data)
		}
		if header.Filename != "clip.wav" {
			t.Errorf("Expected filename 'clip.wav', got '%s'", header.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":" Hello world","language":"en","segments":[{"text":"Hello","start":0,"end":0.5},{"text":"world","start":0.5,"end":1.25}]}`)
	})

	segments, info, err := backend.Transcribe(context.Background(), Audio{Data: []byte("RIFF-bytes"), Filename: "clip.wav"})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if len(segments) != 2 || segments[0].Text != "Hello" || segments[1].Text != "world" {
		t.Fatalf("Unexpected segments %+v", segments)
	}
	if segments[1].Start != 0.5 || segments[1].End != 1.25 {
		t.Errorf("Expected timing to be preserved, got %+v", segments[1])
	}
	if info.Language != "en" {
		t.Errorf("Expected language 'en', got '%s'", info.Language)
	}
	if info.Duration != 1.25 {
		t.Errorf("Expected duration from last segment 1.25, got %v", info.Duration)
	}
	if info.Model != "small" {
		t.Errorf("Expected model 'small', got '%s'", info.Model)
	}
}

func TestWhisperBackend_EmptyAudioPassesThrough(t *testing.T) {
	backend := newWhisperSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("Expected audio part: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if len(data) != 0 {
			t.Errorf("Expected empty audio, got %d bytes", len(data))
		}
		if header.Filename != "audio" {
			t.Errorf("Expected default filename 'audio', got '%s'", header.Filename)
		}
		_, _ = io.WriteString(w, `{"text":"","segments":[]}`)
	})

	segments, _, err := backend.Transcribe(context.Background(), Audio{})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(segments) != 0 {
		t.Errorf("Expected zero segments, got %d", len(segments))
	}
}

func TestWhisperBackend_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   error
	}{
		{http.StatusBadRequest, ErrUnsupportedAudio},
		{http.StatusUnprocessableEntity, ErrUnsupportedAudio},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, ErrUnavailable},
		{http.StatusServiceUnavailable, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			backend := newWhisperSidecar(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"detail":"nope"}`, tt.status)
			})

			_, _, err := backend.Transcribe(context.Background(), Audio{Data: []byte("x")})
			if !errors.Is(err, tt.kind) {
				t.Fatalf("Expected %v, got %v", tt.kind, err)
			}

			var be *BackendError
			if !errors.As(err, &be) {
				t.Fatalf("Expected *BackendError, got %T", err)
			}
			if be.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, be.StatusCode)
			}
			if be.Backend != "whisper" {
				t.Errorf("Expected backend 'whisper', got '%s'", be.Backend)
			}
		})
	}
}

func TestWhisperBackend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	backend := NewWhisperBackend(WhisperConfig{URL: url, Timeout: time.Second}, nil)

	_, _, err := backend.Transcribe(context.Background(), Audio{Data: []byte("x")})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("Expected unreachable sidecar to be retryable")
	}

	if err := backend.Ready(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected Ready to report ErrUnavailable, got %v", err)
	}
}

func TestWhisperBackend_MalformedResponse(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		retryable bool
	}{
		{"truncated", `{"segments":[{"text":"Hel`, true},
		{"not json", `<html>bad gateway</html>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newWhisperSidecar(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, tt.body)
			})

			_, _, err := backend.Transcribe(context.Background(), Audio{Data: []byte("x")})
			if err == nil {
				t.Fatal("Expected a decode error")
			}
			if got := IsRetryable(err); got != tt.retryable {
				t.Errorf("Expected retryable %v, got %v (%v)", tt.retryable, got, err)
			}
		})
	}
}

func TestWhisperBackend_CanceledContext(t *testing.T) {
	backend := newWhisperSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := backend.Transcribe(ctx, Audio{Data: []byte("x")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("Expected cancellation not to be reported as unavailability")
	}
}

func TestWhisperBackend_Ready(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	backend := newWhisperSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Expected /health, got %s", r.URL.Path)
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})

	if err := backend.Ready(context.Background()); err != nil {
		t.Errorf("Expected ready, got %v", err)
	}

	healthy.Store(false)
	if err := backend.Ready(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}
