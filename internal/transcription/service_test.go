package transcription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lexiqai/transcriber/internal/apperr"
	"github.com/lexiqai/transcriber/internal/stt"
	"github.com/lexiqai/transcriber/internal/stt/stttest"
)

var wavHeader = []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00\x40\x1f\x00\x00\x80\x3e\x00\x00\x02\x00\x10\x00data\x00\x00\x00\x00")

func TestService_JoinsSegments(t *testing.T) {
	svc := New(stttest.FromTexts("Hello", "world"), Options{})

	result, err := svc.Transcribe(context.Background(), wavHeader, "clip.wav")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.Text != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", result.Text)
	}
	if result.Segments != 2 {
		t.Errorf("Expected 2 segments, got %d", result.Segments)
	}
}

func TestService_JoinIsVerbatim(t *testing.T) {
	svc := New(stttest.FromTexts(" Hello", "world."), Options{})

	result, err := svc.Transcribe(context.Background(), wavHeader, "clip.wav")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.Text != " Hello world." {
		t.Errorf("Expected segment text kept as-is, got '%s'", result.Text)
	}
}

func TestService_ZeroSegments(t *testing.T) {
	svc := New(stttest.FromTexts(), Options{})

	result, err := svc.Transcribe(context.Background(), wavHeader, "silence.wav")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.Text != "" {
		t.Errorf("Expected empty text, got '%s'", result.Text)
	}
}

func TestService_Deterministic(t *testing.T) {
	svc := New(stttest.FromTexts("same", "every", "time"), Options{})

	first, err := svc.Transcribe(context.Background(), wavHeader, "a.wav")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	second, err := svc.Transcribe(context.Background(), wavHeader, "a.wav")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if first.Text != second.Text {
		t.Errorf("Expected identical text, got '%s' and '%s'", first.Text, second.Text)
	}
}

func TestService_PassesAudioThrough(t *testing.T) {
	fake := stttest.FromTexts("ok")
	svc := New(fake, Options{})

	if _, err := svc.Transcribe(context.Background(), wavHeader, "recording"); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 backend call, got %d", len(calls))
	}
	if string(calls[0].Data) != string(wavHeader) {
		t.Error("Expected bytes to reach the backend unchanged")
	}
	if calls[0].Filename != "recording.wav" {
		t.Errorf("Expected sniffed extension on filename, got '%s'", calls[0].Filename)
	}
	if calls[0].MIME != "audio/wav" {
		t.Errorf("Expected MIME 'audio/wav', got '%s'", calls[0].MIME)
	}
}

func TestService_EmptyFile(t *testing.T) {
	for _, strict := range []bool{false, true} {
		fake := stttest.FromTexts()
		svc := New(fake, Options{RejectNonAudio: strict})

		result, err := svc.Transcribe(context.Background(), nil, "empty.wav")
		if err != nil {
			t.Fatalf("strict=%v: Transcribe failed: %v", strict, err)
		}
		if result.Text != "" {
			t.Errorf("strict=%v: expected empty text, got '%s'", strict, result.Text)
		}
		if calls := fake.Calls(); len(calls) != 1 || len(calls[0].Data) != 0 {
			t.Errorf("strict=%v: expected empty content to reach the backend, got %+v", strict, calls)
		}
	}
}

func TestService_EmptyFileRejectedByBackend(t *testing.T) {
	rejection := &stt.BackendError{Backend: "fake", StatusCode: 400, Kind: stt.ErrUnsupportedAudio, Err: errors.New("empty")}
	svc := New(&stttest.Fake{Err: rejection}, Options{})

	_, err := svc.Transcribe(context.Background(), []byte{}, "empty.wav")
	if !errors.Is(err, stt.ErrUnsupportedAudio) {
		t.Errorf("Expected ErrUnsupportedAudio, got %v", err)
	}
}

func TestService_RejectNonAudio(t *testing.T) {
	fake := stttest.FromTexts("never")
	svc := New(fake, Options{RejectNonAudio: true})

	_, err := svc.Transcribe(context.Background(), []byte("just some notes\n"), "notes.txt")
	var appErr *apperr.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeUnsupportedMediaType {
		t.Fatalf("Expected UNSUPPORTED_MEDIA_TYPE, got %v", err)
	}
	if len(fake.Calls()) != 0 {
		t.Error("Expected rejected upload not to reach the backend")
	}

	lenient := New(fake, Options{})
	if _, err := lenient.Transcribe(context.Background(), []byte("just some notes\n"), "notes.txt"); err != nil {
		t.Errorf("Expected non-audio to pass through by default, got %v", err)
	}
}

func TestService_Timeout(t *testing.T) {
	fake := &stttest.Fake{
		TranscribeFunc: func(ctx context.Context, audio stt.Audio) ([]stt.Segment, stt.Info, error) {
			<-ctx.Done()
			return nil, stt.Info{}, ctx.Err()
		},
	}
	svc := New(fake, Options{Timeout: 10 * time.Millisecond})

	_, err := svc.Transcribe(context.Background(), wavHeader, "slow.wav")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestService_Ready(t *testing.T) {
	svc := New(&stttest.Fake{BackendName: "whisper", ReadyErr: stt.ErrUnavailable}, Options{})

	if svc.Backend() != "whisper" {
		t.Errorf("Expected backend 'whisper', got '%s'", svc.Backend())
	}
	if err := svc.Ready(context.Background()); !errors.Is(err, stt.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}
