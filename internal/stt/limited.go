package stt

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lexiqai/transcriber/internal/observability"
)

// Limited bounds how many transcriptions run on the wrapped backend at once.
// A local model holds one set of weights, so the default width of 1
// serializes access. Waiting honors the caller's context.
type Limited struct {
	next Recognizer
	sem  *semaphore.Weighted
	size int64
}

// NewLimited wraps next with a guard admitting at most n concurrent calls (n < 1 means 1)
func NewLimited(next Recognizer, n int) *Limited {
	if n < 1 {
		n = 1
	}
	return &Limited{
		next: next,
		sem:  semaphore.NewWeighted(int64(n)),
		size: int64(n),
	}
}

// Name returns the wrapped backend name.
func (l *Limited) Name() string { return l.next.Name() }

// Ready delegates to the wrapped backend; a busy guard is not unready.
func (l *Limited) Ready(ctx context.Context) error { return l.next.Ready(ctx) }

// Transcribe waits for a free slot, then calls the wrapped backend.
func (l *Limited) Transcribe(ctx context.Context, audio Audio) ([]Segment, Info, error) {
	start := time.Now()
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, Info{}, err
	}
	defer l.sem.Release(1)
	observability.ObserveQueueWait(l.next.Name(), time.Since(start))

	release := observability.TrackInFlight(l.next.Name())
	defer release()

	return l.next.Transcribe(ctx, audio)
}

// Size returns the guard width
func (l *Limited) Size() int64 { return l.size }
