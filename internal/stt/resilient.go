package stt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lexiqai/transcriber/internal/observability"
	"github.com/lexiqai/transcriber/internal/resilience"
)

// ResilienceConfig holds circuit breaker and retry settings for one backend
type ResilienceConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
	Retry        *resilience.RetryConfig
}

// Resilient guards a backend with a circuit breaker and retries transient failures.
// Only availability failures count against the breaker; bad audio and
// caller cancellations pass straight through.
type Resilient struct {
	next    Recognizer
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
}

// NewResilient wraps next with a breaker named after the backend
func NewResilient(next Recognizer, cfg ResilienceConfig) *Resilient {
	name := next.Name()
	logger := observability.GetLogger()

	breaker := resilience.NewCircuitBreaker(name, cfg.MaxFailures, cfg.ResetTimeout,
		resilience.WithFailureFilter(countsAsFailure),
		resilience.WithStateChangeHook(func(service string, from, to resilience.CircuitState) {
			observability.UpdateCircuitBreakerState(service, int(to))
			logger.Warn().
				Str("backend", service).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		}),
	)
	observability.UpdateCircuitBreakerState(name, int(resilience.StateClosed))

	return &Resilient{
		next:    next,
		breaker: breaker,
		retry:   cfg.Retry,
	}
}

// Name returns the wrapped backend name.
func (r *Resilient) Name() string { return r.next.Name() }

// Ready fails fast while the circuit is open.
func (r *Resilient) Ready(ctx context.Context) error {
	if state, requests, failures, _ := r.breaker.GetStats(); state == resilience.StateOpen {
		return &BackendError{
			Backend: r.next.Name(),
			Kind:    ErrUnavailable,
			Err:     fmt.Errorf("%w after %d of %d requests failed", resilience.ErrCircuitOpen, failures, requests),
		}
	}
	return r.next.Ready(ctx)
}

// Transcribe calls the backend through the breaker, retrying retryable failures.
func (r *Resilient) Transcribe(ctx context.Context, audio Audio) ([]Segment, Info, error) {
	var (
		segments []Segment
		info     Info
	)

	err := resilience.Retry(ctx, func(ctx context.Context) error {
		return r.breaker.Call(func() error {
			s, i, err := r.next.Transcribe(ctx, audio)
			if err != nil {
				if countsAsFailure(err) {
					observability.IncrementCircuitBreakerFailures(r.next.Name())
				}
				return err
			}
			segments, info = s, i
			return nil
		})
	}, r.retry, IsRetryable)

	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, Info{}, &BackendError{Backend: r.next.Name(), Kind: ErrUnavailable, Err: err}
	}
	if err != nil {
		return nil, Info{}, err
	}
	return segments, info, nil
}

// State returns the breaker state
func (r *Resilient) State() resilience.CircuitState {
	return r.breaker.GetState()
}
