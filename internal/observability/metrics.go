package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request metrics
	transcriptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_requests_total",
		Help: "Total number of transcription requests by backend and outcome",
	}, []string{"backend", "status"})

	transcriptionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcriber_latency_seconds",
		Help:    "End-to-end transcription latency in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"backend"})

	inFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "transcriber_inflight_requests",
		Help: "Number of transcriptions currently running on the backend",
	}, []string{"backend"})

	queueWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcriber_queue_wait_seconds",
		Help:    "Time spent waiting for a free backend slot",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
	}, []string{"backend"})

	// Payload metrics
	audioBytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriber_audio_bytes_total",
		Help: "Total audio bytes received for transcription",
	})

	segmentsReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcriber_segments",
		Help:    "Number of segments returned per transcription",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_errors_total",
		Help: "Total number of errors returned to clients by code",
	}, []string{"code"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "transcriber_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// Metrics tracks metrics for a single transcription request
type Metrics struct {
	backend   string
	startTime time.Time
	mu        sync.Mutex
	finished  bool
}

// NewRequestMetrics starts tracking a transcription on the given backend
func NewRequestMetrics(backend string) *Metrics {
	return &Metrics{
		backend:   backend,
		startTime: time.Now(),
	}
}

// RecordEnd records the outcome once; later calls are ignored
func (m *Metrics) RecordEnd(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finished {
		return
	}
	m.finished = true

	transcriptionLatency.WithLabelValues(m.backend).Observe(time.Since(m.startTime).Seconds())
	transcriptionRequests.WithLabelValues(m.backend, status).Inc()
}

// RecordAudioBytes records uploaded audio size
func (m *Metrics) RecordAudioBytes(bytes int) {
	audioBytesReceived.Add(float64(bytes))
}

// RecordSegments records how many segments the backend returned
func (m *Metrics) RecordSegments(n int) {
	segmentsReturned.Observe(float64(n))
}

// RecordError records an error code sent to a client
func RecordError(code string) {
	errorsTotal.WithLabelValues(code).Inc()
}

// ObserveQueueWait records how long a request waited for a backend slot
func ObserveQueueWait(backend string, d time.Duration) {
	queueWait.WithLabelValues(backend).Observe(d.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns its release func
func TrackInFlight(backend string) func() {
	g := inFlight.WithLabelValues(backend)
	g.Inc()
	return g.Dec
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
