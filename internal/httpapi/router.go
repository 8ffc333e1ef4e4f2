// Package httpapi exposes the transcription service over HTTP.
package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/transcriber/internal/observability"
	"github.com/lexiqai/transcriber/internal/transcription"
)

// Options configures the router
type Options struct {
	MaxUploadBytes     int64
	CORSAllowedOrigins []string
	MetricsEnabled     bool

	// MultipartMemory is how much of an upload is kept in memory before
	// spilling to a temp file, DefaultMultipartMemory when zero
	MultipartMemory int64
}

// DefaultMultipartMemory matches net/http's ParseMultipartForm default
const DefaultMultipartMemory = 32 << 20

// NewRouter wires the middleware chain and all routes
func NewRouter(service *transcription.Service, opts Options) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = DefaultMultipartMemory
	if opts.MultipartMemory > 0 {
		r.MaxMultipartMemory = opts.MultipartMemory
	}
	r.Use(RequestID(), RequestLogger(), Recovery(), CORS(opts.CORSAllowedOrigins))

	r.GET("/health", gin.WrapF(observability.HealthCheckHandler()))
	r.GET("/ready", gin.WrapF(observability.ReadinessHandler(BackendCheck(service))))
	if opts.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	upload := r.Group("/")
	if opts.MaxUploadBytes > 0 {
		upload.Use(BodyLimit(opts.MaxUploadBytes))
	}
	NewTranscribeHandler(service).RegisterRoutes(upload)

	return r
}

// BackendCheck checks the shared recognizer for readiness endpoints
func BackendCheck(service *transcription.Service) observability.Check {
	return observability.Check{
		Name: service.Backend(),
		Fn: func(ctx context.Context) (bool, error) {
			if err := service.Ready(ctx); err != nil {
				return false, err
			}
			return true, nil
		},
	}
}
