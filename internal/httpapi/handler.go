package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lexiqai/transcriber/internal/apperr"
	"github.com/lexiqai/transcriber/internal/observability"
	"github.com/lexiqai/transcriber/internal/transcription"
)

// FileField is the multipart field holding the upload
const FileField = "file"

// TranscribeResponse is the success body
type TranscribeResponse struct {
	Text string `json:"text"`
}

// TranscribeHandler serves POST /transcribe
type TranscribeHandler struct {
	service *transcription.Service
}

// NewTranscribeHandler creates a handler around a shared service
func NewTranscribeHandler(service *transcription.Service) *TranscribeHandler {
	return &TranscribeHandler{service: service}
}

// RegisterRoutes mounts the handler on r
func (h *TranscribeHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/transcribe", h.Transcribe)
}

// Transcribe reads the "file" part into memory and returns its transcript
func (h *TranscribeHandler) Transcribe(c *gin.Context) {
	header, err := c.FormFile(FileField)
	if err != nil {
		if apperr.IsBodyTooLarge(err) {
			writeError(c, err)
			return
		}
		// No multipart body, no "file" part, or a malformed body
		writeError(c, apperr.MissingFile().WithCause(err))
		return
	}

	// Parts larger than the in-memory limit spill to temp files. net/http only
	// cleans up the form of the original request, not of this context copy.
	if form := c.Request.MultipartForm; form != nil {
		defer form.RemoveAll()
	}

	file, err := header.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.service.Transcribe(c.Request.Context(), data, header.Filename)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, TranscribeResponse{Text: result.Text})
}

// writeError maps err onto a status and the {"detail","code","retryable"} body
func writeError(c *gin.Context, err error) {
	appErr := apperr.FromError(err)
	observability.RecordError(string(appErr.Code))

	logger := zerolog.Ctx(c.Request.Context())
	event := logger.Warn()
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		event = logger.Error()
	}
	if cause := errors.Unwrap(appErr); cause != nil {
		event = event.Err(cause)
	}
	event.
		Str("code", string(appErr.Code)).
		Int("status", appErr.HTTPStatus).
		Msg("Transcription request failed")

	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}
