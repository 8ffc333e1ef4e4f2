// Package apperr maps transcription failures onto HTTP responses.
//
// Every error leaving the HTTP layer is an *AppError carrying a stable
// machine-readable code, the status to send, and whether a retry may help.
// Internal causes are kept for logging and never serialized.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lexiqai/transcriber/internal/stt"
)

// StatusClientClosedRequest is the nginx convention for a client that hung up
const StatusClientClosedRequest = 499

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	CodeMissingFile          ErrorCode = "MISSING_FILE"
	CodePayloadTooLarge      ErrorCode = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMediaType ErrorCode = "UNSUPPORTED_MEDIA_TYPE"
	CodeUnsupportedAudio     ErrorCode = "UNSUPPORTED_AUDIO"
	CodeRateLimited          ErrorCode = "RATE_LIMITED"
	CodeServiceUnavailable   ErrorCode = "SERVICE_UNAVAILABLE"
	CodeTimeout              ErrorCode = "TIMEOUT"
	CodeRequestCanceled      ErrorCode = "REQUEST_CANCELED"
	CodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// MissingFileMessage is the detail returned when no file part was uploaded
const MissingFileMessage = "No audio file provided"

// AppError is the unified application error type.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Retryable  bool
	Cause      error
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Response is the JSON body sent to clients.
type Response struct {
	Detail    string    `json:"detail"`
	Code      ErrorCode `json:"code"`
	Retryable bool      `json:"retryable"`
}

// ToResponse converts an AppError to its client-facing body.
func (e *AppError) ToResponse() Response {
	return Response{
		Detail:    e.Message,
		Code:      e.Code,
		Retryable: e.Retryable,
	}
}

// --- Constructors ---

// MissingFile is returned when the request has no "file" part.
func MissingFile() *AppError {
	return &AppError{
		Code: CodeMissingFile, Message: MissingFileMessage,
		HTTPStatus: http.StatusBadRequest,
	}
}

// PayloadTooLarge is returned when the body exceeds the upload limit.
func PayloadTooLarge(limit int64) *AppError {
	msg := "Audio file exceeds the maximum upload size"
	if limit > 0 {
		msg = fmt.Sprintf("%s of %d bytes", msg, limit)
	}
	return &AppError{
		Code: CodePayloadTooLarge, Message: msg,
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
}

// UnsupportedMediaType is returned when strict sniffing rejects the upload.
func UnsupportedMediaType(detected string) *AppError {
	return &AppError{
		Code: CodeUnsupportedMediaType, Message: fmt.Sprintf("Uploaded file is not audio (detected %s)", detected),
		HTTPStatus: http.StatusUnsupportedMediaType,
	}
}

// UnsupportedAudio is returned when the backend cannot decode the upload.
func UnsupportedAudio(cause error) *AppError {
	return &AppError{
		Code: CodeUnsupportedAudio, Message: "The audio could not be decoded. Please upload a supported audio format.",
		HTTPStatus: http.StatusUnprocessableEntity, Cause: cause,
	}
}

// RateLimited is returned when the backend throttles us.
func RateLimited(cause error) *AppError {
	return &AppError{
		Code: CodeRateLimited, Message: "Too many requests. Please wait a moment and try again.",
		HTTPStatus: http.StatusTooManyRequests, Retryable: true, Cause: cause,
	}
}

// ServiceUnavailable is returned when the backend cannot be reached.
func ServiceUnavailable(cause error) *AppError {
	return &AppError{
		Code: CodeServiceUnavailable, Message: "The speech-to-text backend is temporarily unavailable. Please try again.",
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true, Cause: cause,
	}
}

// Timeout is returned when transcription exceeds its deadline.
func Timeout(cause error) *AppError {
	return &AppError{
		Code: CodeTimeout, Message: "Transcription took too long. Please try again with a shorter file.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true, Cause: cause,
	}
}

// Canceled is returned when the client went away mid-request.
func Canceled(cause error) *AppError {
	return &AppError{
		Code: CodeRequestCanceled, Message: "Request was canceled by the client.",
		HTTPStatus: StatusClientClosedRequest, Cause: cause,
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: CodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}

// FromError classifies any error returned by the transcription path.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case IsBodyTooLarge(err):
		return PayloadTooLarge(maxBytesLimit(err)).WithCause(err)
	case errors.Is(err, stt.ErrUnsupportedAudio):
		return UnsupportedAudio(err)
	case errors.Is(err, stt.ErrRateLimited):
		return RateLimited(err)
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout(err)
	case errors.Is(err, context.Canceled):
		return Canceled(err)
	case errors.Is(err, stt.ErrUnavailable):
		return ServiceUnavailable(err)
	default:
		return Internal(err)
	}
}

// IsBodyTooLarge reports whether err came from an http.MaxBytesReader limit.
func IsBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	// mime/multipart does not always wrap the reader error
	return err != nil && strings.Contains(err.Error(), "request body too large")
}

func maxBytesLimit(err error) int64 {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return mbe.Limit
	}
	return 0
}
