package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error kinds. Match with errors.Is.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrPreprocess          = errors.New("preprocess failed")
	ErrMalformedResponse   = errors.New("malformed provider response")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrAllProvidersFailed  = errors.New("all providers failed")
	ErrPersistence         = errors.New("persistence error")
	ErrUnsupportedFormat   = errors.New("unsupported export format")
)

// Error codes carried on AppError.
const (
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodePreprocess          = "PREPROCESS_ERROR"
	CodeMalformedResponse   = "MALFORMED_RESPONSE"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeAllProvidersFailed  = "ALL_PROVIDERS_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodePersistence         = "PERSISTENCE_ERROR"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeUnsupportedFormat   = "UNSUPPORTED_FORMAT"
	CodeConfig              = "CONFIG_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// kindError joins a sentinel with the concrete cause so both match errors.Is.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// Kind builds an AppError whose chain contains both kind and cause.
func Kind(code string, kind error, message string, cause error) *AppError {
	return NewAppError(code, message, &kindError{kind: kind, cause: cause})
}

func PreprocessError(message string, cause error) error {
	return Kind(CodePreprocess, ErrPreprocess, message, cause)
}

func MalformedResponseError(message string, cause error) error {
	return Kind(CodeMalformedResponse, ErrMalformedResponse, message, cause)
}

func ProviderUnavailableError(provider string, cause error) error {
	return Kind(CodeProviderUnavailable, ErrProviderUnavailable, provider, cause)
}

func AllProvidersFailedError(last error) error {
	return Kind(CodeAllProvidersFailed, ErrAllProvidersFailed, "extraction failed", last)
}

func PersistenceError(message string, cause error) error {
	return Kind(CodePersistence, ErrPersistence, message, cause)
}

func UnsupportedFileTypeError(message string) error {
	return Kind(CodeUnsupportedFileType, ErrUnsupportedFileType, message, nil)
}

func FileTooLargeError(size, limit int) error {
	return Kind(CodeFileTooLarge, ErrFileTooLarge, fmt.Sprintf("%d bytes exceeds limit of %d", size, limit), nil)
}

func UnsupportedFormatError(format string) error {
	return Kind(CodeUnsupportedFormat, ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", format), nil)
}

func NotFoundf(format string, args ...any) error {
	return Kind(CodeNotFound, ErrNotFound, fmt.Sprintf(format, args...), nil)
}

func InvalidInputf(format string, args ...any) error {
	return Kind(CodeInvalidInput, ErrInvalidInput, fmt.Sprintf(format, args...), nil)
}

// ToStatus maps the error taxonomy onto gRPC status codes.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnsupportedFileType),
		errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrPreprocess):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrAllProvidersFailed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
