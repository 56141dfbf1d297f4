package common

import (
	"context"
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

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

// Pipeline failure sentinels, matched by the typed errors below through errors.Is.
var (
	ErrDocumentFormat    = errors.New("document format error")
	ErrExtraction        = errors.New("extraction error")
	ErrProvider          = errors.New("provider error")
	ErrMalformedResponse = errors.New("malformed response error")
	ErrPersistence       = errors.New("persistence error")
)

// ErrorKind is the value stored in processing_errors.kind.
type ErrorKind string

const (
	KindDocumentFormat    ErrorKind = "DocumentFormatError"
	KindExtraction        ErrorKind = "ExtractionError"
	KindProvider          ErrorKind = "ProviderError"
	KindMalformedResponse ErrorKind = "MalformedResponseError"
	KindPersistence       ErrorKind = "PersistenceError"
	KindCanceled          ErrorKind = "Canceled"
	KindInternal          ErrorKind = "InternalError"
)

// DocumentFormatError means the input bytes are not a parseable PDF.
type DocumentFormatError struct {
	Reason string
	Cause  error
}

func (e *DocumentFormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("document format: %s: %v", e.Reason, e.Cause)
	}
	return "document format: " + e.Reason
}

func (e *DocumentFormatError) Unwrap() error        { return e.Cause }
func (e *DocumentFormatError) Is(target error) bool { return target == ErrDocumentFormat }

// ExtractionError means OCR produced no usable text on any page.
type ExtractionError struct {
	Pages    int
	Warnings []string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction: no usable text on any of %d page(s)", e.Pages)
}

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// ProviderFailure classifies why an LLM provider call failed.
type ProviderFailure string

const (
	ProviderNetwork     ProviderFailure = "network"
	ProviderAuth        ProviderFailure = "auth"
	ProviderQuota       ProviderFailure = "quota"
	ProviderTimeout     ProviderFailure = "timeout"
	ProviderUnavailable ProviderFailure = "unavailable"
)

// ProviderError is the common shape every provider adapter folds its failures into.
type ProviderError struct {
	Provider string
	Reason   ProviderFailure
	Status   int // HTTP status when known
	Cause    error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s: %s", e.Provider, e.Reason)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error        { return e.Cause }
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// MalformedResponseError means the provider answered but the output was not valid JSON
// for the report schema. Raw keeps the provider output for diagnosis.
type MalformedResponseError struct {
	Provider string
	Raw      string
	Cause    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Provider, e.Cause)
}

func (e *MalformedResponseError) Unwrap() error        { return e.Cause }
func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// PersistenceError means the storage layer rejected a read or write.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error        { return e.Cause }
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// KindOf maps err to the kind recorded for a failed attempt.
func KindOf(err error) ErrorKind {
	var (
		dfe *DocumentFormatError
		exe *ExtractionError
		pve *ProviderError
		mre *MalformedResponseError
		pse *PersistenceError
	)
	switch {
	case errors.As(err, &dfe):
		return KindDocumentFormat
	case errors.As(err, &exe):
		return KindExtraction
	case errors.As(err, &pve):
		return KindProvider
	case errors.As(err, &mre):
		return KindMalformedResponse
	case errors.As(err, &pse):
		return KindPersistence
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindInternal
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InternalErrorf(format string, args ...any) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// ToStatus converts a service error into a gRPC status error.
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
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrDocumentFormat):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrExtraction), errors.Is(err, ErrMalformedResponse):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrProvider):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
