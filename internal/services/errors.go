package services

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput is returned when an upload is attempted with an empty payload
var ErrInvalidInput = errors.New("invalid input: empty payload")

// ErrUploadFailed matches every image relay failure, including parse failures
var ErrUploadFailed = errors.New("image upload failed")

// UploadFailedError reports a non-200 answer or a transport failure from the media host.
// Body holds the raw response for diagnostics when one was received.
type UploadFailedError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image upload failed: %v", e.Err)
	}
	return fmt.Sprintf("image upload failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *UploadFailedError) Unwrap() error { return e.Err }

func (e *UploadFailedError) Is(target error) bool { return target == ErrUploadFailed }

// UploadParseError is returned when a successful upload response carries no usable secure_url
type UploadParseError struct {
	Body string
	Err  error
}

func (e *UploadParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image upload response not understood: %v", e.Err)
	}
	return "image upload response has no secure_url field"
}

func (e *UploadParseError) Unwrap() error { return e.Err }

func (e *UploadParseError) Is(target error) bool { return target == ErrUploadFailed }

// FieldError describes one rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a submission is missing fields or carries unparseable values
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}
