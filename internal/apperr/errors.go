// Package apperr defines the error taxonomy surfaced at the HTTP boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBackendUnreachable means every candidate chat endpoint failed.
	ErrBackendUnreachable = errors.New("backend unreachable")
	// ErrParseFailure means a document could not be structured.
	ErrParseFailure = errors.New("parse failure")
	// ErrValidationFailure means the caller sent something it can fix.
	ErrValidationFailure = errors.New("validation failure")
)

// DomainError carries a user-facing message alongside a taxonomy sentinel.
type DomainError struct {
	Kind    error
	Message string
	Details any
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is lets errors.Is match the taxonomy sentinel.
func (e *DomainError) Is(target error) bool {
	return e.Kind == target
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// BackendUnreachable wraps the last probe failure.
func BackendUnreachable(err error) *DomainError {
	return &DomainError{Kind: ErrBackendUnreachable, Message: "無法連線到對話服務，請確認網路連線。", Err: err}
}

// ParseFailure builds a parse error; message may come from the upstream service.
func ParseFailure(message string, err error) *DomainError {
	if message == "" {
		message = "無法解析文件。"
	}
	return &DomainError{Kind: ErrParseFailure, Message: message, Err: err}
}

// Validation builds a validation error.
func Validation(message string, details any) *DomainError {
	return &DomainError{Kind: ErrValidationFailure, Message: message, Details: details}
}

// HTTPStatus maps an error to its response status and error code.
func HTTPStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrValidationFailure):
		return http.StatusBadRequest, "validation_failure"
	case errors.Is(err, ErrParseFailure):
		return http.StatusUnprocessableEntity, "parse_failure"
	case errors.Is(err, ErrBackendUnreachable):
		return http.StatusBadGateway, "backend_unreachable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// PublicMessage returns the message safe to show an end user.
func PublicMessage(err error) string {
	var de *DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return "Internal Server Error"
}
