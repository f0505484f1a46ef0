package util

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes surfaced to callers.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeIllegalTransition = "ILLEGAL_TRANSITION"
	CodeAPI               = "API_ERROR"
	CodeNetwork           = "NETWORK_ERROR"
	CodeDecode            = "DECODE_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
	// Remote is true when Message came from the server response body.
	Remote bool
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code, so errors.Is(err, &DomainError{Code: CodeNotFound}) works.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewIllegalTransition reports a status change the lifecycle forbids.
func NewIllegalTransition(from, to string) error {
	return NewDomainError(CodeIllegalTransition,
		fmt.Sprintf("cannot move occurrence from %s to %s", from, to),
		http.StatusConflict,
		map[string]any{"from": from, "to": to})
}

// NewNetworkError wraps a transport failure (no response received).
func NewNetworkError(err error) error {
	return &DomainError{Code: CodeNetwork, Message: "network request failed", Err: err}
}

// NewDecodeError wraps a malformed or unexpected response payload.
func NewDecodeError(what string, err error) error {
	return &DomainError{Code: CodeDecode, Message: fmt.Sprintf("malformed %s response", what), Err: err}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// FromStatus maps an HTTP error response to a DomainError. message is the
// server-provided text, possibly empty.
func FromStatus(status int, message string) *DomainError {
	code := CodeAPI
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = CodeValidation
	case http.StatusUnauthorized:
		code = CodeUnauthorized
	case http.StatusForbidden:
		code = CodeForbidden
	case http.StatusNotFound:
		code = CodeNotFound
	case http.StatusConflict:
		code = CodeConflict
	}
	de := &DomainError{Code: code, HTTPStatus: status, Message: strings.TrimSpace(message), Remote: true}
	if de.Message == "" {
		de.Remote = false
		de.Message = strings.ToLower(http.StatusText(status))
		if de.Message == "" {
			de.Message = fmt.Sprintf("request failed with status %d", status)
		}
	}
	return de
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// UserMessage returns the text to show in a transient notification: the
// server-provided or validation message when there is one, fallback otherwise.
func UserMessage(err error, fallback string) string {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return fallback
	}
	if domainErr.Remote || domainErr.Code == CodeValidation || domainErr.Code == CodeIllegalTransition {
		if domainErr.Message != "" {
			return domainErr.Message
		}
	}
	return fallback
}

// FieldErrors extracts per-field validation messages, if any.
func FieldErrors(err error) map[string]string {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != CodeValidation {
		return nil
	}
	out := make(map[string]string, len(domainErr.Details))
	for field, msg := range domainErr.Details {
		if s, ok := msg.(string); ok {
			out[field] = s
		}
	}
	return out
}
