// Package llmerrors provides error classification for upstream model calls.
package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrorType categorizes upstream failures for retry and metrics.
type ErrorType int8

const (
	// ErrorTypeRateLimit represents 429 and quota errors.
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents 5xx server errors.
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents a successful call with no content.
	ErrorTypeEmptyResponse
	// ErrorTypeAuth represents 401/403.
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents other 4xx request errors.
	ErrorTypeBadPrompt
	// ErrorTypeTimeout represents a per-attempt deadline.
	ErrorTypeTimeout
	// ErrorTypeUnknown represents unclassified errors.
	ErrorTypeUnknown
)

func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error represents a classified upstream error.
type Error struct {
	Err        error     // Wrapped underlying error
	Message    string    // Human-readable error message
	BodyStub   string    // First portion of response body
	Type       ErrorType // Classified error type
	StatusCode int       // HTTP status code if known
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("LLM error (%s): %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("LLM error (%s): %v", e.Type.String(), e.Err)
	}
	return fmt.Sprintf("LLM error (%s): status %d", e.Type.String(), e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UpstreamError is the executor's final failure after the retry loop.
type UpstreamError struct {
	Err     error
	Status  int // 0 when no HTTP status was observed
	Attempt int // 1-based attempt that produced Err
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream call failed with status %d on attempt %d: %v", e.Status, e.Attempt, e.Err)
	}
	return fmt.Sprintf("upstream call failed on attempt %d: %v", e.Attempt, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is checks if an error is of a specific type.
func Is(err error, errorType ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == errorType
	}
	return false
}

// TypeOf returns the error type of an error, or ErrorTypeUnknown if not classified.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var llmErr *Error
	if errors.As(err, &llmErr) && llmErr.StatusCode != 0 {
		return llmErr.StatusCode
	}
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Status
	}
	return 0
}

func NewError(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

func NewErrorWithStatus(errorType ErrorType, statusCode int, message string) *Error {
	return &Error{Type: errorType, StatusCode: statusCode, Message: message}
}

func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{Type: errorType, Err: cause, Message: message}
}

// TypeForStatus maps an HTTP status to an ErrorType.
func TypeForStatus(status int) ErrorType {
	switch {
	case status == 429:
		return ErrorTypeRateLimit
	case status == 401 || status == 403:
		return ErrorTypeAuth
	case status >= 500:
		return ErrorTypeTransient
	case status >= 400:
		return ErrorTypeBadPrompt
	default:
		return ErrorTypeUnknown
	}
}

var statusCodeRegex = regexp.MustCompile(`\b(400|401|403|404|408|409|413|422|429|500|502|503|504)\b`)

// ExtractStatusCode finds an HTTP status in an SDK error message.
func ExtractStatusCode(msg string) int {
	match := statusCodeRegex.FindString(msg)
	if match == "" {
		return 0
	}
	code, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return code
}

// Classify turns a provider SDK error into an *Error, keeping an existing classification.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCause(ErrorTypeTimeout, err, provider+" request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return NewErrorWithCause(ErrorTypeUnknown, err, provider+" request canceled")
	}

	msg := err.Error()
	status := ExtractStatusCode(msg)
	errType := TypeForStatus(status)
	lower := strings.ToLower(msg)
	if status == 0 {
		switch {
		case strings.Contains(lower, "rate limit") || strings.Contains(lower, "resource exhausted") || strings.Contains(lower, "quota"):
			errType = ErrorTypeRateLimit
		case strings.Contains(lower, "unavailable") || strings.Contains(lower, "overloaded"):
			errType = ErrorTypeTransient
		}
	}
	return &Error{
		Type:       errType,
		StatusCode: status,
		Err:        err,
		Message:    fmt.Sprintf("%s API error: %s", provider, Stub(msg, 200)),
	}
}

// Stub truncates s to at most n bytes for logs.
func Stub(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
