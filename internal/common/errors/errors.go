// Package errors provides the standardized error taxonomy for the lead wizard.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Missing lead-routing identifiers. Fatal to the current step, never retried.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// Local form checks. Never sent to the backend.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// success:false with structured errors.
	ErrCodeBackendRejected ErrorCode = "BACKEND_REJECTED"
	// Network failures, non-2xx, undecodable payloads.
	ErrCodeTransport ErrorCode = "TRANSPORT_ERROR"
	// Response superseded by a newer request in the same slot.
	ErrCodeStaleResponse ErrorCode = "STALE_RESPONSE"
	// Action not legal from the current step.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	// Marketplace fetch degraded to the fallback plan list.
	ErrCodeMarketplaceDegraded ErrorCode = "MARKETPLACE_DEGRADED"
	ErrCodeCorruptMetadata     ErrorCode = "CORRUPT_METADATA"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// FieldError is a single field-scoped message, either from local validation or
// from the backend's `{field, message}` error list.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode    `json:"code"`
	Message   string       `json:"message"`
	Details   string       `json:"details,omitempty"`
	Retryable bool         `json:"retryable"`
	Fields    []FieldError `json:"fields,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any *StandardError carrying the same code, so the sentinels below
// work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrConfiguration     = &StandardError{Code: ErrCodeConfiguration}
	ErrValidation        = &StandardError{Code: ErrCodeValidationFailed}
	ErrBackendRejected   = &StandardError{Code: ErrCodeBackendRejected}
	ErrTransport         = &StandardError{Code: ErrCodeTransport}
	ErrStaleResponse     = &StandardError{Code: ErrCodeStaleResponse}
	ErrInvalidTransition = &StandardError{Code: ErrCodeInvalidTransition}
	ErrSessionNotFound   = &StandardError{Code: ErrCodeSessionNotFound}
	ErrCorruptMetadata   = &StandardError{Code: ErrCodeCorruptMetadata}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewConfigurationError reports missing lead-routing configuration.
func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfiguration,
		Message:   "Missing lead configuration. Configure environment variables for stage pipeline, lead source and campus.",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError carries one entry per offending field.
func NewValidationError(fields []FieldError) *StandardError {
	msg := "Validation failed"
	if len(fields) > 0 {
		msg = fields[0].Message
	}
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   msg,
		Details:   joinFields(fields),
		Retryable: false,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

// NewBackendRejectedError wraps a success:false response. Message is the first
// structured error message, or empty when the backend sent none.
func NewBackendRejectedError(operation string, fields []FieldError) *StandardError {
	msg := ""
	if len(fields) > 0 {
		msg = strings.TrimSpace(fields[0].Message)
	}
	return &StandardError{
		Code:      ErrCodeBackendRejected,
		Message:   msg,
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportError wraps a failed round trip to the backend.
func NewTransportError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransport,
		Message:   err.Error(),
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStaleResponseError marks a response that lost a race to a newer request.
func NewStaleResponseError(slot string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStaleResponse,
		Message:   "Response superseded by a newer request",
		Details:   fmt.Sprintf("slot: %s", slot),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError reports an action issued from the wrong step.
func NewInvalidTransitionError(action, step string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   fmt.Sprintf("Action %q is not available from step %q", action, step),
		Details:   fmt.Sprintf("action: %s, step: %s", action, step),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Wizard session not found",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewMarketplaceDegradedError(reason string, err error) *StandardError {
	details := reason
	if err != nil {
		details = fmt.Sprintf("%s: %s", reason, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeMarketplaceDegraded,
		Message:   "Marketplace unavailable, using estimated plans",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewCorruptMetadataError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCorruptMetadata,
		Message:   "Lead metadata is corrupt",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// IsRetryableErrorCode reports whether the user may simply try the action again.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeBackendRejected, ErrCodeTransport, ErrCodeMarketplaceDegraded:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeConfiguration:
		return "CONFIGURATION"
	case ErrCodeValidationFailed, ErrCodeInvalidTransition:
		return "VALIDATION"
	case ErrCodeBackendRejected:
		return "BACKEND"
	case ErrCodeTransport, ErrCodeStaleResponse:
		return "TRANSPORT"
	case ErrCodeMarketplaceDegraded:
		return "DEGRADED"
	case ErrCodeCorruptMetadata:
		return "DATA"
	default:
		return "OTHER"
	}
}

func joinFields(fields []FieldError) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return strings.Join(parts, ", ")
}
