package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced, stable error code for Nebula core errors.
type ErrorCode string

// Key error codes
const (
	KEY_EMPTY              ErrorCode = "KEY_EMPTY"
	KEY_INVALID_CHARACTERS ErrorCode = "KEY_INVALID_CHARACTERS"
	KEY_TOO_LONG           ErrorCode = "KEY_TOO_LONG"
)

// Validation and client error codes
const (
	VALIDATION_FAILED      ErrorCode = "VALIDATION_FAILED"
	SCHEMA_VALIDATION      ErrorCode = "SCHEMA_VALIDATION"
	NOT_FOUND              ErrorCode = "NOT_FOUND"
	ALREADY_EXISTS         ErrorCode = "ALREADY_EXISTS"
	INVALID_INPUT          ErrorCode = "INVALID_INPUT"
	PERMISSION_DENIED      ErrorCode = "PERMISSION_DENIED"
	AUTHENTICATION_FAILED  ErrorCode = "AUTHENTICATION_FAILED"
	AUTHORIZATION_FAILED   ErrorCode = "AUTHORIZATION_FAILED"
	SERIALIZATION_FAILED   ErrorCode = "SERIALIZATION_FAILED"
	CONFLICT               ErrorCode = "CONFLICT"
	PRECONDITION_FAILED    ErrorCode = "PRECONDITION_FAILED"
	REQUEST_TOO_LARGE      ErrorCode = "REQUEST_TOO_LARGE"
	UNSUPPORTED_MEDIA_TYPE ErrorCode = "UNSUPPORTED_MEDIA_TYPE"
)

// System and operational error codes
const (
	TIMEOUT              ErrorCode = "TIMEOUT"
	CIRCUIT_BREAKER_OPEN ErrorCode = "CIRCUIT_BREAKER_OPEN"
	BULKHEAD_FULL        ErrorCode = "BULKHEAD_FULL"
	RETRY_LIMIT_EXCEEDED ErrorCode = "RETRY_LIMIT_EXCEEDED"
	POOL_EXHAUSTED       ErrorCode = "POOL_EXHAUSTED"
	INTERNAL             ErrorCode = "INTERNAL"
	CANCELLED            ErrorCode = "CANCELLED"
)

// Value error codes
const (
	TYPE_MISMATCH       ErrorCode = "TYPE_MISMATCH"
	OUT_OF_RANGE        ErrorCode = "OUT_OF_RANGE"
	ARITHMETIC_OVERFLOW ErrorCode = "ARITHMETIC_OVERFLOW"
	DIVISION_BY_ZERO    ErrorCode = "DIVISION_BY_ZERO"
	LIMIT_EXCEEDED      ErrorCode = "LIMIT_EXCEEDED"
	NOT_COMPARABLE      ErrorCode = "NOT_COMPARABLE"
)

// Domain error codes
const (
	WORKFLOW_INVALID           ErrorCode = "WORKFLOW_INVALID"
	WORKFLOW_DEADLOCK          ErrorCode = "WORKFLOW_DEADLOCK"
	NODE_FAILED                ErrorCode = "NODE_FAILED"
	TRIGGER_FAILED             ErrorCode = "TRIGGER_FAILED"
	CONNECTOR_FAILED           ErrorCode = "CONNECTOR_FAILED"
	CREDENTIAL_NOT_FOUND       ErrorCode = "CREDENTIAL_NOT_FOUND"
	CREDENTIAL_INVALID         ErrorCode = "CREDENTIAL_INVALID"
	CREDENTIAL_EXPIRED         ErrorCode = "CREDENTIAL_EXPIRED"
	REFRESH_FAILED             ErrorCode = "REFRESH_FAILED"
	EXECUTION_FAILED           ErrorCode = "EXECUTION_FAILED"
	EXPRESSION_INVALID         ErrorCode = "EXPRESSION_INVALID"
	VARIABLE_RESOLUTION_FAILED ErrorCode = "VARIABLE_RESOLUTION_FAILED"
)

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Cryptography error codes
const (
	CRYPTO_ENCRYPT_FAILED ErrorCode = "CRYPTO_ENCRYPT_FAILED"
	CRYPTO_DECRYPT_FAILED ErrorCode = "CRYPTO_DECRYPT_FAILED"
	CRYPTO_KEY_NOT_FOUND  ErrorCode = "CRYPTO_KEY_NOT_FOUND"
)

// ErrorCategory partitions error codes into coarse classes used by the
// resilience layer and API boundary.
type ErrorCategory string

const (
	// CategoryClient marks errors caused by the caller: validation,
	// not-found, bad input, permissions. Generally terminal.
	CategoryClient ErrorCategory = "client"

	// CategorySystem marks operational errors: timeouts, breaker opens,
	// exhausted pools. Often transient.
	CategorySystem ErrorCategory = "system"

	// CategoryDomain marks workflow-domain failures surfaced by nodes,
	// triggers, connectors, credentials and executions.
	CategoryDomain ErrorCategory = "domain"
)

// categoryOf maps each error code onto its category. Codes absent from the
// map default to CategorySystem.
var categoryOf = map[ErrorCode]ErrorCategory{
	KEY_EMPTY:              CategoryClient,
	KEY_INVALID_CHARACTERS: CategoryClient,
	KEY_TOO_LONG:           CategoryClient,

	VALIDATION_FAILED:      CategoryClient,
	SCHEMA_VALIDATION:      CategoryClient,
	NOT_FOUND:              CategoryClient,
	ALREADY_EXISTS:         CategoryClient,
	INVALID_INPUT:          CategoryClient,
	PERMISSION_DENIED:      CategoryClient,
	AUTHENTICATION_FAILED:  CategoryClient,
	AUTHORIZATION_FAILED:   CategoryClient,
	SERIALIZATION_FAILED:   CategoryClient,
	CONFLICT:               CategoryClient,
	PRECONDITION_FAILED:    CategoryClient,
	REQUEST_TOO_LARGE:      CategoryClient,
	UNSUPPORTED_MEDIA_TYPE: CategoryClient,

	TYPE_MISMATCH:       CategoryClient,
	OUT_OF_RANGE:        CategoryClient,
	ARITHMETIC_OVERFLOW: CategoryClient,
	DIVISION_BY_ZERO:    CategoryClient,
	LIMIT_EXCEEDED:      CategoryClient,
	NOT_COMPARABLE:      CategoryClient,

	TIMEOUT:              CategorySystem,
	CIRCUIT_BREAKER_OPEN: CategorySystem,
	BULKHEAD_FULL:        CategorySystem,
	RETRY_LIMIT_EXCEEDED: CategorySystem,
	POOL_EXHAUSTED:       CategorySystem,
	INTERNAL:             CategorySystem,
	CANCELLED:            CategorySystem,

	WORKFLOW_INVALID:           CategoryDomain,
	WORKFLOW_DEADLOCK:          CategoryDomain,
	NODE_FAILED:                CategoryDomain,
	TRIGGER_FAILED:             CategoryDomain,
	CONNECTOR_FAILED:           CategoryDomain,
	CREDENTIAL_NOT_FOUND:       CategoryDomain,
	CREDENTIAL_INVALID:         CategoryDomain,
	CREDENTIAL_EXPIRED:         CategoryDomain,
	REFRESH_FAILED:             CategoryDomain,
	EXECUTION_FAILED:           CategoryDomain,
	EXPRESSION_INVALID:         CategoryDomain,
	VARIABLE_RESOLUTION_FAILED: CategoryDomain,

	CONFIG_LOAD_FAILED:       CategoryClient,
	CONFIG_PARSE_FAILED:      CategoryClient,
	CONFIG_VALIDATION_FAILED: CategoryClient,

	CRYPTO_ENCRYPT_FAILED: CategorySystem,
	CRYPTO_DECRYPT_FAILED: CategorySystem,
	CRYPTO_KEY_NOT_FOUND:  CategoryClient,
}

// Category returns the category for a code.
func (c ErrorCode) Category() ErrorCategory {
	if cat, ok := categoryOf[c]; ok {
		return cat
	}
	return CategorySystem
}

// ErrorContext carries structured request/tenant context attached to an
// error at the API boundary. All fields are optional.
type ErrorContext struct {
	Component   string `json:"component,omitempty"`
	Operation   string `json:"operation,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	TenantID    string `json:"tenant_id,omitempty"`
	NodeID      string `json:"node_id,omitempty"`
	ExecutionID string `json:"execution_id,omitempty"`
	Attempt     int    `json:"attempt,omitempty"`
}

// Error represents a structured Nebula error with a stable code, category,
// retryability hint and optional cause. It supports error wrapping via
// Unwrap and code matching via errors.Is.
//
// Secret material must never be placed in Message or Context: errors are
// considered safe to log by construction.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
	Context   *ErrorContext
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if a cause exists.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches errors by code: target matches if it is an *Error with the
// same Code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// Category returns the error's category tag.
func (e *Error) Category() ErrorCategory { return e.Code.Category() }

// WithContext returns a shallow copy of the error carrying the given
// context. The original error is unchanged.
func (e *Error) WithContext(ctx ErrorContext) *Error {
	clone := *e
	clone.Context = &ctx
	return &clone
}

// NewError creates a non-retryable Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a non-retryable Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewRetryableError creates a retryable Error. Use for transient failures
// that may succeed when attempted again (network timeouts, expired tokens).
func NewRetryableError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: true}
}

// WrapError creates a non-retryable Error wrapping an existing cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WrapRetryableError creates a retryable Error wrapping an existing cause.
func WrapRetryableError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Retryable: true, Cause: cause}
}

// IsRetryable reports whether err carries a retryable hint anywhere in its
// chain. Non-Error values are treated as non-retryable.
func IsRetryable(err error) bool {
	var nerr *Error
	if errors.As(err, &nerr) {
		return nerr.Retryable
	}
	return false
}

// CodeOf extracts the error code from err's chain, or INTERNAL if err is
// not a structured Error.
func CodeOf(err error) ErrorCode {
	var nerr *Error
	if errors.As(err, &nerr) {
		return nerr.Code
	}
	return INTERNAL
}
