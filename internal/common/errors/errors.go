// Package errors provides standardized error handling for the payments core.
package errors

import (
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
	// Input validation errors: rejected immediately, never retried.
	ErrCodeInvalidStatus    ErrorCode = "INVALID_STATUS"
	ErrCodeMissingReference ErrorCode = "MISSING_REFERENCE"
	ErrCodeInvalidPayload   ErrorCode = "INVALID_PAYLOAD"

	// Transient lookup misses: a distinct outcome, not a generic error.
	ErrCodeTransactionNotFound ErrorCode = "TRANSACTION_NOT_FOUND"

	// Storage failures.
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeStatusUpdateFailed       ErrorCode = "STATUS_UPDATE_FAILED"
	ErrCodeLogInsertFailed          ErrorCode = "LOG_INSERT_FAILED"

	// Transport failures.
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeGatewayQueryFailed     ErrorCode = "GATEWAY_QUERY_FAILED"
	ErrCodeGatewayQueryTimeout    ErrorCode = "GATEWAY_QUERY_TIMEOUT"

	// Lock contention: a normal "skip this run" signal.
	ErrCodeLockHeld ErrorCode = "LOCK_HELD"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so errors.Is/As see through the
// structured wrapper.
func (e *StandardError) Unwrap() error {
	return e.Cause
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidStatusError creates a non-retryable status validation error.
func NewInvalidStatusError(status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidStatus,
		Message:   "Reported status is not a canonical transaction status",
		Details:   fmt.Sprintf("status: %s", status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingReferenceError creates a non-retryable identifier validation error.
func NewMissingReferenceError() *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingReference,
		Message:   "Gateway reference is required",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidPayloadError creates a non-retryable webhook payload error.
func NewInvalidPayloadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPayload,
		Message:   "Webhook payload failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransactionNotFoundError marks the early-arrival outcome after retries
// are exhausted. The gateway is expected to redeliver, hence retryable.
func NewTransactionNotFoundError(reference string, attempts int) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransactionNotFound,
		Message:   "Transaction not found after retry attempts",
		Details:   fmt.Sprintf("reference: %s, attempts: %d", reference, attempts),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStatusUpdateFailedError creates a retryable transaction update error.
func NewStatusUpdateFailedError(reference string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStatusUpdateFailed,
		Message:   "Transaction status update failed",
		Details:   fmt.Sprintf("reference: %s, error: %s", reference, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLogInsertFailedError creates a retryable notification log insert error.
func NewLogInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLogInsertFailed,
		Message:   "Notification log insert failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGatewayQueryFailedError creates a retryable gateway status query error.
func NewGatewayQueryFailedError(gateway string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGatewayQueryFailed,
		Message:   fmt.Sprintf("Gateway '%s' status query error", gateway),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGatewayQueryTimeoutError creates a retryable gateway timeout error.
// Timeouts are reported as their own kind, not folded into generic failures.
func NewGatewayQueryTimeoutError(gateway string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGatewayQueryTimeout,
		Message:   fmt.Sprintf("Gateway '%s' status query timeout", gateway),
		Details:   "call exceeded configured timeout",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLockHeldError signals that another instance holds the dispatch lock.
func NewLockHeldError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLockHeld,
		Message:   "Dispatch lock already held, skipping this run",
		Details:   fmt.Sprintf("key: %s", key),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeStatusUpdateFailed,
		ErrCodeLogInsertFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeGatewayQueryFailed:
		return 3 // Retryable technical errors

	case ErrCodeGatewayQueryTimeout:
		return 2 // Partial retry for timeouts

	case ErrCodeTransactionNotFound:
		return 1 // Redelivery handled by the gateway, not locally

	default:
		return 0 // Validation errors and lock contention: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "MISSING"):
		return "VALIDATION"
	case codeStr == string(ErrCodeTransactionNotFound):
		return "EARLY_ARRIVAL"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY_EXECUTION") ||
		strings.Contains(codeStr, "UPDATE") || strings.Contains(codeStr, "INSERT"):
		return "STORAGE"
	case strings.Contains(codeStr, "GATEWAY") || strings.Contains(codeStr, "NOTIFICATION"):
		return "TRANSPORT"
	case codeStr == string(ErrCodeLockHeld):
		return "LOCK"
	default:
		return "OTHER"
	}
}
