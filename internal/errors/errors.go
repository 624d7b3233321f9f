// Package errors provides the node's standardized application error type.
//
// Handlers, consumers, and background workers report failures as *AppError
// where they construct or wrap an error, giving callers a stable error code, an HTTP status
// mapping, and a propagation-policy Kind (malformed input, a transient
// dependency failure, delivery to a stale socket, or a fatal bug) without
// needing to inspect error strings.
//
// ERROR CODE CATEGORIES:
// - Client Errors (400-499): Input validation, bad requests, rate limiting
// - Authentication (401-403): session/auth failures, forbidden operations
// - Not Found (404): missing conversations, messages, or other resources
// - Server Errors (500-599): database, cache, broker, and presence failures
// - Configuration Errors: missing environment variables, initialization failures
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents the standardized error codes used across this node's packages
type ErrorCode string

// ErrorKind classifies an ErrorCode into one of the propagation-policy
// buckets: client-caused malformed input, a transient dependency failure,
// delivery to a socket that has since closed, or an unrecoverable bug.
type ErrorKind int

const (
	KindMalformed ErrorKind = iota
	KindTransient
	KindStale
	KindFatal
)

// kindByCode maps each ErrorCode to its propagation-policy bucket.
// Codes not present here default to KindFatal.
var kindByCode = map[ErrorCode]ErrorKind{
	ErrBadRequest:            KindMalformed,
	ErrValidationFailed:      KindMalformed,
	ErrMissingRequiredField:  KindMalformed,
	ErrInvalidDataType:       KindMalformed,
	ErrInvalidConversationID: KindMalformed,

	ErrDatabaseError:       KindTransient,
	ErrCacheError:          KindTransient,
	ErrServiceUnavailable:  KindTransient,
	ErrBrokerError:         KindTransient,
	ErrPresenceUnavailable: KindTransient,

	ErrResourceNotFound:     KindStale,
	ErrConversationNotFound: KindStale,
	ErrMessageNotFound:      KindStale,
}

// Kind returns this error's propagation-policy bucket.
func (e *AppError) Kind() ErrorKind {
	if kind, ok := kindByCode[e.Code]; ok {
		return kind
	}
	return KindFatal
}

// ERROR CODE CONSTANTS
const (
	// CLIENT ERRORS (400-499) - User input and request validation issues
	ErrBadRequest            ErrorCode = "BAD_REQUEST"             // Malformed request body or invalid JSON
	ErrValidationFailed      ErrorCode = "VALIDATION_ERROR"        // Input validation failed (length, format, etc.)
	ErrMissingRequiredField  ErrorCode = "MISSING_REQUIRED_FIELD"  // Required fields missing from request
	ErrInvalidDataType       ErrorCode = "INVALID_DATA_TYPE"       // Wrong data type for field
	ErrInvalidConversationID ErrorCode = "INVALID_CONVERSATION_ID" // Invalid conversation ID format
	ErrRateLimitExceeded     ErrorCode = "RATE_LIMIT_EXCEEDED"     // Too many requests from client

	// AUTHENTICATION & AUTHORIZATION (401-403) - Security and access control
	ErrMissingAPIKey ErrorCode = "MISSING_API_KEY" // ANTHROPIC_API_KEY not provided
	ErrInvalidAPIKey ErrorCode = "INVALID_API_KEY" // Invalid or expired API key
	ErrUnauthorized  ErrorCode = "UNAUTHORIZED"    // Authentication failed
	ErrForbidden     ErrorCode = "FORBIDDEN"       // Access denied for resource

	// NOT FOUND (404) - Resource availability issues
	ErrResourceNotFound     ErrorCode = "RESOURCE_NOT_FOUND"     // Generic resource not found
	ErrConversationNotFound ErrorCode = "CONVERSATION_NOT_FOUND" // Chat conversation not found
	ErrMessageNotFound      ErrorCode = "MESSAGE_NOT_FOUND"      // Message not found in the durable store

	// SERVER ERRORS (500-599) - Internal system failures
	ErrInternalServer     ErrorCode = "INTERNAL_SERVER_ERROR" // Generic internal error
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"   // Service temporarily down
	ErrDatabaseError      ErrorCode = "DATABASE_ERROR"        // PostgreSQL operation failed
	ErrCacheError         ErrorCode = "CACHE_ERROR"           // Redis hot-window operation failed
	ErrBrokerError        ErrorCode = "BROKER_ERROR"          // AMQP publish/consume failure
	ErrPresenceUnavailable ErrorCode = "PRESENCE_UNAVAILABLE" // Presence registry lookup timed out or failed

	// CONFIGURATION ERRORS - Service setup and initialization issues
	ErrMissingEnvVar         ErrorCode = "MISSING_ENV_VAR"         // Required environment variable missing
	ErrInvalidConfiguration  ErrorCode = "INVALID_CONFIGURATION"   // Invalid configuration values
	ErrServiceNotInitialized ErrorCode = "SERVICE_NOT_INITIALIZED" // Service dependency not ready
)

// StatusCodes provides automatic mapping from error codes to appropriate HTTP status codes
var StatusCodes = map[ErrorCode]int{
	// Client Errors (400s) - Issues with user input or requests
	ErrBadRequest:            http.StatusBadRequest,      // 400 - Bad Request
	ErrValidationFailed:      http.StatusBadRequest,      // 400 - Bad Request
	ErrMissingRequiredField:  http.StatusBadRequest,      // 400 - Bad Request
	ErrInvalidDataType:       http.StatusBadRequest,      // 400 - Bad Request
	ErrInvalidConversationID: http.StatusBadRequest,      // 400 - Bad Request
	ErrRateLimitExceeded:     http.StatusTooManyRequests, // 429 - Too Many Requests

	// Authentication & Authorization (401-403) - Security issues
	ErrMissingAPIKey: http.StatusUnauthorized, // 401 - Unauthorized
	ErrInvalidAPIKey: http.StatusUnauthorized, // 401 - Unauthorized
	ErrUnauthorized:  http.StatusUnauthorized, // 401 - Unauthorized
	ErrForbidden:     http.StatusForbidden,    // 403 - Forbidden

	// Not Found (404) - Missing resources
	ErrResourceNotFound:     http.StatusNotFound, // 404 - Not Found
	ErrConversationNotFound: http.StatusNotFound, // 404 - Not Found
	ErrMessageNotFound:      http.StatusNotFound, // 404 - Not Found

	// Server Errors (500s) - Internal system issues
	ErrInternalServer:      http.StatusInternalServerError, // 500 - Internal Server Error
	ErrServiceUnavailable:  http.StatusServiceUnavailable,  // 503 - Service Unavailable
	ErrDatabaseError:       http.StatusInternalServerError, // 500 - Internal Server Error
	ErrCacheError:          http.StatusInternalServerError, // 500 - Internal Server Error
	ErrBrokerError:         http.StatusBadGateway,          // 502 - Bad Gateway (broker failure)
	ErrPresenceUnavailable: http.StatusServiceUnavailable,  // 503 - Service Unavailable

	// Configuration Errors - Service setup issues
	ErrMissingEnvVar:         http.StatusInternalServerError, // 500 - Internal Server Error
	ErrInvalidConfiguration:  http.StatusInternalServerError, // 500 - Internal Server Error
	ErrServiceNotInitialized: http.StatusServiceUnavailable,  // 503 - Service Unavailable
}

// AppError represents a structured application error with rich metadata
// Provides consistent error format across all services for debugging and user feedback
type AppError struct {
	Code      ErrorCode   `json:"error"`                // Standardized error code for programmatic handling
	Message   string      `json:"message"`              // Human-readable error message for users
	Details   interface{} `json:"details,omitempty"`    // Additional error context (validation failures, etc.)
	RequestID string      `json:"request_id,omitempty"` // Unique request ID for tracing across services
	Timestamp time.Time   `json:"timestamp"`            // When the error occurred
}

// Error implements the standard Go error interface
// Provides a string representation of the error for logging and debugging
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StatusCode returns the appropriate HTTP status code for this error
// Uses the StatusCodes mapping to ensure consistent HTTP responses
func (e *AppError) StatusCode() int {
	if code, ok := StatusCodes[e.Code]; ok {
		return code
	}
	return http.StatusInternalServerError // Default fallback for unmapped errors
}

// New creates a new AppError with basic error code and message
// Used for simple error cases without additional context
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewWithDetails creates a new AppError with additional context information
// Used for validation errors or cases requiring detailed error information
func NewWithDetails(code ErrorCode, message string, details interface{}) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// WithRequestID adds a request ID to the error for request tracing
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// Wrap converts a standard Go error into an AppError with specified error code
// Preserves existing AppErrors while standardizing other error types
func Wrap(err error, code ErrorCode) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr // Already an AppError, return as-is
	}
	return New(code, err.Error()) // Convert standard error to AppError
}

// IsAppError checks if an error is an AppError and returns it for type assertion
// Used by handlers to determine if an error should be handled as a structured application error
func IsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}
