package domain

import (
	"fmt"
	"strings"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrValidation     = "VALIDATION_ERROR"
	ErrNotFoundCode   = "NOT_FOUND"
	ErrSessionExpired = "SESSION_NOT_FOUND"
	ErrMatrixInvalid  = "MATRIX_INVALID"
	ErrProbabilitySum = "PROBABILITY_SUM"
	ErrGeneration     = "GENERATION_ERROR"
	ErrDatabaseError  = "DATABASE_ERROR"
	ErrAuthentication = "AUTHENTICATION_ERROR"
	ErrRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// MatrixValidationError is returned by exports that require a valid LR matrix.
type MatrixValidationError struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (e *MatrixValidationError) Error() string {
	return fmt.Sprintf("invalid LR matrix: %s", strings.Join(e.Errors, "; "))
}

// ProbabilitySumError reports a tier whose a priori probabilities do not sum to 1.0.
type ProbabilitySumError struct {
	TierLevel int     `json:"tier_level"`
	Sum       float64 `json:"sum"`
	Tolerance float64 `json:"tolerance"`
}

func (e *ProbabilitySumError) Error() string {
	return fmt.Sprintf("prior probabilities for tier %d sum to %.3f, must sum to 1.0", e.TierLevel, e.Sum)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message string, details interface{}, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
