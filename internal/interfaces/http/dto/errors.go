package dto

import (
	"errors"
	"net/http"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeBodyTooLarge = "ERR_BODY_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	ErrCodeTokenRevoked = "ERR_TOKEN_REVOKED"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeIdempotencyConflict is returned when an Idempotency-Key is
	// reused with a different body or while the first request is in flight
	ErrCodeIdempotencyConflict = "ERR_IDEMPOTENCY_CONFLICT"
	ErrCodeRateLimited         = "ERR_RATE_LIMITED"
)

// Settlement rule error codes
const (
	ErrCodePeriodLocked         = "ERR_PERIOD_LOCKED"
	ErrCodeInsufficientBalance  = "ERR_INSUFFICIENT_BALANCE"
	ErrCodeDirectionMismatch    = "ERR_DIRECTION_MISMATCH"
	ErrCodeDocumentNotOpen      = "ERR_DOCUMENT_NOT_OPEN"
	ErrCodeInvalidTransition    = "ERR_INVALID_TRANSITION"
	ErrCodeHasActiveAllocations = "ERR_HAS_ACTIVE_ALLOCATIONS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeBodyTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,
	ErrCodeTokenRevoked: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeIdempotencyConflict: http.StatusConflict,
	ErrCodeRateLimited:         http.StatusTooManyRequests,

	ErrCodePeriodLocked:         http.StatusLocked,
	ErrCodeInsufficientBalance:  http.StatusUnprocessableEntity,
	ErrCodeDirectionMismatch:    http.StatusUnprocessableEntity,
	ErrCodeDocumentNotOpen:      http.StatusUnprocessableEntity,
	ErrCodeInvalidTransition:    http.StatusUnprocessableEntity,
	ErrCodeHasActiveAllocations: http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodeMapping maps domain error codes to API codes
var domainCodeMapping = map[string]string{
	settlement.CodeValidation:           ErrCodeValidation,
	settlement.CodeNotFound:             ErrCodeNotFound,
	settlement.CodePeriodLocked:         ErrCodePeriodLocked,
	settlement.CodeInsufficientBalance:  ErrCodeInsufficientBalance,
	settlement.CodeDirectionMismatch:    ErrCodeDirectionMismatch,
	settlement.CodeDocumentNotOpen:      ErrCodeDocumentNotOpen,
	settlement.CodeInvalidTransition:    ErrCodeInvalidTransition,
	settlement.CodeConcurrencyConflict:  ErrCodeConcurrencyConflict,
	settlement.CodeHasActiveAllocations: ErrCodeHasActiveAllocations,

	shared.ErrInvalidInput.Code: ErrCodeValidation,
	shared.ErrUnauthorized.Code: ErrCodeUnauthorized,
	shared.ErrForbidden.Code:    ErrCodeForbidden,
	shared.ErrInvalidState.Code: ErrCodeInvalidTransition,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainCodeMapping[code]; ok {
		return apiCode
	}
	return code
}

// RetryAfterSeconds is sent with concurrency conflicts
const RetryAfterSeconds = "1"

// APIError is the transport view of an error
type APIError struct {
	Status     int
	Code       string
	Message    string
	Details    []ValidationDetail
	RetryAfter string
}

// FromError classifies err. Errors that carry no domain code are reported
// as internal with a generic message.
func FromError(err error) APIError {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return APIError{
			Status:  http.StatusInternalServerError,
			Code:    ErrCodeInternal,
			Message: "An unexpected error occurred",
		}
	}

	code := NormalizeErrorCode(de.Code)
	out := APIError{Status: GetHTTPStatus(code), Code: code, Message: err.Error()}

	var verr *settlement.ValidationError
	if errors.As(err, &verr) {
		out.Message = "Request validation failed"
		for _, f := range verr.Fields {
			out.Details = append(out.Details, ValidationDetail{Field: f.Field, Message: f.Message})
		}
	}
	if code == ErrCodeConcurrencyConflict {
		out.RetryAfter = RetryAfterSeconds
	}
	return out
}
