package dto

import (
	"net/http"
	"strings"

	"github.com/freshtable/billing/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Billing error codes
const (
	// ErrCodeNotFound is used when a referenced record does not exist
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeInvalidState is used when a transition is not allowed in the current status
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeInsufficientBalance is used when credit or balance cannot cover the amount
	ErrCodeInsufficientBalance = "ERR_INSUFFICIENT_BALANCE"
	// ErrCodeCrossTenant is used when records of different customers are mixed
	ErrCodeCrossTenant = "ERR_CROSS_TENANT"
	// ErrCodePersistence is used when the store failed mid-operation
	ErrCodePersistence = "ERR_PERSISTENCE_ERROR"
)

// Idempotency error codes
const (
	// ErrCodeIdempotencyInFlight is used when the first request holding a key has not finished
	ErrCodeIdempotencyInFlight = "ERR_IDEMPOTENCY_IN_FLIGHT"
	// ErrCodeIdempotencyKeyInvalid is used for malformed Idempotency-Key headers
	ErrCodeIdempotencyKeyInvalid = "ERR_IDEMPOTENCY_KEY_INVALID"
	// ErrCodeIdempotencyKeyReused is used when a key is sent again with a different body
	ErrCodeIdempotencyKeyReused = "ERR_IDEMPOTENCY_KEY_REUSED"
)

// ErrorCodeHTTPStatus maps transport-level error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeInvalidState:        http.StatusConflict,
	ErrCodeInsufficientBalance: http.StatusUnprocessableEntity,
	ErrCodeCrossTenant:         http.StatusForbidden,
	ErrCodePersistence:         http.StatusInternalServerError,

	ErrCodeIdempotencyInFlight:   http.StatusConflict,
	ErrCodeIdempotencyKeyInvalid: http.StatusBadRequest,
	ErrCodeIdempotencyKeyReused:  http.StatusUnprocessableEntity,
}

// ErrorKindHTTPStatus maps domain error kinds to HTTP status codes
var ErrorKindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:        http.StatusBadRequest,
	shared.KindNotFound:          http.StatusNotFound,
	shared.KindStateConflict:     http.StatusConflict,
	shared.KindInsufficientFunds: http.StatusUnprocessableEntity,
	shared.KindCrossTenant:       http.StatusForbidden,
	shared.KindPersistence:       http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// GetKindHTTPStatus returns the HTTP status code for a domain error kind
func GetKindHTTPStatus(kind shared.ErrorKind) int {
	if status, ok := ErrorKindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode prefixes a domain error code with ERR_.
// Codes already in that format pass through.
func NormalizeErrorCode(code string) string {
	if code == "" {
		return ErrCodeUnknown
	}
	if strings.HasPrefix(code, "ERR_") {
		return code
	}
	return "ERR_" + code
}
