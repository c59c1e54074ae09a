package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeMissingField = "MISSING_REQUIRED_FIELD"
	ErrCodeBadRecord    = "INVALID_RECORD_TYPE"
	ErrCodeFetch        = "FETCH_FAILED"
	ErrCodeParse        = "PAGE_PARSE_FAILED"
	ErrCodeExport       = "EXPORT_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HarvestError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type HarvestError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *HarvestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *HarvestError) Unwrap() error {
	return e.Err
}

// NewHarvestError creates a new HarvestError.
func NewHarvestError(code, message string, err error) *HarvestError {
	return &HarvestError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *HarvestError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// MissingFieldError builds the fatal validation error for a record type
// missing one of its required fields. The record is rejected; the run
// continues with the next record.
func MissingFieldError(t RecordType, field string) *HarvestError {
	return NewHarvestError(
		ErrCodeMissingField,
		fmt.Sprintf("missing required field %q for record type %s", field, t),
		nil,
	)
}
