// Package apperr defines the typed failures of the facade. Each kind has a
// code; the HTTP layer renders every kind as a 500 with the error text as
// detail, so the code only matters to logs and errors.Is.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Error codes
const (
	CodeAuthentication  = "AUTHENTICATION_ERROR"
	CodeProviderRequest = "PROVIDER_REQUEST_ERROR"
	CodeInvalidSchedule = "INVALID_SCHEDULE_ERROR"
	CodeLabelOperation  = "LABEL_OPERATION_ERROR"
	CodeTimeout         = "TIMEOUT_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInternalError   = "INTERNAL_ERROR"
)

// AppError is a coded error with an optional cause and log fields.
type AppError struct {
	Code    string
	Message string
	Fields  map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches another *AppError by code, so errors.Is(err, apperr.ErrTimeout) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func (e *AppError) with(key string, value any) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]any, 1)
	}
	e.Fields[key] = value
	return e
}

func newErr(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Err: cause}
}

// Authentication reports a failure loading or refreshing credentials.
func Authentication(err error) *AppError {
	return newErr(CodeAuthentication, "authentication failed", err)
}

// ProviderRequest reports a failed call to the mail provider.
func ProviderRequest(operation string, err error) *AppError {
	return newErr(CodeProviderRequest, "provider request failed: "+operation, err).with("operation", operation)
}

// InvalidSchedule reports an unparseable fire-time.
func InvalidSchedule(value string, err error) *AppError {
	return newErr(CodeInvalidSchedule, fmt.Sprintf("invalid send time %q", value), err).with("send_time", value)
}

// LabelOperation reports a failed label list or create.
func LabelOperation(name string, err error) *AppError {
	return newErr(CodeLabelOperation, fmt.Sprintf("label operation failed for %q", name), err).with("label", name)
}

// Timeout reports a provider call that exceeded its deadline.
func Timeout(operation string, err error) *AppError {
	return newErr(CodeTimeout, "operation timed out: "+operation, err).with("operation", operation)
}

func NotFound(resource string) *AppError {
	return newErr(CodeNotFound, resource+" not found", nil)
}

// Conflict reports an operation the target's current state forbids.
func Conflict(message string, err error) *AppError {
	return newErr(CodeConflict, message, err)
}

func InternalWithError(err error) *AppError {
	return newErr(CodeInternalError, "internal server error", err)
}

// Sentinels for errors.Is comparisons by kind.
var (
	ErrAuthentication  = newErr(CodeAuthentication, "authentication failed", nil)
	ErrProviderRequest = newErr(CodeProviderRequest, "provider request failed", nil)
	ErrInvalidSchedule = newErr(CodeInvalidSchedule, "invalid send time", nil)
	ErrLabelOperation  = newErr(CodeLabelOperation, "label operation failed", nil)
	ErrTimeout         = newErr(CodeTimeout, "operation timed out", nil)
	ErrNotFound        = newErr(CodeNotFound, "not found", nil)
	ErrConflict        = newErr(CodeConflict, "conflict", nil)
)

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// CodeOf returns the code of the outermost AppError in err's chain.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}

// FieldsOf merges the log fields of every AppError in err's chain, outer
// fields winning.
func FieldsOf(err error) map[string]any {
	fields := map[string]any{}
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			for k, v := range appErr.Fields {
				if _, set := fields[k]; !set {
					fields[k] = v
				}
			}
		}
		err = errors.Unwrap(err)
	}
	return fields
}

// IsTimeout reports whether err is a deadline expiry, typed or raw.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
