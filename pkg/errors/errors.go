package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound            = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidation          = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrTenantNotConfigured = NewError("TENANT_NOT_CONFIGURED", "tenant has no webhook configuration", http.StatusNotFound)
	ErrInternal            = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	ErrConflict            = NewError("CONFLICT", "resource conflict", http.StatusConflict)
	ErrUnauthorized        = NewError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized)
	ErrForbidden           = NewError("FORBIDDEN", "forbidden", http.StatusForbidden)
	ErrTimeout             = NewError("TIMEOUT", "operation timed out", http.StatusRequestTimeout)
	ErrServiceUnavailable  = NewError("SERVICE_UNAVAILABLE", "service unavailable", http.StatusServiceUnavailable)
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
		msg = detailMsg
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports a match on Code so that errors.Is(err, ErrTenantNotConfigured)
// holds for copies made with WithCause/WithDetail.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	return !e.permanentCode()
}

func (e *Error) IsFatal() bool {
	if e.retryable != nil {
		return !*e.retryable
	}

	if e.Cause != nil {
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return fatalErr.IsFatal()
		}
	}

	return e.permanentCode()
}

func (e *Error) permanentCode() bool {
	switch e.Code {
	case ErrValidation.Code, ErrNotFound.Code, ErrTenantNotConfigured.Code:
		return true
	}
	return false
}

func (e *Error) WithCause(cause error) *Error {
	err := e.clone()
	err.Cause = cause
	return err
}

func (e *Error) WithMessage(msg string) *Error {
	return e.WithDetail("message", msg)
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := e.clone()
	err.Details[key] = value
	return err
}

func (e *Error) AsRetryable() *Error {
	err := e.clone()
	retryable := true
	err.retryable = &retryable
	return err
}

func (e *Error) AsFatal() *Error {
	err := e.clone()
	retryable := false
	err.retryable = &retryable
	return err
}

func (e *Error) clone() *Error {
	err := *e
	err.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		err.Details[k] = v
	}
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the JSON body returned by HTTP handlers on failure.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	ErrorCode string                 `json:"error_code"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func ToErrorResponse(err error) ErrorResponse {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	msg := appErr.Message
	details := make(map[string]interface{}, len(appErr.Details))
	for k, v := range appErr.Details {
		if k == "message" {
			if s, ok := v.(string); ok && s != "" {
				msg = s
			}
			continue
		}
		details[k] = v
	}
	if appErr.Cause != nil && appErr.Status < http.StatusInternalServerError {
		details["cause"] = appErr.Cause.Error()
	}
	if len(details) == 0 {
		details = nil
	}

	return ErrorResponse{
		Error:     msg,
		ErrorCode: appErr.Code,
		Details:   details,
	}
}
