package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Target platform errors
	ErrCodeTargetNotFound      ErrorCode = "TARGET_NOT_FOUND"
	ErrCodeTargetInvalid       ErrorCode = "TARGET_INVALID"
	ErrCodeLocationUnresolved  ErrorCode = "LOCATION_UNRESOLVED"
	ErrCodeUnknownLocationKind ErrorCode = "UNKNOWN_LOCATION_KIND"
	ErrCodeResourceUnavailable ErrorCode = "RESOURCE_UNAVAILABLE"

	// Workspace errors
	ErrCodeWorkspaceLocked ErrorCode = "WORKSPACE_LOCKED"
	ErrCodeImportFailed    ErrorCode = "IMPORT_FAILED"
	ErrCodeImportConflict  ErrorCode = "IMPORT_CONFLICT"

	// Synchronization errors
	ErrCodeSyncFailed ErrorCode = "SYNC_FAILED"
	ErrCodeTaskPanic  ErrorCode = "TASK_PANIC"

	// Daemon errors
	ErrCodeDaemonNotRunning ErrorCode = "DAEMON_NOT_RUNNING"

	// General errors
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
)

// WsyncError represents a structured error with context
type WsyncError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *WsyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *WsyncError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *WsyncError) WithDetail(key string, value interface{}) *WsyncError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *WsyncError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new WsyncError
func New(code ErrorCode, message string) *WsyncError {
	return &WsyncError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a WsyncError
func Wrap(err error, code ErrorCode, message string) *WsyncError {
	return &WsyncError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific WsyncError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	wsErr, ok := err.(*WsyncError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	if wsErr.Code == code {
		return true
	}
	return Is(wsErr.Cause, code)
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	wsErr, ok := err.(*WsyncError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return wsErr.Code
}

// As returns the outermost WsyncError in the chain, if any.
func As(err error) (*WsyncError, bool) {
	for err != nil {
		if wsErr, ok := err.(*WsyncError); ok {
			return wsErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
