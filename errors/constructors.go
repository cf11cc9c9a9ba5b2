package errors

import (
	"fmt"
	"time"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *WsyncError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *WsyncError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// TargetNotFound creates a target definition not found error
func TargetNotFound(path string) *WsyncError {
	return New(ErrCodeTargetNotFound, fmt.Sprintf("target definition not found: %s", path)).
		WithDetail("path", path)
}

// TargetInvalid creates an invalid target definition error
func TargetInvalid(path string, err error) *WsyncError {
	return Wrap(err, ErrCodeTargetInvalid, fmt.Sprintf("invalid target definition: %s", path)).
		WithDetail("path", path)
}

// LocationUnresolved records why a target location could not be resolved
func LocationUnresolved(location string, err error) *WsyncError {
	return Wrap(err, ErrCodeLocationUnresolved, fmt.Sprintf("location '%s' could not be resolved", location)).
		WithDetail("location", location)
}

// UnknownLocationKind creates an error for a location kind without a resolver
func UnknownLocationKind(location, kind string) *WsyncError {
	return New(ErrCodeUnknownLocationKind, fmt.Sprintf("location '%s' has unsupported kind '%s'", location, kind)).
		WithDetail("location", location).
		WithDetail("kind", kind)
}

// WorkspaceLocked creates a workspace lock timeout error
func WorkspaceLocked(root string, holder int, timeout time.Duration) *WsyncError {
	return New(ErrCodeWorkspaceLocked,
		fmt.Sprintf("workspace '%s' is locked by process %d (waited %s)", root, holder, timeout)).
		WithDetail("root", root).
		WithDetail("pid", holder).
		WithDetail("timeout", timeout.String())
}

// ImportFailed creates a per-unit import failure
func ImportFailed(unit string, err error) *WsyncError {
	return Wrap(err, ErrCodeImportFailed, fmt.Sprintf("failed to import %s", unit)).
		WithDetail("unit", unit)
}

// ImportConflict creates an error for an unmanaged file blocking an import
func ImportConflict(unit, path string) *WsyncError {
	return New(ErrCodeImportConflict, fmt.Sprintf("cannot import %s: %s already exists and is not managed", unit, path)).
		WithDetail("unit", unit).
		WithDetail("path", path)
}
