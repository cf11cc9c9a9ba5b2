package errors

import (
	"fmt"
	"testing"
	"time"
)

func TestWsyncError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeTargetNotFound, "target not found")
	if err.Code != ErrCodeTargetNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeTargetNotFound, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeSyncFailed, "sync failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	// Test Is function
	if !Is(wrapped, ErrCodeSyncFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeTargetNotFound) {
		t.Error("Is should return false for non-matching code")
	}

	// Test WithDetail
	detailed := err.WithDetail("location", "core").WithDetail("depth", 1)
	if detailed.Details["location"] != "core" {
		t.Error("WithDetail should add details")
	}
}

func TestIsFollowsNestedCauses(t *testing.T) {
	inner := LocationUnresolved("upstream", fmt.Errorf("dial tcp: timeout"))
	outer := Wrap(inner, ErrCodeSyncFailed, "pass failed")
	stdWrapped := fmt.Errorf("background: %w", outer)

	if !Is(stdWrapped, ErrCodeSyncFailed) {
		t.Error("Is should see through fmt.Errorf wrapping")
	}
	if !Is(stdWrapped, ErrCodeLocationUnresolved) {
		t.Error("Is should match codes of nested causes")
	}
	if GetCode(stdWrapped) != ErrCodeSyncFailed {
		t.Errorf("GetCode should return the outermost code, got %s", GetCode(stdWrapped))
	}

	wsErr, ok := As(stdWrapped)
	if !ok || wsErr != outer {
		t.Error("As should return the outermost WsyncError")
	}
	if _, ok := As(fmt.Errorf("plain")); ok {
		t.Error("As should not match plain errors")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := UnknownLocationKind("core", "svn")
	if err.Code != ErrCodeUnknownLocationKind {
		t.Errorf("expected code %s, got %s", ErrCodeUnknownLocationKind, err.Code)
	}
	if err.Details["kind"] != "svn" {
		t.Error("UnknownLocationKind should include kind detail")
	}

	err = WorkspaceLocked("/ws", 4242, 3*time.Second)
	if err.Code != ErrCodeWorkspaceLocked {
		t.Errorf("expected code %s, got %s", ErrCodeWorkspaceLocked, err.Code)
	}
	if err.Details["pid"] != 4242 {
		t.Error("WorkspaceLocked should include pid detail")
	}
	if err.Details["timeout"] != "3s" {
		t.Errorf("unexpected timeout detail %v", err.Details["timeout"])
	}

	err = ImportConflict("project:core", "/ws/core")
	if err.Details["path"] != "/ws/core" {
		t.Error("ImportConflict should include path detail")
	}
}
