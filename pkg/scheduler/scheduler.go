// Package scheduler runs submitted tasks asynchronously, at most once per
// submission, and reports their outcome.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/wsync/errors"
)

// Task is a unit of work.
type Task func(ctx context.Context) error

// Scheduler accepts tasks for asynchronous execution.
type Scheduler interface {
	Submit(name string, task Task) *Handle
}

// Handle tracks one submission.
type Handle struct {
	ID   uuid.UUID
	Name string

	done chan struct{}
	err  error
}

func newHandle(name string) *Handle {
	return &Handle{ID: uuid.New(), Name: name, done: make(chan struct{})}
}

func (h *Handle) finish(err error) {
	h.err = err
	close(h.done)
}

// Done is closed when the task has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the task's error once Done is closed, nil before.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Severity classifies a Status.
type Severity string

const (
	SeverityOK    Severity = "ok"
	SeverityError Severity = "error"
)

// Status describes how a task ended.
type Status struct {
	TaskID    uuid.UUID
	Name      string
	Severity  Severity
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

func (s Status) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%s (%s): %s after %s: %v", s.Name, s.TaskID, s.Severity, s.Duration, s.Err)
	}
	return fmt.Sprintf("%s (%s): %s after %s", s.Name, s.TaskID, s.Severity, s.Duration)
}

// run executes task, converting a panic into a TASK_PANIC error, and
// returns the resulting status.
func run(ctx context.Context, h *Handle, task Task) (status Status) {
	status = Status{TaskID: h.ID, Name: h.Name, Severity: SeverityOK, StartedAt: time.Now()}
	defer func() {
		if rec := recover(); rec != nil {
			status.Err = errors.New(errors.ErrCodeTaskPanic, fmt.Sprintf("task %s panicked: %v", h.Name, rec)).
				WithDetail("stack", string(debug.Stack()))
		}
		status.Duration = time.Since(status.StartedAt)
		if status.Err != nil {
			status.Severity = SeverityError
		}
	}()
	status.Err = task(ctx)
	return status
}
