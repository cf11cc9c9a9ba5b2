package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/wsync/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to out.
func NewErrorHandler(out io.Writer, verbose bool) *ErrorHandler {
	return &ErrorHandler{Verbose: verbose, Out: out}
}

// Handle prints a message for err based on its code and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	t := DefaultTheme
	prefix := t.Error.Render("Error:")
	wsErr, _ := errors.As(err)
	detail := func(key string) interface{} {
		if wsErr == nil {
			return nil
		}
		return wsErr.Details[key]
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "%s no wsync.yml found.\n", prefix)
		fmt.Fprintln(h.Out, t.Muted.Render("Create one in this directory or pass --config."))

	case errors.ErrCodeTargetNotFound, errors.ErrCodeTargetInvalid:
		fmt.Fprintf(h.Out, "%s %v\n", prefix, err)
		fmt.Fprintln(h.Out, t.Muted.Render("Check target.active in wsync.yml; 'wsync schema' prints the definition format."))

	case errors.ErrCodeWorkspaceLocked:
		fmt.Fprintf(h.Out, "%s the workspace is in use", prefix)
		if pid, ok := detail("pid").(int); ok && pid > 0 {
			fmt.Fprintf(h.Out, " by process %d", pid)
		}
		fmt.Fprintln(h.Out, ".")
		fmt.Fprintln(h.Out, t.Muted.Render("Wait for the running pass or raise workspace.lock_timeout."))

	case errors.ErrCodeDaemonNotRunning:
		fmt.Fprintf(h.Out, "%s %v\n", prefix, err)
		fmt.Fprintln(h.Out, t.Muted.Render("Start it with 'wsync daemon start'."))

	default:
		fmt.Fprintf(h.Out, "%s %v\n", prefix, err)
	}

	if h.Verbose && wsErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", wsErr.ToJSON())
	}
	return err
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch errors.GetCode(err) {
	case "":
		if err == nil {
			return 0
		}
		return 1
	case errors.ErrCodeConfigNotFound, errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation,
		errors.ErrCodeTargetNotFound, errors.ErrCodeTargetInvalid, errors.ErrCodeInvalidInput:
		return 2
	case errors.ErrCodeWorkspaceLocked:
		return 3
	default:
		return 1
	}
}
