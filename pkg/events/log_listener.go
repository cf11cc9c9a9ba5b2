package events

import (
	"context"

	"github.com/grovetools/wsync/pkg/workspace"
	"github.com/sirupsen/logrus"
)

// LogListener logs a one-line summary of every event.
type LogListener struct {
	Logger *logrus.Entry
}

// HandleEvent logs the event at info level, or warn when units failed.
func (l *LogListener) HandleEvent(ctx context.Context, ev Event) {
	counts := ev.Results.Counts()
	entry := l.Logger.WithFields(logrus.Fields{
		"pass":     ev.PassID.String(),
		"location": ev.Location,
		"units":    len(ev.Results),
		"imported": counts[workspace.StatusImported],
		"existing": counts[workspace.StatusExisting],
		"replaced": counts[workspace.StatusReplaced],
		"failed":   counts[workspace.StatusFailed],
	})
	if counts[workspace.StatusFailed] > 0 {
		entry.WithError(ev.Results.Err()).Warn("Workspace update finished with failures")
		return
	}
	entry.Info("Workspace update finished")
}
