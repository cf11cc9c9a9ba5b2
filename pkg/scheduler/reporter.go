package scheduler

import (
	"time"

	"github.com/sirupsen/logrus"
)

// StatusReporter receives the status of every finished task.
type StatusReporter interface {
	Report(s Status)
}

// ReporterFunc adapts a function to the StatusReporter interface.
type ReporterFunc func(s Status)

// Report calls f.
func (f ReporterFunc) Report(s Status) {
	f(s)
}

// Reporters fans a status out to several reporters.
type Reporters []StatusReporter

// Report calls every reporter in order.
func (rs Reporters) Report(s Status) {
	for _, r := range rs {
		if r != nil {
			r.Report(s)
		}
	}
}

// LogReporter logs failed tasks at error level and others at debug.
type LogReporter struct {
	Logger *logrus.Entry
}

// Report logs s.
func (r *LogReporter) Report(s Status) {
	entry := r.Logger.WithFields(logrus.Fields{
		"task":     s.Name,
		"task_id":  s.TaskID.String(),
		"duration": s.Duration.Round(time.Millisecond),
	})
	if s.Err != nil {
		entry.WithError(s.Err).Error("Background task failed")
		return
	}
	entry.Debug("Background task finished")
}
