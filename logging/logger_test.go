package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLoggers(t *testing.T) {
	t.Cleanup(func() {
		loggersMu.Lock()
		loggers = make(map[string]*logrus.Entry)
		loggersMu.Unlock()
	})
}

func TestNewLogger(t *testing.T) {
	t.Setenv("WSYNC_HOME", t.TempDir())
	resetLoggers(t)

	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.Data["component"])

	// Cached per component
	assert.Same(t, logger, NewLogger("test-component"))
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{}})

	entry := logger.WithField("component", "test")
	entry.WithField("location", "core").Info("Test message")

	output := buf.String()
	assert.Contains(t, output, "[INFO]")
	assert.Contains(t, output, "test")
	assert.Contains(t, output, "Test message")
	assert.Contains(t, output, "location=core")
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string
		notWant []string
	}{
		{
			name:   "default format",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "test message",
				Data: logrus.Fields{
					"component": "test-component",
					"key1":      "value1",
				},
			},
			want: []string{"[INFO]", "test-component", "test message", "key1=value1"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "warning message",
				Data: logrus.Fields{
					"component": "test-component",
				},
			},
			want:    []string{"[WARN]", "warning message"},
			notWant: []string{"test-component"},
		},
		{
			name:   "caller information with function name",
			config: FormatConfig{},
			entry: func() *logrus.Entry {
				logger := logrus.New()
				logger.SetReportCaller(true)
				return &logrus.Entry{
					Logger:  logger,
					Level:   logrus.InfoLevel,
					Message: "test message with caller",
					Data: logrus.Fields{
						"component": "test-component",
					},
					Caller: &runtime.Frame{
						File:     "/path/to/file.go",
						Line:     42,
						Function: "github.com/example/package.TestFunction",
					},
				}
			}(),
			want: []string{"[INFO]", "test message with caller", "[file.go:42 package.TestFunction]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TextFormatter{Config: tt.config}
			tt.entry.Time = tt.entry.Time.UTC()

			output, err := formatter.Format(tt.entry)
			require.NoError(t, err)

			for _, want := range tt.want {
				assert.Contains(t, string(output), want)
			}
			for _, notWant := range tt.notWant {
				assert.NotContains(t, string(output), notWant)
			}
		})
	}
}

func TestTextFormatterSortsFields(t *testing.T) {
	formatter := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	output, err := formatter.Format(&logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "pass finished",
		Data:    logrus.Fields{"units": 3, "failed": 1, "location": "core"},
	})
	require.NoError(t, err)

	line := string(output)
	assert.Less(t, strings.Index(line, "failed="), strings.Index(line, "location="))
	assert.Less(t, strings.Index(line, "location="), strings.Index(line, "units="))
}

func TestNewHonoursEnvironment(t *testing.T) {
	t.Setenv("WSYNC_HOME", t.TempDir())
	t.Setenv("WSYNC_LOG_LEVEL", "debug")
	t.Setenv("WSYNC_LOG_CALLER", "true")

	entry := New("env-test", Config{Level: "error"})
	assert.Equal(t, logrus.DebugLevel, entry.Logger.GetLevel())
	assert.True(t, entry.Logger.ReportCaller)
}

func TestNewJSONPreset(t *testing.T) {
	t.Setenv("WSYNC_HOME", t.TempDir())
	t.Setenv("WSYNC_LOG_LEVEL", "")

	entry := New("json-test", Config{Level: "warn", Format: FormatConfig{Preset: "json"}})
	assert.Equal(t, logrus.WarnLevel, entry.Logger.GetLevel())
	_, ok := entry.Logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestFileSink(t *testing.T) {
	t.Setenv("WSYNC_LOG_LEVEL", "")
	logPath := filepath.Join(t.TempDir(), "logs", "wsync.log")

	entry := New("file-test", Config{
		File:   FileSinkConfig{Enabled: true, Path: logPath},
		Format: FormatConfig{StructuredToStderr: "never"},
	})
	entry.Info("written to file")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
