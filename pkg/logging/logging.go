package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	ctrl "sigs.k8s.io/controller-runtime"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes LogLevel satisfy the fmt.Stringer interface.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo // Default to INFO for unknown
	}
}

// ParseLevel converts a case-insensitive level name into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
)

// InitForCLI initializes the logging system writing text records to output.
// It also installs the same handler as the controller-runtime logger so that
// informer and cache internals share the configured level and destination.
func InitForCLI(filterLevel LogLevel, output io.Writer) {
	opts := &slog.HandlerOptions{
		Level: filterLevel.SlogLevel(),
	}
	handler := slog.NewTextHandler(output, opts)

	mu.Lock()
	defaultLogger = slog.New(handler)
	mu.Unlock()

	slog.SetDefault(defaultLogger)
	initControllerRuntimeLogger(handler)
}

// initControllerRuntimeLogger bridges controller-runtime's logr based logging
// into the slog handler.
func initControllerRuntimeLogger(handler slog.Handler) {
	if handler == nil {
		return
	}
	ctrl.SetLogger(logr.FromSlogHandler(handler))
}

// Logr returns a logr.Logger for the given subsystem backed by the configured
// handler. It is meant for libraries that expect a logr.Logger.
func Logr(subsystem string) logr.Logger {
	mu.RLock()
	logger := defaultLogger
	mu.RUnlock()

	if logger == nil {
		return logr.Discard()
	}
	return logr.FromSlogHandler(logger.Handler()).WithValues("subsystem", subsystem)
}

func logInternal(level LogLevel, subsystem string, err error, messageFmt string, args ...interface{}) {
	mu.RLock()
	logger := defaultLogger
	mu.RUnlock()

	if logger == nil || !logger.Enabled(context.Background(), level.SlogLevel()) {
		return
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}

	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	logger.LogAttrs(context.Background(), level.SlogLevel(), msg, attrs...)
}

// Debug logs a debug message.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an informational message.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warning message.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error message.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}

// Fatal logs an error to stderr regardless of configuration and exits.
func Fatal(subsystem string, err error, messageFmt string, args ...interface{}) {
	msg := fmt.Sprintf(messageFmt, args...)
	fmt.Fprintf(os.Stderr, "%s [FATAL] [%s] %s: %v\n", time.Now().Format(time.RFC3339), subsystem, msg, err)
	os.Exit(1)
}
