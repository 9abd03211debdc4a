// internal/logger/app_logger.go

package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel defines the available logging levels
type LogLevel int

const (
	// Log levels
	TRACE LogLevel = 10
	DEBUG LogLevel = 20
	INFO  LogLevel = 30
	WARN  LogLevel = 40
	ERROR LogLevel = 50
	FATAL LogLevel = 60
)

// LogLevel to string mapping
var logLevelNames = map[LogLevel]string{
	TRACE: "TRACE",
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

// LogLevelNameToLevel maps string level names to level values
var LogLevelNameToLevel = map[string]LogLevel{
	"TRACE": TRACE,
	"DEBUG": DEBUG,
	"INFO":  INFO,
	"WARN":  WARN,
	"ERROR": ERROR,
	"FATAL": FATAL,
}

// String returns the upper-case name of the level.
func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// AppLogger is the application's diagnostic logger. It writes to stdout
// unless an output from NewOutput is installed with SetOutput.
type AppLogger struct {
	mu         sync.Mutex
	writer     io.Writer
	closer     io.Closer
	level      LogLevel
	showHealth bool
	exit       func(int)
}

// Global instance
var (
	defaultLogger *AppLogger
	once          sync.Once
)

// GetAppLogger returns the singleton instance of the application logger
func GetAppLogger() *AppLogger {
	once.Do(func() {
		defaultLogger = NewAppLogger(os.Stdout, WARN)
	})
	return defaultLogger
}

// NewAppLogger creates a standalone logger, mostly useful in tests.
func NewAppLogger(w io.Writer, level LogLevel) *AppLogger {
	return &AppLogger{
		writer: w,
		level:  level,
		exit:   os.Exit,
	}
}

// SetOutput replaces the writer. If w is also an io.Closer it is closed by
// Close or by the next SetOutput.
func (l *AppLogger) SetOutput(w io.Writer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var err error
	if l.closer != nil {
		err = l.closer.Close()
	}
	l.writer = w
	l.closer = nil
	if c, ok := w.(io.Closer); ok && w != io.Writer(os.Stdout) && w != io.Writer(os.Stderr) {
		l.closer = c
	}
	return err
}

// Close closes the installed output, if it needs closing, and falls back to stdout.
func (l *AppLogger) Close() error {
	return l.SetOutput(os.Stdout)
}

// SetLogLevel sets the minimum log level
func (l *AppLogger) SetLogLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetLogLevelFromString sets the log level from a string name
func (l *AppLogger) SetLogLevelFromString(levelName string) error {
	levelName = strings.ToUpper(levelName)
	level, ok := LogLevelNameToLevel[levelName]
	if !ok {
		return fmt.Errorf("invalid log level: %s", levelName)
	}
	l.SetLogLevel(level)
	return nil
}

// IsEnabled reports whether messages at level would be written.
func (l *AppLogger) IsEnabled(level LogLevel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.level
}

// SetShowHealth configures whether health check logs should be shown
func (l *AppLogger) SetShowHealth(show bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.showHealth = show
}

// IsHealthLoggingEnabled returns whether health check logs are enabled
func (l *AppLogger) IsHealthLoggingEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.showHealth
}

// logf formats and logs a message if the level is sufficient.
// The lock is only held during checks and write, not during formatting.
func (l *AppLogger) logf(level LogLevel, isHealth bool, format string, args ...interface{}) {
	l.mu.Lock()
	shouldSkip := (isHealth && !l.showHealth) || level < l.level
	l.mu.Unlock()

	if shouldSkip {
		return
	}

	now := time.Now().Format("2006-01-02T15:04:05Z07:00")
	message := fmt.Sprintf(format, args...)
	logLine := fmt.Sprintf("[%s] %s: %s\n", now, level, message)

	l.mu.Lock()
	_, _ = io.WriteString(l.writer, logLine)
	exit := l.exit
	l.mu.Unlock()

	if level == FATAL {
		exit(1)
	}
}

// Log methods for different levels

// Trace logs a message at TRACE level
func (l *AppLogger) Trace(format string, args ...interface{}) {
	l.logf(TRACE, false, format, args...)
}

// Debug logs a message at DEBUG level
func (l *AppLogger) Debug(format string, args ...interface{}) {
	l.logf(DEBUG, false, format, args...)
}

// Info logs a message at INFO level
func (l *AppLogger) Info(format string, args ...interface{}) {
	l.logf(INFO, false, format, args...)
}

// Warn logs a message at WARN level
func (l *AppLogger) Warn(format string, args ...interface{}) {
	l.logf(WARN, false, format, args...)
}

// Error logs a message at ERROR level
func (l *AppLogger) Error(format string, args ...interface{}) {
	l.logf(ERROR, false, format, args...)
}

// Fatal logs a message at FATAL level and exits the program
func (l *AppLogger) Fatal(format string, args ...interface{}) {
	l.logf(FATAL, false, format, args...)
}

// Health logs a health check message (only shown if showHealth is true)
func (l *AppLogger) Health(format string, args ...interface{}) {
	l.logf(INFO, true, format, args...)
}
