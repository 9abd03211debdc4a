package logger

import (
	"bufio"
	"bytes"
	"strings"
)

// LineWriter adapts the AppLogger to an io.Writer, logging every line
// written to it at a fixed level. The Sentry SDK's debug output uses it.
type LineWriter struct {
	logger *AppLogger
	level  LogLevel
	prefix string
}

// NewLineWriter returns a writer that logs lines at level, after stripping prefix.
func NewLineWriter(logger *AppLogger, level LogLevel, prefix string) *LineWriter {
	return &LineWriter{logger: logger, level: level, prefix: prefix}
}

// Write implements io.Writer.
func (w *LineWriter) Write(p []byte) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(p))
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), w.prefix))
		if line == "" {
			continue
		}
		w.logger.logf(w.level, false, "%s", line)
	}
	return len(p), nil
}
