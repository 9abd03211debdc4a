package route

import (
	"strings"

	"github.com/getsentry/sentry-go"
)

var severityLevels = map[string]sentry.Level{
	"profile": sentry.LevelDebug,
	"trace":   sentry.LevelDebug,
	"debug":   sentry.LevelDebug,
	"info":    sentry.LevelInfo,
	"warning": sentry.LevelWarning,
	"warn":    sentry.LevelWarning,
	"error":   sentry.LevelError,
	"fatal":   sentry.LevelFatal,
}

// MapSeverity converts a log level name to a Sentry level, ignoring case.
// Unknown levels map to sentry.LevelError.
func MapSeverity(level string) sentry.Level {
	if severity, ok := severityLevels[strings.ToLower(level)]; ok {
		return severity
	}
	return sentry.LevelError
}
