// Package route forwards batches of application log records to Sentry.
//
// A SentryRoute receives the records the host logging pipeline collected,
// keeps those matching its filter and captures each one through the reporting
// client of a named host component. The Manager plays the host dispatcher and
// Handler connects log/slog to it.
package route

// Record is one logged event as produced by the host logging pipeline.
type Record struct {
	Message  string `json:"message" binding:"required"`
	Level    string `json:"level"`
	Category string `json:"category"`
	// Timestamp is Unix time in seconds.
	Timestamp float64 `json:"timestamp"`
}

// Frame is one entry of a framework stack trace embedded in a log message.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
	Class    string `json:"class"`
}
