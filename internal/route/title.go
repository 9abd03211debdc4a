package route

import (
	"regexp"
	"strconv"
	"strings"
)

const stackTraceMarker = "Stack trace:"

var stackTraceSuffix = regexp.MustCompile(`(?s)` + stackTraceMarker + `.+`)

// Title derives the event title from a log message: an embedded stack trace
// is cut off and every '%' is doubled so the reporting client does not treat
// it as a format verb.
func Title(message string) string {
	title := stackTraceSuffix.ReplaceAllLiteralString(message, "")
	return strings.ReplaceAll(title, "%", "%%")
}

// ParseStackTrace extracts the frames that pattern matches in message.
// Messages without a "Stack trace:" marker yield no frames. The named groups
// file, line, cls and func fill the Frame fields; missing groups stay empty.
func ParseStackTrace(pattern *regexp.Regexp, message string) []Frame {
	if pattern == nil || !strings.Contains(message, stackTraceMarker) {
		return nil
	}

	fileIdx := pattern.SubexpIndex("file")
	lineIdx := pattern.SubexpIndex("line")
	clsIdx := pattern.SubexpIndex("cls")
	funcIdx := pattern.SubexpIndex("func")

	group := func(match []string, idx int) string {
		if idx < 0 || idx >= len(match) {
			return ""
		}
		return match[idx]
	}

	var frames []Frame
	for _, match := range pattern.FindAllStringSubmatch(message, -1) {
		line, _ := strconv.Atoi(group(match, lineIdx))
		frames = append(frames, Frame{
			File:     group(match, fileIdx),
			Line:     line,
			Function: group(match, funcIdx),
			Class:    group(match, clsIdx),
		})
	}
	return frames
}
