package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/orgoj/sentryroute/internal/route"
)

const (
	DefaultMaxMessageLength  = 64 * 1024
	DefaultMaxCategoryLength = 128
	DefaultMaxLevelLength    = 16
)

// Categories are dotted identifiers such as "system.db.CDbCommand" or
// "exception.CHttpException.404".
var categoryRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-]+(\.[a-zA-Z0-9_\-]+)*$`)

var levelRegex = regexp.MustCompile(`^[a-zA-Z]+$`)

// ErrInputTooLong indicates the input string exceeds the maximum allowed length.
var ErrInputTooLong = errors.New("input exceeds maximum length")

// ErrInvalidChars indicates the input string contains disallowed characters.
var ErrInvalidChars = errors.New("input contains invalid characters")

// ErrEmptyMessage indicates a record whose message is empty after sanitizing.
var ErrEmptyMessage = errors.New("message is empty")

// Limits bounds the fields of an ingested record.
type Limits struct {
	MaxMessageLength  int
	MaxCategoryLength int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxMessageLength:  DefaultMaxMessageLength,
		MaxCategoryLength: DefaultMaxCategoryLength,
	}
}

// IsValidCategory checks a log category. The empty category is allowed.
func IsValidCategory(category string, maxLength int) error {
	if category == "" {
		return nil
	}
	if len(category) > maxLength {
		return fmt.Errorf("%w: got %d, max %d", ErrInputTooLong, len(category), maxLength)
	}
	if !categoryRegex.MatchString(category) {
		return fmt.Errorf("%w: allowed dot separated alphanumeric, underscore, hyphen", ErrInvalidChars)
	}
	return nil
}

// IsValidLevel checks a level name. Unknown names are fine, they map to error.
func IsValidLevel(level string) error {
	if level == "" {
		return nil
	}
	if len(level) > DefaultMaxLevelLength {
		return fmt.Errorf("%w: got %d, max %d", ErrInputTooLong, len(level), DefaultMaxLevelLength)
	}
	if !levelRegex.MatchString(level) {
		return fmt.Errorf("%w: allowed letters only", ErrInvalidChars)
	}
	return nil
}

// SanitizeString removes non-printable characters (excluding space) and trims whitespace.
// It also truncates the string to maxLength.
func SanitizeString(s string, maxLength int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	return strings.Map(func(r rune) rune {
		if r == ' ' || (unicode.IsPrint(r) && r != '\uFFFD') {
			return r
		}
		return -1
	}, s)
}

// SanitizeMessage is SanitizeString for multi-line text: newlines and tabs
// are kept and leading or trailing whitespace is left alone, since embedded
// stack traces depend on both.
func SanitizeMessage(s string, maxLength int) string {
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\t' || (unicode.IsPrint(r) && r != '\uFFFD') {
			return r
		}
		return -1
	}, s)
}

// SanitizeRecord cleans and checks one record. A missing timestamp is set to now.
func SanitizeRecord(rec route.Record, limits Limits, now time.Time) (route.Record, error) {
	rec.Message = SanitizeMessage(rec.Message, limits.MaxMessageLength)
	if strings.TrimSpace(rec.Message) == "" {
		return rec, ErrEmptyMessage
	}

	rec.Level = SanitizeString(rec.Level, DefaultMaxLevelLength+1)
	if err := IsValidLevel(rec.Level); err != nil {
		return rec, fmt.Errorf("level: %w", err)
	}

	rec.Category = strings.TrimSpace(rec.Category)
	if err := IsValidCategory(rec.Category, limits.MaxCategoryLength); err != nil {
		return rec, fmt.Errorf("category: %w", err)
	}

	if rec.Timestamp <= 0 {
		rec.Timestamp = float64(now.UnixNano()) / float64(time.Second)
	}
	return rec, nil
}

// SanitizeRecords applies SanitizeRecord to every record and stops at the first invalid one.
func SanitizeRecords(records []route.Record, limits Limits, now time.Time) ([]route.Record, error) {
	sanitized := make([]route.Record, len(records))
	for i, rec := range records {
		clean, err := SanitizeRecord(rec, limits, now)
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		sanitized[i] = clean
	}
	return sanitized, nil
}
