package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultSentryComponent is the component ID a route resolves when sentry_component is unset.
	DefaultSentryComponent = "sentry"

	// DefaultTracePattern matches one frame of a framework stack trace, e.g.
	// "#22 /var/www/framework/web/CWebApplication.php(282): CController->run('index')".
	DefaultTracePattern = `(?m)#(?P<number>\d+) (?P<file>[^(]+)\((?P<line>\d+)\): (?P<cls>[^-]+)(->|::)(?P<func>[^\(]+)`

	// DefaultFlushTimeout bounds how long a Sentry component waits for queued events on close.
	DefaultFlushTimeout = "2s"

	// DefaultMaxBatchSize is the largest number of records accepted by a single /log request.
	DefaultMaxBatchSize = 1000
)

// LogRotation defines parameters for app log file rotation.
type LogRotation struct {
	MaxSize    string `yaml:"max_size,omitempty"`    // MB, e.g. "100"; "100MB" is accepted too
	MaxAge     string `yaml:"max_age,omitempty"`     // e.g. "7d", "48h"
	MaxBackups int    `yaml:"max_backups,omitempty"` // zero keeps all backups
	Compress   bool   `yaml:"compress,omitempty"`
}

// AppLog configures the application's own diagnostic log.
type AppLog struct {
	Level          string `yaml:"level"`
	ShowHealthLogs bool   `yaml:"show_health_logs"`
	Output         string `yaml:"output"` // stdout, file, gelf

	File struct {
		Path     string      `yaml:"path"`
		Rotation LogRotation `yaml:"rotation,omitempty"`
	} `yaml:"file"`

	Gelf struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port" validate:"gte=0,lte=65535"`
		Protocol        string `yaml:"protocol,omitempty"`         // udp or tcp, default udp
		CompressionType string `yaml:"compression_type,omitempty"` // gzip, zlib, none, default none
	} `yaml:"gelf"`
}

// Config represents the application configuration
type Config struct {
	AppLog AppLog `yaml:"app_log"`

	Server struct {
		Host           string   `yaml:"host"`
		Port           int      `yaml:"port" validate:"gte=0,lte=65535"`
		Mode           string   `yaml:"mode"` // release, debug or test
		TrustedProxies []string `yaml:"trusted_proxies"`
		RequestLimits  struct {
			MaxBodySize  int `yaml:"max_body_size"`  // bytes
			RateLimit    int `yaml:"rate_limit"`     // requests per minute and client IP
			MaxBatchSize int `yaml:"max_batch_size"` // records per request
		} `yaml:"request_limits"`
	} `yaml:"server"`

	Components []Component `yaml:"components" validate:"dive"`
	LogRoutes  []LogRoute  `yaml:"log_routes" validate:"dive"`
}

// Component configures a named host component. Only Sentry components exist today.
type Component struct {
	Name    string `yaml:"name" validate:"required"`
	Type    string `yaml:"type" validate:"required"`
	Enabled bool   `yaml:"enabled"`

	// Sentry specific
	DSN          string  `yaml:"dsn,omitempty"`
	Environment  string  `yaml:"environment,omitempty"`
	Release      string  `yaml:"release,omitempty"`
	ServerName   string  `yaml:"server_name,omitempty"`
	SampleRate   float64 `yaml:"sample_rate,omitempty" validate:"gte=0,lte=1"`
	Debug        bool    `yaml:"debug,omitempty"`
	UseBundledCA bool    `yaml:"use_bundled_ca,omitempty"`
	FlushTimeout string  `yaml:"flush_timeout,omitempty"`
}

// LogRoute configures one route of the log dispatcher.
type LogRoute struct {
	Name    string `yaml:"name" validate:"required"`
	Type    string `yaml:"type" validate:"required"`
	Enabled bool   `yaml:"enabled"`

	SentryComponent  string `yaml:"sentry_component,omitempty"`
	TracePattern     string `yaml:"trace_pattern,omitempty"`
	AttachStackTrace bool   `yaml:"attach_stack_trace,omitempty"`

	// Filters; empty lists accept everything.
	Levels     []string `yaml:"levels,omitempty"`
	Categories []string `yaml:"categories,omitempty"`
	Except     []string `yaml:"except,omitempty"`
}

var validAppLogLevels = map[string]bool{"TRACE": true, "DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true}

// LoadConfig loads and validates the configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	cfg.AppLog.Level = "WARN"
	cfg.AppLog.Output = "stdout"
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.Server.Mode = "release"
	cfg.Server.RequestLimits.MaxBatchSize = DefaultMaxBatchSize

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file '%s': %w", path, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// validateConfig performs semantic validation of the configuration and fills
// in defaults that depend on other fields.
func validateConfig(cfg *Config) error {
	if err := validateAppLog(&cfg.AppLog); err != nil {
		return err
	}

	// Server validation
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", cfg.Server.Port)
	}
	switch cfg.Server.Mode {
	case "":
		cfg.Server.Mode = "release"
	case "release", "debug", "test":
	default:
		return fmt.Errorf("invalid server.mode: '%s', must be 'release', 'debug' or 'test'", cfg.Server.Mode)
	}
	if cfg.Server.RequestLimits.MaxBodySize < 0 {
		return errors.New("server.request_limits.max_body_size cannot be negative")
	}
	if cfg.Server.RequestLimits.RateLimit < 0 {
		return errors.New("server.request_limits.rate_limit cannot be negative")
	}
	if cfg.Server.RequestLimits.MaxBatchSize < 0 {
		return errors.New("server.request_limits.max_batch_size cannot be negative")
	}

	componentNames := make(map[string]bool)
	for i := range cfg.Components {
		comp := &cfg.Components[i]
		if comp.Name == "" {
			return fmt.Errorf("components[%d]: name is required", i)
		}
		if componentNames[comp.Name] {
			return fmt.Errorf("components: duplicate name '%s' found", comp.Name)
		}
		componentNames[comp.Name] = true

		switch comp.Type {
		case "sentry":
			if comp.SampleRate < 0 || comp.SampleRate > 1 {
				return fmt.Errorf("components[%s]: sample_rate must be between 0 and 1, got %v", comp.Name, comp.SampleRate)
			}
			if comp.FlushTimeout == "" {
				comp.FlushTimeout = DefaultFlushTimeout
			}
			if _, err := ParseDuration(comp.FlushTimeout); err != nil {
				return fmt.Errorf("components[%s]: invalid flush_timeout: %w", comp.Name, err)
			}
		default:
			return fmt.Errorf("components[%s]: unknown type '%s'", comp.Name, comp.Type)
		}
	}

	// A route may name a component that is not configured; that is reported by
	// the route at runtime and the route stays silent.
	routeNames := make(map[string]bool)
	for i := range cfg.LogRoutes {
		route := &cfg.LogRoutes[i]
		if route.Name == "" {
			return fmt.Errorf("log_routes[%d]: name is required", i)
		}
		if routeNames[route.Name] {
			return fmt.Errorf("log_routes: duplicate name '%s' found", route.Name)
		}
		routeNames[route.Name] = true

		switch route.Type {
		case "sentry":
		default:
			return fmt.Errorf("log_routes[%s]: unknown type '%s'", route.Name, route.Type)
		}

		if route.SentryComponent == "" {
			route.SentryComponent = DefaultSentryComponent
		}
		if route.TracePattern == "" {
			route.TracePattern = DefaultTracePattern
		}
		if _, err := regexp.Compile(route.TracePattern); err != nil {
			return fmt.Errorf("log_routes[%s]: invalid trace_pattern: %w", route.Name, err)
		}
		for _, pattern := range append(append([]string{}, route.Categories...), route.Except...) {
			if _, err := glob.Compile(pattern, '.'); err != nil {
				return fmt.Errorf("log_routes[%s]: invalid category pattern '%s': %w", route.Name, pattern, err)
			}
		}
	}

	return nil
}

func validateAppLog(appLog *AppLog) error {
	if appLog.Level == "" {
		appLog.Level = "WARN"
	}
	if !validAppLogLevels[strings.ToUpper(appLog.Level)] {
		return fmt.Errorf("invalid app_log.level: '%s'", appLog.Level)
	}

	switch appLog.Output {
	case "", "stdout":
		appLog.Output = "stdout"
	case "file":
		if appLog.File.Path == "" {
			return errors.New("app_log.file.path is required for output 'file'")
		}
		if appLog.File.Rotation.MaxSize != "" {
			if _, err := ParseSize(appLog.File.Rotation.MaxSize); err != nil {
				return fmt.Errorf("app_log.file: invalid rotation.max_size: %w", err)
			}
		}
		if appLog.File.Rotation.MaxAge != "" {
			if _, err := ParseDuration(appLog.File.Rotation.MaxAge); err != nil {
				return fmt.Errorf("app_log.file: invalid rotation.max_age: %w", err)
			}
		}
		if appLog.File.Rotation.MaxBackups < 0 {
			return errors.New("app_log.file: rotation.max_backups cannot be negative")
		}
	case "gelf":
		if appLog.Gelf.Host == "" {
			return errors.New("app_log.gelf.host is required for output 'gelf'")
		}
		if appLog.Gelf.Port <= 0 || appLog.Gelf.Port > 65535 {
			return fmt.Errorf("app_log.gelf: invalid port %d", appLog.Gelf.Port)
		}
		switch appLog.Gelf.Protocol {
		case "":
			appLog.Gelf.Protocol = "udp"
		case "udp", "tcp":
		default:
			return fmt.Errorf("app_log.gelf: invalid protocol '%s', must be 'udp' or 'tcp'", appLog.Gelf.Protocol)
		}
		switch appLog.Gelf.CompressionType {
		case "":
			appLog.Gelf.CompressionType = "none"
		case "gzip", "zlib", "none":
		default:
			return fmt.Errorf("app_log.gelf: invalid compression_type '%s', must be 'gzip', 'zlib', or 'none'", appLog.Gelf.CompressionType)
		}
	default:
		return fmt.Errorf("invalid app_log.output: '%s', must be 'stdout', 'file' or 'gelf'", appLog.Output)
	}
	return nil
}

// ValidateConfig uses go-playground/validator for struct-level validation.
// It complements the semantic validation in validateConfig.
func ValidateConfig(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return err
		}
		messages := make([]string, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			messages = append(messages, fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", fieldErr.Namespace(), fieldErr.Tag()))
		}
		return errors.New(strings.Join(messages, "; "))
	}

	return validateConfig(cfg)
}

// ParseDuration parses a duration string (e.g., "10m", "1h30m", "7d").
// Supports standard time.ParseDuration units plus 'd' for days.
// Returns an error if the format is invalid or the duration is non-positive.
func ParseDuration(durationStr string) (time.Duration, error) {
	durationStr = strings.ToLower(strings.TrimSpace(durationStr))
	if durationStr == "" {
		return 0, errors.New("duration string cannot be empty")
	}

	var d time.Duration
	if numStr, ok := strings.CutSuffix(durationStr, "d"); ok {
		days, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number format for days in '%s': %w", durationStr, err)
		}
		if days > int64(time.Duration(1<<63-1)/(24*time.Hour)) {
			return 0, fmt.Errorf("duration %dd results in overflow", days)
		}
		d = time.Duration(days) * 24 * time.Hour
	} else {
		var err error
		d, err = time.ParseDuration(durationStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration format '%s': %w", durationStr, err)
		}
	}

	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: '%s'", durationStr)
	}
	return d, nil
}

var sizeSuffixes = []struct {
	suffix     string
	multiplier int64
}{
	{"KB", 1 << 10}, {"K", 1 << 10},
	{"MB", 1 << 20}, {"M", 1 << 20},
	{"GB", 1 << 30}, {"G", 1 << 30},
}

// ParseSize parses a size string (e.g., "10MB", "5k", "1G") into bytes.
// A bare number is taken as bytes.
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ToUpper(sizeStr))
	if sizeStr == "" {
		return 0, errors.New("size string cannot be empty")
	}

	numStr := sizeStr
	var multiplier int64 = 1
	for _, s := range sizeSuffixes {
		if trimmed, ok := strings.CutSuffix(sizeStr, s.suffix); ok {
			numStr, multiplier = strings.TrimSpace(trimmed), s.multiplier
			break
		}
	}

	num, ok := new(big.Int).SetString(numStr, 10)
	if !ok {
		return 0, fmt.Errorf("invalid number format in size string '%s'", sizeStr)
	}
	if num.Sign() < 0 {
		return 0, fmt.Errorf("size cannot be negative: %s", num.String())
	}

	result := new(big.Int).Mul(num, big.NewInt(multiplier))
	if !result.IsInt64() {
		return 0, fmt.Errorf("size value '%s' results in overflow (exceeds max int64)", sizeStr)
	}
	return result.Int64(), nil
}
