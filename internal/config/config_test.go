package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a temporary config file
func createTempConfigFile(t *testing.T, content string) string {
	tempDir := t.TempDir()
	tempFile := filepath.Join(tempDir, "config.yaml")
	err := os.WriteFile(tempFile, []byte(content), 0644)
	require.NoError(t, err, "Failed to create temporary config file")
	return tempFile
}

func TestLoadConfig_Valid(t *testing.T) {
	path := createTempConfigFile(t, `
app_log:
  level: trace
  output: file
  file:
    path: /tmp/sentryroute-test.log
    rotation:
      max_size: "10"
      max_age: "7d"
      max_backups: 3
server:
  port: 9090
  trusted_proxies: ["127.0.0.1"]
  request_limits:
    max_body_size: 1048576
    rate_limit: 600
components:
  - name: sentry
    type: sentry
    enabled: true
    dsn: https://public@sentry.example.com/1
    environment: production
    sample_rate: 0.5
log_routes:
  - name: errors
    type: sentry
    enabled: true
    levels: [error, warning]
    categories: ["application", "system.*"]
    except: ["system.db.*"]
  - name: custom
    type: sentry
    enabled: false
    sentry_component: reporting
    attach_stack_trace: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "trace", cfg.AppLog.Level)
	assert.Equal(t, "file", cfg.AppLog.Output)
	assert.Equal(t, "/tmp/sentryroute-test.log", cfg.AppLog.File.Path)
	assert.Equal(t, "10", cfg.AppLog.File.Rotation.MaxSize)
	assert.Equal(t, 3, cfg.AppLog.File.Rotation.MaxBackups)

	// Defaults survive unmarshalling when not overridden
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, DefaultMaxBatchSize, cfg.Server.RequestLimits.MaxBatchSize)
	assert.Equal(t, 600, cfg.Server.RequestLimits.RateLimit)

	require.Len(t, cfg.Components, 1)
	comp := cfg.Components[0]
	assert.Equal(t, "sentry", comp.Name)
	assert.True(t, comp.Enabled)
	assert.Equal(t, "production", comp.Environment)
	assert.Equal(t, 0.5, comp.SampleRate)
	assert.Equal(t, DefaultFlushTimeout, comp.FlushTimeout)

	require.Len(t, cfg.LogRoutes, 2)
	errorsRoute := cfg.LogRoutes[0]
	assert.Equal(t, DefaultSentryComponent, errorsRoute.SentryComponent)
	assert.Equal(t, DefaultTracePattern, errorsRoute.TracePattern)
	assert.Equal(t, []string{"error", "warning"}, errorsRoute.Levels)
	assert.Equal(t, []string{"application", "system.*"}, errorsRoute.Categories)
	assert.Equal(t, []string{"system.db.*"}, errorsRoute.Except)

	custom := cfg.LogRoutes[1]
	assert.False(t, custom.Enabled)
	assert.Equal(t, "reporting", custom.SentryComponent)
	assert.True(t, custom.AttachStackTrace)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := createTempConfigFile(t, "log_routes:\n  - name: r\n    type: sentry\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "WARN", cfg.AppLog.Level)
	assert.Equal(t, "stdout", cfg.AppLog.Output)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.Components)
	assert.Equal(t, "sentry", cfg.LogRoutes[0].SentryComponent)
}

func TestLoadConfig_InvalidCases(t *testing.T) {
	testCases := []struct {
		name          string
		config        string
		expectedError string
	}{
		{
			name:          "Invalid app log level",
			config:        "app_log:\n  level: loud\n",
			expectedError: "invalid app_log.level: 'loud'",
		},
		{
			name:          "File output without path",
			config:        "app_log:\n  output: file\n",
			expectedError: "app_log.file.path is required",
		},
		{
			name:          "Invalid rotation max age",
			config:        "app_log:\n  output: file\n  file:\n    path: /tmp/x.log\n    rotation:\n      max_age: soon\n",
			expectedError: "invalid rotation.max_age",
		},
		{
			name:          "GELF output without host",
			config:        "app_log:\n  output: gelf\n  gelf:\n    port: 12201\n",
			expectedError: "app_log.gelf.host is required",
		},
		{
			name:          "Invalid GELF protocol",
			config:        "app_log:\n  output: gelf\n  gelf:\n    host: graylog\n    port: 12201\n    protocol: http\n",
			expectedError: "app_log.gelf: invalid protocol 'http'",
		},
		{
			name:          "Unknown app log output",
			config:        "app_log:\n  output: syslog\n",
			expectedError: "invalid app_log.output: 'syslog'",
		},
		{
			name:          "Invalid server port",
			config:        "server:\n  port: 70000\n",
			expectedError: "invalid server.port: 70000",
		},
		{
			name:          "Invalid server mode",
			config:        "server:\n  mode: embedded\n",
			expectedError: "invalid server.mode",
		},
		{
			name:          "Negative rate limit",
			config:        "server:\n  request_limits:\n    rate_limit: -1\n",
			expectedError: "rate_limit cannot be negative",
		},
		{
			name:          "Missing component name",
			config:        "components:\n  - type: sentry\n",
			expectedError: "components[0]: name is required",
		},
		{
			name:          "Duplicate component name",
			config:        "components:\n  - name: sentry\n    type: sentry\n  - name: sentry\n    type: sentry\n",
			expectedError: "components: duplicate name 'sentry' found",
		},
		{
			name:          "Unknown component type",
			config:        "components:\n  - name: bugsnag\n    type: bugsnag\n",
			expectedError: "components[bugsnag]: unknown type 'bugsnag'",
		},
		{
			name:          "Sample rate out of range",
			config:        "components:\n  - name: sentry\n    type: sentry\n    sample_rate: 1.5\n",
			expectedError: "sample_rate must be between 0 and 1",
		},
		{
			name:          "Invalid flush timeout",
			config:        "components:\n  - name: sentry\n    type: sentry\n    flush_timeout: 0s\n",
			expectedError: "components[sentry]: invalid flush_timeout",
		},
		{
			name:          "Missing route name",
			config:        "log_routes:\n  - type: sentry\n",
			expectedError: "log_routes[0]: name is required",
		},
		{
			name:          "Duplicate route name",
			config:        "log_routes:\n  - name: r\n    type: sentry\n  - name: r\n    type: sentry\n",
			expectedError: "log_routes: duplicate name 'r' found",
		},
		{
			name:          "Unknown route type",
			config:        "log_routes:\n  - name: r\n    type: email\n",
			expectedError: "log_routes[r]: unknown type 'email'",
		},
		{
			name:          "Invalid trace pattern",
			config:        "log_routes:\n  - name: r\n    type: sentry\n    trace_pattern: '(unclosed'\n",
			expectedError: "log_routes[r]: invalid trace_pattern",
		},
		{
			name:          "Invalid category pattern",
			config:        "log_routes:\n  - name: r\n    type: sentry\n    categories: ['system.[']\n",
			expectedError: "log_routes[r]: invalid category pattern 'system.['",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := createTempConfigFile(t, tc.config)
			cfg, err := LoadConfig(path)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tc.expectedError)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := createTempConfigFile(t, "server: [unclosed")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing config file")
}

func TestValidateConfig_StructTags(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.LogRoutes = []LogRoute{{Type: "sentry"}}

	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.LogRoutes[0].Name")
	assert.Contains(t, err.Error(), "'required' tag")
}

func TestValidateConfig_Valid(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Components = []Component{{Name: "sentry", Type: "sentry", Enabled: true}}
	cfg.LogRoutes = []LogRoute{{Name: "errors", Type: "sentry", Enabled: true}}

	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, DefaultFlushTimeout, cfg.Components[0].FlushTimeout)
	assert.Equal(t, DefaultSentryComponent, cfg.LogRoutes[0].SentryComponent)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"10m", 10 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"7d", 7 * 24 * time.Hour, false},
		{" 2D ", 48 * time.Hour, false},
		{"", 0, true},
		{"0s", 0, true},
		{"0d", 0, true},
		{"-1d", 0, true},
		{"xd", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		wantErr  bool
	}{
		{"100", 100, false},
		{"5k", 5 * 1024, false},
		{"5KB", 5 * 1024, false},
		{"10MB", 10 * 1024 * 1024, false},
		{"1G", 1024 * 1024 * 1024, false},
		{"0", 0, false},
		{"", 0, true},
		{"-5M", 0, true},
		{"ten", 0, true},
		{"99999999999999999999G", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			size, err := ParseSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, size)
		})
	}
}

func TestLoadConfig_Example(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "config", "config.example.yaml"))
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(cfg))

	require.Len(t, cfg.Components, 1)
	assert.True(t, cfg.Components[0].UseBundledCA)
	require.Len(t, cfg.LogRoutes, 2)
	assert.Equal(t, DefaultSentryComponent, cfg.LogRoutes[1].SentryComponent, "sentry_component defaults to 'sentry'")
	assert.Equal(t, DefaultTracePattern, cfg.LogRoutes[1].TracePattern)
	assert.True(t, cfg.LogRoutes[1].AttachStackTrace)
	assert.Equal(t, []string{"system.db.**"}, cfg.LogRoutes[1].Categories)
}
