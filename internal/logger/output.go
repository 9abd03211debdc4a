// internal/logger/output.go

package logger

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/orgoj/sentryroute/internal/config"
	"gopkg.in/Graylog2/go-gelf.v2/gelf"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Variables for factories to allow mocking in tests
var gelfUDPWriterFactory = gelf.NewUDPWriter
var gelfTCPWriterFactory = gelf.NewTCPWriter

// Function to set compression, can be mocked in tests
var setUDPCompression = func(writer *gelf.UDPWriter, compType gelf.CompressType) {
	writer.CompressionType = compType
}

// NewOutput builds the writer configured in app_log.output.
func NewOutput(cfg config.AppLog) (io.Writer, error) {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout, nil
	case "file":
		return newFileOutput(cfg)
	case "gelf":
		return newGelfOutput(cfg)
	default:
		return nil, fmt.Errorf("unsupported app log output: %s", cfg.Output)
	}
}

func newFileOutput(cfg config.AppLog) (*lumberjack.Logger, error) {
	if cfg.File.Path == "" {
		return nil, fmt.Errorf("file output requires a path")
	}

	rotation := cfg.File.Rotation
	var maxSizeMB, maxAgeDays int

	if rotation.MaxSize != "" {
		// Values without units are MB; units are converted for lumberjack.
		var err error
		maxSizeMB, err = strconv.Atoi(rotation.MaxSize)
		if err != nil {
			sizeBytes, perr := config.ParseSize(rotation.MaxSize)
			if perr != nil {
				return nil, fmt.Errorf("invalid rotation.max_size '%s': %w", rotation.MaxSize, perr)
			}
			maxSizeMB = int(sizeBytes / (1024 * 1024))
			if sizeBytes > 0 && maxSizeMB == 0 {
				maxSizeMB = 1 // lumberjack minimum
			}
		}
		if maxSizeMB < 0 {
			maxSizeMB = 0
		}
	}

	if rotation.MaxAge != "" {
		age, err := config.ParseDuration(rotation.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("invalid rotation.max_age '%s': %w", rotation.MaxAge, err)
		}
		maxAgeDays = int(age / (24 * time.Hour))
		if maxAgeDays == 0 {
			maxAgeDays = 1
		}
	}

	return &lumberjack.Logger{
		Filename:   cfg.File.Path,
		MaxSize:    maxSizeMB,
		MaxAge:     maxAgeDays,
		MaxBackups: rotation.MaxBackups,
		Compress:   rotation.Compress,
		LocalTime:  true,
	}, nil
}

// gelfOutput turns AppLogger lines into GELF messages.
type gelfOutput struct {
	writer   gelf.Writer
	hostName string
}

func newGelfOutput(cfg config.AppLog) (*gelfOutput, error) {
	if cfg.Gelf.Host == "" {
		return nil, fmt.Errorf("host is required for GELF output")
	}
	if cfg.Gelf.Port <= 0 {
		return nil, fmt.Errorf("valid port is required for GELF output")
	}

	hostName, err := os.Hostname()
	if err != nil {
		hostName = "unknown"
	}

	addr := fmt.Sprintf("%s:%d", cfg.Gelf.Host, cfg.Gelf.Port)

	var writer gelf.Writer
	if cfg.Gelf.Protocol == "tcp" {
		tcpWriter, err := gelfTCPWriterFactory(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to create GELF TCP writer: %w", err)
		}
		writer = tcpWriter
	} else {
		udpWriter, err := gelfUDPWriterFactory(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to create GELF UDP writer: %w", err)
		}
		switch cfg.Gelf.CompressionType {
		case "gzip":
			setUDPCompression(udpWriter, gelf.CompressGzip)
		case "zlib":
			setUDPCompression(udpWriter, gelf.CompressZlib)
		default:
			setUDPCompression(udpWriter, gelf.CompressNone)
		}
		writer = udpWriter
	}

	return &gelfOutput{writer: writer, hostName: hostName}, nil
}

// Write accepts one "[timestamp] LEVEL: message" line per call.
func (g *gelfOutput) Write(p []byte) (int, error) {
	level, message := splitLogLine(strings.TrimRight(string(p), "\n"))

	short, full := message, ""
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		short, full = message[:i], message
	}

	now := time.Now()
	msg := &gelf.Message{
		Version:  "1.1",
		Host:     g.hostName,
		Short:    short,
		Full:     full,
		TimeUnix: float64(now.Unix()) + float64(now.Nanosecond())/1e9,
		Level:    syslogLevel(level),
		Extra:    map[string]interface{}{"_app_level": level.String()},
	}
	if err := g.writer.WriteMessage(msg); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (g *gelfOutput) Close() error {
	return g.writer.Close()
}

// splitLogLine reverses the AppLogger line format. Unknown lines are INFO.
func splitLogLine(line string) (LogLevel, string) {
	if strings.HasPrefix(line, "[") {
		if end := strings.Index(line, "] "); end > 0 {
			rest := line[end+2:]
			if name, message, ok := strings.Cut(rest, ": "); ok {
				if level, known := LogLevelNameToLevel[name]; known {
					return level, message
				}
			}
		}
	}
	return INFO, line
}

// syslogLevel maps an application level onto the GELF (syslog) scale.
func syslogLevel(level LogLevel) int32 {
	switch level {
	case FATAL:
		return 2 // critical
	case ERROR:
		return 3
	case WARN:
		return 4
	case INFO:
		return 6
	default:
		return 7 // debug and trace
	}
}
