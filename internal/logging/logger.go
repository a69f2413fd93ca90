// logging.go - Centralized logging configuration for the OneDrive MCP server.
//
// All packages log through component loggers built on log/slog. The handler is
// configured twice: once from the environment at startup so that config loading
// itself is visible, and again from the loaded configuration.
//
// Usage:
//   logger := logging.GetLogger("upload")
//   logger.Info("Upload session started", "url", sessionURL)
//   logger.Debug("Range sent", "range", header, "status", status)
//
// Configuration:
// - LOG_LEVEL: DEBUG, INFO, WARN, or ERROR (default: DEBUG until config is loaded, INFO after)
// - LOG_FORMAT: "json" or "text" (default: text)
// - MCP_LOG_FILE: optional file path for log output
// - CONTENT_LOG_LEVEL: verbosity for request/response payload logging, including OFF

package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// levelOff is high enough that no record passes it.
const levelOff = slog.Level(1000)

var (
	defaultLogger   *slog.Logger
	logLevel        slog.Level = slog.LevelDebug // Start with maximum verbosity until config is loaded
	contentLogLevel slog.Level = slog.LevelDebug
)

// Initialize sets up the global logger from environment variables.
func Initialize() {
	InitializeFromEnv()
}

// InitializeFromEnv sets up logging from environment variables only.
// Used during early startup before the config object is available.
func InitializeFromEnv() {
	logLevel = parseLevel(os.Getenv("LOG_LEVEL"), slog.LevelDebug)
	contentLogLevel = parseContentLevel(os.Getenv("CONTENT_LOG_LEVEL"))

	output := openOutput(os.Getenv("MCP_LOG_FILE"))
	defaultLogger = slog.New(newHandler(output, os.Getenv("LOG_FORMAT"), logLevel))
	slog.SetDefault(defaultLogger)
}

// LoggingConfig is implemented by the server configuration.
type LoggingConfig interface {
	GetLogLevel() string
	GetLogFormat() string
	GetLogFile() string
	GetContentLogLevel() string
}

// InitializeFromConfig reinitializes logging based on the configuration object.
// Empty config values fall back to the matching environment variables.
func InitializeFromConfig(cfg LoggingConfig) {
	if defaultLogger != nil {
		defaultLogger.Debug("Transitioning from config loading verbosity to final logging configuration")
	}

	logLevelStr := firstNonEmpty(cfg.GetLogLevel(), os.Getenv("LOG_LEVEL"))
	logFormatStr := firstNonEmpty(cfg.GetLogFormat(), os.Getenv("LOG_FORMAT"))
	logFileStr := firstNonEmpty(cfg.GetLogFile(), os.Getenv("MCP_LOG_FILE"))
	contentLogLevelStr := firstNonEmpty(cfg.GetContentLogLevel(), os.Getenv("CONTENT_LOG_LEVEL"))

	// After config loading, default to INFO (less verbose than the initial DEBUG)
	logLevel = parseLevel(logLevelStr, slog.LevelInfo)
	contentLogLevel = parseContentLevel(contentLogLevelStr)

	output := openOutput(logFileStr)
	defaultLogger = slog.New(newHandler(output, logFormatStr, logLevel))
	slog.SetDefault(defaultLogger)
	refreshComponentLoggers()

	defaultLogger.Debug("Logging reconfigured from config",
		"final_log_level", logLevel.String(),
		"final_content_log_level", contentLogLevel.String(),
		"log_format", strings.ToLower(logFormatStr),
		"log_file", logFileStr,
		"config_source", "configuration_object")
}

func parseLevel(value string, fallback slog.Level) slog.Level {
	switch strings.ToUpper(value) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return fallback
	}
}

func parseContentLevel(value string) slog.Level {
	if strings.ToUpper(value) == "OFF" {
		return levelOff
	}
	return parseLevel(value, slog.LevelDebug)
}

func openOutput(path string) io.Writer {
	if path == "" {
		return os.Stderr
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		slog.Error("Failed to open log file, using stderr", "file", path, "error", err)
		return os.Stderr
	}
	return file
}

func newHandler(output io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(output, opts)
	}
	return slog.NewTextHandler(output, opts)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetLogger returns a component-specific logger with the given component name.
func GetLogger(component string) *slog.Logger {
	if defaultLogger == nil {
		Initialize()
	}
	return defaultLogger.With("component", component)
}

// GetLevel returns the current log level
func GetLevel() slog.Level {
	return logLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return logLevel <= slog.LevelDebug
}

// IsContentLoggingEnabled returns true if content logging is enabled at the specified level
func IsContentLoggingEnabled(level slog.Level) bool {
	return contentLogLevel <= level
}

// GetContentLogLevel returns the current content log level
func GetContentLogLevel() slog.Level {
	return contentLogLevel
}

// SetLevel sets the log level programmatically (useful for testing)
func SetLevel(level slog.Level) {
	logLevel = level
	defaultLogger = slog.New(newHandler(os.Stderr, os.Getenv("LOG_FORMAT"), logLevel))
	slog.SetDefault(defaultLogger)
	refreshComponentLoggers()
}

// SetContentLogLevel sets the content log level programmatically
func SetContentLogLevel(level slog.Level) {
	contentLogLevel = level
}

// LogContent logs payloads only when content logging is enabled at level.
func LogContent(logger *slog.Logger, level slog.Level, msg string, args ...any) {
	if IsContentLoggingEnabled(level) {
		logger.Log(context.Background(), level, msg, args...)
	}
}

// Component-specific logger instances for commonly used components
var (
	AuthLogger          = GetLogger("auth")
	AuthorizationLogger = GetLogger("authorization")
	ConfigLogger        = GetLogger("config")
	ContentLogger       = GetLogger("content")
	DriveLogger         = GetLogger("drive")
	GraphLogger         = GetLogger("graph")
	ItemLogger          = GetLogger("item")
	UploadLogger        = GetLogger("upload")
	ToolsLogger         = GetLogger("tools")
	MainLogger          = GetLogger("main")
)

// refreshComponentLoggers rebinds the component loggers to the current handler.
func refreshComponentLoggers() {
	AuthLogger = GetLogger("auth")
	AuthorizationLogger = GetLogger("authorization")
	ConfigLogger = GetLogger("config")
	ContentLogger = GetLogger("content")
	DriveLogger = GetLogger("drive")
	GraphLogger = GetLogger("graph")
	ItemLogger = GetLogger("item")
	UploadLogger = GetLogger("upload")
	ToolsLogger = GetLogger("tools")
	MainLogger = GetLogger("main")
}
