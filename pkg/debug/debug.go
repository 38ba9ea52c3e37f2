// Package debug is the engine's leveled logger. Output is off unless DEBUG
// is set; recent entries are kept in memory and served by /api/debug/logs.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/doomedramen/autopwn-sub005/internal/logbuffer"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
)

const (
	// LogFileName is the name of the log file when file logging is enabled
	LogFileName = "engine.log"
)

var (
	mu sync.RWMutex

	isEnabled    bool
	currentLevel LogLevel

	fileLoggingEnabled bool
	logFile            *os.File
	logFilePath        string

	// out is stdout, or stdout+file once file logging is on
	out = log.New(os.Stdout, "", 0)

	logBuffer *logbuffer.RingBuffer[logbuffer.LogEntry]

	// stripped from logged messages so data paths are logged relative
	basePathPrefix string
	basePathMu     sync.RWMutex

	levelNames = map[LogLevel]string{
		LevelDebug:   "DEBUG",
		LevelInfo:    "INFO",
		LevelWarning: "WARNING",
		LevelError:   "ERROR",
	}
	levelMap = map[string]LogLevel{
		"DEBUG":   LevelDebug,
		"INFO":    LevelInfo,
		"WARN":    LevelWarning,
		"WARNING": LevelWarning,
		"ERROR":   LevelError,
	}
)

func init() {
	bufferSize := logbuffer.DefaultBufferSize
	if sizeStr := os.Getenv("LOG_BUFFER_SIZE"); sizeStr != "" {
		if size, err := strconv.Atoi(sizeStr); err == nil && size > 0 {
			bufferSize = size
		}
	}
	logBuffer = logbuffer.New[logbuffer.LogEntry](bufferSize)

	applyEnv("initialized")
}

// applyEnv reads DEBUG, LOG_LEVEL and LOG_DIR and applies them
func applyEnv(action string) {
	debugEnv := strings.ToLower(os.Getenv("DEBUG"))
	enabled := debugEnv == "true" || debugEnv == "1"
	level, _ := ParseLevel(os.Getenv("LOG_LEVEL"))

	mu.Lock()
	isEnabled = enabled
	currentLevel = level
	mu.Unlock()

	if enabled {
		if logDir := os.Getenv("LOG_DIR"); logDir != "" {
			// stdout logging still works if the directory is unusable
			_ = EnableFileLogging(logDir)
		}
		Info("Debug logging %s - Enabled: %v, Level: %s, FileLogging: %v", action, enabled, levelNames[level], IsFileLoggingEnabled())
	} else {
		_ = DisableFileLogging()
	}
}

// ParseLevel maps a level name to a LogLevel. Unknown names yield INFO and
// false.
func ParseLevel(name string) (LogLevel, bool) {
	if l, ok := levelMap[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return l, true
	}
	return LevelInfo, false
}

// IsFileLoggingEnabled returns whether file logging is enabled
func IsFileLoggingEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return fileLoggingEnabled
}

// EnableFileLogging mirrors log output into logsDir/engine.log
func EnableFileLogging(logsDir string) error {
	mu.Lock()
	defer mu.Unlock()

	path := filepath.Join(logsDir, LogFileName)
	if fileLoggingEnabled && logFilePath == path {
		return nil
	}

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = f
	logFilePath = path
	fileLoggingEnabled = true
	out = log.New(io.MultiWriter(os.Stdout, f), "", 0)

	return nil
}

// DisableFileLogging stops writing to the log file and closes it
func DisableFileLogging() error {
	mu.Lock()
	defer mu.Unlock()

	if !fileLoggingEnabled {
		return nil
	}

	fileLoggingEnabled = false
	logFilePath = ""
	out = log.New(os.Stdout, "", 0)

	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

// GetBufferedLogs returns buffered entries logged after since
func GetBufferedLogs(since time.Time) []logbuffer.LogEntry {
	return logBuffer.Filter(func(e logbuffer.LogEntry) bool {
		return e.Timestamp.After(since)
	})
}

// GetAllBufferedLogs returns every buffered entry
func GetAllBufferedLogs() []logbuffer.LogEntry {
	return logBuffer.GetAll()
}

// ClearLogBuffer empties the in-memory log buffer
func ClearLogBuffer() {
	logBuffer.Clear()
}

// Log prints a message with the specified level if debugging is enabled
func Log(level LogLevel, format string, v ...interface{}) {
	mu.RLock()
	enabled := isEnabled
	minLevel := currentLevel
	mu.RUnlock()

	if !enabled || level < minLevel {
		return
	}

	// Log -> Debug/Info/... -> caller
	pc, file, line, _ := runtime.Caller(2)
	funcName := "unknown"
	if fn := runtime.FuncForPC(pc); fn != nil {
		funcName = fn.Name()
	}

	message := SanitizeMessage(fmt.Sprintf(format, v...))
	timestamp := time.Now()

	logBuffer.Add(logbuffer.LogEntry{
		Timestamp: timestamp,
		Level:     levelNames[level],
		Message:   message,
		File:      file,
		Line:      line,
		Function:  funcName,
	}.Truncated())

	logLine := fmt.Sprintf("[%s] [%s] [%s:%d] [%s] %s\n",
		levelNames[level],
		timestamp.Format("2006-01-02 15:04:05.000"),
		filepath.Base(file),
		line,
		funcName,
		message,
	)

	mu.RLock()
	out.Print(logLine)
	mu.RUnlock()
}

// Debug logs a debug level message
func Debug(format string, v ...interface{}) {
	Log(LevelDebug, format, v...)
}

// Info logs an info level message
func Info(format string, v ...interface{}) {
	Log(LevelInfo, format, v...)
}

// Warning logs a warning level message
func Warning(format string, v ...interface{}) {
	Log(LevelWarning, format, v...)
}

// Error logs an error level message
func Error(format string, v ...interface{}) {
	Log(LevelError, format, v...)
}

// Reinitialize re-reads DEBUG, LOG_LEVEL and LOG_DIR, e.g. after a .env file
// has been loaded
func Reinitialize() {
	applyEnv("reinitialized")
}

// SetEnabled toggles output at runtime
func SetEnabled(enabled bool) {
	mu.Lock()
	isEnabled = enabled
	mu.Unlock()
}

// SetLevel changes the minimum level at runtime
func SetLevel(level LogLevel) {
	mu.Lock()
	currentLevel = level
	mu.Unlock()
}

// DebugStatus summarizes the logger configuration
type DebugStatus struct {
	Enabled            bool   `json:"enabled"`
	Level              string `json:"level"`
	FileLoggingEnabled bool   `json:"file_logging_enabled"`
	LogFilePath        string `json:"log_file_path,omitempty"`
	BufferCount        int    `json:"buffer_count"`
	BufferCapacity     int    `json:"buffer_capacity"`
	BufferFull         bool   `json:"buffer_full"`
}

// GetStatus returns the current debug status
func GetStatus() DebugStatus {
	mu.RLock()
	defer mu.RUnlock()

	return DebugStatus{
		Enabled:            isEnabled,
		Level:              levelNames[currentLevel],
		FileLoggingEnabled: fileLoggingEnabled,
		LogFilePath:        logFilePath,
		BufferCount:        logBuffer.Count(),
		BufferCapacity:     logBuffer.Capacity(),
		BufferFull:         logBuffer.IsFull(),
	}
}

// SetBasePath sets the prefix stripped from logged paths, normally the
// engine data directory.
func SetBasePath(path string) {
	basePathMu.Lock()
	defer basePathMu.Unlock()
	if path != "" && !strings.HasSuffix(path, string(os.PathSeparator)) {
		path += string(os.PathSeparator)
	}
	basePathPrefix = path
}

// SanitizeMessage rewrites paths under the base path as relative paths
func SanitizeMessage(msg string) string {
	basePathMu.RLock()
	prefix := basePathPrefix
	basePathMu.RUnlock()

	if prefix == "" {
		return msg
	}

	msg = strings.ReplaceAll(msg, prefix, "")
	if dir := strings.TrimSuffix(prefix, string(os.PathSeparator)); dir != "" {
		msg = strings.ReplaceAll(msg, dir, ".")
	}
	return msg
}
