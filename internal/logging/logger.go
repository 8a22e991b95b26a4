package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultBufferSize = 1000

// Logger is a duck-typed interface satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{}
	isInitialized   bool
	mutex           sync.RWMutex
	logBuffer       *LogBuffer
	logCallback     LogCallback
	fileWriter      *lumberjack.Logger
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	File    FileConfig        `toml:"file"`
	Modules map[string]string `toml:"modules"`
}

// FileConfig enables a size-rotated log file next to the other outputs.
type FileConfig struct {
	Path       string `toml:"path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Initialize sets up the logging system. It may be called again to apply a
// new configuration; existing module loggers are rebuilt in place.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true

	if logBuffer == nil {
		logBuffer = NewLogBuffer(defaultBufferSize)
	}

	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}
	if config.File.Path != "" {
		fileWriter = &lumberjack.Logger{
			Filename:   config.File.Path,
			MaxSize:    config.File.MaxSizeMB,
			MaxBackups: config.File.MaxBackups,
			MaxAge:     config.File.MaxAgeDays,
		}
	}

	applyLevels(config.Level, config.Modules)

	// Handlers created before Initialize lack the file and buffer outputs.
	for module, levelVar := range moduleLevelVars {
		moduleLoggers[module] = slog.New(createHandler(config.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// SetLevels changes the global and per-module levels without rebuilding
// handlers. Loggers already handed out pick up the change immediately.
func SetLevels(level string, modules map[string]string) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig.Level = level
	globalConfig.Modules = modules
	applyLevels(level, modules)
}

// applyLevels must be called with mutex held.
func applyLevels(level string, modules map[string]string) {
	global := slog.LevelInfo
	if parsed := parseLevel(level); parsed != nil {
		global = *parsed
	}
	globalLevelVar.Set(global)

	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(module, global, modules))
	}
}

func moduleLevel(module string, global slog.Level, modules map[string]string) slog.Level {
	if levelStr, ok := modules[module]; ok {
		if parsed := parseLevel(levelStr); parsed != nil {
			return *parsed
		}
	}
	return global
}

// Shutdown flushes and closes the log file, if one is open.
func Shutdown() error {
	mutex.Lock()
	defer mutex.Unlock()
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}

// GetBuffer returns the buffer of recent entries served by the API.
func GetBuffer() *LogBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// SetLogCallback sets a callback to be called for each new log entry.
func SetLogCallback(callback LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = callback
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if isInitialized {
		levelVar.Set(moduleLevel(module, globalLevelVar.Level(), globalConfig.Modules))
		format = globalConfig.Format
	}

	logger := slog.New(createHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// createHandler builds the handler chain: stdout, journal when available,
// the rotated file when configured and the in-memory log buffer. Must be
// called with mutex held.
func createHandler(format string, level slog.Leveler) slog.Handler {
	var handlers []slog.Handler

	stdoutHandler := newFormatHandler(os.Stdout, format, level)
	if isStdoutAvailable() {
		handlers = append(handlers, stdoutHandler)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	if fileWriter != nil {
		handlers = append(handlers, newFormatHandler(fileWriter, format, level))
	}
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 0 {
		return stdoutHandler
	}
	return newFanout(handlers...)
}

func newFormatHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// isStdoutAvailable checks if stdout is connected to a terminal, pipe, socket, or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	return parseLevel(level) != nil
}
