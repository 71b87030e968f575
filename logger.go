package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// --- Log Levels ---

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// --- Log Format ---

type LogFormat int

const (
	FormatText LogFormat = iota
	FormatJSON
)

func parseFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// --- Logger ---

// Logger wraps a zerolog logger with the bot's key/value call style and an
// optional size-rotated log file.
type Logger struct {
	zl   zerolog.Logger
	file *rotatingFile
}

// Global logger instance.
var defaultLogger *Logger

// newLogger creates a Logger writing to the given writer.
func newLogger(level zerolog.Level, format LogFormat, out io.Writer) *Logger {
	w := out
	if format == FormatText {
		w = zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}
	}
	return &Logger{
		zl: zerolog.New(w).Level(level).With().Timestamp().Logger(),
	}
}

// initLogger creates the global logger from config. Output goes to stderr and
// to bot.log inside logDir, which is also where the log viewer reads from.
func initLogger(cfg LoggingConfig, logDir string) *Logger {
	level := parseLevel(cfg.levelOrDefault())
	format := parseFormat(cfg.formatOrDefault())

	logFile := cfg.File
	if logFile == "" {
		logFile = filepath.Join(logDir, "bot.log")
	}
	rf, err := openRotatingFile(logFile, int64(cfg.maxSizeMBOrDefault())*1024*1024, cfg.maxFilesOrDefault())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return newLogger(level, format, os.Stderr)
	}
	l := newLogger(level, format, io.MultiWriter(os.Stderr, rf))
	l.file = rf
	return l
}

// log is the core logging method.
func (l *Logger) log(level zerolog.Level, traceID, msg string, fields ...any) {
	ev := l.zl.WithLevel(level)
	if ev == nil {
		return
	}
	if traceID != "" {
		ev = ev.Str("traceId", traceID)
	}
	if m := buildFieldMap(fields); m != nil {
		ev = ev.Fields(m)
	}
	ev.Msg(msg)
}

// buildFieldMap converts variadic key-value pairs to a map.
func buildFieldMap(fields []any) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]any, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", fields[i])
		}
		m[key] = fields[i+1]
	}
	// Handle odd number of fields (last value without key).
	if len(fields)%2 != 0 {
		m["_extra"] = fields[len(fields)-1]
	}
	return m
}

// Close closes the log file.
func (l *Logger) Close() {
	if l.file != nil {
		l.file.Close()
	}
}

// --- Rotating file ---

// rotatingFile is an io.Writer over a log file that rotates
// bot.log → bot.log.1 → bot.log.2 ... once maxSize is reached.
type rotatingFile struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	maxSize  int64
	maxFiles int
	curSize  int64
}

func openRotatingFile(path string, maxSize int64, maxFiles int) (*rotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	rf := &rotatingFile{file: f, path: path, maxSize: maxSize, maxFiles: maxFiles}
	if info, err := f.Stat(); err == nil {
		rf.curSize = info.Size()
	}
	return rf, nil
}

func (rf *rotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return len(p), nil
	}
	n, err := rf.file.Write(p)
	rf.curSize += int64(n)
	if rf.maxSize > 0 && rf.curSize >= rf.maxSize {
		rf.rotate()
	}
	return n, err
}

// rotate must be called with rf.mu held.
func (rf *rotatingFile) rotate() {
	rf.file.Close()

	for i := rf.maxFiles - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", rf.path, i), fmt.Sprintf("%s.%d", rf.path, i+1))
	}
	os.Remove(fmt.Sprintf("%s.%d", rf.path, rf.maxFiles))
	os.Rename(rf.path, rf.path+".1")

	f, err := os.OpenFile(rf.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		rf.file = nil
		return
	}
	rf.file = f
	rf.curSize = 0
}

func (rf *rotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}

// --- Level convenience methods ---

func (l *Logger) Debug(msg string, fields ...any) { l.log(zerolog.DebugLevel, "", msg, fields...) }
func (l *Logger) Info(msg string, fields ...any)  { l.log(zerolog.InfoLevel, "", msg, fields...) }
func (l *Logger) Warn(msg string, fields ...any)  { l.log(zerolog.WarnLevel, "", msg, fields...) }
func (l *Logger) Error(msg string, fields ...any) { l.log(zerolog.ErrorLevel, "", msg, fields...) }

func (l *Logger) InfoCtx(ctx context.Context, msg string, fields ...any) {
	l.log(zerolog.InfoLevel, traceIDFromContext(ctx), msg, fields...)
}
func (l *Logger) WarnCtx(ctx context.Context, msg string, fields ...any) {
	l.log(zerolog.WarnLevel, traceIDFromContext(ctx), msg, fields...)
}
func (l *Logger) ErrorCtx(ctx context.Context, msg string, fields ...any) {
	l.log(zerolog.ErrorLevel, traceIDFromContext(ctx), msg, fields...)
}

// --- Package-level shortcuts (use defaultLogger) ---

func logDebug(msg string, fields ...any) {
	if defaultLogger != nil {
		defaultLogger.Debug(msg, fields...)
	}
}
func logInfo(msg string, fields ...any) {
	if defaultLogger != nil {
		defaultLogger.Info(msg, fields...)
	}
}
func logWarn(msg string, fields ...any) {
	if defaultLogger != nil {
		defaultLogger.Warn(msg, fields...)
	}
}
func logError(msg string, fields ...any) {
	if defaultLogger != nil {
		defaultLogger.Error(msg, fields...)
	}
}

func logInfoCtx(ctx context.Context, msg string, fields ...any) {
	if defaultLogger != nil {
		defaultLogger.InfoCtx(ctx, msg, fields...)
	}
}
func logWarnCtx(ctx context.Context, msg string, fields ...any) {
	if defaultLogger != nil {
		defaultLogger.WarnCtx(ctx, msg, fields...)
	}
}
func logErrorCtx(ctx context.Context, msg string, fields ...any) {
	if defaultLogger != nil {
		defaultLogger.ErrorCtx(ctx, msg, fields...)
	}
}
