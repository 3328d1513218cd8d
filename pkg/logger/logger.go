package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

var defaultLogger *slog.Logger

func init() {
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     levelFromEnv(),
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("CHATFORGE_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLogger allows customized global loggers
func SetLogger(l *slog.Logger) {
	defaultLogger = l
	slog.SetDefault(l)
}

// log is a helper that adds the correct source code position skipping wrapper functions.
func log(level slog.Level, msg string, args ...any) {
	if !defaultLogger.Enabled(context.Background(), level) {
		return
	}
	var pcs [1]uintptr
	// Skip runtime.Callers, this func, and the exported wrapper func
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = defaultLogger.Handler().Handle(context.Background(), r)
}

func logf(level slog.Level, format string, args ...any) {
	if !defaultLogger.Enabled(context.Background(), level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	msg := fmt.Sprintf(format, args...)
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	_ = defaultLogger.Handler().Handle(context.Background(), r)
}

func Info(msg string, args ...any)  { log(slog.LevelInfo, msg, args...) }
func Warn(msg string, args ...any)  { log(slog.LevelWarn, msg, args...) }
func Error(msg string, args ...any) { log(slog.LevelError, msg, args...) }
func Debug(msg string, args ...any) { log(slog.LevelDebug, msg, args...) }

func Infof(format string, args ...any)  { logf(slog.LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logf(slog.LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logf(slog.LevelError, format, args...) }
func Debugf(format string, args ...any) { logf(slog.LevelDebug, format, args...) }

// Printf and Fatalf keep the stdlib log call sites readable in wiring code.
func Printf(format string, args ...any) { logf(slog.LevelInfo, format, args...) }
func Fatalf(format string, args ...any) {
	logf(slog.LevelError, format, args...)
	os.Exit(1)
}
