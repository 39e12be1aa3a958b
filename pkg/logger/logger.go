package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Leveled logger shared by the whole service. The level is set once at
// startup from the LOG_LEVEL env value (debug|info|warn|error|fatal) and
// defaults to info.

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu    sync.RWMutex
	out   io.Writer = os.Stdout
	level Level     = LevelInfo
)

// Init sets the global log level; case-insensitive, unknown values mean info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		level = LevelDebug
	case "warn", "warning":
		level = LevelWarn
	case "error":
		level = LevelError
	case "fatal":
		level = LevelFatal
	default:
		level = LevelInfo
	}
}

// SetOutput redirects log output; used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func emit(l Level, tag, format string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if l < level {
		return
	}
	fmt.Fprintf(out, "%s [%s] %s\n",
		time.Now().Format(time.RFC3339), tag, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...interface{}) { emit(LevelDebug, "DEBUG", format, v...) }
func Infof(format string, v ...interface{})  { emit(LevelInfo, "INFO", format, v...) }
func Warnf(format string, v ...interface{})  { emit(LevelWarn, "WARN", format, v...) }
func Errorf(format string, v ...interface{}) { emit(LevelError, "ERROR", format, v...) }

func Fatalf(format string, v ...interface{}) {
	emit(LevelFatal, "FATAL", format, v...)
	os.Exit(1)
}

// Single-string convenience variants.
func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}
