package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Level is the severity of a log message. Levels are ordered: a logger
// configured with a minimum level drops every message below it.
type Level int32

const (
	LevelLow Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a Level. Matching is case-insensitive
// and accepts the common aliases (DEBUG for LOW, WARN for WARNING).
func ParseLevel(level string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "LOW", "DEBUG":
		return LevelLow, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "CRITICAL", "CRITICALERROR":
		return LevelCritical, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// Logger is the sink used by the server core and its managers.
type Logger interface {
	Log(level Level, format string, args ...any)
}

// Config controls how a Logrus logger is built.
type Config struct {
	// Level is the minimum level emitted (LOW, INFO, WARNING, ERROR, CRITICAL)
	Level string

	// Format is either "text" or "json"
	Format string

	// Output is "stdout", "stderr" or a file path (opened in append mode)
	Output string
}

// Logrus is a Logger backed by logrus.
type Logrus struct {
	log    *logrus.Logger
	min    atomic.Int32
	closer io.Closer
}

// New builds a logrus-backed logger from cfg. Empty fields fall back to
// INFO, text and stdout.
func New(cfg Config) (*Logrus, error) {
	min := LevelInfo
	if cfg.Level != "" {
		parsed, err := ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		min = parsed
	}

	var formatter logrus.Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
			DisableSorting:  true,
		}
	case "json":
		formatter = &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	var (
		w      io.Writer
		closer io.Closer
	)
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		w, closer = f, f
	}

	l := &Logrus{
		log: &logrus.Logger{
			Out:       w,
			Formatter: formatter,
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.DebugLevel,
		},
		closer: closer,
	}
	l.min.Store(int32(min))
	return l, nil
}

// NewWithWriter builds a text logger writing to w. Mostly useful in tests.
func NewWithWriter(w io.Writer, min Level) *Logrus {
	l := &Logrus{
		log: &logrus.Logger{
			Out:       w,
			Formatter: &logrus.TextFormatter{DisableTimestamp: true, DisableSorting: true},
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.DebugLevel,
		},
	}
	l.min.Store(int32(min))
	return l
}

func (l *Logrus) Log(level Level, format string, args ...any) {
	if level < Level(l.min.Load()) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	switch level {
	case LevelLow:
		l.log.Debug(msg)
	case LevelInfo:
		l.log.Info(msg)
	case LevelWarning:
		l.log.Warn(msg)
	case LevelError:
		l.log.Error(msg)
	default:
		l.log.WithField("critical", true).Error(msg)
	}
}

// SetLevel changes the minimum level at runtime.
func (l *Logrus) SetLevel(level Level) {
	l.min.Store(int32(level))
}

// Level returns the current minimum level.
func (l *Logrus) Level() Level {
	return Level(l.min.Load())
}

// Close releases the log file, if the logger owns one.
func (l *Logrus) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

type nop struct{}

func (nop) Log(Level, string, ...any) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nop{}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewWithWriter(os.Stdout, LevelInfo)
)

// SetDefault replaces the process-wide logger used by the package-level
// helpers. A nil logger is ignored.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default returns the process-wide logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

func Debug(format string, v ...any) {
	Default().Log(LevelLow, format, v...)
}

func Info(format string, v ...any) {
	Default().Log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	Default().Log(LevelWarning, format, v...)
}

func Error(format string, v ...any) {
	Default().Log(LevelError, format, v...)
}
