// Package logging wraps logrus with the level-gated facade shape the rest
// of this module expects, plus the CLI-driven knobs spec.md §6 exposes
// (--logfile, --logtype, --logstamp, --gossip-mask).
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger wraps a *logrus.Logger with gossip-mask gated event logging.
type Logger struct {
	entry *logrus.Entry
	mask  EventMask
	mu    sync.Mutex
}

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
)

// StampMode selects the --logstamp CLI value.
type StampMode int

const (
	StampNone StampMode = iota
	StampUsec
	StampDatetime
)

// OutputType selects the --logtype CLI value.
type OutputType int

const (
	OutputFile OutputType = iota
	OutputSyslog
)

// Config holds logging configuration, derived from CLI flags.
type Config struct {
	Level LogLevel
	// Output is used directly when non-nil; otherwise Type/Path determine it.
	Output io.Writer
	Type   OutputType
	Path   string // used when Type == OutputFile and non-empty
	Stamp  StampMode
	Mask   EventMask
}

// LogLevel mirrors logrus levels without leaking the dependency into
// callers that only import this package.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) toLogrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// DefaultConfig returns a sensible default configuration: info level,
// stderr, datetime stamps, no gossip categories enabled.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Output: os.Stderr,
		Stamp:  StampDatetime,
	}
}

// NewLogger builds a Logger from Config, opening --logfile/--logtype as
// needed.
func NewLogger(config *Config) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	base := logrus.New()
	base.SetLevel(config.Level.toLogrus())
	base.SetFormatter(stampFormatter(config.Stamp))

	switch {
	case config.Output != nil:
		base.SetOutput(config.Output)
	case config.Type == OutputSyslog:
		hook, err := newSyslogHook()
		if err != nil {
			return nil, fmt.Errorf("logging: syslog hook: %w", err)
		}
		base.SetOutput(io.Discard)
		base.AddHook(hook)
	case config.Path != "":
		f, err := os.OpenFile(config.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open logfile: %w", err)
		}
		base.SetOutput(f)
	default:
		base.SetOutput(os.Stderr)
	}

	return &Logger{entry: logrus.NewEntry(base), mask: config.Mask}, nil
}

func stampFormatter(mode StampMode) logrus.Formatter {
	switch mode {
	case StampNone:
		return &logrus.TextFormatter{DisableTimestamp: true}
	case StampUsec:
		return &logrus.TextFormatter{TimestampFormat: "15:04:05.000000", FullTimestamp: true}
	default:
		return &logrus.TextFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00", FullTimestamp: true}
	}
}

// Default returns the process default logger, creating one on stderr if
// none has been set yet.
func Default() *Logger {
	defaultMu.RLock()
	if defaultLogger != nil {
		defer defaultMu.RUnlock()
		return defaultLogger
	}
	defaultMu.RUnlock()

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		l, _ := NewLogger(nil)
		defaultLogger = l
	}
	return defaultLogger
}

// SetDefault installs l as the process default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

func (l *Logger) fields(args []any) logrus.Fields {
	if len(args) == 0 {
		return nil
	}
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key := fmt.Sprintf("%v", args[i])
		f[key] = args[i+1]
	}
	return f
}

func (l *Logger) withFields(args []any) *logrus.Entry {
	if f := l.fields(args); f != nil {
		return l.entry.WithFields(f)
	}
	return l.entry
}

func (l *Logger) Debug(msg string, args ...any) { l.withFields(args).Debug(msg) }
func (l *Logger) Info(msg string, args ...any)  { l.withFields(args).Info(msg) }
func (l *Logger) Warn(msg string, args ...any)  { l.withFields(args).Warn(msg) }
func (l *Logger) Error(msg string, args ...any) { l.withFields(args).Error(msg) }

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

// Printf satisfies callers that only know stdlib log's shape.
func (l *Logger) Printf(format string, args ...any) { l.Infof(format, args...) }

// Event logs msg at debug level only if category is enabled in the
// logger's gossip mask (spec.md §6 --gossip-mask, SPEC_FULL.md supplement
// 2).
func (l *Logger) Event(category EventMask, msg string, args ...any) {
	l.mu.Lock()
	enabled := l.mask&category != 0
	l.mu.Unlock()
	if !enabled {
		return
	}
	l.Debug(msg, args...)
}

// SetMask updates the gossip mask at runtime. Nothing in this module
// calls it; the mask set from --gossip-mask at startup stays in force.
func (l *Logger) SetMask(mask EventMask) {
	l.mu.Lock()
	l.mask = mask
	l.mu.Unlock()
}

// Global convenience functions mirroring the teacher's package-level
// Debug/Info/Warn/Error helpers.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
