package log

import (
	"bytes"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes structured JSON logs.
//
// Each record includes a 'subsystem' field identifying the component that
// logged it. Records below the configured level are dropped, unless the
// loggers subsystem is one of the enabled subsystems, in which case all
// levels are logged.
type Logger interface {
	Subsystem() string
	// WithSubsystem returns a logger for the given subsystem.
	WithSubsystem(s string) Logger
	With(fields ...zap.Field) Logger
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Sync() error
	// StdLogger returns a standard library logger that writes each line as
	// a record with the given level, such as for http.Server.ErrorLog.
	StdLogger(level zapcore.Level) *stdlog.Logger
}

type logger struct {
	core zapcore.Core

	subsystem         string
	subsystemEnabled  bool
	enabledSubsystems []string

	errorOutput zapcore.WriteSyncer
}

// NewLogger creates a logger writing to stderr with the given minimum level
// and enabled subsystems.
func NewLogger(lvl string, enabledSubsystems []string) (Logger, error) {
	sink, _, err := zap.Open("stderr")
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}
	return newLogger(lvl, enabledSubsystems, sink)
}

// NewLoggerWithWriter is like NewLogger except writes to w.
func NewLoggerWithWriter(lvl string, enabledSubsystems []string, w io.Writer) (Logger, error) {
	return newLogger(lvl, enabledSubsystems, zapcore.AddSync(w))
}

func newLogger(
	lvl string,
	enabledSubsystems []string,
	sink zapcore.WriteSyncer,
) (Logger, error) {
	zapLevel, err := zapLevelFromString(lvl)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	// The logger name is used as the subsystem.
	encoderConfig.NameKey = "subsystem"
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(
		"2006-01-02T15:04:05.999Z07:00",
	)

	return &logger{
		core: &unfilteredCore{
			inner: zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				sink,
				zap.NewAtomicLevelAt(zapLevel),
			),
		},
		subsystem:         "main",
		subsystemEnabled:  slices.Contains(enabledSubsystems, "main"),
		enabledSubsystems: enabledSubsystems,
		errorOutput:       zapcore.Lock(os.Stderr),
	}, nil
}

func (l *logger) Subsystem() string {
	return l.subsystem
}

func (l *logger) WithSubsystem(s string) Logger {
	if s == l.subsystem {
		return l
	}

	clone := *l
	clone.subsystem = s
	clone.subsystemEnabled = slices.Contains(l.enabledSubsystems, s)
	return &clone
}

func (l *logger) With(fields ...zap.Field) Logger {
	if len(fields) == 0 {
		return l
	}
	clone := *l
	clone.core = l.core.With(fields)
	return &clone
}

func (l *logger) Debug(msg string, fields ...zap.Field) {
	l.write(zap.DebugLevel, msg, fields)
}

func (l *logger) Info(msg string, fields ...zap.Field) {
	l.write(zap.InfoLevel, msg, fields)
}

func (l *logger) Warn(msg string, fields ...zap.Field) {
	l.write(zap.WarnLevel, msg, fields)
}

func (l *logger) Error(msg string, fields ...zap.Field) {
	l.write(zap.ErrorLevel, msg, fields)
}

func (l *logger) Sync() error {
	return l.core.Sync()
}

func (l *logger) StdLogger(level zapcore.Level) *stdlog.Logger {
	return stdlog.New(&lineWriter{
		write: func(msg string) {
			l.write(level, msg, nil)
		},
	}, "", 0)
}

func (l *logger) write(lvl zapcore.Level, msg string, fields []zap.Field) {
	// The level filter is skipped when the subsystem is enabled.
	if !l.subsystemEnabled && !l.core.Enabled(lvl) {
		return
	}

	ce := l.core.Check(zapcore.Entry{
		LoggerName: l.subsystem,
		Time:       time.Now(),
		Level:      lvl,
		Message:    msg,
	}, nil)
	if ce == nil {
		return
	}
	ce.ErrorOutput = l.errorOutput
	ce.Write(fields...)
}

type nopLogger struct {
}

// NewNopLogger returns a logger that discards all records.
func NewNopLogger() Logger {
	return &nopLogger{}
}

func (l *nopLogger) Subsystem() string {
	return ""
}

func (l *nopLogger) WithSubsystem(_ string) Logger {
	return l
}

func (l *nopLogger) With(_ ...zap.Field) Logger {
	return l
}

func (l *nopLogger) Debug(_ string, _ ...zap.Field) {
}

func (l *nopLogger) Info(_ string, _ ...zap.Field) {
}

func (l *nopLogger) Warn(_ string, _ ...zap.Field) {
}

func (l *nopLogger) Error(_ string, _ ...zap.Field) {
}

func (l *nopLogger) Sync() error {
	return nil
}

func (l *nopLogger) StdLogger(_ zapcore.Level) *stdlog.Logger {
	return stdlog.New(io.Discard, "", 0)
}

// lineWriter adapts a standard library logger to a record writer.
type lineWriter struct {
	write func(msg string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.write(string(bytes.TrimSpace(p)))
	return len(p), nil
}

func zapLevelFromString(s string) (zapcore.Level, error) {
	switch s {
	case "debug":
		return zap.DebugLevel, nil
	case "info":
		return zap.InfoLevel, nil
	case "warn":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zapcore.Level(0), fmt.Errorf("unsupported level: %s", s)
	}
}

// unfilteredCore wraps a core so Check never filters by level, which is
// instead done by logger so enabled subsystems can bypass it.
type unfilteredCore struct {
	inner zapcore.Core
}

func (c *unfilteredCore) Enabled(lvl zapcore.Level) bool {
	return c.inner.Enabled(lvl)
}

func (c *unfilteredCore) With(fields []zap.Field) zapcore.Core {
	return &unfilteredCore{
		inner: c.inner.With(fields),
	}
}

func (c *unfilteredCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return ce.AddCore(ent, c.inner)
}

func (c *unfilteredCore) Write(ent zapcore.Entry, fields []zap.Field) error {
	return c.inner.Write(ent, fields)
}

func (c *unfilteredCore) Sync() error {
	return c.inner.Sync()
}
