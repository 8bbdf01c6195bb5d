package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures a Logger.
type Options struct {
	// Verbose switches the console to debug level with a human-readable
	// encoder. Otherwise the console prints info and above as JSON.
	Verbose bool

	// Level overrides the level implied by Verbose when non-empty
	// ("debug", "info", "warn", "error").
	Level string

	// FilePath is the rotated JSON log file. Empty disables file output.
	FilePath string

	// File tunes rotation of FilePath.
	File FileWriterConfig

	// Console receives console output. Defaults to os.Stderr so stdout
	// stays free for the run summary.
	Console io.Writer
}

// Logger wraps zap.Logger and redacts credentials from every field before
// it reaches an encoder.
//
// Example:
//
//	logger, err := logging.New(logging.Options{Verbose: true, FilePath: "logs/batch.log"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("batch started", zap.Int("jobs", 100))
type Logger struct {
	zap   *zap.Logger
	sugar *zap.SugaredLogger
}

// New builds a Logger that tees to the console and, when FilePath is set,
// to a rotated JSON file.
func New(opts Options) (*Logger, error) {
	level := InfoLevel
	if opts.Verbose {
		level = DebugLevel
	}
	if opts.Level != "" {
		level = ParseLogLevelString(opts.Level, level)
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var file zapcore.WriteSyncer
	if opts.FilePath != "" {
		if err := ensureLogDir(opts.FilePath); err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		file = NewFileWriterWithConfig(opts.FilePath, opts.File)
	}

	core := newTeeCore(level, zapcore.AddSync(console), file, opts.Verbose)
	return fromZap(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))), nil
}

// NewNop returns a Logger that discards everything. Components fall back
// to it when no logger is injected.
func NewNop() *Logger {
	return fromZap(zap.NewNop())
}

// NewWithCore wraps an arbitrary core, typically zaptest/observer in tests.
func NewWithCore(core zapcore.Core) *Logger {
	return fromZap(zap.New(core))
}

func fromZap(z *zap.Logger) *Logger {
	return &Logger{zap: z, sugar: z.Sugar()}
}

// Sync flushes buffered entries. Call it before exiting.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

// Debug logs at DebugLevel.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, redactFields(fields)...)
}

// Info logs at InfoLevel.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, redactFields(fields)...)
}

// Warn logs at WarnLevel.
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, redactFields(fields)...)
}

// Error logs at ErrorLevel.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, redactFields(fields)...)
}

// Infow logs at InfoLevel with loosely-typed key-value pairs.
//
// Example:
//
//	logger.Infow("image saved", "kind", "annotated", "path", path)
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, redactKeysAndValues(keysAndValues)...)
}

// Warnw logs at WarnLevel with loosely-typed key-value pairs.
func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, redactKeysAndValues(keysAndValues)...)
}

// Errorw logs at ErrorLevel with loosely-typed key-value pairs.
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, redactKeysAndValues(keysAndValues)...)
}

// Infof logs a formatted message at InfoLevel. Arguments are not redacted;
// keep credentials out of format strings.
func (l *Logger) Infof(template string, args ...interface{}) {
	l.sugar.Infof(template, args...)
}

// With returns a child logger that adds fields to every entry.
//
// Example:
//
//	jobLogger := logger.With(zap.Int("job", job.Index))
func (l *Logger) With(fields ...zap.Field) *Logger {
	return fromZap(l.zap.With(redactFields(fields)...))
}

// Named returns a child logger with name appended to the logger name.
func (l *Logger) Named(name string) *Logger {
	return fromZap(l.zap.Named(name))
}

// Zap exposes the underlying zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// redactFields replaces sensitive values in typed fields.
func redactFields(fields []zap.Field) []zap.Field {
	if len(fields) == 0 {
		return fields
	}

	result := make([]zap.Field, len(fields))
	for i, field := range fields {
		result[i] = redactField(field)
	}
	return result
}

func redactField(field zap.Field) zap.Field {
	if IsSensitiveField(field.Key) {
		return zap.String(field.Key, RedactedPlaceholder)
	}
	if field.Type == zapcore.StringType {
		if redacted := RedactSensitiveData(field.String); redacted != field.String {
			return zap.String(field.Key, redacted)
		}
	}
	if field.Type == zapcore.ErrorType {
		if err, ok := field.Interface.(error); ok && ContainsSensitiveData(err.Error()) {
			return zap.String(field.Key, RedactSensitiveData(err.Error()))
		}
	}
	return field
}

// redactKeysAndValues filters sensitive data from sugared key-value pairs.
func redactKeysAndValues(keysAndValues []interface{}) []interface{} {
	if len(keysAndValues) == 0 {
		return keysAndValues
	}

	result := make([]interface{}, len(keysAndValues))
	copy(result, keysAndValues)

	for i := 0; i < len(result)-1; i += 2 {
		key, ok := result[i].(string)
		if !ok {
			continue
		}
		if IsSensitiveField(key) {
			result[i+1] = RedactedPlaceholder
			continue
		}
		if value, ok := result[i+1].(string); ok {
			result[i+1] = RedactSensitiveData(value)
		}
	}
	return result
}
