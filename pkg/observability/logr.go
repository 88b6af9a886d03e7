package observability

import (
	"github.com/go-logr/logr"
)

// logrLogger adapts a logr.Logger to the Logger interface so hosts built on
// logr-based frameworks can supply per-resource loggers directly.
type logrLogger struct {
	logger logr.Logger
}

// NewLogrLogger wraps a logr.Logger in the Logger interface. Debug maps to
// verbosity 1, Info and Warn to verbosity 0, Error to the logr error channel.
func NewLogrLogger(logger logr.Logger) Logger {
	return &logrLogger{logger: logger}
}

func (l *logrLogger) Debug(msg string, fields ...Field) {
	l.logger.V(1).Info(msg, fieldsToKV(fields)...)
}

func (l *logrLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, fieldsToKV(fields)...)
}

func (l *logrLogger) Warn(msg string, fields ...Field) {
	l.logger.Info(msg, append(fieldsToKV(fields), "severity", "warn")...)
}

func (l *logrLogger) Error(msg string, fields ...Field) {
	l.logger.Error(nil, msg, fieldsToKV(fields)...)
}

func (l *logrLogger) With(fields ...Field) Logger {
	return &logrLogger{logger: l.logger.WithValues(fieldsToKV(fields)...)}
}

func (l *logrLogger) Enabled(level Level) bool {
	if level == DebugLevel {
		return l.logger.V(1).Enabled()
	}
	return l.logger.Enabled()
}

func (l *logrLogger) Sync() error {
	return nil
}

// fieldsToKV flattens zap fields into logr key/value pairs.
func fieldsToKV(fields []Field) []any {
	kv := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		switch {
		case f.Interface != nil:
			kv = append(kv, f.Key, f.Interface)
		case f.String != "":
			kv = append(kv, f.Key, f.String)
		default:
			kv = append(kv, f.Key, f.Integer)
		}
	}
	return kv
}
