package observability

// relayLogger forwards every call unchanged to a target logger. It carries
// no state of its own, so the embedded gateway can log through the host's
// per-resource logger without the host appearing in the gateway's API.
type relayLogger struct {
	target Logger
}

// NewRelay returns a Logger that forwards every record, derived scope, and
// severity check to target without filtering or rewriting.
func NewRelay(target Logger) Logger {
	if target == nil {
		return NopLogger()
	}
	return &relayLogger{target: target}
}

func (r *relayLogger) Debug(msg string, fields ...Field) { r.target.Debug(msg, fields...) }
func (r *relayLogger) Info(msg string, fields ...Field)  { r.target.Info(msg, fields...) }
func (r *relayLogger) Warn(msg string, fields ...Field)  { r.target.Warn(msg, fields...) }
func (r *relayLogger) Error(msg string, fields ...Field) { r.target.Error(msg, fields...) }

func (r *relayLogger) With(fields ...Field) Logger {
	return &relayLogger{target: r.target.With(fields...)}
}

func (r *relayLogger) Enabled(level Level) bool {
	return r.target.Enabled(level)
}

func (r *relayLogger) Sync() error {
	return r.target.Sync()
}
