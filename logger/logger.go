package logger

// Logger is the minimal structured logging surface the engine needs.
// Keyvals are alternating key/value pairs.
type Logger interface {
	Error(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}

// TraceIDFunc generates a correlation/trace ID for each decision. It must be
// cheap and safe for concurrent calls.
type TraceIDFunc func() string
