package logger

// NullLogger drops every record. It is the engine's default so callers who
// never install a logger pay nothing on the decision path.
type NullLogger struct{}

func NewNullLogger() *NullLogger { return &NullLogger{} }

func (NullLogger) Debug(msg string, keyvals ...any) {}
func (NullLogger) Info(msg string, keyvals ...any)  {}
func (NullLogger) Error(msg string, keyvals ...any) {}
