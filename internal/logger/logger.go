package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Logger provides structured logging for journald
type Logger struct {
	mu     sync.Mutex
	writer io.Writer
}

// New creates a new logger instance
func New() *Logger {
	return &Logger{
		writer: os.Stdout,
	}
}

// NewWithWriter creates a logger with a custom writer
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{
		writer: w,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(io.Discard)
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields ...Field) {
	l.log("INFO", msg, fields...)
}

// Error logs error messages
func (l *Logger) Error(msg string, fields ...Field) {
	l.log("ERROR", msg, fields...)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log("WARNING", msg, fields...)
}

// Debug logs debug messages
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log("DEBUG", msg, fields...)
}

func (l *Logger) log(level, msg string, fields ...Field) {
	var b strings.Builder
	fmt.Fprintf(&b, "LEVEL=%s MESSAGE=%s", level, msg)
	for _, field := range fields {
		fmt.Fprintf(&b, " %s=%v", field.Key, field.Value)
	}
	b.WriteByte('\n')

	// Handlers log from many goroutines; keep lines whole.
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.writer, b.String())
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// F creates a new field (shorthand)
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Common field constructors
func Action(value string) Field      { return F("ACTION", value) }
func Status(value string) Field      { return F("STATUS", value) }
func User(value int64) Field         { return F("USER", value) }
func Username(value string) Field    { return F("USERNAME", value) }
func Role(value string) Field        { return F("ROLE", value) }
func Room(value int64) Field         { return F("ROOM", value) }
func Reservation(value int64) Field  { return F("RESERVATION", value) }
func Date(value string) Field        { return F("DATE", value) }
func Window(start, end int) Field    { return F("WINDOW", fmt.Sprintf("[%d,%d)", start, end)) }
func Count(value int) Field          { return F("COUNT", value) }
func Code(value int) Field           { return F("CODE", value) }
func Error(value error) Field        { return F("ERROR", value) }
func Reason(value string) Field      { return F("REASON", value) }
func RequestID(value string) Field   { return F("REQUEST_ID", value) }
func Command(value string) Field     { return F("COMMAND", value) }
func Password(value string) Field    { return F("PASSWORD", value) }
func Path(value string) Field        { return F("PATH", value) }
func LatencyMS(value int64) Field    { return F("LATENCY_MS", value) }
func Driver(value string) Field      { return F("DRIVER", value) }
func Queue(value string) Field       { return F("QUEUE", value) }
func Correlation(value string) Field { return F("CORRELATION_ID", value) }
