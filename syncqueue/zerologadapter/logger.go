// Package zerologadapter provides a zerolog-backed implementation of the
// syncqueue.Logger interface.
package zerologadapter

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/david1995/datasync-queue-go/syncqueue"
)

// Logger implements syncqueue.Logger on top of a zerolog.Logger.
// The variadic key/value arguments of the syncqueue.Logger methods are
// attached as structured fields; a dangling key without a value is dropped.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a Logger wrapping the given zerolog.Logger.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.write(l.logger.Debug(), msg, args)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...any) {
	l.write(l.logger.Info(), msg, args)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.write(l.logger.Warn(), msg, args)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.write(l.logger.Error(), msg, args)
}

func (l *Logger) write(event *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, isString := args[i].(string)
		if !isString {
			key = fmt.Sprint(args[i])
		}

		event = event.Interface(key, args[i+1])
	}

	event.Msg(msg)
}

// Ensure Logger implements syncqueue.Logger.
var _ syncqueue.Logger = (*Logger)(nil)
