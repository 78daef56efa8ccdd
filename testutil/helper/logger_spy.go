package helper

import (
	"sync"
)

// SpyLogEntry is one captured logger call.
type SpyLogEntry struct {
	Level string
	Msg   string
	Args  []any
}

// LoggerSpy is a syncqueue.Logger implementation that captures calls for
// inspection in tests. Safe for concurrent use.
type LoggerSpy struct {
	mu      sync.Mutex
	entries []SpyLogEntry
}

// NewLoggerSpy creates an empty LoggerSpy.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{}
}

// Debug captures a debug call.
func (s *LoggerSpy) Debug(msg string, args ...any) {
	s.capture("debug", msg, args)
}

// Info captures an info call.
func (s *LoggerSpy) Info(msg string, args ...any) {
	s.capture("info", msg, args)
}

// Warn captures a warn call.
func (s *LoggerSpy) Warn(msg string, args ...any) {
	s.capture("warn", msg, args)
}

// Error captures an error call.
func (s *LoggerSpy) Error(msg string, args ...any) {
	s.capture("error", msg, args)
}

// Entries returns a copy of all captured calls.
func (s *LoggerSpy) Entries() []SpyLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]SpyLogEntry, len(s.entries))
	copy(entries, s.entries)

	return entries
}

// MessagesAtLevel returns the captured messages for one level.
func (s *LoggerSpy) MessagesAtLevel(level string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]string, 0)
	for _, entry := range s.entries {
		if entry.Level == level {
			messages = append(messages, entry.Msg)
		}
	}

	return messages
}

func (s *LoggerSpy) capture(level string, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, SpyLogEntry{Level: level, Msg: msg, Args: args})
}
